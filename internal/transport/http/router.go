package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voicebox/backend/internal/config"
	"voicebox/backend/internal/health"
	"voicebox/backend/internal/middleware"
	"voicebox/backend/internal/monitoring"
	"voicebox/backend/internal/service"
	"voicebox/backend/internal/storage"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config     *config.Config
	Controller *service.Controller
	Creds      *storage.Credentials
	Store      storage.KV
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
//
// 运维面：健康检查、指标抓取、带静态令牌认证的沙箱管理接口。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryHandler(deps.Logger, deps.Metrics))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.HTTPMetrics(deps.Metrics))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 健康检查与指标
	checker := health.NewHealthChecker(deps.Store, deps.Logger)
	router.GET("/live", gin.WrapH(checker.Handler()))
	router.GET("/ready", gin.WrapH(checker.Handler()))
	router.GET("/health", func(c *gin.Context) {
		if err := deps.Store.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	adminHandler := NewAdminHandler(deps.Controller, deps.Creds, deps.Logger)
	apiKeyAuth := middleware.NewAPIKeyAuth(deps.Config.HTTP.AdminToken)

	v1 := router.Group("/api/v1")
	v1.Use(apiKeyAuth.RequireAPIKey())
	{
		v1.GET("/sandboxes/:sandbox/mailboxes/:mailbox", adminHandler.GetMailbox)
		v1.POST("/sandboxes/:sandbox/reset", adminHandler.ResetSandbox)
	}

	return router
}
