package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKeyAuth 管理接口的静态令牌认证中间件
type APIKeyAuth struct {
	token string
}

// NewAPIKeyAuth 创建静态令牌认证中间件。令牌为空时管理接口被禁用。
func NewAPIKeyAuth(token string) *APIKeyAuth {
	return &APIKeyAuth{token: token}
}

// RequireAPIKey 要求请求携带正确的 X-API-Key
func (m *APIKeyAuth) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.token == "" {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "admin API disabled",
			})
			c.Abort()
			return
		}

		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(m.token)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid API key",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
