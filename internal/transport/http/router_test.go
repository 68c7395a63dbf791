package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"voicebox/backend/internal/config"
	"voicebox/backend/internal/domain"
	"voicebox/backend/internal/monitoring"
	"voicebox/backend/internal/service"
	"voicebox/backend/internal/sharecode"
	"voicebox/backend/internal/storage"
	"voicebox/backend/internal/storage/memory"
)

func newTestRouter(t *testing.T, adminToken string) (http.Handler, *storage.Credentials) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		HTTP: config.HTTPConfig{AdminToken: adminToken},
		Telephony: config.TelephonyConfig{
			DigitTimeout:   time.Second,
			RetryTimeout:   2 * time.Second,
			PinTimeout:     2 * time.Second,
			GuestTimeout:   5 * time.Second,
			MaxPinAttempts: 3,
		},
		Sandbox: config.SandboxConfig{
			SeedPins:       map[int]string{2: "7319", 5: "2442"},
			ContentMailbox: 2,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
	}

	store := memory.NewStore()
	creds := storage.NewCredentials(store)
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	ctrl := service.NewController(creds, sharecode.New(), cfg, metrics, zap.NewNop())

	router := NewRouter(RouterDependencies{
		Config:     cfg,
		Controller: ctrl,
		Creds:      creds,
		Store:      store,
		Metrics:    metrics,
		Logger:     zap.NewNop(),
	})
	return router, creds
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t, "secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestRouter_AdminAuth(t *testing.T) {
	t.Run("缺少 API Key 返回 401", func(t *testing.T) {
		router, _ := newTestRouter(t, "secret")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sandboxes/7/reset", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("错误 API Key 返回 401", func(t *testing.T) {
		router, _ := newTestRouter(t, "secret")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sandboxes/7/reset", nil)
		req.Header.Set("X-API-Key", "wrong")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("未配置令牌时管理接口被禁用", func(t *testing.T) {
		router, _ := newTestRouter(t, "")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sandboxes/7/reset", nil)
		req.Header.Set("X-API-Key", "anything")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestRouter_ResetSandbox(t *testing.T) {
	ctx := context.Background()
	router, creds := newTestRouter(t, "secret")

	require.NoError(t, creds.WritePIN(ctx, 7, 9, "1111"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sandboxes/7/reset", nil)
	req.Header.Set("X-API-Key", "secret")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	pin, err := creds.ReadPIN(ctx, 7, 2)
	require.NoError(t, err)
	assert.Equal(t, "7319", pin)

	_, err = creds.ReadPIN(ctx, 7, 9)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRouter_GetMailbox(t *testing.T) {
	ctx := context.Background()
	router, creds := newTestRouter(t, "secret")

	require.NoError(t, creds.WriteState(ctx, 7, 2, domain.StateAuthenticated))
	require.NoError(t, creds.WritePIN(ctx, 7, 2, "7319"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sandboxes/7/mailboxes/2", nil)
	req.Header.Set("X-API-Key", "secret")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data mailboxStatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Data.State)
	assert.Equal(t, "authenticated", resp.Data.StateName)
	assert.True(t, resp.Data.PinSet)
	assert.False(t, resp.Data.VisitorIssued)

	t.Run("没有状态的信箱返回 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sandboxes/7/mailboxes/8", nil)
		req.Header.Set("X-API-Key", "secret")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
