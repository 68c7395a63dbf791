package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	registry *prometheus.Registry

	// 呼叫指标
	CallsTotal   prometheus.Counter
	CallDuration prometheus.Histogram

	// 认证指标
	LoginAttempts *prometheus.CounterVec
	PinUpdates    prometheus.Counter

	// 访客分享指标
	ShareCodesIssued prometheus.Counter
	GuestSessions    *prometheus.CounterVec

	// 沙箱指标
	SandboxResets prometheus.Counter

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics 创建监控指标并注册到给定的注册表。
//
// 测试中传入独立的 prometheus.NewRegistry() 以避免重复注册冲突。
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		// 呼叫指标
		CallsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "voicebox_calls_total",
				Help: "Total number of calls handled",
			},
		),

		CallDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "voicebox_call_duration_seconds",
				Help:    "Call duration in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),

		// 认证指标
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicebox_login_attempts_total",
				Help: "Total number of PIN login attempts",
			},
			[]string{"result"},
		),

		PinUpdates: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "voicebox_pin_updates_total",
				Help: "Total number of PIN updates",
			},
		),

		// 访客分享指标
		ShareCodesIssued: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "voicebox_share_codes_issued_total",
				Help: "Total number of guest share codes issued",
			},
		),

		GuestSessions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicebox_guest_sessions_total",
				Help: "Total number of guest sessions",
			},
			[]string{"outcome"},
		),

		// 沙箱指标
		SandboxResets: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "voicebox_sandbox_resets_total",
				Help: "Total number of sandbox resets",
			},
		),

		// HTTP 请求指标
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicebox_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "voicebox_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		// 错误指标
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicebox_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),
	}
}

// RecordCall 记录一通呼叫及其时长
func (m *Metrics) RecordCall(duration time.Duration) {
	m.CallsTotal.Inc()
	m.CallDuration.Observe(duration.Seconds())
}

// RecordLoginAttempt 记录登录尝试，result 取 success/wrong_pin/no_pin/too_many_attempts
func (m *Metrics) RecordLoginAttempt(result string) {
	m.LoginAttempts.WithLabelValues(result).Inc()
}

// RecordPinUpdate 记录 PIN 修改
func (m *Metrics) RecordPinUpdate() {
	m.PinUpdates.Inc()
}

// RecordShareCodeIssued 记录分享码签发
func (m *Metrics) RecordShareCodeIssued() {
	m.ShareCodesIssued.Inc()
}

// RecordGuestSession 记录访客会话，outcome 取 granted/rejected/abandoned
func (m *Metrics) RecordGuestSession(outcome string) {
	m.GuestSessions.WithLabelValues(outcome).Inc()
}

// RecordSandboxReset 记录沙箱重置
func (m *Metrics) RecordSandboxReset() {
	m.SandboxResets.Inc()
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// HTTPHandler 返回 Prometheus 抓取端点的 HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
