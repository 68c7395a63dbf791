package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"voicebox/backend/internal/storage"
)

// AlertLevel 告警级别
type AlertLevel string

const (
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// AlertRule 告警规则：Check 返回非空消息即触发，Cooldown 内不重复告警。
type AlertRule struct {
	ID        string
	Component string
	Level     AlertLevel
	Cooldown  time.Duration
	Check     func() string
}

// AlertWatcher 周期性巡检告警规则，异常时输出告警日志并计入错误指标。
type AlertWatcher struct {
	rules   []AlertRule
	logger  *zap.Logger
	metrics *Metrics

	mu        sync.Mutex
	lastFired map[string]time.Time
}

// NewAlertWatcher 创建告警巡检器
func NewAlertWatcher(logger *zap.Logger, metrics *Metrics, rules ...AlertRule) *AlertWatcher {
	return &AlertWatcher{
		rules:     rules,
		logger:    logger,
		metrics:   metrics,
		lastFired: make(map[string]time.Time),
	}
}

// Run 按固定间隔巡检，直到上下文取消。
func (w *AlertWatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.CheckOnce()
		}
	}
}

// CheckOnce 对所有规则执行一轮检查。
func (w *AlertWatcher) CheckOnce() {
	now := time.Now()

	for _, rule := range w.rules {
		message := rule.Check()
		if message == "" {
			continue
		}

		w.mu.Lock()
		if last, ok := w.lastFired[rule.ID]; ok && now.Sub(last) < rule.Cooldown {
			w.mu.Unlock()
			continue
		}
		w.lastFired[rule.ID] = now
		w.mu.Unlock()

		w.fire(rule, message)
	}
}

func (w *AlertWatcher) fire(rule AlertRule, message string) {
	fields := []zap.Field{
		zap.String("alert_id", rule.ID),
		zap.String("component", rule.Component),
		zap.String("message", message),
	}

	switch rule.Level {
	case AlertLevelCritical:
		w.logger.Error("alert triggered", fields...)
	default:
		w.logger.Warn("alert triggered", fields...)
	}

	if w.metrics != nil {
		w.metrics.RecordError("alert_"+rule.ID, rule.Component)
	}
}

// StorageHealthRule 凭证存储连通性告警
func StorageHealthRule(kv storage.KV) AlertRule {
	return AlertRule{
		ID:        "storage_unreachable",
		Component: "storage",
		Level:     AlertLevelCritical,
		Cooldown:  time.Minute,
		Check: func() string {
			if err := kv.Health(); err != nil {
				return fmt.Sprintf("credential store unreachable: %v", err)
			}
			return ""
		},
	}
}

// GoroutineCountRule 协程数量告警
func GoroutineCountRule(limit int) AlertRule {
	return AlertRule{
		ID:        "goroutine_count",
		Component: "runtime",
		Level:     AlertLevelWarning,
		Cooldown:  5 * time.Minute,
		Check: func() string {
			if n := runtime.NumGoroutine(); n > limit {
				return fmt.Sprintf("goroutine count %d exceeds %d", n, limit)
			}
			return ""
		},
	}
}

// MemoryUsageRule 堆内存占用告警
func MemoryUsageRule(thresholdMB float64) AlertRule {
	return AlertRule{
		ID:        "memory_usage",
		Component: "runtime",
		Level:     AlertLevelWarning,
		Cooldown:  5 * time.Minute,
		Check: func() string {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			usedMB := float64(m.Alloc) / 1024 / 1024
			if usedMB > thresholdMB {
				return fmt.Sprintf("heap usage %.1f MB exceeds %.1f MB", usedMB, thresholdMB)
			}
			return ""
		},
	}
}
