package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"voicebox/backend/internal/config"
	"voicebox/backend/internal/domain"
	"voicebox/backend/internal/monitoring"
	"voicebox/backend/internal/sharecode"
	"voicebox/backend/internal/storage"
	"voicebox/backend/internal/storage/memory"
	"voicebox/backend/internal/telephony"
)

// scriptedPhone 按脚本应答的假电话驱动，记录播放过的提示音。
type scriptedPhone struct {
	digits []string // CollectDigits 依次返回的应答，耗尽后视为超时
	menu   []string // PresentMenu 依次返回的应答，耗尽后视为挂断
	played []domain.Prompt
	said   []string
}

func (p *scriptedPhone) CollectDigits(_ context.Context, _ domain.Prompt, _ time.Duration, _ int) (string, error) {
	if len(p.digits) == 0 {
		return "", nil
	}
	next := p.digits[0]
	p.digits = p.digits[1:]
	return next, nil
}

func (p *scriptedPhone) PresentMenu(_ context.Context, _ domain.Prompt, _ string) (string, error) {
	if len(p.menu) == 0 {
		return "", telephony.ErrHangup
	}
	next := p.menu[0]
	p.menu = p.menu[1:]
	return next, nil
}

func (p *scriptedPhone) Play(_ context.Context, prompt domain.Prompt) error {
	p.played = append(p.played, prompt)
	return nil
}

func (p *scriptedPhone) SayDigits(_ context.Context, digits string) error {
	p.said = append(p.said, digits)
	return nil
}

func (p *scriptedPhone) playedContains(prompt domain.Prompt) bool {
	for _, got := range p.played {
		if got == prompt {
			return true
		}
	}
	return false
}

// newTestController 构建基于内存存储的控制器及其凭证适配器。
func newTestController(t *testing.T) (*Controller, *storage.Credentials) {
	t.Helper()

	cfg := &config.Config{
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
	}

	creds := storage.NewCredentials(memory.NewStore())
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	ctrl := NewController(creds, sharecode.New(), cfg, metrics, zap.NewNop())
	return ctrl, creds
}
