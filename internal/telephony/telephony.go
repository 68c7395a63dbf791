package telephony

import (
	"context"
	"errors"
	"time"

	"voicebox/backend/internal/domain"
)

var (
	// ErrHangup 来电者已挂断，当前交互应立即终止
	ErrHangup = errors.New("caller hung up")
)

// Driver 电话通道适配器契约，核心逻辑只通过它与呼叫交互。
//
// 所有操作对状态机而言都是同步阻塞的。数字采集带调用方指定的超时，
// 超时按空输入返回而不是无限等待；挂断统一以 ErrHangup 上抛，
// 在任何状态写入边界上中断都是安全的。
type Driver interface {
	// CollectDigits 播放提示音并采集至多 maxDigits 位按键，超时返回空串。
	CollectDigits(ctx context.Context, prompt domain.Prompt, timeout time.Duration, maxDigits int) (string, error)
	// PresentMenu 播放菜单音并等待单个按键，escapeDigits 列出可接受的按键。
	PresentMenu(ctx context.Context, prompt domain.Prompt, escapeDigits string) (string, error)
	// Play 播放一段提示音，逻辑不消费任何返回内容。
	Play(ctx context.Context, prompt domain.Prompt) error
	// SayDigits 逐位朗读一串数字。
	SayDigits(ctx context.Context, digits string) error
}
