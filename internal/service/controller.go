package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"voicebox/backend/internal/config"
	"voicebox/backend/internal/domain"
	"voicebox/backend/internal/monitoring"
	"voicebox/backend/internal/sharecode"
	"voicebox/backend/internal/storage"
	"voicebox/backend/internal/telephony"
)

// 交互级错误。
var (
	// ErrInvalidStateTransition 菜单选项在非法状态下被触发，本通呼叫终止。
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrTooManyAttempts PIN 输入重试次数超限。
	ErrTooManyAttempts = errors.New("too many PIN attempts")
)

// 入口采集信箱号的位数：1 位沙箱号 + 2 位信箱号。
const entryDigits = 3

// Controller 来电总控制器。
//
// 负责入口信箱号采集与路由：信箱 0 重置沙箱，信箱 99 进入访客流程，
// 其余信箱进入认证菜单循环。状态机本身由 callSession 驱动。
type Controller struct {
	creds   *storage.Credentials
	codec   *sharecode.Codec
	cfg     *config.Config
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewController 创建来电控制器。
func NewController(creds *storage.Credentials, codec *sharecode.Codec, cfg *config.Config, metrics *monitoring.Metrics, log *zap.Logger) *Controller {
	return &Controller{
		creds:   creds,
		codec:   codec,
		cfg:     cfg,
		metrics: metrics,
		log:     log,
	}
}

// HandleCall 处理一通来电的完整生命周期。
func (c *Controller) HandleCall(ctx context.Context, phone telephony.Driver) error {
	start := time.Now()
	defer func() {
		c.metrics.RecordCall(time.Since(start))
	}()

	digits, err := c.collectEntry(ctx, phone)
	if err != nil {
		return err
	}

	sandbox, mailbox, ok := parseEntry(digits)
	if !ok {
		c.log.Info("no usable mailbox entered", zap.String("digits", digits))
		return playAll(ctx, phone, domain.PromptNoMailboxEntered, domain.PromptGoodbye)
	}

	log := c.log.With(zap.Int("sandbox", sandbox), zap.Int("mailbox", mailbox))

	switch mailbox {
	case domain.ResetMailbox:
		return c.handleReset(ctx, phone, sandbox, log)
	case domain.GuestMailbox:
		return c.handleGuest(ctx, phone, sandbox, log)
	default:
		return c.handleOwner(ctx, phone, sandbox, mailbox, log)
	}
}

// collectEntry 采集入口按键，首次超时后用静音提示延长等待再试一次。
func (c *Controller) collectEntry(ctx context.Context, phone telephony.Driver) (string, error) {
	digits, err := phone.CollectDigits(ctx, domain.PromptMailbox, c.cfg.Telephony.DigitTimeout, entryDigits)
	if err != nil {
		return "", err
	}
	if digits == "" {
		digits, err = phone.CollectDigits(ctx, domain.PromptSilence, c.cfg.Telephony.RetryTimeout, entryDigits)
		if err != nil {
			return "", err
		}
	}
	return digits, nil
}

// parseEntry 把入口按键拆为沙箱号和信箱号。
//
// 第一位是沙箱号，其余位拼成信箱号；少于两位或含非数字字符
// 视为未输入信箱号。
func parseEntry(digits string) (sandbox, mailbox int, ok bool) {
	if len(digits) < 2 {
		return 0, 0, false
	}
	sandbox, err := strconv.Atoi(digits[:1])
	if err != nil {
		return 0, 0, false
	}
	mailbox, err = strconv.Atoi(digits[1:])
	if err != nil {
		return 0, 0, false
	}
	return sandbox, mailbox, true
}

// handleReset 清空沙箱并重新播种演示信箱，然后结束呼叫。
func (c *Controller) handleReset(ctx context.Context, phone telephony.Driver, sandbox int, log *zap.Logger) error {
	if err := c.ResetSandbox(ctx, sandbox); err != nil {
		log.Error("sandbox reset failed", zap.Error(err))
		c.metrics.RecordError("store", "reset")
		return err
	}
	log.Info("sandbox reset")

	if err := phone.Play(ctx, domain.PromptResetSandbox); err != nil {
		return err
	}
	if err := phone.SayDigits(ctx, strconv.Itoa(sandbox)); err != nil {
		return err
	}
	return phone.Play(ctx, domain.PromptGoodbye)
}

// ResetSandbox 清空沙箱下全部键并按配置播种演示 PIN。
//
// 管理 HTTP 接口复用该方法，与电话端的信箱 0 路径行为一致。
func (c *Controller) ResetSandbox(ctx context.Context, sandbox int) error {
	if err := c.creds.WipeSandbox(ctx, sandbox); err != nil {
		return err
	}
	for _, mailbox := range c.cfg.Sandbox.SeedMailboxes() {
		if err := c.creds.WritePIN(ctx, sandbox, mailbox, c.cfg.Sandbox.SeedPins[mailbox]); err != nil {
			return err
		}
	}
	c.metrics.RecordSandboxReset()
	return nil
}

// handleOwner 进入信箱认证菜单循环。
//
// 入口处无条件把状态重置为已登出并清除访客签发标记，
// 使每通呼叫都从干净状态开始。
func (c *Controller) handleOwner(ctx context.Context, phone telephony.Driver, sandbox, mailbox int, log *zap.Logger) error {
	if err := c.creds.WriteState(ctx, sandbox, mailbox, domain.StateLoggedOut); err != nil {
		return err
	}
	if err := c.creds.ClearVisitor(ctx, sandbox, mailbox); err != nil {
		return err
	}

	session := &callSession{
		ctrl:    c,
		phone:   phone,
		sandbox: sandbox,
		mailbox: mailbox,
		log:     log,
	}
	return session.run(ctx)
}

// hasContent 判断信箱是否持有演示语音留言。
func (c *Controller) hasContent(mailbox int) bool {
	return mailbox == c.cfg.Sandbox.ContentMailbox
}

// playContent 播放信箱内容或"无留言"提示。
func (c *Controller) playContent(ctx context.Context, phone telephony.Driver, mailbox int) error {
	if c.hasContent(mailbox) {
		return playAll(ctx, phone,
			domain.PromptVoicemail,
			domain.PromptMessageOne,
			domain.PromptEndOfMessage,
		)
	}
	return phone.Play(ctx, domain.PromptNoVoicemail)
}

// playAll 按顺序播放一组提示音，任一失败立即返回。
func playAll(ctx context.Context, phone telephony.Driver, prompts ...domain.Prompt) error {
	for _, prompt := range prompts {
		if err := phone.Play(ctx, prompt); err != nil {
			return err
		}
	}
	return nil
}
