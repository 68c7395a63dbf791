package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"voicebox/backend/internal/domain"
	"voicebox/backend/internal/storage"
	"voicebox/backend/internal/telephony"
)

// handleGuest 访客分享码兑换流程，单次有效，不进入菜单循环。
//
// 码解码失败、目标信箱不存在、目标信箱未登录对来电者一律表现为
// 同一条"无效访客码"提示，不泄露哪个信箱存在或是否在线。
func (c *Controller) handleGuest(ctx context.Context, phone telephony.Driver, sandbox int, log *zap.Logger) error {
	code, err := c.collectGuestCode(ctx, phone)
	if err != nil {
		return err
	}
	if code == "" {
		// 两次都超时，礼貌收线，不提示任何错误
		log.Info("guest session abandoned")
		c.metrics.RecordGuestSession("abandoned")
		return phone.Play(ctx, domain.PromptGoodbye)
	}

	target, reason, err := c.resolveGuestCode(ctx, sandbox, code)
	if err != nil {
		return err
	}
	if target < 0 {
		log.Info("guest access rejected", zap.String("reason", reason))
		c.metrics.RecordGuestSession("rejected")
		return playAll(ctx, phone, domain.PromptInvalidGuest, domain.PromptGoodbye)
	}

	log.Info("guest access granted", zap.Int("target", target))
	c.metrics.RecordGuestSession("granted")
	if err := phone.Play(ctx, domain.PromptValidGuestID); err != nil {
		return err
	}
	if err := c.playContent(ctx, phone, target); err != nil {
		return err
	}
	return phone.Play(ctx, domain.PromptGoodbye)
}

// collectGuestCode 采集 6 位分享码，首次超时后用静音延长等待再试一次。
func (c *Controller) collectGuestCode(ctx context.Context, phone telephony.Driver) (string, error) {
	timeout := c.cfg.Telephony.GuestTimeout
	code, err := phone.CollectDigits(ctx, domain.PromptEnterGuestID, timeout, domain.ShareCodeLength)
	if err != nil {
		return "", err
	}
	if code == "" {
		code, err = phone.CollectDigits(ctx, domain.PromptSilence, timeout, domain.ShareCodeLength)
		if err != nil {
			return "", err
		}
	}
	return code, nil
}

// resolveGuestCode 解码分享码并校验目标信箱处于已认证状态。
//
// 拒绝时返回负的目标号和仅用于日志的原因标签，具体原因绝不反馈给
// 来电者。存储传输故障原样上抛，由上层按致命错误处理。
func (c *Controller) resolveGuestCode(ctx context.Context, sandbox int, code string) (int, string, error) {
	target, err := c.codec.Decode(code)
	if err != nil {
		return -1, "malformed_code", nil
	}

	state, err := c.creds.ReadState(ctx, sandbox, target)
	if errors.Is(err, storage.ErrNotFound) {
		return -1, "unknown_mailbox", nil
	}
	if err != nil {
		return -1, "", err
	}
	if !state.Authenticated() {
		return -1, "not_authenticated", nil
	}
	return target, "", nil
}
