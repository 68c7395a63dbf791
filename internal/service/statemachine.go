package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"voicebox/backend/internal/domain"
	"voicebox/backend/internal/pinverify"
	"voicebox/backend/internal/storage"
	"voicebox/backend/internal/telephony"
)

// revertTimeout 挂断后回写状态的宽限时间。
const revertTimeout = 3 * time.Second

// callSession 驱动单个信箱的认证菜单状态机。
//
// 状态从不缓存在会话内：每次转移都通过凭证存储"读取-计算-写回"，
// 并发呼叫同一信箱时读写可能交错，本层不做串行化（见 DESIGN.md）。
type callSession struct {
	ctrl    *Controller
	phone   telephony.Driver
	sandbox int
	mailbox int
	log     *zap.Logger

	// followUp 下一轮优先执行的菜单选项队列。
	// 未登录时请求改 PIN 会在同一轮引导进入登录路径，
	// 这种"单步前瞻"通过入队实现，而不是顺序条件穿透。
	followUp []domain.MenuOption
}

// run 菜单主循环，直到来电者挂断或触发致命状态错误。
func (s *callSession) run(ctx context.Context) error {
	for {
		option, err := s.nextOption(ctx)
		if err != nil {
			return err
		}

		switch option {
		case domain.OptionListen:
			err = s.handleListen(ctx)
		case domain.OptionAuthToggle:
			err = s.handleAuthToggle(ctx)
		case domain.OptionGuestShare:
			err = s.handleGuestShare(ctx)
		case domain.OptionUpdatePin:
			err = s.handleUpdatePin(ctx)
		default:
			// 超时或无效按键，回到菜单重新提示
			continue
		}

		if errors.Is(err, ErrInvalidStateTransition) {
			s.log.Warn("call terminated on invalid state transition", zap.Error(err))
			if perr := s.phone.Play(ctx, domain.PromptGoodbye); perr != nil {
				return perr
			}
			return nil
		}
		if errors.Is(err, ErrTooManyAttempts) {
			s.log.Info("call terminated after too many PIN attempts")
			if perr := s.phone.Play(ctx, domain.PromptGoodbye); perr != nil {
				return perr
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// nextOption 取出下一个要执行的菜单选项。
//
// 优先消费前瞻队列；否则按当前认证状态播放对应主菜单并等待按键。
func (s *callSession) nextOption(ctx context.Context) (domain.MenuOption, error) {
	if len(s.followUp) > 0 {
		option := s.followUp[0]
		s.followUp = s.followUp[1:]
		return option, nil
	}

	state, err := s.ctrl.creds.ReadState(ctx, s.sandbox, s.mailbox)
	if err != nil {
		return "", err
	}

	prompt := domain.PromptMainMenu
	if state == domain.StateAuthenticated {
		prompt = domain.PromptMainMenuLoggedIn
	}

	digit, err := s.phone.PresentMenu(ctx, prompt, "0123456789*#")
	if err != nil {
		return "", err
	}
	return domain.MenuOption(digit), nil
}

// handleListen 选项 1：收听留言，要求处于已认证状态。
func (s *callSession) handleListen(ctx context.Context) error {
	state, err := s.ctrl.creds.ReadState(ctx, s.sandbox, s.mailbox)
	if err != nil {
		return err
	}
	if state != domain.StateAuthenticated {
		return s.phone.Play(ctx, domain.PromptNotAuthenticated)
	}
	return s.ctrl.playContent(ctx, s.phone, s.mailbox)
}

// handleAuthToggle 选项 2：登录/登出切换。
//
// 状态先 +1 写入存储再判断落点：2 进入登录，4 进入登出确认；
// 其余落点非法，回退 -1 后终止本通呼叫。
func (s *callSession) handleAuthToggle(ctx context.Context) error {
	next, err := s.ctrl.creds.ShiftState(ctx, s.sandbox, s.mailbox, +1)
	if err != nil {
		return err
	}

	switch next {
	case domain.StateLoginPending:
		return s.handleLogin(ctx)
	case domain.StateLogoutPending:
		return s.handleLogout(ctx)
	default:
		// 立即回退，非法中间值不得跨越任何可被挂断打断的播放点
		if _, rerr := s.shiftDetached(ctx, -1); rerr != nil {
			return rerr
		}
		if perr := s.playInvalidState(ctx, next); perr != nil {
			return perr
		}
		return fmt.Errorf("auth toggle reached state %s: %w", next, ErrInvalidStateTransition)
	}
}

// handleLogin 登录路径：采集 PIN、恒定时间比对、按结果升降状态。
func (s *callSession) handleLogin(ctx context.Context) error {
	entered, err := s.collectPin(ctx, domain.PromptEnterPin)
	if errors.Is(err, ErrTooManyAttempts) {
		s.ctrl.metrics.RecordLoginAttempt("too_many_attempts")
		if _, rerr := s.shiftDetached(ctx, -1); rerr != nil {
			return rerr
		}
		if perr := s.phone.Play(ctx, domain.PromptTooManyAttempts); perr != nil {
			return perr
		}
		return err
	}
	if err != nil {
		if _, rerr := s.shiftDetached(ctx, -1); rerr != nil {
			return rerr
		}
		return err
	}

	if err := s.phone.Play(ctx, domain.PromptProcessing); err != nil {
		if _, rerr := s.shiftDetached(ctx, -1); rerr != nil {
			return rerr
		}
		return err
	}

	stored, err := s.ctrl.creds.ReadPIN(ctx, s.sandbox, s.mailbox)
	if errors.Is(err, storage.ErrNotFound) {
		// 从未设置过 PIN 的信箱，与"PIN 错误"区分记录但对来电者不可区分
		s.log.Info("login attempt against mailbox with no PIN")
		s.ctrl.metrics.RecordLoginAttempt("no_pin")
		if perr := s.phone.Play(ctx, domain.PromptInvalidPin); perr != nil {
			if _, rerr := s.shiftDetached(ctx, -1); rerr != nil {
				return rerr
			}
			return perr
		}
		_, rerr := s.shiftDetached(ctx, -1)
		return rerr
	}
	if err != nil {
		if _, rerr := s.shiftDetached(ctx, -1); rerr != nil {
			return rerr
		}
		return err
	}

	if !pinverify.Verify(entered, stored) {
		s.ctrl.metrics.RecordLoginAttempt("wrong_pin")
		if perr := s.phone.Play(ctx, domain.PromptInvalidPin); perr != nil {
			if _, rerr := s.shiftDetached(ctx, -1); rerr != nil {
				return rerr
			}
			return perr
		}
		_, rerr := s.shiftDetached(ctx, -1)
		return rerr
	}

	s.log.Info("login succeeded")
	s.ctrl.metrics.RecordLoginAttempt("success")
	if perr := s.phone.Play(ctx, domain.PromptLoggedIn); perr != nil {
		// 播放被挂断不影响认证结果，仍然推进到已认证
		if _, serr := s.shiftDetached(ctx, +1); serr != nil {
			return serr
		}
		return perr
	}
	_, err = s.ctrl.creds.ShiftState(ctx, s.sandbox, s.mailbox, +1)
	return err
}

// handleLogout 登出确认路径：按 1 确认登出回到已登出，其余按键留在已认证。
func (s *callSession) handleLogout(ctx context.Context) error {
	decision, err := s.phone.PresentMenu(ctx, domain.PromptShouldLogout, "12")
	if err != nil {
		if _, rerr := s.shiftDetached(ctx, -1); rerr != nil {
			return rerr
		}
		return err
	}

	delta := -1 // 留在已认证
	if decision == "1" {
		delta = -3 // 确认登出
		s.log.Info("logged out")
	}
	_, err = s.ctrl.creds.ShiftState(ctx, s.sandbox, s.mailbox, delta)
	return err
}

// handleGuestShare 选项 3：签发访客分享码，每个会话至多一个。
func (s *callSession) handleGuestShare(ctx context.Context) error {
	state, err := s.ctrl.creds.ReadState(ctx, s.sandbox, s.mailbox)
	if err != nil {
		return err
	}
	if !state.Authenticated() {
		return s.phone.Play(ctx, domain.PromptGuestNotAuthed)
	}

	issued, err := s.ctrl.creds.HasVisitor(ctx, s.sandbox, s.mailbox)
	if err != nil {
		return err
	}
	if issued {
		return s.phone.Play(ctx, domain.PromptGuestAlreadyExists)
	}

	code, err := s.ctrl.codec.Generate(s.mailbox)
	if err != nil {
		return err
	}

	if err := s.phone.Play(ctx, domain.PromptGuestID); err != nil {
		return err
	}
	if err := s.phone.SayDigits(ctx, code); err != nil {
		return err
	}

	if err := s.ctrl.creds.SetVisitor(ctx, s.sandbox, s.mailbox); err != nil {
		return err
	}
	s.log.Info("guest share code issued")
	s.ctrl.metrics.RecordShareCodeIssued()
	return nil
}

// handleUpdatePin 选项 4：修改 PIN。
//
// 落点先于持久化校验：状态 +4 只可能合法落在 5（未登录，引导先登录）
// 或 7（已登录，采集新 PIN），其余落点直接拒绝且不写入存储，
// 保证 6、8 这类非法值永远不会落盘。
func (s *callSession) handleUpdatePin(ctx context.Context) error {
	current, err := s.ctrl.creds.ReadState(ctx, s.sandbox, s.mailbox)
	if err != nil {
		return err
	}
	tentative := current + 4

	switch tentative {
	case domain.StateUpdatePinLoggedOut:
		return s.redirectToLogin(ctx)
	case domain.StateUpdatePinAuthenticated:
		return s.updatePin(ctx)
	default:
		if perr := s.playInvalidState(ctx, tentative); perr != nil {
			return perr
		}
		return fmt.Errorf("update pin from state %s: %w", current, ErrInvalidStateTransition)
	}
}

// redirectToLogin 未登录状态下请求改 PIN：状态经 +4/-4 一对写回原值，
// 播放引导提示后把登录选项入队，在同一轮内执行。
func (s *callSession) redirectToLogin(ctx context.Context) error {
	if _, err := s.ctrl.creds.ShiftState(ctx, s.sandbox, s.mailbox, +4); err != nil {
		return err
	}
	// 在任何播放点之前回退，挂断不会让 5 残留在存储中
	if _, err := s.shiftDetached(ctx, -4); err != nil {
		return err
	}

	if err := s.phone.Play(ctx, domain.PromptUpdateLoginFirst); err != nil {
		return err
	}
	s.followUp = append(s.followUp, domain.OptionAuthToggle)
	return nil
}

// updatePin 已登录状态下采集并持久化新 PIN，完成后回到已认证。
func (s *callSession) updatePin(ctx context.Context) error {
	if _, err := s.ctrl.creds.ShiftState(ctx, s.sandbox, s.mailbox, +4); err != nil {
		return err
	}

	// 无论采集成功与否都回退 -4，挂断也不会让 7 残留
	err := s.collectAndStorePin(ctx)
	if _, rerr := s.shiftDetached(ctx, -4); rerr != nil {
		return rerr
	}
	return err
}

func (s *callSession) collectAndStorePin(ctx context.Context) error {
	pin, err := s.collectPin(ctx, domain.PromptEnterNewPin)
	if errors.Is(err, ErrTooManyAttempts) {
		if perr := s.phone.Play(ctx, domain.PromptTooManyAttempts); perr != nil {
			return perr
		}
		return err
	}
	if err != nil {
		return err
	}

	if err := s.ctrl.creds.WritePIN(ctx, s.sandbox, s.mailbox, pin); err != nil {
		return err
	}
	s.log.Info("PIN updated")
	s.ctrl.metrics.RecordPinUpdate()

	if err := s.phone.Play(ctx, domain.PromptNewPinValue); err != nil {
		return err
	}
	return s.phone.SayDigits(ctx, pin)
}

// collectPin 采集恰好 4 位 PIN。
//
// 每轮先播放提示采集，超时后用静音延长等待再采一次；
// 不足 4 位算一次失败，超过最大重试次数返回 ErrTooManyAttempts。
func (s *callSession) collectPin(ctx context.Context, prompt domain.Prompt) (string, error) {
	timeout := s.ctrl.cfg.Telephony.PinTimeout
	for attempt := 0; attempt < s.ctrl.cfg.Telephony.MaxPinAttempts; attempt++ {
		pin, err := s.phone.CollectDigits(ctx, prompt, timeout, domain.PinLength)
		if err != nil {
			return "", err
		}
		if pin == "" {
			pin, err = s.phone.CollectDigits(ctx, domain.PromptSilence, timeout, domain.PinLength)
			if err != nil {
				return "", err
			}
		}
		if len(pin) == domain.PinLength {
			return pin, nil
		}
	}
	return "", ErrTooManyAttempts
}

// playInvalidState 播报非法状态值。
func (s *callSession) playInvalidState(ctx context.Context, state domain.MailboxState) error {
	if err := s.phone.Play(ctx, domain.PromptInvalidState); err != nil {
		return err
	}
	return s.phone.SayDigits(ctx, strconv.Itoa(int(state)))
}

// shiftDetached 回写状态修正量。
//
// 来电者挂断后 ctx 可能已取消，但存储独立于电话通道仍然可用，
// 因此用不继承取消信号的上下文完成回写，保证中间状态不残留。
func (s *callSession) shiftDetached(ctx context.Context, delta int) (domain.MailboxState, error) {
	revertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revertTimeout)
	defer cancel()
	return s.ctrl.creds.ShiftState(revertCtx, s.sandbox, s.mailbox, delta)
}
