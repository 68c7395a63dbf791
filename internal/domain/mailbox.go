package domain

import "fmt"

// MailboxState 表示信箱认证交互所处的阶段。
//
// 状态值直接持久化在凭证存储中，每次转移都以"读取-计算-写回"的方式
// 经过存储层，进程内从不缓存。
type MailboxState int

const (
	// StateLoggedOut 已登出，空闲。
	StateLoggedOut MailboxState = 1
	// StateLoginPending 登录进行中，等待输入 PIN。
	StateLoginPending MailboxState = 2
	// StateAuthenticated 已通过认证。
	StateAuthenticated MailboxState = 3
	// StateLogoutPending 等待登出确认。
	StateLogoutPending MailboxState = 4
	// StateUpdatePinLoggedOut 未登录状态下请求改 PIN（非法路径，需引导登录）。
	StateUpdatePinLoggedOut MailboxState = 5
	// StateUnreachable 算术中点，合法转移永远不会产生。
	StateUnreachable MailboxState = 6
	// StateUpdatePinAuthenticated 已登录状态下请求改 PIN（合法路径）。
	StateUpdatePinAuthenticated MailboxState = 7
)

// String 返回状态的可读名称，用于日志输出。
func (s MailboxState) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateLoginPending:
		return "login_pending"
	case StateAuthenticated:
		return "authenticated"
	case StateLogoutPending:
		return "logout_pending"
	case StateUpdatePinLoggedOut:
		return "update_pin_logged_out"
	case StateUnreachable:
		return "unreachable"
	case StateUpdatePinAuthenticated:
		return "update_pin_authenticated"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Authenticated 判断该状态是否已通过认证。
func (s MailboxState) Authenticated() bool {
	return s >= StateAuthenticated
}

// MenuOption 表示主菜单中来电者按下的选项。
type MenuOption string

const (
	// OptionListen 收听语音留言。
	OptionListen MenuOption = "1"
	// OptionAuthToggle 登录/登出切换。
	OptionAuthToggle MenuOption = "2"
	// OptionGuestShare 生成访客分享码。
	OptionGuestShare MenuOption = "3"
	// OptionUpdatePin 修改 PIN。
	OptionUpdatePin MenuOption = "4"
)

// 特殊信箱号。
const (
	// ResetMailbox 输入该信箱号会清空整个沙箱并重新播种演示 PIN。
	ResetMailbox = 0
	// GuestMailbox 输入该信箱号进入访客分享码兑换流程。
	GuestMailbox = 99
)

// PinLength PIN 固定为 4 位十进制数字。
const PinLength = 4

// ShareCodeLength 访客分享码固定为 6 位十进制数字。
const ShareCodeLength = 6
