package domain

// Prompt 是电话端播放的语音文件标识。
//
// 标识与 Asterisk 声音库中的文件路径一一对应，核心逻辑只引用标识，
// 播放本身由电话适配层完成。
type Prompt string

const (
	PromptMailbox            Prompt = "dd/mailbox"
	PromptNoMailboxEntered   Prompt = "dd/no_mailbox_entered"
	PromptResetSandbox       Prompt = "dd/reset_sandbox"
	PromptEnterGuestID       Prompt = "dd/enter_guest_id"
	PromptValidGuestID       Prompt = "dd/valid_guest_id"
	PromptInvalidGuest       Prompt = "dd/invalid_guest"
	PromptMainMenu           Prompt = "dd/main_auth"
	PromptMainMenuLoggedIn   Prompt = "dd/main_auth_logged_in"
	PromptNotAuthenticated   Prompt = "dd/not_authenticated"
	PromptGuestNotAuthed     Prompt = "dd/guest_not_authenticated"
	PromptGuestID            Prompt = "dd/guest_id"
	PromptGuestAlreadyExists Prompt = "dd/guest_already_exists"
	PromptVoicemail          Prompt = "dd/voicemail"
	PromptMessageOne         Prompt = "dd/message_1"
	PromptEndOfMessage       Prompt = "dd/end_of_message"
	PromptNoVoicemail        Prompt = "dd/no_voicemail"
	PromptEnterPin           Prompt = "dd/enter_pin"
	PromptEnterNewPin        Prompt = "dd/enter_new_pin"
	PromptNewPinValue        Prompt = "dd/new_pin_value"
	PromptProcessing         Prompt = "dd/processing"
	PromptInvalidPin         Prompt = "dd/invalid_pin"
	PromptLoggedIn           Prompt = "dd/logged_in"
	PromptInvalidState       Prompt = "dd/invalid_state"
	PromptUpdateLoginFirst   Prompt = "dd/update_login_first"
	PromptShouldLogout       Prompt = "dd/should_logout"
	PromptTooManyAttempts    Prompt = "dd/too_many_attempts"
	PromptSilence            Prompt = "silence/3"
	PromptGoodbye            Prompt = "goodbye"
)
