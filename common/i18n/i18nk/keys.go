package i18nk

type Key string

const (
	ErrUnexpected    Key = "error.unexpected"
	ErrNotFound      Key = "error.not_found"
	ErrAlreadyExists Key = "error.already_exists"
	ErrOrphan        Key = "error.orphan"
	ErrTransient     Key = "error.transient"
	ErrFatal         Key = "error.fatal"
	ErrQuotaJobs     Key = "error.quota.jobs"

	ErrChatNotFound    Key = "error.platform.chat_not_found"
	ErrBotBlocked      Key = "error.platform.blocked"
	ErrNotEnoughRights Key = "error.platform.not_enough_rights"
	ErrMessageTooLong  Key = "error.platform.message_too_long"
	ErrFloodControl    Key = "error.platform.flood_control"
	ErrNetwork         Key = "error.platform.network"

	ValidationChatIDFormat     Key = "validation.chat_id.format"
	ValidationChatIDRange      Key = "validation.chat_id.range"
	ValidationSameChat         Key = "validation.chat_id.same"
	ValidationJobNameLength    Key = "validation.job_name.length"
	ValidationJobNameChars     Key = "validation.job_name.chars"
	ValidationJobNameReserved  Key = "validation.job_name.reserved"
	ValidationJobKind          Key = "validation.job_kind"
	ValidationAPIID            Key = "validation.api_id"
	ValidationAPIHash          Key = "validation.api_hash"
	ValidationPhone            Key = "validation.phone"
	ValidationWordLength       Key = "validation.word.length"
	ValidationWordSpecial      Key = "validation.word.special"
	ValidationWordDuplicate    Key = "validation.word.duplicate"
	ValidationDelay            Key = "validation.delay"
	ValidationReplacementOld   Key = "validation.replacement.old"
	ValidationReplacementNew   Key = "validation.replacement.new"
	ValidationReplacementRegex Key = "validation.replacement.regex"
	ValidationWordsOverlap     Key = "validation.settings.overlap"
	ValidationBlockedLimit     Key = "validation.settings.blocked_limit"
	ValidationRequiredLimit    Key = "validation.settings.required_limit"
	ValidationMediaKind        Key = "validation.settings.media_kind"
	ValidationButton           Key = "validation.settings.button"
	ValidationSettingKey       Key = "validation.tenant_settings.key"
	ValidationSettingValue     Key = "validation.tenant_settings.value"

	SessionAskAPIID           Key = "session.ask_api_id"
	SessionAskAPIHash         Key = "session.ask_api_hash"
	SessionAskPhone           Key = "session.ask_phone"
	SessionCodeSent           Key = "session.code_sent"
	SessionCodeInvalid        Key = "session.code_invalid"
	SessionAskPassword        Key = "session.ask_password"
	SessionPasswordInvalid    Key = "session.password_invalid"
	SessionConnected          Key = "session.connected"
	SessionDisconnected       Key = "session.disconnected"
	SessionTimeout            Key = "session.timeout"
	SessionFloodWait          Key = "session.flood_wait"
	SessionCredentialsInvalid Key = "session.credentials_invalid"
	SessionAlreadyConnected   Key = "session.already_connected"

	NotifyEmissionFailed Key = "notify.emission_failed"
	NotifyBackupCreated  Key = "notify.backup_created"
	BackupSummary        Key = "backup.summary"

	BotMsgCmdStart        Key = "bot.cmd.start"
	BotMsgCmdSession      Key = "bot.cmd.session"
	BotMsgCmdLogout       Key = "bot.cmd.logout"
	BotMsgCmdCancel       Key = "bot.cmd.cancel"
	BotMsgStart           Key = "bot.msg.start"
	BotMsgCancelled       Key = "bot.msg.cancelled"
	BotMsgNothingToCancel Key = "bot.msg.nothing_to_cancel"
	BotMsgNoSession       Key = "bot.msg.no_session"
	BotMsgBanned          Key = "bot.msg.banned"
)
