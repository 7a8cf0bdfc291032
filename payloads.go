package tgcore

// SendMessage sends a text message to a chat.
type SendMessage struct {
	ChatID                ChatIDHash `json:"chat_id"`
	Text                  string     `json:"text"`
	ParseMode             string     `json:"parse_mode,omitempty"`
	DisableNotification   bool       `json:"disable_notification,omitempty"`
	ReplyToMessageID      int64      `json:"reply_to_message_id,omitempty"`
}

func (SendMessage) MethodName() string { return "sendMessage" }

// SendPhoto sends a photo, either by URL/file_id or as a fresh upload via
// Photo's FileBytes/FileReader variant.
type SendPhoto struct {
	ChatID  ChatIDHash `json:"chat_id"`
	Photo   InputFile  `json:"photo"`
	Caption string     `json:"caption,omitempty"`
}

func (SendPhoto) MethodName() string { return "sendPhoto" }

// EditMessageText edits the text of a message previously sent by the bot,
// addressed by chat id + message id.
type EditMessageText struct {
	ChatID    ChatIDHash `json:"chat_id"`
	MessageID int64      `json:"message_id"`
	Text      string     `json:"text"`
	ParseMode string     `json:"parse_mode,omitempty"`
}

func (EditMessageText) MethodName() string { return "editMessageText" }

// EditMessageTextInline edits the text of a message sent via an inline
// query result, addressed by InlineMessageID instead of chat+message id.
// Its MethodName carries the "Inline" suffix net.go strips before the
// wire call: both variants hit Telegram's single `editMessageText`
// endpoint, distinguished only by which id fields are populated.
type EditMessageTextInline struct {
	InlineMessageID string `json:"inline_message_id"`
	Text            string `json:"text"`
	ParseMode       string `json:"parse_mode,omitempty"`
}

func (EditMessageTextInline) MethodName() string { return "editMessageTextInline" }

// EditMessageMedia replaces the media of a message. Media's "media" field
// may hold an InputFile needing upload, which the multipart field-name
// special-case preserves under the same "media" key as an attach:// token.
type EditMessageMedia struct {
	ChatID    ChatIDHash `json:"chat_id"`
	MessageID int64      `json:"message_id"`
	Media     InputFile  `json:"media"`
}

func (EditMessageMedia) MethodName() string { return "editMessageMedia" }

// GetChat fetches a chat's metadata, used by the throttle worker to
// resolve slow-mode delay when attributing a freeze.
type GetChat struct {
	ChatID ChatIDHash `json:"chat_id"`
}

func (GetChat) MethodName() string { return "getChat" }

// GetUpdates long-polls for new updates starting at Offset.
type GetUpdates struct {
	Offset         int32    `json:"offset,omitempty"`
	Limit          int32    `json:"limit,omitempty"`
	Timeout        int32    `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

func (GetUpdates) MethodName() string { return "getUpdates" }

// GetMe fetches the bot's own user record.
type GetMe struct{}

func (GetMe) MethodName() string { return "getMe" }

// DeleteWebhook removes any configured webhook, required before getUpdates
// can succeed on a bot that previously had one set.
type DeleteWebhook struct {
	DropPendingUpdates bool `json:"drop_pending_updates,omitempty"`
}

func (DeleteWebhook) MethodName() string { return "deleteWebhook" }

// GetWebhookInfo reports whether a webhook is currently configured.
type GetWebhookInfo struct{}

func (GetWebhookInfo) MethodName() string { return "getWebhookInfo" }

// WebhookInfo is GetWebhookInfo's result shape, trimmed to the field the
// poller's delete_webhook_if_setup pre-flight needs.
type WebhookInfo struct {
	URL string `json:"url"`
}

// User is GetMe's result shape.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// SendMessage, SendPhoto and EditMessageText all decode their `result`
// field into Message (defined in update.go); GetChat decodes into Chat.
