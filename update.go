package tgcore

import "encoding/json"

// UpdateKindTag discriminates Update.Kind. Go has no tagged-union sugar, so
// this mirrors teloxide's `UpdateKind` enum as a string-tagged struct: see
// Update's doc comment for why Error is special.
type UpdateKindTag string

const (
	UpdateKindMessage            UpdateKindTag = "message"
	UpdateKindEditedMessage      UpdateKindTag = "edited_message"
	UpdateKindChannelPost        UpdateKindTag = "channel_post"
	UpdateKindEditedChannelPost  UpdateKindTag = "edited_channel_post"
	UpdateKindCallbackQuery      UpdateKindTag = "callback_query"
	UpdateKindInlineQuery        UpdateKindTag = "inline_query"
	UpdateKindMyChatMember       UpdateKindTag = "my_chat_member"
	UpdateKindChatMember         UpdateKindTag = "chat_member"
	UpdateKindPoll               UpdateKindTag = "poll"
	UpdateKindPollAnswer         UpdateKindTag = "poll_answer"
	// UpdateKindError is not a real Telegram update kind. It is synthesized
	// when an update's payload fails to parse against any known kind, so the
	// id is never lost — see net.go's decodeUpdates.
	UpdateKindError UpdateKindTag = "error"
)

// Message is the minimal subset of Telegram's Message object this module
// needs to extract a ChatIDHash for dispatch and throttling. Full payload
// DTO generation for every Bot API field is out of scope.
type Message struct {
	MessageID int64 `json:"message_id"`
	Date      int64 `json:"date"`
	Chat      Chat  `json:"chat"`
}

// Chat is the minimal subset of Telegram's Chat object.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	SlowMode int    `json:"slow_mode_delay,omitempty"`
}

// IsChannelOrSupergroup reports whether the chat type string denotes a
// channel or supergroup, matching the distinction ChatIDHash tracks.
func (c Chat) IsChannelOrSupergroup() bool {
	return c.Type == "channel" || c.Type == "supergroup"
}

// ChatIDHash builds a ChatIDHash for this chat, tagging channels and
// supergroups so they get the wider per-minute throttle budget.
func (c Chat) ChatIDHash() ChatIDHash {
	if c.IsChannelOrSupergroup() {
		return SupergroupChatID(c.ID)
	}
	return ChatID(c.ID)
}

// CallbackQuery is the minimal subset needed to extract a chat identity.
type CallbackQuery struct {
	ID      string   `json:"id"`
	Message *Message `json:"message,omitempty"`
}

// Update is a single item from getUpdates, or an update that failed to
// parse. ID is always populated even when Kind.Tag == UpdateKindError, so a
// poller can still advance its offset past a malformed update instead of
// re-fetching it forever.
type Update struct {
	ID   int32
	Kind UpdateKind
}

// UpdateKind carries exactly the fields relevant to Kind.Tag. Unset fields
// are the zero value.
type UpdateKind struct {
	Tag UpdateKindTag

	Message       *Message
	EditedMessage *Message
	ChannelPost   *Message
	CallbackQuery *CallbackQuery

	// Raw and ParseError are set only when Tag == UpdateKindError: Raw is
	// the original update JSON (so the id and any caller-salvageable data
	// survive), ParseError is why parsing failed.
	Raw        json.RawMessage
	ParseError error
}

// ChatIDHash extracts the chat this update belongs to, for per-chat
// dispatch and throttling. Updates with no associated chat (inline
// queries, poll updates, error updates) return the zero value; callers
// should treat IsZero() chats as unordered with respect to any chat.
func (u Update) ChatIDHash() ChatIDHash {
	switch u.Kind.Tag {
	case UpdateKindMessage:
		if u.Kind.Message != nil {
			return u.Kind.Message.Chat.ChatIDHash()
		}
	case UpdateKindEditedMessage:
		if u.Kind.EditedMessage != nil {
			return u.Kind.EditedMessage.Chat.ChatIDHash()
		}
	case UpdateKindChannelPost:
		if u.Kind.ChannelPost != nil {
			return u.Kind.ChannelPost.Chat.ChatIDHash()
		}
	case UpdateKindCallbackQuery:
		if u.Kind.CallbackQuery != nil && u.Kind.CallbackQuery.Message != nil {
			return u.Kind.CallbackQuery.Message.Chat.ChatIDHash()
		}
	}
	return ChatIDHash{}
}

// wireUpdate is the raw shape getUpdates returns; parseUpdate decodes into
// this first so a per-field decode failure can be isolated to the offending
// update instead of failing the whole batch.
type wireUpdate struct {
	UpdateID           int32            `json:"update_id"`
	Message            *Message         `json:"message,omitempty"`
	EditedMessage      *Message         `json:"edited_message,omitempty"`
	ChannelPost        *Message         `json:"channel_post,omitempty"`
	EditedChannelPost  *Message         `json:"edited_channel_post,omitempty"`
	CallbackQuery      *CallbackQuery   `json:"callback_query,omitempty"`
}

func parseUpdate(raw json.RawMessage) (Update, error) {
	var w wireUpdate
	if err := json.Unmarshal(raw, &w); err != nil {
		return Update{}, err
	}

	u := Update{ID: w.UpdateID}
	switch {
	case w.Message != nil:
		u.Kind = UpdateKind{Tag: UpdateKindMessage, Message: w.Message}
	case w.EditedMessage != nil:
		u.Kind = UpdateKind{Tag: UpdateKindEditedMessage, EditedMessage: w.EditedMessage}
	case w.ChannelPost != nil:
		u.Kind = UpdateKind{Tag: UpdateKindChannelPost, ChannelPost: w.ChannelPost}
	case w.EditedChannelPost != nil:
		u.Kind = UpdateKind{Tag: UpdateKindEditedChannelPost, ChannelPost: w.EditedChannelPost}
	case w.CallbackQuery != nil:
		u.Kind = UpdateKind{Tag: UpdateKindCallbackQuery, CallbackQuery: w.CallbackQuery}
	default:
		u.Kind = UpdateKind{Tag: UpdateKindError, Raw: raw}
	}
	return u, nil
}

// errorUpdateFromRaw extracts only the update_id from a raw update payload
// that failed full parsing, so the caller can still advance its offset
// cursor past it. Mirrors net/request.rs's downcast-and-reparse hack for
// `Vec<Update>`.
func errorUpdateFromRaw(raw json.RawMessage, parseErr error) Update {
	var idOnly struct {
		UpdateID int32 `json:"update_id"`
	}
	// Best effort: if even update_id doesn't parse, ID stays 0 and the
	// caller's offset math will simply not advance past this one.
	_ = json.Unmarshal(raw, &idOnly)
	return Update{
		ID: idOnly.UpdateID,
		Kind: UpdateKind{
			Tag:        UpdateKindError,
			Raw:        raw,
			ParseError: parseErr,
		},
	}
}
