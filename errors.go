package tgcore

import (
	"encoding/json"
	"fmt"

	"github.com/basket/tgcore/internal/shared"
)

// ApiError is a known, structured Telegram error classified from the
// `description` field of a failed response. The table is grounded on
// teloxide-core's ApiError enum; Go has no serde-style field_identifier
// attribute, so classification is a plain map lookup in classifyAPIError
// below.
type ApiError string

// The enumerated set of Telegram error descriptions teloxide-core knows
// about. ApiErrorUnknown carries the raw description text it didn't
// recognise, mirroring the open `Unknown(String)` variant.
const (
	ApiErrorBotBlocked                       ApiError = "bot_blocked"
	ApiErrorMessageNotModified                ApiError = "message_not_modified"
	ApiErrorMessageIDInvalid                  ApiError = "message_id_invalid"
	ApiErrorMessageToForwardNotFound           ApiError = "message_to_forward_not_found"
	ApiErrorMessageToDeleteNotFound            ApiError = "message_to_delete_not_found"
	ApiErrorMessageTextIsEmpty                 ApiError = "message_text_is_empty"
	ApiErrorMessageCantBeEdited                ApiError = "message_cant_be_edited"
	ApiErrorMessageCantBeDeleted               ApiError = "message_cant_be_deleted"
	ApiErrorMessageToEditNotFound               ApiError = "message_to_edit_not_found"
	ApiErrorMessageToReplyNotFound              ApiError = "message_to_reply_not_found"
	ApiErrorMessageIdentifierNotSpecified       ApiError = "message_identifier_not_specified"
	ApiErrorMessageIsTooLong                    ApiError = "message_is_too_long"
	ApiErrorTooMuchMessages                     ApiError = "too_much_messages"
	ApiErrorPollHasAlreadyClosed                ApiError = "poll_has_already_closed"
	ApiErrorPollMustHaveMoreOptions              ApiError = "poll_must_have_more_options"
	ApiErrorPollCantHaveMoreOptions              ApiError = "poll_cant_have_more_options"
	ApiErrorPollOptionsMustBeNonEmpty            ApiError = "poll_options_must_be_non_empty"
	ApiErrorPollQuestionMustBeNonEmpty           ApiError = "poll_question_must_be_non_empty"
	ApiErrorPollOptionsLengthTooLong              ApiError = "poll_options_length_too_long"
	ApiErrorPollQuestionLengthTooLong             ApiError = "poll_question_length_too_long"
	ApiErrorMessageWithPollNotFound              ApiError = "message_with_poll_not_found"
	ApiErrorMessageIsNotAPoll                    ApiError = "message_is_not_a_poll"
	ApiErrorChatNotFound                         ApiError = "chat_not_found"
	ApiErrorUserNotFound                         ApiError = "user_not_found"
	ApiErrorChatDescriptionIsNotModified          ApiError = "chat_description_is_not_modified"
	ApiErrorInvalidQueryID                       ApiError = "invalid_query_id"
	ApiErrorButtonURLInvalid                     ApiError = "button_url_invalid"
	ApiErrorButtonDataInvalid                    ApiError = "button_data_invalid"
	ApiErrorTextButtonsAreUnallowed               ApiError = "text_buttons_are_unallowed"
	ApiErrorWrongFileID                          ApiError = "wrong_file_id"
	ApiErrorGroupDeactivated                     ApiError = "group_deactivated"
	ApiErrorPhotoAsInputFileRequired              ApiError = "photo_as_input_file_required"
	ApiErrorInvalidStickersSet                    ApiError = "invalid_stickers_set"
	ApiErrorNotEnoughRightsToPinMessage            ApiError = "not_enough_rights_to_pin_message"
	ApiErrorNotEnoughRightsToManagePins            ApiError = "not_enough_rights_to_manage_pins"
	ApiErrorMethodNotAvailableInPrivateChats       ApiError = "method_not_available_in_private_chats"
	ApiErrorCantDemoteChatCreator                  ApiError = "cant_demote_chat_creator"
	ApiErrorCantRestrictSelf                       ApiError = "cant_restrict_self"
	ApiErrorNotEnoughRightsToRestrict              ApiError = "not_enough_rights_to_restrict"
	ApiErrorWebhookRequireHTTPS                    ApiError = "webhook_require_https"
	ApiErrorBadWebhookPort                         ApiError = "bad_webhook_port"
	ApiErrorUnknownHost                            ApiError = "unknown_host"
	ApiErrorCantParseURL                           ApiError = "cant_parse_url"
	ApiErrorCantParseEntities                      ApiError = "cant_parse_entities"
	ApiErrorCantGetUpdates                         ApiError = "cant_get_updates"
	ApiErrorBotKicked                              ApiError = "bot_kicked"
	ApiErrorBotKickedFromSupergroup                ApiError = "bot_kicked_from_supergroup"
	ApiErrorUserDeactivated                        ApiError = "user_deactivated"
	ApiErrorCantInitiateConversation               ApiError = "cant_initiate_conversation"
	ApiErrorCantTalkWithBots                       ApiError = "cant_talk_with_bots"
	ApiErrorWrongHTTPURL                           ApiError = "wrong_http_url"
	ApiErrorTerminatedByOtherGetUpdates             ApiError = "terminated_by_other_get_updates"
	ApiErrorFileIDInvalid                          ApiError = "file_id_invalid"
	ApiErrorUnknown                                ApiError = "unknown"
)

// apiErrorByDescription maps the exact Telegram `description` string to its
// classified ApiError, ported from teloxide-core's
// `#[serde(rename = "...")]` table.
var apiErrorByDescription = map[string]ApiError{
	"Forbidden: bot was blocked by the user":                                                       ApiErrorBotBlocked,
	"Bad Request: message is not modified: specified new message content and reply markup are exactly the same as a current content and reply markup of the message": ApiErrorMessageNotModified,
	"Bad Request: MESSAGE_ID_INVALID":                                       ApiErrorMessageIDInvalid,
	"Bad Request: message to forward not found":                             ApiErrorMessageToForwardNotFound,
	"Bad Request: message to delete not found":                              ApiErrorMessageToDeleteNotFound,
	"Bad Request: message text is empty":                                    ApiErrorMessageTextIsEmpty,
	"Bad Request: message can't be edited":                                  ApiErrorMessageCantBeEdited,
	"Bad Request: message can't be deleted":                                 ApiErrorMessageCantBeDeleted,
	"Bad Request: message to edit not found":                                ApiErrorMessageToEditNotFound,
	"Bad Request: reply message not found":                                  ApiErrorMessageToReplyNotFound,
	"Bad Request: message identifier is not specified":                      ApiErrorMessageIdentifierNotSpecified,
	"Bad Request: message is too long":                                      ApiErrorMessageIsTooLong,
	"Bad Request: Too much messages to send as an album":                    ApiErrorTooMuchMessages,
	"Bad Request: poll has already been closed":                             ApiErrorPollHasAlreadyClosed,
	"Bad Request: poll must have at least 2 option":                         ApiErrorPollMustHaveMoreOptions,
	"Bad Request: poll can't have more than 10 options":                     ApiErrorPollCantHaveMoreOptions,
	"Bad Request: poll options must be non-empty":                           ApiErrorPollOptionsMustBeNonEmpty,
	"Bad Request: poll question must be non-empty":                          ApiErrorPollQuestionMustBeNonEmpty,
	"Bad Request: poll options length must not exceed 100":                  ApiErrorPollOptionsLengthTooLong,
	"Bad Request: poll question length must not exceed 255":                 ApiErrorPollQuestionLengthTooLong,
	"Bad Request: message with poll to stop not found":                      ApiErrorMessageWithPollNotFound,
	"Bad Request: message is not a poll":                                    ApiErrorMessageIsNotAPoll,
	"Bad Request: chat not found":                                           ApiErrorChatNotFound,
	"Bad Request: user not found":                                           ApiErrorUserNotFound,
	"Bad Request: chat description is not modified":                        ApiErrorChatDescriptionIsNotModified,
	"Bad Request: QUERY_ID_INVALID":                                        ApiErrorInvalidQueryID,
	"Bad Request: BUTTON_URL_INVALID":                                      ApiErrorButtonURLInvalid,
	"Bad Request: BUTTON_DATA_INVALID":                                     ApiErrorButtonDataInvalid,
	"Bad Request: TEXT_BUTTONS_ARE_UNALLOWED":                              ApiErrorTextButtonsAreUnallowed,
	"Bad Request: wrong file id":                                           ApiErrorWrongFileID,
	"Bad Request: group is deactivated":                                    ApiErrorGroupDeactivated,
	"Bad Request: Photo should be uploaded as an InputFile":                ApiErrorPhotoAsInputFileRequired,
	"Bad Request: STICKERSET_INVALID":                                      ApiErrorInvalidStickersSet,
	"Bad Request: not enough rights to pin a message":                      ApiErrorNotEnoughRightsToPinMessage,
	"Bad Request: not enough rights to manage pinned messages in the chat": ApiErrorNotEnoughRightsToManagePins,
	"Bad Request: method is available only for supergroups and channel":    ApiErrorMethodNotAvailableInPrivateChats,
	"Bad Request: can't demote chat creator":                               ApiErrorCantDemoteChatCreator,
	"Bad Request: can't restrict self":                                     ApiErrorCantRestrictSelf,
	"Bad Request: not enough rights to restrict/unrestrict chat member":    ApiErrorNotEnoughRightsToRestrict,
	"Bad Request: bad webhook: HTTPS url must be provided for webhook":     ApiErrorWebhookRequireHTTPS,
	"Bad Request: bad webhook: Bad webhook port":                          ApiErrorBadWebhookPort,
	"Bad Request: bad webhook: Failed to resolve host: DNS error":         ApiErrorUnknownHost,
	"Bad Request: can't parse URL":                                        ApiErrorCantParseURL,
	"Bad Request: can't parse entities":                                   ApiErrorCantParseEntities,
	"can't use getUpdates method while webhook is active":                 ApiErrorCantGetUpdates,
	"Unauthorized: bot was kicked from a chat":                            ApiErrorBotKicked,
	"Forbidden: bot was kicked from the supergroup chat":                  ApiErrorBotKickedFromSupergroup,
	"Unauthorized: user is deactivated":                                   ApiErrorUserDeactivated,
	"Unauthorized: bot can't initiate conversation with a user":           ApiErrorCantInitiateConversation,
	"Unauthorized: bot can't send messages to bots":                       ApiErrorCantTalkWithBots,
	"Bad Request: wrong HTTP URL":                                         ApiErrorWrongHTTPURL,
	"Conflict: terminated by other getUpdates request; make sure that only one bot instance is running": ApiErrorTerminatedByOtherGetUpdates,
	"Bad Request: invalid file id": ApiErrorFileIDInvalid,
}

func classifyAPIError(description string) ApiError {
	if kind, ok := apiErrorByDescription[description]; ok {
		return kind
	}
	return ApiErrorUnknown
}

// RequestError is the single error type returned by every Bot/Throttle
// method. It mirrors teloxide-core's RequestError enum: exactly one of the
// Kind-specific fields is meaningful, discriminated by Kind.
type RequestError struct {
	Kind RequestErrorKind

	// Api is set when Kind == RequestErrorKindApi.
	Api ApiError
	// Description is the raw Telegram description backing Api, kept for
	// ApiErrorUnknown diagnostics.
	Description string

	// MigrateToChatID is set when Kind == RequestErrorKindMigrateToChatID.
	MigrateToChatID int64

	// RetryAfterSeconds is set when Kind == RequestErrorKindRetryAfter.
	RetryAfterSeconds int

	// Raw is the unparsed response body, set when Kind ==
	// RequestErrorKindInvalidJSON.
	Raw string

	// cause is the wrapped network/JSON/IO error, if any.
	cause error
}

// RequestErrorKind discriminates RequestError, from narrowest to broadest.
type RequestErrorKind int

const (
	RequestErrorKindApi RequestErrorKind = iota
	RequestErrorKindMigrateToChatID
	RequestErrorKindRetryAfter
	RequestErrorKindNetwork
	RequestErrorKindInvalidJSON
	RequestErrorKindIO
)

func (e *RequestError) Error() string {
	switch e.Kind {
	case RequestErrorKindApi:
		if e.Api == ApiErrorUnknown {
			return fmt.Sprintf("telegram api error: %s", e.Description)
		}
		return fmt.Sprintf("telegram api error: %s", e.Api)
	case RequestErrorKindMigrateToChatID:
		return fmt.Sprintf("group migrated to supergroup %d", e.MigrateToChatID)
	case RequestErrorKindRetryAfter:
		return fmt.Sprintf("retry after %ds", e.RetryAfterSeconds)
	case RequestErrorKindNetwork:
		// Network errors from the standard library embed the request URL,
		// which embeds the bot token; redact before it ever reaches a log.
		return fmt.Sprintf("network error: %s", shared.Redact(fmt.Sprint(e.cause)))
	case RequestErrorKindInvalidJSON:
		return fmt.Sprintf("invalid json response: %v", e.cause)
	case RequestErrorKindIO:
		return fmt.Sprintf("io error: %v", e.cause)
	default:
		return "unknown request error"
	}
}

func (e *RequestError) Unwrap() error { return e.cause }

// IsRetryAfter reports whether err is a RequestError carrying a RetryAfter
// classification, and if so returns the number of seconds to wait.
func IsRetryAfter(err error) (seconds int, ok bool) {
	var re *RequestError
	if !asRequestError(err, &re) {
		return 0, false
	}
	if re.Kind != RequestErrorKindRetryAfter {
		return 0, false
	}
	return re.RetryAfterSeconds, true
}

// IsMigrateToChatID reports whether err signals a group-to-supergroup
// migration, and if so returns the new chat id.
func IsMigrateToChatID(err error) (chatID int64, ok bool) {
	var re *RequestError
	if !asRequestError(err, &re) {
		return 0, false
	}
	if re.Kind != RequestErrorKindMigrateToChatID {
		return 0, false
	}
	return re.MigrateToChatID, true
}

func asRequestError(err error, target **RequestError) bool {
	re, ok := err.(*RequestError)
	if !ok {
		return false
	}
	*target = re
	return true
}

func networkError(err error) *RequestError {
	return &RequestError{Kind: RequestErrorKindNetwork, cause: err}
}

func ioError(err error) *RequestError {
	return &RequestError{Kind: RequestErrorKindIO, cause: err}
}

func invalidJSONError(err error, raw string) *RequestError {
	return &RequestError{Kind: RequestErrorKindInvalidJSON, cause: err, Raw: raw}
}

// responseParameters mirrors Telegram's `parameters` object. When present
// it takes precedence over `description` for classification.
type responseParameters struct {
	MigrateToChatID *int64 `json:"migrate_to_chat_id,omitempty"`
	RetryAfter      *int   `json:"retry_after,omitempty"`
}

// telegramEnvelope is the `{"ok": ..., "result": ...}` / error envelope
// shape every Telegram Bot API response follows.
type telegramEnvelope struct {
	OK          bool                 `json:"ok"`
	Result      json.RawMessage      `json:"result,omitempty"`
	Description string               `json:"description,omitempty"`
	ErrorCode   int                  `json:"error_code,omitempty"`
	Parameters  *responseParameters  `json:"parameters,omitempty"`
}

// classifyFailure converts a failed envelope into a RequestError, checking
// parameters before falling back to the description string.
func classifyFailure(env telegramEnvelope) *RequestError {
	if env.Parameters != nil {
		if env.Parameters.MigrateToChatID != nil {
			return &RequestError{Kind: RequestErrorKindMigrateToChatID, MigrateToChatID: *env.Parameters.MigrateToChatID}
		}
		if env.Parameters.RetryAfter != nil {
			return &RequestError{Kind: RequestErrorKindRetryAfter, RetryAfterSeconds: *env.Parameters.RetryAfter}
		}
	}
	return &RequestError{
		Kind:        RequestErrorKindApi,
		Api:         classifyAPIError(env.Description),
		Description: env.Description,
	}
}
