package bus

// Throttle event topics.
const (
	TopicThrottleFreeze      = "throttle.freeze"
	TopicThrottleQueueFull   = "throttle.queue_full"
	TopicThrottleLimitsSet   = "throttle.limits_set"
)

// Poller event topics.
const (
	TopicPollerBackoff = "poller.backoff"
	TopicPollerStopped = "poller.stopped"
)

// Dispatch event topics.
const (
	TopicDispatchChatStarted = "dispatch.chat_started"
	TopicDispatchChatStopped = "dispatch.chat_stopped"
)

// ThrottleFreezeEvent is published when the worker freezes a chat (or the
// whole bot, when ChatID is the zero value) after a RetryAfter response.
type ThrottleFreezeEvent struct {
	ChatID        string
	DurationSecs  int
	SlowModeDelay int // non-zero when attributed to a chat's slow-mode setting
}

// ThrottleQueueFullEvent is published when the worker's pending queue
// crosses its logging threshold.
type ThrottleQueueFullEvent struct {
	Depth int
}

// PollerBackoffEvent is published each time the poller backs off after a
// getUpdates failure.
type PollerBackoffEvent struct {
	ConsecutiveErrors int
	DelayMillis       int64
	Error             string
}

// DispatchChatEvent is published when a chat worker starts or stops in the
// dispatch router.
type DispatchChatEvent struct {
	ChatID string
}
