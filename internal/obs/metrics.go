package obs

import "go.opentelemetry.io/otel/metric"

// Metrics holds every tgcore metrics instrument: one gauge/counter/histogram
// per observable point in the throttle worker, the poller, and the
// dispatch router.
type Metrics struct {
	ThrottlePermitsIssued metric.Int64Counter
	ThrottleFreezes       metric.Int64Counter
	ThrottleQueueDepth    metric.Int64UpDownCounter
	ThrottleWaitDuration  metric.Float64Histogram

	PollerUpdatesFetched  metric.Int64Counter
	PollerBackoffDuration metric.Float64Histogram
	PollerConsecutiveErrs metric.Int64UpDownCounter

	RouterChatQueueDepth metric.Int64UpDownCounter
	RouterActiveChats    metric.Int64UpDownCounter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.ThrottlePermitsIssued, err = meter.Int64Counter("tgcore.throttle.permits_issued",
		metric.WithDescription("Requests the throttle worker has dispatched"),
	)
	if err != nil {
		return nil, err
	}

	m.ThrottleFreezes, err = meter.Int64Counter("tgcore.throttle.freezes",
		metric.WithDescription("Number of freeze events applied to a chat or globally"),
	)
	if err != nil {
		return nil, err
	}

	m.ThrottleQueueDepth, err = meter.Int64UpDownCounter("tgcore.throttle.queue_depth",
		metric.WithDescription("Number of requests currently queued in the throttle worker"),
	)
	if err != nil {
		return nil, err
	}

	m.ThrottleWaitDuration, err = meter.Float64Histogram("tgcore.throttle.wait_duration",
		metric.WithDescription("Time a request spent queued before dispatch"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.PollerUpdatesFetched, err = meter.Int64Counter("tgcore.poller.updates_fetched",
		metric.WithDescription("Total updates returned by getUpdates"),
	)
	if err != nil {
		return nil, err
	}

	m.PollerBackoffDuration, err = meter.Float64Histogram("tgcore.poller.backoff_duration",
		metric.WithDescription("Backoff delay applied after a getUpdates failure"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.PollerConsecutiveErrs, err = meter.Int64UpDownCounter("tgcore.poller.consecutive_errors",
		metric.WithDescription("Current consecutive getUpdates failure count"),
	)
	if err != nil {
		return nil, err
	}

	m.RouterChatQueueDepth, err = meter.Int64UpDownCounter("tgcore.router.chat_queue_depth",
		metric.WithDescription("Number of updates buffered for a single chat worker"),
	)
	if err != nil {
		return nil, err
	}

	m.RouterActiveChats, err = meter.Int64UpDownCounter("tgcore.router.active_chats",
		metric.WithDescription("Number of chats with a live dispatch worker"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
