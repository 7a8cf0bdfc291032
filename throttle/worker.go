package throttle

import (
	"context"
	"log/slog"
	"time"

	"github.com/basket/tgcore"
)

// job is one queued call awaiting a dispatch slot.
type job struct {
	chat     tgcore.ChatIDHash
	execute  func(ctx context.Context) (any, error)
	result   chan jobResult
	queuedAt time.Time
}

type jobResult struct {
	value any
	err   error
}

type infoKind int

const (
	infoSetLimits infoKind = iota
	infoGetLimits
)

// infoMessage is how callers mutate or inspect the worker's limits while it
// runs, without a lock: the worker only ever reads/writes limits from its
// own goroutine, mirroring worker.rs's InfoMessage channel.
type infoMessage struct {
	kind   infoKind
	limits Limits
	reply  chan Limits
}

// freezeMessage reports that a send came back RetryAfter. after is the raw
// duration Telegram asked for; until is simply now+after, precomputed so
// the handler doesn't need a second clock read. chat is the chat the failed
// request targeted, used only to decide whether the freeze attributes to
// that chat's slow-mode or to the whole bot.
type freezeMessage struct {
	chat  tgcore.ChatIDHash
	after time.Duration
	until time.Time
}

// slowModeEntry tracks Telegram's per-chat slow-mode delay and the instant
// of the most recent send to that chat, so dispatchReady can withhold
// further sends until delay has elapsed since last.
type slowModeEntry struct {
	delay time.Duration
	last  time.Time
}

// slowModeResult is the asynchronous reply to a getChat lookup started by
// handleFreeze, fed back into Run's own goroutine so the network call never
// blocks the scheduling loop.
type slowModeResult struct {
	fz      freezeMessage
	seconds int
	err     error
}

// Worker runs the single cooperative scheduling loop that paces every
// request submitted to it. It must not be copied after first use.
type Worker struct {
	incoming         chan *job
	info             chan infoMessage
	freezeCh         chan freezeMessage
	slowModeResultCh chan slowModeResult
	logger           *slog.Logger
	resolveSlowMode  func(ctx context.Context, chat tgcore.ChatIDHash) (seconds int, err error)

	// Unexported fields below are only ever touched from Run's goroutine.
	limits     Limits
	queue      []*job
	history    map[tgcore.ChatIDHash][]time.Time
	overallLog []time.Time

	slowMode     map[tgcore.ChatIDHash]slowModeEntry
	globalFreeze time.Time

	lastQueueFullWarn time.Time

	onFreeze    func(chat tgcore.ChatIDHash, until time.Time)
	onQueueFull func(depth int)
}

// WorkerOption configures optional observability hooks on a Worker. They
// are called from Run's goroutine (onFreeze, via dispatch's own goroutine
// for onFreeze) and must not block.
type WorkerOption func(*Worker)

// WithOnFreeze registers a callback invoked whenever the worker pauses
// sending: with the zero ChatIDHash for a global freeze that pauses every
// chat, or with a specific chat when a RetryAfter was instead attributed to
// that chat's slow-mode delay. Callers that want this surfaced on a message
// bus or metrics system wire it here rather than the worker depending on
// either.
func WithOnFreeze(fn func(chat tgcore.ChatIDHash, until time.Time)) WorkerOption {
	return func(w *Worker) { w.onFreeze = fn }
}

// WithOnQueueFull registers a callback invoked when the pending queue
// crosses its logging threshold.
func WithOnQueueFull(fn func(depth int)) WorkerOption {
	return func(w *Worker) { w.onQueueFull = fn }
}

// WithSlowModeResolver registers the getChat lookup the worker uses to
// attribute a RetryAfter to a chat's slow-mode delay instead of a global
// freeze. Without one registered, every RetryAfter is treated as a global
// freeze.
func WithSlowModeResolver(fn func(ctx context.Context, chat tgcore.ChatIDHash) (seconds int, err error)) WorkerOption {
	return func(w *Worker) { w.resolveSlowMode = fn }
}

// NewWorker constructs a Worker with the given starting limits. Call Run to
// start its loop; until Run is called, Submit blocks.
func NewWorker(limits Limits, logger *slog.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		incoming:         make(chan *job),
		info:             make(chan infoMessage),
		freezeCh:         make(chan freezeMessage, 16),
		slowModeResultCh: make(chan slowModeResult, 16),
		logger:           logger,
		limits:           limits,
		history:          make(map[tgcore.ChatIDHash][]time.Time),
		slowMode:         make(map[tgcore.ChatIDHash]slowModeEntry),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetLimits pushes new limits into the running worker, taking effect on the
// next scheduling tick. Safe to call concurrently with Run.
func (w *Worker) SetLimits(ctx context.Context, limits Limits) {
	select {
	case w.info <- infoMessage{kind: infoSetLimits, limits: limits}:
	case <-ctx.Done():
	}
}

// GetLimits returns the worker's current limits.
func (w *Worker) GetLimits(ctx context.Context) (Limits, bool) {
	reply := make(chan Limits, 1)
	select {
	case w.info <- infoMessage{kind: infoGetLimits, reply: reply}:
	case <-ctx.Done():
		return Limits{}, false
	}
	select {
	case l := <-reply:
		return l, true
	case <-ctx.Done():
		return Limits{}, false
	}
}

// Submit queues execute for the given chat and blocks until it has been
// dispatched and returned a result, or ctx is cancelled. Submit is safe to
// call from many goroutines concurrently; FIFO order is preserved per chat,
// not globally.
func (w *Worker) Submit(ctx context.Context, chat tgcore.ChatIDHash, execute func(ctx context.Context) (any, error)) (any, error) {
	j := &job{chat: chat, execute: execute, result: make(chan jobResult, 1), queuedAt: time.Now()}
	select {
	case w.incoming <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-j.result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run executes the worker's scheduling loop until ctx is cancelled or the
// incoming channel is closed with an empty queue (the issue_535 case:
// teloxide-core's worker must not spin forever on a closed, empty channel).
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(delayQuantum)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drainPending(ctx.Err())
			return

		case msg, ok := <-w.info:
			if !ok {
				continue
			}
			switch msg.kind {
			case infoSetLimits:
				w.limits = msg.limits
			case infoGetLimits:
				msg.reply <- w.limits
			}

		case fz := <-w.freezeCh:
			w.handleFreeze(ctx, fz)

		case res := <-w.slowModeResultCh:
			w.applySlowModeResult(res)

		case j, ok := <-w.incoming:
			if !ok {
				if len(w.queue) == 0 {
					return
				}
				// Channel closed but work remains: keep draining via the
				// ticker until the queue empties, then the next iteration's
				// nil read on a closed channel falls straight back here.
				continue
			}
			w.enqueue(j)

		case <-ticker.C:
			w.expireHistory(time.Now())
			w.dispatchReady(ctx)
		}
	}
}

func (w *Worker) enqueue(j *job) {
	w.queue = append(w.queue, j)
	const queueFullThreshold = 1000
	if len(w.queue) >= queueFullThreshold {
		now := time.Now()
		if now.Sub(w.lastQueueFullWarn) >= queueFullLogInterval {
			w.logger.Warn("throttle queue is full", "depth", len(w.queue))
			w.lastQueueFullWarn = now
			if w.onQueueFull != nil {
				w.onQueueFull(len(w.queue))
			}
		}
	}
}

func (w *Worker) drainPending(err error) {
	for _, j := range w.queue {
		j.result <- jobResult{err: err}
	}
	w.queue = nil
}

// handleFreeze is the entry point for a RetryAfter report. A freeze with no
// chat identity (EditMessageTextInline and friends) can never be attributed
// to a chat's slow-mode, so it always goes straight to a global freeze; the
// same is true if no slow-mode resolver was configured. Otherwise the
// getChat lookup runs on its own goroutine so it never blocks scheduling,
// and its answer comes back through slowModeResultCh.
func (w *Worker) handleFreeze(ctx context.Context, fz freezeMessage) {
	if fz.chat.IsZero() || w.resolveSlowMode == nil {
		w.applyGlobalFreeze(fz)
		return
	}
	resolve := w.resolveSlowMode
	go func() {
		seconds, err := resolve(ctx, fz.chat)
		select {
		case w.slowModeResultCh <- slowModeResult{fz: fz, seconds: seconds, err: err}:
		case <-ctx.Done():
		}
	}()
}

// applySlowModeResult decides, once getChat answers, whether the freeze
// attributes to the chat's slow-mode (delay <= after, so the chat's own
// pacing already covers the wait) or must still pause every chat globally.
func (w *Worker) applySlowModeResult(res slowModeResult) {
	if res.err != nil {
		w.logger.Warn("getChat failed while resolving slow-mode, falling back to a global freeze", "chat", res.fz.chat, "error", res.err)
		w.applyGlobalFreeze(res.fz)
		return
	}
	delay := time.Duration(res.seconds) * time.Second
	if res.seconds > 0 && delay <= res.fz.after {
		w.slowMode[res.fz.chat] = slowModeEntry{delay: delay, last: time.Now()}
		if w.onFreeze != nil {
			w.onFreeze(res.fz.chat, res.fz.until)
		}
		return
	}
	w.applyGlobalFreeze(res.fz)
}

func (w *Worker) applyGlobalFreeze(fz freezeMessage) {
	if fz.until.After(w.globalFreeze) {
		w.globalFreeze = fz.until
		if w.onFreeze != nil {
			w.onFreeze(tgcore.ChatIDHash{}, fz.until)
		}
	}
}

// expireHistory drops send timestamps older than the per-minute window;
// the per-second overall log is trimmed to the last second.
func (w *Worker) expireHistory(now time.Time) {
	cutoffMinute := now.Add(-minuteWindow)
	for chat, times := range w.history {
		kept := times[:0]
		for _, t := range times {
			if t.After(cutoffMinute) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(w.history, chat)
		} else {
			w.history[chat] = kept
		}
	}

	cutoffSecond := now.Add(-secondWindow)
	kept := w.overallLog[:0]
	for _, t := range w.overallLog {
		if t.After(cutoffSecond) {
			kept = append(kept, t)
		}
	}
	w.overallLog = kept
}

// dispatchReady scans the queue in FIFO order, dispatching every job whose
// chat is not frozen and whose limits have remaining budget, skipping over
// (not discarding) jobs that must wait, exactly as worker.rs's per-tick
// scan does: a blocked chat never blocks a different chat behind it.
func (w *Worker) dispatchReady(ctx context.Context) {
	now := time.Now()
	if now.Before(w.globalFreeze) {
		return
	}

	remaining := w.queue[:0]
	overallBudget := w.limits.PerSecOverall - countSince(w.overallLog, now.Add(-secondWindow))

	for _, j := range w.queue {
		if overallBudget <= 0 {
			remaining = append(remaining, j)
			continue
		}
		if sm, tracked := w.slowMode[j.chat]; tracked && sm.last.Add(sm.delay).After(now) {
			remaining = append(remaining, j)
			continue
		}
		if !w.chatHasBudget(j.chat, now) {
			remaining = append(remaining, j)
			continue
		}

		w.recordSend(j.chat, now)
		overallBudget--
		w.dispatch(ctx, j)
	}
	w.queue = remaining
}

func (w *Worker) chatHasBudget(chat tgcore.ChatIDHash, now time.Time) bool {
	times := w.history[chat]

	perSecCutoff := now.Add(-secondWindow)
	if countSince(times, perSecCutoff) >= w.limits.PerSecChat {
		return false
	}

	perMinCutoff := now.Add(-minuteWindow)
	limit := w.limits.PerMinChat
	if chat.IsChannelOrSupergroup() {
		limit = w.limits.PerMinChannelOrSupergroup
	}
	return countSince(times, perMinCutoff) < limit
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, t := range times {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

func (w *Worker) recordSend(chat tgcore.ChatIDHash, now time.Time) {
	w.history[chat] = append(w.history[chat], now)
	w.overallLog = append(w.overallLog, now)
	if sm, tracked := w.slowMode[chat]; tracked {
		sm.last = now
		w.slowMode[chat] = sm
	}
}

// dispatch runs j on its own goroutine so a slow call never stalls the
// scheduling loop. A RetryAfter result signals a freeze back to the worker,
// sleeps for exactly the duration Telegram asked for, then re-issues the
// request once; whatever that retry returns (including a second
// RetryAfter) is the final result delivered to the caller.
func (w *Worker) dispatch(ctx context.Context, j *job) {
	go func() {
		value, err := j.execute(ctx)
		seconds, ok := tgcore.IsRetryAfter(err)
		if !ok {
			j.result <- jobResult{value: value, err: err}
			return
		}

		after := time.Duration(seconds) * time.Second
		fz := freezeMessage{chat: j.chat, after: after, until: time.Now().Add(after)}
		select {
		case w.freezeCh <- fz:
		default:
			w.logger.Warn("dropped freeze signal, freeze channel full")
		}

		timer := time.NewTimer(after)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			j.result <- jobResult{err: ctx.Err()}
			return
		}

		value, err = j.execute(ctx)
		j.result <- jobResult{value: value, err: err}
	}()
}
