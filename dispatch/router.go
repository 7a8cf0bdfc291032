// Package dispatch implements per-chat ordered delivery of updates: all
// updates for a given chat are handled in arrival order on a single
// goroutine, while different chats are handled fully in parallel. Ported
// from the shape of teloxide's dptree dispatch loop, generalised per the
// library's own update-ordering requirement rather than copying dptree's
// declarative matching.
package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/basket/tgcore"
)

// Handler processes a single update. It is called from the goroutine
// dedicated to its chat; handlers for the same chat never run concurrently
// with each other.
type Handler func(ctx context.Context, update tgcore.Update)

// Router fans updates out to per-chat worker goroutines, each draining an
// unbounded FIFO queue for its chat. Updates with no associated chat
// (IsZero) are delivered to their own shared, unordered worker.
type Router struct {
	handle Handler
	logger *slog.Logger

	mu      sync.Mutex
	workers map[tgcore.ChatIDHash]*chatWorker
	wg      sync.WaitGroup
	closed  bool

	onChatStart func(chat tgcore.ChatIDHash)
	onChatStop  func(chat tgcore.ChatIDHash)
}

// chatWorker is a mutex-guarded, unbounded FIFO: Dispatch must never block
// waiting for a slow chat to drain, so the queue grows instead of refusing
// pushes the way a fixed-capacity channel would.
type chatWorker struct {
	mu      sync.Mutex
	queue   []tgcore.Update
	closing bool
	signal  chan struct{}
}

func newChatWorker() *chatWorker {
	return &chatWorker{signal: make(chan struct{}, 1)}
}

// push enqueues update, returning false if the worker is already draining
// towards shutdown and won't accept more work.
func (w *chatWorker) push(update tgcore.Update) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closing {
		return false
	}
	w.queue = append(w.queue, update)
	w.wake()
	return true
}

func (w *chatWorker) wake() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *chatWorker) pop() (tgcore.Update, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return tgcore.Update{}, false
	}
	u := w.queue[0]
	w.queue[0] = tgcore.Update{}
	w.queue = w.queue[1:]
	return u, true
}

// closeForDrain stops push from accepting new work and wakes the worker so
// it notices, once the queue empties, that nothing more is coming.
func (w *chatWorker) closeForDrain() {
	w.mu.Lock()
	w.closing = true
	w.mu.Unlock()
	w.wake()
}

func (w *chatWorker) isClosingAndEmpty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closing && len(w.queue) == 0
}

func (w *chatWorker) depth() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Option configures a Router.
type Option func(*Router)

// WithOnChatStart registers a callback invoked whenever the router starts a
// new per-chat worker goroutine. Callers that want this surfaced on a
// message bus or metrics system wire it here rather than the router
// depending on either.
func WithOnChatStart(fn func(chat tgcore.ChatIDHash)) Option {
	return func(r *Router) { r.onChatStart = fn }
}

// WithOnChatStop registers a callback invoked whenever a per-chat worker
// goroutine exits, whether from shutdown or context cancellation.
func WithOnChatStop(fn func(chat tgcore.ChatIDHash)) Option {
	return func(r *Router) { r.onChatStop = fn }
}

// New builds a Router that delivers updates to handle.
func New(handle Handler, logger *slog.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		handle:  handle,
		logger:  logger,
		workers: make(map[tgcore.ChatIDHash]*chatWorker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch enqueues update for delivery. It never blocks on handler
// execution: if the target chat's worker doesn't exist yet, Dispatch
// starts it. Safe to call concurrently.
func (r *Router) Dispatch(ctx context.Context, update tgcore.Update) {
	chat := update.ChatIDHash()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Warn("dropped update dispatched after Router.Shutdown", "update_id", update.ID)
		return
	}
	w, ok := r.workers[chat]
	if !ok {
		w = r.startWorker(ctx, chat)
	}
	r.mu.Unlock()

	if !w.push(update) {
		r.logger.Warn("dropped update, its chat worker already stopped", "update_id", update.ID)
	}
}

func (r *Router) startWorker(ctx context.Context, chat tgcore.ChatIDHash) *chatWorker {
	w := newChatWorker()
	r.workers[chat] = w
	r.wg.Add(1)
	if r.onChatStart != nil {
		r.onChatStart(chat)
	}
	go r.runWorker(ctx, chat, w)
	return w
}

func (r *Router) runWorker(ctx context.Context, chat tgcore.ChatIDHash, w *chatWorker) {
	defer r.wg.Done()
	if r.onChatStop != nil {
		defer r.onChatStop(chat)
	}
	for {
		if update, ok := w.pop(); ok {
			r.handle(ctx, update)
			continue
		}
		if w.isClosingAndEmpty() {
			return
		}
		select {
		case <-w.signal:
		case <-ctx.Done():
			r.drain(chat, w)
			return
		}
	}
}

// drain delivers whatever is already queued for chat before the worker
// exits, so a context-cancelled shutdown never silently discards buffered
// work.
func (r *Router) drain(chat tgcore.ChatIDHash, w *chatWorker) {
	for {
		update, ok := w.pop()
		if !ok {
			return
		}
		r.handle(context.Background(), update)
	}
}

// Shutdown stops accepting new updates and waits for every chat worker to
// finish draining its queue.
func (r *Router) Shutdown() {
	r.mu.Lock()
	r.closed = true
	workers := make([]*chatWorker, 0, len(r.workers))
	for _, w := range r.workers {
		workers = append(workers, w)
	}
	r.mu.Unlock()

	for _, w := range workers {
		w.closeForDrain()
	}
	r.wg.Wait()
}

// QueueDepth reports how many updates are currently buffered for chat, for
// obs instrumentation.
func (r *Router) QueueDepth(chat tgcore.ChatIDHash) int {
	r.mu.Lock()
	w, ok := r.workers[chat]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	return w.depth()
}

// ActiveChats returns the number of chats with a live worker, for obs
// instrumentation.
func (r *Router) ActiveChats() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}
