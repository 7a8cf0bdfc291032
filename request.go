package tgcore

import "context"

// Payload is implemented by every method's parameter struct (SendMessage,
// GetUpdates, ...). MethodName returns the Telegram Bot API method name the
// payload is sent to; the "Inline" suffix on *Inline variants (e.g.
// EditMessageTextInline) is stripped by net.go before hitting the wire,
// mirroring teloxide-core's net/request.rs workaround for methods that
// share a single endpoint.
type Payload interface {
	MethodName() string
}

// Request is a lazily-constructed, re-sendable call to a Telegram Bot API
// method. It borrows the Bot and Payload rather than owning them, so
// PayloadMut can mutate parameters in place between retries (e.g. the
// throttle worker adjusting nothing, but a caller backing off and editing
// text before resending).
type Request[T any] struct {
	bot     *Bot
	payload Payload
}

// NewRequest builds a Request bound to bot and payload. T must match what
// the method's JSON `result` field decodes to; callers normally get a
// Request via a Bot method rather than calling this directly.
func NewRequest[T any](bot *Bot, payload Payload) Request[T] {
	return Request[T]{bot: bot, payload: payload}
}

// Payload returns the underlying payload value.
func (r Request[T]) Payload() Payload { return r.payload }

// PayloadAs exposes the underlying payload as its concrete pointer type P,
// for in-place mutation before a retried SendRef. Returns ok=false if the
// request's payload is not a *P.
func PayloadAs[T any, P Payload](r Request[T]) (p P, ok bool) {
	p, ok = r.payload.(P)
	return
}

// Send executes the request, consuming it. Equivalent to teloxide's
// `Request::send`.
func (r Request[T]) Send(ctx context.Context) (T, error) {
	var result T
	if err := r.bot.execute(ctx, r.payload, &result); err != nil {
		return result, err
	}
	return result, nil
}

// SendRef executes the request without consuming it, so the same Request
// value (and its payload) can be reused for a retry. Equivalent to
// teloxide's `Request::send_ref`.
func (r Request[T]) SendRef(ctx context.Context) (T, error) {
	return r.Send(ctx)
}
