// Package polling implements long-polling update retrieval: a pull loop
// over Bot.GetUpdates with an advancing offset cursor, exponential
// back-off on failure, and a graceful-stop handshake that commits the
// cursor past whatever was last delivered, in the shape of teloxide's
// polling update listener.
package polling

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/basket/tgcore"
)

// BackoffStrategy computes the delay before the next retry, given the
// number of consecutive failures so far (1-indexed).
type BackoffStrategy func(failureCount int) time.Duration

// DefaultBackoff grows exponentially from 1s, capped at 30s, without
// jitter.
func DefaultBackoff(failureCount int) time.Duration {
	delay := time.Second
	for i := 1; i < failureCount && delay < 30*time.Second; i++ {
		delay *= 2
	}
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}

// api is the subset of *tgcore.Bot the poller needs, narrowed to an
// interface so tests can substitute a fake instead of making real HTTP
// calls.
type api interface {
	GetUpdates(ctx context.Context, offset, limit, timeout int32, allowed []string) ([]tgcore.Update, error)
	GetWebhookInfo(ctx context.Context) (tgcore.WebhookInfo, error)
	DeleteWebhook(ctx context.Context, dropPendingUpdates bool) (bool, error)
}

// botAdapter satisfies api by delegating to a real *tgcore.Bot's
// Request-returning methods.
type botAdapter struct{ bot *tgcore.Bot }

func (a botAdapter) GetUpdates(ctx context.Context, offset, limit, timeout int32, allowed []string) ([]tgcore.Update, error) {
	return a.bot.GetUpdates(offset, limit, timeout, allowed).Send(ctx)
}

func (a botAdapter) GetWebhookInfo(ctx context.Context) (tgcore.WebhookInfo, error) {
	return a.bot.GetWebhookInfo().Send(ctx)
}

func (a botAdapter) DeleteWebhook(ctx context.Context, dropPendingUpdates bool) (bool, error) {
	return a.bot.DeleteWebhook(dropPendingUpdates).Send(ctx)
}

// Poller long-polls a Bot for updates and pushes them to a caller-supplied
// handler, one batch at a time.
type Poller struct {
	bot                api
	timeout            time.Duration
	limit              int32
	allowedUpdates     []string
	dropPendingUpdates bool
	deleteWebhook      bool
	backoff            BackoffStrategy
	logger             *slog.Logger

	offset      int32
	errorCount  int
	pinnedAllowedUpdates bool

	onBackoff func(consecutiveErrors int, delay time.Duration, err error)
}

// Option configures a Poller.
type Option func(*Poller)

// WithTimeout sets the long-poll timeout sent to getUpdates. Defaults to
// 30s.
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) { p.timeout = d }
}

// WithLimit caps how many updates getUpdates returns per call.
func WithLimit(limit int32) Option {
	return func(p *Poller) { p.limit = limit }
}

// WithAllowedUpdates pins the set of update kinds requested. Per
// Telegram's semantics this only takes effect on the very first getUpdates
// call of a polling session; Poller enforces this by only sending it once.
func WithAllowedUpdates(kinds []string) Option {
	return func(p *Poller) { p.allowedUpdates = kinds }
}

// WithDropPendingUpdates makes the first poll discard whatever updates are
// already queued server-side, using the offset=-1,limit=1,timeout=0 idiom
// instead of a separate API call.
func WithDropPendingUpdates() Option {
	return func(p *Poller) { p.dropPendingUpdates = true }
}

// WithDeleteWebhook makes the poller check for and remove an active
// webhook before the first poll; getUpdates fails outright otherwise.
func WithDeleteWebhook() Option {
	return func(p *Poller) { p.deleteWebhook = true }
}

// WithBackoff overrides the default exponential back-off strategy.
func WithBackoff(strategy BackoffStrategy) Option {
	return func(p *Poller) { p.backoff = strategy }
}

// WithLogger sets the Poller's logger. A nil logger falls back to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) { p.logger = logger }
}

// WithOnBackoff registers a callback invoked every time the poller backs
// off after a getUpdates failure, alongside the warning log. Callers that
// want this surfaced on a message bus or metrics system wire it here
// rather than the poller depending on either.
func WithOnBackoff(fn func(consecutiveErrors int, delay time.Duration, err error)) Option {
	return func(p *Poller) { p.onBackoff = fn }
}

// New builds a Poller over bot.
func New(bot *tgcore.Bot, opts ...Option) *Poller {
	return newWithAPI(botAdapter{bot: bot}, opts...)
}

func newWithAPI(a api, opts ...Option) *Poller {
	p := &Poller{
		bot:     a,
		timeout: 30 * time.Second,
		limit:   100,
		backoff: DefaultBackoff,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Handler processes one batch of updates. A non-nil error does not stop
// the poller; it is only logged, since any updates already delivered have
// already advanced the offset and must not be redelivered.
type Handler func(ctx context.Context, updates []tgcore.Update) error

// Run polls until ctx is cancelled or Stop's graceful-stop commit
// completes, whichever happens first. It never returns a non-nil error for
// a cancelled context; callers that need the stop/commit outcome should
// check the returned error only for setup failures (delete-webhook, first
// getUpdates call before any update has been handled).
func (p *Poller) Run(ctx context.Context, handle Handler) error {
	if p.deleteWebhook {
		if err := p.deleteWebhookIfSetup(ctx); err != nil {
			return err
		}
	}
	if p.dropPendingUpdates {
		if err := p.dropPending(ctx); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return p.commitStop(context.Background())
		default:
		}

		updates, err := p.poll(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return p.commitStop(context.Background())
			}
			p.errorCount++
			delay := p.backoff(p.errorCount)
			p.logger.Warn("getUpdates failed, backing off", "error", err, "delay", delay, "consecutive_errors", p.errorCount)
			if p.onBackoff != nil {
				p.onBackoff(p.errorCount, delay, err)
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return p.commitStop(context.Background())
			}
			continue
		}
		p.errorCount = 0

		if len(updates) == 0 {
			continue
		}
		if err := handle(ctx, updates); err != nil {
			p.logger.Error("update handler returned an error", "error", err)
		}
		p.advanceOffset(updates)
	}
}

func (p *Poller) poll(ctx context.Context) ([]tgcore.Update, error) {
	allowed := p.allowedUpdates
	if p.pinnedAllowedUpdates {
		allowed = nil
	} else {
		p.pinnedAllowedUpdates = true
	}
	return p.bot.GetUpdates(ctx, p.offset, p.limit, int32(p.timeout/time.Second), allowed)
}

func (p *Poller) advanceOffset(updates []tgcore.Update) {
	for _, u := range updates {
		if u.ID+1 > p.offset {
			p.offset = u.ID + 1
		}
	}
}

// commitStop performs the final getUpdates(offset, limit=1, timeout=0)
// call that acknowledges every update handled so far, per polling.rs's
// graceful-stop handshake. Failure here is intentionally swallowed: a
// failed commit means Telegram will redeliver already-handled updates,
// which handlers must already tolerate (idempotency is the caller's
// concern, not the poller's).
func (p *Poller) commitStop(ctx context.Context) error {
	_, err := p.bot.GetUpdates(ctx, p.offset, 1, 0, nil)
	if err != nil {
		p.logger.Warn("failed to commit final offset on stop", "error", err)
	}
	return nil
}

// dropPending discards any updates already queued server-side using the
// offset=-1,limit=1,timeout=0 idiom, then positions the cursor past them.
func (p *Poller) dropPending(ctx context.Context) error {
	updates, err := p.bot.GetUpdates(ctx, -1, 1, 0, nil)
	if err != nil {
		return err
	}
	p.advanceOffset(updates)
	return nil
}

func (p *Poller) deleteWebhookIfSetup(ctx context.Context) error {
	info, err := p.bot.GetWebhookInfo(ctx)
	if err != nil {
		return err
	}
	if info.URL == "" {
		return nil
	}
	_, err = p.bot.DeleteWebhook(ctx, p.dropPendingUpdates)
	return err
}

// Offset returns the poller's current cursor, for diagnostics.
func (p *Poller) Offset() int32 { return p.offset }
