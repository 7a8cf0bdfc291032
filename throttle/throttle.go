package throttle

import (
	"context"
	"log/slog"

	"github.com/basket/tgcore"
)

// Throttle wraps a *tgcore.Bot so its chat-scoped send/edit methods are
// paced by a Worker instead of hitting the network directly. Construct one
// with New, then call Run in its own goroutine before issuing any sends.
type Throttle struct {
	bot    *tgcore.Bot
	worker *Worker
}

// New builds a Throttle over bot using limits as the starting rate floors.
// Every RetryAfter the worker sees is checked against bot's own getChat
// response via ResolveSlowMode before falling back to a global freeze.
// Callers must also start w.Run(ctx) (or use RunWorker) before sending.
func New(bot *tgcore.Bot, limits Limits, logger *slog.Logger, opts ...WorkerOption) *Throttle {
	resolver := func(ctx context.Context, chatID tgcore.ChatIDHash) (int, error) {
		return ResolveSlowMode(ctx, bot, chatID)
	}
	opts = append([]WorkerOption{WithSlowModeResolver(resolver)}, opts...)
	return &Throttle{bot: bot, worker: NewWorker(limits, logger, opts...)}
}

// Worker exposes the underlying Worker, e.g. for SetLimits/GetLimits or for
// an obs package to instrument queue depth.
func (t *Throttle) Worker() *Worker { return t.worker }

// RunWorker runs the throttle's worker loop until ctx is cancelled. This
// must be running for any Send call to ever complete.
func (t *Throttle) RunWorker(ctx context.Context) {
	t.worker.Run(ctx)
}

// SendMessage throttles a sendMessage call.
func (t *Throttle) SendMessage(ctx context.Context, chatID tgcore.ChatIDHash, text string) (tgcore.Message, error) {
	v, err := t.worker.Submit(ctx, chatID, func(ctx context.Context) (any, error) {
		return t.bot.SendMessage(chatID, text).Send(ctx)
	})
	return asMessage(v), err
}

// SendPhoto throttles a sendPhoto call.
func (t *Throttle) SendPhoto(ctx context.Context, chatID tgcore.ChatIDHash, photo tgcore.InputFile) (tgcore.Message, error) {
	v, err := t.worker.Submit(ctx, chatID, func(ctx context.Context) (any, error) {
		return t.bot.SendPhoto(chatID, photo).Send(ctx)
	})
	return asMessage(v), err
}

// EditMessageText throttles an editMessageText call.
func (t *Throttle) EditMessageText(ctx context.Context, chatID tgcore.ChatIDHash, messageID int64, text string) (tgcore.Message, error) {
	v, err := t.worker.Submit(ctx, chatID, func(ctx context.Context) (any, error) {
		return t.bot.EditMessageText(chatID, messageID, text).Send(ctx)
	})
	return asMessage(v), err
}

// EditMessageTextInline throttles an editMessageText call addressed by
// inline_message_id. It carries no chat identity, so it is scheduled
// against the zero ChatIDHash and only ever competes for the global
// per-second budget, never a per-chat one.
func (t *Throttle) EditMessageTextInline(ctx context.Context, inlineMessageID, text string) (bool, error) {
	v, err := t.worker.Submit(ctx, tgcore.ChatIDHash{}, func(ctx context.Context) (any, error) {
		return t.bot.EditMessageTextInline(inlineMessageID, text).Send(ctx)
	})
	ok, _ := v.(bool)
	return ok, err
}

// EditMessageMedia throttles an editMessageMedia call.
func (t *Throttle) EditMessageMedia(ctx context.Context, chatID tgcore.ChatIDHash, messageID int64, media tgcore.InputFile) (tgcore.Message, error) {
	v, err := t.worker.Submit(ctx, chatID, func(ctx context.Context) (any, error) {
		return t.bot.EditMessageMedia(chatID, messageID, media).Send(ctx)
	})
	return asMessage(v), err
}

func asMessage(v any) tgcore.Message {
	m, _ := v.(tgcore.Message)
	return m
}

// ResolveSlowMode queries getChat to attribute a freeze to the chat's
// slow-mode delay rather than the global floor, mirroring worker.rs's
// freeze-with-attribution path. It bypasses the worker (a getChat call is
// not itself rate-limited the same way) and is meant to be called from
// Worker's freeze handling or by callers investigating a RetryAfter.
func ResolveSlowMode(ctx context.Context, bot *tgcore.Bot, chatID tgcore.ChatIDHash) (seconds int, err error) {
	chat, err := bot.GetChat(chatID).Send(ctx)
	if err != nil {
		return 0, err
	}
	return chat.SlowMode, nil
}
