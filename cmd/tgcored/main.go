package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/basket/tgcore"
	"github.com/basket/tgcore/dispatch"
	"github.com/basket/tgcore/internal/bus"
	"github.com/basket/tgcore/internal/config"
	"github.com/basket/tgcore/internal/cron"
	"github.com/basket/tgcore/internal/obs"
	"github.com/basket/tgcore/polling"
	"github.com/basket/tgcore/throttle"
)

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:

Runs the tgcored long-polling daemon: fetches updates for one bot, paces
outgoing calls through a throttle worker, and dispatches incoming updates
to per-chat handler goroutines.

FLAGS:
`, os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
ENVIRONMENT VARIABLES:
  TGCORED_HOME             Config/state directory (default: ~/.tgcored)
  TGCORE_TOKEN             Bot token (required unless set in config.yaml)
  TGCORE_API_URL           Override the Bot API base URL
  TGCORE_PROXY             HTTP(S) proxy URL for outbound requests
  TGCORED_LOG_LEVEL        debug|info|warn|error
  TGCORED_PER_SEC_OVERALL  Override limits.per_sec_overall
`)
}

func main() {
	echo := flag.Bool("echo", false, "echo every received text message back to its chat")
	flag.Usage = printUsage
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jsonLogs := !isatty.IsTerminal(os.Stdout.Fd())

	cfg, err := config.Load()
	if err != nil {
		fatalStartup(nil, "E_CONFIG_LOAD", err)
	}

	logger := newLogger(cfg.LogLevel, jsonLogs)
	slog.SetDefault(logger)

	if cfg.Token == "" {
		fatalStartup(logger, "E_NO_TOKEN", fmt.Errorf("no bot token: set TGCORE_TOKEN or token: in %s", config.ConfigPath(cfg.HomeDir)))
	}

	otelProvider, err := obs.Init(ctx, cfg.Observability)
	if err != nil {
		fatalStartup(logger, "E_OTEL_INIT", err)
	}
	defer otelProvider.Shutdown(context.Background())

	eventBus := bus.NewWithLogger(logger)

	bot := tgcore.New(cfg.Token, tgcore.WithAPIURL(cfg.APIURL), tgcore.WithLogger(logger))

	var lastQueueDepth atomic.Int64
	worker := throttle.NewWorker(cfg.Limits.ToThrottleLimits(), logger,
		throttle.WithSlowModeResolver(func(ctx context.Context, chat tgcore.ChatIDHash) (int, error) {
			return throttle.ResolveSlowMode(ctx, bot, chat)
		}),
		throttle.WithOnFreeze(func(chat tgcore.ChatIDHash, until time.Time) {
			eventBus.Publish(bus.TopicThrottleFreeze, bus.ThrottleFreezeEvent{
				ChatID:       chat.String(),
				DurationSecs: int(time.Until(until).Seconds()),
			})
			otelProvider.Metrics.ThrottleFreezes.Add(ctx, 1)
		}),
		throttle.WithOnQueueFull(func(depth int) {
			lastQueueDepth.Store(int64(depth))
			eventBus.Publish(bus.TopicThrottleQueueFull, bus.ThrottleQueueFullEvent{Depth: depth})
		}),
	)

	router := dispatch.New(makeHandler(bot, logger, *echo), logger,
		dispatch.WithOnChatStart(func(chat tgcore.ChatIDHash) {
			eventBus.Publish(bus.TopicDispatchChatStarted, bus.DispatchChatEvent{ChatID: chat.String()})
			otelProvider.Metrics.RouterActiveChats.Add(ctx, 1)
		}),
		dispatch.WithOnChatStop(func(chat tgcore.ChatIDHash) {
			eventBus.Publish(bus.TopicDispatchChatStopped, bus.DispatchChatEvent{ChatID: chat.String()})
			otelProvider.Metrics.RouterActiveChats.Add(ctx, -1)
		}),
	)

	pollerOpts := []polling.Option{
		polling.WithTimeout(time.Duration(cfg.Polling.TimeoutSeconds) * time.Second),
		polling.WithLimit(cfg.Polling.Limit),
		polling.WithAllowedUpdates(cfg.Polling.AllowedUpdates),
		polling.WithLogger(logger),
		polling.WithOnBackoff(func(consecutiveErrors int, delay time.Duration, pollErr error) {
			eventBus.Publish(bus.TopicPollerBackoff, bus.PollerBackoffEvent{
				ConsecutiveErrors: consecutiveErrors,
				DelayMillis:       delay.Milliseconds(),
				Error:             pollErr.Error(),
			})
			otelProvider.Metrics.PollerConsecutiveErrs.Add(ctx, 1)
		}),
	}
	if cfg.Polling.DropPendingUpdates {
		pollerOpts = append(pollerOpts, polling.WithDropPendingUpdates())
	}
	if cfg.Polling.DeleteWebhook {
		pollerOpts = append(pollerOpts, polling.WithDeleteWebhook())
	}
	poller := polling.New(bot, pollerOpts...)

	reporter, err := cron.NewReporter(cfg.StatsCron, func() cron.Stats {
		return cron.Stats{
			ThrottleQueueDepth: int(lastQueueDepth.Load()),
			PollerOffset:       poller.Offset(),
			RouterActiveChats:  router.ActiveChats(),
		}
	}, logger)
	if err != nil {
		fatalStartup(logger, "E_CRON_INVALID", err)
	}
	reporter.Start()
	defer reporter.Stop(context.Background())

	confWatcher := config.NewWatcher(cfg.HomeDir, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return confWatcher.Run(gctx, worker)
	})
	g.Go(func() error {
		return poller.Run(gctx, func(handleCtx context.Context, updates []tgcore.Update) error {
			for _, u := range updates {
				if u.Kind.Tag == tgcore.UpdateKindError {
					logger.Warn("dropping unparsable update, offset still advances", "update_id", u.ID, "error", u.Kind.ParseError)
					continue
				}
				router.Dispatch(handleCtx, u)
			}
			return nil
		})
	})

	logger.Info("tgcored started", "home", cfg.HomeDir, "api_url", cfg.APIURL)

	<-gctx.Done()
	logger.Info("shutdown signal received")

	router.Shutdown()

	if err := g.Wait(); err != nil {
		logger.Warn("daemon goroutine returned an error", "error", err)
	}

	logger.Info("shutdown complete")
}

// makeHandler builds the dispatch.Handler that processes one update at a
// time, on the goroutine dedicated to its chat.
func makeHandler(bot *tgcore.Bot, logger *slog.Logger, echo bool) dispatch.Handler {
	return func(ctx context.Context, update tgcore.Update) {
		switch update.Kind.Tag {
		case tgcore.UpdateKindMessage:
			msg := update.Kind.Message
			logger.Info("received message", "update_id", update.ID, "chat_id", msg.Chat.ID)
			if echo {
				chatID := msg.Chat.ChatIDHash()
				if _, err := bot.SendMessage(chatID, "echo").Send(ctx); err != nil {
					logger.Warn("failed to send echo reply", "error", err)
				}
			}
		case tgcore.UpdateKindCallbackQuery:
			logger.Info("received callback query", "update_id", update.ID)
		default:
			logger.Debug("received update", "update_id", update.ID, "kind", update.Kind.Tag)
		}
	}
}

func newLogger(level string, jsonOutput bool) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func fatalStartup(logger *slog.Logger, reasonCode string, err error) {
	if logger != nil {
		logger.Error("startup failure", "reason_code", reasonCode, "error", err)
	} else {
		fmt.Fprintf(os.Stderr, "startup failure [%s]: %v\n", reasonCode, err)
	}
	os.Exit(1)
}
