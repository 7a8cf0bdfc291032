package config

import (
	"context"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/basket/tgcore/throttle"
)

// LimitsSetter receives a new Limits value whenever config.yaml's limits
// section changes on disk. *throttle.Worker satisfies this via its
// SetLimits method.
type LimitsSetter interface {
	SetLimits(ctx context.Context, limits throttle.Limits)
}

// Watcher watches config.yaml for changes and pushes any updated throttle
// limits into a running worker's info channel, the mechanism behind the
// limits section being "mutable at runtime" without a daemon restart.
type Watcher struct {
	configPath string
	logger     *slog.Logger
}

// NewWatcher builds a Watcher for the config.yaml under homeDir.
func NewWatcher(homeDir string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{configPath: ConfigPath(homeDir), logger: logger}
}

// Run watches the config file and calls setter.SetLimits whenever the
// limits section changes, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, setter LimitsSetter) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.configPath); err != nil {
		w.logger.Warn("could not watch config file, hot-reload disabled", "path", w.configPath, "error", err)
		<-ctx.Done()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reloadLimits(ctx, setter)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reloadLimits(ctx context.Context, setter LimitsSetter) {
	data, err := os.ReadFile(w.configPath)
	if err != nil {
		w.logger.Warn("failed to read config on reload", "error", err)
		return
	}
	var partial struct {
		Limits LimitsConfig `yaml:"limits"`
	}
	if err := yaml.Unmarshal(data, &partial); err != nil {
		w.logger.Warn("failed to parse config on reload", "error", err)
		return
	}
	if partial.Limits == (LimitsConfig{}) {
		return
	}
	w.logger.Info("reloaded throttle limits from config", "limits", partial.Limits)
	setter.SetLimits(ctx, partial.Limits.ToThrottleLimits())
}
