package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/basket/tgcore/throttle"
)

type fakeLimitsSetter struct {
	mu   sync.Mutex
	last throttle.Limits
	n    int
}

func (f *fakeLimitsSetter) SetLimits(ctx context.Context, limits throttle.Limits) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = limits
	f.n++
}

func (f *fakeLimitsSetter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

func TestWatcher_ReloadsLimitsOnWrite(t *testing.T) {
	home := t.TempDir()
	configPath := filepath.Join(home, "config.yaml")
	if err := os.WriteFile(configPath, []byte("token: \"t\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(home, nil)
	setter := &fakeLimitsSetter{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx, setter)
	time.Sleep(50 * time.Millisecond) // let fsnotify register the watch

	updated := []byte("token: \"t\"\nlimits:\n  per_sec_overall: 7\n  per_sec_chat: 1\n  per_min_chat: 20\n  per_min_channel_or_supergroup: 10\n")
	if err := os.WriteFile(configPath, updated, 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for setter.calls() == 0 {
		select {
		case <-deadline:
			t.Fatal("watcher did not observe the config write in time")
		case <-time.After(20 * time.Millisecond):
		}
	}

	if setter.last.PerSecOverall != 7 {
		t.Fatalf("PerSecOverall = %d, want 7", setter.last.PerSecOverall)
	}
}
