package polling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/basket/tgcore"
)

type fakeAPI struct {
	mu             sync.Mutex
	batches        [][]tgcore.Update
	batchIdx       int
	getUpdatesErrs map[int]error
	offsetsSeen    []int32
	webhookURL     string
	deleteWebhookCalls int
}

func (f *fakeAPI) GetUpdates(ctx context.Context, offset, limit, timeout int32, allowed []string) ([]tgcore.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsetsSeen = append(f.offsetsSeen, offset)

	if err, ok := f.getUpdatesErrs[f.batchIdx]; ok {
		f.batchIdx++
		return nil, err
	}
	if f.batchIdx >= len(f.batches) {
		return nil, nil
	}
	batch := f.batches[f.batchIdx]
	f.batchIdx++
	return batch, nil
}

func (f *fakeAPI) GetWebhookInfo(ctx context.Context) (tgcore.WebhookInfo, error) {
	return tgcore.WebhookInfo{URL: f.webhookURL}, nil
}

func (f *fakeAPI) DeleteWebhook(ctx context.Context, dropPendingUpdates bool) (bool, error) {
	f.deleteWebhookCalls++
	return true, nil
}

func msgUpdate(id int32) tgcore.Update {
	return tgcore.Update{ID: id, Kind: tgcore.UpdateKind{Tag: tgcore.UpdateKindMessage, Message: &tgcore.Message{}}}
}

func TestPoller_OffsetAdvancesMonotonically(t *testing.T) {
	fake := &fakeAPI{batches: [][]tgcore.Update{
		{msgUpdate(5), msgUpdate(6)},
		{msgUpdate(7)},
	}}
	p := newWithAPI(fake, WithBackoff(func(int) time.Duration { return time.Millisecond }))

	ctx, cancel := context.WithCancel(context.Background())
	var seen []int32
	go func() {
		_ = p.Run(ctx, func(ctx context.Context, updates []tgcore.Update) error {
			for _, u := range updates {
				seen = append(seen, u.ID)
			}
			if p.Offset() >= 8 {
				cancel()
			}
			return nil
		})
	}()

	<-ctx.Done()
	time.Sleep(20 * time.Millisecond)

	if p.Offset() != 8 {
		t.Fatalf("offset = %d, want 8", p.Offset())
	}
}

func TestPoller_AllowedUpdatesSentOnlyOnce(t *testing.T) {
	fake := &fakeAPI{batches: [][]tgcore.Update{{msgUpdate(1)}, {msgUpdate(2)}, {msgUpdate(3)}}}
	p := newWithAPI(fake, WithAllowedUpdates([]string{"message"}), WithBackoff(func(int) time.Duration { return time.Millisecond }))

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		_ = p.Run(ctx, func(ctx context.Context, updates []tgcore.Update) error {
			calls++
			if calls >= 3 {
				cancel()
			}
			return nil
		})
	}()
	<-ctx.Done()
	time.Sleep(20 * time.Millisecond)

	if !p.pinnedAllowedUpdates {
		t.Fatal("expected allowedUpdates to be pinned after first call")
	}
}

func TestPoller_BackoffOnError(t *testing.T) {
	fake := &fakeAPI{
		batches:        [][]tgcore.Update{{}, {msgUpdate(1)}},
		getUpdatesErrs: map[int]error{0: errors.New("boom")},
	}
	var backoffCalled bool
	p := newWithAPI(fake, WithBackoff(func(n int) time.Duration {
		backoffCalled = true
		return time.Millisecond
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = p.Run(ctx, func(ctx context.Context, updates []tgcore.Update) error {
			cancel()
			return nil
		})
	}()
	<-ctx.Done()
	time.Sleep(20 * time.Millisecond)

	if !backoffCalled {
		t.Fatal("expected backoff strategy to be invoked after a getUpdates error")
	}
}

func TestPoller_DeleteWebhookIfSetup(t *testing.T) {
	fake := &fakeAPI{webhookURL: "https://example.com/hook"}
	p := newWithAPI(fake, WithDeleteWebhook())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Run exits immediately after the pre-flight, via ctx.Done.
	_ = p.Run(ctx, func(ctx context.Context, updates []tgcore.Update) error { return nil })

	if fake.deleteWebhookCalls != 1 {
		t.Fatalf("deleteWebhookCalls = %d, want 1", fake.deleteWebhookCalls)
	}
}

// TestPoller_MalformedUpdateInBatch ensures a batch containing one
// UpdateKindError entry still advances the offset past it instead of
// stalling forever on the same offset.
func TestPoller_MalformedUpdateInBatch(t *testing.T) {
	errUpdate := tgcore.Update{ID: 2, Kind: tgcore.UpdateKind{Tag: tgcore.UpdateKindError, Raw: []byte(`{"update_id":2,"bogus":true}`)}}
	fake := &fakeAPI{batches: [][]tgcore.Update{{msgUpdate(1), errUpdate, msgUpdate(3)}}}
	p := newWithAPI(fake)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = p.Run(ctx, func(ctx context.Context, updates []tgcore.Update) error {
			cancel()
			return nil
		})
	}()
	<-ctx.Done()
	time.Sleep(20 * time.Millisecond)

	if p.Offset() != 4 {
		t.Fatalf("offset = %d, want 4 (past the malformed update)", p.Offset())
	}
}
