package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/basket/tgcore"
)

func msgUpdate(id int32, chatID int64) tgcore.Update {
	return tgcore.Update{
		ID: id,
		Kind: tgcore.UpdateKind{
			Tag:     tgcore.UpdateKindMessage,
			Message: &tgcore.Message{Chat: tgcore.Chat{ID: chatID}},
		},
	}
}

func TestRouter_PerChatFIFOOrdering(t *testing.T) {
	var mu sync.Mutex
	var order []int32

	r := New(func(ctx context.Context, u tgcore.Update) {
		time.Sleep(time.Millisecond) // exaggerate any reordering race
		mu.Lock()
		order = append(order, u.ID)
		mu.Unlock()
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := int32(1); i <= 10; i++ {
		r.Dispatch(ctx, msgUpdate(i, 42))
	}
	r.Shutdown()

	if len(order) != 10 {
		t.Fatalf("got %d updates, want 10", len(order))
	}
	for i, id := range order {
		if id != int32(i+1) {
			t.Fatalf("order = %v, want strictly increasing ids", order)
		}
	}
}

func TestRouter_CrossChatParallelism(t *testing.T) {
	const numChats = 5
	release := make(chan struct{})
	started := make(chan int64, numChats)

	r := New(func(ctx context.Context, u tgcore.Update) {
		started <- u.ChatIDHash().WireValue().(int64)
		<-release
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := int64(1); i <= numChats; i++ {
		r.Dispatch(ctx, msgUpdate(int32(i), i))
	}

	for i := 0; i < numChats; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d/%d chats started handling concurrently", i, numChats)
		}
	}
	close(release)
	r.Shutdown()
}

func TestRouter_DispatchNeverBlocksOnABackedUpChat(t *testing.T) {
	release := make(chan struct{})
	r := New(func(ctx context.Context, u tgcore.Update) {
		<-release
	}, nil)

	ctx := context.Background()
	const depth = 2000
	done := make(chan struct{})
	go func() {
		for i := int32(1); i <= depth; i++ {
			r.Dispatch(ctx, msgUpdate(i, 1))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch blocked once the per-chat queue grew past a fixed-size buffer")
	}

	close(release)
	r.Shutdown()
}

func TestRouter_ShutdownDrainsPendingUpdates(t *testing.T) {
	var mu sync.Mutex
	handled := 0

	r := New(func(ctx context.Context, u tgcore.Update) {
		mu.Lock()
		handled++
		mu.Unlock()
	}, nil)

	ctx := context.Background()
	for i := int32(1); i <= 5; i++ {
		r.Dispatch(ctx, msgUpdate(i, 1))
	}
	r.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	if handled != 5 {
		t.Fatalf("handled = %d, want 5 (Shutdown must drain queued updates)", handled)
	}
}
