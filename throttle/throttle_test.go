package throttle

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/basket/tgcore"
)

func TestThrottle_SendMessage_GoesThroughWorker(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
	}))
	defer srv.Close()

	bot := tgcore.New("t", tgcore.WithAPIURL(srv.URL))
	th := New(bot, DefaultLimits(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go th.RunWorker(ctx)

	sendCtx, sendCancel := context.WithTimeout(ctx, 2*time.Second)
	defer sendCancel()
	msg, err := th.SendMessage(sendCtx, tgcore.ChatID(1), "hi")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.MessageID != 1 {
		t.Errorf("MessageID = %d, want 1", msg.MessageID)
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1", requests)
	}
}

func TestThrottle_EditMessageTextInline_UsesZeroChatIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer srv.Close()

	bot := tgcore.New("t", tgcore.WithAPIURL(srv.URL))
	th := New(bot, DefaultLimits(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go th.RunWorker(ctx)

	sendCtx, sendCancel := context.WithTimeout(ctx, 2*time.Second)
	defer sendCancel()
	ok, err := th.EditMessageTextInline(sendCtx, "inline-1", "new text")
	if err != nil {
		t.Fatalf("EditMessageTextInline: %v", err)
	}
	if !ok {
		t.Error("expected true result")
	}
}

// TestThrottle_RetryAfterAttributedToSlowModeStallsOnlyThatChat covers the
// getChat-attribution path: a RetryAfter whose duration matches the
// target chat's slow-mode delay is absorbed as a per-chat stall rather
// than a global freeze, so a different chat keeps sending in the meantime.
func TestThrottle_RetryAfterAttributedToSlowModeStallsOnlyThatChat(t *testing.T) {
	const slowChatID = int64(1)
	var sendCount, getChatCount atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getChat"):
			getChatCount.Add(1)
			w.Write([]byte(`{"ok":true,"result":{"id":1,"type":"private","slow_mode_delay":1}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var body struct {
				ChatID int64 `json:"chat_id"`
			}
			b, _ := io.ReadAll(r.Body)
			json.Unmarshal(b, &body)
			if body.ChatID == slowChatID && sendCount.Add(1) == 1 {
				w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 1","parameters":{"retry_after":1}}`))
				return
			}
			w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
		default:
			t.Errorf("unexpected request path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	bot := tgcore.New("t", tgcore.WithAPIURL(srv.URL))
	th := New(bot, DefaultLimits(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go th.RunWorker(ctx)

	otherChatCalled := make(chan struct{})
	go func() {
		sendCtx, sendCancel := context.WithTimeout(ctx, 2*time.Second)
		defer sendCancel()
		th.SendMessage(sendCtx, tgcore.ChatID(2), "unaffected")
		close(otherChatCalled)
	}()

	sendCtx, sendCancel := context.WithTimeout(ctx, 3*time.Second)
	defer sendCancel()
	if _, err := th.SendMessage(sendCtx, tgcore.ChatID(slowChatID), "first"); err != nil {
		t.Fatalf("SendMessage to slow-mode chat: %v", err)
	}

	select {
	case <-otherChatCalled:
	case <-time.After(1 * time.Second):
		t.Fatal("a different chat was stalled by another chat's slow-mode-attributed freeze")
	}

	if getChatCount.Load() == 0 {
		t.Error("expected the worker to call getChat to resolve slow-mode attribution")
	}
}

func TestThrottle_Worker_ExposesUnderlyingWorker(t *testing.T) {
	bot := tgcore.New("t", tgcore.WithAPIURL("http://unused.invalid"))
	th := New(bot, DefaultLimits(), nil)
	if th.Worker() == nil {
		t.Fatal("Worker() should expose the underlying *Worker, never nil")
	}
}
