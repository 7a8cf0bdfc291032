package tgcore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testBot(t *testing.T, handler http.HandlerFunc) *Bot {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("test-token", WithAPIURL(srv.URL))
}

func TestBot_SendMessage_DecodesResult(t *testing.T) {
	bot := testBot(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Path; got != "/bottest-token/sendMessage" {
			t.Errorf("request path = %q", got)
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":1,"type":"private"}}}`))
	})

	msg, err := bot.SendMessage(ChatID(1), "hi").Send(context.Background())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.MessageID != 7 {
		t.Errorf("MessageID = %d, want 7", msg.MessageID)
	}
}

func TestBot_SendMessage_ApiErrorClassified(t *testing.T) {
	bot := testBot(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	})

	_, err := bot.SendMessage(ChatID(1), "hi").Send(context.Background())
	var reqErr *RequestError
	if !asRequestError(err, &reqErr) {
		t.Fatalf("err = %v, want *RequestError", err)
	}
	if reqErr.Api != ApiErrorChatNotFound {
		t.Errorf("Api = %v, want ApiErrorChatNotFound", reqErr.Api)
	}
}

func TestBot_GetUpdates_IsolatesMalformedUpdate(t *testing.T) {
	bot := testBot(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"result":[
			{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}},
			{"update_id":2,"message":"not-an-object"}
		]}`))
	})

	updates, err := bot.GetUpdates(0, 10, 0, nil).Send(context.Background())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("len(updates) = %d, want 2", len(updates))
	}
	if updates[0].Kind.Tag != UpdateKindMessage {
		t.Errorf("updates[0].Kind.Tag = %v, want UpdateKindMessage", updates[0].Kind.Tag)
	}
	if updates[1].Kind.Tag != UpdateKindError {
		t.Errorf("updates[1].Kind.Tag = %v, want UpdateKindError", updates[1].Kind.Tag)
	}
	if updates[1].ID != 2 {
		t.Errorf("updates[1].ID = %d, want 2 (must survive the parse failure)", updates[1].ID)
	}
}

func TestBot_EditMessageTextInline_StripsInlineSuffixFromMethodName(t *testing.T) {
	var gotPath string
	bot := testBot(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"ok":true,"result":true}`))
	})

	ok, err := bot.EditMessageTextInline("inline-id", "new text").Send(context.Background())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !ok {
		t.Error("expected true result")
	}
	if gotPath != "/bottest-token/editMessageText" {
		t.Errorf("request path = %q, want the Inline suffix stripped", gotPath)
	}
}

func TestBot_SendPhoto_WithUploadUsesMultipart(t *testing.T) {
	var gotContentType string
	bot := testBot(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
	})

	_, err := bot.SendPhoto(ChatID(1), FileBytes{Name: "a.png", Data: []byte("x")}).Send(context.Background())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := gotContentType; len(got) < len("multipart/form-data") || got[:len("multipart/form-data")] != "multipart/form-data" {
		t.Errorf("Content-Type = %q, want multipart/form-data", got)
	}
}
