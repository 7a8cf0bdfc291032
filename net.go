package tgcore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/basket/tgcore/internal/shared"
	"github.com/basket/tgcore/multipart"
)

// delayOnServerError is how long execute() sleeps before returning a 5xx
// error to the caller, grounded on net/request.rs's DELAY_ON_SERVER_ERROR.
// Telegram's own infrastructure needs time to recover; retrying instantly
// just adds load.
const delayOnServerError = 10 * time.Second

// execute runs payload against the Bot API and decodes its `result` into
// out. JSON or multipart encoding is chosen based on whether payload
// carries any attached files.
func (b *Bot) execute(ctx context.Context, payload Payload, out any) error {
	method := strings.TrimSuffix(payload.MethodName(), "Inline")

	var (
		body        []byte
		err         error
		contentType string
	)
	if multipart.HasUploads(payload) {
		body, contentType, err = multipart.Encode(payload)
	} else {
		contentType = "application/json"
		body, err = json.Marshal(payload)
	}
	if err != nil {
		return ioError(err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", b.apiURL, b.token, method)
	raw, reqErr := b.doRequest(ctx, url, contentType, body)
	if reqErr != nil {
		return reqErr
	}

	if _, ok := payload.(*GetUpdates); ok {
		updates, err := decodeUpdates(raw, b.logger)
		if err != nil {
			return err
		}
		if dst, ok := out.(*[]Update); ok {
			*dst = updates
		}
		return nil
	}

	return decodeResult(raw, out)
}

func (b *Bot) doRequest(ctx context.Context, url, contentType string, body []byte) ([]byte, *RequestError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, ioError(err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ioError(err)
	}

	if resp.StatusCode >= 500 {
		b.logger.Warn("telegram server error, backing off",
			"status", resp.StatusCode, "delay", delayOnServerError, "trace_id", shared.TraceID(ctx))
		select {
		case <-time.After(delayOnServerError):
		case <-ctx.Done():
			return nil, networkError(ctx.Err())
		}
		return nil, networkError(fmt.Errorf("server error: status %d", resp.StatusCode))
	}

	return raw, nil
}

func decodeResult(raw []byte, out any) error {
	var env telegramEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return invalidJSONError(err, string(raw))
	}
	if !env.OK {
		return classifyFailure(env)
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return invalidJSONError(err, string(env.Result))
	}
	return nil
}

// decodeUpdates is the GetUpdates-specific decode path. A batch containing
// one malformed update must not fail the whole call: each element is
// parsed independently and a parse failure becomes an UpdateKindError entry
// carrying the original raw JSON, mirroring net/request.rs's
// TypeId-downcast-and-reparse hack for Vec<Update>.
func decodeUpdates(raw []byte, logger *slog.Logger) ([]Update, error) {
	var env telegramEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, invalidJSONError(err, string(raw))
	}
	if !env.OK {
		return nil, classifyFailure(env)
	}

	var rawUpdates []json.RawMessage
	if err := json.Unmarshal(env.Result, &rawUpdates); err != nil {
		return nil, invalidJSONError(err, string(env.Result))
	}

	updates := make([]Update, 0, len(rawUpdates))
	for _, ru := range rawUpdates {
		u, err := parseUpdate(ru)
		if err != nil {
			logger.Warn("failed to parse update, backfilling error update", "error", err)
			u = errorUpdateFromRaw(ru, err)
		}
		updates = append(updates, u)
	}
	return updates, nil
}
