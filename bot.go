package tgcore

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

const defaultAPIURL = "https://api.telegram.org"

// Bot holds the credentials and HTTP client needed to call the Telegram
// Bot API. It is cheap to copy by value is not supported directly (it
// embeds a *http.Client), but a *Bot is safe for concurrent use from
// multiple goroutines: every method call is independent and stateless
// beyond the shared client and logger.
type Bot struct {
	token  string
	apiURL string
	client *http.Client
	logger *slog.Logger
}

// Option configures a Bot at construction time.
type Option func(*Bot)

// WithClient overrides the default HTTP client, e.g. to set a proxy or a
// custom timeout for long-polling.
func WithClient(client *http.Client) Option {
	return func(b *Bot) { b.client = client }
}

// WithAPIURL overrides the default https://api.telegram.org base URL, for
// local Bot API server deployments.
func WithAPIURL(url string) Option {
	return func(b *Bot) { b.apiURL = url }
}

// WithLogger sets the Bot's logger. A nil logger passed here (or omitted)
// falls back to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) { b.logger = logger }
}

// New builds a Bot for the given token.
func New(token string, opts ...Option) *Bot {
	b := &Bot{
		token:  token,
		apiURL: defaultAPIURL,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// FromEnv builds a Bot from TGCORE_TOKEN, with optional TGCORE_API_URL and
// TGCORE_PROXY overrides. Returns an error if TGCORE_TOKEN is unset.
func FromEnv(opts ...Option) (*Bot, error) {
	return fromEnv(os.Getenv, opts...)
}

// Token returns the bot's token. Callers should not log this value
// directly; use Redact from the obs/shared helpers instead.
func (b *Bot) Token() string { return b.token }

// APIURL returns the configured API base URL.
func (b *Bot) APIURL() string { return b.apiURL }
