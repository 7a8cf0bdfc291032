package tgcore

import (
	"errors"
	"net/http"
	"net/url"
	"time"
)

// ErrNoToken is returned by FromEnv when TGCORE_TOKEN is unset.
var ErrNoToken = errors.New("tgcore: TGCORE_TOKEN is not set")

func fromEnv(getenv func(string) string, opts ...Option) (*Bot, error) {
	token := getenv("TGCORE_TOKEN")
	if token == "" {
		return nil, ErrNoToken
	}

	envOpts := []Option{}
	if apiURL := getenv("TGCORE_API_URL"); apiURL != "" {
		envOpts = append(envOpts, WithAPIURL(apiURL))
	}
	if proxy := getenv("TGCORE_PROXY"); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, err
		}
		envOpts = append(envOpts, WithClient(&http.Client{
			Timeout:   60 * time.Second,
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}))
	}

	return New(token, append(envOpts, opts...)...), nil
}
