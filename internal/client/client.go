// Package client talks to a running llama-server over HTTP: streaming chat
// completions, health classification, and capability discovery. It never
// spawns anything; pair it with the supervisor for that.
package client

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultConnectTimeout = 5 * time.Second

// Config encapsulates client construction.
type Config struct {
	// BaseURL of the server, e.g. "http://127.0.0.1:8080". A wildcard
	// host (0.0.0.0, ::) is rewritten to loopback since it is a bind
	// address, not a dialable one.
	BaseURL string
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
	// Model is the model name forwarded with each completion request.
	// llama-server serves a single model and treats it as advisory.
	Model string
	// ConnectTimeout bounds dialing. Zero means 5s.
	ConnectTimeout time.Duration
	// Logger for skipped stream lines and the like. The zero value is
	// silent.
	Logger zerolog.Logger
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	log        zerolog.Logger
}

// New builds a Client. It performs no I/O.
func New(cfg Config) *Client {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Intentionally Timeout=0: streamed completions outlive any static
	// timeout, so every request carries a context deadline instead.
	return &Client{
		baseURL:    normalizeBaseURL(cfg.BaseURL),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Transport: tr, Timeout: 0},
		log:        cfg.Logger,
	}
}

// BaseURL returns the normalized base URL requests go to.
func (c *Client) BaseURL() string { return c.baseURL }

func normalizeBaseURL(raw string) string {
	trimmed := strings.TrimRight(raw, "/")
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}
	switch u.Hostname() {
	case "0.0.0.0", "::":
		if port := u.Port(); port != "" {
			u.Host = net.JoinHostPort("127.0.0.1", port)
		} else {
			u.Host = "127.0.0.1"
		}
		return u.String()
	}
	return trimmed
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
