package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/syho-lab/ainewsldo/internal/config"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// Client calls an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	url     string
	model   string
	apiKey  string
	timeout time.Duration
	hc      *http.Client
	breaker *CircuitBreaker
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// NewClient creates a completion client from configuration.
func NewClient(cfg config.CompletionConfig, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}

	c := &Client{
		url:     cfg.URL,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		timeout: timeout,
		// The per-call deadline comes from the context; this is only a backstop.
		hc:      &http.Client{Timeout: 2 * timeout},
		breaker: NewCircuitBreaker(cfg.Breaker, logger.With("component", "breaker")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout is the per-call ceiling.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Model is the target model identifier.
func (c *Client) Model() string {
	return c.model
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete performs one completion request. It is not retried.
func (c *Client) Complete(ctx context.Context, req Request) Outcome {
	if err := c.breaker.Allow(); err != nil {
		return transportError("completion service paused after repeated failures", err)
	}

	out := c.complete(ctx, req)
	c.breaker.Record(out.OK())
	return out
}

func (c *Client) complete(ctx context.Context, req Request) Outcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: req.Messages(),
	})
	if err != nil {
		return transportError("encoding request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return transportError("building request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return transportError(fmt.Sprintf("no response within %s", c.timeout), err)
		}
		return transportError("request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError("reading response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstreamError(resp.StatusCode, snippet(data), nil)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return upstreamError(resp.StatusCode, "decoding response: "+err.Error(), err)
	}

	if len(parsed.Choices) == 0 {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return upstreamError(resp.StatusCode, parsed.Error.Message, nil)
		}
		return upstreamError(resp.StatusCode, "response has no choices", nil)
	}

	msg := parsed.Choices[0].Message
	if msg == nil || msg.Content == nil {
		return upstreamError(resp.StatusCode, "first choice has no message content", nil)
	}
	if strings.TrimSpace(*msg.Content) == "" {
		return upstreamError(resp.StatusCode, "first choice has empty content", nil)
	}

	return Success(*msg.Content)
}

// snippet shortens a response body for logs.
func snippet(b []byte) string {
	const max = 512
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "empty body"
	}
	if len(s) <= max {
		return s
	}
	// Cut on a rune boundary so multi-byte text stays valid UTF-8
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
