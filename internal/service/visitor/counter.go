// Package visitor keeps the site's visit count in a remote key-value endpoint.
package visitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

const maxBodyBytes = 64 << 10

type payload struct {
	Visits int `json:"visits"`
}

// Counter reads, increments and writes back the visit count. The update is
// not atomic; two concurrent visits may be counted once.
type Counter struct {
	url        string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures a Counter.
type Option func(*Counter)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Counter) {
		v.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(v *Counter) {
		v.logger = logger
	}
}

// NewCounter returns a counter backed by the endpoint at url.
func NewCounter(url string, opts ...Option) *Counter {
	c := &Counter{
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Increment records one visit and returns the new total.
func (c *Counter) Increment(ctx context.Context) (int, error) {
	current, err := c.get(ctx)
	if err != nil {
		return 0, err
	}

	next := current + 1
	if err := c.put(ctx, next); err != nil {
		return 0, err
	}

	c.logger.Debug().Int("visits", next).Msg("visit recorded")
	return next, nil
}

func (c *Counter) get(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, fmt.Errorf("build counter request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return 0, err
	}

	var p payload
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &p); err != nil {
			return 0, fmt.Errorf("decode counter: %w", err)
		}
	}
	return p.Visits, nil
}

func (c *Counter) put(ctx context.Context, visits int) error {
	data, err := json.Marshal(payload{Visits: visits})
	if err != nil {
		return fmt.Errorf("encode counter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build counter request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req)
	return err
}

func (c *Counter) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s counter: %w", strings.ToLower(req.Method), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read counter response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s counter: unexpected status %s", strings.ToLower(req.Method), resp.Status)
	}
	return body, nil
}
