// Package isbndb queries the ISBNdb book endpoint for a single ISBN-13.
package isbndb

import (
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

	"github.com/lepinkainen/gary/internal/isbn"
	"github.com/lepinkainen/gary/internal/lookup"
	"github.com/lepinkainen/gary/internal/ratelimit"
)

const (
	// DefaultURLTemplate is the endpoint for regular ISBNdb subscribers.
	// Premium and Pro plans use a different host.
	DefaultURLTemplate = "https://api2.isbndb.com/book/%s"

	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 8 << 20
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client performs throttled single-attempt lookups against ISBNdb.
type Client struct {
	urlTemplate  string
	apiKey       string
	throttle     *ratelimit.Throttle
	httpClient   HTTPDoer
	maxBodyBytes int64
}

// Compile-time check that Client implements lookup.Lookuper.
var _ lookup.Lookuper = (*Client)(nil)

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithMaxBodyBytes caps how much of a response body is read.
func WithMaxBodyBytes(n int64) Option {
	return func(client *Client) {
		if n > 0 {
			client.maxBodyBytes = n
		}
	}
}

// NewClient creates a client. urlTemplate must contain a single %s where the
// ISBN is substituted. The throttle is shared by every call made through this
// client; do not create a second client over the same throttle sequence.
func NewClient(urlTemplate, apiKey string, throttle *ratelimit.Throttle, opts ...Option) *Client {
	c := &Client{
		urlTemplate:  urlTemplate,
		apiKey:       apiKey,
		throttle:     throttle,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup queries ISBNdb once for isbn13. The ISBN must be exactly 13 decimal
// digits or the result is StatusInvalid and nothing is sent. Any remote
// problem yields StatusFailed. On success the raw response body is returned
// unmodified. The only error returned is a fatal throttle error.
func (c *Client) Lookup(ctx context.Context, isbn13 string) (lookup.Result, error) {
	if !isbn.IsDigits13(isbn13) {
		return lookup.InvalidResult(isbn13, "not 13 decimal digits"), nil
	}

	if c.throttle != nil {
		if err := c.throttle.Wait(); err != nil {
			return lookup.Result{}, fmt.Errorf("isbndb throttle: %w", err)
		}
		defer c.throttle.Mark()
	}

	body, reason := c.fetch(ctx, isbn13)
	if reason != "" {
		slog.Debug("ISBNdb lookup failed", "isbn", isbn13, "reason", reason)
		return lookup.FailedResult(isbn13, reason), nil
	}

	if reason := checkPayload(body); reason != "" {
		slog.Debug("ISBNdb response rejected", "isbn", isbn13, "reason", reason)
		return lookup.FailedResult(isbn13, reason), nil
	}

	return lookup.FoundResult(isbn13, body), nil
}

// fetch performs the GET and returns the body text, or a failure reason.
func (c *Client) fetch(ctx context.Context, isbn13 string) (string, string) {
	url := strings.Replace(c.urlTemplate, "%s", isbn13, 1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Sprintf("creating request: %v", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Sprintf("request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Sprintf("status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return "", fmt.Sprintf("reading body: %v", err)
	}
	if int64(len(raw)) > c.maxBodyBytes {
		return "", "body too large"
	}
	if !utf8.Valid(raw) {
		return "", "body is not valid UTF-8"
	}

	return string(raw), ""
}

// checkPayload verifies the body is a JSON object with an object-valued
// "book" property.
func checkPayload(body string) string {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &top); err != nil || top == nil {
		return "body is not a JSON object"
	}
	raw, ok := top["book"]
	if !ok {
		return `missing "book" property`
	}
	var bookObj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &bookObj); err != nil || bookObj == nil {
		return `"book" is not an object`
	}
	return ""
}

// ValidatePayload reports whether body has the shape of a successful lookup
// response: a JSON object with an object-valued "book" property.
func ValidatePayload(body string) error {
	if !utf8.ValidString(body) {
		return errors.New("payload is not valid UTF-8")
	}
	if reason := checkPayload(body); reason != "" {
		return errors.New(reason)
	}
	return nil
}
