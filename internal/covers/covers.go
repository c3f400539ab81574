// Package covers fetches cover images referenced by cached payloads and
// keeps them in the store's resource table.
package covers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/lepinkainen/gary/internal/book"
	"github.com/lepinkainen/gary/internal/ratelimit"
	"github.com/lepinkainen/gary/internal/store"
)

const defaultMaxBytes = 16 << 20

// ErrNoCover is returned when a payload carries no usable image URL or the
// image cannot be downloaded.
var ErrNoCover = errors.New("no cover available")

// HTTPDoer is implemented by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads cover images once and serves repeats from the store.
type Fetcher struct {
	store      *store.Store
	limiter    *ratelimit.Limiter
	httpClient HTTPDoer
	now        func() time.Time
	maxBytes   int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// WithClock sets the clock used for fetch timestamps.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

// NewFetcher creates a Fetcher. limiter may be nil.
func NewFetcher(s *store.Store, limiter *ratelimit.Limiter, opts ...Option) *Fetcher {
	f := &Fetcher{
		store:      s,
		limiter:    limiter,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
		maxBytes:   defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ImageURL extracts book.image from a lookup payload.
func ImageURL(payload string) (string, bool) {
	var doc struct {
		Book struct {
			Image string `json:"image"`
		} `json:"book"`
	}
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return "", false
	}
	u := strings.TrimSpace(doc.Book.Image)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return "", false
	}
	return u, true
}

// Fetch returns the resource stored for url, downloading it first if it has
// never been fetched.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*book.Resource, error) {
	res, err := f.store.Resource(ctx, url)
	if err == nil {
		slog.Debug("Cover served from store", "url", url)
		return res, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	data, mimeType, err := f.download(ctx, url)
	if err != nil {
		slog.Warn("Cover download failed", "url", url, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrNoCover, err)
	}

	res = &book.Resource{URL: url, Fetched: f.now().Unix(), MIME: mimeType, Data: data}
	if err := f.store.PutResource(ctx, *res); err != nil {
		return nil, err
	}
	slog.Debug("Cover downloaded", "url", url, "bytes", len(data), "mime", mimeType)
	return res, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("unexpected status %d downloading cover", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("cover exceeds %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty cover body")
	}

	mimeType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

// Resize scales an image down to maxWidth, keeping its aspect ratio, and
// re-encodes it as JPEG. Images already narrow enough are returned as is.
func Resize(data []byte, maxWidth int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode cover: %w", err)
	}
	if maxWidth <= 0 || img.Bounds().Dx() <= maxWidth {
		return data, nil
	}

	img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode cover: %w", err)
	}
	return buf.Bytes(), nil
}
