package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/lepinkainen/gary/internal/book"
	"github.com/lepinkainen/gary/internal/cachepass"
	"github.com/lepinkainen/gary/internal/config"
	"github.com/lepinkainen/gary/internal/isbn"
	"github.com/lepinkainen/gary/internal/isbndb"
	"github.com/lepinkainen/gary/internal/lookup"
	"github.com/lepinkainen/gary/internal/ratelimit"
	"github.com/lepinkainen/gary/internal/store"
)

// errUnknownBook is returned when an ISBN is valid but not in the database.
var errUnknownBook = errors.New("book not in database")

// app carries the resolved settings and streams into command Run methods.
type app struct {
	ctx      context.Context
	settings config.Settings
	stdin    io.Reader
	stdout   io.Writer
	now      func() time.Time
	styles   styles

	httpClient *http.Client
	store      *store.Store
}

func (a *app) openStore() (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.Open(a.settings.DBFile)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
		a.store = nil
	}
}

func (a *app) client() *http.Client {
	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: a.settings.Timeout}
	}
	return a.httpClient
}

// newPass wires the throttle, ISBNdb client and resolver into a cache pass.
func (a *app) newPass(s *store.Store, opts ...cachepass.Option) (*cachepass.Pass, error) {
	if err := a.settings.RequireAPIKey(); err != nil {
		return nil, err
	}

	throttle, err := ratelimit.NewThrottle(a.settings.IntervalMicros, a.settings.PauseMicros)
	if err != nil {
		return nil, err
	}
	slog.Debug("Throttling ISBNdb lookups", "interval", throttle.Interval(), "pause", throttle.Pause())
	client := isbndb.NewClient(a.settings.URLTemplate, a.settings.APIKey, throttle,
		isbndb.WithHTTPClient(a.client()))

	opts = append([]cachepass.Option{
		cachepass.WithClock(a.now),
		cachepass.WithLockFile(a.settings.LockFile),
	}, opts...)
	return cachepass.New(s, lookup.NewResolver(client), opts...), nil
}

// findBook normalizes text and loads the matching book.
func (a *app) findBook(s *store.Store, text string) (*book.Book, error) {
	isbn13, err := isbn.ToISBN13(text)
	if err != nil {
		return nil, err
	}
	b, err := s.BookByISBN(a.ctx, isbn13)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", errUnknownBook, isbn13)
	}
	return b, err
}

func (a *app) printOutcome(o cachepass.Outcome) {
	var line string
	switch o.Status {
	case cachepass.StatusResolved:
		line = a.styles.ok.Render("ok") + " " + o.ISBN13 + " via " + o.QueriedISBN
	case cachepass.StatusFailed:
		line = a.styles.fail.Render("fail") + " " + o.ISBN13
	default:
		line = a.styles.skip.Render(string(o.Status)) + " " + o.ISBN13 + ": " + o.Reason
	}
	_, _ = fmt.Fprintln(a.stdout, line)
}

func (a *app) printBool(v bool) {
	_, _ = fmt.Fprintln(a.stdout, v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
