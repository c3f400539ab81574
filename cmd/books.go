package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/lepinkainen/gary/internal/cachepass"
	"github.com/lepinkainen/gary/internal/covers"
	"github.com/lepinkainen/gary/internal/importer"
	"github.com/lepinkainen/gary/internal/isbn"
	"github.com/lepinkainen/gary/internal/ratelimit"
	"github.com/lepinkainen/gary/internal/store"
)

// ImportCmd adds books from isbn[,created[,copies]] rows.
type ImportCmd struct {
	Input string `short:"f" help:"CSV file to read (default stdin)" type:"existingfile"`
}

// JSONCmd prints the cached payload of a book, or false.
type JSONCmd struct {
	ISBN  string `arg:"" help:"ISBN-10 or ISBN-13 of the book"`
	Fetch bool   `help:"Look the book up first if it is still pending"`
}

// CoverCmd writes the cover image of a book, or prints false.
type CoverCmd struct {
	ISBN     string `arg:"" help:"ISBN-10 or ISBN-13 of the book"`
	Output   string `short:"o" help:"File to write (default stdout)" type:"path"`
	MaxWidth int    `help:"Scale the image down to at most this many pixels wide (0 keeps the full size)" default:"0"`
}

// StatusCmd prints row counts.
type StatusCmd struct{}

func (c *ImportCmd) Run(a *app) error {
	var r io.Reader = a.stdin
	if c.Input != "" {
		f, err := os.Open(c.Input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	s, err := a.openStore()
	if err != nil {
		return err
	}

	report, err := importer.ImportReader(a.ctx, s, r, a.now())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.stdout, "%d added, %d updated, %d skipped\n",
		report.Added, report.Updated, len(report.Skipped))
	return err
}

func (c *JSONCmd) Run(a *app) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}

	b, err := a.findBook(s, c.ISBN)
	if errors.Is(err, isbn.ErrInvalid) || errors.Is(err, errUnknownBook) {
		slog.Warn("No payload", "isbn", c.ISBN, "error", err)
		a.printBool(false)
		return nil
	}
	if err != nil {
		return err
	}

	if c.Fetch {
		pass, err := a.newPass(s)
		if err != nil {
			return err
		}
		outcome, err := pass.RunBook(a.ctx, b.ID)
		if err != nil {
			return err
		}
		if outcome.Status == cachepass.StatusFailed {
			slog.Info("Lookup failed", "isbn", b.ISBN13, "reason", outcome.Reason)
		}
	}

	payload, _, err := s.Payload(a.ctx, b.ID)
	if errors.Is(err, store.ErrNotFound) {
		a.printBool(false)
		return nil
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, payload)
	return err
}

func (c *CoverCmd) Run(a *app) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}

	data, err := c.cover(a, s)
	if err != nil {
		if errors.Is(err, covers.ErrNoCover) || errors.Is(err, isbn.ErrInvalid) || errors.Is(err, errUnknownBook) {
			slog.Info("Cover unavailable", "isbn", c.ISBN, "error", err)
			a.printBool(false)
			return nil
		}
		return err
	}

	if c.Output == "" {
		_, err = a.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(c.Output, data, 0o644); err != nil {
		return fmt.Errorf("write cover: %w", err)
	}
	slog.Info("Cover written", "path", c.Output, "bytes", len(data))
	return nil
}

func (c *CoverCmd) cover(a *app, s *store.Store) ([]byte, error) {
	b, err := a.findBook(s, c.ISBN)
	if err != nil {
		return nil, err
	}

	payload, _, err := s.Payload(a.ctx, b.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: book has no payload", covers.ErrNoCover)
	}
	if err != nil {
		return nil, err
	}

	url, ok := covers.ImageURL(payload)
	if !ok {
		return nil, fmt.Errorf("%w: payload has no image", covers.ErrNoCover)
	}

	fetcher := covers.NewFetcher(s, ratelimit.New("covers", a.settings.CoverRate),
		covers.WithHTTPClient(a.client()), covers.WithClock(a.now))
	res, err := fetcher.Fetch(a.ctx, url)
	if err != nil {
		return nil, err
	}

	if c.MaxWidth <= 0 {
		return res.Data, nil
	}
	data, err := covers.Resize(res.Data, c.MaxWidth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", covers.ErrNoCover, err)
	}
	return data, nil
}

func (c *StatusCmd) Run(a *app) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	st, err := s.Stats(a.ctx)
	if err != nil {
		return err
	}

	rows := [][]string{
		{"Books", strconv.FormatInt(st.Books, 10)},
		{"Copies", strconv.FormatInt(st.Copies, 10)},
		{"Pending", strconv.FormatInt(st.Pending, 10)},
		{"Resolved", strconv.FormatInt(st.Resolved, 10)},
		{"Remaps", strconv.FormatInt(st.Remaps, 10)},
		{"Query records", strconv.FormatInt(st.QueryRecords, 10)},
		{"Custom records", strconv.FormatInt(st.CustomRecords, 10)},
		{"Resources", strconv.FormatInt(st.Resources, 10)},
	}
	_, err = fmt.Fprintln(a.stdout, renderTable([]string{"Item", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	return err
}
