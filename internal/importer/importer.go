// Package importer turns ISBN lists into books in the store.
package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lepinkainen/gary/internal/csvutil"
	"github.com/lepinkainen/gary/internal/isbn"
	"github.com/lepinkainen/gary/internal/store"
)

// Entry is one parsed row of a book list.
type Entry struct {
	Line    int
	ISBN13  string
	Created int64
	Copies  int
}

// Report summarizes an import.
type Report struct {
	Added   int
	Updated int
	Skipped []csvutil.RowError
	ISBNs   []string
}

// Parse reads rows of isbn[,created[,copies]] from r. A leading header row
// whose first field is "isbn" or "isbn13" is ignored, as are lines starting
// with '#'. created is Unix seconds or an RFC 3339 / YYYY-MM-DD date and
// defaults to now; copies defaults to 1. Invalid rows are returned as
// skipped rather than failing the whole list.
func Parse(r io.Reader, now time.Time) ([]Entry, []csvutil.RowError, error) {
	parser := func(line int, record []string) (Entry, error) {
		return parseEntry(line, record, now)
	}
	return csvutil.Process(r, parser, csvutil.ProcessorOptions{
		FieldsPerRecord: -1,
		SkipInvalid:     true,
		IsHeader:        csvutil.HeaderNamed("isbn", "isbn13"),
		Comment:         '#',
	})
}

func parseEntry(line int, record []string, now time.Time) (Entry, error) {
	if len(record) > 3 {
		return Entry{}, fmt.Errorf("expected at most 3 fields, got %d", len(record))
	}

	isbn13, err := isbn.ToISBN13(record[0])
	if err != nil {
		return Entry{}, err
	}
	e := Entry{Line: line, ISBN13: isbn13, Created: now.Unix(), Copies: 1}

	if len(record) > 1 && strings.TrimSpace(record[1]) != "" {
		if e.Created, err = parseCreated(record[1]); err != nil {
			return Entry{}, err
		}
	}
	if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
		e.Copies, err = strconv.Atoi(strings.TrimSpace(record[2]))
		if err != nil || e.Copies < 0 {
			return Entry{}, fmt.Errorf("invalid copies %q", record[2])
		}
	}
	return e, nil
}

func parseCreated(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("invalid created %q", s)
		}
		return n, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("invalid created %q", s)
}

// Import adds every entry to the store. Known ISBNs get their copy count
// increased; new ones become pending books.
func Import(ctx context.Context, s *store.Store, entries []Entry) (*Report, error) {
	report := &Report{}
	for _, e := range entries {
		res, err := s.AddBook(ctx, e.ISBN13, e.Created, e.Copies)
		if err != nil {
			return report, fmt.Errorf("line %d: add %s: %w", e.Line, e.ISBN13, err)
		}
		if res.Added {
			report.Added++
			slog.Debug("Added book", "isbn", e.ISBN13, "created", res.Book.Created)
		} else {
			report.Updated++
			slog.Debug("Updated copies", "isbn", e.ISBN13, "copies", res.Book.Copies)
		}
		report.ISBNs = append(report.ISBNs, e.ISBN13)
	}
	return report, nil
}

// ImportReader parses r and imports the valid rows.
func ImportReader(ctx context.Context, s *store.Store, r io.Reader, now time.Time) (*Report, error) {
	entries, skipped, err := Parse(r, now)
	if err != nil {
		return nil, err
	}
	report, err := Import(ctx, s, entries)
	if report != nil {
		report.Skipped = skipped
	}
	return report, err
}
