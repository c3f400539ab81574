// Package csvutil reads CSV input into typed records.
package csvutil

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ProcessorOptions configures CSV processing behavior.
type ProcessorOptions struct {
	// FieldsPerRecord sets the expected number of fields per record.
	// 0 takes the count from the first record; negative allows any count.
	FieldsPerRecord int

	// SkipInvalid controls whether to skip invalid records or return an error.
	SkipInvalid bool

	// IsHeader reports whether the first record is a header to drop. When
	// nil, the first record is treated as data.
	IsHeader func(record []string) bool

	// Comment, if set, marks lines to ignore.
	Comment rune
}

// RowError describes a record that was skipped.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// Process reads CSV records from r and converts each one with parser, which
// receives the 1-based line number of the record. With SkipInvalid set,
// records that fail to read or parse are returned as RowErrors instead of
// aborting.
func Process[T any](r io.Reader, parser func(line int, record []string) (T, error), opts ProcessorOptions) ([]T, []RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = opts.FieldsPerRecord
	reader.TrimLeadingSpace = true
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}

	var (
		items   []T
		skipped []RowError
		first   = true
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if opts.SkipInvalid && errors.As(err, &parseErr) {
				slog.Warn("Error reading record", "line", parseErr.Line, "error", err)
				skipped = append(skipped, RowError{Line: parseErr.Line, Err: err})
				continue
			}
			return nil, skipped, fmt.Errorf("read CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)

		if first {
			first = false
			if opts.IsHeader != nil && opts.IsHeader(record) {
				continue
			}
		}

		item, err := parser(line, record)
		if err != nil {
			if opts.SkipInvalid {
				slog.Warn("Skipping invalid record", "line", line, "error", err)
				skipped = append(skipped, RowError{Line: line, Err: err})
				continue
			}
			return nil, skipped, RowError{Line: line, Err: err}
		}

		items = append(items, item)
	}

	return items, skipped, nil
}

// HeaderNamed returns an IsHeader func matching a first field equal to one
// of names, ignoring case and surrounding space.
func HeaderNamed(names ...string) func([]string) bool {
	return func(record []string) bool {
		if len(record) == 0 {
			return false
		}
		field := strings.TrimSpace(record[0])
		for _, name := range names {
			if strings.EqualFold(field, name) {
				return true
			}
		}
		return false
	}
}
