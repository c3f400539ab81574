package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lepinkainen/gary/internal/book"
)

// PayloadSource says where a cached payload came from.
type PayloadSource string

const (
	SourceCustom PayloadSource = "custom"
	SourceQuery  PayloadSource = "query"
)

// SetCustom adds or replaces the custom record of a book.
func (s *Store) SetCustom(ctx context.Context, bookID int64, payload string) error {
	return s.withTx(ctx, func(tx *Tx) error {
		_, err := tx.tx.ExecContext(ctx,
			`INSERT INTO custom_records (book_id, payload) VALUES (?, ?)
			 ON CONFLICT (book_id) DO UPDATE SET payload = excluded.payload`,
			bookID, payload)
		if err != nil {
			return fmt.Errorf("set custom record: %w", classify(err))
		}
		return nil
	})
}

// DropCustom deletes the custom record of a book. It returns ErrNotFound
// when there is none.
func (s *Store) DropCustom(ctx context.Context, bookID int64) error {
	return s.withTx(ctx, func(tx *Tx) error {
		res, err := tx.tx.ExecContext(ctx, `DELETE FROM custom_records WHERE book_id = ?`, bookID)
		if err != nil {
			return fmt.Errorf("drop custom record: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Payload returns the cached payload for a book: the custom record if there
// is one, otherwise the most recent query record. It returns ErrNotFound
// when the book has neither.
func (s *Store) Payload(ctx context.Context, bookID int64) (string, PayloadSource, error) {
	var (
		payload string
		source  PayloadSource
	)
	err := s.withTx(ctx, func(tx *Tx) error {
		err := tx.tx.QueryRowContext(ctx,
			`SELECT payload FROM custom_records WHERE book_id = ?`, bookID).Scan(&payload)
		if err == nil {
			source = SourceCustom
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read custom record: %w", err)
		}

		err = tx.tx.QueryRowContext(ctx,
			`SELECT payload FROM query_records WHERE book_id = ?
			 ORDER BY query_time DESC, id DESC LIMIT 1`, bookID).Scan(&payload)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read query record: %w", err)
		}
		source = SourceQuery
		return nil
	})
	if err != nil {
		return "", "", err
	}
	return payload, source, nil
}

// QueryRecords lists the query records of a book, oldest first.
func (s *Store) QueryRecords(ctx context.Context, bookID int64) ([]book.QueryRecord, error) {
	var records []book.QueryRecord
	err := s.withTx(ctx, func(tx *Tx) error {
		rows, err := tx.tx.QueryContext(ctx,
			`SELECT book_id, queried_isbn, query_time, payload FROM query_records
			 WHERE book_id = ? ORDER BY query_time, id`, bookID)
		if err != nil {
			return fmt.Errorf("list query records: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var r book.QueryRecord
			if err := rows.Scan(&r.BookID, &r.QueriedISBN, &r.QueryTime, &r.Payload); err != nil {
				return fmt.Errorf("scan query record: %w", err)
			}
			records = append(records, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
