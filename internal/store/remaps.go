package store

import (
	"context"
	"fmt"

	"github.com/lepinkainen/gary/internal/book"
)

// RemapEntry is a remap joined with the canonical ISBN of its book.
type RemapEntry struct {
	book.Remap
	BookISBN13 string
}

// SetRemap adds or replaces the remap at (bookID, priority).
func (s *Store) SetRemap(ctx context.Context, bookID int64, priority int, isbn13 string) error {
	if priority < 0 {
		return fmt.Errorf("priority must not be negative, got %d", priority)
	}
	return s.withTx(ctx, func(tx *Tx) error {
		_, err := tx.tx.ExecContext(ctx,
			`INSERT INTO remaps (book_id, priority, isbn13) VALUES (?, ?, ?)
			 ON CONFLICT (book_id, priority) DO UPDATE SET isbn13 = excluded.isbn13`,
			bookID, priority, isbn13)
		if err != nil {
			return fmt.Errorf("set remap: %w", classify(err))
		}
		return nil
	})
}

// DropRemap deletes the remap at (bookID, priority). It returns ErrNotFound
// when there is none.
func (s *Store) DropRemap(ctx context.Context, bookID int64, priority int) error {
	return s.withTx(ctx, func(tx *Tx) error {
		res, err := tx.tx.ExecContext(ctx,
			`DELETE FROM remaps WHERE book_id = ? AND priority = ?`, bookID, priority)
		if err != nil {
			return fmt.Errorf("drop remap: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListRemaps returns every remap ordered by book ISBN, then descending priority.
func (s *Store) ListRemaps(ctx context.Context) ([]RemapEntry, error) {
	var entries []RemapEntry
	err := s.withTx(ctx, func(tx *Tx) error {
		rows, err := tx.tx.QueryContext(ctx,
			`SELECT r.book_id, r.priority, r.isbn13, b.isbn13
			 FROM remaps r JOIN books b ON b.id = r.book_id
			 ORDER BY b.isbn13, r.priority DESC`)
		if err != nil {
			return fmt.Errorf("list remaps: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var e RemapEntry
			if err := rows.Scan(&e.BookID, &e.Priority, &e.ISBN13, &e.BookISBN13); err != nil {
				return fmt.Errorf("scan remap: %w", err)
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Remaps lists the remaps of one book, highest priority first.
func (s *Store) Remaps(ctx context.Context, bookID int64) ([]book.Remap, error) {
	var remaps []book.Remap
	err := s.withTx(ctx, func(tx *Tx) error {
		var err error
		remaps, err = tx.Remaps(ctx, bookID)
		return err
	})
	return remaps, err
}
