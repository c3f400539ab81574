package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/lepinkainen/gary/internal/book"
)

// maxCreatedBumps bounds the search for a free created timestamp.
const maxCreatedBumps = 100_000

// ImportResult reports what AddBook did.
type ImportResult struct {
	Book  *book.Book
	Added bool
}

// AddBook records copies of the book with the given canonical ISBN-13. If the
// ISBN is already known its copy count grows by copies; otherwise a new book
// is created with the first free created timestamp at or after created.
func (s *Store) AddBook(ctx context.Context, isbn13 string, created int64, copies int) (*ImportResult, error) {
	if copies < 0 {
		return nil, fmt.Errorf("copies must not be negative, got %d", copies)
	}

	var result *ImportResult
	err := s.withTx(ctx, func(tx *Tx) error {
		existing, err := tx.BookByISBN(ctx, isbn13)
		if err == nil {
			if _, err := tx.tx.ExecContext(ctx,
				`UPDATE books SET copies = copies + ? WHERE id = ?`, copies, existing.ID); err != nil {
				return fmt.Errorf("update copies: %w", err)
			}
			existing.Copies += copies
			result = &ImportResult{Book: existing}
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		ts, err := freeCreated(ctx, tx, created)
		if err != nil {
			return err
		}

		res, err := tx.tx.ExecContext(ctx,
			`INSERT INTO books (created, isbn13, copies) VALUES (?, ?, ?)`, ts, isbn13, copies)
		if err != nil {
			return fmt.Errorf("insert book: %w", classify(err))
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		result = &ImportResult{
			Book:  &book.Book{ID: id, Created: ts, ISBN13: isbn13, Copies: copies},
			Added: true,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func freeCreated(ctx context.Context, tx *Tx, created int64) (int64, error) {
	for i := 0; i < maxCreatedBumps; i++ {
		var n int
		if err := tx.tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM books WHERE created = ?`, created).Scan(&n); err != nil {
			return 0, fmt.Errorf("check created: %w", err)
		}
		if n == 0 {
			return created, nil
		}
		created++
	}
	return 0, fmt.Errorf("no free created timestamp near %d", created)
}

// BookByISBN fetches a book by canonical ISBN-13.
func (s *Store) BookByISBN(ctx context.Context, isbn13 string) (*book.Book, error) {
	var b *book.Book
	err := s.withTx(ctx, func(tx *Tx) error {
		var err error
		b, err = tx.BookByISBN(ctx, isbn13)
		return err
	})
	return b, err
}

// DeleteBook removes a book along with its remaps and cached records.
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *Tx) error {
		res, err := tx.tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete book: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// IsPending reports whether the book has no cached data.
func (s *Store) IsPending(ctx context.Context, bookID int64) (bool, error) {
	var pending bool
	err := s.withTx(ctx, func(tx *Tx) error {
		var err error
		pending, err = tx.IsPending(ctx, bookID)
		return err
	})
	return pending, err
}
