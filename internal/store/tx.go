package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lepinkainen/gary/internal/book"
)

// pendingCondition selects books with no custom record and no query record.
const pendingCondition = `
	NOT EXISTS (SELECT 1 FROM custom_records c WHERE c.book_id = b.id)
	AND NOT EXISTS (SELECT 1 FROM query_records q WHERE q.book_id = b.id)`

// Tx is a transaction over the store.
type Tx struct {
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. It is safe to call after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// PendingBookIDs lists books with no cached data, oldest first.
func (t *Tx) PendingBookIDs(ctx context.Context) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT b.id FROM books b WHERE`+pendingCondition+` ORDER BY b.created, b.id`)
	if err != nil {
		return nil, fmt.Errorf("list pending books: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending book: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending books: %w", err)
	}
	return ids, nil
}

// IsPending reports whether the book has neither a custom nor a query record.
func (t *Tx) IsPending(ctx context.Context, bookID int64) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM books b WHERE b.id = ? AND`+pendingCondition, bookID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check pending: %w", err)
	}
	return n > 0, nil
}

// Book fetches a book by id. It returns ErrNotFound if the book is gone.
func (t *Tx) Book(ctx context.Context, id int64) (*book.Book, error) {
	return scanBook(t.tx.QueryRowContext(ctx,
		`SELECT id, created, isbn13, copies FROM books WHERE id = ?`, id))
}

// BookByISBN fetches a book by canonical ISBN-13. It returns ErrNotFound if
// no book has that ISBN.
func (t *Tx) BookByISBN(ctx context.Context, isbn13 string) (*book.Book, error) {
	return scanBook(t.tx.QueryRowContext(ctx,
		`SELECT id, created, isbn13, copies FROM books WHERE isbn13 = ?`, isbn13))
}

func scanBook(row *sql.Row) (*book.Book, error) {
	var b book.Book
	err := row.Scan(&b.ID, &b.Created, &b.ISBN13, &b.Copies)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &b, nil
}

// Remaps lists the remap entries of a book, highest priority first.
func (t *Tx) Remaps(ctx context.Context, bookID int64) ([]book.Remap, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT book_id, priority, isbn13 FROM remaps WHERE book_id = ? ORDER BY priority DESC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("list remaps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var remaps []book.Remap
	for rows.Next() {
		var r book.Remap
		if err := rows.Scan(&r.BookID, &r.Priority, &r.ISBN13); err != nil {
			return nil, fmt.Errorf("scan remap: %w", err)
		}
		remaps = append(remaps, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate remaps: %w", err)
	}
	return remaps, nil
}

// QueryRecordExists reports whether a query record exists for (bookID, queryTime).
func (t *Tx) QueryRecordExists(ctx context.Context, bookID, queryTime int64) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM query_records WHERE book_id = ? AND query_time = ?`,
		bookID, queryTime).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check query record: %w", err)
	}
	return n > 0, nil
}

// InsertQueryRecord writes a new query record. A clash on (book, time)
// returns ErrDuplicate; a missing book returns ErrNotFound.
func (t *Tx) InsertQueryRecord(ctx context.Context, rec book.QueryRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO query_records (book_id, queried_isbn, query_time, payload) VALUES (?, ?, ?, ?)`,
		rec.BookID, rec.QueriedISBN, rec.QueryTime, rec.Payload)
	if err != nil {
		return fmt.Errorf("insert query record: %w", classify(err))
	}
	return nil
}
