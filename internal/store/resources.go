package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lepinkainen/gary/internal/book"
)

// PutResource stores or replaces the resource for its URL.
func (s *Store) PutResource(ctx context.Context, r book.Resource) error {
	return s.withTx(ctx, func(tx *Tx) error {
		_, err := tx.tx.ExecContext(ctx,
			`INSERT INTO resources (url, fetched, mime, data) VALUES (?, ?, ?, ?)
			 ON CONFLICT (url) DO UPDATE SET
			   fetched = excluded.fetched, mime = excluded.mime, data = excluded.data`,
			r.URL, r.Fetched, r.MIME, r.Data)
		if err != nil {
			return fmt.Errorf("put resource: %w", err)
		}
		return nil
	})
}

// Resource fetches a stored resource by URL. It returns ErrNotFound if the
// URL has not been fetched.
func (s *Store) Resource(ctx context.Context, url string) (*book.Resource, error) {
	var r book.Resource
	err := s.withTx(ctx, func(tx *Tx) error {
		err := tx.tx.QueryRowContext(ctx,
			`SELECT url, fetched, mime, data FROM resources WHERE url = ?`, url).
			Scan(&r.URL, &r.Fetched, &r.MIME, &r.Data)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get resource: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}
