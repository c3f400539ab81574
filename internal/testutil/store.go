package testutil

import (
	"context"
	"testing"

	"github.com/lepinkainen/gary/internal/book"
	"github.com/lepinkainen/gary/internal/store"
)

// DBPath returns the path of the test database inside the sandbox.
func (e *TestEnv) DBPath() string {
	return e.Path("gary.db")
}

// OpenStore opens the sandbox database and closes it when the test ends.
func (e *TestEnv) OpenStore() *store.Store {
	e.t.Helper()

	s, err := store.Open(e.DBPath())
	if err != nil {
		e.t.Fatalf("failed to open store: %v", err)
	}
	e.t.Cleanup(func() { _ = s.Close() })
	return s
}

// NewStore opens a fresh store in its own sandbox.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	return NewTestEnv(t).OpenStore()
}

// SeedBooks adds one copy of each ISBN with consecutive created timestamps
// starting at 1000 and returns the new books in order.
func SeedBooks(t *testing.T, s *store.Store, isbns ...string) []*book.Book {
	t.Helper()

	books := make([]*book.Book, 0, len(isbns))
	for i, isbn13 := range isbns {
		res, err := s.AddBook(context.Background(), isbn13, int64(1000+i), 1)
		if err != nil {
			t.Fatalf("failed to seed book %s: %v", isbn13, err)
		}
		books = append(books, res.Book)
	}
	return books
}
