// Package book holds the records kept in the gary store.
package book

// Book is a title known to the cache. It is created by import and is never
// modified by the lookup engine.
type Book struct {
	// ID is the surrogate key.
	ID int64

	// Created is the earliest time the book was seen, in Unix seconds.
	// Unique across books.
	Created int64

	// ISBN13 is the canonical ISBN-13. Unique across books.
	ISBN13 string

	// Copies is the number of copies held.
	Copies int
}

// Remap is an administrator-supplied alternate ISBN-13 tried before the
// book's own ISBN. Higher priorities are tried first.
type Remap struct {
	BookID   int64
	Priority int
	ISBN13   string
}

// QueryRecord is a successful remote lookup. (BookID, QueryTime) is unique.
type QueryRecord struct {
	BookID      int64
	QueriedISBN string
	QueryTime   int64
	Payload     string
}

// CustomRecord is a hand-authored payload that overrides remote data.
type CustomRecord struct {
	BookID  int64
	Payload string
}

// Resource is a fetched binary resource such as a cover image. It is keyed by
// URL and not linked to any book.
type Resource struct {
	URL     string
	Fetched int64
	MIME    string
	Data    []byte
}
