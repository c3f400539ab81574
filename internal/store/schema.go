package store

// SQL schemas for the gary database.
// Every timestamp column holds integer seconds since the Unix epoch.

// schemaVersion is the current schema version. Bump it when the schema changes.
const schemaVersion = 1

// SchemaVersionSchema records the schema version of an initialized database.
const SchemaVersionSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);
`

// BooksSchema defines the books imported into the cache.
const BooksSchema = `
CREATE TABLE IF NOT EXISTS books (
	id INTEGER PRIMARY KEY ASC,
	created INTEGER UNIQUE NOT NULL,
	isbn13 TEXT UNIQUE NOT NULL,
	copies INTEGER NOT NULL DEFAULT 0 CHECK (copies >= 0)
);

CREATE INDEX IF NOT EXISTS idx_books_created ON books(created);
`

// RemapsSchema defines alternate ISBNs to query for a book, by priority.
const RemapsSchema = `
CREATE TABLE IF NOT EXISTS remaps (
	id INTEGER PRIMARY KEY ASC,
	book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	priority INTEGER NOT NULL CHECK (priority >= 0),
	isbn13 TEXT NOT NULL,
	UNIQUE (book_id, priority)
);

CREATE INDEX IF NOT EXISTS idx_remaps_book ON remaps(book_id);
`

// CustomRecordsSchema defines hand-authored payloads overriding remote data.
const CustomRecordsSchema = `
CREATE TABLE IF NOT EXISTS custom_records (
	id INTEGER PRIMARY KEY ASC,
	book_id INTEGER UNIQUE NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	payload TEXT NOT NULL
);
`

// QueryRecordsSchema defines successful remote lookups. (book_id, query_time)
// is the write-once key.
const QueryRecordsSchema = `
CREATE TABLE IF NOT EXISTS query_records (
	id INTEGER PRIMARY KEY ASC,
	book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	queried_isbn TEXT NOT NULL,
	query_time INTEGER NOT NULL,
	payload TEXT NOT NULL,
	UNIQUE (book_id, query_time)
);

CREATE INDEX IF NOT EXISTS idx_query_records_book ON query_records(book_id);
`

// ResourcesSchema defines fetched binary resources such as cover images.
// Resources are keyed by URL and are not linked to books.
const ResourcesSchema = `
CREATE TABLE IF NOT EXISTS resources (
	id INTEGER PRIMARY KEY ASC,
	url TEXT UNIQUE NOT NULL,
	fetched INTEGER NOT NULL,
	mime TEXT NOT NULL,
	data BLOB NOT NULL
);
`

// AllSchemas contains every table schema in creation order.
var AllSchemas = []string{
	SchemaVersionSchema,
	BooksSchema,
	RemapsSchema,
	CustomRecordsSchema,
	QueryRecordsSchema,
	ResourcesSchema,
}
