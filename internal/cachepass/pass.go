// Package cachepass resolves every pending book once and caches the payload.
//
// A pass snapshots the pending books in one transaction, then handles each
// book with its own short transactions on either side of the remote lookup,
// so no transaction is ever held open across a network call.
package cachepass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/lepinkainen/gary/internal/book"
	"github.com/lepinkainen/gary/internal/lookup"
	"github.com/lepinkainen/gary/internal/store"
)

// ErrPassRunning is returned when another pass holds the pass lock.
var ErrPassRunning = errors.New("another cache pass is running")

// Resolver finds a payload for a book from its canonical ISBN and remaps.
type Resolver interface {
	Resolve(ctx context.Context, canonical string, remaps []book.Remap) (lookup.Result, error)
}

// Pass runs cache passes against a store.
type Pass struct {
	store    *store.Store
	resolver Resolver
	now      func() time.Time
	lockPath string
	report   func(Outcome)
	logger   *slog.Logger
}

// Option configures a Pass.
type Option func(*Pass)

// WithClock sets the clock used for query timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pass) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLockFile makes passes hold an exclusive lock on path while running.
func WithLockFile(path string) Option {
	return func(p *Pass) {
		p.lockPath = path
	}
}

// WithReporter registers a callback invoked once per processed book.
func WithReporter(fn func(Outcome)) Option {
	return func(p *Pass) {
		p.report = fn
	}
}

// WithLogger sets the logger. The default logger is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pass) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Pass.
func New(s *store.Store, resolver Resolver, opts ...Option) *Pass {
	p := &Pass{
		store:    s,
		resolver: resolver,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run resolves every book that is pending when the pass starts. Books are
// visited in snapshot order; failures are reported and skipped. Cancelling
// ctx stops the pass between books, and the book in flight still commits.
// Clock and store failures abort the pass and are returned along with the
// partial summary.
func (p *Pass) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: uuid.NewString()}
	logger := p.logger.With("run", summary.RunID)

	unlock, err := p.acquire()
	if err != nil {
		return summary, err
	}
	defer unlock()

	ids, err := p.snapshot(ctx)
	if err != nil {
		return summary, err
	}
	summary.Staged = len(ids)
	logger.Info("Cache pass started", "pending", len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			logger.Info("Cache pass interrupted", "done", len(summary.Outcomes), "staged", summary.Staged)
			return summary, fmt.Errorf("cache pass interrupted: %w", err)
		}

		outcome, err := p.processBook(ctx, id, logger)
		if err != nil {
			return summary, err
		}
		p.record(summary, outcome)
	}

	logger.Info("Cache pass finished",
		"resolved", summary.Resolved,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"discarded", summary.Discarded)
	return summary, nil
}

// RunBook resolves a single book if it is still pending.
func (p *Pass) RunBook(ctx context.Context, bookID int64) (Outcome, error) {
	unlock, err := p.acquire()
	if err != nil {
		return Outcome{BookID: bookID}, err
	}
	defer unlock()

	outcome, err := p.processBook(ctx, bookID, p.logger)
	if err != nil {
		return outcome, err
	}
	if p.report != nil {
		p.report(outcome)
	}
	return outcome, nil
}

func (p *Pass) acquire() (func(), error) {
	if p.lockPath == "" {
		return func() {}, nil
	}
	lock := flock.New(p.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire pass lock: %w", err)
	}
	if !ok {
		return nil, ErrPassRunning
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("Failed to release pass lock", "path", p.lockPath, "error", err)
		}
	}, nil
}

func (p *Pass) snapshot(ctx context.Context) ([]int64, error) {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	ids, err := tx.PendingBookIDs(ctx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (p *Pass) record(summary *Summary, outcome Outcome) {
	switch outcome.Status {
	case StatusResolved:
		summary.Resolved++
	case StatusFailed:
		summary.Failed++
	case StatusSkipped:
		summary.Skipped++
	case StatusDiscarded:
		summary.Discarded++
	}
	summary.Outcomes = append(summary.Outcomes, outcome)
	if p.report != nil {
		p.report(outcome)
	}
}

// processBook runs the per-book sequence: read in one transaction, resolve
// with no transaction open, then verify and write in a second transaction.
// Once started, a book is not interrupted by ctx cancellation.
func (p *Pass) processBook(ctx context.Context, bookID int64, logger *slog.Logger) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)
	outcome := Outcome{BookID: bookID}

	b, remaps, pending, err := p.readBook(ctx, bookID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		outcome.Status = StatusSkipped
		outcome.Reason = "book no longer exists"
		logger.Debug("Skipping deleted book", "book_id", bookID)
		return outcome, nil
	case err != nil:
		return outcome, err
	}
	outcome.ISBN13 = b.ISBN13
	if !pending {
		outcome.Status = StatusSkipped
		outcome.Reason = "book already resolved"
		logger.Debug("Skipping resolved book", "isbn", b.ISBN13)
		return outcome, nil
	}

	res, err := p.resolver.Resolve(ctx, b.ISBN13, remaps)
	if err != nil {
		return outcome, fmt.Errorf("resolve %s: %w", b.ISBN13, err)
	}
	if !res.Found() {
		outcome.Status = StatusFailed
		outcome.Reason = res.Reason
		logger.Info("Lookup failed", "isbn", b.ISBN13, "reason", res.Reason)
		return outcome, nil
	}

	outcome.QueriedISBN = res.ISBN
	outcome.Payload = res.Payload

	rec := book.QueryRecord{
		BookID:      bookID,
		QueriedISBN: res.ISBN,
		QueryTime:   p.now().Unix(),
		Payload:     res.Payload,
	}
	written, reason, err := p.writeRecord(ctx, rec)
	if err != nil {
		return outcome, err
	}
	if !written {
		outcome.Status = StatusDiscarded
		outcome.Reason = reason
		logger.Warn("Discarding lookup result", "isbn", b.ISBN13, "reason", reason)
		return outcome, nil
	}

	outcome.Status = StatusResolved
	logger.Info("Cached book", "isbn", b.ISBN13, "queried", res.ISBN)
	return outcome, nil
}

func (p *Pass) readBook(ctx context.Context, bookID int64) (*book.Book, []book.Remap, bool, error) {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return nil, nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	b, err := tx.Book(ctx, bookID)
	if err != nil {
		return nil, nil, false, err
	}
	pending, err := tx.IsPending(ctx, bookID)
	if err != nil {
		return nil, nil, false, err
	}
	remaps, err := tx.Remaps(ctx, bookID)
	if err != nil {
		return nil, nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, false, err
	}
	return b, remaps, pending, nil
}

// writeRecord inserts rec unless the book vanished or a record already
// exists for the same timestamp. It reports whether the record was written
// and, if not, why.
func (p *Pass) writeRecord(ctx context.Context, rec book.QueryRecord) (bool, string, error) {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return false, "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Book(ctx, rec.BookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, "book deleted during lookup", nil
		}
		return false, "", err
	}

	exists, err := tx.QueryRecordExists(ctx, rec.BookID, rec.QueryTime)
	if err != nil {
		return false, "", err
	}
	if exists {
		return false, "query record exists for timestamp", nil
	}

	if err := tx.InsertQueryRecord(ctx, rec); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return false, "query record exists for timestamp", nil
		case errors.Is(err, store.ErrNotFound):
			return false, "book deleted during lookup", nil
		}
		return false, "", err
	}
	if err := tx.Commit(); err != nil {
		return false, "", err
	}
	return true, "", nil
}
