package lookup

import (
	"context"
	"log/slog"
	"sort"

	"github.com/lepinkainen/gary/internal/book"
)

// Lookuper performs a single remote lookup for one ISBN-13.
//
// Validation and remote failures are reported through Result. A non-nil error
// means the environment is broken (for example the clock went backwards) and
// the caller must stop.
type Lookuper interface {
	Lookup(ctx context.Context, isbn13 string) (Result, error)
}

// Candidates returns the ISBNs to try for a book: remap ISBNs by descending
// priority, then the canonical ISBN. Entries are neither deduplicated nor
// re-validated.
func Candidates(canonical string, remaps []book.Remap) []string {
	sorted := make([]book.Remap, len(remaps))
	copy(sorted, remaps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	out := make([]string, 0, len(sorted)+1)
	for _, r := range sorted {
		out = append(out, r.ISBN13)
	}
	return append(out, canonical)
}

// Resolver drives a Lookuper over a book's candidate list.
type Resolver struct {
	client Lookuper
}

// NewResolver creates a Resolver backed by client.
func NewResolver(client Lookuper) *Resolver {
	return &Resolver{client: client}
}

// Resolve tries each candidate in order and returns the first found result,
// whose ISBN is the winning candidate. If every candidate fails the result
// has StatusFailed.
func (r *Resolver) Resolve(ctx context.Context, canonical string, remaps []book.Remap) (Result, error) {
	candidates := Candidates(canonical, remaps)

	for i, candidate := range candidates {
		res, err := r.client.Lookup(ctx, candidate)
		if err != nil {
			return Result{}, err
		}
		if res.Found() {
			res.ISBN = candidate
			return res, nil
		}
		slog.Debug("Candidate failed",
			"isbn", canonical,
			"candidate", candidate,
			"attempt", i+1,
			"of", len(candidates),
			"status", res.Status,
			"reason", res.Reason)
	}

	return FailedResult(canonical, "no candidate returned data"), nil
}
