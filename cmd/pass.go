package cmd

import (
	"errors"
	"log/slog"

	"github.com/lepinkainen/gary/internal/cachepass"
	"github.com/lepinkainen/gary/internal/importer"
	"github.com/lepinkainen/gary/internal/store"
)

// PassCmd runs a cache pass over every pending book.
type PassCmd struct{}

// SyncCmd imports an ISBN list from stdin, then runs a pass.
type SyncCmd struct{}

func (c *PassCmd) Run(a *app) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	pass, err := a.newPass(s, cachepass.WithReporter(a.printOutcome))
	if err != nil {
		return err
	}

	summary, err := pass.Run(a.ctx)
	if summary != nil && summary.Staged > 0 {
		slog.Info("Pass summary", summaryAttrs(summary)...)
	}
	return err
}

func (c *SyncCmd) Run(a *app) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	pass, err := a.newPass(s)
	if err != nil {
		return err
	}

	report, err := importer.ImportReader(a.ctx, s, a.stdin, a.now())
	if err != nil {
		return err
	}

	if _, err := pass.Run(a.ctx); err != nil {
		return err
	}

	ok, err := allResolved(a, s, report.ISBNs)
	if err != nil {
		return err
	}
	a.printBool(ok && len(report.Skipped) == 0)
	return nil
}

func allResolved(a *app, s *store.Store, isbns []string) (bool, error) {
	for _, isbn13 := range isbns {
		b, err := s.BookByISBN(a.ctx, isbn13)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		pending, err := s.IsPending(a.ctx, b.ID)
		if err != nil {
			return false, err
		}
		if pending {
			return false, nil
		}
	}
	return true, nil
}

func summaryAttrs(s *cachepass.Summary) []any {
	return []any{
		"staged", s.Staged,
		"resolved", s.Resolved,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"discarded", s.Discarded,
	}
}
