package store

import (
	"context"
	"fmt"
)

// Stats summarizes the contents of the store.
type Stats struct {
	Books         int64
	Pending       int64
	Resolved      int64
	Copies        int64
	Remaps        int64
	QueryRecords  int64
	CustomRecords int64
	Resources     int64
}

// Stats counts rows across the store in one transaction.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.withTx(ctx, func(tx *Tx) error {
		counts := []struct {
			query string
			dest  *int64
		}{
			{`SELECT COUNT(1) FROM books`, &st.Books},
			{`SELECT COUNT(1) FROM books b WHERE` + pendingCondition, &st.Pending},
			{`SELECT COALESCE(SUM(copies), 0) FROM books`, &st.Copies},
			{`SELECT COUNT(1) FROM remaps`, &st.Remaps},
			{`SELECT COUNT(1) FROM query_records`, &st.QueryRecords},
			{`SELECT COUNT(1) FROM custom_records`, &st.CustomRecords},
			{`SELECT COUNT(1) FROM resources`, &st.Resources},
		}
		for _, c := range counts {
			if err := tx.tx.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
				return fmt.Errorf("count: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	st.Resolved = st.Books - st.Pending
	return &st, nil
}
