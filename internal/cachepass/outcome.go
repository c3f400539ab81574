package cachepass

// Status is the per-book result of a pass.
type Status string

const (
	StatusResolved  Status = "resolved"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusDiscarded Status = "discarded"
)

// Outcome describes what happened to one book.
type Outcome struct {
	BookID      int64
	ISBN13      string
	Status      Status
	QueriedISBN string
	Payload     string
	Reason      string
}

// Summary totals the outcomes of one pass.
type Summary struct {
	RunID     string
	Staged    int
	Resolved  int
	Failed    int
	Skipped   int
	Discarded int
	Outcomes  []Outcome
}

// Complete reports whether every staged book was processed.
func (s *Summary) Complete() bool {
	return len(s.Outcomes) == s.Staged
}
