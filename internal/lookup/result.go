// Package lookup resolves a book against the remote service by trying its
// candidate ISBNs in priority order.
package lookup

// Status classifies the outcome of a single lookup or a resolution.
type Status int

const (
	// StatusFailed means the remote call was made but produced nothing usable,
	// or every candidate failed.
	StatusFailed Status = iota
	// StatusInvalid means the ISBN was rejected before any remote call.
	StatusInvalid
	// StatusFound means a payload was retrieved.
	StatusFound
)

func (s Status) String() string {
	switch s {
	case StatusInvalid:
		return "invalid"
	case StatusFound:
		return "found"
	default:
		return "failed"
	}
}

// Result is the outcome of a lookup. ISBN is the ISBN-13 that was queried
// (the winning candidate for a resolution). Payload is the unmodified
// response body and is only set for StatusFound. Reason describes a failure.
type Result struct {
	Status  Status
	ISBN    string
	Payload string
	Reason  string
}

// Found reports whether the result carries a payload.
func (r Result) Found() bool {
	return r.Status == StatusFound
}

// InvalidResult builds a StatusInvalid result.
func InvalidResult(isbn13, reason string) Result {
	return Result{Status: StatusInvalid, ISBN: isbn13, Reason: reason}
}

// FailedResult builds a StatusFailed result.
func FailedResult(isbn13, reason string) Result {
	return Result{Status: StatusFailed, ISBN: isbn13, Reason: reason}
}

// FoundResult builds a StatusFound result.
func FoundResult(isbn13, payload string) Result {
	return Result{Status: StatusFound, ISBN: isbn13, Payload: payload}
}
