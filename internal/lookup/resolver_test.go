package lookup

import (
	"context"
	"errors"
	"testing"

	"github.com/lepinkainen/gary/internal/book"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookuper struct {
	succeed map[string]string
	invalid map[string]bool
	err     error
	calls   []string
}

func (f *fakeLookuper) Lookup(_ context.Context, isbn13 string) (Result, error) {
	f.calls = append(f.calls, isbn13)
	if f.err != nil {
		return Result{}, f.err
	}
	if f.invalid[isbn13] {
		return InvalidResult(isbn13, "not 13 digits"), nil
	}
	if payload, ok := f.succeed[isbn13]; ok {
		return FoundResult(isbn13, payload), nil
	}
	return FailedResult(isbn13, "status 404"), nil
}

func TestCandidatesOrder(t *testing.T) {
	remaps := []book.Remap{
		{Priority: 1, ISBN13: "Y"},
		{Priority: 5, ISBN13: "X"},
		{Priority: 3, ISBN13: "W"},
	}

	got := Candidates("Z", remaps)
	assert.Equal(t, []string{"X", "W", "Y", "Z"}, got)
	// input untouched
	assert.Equal(t, "Y", remaps[0].ISBN13)
}

func TestCandidatesNoDedup(t *testing.T) {
	got := Candidates("Z", []book.Remap{{Priority: 0, ISBN13: "Z"}})
	assert.Equal(t, []string{"Z", "Z"}, got)
}

func TestResolveStopsAtFirstSuccess(t *testing.T) {
	client := &fakeLookuper{succeed: map[string]string{"Y": `{"book":{"title":"y"}}`}}
	r := NewResolver(client)

	res, err := r.Resolve(context.Background(), "Z", []book.Remap{
		{Priority: 5, ISBN13: "X"},
		{Priority: 1, ISBN13: "Y"},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusFound, res.Status)
	assert.Equal(t, "Y", res.ISBN)
	assert.Equal(t, `{"book":{"title":"y"}}`, res.Payload)
	assert.Equal(t, []string{"X", "Y"}, client.calls)
	assert.NotContains(t, client.calls, "Z")
}

func TestResolveFallsBackToCanonical(t *testing.T) {
	client := &fakeLookuper{
		succeed: map[string]string{"Z": `{"book":{}}`},
		invalid: map[string]bool{"bad": true},
	}
	r := NewResolver(client)

	res, err := r.Resolve(context.Background(), "Z", []book.Remap{{Priority: 2, ISBN13: "bad"}})
	require.NoError(t, err)
	assert.True(t, res.Found())
	assert.Equal(t, "Z", res.ISBN)
	assert.Equal(t, []string{"bad", "Z"}, client.calls)
}

func TestResolveAllFail(t *testing.T) {
	client := &fakeLookuper{}
	r := NewResolver(client)

	res, err := r.Resolve(context.Background(), "Z", []book.Remap{{Priority: 0, ISBN13: "A"}})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Empty(t, res.Payload)
	assert.Equal(t, []string{"A", "Z"}, client.calls)
}

func TestResolvePropagatesFatalError(t *testing.T) {
	boom := errors.New("clock moved backwards")
	client := &fakeLookuper{err: boom}
	r := NewResolver(client)

	_, err := r.Resolve(context.Background(), "Z", []book.Remap{{Priority: 0, ISBN13: "A"}})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"A"}, client.calls)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "found", StatusFound.String())
	assert.Equal(t, "invalid", StatusInvalid.String())
	assert.Equal(t, "failed", StatusFailed.String())
}
