package covers

import (
	"bytes"
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/gary/internal/ratelimit"
	"github.com/lepinkainen/gary/internal/store"
	"github.com/lepinkainen/gary/internal/testutil"
)

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestImageURL(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
		want    string
		ok      bool
	}{
		{name: "https image", payload: `{"book":{"image":"https://images.example.com/c.jpg"}}`, want: "https://images.example.com/c.jpg", ok: true},
		{name: "no image", payload: `{"book":{"title":"x"}}`},
		{name: "relative image", payload: `{"book":{"image":"/c.jpg"}}`},
		{name: "not json", payload: `nope`},
		{name: "image not a string", payload: `{"book":{"image":5}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ImageURL(tc.payload)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFetchStoresAndReuses(t *testing.T) {
	png := testPNG(t, 10, 10)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))
	defer server.Close()

	s := testutil.NewStore(t)
	fetched := time.Unix(1_700_000_000, 0)
	f := NewFetcher(s, ratelimit.New("covers", 0), WithClock(func() time.Time { return fetched }))
	url := server.URL + "/cover.png"

	res, err := f.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, png, res.Data)
	assert.Equal(t, "image/png", res.MIME)
	assert.Equal(t, fetched.Unix(), res.Fetched)

	again, err := f.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, png, again.Data)
	assert.Equal(t, int32(1), hits.Load())

	stored, err := s.Resource(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, png, stored.Data)
}

func TestFetchSniffsMissingContentType(t *testing.T) {
	png := testPNG(t, 4, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(png)
	}))
	defer server.Close()

	res, err := NewFetcher(testutil.NewStore(t), nil).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.MIME)
}

func TestFetchFailureIsNotStored(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	s := testutil.NewStore(t)
	_, err := NewFetcher(s, nil).Fetch(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrNoCover)

	_, err = s.Resource(context.Background(), server.URL)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestResize(t *testing.T) {
	png := testPNG(t, 100, 50)

	out, err := Resize(png, 40)
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())

	same, err := Resize(png, 200)
	require.NoError(t, err)
	assert.Equal(t, png, same)

	_, err = Resize([]byte("not an image"), 40)
	require.Error(t, err)
}
