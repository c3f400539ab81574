package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestEnvPathStaysInSandbox(t *testing.T) {
	env := NewTestEnv(t)

	path := env.Path("sub", "file.txt")
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, filepath.Join(env.RootDir(), "sub", "file.txt"), path)
	assert.Equal(t, env.RootDir(), env.Path("."))
}

func TestTestEnvWriteRead(t *testing.T) {
	env := NewTestEnv(t)

	abs := env.WriteFileString("nested/in.csv", "9780306406157\n")
	assert.Equal(t, env.Path("nested/in.csv"), abs)
	assert.True(t, env.FileExists("nested/in.csv"))
	assert.False(t, env.FileExists("missing"))
	assert.Equal(t, "9780306406157\n", string(env.ReadFile("nested/in.csv")))
}

func TestSeedBooks(t *testing.T) {
	env := NewTestEnv(t)
	s := env.OpenStore()

	books := SeedBooks(t, s, "9780306406157", "9780804429573")
	require.Len(t, books, 2)
	assert.Equal(t, int64(1000), books[0].Created)
	assert.Equal(t, int64(1001), books[1].Created)
	assert.True(t, env.FileExists("gary.db"))

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Pending)
}
