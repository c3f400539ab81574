package cmd

import (
	"bytes"
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/disintegration/imaging"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/gary/internal/cachepass"
	garyerrors "github.com/lepinkainen/gary/internal/errors"
	"github.com/lepinkainen/gary/internal/isbn"
	"github.com/lepinkainen/gary/internal/testutil"
)

const (
	knownISBN   = "9780306406157"
	unknownISBN = "9780804429573"
	apiKey      = "test-key"
)

func resetCmdState(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()

	t.Setenv("ISBNDB_API_KEY", "")
	t.Setenv("GARY_ISBNDB_API_KEY", "")
	t.Setenv("GARY_ISBNDB_INTERVAL_US", "1")
	t.Setenv("GARY_ISBNDB_PAUSE_US", "1")
}

func parseCLI(t *testing.T, args ...string) *CLI {
	t.Helper()

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("gary"),
		kong.Exit(func(code int) {
			t.Fatalf("unexpected Kong exit %d", code)
		}),
	)
	require.NoError(t, err)
	_, err = parser.Parse(args)
	require.NoError(t, err)
	return cli
}

// runGary runs the CLI against the database in env and returns stdout.
func runGary(t *testing.T, env *testutil.TestEnv, stdin string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	args = append([]string{"--db", env.DBPath()}, args...)
	err := run(context.Background(), args, streams{in: strings.NewReader(stdin), out: &out, err: &errOut})
	return out.String(), err
}

func coverPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(8, 8, color.NRGBA{G: 255, A: 255}), imaging.PNG))
	return buf.Bytes()
}

// fakeISBNdb serves a payload for knownISBN and 404 for everything else.
func fakeISBNdb(t *testing.T, cover []byte) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/book/" + knownISBN:
			if r.Header.Get("Authorization") != apiKey {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"book":{"title":"Known","image":"` + server.URL + `/cover.png"}}`))
		case "/cover.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(cover)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	t.Setenv("ISBNDB_API_KEY", apiKey)
	t.Setenv("GARY_ISBNDB_URL_TEMPLATE", server.URL+"/book/%s")
	return server
}

func TestCommandParsing(t *testing.T) {
	resetCmdState(t)

	cli := parseCLI(t, "remap", "add", knownISBN, unknownISBN, "-p", "3")
	assert.Equal(t, knownISBN, cli.Remap.Add.ISBN)
	assert.Equal(t, unknownISBN, cli.Remap.Add.Alternate)
	assert.Equal(t, 3, cli.Remap.Add.Priority)

	cli = parseCLI(t, "-v", "cover", knownISBN, "-o", "out.jpg", "--max-width", "200")
	assert.True(t, cli.Verbose)
	assert.Equal(t, 200, cli.Cover.MaxWidth)
	assert.True(t, strings.HasSuffix(cli.Cover.Output, "out.jpg"))

	cli = parseCLI(t, "json", "0-306-40615-2", "--fetch")
	assert.Equal(t, "0-306-40615-2", cli.JSON.ISBN)
	assert.True(t, cli.JSON.Fetch)
}

func TestImportAndStatus(t *testing.T) {
	resetCmdState(t)
	env := testutil.NewTestEnv(t)

	out, err := runGary(t, env, "isbn\n0-306-40615-2\n"+unknownISBN+"\nnot-an-isbn\n", "import")
	require.NoError(t, err)
	assert.Equal(t, "2 added, 0 updated, 1 skipped\n", out)

	path := env.WriteFileString("more.csv", knownISBN+",,2\n")
	out, err = runGary(t, env, "", "import", "-f", path)
	require.NoError(t, err)
	assert.Equal(t, "0 added, 1 updated, 0 skipped\n", out)

	out, err = runGary(t, env, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Books")
	assert.Contains(t, out, "Pending")
}

func TestPassJSONAndCover(t *testing.T) {
	resetCmdState(t)
	env := testutil.NewTestEnv(t)
	cover := coverPNG(t)
	fakeISBNdb(t, cover)

	_, err := runGary(t, env, knownISBN+"\n"+unknownISBN+"\n", "import")
	require.NoError(t, err)

	out, err := runGary(t, env, "", "pass")
	require.NoError(t, err)
	assert.Contains(t, out, "ok "+knownISBN+" via "+knownISBN)
	assert.Contains(t, out, "fail "+unknownISBN)

	out, err = runGary(t, env, "", "json", "0-306-40615-2")
	require.NoError(t, err)
	assert.Contains(t, out, `"title":"Known"`)

	out, err = runGary(t, env, "", "json", unknownISBN)
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)

	out, err = runGary(t, env, "", "cover", knownISBN)
	require.NoError(t, err)
	assert.Equal(t, string(cover), out)

	out, err = runGary(t, env, "", "cover", unknownISBN)
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)

	target := env.Path("cover.jpg")
	_, err = runGary(t, env, "", "cover", knownISBN, "-o", target, "--max-width", "4")
	require.NoError(t, err)
	written, err := os.ReadFile(target)
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(written))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	out, err = runGary(t, env, "", "pass")
	require.NoError(t, err)
	assert.Equal(t, "fail "+unknownISBN+"\n", out)
}

func TestJSONFetch(t *testing.T) {
	resetCmdState(t)
	env := testutil.NewTestEnv(t)
	fakeISBNdb(t, coverPNG(t))

	_, err := runGary(t, env, knownISBN+"\n", "import")
	require.NoError(t, err)

	out, err := runGary(t, env, "", "json", knownISBN)
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)

	out, err = runGary(t, env, "", "json", knownISBN, "--fetch")
	require.NoError(t, err)
	assert.Contains(t, out, `"title":"Known"`)
	assert.NotContains(t, out, "ok ")

	out, err = runGary(t, env, "", "json", "bogus")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)
}

func TestSync(t *testing.T) {
	resetCmdState(t)
	env := testutil.NewTestEnv(t)
	fakeISBNdb(t, coverPNG(t))

	out, err := runGary(t, env, "0-306-40615-2\n", "sync")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = runGary(t, env, knownISBN+"\n"+unknownISBN+"\n", "sync")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)
}

func TestPassRequiresAPIKey(t *testing.T) {
	resetCmdState(t)
	env := testutil.NewTestEnv(t)

	_, err := runGary(t, env, "", "pass")
	require.Error(t, err)
	assert.True(t, garyerrors.IsConfigError(err))
}

func TestInvalidConfigIsFatal(t *testing.T) {
	resetCmdState(t)
	env := testutil.NewTestEnv(t)
	t.Setenv("GARY_ISBNDB_INTERVAL_US", "0")

	_, err := runGary(t, env, "", "status")
	require.Error(t, err)
	assert.True(t, garyerrors.IsConfigError(err))
}

func TestRemapCommands(t *testing.T) {
	resetCmdState(t)
	env := testutil.NewTestEnv(t)

	_, err := runGary(t, env, knownISBN+"\n", "import")
	require.NoError(t, err)

	_, err = runGary(t, env, "", "remap", "add", "0-306-40615-2", "0-8044-2957-X", "-p", "3")
	require.NoError(t, err)

	_, err = runGary(t, env, "", "remap", "add", knownISBN, knownISBN)
	require.Error(t, err)

	_, err = runGary(t, env, "", "remap", "add", knownISBN, "9780804429574")
	require.ErrorIs(t, err, isbn.ErrInvalid)

	_, err = runGary(t, env, "", "remap", "add", unknownISBN, knownISBN)
	require.ErrorIs(t, err, errUnknownBook)

	out, err := runGary(t, env, "", "remap", "list")
	require.NoError(t, err)
	assert.Contains(t, out, unknownISBN)

	out, err = runGary(t, env, "", "remap", "export")
	require.NoError(t, err)
	assert.Contains(t, out, unknownISBN)
	assert.Contains(t, out, "priority: 3")

	yamlDoc := "- isbn: \"" + knownISBN + "\"\n  priority: 1\n  alternate: \"9781234567897\"\n" +
		"- isbn: \"9780131103627\"\n  priority: 1\n  alternate: \"9781234567897\"\n"
	out, err = runGary(t, env, yamlDoc, "remap", "import")
	require.NoError(t, err)
	assert.Equal(t, "1 remaps imported, 1 skipped\n", out)

	_, err = runGary(t, env, "", "remap", "drop", knownISBN, "3")
	require.NoError(t, err)
	_, err = runGary(t, env, "", "remap", "drop", knownISBN, "3")
	require.Error(t, err)
}

func TestCustomCommands(t *testing.T) {
	resetCmdState(t)
	env := testutil.NewTestEnv(t)

	_, err := runGary(t, env, knownISBN+"\n", "import")
	require.NoError(t, err)

	flat := env.WriteFileString("flat.json", `{"book":"flat"}`)
	_, err = runGary(t, env, "", "custom", "set", knownISBN, flat)
	require.Error(t, err)

	path := env.WriteFileString("custom.json", `{"book":{"title":"Mine"}}`)
	_, err = runGary(t, env, "", "custom", "set", knownISBN, path)
	require.NoError(t, err)

	out, err := runGary(t, env, "", "json", knownISBN)
	require.NoError(t, err)
	assert.Contains(t, out, `"title":"Mine"`)

	_, err = runGary(t, env, "", "custom", "drop", knownISBN)
	require.NoError(t, err)
	_, err = runGary(t, env, "", "custom", "drop", knownISBN)
	require.Error(t, err)
}

func TestSummaryAttrsCoverAllCounts(t *testing.T) {
	attrs := summaryAttrs(&cachepass.Summary{Staged: 10, Resolved: 4, Failed: 3, Skipped: 2, Discarded: 1})

	got := map[string]any{}
	for i := 0; i+1 < len(attrs); i += 2 {
		got[attrs[i].(string)] = attrs[i+1]
	}
	assert.Equal(t, map[string]any{
		"staged":    10,
		"resolved":  4,
		"failed":    3,
		"skipped":   2,
		"discarded": 1,
	}, got)
}
