package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bassista/snipsync/internal/api/route"
	"github.com/bassista/snipsync/internal/config"
	"github.com/bassista/snipsync/internal/model"
	"github.com/bassista/snipsync/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const superSnippet = "9af91631-cdfc-4341-9b8e-3694e5cb3672"

// resetFlags puts every flag back to its default; cobra keeps values between
// executions in one process.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

type harness struct {
	t      *testing.T
	url    string
	prefs  string
	config string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(home)

	gin.SetMode(gin.TestMode)
	store, err := repository.NewStore(nil)
	require.NoError(t, err)
	srv := httptest.NewServer(route.SetupRoutes(store, config.ServerConfig{
		RequestTimeout:     5 * time.Second,
		CORSAllowedOrigins: "*",
	}))
	t.Cleanup(srv.Close)

	return &harness{
		t:      t,
		url:    srv.URL,
		prefs:  filepath.Join(home, "prefs.toml"),
		config: home,
	}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", h.config, "--prefs", h.prefs, "--base-url", h.url, "--token", "alice"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) runJSON(v any, args ...string) {
	h.t.Helper()
	out, err := h.run(append(args, "-o", "json")...)
	require.NoError(h.t, err, out)
	require.NoError(h.t, json.Unmarshal([]byte(out), v), out)
}

func TestRootCommandHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"list", "get", "create", "update", "delete", "share", "format", "rules", "file-types", "tests", "admin", "prefs", "serve", "version"} {
		assert.True(t, names[want], "root command missing subcommand %q", want)
	}
}

func TestVersionOutput(t *testing.T) {
	var out bytes.Buffer
	resetFlags(rootCmd)
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "snipsync dev (commit none, built unknown)\n", out.String())
}

func TestList(t *testing.T) {
	h := newHarness(t)

	var page model.Page
	h.runJSON(&page, "list", "--page-size", "2", "--sort-by", "name")
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.PageSize)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Boaring Snippet", page.Items[0].Name)
	assert.Equal(t, model.ComplianceCompliant, page.Items[0].Compliance)

	h.runJSON(&page, "list", "--invalid")
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Extra cool Snippet", page.Items[0].Name)

	out, err := h.run("list", "--name", "nothing like this")
	require.NoError(t, err)
	assert.Contains(t, out, "No snippets found.")

	out, err = h.run("list")
	require.NoError(t, err)
	assert.Contains(t, out, "Super Snippet")
	assert.Contains(t, out, "page 1 of 1 (3 snippets)")
}

func TestList_RejectedFilter(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("list", "--relation", "friends")
	assert.Error(t, err)
}

func TestSnippetLifecycle(t *testing.T) {
	h := newHarness(t)

	src := filepath.Join(t.TempDir(), "hello.py")
	require.NoError(t, os.WriteFile(src, []byte("print('hi')"), 0o644))

	var created model.SnippetDetail
	h.runJSON(&created, "create", "--name", "hello", "--language", "python", "--file", src)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "py", created.Extension)
	assert.Equal(t, "alice", created.Author)
	assert.Equal(t, "print('hi')", created.Content)

	var got model.SnippetDetail
	h.runJSON(&got, "get", created.ID)
	assert.Equal(t, "hello", got.Name)

	var updated model.SnippetDetail
	h.runJSON(&updated, "update", created.ID, "--name", "hello again", "--description", "greets")
	assert.Equal(t, "hello again", updated.Name)
	assert.Equal(t, "greets", updated.Description)

	out, err := h.run("update", created.ID, "--name", "hello again")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to save.")

	out, err = h.run("share", created.ID, "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "Shared hello again with bob")

	out, err = h.run("delete", created.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted snippet "+created.ID)

	_, err = h.run("get", created.ID)
	assert.Error(t, err)
}

func TestCreate_MissingFlags(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("create", "--name", "x")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	h := newHarness(t)

	src := filepath.Join(t.TempDir(), "a.prs")
	require.NoError(t, os.WriteFile(src, []byte("let a:number=1;"), 0o644))
	var created model.SnippetDetail
	h.runJSON(&created, "create", "--name", "a", "--language", "printscript", "--file", src)
	assert.Equal(t, "1.1", created.Version)

	var preview map[string]string
	h.runJSON(&preview, "format", created.ID)
	assert.Equal(t, "let a : number = 1;", preview["formatted"])

	var stored model.SnippetDetail
	h.runJSON(&stored, "get", created.ID)
	assert.Equal(t, "let a:number=1;", stored.Content)

	h.runJSON(&stored, "format", created.ID, "--write")
	assert.Equal(t, "let a : number = 1;", stored.Content)
}

func TestRules(t *testing.T) {
	h := newHarness(t)

	var rules []model.Rule
	h.runJSON(&rules, "rules", "formatting")
	require.Len(t, rules, 7)
	id := rules[0].ID
	require.True(t, rules[0].Active)

	h.runJSON(&rules, "rules", "formatting", "--disable", id)
	require.Len(t, rules, 7)
	assert.False(t, rules[0].Active)

	_, err := h.run("rules", "formatting", "--enable", "no-such-rule")
	assert.Error(t, err)

	_, err = h.run("rules", "spelling")
	assert.Error(t, err)
}

func TestFileTypes(t *testing.T) {
	h := newHarness(t)

	var catalog []model.FileType
	h.runJSON(&catalog, "file-types")
	require.Len(t, catalog, 4)
	assert.Equal(t, "1.1", model.DefaultVersion(catalog, "PrintScript"))
}

func TestTests(t *testing.T) {
	h := newHarness(t)

	var tests []model.TestCase
	h.runJSON(&tests, "tests", "list", superSnippet)
	require.Len(t, tests, 2)
	require.NotNil(t, tests[0].LastRun, "recorded runs are part of the listing")
	assert.Equal(t, "C", tests[0].LastRun.Stdout)
	require.NotNil(t, tests[1].LastRun)
	assert.Equal(t, 1, tests[1].LastRun.ExitCode)
	assert.Equal(t, "Mismatch", tests[1].LastRun.Stderr)

	var saved model.TestCase
	h.runJSON(&saved, "tests", "save", superSnippet, "--name", "echo", "--input", "a", "--input", "b", "--expected", "ab")
	require.NotEmpty(t, saved.ID)
	raw, err := json.Marshal(saved)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "lastRun", "a test that never ran has no last run")

	var reports []runReport
	h.runJSON(&reports, "tests", "run", superSnippet)
	require.Len(t, reports, 3)
	for _, r := range reports {
		assert.True(t, r.Passed, r.Name)
		assert.Equal(t, "completed", r.Status)
	}

	h.runJSON(&reports, "tests", "run", superSnippet, saved.ID)
	require.Len(t, reports, 1)
	assert.Equal(t, "ab", reports[0].Stdout)

	_, err = h.run("tests", "run", superSnippet, "missing")
	assert.Error(t, err)

	out, err := h.run("tests", "delete", superSnippet, saved.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted test "+saved.ID)

	h.runJSON(&tests, "tests", "list", superSnippet)
	assert.Len(t, tests, 2)
}

func TestAdmin(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("admin", "lint-all")
	require.NoError(t, err)
	assert.Contains(t, out, "accepted")

	out, err = h.run("admin", "format-all")
	require.NoError(t, err)
	assert.Contains(t, out, "accepted")
}

func TestPrefs(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("prefs", "--page-size", "2", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, "page size")

	// output now defaults to json with two items per page
	out, err = h.run("list")
	require.NoError(t, err)
	var page model.Page
	require.NoError(t, json.Unmarshal([]byte(out), &page), out)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 3, page.Total)
}

func TestUnknownOutputFormat(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("list", "-o", "yaml")
	assert.Error(t, err)
}

func TestChangeRules(t *testing.T) {
	two := 2.0
	rules := []model.Rule{
		{ID: "a", Active: true},
		{ID: "b", Active: false, Value: &two},
	}

	out, changed, err := changeRules(rules, nil, nil, nil)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, rules, out)

	out, changed, err = changeRules(rules, []string{"a"}, nil, map[string]string{"b": "2"})
	require.NoError(t, err)
	assert.False(t, changed, "already active and same value")

	out, changed, err = changeRules(rules, []string{"b"}, []string{"a"}, map[string]string{"b": "4"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, out[0].Active)
	assert.True(t, out[1].Active)
	assert.Equal(t, 4.0, *out[1].Value)
	assert.Equal(t, 2.0, *rules[1].Value, "input left untouched")

	_, _, err = changeRules(rules, nil, nil, map[string]string{"b": "lots"})
	assert.Error(t, err)
	_, _, err = changeRules(rules, []string{"zzz"}, nil, nil)
	assert.Error(t, err)
}
