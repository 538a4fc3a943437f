package route

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bassista/snipsync/internal/config"
	"github.com/bassista/snipsync/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const superSnippet = "9af91631-cdfc-4341-9b8e-3694e5cb3672"

func newTestEngine(t *testing.T, requireAuth bool) (*gin.Engine, *repository.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, err := repository.NewStore(nil)
	require.NoError(t, err)
	return SetupRoutes(store, config.ServerConfig{
		RequestTimeout:     5 * time.Second,
		CORSAllowedOrigins: "*",
		RequireAuth:        requireAuth,
	}), store
}

func do(r http.Handler, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doJSON(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	return do(r, method, path, token, strings.NewReader(body), "application/json")
}

func upload(t *testing.T, fileName, content, request string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	if request != "" {
		require.NoError(t, mw.WriteField("request", request))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type listing struct {
	Snippets []struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Compliance string `json:"compliance"`
		Relation   string `json:"relation"`
	} `json:"snippets"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Count    int `json:"count"`
}

func TestHealth(t *testing.T) {
	r, _ := newTestEngine(t, true)
	w := do(r, http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "UP")
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestListSnippets_Query(t *testing.T) {
	r, _ := newTestEngine(t, false)

	w := do(r, http.MethodGet, "/snippets?page=0&page_size=2&sort_by=name", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[listing](t, w)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, 2, got.PageSize)
	require.Len(t, got.Snippets, 2)
	assert.Equal(t, "Boaring Snippet", got.Snippets[0].Name)
	assert.Equal(t, "OWNER", got.Snippets[0].Relation)

	w = do(r, http.MethodGet, "/snippets?valid=true", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	got = decode[listing](t, w)
	require.Len(t, got.Snippets, 1)
	assert.Equal(t, "VALID", got.Snippets[0].Compliance)

	w = do(r, http.MethodGet, "/snippets?name=extra", "", nil, "")
	got = decode[listing](t, w)
	require.Len(t, got.Snippets, 1)
	assert.Equal(t, "Extra cool Snippet", got.Snippets[0].Name)
}

func TestListSnippets_BadQuery(t *testing.T) {
	r, _ := newTestEngine(t, false)
	for _, q := range []string{"page=x", "page_size=y", "valid=maybe", "relation=friend", "sort_dir=up", "page=-1", "page_size=0"} {
		t.Run(q, func(t *testing.T) {
			w := do(r, http.MethodGet, "/snippets?"+q, "", nil, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestRequireAuth(t *testing.T) {
	r, _ := newTestEngine(t, true)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/snippets", "", nil, "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/snippets", "alice", nil, "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/file-types", "", nil, "").Code)
}

func TestSnippetLifecycle(t *testing.T) {
	r, _ := newTestEngine(t, true)

	body, ct := upload(t, "greeting.prs", `let x: number=1;`, `{"name":"greeting","language":"printscript","version":"1.1"}`)
	w := do(r, http.MethodPost, "/snippets", "alice", body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]any](t, w)
	id := created["id"].(string)
	assert.Equal(t, "prs", created["extension"])
	assert.Equal(t, "alice", created["ownerName"])

	// bob cannot see it until it is shared
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/snippets/"+id, "bob", nil, "").Code)

	w = doJSON(r, http.MethodPost, "/snippets/"+id+"/share", "alice", `{"userId":"bob"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodGet, "/snippets/"+id, "bob", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SHARED", decode[map[string]any](t, w)["relation"])

	body, ct = upload(t, "greeting.prs", `let y: number=2;`, `{"name":"greeting","language":"printscript"}`)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPut, "/snippets/"+id, "bob", body, ct).Code)

	body, ct = upload(t, "greeting.prs", `let y: number=2;`, `{"name":"greeting v2","language":"printscript"}`)
	w = do(r, http.MethodPut, "/snippets/"+id, "alice", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "greeting v2", decode[map[string]any](t, w)["name"])

	w = do(r, http.MethodDelete, "/snippets/"+id, "alice", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode[map[string]any](t, w)["id"])
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/snippets/"+id, "alice", nil, "").Code)
}

func TestCreateSnippet_BadUpload(t *testing.T) {
	r, _ := newTestEngine(t, false)

	tests := []struct {
		name     string
		fileName string
		request  string
	}{
		{"missing file", "", `{"name":"a","language":"printscript"}`},
		{"missing request", "a.prs", ""},
		{"malformed request", "a.prs", `{"name":`},
		{"missing name", "a.prs", `{"language":"printscript"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := upload(t, tt.fileName, "let a = 1;", tt.request)
			w := do(r, http.MethodPost, "/snippets", "", body, ct)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestShare_MissingUser(t *testing.T) {
	r, _ := newTestEngine(t, false)
	w := doJSON(r, http.MethodPost, "/snippets/"+superSnippet+"/share", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFormat(t *testing.T) {
	r, _ := newTestEngine(t, false)

	w := doJSON(r, http.MethodPost, "/snippets/format", "", `{"content":"let a:number=1;","language":"printscript","version":"1.1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "let a : number = 1;", decode[map[string]string](t, w)["formatted"])

	w = doJSON(r, http.MethodPost, "/snippets/format", "", `{"content":"let a = 1;"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRules(t *testing.T) {
	r, _ := newTestEngine(t, false)

	w := do(r, http.MethodGet, "/snippets/rules/formatting", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 7)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/snippets/rules/spelling", "", nil, "").Code)

	w = doJSON(r, http.MethodPost, "/snippets/rules/linting", "", `[{"name":"no id"}]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/snippets/rules/linting", "", `[{"id":"identifierFormat","name":"identifier style","active":false}]`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[[]map[string]any](t, w), 1)
}

func TestFileTypes(t *testing.T) {
	r, _ := newTestEngine(t, false)

	w := do(r, http.MethodGet, "/file-types", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[struct {
		FileTypes []struct {
			Language  string `json:"language"`
			Extension string `json:"extension"`
		} `json:"fileTypes"`
	}](t, w)
	require.Len(t, got.FileTypes, 4)
	assert.Equal(t, "printscript", got.FileTypes[0].Language)
	assert.Equal(t, "prs", got.FileTypes[0].Extension)
}

func TestSnippetTests(t *testing.T) {
	r, _ := newTestEngine(t, false)
	list := "/tests?snippetId=" + superSnippet

	w := do(r, http.MethodGet, list, "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 2)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/tests", "", nil, "").Code)

	w = doJSON(r, http.MethodPost, "/tests", "", `{"snippetId":"`+superSnippet+`","name":"echo","input":["a"],"expectedOutput":"a"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	testID := decode[map[string]any](t, w)["id"].(string)
	require.NotEmpty(t, testID)

	// an update can name the test alone
	w = doJSON(r, http.MethodPost, "/tests", "", `{"id":"`+testID+`","name":"echo","input":["a"],"expectedOutput":"a"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, testID, decode[map[string]any](t, w)["id"])

	w = doJSON(r, http.MethodPost, "/tests/run", "", `{"id":"`+testID+`","name":"echo","expectedOutput":"a"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	run := decode[map[string]any](t, w)
	assert.Equal(t, true, run["passed"])
	assert.Equal(t, "success", run["result"])
	assert.Equal(t, "a", run["stdout"])
	assert.Nil(t, run["stderr"])

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/tests/run", "", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodPost, "/tests/run", "", `{"id":"missing"}`).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/tests", "", `{"snippetId":"`+superSnippet+`","input":[]}`).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/tests", "", `{"name":"orphan"}`).Code)

	w = do(r, http.MethodDelete, "/tests/"+testID+"?snippetId="+superSnippet, "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testID, decode[string](t, w))
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/tests/"+testID, "", nil, "").Code)

	w = do(r, http.MethodGet, list, "", nil, "")
	assert.Len(t, decode[[]map[string]any](t, w), 2)
}

func TestAdminBulk(t *testing.T) {
	r, store := newTestEngine(t, false)

	w := do(r, http.MethodPost, "/admin/snippets/lint", "", nil, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "invalid")

	w = do(r, http.MethodPost, "/admin/snippets/format", "", nil, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "updated")

	got, err := store.Get(superSnippet, "")
	require.NoError(t, err)
	assert.NotEqual(t, repository.CompliancePending, got.Compliance)
}
