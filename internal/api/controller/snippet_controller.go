package controller

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bassista/snipsync/internal/api/middleware"
	"github.com/bassista/snipsync/internal/logger"
	"github.com/bassista/snipsync/internal/model"
	"github.com/bassista/snipsync/internal/repository"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 10
	maxUploadBytes  = 1 << 20
)

// SnippetController handles the snippet endpoints.
type SnippetController struct {
	store SnippetStore
}

func NewSnippetController(store SnippetStore) *SnippetController {
	return &SnippetController{store: store}
}

func parseQuery(c *gin.Context) (repository.Query, string) {
	q := repository.Query{
		Principal: middleware.Principal(c),
		Name:      c.Query("name"),
		Language:  c.Query("language"),
		SortBy:    c.Query("sort_by"),
		SortDir:   c.Query("sort_dir"),
		PageSize:  defaultPageSize,
	}
	var err error
	if raw := c.Query("page"); raw != "" {
		if q.Page, err = strconv.Atoi(raw); err != nil {
			return q, "page must be an integer"
		}
	}
	if raw := c.Query("page_size"); raw != "" {
		if q.PageSize, err = strconv.Atoi(raw); err != nil {
			return q, "page_size must be an integer"
		}
	}
	if raw := c.Query("valid"); raw != "" {
		valid, err := strconv.ParseBool(raw)
		if err != nil {
			return q, "valid must be true or false"
		}
		q.Valid = &valid
	}
	if raw := strings.ToUpper(c.Query("relation")); raw != "" {
		if raw != string(model.RelationOwner) && raw != string(model.RelationShared) {
			return q, "relation must be OWNER or SHARED"
		}
		q.Relation = raw
	}
	if dir := strings.ToLower(q.SortDir); dir != "" && dir != "asc" && dir != "desc" {
		return q, "sort_dir must be asc or desc"
	}
	return q, ""
}

// List handles GET /snippets.
func (sc *SnippetController) List(c *gin.Context) {
	log := logger.WithComponent("snippet-controller")
	log.Debugf("GET /snippets handler called with %s", c.Request.URL.RawQuery)

	q, problem := parseQuery(c)
	if problem != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": problem})
		return
	}
	items, total, err := sc.store.List(q)
	if err != nil {
		respondError(c, log, "list snippets", err)
		return
	}
	resp := listingResponse{
		Snippets: make([]descriptorResponse, 0, len(items)),
		Page:     q.Page,
		PageSize: q.PageSize,
		Count:    total,
	}
	for _, r := range items {
		resp.Snippets = append(resp.Snippets, toDescriptor(r, q.Principal))
	}
	c.JSON(http.StatusOK, resp)
}

// Get handles GET /snippets/:id.
func (sc *SnippetController) Get(c *gin.Context) {
	id := c.Param("id")
	log := logger.WithComponent("snippet-controller")
	log.Debugf("GET /snippets/%s handler called", id)

	r, err := sc.store.Get(id, middleware.Principal(c))
	if err != nil {
		respondError(c, log, "get snippet", err)
		return
	}
	c.JSON(http.StatusOK, toDetail(r, middleware.Principal(c)))
}

// snippetMetadata is the JSON "request" part of a snippet upload.
type snippetMetadata struct {
	Name        string `json:"name"`
	Language    string `json:"language"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// readUpload decodes the two-part multipart body: "file" carries the content
// and its file name, "request" the JSON metadata.
func readUpload(c *gin.Context) (repository.SnippetWrite, string) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		return repository.SnippetWrite{}, "missing file part"
	}
	f, err := header.Open()
	if err != nil {
		return repository.SnippetWrite{}, "unreadable file part"
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return repository.SnippetWrite{}, "unreadable file part"
	}

	var meta snippetMetadata
	raw := c.PostForm("request")
	if raw == "" {
		return repository.SnippetWrite{}, "missing request part"
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return repository.SnippetWrite{}, "malformed request part"
	}
	return repository.SnippetWrite{
		Name:        meta.Name,
		Language:    meta.Language,
		Content:     string(content),
		Extension:   strings.TrimPrefix(filepath.Ext(header.Filename), "."),
		Description: meta.Description,
		Version:     meta.Version,
	}, ""
}

// Create handles POST /snippets.
func (sc *SnippetController) Create(c *gin.Context) {
	log := logger.WithComponent("snippet-controller")
	log.Debugf("POST /snippets handler called")

	w, problem := readUpload(c)
	if problem != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": problem})
		return
	}
	r, err := sc.store.Create(middleware.Principal(c), w)
	if err != nil {
		respondError(c, log, "create snippet", err)
		return
	}
	log.Debugf("snippet %s created", r.ID)
	c.JSON(http.StatusCreated, toDetail(r, middleware.Principal(c)))
}

// Update handles PUT /snippets/:id.
func (sc *SnippetController) Update(c *gin.Context) {
	id := c.Param("id")
	log := logger.WithComponent("snippet-controller")
	log.Debugf("PUT /snippets/%s handler called", id)

	w, problem := readUpload(c)
	if problem != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": problem})
		return
	}
	r, err := sc.store.Update(id, middleware.Principal(c), w)
	if err != nil {
		respondError(c, log, "update snippet", err)
		return
	}
	c.JSON(http.StatusOK, toDetail(r, middleware.Principal(c)))
}

// Delete handles DELETE /snippets/:id and echoes the id.
func (sc *SnippetController) Delete(c *gin.Context) {
	id := c.Param("id")
	log := logger.WithComponent("snippet-controller")
	log.Debugf("DELETE /snippets/%s handler called", id)

	if err := sc.store.Delete(id, middleware.Principal(c)); err != nil {
		respondError(c, log, "delete snippet", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

type shareRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// Share handles POST /snippets/:id/share.
func (sc *SnippetController) Share(c *gin.Context) {
	id := c.Param("id")
	log := logger.WithComponent("snippet-controller")
	log.Debugf("POST /snippets/%s/share handler called", id)

	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}
	r, err := sc.store.Share(id, middleware.Principal(c), req.UserID)
	if err != nil {
		respondError(c, log, "share snippet", err)
		return
	}
	c.JSON(http.StatusOK, toDetail(r, middleware.Principal(c)))
}

type formatRequest struct {
	Content  string `json:"content"`
	Language string `json:"language" binding:"required"`
	Version  string `json:"version"`
}

// Format handles POST /snippets/format. Nothing is persisted.
func (sc *SnippetController) Format(c *gin.Context) {
	log := logger.WithComponent("snippet-controller")
	log.Debugf("POST /snippets/format handler called")

	var req formatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "language is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"formatted": sc.store.Format(req.Content)})
}

// FormatAll handles POST /admin/snippets/format.
func (sc *SnippetController) FormatAll(c *gin.Context) {
	logger.WithComponent("snippet-controller").Debugf("POST /admin/snippets/format handler called")
	c.JSON(http.StatusAccepted, gin.H{"updated": sc.store.FormatAll()})
}

// LintAll handles POST /admin/snippets/lint.
func (sc *SnippetController) LintAll(c *gin.Context) {
	logger.WithComponent("snippet-controller").Debugf("POST /admin/snippets/lint handler called")
	c.JSON(http.StatusAccepted, gin.H{"invalid": sc.store.LintAll()})
}
