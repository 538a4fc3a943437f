package controller

import (
	"net/http"
	"strings"

	"github.com/bassista/snipsync/internal/api/middleware"
	"github.com/bassista/snipsync/internal/logger"
	"github.com/bassista/snipsync/internal/repository"
	"github.com/gin-gonic/gin"
)

// TestController handles the test-case endpoints. A test case names its
// snippet through snippetId, in the query or in the body.
type TestController struct {
	store TestStore
}

func NewTestController(store TestStore) *TestController {
	return &TestController{store: store}
}

// List handles GET /tests?snippetId=.
func (tc *TestController) List(c *gin.Context) {
	id := strings.TrimSpace(c.Query("snippetId"))
	log := logger.WithComponent("test-controller")
	log.Debugf("GET /tests?snippetId=%s handler called", id)

	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "snippetId is required"})
		return
	}
	tests, err := tc.store.Tests(id, middleware.Principal(c))
	if err != nil {
		respondError(c, log, "list tests", err)
		return
	}
	out := make([]testResponse, 0, len(tests))
	for _, t := range tests {
		out = append(out, toTest(t))
	}
	c.JSON(http.StatusOK, out)
}

type testPayload struct {
	SnippetID      string   `json:"snippetId"`
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Input          []string `json:"input"`
	ExpectedOutput string   `json:"expectedOutput"`
}

// snippetOf resolves the snippet a request targets: an explicit snippetId
// wins, otherwise the snippet holding testID.
func (tc *TestController) snippetOf(c *gin.Context, snippetID, testID string) (string, error) {
	if id := strings.TrimSpace(snippetID); id != "" {
		return id, nil
	}
	return tc.store.TestOwner(testID, middleware.Principal(c))
}

// Upsert handles POST /tests.
func (tc *TestController) Upsert(c *gin.Context) {
	log := logger.WithComponent("test-controller")
	log.Debug("POST /tests handler called")

	var p testPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed test case"})
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if strings.TrimSpace(p.SnippetID) == "" && p.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "snippetId is required"})
		return
	}
	id, err := tc.snippetOf(c, p.SnippetID, p.ID)
	if err != nil {
		respondError(c, log, "save test", err)
		return
	}
	saved, err := tc.store.UpsertTest(id, middleware.Principal(c), repository.TestRecord{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Input:          p.Input,
		ExpectedOutput: p.ExpectedOutput,
	})
	if err != nil {
		respondError(c, log, "save test", err)
		return
	}
	c.JSON(http.StatusOK, toTest(saved))
}

// Delete handles DELETE /tests/:id and echoes the test id.
func (tc *TestController) Delete(c *gin.Context) {
	testID := c.Param("id")
	log := logger.WithComponent("test-controller")
	log.Debugf("DELETE /tests/%s handler called", testID)

	id, err := tc.snippetOf(c, c.Query("snippetId"), testID)
	if err != nil {
		respondError(c, log, "delete test", err)
		return
	}
	if err := tc.store.DeleteTest(id, middleware.Principal(c), testID); err != nil {
		respondError(c, log, "delete test", err)
		return
	}
	c.JSON(http.StatusOK, testID)
}

// Run handles POST /tests/run. The body is the test case to run.
func (tc *TestController) Run(c *gin.Context) {
	log := logger.WithComponent("test-controller")
	log.Debug("POST /tests/run handler called")

	var p testPayload
	if err := c.ShouldBindJSON(&p); err != nil || strings.TrimSpace(p.ID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "test id is required"})
		return
	}
	id, err := tc.snippetOf(c, p.SnippetID, p.ID)
	if err != nil {
		respondError(c, log, "run test", err)
		return
	}
	exec, err := tc.store.RunTest(id, middleware.Principal(c), p.ID)
	if err != nil {
		respondError(c, log, "run test", err)
		return
	}
	c.JSON(http.StatusOK, toExecution(exec))
}
