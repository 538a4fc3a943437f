package controller

import (
	"net/http"
	"time"

	"github.com/bassista/snipsync/internal/model"
	"github.com/bassista/snipsync/internal/repository"
	"github.com/containerd/errdefs"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Responses use the service's alternate spellings (snippets/page_size/count,
// ownerName, line/column, VALID/INVALID/PENDING) on purpose.

type descriptorResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Language   string `json:"language"`
	Extension  string `json:"extension"`
	OwnerName  string `json:"ownerName"`
	Compliance string `json:"compliance"`
	Relation   string `json:"relation"`
}

type listingResponse struct {
	Snippets []descriptorResponse `json:"snippets"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Count    int                  `json:"count"`
}

type lintIssueResponse struct {
	Rule     string `json:"rule"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	EndLine  int    `json:"endLine"`
	EndCol   int    `json:"endCol"`
}

type detailResponse struct {
	descriptorResponse
	Content           string              `json:"content"`
	Description       string              `json:"description,omitempty"`
	Version           string              `json:"version,omitempty"`
	ComplianceMessage string              `json:"complianceMessage,omitempty"`
	LintErrors        []lintIssueResponse `json:"lintErrors"`
	Tests             []testResponse      `json:"tests"`
}

type testResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Input           []string `json:"input"`
	ExpectedOutput  string   `json:"expectedOutput"`
	LastRunExitCode *int     `json:"lastRunExitCode,omitempty"`
	LastRunOutput   string   `json:"lastRunOutput,omitempty"`
	LastRunError    string   `json:"lastRunError,omitempty"`
	LastRunAt       string   `json:"lastRunAt,omitempty"`
}

type executionResponse struct {
	ID        string  `json:"id"`
	Result    string  `json:"result"`
	Passed    bool    `json:"passed"`
	ExitCode  int     `json:"exitCode"`
	Stdout    string  `json:"stdout"`
	Stderr    *string `json:"stderr"`
	LastRunAt string  `json:"lastRunAt"`
}

func toDescriptor(r repository.SnippetRecord, principal string) descriptorResponse {
	return descriptorResponse{
		ID:         r.ID,
		Name:       r.Name,
		Language:   r.Language,
		Extension:  r.Extension,
		OwnerName:  r.Author,
		Compliance: r.Compliance,
		Relation:   string(repository.RelationOf(r, principal)),
	}
}

func toDetail(r repository.SnippetRecord, principal string) detailResponse {
	out := detailResponse{
		descriptorResponse: toDescriptor(r, principal),
		Content:            r.Content,
		Description:        r.Description,
		Version:            r.Version,
		ComplianceMessage:  r.ComplianceMessage,
		LintErrors:         make([]lintIssueResponse, 0, len(r.LintIssues)),
		Tests:              make([]testResponse, 0, len(r.Tests)),
	}
	for _, issue := range r.LintIssues {
		out.LintErrors = append(out.LintErrors, toLintIssue(issue))
	}
	for _, tc := range r.Tests {
		out.Tests = append(out.Tests, toTest(tc))
	}
	return out
}

func toLintIssue(issue model.LintIssue) lintIssueResponse {
	return lintIssueResponse{
		Rule:     issue.Rule,
		Message:  issue.Message,
		Severity: string(issue.Severity),
		Line:     issue.StartLine,
		Column:   issue.StartCol,
		EndLine:  issue.EndLine,
		EndCol:   issue.EndCol,
	}
}

func toTest(tc repository.TestRecord) testResponse {
	input := tc.Input
	if input == nil {
		input = []string{}
	}
	return testResponse{
		ID:              tc.ID,
		Name:            tc.Name,
		Description:     tc.Description,
		Input:           input,
		ExpectedOutput:  tc.ExpectedOutput,
		LastRunExitCode: tc.LastRunExitCode,
		LastRunOutput:   tc.LastRunOutput,
		LastRunError:    tc.LastRunError,
		LastRunAt:       tc.LastRunAt,
	}
}

func toExecution(e repository.Execution) executionResponse {
	out := executionResponse{
		ID:        e.TestID,
		Passed:    e.Passed,
		ExitCode:  e.ExitCode,
		Stdout:    e.Stdout,
		LastRunAt: e.At.Format(time.RFC3339Nano),
		Result:    "fail",
	}
	if e.Passed {
		out.Result = "success"
	}
	if e.Stderr != "" {
		out.Stderr = &e.Stderr
	}
	return out
}

// respondError maps store errors onto status codes with an {"error": ...} body.
func respondError(c *gin.Context, log *logrus.Entry, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errdefs.IsInvalidArgument(err):
		status = http.StatusBadRequest
	case errdefs.IsNotFound(err):
		status = http.StatusNotFound
	case errdefs.IsPermissionDenied(err):
		status = http.StatusForbidden
	case errdefs.IsConflict(err):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Errorf("%s: %v", op, err)
		c.JSON(status, gin.H{"error": "failed to " + op})
		return
	}
	log.Debugf("%s rejected: %v", op, err)
	c.JSON(status, gin.H{"error": err.Error()})
}
