package model

import "time"

// Compliance is the lint/format compliance state of a snippet.
type Compliance string

const (
	CompliancePending      Compliance = "pending"
	ComplianceCompliant    Compliance = "compliant"
	ComplianceNotCompliant Compliance = "not-compliant"
)

// Relation describes how the current user relates to a snippet.
type Relation string

const (
	RelationOwner  Relation = "OWNER"
	RelationShared Relation = "SHARED"
)

// Severity of a lint issue.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// SnippetDescriptor is the list-row projection of a snippet.
type SnippetDescriptor struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Language   string     `json:"language"`
	Extension  string     `json:"extension"`
	Author     string     `json:"author"`
	Compliance Compliance `json:"compliance"`
	Relation   Relation   `json:"relation,omitempty"`
}

// SnippetDetail is the content-bearing projection loaded for editing.
// Content is always the last value received from the server.
type SnippetDetail struct {
	SnippetDescriptor
	Content           string      `json:"content"`
	Description       string      `json:"description,omitempty"`
	Version           string      `json:"version,omitempty"`
	ComplianceMessage string      `json:"complianceMessage,omitempty"`
	LintIssues        []LintIssue `json:"lintErrors"`
	Tests             []TestCase  `json:"tests"`
}

// LintIssue is immutable and replaced wholesale on every detail fetch.
type LintIssue struct {
	Rule      string   `json:"rule"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
	StartLine int      `json:"startLine"`
	StartCol  int      `json:"startCol"`
	EndLine   int      `json:"endLine"`
	EndCol    int      `json:"endCol"`
}

// TestCase belongs to a snippet. An empty ID means "not yet created".
type TestCase struct {
	ID             string   `json:"id,omitempty"`
	Name           string   `json:"name" validate:"required"`
	Description    string   `json:"description,omitempty"`
	Input          []string `json:"input,omitempty"`
	ExpectedOutput string   `json:"expectedOutput"`
	LastRun        *TestRun `json:"lastRun,omitempty"`
}

// TestRun is the last recorded execution of a test case.
type TestRun struct {
	ExitCode int       `json:"exitCode"`
	Stdout   string    `json:"stdout,omitempty"`
	Stderr   string    `json:"stderr,omitempty"`
	At       time.Time `json:"at"`
}

// TestExecutionResult is the ephemeral outcome of one execute-test request.
type TestExecutionResult struct {
	TestID   string
	Passed   bool
	ExitCode int
	Stdout   string
	Stderr   string
	At       time.Time
}

// RuleKind selects one of the two rule collections.
type RuleKind string

const (
	RuleKindFormatting RuleKind = "formatting"
	RuleKindLinting    RuleKind = "linting"
)

// Rule is a formatting or linting rule. Value is nil when the rule takes no argument.
type Rule struct {
	ID     string   `json:"id" validate:"required"`
	Name   string   `json:"name"`
	Active bool     `json:"active"`
	Value  *float64 `json:"value"`
}

// FileType is one entry of the language catalog.
type FileType struct {
	Language       string   `json:"language"`
	Extension      string   `json:"extension"`
	Versions       []string `json:"versions,omitempty"`
	DefaultVersion string   `json:"defaultVersion,omitempty"`
}

// Page is one page of snippet descriptors. Total is the server-reported count.
type Page struct {
	Items    []SnippetDescriptor `json:"items"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"pageSize"`
	Total    int                 `json:"totalElements"`
}

// SnippetInput is the payload of create and update mutations.
type SnippetInput struct {
	Name        string `validate:"required"`
	Language    string `validate:"required"`
	Content     string
	Extension   string
	Description string
	Version     string
}

// FormatRequest asks the server to format content without persisting it.
type FormatRequest struct {
	Content  string `json:"content"`
	Language string `json:"language" validate:"required"`
	Version  string `json:"version" validate:"required"`
	Check    bool   `json:"check,omitempty"`
}

// ShareRequest grants another user access to a snippet.
type ShareRequest struct {
	UserID string `json:"userId" validate:"required"`
}
