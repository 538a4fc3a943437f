package controller

import (
	"github.com/bassista/snipsync/internal/model"
	"github.com/bassista/snipsync/internal/repository"
)

// SnippetStore is the snippet state the snippet endpoints need.
type SnippetStore interface {
	List(q repository.Query) ([]repository.SnippetRecord, int, error)
	Get(id, principal string) (repository.SnippetRecord, error)
	Create(principal string, w repository.SnippetWrite) (repository.SnippetRecord, error)
	Update(id, principal string, w repository.SnippetWrite) (repository.SnippetRecord, error)
	Delete(id, principal string) error
	Share(id, principal, userID string) (repository.SnippetRecord, error)
	Format(content string) string
	FormatAll() int
	LintAll() int
}

// RuleStore serves the rule sets and the file-type catalog.
type RuleStore interface {
	Rules(kind model.RuleKind) ([]model.Rule, error)
	SetRules(kind model.RuleKind, rules []model.Rule) ([]model.Rule, error)
	FileTypes() []model.FileType
}

// TestStore serves the test cases of a snippet.
type TestStore interface {
	Tests(id, principal string) ([]repository.TestRecord, error)
	UpsertTest(id, principal string, tc repository.TestRecord) (repository.TestRecord, error)
	DeleteTest(id, principal, testID string) error
	RunTest(id, principal, testID string) (repository.Execution, error)
	TestOwner(testID, principal string) (string, error)
}

var (
	_ SnippetStore = (*repository.Store)(nil)
	_ RuleStore    = (*repository.Store)(nil)
	_ TestStore    = (*repository.Store)(nil)
)
