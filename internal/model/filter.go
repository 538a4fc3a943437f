package model

import (
	"encoding/json"
	"fmt"
)

// SortDir is the listing sort direction.
type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// Validity filters listings by compliance.
type Validity string

const (
	ValidityAny     Validity = ""
	ValidityValid   Validity = "valid"
	ValidityInvalid Validity = "invalid"
)

// ListFilter is the full listing query: predicate, order and page position.
// It is a value type; two equal filters always produce the same cache key.
type ListFilter struct {
	NameSubstring string   `validate:"-"`
	Language      string   `validate:"-"`
	Relation      Relation `validate:"omitempty,oneof=OWNER SHARED"`
	Validity      Validity `validate:"omitempty,oneof=valid invalid"`
	SortBy        string   `validate:"-"`
	SortDir       SortDir  `validate:"omitempty,oneof=asc desc"`
	Page          int      `validate:"min=0"`
	PageSize      int      `validate:"min=1"`
}

// filterKey fixes the field order of the serialized predicate.
type filterKey struct {
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
	Relation string `json:"relation,omitempty"`
	Valid    string `json:"valid,omitempty"`
	SortBy   string `json:"sortBy,omitempty"`
	SortDir  string `json:"sortDir,omitempty"`
}

// Key returns the cache key of the listing query, e.g.
// "listSnippets:page=0:size=10:filter={}".
func (f ListFilter) Key() string {
	raw, _ := json.Marshal(filterKey{
		Name:     f.NameSubstring,
		Language: f.Language,
		Relation: string(f.Relation),
		Valid:    string(f.Validity),
		SortBy:   f.SortBy,
		SortDir:  string(f.SortDir),
	})
	return fmt.Sprintf("%s:page=%d:size=%d:filter=%s", KeyListSnippets, f.Page, f.PageSize, raw)
}

// WithPage returns a copy positioned on page.
func (f ListFilter) WithPage(page int) ListFilter {
	f.Page = page
	return f
}

// Cache key families. Mutations invalidate by these prefixes.
const (
	KeyListSnippets = "listSnippets"
	KeySnippet      = "snippet"
	KeyTests        = "tests"
	KeyRules        = "rules"
	KeyFileTypes    = "fileTypes"
)

func SnippetKey(id string) string {
	return KeySnippet + ":" + id
}

func TestsKey(snippetID string) string {
	return KeyTests + ":" + snippetID
}

func RulesKey(kind RuleKind) string {
	return KeyRules + ":" + string(kind)
}
