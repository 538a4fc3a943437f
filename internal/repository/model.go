package repository

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/bassista/snipsync/internal/model"
	"github.com/google/uuid"
)

// Wire compliance codes stored by the backend.
const (
	ComplianceValid   = "VALID"
	ComplianceInvalid = "INVALID"
	CompliancePending = "PENDING"
)

// Seed is the persisted backend state.
type Seed struct {
	Snippets        []SnippetRecord  `json:"snippets" validate:"dive"`
	FormattingRules []model.Rule     `json:"formattingRules" validate:"dive"`
	LintingRules    []model.Rule     `json:"lintingRules" validate:"dive"`
	FileTypes       []FileTypeRecord `json:"fileTypes" validate:"dive"`
}

// SnippetRecord is one stored snippet. Owner empty means the snippet belongs
// to every caller.
type SnippetRecord struct {
	ID                string            `json:"id"`
	Name              string            `json:"name" validate:"required"`
	Content           string            `json:"content"`
	Language          string            `json:"language" validate:"required"`
	Extension         string            `json:"extension"`
	Version           string            `json:"version,omitempty"`
	Description       string            `json:"description,omitempty"`
	Author            string            `json:"author"`
	Owner             string            `json:"owner,omitempty"`
	SharedWith        []string          `json:"sharedWith,omitempty"`
	Compliance        string            `json:"compliance" validate:"omitempty,oneof=VALID INVALID PENDING"`
	ComplianceMessage string            `json:"complianceMessage,omitempty"`
	LintIssues        []model.LintIssue `json:"lintErrors,omitempty"`
	Tests             []TestRecord      `json:"tests" validate:"dive"`
}

// TestRecord is a stored test case with its last recorded run.
type TestRecord struct {
	ID              string   `json:"id"`
	Name            string   `json:"name" validate:"required"`
	Description     string   `json:"description,omitempty"`
	Input           []string `json:"input,omitempty"`
	ExpectedOutput  string   `json:"expectedOutput"`
	LastRunExitCode *int     `json:"lastRunExitCode,omitempty"`
	LastRunOutput   string   `json:"lastRunOutput,omitempty"`
	LastRunError    string   `json:"lastRunError,omitempty"`
	LastRunAt       string   `json:"lastRunAt,omitempty"`
}

type FileTypeRecord struct {
	Language       string   `json:"language" validate:"required"`
	Extension      string   `json:"extension" validate:"required"`
	Versions       []string `json:"versions,omitempty"`
	DefaultVersion string   `json:"defaultVersion,omitempty"`
}

// ApplyDefaults fills ids, extensions, compliance and empty collections after
// decode.
func (s *Seed) ApplyDefaults() {
	if s.FormattingRules == nil {
		s.FormattingRules = []model.Rule{}
	}
	if s.LintingRules == nil {
		s.LintingRules = []model.Rule{}
	}
	if s.FileTypes == nil {
		s.FileTypes = []FileTypeRecord{}
	}
	for i := range s.FileTypes {
		s.FileTypes[i].Extension = model.NormalizeExtension(s.FileTypes[i].Extension)
	}
	for i := range s.Snippets {
		s.Snippets[i].applyDefaults(s.FileTypes)
	}
}

func (r *SnippetRecord) applyDefaults(fileTypes []FileTypeRecord) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Extension = model.NormalizeExtension(r.Extension)
	if r.Extension == "" {
		r.Extension = extensionFor(fileTypes, r.Language)
	}
	if r.Compliance == "" {
		r.Compliance = CompliancePending
	}
	if strings.TrimSpace(r.Author) == "" {
		r.Author = "Unknown"
	}
	if r.Tests == nil {
		r.Tests = []TestRecord{}
	}
	for i := range r.Tests {
		if r.Tests[i].ID == "" {
			r.Tests[i].ID = uuid.NewString()
		}
	}
}

func extensionFor(fileTypes []FileTypeRecord, language string) string {
	for _, ft := range fileTypes {
		if strings.EqualFold(ft.Language, language) {
			return ft.Extension
		}
	}
	return model.DefaultExtension
}

// Catalog converts the stored file types to the client model.
func (s *Seed) Catalog() []model.FileType {
	out := make([]model.FileType, 0, len(s.FileTypes))
	for _, ft := range s.FileTypes {
		out = append(out, model.FileType{
			Language:       ft.Language,
			Extension:      ft.Extension,
			Versions:       ft.Versions,
			DefaultVersion: ft.DefaultVersion,
		})
	}
	return out
}

// Clone deep-copies the seed through a JSON round-trip.
func (s *Seed) Clone() (*Seed, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out Seed
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AreSeedsEqual compares two seeds by their JSON form.
func AreSeedsEqual(a, b *Seed) bool {
	if a == nil || b == nil {
		return a == b
	}
	aBytes, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bBytes, err := json.Marshal(b)
	if err != nil {
		return false
	}
	var aMap, bMap map[string]interface{}
	if err := json.Unmarshal(aBytes, &aMap); err != nil {
		return false
	}
	if err := json.Unmarshal(bBytes, &bMap); err != nil {
		return false
	}
	return reflect.DeepEqual(aMap, bMap)
}

const sampleContent = "let a : number = 5;\nlet b : number = 5;\n\nprintln(a + b);"

func intPtr(v int) *int { return &v }

func sampleTests(at string) []TestRecord {
	return []TestRecord{
		{
			Name:            "Test Case 1",
			Description:     "Debe sumar correctamente",
			Input:           []string{"A", "B"},
			ExpectedOutput:  "C",
			LastRunExitCode: intPtr(0),
			LastRunOutput:   "C",
			LastRunAt:       at,
		},
		{
			Name:            "Test Case 2",
			Description:     "Error esperado",
			Input:           []string{"1", "2"},
			ExpectedOutput:  "3",
			LastRunExitCode: intPtr(1),
			LastRunOutput:   "4",
			LastRunError:    "Mismatch",
			LastRunAt:       at,
		},
	}
}

func flag(id, name string) model.Rule {
	return model.Rule{ID: id, Name: name, Active: true}
}

// DefaultSeed returns the built-in data set: three printscript snippets with
// two tests each, the formatting and linting rule sets and four file types.
func DefaultSeed() *Seed {
	indent := 2.0
	seed := &Seed{
		Snippets: []SnippetRecord{
			{ID: "9af91631-cdfc-4341-9b8e-3694e5cb3672", Name: "Super Snippet", Compliance: CompliancePending},
			{ID: "c48cf644-fbc1-4649-a8f4-9dd7110640d9", Name: "Extra cool Snippet", Compliance: ComplianceInvalid},
			{ID: "34bf4b7a-d4a1-48be-bb26-7d9a3be46227", Name: "Boaring Snippet", Compliance: ComplianceValid},
		},
		FormattingRules: []model.Rule{
			flag("spaceBeforeColon", "Espacio antes de ':'"),
			flag("spaceAfterColon", "Espacio después de ':'"),
			flag("spaceAroundEquals", "Espacio alrededor de '='"),
			flag("spaceAroundOperators", "Espacio alrededor de operadores"),
			flag("lineJumpAfterSemicolon", "Salto de línea tras ';'"),
			flag("singleSpaceSeparation", "Separación de 1 espacio"),
			{ID: "indentSize", Name: "Tamaño de indentación", Active: true, Value: &indent},
		},
		LintingRules: []model.Rule{
			flag("no-duplicate-var", "Variables duplicadas"),
			flag("identifier-style", "Estilo de identificadores"),
			flag("println-restriction", "Restricción de println"),
			flag("string-number-concat", "Concat string + number"),
			flag("read-input-prompt", "Prompt en readInput"),
		},
		FileTypes: []FileTypeRecord{
			{Language: "printscript", Extension: "prs", Versions: []string{"1.0", "1.1"}, DefaultVersion: "1.1"},
			{Language: "python", Extension: "py"},
			{Language: "java", Extension: "java"},
			{Language: "golang", Extension: "go"},
		},
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for i := range seed.Snippets {
		s := &seed.Snippets[i]
		s.Content = sampleContent
		s.Language = "printscript"
		s.Extension = "prs"
		s.Version = "1.1"
		s.Author = "John Doe"
		s.Tests = sampleTests(now)
	}
	seed.ApplyDefaults()
	return seed
}
