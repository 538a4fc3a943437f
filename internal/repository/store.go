package repository

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bassista/snipsync/internal/apperror"
	"github.com/bassista/snipsync/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Query selects one page of snippets visible to Principal.
type Query struct {
	Principal string
	Name      string
	Language  string
	Relation  string
	Valid     *bool
	SortBy    string
	SortDir   string
	Page      int `validate:"min=0"`
	PageSize  int `validate:"min=1"`
}

// SnippetWrite is the payload of create and update.
type SnippetWrite struct {
	Name        string `validate:"required"`
	Language    string `validate:"required"`
	Content     string
	Extension   string
	Description string
	Version     string
}

// Execution is the outcome of one test run.
type Execution struct {
	TestID   string
	Passed   bool
	ExitCode int
	Stdout   string
	Stderr   string
	At       time.Time
}

// Store is the in-memory state of the development backend. Every method is
// safe for concurrent use and returns copies.
type Store struct {
	mu       sync.RWMutex
	state    *Seed
	validate *validator.Validate
	now      func() time.Time
}

var _ Reloader = (*Store)(nil)

// NewStore builds a store from seed, or from DefaultSeed when seed is nil.
func NewStore(seed *Seed) (*Store, error) {
	s := &Store{validate: validator.New(), now: time.Now}
	if seed == nil {
		seed = DefaultSeed()
	}
	if err := s.Replace(seed); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() (*Seed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Replace swaps the whole state for a validated copy of seed.
func (s *Store) Replace(seed *Seed) error {
	if seed == nil {
		return fmt.Errorf("seed is nil")
	}
	next, err := seed.Clone()
	if err != nil {
		return fmt.Errorf("clone seed: %w", err)
	}
	next.ApplyDefaults()
	if err := s.validate.Struct(next); err != nil {
		return fmt.Errorf("validate seed: %w", err)
	}
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	return nil
}

func visible(r *SnippetRecord, principal string) bool {
	return r.Owner == "" || r.Owner == principal || slices.Contains(r.SharedWith, principal)
}

// RelationOf reports how principal relates to r.
func RelationOf(r SnippetRecord, principal string) model.Relation {
	if r.Owner == "" || r.Owner == principal {
		return model.RelationOwner
	}
	return model.RelationShared
}

func (r SnippetRecord) clone() SnippetRecord {
	out := r
	out.SharedWith = slices.Clone(r.SharedWith)
	out.LintIssues = slices.Clone(r.LintIssues)
	out.Tests = make([]TestRecord, len(r.Tests))
	for i, tc := range r.Tests {
		out.Tests[i] = tc.clone()
	}
	return out
}

func (t TestRecord) clone() TestRecord {
	out := t
	out.Input = slices.Clone(t.Input)
	if t.LastRunExitCode != nil {
		code := *t.LastRunExitCode
		out.LastRunExitCode = &code
	}
	return out
}

// List returns the requested page and the total number of matches.
func (s *Store) List(q Query) ([]SnippetRecord, int, error) {
	if err := s.validate.Struct(q); err != nil {
		return nil, 0, apperror.ValidationFailed("page", "page must be >= 0 and page_size >= 1")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	name := strings.ToLower(strings.TrimSpace(q.Name))
	matches := []SnippetRecord{}
	for i := range s.state.Snippets {
		r := &s.state.Snippets[i]
		if !visible(r, q.Principal) {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(r.Name), name) {
			continue
		}
		if q.Language != "" && !strings.EqualFold(r.Language, q.Language) {
			continue
		}
		if q.Relation != "" && !strings.EqualFold(string(RelationOf(*r, q.Principal)), q.Relation) {
			continue
		}
		if q.Valid != nil {
			want := ComplianceInvalid
			if *q.Valid {
				want = ComplianceValid
			}
			if r.Compliance != want {
				continue
			}
		}
		matches = append(matches, r.clone())
	}

	sortRecords(matches, q.SortBy, q.SortDir)

	total := len(matches)
	start := q.Page * q.PageSize
	if start >= total {
		return []SnippetRecord{}, total, nil
	}
	end := min(start+q.PageSize, total)
	return matches[start:end], total, nil
}

func sortRecords(records []SnippetRecord, by, dir string) {
	var field func(SnippetRecord) string
	switch strings.ToLower(by) {
	case "name":
		field = func(r SnippetRecord) string { return strings.ToLower(r.Name) }
	case "language":
		field = func(r SnippetRecord) string { return strings.ToLower(r.Language) }
	case "author":
		field = func(r SnippetRecord) string { return strings.ToLower(r.Author) }
	case "compliance":
		field = func(r SnippetRecord) string { return r.Compliance }
	default:
		if strings.EqualFold(dir, "desc") {
			slices.Reverse(records)
		}
		return
	}
	desc := strings.EqualFold(dir, "desc")
	sort.SliceStable(records, func(i, j int) bool {
		if desc {
			return field(records[i]) > field(records[j])
		}
		return field(records[i]) < field(records[j])
	})
}

// indexLocked finds a snippet visible to principal.
func (s *Store) indexLocked(id, principal string) (int, error) {
	for i := range s.state.Snippets {
		if s.state.Snippets[i].ID == id && visible(&s.state.Snippets[i], principal) {
			return i, nil
		}
	}
	return -1, apperror.NotFound("snippet", id)
}

// ownedLocked finds a snippet principal may modify.
func (s *Store) ownedLocked(id, principal string) (int, error) {
	i, err := s.indexLocked(id, principal)
	if err != nil {
		return -1, err
	}
	if RelationOf(s.state.Snippets[i], principal) != model.RelationOwner {
		return -1, &apperror.AppError{Err: apperror.ErrForbidden, Message: "only the owner can modify snippet " + id}
	}
	return i, nil
}

func (s *Store) Get(id, principal string) (SnippetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, err := s.indexLocked(id, principal)
	if err != nil {
		return SnippetRecord{}, err
	}
	return s.state.Snippets[i].clone(), nil
}

func (s *Store) checkWrite(w SnippetWrite) error {
	err := s.validate.Struct(w)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		field := strings.ToLower(fieldErrs[0].Field())
		return apperror.ValidationFailed(field, field+" is required")
	}
	return apperror.ValidationFailed("", err.Error())
}

func (s *Store) extensionLocked(w SnippetWrite) string {
	if ext := model.NormalizeExtension(w.Extension); ext != "" {
		return ext
	}
	return extensionFor(s.state.FileTypes, w.Language)
}

// Create stores a new snippet owned by principal and lints it.
func (s *Store) Create(principal string, w SnippetWrite) (SnippetRecord, error) {
	if err := s.checkWrite(w); err != nil {
		return SnippetRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	author := principal
	if author == "" {
		author = "Unknown"
	}
	r := SnippetRecord{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(w.Name),
		Content:     w.Content,
		Language:    w.Language,
		Extension:   s.extensionLocked(w),
		Version:     w.Version,
		Description: w.Description,
		Author:      author,
		Owner:       principal,
		Tests:       []TestRecord{},
	}
	applyLint(&r, s.state.LintingRules)
	s.state.Snippets = append(s.state.Snippets, r)
	return r.clone(), nil
}

// Update replaces the editable fields of a snippet and lints it again.
func (s *Store) Update(id, principal string, w SnippetWrite) (SnippetRecord, error) {
	if err := s.checkWrite(w); err != nil {
		return SnippetRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.ownedLocked(id, principal)
	if err != nil {
		return SnippetRecord{}, err
	}
	r := &s.state.Snippets[i]
	r.Name = strings.TrimSpace(w.Name)
	r.Content = w.Content
	r.Language = w.Language
	r.Extension = s.extensionLocked(w)
	r.Version = w.Version
	r.Description = w.Description
	applyLint(r, s.state.LintingRules)
	return r.clone(), nil
}

func (s *Store) Delete(id, principal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.ownedLocked(id, principal)
	if err != nil {
		return err
	}
	s.state.Snippets = slices.Delete(s.state.Snippets, i, i+1)
	return nil
}

// Share grants userID access to a snippet owned by principal.
func (s *Store) Share(id, principal, userID string) (SnippetRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return SnippetRecord{}, apperror.ValidationFailed("userId", "userId is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.ownedLocked(id, principal)
	if err != nil {
		return SnippetRecord{}, err
	}
	r := &s.state.Snippets[i]
	if !slices.Contains(r.SharedWith, userID) {
		r.SharedWith = append(r.SharedWith, userID)
	}
	return r.clone(), nil
}

// Format returns content formatted with the current formatting rules.
func (s *Store) Format(content string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return formatContent(content, s.state.FormattingRules)
}

// FormatAll formats every stored snippet in place and returns how many changed.
func (s *Store) FormatAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for i := range s.state.Snippets {
		r := &s.state.Snippets[i]
		formatted := formatContent(r.Content, s.state.FormattingRules)
		if formatted != r.Content {
			r.Content = formatted
			applyLint(r, s.state.LintingRules)
			changed++
		}
	}
	return changed
}

// LintAll lints every stored snippet and returns how many are not compliant.
func (s *Store) LintAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lintAllLocked()
}

func (s *Store) lintAllLocked() int {
	invalid := 0
	for i := range s.state.Snippets {
		applyLint(&s.state.Snippets[i], s.state.LintingRules)
		if s.state.Snippets[i].Compliance == ComplianceInvalid {
			invalid++
		}
	}
	return invalid
}

func (s *Store) rulesLocked(kind model.RuleKind) (*[]model.Rule, error) {
	switch kind {
	case model.RuleKindFormatting:
		return &s.state.FormattingRules, nil
	case model.RuleKindLinting:
		return &s.state.LintingRules, nil
	default:
		return nil, apperror.NotFound("rule set", string(kind))
	}
}

func (s *Store) Rules(kind model.RuleKind) ([]model.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rules, err := s.rulesLocked(kind)
	if err != nil {
		return nil, err
	}
	return slices.Clone(*rules), nil
}

// SetRules replaces a rule set. New linting rules re-lint every snippet.
func (s *Store) SetRules(kind model.RuleKind, rules []model.Rule) ([]model.Rule, error) {
	for _, r := range rules {
		if strings.TrimSpace(r.ID) == "" {
			return nil, apperror.ValidationFailed("id", "rule id is required")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	target, err := s.rulesLocked(kind)
	if err != nil {
		return nil, err
	}
	*target = slices.Clone(rules)
	if *target == nil {
		*target = []model.Rule{}
	}
	if kind == model.RuleKindLinting {
		s.lintAllLocked()
	}
	return slices.Clone(*target), nil
}

func (s *Store) FileTypes() []model.FileType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Catalog()
}

func (s *Store) Tests(id, principal string) ([]TestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, err := s.indexLocked(id, principal)
	if err != nil {
		return nil, err
	}
	return s.state.Snippets[i].clone().Tests, nil
}

// TestOwner returns the id of the visible snippet holding testID.
func (s *Store) TestOwner(testID, principal string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.state.Snippets {
		r := &s.state.Snippets[i]
		if !visible(r, principal) {
			continue
		}
		for _, t := range r.Tests {
			if t.ID == testID {
				return r.ID, nil
			}
		}
	}
	return "", apperror.NotFound("test", testID)
}

// UpsertTest creates tc when its ID is empty and updates it otherwise. The
// last recorded run survives an update.
func (s *Store) UpsertTest(id, principal string, tc TestRecord) (TestRecord, error) {
	if strings.TrimSpace(tc.Name) == "" {
		return TestRecord{}, apperror.ValidationFailed("name", "name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.indexLocked(id, principal)
	if err != nil {
		return TestRecord{}, err
	}
	r := &s.state.Snippets[i]
	if tc.ID == "" {
		stored := TestRecord{
			ID:             uuid.NewString(),
			Name:           tc.Name,
			Description:    tc.Description,
			Input:          slices.Clone(tc.Input),
			ExpectedOutput: tc.ExpectedOutput,
		}
		r.Tests = append(r.Tests, stored)
		return stored.clone(), nil
	}
	for j := range r.Tests {
		if r.Tests[j].ID == tc.ID {
			t := &r.Tests[j]
			t.Name = tc.Name
			t.Description = tc.Description
			t.Input = slices.Clone(tc.Input)
			t.ExpectedOutput = tc.ExpectedOutput
			return t.clone(), nil
		}
	}
	return TestRecord{}, apperror.NotFound("test", tc.ID)
}

func (s *Store) DeleteTest(id, principal, testID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.indexLocked(id, principal)
	if err != nil {
		return err
	}
	r := &s.state.Snippets[i]
	for j := range r.Tests {
		if r.Tests[j].ID == testID {
			r.Tests = slices.Delete(r.Tests, j, j+1)
			return nil
		}
	}
	return apperror.NotFound("test", testID)
}

// RunTest executes a test by echoing its expected output and records the run
// on the test case.
func (s *Store) RunTest(id, principal, testID string) (Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.indexLocked(id, principal)
	if err != nil {
		return Execution{}, err
	}
	r := &s.state.Snippets[i]
	for j := range r.Tests {
		t := &r.Tests[j]
		if t.ID != testID {
			continue
		}
		exec := Execution{
			TestID: testID,
			Passed: true,
			Stdout: t.ExpectedOutput,
			At:     s.now().UTC(),
		}
		code := exec.ExitCode
		t.LastRunExitCode = &code
		t.LastRunOutput = exec.Stdout
		t.LastRunError = ""
		t.LastRunAt = exec.At.Format(time.RFC3339Nano)
		return exec, nil
	}
	return Execution{}, apperror.NotFound("test", testID)
}
