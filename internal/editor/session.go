// Package editor tracks the unsaved state of one snippet being edited: a
// server-confirmed baseline, a local draft, and the rules deciding when the
// draft may be saved.
package editor

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/bassista/snipsync/internal/apperror"
	"github.com/bassista/snipsync/internal/logger"
	"github.com/bassista/snipsync/internal/model"
)

// ErrNothingToSave is returned by Save when the draft equals the baseline.
var ErrNothingToSave = apperror.ValidationFailed("", "no changes to save")

// Backend is the slice of the resource service a session needs.
type Backend interface {
	UpdateSnippet(ctx context.Context, id string, in model.SnippetInput) (model.SnippetDetail, error)
	FormatSnippet(ctx context.Context, req model.FormatRequest) (string, error)
}

// State is a snapshot of a session for rendering.
type State struct {
	ID          string
	Baseline    Fields
	Draft       Fields
	Dirty       bool
	DirtyFields []Field
	Missing     []Field
	CanSave     bool
	Saving      bool
	Err         error
}

// Session is safe for concurrent use.
type Session struct {
	backend Backend

	mu       sync.Mutex
	id       string
	catalog  []model.FileType
	baseline Fields
	draft    Fields
	// edits counts local changes per field so replies can tell whether the
	// user kept typing while a request was out.
	edits         map[Field]uint64
	autoVersion   string
	autoExtension string
	saving        int
	lastErr       error
}

// Open starts editing detail. The catalog decides versions and extensions and
// may be nil until loaded.
func Open(backend Backend, detail model.SnippetDetail, catalog []model.FileType) *Session {
	base := FieldsOf(detail)
	logger.WithComponent("editor").Debugf("editing snippet %s", detail.ID)
	return &Session{
		backend:       backend,
		id:            detail.ID,
		catalog:       catalog,
		baseline:      base,
		draft:         base,
		edits:         make(map[Field]uint64),
		autoVersion:   base.Version,
		autoExtension: base.Extension,
	}
}

// SetCatalog replaces the language catalog, e.g. once it finishes loading.
func (s *Session) SetCatalog(catalog []model.FileType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = catalog
}

func (s *Session) SetName(v string)        { s.edit(FieldName, v) }
func (s *Session) SetDescription(v string) { s.edit(FieldDescription, v) }
func (s *Session) SetVersion(v string)     { s.edit(FieldVersion, v) }
func (s *Session) SetContent(v string)     { s.edit(FieldContent, v) }

func (s *Session) SetExtension(v string) {
	s.edit(FieldExtension, model.NormalizeExtension(v))
}

func (s *Session) edit(field Field, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(field, value)
}

func (s *Session) setLocked(field Field, value string) {
	if s.draft.Get(field) == value {
		return
	}
	s.draft.set(field, value)
	s.edits[field]++
}

// SetLanguage changes the language. Version and extension follow the new
// language's defaults unless the user chose a value of their own that is
// still valid for it.
func (s *Session) SetLanguage(language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft.Language == language {
		return
	}
	s.setLocked(FieldLanguage, language)

	nextVersion := model.DefaultVersion(s.catalog, language)
	versionOverride := s.draft.Version != s.autoVersion
	if !versionOverride || !model.HasVersion(s.catalog, language, s.draft.Version) {
		s.setLocked(FieldVersion, nextVersion)
	}
	s.autoVersion = nextVersion

	nextExt := model.ExtensionFor(s.catalog, language)
	extOverride := s.draft.Extension != s.autoExtension
	if !extOverride || nextExt != "" {
		s.setLocked(FieldExtension, nextExt)
	}
	s.autoExtension = nextExt
}

// Revert discards the draft.
func (s *Session) Revert() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range AllFields {
		s.setLocked(f, s.baseline.Get(f))
	}
	s.autoVersion = s.baseline.Version
	s.autoExtension = s.baseline.Extension
	s.lastErr = nil
}

func (s *Session) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft != s.baseline
}

func (s *Session) CanSave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft != s.baseline && len(s.missingLocked()) == 0
}

// Err returns the reason the last save or format was rejected.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	missing := s.missingLocked()
	dirty := s.draft != s.baseline
	return State{
		ID:          s.id,
		Baseline:    s.baseline,
		Draft:       s.draft,
		Dirty:       dirty,
		DirtyFields: Diff(s.baseline, s.draft),
		Missing:     missing,
		CanSave:     dirty && len(missing) == 0,
		Saving:      s.saving > 0,
		Err:         s.lastErr,
	}
}

func (s *Session) missingLocked() []Field {
	var missing []Field
	if strings.TrimSpace(s.draft.Name) == "" {
		missing = append(missing, FieldName)
	}
	if strings.TrimSpace(s.draft.Language) == "" {
		missing = append(missing, FieldLanguage)
	}
	if model.VersionRequired(s.catalog, s.draft.Language) && strings.TrimSpace(s.draft.Version) == "" {
		missing = append(missing, FieldVersion)
	}
	return missing
}

// Save sends the draft. A draft that cannot be saved is rejected before any
// network call. On success the server's record becomes the baseline and every
// field not edited since the send adopts the server value. On rejection the
// baseline and draft are kept and the reason is available from Err.
func (s *Session) Save(ctx context.Context) (model.SnippetDetail, error) {
	s.mu.Lock()
	if s.draft == s.baseline {
		s.mu.Unlock()
		return model.SnippetDetail{}, ErrNothingToSave
	}
	if missing := s.missingLocked(); len(missing) > 0 {
		s.mu.Unlock()
		f := string(missing[0])
		return model.SnippetDetail{}, apperror.ValidationFailed(f, f+" is required")
	}
	id, sent := s.id, s.draft
	sentEdits := make(map[Field]uint64, len(s.edits))
	for f, n := range s.edits {
		sentEdits[f] = n
	}
	s.saving++
	s.mu.Unlock()

	detail, err := s.backend.UpdateSnippet(ctx, id, sent.Input())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving--
	if err != nil {
		s.lastErr = err
		logger.WithComponent("editor").Debugf("save of %s rejected: %v", id, err)
		return model.SnippetDetail{}, err
	}

	server := FieldsOf(detail)
	if server.Extension == "" {
		server.Extension = sent.Extension
	}
	s.baseline = server
	for _, f := range AllFields {
		if s.edits[f] == sentEdits[f] {
			s.draft.set(f, server.Get(f))
		}
	}
	if s.edits[FieldVersion] == sentEdits[FieldVersion] {
		s.autoVersion = server.Version
	}
	if s.edits[FieldExtension] == sentEdits[FieldExtension] {
		s.autoExtension = server.Extension
	}
	s.lastErr = nil
	logger.WithComponent("editor").Debugf("saved snippet %s", id)
	return detail, nil
}

// ErrContentChanged is returned by Format when the content was edited while
// the format request was out; the formatted text is dropped.
var ErrContentChanged = errors.New("editor: content changed while formatting")

// Format replaces the content draft with the server-formatted text. The
// baseline is untouched, so formatting can make the record dirty.
func (s *Session) Format(ctx context.Context) (string, error) {
	s.mu.Lock()
	req := model.FormatRequest{
		Content:  s.draft.Content,
		Language: s.draft.Language,
		Version:  s.draft.Version,
	}
	if req.Version == "" {
		req.Version = model.DefaultVersion(s.catalog, req.Language)
	}
	seq := s.edits[FieldContent]
	s.mu.Unlock()

	formatted, err := s.backend.FormatSnippet(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		return "", err
	}
	if s.edits[FieldContent] != seq {
		return "", ErrContentChanged
	}
	s.setLocked(FieldContent, formatted)
	return formatted, nil
}
