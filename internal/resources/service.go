// Package resources binds gateway operations to cache keys. Queries read
// through the cache; mutations call the gateway and invalidate the key
// prefixes they affect.
package resources

import (
	"context"
	"strings"

	"github.com/bassista/snipsync/internal/apperror"
	"github.com/bassista/snipsync/internal/cache"
	"github.com/bassista/snipsync/internal/gateway"
	"github.com/bassista/snipsync/internal/logger"
	"github.com/bassista/snipsync/internal/model"
)

// Service is the typed entry point views and commands use.
type Service struct {
	api      gateway.API
	cache    cache.Cache
	validate *Validator
}

func NewService(api gateway.API, c cache.Cache) *Service {
	return &Service{api: api, cache: c, validate: NewValidator()}
}

// Cache exposes the read side for subscriptions.
func (s *Service) Cache() cache.Reader {
	return s.cache
}

// ListSnippets returns the page for filter.
func (s *Service) ListSnippets(ctx context.Context, filter model.ListFilter) (model.Page, error) {
	if err := s.validate.Struct(filter); err != nil {
		return model.Page{}, err
	}
	return cache.Get(ctx, s.cache, filter.Key(), s.listFetcher(filter))
}

// RefreshSnippets refetches the page for filter, keeping the cached one visible.
func (s *Service) RefreshSnippets(ctx context.Context, filter model.ListFilter) (model.Page, error) {
	if err := s.validate.Struct(filter); err != nil {
		return model.Page{}, err
	}
	return cache.Reload(ctx, s.cache, filter.Key(), s.listFetcher(filter))
}

func (s *Service) listFetcher(filter model.ListFilter) func(context.Context) (model.Page, error) {
	return func(ctx context.Context) (model.Page, error) {
		return s.api.ListSnippets(ctx, filter)
	}
}

// Snippet returns the detail record, or nil when the server reports it absent.
func (s *Service) Snippet(ctx context.Context, id string) (*model.SnippetDetail, error) {
	if err := Required("id", id); err != nil {
		return nil, err
	}
	return cache.Get(ctx, s.cache, model.SnippetKey(id), func(ctx context.Context) (*model.SnippetDetail, error) {
		return s.api.GetSnippet(ctx, id)
	})
}

func (s *Service) Tests(ctx context.Context, snippetID string) ([]model.TestCase, error) {
	if err := Required("snippetId", snippetID); err != nil {
		return nil, err
	}
	return cache.Get(ctx, s.cache, model.TestsKey(snippetID), func(ctx context.Context) ([]model.TestCase, error) {
		return s.api.ListTests(ctx, snippetID)
	})
}

func (s *Service) Rules(ctx context.Context, kind model.RuleKind) ([]model.Rule, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	return cache.Get(ctx, s.cache, model.RulesKey(kind), func(ctx context.Context) ([]model.Rule, error) {
		return s.api.ListRules(ctx, kind)
	})
}

func (s *Service) FileTypes(ctx context.Context) ([]model.FileType, error) {
	return cache.Get(ctx, s.cache, model.KeyFileTypes, s.api.ListFileTypes)
}

// CreateSnippet uploads a new snippet.
func (s *Service) CreateSnippet(ctx context.Context, in model.SnippetInput) (model.SnippetDetail, error) {
	if err := s.validate.Struct(in); err != nil {
		return model.SnippetDetail{}, err
	}
	return mutate(ctx, s, "create snippet", []string{model.KeyListSnippets},
		func(ctx context.Context) (model.SnippetDetail, error) {
			return s.api.CreateSnippet(ctx, in)
		})
}

func (s *Service) UpdateSnippet(ctx context.Context, id string, in model.SnippetInput) (model.SnippetDetail, error) {
	if err := Required("id", id); err != nil {
		return model.SnippetDetail{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return model.SnippetDetail{}, err
	}
	return mutate(ctx, s, "update snippet", []string{model.SnippetKey(id), model.KeyListSnippets},
		func(ctx context.Context) (model.SnippetDetail, error) {
			return s.api.UpdateSnippet(ctx, id, in)
		})
}

func (s *Service) DeleteSnippet(ctx context.Context, id string) (string, error) {
	if err := Required("id", id); err != nil {
		return "", err
	}
	return mutate(ctx, s, "delete snippet", []string{model.SnippetKey(id), model.KeyListSnippets, model.TestsKey(id)},
		func(ctx context.Context) (string, error) {
			return s.api.DeleteSnippet(ctx, id)
		})
}

func (s *Service) ShareSnippet(ctx context.Context, id string, req model.ShareRequest) (model.SnippetDetail, error) {
	if err := Required("id", id); err != nil {
		return model.SnippetDetail{}, err
	}
	if err := s.validate.Struct(req); err != nil {
		return model.SnippetDetail{}, err
	}
	return mutate(ctx, s, "share snippet", []string{model.SnippetKey(id), model.KeyListSnippets},
		func(ctx context.Context) (model.SnippetDetail, error) {
			return s.api.ShareSnippet(ctx, id, req)
		})
}

// FormatSnippet previews formatting. Nothing is persisted or invalidated.
func (s *Service) FormatSnippet(ctx context.Context, req model.FormatRequest) (string, error) {
	if err := s.validate.Struct(req); err != nil {
		return "", err
	}
	return s.api.FormatSnippet(ctx, req)
}

// ModifyRules replaces a rule set. Linting rules change every snippet's
// compliance, so listings and details are invalidated too.
func (s *Service) ModifyRules(ctx context.Context, kind model.RuleKind, rules []model.Rule) ([]model.Rule, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	for i := range rules {
		if err := s.validate.Struct(rules[i]); err != nil {
			return nil, err
		}
	}
	prefixes := []string{model.RulesKey(kind)}
	if kind == model.RuleKindLinting {
		prefixes = append(prefixes, model.KeyListSnippets, model.KeySnippet)
	}
	return mutate(ctx, s, "modify rules", prefixes, func(ctx context.Context) ([]model.Rule, error) {
		return s.api.ModifyRules(ctx, kind, rules)
	})
}

func (s *Service) UpsertTest(ctx context.Context, snippetID string, tc model.TestCase) (model.TestCase, error) {
	if err := Required("snippetId", snippetID); err != nil {
		return model.TestCase{}, err
	}
	if err := s.validate.Struct(tc); err != nil {
		return model.TestCase{}, err
	}
	return mutate(ctx, s, "save test", testPrefixes(snippetID), func(ctx context.Context) (model.TestCase, error) {
		return s.api.UpsertTest(ctx, snippetID, tc)
	})
}

func (s *Service) DeleteTest(ctx context.Context, snippetID, testID string) (string, error) {
	if err := Required("snippetId", snippetID); err != nil {
		return "", err
	}
	if err := Required("testId", testID); err != nil {
		return "", err
	}
	return mutate(ctx, s, "delete test", testPrefixes(snippetID), func(ctx context.Context) (string, error) {
		return s.api.DeleteTest(ctx, snippetID, testID)
	})
}

// ExecuteTest runs a test server-side. The server records the run, so the
// test list and detail are invalidated.
func (s *Service) ExecuteTest(ctx context.Context, snippetID, testID string) (model.TestExecutionResult, error) {
	if err := Required("snippetId", snippetID); err != nil {
		return model.TestExecutionResult{}, err
	}
	if err := Required("testId", testID); err != nil {
		return model.TestExecutionResult{}, err
	}
	return mutate(ctx, s, "run test", testPrefixes(snippetID), func(ctx context.Context) (model.TestExecutionResult, error) {
		return s.api.ExecuteTest(ctx, snippetID, testID)
	})
}

// FormatAll starts the bulk format job.
func (s *Service) FormatAll(ctx context.Context) error {
	_, err := mutate(ctx, s, "format all", bulkPrefixes(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.FormatAll(ctx)
	})
	return err
}

// LintAll starts the bulk lint job.
func (s *Service) LintAll(ctx context.Context) error {
	_, err := mutate(ctx, s, "lint all", bulkPrefixes(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.LintAll(ctx)
	})
	return err
}

func mutate[T any](ctx context.Context, s *Service, op string, prefixes []string, fn func(context.Context) (T, error)) (T, error) {
	v, err := cache.Mutate(ctx, s.cache, prefixes, fn)
	if err != nil {
		logger.WithComponent("resources").Debugf("%s failed: %v", op, err)
		return v, err
	}
	logger.WithComponent("resources").Debugf("%s succeeded, invalidated %s", op, strings.Join(prefixes, ","))
	return v, nil
}

func testPrefixes(snippetID string) []string {
	return []string{model.TestsKey(snippetID), model.SnippetKey(snippetID)}
}

func bulkPrefixes() []string {
	return []string{model.KeyListSnippets, model.KeySnippet}
}

func validKind(kind model.RuleKind) error {
	switch kind {
	case model.RuleKindFormatting, model.RuleKindLinting:
		return nil
	}
	return apperror.ValidationFailed("kind", "kind must be formatting or linting")
}
