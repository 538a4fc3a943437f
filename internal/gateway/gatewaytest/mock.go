// Package gatewaytest provides a testify mock of gateway.API.
package gatewaytest

import (
	"context"

	"github.com/bassista/snipsync/internal/gateway"
	"github.com/bassista/snipsync/internal/model"
	"github.com/stretchr/testify/mock"
)

// MockAPI is a mock implementation of the gateway.API interface.
type MockAPI struct {
	mock.Mock
}

var _ gateway.API = (*MockAPI)(nil)

func (m *MockAPI) ListSnippets(ctx context.Context, filter model.ListFilter) (model.Page, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(model.Page), args.Error(1)
}

func (m *MockAPI) GetSnippet(ctx context.Context, id string) (*model.SnippetDetail, error) {
	args := m.Called(ctx, id)
	detail, _ := args.Get(0).(*model.SnippetDetail)
	return detail, args.Error(1)
}

func (m *MockAPI) CreateSnippet(ctx context.Context, in model.SnippetInput) (model.SnippetDetail, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(model.SnippetDetail), args.Error(1)
}

func (m *MockAPI) UpdateSnippet(ctx context.Context, id string, in model.SnippetInput) (model.SnippetDetail, error) {
	args := m.Called(ctx, id, in)
	return args.Get(0).(model.SnippetDetail), args.Error(1)
}

func (m *MockAPI) DeleteSnippet(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockAPI) ShareSnippet(ctx context.Context, id string, req model.ShareRequest) (model.SnippetDetail, error) {
	args := m.Called(ctx, id, req)
	return args.Get(0).(model.SnippetDetail), args.Error(1)
}

func (m *MockAPI) FormatSnippet(ctx context.Context, req model.FormatRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockAPI) ListRules(ctx context.Context, kind model.RuleKind) ([]model.Rule, error) {
	args := m.Called(ctx, kind)
	rules, _ := args.Get(0).([]model.Rule)
	return rules, args.Error(1)
}

func (m *MockAPI) ModifyRules(ctx context.Context, kind model.RuleKind, rules []model.Rule) ([]model.Rule, error) {
	args := m.Called(ctx, kind, rules)
	out, _ := args.Get(0).([]model.Rule)
	return out, args.Error(1)
}

func (m *MockAPI) ListFileTypes(ctx context.Context) ([]model.FileType, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]model.FileType)
	return out, args.Error(1)
}

func (m *MockAPI) ListTests(ctx context.Context, snippetID string) ([]model.TestCase, error) {
	args := m.Called(ctx, snippetID)
	out, _ := args.Get(0).([]model.TestCase)
	return out, args.Error(1)
}

func (m *MockAPI) UpsertTest(ctx context.Context, snippetID string, tc model.TestCase) (model.TestCase, error) {
	args := m.Called(ctx, snippetID, tc)
	return args.Get(0).(model.TestCase), args.Error(1)
}

func (m *MockAPI) DeleteTest(ctx context.Context, snippetID, testID string) (string, error) {
	args := m.Called(ctx, snippetID, testID)
	return args.String(0), args.Error(1)
}

func (m *MockAPI) ExecuteTest(ctx context.Context, snippetID, testID string) (model.TestExecutionResult, error) {
	args := m.Called(ctx, snippetID, testID)
	return args.Get(0).(model.TestExecutionResult), args.Error(1)
}

func (m *MockAPI) FormatAll(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockAPI) LintAll(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
