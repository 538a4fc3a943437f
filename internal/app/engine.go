package app

import (
	"context"
	"errors"

	"github.com/bassista/snipsync/internal/apperror"
	"github.com/bassista/snipsync/internal/cache"
	"github.com/bassista/snipsync/internal/config"
	"github.com/bassista/snipsync/internal/editor"
	"github.com/bassista/snipsync/internal/gateway"
	"github.com/bassista/snipsync/internal/listing"
	"github.com/bassista/snipsync/internal/logger"
	"github.com/bassista/snipsync/internal/model"
	"github.com/bassista/snipsync/internal/resources"
	"github.com/bassista/snipsync/internal/testrun"
	"golang.org/x/oauth2"
)

// Engine is the client-side synchronization engine: one gateway, one cache
// instance shared by every view, and the test tracker.
type Engine struct {
	Config    *config.Config
	Gateway   *gateway.Client
	Cache     *cache.Store
	Resources *resources.Service
	Tests     *testrun.Tracker
}

// TokenSource returns a static bearer token source for token, or nil when
// token is empty so requests go out unauthenticated.
func TokenSource(token string) oauth2.TokenSource {
	if token == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// NewEngine builds the engine from cfg. Extra options are applied after the
// configured ones.
func NewEngine(cfg *config.Config, opts ...gateway.Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	base := []gateway.Option{
		gateway.WithTimeout(cfg.Backend.RequestTimeout),
		gateway.WithUserAgent(cfg.Backend.UserAgent),
	}
	if ts := TokenSource(cfg.Auth.Token); ts != nil {
		base = append(base, gateway.WithTokenSource(ts))
	}
	client, err := gateway.NewClient(cfg.Backend.BaseURL, append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	store := cache.NewStore()
	svc := resources.NewService(client, store)
	return &Engine{
		Config:    cfg,
		Gateway:   client,
		Cache:     store,
		Resources: svc,
		Tests:     testrun.NewTracker(svc),
	}, nil
}

// DefaultFilter is the first page with the configured page size.
func (e *Engine) DefaultFilter() model.ListFilter {
	return model.ListFilter{PageSize: e.Config.Listing.PageSize}
}

// Listing opens a listing controller positioned on filter. The caller starts
// and closes it.
func (e *Engine) Listing(filter model.ListFilter, opts ...listing.Option) *listing.Controller {
	if filter.PageSize < 1 {
		filter.PageSize = e.Config.Listing.PageSize
	}
	base := []listing.Option{
		listing.WithSearchDebounce(e.Config.Listing.SearchDebounce),
		listing.WithFilter(filter),
	}
	return listing.New(e.Resources, append(base, opts...)...)
}

// OpenEditor loads a snippet and the file-type catalog into an edit session.
// A catalog failure is logged and the session opens without one.
func (e *Engine) OpenEditor(ctx context.Context, id string) (*editor.Session, error) {
	detail, err := e.Resources.Snippet(ctx, id)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, apperror.NotFound("snippet", id)
	}
	catalog, err := e.Resources.FileTypes(ctx)
	if err != nil {
		logger.WithComponent("app").Warnf("file types unavailable, editing without catalog: %v", err)
		catalog = nil
	}
	return editor.Open(e.Resources, *detail, catalog), nil
}
