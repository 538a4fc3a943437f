// Package gateway translates typed snippet operations into HTTP requests against
// the snippet service and maps its heterogeneous responses onto internal/model.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bassista/snipsync/internal/apperror"
	"github.com/bassista/snipsync/internal/logger"
	"github.com/bassista/snipsync/internal/model"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// API is the full set of remote operations. *Client implements it; tests and
// the resource layer depend on this interface.
type API interface {
	ListSnippets(ctx context.Context, filter model.ListFilter) (model.Page, error)
	GetSnippet(ctx context.Context, id string) (*model.SnippetDetail, error)
	CreateSnippet(ctx context.Context, in model.SnippetInput) (model.SnippetDetail, error)
	UpdateSnippet(ctx context.Context, id string, in model.SnippetInput) (model.SnippetDetail, error)
	DeleteSnippet(ctx context.Context, id string) (string, error)
	ShareSnippet(ctx context.Context, id string, req model.ShareRequest) (model.SnippetDetail, error)
	FormatSnippet(ctx context.Context, req model.FormatRequest) (string, error)
	ListRules(ctx context.Context, kind model.RuleKind) ([]model.Rule, error)
	ModifyRules(ctx context.Context, kind model.RuleKind, rules []model.Rule) ([]model.Rule, error)
	ListFileTypes(ctx context.Context) ([]model.FileType, error)
	ListTests(ctx context.Context, snippetID string) ([]model.TestCase, error)
	UpsertTest(ctx context.Context, snippetID string, tc model.TestCase) (model.TestCase, error)
	DeleteTest(ctx context.Context, snippetID, testID string) (string, error)
	ExecuteTest(ctx context.Context, snippetID, testID string) (model.TestExecutionResult, error)
	FormatAll(ctx context.Context) error
	LintAll(ctx context.Context) error
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

// Client talks to the snippet service. It holds no mutable state and is safe
// for concurrent use.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	tokens    oauth2.TokenSource
}

const (
	defaultBaseURL   = "http://localhost:8080"
	defaultUserAgent = "snipsync/0.1"
	defaultTimeout   = 10 * time.Second
	maxErrorBody     = 64 << 10
	requestIDHeader  = "X-Request-Id"
)

// Option customizes a Client.
type Option func(*Client)

// WithTokenSource sets the authentication collaborator. A nil source, a token
// error or an empty token lets requests proceed unauthenticated.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient builds a Client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: defaultTimeout},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// request describes one call. op names the operation in default error messages.
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	anonymous   bool
}

func jsonRequest(op, method, path string, payload any) (request, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return request{}, fmt.Errorf("%s: encode body: %w", op, err)
	}
	return request{
		op:          op,
		method:      method,
		path:        path,
		body:        bytes.NewReader(raw),
		contentType: "application/json",
	}, nil
}

// send performs the request and returns the response whatever its status.
// The caller closes the body.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	rel, err := url.Parse(strings.TrimPrefix(r.path, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: build url: %w", r.op, err)
	}
	if len(r.query) > 0 {
		rel.RawQuery = r.query.Encode()
	}
	reqURL := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL.String(), r.body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", r.op, err)
	}
	requestID := xid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(requestIDHeader, requestID)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if !r.anonymous {
		c.authorize(req)
	}

	log := logger.WithComponent("gateway").WithFields(logrus.Fields{
		"op":         r.op,
		"method":     r.method,
		"path":       rel.Path,
		"request_id": requestID,
	})
	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warnf("transport error: %v", err)
		return nil, fmt.Errorf("%s: execute request: %w", r.op, err)
	}
	log.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"elapsed": time.Since(started).String(),
	}).Debug("request completed")
	return resp, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.tokens == nil {
		return
	}
	tok, err := c.tokens.Token()
	if err != nil {
		logger.WithComponent("gateway").Debugf("token unavailable, sending unauthenticated request: %v", err)
		return
	}
	if tok == nil || tok.AccessToken == "" {
		return
	}
	tok.SetAuthHeader(req)
}

// do performs r and returns the body of a successful response.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	resp, err := c.send(ctx, r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, remoteError(r.op, resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", r.op, err)
	}
	return body, nil
}

// remoteError builds a RemoteError, preferring the server's own message.
func remoteError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	fallback := fmt.Sprintf("%s failed with status %d", op, resp.StatusCode)
	err := &apperror.RemoteError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body, fallback),
	}
	logger.WithComponent("gateway").Warnf("%s rejected: status=%d message=%q", op, err.StatusCode, err.Message)
	return err
}

// errorMessage extracts "message" or "error" from a JSON body, falling back to
// the trimmed body text and then to fallback when the body is empty.
func errorMessage(body []byte, fallback string) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fallback
	}
	obj, err := decodeObject(body)
	if err == nil {
		if msg, ok := pick[string](obj, "message", "error"); ok && strings.TrimSpace(msg) != "" {
			return strings.TrimSpace(msg)
		}
	}
	return text
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse base url %q: missing host", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
