package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/bassista/snipsync/internal/model"
)

// ListSnippets fetches one page of descriptors.
func (c *Client) ListSnippets(ctx context.Context, filter model.ListFilter) (model.Page, error) {
	body, err := c.do(ctx, request{
		op:     "list snippets",
		method: http.MethodGet,
		path:   "snippets",
		query:  listQuery(filter),
	})
	if err != nil {
		return model.Page{}, err
	}
	page, err := mapPage(body, filter)
	if err != nil {
		return model.Page{}, fmt.Errorf("list snippets: decode response: %w", err)
	}
	return page, nil
}

func listQuery(f model.ListFilter) url.Values {
	values := url.Values{}
	values.Set("page", strconv.Itoa(f.Page))
	values.Set("page_size", strconv.Itoa(f.PageSize))
	if name := strings.TrimSpace(f.NameSubstring); name != "" {
		values.Set("name", name)
	}
	if lang := strings.TrimSpace(f.Language); lang != "" {
		values.Set("language", lang)
	}
	switch f.Validity {
	case model.ValidityValid:
		values.Set("valid", "true")
	case model.ValidityInvalid:
		values.Set("valid", "false")
	}
	if f.Relation != "" {
		values.Set("relation", string(f.Relation))
	}
	if f.SortBy != "" {
		values.Set("sort_by", f.SortBy)
	}
	if f.SortDir != "" {
		values.Set("sort_dir", string(f.SortDir))
	}
	return values
}

// GetSnippet fetches a detail record. A 404 yields (nil, nil).
func (c *Client) GetSnippet(ctx context.Context, id string) (*model.SnippetDetail, error) {
	r := request{op: "get snippet", method: http.MethodGet, path: snippetPath(id)}
	resp, err := c.send(ctx, r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, remoteError(r.op, resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("get snippet: read response: %w", err)
	}
	detail, err := decodeDetail(r.op, body)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// CreateSnippet uploads a new snippet as a two-part multipart body.
func (c *Client) CreateSnippet(ctx context.Context, in model.SnippetInput) (model.SnippetDetail, error) {
	return c.writeSnippet(ctx, "create snippet", http.MethodPost, "snippets", in)
}

// UpdateSnippet replaces a snippet; same payload shape as create.
func (c *Client) UpdateSnippet(ctx context.Context, id string, in model.SnippetInput) (model.SnippetDetail, error) {
	return c.writeSnippet(ctx, "update snippet", http.MethodPut, snippetPath(id), in)
}

func (c *Client) writeSnippet(ctx context.Context, op, method, path string, in model.SnippetInput) (model.SnippetDetail, error) {
	body, contentType, err := encodeSnippet(in)
	if err != nil {
		return model.SnippetDetail{}, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.do(ctx, request{op: op, method: method, path: path, body: body, contentType: contentType})
	if err != nil {
		return model.SnippetDetail{}, err
	}
	return decodeDetail(op, resp)
}

// snippetMetadata is the JSON part of create/update. Optional keys are omitted,
// never sent as empty strings.
type snippetMetadata struct {
	Name        string `json:"name"`
	Language    string `json:"language"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
}

func encodeSnippet(in model.SnippetInput) (io.Reader, string, error) {
	meta := snippetMetadata{
		Name:        in.Name,
		Language:    in.Language,
		Description: in.Description,
		Version:     in.Version,
	}
	if strings.TrimSpace(meta.Description) == "" {
		meta.Description = ""
	}
	if strings.TrimSpace(meta.Version) == "" {
		meta.Version = ""
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return nil, "", fmt.Errorf("encode metadata: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	file, err := w.CreateFormFile("file", model.FileName(in.Name, in.Extension))
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.WriteString(file, in.Content); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="request"`)
	header.Set("Content-Type", "application/json")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create request part: %w", err)
	}
	if _, err := part.Write(rawMeta); err != nil {
		return nil, "", fmt.Errorf("write request part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// DeleteSnippet removes a snippet and returns its id.
func (c *Client) DeleteSnippet(ctx context.Context, id string) (string, error) {
	body, err := c.do(ctx, request{op: "delete snippet", method: http.MethodDelete, path: snippetPath(id)})
	if err != nil {
		return "", err
	}
	return echoedID(body, id), nil
}

// ShareSnippet grants req.UserID access to the snippet.
func (c *Client) ShareSnippet(ctx context.Context, id string, share model.ShareRequest) (model.SnippetDetail, error) {
	r, err := jsonRequest("share snippet", http.MethodPost, snippetPath(id)+"/share", share)
	if err != nil {
		return model.SnippetDetail{}, err
	}
	body, err := c.do(ctx, r)
	if err != nil {
		return model.SnippetDetail{}, err
	}
	return decodeDetail(r.op, body)
}

// FormatSnippet returns the server-formatted text without persisting it.
func (c *Client) FormatSnippet(ctx context.Context, req model.FormatRequest) (string, error) {
	r, err := jsonRequest("format snippet", http.MethodPost, "snippets/format", req)
	if err != nil {
		return "", err
	}
	body, err := c.do(ctx, r)
	if err != nil {
		return "", err
	}
	obj, err := decodeObject(body)
	if err != nil {
		return "", fmt.Errorf("format snippet: decode response: %w", err)
	}
	formatted, ok := pick[string](obj, "formatted", "content")
	if !ok {
		return "", fmt.Errorf("format snippet: response carries no formatted content")
	}
	return formatted, nil
}

// ListRules fetches the formatting or linting rule set.
func (c *Client) ListRules(ctx context.Context, kind model.RuleKind) ([]model.Rule, error) {
	body, err := c.do(ctx, request{op: "list " + string(kind) + " rules", method: http.MethodGet, path: rulesPath(kind)})
	if err != nil {
		return nil, err
	}
	return decodeRules(kind, body)
}

// ModifyRules replaces the rule set and returns what the server stored.
func (c *Client) ModifyRules(ctx context.Context, kind model.RuleKind, rules []model.Rule) ([]model.Rule, error) {
	if rules == nil {
		rules = []model.Rule{}
	}
	r, err := jsonRequest("modify "+string(kind)+" rules", http.MethodPost, rulesPath(kind), rules)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return rules, nil
	}
	return decodeRules(kind, body)
}

func decodeRules(kind model.RuleKind, body []byte) ([]model.Rule, error) {
	items, err := decodeArray(body, "rules", "items")
	if err != nil {
		return nil, fmt.Errorf("decode %s rules: %w", kind, err)
	}
	rules := make([]model.Rule, 0, len(items))
	for _, item := range items {
		rules = append(rules, mapRule(item))
	}
	return rules, nil
}

// ListFileTypes fetches the language catalog. The call is anonymous.
func (c *Client) ListFileTypes(ctx context.Context) ([]model.FileType, error) {
	body, err := c.do(ctx, request{op: "list file types", method: http.MethodGet, path: "file-types", anonymous: true})
	if err != nil {
		return nil, err
	}
	items, err := decodeArray(body, "fileTypes", "items")
	if err != nil {
		return nil, fmt.Errorf("list file types: decode response: %w", err)
	}
	out := make([]model.FileType, 0, len(items))
	for _, item := range items {
		out = append(out, mapFileType(item))
	}
	return out, nil
}

// FormatAll starts a server-side bulk format job.
func (c *Client) FormatAll(ctx context.Context) error {
	_, err := c.do(ctx, request{op: "format all snippets", method: http.MethodPost, path: "admin/snippets/format"})
	return err
}

// LintAll starts a server-side bulk lint job.
func (c *Client) LintAll(ctx context.Context) error {
	_, err := c.do(ctx, request{op: "lint all snippets", method: http.MethodPost, path: "admin/snippets/lint"})
	return err
}

func decodeDetail(op string, body []byte) (model.SnippetDetail, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return model.SnippetDetail{}, fmt.Errorf("%s: decode response: %w", op, err)
	}
	return mapDetail(obj), nil
}

// echoedID reads the id a delete endpoint echoes back: a bare string, a JSON
// string, or {"id": ...}. An empty body echoes the requested id.
func echoedID(body []byte, requested string) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return requested
	}
	var s string
	if err := json.Unmarshal([]byte(trimmed), &s); err == nil && s != "" {
		return s
	}
	if obj, err := decodeObject(body); err == nil {
		if id := pickString(obj, "id"); id != "" {
			return id
		}
		return requested
	}
	return trimmed
}

func snippetPath(id string) string {
	return "snippets/" + url.PathEscape(id)
}

func rulesPath(kind model.RuleKind) string {
	return "snippets/rules/" + string(kind)
}
