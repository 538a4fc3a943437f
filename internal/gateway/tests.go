package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bassista/snipsync/internal/model"
)

const testsPath = "tests"

// testBody is a test case as the service expects it, tagged with its snippet.
type testBody struct {
	SnippetID      string   `json:"snippetId"`
	ID             string   `json:"id,omitempty"`
	Name           string   `json:"name,omitempty"`
	Description    string   `json:"description,omitempty"`
	Input          []string `json:"input,omitempty"`
	ExpectedOutput string   `json:"expectedOutput,omitempty"`
}

func snippetQuery(snippetID string) url.Values {
	return url.Values{"snippetId": {snippetID}}
}

// ListTests fetches the test cases of a snippet.
func (c *Client) ListTests(ctx context.Context, snippetID string) ([]model.TestCase, error) {
	body, err := c.do(ctx, request{
		op:     "list tests",
		method: http.MethodGet,
		path:   testsPath,
		query:  snippetQuery(snippetID),
	})
	if err != nil {
		return nil, err
	}
	items, err := decodeArray(body, "tests", "items")
	if err != nil {
		return nil, fmt.Errorf("list tests: decode response: %w", err)
	}
	out := make([]model.TestCase, 0, len(items))
	for _, item := range items {
		out = append(out, mapTestCase(item))
	}
	return out, nil
}

// UpsertTest creates tc when its ID is empty and updates it in place otherwise.
func (c *Client) UpsertTest(ctx context.Context, snippetID string, tc model.TestCase) (model.TestCase, error) {
	r, err := jsonRequest("save test", http.MethodPost, testsPath, testBody{
		SnippetID:      snippetID,
		ID:             tc.ID,
		Name:           tc.Name,
		Description:    tc.Description,
		Input:          tc.Input,
		ExpectedOutput: tc.ExpectedOutput,
	})
	if err != nil {
		return model.TestCase{}, err
	}
	body, err := c.do(ctx, r)
	if err != nil {
		return model.TestCase{}, err
	}
	obj, err := decodeObject(body)
	if err != nil {
		return model.TestCase{}, fmt.Errorf("save test: decode response: %w", err)
	}
	return mapTestCase(obj), nil
}

// DeleteTest removes a test case and returns its id.
func (c *Client) DeleteTest(ctx context.Context, snippetID, testID string) (string, error) {
	body, err := c.do(ctx, request{
		op:     "delete test",
		method: http.MethodDelete,
		path:   testsPath + "/" + url.PathEscape(testID),
		query:  snippetQuery(snippetID),
	})
	if err != nil {
		return "", err
	}
	return echoedID(body, testID), nil
}

// ExecuteTest runs one test case server-side. The request body is the test
// case itself.
func (c *Client) ExecuteTest(ctx context.Context, snippetID, testID string) (model.TestExecutionResult, error) {
	r, err := jsonRequest("run test", http.MethodPost, testsPath+"/run", testBody{SnippetID: snippetID, ID: testID})
	if err != nil {
		return model.TestExecutionResult{}, err
	}
	body, err := c.do(ctx, r)
	if err != nil {
		return model.TestExecutionResult{}, err
	}
	obj, err := decodeObject(body)
	if err != nil {
		return model.TestExecutionResult{}, fmt.Errorf("run test: decode response: %w", err)
	}
	return mapExecution(obj, testID), nil
}
