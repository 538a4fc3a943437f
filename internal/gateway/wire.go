package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bassista/snipsync/internal/model"
)

// rawObject is a JSON object decoded one level deep. Every field is decoded
// on demand so one malformed field never poisons its siblings.
type rawObject map[string]json.RawMessage

var errNotObject = errors.New("payload is not a JSON object")

func decodeObject(data []byte) (rawObject, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotObject
	}
	var obj rawObject
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// pick decodes the first alias present, non-null and of the expected type.
func pick[T any](obj rawObject, names ...string) (T, bool) {
	var zero T
	for _, name := range names {
		raw, ok := obj[name]
		if !ok || isNull(raw) {
			continue
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		return v, true
	}
	return zero, false
}

func pickString(obj rawObject, names ...string) string {
	s, _ := pick[string](obj, names...)
	return s
}

func pickObjects(obj rawObject, names ...string) ([]rawObject, bool) {
	items, ok := pick[[]json.RawMessage](obj, names...)
	if !ok {
		return nil, false
	}
	return objects(items), true
}

func objects(items []json.RawMessage) []rawObject {
	out := make([]rawObject, 0, len(items))
	for _, item := range items {
		if obj, err := decodeObject(item); err == nil {
			out = append(out, obj)
		}
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// decodeArray accepts either a bare JSON array or an object carrying the array
// under one of names.
func decodeArray(data []byte, names ...string) ([]rawObject, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return objects(items), nil
	}
	obj, err := decodeObject(trimmed)
	if err != nil {
		return nil, err
	}
	items, _ := pickObjects(obj, names...)
	return items, nil
}

// Listing field aliases, in priority order.
var (
	listingItemFields  = []string{"items", "snippets"}
	listingPageFields  = []string{"page", "number"}
	listingSizeFields  = []string{"pageSize", "page_size"}
	listingTotalFields = []string{"totalElements", "count"}
)

// mapPage maps a listing payload. Missing page metadata falls back to the
// requested position and the received item count.
func mapPage(data []byte, requested model.ListFilter) (model.Page, error) {
	page := model.Page{Page: requested.Page, PageSize: requested.PageSize}

	trimmed := bytes.TrimSpace(data)
	var items []rawObject
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var err error
		if items, err = decodeArray(trimmed); err != nil {
			return model.Page{}, err
		}
		page.Total = len(items)
	} else {
		obj, err := decodeObject(trimmed)
		if err != nil {
			return model.Page{}, err
		}
		items, _ = pickObjects(obj, listingItemFields...)
		if v, ok := pick[int](obj, listingPageFields...); ok {
			page.Page = v
		}
		if v, ok := pick[int](obj, listingSizeFields...); ok {
			page.PageSize = v
		}
		page.Total = len(items)
		if v, ok := pick[int](obj, listingTotalFields...); ok {
			page.Total = v
		}
	}

	page.Items = make([]model.SnippetDescriptor, 0, len(items))
	for _, item := range items {
		page.Items = append(page.Items, mapDescriptor(item))
	}
	return page, nil
}

func mapDescriptor(obj rawObject) model.SnippetDescriptor {
	return model.SnippetDescriptor{
		ID:         pickString(obj, "id"),
		Name:       pickString(obj, "name"),
		Language:   pickString(obj, "language"),
		Extension:  model.NormalizeExtension(pickString(obj, "extension")),
		Author:     mapAuthor(obj),
		Compliance: mapCompliance(pickString(obj, "compliance", "complianceState")),
		Relation:   mapRelation(pickString(obj, "relation")),
	}
}

func mapDetail(obj rawObject) model.SnippetDetail {
	detail := model.SnippetDetail{
		SnippetDescriptor: mapDescriptor(obj),
		Content:           pickString(obj, "content"),
		Description:       pickString(obj, "description"),
		Version:           pickString(obj, "version"),
		ComplianceMessage: pickString(obj, "complianceMessage"),
		LintIssues:        []model.LintIssue{},
		Tests:             []model.TestCase{},
	}
	if issues, ok := pickObjects(obj, "lintErrors", "lintIssues"); ok {
		for _, issue := range issues {
			detail.LintIssues = append(detail.LintIssues, mapLintIssue(issue))
		}
	}
	if tests, ok := pickObjects(obj, "tests"); ok {
		for _, tc := range tests {
			detail.Tests = append(detail.Tests, mapTestCase(tc))
		}
	}
	return detail
}

// mapCompliance maps server compliance codes. The canonical spellings are
// accepted too so mapped output can be mapped again unchanged.
func mapCompliance(code string) model.Compliance {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "VALID", "COMPLIANT":
		return model.ComplianceCompliant
	case "INVALID", "NOT-COMPLIANT", "NOT_COMPLIANT":
		return model.ComplianceNotCompliant
	default:
		return model.CompliancePending
	}
}

func mapRelation(value string) model.Relation {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case string(model.RelationOwner):
		return model.RelationOwner
	case string(model.RelationShared):
		return model.RelationShared
	default:
		return ""
	}
}

func mapAuthor(obj rawObject) string {
	for _, field := range []string{"ownerName", "author"} {
		if name := strings.TrimSpace(pickString(obj, field)); name != "" {
			return name
		}
	}
	return "Unknown"
}

func mapLintIssue(obj rawObject) model.LintIssue {
	issue := model.LintIssue{
		Rule:     pickString(obj, "rule"),
		Message:  pickString(obj, "message"),
		Severity: model.SeverityWarning,
	}
	if strings.EqualFold(pickString(obj, "severity"), string(model.SeverityError)) {
		issue.Severity = model.SeverityError
	}
	issue.StartLine, _ = pick[int](obj, "startLine", "line")
	issue.StartCol, _ = pick[int](obj, "startCol", "column")
	issue.EndLine, _ = pick[int](obj, "endLine")
	issue.EndCol, _ = pick[int](obj, "endCol")
	return issue
}

func mapTestCase(obj rawObject) model.TestCase {
	tc := model.TestCase{
		ID:             pickString(obj, "id"),
		Name:           pickString(obj, "name"),
		Description:    pickString(obj, "description"),
		ExpectedOutput: pickString(obj, "expectedOutput"),
	}
	tc.Input, _ = pick[[]string](obj, "input")

	exitCode, hasExit := pick[int](obj, "lastRunExitCode")
	at, hasAt := pick[string](obj, "lastRunAt")
	if hasExit || hasAt {
		tc.LastRun = &model.TestRun{
			ExitCode: exitCode,
			Stdout:   pickString(obj, "lastRunOutput"),
			Stderr:   pickString(obj, "lastRunError"),
			At:       parseTime(at),
		}
	}
	return tc
}

// mapExecution reads a run response. The service may nest the run under
// "result" or answer with a bare "success" or "fail" there.
func mapExecution(obj rawObject, testID string) model.TestExecutionResult {
	verdict, hasVerdict := pick[string](obj, "result")
	if nested, ok := pick[json.RawMessage](obj, "result"); ok && !hasVerdict {
		if inner, err := decodeObject(nested); err == nil {
			obj = inner
		}
	}
	result := model.TestExecutionResult{
		TestID: pickString(obj, "id", "testId"),
		Stdout: pickString(obj, "stdout"),
		Stderr: pickString(obj, "stderr"),
		At:     parseTime(pickString(obj, "lastRunAt", "at")),
	}
	if result.TestID == "" {
		result.TestID = testID
	}
	exitCode, hasExit := pick[int](obj, "exitCode")
	result.ExitCode = exitCode
	passed, ok := pick[bool](obj, "passed")
	switch {
	case ok:
	case hasVerdict:
		passed = strings.EqualFold(strings.TrimSpace(verdict), "success")
	default:
		passed = exitCode == 0
	}
	if !passed && !hasExit {
		result.ExitCode = 1
	}
	result.Passed = passed
	return result
}

func mapRule(obj rawObject) model.Rule {
	rule := model.Rule{
		ID:   pickString(obj, "id"),
		Name: pickString(obj, "name"),
	}
	rule.Active, _ = pick[bool](obj, "active")
	if v, ok := pick[float64](obj, "value"); ok {
		rule.Value = &v
	} else if s, ok := pick[string](obj, "value"); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			rule.Value = &f
		}
	}
	return rule
}

func mapFileType(obj rawObject) model.FileType {
	ft := model.FileType{
		Language:       pickString(obj, "language"),
		Extension:      model.NormalizeExtension(pickString(obj, "extension")),
		DefaultVersion: pickString(obj, "defaultVersion"),
	}
	ft.Versions, _ = pick[[]string](obj, "versions")
	return ft
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
