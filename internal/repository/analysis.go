package repository

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bassista/snipsync/internal/model"
)

var (
	declaration     = regexp.MustCompile(`\blet\s+([A-Za-z_][A-Za-z0-9_]*)`)
	colonSpacing    = regexp.MustCompile(`[ \t]*:[ \t]*`)
	equalsSpacing   = regexp.MustCompile(`[ \t]*=[ \t]*`)
	operatorSpacing = regexp.MustCompile(`[ \t]*([+\-*/])[ \t]*`)
	statementBreak  = regexp.MustCompile(`;[ \t]*([^\s])`)
	repeatedSpaces  = regexp.MustCompile(`[ \t]{2,}`)
)

func active(rules []model.Rule, id string) bool {
	for _, r := range rules {
		if r.ID == id {
			return r.Active
		}
	}
	return false
}

// formatContent applies the active formatting rules. Trailing whitespace is
// always removed.
func formatContent(content string, rules []model.Rule) string {
	out := content
	if active(rules, "lineJumpAfterSemicolon") {
		out = statementBreak.ReplaceAllString(out, ";\n$1")
	}
	before, after := active(rules, "spaceBeforeColon"), active(rules, "spaceAfterColon")
	if before || after {
		colon := ":"
		if before {
			colon = " " + colon
		}
		if after {
			colon += " "
		}
		out = colonSpacing.ReplaceAllLiteralString(out, colon)
	}
	if active(rules, "spaceAroundEquals") {
		out = equalsSpacing.ReplaceAllLiteralString(out, " = ")
	}
	if active(rules, "spaceAroundOperators") {
		out = operatorSpacing.ReplaceAllString(out, " $1 ")
	}

	lines := strings.Split(out, "\n")
	for i, line := range lines {
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		body := strings.TrimSpace(line)
		if active(rules, "singleSpaceSeparation") {
			body = repeatedSpaces.ReplaceAllLiteralString(body, " ")
		}
		lines[i] = line[:indent] + body
	}
	return strings.Join(lines, "\n")
}

// lintContent checks the active linting rules and returns the issues found.
func lintContent(content string, rules []model.Rule) []model.LintIssue {
	issues := []model.LintIssue{}
	seen := map[string]bool{}
	for n, line := range strings.Split(content, "\n") {
		for _, m := range declaration.FindAllStringSubmatchIndex(line, -1) {
			name := line[m[2]:m[3]]
			issue := model.LintIssue{
				StartLine: n + 1,
				StartCol:  m[2] + 1,
				EndLine:   n + 1,
				EndCol:    m[3] + 1,
			}
			if active(rules, "no-duplicate-var") && seen[name] {
				issue.Rule = "no-duplicate-var"
				issue.Message = fmt.Sprintf("variable %s is declared twice", name)
				issue.Severity = model.SeverityError
				issues = append(issues, issue)
			}
			seen[name] = true
			if active(rules, "identifier-style") && strings.Contains(strings.Trim(name, "_"), "_") {
				issue.Rule = "identifier-style"
				issue.Message = fmt.Sprintf("identifier %s should be camelCase", name)
				issue.Severity = model.SeverityWarning
				issues = append(issues, issue)
			}
		}
	}
	return issues
}

// applyLint stores the lint outcome and compliance on r.
func applyLint(r *SnippetRecord, rules []model.Rule) {
	r.LintIssues = lintContent(r.Content, rules)
	if len(r.LintIssues) == 0 {
		r.Compliance = ComplianceValid
		r.ComplianceMessage = ""
		return
	}
	r.Compliance = ComplianceInvalid
	r.ComplianceMessage = fmt.Sprintf("%d lint issue(s) found", len(r.LintIssues))
}
