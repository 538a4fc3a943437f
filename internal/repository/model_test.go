package repository

import (
	"testing"

	"github.com/bassista/snipsync/internal/model"
)

func TestDefaultSeed(t *testing.T) {
	seed := DefaultSeed()

	if len(seed.Snippets) != 3 {
		t.Fatalf("expected 3 snippets, got %d", len(seed.Snippets))
	}
	for _, s := range seed.Snippets {
		if s.Language != "printscript" || s.Extension != "prs" {
			t.Errorf("unexpected language/extension %s/%s", s.Language, s.Extension)
		}
		if len(s.Tests) != 2 {
			t.Errorf("expected 2 tests for %s, got %d", s.Name, len(s.Tests))
		}
	}
	if seed.Snippets[0].Tests[0].ID == seed.Snippets[1].Tests[0].ID {
		t.Error("expected test ids to be unique per snippet")
	}
	if len(seed.FormattingRules) != 7 || len(seed.LintingRules) != 5 || len(seed.FileTypes) != 4 {
		t.Errorf("unexpected rule/file type counts: %d %d %d",
			len(seed.FormattingRules), len(seed.LintingRules), len(seed.FileTypes))
	}
	indent := seed.FormattingRules[6]
	if indent.ID != "indentSize" || indent.Value == nil || *indent.Value != 2 {
		t.Errorf("expected indentSize rule with value 2, got %+v", indent)
	}
}

func TestSeed_Catalog(t *testing.T) {
	catalog := DefaultSeed().Catalog()
	if got := model.ExtensionFor(catalog, "Python"); got != "py" {
		t.Errorf("expected py, got %q", got)
	}
	if got := model.DefaultVersion(catalog, "printscript"); got != "1.1" {
		t.Errorf("expected default version 1.1, got %q", got)
	}
}

func TestSeed_CloneIsDeep(t *testing.T) {
	seed := DefaultSeed()
	clone, err := seed.Clone()
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	clone.Snippets[0].Tests[0].Input[0] = "changed"
	if seed.Snippets[0].Tests[0].Input[0] == "changed" {
		t.Error("expected clone not to share slices")
	}
}

func TestAreSeedsEqual(t *testing.T) {
	a := DefaultSeed()
	b, _ := a.Clone()
	if !AreSeedsEqual(a, b) {
		t.Error("expected clones to be equal")
	}
	b.LintingRules[0].Active = false
	if AreSeedsEqual(a, b) {
		t.Error("expected changed rule to differ")
	}
	if !AreSeedsEqual(nil, nil) || AreSeedsEqual(a, nil) {
		t.Error("unexpected nil comparison result")
	}
}
