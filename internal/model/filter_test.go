package model

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestListFilter_KeyWithoutPredicate(t *testing.T) {
	f := ListFilter{Page: 0, PageSize: 10}
	assert.Equal(t, "listSnippets:page=0:size=10:filter={}", f.Key())
}

func TestListFilter_KeyEquality(t *testing.T) {
	a := ListFilter{Language: "python", SortBy: "name", SortDir: SortAsc, Page: 2, PageSize: 20}
	b := a

	assert.Equal(t, a.Key(), b.Key())

	b.Page = 3
	assert.NotEqual(t, a.Key(), b.Key(), "page must be part of the key")

	c := a
	c.Relation = RelationShared
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestListFilter_KeyFollowsFilterEquality(t *testing.T) {
	a := ListFilter{NameSubstring: "alpha", PageSize: 10}
	b := ListFilter{NameSubstring: " alpha", PageSize: 10}
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, `listSnippets:page=0:size=10:filter={"name":"alpha"}`, a.Key())
}

func TestListFilter_KeyFieldOrderIsFixed(t *testing.T) {
	f := ListFilter{
		NameSubstring: "a",
		Language:      "printscript",
		Relation:      RelationOwner,
		Validity:      ValidityValid,
		SortBy:        "name",
		SortDir:       SortDesc,
		PageSize:      5,
	}
	want := `listSnippets:page=0:size=5:filter={"name":"a","language":"printscript","relation":"OWNER","valid":"valid","sortBy":"name","sortDir":"desc"}`
	assert.Equal(t, want, f.Key())
}

func TestListFilter_Validation(t *testing.T) {
	v := validator.New()

	assert.NoError(t, v.Struct(ListFilter{PageSize: 10}))
	assert.Error(t, v.Struct(ListFilter{PageSize: 0}))
	assert.Error(t, v.Struct(ListFilter{Page: -1, PageSize: 10}))
	assert.Error(t, v.Struct(ListFilter{PageSize: 10, SortDir: "sideways"}))
	assert.Error(t, v.Struct(ListFilter{PageSize: 10, Relation: "FRIEND"}))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "snippet:s1", SnippetKey("s1"))
	assert.Equal(t, "tests:s1", TestsKey("s1"))
	assert.Equal(t, "rules:linting", RulesKey(RuleKindLinting))
}
