package controller

import (
	"fmt"
	"net/http"

	"github.com/bassista/snipsync/internal/logger"
	"github.com/bassista/snipsync/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ruleSet adapts one rule kind of a RuleStore to CollectionService.
type ruleSet struct {
	store RuleStore
	kind  model.RuleKind
}

func (r ruleSet) All() ([]model.Rule, error) {
	return r.store.Rules(r.kind)
}

func (r ruleSet) ReplaceAll(rules []model.Rule) ([]model.Rule, error) {
	return r.store.SetRules(r.kind, rules)
}

type ruleValidator struct {
	validator *validator.Validate
}

func (v ruleValidator) Validate(rule model.Rule) error {
	if err := v.validator.Struct(rule); err != nil {
		return fmt.Errorf("invalid rule %q: id is required", rule.Name)
	}
	return nil
}

// RuleController serves the formatting and linting rule sets and the
// file-type catalog.
type RuleController struct {
	store RuleStore
	sets  map[model.RuleKind]*CollectionController[model.Rule]
}

func NewRuleController(store RuleStore) *RuleController {
	v := ruleValidator{validator: validator.New()}
	rc := &RuleController{store: store, sets: map[model.RuleKind]*CollectionController[model.Rule]{}}
	for _, kind := range []model.RuleKind{model.RuleKindFormatting, model.RuleKindLinting} {
		rc.sets[kind] = &CollectionController[model.Rule]{
			Service:   ruleSet{store: store, kind: kind},
			Validator: v,
			Log:       logger.WithComponent("rule-controller"),
			Name:      string(kind) + " rules",
		}
	}
	return rc
}

func (rc *RuleController) set(c *gin.Context) (*CollectionController[model.Rule], bool) {
	kind := model.RuleKind(c.Param("kind"))
	set, ok := rc.sets[kind]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown rule kind %q", kind)})
	}
	return set, ok
}

// Rules handles GET /snippets/rules/:kind.
func (rc *RuleController) Rules(c *gin.Context) {
	if set, ok := rc.set(c); ok {
		set.GetAll(c)
	}
}

// ModifyRules handles POST /snippets/rules/:kind.
func (rc *RuleController) ModifyRules(c *gin.Context) {
	if set, ok := rc.set(c); ok {
		set.ReplaceAll(c)
	}
}

// FileTypes handles GET /file-types.
func (rc *RuleController) FileTypes(c *gin.Context) {
	logger.WithComponent("rule-controller").Debugf("GET /file-types handler called")
	c.JSON(http.StatusOK, gin.H{"fileTypes": rc.store.FileTypes()})
}
