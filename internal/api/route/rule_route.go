package route

import (
	"github.com/bassista/snipsync/internal/api/controller"
	"github.com/gin-gonic/gin"
)

func NewRuleRouter(group *gin.RouterGroup, store controller.RuleStore) {
	rc := controller.NewRuleController(store)

	group.GET("snippets/rules/:kind", rc.Rules)
	group.POST("snippets/rules/:kind", rc.ModifyRules)
}

func NewFileTypeRouter(group *gin.RouterGroup, store controller.RuleStore) {
	rc := controller.NewRuleController(store)

	group.GET("file-types", rc.FileTypes)
}
