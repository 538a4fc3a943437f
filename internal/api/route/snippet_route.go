package route

import (
	"github.com/bassista/snipsync/internal/api/controller"
	"github.com/gin-gonic/gin"
)

func NewSnippetRouter(group *gin.RouterGroup, store controller.SnippetStore) {
	sc := controller.NewSnippetController(store)

	group.GET("snippets", sc.List)
	group.POST("snippets", sc.Create)
	group.POST("snippets/format", sc.Format)
	group.GET("snippets/:id", sc.Get)
	group.PUT("snippets/:id", sc.Update)
	group.DELETE("snippets/:id", sc.Delete)
	group.POST("snippets/:id/share", sc.Share)
}

func NewAdminRouter(group *gin.RouterGroup, store controller.SnippetStore) {
	sc := controller.NewSnippetController(store)

	group.POST("snippets/format", sc.FormatAll)
	group.POST("snippets/lint", sc.LintAll)
}
