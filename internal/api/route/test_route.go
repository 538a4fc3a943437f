package route

import (
	"github.com/bassista/snipsync/internal/api/controller"
	"github.com/gin-gonic/gin"
)

func NewTestRouter(group *gin.RouterGroup, store controller.TestStore) {
	tc := controller.NewTestController(store)

	group.GET("tests", tc.List)
	group.POST("tests", tc.Upsert)
	group.POST("tests/run", tc.Run)
	group.DELETE("tests/:id", tc.Delete)
}
