package route

import (
	"net/http"

	"github.com/bassista/snipsync/internal/api/middleware"
	"github.com/bassista/snipsync/internal/config"
	"github.com/bassista/snipsync/internal/logger"
	"github.com/bassista/snipsync/internal/repository"
	"github.com/gin-gonic/gin"
)

// SetupRoutes builds the development backend engine serving the snippet
// service protocol from store.
func SetupRoutes(store *repository.Store, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger())
	r.Use(middleware.HoneybadgerMiddleware(logger.WithComponent("api")))
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "UP",
		})
	})

	// The catalog is public even when authentication is required.
	publicRouter := r.Group("")
	publicRouter.Use(middleware.RequestTimeout(cfg.RequestTimeout), middleware.BearerAuth(false))
	NewFileTypeRouter(publicRouter, store)

	protectedRouter := r.Group("")
	protectedRouter.Use(middleware.RequestTimeout(cfg.RequestTimeout), middleware.BearerAuth(cfg.RequireAuth))
	NewSnippetRouter(protectedRouter, store)
	NewRuleRouter(protectedRouter, store)
	NewTestRouter(protectedRouter, store)
	NewAdminRouter(protectedRouter.Group("admin"), store)

	return r
}
