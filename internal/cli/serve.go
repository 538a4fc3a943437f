package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"syscall"

	"github.com/bassista/snipsync/internal/api/route"
	"github.com/bassista/snipsync/internal/app"
	"github.com/bassista/snipsync/internal/config"
	"github.com/bassista/snipsync/internal/logger"
	"github.com/bassista/snipsync/internal/repository"
	"github.com/enrichman/httpgrace"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the development snippet service",
	Long: `Run an in-memory snippet service speaking the same protocol as the real
one, seeded with sample snippets, rules and file types.

With a seed file the state is loaded from it, reloaded when it changes on disk
and written back on shutdown.

Endpoints:
  GET    /health
  GET    /snippets                      POST /snippets
  GET    /snippets/:id                  PUT  /snippets/:id   DELETE /snippets/:id
  POST   /snippets/:id/share            POST /snippets/format
  GET    /snippets/rules/:kind          POST /snippets/rules/:kind
  GET    /tests?snippetId=              POST /tests
  POST   /tests/run                     DELETE /tests/:id
  GET    /file-types
  POST   /admin/snippets/format         POST /admin/snippets/lint`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on (overrides server.port)")
	serveCmd.Flags().String("seed", "", "JSON seed file (overrides server.seed_file)")
	serveCmd.Flags().Bool("require-auth", false, "reject requests without a bearer token")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	mainLog := logger.WithComponent("main")
	cfg := current.cfg
	if v, _ := cmd.Flags().GetInt("port"); v > 0 {
		cfg.Server.Port = v
	}
	if v, _ := cmd.Flags().GetString("seed"); v != "" {
		cfg.Server.SeedFile = v
	}
	if cmd.Flags().Changed("require-auth") {
		cfg.Server.RequireAuth, _ = cmd.Flags().GetBool("require-auth")
	}

	current.loader.Watch(func(next *config.Config) {
		if err := logger.SetLevel(next.Misc.LogLevel); err != nil {
			mainLog.Warnf("invalid log level '%s' in reloaded config: %v", next.Misc.LogLevel, err)
			return
		}
		mainLog.Infof("log level set to %s", next.Misc.LogLevel)
	})

	var repo repository.Repository
	if cfg.Server.SeedFile != "" {
		r, err := repository.NewJSONRepository(cfg.Server.SeedFile)
		if err != nil {
			return fmt.Errorf("cannot init repository: %w", err)
		}
		repo = r
	}

	backend, err := app.NewBackend(cfg, repo)
	if err != nil {
		return fmt.Errorf("cannot init backend: %w", err)
	}
	defer backend.Shutdown()

	if err := backend.StartWatchers(); err != nil {
		mainLog.Warnf("seed file changes will not be picked up: %v", err)
	}

	gin.SetMode(cfg.Misc.GinMode)
	gin.DefaultWriter = logger.Logger.Writer()
	gin.DefaultErrorWriter = logger.Logger.Writer()

	r := route.SetupRoutes(backend.Store, cfg.Server)
	srv := createGraceHttpServer(backend, "snippet-service", r)

	mainLog.Infof("snippet service listening on port %d", cfg.Server.Port)
	fmt.Fprintf(cmd.ErrOrStderr(), "Serving snippets on http://localhost:%d\n", cfg.Server.Port)
	if err := srv.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func createGraceHttpServer(backend *app.Backend, name string, r *gin.Engine) *httpgrace.Server {
	serverConfig := backend.Config.Server
	slogLogger := slog.New(slog.NewTextHandler(logger.Logger.Writer(), nil))

	return httpgrace.NewServer(r,
		httpgrace.WithTimeout(serverConfig.ShutDownTimeout),
		httpgrace.WithSignals(syscall.SIGTERM, syscall.SIGINT),
		httpgrace.WithLogger(slogLogger),
		httpgrace.WithBeforeShutdown(func() {
			logger.WithComponent("http").Infof("Shutting down %s server....", name)
			ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutDownTimeout)
			defer cancel()
			if err := backend.Persist(ctx); err != nil {
				logger.WithComponent("http").Errorf("state not saved: %v", err)
			}
		}),
		httpgrace.WithServerOptions(
			httpgrace.WithReadTimeout(serverConfig.ReadTimeout),
			httpgrace.WithWriteTimeout(serverConfig.WriteTimeout),
			httpgrace.WithIdleTimeout(serverConfig.IdleTimeout),
			func(srv *http.Server) {
				srv.BaseContext = func(_ net.Listener) context.Context {
					return backend.BaseCtx
				}
			},
			func(srv *http.Server) {
				srv.ErrorLog = log.New(logger.Logger.Writer(), fmt.Sprintf("[%s] ", name), log.LstdFlags)
			},
		),
	)
}
