// Package cli is the snipsync command line: every command drives the
// synchronization engine against a snippet service.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bassista/snipsync/internal/app"
	"github.com/bassista/snipsync/internal/config"
	"github.com/bassista/snipsync/internal/logger"
	"github.com/bassista/snipsync/internal/prefs"
	"github.com/spf13/cobra"
)

// session is the state shared by every command of one invocation.
type session struct {
	loader *config.Loader
	cfg    *config.Config
	prefs  prefs.Prefs
	out    *printer
}

var current session

var rootCmd = &cobra.Command{
	Use:   "snipsync",
	Short: "Work with snippets on a snippet service",
	Long: `snipsync lists, edits, formats, lints, shares and tests code snippets
stored on a snippet service, keeping a local cache of everything it fetched.

Configuration is read from snipsync.yaml (see --config) and SNIPSYNC_*
environment variables; display preferences from ~/.config/snipsync/prefs.toml.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "directory holding snipsync.yaml and .env")
	rootCmd.PersistentFlags().String("prefs", "", "preferences file (default "+prefs.DefaultPath()+")")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format: text or json (default from preferences)")
	rootCmd.PersistentFlags().String("base-url", "", "snippet service URL (overrides backend.base_url)")
	rootCmd.PersistentFlags().String("token", "", "bearer token (overrides auth.token)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides misc.log_level)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "discard log output")
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	dir, _ := cmd.Flags().GetString("config")
	loader := config.NewLoader(dir)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if v, _ := cmd.Flags().GetString("base-url"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		cfg.Auth.Token = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Misc.LogLevel = v
	}
	if err := logger.SetLevel(cfg.Misc.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Misc.LogLevel, err)
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		logger.SetOutput(io.Discard)
	}

	prefsPath, _ := cmd.Flags().GetString("prefs")
	p, err := prefs.Load(prefsPath)
	if err != nil {
		logger.WithComponent("cli").Warnf("ignoring preferences: %v", err)
	}

	format := p.Output
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		format = v
	}
	out, err := newPrinter(cmd.OutOrStdout(), format)
	if err != nil {
		return err
	}

	current = session{loader: loader, cfg: cfg, prefs: p, out: out}
	logger.WithComponent("cli").Debugf("using snippet service %s", cfg.Backend.BaseURL)
	return nil
}

func newEngine() (*app.Engine, error) {
	eng, err := app.NewEngine(current.cfg)
	if err != nil {
		return nil, fmt.Errorf("cannot init engine: %w", err)
	}
	return eng, nil
}

// readSource reads a file argument, "-" meaning standard input.
func readSource(cmd *cobra.Command, path string) (string, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(raw), nil
}
