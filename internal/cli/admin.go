package cli

import (
	"fmt"
	"io"

	"github.com/bassista/snipsync/internal/prefs"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Service-wide maintenance",
}

var formatAllCmd = &cobra.Command{
	Use:   "format-all",
	Short: "Format every snippet with the current rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		if err := eng.Resources.FormatAll(cmd.Context()); err != nil {
			return err
		}
		return current.out.emit(map[string]string{"status": "accepted"}, func(w io.Writer) {
			fmt.Fprintln(w, "Formatting of all snippets accepted.")
		})
	},
}

var lintAllCmd = &cobra.Command{
	Use:   "lint-all",
	Short: "Re-check every snippet against the linting rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		if err := eng.Resources.LintAll(cmd.Context()); err != nil {
			return err
		}
		return current.out.emit(map[string]string{"status": "accepted"}, func(w io.Writer) {
			fmt.Fprintln(w, "Linting of all snippets accepted.")
		})
	},
}

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change display preferences",
	Long: `Show the display preferences, or change them with flags. Only the
flags you pass are changed.

Example:
  snipsync prefs --page-size 20 --sort-by name --format json`,
	Args: cobra.NoArgs,
	RunE: runPrefs,
}

func init() {
	prefsCmd.Flags().Int("page-size", 0, "default page size")
	prefsCmd.Flags().String("sort-by", "", "default sort field")
	prefsCmd.Flags().String("sort-dir", "", "default sort direction, asc or desc")
	prefsCmd.Flags().String("format", "", "default output format, text or json")

	adminCmd.AddCommand(formatAllCmd, lintAllCmd)
	rootCmd.AddCommand(adminCmd, prefsCmd)
}

func runPrefs(cmd *cobra.Command, _ []string) error {
	p := current.prefs
	flags := cmd.Flags()
	changed := false
	if flags.Changed("page-size") {
		p.PageSize, _ = flags.GetInt("page-size")
		changed = true
	}
	if flags.Changed("sort-by") {
		p.SortBy, _ = flags.GetString("sort-by")
		changed = true
	}
	if flags.Changed("sort-dir") {
		p.SortDir, _ = flags.GetString("sort-dir")
		changed = true
	}
	if flags.Changed("format") {
		p.Output, _ = flags.GetString("format")
		changed = true
	}
	if changed {
		path, _ := cmd.Flags().GetString("prefs")
		if err := prefs.Save(path, p); err != nil {
			return err
		}
		saved, err := prefs.Load(path)
		if err != nil {
			return err
		}
		p = saved
		current.prefs = p
	}
	return current.out.emit(p, func(w io.Writer) {
		field(w, "page size", fmt.Sprint(p.PageSize))
		field(w, "sort by", p.SortBy)
		field(w, "sort dir", p.SortDir)
		field(w, "output", p.Output)
	})
}
