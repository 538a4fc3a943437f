package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bassista/snipsync/internal/cache"
	"github.com/bassista/snipsync/internal/editor"
	"github.com/bassista/snipsync/internal/listing"
	"github.com/bassista/snipsync/internal/model"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List snippets one page at a time",
	Long: `List the snippets visible to you. Filters combine; the page size and
sort order default to your preferences.

Examples:
  snipsync list --name cool --valid
  snipsync list --relation SHARED --page 1 --page-size 20`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a snippet with its lint issues and tests",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a snippet from a file",
	Long: `Create a snippet. The content comes from --file ("-" reads standard
input). The extension defaults to the file's own extension, then to the
language's canonical one.`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Edit a snippet",
	Long: `Open the snippet, apply the given changes to the draft and save it if
anything changed. Changing --language moves version and extension to the new
language's defaults unless you set them too.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a snippet",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var shareCmd = &cobra.Command{
	Use:   "share <id> <user>",
	Short: "Share a snippet with another user",
	Args:  cobra.ExactArgs(2),
	RunE:  runShare,
}

var formatCmd = &cobra.Command{
	Use:   "format <id>",
	Short: "Preview the server-formatted content of a snippet",
	Long: `Ask the service to format the snippet's content and print the result.
With --write the formatted content is saved.`,
	Args: cobra.ExactArgs(1),
	RunE: runFormat,
}

func init() {
	listCmd.Flags().String("name", "", "name substring")
	listCmd.Flags().String("language", "", "language")
	listCmd.Flags().String("relation", "", "OWNER or SHARED")
	listCmd.Flags().Bool("valid", false, "only compliant snippets")
	listCmd.Flags().Bool("invalid", false, "only non-compliant snippets")
	listCmd.Flags().String("sort-by", "", "sort field (name, language, author, compliance)")
	listCmd.Flags().String("sort-dir", "", "asc or desc")
	listCmd.Flags().Int("page", 0, "page number, starting at 0")
	listCmd.Flags().Int("page-size", 0, "items per page")
	listCmd.MarkFlagsMutuallyExclusive("valid", "invalid")

	for _, c := range []*cobra.Command{createCmd, updateCmd} {
		c.Flags().String("name", "", "snippet name")
		c.Flags().String("language", "", "language")
		c.Flags().String("version", "", "language version")
		c.Flags().String("description", "", "description")
		c.Flags().String("extension", "", "file extension")
		c.Flags().StringP("file", "f", "", `content file ("-" for standard input)`)
	}
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("language")
	_ = createCmd.MarkFlagRequired("file")

	formatCmd.Flags().Bool("write", false, "save the formatted content")

	rootCmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd, shareCmd, formatCmd)
}

func listFilter(cmd *cobra.Command) model.ListFilter {
	f := model.ListFilter{
		PageSize: current.prefs.PageSize,
		SortBy:   current.prefs.SortBy,
		SortDir:  model.SortDir(current.prefs.SortDir),
	}
	if f.PageSize < 1 {
		f.PageSize = current.cfg.Listing.PageSize
	}
	name, _ := cmd.Flags().GetString("name")
	f.NameSubstring = strings.TrimSpace(name)
	f.Language, _ = cmd.Flags().GetString("language")
	if v, _ := cmd.Flags().GetString("relation"); v != "" {
		f.Relation = model.Relation(strings.ToUpper(v))
	}
	if v, _ := cmd.Flags().GetBool("valid"); v {
		f.Validity = model.ValidityValid
	}
	if v, _ := cmd.Flags().GetBool("invalid"); v {
		f.Validity = model.ValidityInvalid
	}
	if v, _ := cmd.Flags().GetString("sort-by"); v != "" {
		f.SortBy = v
	}
	if v, _ := cmd.Flags().GetString("sort-dir"); v != "" {
		f.SortDir = model.SortDir(strings.ToLower(v))
	}
	f.Page, _ = cmd.Flags().GetInt("page")
	if v, _ := cmd.Flags().GetInt("page-size"); v > 0 {
		f.PageSize = v
	}
	return f
}

// settled waits for the first view of the current query that finished
// loading, successfully or not.
func settled(ctx context.Context, ctl *listing.Controller) (listing.View, error) {
	done := make(chan listing.View, 1)
	unsubscribe := ctl.Subscribe(func(v listing.View) {
		if v.Status == cache.StatusFresh || v.Err != nil {
			select {
			case done <- v:
			default:
			}
		}
	})
	defer unsubscribe()
	ctl.Start()

	select {
	case v := <-done:
		return v, v.Err
	case <-ctx.Done():
		return listing.View{}, ctx.Err()
	}
}

func runList(cmd *cobra.Command, _ []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	ctl := eng.Listing(listFilter(cmd))
	defer ctl.Close()

	v, err := settled(cmd.Context(), ctl)
	if err != nil {
		return err
	}

	page := model.Page{Items: v.Items, Page: v.Page, PageSize: v.PageSize, Total: v.Count}
	if page.Items == nil {
		page.Items = []model.SnippetDescriptor{}
	}
	return current.out.emit(page, func(w io.Writer) {
		if len(v.Items) == 0 {
			fmt.Fprintln(w, "No snippets found.")
			return
		}
		rows := make([][]string, 0, len(v.Items))
		for _, s := range v.Items {
			rows = append(rows, []string{s.ID, s.Name, s.Language, s.Author, complianceLabel(s.Compliance), string(s.Relation)})
		}
		fmt.Fprintln(w, current.out.table([]string{"ID", "NAME", "LANGUAGE", "AUTHOR", "COMPLIANCE", "RELATION"}, rows))
		fmt.Fprintf(w, "page %d of %d (%d snippets)\n", v.Page+1, pageCount(v.Count, v.PageSize), v.Count)
	})
}

func pageCount(total, size int) int {
	if size < 1 || total == 0 {
		return 1
	}
	return (total + size - 1) / size
}

func printDetail(d model.SnippetDetail) error {
	return current.out.emit(d, func(w io.Writer) {
		field(w, "ID", d.ID)
		field(w, "Name", d.Name)
		field(w, "Language", strings.TrimSpace(d.Language+" "+d.Version))
		field(w, "File", model.FileName(d.Name, d.Extension))
		field(w, "Author", d.Author)
		field(w, "Relation", string(d.Relation))
		field(w, "Compliance", complianceLabel(d.Compliance))
		field(w, "Message", d.ComplianceMessage)
		field(w, "Description", d.Description)
		fmt.Fprintln(w)
		fmt.Fprintln(w, d.Content)
		if len(d.LintIssues) > 0 {
			fmt.Fprintln(w)
			for _, issue := range d.LintIssues {
				fmt.Fprintf(w, "%d:%d %s %s (%s)\n", issue.StartLine, issue.StartCol, issue.Severity, issue.Message, issue.Rule)
			}
		}
		if len(d.Tests) > 0 {
			fmt.Fprintln(w)
			for _, tc := range d.Tests {
				fmt.Fprintf(w, "test %s  %s\n", tc.ID, tc.Name)
			}
		}
	})
}

func runGet(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	d, err := eng.Resources.Snippet(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("snippet %s not found", args[0])
	}
	return printDetail(*d)
}

func runCreate(cmd *cobra.Command, _ []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	in := model.SnippetInput{}
	in.Name, _ = cmd.Flags().GetString("name")
	in.Language, _ = cmd.Flags().GetString("language")
	in.Version, _ = cmd.Flags().GetString("version")
	in.Description, _ = cmd.Flags().GetString("description")
	in.Extension, _ = cmd.Flags().GetString("extension")

	path, _ := cmd.Flags().GetString("file")
	if in.Content, err = readSource(cmd, path); err != nil {
		return err
	}
	if in.Extension == "" && path != "-" {
		in.Extension = model.NormalizeExtension(filepath.Ext(path))
	}
	if in.Extension == "" || in.Version == "" {
		catalog, err := eng.Resources.FileTypes(cmd.Context())
		if err != nil {
			return err
		}
		if in.Extension == "" {
			in.Extension = model.ExtensionFor(catalog, in.Language)
		}
		if in.Version == "" {
			in.Version = model.DefaultVersion(catalog, in.Language)
		}
	}

	d, err := eng.Resources.CreateSnippet(cmd.Context(), in)
	if err != nil {
		return err
	}
	return printDetail(d)
}

// applyEdits copies the flags the user set onto the draft. Language goes
// first so explicit version and extension flags win over its defaults.
func applyEdits(cmd *cobra.Command, s *editor.Session) error {
	flags := cmd.Flags()
	if flags.Changed("language") {
		v, _ := flags.GetString("language")
		s.SetLanguage(v)
	}
	if flags.Changed("name") {
		v, _ := flags.GetString("name")
		s.SetName(v)
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		s.SetDescription(v)
	}
	if flags.Changed("version") {
		v, _ := flags.GetString("version")
		s.SetVersion(v)
	}
	if flags.Changed("extension") {
		v, _ := flags.GetString("extension")
		s.SetExtension(v)
	}
	if flags.Changed("file") {
		path, _ := flags.GetString("file")
		content, err := readSource(cmd, path)
		if err != nil {
			return err
		}
		s.SetContent(content)
	}
	return nil
}

func save(ctx context.Context, s *editor.Session) error {
	state := s.State()
	if !state.Dirty {
		fmt.Fprintln(current.out.w, "Nothing to save.")
		return nil
	}
	if len(state.Missing) > 0 {
		names := make([]string, 0, len(state.Missing))
		for _, f := range state.Missing {
			names = append(names, string(f))
		}
		return fmt.Errorf("cannot save, missing: %s", strings.Join(names, ", "))
	}
	d, err := s.Save(ctx)
	if err != nil {
		if errors.Is(err, editor.ErrNothingToSave) {
			fmt.Fprintln(current.out.w, "Nothing to save.")
			return nil
		}
		return err
	}
	return printDetail(d)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	s, err := eng.OpenEditor(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := applyEdits(cmd, s); err != nil {
		return err
	}
	return save(cmd.Context(), s)
}

func runDelete(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	id, err := eng.Resources.DeleteSnippet(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	eng.Tests.ForgetSnippet(id)
	return current.out.emit(map[string]string{"id": id}, func(w io.Writer) {
		fmt.Fprintf(w, "Deleted snippet %s\n", id)
	})
}

func runShare(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	d, err := eng.Resources.ShareSnippet(cmd.Context(), args[0], model.ShareRequest{UserID: args[1]})
	if err != nil {
		return err
	}
	return current.out.emit(d, func(w io.Writer) {
		fmt.Fprintf(w, "Shared %s with %s\n", d.Name, args[1])
	})
}

func runFormat(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	s, err := eng.OpenEditor(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	formatted, err := s.Format(cmd.Context())
	if err != nil {
		return err
	}
	if write, _ := cmd.Flags().GetBool("write"); write {
		return save(cmd.Context(), s)
	}
	return current.out.emit(map[string]string{"formatted": formatted}, func(w io.Writer) {
		fmt.Fprintln(w, formatted)
	})
}
