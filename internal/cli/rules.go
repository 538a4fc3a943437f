package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bassista/snipsync/internal/model"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules <formatting|linting>",
	Short: "Show or change a rule set",
	Long: `Show the formatting or linting rules. Changing linting rules makes the
service re-check every snippet.

Examples:
  snipsync rules formatting
  snipsync rules linting --disable identifierFormat
  snipsync rules formatting --set indentSize=4`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(model.RuleKindFormatting), string(model.RuleKindLinting)},
	RunE:      runRules,
}

var fileTypesCmd = &cobra.Command{
	Use:   "file-types",
	Short: "List the supported languages",
	Args:  cobra.NoArgs,
	RunE:  runFileTypes,
}

func init() {
	rulesCmd.Flags().StringSlice("enable", nil, "rule ids to activate")
	rulesCmd.Flags().StringSlice("disable", nil, "rule ids to deactivate")
	rulesCmd.Flags().StringToString("set", nil, "rule values, id=number")

	rootCmd.AddCommand(rulesCmd, fileTypesCmd)
}

// changeRules applies the requested changes to rules and reports whether
// anything differs. Unknown ids are an error.
func changeRules(rules []model.Rule, enable, disable []string, values map[string]string) ([]model.Rule, bool, error) {
	index := make(map[string]int, len(rules))
	for i, r := range rules {
		index[r.ID] = i
	}
	out := make([]model.Rule, len(rules))
	copy(out, rules)
	changed := false

	lookup := func(id string) (int, error) {
		i, ok := index[id]
		if !ok {
			return 0, fmt.Errorf("unknown rule %q", id)
		}
		return i, nil
	}
	for _, id := range enable {
		i, err := lookup(id)
		if err != nil {
			return nil, false, err
		}
		changed = changed || !out[i].Active
		out[i].Active = true
	}
	for _, id := range disable {
		i, err := lookup(id)
		if err != nil {
			return nil, false, err
		}
		changed = changed || out[i].Active
		out[i].Active = false
	}
	for id, raw := range values {
		i, err := lookup(id)
		if err != nil {
			return nil, false, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false, fmt.Errorf("rule %s: value %q is not a number", id, raw)
		}
		if out[i].Value == nil || *out[i].Value != v {
			changed = true
		}
		out[i].Value = &v
	}
	return out, changed, nil
}

func runRules(cmd *cobra.Command, args []string) error {
	kind := model.RuleKind(strings.ToLower(args[0]))
	eng, err := newEngine()
	if err != nil {
		return err
	}
	rules, err := eng.Resources.Rules(cmd.Context(), kind)
	if err != nil {
		return err
	}

	enable, _ := cmd.Flags().GetStringSlice("enable")
	disable, _ := cmd.Flags().GetStringSlice("disable")
	values, _ := cmd.Flags().GetStringToString("set")
	next, changed, err := changeRules(rules, enable, disable, values)
	if err != nil {
		return err
	}
	if changed {
		if rules, err = eng.Resources.ModifyRules(cmd.Context(), kind, next); err != nil {
			return err
		}
	}

	return current.out.emit(rules, func(w io.Writer) {
		rows := make([][]string, 0, len(rules))
		for _, r := range rules {
			value := ""
			if r.Value != nil {
				value = strconv.FormatFloat(*r.Value, 'f', -1, 64)
			}
			active := "no"
			if r.Active {
				active = okStyle.Render("yes")
			}
			rows = append(rows, []string{r.ID, r.Name, active, value})
		}
		fmt.Fprintln(w, current.out.table([]string{"ID", "NAME", "ACTIVE", "VALUE"}, rows))
	})
}

func runFileTypes(cmd *cobra.Command, _ []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	catalog, err := eng.Resources.FileTypes(cmd.Context())
	if err != nil {
		return err
	}
	return current.out.emit(catalog, func(w io.Writer) {
		rows := make([][]string, 0, len(catalog))
		for _, ft := range catalog {
			rows = append(rows, []string{ft.Language, ft.Extension, strings.Join(ft.Versions, ", "), ft.DefaultVersion})
		}
		fmt.Fprintln(w, current.out.table([]string{"LANGUAGE", "EXTENSION", "VERSIONS", "DEFAULT"}, rows))
	})
}
