package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bassista/snipsync/internal/model"
	"github.com/bassista/snipsync/internal/testrun"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var testsCmd = &cobra.Command{
	Use:   "tests",
	Short: "Manage and run the test cases of a snippet",
}

var testsListCmd = &cobra.Command{
	Use:   "list <snippet-id>",
	Short: "List test cases with their last recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  runTestsList,
}

var testsSaveCmd = &cobra.Command{
	Use:   "save <snippet-id>",
	Short: "Create a test case, or update it when --id is given",
	Args:  cobra.ExactArgs(1),
	RunE:  runTestsSave,
}

var testsDeleteCmd = &cobra.Command{
	Use:   "delete <snippet-id> <test-id>",
	Short: "Delete a test case",
	Args:  cobra.ExactArgs(2),
	RunE:  runTestsDelete,
}

var testsRunCmd = &cobra.Command{
	Use:   "run <snippet-id> [test-id...]",
	Short: "Execute test cases, all of them when none is named",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTestsRun,
}

func init() {
	testsSaveCmd.Flags().String("id", "", "test id to update")
	testsSaveCmd.Flags().String("name", "", "test name")
	testsSaveCmd.Flags().String("description", "", "description")
	testsSaveCmd.Flags().StringArray("input", nil, "input line, repeatable")
	testsSaveCmd.Flags().String("expected", "", "expected output")
	_ = testsSaveCmd.MarkFlagRequired("name")

	testsRunCmd.Flags().Int("parallel", 4, "executions in flight at once")

	testsCmd.AddCommand(testsListCmd, testsSaveCmd, testsDeleteCmd, testsRunCmd)
	rootCmd.AddCommand(testsCmd)
}

func lastRun(tc model.TestCase) string {
	if tc.LastRun == nil {
		return "never run"
	}
	status := okStyle.Render("passed")
	if tc.LastRun.ExitCode != 0 {
		status = badStyle.Render("failed")
	}
	return fmt.Sprintf("%s (exit %d) %s", status, tc.LastRun.ExitCode, tc.LastRun.At.Format("2006-01-02 15:04:05"))
}

func runTestsList(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	tests, err := eng.Resources.Tests(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return current.out.emit(tests, func(w io.Writer) {
		if len(tests) == 0 {
			fmt.Fprintln(w, "No tests.")
			return
		}
		rows := make([][]string, 0, len(tests))
		for _, tc := range tests {
			rows = append(rows, []string{tc.ID, tc.Name, strings.Join(tc.Input, " | "), tc.ExpectedOutput, lastRun(tc)})
		}
		fmt.Fprintln(w, current.out.table([]string{"ID", "NAME", "INPUT", "EXPECTED", "LAST RUN"}, rows))
	})
}

func runTestsSave(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	tc := model.TestCase{}
	tc.ID, _ = cmd.Flags().GetString("id")
	tc.Name, _ = cmd.Flags().GetString("name")
	tc.Description, _ = cmd.Flags().GetString("description")
	tc.Input, _ = cmd.Flags().GetStringArray("input")
	tc.ExpectedOutput, _ = cmd.Flags().GetString("expected")

	saved, err := eng.Resources.UpsertTest(cmd.Context(), args[0], tc)
	if err != nil {
		return err
	}
	return current.out.emit(saved, func(w io.Writer) {
		fmt.Fprintf(w, "Saved test %s (%s)\n", saved.Name, saved.ID)
	})
}

func runTestsDelete(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	id, err := eng.Tests.Delete(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	return current.out.emit(map[string]string{"id": id}, func(w io.Writer) {
		fmt.Fprintf(w, "Deleted test %s\n", id)
	})
}

type runReport struct {
	TestID   string `json:"testId"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Passed   bool   `json:"passed"`
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	Error    string `json:"error,omitempty"`
}

func runTestsRun(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	snippetID := args[0]
	ctx := cmd.Context()

	tests, err := eng.Resources.Tests(ctx, snippetID)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(tests))
	for _, tc := range tests {
		names[tc.ID] = tc.Name
	}
	ids := args[1:]
	if len(ids) == 0 {
		for _, tc := range tests {
			ids = append(ids, tc.ID)
		}
	}
	for _, id := range ids {
		if _, ok := names[id]; !ok {
			return fmt.Errorf("snippet %s has no test %s", snippetID, id)
		}
	}

	parallel, _ := cmd.Flags().GetInt("parallel")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))
	for _, id := range ids {
		g.Go(func() error {
			// failures are recorded by the tracker and reported below
			_, _ = eng.Tests.Run(gctx, snippetID, id)
			return nil
		})
	}
	_ = g.Wait()

	reports := make([]runReport, 0, len(ids))
	failed := 0
	for _, id := range ids {
		e := eng.Tests.Get(snippetID, id)
		r := runReport{TestID: id, Name: names[id], Status: e.Status.String()}
		if e.Result != nil {
			r.Passed = e.Result.Passed
			r.ExitCode = e.Result.ExitCode
			r.Stdout = e.Result.Stdout
			r.Stderr = e.Result.Stderr
		}
		if e.Err != nil {
			r.Error = e.Err.Error()
		}
		if e.Status != testrun.StatusCompleted || !r.Passed {
			failed++
		}
		reports = append(reports, r)
	}

	if err := current.out.emit(reports, func(w io.Writer) {
		rows := make([][]string, 0, len(reports))
		for _, r := range reports {
			result := okStyle.Render("passed")
			switch {
			case r.Error != "":
				result = badStyle.Render("error: " + r.Error)
			case !r.Passed:
				result = badStyle.Render("failed (exit " + strconv.Itoa(r.ExitCode) + ")")
			}
			rows = append(rows, []string{r.TestID, r.Name, result, r.Stdout})
		}
		fmt.Fprintln(w, current.out.table([]string{"ID", "NAME", "RESULT", "OUTPUT"}, rows))
	}); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tests did not pass", failed, len(reports))
	}
	return nil
}
