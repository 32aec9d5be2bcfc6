package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corey/cpbench/internal/adapters/socket"
	"github.com/corey/cpbench/internal/domain/testcase"
)

var (
	runIDs       []string
	runVerbose   bool
	runCasesFile string
)

var runCmd = &cobra.Command{
	Use:   "run <source>",
	Short: "Compile a source and run its tests",
	Long: "Compiles the source once and runs it against every test in its sidecar " +
		"(or only --id ones). --cases runs a JSON case list instead of the sidecar " +
		"without saving it. Exits 1 when a test fails and 2 when the build fails.",
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSliceVar(&runIDs, "id", nil, "run only these test ids (repeatable)")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "show output of passing tests too")
	runCmd.Flags().StringVar(&runCasesFile, "cases", "", "run the cases in this JSON file instead of the sidecar")
}

func runRun(cmd *cobra.Command, args []string) error {
	client, src, err := connectWithPath(args[0])
	if err != nil {
		return err
	}
	cases, err := readCases(runCasesFile)
	if err != nil {
		return err
	}
	report, err := client.RunTests(src, runIDs, cases)
	if err != nil {
		return err
	}
	fmt.Print(formatReport(report, runVerbose))

	switch {
	case report.BuildFailed():
		return &exitError{code: 2}
	case !report.AllPassed():
		return &exitError{code: 1}
	}
	return nil
}

// readCases loads a JSON array of cases. An empty path yields nil so the
// daemon falls back to the sidecar.
func readCases(path string) ([]testcase.Case, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cases := []testcase.Case{}
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cases, nil
}

// connectWithPath connects to the daemon and resolves a path argument
// against the working directory.
func connectWithPath(arg string) (*socket.Client, string, error) {
	path, err := absArg(arg)
	if err != nil {
		return nil, "", err
	}
	client, err := connect()
	if err != nil {
		return nil, "", err
	}
	return client, path, nil
}
