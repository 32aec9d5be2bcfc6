package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corey/cpbench/internal/domain/testcase"
)

var (
	testInput        string
	testExpected     string
	testInputFile    string
	testExpectedFile string
)

var testsCmd = &cobra.Command{
	Use:   "tests",
	Short: "Manage the sample tests stored next to a source",
}

var testsListCmd = &cobra.Command{
	Use:   "list <source>",
	Short: "List tests (creates an empty sidecar on first use)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, src, err := connectWithPath(args[0])
		if err != nil {
			return err
		}
		res, err := client.LoadTests(src)
		if err != nil {
			return err
		}
		fmt.Print(formatTests(res))
		return nil
	},
}

var testsAddCmd = &cobra.Command{
	Use:   "add <source>",
	Short: "Append a test",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, expected, err := testBodies()
		if err != nil {
			return err
		}
		client, src, err := connectWithPath(args[0])
		if err != nil {
			return err
		}
		res, err := client.AddTest(src, input, expected)
		if err != nil {
			return err
		}
		last := res.Cases[len(res.Cases)-1]
		fmt.Printf("added %s (%s)\n", last.ID, last.Name)
		return nil
	},
}

var testsSetCmd = &cobra.Command{
	Use:   "set <source> <id>",
	Short: "Replace the input and expected output of a test",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, expected, err := testBodies()
		if err != nil {
			return err
		}
		client, src, err := connectWithPath(args[0])
		if err != nil {
			return err
		}
		if _, err := client.UpdateTest(src, args[1], input, expected); err != nil {
			return err
		}
		fmt.Printf("updated %s\n", args[1])
		return nil
	},
}

var testsRmCmd = &cobra.Command{
	Use:   "rm <source> <id>",
	Short: "Delete a test; the rest are renumbered",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, src, err := connectWithPath(args[0])
		if err != nil {
			return err
		}
		res, err := client.DeleteTest(src, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("deleted %s, %d left\n", args[1], len(res.Cases))
		return nil
	},
}

var testsReplaceCmd = &cobra.Command{
	Use:   "replace <source> <cases.json>",
	Short: "Overwrite all tests from a JSON array of {name, input, expected}",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		var cases []testcase.Case
		if err := json.Unmarshal(data, &cases); err != nil {
			return fmt.Errorf("parse %s: %w", args[1], err)
		}
		client, src, err := connectWithPath(args[0])
		if err != nil {
			return err
		}
		res, err := client.SaveTests(src, cases)
		if err != nil {
			return err
		}
		fmt.Printf("saved %d tests to %s\n", len(res.Cases), pathStyle.Render(res.Sidecar))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{testsAddCmd, testsSetCmd} {
		c.Flags().StringVarP(&testInput, "input", "i", "", "test input")
		c.Flags().StringVarP(&testExpected, "expected", "e", "", "expected output")
		c.Flags().StringVar(&testInputFile, "input-file", "", "read test input from a file")
		c.Flags().StringVar(&testExpectedFile, "expected-file", "", "read expected output from a file")
	}
	testsCmd.AddCommand(testsListCmd, testsAddCmd, testsSetCmd, testsRmCmd, testsReplaceCmd)
}

// testBodies resolves input and expected from flags, files taking precedence.
func testBodies() (string, string, error) {
	input, expected := testInput, testExpected
	if testInputFile != "" {
		data, err := os.ReadFile(testInputFile)
		if err != nil {
			return "", "", err
		}
		input = string(data)
	}
	if testExpectedFile != "" {
		data, err := os.ReadFile(testExpectedFile)
		if err != nil {
			return "", "", err
		}
		expected = string(data)
	}
	return input, expected, nil
}
