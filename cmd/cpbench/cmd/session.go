package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open [dir]",
	Short: "Open a project (defaults to the current directory)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOpen,
}

var focusCmd = &cobra.Command{
	Use:   "focus [dir]",
	Short: "Set the active folder imports land in (no argument clears it)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFocus,
}

func runOpen(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	if len(args) > 0 {
		dir = args[0]
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return err
	}

	client, err := connect()
	if err != nil {
		return err
	}
	sess, err := client.OpenProject(dir)
	if err != nil {
		return err
	}
	fmt.Print(formatSession(sess))
	return nil
}

func runFocus(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	dir := ""
	if len(args) > 0 {
		dir, err = absArg(args[0])
		if err != nil {
			return err
		}
	}
	sess, err := client.SetActiveFolder(dir)
	if err != nil {
		return err
	}
	fmt.Print(formatSession(sess))
	return nil
}

// absArg resolves a path argument against the working directory so that
// relative paths mean what the user typed, not the project root.
func absArg(p string) (string, error) {
	return filepath.Abs(p)
}
