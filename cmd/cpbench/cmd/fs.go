package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var fsCmd = &cobra.Command{
	Use:   "fs",
	Short: "File operations inside the open project",
}

var fsCatCmd = &cobra.Command{
	Use:   "cat <file>",
	Short: "Print a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, path, err := connectWithPath(args[0])
		if err != nil {
			return err
		}
		fc, err := client.ReadFile(path)
		if err != nil {
			return err
		}
		fmt.Print(fc.Content)
		return nil
	},
}

var fsWriteCmd = &cobra.Command{
	Use:   "write <file>",
	Short: "Replace a file with stdin (verified write)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		client, path, err := connectWithPath(args[0])
		if err != nil {
			return err
		}
		if err := client.WriteFile(path, string(content)); err != nil {
			return err
		}
		fmt.Printf("wrote %d bytes to %s\n", len(content), pathStyle.Render(path))
		return nil
	},
}

var fsMkdir bool

var fsCreateCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Create an empty file, or a directory with --dir",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, path, err := connectWithPath(args[0])
		if err != nil {
			return err
		}
		res, err := client.CreateEntry(path, fsMkdir)
		if err != nil {
			return err
		}
		fmt.Println("created " + pathStyle.Render(res.Path))
		return nil
	},
}

var fsRmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete a file or a directory tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, path, err := connectWithPath(args[0])
		if err != nil {
			return err
		}
		if err := client.DeleteEntry(path); err != nil {
			return err
		}
		fmt.Println("deleted " + pathStyle.Render(path))
		return nil
	},
}

var fsRenameCmd = &cobra.Command{
	Use:   "rename <path> <new-name>",
	Short: "Rename an entry in place",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, path, err := connectWithPath(args[0])
		if err != nil {
			return err
		}
		res, err := client.RenameEntry(path, args[1])
		if err != nil {
			return err
		}
		fmt.Println("renamed to " + pathStyle.Render(res.Path))
		return nil
	},
}

var fsMvCmd = &cobra.Command{
	Use:   "mv <path> <dest-dir>",
	Short: "Move an entry into another directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, path, err := connectWithPath(args[0])
		if err != nil {
			return err
		}
		dest, err := absArg(args[1])
		if err != nil {
			return err
		}
		res, err := client.MoveEntry(path, dest)
		if err != nil {
			return err
		}
		fmt.Println("moved to " + pathStyle.Render(res.Path))
		return nil
	},
}

func init() {
	fsCreateCmd.Flags().BoolVar(&fsMkdir, "dir", false, "create a directory (parents included)")
	fsCmd.AddCommand(fsCatCmd, fsWriteCmd, fsCreateCmd, fsRmCmd, fsRenameCmd, fsMvCmd)
}
