package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var importsCmd = &cobra.Command{
	Use:   "imports",
	Short: "Review problems pushed by Competitive Companion",
}

var importsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List staged imports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		list, err := client.ImportList()
		if err != nil {
			return err
		}
		fmt.Print(formatImports(list, time.Now()))
		return nil
	},
}

var importsCheckCmd = &cobra.Command{
	Use:   "check <id>",
	Short: "Show where an import would be written",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		res, err := client.ImportCheck(args[0])
		if err != nil {
			return err
		}
		if res.Exists {
			fmt.Println(warnStyle.Render("already exists") + "  " + pathStyle.Render(res.Path))
			return nil
		}
		fmt.Println("will create " + pathStyle.Render(res.Path))
		return nil
	},
}

var importsAcceptCmd = &cobra.Command{
	Use:   "accept <id>",
	Short: "Write the skeleton and sample tests",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		res, err := client.ImportAccept(args[0])
		if err != nil {
			return err
		}
		source := "reused"
		if res.CreatedNew {
			source = "created"
		}
		fmt.Printf("%s %s\n", passStyle.Render(source), pathStyle.Render(res.SourcePath))
		if res.TestsWritten > 0 {
			fmt.Printf("%s %d samples to %s\n", passStyle.Render("wrote"), res.TestsWritten, pathStyle.Render(res.SidecarPath))
		} else {
			fmt.Println(mutedStyle.Render("kept existing tests in " + res.SidecarPath))
		}
		return nil
	},
}

var importsRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Discard a staged import",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		if err := client.ImportReject(args[0]); err != nil {
			return err
		}
		fmt.Println("rejected " + args[0])
		return nil
	},
}

func init() {
	importsCmd.AddCommand(importsListCmd, importsCheckCmd, importsAcceptCmd, importsRejectCmd)
}
