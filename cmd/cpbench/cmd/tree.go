package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var treeDepth int

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show the open project's directory structure",
	Args:  cobra.NoArgs,
	RunE:  runTree,
}

func init() {
	treeCmd.Flags().IntVarP(&treeDepth, "depth", "d", 0, "Max depth (0 = unlimited)")
}

func runTree(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	tree, err := client.ListTree()
	if err != nil {
		return err
	}
	fmt.Print(formatTree(tree, treeDepth))
	return nil
}
