package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs and import decisions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		h, err := client.History(historyLimit)
		if err != nil {
			return err
		}
		fmt.Print(formatHistory(h))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "max entries per section (0 = all)")
}
