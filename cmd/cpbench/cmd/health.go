package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check daemon status",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err == errDaemonDown {
		fmt.Println("⚡ cpbench daemon is not running")
		return nil
	}
	if err != nil {
		return err
	}

	health, err := client.Health()
	if err != nil {
		return err
	}
	fmt.Print(formatHealth(health))
	return nil
}
