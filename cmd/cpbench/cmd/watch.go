package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corey/cpbench/internal/ports"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream daemon events (imports, runs, tree changes)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return client.Subscribe(ctx, func(ev ports.Event) {
			fmt.Println(formatEvent(ev))
		})
	},
}
