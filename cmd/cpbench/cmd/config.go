package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/cpbench/internal/adapters/socket"
	"github.com/corey/cpbench/internal/app"
	"github.com/corey/cpbench/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long:  "Shows state paths, daemon status and the effective settings after merging config.yaml, the environment and flags. No daemon required.",
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	st, err := loadSettings(config.Options{})
	if err != nil {
		return err
	}
	paths := app.NewPaths(st.StateDir)

	status := warnStyle.Render("✗ not running")
	if socket.NewClient(paths.Socket).Ping() {
		status = passStyle.Render("✓ running")
	}

	fmt.Println(titleStyle.Render("⚡ cpbench config"))
	fmt.Print(field("State", pathStyle.Render(paths.Root)))
	fmt.Print(field("Config", pathStyle.Render(paths.Config)))
	fmt.Print(field("DB", pathStyle.Render(paths.DB)))
	fmt.Print(field("Socket", pathStyle.Render(paths.Socket)))
	fmt.Print(field("Log", pathStyle.Render(paths.DaemonLog)))
	fmt.Print(field("Daemon", status))

	out, err := st.YAML()
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Print(string(out))
	return nil
}
