package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corey/cpbench/internal/adapters/socket"
	"github.com/corey/cpbench/internal/config"
)

var (
	flagStateDir string
	flagEnvFile  string
)

var rootCmd = &cobra.Command{
	Use:           "cpbench",
	Short:         "Compile, run and judge sample tests",
	Long:          "Local judge daemon: builds one source, runs it against its sample tests and imports problems from Competitive Companion.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and prints any error.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !isSilent(err) {
		fmt.Fprintln(os.Stderr, describeError(err))
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagStateDir, "state-dir", "", "state directory (default $CPBENCH_HOME or ~/.cpbench)")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "load environment variables from this .env file")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(focusCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(fsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(testsCmd)
	rootCmd.AddCommand(importsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
}

// loadSettings resolves configuration from the persistent flags.
func loadSettings(opts config.Options) (*config.Config, error) {
	opts.StateDir = flagStateDir
	opts.EnvFile = flagEnvFile
	return config.Load(opts)
}

// connect returns a client for the running daemon.
func connect() (*socket.Client, error) {
	st, err := loadSettings(config.Options{})
	if err != nil {
		return nil, err
	}
	client := socket.NewClient(socket.SocketPath(st.StateDir))
	if !client.Ping() {
		return nil, errDaemonDown
	}
	return client, nil
}
