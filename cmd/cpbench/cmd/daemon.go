package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corey/cpbench/internal/adapters/logging"
	"github.com/corey/cpbench/internal/adapters/socket"
	"github.com/corey/cpbench/internal/app"
	"github.com/corey/cpbench/internal/config"
)

var (
	daemonPort     int
	daemonLogLevel string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the cpbench daemon",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the foreground",
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon",
	RunE:  runDaemonStop,
}

func init() {
	daemonStartCmd.Flags().IntVar(&daemonPort, "port", 0, "import listener port (default $CC_PORT or 12345)")
	daemonStartCmd.Flags().StringVar(&daemonLogLevel, "log-level", "", "debug, info, warn or error")
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	st, err := loadSettings(config.Options{Port: daemonPort, LogLevel: daemonLogLevel})
	if err != nil {
		return err
	}

	sockPath := socket.SocketPath(st.StateDir)
	if socket.NewClient(sockPath).Ping() {
		fmt.Println("⚡ daemon already running")
		return nil
	}

	paths := app.NewPaths(st.StateDir)
	if err := paths.EnsureDirs(); err != nil {
		return err
	}
	log, err := logging.New(logging.Options{
		Level:   st.Log.Level,
		File:    paths.DaemonLog,
		Console: true,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer log.Sync()

	a, err := app.New(app.Config{Settings: st, Log: log})
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := a.Start(); err != nil {
		a.Store.Close()
		return err
	}
	_ = os.WriteFile(paths.PIDFile, []byte(strconv.Itoa(os.Getpid())), 0644)

	fmt.Printf("⚡ cpbench daemon started at %s\n", sockPath)
	if a.Listener != nil {
		fmt.Printf("  import listener on 127.0.0.1:%d\n", a.Listener.Port())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-a.Server.ShutdownCh():
	}

	fmt.Println("\n⚡ shutting down...")
	return a.Stop()
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err == errDaemonDown {
		fmt.Println("⚡ daemon is not running")
		return nil
	}
	if err != nil {
		return err
	}
	if err := client.Shutdown(); err != nil {
		return err
	}
	fmt.Println("⚡ daemon stopped")
	return nil
}
