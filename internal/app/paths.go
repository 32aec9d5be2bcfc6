package app

import (
	"os"
	"path/filepath"

	"github.com/corey/cpbench/internal/adapters/socket"
)

// Paths holds every resolved filesystem path under the state directory.
type Paths struct {
	Root   string // <state>/
	DB     string // <state>/cpbench.db
	Config string // <state>/config.yaml

	LogDir    string // <state>/log/
	DaemonLog string // <state>/log/daemon.log

	RunDir       string // <state>/run/
	PIDFile      string // <state>/run/daemon.pid
	Socket       string // <state>/run/cpbench.sock
	ListenerPort string // <state>/run/listener.port
}

// NewPaths constructs all resolved paths from the state directory.
func NewPaths(stateDir string) *Paths {
	return &Paths{
		Root:   stateDir,
		DB:     filepath.Join(stateDir, "cpbench.db"),
		Config: filepath.Join(stateDir, "config.yaml"),

		LogDir:    filepath.Join(stateDir, "log"),
		DaemonLog: filepath.Join(stateDir, "log", "daemon.log"),

		RunDir:       filepath.Join(stateDir, "run"),
		PIDFile:      filepath.Join(stateDir, "run", "daemon.pid"),
		Socket:       socket.SocketPath(stateDir),
		ListenerPort: filepath.Join(stateDir, "run", "listener.port"),
	}
}

// EnsureDirs creates the state directory layout. Idempotent.
func (p *Paths) EnsureDirs() error {
	for _, d := range []string{p.Root, p.LogDir, p.RunDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}

// CleanEphemeral removes runtime files left by a daemon (PID file, listener
// port file). Called on clean shutdown.
func (p *Paths) CleanEphemeral() {
	os.Remove(p.PIDFile)
	os.Remove(p.ListenerPort)
}
