// Package app wires together all adapters and domain logic.
// It provides lifecycle management for the cpbench daemon: create, start, stop.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/corey/cpbench/internal/adapters/bbolt"
	"github.com/corey/cpbench/internal/adapters/companion"
	fsw "github.com/corey/cpbench/internal/adapters/fsnotify"
	"github.com/corey/cpbench/internal/adapters/logging"
	"github.com/corey/cpbench/internal/adapters/runner"
	"github.com/corey/cpbench/internal/adapters/safefile"
	"github.com/corey/cpbench/internal/adapters/sidecar"
	"github.com/corey/cpbench/internal/adapters/socket"
	"github.com/corey/cpbench/internal/adapters/toolchain"
	"github.com/corey/cpbench/internal/config"
	"github.com/corey/cpbench/internal/domain/testcase"
	"github.com/corey/cpbench/internal/ports"
)

// App is the daemon: one session, its services and the two listeners.
type App struct {
	Paths    *Paths
	Settings *config.Config
	Log      *logging.Logger

	Store    *bbolt.Store
	Project  *Session
	Files    *Files
	Tests    *sidecar.Store
	Compiler *toolchain.Compiler
	Judge    *Judge
	Importer *Importer

	Hub      *socket.Hub
	Server   *socket.Server
	Listener *companion.Server

	watchMu sync.Mutex
	watcher ports.Watcher

	started time.Time
}

// Config holds the resolved settings and the logger the daemon runs with.
type Config struct {
	Settings *config.Config
	Log      *logging.Logger // nil = no logging
}

// New creates the daemon without starting any listener.
func New(cfg Config) (*App, error) {
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings required")
	}
	st := cfg.Settings
	log := cfg.Log

	paths := NewPaths(st.StateDir)
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	store, err := bbolt.NewStore(paths.DB)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	writer := safefile.New()
	session := NewSession()
	hub := socket.NewHub()
	tests := sidecar.New(writer, log.With("component", "sidecar"))
	compiler := toolchain.New(
		toolchain.WithCompiler(st.Compiler.Path),
		toolchain.WithFlags(st.Compiler.Flags),
		toolchain.WithLogger(log.With("component", "compiler")),
	)
	run := runner.New(st.Runner.Timeout, log.With("component", "runner"))

	a := &App{
		Paths:    paths,
		Settings: st,
		Log:      log,
		Store:    store,
		Project:  session,
		Files:    NewFiles(session, writer, log.With("component", "files")),
		Tests:    tests,
		Compiler: compiler,
		Judge:    NewJudge(compiler, run, store, hub, log.With("component", "judge")),
		Hub:      hub,
	}
	a.Importer = NewImporter(session, writer, tests, store, hub, st.Imports.TTL, log.With("component", "importer"))
	a.Server = socket.NewServer(a, hub, paths.Socket, log.With("component", "socket"))
	if st.Listener.Enabled {
		a.Listener = companion.NewServer(a.Importer, log.With("component", "listener"), paths.ListenerPort)
	}
	return a, nil
}

// Start begins the daemon (socket server + import listener).
func (a *App) Start() error {
	a.started = time.Now()
	if err := a.Server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	// Import listener is non-fatal: the port may belong to another tool.
	if a.Listener != nil {
		if err := a.Listener.Start(a.Settings.Listener.Port); err != nil {
			a.Log.Warn("import listener unavailable", "error", err)
			a.Listener = nil
		}
	}
	a.Log.Info("daemon started", "socket", a.Paths.Socket, "state_dir", a.Paths.Root)
	return nil
}

// Stop shuts down all services and closes the store.
func (a *App) Stop() error {
	a.stopWatcher()
	if a.Listener != nil {
		a.Listener.Stop()
	}
	a.Server.Stop()
	a.Importer.Stop()
	a.Paths.CleanEphemeral()
	a.Log.Info("daemon stopped")
	return a.Store.Close()
}

// restartWatcher points the file watcher at a freshly opened project.
// Failure is non-fatal: the tree is still served on request.
func (a *App) restartWatcher(root string) {
	a.stopWatcher()
	if !a.Settings.Watch.Enabled {
		return
	}

	w, err := fsw.NewWatcher(a.Log.With("component", "watcher"))
	if err != nil {
		a.Log.Warn("file watcher unavailable", "error", err)
		return
	}
	if err := w.Watch(root, a.onFileChanged); err != nil {
		w.Stop()
		a.Log.Warn("file watcher unavailable", "root", root, "error", err)
		return
	}

	a.watchMu.Lock()
	a.watcher = w
	a.watchMu.Unlock()
}

func (a *App) stopWatcher() {
	a.watchMu.Lock()
	w := a.watcher
	a.watcher = nil
	a.watchMu.Unlock()
	if w != nil {
		w.Stop()
	}
}

func (a *App) onFileChanged(path string) {
	a.Hub.Publish(ports.Event{
		Type: ports.EventTreeChanged,
		Time: time.Now(),
		Data: map[string]string{"path": path},
	})
}

// --- socket.Backend ---

var _ socket.Backend = (*App)(nil)

// Health reports daemon status.
func (a *App) Health() socket.HealthResult {
	root, _ := a.Project.Snapshot()
	h := socket.HealthResult{
		Status:         "ok",
		Uptime:         time.Since(a.started).Round(time.Second).String(),
		ProjectRoot:    root,
		PendingImports: a.Importer.Pending(),
		Compiler:       a.Compiler.Command(),
	}
	if a.Listener != nil {
		h.ListenerPort = a.Listener.Port()
	}
	return h
}

func (a *App) OpenProject(root string) (socket.SessionResult, error) {
	abs, err := a.Project.Open(root)
	if err != nil {
		return socket.SessionResult{}, err
	}
	a.restartWatcher(abs)
	a.Log.Info("project opened", "root", abs)
	return a.Session(), nil
}

func (a *App) SetActiveFolder(dir string) (socket.SessionResult, error) {
	if _, err := a.Project.SetActiveFolder(dir); err != nil {
		return socket.SessionResult{}, err
	}
	return a.Session(), nil
}

func (a *App) Session() socket.SessionResult {
	root, active := a.Project.Snapshot()
	return socket.SessionResult{ProjectRoot: root, ActiveFolder: active}
}

func (a *App) ReadFile(path string) (socket.FileContent, error) { return a.Files.Read(path) }

func (a *App) WriteFile(path, content string) error { return a.Files.Write(path, content) }

func (a *App) ListTree() (socket.TreeResult, error) { return a.Files.Tree() }

func (a *App) CreateEntry(path string, isDir bool) (socket.PathResult, error) {
	return a.Files.Create(path, isDir)
}

func (a *App) DeleteEntry(path string) error { return a.Files.Delete(path) }

func (a *App) RenameEntry(path, newName string) (socket.PathResult, error) {
	return a.Files.Rename(path, newName)
}

func (a *App) MoveEntry(path, destDir string) (socket.PathResult, error) {
	return a.Files.Move(path, destDir)
}

// LoadTests returns the cases attached to a source, creating an empty
// sidecar on first use.
func (a *App) LoadTests(source string) (socket.TestsResult, error) {
	return a.editTests(source, a.Tests.Load)
}

func (a *App) SaveTests(source string, cases []testcase.Case) (socket.TestsResult, error) {
	return a.editTests(source, func(src string) ([]testcase.Case, error) {
		cases = testcase.AssignIDs(cases)
		return cases, a.Tests.Save(src, cases)
	})
}

func (a *App) AddTest(source, input, expected string) (socket.TestsResult, error) {
	return a.editTests(source, func(src string) ([]testcase.Case, error) {
		return a.Tests.Add(src, input, expected)
	})
}

func (a *App) UpdateTest(source, id, input, expected string) (socket.TestsResult, error) {
	return a.editTests(source, func(src string) ([]testcase.Case, error) {
		return a.Tests.Update(src, id, input, expected)
	})
}

func (a *App) DeleteTest(source, id string) (socket.TestsResult, error) {
	return a.editTests(source, func(src string) ([]testcase.Case, error) {
		return a.Tests.Delete(src, id)
	})
}

func (a *App) editTests(source string, fn func(src string) ([]testcase.Case, error)) (socket.TestsResult, error) {
	src, err := a.Project.Resolve(source)
	if err != nil {
		return socket.TestsResult{}, err
	}
	cases, err := fn(src)
	if err != nil {
		return socket.TestsResult{}, err
	}
	if cases == nil {
		cases = []testcase.Case{}
	}
	return socket.TestsResult{Source: src, Sidecar: sidecar.Path(src), Cases: cases}, nil
}

// RunTests compiles source and runs the given cases. A nil cases list
// means the sidecar's tests, filtered by ids when any are listed.
func (a *App) RunTests(ctx context.Context, source string, ids []string, cases []testcase.Case) (*testcase.Report, error) {
	src, err := a.Project.Resolve(source)
	if err != nil {
		return nil, err
	}
	if cases != nil {
		return a.Judge.Run(ctx, src, testcase.AssignIDs(cases))
	}
	cases, err = a.Tests.Load(src)
	if err != nil {
		return nil, err
	}
	return a.Judge.Run(ctx, src, Select(cases, ids))
}

func (a *App) ImportList() socket.ImportListResult { return a.Importer.List() }

func (a *App) ImportCheck(id string) (socket.CheckResult, error) { return a.Importer.Check(id) }

func (a *App) ImportAccept(id string) (socket.AcceptResult, error) { return a.Importer.Accept(id) }

func (a *App) ImportReject(id string) error { return a.Importer.Reject(id) }

// History returns the newest run summaries and import decisions.
func (a *App) History(limit int) (socket.HistoryResult, error) {
	runs, err := a.Store.ListRuns(limit)
	if err != nil {
		return socket.HistoryResult{}, err
	}
	imports, err := a.Store.ListImports(limit)
	if err != nil {
		return socket.HistoryResult{}, err
	}
	return socket.HistoryResult{Runs: runs, Imports: imports}, nil
}
