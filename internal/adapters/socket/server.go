package socket

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/corey/cpbench/internal/adapters/logging"
	"github.com/corey/cpbench/internal/domain/fault"
	"github.com/corey/cpbench/internal/domain/testcase"
)

// Backend is the application surface the server dispatches to.
// Thread safety is the implementor's responsibility.
type Backend interface {
	Health() HealthResult

	OpenProject(root string) (SessionResult, error)
	SetActiveFolder(dir string) (SessionResult, error)
	Session() SessionResult

	ReadFile(path string) (FileContent, error)
	WriteFile(path, content string) error
	ListTree() (TreeResult, error)
	CreateEntry(path string, isDir bool) (PathResult, error)
	DeleteEntry(path string) error
	RenameEntry(path, newName string) (PathResult, error)
	MoveEntry(path, destDir string) (PathResult, error)

	LoadTests(source string) (TestsResult, error)
	SaveTests(source string, cases []testcase.Case) (TestsResult, error)
	AddTest(source, input, expected string) (TestsResult, error)
	UpdateTest(source, id, input, expected string) (TestsResult, error)
	DeleteTest(source, id string) (TestsResult, error)
	RunTests(ctx context.Context, source string, ids []string, cases []testcase.Case) (*testcase.Report, error)

	ImportList() ImportListResult
	ImportCheck(id string) (CheckResult, error)
	ImportAccept(id string) (AcceptResult, error)
	ImportReject(id string) error

	History(limit int) (HistoryResult, error)
}

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Server is the daemon that listens on a Unix socket and serves boundary requests.
type Server struct {
	backend  Backend
	hub      *Hub
	log      *logging.Logger
	listener net.Listener
	sockPath string
	handlers map[string]handlerFunc

	ctx    context.Context
	cancel context.CancelFunc

	done         chan struct{}
	shutdownCh   chan struct{} // closed when a remote shutdown request is received
	shutdownOnce sync.Once
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewServer creates a daemon server dispatching to backend. Events published
// on hub are streamed to subscribe connections.
func NewServer(backend Backend, hub *Hub, sockPath string, log *logging.Logger) *Server {
	if hub == nil {
		hub = NewHub()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		backend:    backend,
		hub:        hub,
		log:        log,
		sockPath:   sockPath,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		shutdownCh: make(chan struct{}),
	}
	s.handlers = s.routes()
	return s
}

// Start begins listening on the Unix socket. It handles stale sockets by
// attempting a connection first. If the connection fails, the stale socket
// is removed before binding.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.sockPath), 0755); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}

	// Handle stale socket
	if _, err := os.Stat(s.sockPath); err == nil {
		conn, err := net.DialTimeout("unix", s.sockPath, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return fmt.Errorf("daemon already running at %s", s.sockPath)
		}
		// Stale socket, remove it
		os.Remove(s.sockPath)
	}

	ln, err := net.Listen("unix", s.sockPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop gracefully shuts down the server, closing the listener and removing the socket file.
// Idempotent: safe to call multiple times (e.g., after remote shutdown + signal).
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
		s.cancel()
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		if s.listener != nil {
			os.Remove(s.sockPath)
		}
	})
	return nil
}

// ShutdownCh returns a channel that is closed when a remote shutdown request
// is received. The daemon's main goroutine should select on this alongside
// OS signals so the process actually exits after a remote stop.
func (s *Server) ShutdownCh() <-chan struct{} {
	return s.shutdownCh
}

// Addr returns the socket path the server is listening on.
func (s *Server) Addr() string {
	return s.sockPath
}

// Hub returns the event hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// Unblock the scanner when the server stops.
	connDone := make(chan struct{})
	defer close(connDone)
	go func() {
		select {
		case <-s.done:
			conn.Close()
		case <-connDone:
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024) // source files travel inline

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(conn, Response{Error: "invalid request JSON", Kind: fault.InvalidArgument})
			continue
		}

		if req.Method == MethodSubscribe {
			s.writeResponse(conn, Response{ID: req.ID, Success: true})
			s.stream(conn)
			return
		}

		resp := s.handleRequest(req)
		s.writeResponse(conn, resp)

		if req.Method == MethodShutdown {
			s.shutdownOnce.Do(func() { close(s.shutdownCh) })
			return
		}
	}
}

// stream forwards hub events to conn until the client hangs up or the
// server stops.
func (s *Server) stream(conn net.Conn) {
	events, cancel := s.hub.Subscribe()
	defer cancel()

	gone := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, conn)
		close(gone)
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := conn.Write(append(data, '\n')); err != nil {
				return
			}
		case <-gone:
			return
		case <-s.done:
			return
		}
	}
}

func (s *Server) handleRequest(req Request) Response {
	if req.Method == MethodShutdown {
		return Response{ID: req.ID, Success: true}
	}

	h, ok := s.handlers[req.Method]
	if !ok {
		return Response{ID: req.ID, Error: fmt.Sprintf("unknown method: %s", req.Method), Kind: fault.InvalidArgument}
	}

	start := time.Now()
	result, err := s.safeCall(h, req.Params)
	if err != nil {
		s.log.Debug("request failed", "method", req.Method, "error", err, "elapsed", time.Since(start))
		return Response{ID: req.ID, Error: err.Error(), Kind: fault.KindOf(err)}
	}

	resp := Response{ID: req.ID, Success: true}
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return Response{ID: req.ID, Error: fmt.Sprintf("marshal result: %v", err), Kind: fault.Internal}
		}
		resp.Data = data
	}
	return resp
}

// safeCall runs h and converts a panic into an internal fault so one bad
// request cannot take the daemon down.
func (s *Server) safeCall(h handlerFunc, params json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("handler panic", "panic", r)
			err = fault.New(fault.Internal, "internal error: %v", r)
		}
	}()
	return h(s.ctx, params)
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	data = append(data, '\n')
	conn.Write(data)
}

// decodeParams unmarshals params into v. Missing params decode as zero values.
func decodeParams[T any](params json.RawMessage) (T, error) {
	var v T
	if len(params) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(params, &v); err != nil {
		return v, fault.Wrap(fault.InvalidArgument, err, "invalid params")
	}
	return v, nil
}

// bind adapts a typed handler to the wire.
func bind[P any](fn func(ctx context.Context, p P) (any, error)) handlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		p, err := decodeParams[P](raw)
		if err != nil {
			return nil, err
		}
		return fn(ctx, p)
	}
}

type none struct{}

func (s *Server) routes() map[string]handlerFunc {
	b := s.backend
	return map[string]handlerFunc{
		MethodHealth: bind(func(_ context.Context, _ none) (any, error) {
			h := b.Health()
			h.Subscribers = s.hub.Subscribers()
			return h, nil
		}),
		MethodOpenProject: bind(func(_ context.Context, p OpenProjectParams) (any, error) {
			return b.OpenProject(p.Root)
		}),
		MethodSetActiveFolder: bind(func(_ context.Context, p FolderParams) (any, error) {
			return b.SetActiveFolder(p.Dir)
		}),
		MethodSession: bind(func(_ context.Context, _ none) (any, error) {
			return b.Session(), nil
		}),
		MethodReadFile: bind(func(_ context.Context, p PathParams) (any, error) {
			return b.ReadFile(p.Path)
		}),
		MethodWriteFile: bind(func(_ context.Context, p WriteFileParams) (any, error) {
			return nil, b.WriteFile(p.Path, p.Content)
		}),
		MethodListTree: bind(func(_ context.Context, _ none) (any, error) {
			return b.ListTree()
		}),
		MethodCreateEntry: bind(func(_ context.Context, p CreateEntryParams) (any, error) {
			return b.CreateEntry(p.Path, p.IsDir)
		}),
		MethodDeleteEntry: bind(func(_ context.Context, p PathParams) (any, error) {
			return nil, b.DeleteEntry(p.Path)
		}),
		MethodRenameEntry: bind(func(_ context.Context, p RenameParams) (any, error) {
			return b.RenameEntry(p.Path, p.NewName)
		}),
		MethodMoveEntry: bind(func(_ context.Context, p MoveParams) (any, error) {
			return b.MoveEntry(p.Path, p.DestDir)
		}),
		MethodLoadTests: bind(func(_ context.Context, p SourceParams) (any, error) {
			return b.LoadTests(p.Source)
		}),
		MethodSaveTests: bind(func(_ context.Context, p SaveTestsParams) (any, error) {
			return b.SaveTests(p.Source, p.Cases)
		}),
		MethodAddTest: bind(func(_ context.Context, p AddTestParams) (any, error) {
			return b.AddTest(p.Source, p.Input, p.Expected)
		}),
		MethodUpdateTest: bind(func(_ context.Context, p UpdateTestParams) (any, error) {
			return b.UpdateTest(p.Source, p.ID, p.Input, p.Expected)
		}),
		MethodDeleteTest: bind(func(_ context.Context, p TestRefParams) (any, error) {
			return b.DeleteTest(p.Source, p.ID)
		}),
		MethodRunTests: bind(func(ctx context.Context, p RunTestsParams) (any, error) {
			return b.RunTests(ctx, p.Source, p.IDs, p.Cases)
		}),
		MethodImportList: bind(func(_ context.Context, _ none) (any, error) {
			return b.ImportList(), nil
		}),
		MethodImportCheck: bind(func(_ context.Context, p ImportParams) (any, error) {
			return b.ImportCheck(p.ID)
		}),
		MethodImportAccept: bind(func(_ context.Context, p ImportParams) (any, error) {
			return b.ImportAccept(p.ID)
		}),
		MethodImportReject: bind(func(_ context.Context, p ImportParams) (any, error) {
			return nil, b.ImportReject(p.ID)
		}),
		MethodHistory: bind(func(_ context.Context, p HistoryParams) (any, error) {
			return b.History(p.Limit)
		}),
	}
}
