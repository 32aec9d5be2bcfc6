// Package companion is the loopback HTTP listener that browser helpers such
// as Competitive Companion push parsed problems to. Any POST path is
// accepted; every other request gets a bare 404.
package companion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/corey/cpbench/internal/adapters/logging"
)

// DefaultPort is the port Competitive Companion posts to out of the box.
const DefaultPort = 12345

// maxBody caps a single payload. Problem statements with big samples stay
// well under this.
const maxBody = 8 << 20

// Receiver stages a raw payload. It must not block on user interaction.
type Receiver interface {
	Receive(body []byte) error
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(body []byte) error

func (f ReceiverFunc) Receive(body []byte) error { return f(body) }

// reply is the JSON body sent back to the helper.
type reply struct {
	Success bool   `json:"success"`
	Info    string `json:"info,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Server is the import listener.
type Server struct {
	recv     Receiver
	log      *logging.Logger
	listener net.Listener
	httpSrv  *http.Server
	port     int
	stopOnce sync.Once

	portFilePath string // <state>/run/listener.port
}

// NewServer creates the listener. The portFilePath, when set, receives the
// bound port for discovery.
func NewServer(recv Receiver, log *logging.Logger, portFilePath string) *Server {
	return &Server{
		recv:         recv,
		log:          log,
		portFilePath: portFilePath,
	}
}

// Handler returns the router. Exposed for tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/*", s.handleImport)

	notFound := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)
	return r
}

// Start binds 127.0.0.1:port and serves in the background.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.port = ln.Addr().(*net.TCPAddr).Port

	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Write port file for discovery
	if s.portFilePath != "" {
		_ = os.WriteFile(s.portFilePath, []byte(fmt.Sprintf("%d", s.port)), 0644)
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("import listener stopped", "error", err)
		}
	}()
	s.log.Info("import listener started", "addr", ln.Addr().String())
	return nil
}

// Stop gracefully shuts down the listener. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.httpSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.httpSrv.Shutdown(ctx)
		}
		if s.portFilePath != "" {
			os.Remove(s.portFilePath)
		}
	})
}

// Port returns the bound port number.
func (s *Server) Port() int {
	return s.port
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		s.log.Warn("import body unreadable", "error", err)
		writeReply(w, http.StatusInternalServerError, reply{Error: err.Error()})
		return
	}

	if err := s.recv.Receive(body); err != nil {
		s.log.Warn("import rejected", "path", r.URL.Path, "error", err)
		writeReply(w, http.StatusInternalServerError, reply{Error: err.Error()})
		return
	}
	writeReply(w, http.StatusOK, reply{Success: true, Info: "received"})
}

func writeReply(w http.ResponseWriter, status int, body reply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
