package app

import (
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corey/cpbench/internal/adapters/logging"
	"github.com/corey/cpbench/internal/adapters/safefile"
	"github.com/corey/cpbench/internal/adapters/sidecar"
	"github.com/corey/cpbench/internal/adapters/socket"
	"github.com/corey/cpbench/internal/domain/fault"
	"github.com/corey/cpbench/internal/domain/problem"
	"github.com/corey/cpbench/internal/ports"
)

// DefaultImportTTL is how long a staged import waits for a decision.
const DefaultImportTTL = 30 * time.Second

// ImportState is the lifecycle position of a staged import.
type ImportState string

const (
	ImportReceived      ImportState = "received"
	ImportPending       ImportState = "pending"
	ImportAlreadyExists ImportState = "already_exists"
	ImportAccepted      ImportState = "accepted"
	ImportRejected      ImportState = "rejected"
	ImportExpired       ImportState = "expired"
)

type staged struct {
	id         string
	payload    problem.Payload
	state      ImportState
	receivedAt time.Time
	expiresAt  time.Time
	timer      *time.Timer
	busy       bool // accept in flight; expiry and reject back off
	gen        int  // bumped on every re-arm so stale timers are ignored
}

func (s *staged) info() socket.ImportInfo {
	return socket.ImportInfo{
		ID:            s.id,
		Title:         s.payload.Title,
		State:         string(s.state),
		SuggestedBase: s.payload.SuggestedBase,
		TargetDir:     s.payload.TargetDir,
		Samples:       len(s.payload.Samples),
		ReceivedAt:    s.receivedAt,
		ExpiresAt:     s.expiresAt,
	}
}

// Importer stages problems pushed by the browser helper until the user
// accepts or rejects them. Nothing touches the disk before Accept.
type Importer struct {
	mu      sync.Mutex
	staged  map[string]*staged
	ttl     time.Duration
	session *Session
	writer  *safefile.Writer
	tests   *sidecar.Store
	history ports.History   // optional
	events  ports.Publisher // optional
	log     *logging.Logger
}

// NewImporter creates an importer. A ttl <= 0 selects DefaultImportTTL.
func NewImporter(session *Session, writer *safefile.Writer, tests *sidecar.Store, history ports.History, events ports.Publisher, ttl time.Duration, log *logging.Logger) *Importer {
	if ttl <= 0 {
		ttl = DefaultImportTTL
	}
	return &Importer{
		staged:  make(map[string]*staged),
		ttl:     ttl,
		session: session,
		writer:  writer,
		tests:   tests,
		history: history,
		events:  events,
		log:     log,
	}
}

// Receive parses a raw request body and stages it. It satisfies
// companion.Receiver.
func (im *Importer) Receive(body []byte) error {
	p, err := problem.Parse(body)
	if err != nil {
		im.log.Warn("import rejected", "error", err)
		return err
	}
	im.Stage(p)
	return nil
}

// Stage registers a normalized payload and arms its expiry timer.
func (im *Importer) Stage(p problem.Payload) socket.ImportInfo {
	now := time.Now()
	s := &staged{
		id:         uuid.NewString(),
		payload:    p,
		state:      ImportReceived,
		receivedAt: now,
		expiresAt:  now.Add(im.ttl),
	}

	im.mu.Lock()
	im.staged[s.id] = s
	im.arm(s)
	info := s.info()
	im.mu.Unlock()

	im.log.Info("import received", "id", s.id, "title", p.Title, "samples", len(p.Samples))
	im.publish(ports.EventImportReceived, info)
	return info
}

// List returns the imports still awaiting a decision, oldest first.
func (im *Importer) List() socket.ImportListResult {
	im.mu.Lock()
	out := make([]socket.ImportInfo, 0, len(im.staged))
	for _, s := range im.staged {
		out = append(out, s.info())
	}
	im.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})
	return socket.ImportListResult{Imports: out}
}

// Pending reports how many imports are staged.
func (im *Importer) Pending() int {
	im.mu.Lock()
	defer im.mu.Unlock()
	return len(im.staged)
}

// Check resolves where the import would land. If a source already exists
// there the import ends as already_exists; otherwise it becomes pending.
func (im *Importer) Check(id string) (socket.CheckResult, error) {
	im.mu.Lock()
	s, err := im.lookup(id)
	if err != nil {
		im.mu.Unlock()
		return socket.CheckResult{}, err
	}
	payload := s.payload
	im.mu.Unlock()

	path, exists, err := im.target(payload)
	if err != nil {
		return socket.CheckResult{ID: id}, err
	}

	im.mu.Lock()
	s, err = im.lookup(id)
	if err != nil {
		im.mu.Unlock()
		return socket.CheckResult{}, err
	}
	if !exists {
		s.state = ImportPending
		im.mu.Unlock()
		return socket.CheckResult{ID: id, Exists: false, Path: path}, nil
	}
	s.state = ImportAlreadyExists
	im.retire(s)
	im.mu.Unlock()

	im.record(s, ports.ImportRecord{SourcePath: path})
	return socket.CheckResult{ID: id, Exists: true, Path: path}, nil
}

// Accept materializes the import: a skeleton source unless one already
// exists, and a sidecar with the samples unless one already exists. On
// failure the import stays staged with a fresh expiry.
func (im *Importer) Accept(id string) (socket.AcceptResult, error) {
	im.mu.Lock()
	s, err := im.lookup(id)
	if err != nil {
		im.mu.Unlock()
		return socket.AcceptResult{}, err
	}
	s.busy = true
	s.timer.Stop()
	im.mu.Unlock()

	res, err := im.materialize(s.payload)
	res.ID = id

	im.mu.Lock()
	s.busy = false
	if err != nil {
		s.expiresAt = time.Now().Add(im.ttl)
		im.arm(s)
		im.mu.Unlock()
		im.log.Warn("import accept failed", "id", id, "error", err)
		return res, err
	}
	s.state = ImportAccepted
	im.retire(s)
	im.mu.Unlock()

	im.record(s, ports.ImportRecord{
		SourcePath:   res.SourcePath,
		CreatedNew:   res.CreatedNew,
		TestsWritten: res.TestsWritten,
	})
	im.publish(ports.EventImportAccepted, res)
	return res, nil
}

// Reject discards a staged import without touching the disk.
func (im *Importer) Reject(id string) error {
	im.mu.Lock()
	s, err := im.lookup(id)
	if err != nil {
		im.mu.Unlock()
		return err
	}
	s.state = ImportRejected
	im.retire(s)
	im.mu.Unlock()

	im.record(s, ports.ImportRecord{})
	return nil
}

// Stop disarms every expiry timer and drops all staged imports.
func (im *Importer) Stop() {
	im.mu.Lock()
	defer im.mu.Unlock()
	for id, s := range im.staged {
		s.timer.Stop()
		delete(im.staged, id)
	}
}

// arm starts a fresh expiry timer. Caller holds mu.
func (im *Importer) arm(s *staged) {
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(im.ttl, func() { im.expire(s.id, gen) })
}

func (im *Importer) expire(id string, gen int) {
	im.mu.Lock()
	s, ok := im.staged[id]
	if !ok || s.busy || s.gen != gen {
		im.mu.Unlock()
		return
	}
	s.state = ImportExpired
	delete(im.staged, id)
	info := s.info()
	im.mu.Unlock()

	im.record(s, ports.ImportRecord{})
	im.publish(ports.EventImportExpired, info)
}

// lookup finds an import that can still take a decision. Caller holds mu.
func (im *Importer) lookup(id string) (*staged, error) {
	s, ok := im.staged[id]
	if !ok {
		return nil, fault.New(fault.NotFound, "no staged import %q", id)
	}
	if s.busy {
		return nil, fault.New(fault.InvalidArgument, "import %q is being accepted", id)
	}
	return s, nil
}

// retire removes a decided import. Caller holds mu.
func (im *Importer) retire(s *staged) {
	s.timer.Stop()
	delete(im.staged, s.id)
}

// target derives the source path for a payload and whether a file is
// already there. A directory in the way is a collision.
func (im *Importer) target(p problem.Payload) (string, bool, error) {
	dir, err := im.session.ImportTarget(p.TargetDir)
	if err != nil {
		return "", false, err
	}
	path := p.SourcePath(dir)
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return path, false, fault.New(fault.ImportCollision, "%s is a directory", path)
	case err == nil:
		return path, true, nil
	case errors.Is(err, os.ErrNotExist):
		return path, false, nil
	default:
		return path, false, err
	}
}

func (im *Importer) materialize(p problem.Payload) (socket.AcceptResult, error) {
	path, exists, err := im.target(p)
	if err != nil {
		return socket.AcceptResult{}, err
	}
	res := socket.AcceptResult{SourcePath: path, SidecarPath: sidecar.Path(path)}

	if !exists {
		if err := im.writer.Write(path, []byte(problem.Skeleton(p.Title))); err != nil {
			return res, err
		}
		res.CreatedNew = true
	}

	if !im.tests.Exists(path) {
		cases := p.Cases()
		if err := im.tests.Save(path, cases); err != nil {
			return res, err
		}
		res.TestsWritten = len(cases)
	}

	im.log.Info("import accepted",
		"source", path,
		"created_new", res.CreatedNew,
		"tests_written", res.TestsWritten,
	)
	return res, nil
}

func (im *Importer) record(s *staged, rec ports.ImportRecord) {
	if im.history == nil {
		return
	}
	rec.ID = s.id
	rec.Title = s.payload.Title
	rec.Outcome = string(s.state)
	rec.ReceivedAt = s.receivedAt
	rec.DecidedAt = time.Now()
	if err := im.history.SaveImport(rec); err != nil {
		im.log.Warn("save import record", "id", s.id, "error", err)
	}
}

func (im *Importer) publish(typ string, data any) {
	if im.events == nil {
		return
	}
	im.events.Publish(ports.Event{Type: typ, Time: time.Now(), Data: data})
}
