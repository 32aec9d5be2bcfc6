package socket

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/corey/cpbench/internal/domain/fault"
	"github.com/corey/cpbench/internal/domain/testcase"
	"github.com/corey/cpbench/internal/ports"
)

const (
	defaultCallTimeout = 5 * time.Second
	// Runs compile and then execute every case sequentially.
	runCallTimeout = 10 * time.Minute
)

// RemoteError is a failure reported by the daemon. It keeps the fault kind
// so callers can branch on it with fault.KindOf.
type RemoteError struct {
	ErrKind fault.Kind
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// Kind returns the fault code sent by the daemon.
func (e *RemoteError) Kind() fault.Kind { return e.ErrKind }

// Client connects to the cpbench daemon over a Unix socket.
type Client struct {
	sockPath string
	seq      atomic.Uint64
}

// NewClient creates a client that will connect to the given socket path.
func NewClient(sockPath string) *Client {
	return &Client{sockPath: sockPath}
}

// Ping checks if the daemon is reachable.
func (c *Client) Ping() bool {
	conn, err := net.DialTimeout("unix", c.sockPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Health sends a health check request.
func (c *Client) Health() (*HealthResult, error) {
	return callFor[HealthResult](c, MethodHealth, nil)
}

// Shutdown sends a shutdown request to the daemon.
func (c *Client) Shutdown() error {
	return c.call(MethodShutdown, nil, nil)
}

// OpenProject sets the project root.
func (c *Client) OpenProject(root string) (*SessionResult, error) {
	return callFor[SessionResult](c, MethodOpenProject, OpenProjectParams{Root: root})
}

// SetActiveFolder sets the folder new imports land in.
func (c *Client) SetActiveFolder(dir string) (*SessionResult, error) {
	return callFor[SessionResult](c, MethodSetActiveFolder, FolderParams{Dir: dir})
}

// Session returns the current session.
func (c *Client) Session() (*SessionResult, error) {
	return callFor[SessionResult](c, MethodSession, nil)
}

// ReadFile reads a file through the daemon.
func (c *Client) ReadFile(path string) (*FileContent, error) {
	return callFor[FileContent](c, MethodReadFile, PathParams{Path: path})
}

// WriteFile performs a verified write.
func (c *Client) WriteFile(path, content string) error {
	return c.call(MethodWriteFile, WriteFileParams{Path: path, Content: content}, nil)
}

// ListTree returns the project tree.
func (c *Client) ListTree() (*TreeResult, error) {
	return callFor[TreeResult](c, MethodListTree, nil)
}

// CreateEntry creates an empty file or a directory.
func (c *Client) CreateEntry(path string, isDir bool) (*PathResult, error) {
	return callFor[PathResult](c, MethodCreateEntry, CreateEntryParams{Path: path, IsDir: isDir})
}

// DeleteEntry removes a file or a directory tree.
func (c *Client) DeleteEntry(path string) error {
	return c.call(MethodDeleteEntry, PathParams{Path: path}, nil)
}

// RenameEntry renames an entry within its directory.
func (c *Client) RenameEntry(path, newName string) (*PathResult, error) {
	return callFor[PathResult](c, MethodRenameEntry, RenameParams{Path: path, NewName: newName})
}

// MoveEntry moves an entry into another directory.
func (c *Client) MoveEntry(path, destDir string) (*PathResult, error) {
	return callFor[PathResult](c, MethodMoveEntry, MoveParams{Path: path, DestDir: destDir})
}

// LoadTests returns the tests of a source.
func (c *Client) LoadTests(source string) (*TestsResult, error) {
	return callFor[TestsResult](c, MethodLoadTests, SourceParams{Source: source})
}

// SaveTests replaces the tests of a source.
func (c *Client) SaveTests(source string, cases []testcase.Case) (*TestsResult, error) {
	return callFor[TestsResult](c, MethodSaveTests, SaveTestsParams{Source: source, Cases: cases})
}

// AddTest appends a test.
func (c *Client) AddTest(source, input, expected string) (*TestsResult, error) {
	return callFor[TestsResult](c, MethodAddTest, AddTestParams{Source: source, Input: input, Expected: expected})
}

// UpdateTest edits a test in place.
func (c *Client) UpdateTest(source, id, input, expected string) (*TestsResult, error) {
	return callFor[TestsResult](c, MethodUpdateTest, UpdateTestParams{Source: source, ID: id, Input: input, Expected: expected})
}

// DeleteTest removes a test; the rest are renumbered.
func (c *Client) DeleteTest(source, id string) (*TestsResult, error) {
	return callFor[TestsResult](c, MethodDeleteTest, TestRefParams{Source: source, ID: id})
}

// RunTests compiles source and runs the selected sidecar tests (all when
// ids is empty), or exactly cases when cases is non-nil.
func (c *Client) RunTests(source string, ids []string, cases []testcase.Case) (*testcase.Report, error) {
	var out testcase.Report
	params := RunTestsParams{Source: source, IDs: ids, Cases: cases}
	if err := c.callWithTimeout(MethodRunTests, params, &out, runCallTimeout); err != nil {
		return nil, err
	}
	return &out, nil
}

// ImportList returns staged imports.
func (c *Client) ImportList() (*ImportListResult, error) {
	return callFor[ImportListResult](c, MethodImportList, nil)
}

// ImportCheck resolves the target of a staged import.
func (c *Client) ImportCheck(id string) (*CheckResult, error) {
	return callFor[CheckResult](c, MethodImportCheck, ImportParams{ID: id})
}

// ImportAccept materializes a staged import.
func (c *Client) ImportAccept(id string) (*AcceptResult, error) {
	return callFor[AcceptResult](c, MethodImportAccept, ImportParams{ID: id})
}

// ImportReject discards a staged import.
func (c *Client) ImportReject(id string) error {
	return c.call(MethodImportReject, ImportParams{ID: id}, nil)
}

// History returns recent runs and import decisions.
func (c *Client) History(limit int) (*HistoryResult, error) {
	return callFor[HistoryResult](c, MethodHistory, HistoryParams{Limit: limit})
}

// Subscribe streams daemon events to fn until ctx is done or the daemon
// closes the connection.
func (c *Client) Subscribe(ctx context.Context, fn func(ports.Event)) error {
	conn, err := net.DialTimeout("unix", c.sockPath, 2*time.Second)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := writeRequest(conn, Request{ID: c.nextID(), Method: MethodSubscribe}); err != nil {
		return err
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	if _, err := readResponse(scanner); err != nil {
		return err
	}

	for scanner.Scan() {
		var ev ports.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		fn(ev)
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

func (c *Client) nextID() string {
	return strconv.FormatUint(c.seq.Add(1), 10)
}

// callFor decodes the result of method into a fresh T.
func callFor[T any](c *Client, method string, params any) (*T, error) {
	var out T
	if err := c.call(method, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(method string, params, out any) error {
	return c.callWithTimeout(method, params, out, defaultCallTimeout)
}

func (c *Client) callWithTimeout(method string, params, out any, timeout time.Duration) error {
	req := Request{ID: c.nextID(), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		req.Params = raw
	}

	conn, err := net.DialTimeout("unix", c.sockPath, 2*time.Second)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	// Set deadline for the whole request/response
	conn.SetDeadline(time.Now().Add(timeout))

	if err := writeRequest(conn, req); err != nil {
		return err
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	resp, err := readResponse(scanner)
	if err != nil {
		return err
	}
	if out != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

func writeRequest(conn net.Conn, req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func readResponse(scanner *bufio.Scanner) (*Response, error) {
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		return nil, fmt.Errorf("empty response")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if !resp.Success {
		kind := resp.Kind
		if kind == "" {
			kind = fault.Internal
		}
		return nil, &RemoteError{ErrKind: kind, Message: resp.Error}
	}
	return &resp, nil
}
