// Package socket implements a JSON-over-Unix-socket protocol for the cpbench daemon.
// The protocol uses newline-delimited JSON: each message is one JSON object + \n.
// Every response is an envelope {id, success, data?, error?, kind?} where kind is
// the fault code, so front ends can tell a failed verification from a rejected
// path without parsing messages.
package socket

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/corey/cpbench/internal/domain/fault"
	"github.com/corey/cpbench/internal/domain/testcase"
	"github.com/corey/cpbench/internal/ports"
)

// SocketPath returns the Unix socket path inside a state directory.
func SocketPath(stateDir string) string {
	return filepath.Join(stateDir, "run", "cpbench.sock")
}

// Method names for the protocol.
const (
	MethodHealth          = "health"
	MethodShutdown        = "shutdown"
	MethodOpenProject     = "open-project"
	MethodSetActiveFolder = "set-active-folder"
	MethodSession         = "session"
	MethodReadFile        = "read-file"
	MethodWriteFile       = "write-file"
	MethodListTree        = "list-tree"
	MethodCreateEntry     = "create-entry"
	MethodDeleteEntry     = "delete-entry"
	MethodRenameEntry     = "rename-entry"
	MethodMoveEntry       = "move-entry"
	MethodLoadTests       = "load-tests"
	MethodSaveTests       = "save-tests"
	MethodAddTest         = "add-test"
	MethodUpdateTest      = "update-test"
	MethodDeleteTest      = "delete-test"
	MethodRunTests        = "run-tests"
	MethodImportList      = "import-list"
	MethodImportCheck     = "import-check"
	MethodImportAccept    = "import-accept"
	MethodImportReject    = "import-reject"
	MethodHistory         = "history"
	MethodSubscribe       = "subscribe"
)

// Request is the wire format for client-to-server messages.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the wire format for server-to-client messages.
type Response struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Kind    fault.Kind      `json:"kind,omitempty"`
}

// PathParams names a single file or directory.
type PathParams struct {
	Path string `json:"path"`
}

// OpenProjectParams is the params for open-project.
type OpenProjectParams struct {
	Root string `json:"root"`
}

// FolderParams is the params for set-active-folder.
type FolderParams struct {
	Dir string `json:"dir"`
}

// WriteFileParams is the params for write-file.
type WriteFileParams struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// CreateEntryParams is the params for create-entry.
type CreateEntryParams struct {
	Path  string `json:"path"`
	IsDir bool   `json:"isDir"`
}

// RenameParams is the params for rename-entry. NewName is a bare name, not a path.
type RenameParams struct {
	Path    string `json:"path"`
	NewName string `json:"newName"`
}

// MoveParams is the params for move-entry.
type MoveParams struct {
	Path    string `json:"path"`
	DestDir string `json:"destDir"`
}

// SourceParams names a source file for load-tests.
type SourceParams struct {
	Source string `json:"source"`
}

// SaveTestsParams replaces the whole test list.
type SaveTestsParams struct {
	Source string          `json:"source"`
	Cases  []testcase.Case `json:"cases"`
}

// AddTestParams appends one test.
type AddTestParams struct {
	Source   string `json:"source"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// UpdateTestParams edits one test in place.
type UpdateTestParams struct {
	Source   string `json:"source"`
	ID       string `json:"id"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// TestRefParams names one test of a source.
type TestRefParams struct {
	Source string `json:"source"`
	ID     string `json:"id"`
}

// RunTestsParams selects what to run. When Cases is non-nil those cases
// are run as given (ids are reassigned by position) and the sidecar is not
// read. Otherwise the sidecar's tests run, filtered by IDs when non-empty.
type RunTestsParams struct {
	Source string          `json:"source"`
	IDs    []string        `json:"ids,omitempty"`
	Cases  []testcase.Case `json:"cases"`
}

// ImportParams names a staged import.
type ImportParams struct {
	ID string `json:"id"`
}

// HistoryParams is the params for history.
type HistoryParams struct {
	Limit int `json:"limit,omitempty"`
}

// HealthResult is the result of a health request.
type HealthResult struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	ProjectRoot    string `json:"projectRoot,omitempty"`
	ListenerPort   int    `json:"listenerPort,omitempty"`
	PendingImports int    `json:"pendingImports"`
	Compiler       string `json:"compiler"`
	Subscribers    int    `json:"subscribers"`
}

// SessionResult describes the open project.
type SessionResult struct {
	ProjectRoot  string `json:"projectRoot"`
	ActiveFolder string `json:"activeFolder,omitempty"`
}

// FileContent is the result of read-file.
type FileContent struct {
	Path    string    `json:"path"`
	Content string    `json:"content"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// TreeNode is one entry of the project tree. Children are ordered
// directories first, then files, each group alphabetically.
type TreeNode struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	IsDir    bool       `json:"isDir"`
	Size     int64      `json:"size"`
	ModTime  time.Time  `json:"modTime"`
	Children []TreeNode `json:"children,omitempty"`
}

// TreeResult is the result of list-tree.
type TreeResult struct {
	Root  string     `json:"root"`
	Nodes []TreeNode `json:"nodes"`
}

// PathResult carries the new location after a rename or move.
type PathResult struct {
	Path string `json:"path"`
}

// TestsResult is the current test list of a source.
type TestsResult struct {
	Source  string          `json:"source"`
	Sidecar string          `json:"sidecar"`
	Cases   []testcase.Case `json:"cases"`
}

// ImportInfo describes a staged import.
type ImportInfo struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	State         string    `json:"state"`
	SuggestedBase string    `json:"suggestedBase"`
	TargetDir     string    `json:"targetDir,omitempty"`
	Samples       int       `json:"samples"`
	ReceivedAt    time.Time `json:"receivedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// ImportListResult is the result of import-list.
type ImportListResult struct {
	Imports []ImportInfo `json:"imports"`
}

// CheckResult is the result of import-check.
type CheckResult struct {
	ID     string `json:"id"`
	Exists bool   `json:"exists"`
	Path   string `json:"path"`
}

// AcceptResult is the result of import-accept.
type AcceptResult struct {
	ID           string `json:"id"`
	SourcePath   string `json:"sourcePath"`
	SidecarPath  string `json:"sidecarPath"`
	CreatedNew   bool   `json:"createdNew"`
	TestsWritten int    `json:"testsWritten"`
}

// HistoryResult is the result of history.
type HistoryResult struct {
	Runs    []ports.RunRecord    `json:"runs"`
	Imports []ports.ImportRecord `json:"imports"`
}
