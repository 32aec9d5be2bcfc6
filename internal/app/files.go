package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/corey/cpbench/internal/adapters/logging"
	"github.com/corey/cpbench/internal/adapters/safefile"
	"github.com/corey/cpbench/internal/adapters/socket"
	"github.com/corey/cpbench/internal/domain/fault"
)

// Files performs the project file operations requested over the boundary.
// Every path goes through Session.Resolve first.
type Files struct {
	session *Session
	writer  *safefile.Writer
	log     *logging.Logger
}

// NewFiles creates the file service.
func NewFiles(session *Session, writer *safefile.Writer, log *logging.Logger) *Files {
	return &Files{session: session, writer: writer, log: log}
}

// Read returns the content of a regular file.
func (f *Files) Read(path string) (socket.FileContent, error) {
	abs, err := f.session.Resolve(path)
	if err != nil {
		return socket.FileContent{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return socket.FileContent{}, statFault(abs, err)
	}
	if info.IsDir() {
		return socket.FileContent{}, fault.New(fault.InvalidArgument, "%s is a directory", abs)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return socket.FileContent{}, fmt.Errorf("read %s: %w", abs, err)
	}
	return socket.FileContent{
		Path:    abs,
		Content: string(data),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Write replaces a file through the verified writer.
func (f *Files) Write(path, content string) error {
	abs, err := f.session.Resolve(path)
	if err != nil {
		return err
	}
	if err := f.writer.Write(abs, []byte(content)); err != nil {
		f.log.Warn("write failed", "path", abs, "error", err)
		return err
	}
	return nil
}

// Tree lists the project recursively. Directories come before files and
// each group is sorted by name, case-insensitively.
func (f *Files) Tree() (socket.TreeResult, error) {
	root, err := f.session.Root()
	if err != nil {
		return socket.TreeResult{}, err
	}
	nodes, err := listDir(root)
	if err != nil {
		return socket.TreeResult{}, err
	}
	return socket.TreeResult{Root: root, Nodes: nodes}, nil
}

func listDir(dir string) ([]socket.TreeNode, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	nodes := make([]socket.TreeNode, 0, len(entries))
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			// Vanished between ReadDir and Info.
			continue
		}
		node := socket.TreeNode{
			Name:    entry.Name(),
			Path:    full,
			IsDir:   entry.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if node.IsDir {
			children, err := listDir(full)
			if err != nil {
				return nil, err
			}
			node.Children = children
		}
		nodes = append(nodes, node)
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].IsDir != nodes[j].IsDir {
			return nodes[i].IsDir
		}
		a, b := strings.ToLower(nodes[i].Name), strings.ToLower(nodes[j].Name)
		if a != b {
			return a < b
		}
		return nodes[i].Name < nodes[j].Name
	})
	return nodes, nil
}

// Create makes an empty file or a directory, creating parents. An existing
// file is never truncated.
func (f *Files) Create(path string, isDir bool) (socket.PathResult, error) {
	abs, err := f.session.Resolve(path)
	if err != nil {
		return socket.PathResult{}, err
	}

	if isDir {
		if err := os.MkdirAll(abs, 0755); err != nil {
			return socket.PathResult{}, fmt.Errorf("create dir %s: %w", abs, err)
		}
		return socket.PathResult{Path: abs}, nil
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return socket.PathResult{}, fmt.Errorf("create parent dir: %w", err)
	}
	file, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		return socket.PathResult{}, fault.New(fault.InvalidArgument, "%s already exists", abs)
	}
	if err != nil {
		return socket.PathResult{}, fmt.Errorf("create %s: %w", abs, err)
	}
	if err := file.Close(); err != nil {
		return socket.PathResult{}, err
	}
	f.log.Debug("entry created", "path", abs, "dir", isDir)
	return socket.PathResult{Path: abs}, nil
}

// Delete removes a file, or a directory with everything under it.
func (f *Files) Delete(path string) error {
	abs, err := f.resolveEntry(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return statFault(abs, err)
	}
	if info.IsDir() {
		err = os.RemoveAll(abs)
	} else {
		err = os.Remove(abs)
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", abs, err)
	}
	f.session.entryMoved(abs, "")
	f.log.Info("entry deleted", "path", abs, "dir", info.IsDir())
	return nil
}

// Rename gives an entry a new name in the same directory.
func (f *Files) Rename(path, newName string) (socket.PathResult, error) {
	abs, err := f.resolveEntry(path)
	if err != nil {
		return socket.PathResult{}, err
	}
	if newName == "" || newName == "." || newName == ".." || strings.ContainsAny(newName, `/\`) {
		return socket.PathResult{}, fault.New(fault.InvalidArgument, "invalid name %q", newName)
	}
	dest := filepath.Join(filepath.Dir(abs), newName)
	return f.relocate(abs, dest)
}

// Move places an entry inside destDir under the same name.
func (f *Files) Move(path, destDir string) (socket.PathResult, error) {
	abs, err := f.resolveEntry(path)
	if err != nil {
		return socket.PathResult{}, err
	}
	dir, err := f.session.Resolve(destDir)
	if err != nil {
		return socket.PathResult{}, err
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return socket.PathResult{}, fault.New(fault.InvalidArgument, "%s is not a directory", dir)
	}
	if within(abs, dir) {
		return socket.PathResult{}, fault.New(fault.PathRejected, "cannot move %s into itself", abs)
	}
	return f.relocate(abs, filepath.Join(dir, filepath.Base(abs)))
}

func (f *Files) relocate(from, to string) (socket.PathResult, error) {
	if _, err := os.Stat(from); err != nil {
		return socket.PathResult{}, statFault(from, err)
	}
	if from == to {
		return socket.PathResult{Path: to}, nil
	}
	if _, err := os.Lstat(to); err == nil {
		return socket.PathResult{}, fault.New(fault.InvalidArgument, "%s already exists", to)
	}
	if err := os.Rename(from, to); err != nil {
		return socket.PathResult{}, fmt.Errorf("rename %s: %w", from, err)
	}
	f.session.entryMoved(from, to)
	f.log.Info("entry moved", "from", from, "to", to)
	return socket.PathResult{Path: to}, nil
}

// resolveEntry resolves a path that must not be the project root itself.
func (f *Files) resolveEntry(path string) (string, error) {
	abs, err := f.session.Resolve(path)
	if err != nil {
		return "", err
	}
	if root, _ := f.session.Snapshot(); root != "" && abs == root {
		return "", fault.New(fault.PathRejected, "refusing to modify the project root")
	}
	return abs, nil
}

func statFault(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fault.New(fault.NotFound, "%s does not exist", path)
	}
	return fmt.Errorf("stat %s: %w", path, err)
}
