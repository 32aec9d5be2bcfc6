package app

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/corey/cpbench/internal/domain/fault"
)

// Session is the single open project and the folder the user is focused on.
// Imports without an explicit dir land in the active folder.
type Session struct {
	mu     sync.RWMutex
	root   string
	active string
}

// NewSession returns a session with no project open.
func NewSession() *Session {
	return &Session{}
}

// Open makes root the project root and clears the active folder.
func (s *Session) Open(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", fault.New(fault.InvalidArgument, "project root required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fault.Wrap(fault.InvalidArgument, err, "resolve %s", root)
	}
	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return "", fault.New(fault.NotFound, "%s does not exist", abs)
	}
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fault.New(fault.InvalidArgument, "%s is not a directory", abs)
	}

	s.mu.Lock()
	s.root = abs
	s.active = ""
	s.mu.Unlock()
	return abs, nil
}

// Root returns the project root, or a project_not_open fault.
func (s *Session) Root() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.root == "" {
		return "", fault.New(fault.ProjectNotOpen, "no project is open")
	}
	return s.root, nil
}

// Snapshot returns the root and active folder as one consistent pair.
func (s *Session) Snapshot() (root, active string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root, s.active
}

// SetActiveFolder focuses dir, which must be a directory inside the project.
// An empty dir clears the focus.
func (s *Session) SetActiveFolder(dir string) (string, error) {
	if _, err := s.Root(); err != nil {
		return "", err
	}
	if dir == "" {
		s.mu.Lock()
		s.active = ""
		s.mu.Unlock()
		return "", nil
	}

	abs, err := s.Resolve(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fault.New(fault.InvalidArgument, "%s is not a directory", abs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The project may have been switched while we were checking.
	if !within(s.root, abs) {
		return "", fault.New(fault.PathRejected, "%s is outside the project", abs)
	}
	s.active = abs
	return abs, nil
}

// entryMoved keeps the active folder pointing at the same directory after
// from was renamed to to. An empty to means from was deleted, which clears
// the focus when the active folder was from or lay under it.
func (s *Session) entryMoved(from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == "" || !within(from, s.active) {
		return
	}
	if to == "" {
		s.active = ""
		return
	}
	rel, err := filepath.Rel(from, s.active)
	if err != nil {
		s.active = ""
		return
	}
	s.active = filepath.Join(to, rel)
}

// Resolve validates a client-supplied path. Paths containing a ".."
// component are rejected outright. Relative paths are taken from the project
// root; when a project is open every path must stay inside it.
func (s *Session) Resolve(p string) (string, error) {
	if p == "" {
		return "", fault.New(fault.InvalidArgument, "path required")
	}
	if hasDotDot(p) {
		return "", fault.New(fault.PathRejected, "path %q contains ..", p)
	}

	root, _ := s.Snapshot()
	if !filepath.IsAbs(p) {
		if root == "" {
			return "", fault.New(fault.ProjectNotOpen, "relative path %q with no project open", p)
		}
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)

	if root != "" && !within(root, p) {
		return "", fault.New(fault.PathRejected, "%s is outside the project", p)
	}
	return p, nil
}

// ImportTarget picks the directory a new problem is written to: the
// payload's dir under the project root, else the active folder, else the
// root itself.
func (s *Session) ImportTarget(dir string) (string, error) {
	root, active := s.Snapshot()
	if root == "" {
		return "", fault.New(fault.ProjectNotOpen, "open a project before importing")
	}
	if dir != "" {
		target := filepath.Join(root, dir)
		if !within(root, target) {
			return "", fault.New(fault.PathRejected, "import dir %q escapes the project", dir)
		}
		return target, nil
	}
	if active != "" {
		return active, nil
	}
	return root, nil
}

// within reports whether p is root or below it. Both must be clean and absolute.
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func hasDotDot(p string) bool {
	parts := strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	for _, part := range parts {
		if part == ".." {
			return true
		}
	}
	return false
}
