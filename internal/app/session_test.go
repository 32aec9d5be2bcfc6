package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/cpbench/internal/domain/fault"
)

func openSession(t *testing.T) (*Session, string) {
	t.Helper()
	root := t.TempDir()
	s := NewSession()
	got, err := s.Open(root)
	require.NoError(t, err)
	require.Equal(t, root, got)
	return s, root
}

func TestSession_NotOpen(t *testing.T) {
	s := NewSession()

	_, err := s.Root()
	assert.Equal(t, fault.ProjectNotOpen, fault.KindOf(err))

	_, err = s.ImportTarget("")
	assert.Equal(t, fault.ProjectNotOpen, fault.KindOf(err))

	_, err = s.Resolve("a.cpp")
	assert.Equal(t, fault.ProjectNotOpen, fault.KindOf(err))

	_, err = s.SetActiveFolder("/tmp")
	assert.Equal(t, fault.ProjectNotOpen, fault.KindOf(err))

	abs := filepath.Join(t.TempDir(), "a.cpp")
	got, err := s.Resolve(abs)
	require.NoError(t, err, "absolute paths are allowed with no project open")
	assert.Equal(t, abs, got)
}

func TestSession_OpenRejectsNonDirectories(t *testing.T) {
	s := NewSession()

	_, err := s.Open(filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, fault.NotFound, fault.KindOf(err))

	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = s.Open(file)
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))

	_, err = s.Open("  ")
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))
}

func TestSession_Resolve(t *testing.T) {
	s, root := openSession(t)

	got, err := s.Resolve("contest/a.cpp")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "contest", "a.cpp"), got)

	got, err = s.Resolve(filepath.Join(root, "b.cpp"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "b.cpp"), got)

	for _, bad := range []string{"../x", "a/../../x", filepath.Join(root, "..", "x"), "a/.."} {
		_, err := s.Resolve(bad)
		assert.Equal(t, fault.PathRejected, fault.KindOf(err), bad)
	}

	_, err = s.Resolve(filepath.Join(t.TempDir(), "elsewhere.cpp"))
	assert.Equal(t, fault.PathRejected, fault.KindOf(err))

	_, err = s.Resolve("")
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))
}

func TestSession_ActiveFolder(t *testing.T) {
	s, root := openSession(t)
	sub := filepath.Join(root, "cf", "round-1")
	require.NoError(t, os.MkdirAll(sub, 0755))

	got, err := s.SetActiveFolder("cf/round-1")
	require.NoError(t, err)
	assert.Equal(t, sub, got)

	_, active := s.Snapshot()
	assert.Equal(t, sub, active)

	_, err = s.SetActiveFolder(t.TempDir())
	assert.Equal(t, fault.PathRejected, fault.KindOf(err))

	_, err = s.SetActiveFolder("nope")
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))

	_, active = s.Snapshot()
	assert.Equal(t, sub, active, "failed focus keeps the previous folder")

	_, err = s.SetActiveFolder("")
	require.NoError(t, err)
	_, active = s.Snapshot()
	assert.Empty(t, active)
}

func TestSession_ReopenClearsActive(t *testing.T) {
	s, root := openSession(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "x"), 0755))
	_, err := s.SetActiveFolder("x")
	require.NoError(t, err)

	other := t.TempDir()
	_, err = s.Open(other)
	require.NoError(t, err)

	r, active := s.Snapshot()
	assert.Equal(t, other, r)
	assert.Empty(t, active)
}

func TestSession_ImportTarget(t *testing.T) {
	s, root := openSession(t)

	got, err := s.ImportTarget("")
	require.NoError(t, err)
	assert.Equal(t, root, got, "falls back to the root")

	sub := filepath.Join(root, "focus")
	require.NoError(t, os.Mkdir(sub, 0755))
	_, err = s.SetActiveFolder(sub)
	require.NoError(t, err)

	got, err = s.ImportTarget("")
	require.NoError(t, err)
	assert.Equal(t, sub, got, "active folder wins over root")

	got, err = s.ImportTarget("atcoder/abc300")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "atcoder", "abc300"), got, "payload dir wins over active folder")

	_, err = s.ImportTarget("../../etc")
	assert.Equal(t, fault.PathRejected, fault.KindOf(err))
}
