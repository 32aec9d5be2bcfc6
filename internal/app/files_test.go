package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/cpbench/internal/adapters/safefile"
	"github.com/corey/cpbench/internal/domain/fault"
)

func newFiles(t *testing.T) (*Files, string) {
	t.Helper()
	s, root := openSession(t)
	return NewFiles(s, safefile.New(), nil), root
}

func TestFiles_WriteRead(t *testing.T) {
	f, root := newFiles(t)

	require.NoError(t, f.Write("sub/a.cpp", "int main(){}"))
	got, err := f.Read(filepath.Join(root, "sub", "a.cpp"))
	require.NoError(t, err)
	assert.Equal(t, "int main(){}", got.Content)
	assert.Equal(t, int64(12), got.Size)
	assert.NoFileExists(t, filepath.Join(root, "sub", "a.cpp.bak"))

	_, err = f.Read("missing.cpp")
	assert.Equal(t, fault.NotFound, fault.KindOf(err))

	_, err = f.Read("sub")
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))

	err = f.Write("../escape.cpp", "x")
	assert.Equal(t, fault.PathRejected, fault.KindOf(err))
}

func TestFiles_Tree(t *testing.T) {
	f, root := newFiles(t)
	for _, p := range []string{"b.cpp", "A.cpp", "zeta/x.cpp", "alpha/y.cpp", "alpha/inner/z.txt"} {
		full := filepath.Join(root, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("12345"), 0644))
	}

	tree, err := f.Tree()
	require.NoError(t, err)
	assert.Equal(t, root, tree.Root)

	var names []string
	for _, n := range tree.Nodes {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"alpha", "zeta", "A.cpp", "b.cpp"}, names)

	alpha := tree.Nodes[0]
	assert.True(t, alpha.IsDir)
	require.Len(t, alpha.Children, 2)
	assert.Equal(t, "inner", alpha.Children[0].Name)
	assert.Equal(t, "y.cpp", alpha.Children[1].Name)
	assert.Equal(t, int64(5), alpha.Children[1].Size)
	assert.Equal(t, filepath.Join(root, "alpha", "y.cpp"), alpha.Children[1].Path)
	assert.False(t, alpha.Children[1].ModTime.IsZero())
}

func TestFiles_TreeNeedsProject(t *testing.T) {
	f := NewFiles(NewSession(), safefile.New(), nil)
	_, err := f.Tree()
	assert.Equal(t, fault.ProjectNotOpen, fault.KindOf(err))
}

func TestFiles_CreateDelete(t *testing.T) {
	f, root := newFiles(t)

	res, err := f.Create("new/deep/a.cpp", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "new", "deep", "a.cpp"), res.Path)
	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Empty(t, data)

	require.NoError(t, os.WriteFile(res.Path, []byte("keep"), 0644))
	_, err = f.Create("new/deep/a.cpp", false)
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))
	data, _ = os.ReadFile(res.Path)
	assert.Equal(t, "keep", string(data), "existing file is not truncated")

	_, err = f.Create("dir/only", true)
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(root, "dir", "only"))

	require.NoError(t, f.Delete("new"))
	assert.NoDirExists(t, filepath.Join(root, "new"))

	err = f.Delete("new")
	assert.Equal(t, fault.NotFound, fault.KindOf(err))

	err = f.Delete(root)
	assert.Equal(t, fault.PathRejected, fault.KindOf(err))
}

func TestFiles_RenameMove(t *testing.T) {
	f, root := newFiles(t)
	_, err := f.Create("a.cpp", false)
	require.NoError(t, err)
	_, err = f.Create("dest", true)
	require.NoError(t, err)

	res, err := f.Rename("a.cpp", "b.cpp")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "b.cpp"), res.Path)
	assert.FileExists(t, res.Path)

	_, err = f.Rename("b.cpp", "../c.cpp")
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))

	res, err = f.Move("b.cpp", "dest")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "dest", "b.cpp"), res.Path)
	assert.FileExists(t, res.Path)

	_, err = f.Create("b.cpp", false)
	require.NoError(t, err)
	_, err = f.Move("b.cpp", "dest")
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(err), "no silent overwrite")

	_, err = f.Move("dest", "dest")
	assert.Equal(t, fault.PathRejected, fault.KindOf(err))

	_, err = f.Move("dest", filepath.Join(t.TempDir()))
	assert.Equal(t, fault.PathRejected, fault.KindOf(err))
}

func TestFiles_ActiveFolderFollowsChanges(t *testing.T) {
	f, root := newFiles(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "contest", "a"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "archive"), 0755))

	_, err := f.session.SetActiveFolder("contest/a")
	require.NoError(t, err)

	_, err = f.Rename("contest", "round1")
	require.NoError(t, err)
	_, active := f.session.Snapshot()
	assert.Equal(t, filepath.Join(root, "round1", "a"), active)

	_, err = f.Move("round1/a", "archive")
	require.NoError(t, err)
	_, active = f.session.Snapshot()
	assert.Equal(t, filepath.Join(root, "archive", "a"), active)

	target, err := f.session.ImportTarget("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "archive", "a"), target)

	require.NoError(t, f.Delete("round1"))
	_, active = f.session.Snapshot()
	assert.Equal(t, filepath.Join(root, "archive", "a"), active)

	require.NoError(t, f.Delete("archive"))
	_, active = f.session.Snapshot()
	assert.Empty(t, active)

	target, err = f.session.ImportTarget("")
	require.NoError(t, err)
	assert.Equal(t, root, target)
}
