package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/cpbench/internal/adapters/bbolt"
	"github.com/corey/cpbench/internal/adapters/safefile"
	"github.com/corey/cpbench/internal/adapters/sidecar"
	"github.com/corey/cpbench/internal/adapters/socket"
	"github.com/corey/cpbench/internal/domain/fault"
	"github.com/corey/cpbench/internal/domain/problem"
	"github.com/corey/cpbench/internal/ports"
)

const twoSum = `{
  "name": "Two Sum",
  "group": "Codeforces",
  "tests": [
    {"input": "4\n2 7 11 15\n9\n", "output": "0 1\n"},
    {"input": "3\n3 2 4\n6\n", "output": "1 2\n"}
  ]
}`

type importFixture struct {
	im      *Importer
	session *Session
	root    string
	store   *bbolt.Store
	hub     *socket.Hub
}

func newImportFixture(t *testing.T, ttl time.Duration, opts ...safefile.Option) importFixture {
	t.Helper()
	session, root := openSession(t)
	store, err := bbolt.NewStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hub := socket.NewHub()
	writer := safefile.New(opts...)
	im := NewImporter(session, writer, sidecar.New(writer, nil), store, hub, ttl, nil)
	t.Cleanup(im.Stop)
	return importFixture{im: im, session: session, root: root, store: store, hub: hub}
}

func (f importFixture) receive(t *testing.T, body string) socket.ImportInfo {
	t.Helper()
	seen := make(map[string]bool)
	for _, info := range f.im.List().Imports {
		seen[info.ID] = true
	}
	require.NoError(t, f.im.Receive([]byte(body)))
	for _, info := range f.im.List().Imports {
		if !seen[info.ID] {
			return info
		}
	}
	t.Fatal("payload was not staged")
	return socket.ImportInfo{}
}

func TestImporter_TwoSum(t *testing.T) {
	f := newImportFixture(t, time.Minute)
	events, cancel := f.hub.Subscribe()
	defer cancel()

	info := f.receive(t, twoSum)
	assert.Equal(t, "Two Sum", info.Title)
	assert.Equal(t, string(ImportReceived), info.State)
	assert.Equal(t, 2, info.Samples)
	assert.NoFileExists(t, filepath.Join(f.root, "two-sum.cpp"), "receive never writes")

	ev := <-events
	assert.Equal(t, ports.EventImportReceived, ev.Type)

	check, err := f.im.Check(info.ID)
	require.NoError(t, err)
	assert.False(t, check.Exists)
	assert.Equal(t, filepath.Join(f.root, "two-sum.cpp"), check.Path)
	assert.Equal(t, string(ImportPending), f.im.List().Imports[0].State)

	res, err := f.im.Accept(info.ID)
	require.NoError(t, err)
	assert.Equal(t, check.Path, res.SourcePath)
	assert.Equal(t, filepath.Join(f.root, "two-sum.json"), res.SidecarPath)
	assert.True(t, res.CreatedNew)
	assert.Equal(t, 2, res.TestsWritten)

	src, err := os.ReadFile(res.SourcePath)
	require.NoError(t, err)
	assert.Equal(t, problem.Skeleton("Two Sum"), string(src))

	cases, err := sidecar.New(nil, nil).Load(res.SourcePath)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "Sample 1", cases[0].Name)
	assert.Equal(t, "4\n2 7 11 15\n9\n", cases[0].Input)
	assert.Equal(t, "0 1\n", cases[0].Expected)
	assert.Equal(t, "test-2", cases[1].ID)

	ev = <-events
	assert.Equal(t, ports.EventImportAccepted, ev.Type)

	assert.Zero(t, f.im.Pending())
	_, err = f.im.Accept(info.ID)
	assert.Equal(t, fault.NotFound, fault.KindOf(err))

	recs, err := f.store.ListImports(0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "accepted", recs[0].Outcome)
	assert.True(t, recs[0].CreatedNew)
	assert.Equal(t, 2, recs[0].TestsWritten)
}

func TestImporter_CheckExistingIsTerminal(t *testing.T) {
	f := newImportFixture(t, time.Minute)
	existing := filepath.Join(f.root, "two-sum.cpp")
	require.NoError(t, os.WriteFile(existing, []byte("mine"), 0644))

	info := f.receive(t, twoSum)
	check, err := f.im.Check(info.ID)
	require.NoError(t, err)
	assert.True(t, check.Exists)
	assert.Equal(t, existing, check.Path)
	assert.Zero(t, f.im.Pending())

	recs, err := f.store.ListImports(0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "already_exists", recs[0].Outcome)
}

func TestImporter_AcceptReusesExistingFiles(t *testing.T) {
	f := newImportFixture(t, time.Minute)
	src := filepath.Join(f.root, "two-sum.cpp")
	require.NoError(t, os.WriteFile(src, []byte("mine"), 0644))

	info := f.receive(t, twoSum)
	res, err := f.im.Accept(info.ID)
	require.NoError(t, err)
	assert.False(t, res.CreatedNew)
	assert.Equal(t, 2, res.TestsWritten)

	data, _ := os.ReadFile(src)
	assert.Equal(t, "mine", string(data), "existing source is never overwritten")

	// Second import of the same problem: both files exist now.
	info = f.receive(t, twoSum)
	res, err = f.im.Accept(info.ID)
	require.NoError(t, err)
	assert.False(t, res.CreatedNew)
	assert.Zero(t, res.TestsWritten)
}

func TestImporter_TargetDir(t *testing.T) {
	f := newImportFixture(t, time.Minute)
	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "contest", "a"), 0755))
	_, err := f.session.SetActiveFolder("contest/a")
	require.NoError(t, err)

	info := f.receive(t, `{"title":"A. Watermelon","filename":"Main File"}`)
	check, err := f.im.Check(info.ID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.root, "contest", "a", "main-file.cpp"), check.Path)

	info = f.receive(t, `{"title":"B","dir":"round2"}`)
	res, err := f.im.Accept(info.ID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.root, "round2", "b.cpp"), res.SourcePath)
	assert.FileExists(t, res.SourcePath)
	assert.Zero(t, res.TestsWritten)

	info = f.receive(t, `{"title":"C","dir":"../outside"}`)
	_, err = f.im.Check(info.ID)
	assert.Equal(t, fault.PathRejected, fault.KindOf(err))
}

func TestImporter_Collision(t *testing.T) {
	f := newImportFixture(t, time.Minute)
	require.NoError(t, os.Mkdir(filepath.Join(f.root, "two-sum.cpp"), 0755))

	info := f.receive(t, twoSum)
	_, err := f.im.Check(info.ID)
	assert.Equal(t, fault.ImportCollision, fault.KindOf(err))
	_, err = f.im.Accept(info.ID)
	assert.Equal(t, fault.ImportCollision, fault.KindOf(err))
	assert.Equal(t, 1, f.im.Pending(), "failed accept keeps the import staged")
}

func TestImporter_NoProject(t *testing.T) {
	im := NewImporter(NewSession(), safefile.New(), sidecar.New(nil, nil), nil, nil, time.Minute, nil)
	defer im.Stop()

	require.NoError(t, im.Receive([]byte(twoSum)))
	id := im.List().Imports[0].ID
	_, err := im.Check(id)
	assert.Equal(t, fault.ProjectNotOpen, fault.KindOf(err))
	_, err = im.Accept(id)
	assert.Equal(t, fault.ProjectNotOpen, fault.KindOf(err))
}

func TestImporter_ParseError(t *testing.T) {
	f := newImportFixture(t, time.Minute)
	err := f.im.Receive([]byte(`{not json`))
	assert.Equal(t, fault.ImportParse, fault.KindOf(err))
	assert.Zero(t, f.im.Pending())
}

func TestImporter_Reject(t *testing.T) {
	f := newImportFixture(t, time.Minute)
	info := f.receive(t, twoSum)

	require.NoError(t, f.im.Reject(info.ID))
	assert.Zero(t, f.im.Pending())
	assert.NoFileExists(t, filepath.Join(f.root, "two-sum.cpp"))

	err := f.im.Reject(info.ID)
	assert.Equal(t, fault.NotFound, fault.KindOf(err))

	recs, err := f.store.ListImports(0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "rejected", recs[0].Outcome)
}

func TestImporter_Expiry(t *testing.T) {
	f := newImportFixture(t, 50*time.Millisecond)
	events, cancel := f.hub.Subscribe()
	defer cancel()

	info := f.receive(t, twoSum)
	<-events // import.received

	select {
	case ev := <-events:
		assert.Equal(t, ports.EventImportExpired, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("import did not expire")
	}
	assert.Zero(t, f.im.Pending())

	_, err := f.im.Accept(info.ID)
	assert.Equal(t, fault.NotFound, fault.KindOf(err))
	assert.NoFileExists(t, filepath.Join(f.root, "two-sum.cpp"))

	recs, err := f.store.ListImports(0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "expired", recs[0].Outcome)
}

func TestImporter_AcceptFailureRearms(t *testing.T) {
	failing := safefile.WithReadBack(func(string) ([]byte, error) {
		return nil, errors.New("disk gone")
	})
	f := newImportFixture(t, time.Minute, failing)
	info := f.receive(t, twoSum)

	_, err := f.im.Accept(info.ID)
	assert.Equal(t, fault.Verification, fault.KindOf(err))

	list := f.im.List().Imports
	require.Len(t, list, 1)
	assert.False(t, list[0].ExpiresAt.Before(info.ExpiresAt))

	recs, err := f.store.ListImports(0)
	require.NoError(t, err)
	assert.Empty(t, recs, "nothing recorded until a terminal decision")
}
