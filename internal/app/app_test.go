package app

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/cpbench/internal/adapters/socket"
	"github.com/corey/cpbench/internal/config"
	"github.com/corey/cpbench/internal/domain/fault"
	"github.com/corey/cpbench/internal/domain/testcase"
	"github.com/corey/cpbench/internal/ports"
)

func newTestApp(t *testing.T) (*App, *socket.Client) {
	t.Helper()
	st := config.Default()
	st.StateDir = t.TempDir()
	st.Listener.Port = 0
	st.Compiler.Path = writeFakeCompiler(t)
	st.Runner.Timeout = 500 * time.Millisecond

	a, err := New(Config{Settings: st})
	require.NoError(t, err)
	require.NoError(t, a.Start())
	t.Cleanup(func() { a.Stop() })
	return a, socket.NewClient(a.Paths.Socket)
}

func TestApp_RequiresSettings(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestApp_EditAndRun(t *testing.T) {
	a, client := newTestApp(t)
	root := t.TempDir()

	require.True(t, client.Ping())
	_, err := client.ListTree()
	var remote *socket.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, fault.ProjectNotOpen, remote.Kind())

	sess, err := client.OpenProject(root)
	require.NoError(t, err)
	assert.Equal(t, root, sess.ProjectRoot)

	require.NoError(t, client.WriteFile("echo.cpp", "#!/bin/sh\ncat\n"))
	src := filepath.Join(root, "echo.cpp")

	tests, err := client.LoadTests("echo.cpp")
	require.NoError(t, err)
	assert.Empty(t, tests.Cases)
	assert.Equal(t, filepath.Join(root, "echo.json"), tests.Sidecar)

	_, err = client.AddTest(src, "1\n", "1")
	require.NoError(t, err)
	_, err = client.AddTest(src, "2\n", "3")
	require.NoError(t, err)
	tests, err = client.AddTest(src, "3\n", "3")
	require.NoError(t, err)
	require.Len(t, tests.Cases, 3)

	report, err := client.RunTests(src, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Passed)
	assert.Equal(t, 3, report.Total)
	assert.False(t, report.Results[1].Passed)

	report, err = client.RunTests(src, []string{"test-2"}, nil)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "test-2", report.Results[0].ID)

	tests, err = client.DeleteTest(src, "test-2")
	require.NoError(t, err)
	require.Len(t, tests.Cases, 2)
	assert.Equal(t, "test-2", tests.Cases[1].ID)
	assert.Equal(t, "Test 2", tests.Cases[1].Name)
	assert.Equal(t, "3\n", tests.Cases[1].Input)

	report, err = client.RunTests(src, nil, nil)
	require.NoError(t, err)
	assert.True(t, report.AllPassed())

	hist, err := client.History(10)
	require.NoError(t, err)
	assert.Len(t, hist.Runs, 3)
	assert.Equal(t, report.RunID, hist.Runs[0].RunID)

	tree, err := client.ListTree()
	require.NoError(t, err)
	var names []string
	for _, n := range tree.Nodes {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"echo.cpp", "echo.json"}, names)

	h, err := client.Health()
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, root, h.ProjectRoot)
	assert.Equal(t, a.Listener.Port(), h.ListenerPort)
}

func TestApp_RunUnsavedCases(t *testing.T) {
	_, client := newTestApp(t)
	root := t.TempDir()
	_, err := client.OpenProject(root)
	require.NoError(t, err)

	require.NoError(t, client.WriteFile("echo.cpp", "#!/bin/sh\ncat\n"))
	src := filepath.Join(root, "echo.cpp")
	_, err = client.AddTest(src, "1\n", "1")
	require.NoError(t, err)
	saved, err := os.ReadFile(filepath.Join(root, "echo.json"))
	require.NoError(t, err)

	draft := []testcase.Case{
		{ID: "scratch", Input: "7\n", Expected: "7"},
		{Name: "mismatch", Input: "8\n", Expected: "9"},
	}
	report, err := client.RunTests(src, []string{"test-1"}, draft)
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "test-1", report.Results[0].ID)
	assert.Equal(t, "Test 1", report.Results[0].Name)
	assert.True(t, report.Results[0].Passed)
	assert.Equal(t, "mismatch", report.Results[1].Name)
	assert.False(t, report.Results[1].Passed)

	after, err := os.ReadFile(filepath.Join(root, "echo.json"))
	require.NoError(t, err)
	assert.Equal(t, string(saved), string(after))
}

func TestApp_ImportOverListener(t *testing.T) {
	a, client := newTestApp(t)
	root := t.TempDir()
	_, err := client.OpenProject(root)
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(root, "cf"), 0755))
	_, err = client.SetActiveFolder("cf")
	require.NoError(t, err)

	url := fmt.Sprintf("http://127.0.0.1:%d/", a.Listener.Port())
	resp, err := http.Post(url, "application/json", strings.NewReader(twoSum))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	list, err := client.ImportList()
	require.NoError(t, err)
	require.Len(t, list.Imports, 1)
	id := list.Imports[0].ID

	check, err := client.ImportCheck(id)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "cf", "two-sum.cpp"), check.Path)

	res, err := client.ImportAccept(id)
	require.NoError(t, err)
	assert.True(t, res.CreatedNew)
	assert.Equal(t, 2, res.TestsWritten)

	tests, err := client.LoadTests(res.SourcePath)
	require.NoError(t, err)
	assert.Equal(t, "Sample 2", tests.Cases[1].Name)

	hist, err := client.History(0)
	require.NoError(t, err)
	require.Len(t, hist.Imports, 1)
	assert.Equal(t, "accepted", hist.Imports[0].Outcome)
}

func TestApp_TreeChangedEvents(t *testing.T) {
	a, client := newTestApp(t)
	root := t.TempDir()
	_, err := client.OpenProject(root)
	require.NoError(t, err)

	events, cancel := a.Hub.Subscribe()
	defer cancel()

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.cpp"), []byte("x"), 0644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == ports.EventTreeChanged {
				return
			}
		case <-deadline:
			t.Fatal("no tree.changed event")
		}
	}
}

func TestApp_ListenerDisabled(t *testing.T) {
	st := config.Default()
	st.StateDir = t.TempDir()
	st.Listener.Enabled = false

	a, err := New(Config{Settings: st})
	require.NoError(t, err)
	require.NoError(t, a.Start())
	defer a.Stop()

	assert.Nil(t, a.Listener)
	assert.Zero(t, a.Health().ListenerPort)
}
