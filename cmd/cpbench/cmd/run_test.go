package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCases(t *testing.T) {
	cases, err := readCases("")
	require.NoError(t, err)
	assert.Nil(t, cases)

	dir := t.TempDir()
	path := filepath.Join(dir, "draft.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"edge","input":"0\n","expected":"0"}]`), 0o644))
	cases, err = readCases(path)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "edge", cases[0].Name)
	assert.Equal(t, "0\n", cases[0].Input)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`[]`), 0o644))
	cases, err = readCases(empty)
	require.NoError(t, err)
	assert.NotNil(t, cases)
	assert.Empty(t, cases)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o644))
	_, err = readCases(bad)
	assert.Error(t, err)
}
