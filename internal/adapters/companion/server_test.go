package companion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	bodies [][]byte
	err    error
}

func (r *recorder) Receive(body []byte) error {
	r.bodies = append(r.bodies, body)
	return r.err
}

func setupTestServer(t *testing.T, recv Receiver) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewServer(recv, nil, "").Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decode(t *testing.T, resp *http.Response) reply {
	t.Helper()
	var out reply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestPostAnyPath(t *testing.T) {
	rec := &recorder{}
	ts := setupTestServer(t, rec)

	for _, path := range []string{"/", "/anything", "/deep/nested/path"} {
		resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(`{"name":"A"}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Equal(t, reply{Success: true, Info: "received"}, decode(t, resp))
		resp.Body.Close()
	}
	require.Len(t, rec.bodies, 3)
	assert.Equal(t, `{"name":"A"}`, string(rec.bodies[0]))
}

func TestNonPostIs404(t *testing.T) {
	rec := &recorder{}
	ts := setupTestServer(t, rec)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req, err := http.NewRequest(method, ts.URL+"/x", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, method)
		assert.Empty(t, body)
	}
	assert.Empty(t, rec.bodies)
}

func TestReceiverErrorIs500(t *testing.T) {
	ts := setupTestServer(t, &recorder{err: errors.New("invalid problem JSON")})

	resp, err := http.Post(ts.URL+"/", "application/json", strings.NewReader("{nope"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, reply{Success: false, Error: "invalid problem JSON"}, decode(t, resp))
}

func TestStartStop(t *testing.T) {
	portFile := filepath.Join(t.TempDir(), "listener.port")
	rec := &recorder{}
	srv := NewServer(ReceiverFunc(rec.Receive), nil, portFile)

	require.NoError(t, srv.Start(0))
	require.NotZero(t, srv.Port())

	data, err := os.ReadFile(portFile)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d", srv.Port()), string(data))

	resp, err := http.Post(fmt.Sprintf("http://127.0.0.1:%d/", srv.Port()), "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	srv.Stop()
	srv.Stop()
	assert.NoFileExists(t, portFile)
}
