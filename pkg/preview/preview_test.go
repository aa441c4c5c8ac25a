package preview

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tstromberg/distiller/pkg/distill"
)

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServesWebsite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.htm"), []byte("<html>trip</html>"), 0o644))
	h := New(dir).Router()

	rr := do(t, h, http.MethodGet, "/index.htm")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "trip")

	rr = do(t, h, http.MethodGet, "/missing.htm")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestProgressAndInterrupt(t *testing.T) {
	s := New(t.TempDir())
	h := s.Router()

	var p Progress
	rr := do(t, h, http.MethodGet, "/api/progress")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, StatusIdle, p.Status)

	rr = do(t, h, http.MethodPost, "/api/interrupt")
	assert.Equal(t, http.StatusConflict, rr.Code)

	tk := distill.NewTracker(10)
	tk.Progress(4, "picture")
	tk.Failure(errors.New("write page x.htm: disk full"))
	s.Track(tk)

	rr = do(t, h, http.MethodGet, "/api/progress")
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, Progress{Status: distill.StatusRunning, Done: 4, Total: 10, Errors: []string{"write page x.htm: disk full"}}, p)

	rr = do(t, h, http.MethodPost, "/api/interrupt")
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.True(t, tk.Interrupted())

	tk.Finish(distill.StatusInterrupted)
	rr = do(t, h, http.MethodPost, "/api/interrupt")
	assert.Equal(t, http.StatusConflict, rr.Code)
	rr = do(t, h, http.MethodGet, "/api/progress")
	assert.True(t, strings.Contains(rr.Body.String(), `"status":"interrupted"`))
}
