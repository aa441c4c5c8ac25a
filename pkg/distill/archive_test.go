package distill

import (
	"archive/zip"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "download.zip")
	a, err := OpenArchive(path)
	require.NoError(t, err)
	require.NoError(t, a.Add("a_h.jpg", strings.NewReader("first")))
	require.NoError(t, a.Add("b_h.jpg", strings.NewReader("second")))
	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "closing twice is harmless")

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 2)
	assert.Equal(t, zip.Store, zr.File[0].Method)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	bs, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "second", string(bs))
}

func TestOpenArchiveFailure(t *testing.T) {
	_, err := OpenArchive(filepath.Join(t.TempDir(), "missing", "x.zip"))
	assert.Error(t, err)
}

// failingReader returns data and then err.
type failingReader struct {
	data string
	err  error
	read bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.read {
		return 0, f.err
	}
	f.read = true
	return copy(p, f.data), nil
}

func TestArchiveSkipsFailedEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "download.zip")
	a, err := OpenArchive(path)
	require.NoError(t, err)

	reset := errors.New("network reset")
	err = a.Add("bad_h.jpg", &failingReader{data: "0123", err: reset})
	assert.ErrorIs(t, err, reset)
	require.NoError(t, a.Add("good_h.jpg", strings.NewReader("picture bytes")))
	require.NoError(t, a.Close())

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	assert.Equal(t, "good_h.jpg", zr.File[0].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	bs, err := io.ReadAll(rc)
	require.NoError(t, err, "stored checksum matches the content")
	assert.Equal(t, "picture bytes", string(bs))
}
