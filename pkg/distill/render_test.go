package distill

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tstromberg/distiller/pkg/collection"
)

func TestFit(t *testing.T) {
	data := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{400, 300, 100, 100, 100, 75},
		{300, 400, 100, 100, 75, 100},
		{400, 300, 350, 300, 350, 263},
		{50, 50, 100, 200, 100, 100},
		{0, 0, 100, 200, 100, 200},
	}
	for _, d := range data {
		t.Run(fmt.Sprintf("%dx%d", d.w, d.h), func(t *testing.T) {
			w, h := fit(d.w, d.h, d.maxW, d.maxH)
			assert.Equal(t, d.wantW, w)
			assert.Equal(t, d.wantH, h)
		})
	}
}

func TestScaleSteps(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 300))
	for _, steps := range []int{0, 1, 3} {
		got := scale(src, 100, 75, steps)
		assert.Equal(t, image.Rect(0, 0, 100, 75), got.Bounds(), "steps=%d", steps)
	}
}

func TestRotate(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 30))
	data := []struct {
		deg  int
		w, h int
	}{
		{0, 40, 30},
		{90, 30, 40},
		{180, 40, 30},
		{-90, 30, 40},
		{450, 30, 40},
	}
	for _, d := range data {
		b := rotate(src, d.deg).Bounds()
		assert.Equal(t, d.w, b.Dx(), "deg=%d", d.deg)
		assert.Equal(t, d.h, b.Dy(), "deg=%d", d.deg)
	}
	b := rotate(src, 45).Bounds()
	assert.Greater(t, b.Dx(), 40)
}

func TestLocalPath(t *testing.T) {
	data := []struct {
		in   string
		want string
	}{
		{"/tmp/a.jpg", "/tmp/a.jpg"},
		{"rel/a.jpg", "rel/a.jpg"},
		{`C:\pics\a.jpg`, `C:\pics\a.jpg`},
		{"file:///tmp/a.jpg", "/tmp/a.jpg"},
		{"http://example.com/a.jpg", ""},
	}
	for _, d := range data {
		assert.Equal(t, d.want, localPath(d.in), d.in)
	}
}

func TestRenderRemote(t *testing.T) {
	src := filepath.Join(t.TempDir(), "remote.jpg")
	writeJPEG(t, src, 400, 300)
	srv := httptest.NewServer(http.FileServer(http.Dir(filepath.Dir(src))))
	defer srv.Close()

	o := testOptions(t)
	o.ExportHighres = true
	require.NoError(t, os.MkdirAll(o.TargetDir, 0o755))
	var errs []error
	r := &renderer{ctx: context.Background(), opts: o, report: func(err error) { errs = append(errs, err) }}

	names := Names{Lowres: "r_l.jpg", Midres: "r_m.jpg", Highres: "r_h.jpg"}
	got, err := r.render(&collection.Picture{Location: srv.URL + "/remote.jpg"}, names)
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.False(t, got.Broken)
	assert.Equal(t, 100, got.LowresWidth)
	assert.Equal(t, []string{"r_h.jpg", "r_l.jpg", "r_m.jpg"}, got.Files)

	want, err := os.ReadFile(src)
	require.NoError(t, err)
	copied, err := os.ReadFile(filepath.Join(o.TargetDir, "r_h.jpg"))
	require.NoError(t, err)
	assert.Equal(t, want, copied)

	got, err = r.render(&collection.Picture{Location: srv.URL + "/missing.jpg"}, names)
	require.NoError(t, err)
	assert.True(t, got.Broken)
	assert.Len(t, errs, 1, "the failed highres copy is reported")
}

func TestOpenOriginalCancelled(t *testing.T) {
	stalled := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-stalled:
		}
	}))
	defer srv.Close()
	defer close(stalled)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := openOriginal(ctx, srv.URL+"/slow.jpg")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second)
}
