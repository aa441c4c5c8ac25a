package distill

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/gift"
	"github.com/otiai10/copy"
	"k8s.io/klog/v2"

	"github.com/tstromberg/distiller/pkg/collection"
	"github.com/tstromberg/distiller/pkg/rendercache"
)

// Rendered describes the scaled pictures written for one original.
type Rendered struct {
	LowresWidth  int
	LowresHeight int
	MidresWidth  int
	MidresHeight int
	// Broken is set when the original could not be loaded and the placeholder was used.
	Broken bool
	// Files lists the names written, relative to the target directory.
	Files []string
}

// renderer writes the lowres, midres and highres files of pictures.
type renderer struct {
	ctx     context.Context
	opts    Options
	cache   *rendercache.Cache
	archive *Archive
	report  func(error)
}

// localPath returns the filesystem path of a location, or "" for remote URLs.
func localPath(location string) string {
	u, err := url.Parse(location)
	if err != nil || len(u.Scheme) <= 1 {
		return location
	}
	if u.Scheme == "file" {
		if u.Path != "" {
			return u.Path
		}
		return u.Opaque
	}
	return ""
}

// httpClient fetches remote originals.
var httpClient = &http.Client{Timeout: 2 * time.Minute}

// openOriginal opens the bytes of an original picture.
func openOriginal(ctx context.Context, location string) (io.ReadCloser, error) {
	if p := localPath(location); p != "" {
		return os.Open(p)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", location, resp.Status)
	}
	return resp.Body, nil
}

func (r *renderer) render(pic *collection.Picture, names Names) (Rendered, error) {
	out := Rendered{}
	dir := r.opts.TargetDir

	if r.archive != nil {
		r.addToArchive(pic, names.Highres)
	}

	var img image.Image
	load := func() image.Image {
		if img == nil {
			img, out.Broken = r.load(pic)
		}
		return img
	}

	if r.opts.ExportHighres {
		dst := filepath.Join(dir, names.Highres)
		if r.opts.RotateHighres && collection.NormalizeRotation(pic.Rotation) != 0 {
			klog.V(1).Infof("writing rotated highres %s", dst)
			if err := imgio.Save(dst, load(), imgio.JPEGEncoder(r.opts.MidresQuality)); err != nil {
				r.report(&ExportError{Op: "write highres", Path: dst, Err: err})
			} else {
				out.Files = append(out.Files, names.Highres)
			}
		} else if err := copyOriginal(r.ctx, pic.Location, dst); err != nil {
			r.report(&ExportError{Op: "copy highres", Path: dst, Err: err})
		} else {
			out.Files = append(out.Files, names.Highres)
		}
	}

	lw, lh, err := r.scaled(pic, load, names.Lowres, r.opts.ThumbnailWidth, r.opts.ThumbnailHeight, r.opts.LowresQuality)
	if err != nil {
		return out, err
	}
	out.LowresWidth, out.LowresHeight = lw, lh
	out.Files = append(out.Files, names.Lowres)

	mw, mh, err := r.scaled(pic, load, names.Midres, r.opts.MidresWidth, r.opts.MidresHeight, r.opts.MidresQuality)
	if err != nil {
		return out, err
	}
	out.MidresWidth, out.MidresHeight = mw, mh
	out.Files = append(out.Files, names.Midres)

	if out.Broken {
		brokenPictures.Inc()
	}
	picturesRendered.Inc()
	return out, nil
}

// scaled writes one scaled version of pic, reusing a cached one when the original is unchanged.
func (r *renderer) scaled(pic *collection.Picture, load func() image.Image, name string, maxW, maxH, quality int) (int, int, error) {
	path := filepath.Join(r.opts.TargetDir, name)
	key, cacheable := r.cacheKey(pic, path, maxW, maxH, quality)
	if cacheable {
		if e, ok := r.cache.Get(key); ok {
			if fi, err := os.Stat(path); err == nil && e.Matches(fi) {
				klog.V(1).Infof("%s is up to date (%dx%d)", path, e.Width, e.Height)
				cacheHits.Inc()
				return e.Width, e.Height, nil
			}
		}
	}

	src := load()
	w, h := fit(src.Bounds().Dx(), src.Bounds().Dy(), maxW, maxH)
	klog.V(1).Infof("creating %dx%d %s from %+v in %d steps", w, h, path, src.Bounds(), r.opts.ScalingSteps)
	dst := scale(src, w, h, r.opts.ScalingSteps)
	if err := imgio.Save(path, dst, imgio.JPEGEncoder(quality)); err != nil {
		return 0, 0, &ExportError{Op: "write scaled picture", Path: path, Err: err}
	}

	if cacheable {
		fi, err := os.Stat(path)
		if err == nil {
			err = r.cache.Put(key, rendercache.NewEntry(w, h, fi))
		}
		if err != nil {
			klog.Warningf("render cache write %s: %v", name, err)
		}
	}
	return w, h, nil
}

func (r *renderer) cacheKey(pic *collection.Picture, out string, maxW, maxH, quality int) (rendercache.Key, bool) {
	if r.cache == nil {
		return rendercache.Key{}, false
	}
	p := localPath(pic.Location)
	if p == "" {
		return rendercache.Key{}, false
	}
	st, err := os.Stat(p)
	if err != nil {
		return rendercache.Key{}, false
	}
	out, err = filepath.Abs(out)
	if err != nil {
		return rendercache.Key{}, false
	}
	return rendercache.Key{
		Source:   p,
		Size:     st.Size(),
		ModTime:  st.ModTime(),
		Rotation: collection.NormalizeRotation(pic.Rotation),
		Width:    maxW,
		Height:   maxH,
		Quality:  quality,
		Steps:    r.opts.ScalingSteps,
		Output:   out,
	}, true
}

// load decodes and rotates the original, substituting a placeholder when that fails.
func (r *renderer) load(pic *collection.Picture) (image.Image, bool) {
	klog.V(1).Infof("loading %s", pic.Location)
	img, err := decode(r.ctx, pic.Location)
	if err != nil {
		klog.Warningf("problem reading image %s, using placeholder: %v", pic.Location, err)
		return brokenPicture(), true
	}
	return rotate(img, pic.Rotation), false
}

func decode(ctx context.Context, location string) (image.Image, error) {
	if p := localPath(location); p != "" {
		return imgio.Open(p)
	}
	rc, err := openOriginal(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	img, _, err := image.Decode(rc)
	return img, err
}

func (r *renderer) addToArchive(pic *collection.Picture, name string) {
	rc, err := openOriginal(r.ctx, pic.Location)
	if err != nil {
		r.report(&ExportError{Op: "zip entry", Path: name, Err: err})
		return
	}
	defer rc.Close()
	if err := r.archive.Add(name, rc); err != nil {
		r.report(&ExportError{Op: "zip entry", Path: name, Err: err})
	}
}

// copyOriginal copies the bytes of an original to dst unchanged.
func copyOriginal(ctx context.Context, location string, dst string) error {
	klog.V(1).Infof("copying picture %s to %s", location, dst)
	if p := localPath(location); p != "" {
		return copy.Copy(p, dst)
	}
	rc, err := openOriginal(ctx, location)
	if err != nil {
		return err
	}
	defer rc.Close()
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// fit returns the largest size with the aspect ratio of w x h that fits into maxW x maxH.
func fit(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}
	factor := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := int(math.Round(float64(w) * factor))
	nh := int(math.Round(float64(h) * factor))
	return max(nw, 1), max(nh, 1)
}

// scale resizes img to w x h in steps passes with geometrically spaced intermediate
// sizes. More steps reduce aliasing on large reductions.
func scale(img image.Image, w, h, steps int) image.Image {
	steps = max(steps, 1)
	sw, sh := float64(img.Bounds().Dx()), float64(img.Bounds().Dy())
	cur := img
	for i := 1; i <= steps; i++ {
		iw, ih := w, h
		if i < steps {
			f := float64(i) / float64(steps)
			iw = int(math.Round(sw * math.Pow(float64(w)/sw, f)))
			ih = int(math.Round(sh * math.Pow(float64(h)/sh, f)))
		}
		cur = transform.Resize(cur, max(iw, 1), max(ih, 1), transform.Lanczos)
	}
	return cur
}

// rotate turns img clockwise by deg degrees.
func rotate(img image.Image, deg int) image.Image {
	var f gift.Filter
	switch d := collection.NormalizeRotation(deg); d {
	case 0:
		return img
	case 90:
		f = gift.Rotate270()
	case 180:
		f = gift.Rotate180()
	case 270:
		f = gift.Rotate90()
	default:
		f = gift.Rotate(float32(-d), color.Black, gift.CubicInterpolation)
	}
	g := gift.New(f)
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// brokenPicture is shown in place of originals that cannot be read.
func brokenPicture() image.Image {
	const w, h = 120, 90
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bg := color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}
	fg := color.RGBA{R: 0xc0, A: 0xff}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, bg)
		}
	}
	for x := 0; x < w; x++ {
		y := x * h / w
		for d := -1; d <= 1; d++ {
			img.Set(x, y+d, fg)
			img.Set(x, h-1-y+d, fg)
		}
	}
	return img
}
