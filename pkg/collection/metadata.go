package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"k8s.io/klog/v2"
)

var exifDate = "2006:01:02 15:04:05"

// CreationTimeFormat is how EXIF timestamps are rendered into Picture.CreationTime.
var CreationTimeFormat = "2006-01-02 15:04:05"

// MetadataReader fills in the EXIF-derived fields of a picture.
type MetadataReader interface {
	Read(path string, p *Picture) error
}

// ExifReader reads metadata with the pure Go goexif decoder.
type ExifReader struct{}

// Read implements MetadataReader.
func (ExifReader) Read(path string, p *Picture) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return fmt.Errorf("decode exif: %w", err)
	}

	if t, err := x.DateTime(); err == nil {
		p.CreationTime = t.Format(CreationTimeFormat)
	}
	p.Photographer = exifString(x, exif.Artist)
	p.CopyrightHolder = exifString(x, exif.Copyright)
	if p.Description == "" {
		p.Description = exifString(x, exif.ImageDescription)
	}
	if tag, err := x.Get(exif.UserComment); err == nil {
		p.Comment = userComment(tag)
	}
	if lat, lng, err := x.LatLong(); err == nil {
		p.LatLng = &LatLng{Lat: lat, Lng: lng}
	}
	if tag, err := x.Get(exif.Orientation); err == nil {
		if o, err := tag.Int(0); err == nil {
			p.Rotation = orientationDegrees(o)
		}
	}
	return nil
}

func exifString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		klog.V(2).Infof("%s is not a string: %v", name, err)
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

// userComment strips the 8 byte character code prefix of an EXIF UserComment.
func userComment(tag *tiff.Tag) string {
	if len(tag.Val) <= 8 {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(string(tag.Val[8:]), "\x00 "))
}

// orientationDegrees maps an EXIF orientation onto a clockwise rotation.
func orientationDegrees(o int) int {
	switch o {
	case 3, 4:
		return 180
	case 5, 6:
		return 90
	case 7, 8:
		return 270
	default:
		return 0
	}
}

// ExiftoolReader reads metadata through an exiftool process.
type ExiftoolReader struct {
	et *exiftool.Exiftool
}

// NewExiftoolReader starts exiftool. Callers must Close it.
func NewExiftoolReader() (*ExiftoolReader, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("exiftool: %w", err)
	}
	return &ExiftoolReader{et: et}, nil
}

// Close stops the exiftool process.
func (r *ExiftoolReader) Close() error {
	return r.et.Close()
}

// Read implements MetadataReader.
func (r *ExiftoolReader) Read(path string, p *Picture) error {
	fis := r.et.ExtractMetadata(path)
	if len(fis) == 0 {
		return fmt.Errorf("no metadata for %q", path)
	}
	fi := fis[0]
	if fi.Err != nil {
		return fmt.Errorf("extract fail for %q: %w", path, fi.Err)
	}

	for k, v := range fi.Fields {
		klog.V(2).Infof("%q=%v", k, v)
	}

	if s, err := fi.GetString("Artist"); err == nil {
		p.Photographer = s
	}
	if s, err := fi.GetString("Copyright"); err == nil {
		p.CopyrightHolder = s
	}
	if s, err := fi.GetString("UserComment"); err == nil {
		p.Comment = s
	}
	if p.Description == "" {
		if s, err := fi.GetString("ImageDescription"); err == nil {
			p.Description = s
		}
	}
	if ks, err := fi.GetStrings("Keywords"); err == nil {
		p.Keywords = ks
	}

	ds, err := fi.GetString("DateTimeOriginal")
	if err != nil {
		klog.V(1).Infof("unable to get date time for %s: %v", path, err)
		return nil
	}
	t, err := time.Parse(exifDate, ds)
	if err != nil {
		return fmt.Errorf("parse time %q: %w", ds, err)
	}
	p.CreationTime = t.Format(CreationTimeFormat)
	return nil
}

// Sidecar is a JSON file next to an image that overrides its metadata.
// The title/description/tags fields are compatible with Google Takeout.
type Sidecar struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	Photographer    string `json:"photographer,omitempty"`
	CopyrightHolder string `json:"copyright,omitempty"`
	Comment         string `json:"comment,omitempty"`
	FilmReference   string `json:"filmReference,omitempty"`
	Rotation        *int   `json:"rotation,omitempty"`
}

// SidecarPath returns where the sidecar for an image lives.
func SidecarPath(imagePath string) string {
	return imagePath + ".json"
}

// ReadSidecar loads the sidecar of an image. A missing sidecar returns nil, nil.
func ReadSidecar(imagePath string) (*Sidecar, error) {
	bs, err := os.ReadFile(SidecarPath(imagePath))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sidecar: %w", err)
	}
	s := &Sidecar{}
	if err := json.Unmarshal(bs, s); err != nil {
		return nil, fmt.Errorf("parse sidecar: %w", err)
	}
	return s, nil
}

// WriteSidecar stores s next to the image.
func WriteSidecar(imagePath string, s *Sidecar) error {
	bs, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return os.WriteFile(SidecarPath(imagePath), bs, 0o644)
}

// Apply copies the non-empty sidecar fields onto p.
func (s *Sidecar) Apply(p *Picture) {
	switch {
	case s.Description != "":
		p.Description = s.Description
	case s.Title != "":
		p.Description = s.Title
	}
	if len(s.Tags) > 0 {
		p.Keywords = s.Tags
	}
	if s.Photographer != "" {
		p.Photographer = s.Photographer
	}
	if s.CopyrightHolder != "" {
		p.CopyrightHolder = s.CopyrightHolder
	}
	if s.Comment != "" {
		p.Comment = s.Comment
	}
	if s.FilmReference != "" {
		p.FilmReference = s.FilmReference
	}
	if s.Rotation != nil {
		p.Rotation = NormalizeRotation(*s.Rotation)
	}
}
