// Package distill exports a collection tree as a static, interlinked HTML website.
package distill

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Naming selects how picture output files are named.
type Naming int

const (
	// HashCode names files after a hash of the node ID.
	HashCode Naming = iota
	// SequentialNumber numbers pictures in write order.
	SequentialNumber
	// OriginalName reuses the cleaned-up original filename.
	OriginalName
)

// Normalize maps out-of-range values onto HashCode.
func (n Naming) Normalize() Naming {
	switch n {
	case HashCode, SequentialNumber, OriginalName:
		return n
	default:
		return HashCode
	}
}

func (n Naming) String() string {
	switch n.Normalize() {
	case SequentialNumber:
		return "sequential"
	case OriginalName:
		return "original"
	default:
		return "hash"
	}
}

// ParseNaming accepts the names produced by Naming.String.
func ParseNaming(s string) (Naming, error) {
	switch s {
	case "hash", "":
		return HashCode, nil
	case "sequential":
		return SequentialNumber, nil
	case "original":
		return OriginalName, nil
	}
	return HashCode, fmt.Errorf("unknown naming %q", s)
}

// MatrixOpts shapes the index of sibling pictures on a detail page.
type MatrixOpts struct {
	Before int
	Shown  int
	PerRow int
}

// Options configure one export run. They are not modified by Export.
type Options struct {
	TargetDir string

	ThumbnailWidth  int
	ThumbnailHeight int
	LowresQuality   int

	MidresWidth   int
	MidresHeight  int
	MidresQuality int

	ScalingSteps int
	Columns      int
	CellSpacing  int

	Naming          Naming
	SequentialStart int

	GenerateMidresHTML bool
	GenerateMap        bool
	GenerateMouseover  bool
	GenerateZip        bool
	ZipName            string
	ExportHighres      bool
	RotateHighres      bool
	LinkToHighres      bool
	WriteRobotsTxt     bool

	BackgroundColor string
	FontColor       string

	Matrix MatrixOpts

	// CacheFile enables the render cache when set.
	CacheFile string
}

// DefaultOptions returns the settings a fresh install starts with.
func DefaultOptions() Options {
	return Options{
		ThumbnailWidth:     350,
		ThumbnailHeight:    300,
		LowresQuality:      80,
		MidresWidth:        700,
		MidresHeight:       700,
		MidresQuality:      80,
		ScalingSteps:       1,
		Columns:            3,
		CellSpacing:        10,
		Naming:             HashCode,
		SequentialStart:    1,
		GenerateMidresHTML: true,
		ZipName:            "download.zip",
		BackgroundColor:    "#222222",
		FontColor:          "#ffffff",
		Matrix:             MatrixOpts{Before: 15, Shown: 35, PerRow: 5},
	}
}

// Validate checks the options for values the exporter cannot work with.
func (o Options) Validate() error {
	var errs []error
	if o.TargetDir == "" {
		errs = append(errs, errors.New("target directory is required"))
	}
	if o.ThumbnailWidth <= 0 || o.ThumbnailHeight <= 0 {
		errs = append(errs, fmt.Errorf("thumbnail dimension %dx%d must be positive", o.ThumbnailWidth, o.ThumbnailHeight))
	}
	if o.MidresWidth <= 0 || o.MidresHeight <= 0 {
		errs = append(errs, fmt.Errorf("midres dimension %dx%d must be positive", o.MidresWidth, o.MidresHeight))
	}
	if o.LowresQuality < 0 || o.LowresQuality > 100 {
		errs = append(errs, fmt.Errorf("lowres quality %d out of range", o.LowresQuality))
	}
	if o.MidresQuality < 0 || o.MidresQuality > 100 {
		errs = append(errs, fmt.Errorf("midres quality %d out of range", o.MidresQuality))
	}
	if o.ScalingSteps < 1 {
		errs = append(errs, fmt.Errorf("scaling steps %d must be at least 1", o.ScalingSteps))
	}
	if o.Columns < 1 {
		errs = append(errs, fmt.Errorf("columns %d must be at least 1", o.Columns))
	}
	if o.GenerateZip && o.ZipName == "" {
		errs = append(errs, errors.New("zip name is required when generating a zip"))
	}
	return multierr.Combine(errs...)
}

func (o Options) matrix() MatrixOpts {
	m := o.Matrix
	if m.PerRow < 1 {
		m.PerRow = 5
	}
	if m.Shown < 1 {
		m.Shown = 35
	}
	if m.Before < 0 {
		m.Before = 15
	}
	return m
}
