package distill

import (
	"bytes"
	_ "embed"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"io"

	svg "github.com/ajstarks/svgo"
)

//go:embed assets/group.tmpl
var groupTmpl string

//go:embed assets/picture.tmpl
var pictureTmpl string

//go:embed assets/jpo.css
var styleText []byte

//go:embed assets/jpo.js
var scriptText []byte

//go:embed assets/jpo_map.js
var mapScriptText []byte

//go:embed assets/robots.txt
var robotsText []byte

// Static files written next to the pages.
const (
	StyleSheet = "jpo.css"
	Script     = "jpo.js"
	MapScript  = "jpo_map.js"
	Robots     = "robots.txt"
	FolderIcon = "jpo_folder_icon.gif"
	Marker     = "jpo_marker.svg"
)

// folderIcon draws the 32x27 icon used for group cells.
func folderIcon() ([]byte, error) {
	pal := color.Palette{
		color.Transparent,
		color.RGBA{R: 0xe8, G: 0xb0, B: 0x30, A: 0xff},
		color.RGBA{R: 0xa0, G: 0x70, B: 0x10, A: 0xff},
	}
	img := image.NewPaletted(image.Rect(0, 0, 32, 27), pal)
	for y := 0; y < 27; y++ {
		for x := 0; x < 32; x++ {
			switch {
			case y < 4 && x < 13:
				img.SetColorIndex(x, y, 1)
			case y >= 4:
				img.SetColorIndex(x, y, 1)
			}
			if (y == 4 || y == 26) || (y >= 4 && (x == 0 || x == 31)) {
				img.SetColorIndex(x, y, 2)
			}
		}
	}

	var b bytes.Buffer
	if err := gif.Encode(&b, img, nil); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return b.Bytes(), nil
}

// writeMarker draws the pin shown on the map of a detail page.
func writeMarker(w io.Writer) {
	canvas := svg.New(w)
	canvas.Start(24, 36)
	canvas.Path("M 12 0 C 5 0 0 5 0 12 C 0 21 12 36 12 36 C 12 36 24 21 24 12 C 24 5 19 0 12 0 Z", "fill:#c0392b;stroke:#7b241c")
	canvas.Circle(12, 12, 4, "fill:#ffffff")
	canvas.End()
}
