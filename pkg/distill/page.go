package distill

import (
	"bufio"
	"bytes"
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/template"

	"k8s.io/klog/v2"
)

// footer closes every page.
const footer = "Made with distiller"

// sidebarWidth is the width of the detail page sidebar and its popup.
const sidebarWidth = 130

// tmplFunctions are functions available to our templates.
func tmplFunctions() template.FuncMap {
	return template.FuncMap{
		"esc":  EscapeHTML,
		"href": href,
	}
}

// href escapes a link target for an attribute value. Targets with a scheme are kept
// as they are; names and paths are percent-encoded so "#" or "?" stay part of them.
func href(s string) string {
	if u, err := url.Parse(s); err == nil && len(u.Scheme) > 1 {
		return EscapeHTML(s)
	}
	return EscapeHTML((&url.URL{Path: s}).String())
}

var (
	groupTemplates   = template.Must(template.New("group").Funcs(tmplFunctions()).Parse(groupTmpl))
	pictureTemplates = template.Must(template.New("picture").Funcs(tmplFunctions()).Parse(pictureTmpl))
)

type groupHeader struct {
	Title      string
	Columns    int
	Spacing    int
	Width      int
	Zip        string
	Up         string
	UpName     string
	Background string
	Font       string
}

type pictureCell struct {
	ID     string
	Link   string
	Src    string
	Width  int
	Height int
	Alt    string
}

type groupCell struct {
	Page string
	Icon string
}

// groupPage streams one group page. The first write error sticks: later writes are
// skipped and the error is returned by close.
type groupPage struct {
	path     string
	f        *os.File
	w        *bufio.Writer
	columns  int
	captions []string
	rowOpen  bool
	cells    int
	err      error
}

func createGroupPage(path string, columns int) (*groupPage, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &groupPage{path: path, f: f, w: bufio.NewWriter(f), columns: columns}, nil
}

func (g *groupPage) exec(name string, data any) {
	if g.err != nil {
		return
	}
	if err := groupTemplates.ExecuteTemplate(g.w, name, data); err != nil {
		g.err = fmt.Errorf("execute %s: %w", name, err)
	}
}

func (g *groupPage) header(h groupHeader) {
	g.exec("groupHeader", h)
}

func (g *groupPage) cell(name string, data any, caption string) {
	if !g.rowOpen {
		g.exec("rowStart", nil)
		g.rowOpen = true
	}
	g.exec(name, data)
	g.cells++
	g.captions = append(g.captions, caption)
	if len(g.captions) == g.columns {
		g.flushCaptions()
	}
}

func (g *groupPage) groupCell(c groupCell, caption string) {
	g.cell("groupCell", c, caption)
}

func (g *groupPage) pictureCell(c pictureCell, caption string) {
	g.cell("pictureCell", c, caption)
}

// flushCaptions ends the thumbnail row and writes the captions buffered for it.
func (g *groupPage) flushCaptions() {
	if !g.rowOpen {
		return
	}
	g.exec("captionRow", g.captions)
	g.captions = g.captions[:0]
	g.rowOpen = false
}

// close finishes the page markup and closes the file, even after an error.
func (g *groupPage) close() error {
	g.flushCaptions()
	g.exec("groupFooter", struct {
		Columns int
		Footer  string
	}{Columns: g.columns, Footer: footer})

	if g.err == nil {
		if err := g.w.Flush(); err != nil {
			g.err = fmt.Errorf("flush: %w", err)
		}
	}
	if err := g.f.Close(); err != nil && g.err == nil {
		g.err = fmt.Errorf("close: %w", err)
	}
	return g.err
}

type matrixCell struct {
	Label   int
	Link    string
	Current bool
	Blank   bool
	Content bool
}

type scriptEntry struct {
	Index int
	Text  string
}

type picturePage struct {
	Title       string
	Background  string
	Font        string
	Midres      string
	Width       int
	Height      int
	Description string
	HighresLink string

	Map bool
	Lat float64
	Lng float64

	Number int
	Count  int
	Matrix [][]matrixCell

	Up       string
	UpAnchor string
	Previous string
	Highres  string
	Next     string
	Zip      string
	Footer   string

	Mouseover    bool
	SidebarWidth int
	Content      []scriptEntry
}

// matrixWindow returns the half-open range of 0-based sibling positions shown in the
// index matrix of the picture at position child out of count siblings.
func matrixWindow(child, count int, m MatrixOpts) (int, int) {
	start := 0
	if child > m.Before {
		start = (child - m.Before) / m.PerRow * m.PerRow
	}
	end := start + m.Shown
	if end > count {
		end = (count + m.PerRow - 1) / m.PerRow * m.PerRow
	}
	return start, end
}

// matrixRows splits cells into rows of perRow, padding the last row with blanks.
func matrixRows(cells []matrixCell, perRow int) [][]matrixCell {
	for len(cells)%perRow != 0 {
		cells = append(cells, matrixCell{Blank: true})
	}
	rows := [][]matrixCell{}
	for i := 0; i < len(cells); i += perRow {
		rows = append(rows, cells[i:i+perRow])
	}
	return rows
}

// currentContent is the popup text shown while no matrix cell is hovered.
func currentContent(number, count int, desc string, fields [][2]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<p><strong>Picture</strong> %d of %d:</p><p><b>Description:</b><br>%s</p>", number, count, ScriptString(desc))
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		fmt.Fprintf(&sb, "<p><b>%s:</b><br>%s</p>", f[0], ScriptString(f[1]))
	}
	return sb.String()
}

// siblingContent is the popup text for one picture in the matrix.
func siblingContent(label, count int, lowres string, desc string) string {
	return fmt.Sprintf(`<p>Picture %d/%d:</p><p><img src="%s" width=%d alt="Thumbnail"></p><p><i>%s</i></p>`,
		label, count, (&url.URL{Path: lowres}).String(), sidebarWidth-10, ScriptString(desc))
}

func writePicturePage(path string, p picturePage) error {
	var b bytes.Buffer
	if err := pictureTemplates.Execute(&b, p); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	klog.V(1).Infof("writing detail page %s", path)
	return os.WriteFile(path, b.Bytes(), 0o644)
}
