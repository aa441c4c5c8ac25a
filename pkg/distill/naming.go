package distill

import (
	"encoding/binary"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/reusee/mmh3"

	"github.com/tstromberg/distiller/pkg/collection"
)

// IndexPage is the filename of the page for the exported root group.
const IndexPage = "index.htm"

// filenameReplacer holds the denylist in the order it is applied. "%" comes last
// because percent-encoded sequences such as %20 are handled first.
var filenameReplacer = []struct{ old, new string }{
	{" ", "_"},
	{"%20", "_"},
	{"&", "_and_"},
	{"|", "l"},
	{"<", "_"},
	{">", "_"},
	{"@", "_"},
	{":", "_"},
	{"$", "_"},
	{"£", "_"},
	{"^", "_"},
	{"~", "_"},
	{"\"", "_"},
	{"'", "_"},
	{"`", "_"},
	{"?", "_"},
	{"[", "_"},
	{"]", "_"},
	{"{", "_"},
	{"}", "_"},
	{"(", "_"},
	{")", "_"},
	{"*", "_"},
	{"+", "_"},
	{"/", "_"},
	{"\\", "_"},
	{"#", "_"},
	{"%", "_"},
}

// CleanupFilename replaces characters that are awkward in URLs and filenames.
func CleanupFilename(s string) string {
	for _, r := range filenameReplacer {
		s = strings.ReplaceAll(s, r.old, r.new)
	}
	return s
}

// Token returns the stable decimal token used in jpo_<token> filenames.
func Token(id string) string {
	h := mmh3.New32()
	h.Write([]byte(id))
	return strconv.FormatUint(uint64(binary.BigEndian.Uint32(h.Sum(nil))), 10)
}

// SequentialRoot formats the root name of the n-th picture.
func SequentialRoot(n int) string {
	return fmt.Sprintf("jpo_%05d", n)
}

// baseName returns the last path element of a local path or URL.
func baseName(location string) string {
	if u, err := url.Parse(location); err == nil && len(u.Scheme) > 1 {
		if u.Path != "" {
			return path.Base(u.Path)
		}
		return path.Base(u.Opaque)
	}
	return filepath.Base(location)
}

func splitExt(location string) (root string, ext string) {
	base := baseName(location)
	ext = filepath.Ext(base)
	root = strings.TrimSuffix(base, ext)
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "jpg"
	}
	return root, ext
}

// Names are the output filenames of one node, relative to the target directory.
type Names struct {
	// Page is the HTML page of a group, or the detail page of a picture.
	Page string

	Lowres  string
	Midres  string
	Highres string
}

// plan resolves the filenames of every node before anything is written, so links
// to siblings and neighbours are known up front.
type plan struct {
	names map[*collection.Node]Names
}

// newPlan assigns names in write order: depth-first, children in order. Picture roots
// that collide with an earlier root, ignoring case, get a _2, _3, ... suffix.
func newPlan(root *collection.Node, o Options) *plan {
	p := &plan{names: map[*collection.Node]Names{}}
	seq := o.SequentialStart
	naming := o.Naming.Normalize()

	used := map[string]bool{}
	collection.Walk(root, func(n *collection.Node) bool {
		if n.Group() == nil {
			return false
		}
		page := "jpo_" + Token(n.ID) + ".htm"
		if n == root {
			page = IndexPage
		}
		p.names[n] = Names{Page: page}
		used[strings.ToLower(strings.TrimSuffix(page, ".htm"))] = true
		return true
	})
	unique := func(r string) string {
		c := r
		for i := 2; used[strings.ToLower(c)]; i++ {
			c = fmt.Sprintf("%s_%d", r, i)
		}
		used[strings.ToLower(c)] = true
		return c
	}

	collection.Walk(root, func(n *collection.Node) bool {
		pl := n.Picture()
		if pl == nil {
			return true
		}
		orig, ext := splitExt(pl.Location)
		var r string
		switch naming {
		case OriginalName:
			r = CleanupFilename(orig)
		case SequentialNumber:
			r = SequentialRoot(seq)
			seq++
		default:
			r = "jpo_" + Token(n.ID)
		}
		r = unique(r)
		p.names[n] = Names{
			Page:    r + ".htm",
			Lowres:  r + "_l." + ext,
			Midres:  r + "_m." + ext,
			Highres: r + "_h." + ext,
		}
		return true
	})
	return p
}

func (p *plan) of(n *collection.Node) Names {
	return p.names[n]
}

// PlanNames returns the filenames Export would use for every node under root.
func PlanNames(root *collection.Node, o Options) map[*collection.Node]Names {
	return newPlan(root, o).names
}
