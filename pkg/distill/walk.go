package distill

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"k8s.io/klog/v2"

	"github.com/tstromberg/distiller/pkg/collection"
	"github.com/tstromberg/distiller/pkg/rendercache"
)

// Features that an export may disable for the rest of a run.
const (
	FeatureZip   = "zip"
	FeatureCache = "cache"
)

// Outcome summarizes an export run.
type Outcome struct {
	// Status is StatusDone or StatusInterrupted.
	Status      string
	Interrupted bool
	// Degraded maps features disabled during the run to the cause.
	Degraded map[string]error
	// Files lists every file written, relative to the target directory, in write order.
	Files []string

	Pages    int
	Pictures int
	Groups   int

	// Err combines every failure reported during the run.
	Err error
}

type exporter struct {
	ctx  context.Context
	opts Options
	sink Sink
	plan *plan
	r    *renderer
	out  *Outcome
	root *collection.Node

	done       int
	folderIcon bool
	zip        bool
}

// Export writes the website for root into opts.TargetDir. The returned error covers
// preconditions only; failures during the walk are reported to sink and collected in
// Outcome.Err. Cancelling ctx or interrupting the sink stops the walk at the next child.
func Export(ctx context.Context, root *collection.Node, opts Options, sink Sink) (*Outcome, error) {
	if root == nil || root.Group() == nil {
		return nil, errors.New("export root must be a group")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("options: %w", err)
	}
	if err := os.MkdirAll(opts.TargetDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	if sink == nil {
		sink = nopSink{}
	}

	start := time.Now()
	e := &exporter{
		ctx:  ctx,
		opts: opts,
		sink: sink,
		root: root,
		out:  &Outcome{Degraded: map[string]error{}},
	}
	e.r = &renderer{ctx: ctx, opts: opts, report: e.fail}

	klog.Infof("exporting %q (%d nodes) to %s ...", root.Group().Name, collection.Count(root), opts.TargetDir)
	e.writeAsset(StyleSheet, styleText)
	if opts.WriteRobotsTxt {
		e.writeAsset(Robots, robotsText)
	}

	if opts.CacheFile != "" {
		c, err := rendercache.Open(opts.CacheFile)
		if err != nil {
			klog.Warningf("render cache disabled: %v", err)
			e.out.Degraded[FeatureCache] = err
		} else {
			defer c.Close()
			e.r.cache = c
		}
	}

	if opts.GenerateZip {
		zipPath := filepath.Join(opts.TargetDir, opts.ZipName)
		a, err := OpenArchive(zipPath)
		if err != nil {
			err = &ExportError{Op: "open zip", Path: zipPath, Err: err}
			klog.Warningf("zip disabled: %v", err)
			e.out.Degraded[FeatureZip] = err
			e.fail(err)
		} else {
			e.r.archive = a
			e.zip = true
		}
	}

	e.plan = newPlan(root, opts)
	e.group(root)

	if e.r.archive != nil {
		if err := e.r.archive.Close(); err != nil {
			err = &ExportError{Op: "close zip", Path: opts.ZipName, Err: err}
			e.out.Degraded[FeatureZip] = err
			e.fail(err)
		} else {
			e.wrote(opts.ZipName)
		}
	}

	if e.folderIcon {
		icon, err := folderIcon()
		if err != nil {
			e.fail(&ExportError{Op: "draw folder icon", Path: FolderIcon, Err: err})
		} else {
			e.writeAsset(FolderIcon, icon)
		}
	}
	if opts.GenerateMidresHTML && opts.GenerateMouseover && e.out.Pictures > 0 {
		e.writeAsset(Script, scriptText)
	}
	if opts.GenerateMidresHTML && opts.GenerateMap {
		var b bytes.Buffer
		writeMarker(&b)
		e.writeAsset(Marker, b.Bytes())
		e.writeAsset(MapScript, mapScriptText)
	}

	e.out.Status = StatusDone
	if e.out.Interrupted {
		e.out.Status = StatusInterrupted
	}
	if f, ok := sink.(finisher); ok {
		f.Finish(e.out.Status)
	}
	exportsFinished.WithLabelValues(e.out.Status).Inc()
	exportDuration.Observe(time.Since(start).Seconds())
	klog.Infof("export %s: %d groups, %d pictures, %d files in %s", e.out.Status, e.out.Groups, e.out.Pictures, len(e.out.Files), time.Since(start).Round(time.Millisecond))
	return e.out, nil
}

func (e *exporter) fail(err error) {
	exportFailures.Inc()
	e.out.Err = multierr.Append(e.out.Err, err)
	e.sink.Failure(err)
}

func (e *exporter) wrote(name string) {
	e.out.Files = append(e.out.Files, name)
}

func (e *exporter) progress(msg string) {
	e.done++
	nodesProcessed.Inc()
	e.sink.Progress(e.done, msg)
}

// stopped reports whether no more children should be consumed.
func (e *exporter) stopped() bool {
	if e.out.Interrupted {
		return true
	}
	if e.sink.Interrupted() || e.ctx.Err() != nil {
		klog.Infof("export interrupted after %d nodes", e.done)
		e.out.Interrupted = true
	}
	return e.out.Interrupted
}

func (e *exporter) writeAsset(name string, data []byte) {
	path := filepath.Join(e.opts.TargetDir, name)
	klog.V(1).Infof("writing %s", path)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		e.fail(&ExportError{Op: "write asset", Path: path, Err: err})
		return
	}
	e.wrote(name)
}

// group writes the page of n, recursing into subgroups as they are reached.
func (e *exporter) group(n *collection.Node) {
	g := n.Group()
	e.progress(fmt.Sprintf("Processing Group: %s", g.Name))

	page := e.plan.of(n).Page
	path := filepath.Join(e.opts.TargetDir, page)
	klog.V(1).Infof("writing group page %s for %q with %d children", path, g.Name, len(n.Children))
	gp, err := createGroupPage(path, e.opts.Columns)
	if err != nil {
		e.fail(&ExportError{Op: "create page", Path: path, Err: err})
		return
	}
	e.out.Groups++

	h := groupHeader{
		Title:      g.Name,
		Columns:    e.opts.Columns,
		Spacing:    e.opts.CellSpacing,
		Width:      e.opts.Columns*e.opts.ThumbnailWidth + (e.opts.Columns-1)*e.opts.CellSpacing,
		Background: e.opts.BackgroundColor,
		Font:       e.opts.FontColor,
	}
	if n == e.root {
		if e.zip {
			h.Zip = e.opts.ZipName
		}
	} else if p := n.Parent(); p != nil {
		h.Up = e.plan.of(p).Page
		h.UpName = p.String()
	}
	gp.header(h)

	for i, c := range n.Children {
		if gp.err != nil || e.stopped() {
			break
		}
		switch pl := c.Payload.(type) {
		case *collection.Group:
			gp.groupCell(groupCell{Page: e.plan.of(c).Page, Icon: FolderIcon}, pl.Name)
			e.folderIcon = true
			e.group(c)
		case *collection.Picture:
			e.picture(gp, c, pl, i)
		default:
			e.fail(fmt.Errorf("node %s: unsupported payload %T", c.ID, c.Payload))
		}
	}

	if err := gp.close(); err != nil {
		e.fail(&ExportError{Op: "write page", Path: path, Err: err})
		return
	}
	e.out.Pages++
	e.wrote(page)
}

// picture renders one picture, adds its cell to gp and writes its detail page.
func (e *exporter) picture(gp *groupPage, n *collection.Node, pic *collection.Picture, index int) {
	e.progress(fmt.Sprintf("Processing picture: %s", pic.Location))
	names := e.plan.of(n)

	r, err := e.r.render(pic, names)
	for _, f := range r.Files {
		e.wrote(f)
	}
	if err != nil {
		e.fail(err)
		return
	}
	e.out.Pictures++

	link := names.Midres
	if e.opts.GenerateMidresHTML {
		link = names.Page
	}
	gp.pictureCell(pictureCell{
		ID:     names.Lowres,
		Link:   link,
		Src:    names.Lowres,
		Width:  r.LowresWidth,
		Height: r.LowresHeight,
		Alt:    pic.Description,
	}, pic.Description)

	if !e.opts.GenerateMidresHTML {
		return
	}
	path := filepath.Join(e.opts.TargetDir, names.Page)
	if err := writePicturePage(path, e.detail(n, pic, index, names, r)); err != nil {
		e.fail(&ExportError{Op: "write page", Path: path, Err: err})
		return
	}
	e.out.Pages++
	e.wrote(names.Page)
}

// detail builds the detail page of the picture at position index among its siblings.
func (e *exporter) detail(n *collection.Node, pic *collection.Picture, index int, names Names, r Rendered) picturePage {
	parent := n.Parent()
	siblings := parent.Children
	count := len(siblings)

	p := picturePage{
		Title:        parent.String(),
		Background:   e.opts.BackgroundColor,
		Font:         e.opts.FontColor,
		Midres:       names.Midres,
		Width:        r.MidresWidth,
		Height:       r.MidresHeight,
		Description:  pic.Description,
		Number:       index + 1,
		Count:        count,
		Up:           e.plan.of(parent).Page,
		UpAnchor:     names.Lowres,
		Footer:       footer,
		Mouseover:    e.opts.GenerateMouseover,
		SidebarWidth: sidebarWidth,
	}

	switch {
	case e.opts.LinkToHighres:
		p.HighresLink = pic.Location
	case e.opts.ExportHighres:
		p.HighresLink = names.Highres
	}
	p.Highres = p.HighresLink

	if e.opts.GenerateMap && pic.LatLng != nil {
		p.Map = true
		p.Lat, p.Lng = pic.LatLng.Lat, pic.LatLng.Lng
	}
	if index > 0 {
		p.Previous = e.plan.of(siblings[index-1]).Page
	}
	if index < count-1 {
		p.Next = e.plan.of(siblings[index+1]).Page
	}
	if e.zip {
		p.Zip = e.opts.ZipName
	}

	if p.Mouseover {
		p.Content = append(p.Content, scriptEntry{Index: 0, Text: currentContent(p.Number, count, pic.Description, [][2]string{
			{"Date", pic.CreationTime},
			{"Photographer", pic.Photographer},
			{"Comment", pic.Comment},
			{"Film Reference", pic.FilmReference},
			{"Copyright Holder", pic.CopyrightHolder},
		})})
	}

	m := e.opts.matrix()
	start, end := matrixWindow(index, count, m)
	cells := []matrixCell{}
	for i := start; i < end; i++ {
		if i >= count {
			cells = append(cells, matrixCell{Blank: true})
			continue
		}
		s := siblings[i]
		c := matrixCell{Label: i + 1, Link: e.plan.of(s).Page, Current: i == index}
		if sp := s.Picture(); sp != nil && p.Mouseover {
			c.Content = true
			p.Content = append(p.Content, scriptEntry{Index: c.Label, Text: siblingContent(c.Label, count, e.plan.of(s).Lowres, sp.Description)})
		}
		cells = append(cells, c)
	}
	p.Matrix = matrixRows(cells, m.PerRow)
	return p
}
