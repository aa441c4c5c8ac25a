// distill exports a picture collection as a static HTML website.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/tstromberg/distiller/pkg/collection"
	"github.com/tstromberg/distiller/pkg/config"
	"github.com/tstromberg/distiller/pkg/distill"
	"github.com/tstromberg/distiller/pkg/preview"
	"github.com/tstromberg/distiller/pkg/upload"
)

var (
	configPath = flag.String("config", "", "path to a YAML config file")
	inDir      = flag.String("in", "", "Location of input directory")
	xmlPath    = flag.String("xml", "", "Location of a collection XML file (instead of --in)")
	outDir     = flag.String("out", "", "Location of output directory")
	title      = flag.String("title", "", "Title of the top group when scanning a directory")
	exiftool   = flag.Bool("exiftool", false, "read metadata with exiftool instead of the built-in EXIF reader")
	naming     = flag.String("naming", "", "file naming: sequential, original or hash")
	zipFlag    = flag.Bool("zip", false, "write a zip of all originals")
	mapFlag    = flag.Bool("map", false, "show a map on detail pages of pictures with a position")
	mouseover  = flag.Bool("mouseover", false, "show picture details when hovering the index matrix")
	highres    = flag.Bool("highres", false, "copy the originals into the website")
	cacheFile  = flag.String("cache", "", "path of the render cache; unchanged pictures are not scaled again")
	flatFile   = flag.String("flatfile", "", "write the location of every picture to this file, one per line")
	progress   = flag.Bool("progress", true, "show a progress bar")
	listen     = flag.Bool("listen", false, "serve content via HTTP")
	addr       = flag.String("addr", "", "host:port to bind to in listen mode")
	watchFlag  = flag.Bool("watch", false, "watch for changes to the input and rebuild")
	uploadFlag = flag.Bool("upload", false, "copy the website to the configured SSH host after each export")
)

// current is the tracker of the running export, if any.
var current atomic.Pointer[distill.Tracker]

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		klog.Exitf("config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		klog.Exitf("config: %v", err)
	}
	if *uploadFlag && cfg.Upload.Host == "" {
		klog.Exitf("--upload needs upload.host in the config")
	}

	opts, err := cfg.Export.Options()
	if err != nil {
		klog.Exitf("export options: %v", err)
	}
	if opts.TargetDir == "" && *flatFile == "" {
		klog.Exitf("--out is a required flag")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handleSignals(cancel)

	root, closeSource, err := load(cfg.Source)
	if err != nil {
		klog.Exitf("load failed: %v", err)
	}
	defer closeSource()

	if *flatFile != "" {
		if err := writeFlatFile(*flatFile, root); err != nil {
			klog.Exitf("flat file: %v", err)
		}
		if opts.TargetDir == "" {
			return
		}
	}

	srv := preview.New(opts.TargetDir)
	b := &builder{cfg: cfg, opts: opts, srv: srv, bar: *progress}
	failed := b.build(ctx, root) != nil

	g, gctx := errgroup.WithContext(ctx)
	if *watchFlag {
		g.Go(func() error {
			return watch(gctx, b, root)
		})
	}
	if *listen {
		g.Go(func() error {
			return srv.ListenAndServe(gctx, cfg.Preview.Addr)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		klog.Exitf("%v", err)
	}
	if failed {
		os.Exit(1)
	}
}

// applyFlags copies the flags given on the command line over the configuration.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "in":
			cfg.Source.Dir = *inDir
			cfg.Source.XML = ""
		case "xml":
			cfg.Source.XML = *xmlPath
			cfg.Source.Dir = ""
		case "out":
			cfg.Export.TargetDir = *outDir
		case "title":
			cfg.Source.Title = *title
		case "exiftool":
			cfg.Source.Exiftool = *exiftool
		case "naming":
			cfg.Export.Naming = *naming
		case "zip":
			cfg.Export.Zip = *zipFlag
		case "map":
			cfg.Export.Map = *mapFlag
		case "mouseover":
			cfg.Export.Mouseover = *mouseover
		case "highres":
			cfg.Export.Highres = *highres
		case "cache":
			cfg.Export.CacheFile = *cacheFile
		case "addr":
			cfg.Preview.Addr = *addr
		}
	})
}

// handleSignals interrupts the running export on SIGINT or SIGTERM and cancels ctx,
// which also stops watching and serving.
func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-sigs
		klog.Infof("%s received, stopping ...", s)
		if t := current.Load(); t != nil {
			t.Interrupt()
		}
		cancel()
		<-sigs
		klog.Exitf("second signal, exiting")
	}()
}

// load builds the collection tree from the configured source.
func load(s config.SourceConfig) (*collection.Node, func(), error) {
	nop := func() {}
	if s.XML != "" {
		root, err := collection.LoadXML(s.XML)
		return root, nop, err
	}
	if s.Dir == "" {
		return nil, nop, errors.New("--in or --xml is required")
	}

	so := collection.ScanOptions{Title: s.Title}
	closer := nop
	if s.Exiftool {
		r, err := collection.NewExiftoolReader()
		if err != nil {
			return nil, nop, err
		}
		so.Metadata = r
		closer = func() {
			if err := r.Close(); err != nil {
				klog.Errorf("Failed to close exiftool: %v", err)
			}
		}
	}
	root, err := collection.Scan(s.Dir, so)
	if err != nil {
		closer()
		return nil, nop, err
	}
	return root, closer, nil
}

func writeFlatFile(path string, root *collection.Node) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := distill.WriteFlatFile(f, root); err != nil {
		f.Close()
		return err
	}
	klog.Infof("wrote %d picture locations to %s", collection.CountPictures(root), path)
	return f.Close()
}

// builder runs one export, and the upload that follows it.
type builder struct {
	cfg  *config.Config
	opts distill.Options
	srv  *preview.Server
	bar  bool
}

func (b *builder) build(ctx context.Context, root *collection.Node) error {
	out, err := b.export(ctx, root)
	if err != nil {
		klog.Errorf("export failed: %v", err)
		return err
	}
	summarize(b.opts.TargetDir, out)

	if *uploadFlag && !out.Interrupted {
		if err := upload.Files(ctx, b.cfg.Upload.Target(), b.opts.TargetDir, out.Files); err != nil {
			klog.Errorf("upload failed: %v", err)
			return err
		}
	}
	return out.Err
}

// export runs the walk in a goroutine while this one draws the progress bar.
func (b *builder) export(ctx context.Context, root *collection.Node) (*distill.Outcome, error) {
	t := distill.NewTracker(collection.Count(root))
	current.Store(t)
	defer current.CompareAndSwap(t, nil)
	b.srv.Track(t)

	var (
		out *distill.Outcome
		err error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		out, err = distill.Export(ctx, root, b.opts, t)
		if err != nil {
			t.Finish(distill.StatusInterrupted)
		}
	}()

	var bar *pb.ProgressBar
	if b.bar {
		bar = pb.ProgressBarTemplate(`{{counters . }} {{bar . }} {{percent . }} {{string . "msg"}}`).Start(t.Total())
	}
	for u := range t.Updates() {
		if bar != nil {
			bar.SetCurrent(int64(u.Done))
			bar.Set("msg", u.Msg)
		}
	}
	<-done
	if bar != nil {
		bar.SetCurrent(int64(t.Done()))
		bar.Set("msg", t.Status())
		bar.Finish()
	}
	return out, err
}

// summarize logs what an export wrote.
func summarize(dir string, out *distill.Outcome) {
	var size uint64
	for _, f := range out.Files {
		if st, err := os.Stat(filepath.Join(dir, f)); err == nil {
			size += uint64(st.Size())
		}
	}
	klog.Infof("%s: %d pages, %d pictures in %d groups, %d files (%s)",
		out.Status, out.Pages, out.Pictures, out.Groups, len(out.Files), humanize.Bytes(size))
	for feature, err := range out.Degraded {
		klog.Warningf("%s was disabled: %v", feature, err)
	}
	if errs := multierr.Errors(out.Err); len(errs) > 0 {
		klog.Errorf("%d %s failed, first: %v", len(errs), plural(len(errs), "operation"), errs[0])
	}
}

func plural(n int, s string) string {
	if n == 1 {
		return s
	}
	return fmt.Sprintf("%ss", s)
}
