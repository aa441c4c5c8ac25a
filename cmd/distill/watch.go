package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"

	"github.com/tstromberg/distiller/pkg/collection"
)

// debounce is how long the watcher waits for more changes before rebuilding.
const debounce = 750 * time.Millisecond

// watch rebuilds the website whenever the input changes, until ctx is cancelled.
func watch(ctx context.Context, b *builder, root *collection.Node) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()

	if err := watchDirs(w, b.cfg.Source.Dir, b.cfg.Source.XML, root); err != nil {
		return err
	}

	out, err := filepath.Abs(b.opts.TargetDir)
	if err != nil {
		return err
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ignored(event, out) {
				continue
			}
			klog.V(1).Infof("event: %s", event)
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			klog.Errorf("watch: %v", err)
		case <-timer.C:
			klog.Infof("input changed, rebuilding ...")
			r, closeSource, err := load(b.cfg.Source)
			if err != nil {
				klog.Errorf("load failed: %v", err)
				continue
			}
			if err := b.build(ctx, r); err != nil {
				klog.Errorf("rebuild: %v", err)
			}
			closeSource()
			if err := watchDirs(w, b.cfg.Source.Dir, b.cfg.Source.XML, r); err != nil {
				klog.Errorf("watch: %v", err)
			}
		}
	}
}

// ignored reports events that cannot change the website, including its own output.
func ignored(e fsnotify.Event, out string) bool {
	if !(e.Has(fsnotify.Write) || e.Has(fsnotify.Create) || e.Has(fsnotify.Rename) || e.Has(fsnotify.Remove)) {
		return true
	}
	p, err := filepath.Abs(e.Name)
	if err != nil {
		return false
	}
	if p == out || strings.HasPrefix(p, out+string(filepath.Separator)) {
		return true
	}
	return strings.HasPrefix(filepath.Base(p), ".")
}

// watchDirs adds every directory that holds a picture of root, plus the source itself.
func watchDirs(w *fsnotify.Watcher, dir string, xml string, root *collection.Node) error {
	dirs := []string{}
	if dir != "" {
		dirs = append(dirs, dir)
	}
	if xml != "" {
		dirs = append(dirs, filepath.Dir(xml))
	}
	collection.Walk(root, func(n *collection.Node) bool {
		if p := n.Picture(); p != nil && !strings.Contains(p.Location, "://") {
			dirs = append(dirs, filepath.Dir(p.Location))
		}
		return true
	})

	slices.Sort(dirs)
	dirs = slices.Compact(dirs)

	klog.Infof("watching %d dirs ...", len(dirs))
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}
	return nil
}
