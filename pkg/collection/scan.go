package collection

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/karrick/godirwalk"
	"k8s.io/klog/v2"
)

// ScanOptions control how a directory becomes a collection tree.
type ScanOptions struct {
	// Title names the root group. Defaults to the directory name.
	Title string
	// Metadata reads EXIF fields. Defaults to ExifReader.
	Metadata MetadataReader
}

// Scan builds a tree from a directory: every directory becomes a group and every
// image file a picture, in lexical order. Hidden entries are skipped.
func Scan(root string, opts ScanOptions) (*Node, error) {
	root = filepath.Clean(root)
	if opts.Metadata == nil {
		opts.Metadata = ExifReader{}
	}
	title := opts.Title
	if title == "" {
		title = filepath.Base(root)
	}

	top := NewGroup(NewID("."), title)
	groups := map[string]*Node{root: top}
	found := 0

	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == root {
				return nil
			}
			if strings.HasPrefix(filepath.Base(path), ".") {
				if de.IsDir() {
					return godirwalk.SkipThis
				}
				return nil
			}

			parent := groups[filepath.Dir(path)]
			if parent == nil {
				return godirwalk.SkipThis
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}

			if de.IsDir() {
				g := NewGroup(NewID(rel), filepath.Base(path))
				groups[path] = g
				return parent.Add(g)
			}

			ok, err := isImage(path)
			if err != nil {
				klog.Warningf("unable to sniff %s: %v", path, err)
				return nil
			}
			if !ok {
				klog.V(1).Infof("skipping non-image %s", path)
				return nil
			}

			p, err := readPicture(path, opts.Metadata)
			if err != nil {
				return err
			}
			found++
			return parent.Add(NewPicture(NewID(rel), p))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}

	klog.Infof("scanned %s: %d pictures in %d groups", root, found, len(groups))
	return top, nil
}

func readPicture(path string, mr MetadataReader) (*Picture, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	p := &Picture{Location: path, ModTime: fi.ModTime()}
	if err := mr.Read(path, p); err != nil {
		klog.V(1).Infof("no metadata for %s: %v", path, err)
	}

	sc, err := ReadSidecar(path)
	if err != nil {
		klog.Warningf("ignoring sidecar of %s: %v", path, err)
	}
	if sc != nil {
		sc.Apply(p)
	}
	return p, nil
}

func isImage(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	header := make([]byte, 261)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return false, err
	}
	return filetype.IsImage(header[:n]), nil
}
