package distill

import (
	"archive/zip"
	"bufio"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

// Archive is the zip of original pictures offered for download.
type Archive struct {
	path    string
	f       *os.File
	buf     *bufio.Writer
	zw      *zip.Writer
	entries int
	closed  bool
}

// OpenArchive creates the zip file at path.
func OpenArchive(path string) (*Archive, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	buf := bufio.NewWriter(f)
	return &Archive{path: path, f: f, buf: buf, zw: zip.NewWriter(buf)}, nil
}

// Add writes one entry. The original is spooled to a temporary file first, so a
// reader that fails leaves no entry behind.
func (a *Archive) Add(name string, r io.Reader) error {
	klog.V(1).Infof("adding %s to %s", name, a.path)
	tmp, err := os.CreateTemp("", "distill-zip-*")
	if err != nil {
		return fmt.Errorf("spool: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	crc := crc32.NewIEEE()
	size, err := io.Copy(io.MultiWriter(tmp, crc), r)
	if err != nil {
		return fmt.Errorf("read entry: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind: %w", err)
	}

	fh := &zip.FileHeader{
		Name:               name,
		Method:             zip.Store,
		CRC32:              crc.Sum32(),
		CompressedSize64:   uint64(size),
		UncompressedSize64: uint64(size),
	}
	w, err := a.zw.CreateRaw(fh)
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	if _, err := io.Copy(w, tmp); err != nil {
		return fmt.Errorf("copy entry: %w", err)
	}
	a.entries++
	return nil
}

// Close finishes the zip. It is safe to call more than once.
func (a *Archive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	if err := a.zw.Close(); err != nil {
		a.f.Close()
		return fmt.Errorf("close zip: %w", err)
	}
	if err := a.buf.Flush(); err != nil {
		a.f.Close()
		return fmt.Errorf("flush: %w", err)
	}
	st, err := a.f.Stat()
	if err == nil {
		klog.Infof("wrote %s: %d entries, %s", a.path, a.entries, humanize.Bytes(uint64(st.Size())))
	}
	return a.f.Close()
}
