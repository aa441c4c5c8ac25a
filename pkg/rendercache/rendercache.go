// Package rendercache remembers which scaled pictures were already written, so an
// unchanged collection can be re-exported without decoding every original again.
package rendercache

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
	"k8s.io/klog/v2"
)

var bucket = []byte("renders")

// Key identifies one scaled output of one original.
type Key struct {
	Source   string
	Size     int64
	ModTime  time.Time
	Rotation int
	Width    int
	Height   int
	Quality  int
	Steps    int
	// Output is the absolute path of the scaled file.
	Output string
}

func (k Key) bytes() []byte {
	return []byte(fmt.Sprintf("%s|%d|%d|%d|%dx%d|q%d|s%d|%s",
		k.Source, k.Size, k.ModTime.UnixNano(), k.Rotation, k.Width, k.Height, k.Quality, k.Steps, k.Output))
}

// Entry is what is remembered about a scaled output.
type Entry struct {
	Width  int `json:"w"`
	Height int `json:"h"`
	// Size and ModTime describe the output file as it was written.
	Size    int64 `json:"s"`
	ModTime int64 `json:"t"`
}

// NewEntry describes an output file that was just written.
func NewEntry(width, height int, fi os.FileInfo) Entry {
	return Entry{Width: width, Height: height, Size: fi.Size(), ModTime: fi.ModTime().UnixNano()}
}

// Matches reports whether fi is still the file the entry was stored for.
func (e Entry) Matches(fi os.FileInfo) bool {
	return e.Size == fi.Size() && e.ModTime == fi.ModTime().UnixNano()
}

// Cache is a bbolt backed render cache.
type Cache struct {
	db *bolt.DB
}

// Open opens or creates the cache file at path.
func Open(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the cache file.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the entry stored for k.
func (c *Cache) Get(k Key) (Entry, bool) {
	var e Entry
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get(k.bytes())
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &e); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		klog.Warningf("render cache read %s: %v", k.Output, err)
		return Entry{}, false
	}
	return e, found
}

// Put stores e for k.
func (c *Cache) Put(k Key, e Entry) error {
	v, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(k.bytes(), v)
	})
}
