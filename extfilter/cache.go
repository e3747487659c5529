// Package extfilter implements C9: the external-wetness filter. It
// fetches a radar composite image for a snapped timestamp, caches it on
// disk, labels connected components of "wet" pixels, and reports
// whether a disk around a query point overlaps a sufficiently large
// component.
package extfilter

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// diskCache fetches and caches raw image bytes keyed by date + md5(url),
// the same content-addressed cache-file naming idea as a build cache.
type diskCache struct {
	dir string
}

func newDiskCache(dir string) *diskCache { return &diskCache{dir: dir} }

func (c *diskCache) path(date, url string) string {
	sum := md5.Sum([]byte(url))
	name := fmt.Sprintf("%s_%s.img", date, hex.EncodeToString(sum[:]))
	return filepath.Join(c.dir, name)
}

func (c *diskCache) get(date, url string) ([]byte, bool) {
	data, err := os.ReadFile(c.path(date, url))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *diskCache) put(date, url string, data []byte) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(c.path(date, url), data, 0644)
}
