package extfilter

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ImageSource composes a filename for a 10-minute-snapped timestamp and
// fetches the raw bytes, caching on disk keyed by date + md5(url).
type ImageSource struct {
	URLPrefix  string
	MaxHistory int // maximum number of frames to try, the requested frame included
	HTTPClient *http.Client
	Cache      *diskCache
}

// NewImageSource wires an HTTP-backed source with a disk cache rooted at
// cacheDir.
func NewImageSource(urlPrefix, cacheDir string, maxHistory int) *ImageSource {
	return &ImageSource{
		URLPrefix:  urlPrefix,
		MaxHistory: maxHistory,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Cache:      newDiskCache(cacheDir),
	}
}

// snapDown rounds t down to the nearest 10-minute boundary.
func snapDown(t time.Time) time.Time {
	return t.Truncate(10 * time.Minute)
}

func (s *ImageSource) url(t time.Time) string {
	return fmt.Sprintf("%s%s.png", s.URLPrefix, t.UTC().Format("200601021504"))
}

// Fetch snaps t down to a 10-minute multiple and returns the raw image
// bytes for that frame, falling back to progressively older 10-minute
// frames up to MaxHistory attempts when the HTTP fetch fails. Each
// successful fetch is cached on disk; a cache hit short-circuits the
// network call entirely. allowHistory false forces a single attempt at
// the requested frame only, with no fallback to older frames.
func (s *ImageSource) Fetch(t time.Time, allowHistory bool) ([]byte, time.Time, error) {
	target := snapDown(t)

	var data []byte
	var used time.Time
	attempt := 0

	op := func() error {
		candidate := target.Add(-time.Duration(attempt) * 10 * time.Minute)
		date := candidate.UTC().Format("20060102")
		url := s.url(candidate)

		if cached, ok := s.Cache.get(date, url); ok {
			data, used = cached, candidate
			return nil
		}

		resp, err := s.HTTPClient.Get(url)
		if err != nil {
			attempt++
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			attempt++
			return fmt.Errorf("radar image fetch for %s returned status %d", url, resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			attempt++
			return err
		}
		if err := s.Cache.put(date, url, body); err != nil {
			return backoff.Permanent(err)
		}
		data, used = body, candidate
		return nil
	}

	maxTries := s.MaxHistory
	if !allowHistory {
		maxTries = 1
	}
	if maxTries < 1 {
		maxTries = 1
	}
	policy := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(maxTries-1))
	if err := backoff.Retry(op, policy); err != nil {
		return nil, time.Time{}, err
	}
	return data, used, nil
}
