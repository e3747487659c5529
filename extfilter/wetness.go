package extfilter

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/png"
	"math"
	"time"

	"github.com/hashicorp/golang-lru/v2"

	"github.com/telcorain/cmlrain/errkind"
)

// ImageBounds is the geographic extent the radar composite's pixel grid
// covers, used to project (lon, lat) to pixel coordinates with Y
// inverted (image row 0 is the northernmost row).
type ImageBounds struct {
	XMin, XMax, YMin, YMax float64
}

func (b ImageBounds) kmPerPixelDiagonal(widthPx, heightPx int) float64 {
	dx := (b.XMax - b.XMin) / float64(widthPx)
	dy := (b.YMax - b.YMin) / float64(heightPx)
	return math.Hypot(dx, dy) * 111.32 // degrees to km, approximate
}

func (b ImageBounds) project(lon, lat float64, widthPx, heightPx int) (x, y float64) {
	x = (lon - b.XMin) / (b.XMax - b.XMin) * float64(widthPx)
	y = (b.YMax - lat) / (b.YMax - b.YMin) * float64(heightPx)
	return
}

// excludedColors marks the fixed set of palette entries that are never
// rain: text overlays and the "unknown area" fill.
var excludedColors = map[color.RGBA]bool{
	{0, 0, 0, 0}:         true, // transparent
	{255, 255, 255, 255}: true, // text/legend white
	{0, 0, 0, 255}:       true, // text/legend black
	{128, 128, 128, 255}: true, // unknown-area gray
}

// Config holds the query-independent parameters of the filter.
type Config struct {
	URLPrefix         string
	CacheDir          string
	MaxHistoryLookups int
	PixelThreshold    int
	ImageBounds       ImageBounds
	DefaultReturn     bool
	ForwardLook       bool
}

// Filter implements the rainrate.WetnessFilter contract: an in-process
// LRU of decoded label grids in front of the disk-cached HTTP source. A
// decoded grid is cached under the frame actually fetched, and a query
// looks it up under its own snapped 10-minute time, so a frame reached
// through history fallback is fetched and decoded again on the next
// query for the later time.
type Filter struct {
	cfg    Config
	source *ImageSource
	cache  *lru.Cache[time.Time, decodedFrame]
}

type decodedFrame struct {
	labels   [][]int
	sizes    map[int]int
	width    int
	height   int
}

// NewFilter builds a Filter from cfg, backed by an in-process LRU sized
// for a day of 10-minute frames.
func NewFilter(cfg Config) (*Filter, error) {
	cache, err := lru.New[time.Time, decodedFrame](144)
	if err != nil {
		return nil, err
	}
	return &Filter{
		cfg:    cfg,
		source: NewImageSource(cfg.URLPrefix, cfg.CacheDir, cfg.MaxHistoryLookups),
		cache:  cache,
	}, nil
}

// IsWet answers the external-wetness query for one point and timestamp.
// On an unreachable image it returns cfg.DefaultReturn together with an
// ExternalFilterUnavailable error; the returned value is usable as the
// answer for that sample.
func (f *Filter) IsWet(lon, lat, radiusKM float64, unixTime int64, allowHistory bool) (bool, error) {
	t := time.Unix(unixTime, 0).UTC()

	wet, err := f.isWetAt(lon, lat, radiusKM, t, allowHistory)
	if err != nil {
		return f.cfg.DefaultReturn, errkind.Wrap(errkind.ExternalFilterUnavailable, err, "radar image unreachable for %s", t)
	}
	if !f.cfg.ForwardLook {
		return wet, nil
	}

	next := t.Add(10 * time.Minute)
	wetNext, err := f.isWetAt(lon, lat, radiusKM, next, allowHistory)
	if err != nil {
		return wet, nil
	}
	return wet || wetNext, nil
}

func (f *Filter) isWetAt(lon, lat, radiusKM float64, t time.Time, allowHistory bool) (bool, error) {
	frame, err := f.decodedAt(t, allowHistory)
	if err != nil {
		return false, err
	}

	px, py := f.cfg.ImageBounds.project(lon, lat, frame.width, frame.height)
	radiusPx := radiusKM / f.cfg.ImageBounds.kmPerPixelDiagonal(frame.width, frame.height)

	seen := make(map[int]bool)
	r0, r1 := clampInt(int(py-radiusPx), 0, frame.height-1), clampInt(int(py+radiusPx), 0, frame.height-1)
	c0, c1 := clampInt(int(px-radiusPx), 0, frame.width-1), clampInt(int(px+radiusPx), 0, frame.width-1)
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			if math.Hypot(float64(c)-px, float64(r)-py) > radiusPx {
				continue
			}
			label := frame.labels[r][c]
			if label == 0 || seen[label] {
				continue
			}
			seen[label] = true
			if frame.sizes[label] >= f.cfg.PixelThreshold {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *Filter) decodedAt(t time.Time, allowHistory bool) (decodedFrame, error) {
	snapped := snapDown(t)
	if frame, ok := f.cache.Get(snapped); ok {
		return frame, nil
	}

	data, used, err := f.source.Fetch(t, allowHistory)
	if err != nil {
		return decodedFrame{}, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return decodedFrame{}, err
	}
	frame := buildFrame(img)
	f.cache.Add(used, frame)
	return frame, nil
}

func buildFrame(img image.Image) decodedFrame {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	mask := make([][]bool, h)
	for r := 0; r < h; r++ {
		mask[r] = make([]bool, w)
		for c := 0; c < w; c++ {
			rr, gg, bb, aa := img.At(bounds.Min.X+c, bounds.Min.Y+r).RGBA()
			px := color.RGBA{uint8(rr >> 8), uint8(gg >> 8), uint8(bb >> 8), uint8(aa >> 8)}
			mask[r][c] = !excludedColors[px]
		}
	}
	labels, sizes := labelComponents(mask)
	return decodedFrame{labels: labels, sizes: sizes, width: w, height: h}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
