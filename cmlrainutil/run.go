package cmlrainutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/telcorain/cmlrain/assemble"
	"github.com/telcorain/cmlrain/errkind"
	"github.com/telcorain/cmlrain/extfilter"
	"github.com/telcorain/cmlrain/field"
	"github.com/telcorain/cmlrain/internal/dataset"
	"github.com/telcorain/cmlrain/metadata"
	"github.com/telcorain/cmlrain/rainrate"
	"github.com/telcorain/cmlrain/render"
	"github.com/telcorain/cmlrain/scheduler"
	"github.com/telcorain/cmlrain/segment"
	"github.com/telcorain/cmlrain/tsdb"
)

// Runtime bundles every dependency one calculation needs, wired from
// configuration by the command-line entry points. Its Run method
// implements scheduler.Iteration.
type Runtime struct {
	Meta   metadata.Store
	TSDB   tsdb.Client
	Writer *render.Writer

	OutputBucket string
	LinkSet      *LinkSet
	Grid         *field.Grid
	IDW          field.IDWParams
	Segment      segment.Config
	Rainrate     rainrate.Config
	Anim         field.AnimationParams
	Crop         *field.CropMask

	Log *logrus.Entry

	mu        sync.RWMutex
	lastLinks []dataset.LinkDataset
}

// LookupLink resolves a CML ID against the link set processed by the most
// recent Run call, for scheduler.DebugPlotHandler.
func (rt *Runtime) LookupLink(cmlID int64) (*dataset.LinkDataset, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	for i := range rt.lastLinks {
		if rt.lastLinks[i].CmlID == cmlID {
			return &rt.lastLinks[i], true
		}
	}
	return nil, false
}

// Run performs one end-to-end calculation: load descriptors, query
// samples over [p.Start, p.End], assemble, run the rain-rate pipeline,
// segment, interpolate, and write every frame newer than the run's
// watermark.
func (rt *Runtime) Run(ctx context.Context, runID int64, p scheduler.RunParams) error {
	descriptors, err := rt.Meta.LoadDescriptors(ctx)
	if err != nil {
		return errkind.Wrap(errkind.StoreUnavailable, err, "loading CML descriptors")
	}
	if len(descriptors) == 0 {
		return errkind.New(errkind.SelectionEmpty, "no CML descriptors loaded")
	}

	constantTx, buggy, err := rt.Meta.TechExceptionLists(ctx)
	if err != nil {
		return errkind.Wrap(errkind.StoreUnavailable, err, "loading technology exception lists")
	}

	selection := rt.LinkSet.AsMap()
	endpoints := endpointsFor(selection, descriptors)
	if len(endpoints) == 0 {
		return errkind.New(errkind.SelectionEmpty, "link set selects no endpoints")
	}

	samples, err := rt.TSDB.QueryUnits(ctx, endpoints, p.Start, p.End, p.StepMin)
	if err != nil {
		return errkind.Wrap(errkind.StoreUnavailable, err, "querying sample store")
	}

	asm, err := assemble.Assemble(ctx, selection, samples, descriptors, assemble.TechLists{
		ConstantTxPower: constantTx,
		Buggy:           buggy,
	})
	if err != nil {
		return err
	}
	for _, skip := range asm.Skips {
		rt.Log.WithField("cml_id", skip.CmlID).Warnf("skipped during assembly: %s", skip.Reason)
	}
	if len(asm.Links) == 0 {
		return errkind.New(errkind.SelectionEmpty, "no links survived assembly")
	}

	rainCfg := rt.Rainrate
	rainCfg.StepMinutes = p.StepMin
	links, err := rainrate.Process(ctx, asm.Links, rainCfg)
	if err != nil {
		return errkind.Wrap(errkind.RainCalcFailure, err, "rain-rate pipeline")
	}

	segment.Segment(links, rt.Segment)

	rt.mu.Lock()
	rt.lastLinks = links
	rt.mu.Unlock()

	lastRecorded, err := rt.Meta.GetLastRainGridTime(ctx, runID)
	if err != nil {
		return errkind.Wrap(errkind.StoreUnavailable, err, "reading last grid watermark")
	}

	anim := rt.Anim
	anim.StepMinutes = p.StepMin
	frames := field.Animate(links, rt.Grid, rt.IDW, anim, lastRecorded.Unix(), nil)
	if len(frames) == 0 {
		rt.Log.Debug("no new frames produced this iteration")
		return nil
	}

	if err := rt.renderFrames(frames); err != nil {
		return errkind.Wrap(errkind.FieldGenFailure, err, "interpolating frames")
	}

	var wipe tsdb.WipeHandle
	if err := rt.Writer.WriteFrames(ctx, runID, frames, links, p.Start, false, wipe); err != nil {
		return errkind.Wrap(errkind.WriterFailure, err, "writing frames")
	}
	return nil
}

// BuildRuntime wires a Runtime from configuration: metadata store, sample
// store, link set, interpolation grid, and optional crop mask and
// external wetness filter. Shared by the historic and realtime entry
// points. The returned func closes every opened connection.
func BuildRuntime(cfg *Cfg, log *logrus.Entry) (*Runtime, func(), error) {
	driver, dsn := MariaDBDSN(cfg.Viper)
	var store metadata.Store
	var err error
	switch driver {
	case "mysql":
		store, err = metadata.NewMariaDBStore(dsn, log)
	case "sqlite3":
		store, err = metadata.NewSQLiteStore(dsn, log)
	default:
		store, err = metadata.NewPostgresStore(dsn, log)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("cmlrain: opening metadata store: %w", err)
	}

	influxCfg, err := Influx2Config(cfg.Viper)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	client := tsdb.NewInfluxClient(influxCfg, log)
	closeFn := func() { store.Close(); client.Close() }

	dirs, err := LoadDirectories(cfg.Viper)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	linkSetPath := cfg.GetString("link_set")
	ls, err := LoadLinkSet(linkSetPath)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("cmlrain: loading link-sets file %q: %w", linkSetPath, err)
	}

	bounds := FieldBounds(cfg.Viper)
	grid := field.NewGrid(bounds)

	var crop *field.CropMask
	if cfg.GetBool("realtime.crop_to_polygon") {
		crop, err = field.LoadCropMask(cfg.GetString("realtime.geojson_filename"))
		if err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("cmlrain: loading crop mask: %w", err)
		}
	}

	rainCfg := RainrateConfig(cfg.Viper)
	if extCfg, ok := ExtFilterConfig(cfg.Viper, dirs.ExtFilterCache); ok {
		filter, err := extfilter.NewFilter(extCfg)
		if err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("cmlrain: building external wetness filter: %w", err)
		}
		rainCfg.ExternalFilter = filter
		rainCfg.ExternalFilterRadius = cfg.GetFloat64("external_filter.radius")
	}

	writer := &render.Writer{
		Meta:       store,
		TSDB:       client,
		Bucket:     influxCfg.BucketOutputCML,
		GridShape:  grid,
		OutputsWeb: dirs.OutputsWeb,
		OutputsRaw: dirs.OutputsRaw,
	}

	rt := &Runtime{
		Meta:         store,
		TSDB:         client,
		Writer:       writer,
		OutputBucket: influxCfg.BucketOutputCML,
		LinkSet:      ls,
		Grid:         grid,
		IDW:          field.IDWParams{Nnear: 10, Power: 2, MaxDistance: 1},
		Segment:      SegmentConfig(cfg.Viper),
		Rainrate:     rainCfg,
		Anim: field.AnimationParams{
			OutputStepMinutes: cfg.GetInt("output_step_minutes"),
			MinRainValue:      cfg.GetFloat64("rainfields.min_value"),
		},
		Crop: crop,
		Log:  log,
	}

	return rt, closeFn, nil
}

// renderFrames masks every cell outside the configured crop polygon to
// NaN before the writer renders each frame, if a crop mask is set.
func (rt *Runtime) renderFrames(frames []field.Frame) error {
	if rt.Crop == nil {
		return nil
	}
	for i := range frames {
		g := &field.Grid{Bounds: rt.Grid.Bounds, Cols: rt.Grid.Cols, Rows: rt.Grid.Rows,
			Lon: rt.Grid.Lon, Lat: rt.Grid.Lat, Values: frames[i].Values}
		if err := field.Crop(g, rt.Crop); err != nil {
			return err
		}
		frames[i].Values = g.Values
	}
	return nil
}

// endpointsFor collects every endpoint tag (IP) referenced by a
// non-skipped CML in selection.
func endpointsFor(selection map[int64]dataset.SelectionFlag, descriptors map[int64]dataset.CmlDescriptor) []string {
	seen := make(map[string]bool)
	var out []string
	for id, flag := range selection {
		if flag == dataset.SelectionSkip {
			continue
		}
		desc, ok := descriptors[id]
		if !ok {
			continue
		}
		for _, ip := range []string{desc.IPA, desc.IPB} {
			if ip == "" || seen[ip] {
				continue
			}
			seen[ip] = true
			out = append(out, ip)
		}
	}
	return out
}

// RunAccumulation produces the long-horizon accumulation field described
// by C6: the total rainfall per link over [p.Start, p.End], interpolated
// once rather than animated.
func (rt *Runtime) RunAccumulation(ctx context.Context, p scheduler.RunParams) (*field.Grid, error) {
	descriptors, err := rt.Meta.LoadDescriptors(ctx)
	if err != nil {
		return nil, errkind.Wrap(errkind.StoreUnavailable, err, "loading CML descriptors")
	}
	constantTx, buggy, err := rt.Meta.TechExceptionLists(ctx)
	if err != nil {
		return nil, errkind.Wrap(errkind.StoreUnavailable, err, "loading technology exception lists")
	}

	selection := rt.LinkSet.AsMap()
	endpoints := endpointsFor(selection, descriptors)
	samples, err := rt.TSDB.QueryUnits(ctx, endpoints, p.Start, p.End, p.StepMin)
	if err != nil {
		return nil, errkind.Wrap(errkind.StoreUnavailable, err, "querying sample store")
	}

	asm, err := assemble.Assemble(ctx, selection, samples, descriptors, assemble.TechLists{
		ConstantTxPower: constantTx,
		Buggy:           buggy,
	})
	if err != nil {
		return nil, err
	}

	rainCfg := rt.Rainrate
	rainCfg.StepMinutes = p.StepMin
	links, err := rainrate.Process(ctx, asm.Links, rainCfg)
	if err != nil {
		return nil, errkind.Wrap(errkind.RainCalcFailure, err, "rain-rate pipeline")
	}
	segment.Segment(links, rt.Segment)

	grid := field.NewGrid(rt.Grid.Bounds)
	field.Accumulation(links, grid, rt.IDW)
	if rt.Crop != nil {
		if err := field.Crop(grid, rt.Crop); err != nil {
			return nil, fmt.Errorf("cmlrain: cropping accumulation field: %w", err)
		}
	}
	return grid, nil
}
