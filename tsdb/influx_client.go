package tsdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"github.com/telcorain/cmlrain/errkind"
	"github.com/telcorain/cmlrain/internal/dataset"
)

// Config holds the influx2 configuration section from: the three
// bucket names and the old/new border timestamp that selects between the
// old and new bucket schemas.
type Config struct {
	URL             string
	Token           string
	Org             string
	BucketOld       string
	BucketNew       string
	BucketOutputCML string
	OldNewBorder    time.Time
}

type influxClient struct {
	cfg    Config
	client influxdb2.Client
	queryAPI api.QueryAPI
	log    *logrus.Entry
}

// NewInfluxClient constructs a Client backed by InfluxDB v2, the engine
// named by the `influx2` configuration section. This is the standard Go
// client for that wire protocol.
func NewInfluxClient(cfg Config, log *logrus.Entry) Client {
	c := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &influxClient{
		cfg:      cfg,
		client:   c,
		queryAPI: c.QueryAPI(cfg.Org),
		log:      log,
	}
}

func (c *influxClient) Ping(ctx context.Context) error {
	ok, err := c.client.Ping(ctx)
	if err != nil {
		return errkind.Wrap(errkind.StoreUnavailable, err, "pinging sample store")
	}
	if !ok {
		return errkind.New(errkind.StoreUnavailable, "sample store ping returned not-ok")
	}
	return nil
}

func (c *influxClient) Close() { c.client.Close() }

func (c *influxClient) bucketFor(end time.Time) (string, Schema) {
	if ChooseSchema(end.Unix(), c.cfg.OldNewBorder.Unix()) == SchemaOld {
		return c.cfg.BucketOld, SchemaOld
	}
	return c.cfg.BucketNew, SchemaNew
}

// QueryUnits implements the windowed-mean range query: boundaries snapped
// to stepMin multiples, a single bucket chosen by comparing end to the
// configured border, missing windows emitted as null and materialized
// here as 0.0.
func (c *influxClient) QueryUnits(ctx context.Context, endpoints []string, start, end time.Time, stepMin int) (dataset.EndpointSamples, error) {
	start, end = SnapWindow(start, end, stepMin)
	bucket, schema := c.bucketFor(end)

	out := make(dataset.EndpointSamples)
	for _, ep := range endpoints {
		flux := buildFluxQuery(bucket, schema.Tag(), ep, start, end, stepMin)
		result, err := c.queryAPI.Query(ctx, flux)
		if err != nil {
			return nil, errkind.Wrap(errkind.StoreUnavailable, err, "querying endpoint %s", ep)
		}
		raw := make(map[string]map[int64]float64)
		for result.Next() {
			rec := result.Record()
			field := rec.Field()
			ts := rec.Time().Unix()
			val, ok := rec.Value().(float64)
			if !ok {
				val = 0.0
			}
			if raw[field] == nil {
				raw[field] = make(map[int64]float64)
			}
			raw[field][ts] = val
		}
		if result.Err() != nil {
			return nil, errkind.Wrap(errkind.StoreUnavailable, result.Err(), "reading query result for %s", ep)
		}

		normalized := schema.Normalize(raw)
		out[ep] = dataset.EndpointFields{
			TxPower:     toSeries(normalized["tx_power"]),
			RxPower:     toSeries(normalized["rx_power"]),
			Temperature: toSeries(normalized["temperature"]),
			Unit:        "dB",
		}
	}
	return out, nil
}

func toSeries(m map[int64]float64) dataset.Series {
	if m == nil {
		return nil
	}
	s := make(dataset.Series, len(m))
	for k, v := range m {
		s[k] = v
	}
	return s
}

// QueryUnitsRealtime sets end=now (UTC) and start=now-window.
func (c *influxClient) QueryUnitsRealtime(ctx context.Context, endpoints []string, window dataset.RealtimeWindow, stepMin int) (dataset.EndpointSamples, error) {
	end := time.Now().UTC()
	start := end.Add(-window.Duration())
	return c.QueryUnits(ctx, endpoints, start, end, stepMin)
}

func buildFluxQuery(bucket, tag, endpoint string, start, end time.Time, stepMin int) string {
	return fmt.Sprintf(`
from(bucket: "%s")
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r["%s"] == "%s")
  |> aggregateWindow(every: %dm, fn: mean, createEmpty: true)
`, bucket, start.Format(time.RFC3339), end.Format(time.RFC3339), tag, endpoint, stepMin)
}

// WritePoints appends rain-intensity points, one per (cml_id, time), at
// second precision
func (c *influxClient) WritePoints(ctx context.Context, points []Point, bucket string) error {
	writeAPI := c.client.WriteAPIBlocking(c.cfg.Org, bucket)
	for _, p := range points {
		pt := influxdb2.NewPoint(
			"rain_intensity",
			map[string]string{"cml_id": fmt.Sprintf("%d", p.CmlID)},
			map[string]interface{}{"rain_intensity": p.RainIntensity},
			p.Time.Truncate(time.Second),
		)
		if err := writeAPI.WritePoint(ctx, pt); err != nil {
			return errkind.Wrap(errkind.WriterFailure, err, "writing point for cml %d", p.CmlID)
		}
	}
	return nil
}

type influxWipeHandle struct {
	wg   sync.WaitGroup
	once sync.Once
	err  error
}

func (h *influxWipeHandle) Join(ctx context.Context) error {
	h.wg.Wait()
	return h.err
}

// WipeOutputBucket launches a background delete-all of the bucket's
// measurements and returns a joinable handle: callers
// must Join before writing into the same bucket again during a
// forced-rewrite flow.
func (c *influxClient) WipeOutputBucket(ctx context.Context, bucket string) WipeHandle {
	h := &influxWipeHandle{}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		deleteAPI := c.client.DeleteAPI()
		start := time.Unix(0, 0)
		stop := time.Now().UTC()
		org, err := c.client.OrganizationsAPI().FindOrganizationByName(ctx, c.cfg.Org)
		if err != nil {
			h.err = errkind.Wrap(errkind.StoreUnavailable, err, "resolving organization for wipe")
			return
		}
		bk, err := c.client.BucketsAPI().FindBucketByName(ctx, bucket)
		if err != nil {
			h.err = errkind.Wrap(errkind.StoreUnavailable, err, "resolving bucket %s for wipe", bucket)
			return
		}
		if err := deleteAPI.Delete(ctx, org, bk, start, stop, ""); err != nil {
			h.err = errkind.Wrap(errkind.StoreUnavailable, err, "wiping output bucket %s", bucket)
			c.log.WithError(err).Error("failed to wipe output bucket")
		}
	}()
	return h
}
