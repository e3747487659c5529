package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/telcorain/cmlrain/errkind"
	"github.com/telcorain/cmlrain/internal/dataset"
)

// sqlStore is the database/sql-backed implementation shared by the
// Postgres/PostGIS, MariaDB and SQLite drivers; it carries the connection state
// machine adapted from internal/postgis's backoff.Retry reconnect loop.
type sqlStore struct {
	mu     sync.Mutex
	db     *sql.DB
	driver string
	dsn    string
	log    *logrus.Entry

	// heldRunID is the run ID last allocated by InsertRun in this process.
	// InsertRainGrid checks its runID argument for NoActiveRun, not this
	// field.
	heldRunID int64
}

func newSQLStore(driver, dsn string, log *logrus.Entry) (*sqlStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errkind.Wrap(errkind.StoreUnavailable, err, "opening %s connection", driver)
	}
	s := &sqlStore{db: db, driver: driver, dsn: dsn, log: log}
	if err := s.CheckConnection(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// CheckConnection pings the store, reconnecting once with exponential
// backoff if the ping fails, matching internal/postgis's SetupTestDB
// retry pattern generalized to runtime reconnects rather than initial
// container bring-up.
func (s *sqlStore) CheckConnection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.PingContext(ctx); err == nil {
		return nil
	}

	s.log.Warn("metadata store ping failed, attempting one reconnect")
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return errkind.Wrap(errkind.StoreUnavailable, err, "reconnecting to metadata store")
	}
	boff := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	err = backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, boff)
	if err != nil {
		return errkind.Wrap(errkind.StoreUnavailable, err, "metadata store unreachable after reconnect")
	}
	s.db.Close()
	s.db = db
	return nil
}

func (s *sqlStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// LoadDescriptors joins links with their two site rows. The
// technologies_influx_mapping table is not joined.
func (s *sqlStore) LoadDescriptors(ctx context.Context) (map[int64]dataset.CmlDescriptor, error) {
	if err := s.CheckConnection(ctx); err != nil {
		return nil, err
	}

	const q = `
SELECT l.id, l.ip_a, l.ip_b, sa.address, sb.address, l.tech,
       l.freq_a, l.freq_b, l.polarization,
       sa.lat, sa.lon, sb.lat, sb.lon,
       sa.dummy_lat, sa.dummy_lon, sb.dummy_lat, sb.dummy_lon
FROM links l
JOIN sites sa ON sa.id = l.site_a_id
JOIN sites sb ON sb.id = l.site_b_id`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, errkind.Wrap(errkind.StoreUnavailable, err, "loading CML descriptors")
	}
	defer rows.Close()

	out := make(map[int64]dataset.CmlDescriptor)
	for rows.Next() {
		var (
			id                     int64
			ipA, ipB               string
			addrA, addrB           string
			tech                   string
			freqA, freqB           int
			pol                    string
			latA, lonA, latB, lonB float64
			dLatA, dLonA, dLatB, dLonB float64
		)
		if err := rows.Scan(&id, &ipA, &ipB, &addrA, &addrB, &tech, &freqA, &freqB, &pol,
			&latA, &lonA, &latB, &lonB, &dLatA, &dLonA, &dLatB, &dLonB); err != nil {
			// Partial read: return what we have so far with the error,
			// ("returns what was read and signals error
			// kind at the call site").
			return out, errkind.Wrap(errkind.StoreUnavailable, err, "partial descriptor read")
		}
		out[id] = dataset.NewCmlDescriptor(id, ipA, ipB, addrA, addrB, tech,
			freqA, freqB, pol, latA, lonA, latB, lonB, dLatA, dLonA, dLatB, dLonB)
	}
	if err := rows.Err(); err != nil {
		return out, errkind.Wrap(errkind.StoreUnavailable, err, "iterating descriptor rows")
	}
	return out, nil
}

func (s *sqlStore) TechExceptionLists(ctx context.Context) (constantTx, buggy map[string]bool, err error) {
	if err = s.CheckConnection(ctx); err != nil {
		return nil, nil, err
	}
	constantTx = make(map[string]bool)
	buggy = make(map[string]bool)

	rows, err := s.db.QueryContext(ctx, `SELECT name, constant_tx_power, buggy_tx_power FROM technologies`)
	if err != nil {
		return nil, nil, errkind.Wrap(errkind.StoreUnavailable, err, "loading technology exception lists")
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var isConstant, isBuggy bool
		if err := rows.Scan(&name, &isConstant, &isBuggy); err != nil {
			return constantTx, buggy, errkind.Wrap(errkind.StoreUnavailable, err, "scanning technology row")
		}
		if isConstant {
			constantTx[name] = true
		}
		if isBuggy {
			buggy[name] = true
		}
	}
	return constantTx, buggy, rows.Err()
}

func (s *sqlStore) GetLastRun(ctx context.Context) (RealtimeRun, bool, error) {
	if err := s.CheckConnection(ctx); err != nil {
		return RealtimeRun{}, false, err
	}
	const q = `
SELECT id, start_time, retention_min, step_min, resolution_deg,
       bounds_x_min, bounds_x_max, bounds_y_min, bounds_y_max, cols, rows, viewer_url
FROM realtime_rain_parameters ORDER BY start_time DESC LIMIT 1`
	var run RealtimeRun
	err := s.db.QueryRowContext(ctx, q).Scan(&run.ID, &run.Start, &run.RetentionMin, &run.StepMin,
		&run.ResolutionDeg, &run.BoundsXMin, &run.BoundsXMax, &run.BoundsYMin, &run.BoundsYMax,
		&run.Cols, &run.Rows, &run.ViewerURL)
	if err == sql.ErrNoRows {
		return RealtimeRun{}, false, nil
	}
	if err != nil {
		return RealtimeRun{}, false, errkind.Wrap(errkind.StoreUnavailable, err, "loading last run")
	}
	return run, true, nil
}

func (s *sqlStore) InsertRun(ctx context.Context, run RealtimeRun) (int64, error) {
	if err := s.CheckConnection(ctx); err != nil {
		return 0, err
	}
	const q = `
INSERT INTO realtime_rain_parameters
	(start_time, retention_min, step_min, resolution_deg, bounds_x_min, bounds_x_max,
	 bounds_y_min, bounds_y_max, cols, rows, viewer_url)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`
	res, err := s.db.ExecContext(ctx, s.rebind(q), run.Start, run.RetentionMin, run.StepMin,
		run.ResolutionDeg, run.BoundsXMin, run.BoundsXMax, run.BoundsYMin, run.BoundsYMax,
		run.Cols, run.Rows, run.ViewerURL)
	if err != nil {
		return 0, errkind.Wrap(errkind.StoreUnavailable, err, "inserting run")
	}
	id, err := res.LastInsertId()
	if err != nil {
		// pgx's database/sql driver doesn't implement LastInsertId; the
		// Postgres store overrides InsertRun with a RETURNING-based
		// version instead of calling this one.
		return 0, errkind.Wrap(errkind.StoreUnavailable, err, "reading inserted run id")
	}
	s.mu.Lock()
	s.heldRunID = id
	s.mu.Unlock()
	return id, nil
}

func (s *sqlStore) GetLastRainGridTime(ctx context.Context, runID int64) (time.Time, error) {
	if err := s.CheckConnection(ctx); err != nil {
		return time.Time{}, err
	}
	const q = `SELECT MAX(time) FROM realtime_rain_grids WHERE run_id = ?`
	var t sql.NullTime
	if err := s.db.QueryRowContext(ctx, s.rebind(q), runID).Scan(&t); err != nil {
		return time.Time{}, errkind.Wrap(errkind.StoreUnavailable, err, "loading last raingrid time")
	}
	if !t.Valid {
		return time.Unix(0, 0).UTC(), nil
	}
	return t.Time, nil
}

func (s *sqlStore) InsertRainGrid(ctx context.Context, runID int64, g RainGrid) error {
	if runID == 0 {
		return errkind.New(errkind.NoActiveRun, "insert_raingrid called without a held run id")
	}
	if err := s.CheckConnection(ctx); err != nil {
		return err
	}
	linksJSON, err := json.Marshal(g.Links)
	if err != nil {
		return errkind.Wrap(errkind.WriterFailure, err, "marshaling contributing cml ids")
	}
	const q = `
INSERT INTO realtime_rain_grids (run_id, time, links, filename, r_median, r_mean, r_max)
VALUES (?,?,?,?,?,?,?)`
	_, err = s.db.ExecContext(ctx, s.rebind(q), runID, g.Time, string(linksJSON), g.FileName,
		g.RMedian, g.RMean, g.RMax)
	if err != nil {
		return errkind.Wrap(errkind.WriterFailure, err, "inserting raingrid row")
	}
	return nil
}

func (s *sqlStore) VerifyRainGrid(ctx context.Context, runID int64, t time.Time) (bool, error) {
	if err := s.CheckConnection(ctx); err != nil {
		return false, err
	}
	const q = `SELECT 1 FROM realtime_rain_grids WHERE run_id = ? AND time = ?`
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind(q), runID, t).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errkind.Wrap(errkind.StoreUnavailable, err, "verifying raingrid")
	}
	return true, nil
}

func (s *sqlStore) GetRun(ctx context.Context, runID int64) (RealtimeRun, error) {
	if err := s.CheckConnection(ctx); err != nil {
		return RealtimeRun{}, err
	}
	const q = `
SELECT id, start_time, retention_min, step_min, resolution_deg,
       bounds_x_min, bounds_x_max, bounds_y_min, bounds_y_max, cols, rows, viewer_url
FROM realtime_rain_parameters WHERE id = ?`
	var run RealtimeRun
	err := s.db.QueryRowContext(ctx, s.rebind(q), runID).Scan(&run.ID, &run.Start, &run.RetentionMin,
		&run.StepMin, &run.ResolutionDeg, &run.BoundsXMin, &run.BoundsXMax, &run.BoundsYMin,
		&run.BoundsYMax, &run.Cols, &run.Rows, &run.ViewerURL)
	if err != nil {
		return RealtimeRun{}, errkind.Wrap(errkind.StoreUnavailable, err, "loading run %d", runID)
	}
	return run, nil
}

func (s *sqlStore) WipeRealtime(ctx context.Context) error {
	if err := s.CheckConnection(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errkind.Wrap(errkind.StoreUnavailable, err, "starting wipe transaction")
	}
	defer tx.Rollback()

	stmts := []string{
		"SET FOREIGN_KEY_CHECKS=0",
		"TRUNCATE TABLE realtime_rain_grids",
		"TRUNCATE TABLE realtime_rain_parameters",
		"SET FOREIGN_KEY_CHECKS=1",
	}
	if s.driver == "postgres" || s.driver == "pgx" {
		stmts = []string{
			"TRUNCATE TABLE realtime_rain_grids, realtime_rain_parameters CASCADE",
		}
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errkind.Wrap(errkind.StoreUnavailable, err, "executing %q", stmt)
		}
	}
	return tx.Commit()
}

// rebind rewrites `?` placeholders to `$1, $2, ...` for Postgres-family
// drivers; MariaDB keeps `?` natively.
func (s *sqlStore) rebind(q string) string {
	if s.driver != "postgres" && s.driver != "pgx" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
