package metadata

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/telcorain/cmlrain/errkind"

	_ "github.com/jackc/pgx/v4/stdlib" // registers the "pgx" database/sql driver
)

// postgresStore wraps sqlStore to override InsertRun: pgx's database/sql
// driver doesn't implement LastInsertId, so inserting a run needs a
// RETURNING clause instead of the generic sqlStore.InsertRun.
type postgresStore struct {
	*sqlStore
}

// NewPostgresStore opens a PostGIS/Postgres-backed metadata Store using
// pgx's database/sql adapter, matching the connection style established
// by internal/postgis/postgis.go but pooled through database/sql rather
// than a bare *pgx.Conn so the rest of the store can stay driver-generic.
func NewPostgresStore(dsn string, log *logrus.Entry) (Store, error) {
	s, err := newSQLStore("pgx", dsn, log)
	if err != nil {
		return nil, err
	}
	return &postgresStore{s}, nil
}

func (s *postgresStore) InsertRun(ctx context.Context, run RealtimeRun) (int64, error) {
	if err := s.CheckConnection(ctx); err != nil {
		return 0, err
	}
	const q = `
INSERT INTO realtime_rain_parameters
	(start_time, retention_min, step_min, resolution_deg, bounds_x_min, bounds_x_max,
	 bounds_y_min, bounds_y_max, cols, rows, viewer_url)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
RETURNING id`
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(q), run.Start, run.RetentionMin, run.StepMin,
		run.ResolutionDeg, run.BoundsXMin, run.BoundsXMax, run.BoundsYMin, run.BoundsYMax,
		run.Cols, run.Rows, run.ViewerURL).Scan(&id)
	if err != nil {
		return 0, errkind.Wrap(errkind.StoreUnavailable, err, "inserting run")
	}
	s.mu.Lock()
	s.heldRunID = id
	s.mu.Unlock()
	return id, nil
}
