// Package metadatatest provides an ephemeral PostGIS container for
// integration-testing the metadata store, adapted from
// internal/postgis/postgis.go's SetupTestDB: same testcontainers +
// pgx + cenkalti/backoff connect-retry shape, schema swapped from
// OpenStreetMap surrogate tables to the links/sites/technologies/
// realtime_rain_* tables this module actually uses.
package metadatatest

import (
	"context"
	"fmt"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v4"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const schema = `
CREATE TABLE technologies (
	name TEXT PRIMARY KEY,
	constant_tx_power BOOLEAN NOT NULL DEFAULT false,
	buggy_tx_power BOOLEAN NOT NULL DEFAULT false
);
CREATE TABLE sites (
	id BIGSERIAL PRIMARY KEY,
	address TEXT NOT NULL,
	lat DOUBLE PRECISION NOT NULL,
	lon DOUBLE PRECISION NOT NULL,
	dummy_lat DOUBLE PRECISION NOT NULL,
	dummy_lon DOUBLE PRECISION NOT NULL
);
CREATE TABLE links (
	id BIGSERIAL PRIMARY KEY,
	ip_a TEXT NOT NULL,
	ip_b TEXT NOT NULL,
	tech TEXT NOT NULL REFERENCES technologies(name),
	freq_a INTEGER NOT NULL,
	freq_b INTEGER NOT NULL,
	polarization TEXT NOT NULL,
	site_a_id BIGINT NOT NULL REFERENCES sites(id),
	site_b_id BIGINT NOT NULL REFERENCES sites(id)
);
CREATE TABLE realtime_rain_parameters (
	id BIGSERIAL PRIMARY KEY,
	start_time TIMESTAMPTZ NOT NULL,
	retention_min INTEGER NOT NULL,
	step_min INTEGER NOT NULL,
	resolution_deg DOUBLE PRECISION NOT NULL,
	bounds_x_min DOUBLE PRECISION NOT NULL,
	bounds_x_max DOUBLE PRECISION NOT NULL,
	bounds_y_min DOUBLE PRECISION NOT NULL,
	bounds_y_max DOUBLE PRECISION NOT NULL,
	cols INTEGER NOT NULL,
	rows INTEGER NOT NULL,
	viewer_url TEXT NOT NULL DEFAULT ''
);
CREATE TABLE realtime_rain_grids (
	id BIGSERIAL PRIMARY KEY,
	run_id BIGINT NOT NULL REFERENCES realtime_rain_parameters(id),
	time TIMESTAMPTZ NOT NULL,
	links JSONB NOT NULL,
	filename TEXT NOT NULL,
	r_median DOUBLE PRECISION NOT NULL,
	r_mean DOUBLE PRECISION NOT NULL,
	r_max DOUBLE PRECISION NOT NULL
);
`

// SetupTestDB creates a throwaway PostGIS container, applies the schema
// above, and returns a connection URL plus the running container so the
// caller can tear it down with container.Terminate.
func SetupTestDB(ctx context.Context, t *testing.T) (string, testcontainers.Container) {
	const (
		dbhost = "localhost"
		dbname = "cmlrain_test"
		dbuser = "postgres"
		dbport = "5432"
	)

	req := testcontainers.ContainerRequest{
		Image:        "postgis/postgis:15-3.3-alpine",
		ExposedPorts: []string{fmt.Sprintf("%s/tcp", dbport)},
		Env: map[string]string{
			"POSTGRES_DB":               dbname,
			"POSTGRES_HOST_AUTH_METHOD": "trust",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatal(err)
	}

	p, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}

	url := fmt.Sprintf("postgres://%s@%s:%s/%s", dbuser, dbhost, p.Port(), dbname)

	var conn *pgx.Conn
	err = backoff.Retry(func() error {
		conn, err = pgx.Connect(ctx, url)
		return err
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 10))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, schema); err != nil {
		t.Fatal(err)
	}

	return url, container
}
