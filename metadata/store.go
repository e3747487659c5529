package metadata

import (
	"context"
	"time"

	"github.com/telcorain/cmlrain/internal/dataset"
)

// Store is the C1 contract used by the rest of the core. Three concrete
// implementations exist: a Postgres/PostGIS backend (pgx, see
// postgres_store.go), a MariaDB backend (go-sql-driver/mysql, see
// mariadb_store.go) and a SQLite backend (go-sqlite3, see
// sqlite_store.go), selected by the `mariadb.driver` configuration key;
// all share the generic database/sql-based sqlStore underneath.
type Store interface {
	// LoadDescriptors loads the full CML population, joining links with
	// their two site rows; the technology measurement-name mapping table
	// is not read.
	// Returns what could be read along with an error if the read was
	// only partial; callers treat an empty map as fatal.
	LoadDescriptors(ctx context.Context) (map[int64]dataset.CmlDescriptor, error)

	// TechExceptionLists returns the constant-Tx-power and "buggy"
	// tech-name lists used by the assembler, sourced from the
	// technologies table rather than hard-coded.
	TechExceptionLists(ctx context.Context) (constantTx, buggy map[string]bool, err error)

	// GetLastRun returns the most recent RealtimeRun, or ok=false if none
	// exists.
	GetLastRun(ctx context.Context) (run RealtimeRun, ok bool, err error)

	// InsertRun allocates and returns a new run ID.
	InsertRun(ctx context.Context, run RealtimeRun) (runID int64, err error)

	// GetLastRainGridTime returns the most recent persisted frame
	// timestamp, or the epoch minimum if none exists.
	GetLastRainGridTime(ctx context.Context, runID int64) (time.Time, error)

	// InsertRainGrid persists one frame's metadata row. Fails with
	// errkind.NoActiveRun if runID is zero.
	InsertRainGrid(ctx context.Context, runID int64, g RainGrid) error

	// VerifyRainGrid reports whether a (runID, time) pair exists, for the
	// HTTP gridvalue API.
	VerifyRainGrid(ctx context.Context, runID int64, t time.Time) (bool, error)

	// GetRun looks up a run by ID, for the HTTP gridvalue API's bounds
	// lookup.
	GetRun(ctx context.Context, runID int64) (RealtimeRun, error)

	// WipeRealtime truncates the grid and parameter tables: with foreign
	// key checks disabled during the operation on MariaDB, and with
	// TRUNCATE ... CASCADE on Postgres.
	WipeRealtime(ctx context.Context) error

	// CheckConnection pings the store, reconnecting once on failure, the
	// same connection discipline the sample store uses.
	CheckConnection(ctx context.Context) error

	Close() error
}
