package metadata

import (
	"github.com/sirupsen/logrus"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" database/sql driver
)

// NewSQLiteStore opens a SQLite-backed metadata Store. It speaks the same
// `?`-placeholder dialect as MariaDB, so it reuses sqlStore unmodified;
// intended for single-machine deployments and local/CI runs where
// standing up a MariaDB or Postgres container isn't worth the cost.
func NewSQLiteStore(dsn string, log *logrus.Entry) (Store, error) {
	return newSQLStore("sqlite3", dsn, log)
}
