package metadata

import (
	"github.com/sirupsen/logrus"

	_ "github.com/go-sql-driver/mysql" // registers the "mysql" database/sql driver
)

// NewMariaDBStore opens a MariaDB-backed metadata Store, the deployment
// target named by this system's `mariadb` configuration section.
func NewMariaDBStore(dsn string, log *logrus.Entry) (Store, error) {
	return newSQLStore("mysql", dsn, log)
}
