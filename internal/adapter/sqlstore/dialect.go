package sqlstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const mysqlDuplicateEntry = 1062

type dialect struct {
	driverName string
	migrations []migration

	// upsertPointsPrefix and upsertPointsSuffix wrap the VALUES list of a
	// multi-row point upsert.
	upsertPointsPrefix string
	upsertPointsSuffix string

	isDuplicate func(error) bool
}

func dialectFor(driver string) (*dialect, error) {
	switch driver {
	case "mysql":
		return &mysqlDialect, nil
	case "sqlite":
		return &sqliteDialect, nil
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

var mysqlDialect = dialect{
	driverName:         "mysql",
	migrations:         mysqlMigrations,
	upsertPointsPrefix: "INSERT INTO data (id, time, fgt, value) VALUES ",
	upsertPointsSuffix: " ON DUPLICATE KEY UPDATE fgt = VALUES(fgt), value = VALUES(value)",
	isDuplicate: func(err error) bool {
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
	},
}

var sqliteDialect = dialect{
	driverName:         "sqlite",
	migrations:         sqliteMigrations,
	upsertPointsPrefix: "INSERT INTO data (id, time, fgt, value) VALUES ",
	upsertPointsSuffix: " ON CONFLICT (id, time) DO UPDATE SET fgt = excluded.fgt, value = excluded.value",
	isDuplicate: func(err error) bool {
		var se *sqlite.Error
		return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	},
}

// upsertPointsSQL builds a statement upserting n rows.
func (d *dialect) upsertPointsSQL(n int) string {
	var b strings.Builder
	b.WriteString(d.upsertPointsPrefix)
	for i := range n {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("(?, ?, ?, ?)")
	}
	b.WriteString(d.upsertPointsSuffix)
	return b.String()
}
