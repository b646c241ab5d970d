package database

import (
	"fmt"

	"github.com/lojasmm/sqldash/internal/config"
)

type dialect struct {
	driverName  string
	schemaQuery string
	columnType  func(dbType string) jsonType
}

var dialects = map[string]dialect{
	config.DriverPostgres: {
		driverName: "pgx",
		columnType: postgresType,
		schemaQuery: `SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = 'public'
ORDER BY table_name, ordinal_position`,
	},
	config.DriverSQLite: {
		driverName: "sqlite",
		columnType: sqliteType,
		schemaQuery: `SELECT m.name, p.name, p.type
FROM sqlite_master AS m
JOIN pragma_table_info(m.name) AS p
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%'
ORDER BY m.name, p.cid`,
	},
}

func dialectFor(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}
