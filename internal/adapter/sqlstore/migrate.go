package sqlstore

import (
	"context"
	"fmt"
)

type migration struct {
	Name       string
	Statements []string
}

var mysqlMigrations = []migration{
	{
		Name: "001_create_reference_tables",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS source (
				id INT AUTO_INCREMENT PRIMARY KEY,
				source VARCHAR(45) NOT NULL,
				parameters JSON NULL,
				UNIQUE KEY source_UNIQUE (source)
			)`,
			`CREATE TABLE IF NOT EXISTS variable (
				id INT AUTO_INCREMENT PRIMARY KEY,
				variable VARCHAR(100) NOT NULL,
				UNIQUE KEY variable_UNIQUE (variable)
			)`,
			`CREATE TABLE IF NOT EXISTS unit (
				id INT AUTO_INCREMENT PRIMARY KEY,
				unit VARCHAR(10) NOT NULL,
				type VARCHAR(45) NOT NULL,
				UNIQUE KEY unit_type_UNIQUE (unit, type)
			)`,
		},
	},
	{
		Name: "002_create_station",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS station (
				id INT AUTO_INCREMENT PRIMARY KEY,
				name VARCHAR(45) NOT NULL,
				latitude DOUBLE NOT NULL,
				longitude DOUBLE NOT NULL,
				description VARCHAR(255) NULL,
				station_type VARCHAR(45) NOT NULL,
				UNIQUE KEY station_coord_type_UNIQUE (latitude, longitude, station_type),
				INDEX idx_station_type (station_type)
			)`,
		},
	},
	{
		Name: "003_create_run_and_data",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS run (
				id VARCHAR(64) NOT NULL PRIMARY KEY,
				sim_tag VARCHAR(100) NOT NULL,
				start_date DATETIME NULL,
				end_date DATETIME NULL,
				station INT NOT NULL,
				source INT NOT NULL,
				variable INT NOT NULL,
				unit INT NOT NULL,
				fgt DATETIME NULL,
				INDEX idx_run_station (station),
				FOREIGN KEY (station) REFERENCES station(id),
				FOREIGN KEY (source) REFERENCES source(id),
				FOREIGN KEY (variable) REFERENCES variable(id),
				FOREIGN KEY (unit) REFERENCES unit(id)
			)`,
			`CREATE TABLE IF NOT EXISTS data (
				id VARCHAR(64) NOT NULL,
				time DATETIME NOT NULL,
				fgt DATETIME NOT NULL,
				value DOUBLE NOT NULL,
				PRIMARY KEY (id, time),
				FOREIGN KEY (id) REFERENCES run(id)
			)`,
		},
	},
}

var sqliteMigrations = []migration{
	{
		Name: "001_create_reference_tables",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS source (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				source TEXT NOT NULL UNIQUE,
				parameters TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS variable (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				variable TEXT NOT NULL UNIQUE
			)`,
			`CREATE TABLE IF NOT EXISTS unit (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				unit TEXT NOT NULL,
				type TEXT NOT NULL,
				UNIQUE (unit, type)
			)`,
		},
	},
	{
		Name: "002_create_station",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS station (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				latitude REAL NOT NULL,
				longitude REAL NOT NULL,
				description TEXT,
				station_type TEXT NOT NULL,
				UNIQUE (latitude, longitude, station_type)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_station_type ON station(station_type)`,
		},
	},
	{
		Name: "003_create_run_and_data",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS run (
				id TEXT NOT NULL PRIMARY KEY,
				sim_tag TEXT NOT NULL,
				start_date DATETIME,
				end_date DATETIME,
				station INTEGER NOT NULL REFERENCES station(id),
				source INTEGER NOT NULL REFERENCES source(id),
				variable INTEGER NOT NULL REFERENCES variable(id),
				unit INTEGER NOT NULL REFERENCES unit(id),
				fgt DATETIME
			)`,
			`CREATE TABLE IF NOT EXISTS data (
				id TEXT NOT NULL REFERENCES run(id),
				time DATETIME NOT NULL,
				fgt DATETIME NOT NULL,
				value REAL NOT NULL,
				PRIMARY KEY (id, time)
			)`,
		},
	},
}

// Migrate applies every migration not yet recorded in schema_migrations.
// Statements are idempotent, so a migration interrupted before it is recorded
// is safe to re-run.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		name VARCHAR(255) NOT NULL PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return storageErr("migrate", fmt.Errorf("create schema_migrations: %w", err))
	}

	for _, m := range s.dialect.migrations {
		var count int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM schema_migrations WHERE name = ?", m.Name).Scan(&count); err != nil {
			return storageErr("migrate", err)
		}
		if count > 0 {
			s.logger.Debug("migration already applied", "migration", m.Name)
			continue
		}

		s.logger.Info("applying migration", "migration", m.Name)
		for _, stmt := range m.Statements {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return storageErr("migrate", fmt.Errorf("%s: %w", m.Name, err))
			}
		}
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO schema_migrations (name) VALUES (?)", m.Name); err != nil {
			return storageErr("migrate", err)
		}
	}
	return nil
}
