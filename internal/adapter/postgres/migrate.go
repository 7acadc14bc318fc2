package postgres

import (
	"context"
	"fmt"
)

type migration struct {
	Name       string
	Statements []string
}

var migrations = []migration{
	{
		Name: "001_create_reference_tables",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS source (
				id BIGSERIAL PRIMARY KEY,
				source VARCHAR(45) NOT NULL UNIQUE,
				parameters JSONB
			)`,
			`CREATE TABLE IF NOT EXISTS variable (
				id BIGSERIAL PRIMARY KEY,
				variable VARCHAR(100) NOT NULL UNIQUE
			)`,
			`CREATE TABLE IF NOT EXISTS unit (
				id BIGSERIAL PRIMARY KEY,
				unit VARCHAR(10) NOT NULL,
				type VARCHAR(45) NOT NULL,
				UNIQUE (unit, type)
			)`,
		},
	},
	{
		Name: "002_create_station",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS station (
				id BIGSERIAL PRIMARY KEY,
				name VARCHAR(45) NOT NULL,
				latitude DOUBLE PRECISION NOT NULL,
				longitude DOUBLE PRECISION NOT NULL,
				description VARCHAR(255),
				station_type VARCHAR(45) NOT NULL,
				UNIQUE (latitude, longitude, station_type)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_station_type ON station (station_type)`,
		},
	},
	{
		Name: "003_create_run_and_data",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS run (
				id VARCHAR(64) PRIMARY KEY,
				sim_tag VARCHAR(100) NOT NULL,
				start_date TIMESTAMP,
				end_date TIMESTAMP,
				station BIGINT NOT NULL REFERENCES station (id),
				source BIGINT NOT NULL REFERENCES source (id),
				variable BIGINT NOT NULL REFERENCES variable (id),
				unit BIGINT NOT NULL REFERENCES unit (id),
				fgt TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS data (
				id VARCHAR(64) NOT NULL REFERENCES run (id),
				time TIMESTAMP NOT NULL,
				fgt TIMESTAMP NOT NULL,
				value DOUBLE PRECISION NOT NULL,
				PRIMARY KEY (id, time)
			)`,
		},
	},
}

// Migrate applies every migration not yet recorded in schema_migrations, each
// inside its own transaction.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		name VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return storageErr("migrate", fmt.Errorf("create schema_migrations: %w", err))
	}

	for _, m := range migrations {
		var applied bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, m.Name).Scan(&applied); err != nil {
			return storageErr("migrate", err)
		}
		if applied {
			continue
		}

		s.logger.Info("applying migration", "migration", m.Name)
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return storageErr("migrate", err)
		}
		for _, stmt := range m.Statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				tx.Rollback(ctx) //nolint:errcheck // already failing
				return storageErr("migrate", fmt.Errorf("%s: %w", m.Name, err))
			}
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, m.Name); err != nil {
			tx.Rollback(ctx) //nolint:errcheck // already failing
			return storageErr("migrate", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return storageErr("migrate", err)
		}
	}
	return nil
}
