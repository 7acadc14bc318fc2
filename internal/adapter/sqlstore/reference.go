package sqlstore

import (
	"context"
	"database/sql"
	"errors"
)

// GetOrCreateSource returns the id of the named source, inserting it if absent.
func (s *Store) GetOrCreateSource(ctx context.Context, name string) (int64, error) {
	return s.getOrCreate(ctx, "source",
		`SELECT id FROM source WHERE source = ?`,
		`INSERT INTO source (source) VALUES (?)`, name)
}

// GetOrCreateVariable returns the id of the named variable, inserting it if absent.
func (s *Store) GetOrCreateVariable(ctx context.Context, name string) (int64, error) {
	return s.getOrCreate(ctx, "variable",
		`SELECT id FROM variable WHERE variable = ?`,
		`INSERT INTO variable (variable) VALUES (?)`, name)
}

// GetOrCreateUnit returns the id of the (unit, type) pair, inserting it if absent.
func (s *Store) GetOrCreateUnit(ctx context.Context, unit, unitType string) (int64, error) {
	return s.getOrCreate(ctx, "unit",
		`SELECT id FROM unit WHERE unit = ? AND type = ?`,
		`INSERT INTO unit (unit, type) VALUES (?, ?)`, unit, unitType)
}

func (s *Store) getOrCreate(ctx context.Context, table, lookup, insert string, args ...any) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, lookup, args...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, storageErr("lookup "+table, err)
	}

	res, err := s.db.ExecContext(ctx, insert, args...)
	if err != nil {
		if !s.dialect.isDuplicate(err) {
			return 0, storageErr("insert "+table, err)
		}
		if err := s.db.QueryRowContext(ctx, lookup, args...).Scan(&id); err != nil {
			return 0, storageErr("lookup "+table, err)
		}
		return id, nil
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, storageErr("insert "+table, err)
	}
	s.logger.Info("reference row created", "table", table, "id", id)
	return id, nil
}
