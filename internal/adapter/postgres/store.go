// Package postgres persists stations, runs and series points in PostgreSQL
// through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
)

// Store implements the ingest store ports on a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store backed by a pgx pool and verifies the connection.
func New(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the pool resources.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres not reachable: %w", err)
	}
	return nil
}

// GetOrCreateStation inserts st unless a station with the same coordinates and
// kind exists, returning the id of whichever row holds the key.
func (s *Store) GetOrCreateStation(ctx context.Context, st domain.Station) (domain.StationResult, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
INSERT INTO station (name, latitude, longitude, description, station_type)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (latitude, longitude, station_type) DO NOTHING
RETURNING id`,
		st.Name, st.Latitude, st.Longitude, st.Description, string(st.Kind)).Scan(&id)
	if err == nil {
		return domain.StationResult{ID: id, Created: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.StationResult{}, storageErr("insert station", err)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT id FROM station WHERE latitude = $1 AND longitude = $2 AND station_type = $3`,
		st.Latitude, st.Longitude, string(st.Kind)).Scan(&id)
	if err != nil {
		return domain.StationResult{}, storageErr("lookup station", err)
	}
	return domain.StationResult{ID: id}, nil
}

// ListStations returns station name to id for every station of kind.
func (s *Store) ListStations(ctx context.Context, kind domain.StationKind) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, id FROM station WHERE station_type = $1`, string(kind))
	if err != nil {
		return nil, storageErr("list stations", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			name string
			id   int64
		)
		if err := rows.Scan(&name, &id); err != nil {
			return nil, storageErr("list stations", err)
		}
		out[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list stations", err)
	}
	return out, nil
}

// EnsureRun records run if its series id is new; otherwise it moves fgt
// forward when run carries a newer one.
func (s *Store) EnsureRun(ctx context.Context, run domain.Run) (domain.RunState, error) {
	tag, err := s.pool.Exec(ctx, `
INSERT INTO run (id, sim_tag, start_date, end_date, station, source, variable, unit, fgt)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`,
		run.SeriesID, run.SimTag, optionalTime(run.Start), optionalTime(run.End),
		run.StationID, run.SourceID, run.VariableID, run.UnitID, run.FGT)
	if err != nil {
		return 0, storageErr("insert run", err)
	}
	if tag.RowsAffected() == 1 {
		return domain.RunNew, nil
	}

	if _, err := s.pool.Exec(ctx,
		`UPDATE run SET fgt = $1 WHERE id = $2 AND (fgt IS NULL OR fgt < $1)`,
		run.FGT, run.SeriesID); err != nil {
		return 0, storageErr("update run fgt", err)
	}
	return domain.RunExisting, nil
}

// UpsertPoints writes points as one batch inside a transaction.
func (s *Store) UpsertPoints(ctx context.Context, points []domain.SeriesPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageErr("begin upsert", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	batch := &pgx.Batch{}
	query := `INSERT INTO data (id, time, fgt, value)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id, time) DO UPDATE
SET fgt = EXCLUDED.fgt,
    value = EXCLUDED.value`
	for _, p := range points {
		batch.Queue(query, p.SeriesID, p.Time, p.FGT, p.Value)
	}

	res := tx.SendBatch(ctx, batch)
	for range points {
		if _, err := res.Exec(); err != nil {
			res.Close()
			return storageErr("upsert points", err)
		}
	}
	if err := res.Close(); err != nil {
		return storageErr("upsert points", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit upsert", err)
	}
	return nil
}

// GetOrCreateSource returns the id of the named source, inserting it if absent.
func (s *Store) GetOrCreateSource(ctx context.Context, name string) (int64, error) {
	return s.getOrCreate(ctx, "source",
		`INSERT INTO source (source) VALUES ($1) ON CONFLICT (source) DO NOTHING RETURNING id`,
		`SELECT id FROM source WHERE source = $1`, name)
}

// GetOrCreateVariable returns the id of the named variable, inserting it if absent.
func (s *Store) GetOrCreateVariable(ctx context.Context, name string) (int64, error) {
	return s.getOrCreate(ctx, "variable",
		`INSERT INTO variable (variable) VALUES ($1) ON CONFLICT (variable) DO NOTHING RETURNING id`,
		`SELECT id FROM variable WHERE variable = $1`, name)
}

// GetOrCreateUnit returns the id of the (unit, type) pair, inserting it if absent.
func (s *Store) GetOrCreateUnit(ctx context.Context, unit, unitType string) (int64, error) {
	return s.getOrCreate(ctx, "unit",
		`INSERT INTO unit (unit, type) VALUES ($1, $2) ON CONFLICT (unit, type) DO NOTHING RETURNING id`,
		`SELECT id FROM unit WHERE unit = $1 AND type = $2`, unit, unitType)
}

func (s *Store) getOrCreate(ctx context.Context, table, insert, lookup string, args ...any) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, insert, args...).Scan(&id)
	if err == nil {
		s.logger.Info("reference row created", "table", table, "id", id)
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, storageErr("insert "+table, err)
	}
	if err := s.pool.QueryRow(ctx, lookup, args...).Scan(&id); err != nil {
		return 0, storageErr("lookup "+table, err)
	}
	return id, nil
}

// GetRun loads the ledger row of one series.
func (s *Store) GetRun(ctx context.Context, seriesID string) (domain.Run, error) {
	var (
		run             domain.Run
		start, end, fgt *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, sim_tag, start_date, end_date, station, source, variable, unit, fgt FROM run WHERE id = $1`,
		seriesID).Scan(&run.SeriesID, &run.SimTag, &start, &end,
		&run.StationID, &run.SourceID, &run.VariableID, &run.UnitID, &fgt)
	if err != nil {
		return domain.Run{}, storageErr("get run", err)
	}
	run.Start = derefTime(start)
	run.End = derefTime(end)
	run.FGT = derefTime(fgt)
	return run, nil
}

// FetchPoints returns the stored points of one series ordered by time.
func (s *Store) FetchPoints(ctx context.Context, seriesID string) ([]domain.SeriesPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, time, fgt, value FROM data WHERE id = $1 ORDER BY time`, seriesID)
	if err != nil {
		return nil, storageErr("fetch points", err)
	}
	points, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SeriesPoint, error) {
		var p domain.SeriesPoint
		err := row.Scan(&p.SeriesID, &p.Time, &p.FGT, &p.Value)
		p.Time = p.Time.UTC()
		p.FGT = p.FGT.UTC()
		return p, err
	})
	if err != nil {
		return nil, storageErr("fetch points", err)
	}
	return points, nil
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func storageErr(op string, err error) error {
	return &domain.StorageError{Op: op, Err: err}
}
