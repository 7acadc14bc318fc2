package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
)

// EnsureRun records run if its series id is new. For an existing series only
// fgt changes, and only forward: an older generation replayed after a newer
// one leaves the recorded fgt alone.
func (s *Store) EnsureRun(ctx context.Context, run domain.Run) (domain.RunState, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run (id, sim_tag, start_date, end_date, station, source, variable, unit, fgt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.SeriesID, run.SimTag, nullTime(run.Start), nullTime(run.End),
		run.StationID, run.SourceID, run.VariableID, run.UnitID, run.FGT)
	if err == nil {
		return domain.RunNew, nil
	}
	if !s.dialect.isDuplicate(err) {
		return 0, storageErr("insert run", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE run SET fgt = ? WHERE id = ? AND (fgt IS NULL OR fgt < ?)`,
		run.FGT, run.SeriesID, run.FGT); err != nil {
		return 0, storageErr("update run fgt", err)
	}
	return domain.RunExisting, nil
}

// GetRun loads the ledger row of one series.
func (s *Store) GetRun(ctx context.Context, seriesID string) (domain.Run, error) {
	var (
		run             domain.Run
		start, end, fgt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, sim_tag, start_date, end_date, station, source, variable, unit, fgt FROM run WHERE id = ?`,
		seriesID).Scan(&run.SeriesID, &run.SimTag, &start, &end,
		&run.StationID, &run.SourceID, &run.VariableID, &run.UnitID, &fgt)
	if err != nil {
		return domain.Run{}, storageErr("get run", err)
	}
	run.Start = fromNullTime(start)
	run.End = fromNullTime(end)
	run.FGT = fromNullTime(fgt)
	return run, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// fromNullTime normalizes driver-returned times to UTC-located wall clock.
func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}
