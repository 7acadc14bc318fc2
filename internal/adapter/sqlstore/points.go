package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
)

// pointsPerStatement keeps multi-row upserts under SQLite's default bound
// parameter limit (4 parameters per row).
const pointsPerStatement = 200

// UpsertPoints writes points in one transaction. A point whose (series id,
// time) already exists has its value and fgt replaced.
func (s *Store) UpsertPoints(ctx context.Context, points []domain.SeriesPoint) (err error) {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin upsert", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Warn("rollback failed", "error", rbErr)
			}
		}
	}()

	var full *sql.Stmt
	for start := 0; start < len(points); start += pointsPerStatement {
		chunk := points[start:min(start+pointsPerStatement, len(points))]
		args := make([]any, 0, len(chunk)*4)
		for _, p := range chunk {
			args = append(args, p.SeriesID, p.Time, p.FGT, p.Value)
		}

		if len(chunk) == pointsPerStatement {
			if full == nil {
				full, err = tx.PrepareContext(ctx, s.dialect.upsertPointsSQL(pointsPerStatement))
				if err != nil {
					return storageErr("prepare upsert", err)
				}
				defer full.Close()
			}
			_, err = full.ExecContext(ctx, args...)
		} else {
			_, err = tx.ExecContext(ctx, s.dialect.upsertPointsSQL(len(chunk)), args...)
		}
		if err != nil {
			return storageErr("upsert points", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return storageErr("commit upsert", err)
	}
	return nil
}

// FetchPoints returns the stored points of one series ordered by time.
func (s *Store) FetchPoints(ctx context.Context, seriesID string) ([]domain.SeriesPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, time, fgt, value FROM data WHERE id = ? ORDER BY time`, seriesID)
	if err != nil {
		return nil, storageErr("fetch points", err)
	}
	defer rows.Close()

	var out []domain.SeriesPoint
	for rows.Next() {
		var (
			p       domain.SeriesPoint
			ts, fgt time.Time
		)
		if err := rows.Scan(&p.SeriesID, &ts, &fgt, &p.Value); err != nil {
			return nil, storageErr("fetch points", err)
		}
		p.Time = ts.UTC()
		p.FGT = fgt.UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("fetch points", err)
	}
	return out, nil
}
