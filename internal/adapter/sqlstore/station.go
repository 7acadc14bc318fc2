package sqlstore

import (
	"context"
	"database/sql"

	"github.com/couchcryptid/fcst-grid-ingest/internal/domain"
)

// GetOrCreateStation inserts st, or returns the id of the station already
// registered at the same coordinates and kind. Concurrent callers for the same
// key all observe one row: losers of the insert race hit the unique key and
// fall back to the lookup.
func (s *Store) GetOrCreateStation(ctx context.Context, st domain.Station) (domain.StationResult, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO station (name, latitude, longitude, description, station_type) VALUES (?, ?, ?, ?, ?)`,
		st.Name, st.Latitude, st.Longitude, st.Description, string(st.Kind))
	if err == nil {
		id, err := res.LastInsertId()
		if err != nil {
			return domain.StationResult{}, storageErr("insert station", err)
		}
		return domain.StationResult{ID: id, Created: true}, nil
	}
	if !s.dialect.isDuplicate(err) {
		return domain.StationResult{}, storageErr("insert station", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM station WHERE latitude = ? AND longitude = ? AND station_type = ?`,
		st.Latitude, st.Longitude, string(st.Kind)).Scan(&id)
	if err != nil {
		return domain.StationResult{}, storageErr("lookup station", err)
	}
	return domain.StationResult{ID: id}, nil
}

// ListStations returns station name to id for every station of kind.
func (s *Store) ListStations(ctx context.Context, kind domain.StationKind) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, id FROM station WHERE station_type = ?`, string(kind))
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

// GetStation loads one station by id.
func (s *Store) GetStation(ctx context.Context, id int64) (domain.Station, error) {
	var (
		st   domain.Station
		desc sql.NullString
		kind string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, latitude, longitude, description, station_type FROM station WHERE id = ?`, id).
		Scan(&st.ID, &st.Name, &st.Latitude, &st.Longitude, &desc, &kind)
	if err != nil {
		return domain.Station{}, storageErr("get station", err)
	}
	st.Description = desc.String
	st.Kind = domain.StationKind(kind)
	return st, nil
}
