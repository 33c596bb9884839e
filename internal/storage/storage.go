// Package storage persists tracks, their points and waypoints in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"calmh.dev/track-import/internal/isotime"
	"calmh.dev/track-import/internal/track"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("track not found")

const schema = `
CREATE TABLE IF NOT EXISTS tracks (
	id             TEXT PRIMARY KEY,
	uuid           TEXT NOT NULL DEFAULT '',
	name           TEXT NOT NULL,
	description    TEXT NOT NULL,
	category       TEXT NOT NULL,
	icon           TEXT NOT NULL,
	imported_at    INTEGER NOT NULL,
	start_time     INTEGER NOT NULL,
	stop_time      INTEGER NOT NULL,
	total_time     INTEGER NOT NULL,
	moving_time    INTEGER NOT NULL,
	total_distance REAL NOT NULL,
	min_altitude   REAL,
	max_altitude   REAL,
	elevation_gain REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS tracks_uuid ON tracks (uuid);
CREATE TABLE IF NOT EXISTS trackpoints (
	track_id  TEXT NOT NULL REFERENCES tracks (id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	type      INTEGER NOT NULL,
	time      INTEGER NOT NULL,
	latitude  REAL,
	longitude REAL,
	altitude  REAL,
	PRIMARY KEY (track_id, seq)
);
CREATE TABLE IF NOT EXISTS waypoints (
	track_id    TEXT NOT NULL REFERENCES tracks (id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL,
	category    TEXT NOT NULL,
	time        INTEGER,
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL,
	altitude    REAL,
	PRIMARY KEY (track_id, seq)
);
`

// Store is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers; a single connection also keeps an
	// in-memory database alive and shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InsertTracks stores the tracks with all their points and waypoints in a
// single transaction; either all of them are stored or none.
func (s *Store) InsertTracks(ctx context.Context, tracks []track.Track) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tracks {
		if err := insertTrack(ctx, tx, t); err != nil {
			return fmt.Errorf("insert track %s: %w", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertTrack(ctx context.Context, tx *sql.Tx, t track.Track) error {
	st := t.Stats
	var minAlt, maxAlt sql.NullFloat64
	if st.HasAltitude {
		minAlt = sql.NullFloat64{Float64: st.MinAltitude, Valid: true}
		maxAlt = sql.NullFloat64{Float64: st.MaxAltitude, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO tracks
		(id, uuid, name, description, category, icon, imported_at, start_time, stop_time, total_time, moving_time, total_distance, min_altitude, max_altitude, elevation_gain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.UUID, t.Name, t.Description, t.Category, t.Icon,
		isotime.Millis(t.ImportedAt), isotime.Millis(st.StartTime), isotime.Millis(st.StopTime),
		st.TotalTime.Milliseconds(), st.MovingTime.Milliseconds(), st.TotalDistance,
		minAlt, maxAlt, st.ElevationGain)
	if err != nil {
		return err
	}

	pstmt, err := tx.PrepareContext(ctx, `INSERT INTO trackpoints (track_id, seq, type, time, latitude, longitude, altitude) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer pstmt.Close()
	for i, p := range t.Points {
		var lat, lon, alt sql.NullFloat64
		if p.HasLocation() {
			lat = sql.NullFloat64{Float64: p.Latitude(), Valid: true}
			lon = sql.NullFloat64{Float64: p.Longitude(), Valid: true}
		}
		if p.HasAltitude() {
			alt = sql.NullFloat64{Float64: p.Altitude(), Valid: true}
		}
		if _, err := pstmt.ExecContext(ctx, t.ID.String(), i, int(p.Type), isotime.Millis(p.Time), lat, lon, alt); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}

	wstmt, err := tx.PrepareContext(ctx, `INSERT INTO waypoints (track_id, seq, name, description, category, time, latitude, longitude, altitude) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer wstmt.Close()
	for i, w := range t.Waypoints {
		var when sql.NullInt64
		if !w.Time.IsZero() {
			when = sql.NullInt64{Int64: isotime.Millis(w.Time), Valid: true}
		}
		var alt sql.NullFloat64
		if w.Altitude != nil {
			alt = sql.NullFloat64{Float64: *w.Altitude, Valid: true}
		}
		if _, err := wstmt.ExecContext(ctx, t.ID.String(), i, w.Name, w.Description, w.Category, when, w.Latitude, w.Longitude, alt); err != nil {
			return fmt.Errorf("waypoint %d: %w", i, err)
		}
	}
	return nil
}

const trackColumns = `id, uuid, name, description, category, icon, imported_at, start_time, stop_time, total_time, moving_time, total_distance, min_altitude, max_altitude, elevation_gain`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrack(row scanner) (track.Track, error) {
	var (
		t                       track.Track
		id                      string
		importedAt, start, stop int64
		totalTime, movingTime   int64
		minAlt, maxAlt          sql.NullFloat64
	)
	err := row.Scan(&id, &t.UUID, &t.Name, &t.Description, &t.Category, &t.Icon,
		&importedAt, &start, &stop, &totalTime, &movingTime, &t.Stats.TotalDistance,
		&minAlt, &maxAlt, &t.Stats.ElevationGain)
	if err != nil {
		return track.Track{}, err
	}
	if t.ID, err = track.ParseID(id); err != nil {
		return track.Track{}, err
	}
	t.ImportedAt = isotime.FromMillis(importedAt)
	t.Stats.StartTime = isotime.FromMillis(start)
	t.Stats.StopTime = isotime.FromMillis(stop)
	t.Stats.TotalTime = time.Duration(totalTime) * time.Millisecond
	t.Stats.MovingTime = time.Duration(movingTime) * time.Millisecond
	if minAlt.Valid && maxAlt.Valid {
		t.Stats.HasAltitude = true
		t.Stats.MinAltitude = minAlt.Float64
		t.Stats.MaxAltitude = maxAlt.Float64
	}
	return t, nil
}

// Track returns the track metadata and statistics, without points or
// waypoints.
func (s *Store) Track(ctx context.Context, id track.ID) (track.Track, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id.String())
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return track.Track{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	} else if err != nil {
		return track.Track{}, fmt.Errorf("get track %s: %w", id, err)
	}
	return t, nil
}

// Tracks lists all tracks, oldest first.
func (s *Store) Tracks(ctx context.Context) ([]track.Track, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+trackColumns+` FROM tracks ORDER BY start_time, imported_at`)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []track.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("list tracks: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// TrackPoints returns the points of a track in sequence order.
func (s *Store) TrackPoints(ctx context.Context, id track.ID) ([]track.Point, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT type, time, latitude, longitude, altitude FROM trackpoints WHERE track_id = ? ORDER BY seq`, id.String())
	if err != nil {
		return nil, fmt.Errorf("get points %s: %w", id, err)
	}
	defer rows.Close()

	var points []track.Point
	for rows.Next() {
		var (
			typ           int
			when          int64
			lat, lon, alt sql.NullFloat64
		)
		if err := rows.Scan(&typ, &when, &lat, &lon, &alt); err != nil {
			return nil, fmt.Errorf("get points %s: %w", id, err)
		}
		var altp *float64
		if alt.Valid {
			altp = &alt.Float64
		}
		if lat.Valid && lon.Valid {
			points = append(points, track.Located(track.Type(typ), isotime.FromMillis(when), lat.Float64, lon.Float64, altp))
		} else {
			points = append(points, track.Marker(track.Type(typ), isotime.FromMillis(when)))
		}
	}
	return points, rows.Err()
}

// Waypoints returns the waypoints of a track in file order.
func (s *Store) Waypoints(ctx context.Context, id track.ID) ([]track.Waypoint, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT name, description, category, time, latitude, longitude, altitude FROM waypoints WHERE track_id = ? ORDER BY seq`, id.String())
	if err != nil {
		return nil, fmt.Errorf("get waypoints %s: %w", id, err)
	}
	defer rows.Close()

	var wpts []track.Waypoint
	for rows.Next() {
		var (
			w    track.Waypoint
			when sql.NullInt64
			alt  sql.NullFloat64
		)
		if err := rows.Scan(&w.Name, &w.Description, &w.Category, &when, &w.Latitude, &w.Longitude, &alt); err != nil {
			return nil, fmt.Errorf("get waypoints %s: %w", id, err)
		}
		if when.Valid {
			w.Time = isotime.FromMillis(when.Int64)
		}
		if alt.Valid {
			a := alt.Float64
			w.Altitude = &a
		}
		wpts = append(wpts, w)
	}
	return wpts, rows.Err()
}

// HasUUID reports whether a track imported from a file with the given
// source UUID exists.
func (s *Store) HasUUID(ctx context.Context, uuid string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks WHERE uuid = ?`, uuid).Scan(&n); err != nil {
		return false, fmt.Errorf("lookup uuid: %w", err)
	}
	return n > 0, nil
}

// DeleteTrack removes a track with its points and waypoints.
func (s *Store) DeleteTrack(ctx context.Context, id track.ID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete track %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) exists(ctx context.Context, id track.ID) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks WHERE id = ?`, id.String()).Scan(&n); err != nil {
		return fmt.Errorf("lookup track %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}
