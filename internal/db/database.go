// Package db keeps a small SQLite catalog of timelines and merge runs so the
// stats command and the API can report on past consolidations.
package db

import (
	"database/sql"
	"fmt"
	"time"

	"phonetrack-timeline/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// Database wraps the SQLite catalog connection.
type Database struct {
	conn *sql.DB
}

// New opens (and if needed creates) the catalog at dbPath.
func New(dbPath string) (*Database, error) {
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL", dbPath)

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	db := &Database{conn: conn}
	if err := db.initialize(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

func (db *Database) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS timelines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		user TEXT NOT NULL,
		norm_session TEXT NOT NULL,
		norm_user TEXT NOT NULL,
		path TEXT NOT NULL,
		points INTEGER NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE(norm_session, norm_user)
	);

	CREATE TABLE IF NOT EXISTS merge_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		user TEXT NOT NULL,
		files INTEGER NOT NULL,
		points_in INTEGER NOT NULL,
		points_out INTEGER NOT NULL,
		duplicates INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_merge_runs_started ON merge_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_merge_runs_session ON merge_runs(session, user);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the catalog connection.
func (db *Database) Close() error {
	return db.conn.Close()
}

// UpsertTimeline records the current state of one timeline file. A later
// merge for the same normalized identity replaces the row, keeping whatever
// display casing that merge used.
func (db *Database) UpsertTimeline(rec *models.TimelineRecord) error {
	query := `
		INSERT INTO timelines (session, user, norm_session, norm_user, path, points, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(norm_session, norm_user) DO UPDATE SET
			session = excluded.session,
			user = excluded.user,
			path = excluded.path,
			points = excluded.points,
			updated_at = excluded.updated_at
	`
	_, err := db.conn.Exec(query,
		rec.Session, rec.User, rec.NormSession, rec.NormUser,
		rec.Path, rec.Points, rec.UpdatedAt,
	)
	return err
}

// GetTimeline looks a timeline up by its normalized identity.
func (db *Database) GetTimeline(normSession, normUser string) (*models.TimelineRecord, error) {
	query := `
		SELECT id, session, user, norm_session, norm_user, path, points, updated_at
		FROM timelines WHERE norm_session = ? AND norm_user = ?
	`
	var rec models.TimelineRecord
	err := db.conn.QueryRow(query, normSession, normUser).Scan(
		&rec.ID, &rec.Session, &rec.User, &rec.NormSession, &rec.NormUser,
		&rec.Path, &rec.Points, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListTimelines returns all cataloged timelines ordered by identity.
func (db *Database) ListTimelines() ([]models.TimelineRecord, error) {
	query := `
		SELECT id, session, user, norm_session, norm_user, path, points, updated_at
		FROM timelines ORDER BY norm_session, norm_user
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.TimelineRecord
	for rows.Next() {
		var rec models.TimelineRecord
		if err := rows.Scan(
			&rec.ID, &rec.Session, &rec.User, &rec.NormSession, &rec.NormUser,
			&rec.Path, &rec.Points, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecordRun appends one merge run to the ledger.
func (db *Database) RecordRun(run *models.MergeRun) error {
	query := `
		INSERT INTO merge_runs (session, user, files, points_in, points_out, duplicates, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := db.conn.Exec(query,
		run.Session, run.User, run.Files, run.PointsIn, run.PointsOut,
		run.Duplicates, run.StartedAt, run.DurationMs,
	)
	if err != nil {
		return err
	}
	id, _ := result.LastInsertId()
	run.ID = id
	return nil
}

// ListRuns returns the most recent merge runs, newest first.
func (db *Database) ListRuns(limit int) ([]models.MergeRun, error) {
	query := `
		SELECT id, session, user, files, points_in, points_out, duplicates, started_at, duration_ms
		FROM merge_runs ORDER BY started_at DESC, id DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.MergeRun
	for rows.Next() {
		var run models.MergeRun
		if err := rows.Scan(
			&run.ID, &run.Session, &run.User, &run.Files, &run.PointsIn,
			&run.PointsOut, &run.Duplicates, &run.StartedAt, &run.DurationMs,
		); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetStats returns catalog statistics.
func (db *Database) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var timelines, totalPoints sql.NullInt64
	if err := db.conn.QueryRow("SELECT COUNT(*), COALESCE(SUM(points), 0) FROM timelines").
		Scan(&timelines, &totalPoints); err != nil {
		return nil, err
	}
	stats["timelines"] = timelines.Int64
	stats["total_points"] = totalPoints.Int64

	var runs int64
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM merge_runs").Scan(&runs); err != nil {
		return nil, err
	}
	stats["merge_runs"] = runs

	var lastRun sql.NullString
	if err := db.conn.QueryRow("SELECT MAX(started_at) FROM merge_runs").Scan(&lastRun); err != nil {
		return nil, err
	}
	if lastRun.Valid {
		stats["last_run"] = lastRun.String
	}

	return stats, nil
}
