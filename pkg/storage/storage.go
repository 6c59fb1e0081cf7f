package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
	now func() time.Time
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS shows (
  id            INTEGER PRIMARY KEY,
  collection    TEXT NOT NULL CHECK (collection IN ('schedule','result','other')),
  name          TEXT NOT NULL,
  date_key      TEXT NOT NULL,
  start_unix    INTEGER,
  source_tz     TEXT NOT NULL DEFAULT 'none' CHECK (source_tz IN ('utc','local','none')),
  raw_when      TEXT,
  city          TEXT,
  venue         TEXT,
  thumb         TEXT,
  card          TEXT,
  live          INTEGER NOT NULL DEFAULT 0 CHECK (live IN (0,1)),
  embargoed     INTEGER NOT NULL DEFAULT 0 CHECK (embargoed IN (0,1)),
  spoiler_hours INTEGER NOT NULL DEFAULT 0,
  is_new        INTEGER NOT NULL DEFAULT 1 CHECK (is_new IN (0,1)),
  added_at      INTEGER NOT NULL,
  updated_at    INTEGER,
  UNIQUE(collection, name, date_key)
);
CREATE INDEX IF NOT EXISTS idx_shows_start ON shows(collection, start_unix);
CREATE TABLE IF NOT EXISTS embargoes (
  id         TEXT PRIMARY KEY,
  title      TEXT NOT NULL UNIQUE,
  mode       TEXT NOT NULL CHECK (mode IN ('primary','secondary')),
  ends_at    INTEGER NOT NULL,
  thumb      TEXT,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_embargoes_ends ON embargoes(ends_at);
CREATE TABLE IF NOT EXISTS episodes (
  id             INTEGER PRIMARY KEY,
  link           TEXT NOT NULL UNIQUE,
  title          TEXT NOT NULL,
  description    TEXT,
  published_unix INTEGER,
  duration       TEXT,
  file           TEXT,
  is_new         INTEGER NOT NULL DEFAULT 1 CHECK (is_new IN (0,1)),
  added_at       INTEGER NOT NULL,
  updated_at     INTEGER
);
CREATE TABLE IF NOT EXISTS profiles (
  id         INTEGER PRIMARY KEY,
  name       TEXT NOT NULL UNIQUE,
  link       TEXT,
  render     TEXT,
  bio        TEXT,
  attributes TEXT NOT NULL DEFAULT '{}',
  is_new     INTEGER NOT NULL DEFAULT 1 CHECK (is_new IN (0,1)),
  removed    INTEGER NOT NULL DEFAULT 0 CHECK (removed IN (0,1)),
  added_at   INTEGER NOT NULL,
  updated_at INTEGER
);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db, now: time.Now}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SetClock replaces the clock used for added and updated stamps.
func (d *DB) SetClock(now func() time.Time) { d.now = now }

// Raw exposes the underlying handle for the interactive shell.
func (d *DB) Raw() *sql.DB { return d.sql }

func (d *DB) stamp() int64 { return d.now().UTC().Unix() }

// GetStats counts rows per table.
func (d *DB) GetStats(ctx context.Context) (Stats, error) {
	st := Stats{Shows: make(map[Collection]int)}
	rows, err := d.sql.QueryContext(ctx, "SELECT collection, COUNT(*), SUM(is_new) FROM shows GROUP BY collection")
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			c        string
			n        int
			newCount sql.NullInt64
		)
		if err := rows.Scan(&c, &n, &newCount); err != nil {
			return st, err
		}
		st.Shows[Collection(c)] = n
		st.NewShows += int(newCount.Int64)
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM embargoes", &st.Embargoes},
		{"SELECT COUNT(*) FROM episodes", &st.Episodes},
		{"SELECT COUNT(*) FROM profiles WHERE removed = 0", &st.Profiles},
		{"SELECT COUNT(*) FROM profiles WHERE removed = 1", &st.RemovedPending},
	}
	for _, c := range counts {
		if err := d.sql.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return st, fmt.Errorf("stats: %w", err)
		}
	}
	return st, nil
}
