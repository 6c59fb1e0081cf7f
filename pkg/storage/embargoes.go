package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const embargoColumns = "id, title, mode, ends_at, thumb, created_at"

func scanEmbargo(r rowScanner) (Embargo, error) {
	var (
		e             Embargo
		mode          string
		ends, created int64
		thumb         sql.NullString
	)
	if err := r.Scan(&e.ID, &e.Title, &mode, &ends, &thumb, &created); err != nil {
		return Embargo{}, err
	}
	e.Mode = Mode(mode)
	e.EndsAt = time.Unix(ends, 0).UTC()
	e.Thumb = thumb.String
	e.CreatedAt = time.Unix(created, 0).UTC()
	return e, nil
}

// CreateEmbargo inserts e unless an embargo with the same title exists. The
// existence check and the insert are a single statement. It reports whether a
// row was created; the returned embargo carries the generated id and stamp.
func (d *DB) CreateEmbargo(ctx context.Context, e Embargo) (Embargo, bool, error) {
	if e.Title == "" {
		return Embargo{}, false, fmt.Errorf("embargo needs a title")
	}
	if e.Mode != ModePrimary && e.Mode != ModeSecondary {
		return Embargo{}, false, fmt.Errorf("unknown embargo mode %q", e.Mode)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = d.now().UTC()
	}
	e.EndsAt = e.EndsAt.UTC().Truncate(time.Second)
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Second)

	res, err := d.sql.ExecContext(ctx, `INSERT INTO embargoes(id, title, mode, ends_at, thumb, created_at) VALUES(?,?,?,?,?,?)
ON CONFLICT(title) DO NOTHING`, e.ID, e.Title, string(e.Mode), e.EndsAt.Unix(), nullIfEmpty(e.Thumb), e.CreatedAt.Unix())
	if err != nil {
		return Embargo{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Embargo{}, false, err
	}
	return e, n == 1, nil
}

// GetEmbargo loads the embargo with the given title.
func (d *DB) GetEmbargo(ctx context.Context, title string) (Embargo, error) {
	e, err := scanEmbargo(d.sql.QueryRowContext(ctx, "SELECT "+embargoColumns+" FROM embargoes WHERE title = ?", title))
	if errors.Is(err, sql.ErrNoRows) {
		return Embargo{}, fmt.Errorf("%w: %s", ErrEmbargoNotFound, title)
	}
	return e, err
}

// DeleteEmbargo removes the embargo with the given title.
func (d *DB) DeleteEmbargo(ctx context.Context, title string) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM embargoes WHERE title = ?", title)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrEmbargoNotFound, title)
	}
	return nil
}

// ExpiredEmbargoes lists embargoes ending strictly before now, earliest first.
func (d *DB) ExpiredEmbargoes(ctx context.Context, now time.Time) ([]Embargo, error) {
	return d.queryEmbargoes(ctx, "SELECT "+embargoColumns+" FROM embargoes WHERE ends_at < ? ORDER BY ends_at, title", now.Unix())
}

// ActiveEmbargoes lists embargoes of a mode, or all when mode is empty,
// earliest end first.
func (d *DB) ActiveEmbargoes(ctx context.Context, mode Mode) ([]Embargo, error) {
	if mode == "" {
		return d.queryEmbargoes(ctx, "SELECT "+embargoColumns+" FROM embargoes ORDER BY ends_at, title")
	}
	return d.queryEmbargoes(ctx, "SELECT "+embargoColumns+" FROM embargoes WHERE mode = ? ORDER BY ends_at, title", string(mode))
}

func (d *DB) queryEmbargoes(ctx context.Context, query string, args ...any) ([]Embargo, error) {
	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Embargo
	for rows.Next() {
		e, err := scanEmbargo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
