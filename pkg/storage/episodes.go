package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const episodeColumns = "id, link, title, description, published_unix, duration, file, is_new, added_at"

func scanEpisode(r rowScanner) (Episode, error) {
	var (
		e                    Episode
		desc, duration, file sql.NullString
		published            sql.NullInt64
		isNew                int
		added                int64
	)
	if err := r.Scan(&e.ID, &e.Link, &e.Title, &desc, &published, &duration, &file, &isNew, &added); err != nil {
		return Episode{}, err
	}
	e.Description = desc.String
	e.Published = fromUnix(published)
	e.Duration = duration.String
	e.File = file.String
	e.New = isNew == 1
	e.AddedAt = time.Unix(added, 0).UTC()
	return e, nil
}

// UpsertEpisode stores a feed item keyed by its link.
func (d *DB) UpsertEpisode(ctx context.Context, e Episode) (Change, error) {
	now := d.stamp()
	var (
		id                   int64
		title                string
		desc, duration, file sql.NullString
		published            sql.NullInt64
	)
	err := d.sql.QueryRowContext(ctx, "SELECT id, title, description, published_unix, duration, file FROM episodes WHERE link = ?", e.Link).
		Scan(&id, &title, &desc, &published, &duration, &file)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := d.sql.ExecContext(ctx, `INSERT INTO episodes(link, title, description, published_unix, duration, file, is_new, added_at) VALUES(?,?,?,?,?,?,1,?)
ON CONFLICT(link) DO NOTHING`, e.Link, e.Title, nullIfEmpty(e.Description), nullUnix(e.Published), nullIfEmpty(e.Duration), nullIfEmpty(e.File), now)
		if err != nil {
			return Change{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return Change{Type: ChangeUnchanged, Kind: "episode", Key: e.Link}, nil
		}
		return Change{OccurredAt: time.Unix(now, 0).UTC(), Type: ChangeAdded, Kind: "episode", Key: e.Link}, nil
	case err != nil:
		return Change{}, err
	}

	if title == e.Title && desc.String == e.Description && fromUnix(published).Equal(e.Published.UTC().Truncate(time.Second)) &&
		duration.String == e.Duration && file.String == e.File {
		return Change{Type: ChangeUnchanged, Kind: "episode", Key: e.Link}, nil
	}
	_, err = d.sql.ExecContext(ctx, "UPDATE episodes SET title = ?, description = ?, published_unix = ?, duration = ?, file = ?, updated_at = ? WHERE id = ?",
		e.Title, nullIfEmpty(e.Description), nullUnix(e.Published), nullIfEmpty(e.Duration), nullIfEmpty(e.File), now, id)
	if err != nil {
		return Change{}, err
	}
	return Change{OccurredAt: time.Unix(now, 0).UTC(), Type: ChangeUpdated, Kind: "episode", Key: e.Link}, nil
}

// NewEpisodes lists episodes still marked new, latest first.
func (d *DB) NewEpisodes(ctx context.Context) ([]Episode, error) {
	return d.queryEpisodes(ctx, "SELECT "+episodeColumns+" FROM episodes WHERE is_new = 1 ORDER BY published_unix DESC, id DESC")
}

// LatestEpisodes lists up to limit episodes, latest first.
func (d *DB) LatestEpisodes(ctx context.Context, limit int) ([]Episode, error) {
	return d.queryEpisodes(ctx, "SELECT "+episodeColumns+" FROM episodes ORDER BY published_unix DESC, id DESC LIMIT ?", limit)
}

// ClearNewEpisodes drops the new marker of the given episodes.
func (d *DB) ClearNewEpisodes(ctx context.Context, ids []int64) error {
	return d.clearNew(ctx, "episodes", ids)
}

// CountEpisodes counts stored episodes.
func (d *DB) CountEpisodes(ctx context.Context) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM episodes").Scan(&n)
	return n, err
}

func (d *DB) queryEpisodes(ctx context.Context, query string, args ...any) ([]Episode, error) {
	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
