package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/superjcast/showwatch/pkg/datetime"
)

const showColumns = `id, collection, name, date_key, start_unix, source_tz, raw_when, city, venue, thumb, card, live, embargoed, spoiler_hours, is_new, added_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShow(r rowScanner) (Show, error) {
	var (
		s                          Show
		coll, tz                   string
		start, updated             sql.NullInt64
		raw, city, venue, th, card sql.NullString
		live, embargoed, isNew     int
		added                      int64
	)
	if err := r.Scan(&s.ID, &coll, &s.Name, &s.DateKey, &start, &tz, &raw, &city, &venue, &th, &card, &live, &embargoed, &s.SpoilerHours, &isNew, &added, &updated); err != nil {
		return Show{}, err
	}
	s.Collection = Collection(coll)
	s.Start = fromUnix(start)
	s.SourceTZ = datetime.Tag(tz)
	s.RawWhen = raw.String
	s.City = city.String
	s.Venue = venue.String
	s.Thumb = th.String
	s.Card = card.String
	s.Live = live == 1
	s.Embargoed = embargoed == 1
	s.New = isNew == 1
	s.AddedAt = time.Unix(added, 0).UTC()
	s.UpdatedAt = fromUnix(updated)
	return s, nil
}

func collectShows(rows *sql.Rows) ([]Show, error) {
	defer rows.Close()
	var out []Show
	for rows.Next() {
		s, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// sameScraped compares the fields a listing pass can change. Live, new and
// the embargo length are owned by other writers.
func sameScraped(a, b Show) bool {
	return a.Start.Unix() == b.Start.Unix() && a.Start.IsZero() == b.Start.IsZero() &&
		a.SourceTZ == b.SourceTZ &&
		a.RawWhen == b.RawWhen &&
		a.City == b.City &&
		a.Venue == b.Venue &&
		a.Thumb == b.Thumb &&
		a.Card == b.Card
}

func (d *DB) findShow(ctx context.Context, c Collection, name, dateKey string) (Show, bool, error) {
	row := d.sql.QueryRowContext(ctx, "SELECT "+showColumns+" FROM shows WHERE collection = ? AND name = ? AND date_key = ?", string(c), name, dateKey)
	s, err := scanShow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Show{}, false, nil
	}
	if err != nil {
		return Show{}, false, err
	}
	return s, true, nil
}

// UpsertShow stores a candidate keyed by collection, name and date.
// A new row is marked new. A differing row is overwritten and stamped.
// An identical row is left untouched.
func (d *DB) UpsertShow(ctx context.Context, s Show) (Change, error) {
	if !s.Collection.Valid() {
		return Change{}, fmt.Errorf("unknown collection %q", s.Collection)
	}
	if strings.TrimSpace(s.Name) == "" || s.DateKey == "" {
		return Change{}, fmt.Errorf("show needs a name and a date key")
	}
	if s.SourceTZ == "" {
		s.SourceTZ = datetime.TagNone
	}
	key := s.Name + " (" + s.DateKey + ")"
	now := d.stamp()

	existing, found, err := d.findShow(ctx, s.Collection, s.Name, s.DateKey)
	if err != nil {
		return Change{}, err
	}
	if !found {
		res, err := d.sql.ExecContext(ctx, `INSERT INTO shows(collection, name, date_key, start_unix, source_tz, raw_when, city, venue, thumb, card, live, spoiler_hours, is_new, added_at)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,1,?)
ON CONFLICT(collection, name, date_key) DO NOTHING`,
			string(s.Collection), s.Name, s.DateKey, nullUnix(s.Start), string(s.SourceTZ), nullIfEmpty(s.RawWhen),
			nullIfEmpty(s.City), nullIfEmpty(s.Venue), nullIfEmpty(s.Thumb), nullIfEmpty(s.Card),
			boolToInt(s.Live), s.SpoilerHours, now)
		if err != nil {
			return Change{}, err
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			return Change{OccurredAt: time.Unix(now, 0).UTC(), Type: ChangeAdded, Kind: "show", Key: key}, nil
		}
		// Someone else inserted it first; fall through to the compare path.
		existing, found, err = d.findShow(ctx, s.Collection, s.Name, s.DateKey)
		if err != nil {
			return Change{}, err
		}
		if !found {
			return Change{}, fmt.Errorf("show %s vanished during upsert", key)
		}
	}

	if sameScraped(existing, s) {
		return Change{Type: ChangeUnchanged, Kind: "show", Key: key}, nil
	}
	_, err = d.sql.ExecContext(ctx, `UPDATE shows SET start_unix = ?, source_tz = ?, raw_when = ?, city = ?, venue = ?, thumb = ?, card = ?, updated_at = ? WHERE id = ?`,
		nullUnix(s.Start), string(s.SourceTZ), nullIfEmpty(s.RawWhen), nullIfEmpty(s.City), nullIfEmpty(s.Venue),
		nullIfEmpty(s.Thumb), nullIfEmpty(s.Card), now, existing.ID)
	if err != nil {
		return Change{}, err
	}
	return Change{OccurredAt: time.Unix(now, 0).UTC(), Type: ChangeUpdated, Kind: "show", Key: key}, nil
}

// GetShow loads a show by id.
func (d *DB) GetShow(ctx context.Context, id int64) (Show, error) {
	return scanShow(d.sql.QueryRowContext(ctx, "SELECT "+showColumns+" FROM shows WHERE id = ?", id))
}

// PurgePast deletes scheduled and other-promotion shows that started at or
// before now. Past results are kept. The deleted rows are returned.
func (d *DB) PurgePast(ctx context.Context, now time.Time) ([]Show, error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// A naive wall clock may sit up to 14 hours ahead of the real start, so
	// local rows are kept that much longer.
	const where = `collection IN ('schedule','other') AND start_unix IS NOT NULL
  AND start_unix + CASE source_tz WHEN 'local' THEN 50400 ELSE 0 END <= ?`
	rows, err := tx.QueryContext(ctx, "SELECT "+showColumns+" FROM shows WHERE "+where+" ORDER BY start_unix, id", now.Unix())
	if err != nil {
		return nil, err
	}
	purged, err := collectShows(rows)
	if err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM shows WHERE "+where, now.Unix()); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return purged, nil
}

// MarkLive flips the live flag of the first scheduled show starting exactly
// at the given instant whose flag is still false. The flag never goes back.
func (d *DB) MarkLive(ctx context.Context, at time.Time) (Show, bool, error) {
	for {
		row := d.sql.QueryRowContext(ctx, "SELECT "+showColumns+" FROM shows WHERE collection = 'schedule' AND start_unix = ? AND live = 0 ORDER BY id LIMIT 1", at.Unix())
		s, err := scanShow(row)
		if errors.Is(err, sql.ErrNoRows) {
			return Show{}, false, nil
		}
		if err != nil {
			return Show{}, false, err
		}
		res, err := d.sql.ExecContext(ctx, "UPDATE shows SET live = 1 WHERE id = ? AND live = 0", s.ID)
		if err != nil {
			return Show{}, false, err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			s.Live = true
			return s, true, nil
		}
		// Lost a race on that row; look again.
	}
}

// StartingShows lists shows of a collection that start within lookahead of
// now, whose embargo window has not already passed and that have not opened
// an embargo yet. Only shows with a known instant qualify: rows tagged local
// hold a wall clock of unknown zone and are skipped.
func (d *DB) StartingShows(ctx context.Context, c Collection, now time.Time, lookahead time.Duration) ([]Show, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT "+showColumns+` FROM shows
WHERE collection = ? AND start_unix IS NOT NULL AND source_tz = 'utc' AND embargoed = 0
  AND start_unix <= ? AND start_unix + spoiler_hours * 3600 > ?
ORDER BY start_unix, id`, string(c), now.Add(lookahead).Unix(), now.Unix())
	if err != nil {
		return nil, err
	}
	return collectShows(rows)
}

// MarkEmbargoed records that a show has had its embargo opened, so later
// polls do not open it again. The marker is never cleared.
func (d *DB) MarkEmbargoed(ctx context.Context, id int64) error {
	_, err := d.sql.ExecContext(ctx, "UPDATE shows SET embargoed = 1 WHERE id = ?", id)
	return err
}

// NextShows lists shows of a collection starting after the given instant, soonest first.
func (d *DB) NextShows(ctx context.Context, c Collection, after time.Time, limit int) ([]Show, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT "+showColumns+" FROM shows WHERE collection = ? AND start_unix > ? ORDER BY start_unix, id LIMIT ?", string(c), after.Unix(), limit)
	if err != nil {
		return nil, err
	}
	return collectShows(rows)
}

// LastShows lists shows of a collection starting at or before the given instant, latest first.
func (d *DB) LastShows(ctx context.Context, c Collection, before time.Time, limit int) ([]Show, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT "+showColumns+" FROM shows WHERE collection = ? AND start_unix <= ? ORDER BY start_unix DESC, id DESC LIMIT ?", string(c), before.Unix(), limit)
	if err != nil {
		return nil, err
	}
	return collectShows(rows)
}

// ListShows lists every show of a collection. Unresolved shows come last.
func (d *DB) ListShows(ctx context.Context, c Collection) ([]Show, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT "+showColumns+" FROM shows WHERE collection = ? ORDER BY start_unix IS NULL, start_unix, id", string(c))
	if err != nil {
		return nil, err
	}
	return collectShows(rows)
}

// NewShows lists shows of a collection still marked new.
func (d *DB) NewShows(ctx context.Context, c Collection) ([]Show, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT "+showColumns+" FROM shows WHERE collection = ? AND is_new = 1 ORDER BY start_unix IS NULL, start_unix, id", string(c))
	if err != nil {
		return nil, err
	}
	return collectShows(rows)
}

// ClearNewShows drops the new marker of the given shows.
func (d *DB) ClearNewShows(ctx context.Context, ids []int64) error {
	return d.clearNew(ctx, "shows", ids)
}

// CountShows counts the shows of a collection.
func (d *DB) CountShows(ctx context.Context, c Collection) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM shows WHERE collection = ?", string(c)).Scan(&n)
	return n, err
}

func (d *DB) clearNew(ctx context.Context, table string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, "UPDATE "+table+" SET is_new = 0 WHERE id = ?")
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
