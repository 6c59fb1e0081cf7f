package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

const profileColumns = "id, name, link, render, bio, attributes, is_new, removed, added_at"

func scanProfile(r rowScanner) (Profile, error) {
	var (
		p                 Profile
		link, render, bio sql.NullString
		attrs             string
		isNew, removed    int
		added             int64
	)
	if err := r.Scan(&p.ID, &p.Name, &link, &render, &bio, &attrs, &isNew, &removed, &added); err != nil {
		return Profile{}, err
	}
	p.Link = link.String
	p.Render = render.String
	p.Bio = bio.String
	if err := json.Unmarshal([]byte(attrs), &p.Attributes); err != nil {
		return Profile{}, fmt.Errorf("profile %s attributes: %w", p.Name, err)
	}
	p.New = isNew == 1
	p.Removed = removed == 1
	p.AddedAt = time.Unix(added, 0).UTC()
	return p, nil
}

// UpsertProfile stores a roster entry keyed by name. Seeing a profile again
// clears a pending removal.
func (d *DB) UpsertProfile(ctx context.Context, p Profile) (Change, error) {
	if p.Name == "" {
		return Change{}, fmt.Errorf("profile needs a name")
	}
	if p.Attributes == nil {
		p.Attributes = map[string]string{}
	}
	attrs, err := json.Marshal(p.Attributes)
	if err != nil {
		return Change{}, err
	}
	now := d.stamp()

	existing, err := scanProfile(d.sql.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM profiles WHERE name = ?", p.Name))
	if errors.Is(err, sql.ErrNoRows) {
		res, err := d.sql.ExecContext(ctx, `INSERT INTO profiles(name, link, render, bio, attributes, is_new, removed, added_at) VALUES(?,?,?,?,?,1,0,?)
ON CONFLICT(name) DO NOTHING`, p.Name, nullIfEmpty(p.Link), nullIfEmpty(p.Render), nullIfEmpty(p.Bio), string(attrs), now)
		if err != nil {
			return Change{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return Change{Type: ChangeUnchanged, Kind: "profile", Key: p.Name}, nil
		}
		return Change{OccurredAt: time.Unix(now, 0).UTC(), Type: ChangeAdded, Kind: "profile", Key: p.Name}, nil
	}
	if err != nil {
		return Change{}, err
	}

	if !existing.Removed && existing.Link == p.Link && existing.Render == p.Render && existing.Bio == p.Bio && sameAttributes(existing.Attributes, p.Attributes) {
		return Change{Type: ChangeUnchanged, Kind: "profile", Key: p.Name}, nil
	}
	_, err = d.sql.ExecContext(ctx, "UPDATE profiles SET link = ?, render = ?, bio = ?, attributes = ?, removed = 0, updated_at = ? WHERE id = ?",
		nullIfEmpty(p.Link), nullIfEmpty(p.Render), nullIfEmpty(p.Bio), string(attrs), now, existing.ID)
	if err != nil {
		return Change{}, err
	}
	return Change{OccurredAt: time.Unix(now, 0).UTC(), Type: ChangeUpdated, Kind: "profile", Key: p.Name}, nil
}

func sameAttributes(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// MarkRemovedProfiles flags every stored profile whose name is not in seen.
func (d *DB) MarkRemovedProfiles(ctx context.Context, seen []string) ([]Change, error) {
	keep := make(map[string]bool, len(seen))
	for _, n := range seen {
		keep[n] = true
	}
	rows, err := d.sql.QueryContext(ctx, "SELECT id, name FROM profiles WHERE removed = 0")
	if err != nil {
		return nil, err
	}
	type gone struct {
		id   int64
		name string
	}
	var stale []gone
	for rows.Next() {
		var g gone
		if err := rows.Scan(&g.id, &g.name); err != nil {
			rows.Close()
			return nil, err
		}
		if !keep[g.name] {
			stale = append(stale, g)
		}
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	now := d.stamp()
	var changes []Change
	for _, g := range stale {
		if _, err := d.sql.ExecContext(ctx, "UPDATE profiles SET removed = 1, updated_at = ? WHERE id = ?", now, g.id); err != nil {
			return changes, err
		}
		changes = append(changes, Change{OccurredAt: time.Unix(now, 0).UTC(), Type: ChangeRemoved, Kind: "profile", Key: g.name})
	}
	return changes, nil
}

// NewProfiles lists profiles still marked new.
func (d *DB) NewProfiles(ctx context.Context) ([]Profile, error) {
	return d.queryProfiles(ctx, "SELECT "+profileColumns+" FROM profiles WHERE is_new = 1 AND removed = 0 ORDER BY name")
}

// RemovedProfiles lists profiles flagged as removed and not yet deleted.
func (d *DB) RemovedProfiles(ctx context.Context) ([]Profile, error) {
	return d.queryProfiles(ctx, "SELECT "+profileColumns+" FROM profiles WHERE removed = 1 ORDER BY name")
}

// ClearNewProfiles drops the new marker of the given profiles.
func (d *DB) ClearNewProfiles(ctx context.Context, ids []int64) error {
	return d.clearNew(ctx, "profiles", ids)
}

// DeleteProfiles deletes the given profiles.
func (d *DB) DeleteProfiles(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		if _, err := d.sql.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", id); err != nil {
			return err
		}
	}
	return nil
}

// CountProfiles counts profiles not flagged as removed.
func (d *DB) CountProfiles(ctx context.Context) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM profiles WHERE removed = 0").Scan(&n)
	return n, err
}

func (d *DB) queryProfiles(ctx context.Context, query string, args ...any) ([]Profile, error) {
	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
