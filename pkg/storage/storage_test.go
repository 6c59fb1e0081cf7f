package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superjcast/showwatch/pkg/datetime"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func scheduled(name string, start time.Time) Show {
	return Show{
		Collection:   CollectionSchedule,
		Name:         name,
		DateKey:      start.Format("2006-01-02"),
		Start:        start,
		SourceTZ:     datetime.TagUTC,
		City:         "Tokyo",
		Venue:        "Korakuen Hall",
		SpoilerHours: 14,
	}
}

func TestUpsertShowIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	clock := time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC)
	db.SetClock(func() time.Time { return clock })

	s := scheduled("BEST OF THE SUPER Jr.29", time.Date(2022, 5, 15, 8, 0, 0, 0, time.UTC))
	ch, err := db.UpsertShow(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, ChangeAdded, ch.Type)

	clock = clock.Add(time.Hour)
	ch, err = db.UpsertShow(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, ChangeUnchanged, ch.Type)

	shows, err := db.ListShows(ctx, CollectionSchedule)
	require.NoError(t, err)
	require.Len(t, shows, 1)
	assert.True(t, shows[0].New)
	assert.True(t, shows[0].UpdatedAt.IsZero(), "identical upsert must not stamp updated_at")
	assert.Equal(t, "Korakuen Hall", shows[0].Venue)
}

func TestUpsertShowUpdatesChangedFields(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	s := scheduled("NEW JAPAN CUP", time.Date(2022, 3, 1, 9, 0, 0, 0, time.UTC))
	_, err := db.UpsertShow(ctx, s)
	require.NoError(t, err)

	ids := []int64{}
	all, err := db.NewShows(ctx, CollectionSchedule)
	require.NoError(t, err)
	for _, x := range all {
		ids = append(ids, x.ID)
	}
	require.NoError(t, db.ClearNewShows(ctx, ids))

	s.Venue = "Ryogoku Kokugikan"
	ch, err := db.UpsertShow(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, ChangeUpdated, ch.Type)

	got, err := db.ListShows(ctx, CollectionSchedule)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ryogoku Kokugikan", got[0].Venue)
	assert.False(t, got[0].New, "update must not re-mark new")
	assert.False(t, got[0].UpdatedAt.IsZero())
}

func TestUpsertShowSameNameOtherDateOrCollection(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	a := scheduled("Tour", time.Date(2022, 6, 1, 9, 0, 0, 0, time.UTC))
	b := scheduled("Tour", time.Date(2022, 6, 2, 9, 0, 0, 0, time.UTC))
	c := a
	c.Collection = CollectionResult
	for _, s := range []Show{a, b, c} {
		ch, err := db.UpsertShow(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, ChangeAdded, ch.Type)
	}
	n, err := db.CountShows(ctx, CollectionSchedule)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpsertShowRejectsBadInput(t *testing.T) {
	db := openTestDB(t)
	_, err := db.UpsertShow(context.Background(), Show{Collection: "bogus", Name: "x", DateKey: "2022-01-01"})
	assert.Error(t, err)
	_, err = db.UpsertShow(context.Background(), Show{Collection: CollectionSchedule, DateKey: "2022-01-01"})
	assert.Error(t, err)
}

func TestPurgePast(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	now := time.Date(2022, 6, 10, 12, 0, 0, 0, time.UTC)

	past := scheduled("Past", now.Add(-time.Hour))
	exact := scheduled("Exact", now)
	future := scheduled("Future", now.Add(time.Hour))
	result := past
	result.Collection = CollectionResult
	other := past
	other.Collection = CollectionOther
	unresolved := Show{Collection: CollectionSchedule, Name: "TBA", DateKey: "?TBA", SourceTZ: datetime.TagNone}
	naiveRecent := scheduled("Naive Recent", now.Add(-time.Hour))
	naiveRecent.SourceTZ = datetime.TagLocal
	naiveOld := scheduled("Naive Old", now.Add(-15*time.Hour))
	naiveOld.SourceTZ = datetime.TagLocal

	for _, s := range []Show{past, exact, future, result, other, unresolved, naiveRecent, naiveOld} {
		_, err := db.UpsertShow(ctx, s)
		require.NoError(t, err)
	}

	purged, err := db.PurgePast(ctx, now)
	require.NoError(t, err)
	var names []string
	for _, s := range purged {
		names = append(names, string(s.Collection)+"/"+s.Name)
	}
	assert.ElementsMatch(t, []string{"schedule/Past", "schedule/Exact", "other/Past", "schedule/Naive Old"}, names)

	left, err := db.ListShows(ctx, CollectionSchedule)
	require.NoError(t, err)
	require.Len(t, left, 3)
	assert.Equal(t, "Naive Recent", left[0].Name)
	assert.Equal(t, "Future", left[1].Name)
	assert.Equal(t, "TBA", left[2].Name)

	n, err := db.CountShows(ctx, CollectionResult)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMarkLiveMonotonic(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	at := time.Date(2022, 5, 15, 8, 0, 0, 0, time.UTC)
	_, err := db.UpsertShow(ctx, scheduled("Wrestling Dontaku", at))
	require.NoError(t, err)

	s, ok, err := db.MarkLive(ctx, at)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, s.Live)

	_, ok, err = db.MarkLive(ctx, at)
	require.NoError(t, err)
	assert.False(t, ok, "already live is a no-op")

	_, ok, err = db.MarkLive(ctx, at.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "no match is a no-op")

	// A rescrape does not reset the flag.
	_, err = db.UpsertShow(ctx, scheduled("Wrestling Dontaku", at))
	require.NoError(t, err)
	got, err := db.GetShow(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.Live)
}

func TestStartingShows(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	now := time.Date(2022, 5, 15, 7, 57, 0, 0, time.UTC)

	soon := scheduled("Soon", now.Add(3*time.Minute))
	later := scheduled("Later", now.Add(time.Hour))
	over := scheduled("Over", now.Add(-15*time.Hour))
	running := scheduled("Running", now.Add(-2*time.Hour))
	dateOnly := scheduled("DateOnly", now)
	dateOnly.SourceTZ = datetime.TagNone
	naive := scheduled("Naive", now.Add(time.Minute))
	naive.SourceTZ = datetime.TagLocal
	for _, s := range []Show{soon, later, over, running, dateOnly, naive} {
		_, err := db.UpsertShow(ctx, s)
		require.NoError(t, err)
	}

	names := func() []string {
		got, err := db.StartingShows(ctx, CollectionSchedule, now, 5*time.Minute)
		require.NoError(t, err)
		var out []string
		for _, s := range got {
			out = append(out, s.Name)
		}
		return out
	}
	all := names()
	assert.Equal(t, []string{"Running", "Soon"}, all)

	got, err := db.StartingShows(ctx, CollectionSchedule, now, 5*time.Minute)
	require.NoError(t, err)
	require.NoError(t, db.MarkEmbargoed(ctx, got[0].ID))
	assert.Equal(t, []string{"Soon"}, names())

	// A rescrape keeps the marker.
	_, err = db.UpsertShow(ctx, running)
	require.NoError(t, err)
	reloaded, err := db.GetShow(ctx, got[0].ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Embargoed)
}

func TestEmbargoTitleUnique(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	ends := time.Date(2022, 5, 15, 22, 0, 0, 0, time.UTC)

	e, created, err := db.CreateEmbargo(ctx, Embargo{Title: "Dominion", Mode: ModePrimary, EndsAt: ends})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, e.ID)

	_, created, err = db.CreateEmbargo(ctx, Embargo{Title: "Dominion", Mode: ModeSecondary, EndsAt: ends.Add(time.Hour)})
	require.NoError(t, err)
	assert.False(t, created)

	all, err := db.ActiveEmbargoes(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, ModePrimary, all[0].Mode)
	assert.True(t, all[0].EndsAt.Equal(ends))
}

func TestEmbargoExpiryAndDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	now := time.Date(2022, 5, 16, 0, 0, 0, 0, time.UTC)

	for _, e := range []Embargo{
		{Title: "B", Mode: ModePrimary, EndsAt: now.Add(-time.Hour)},
		{Title: "A", Mode: ModePrimary, EndsAt: now.Add(-2 * time.Hour)},
		{Title: "Exact", Mode: ModeSecondary, EndsAt: now},
		{Title: "Later", Mode: ModePrimary, EndsAt: now.Add(time.Hour)},
	} {
		_, _, err := db.CreateEmbargo(ctx, e)
		require.NoError(t, err)
	}

	expired, err := db.ExpiredEmbargoes(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, "A", expired[0].Title)
	assert.Equal(t, "B", expired[1].Title)

	require.NoError(t, db.DeleteEmbargo(ctx, "A"))
	assert.ErrorIs(t, db.DeleteEmbargo(ctx, "A"), ErrEmbargoNotFound)
	_, err = db.GetEmbargo(ctx, "A")
	assert.ErrorIs(t, err, ErrEmbargoNotFound)

	primary, err := db.ActiveEmbargoes(ctx, ModePrimary)
	require.NoError(t, err)
	require.Len(t, primary, 2)
	assert.Equal(t, "B", primary[0].Title)
}

func TestEpisodesAndProfiles(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	ep := Episode{Link: "https://pod.example/1", Title: "Ep 1", Published: time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC)}
	ch, err := db.UpsertEpisode(ctx, ep)
	require.NoError(t, err)
	assert.Equal(t, ChangeAdded, ch.Type)
	ch, err = db.UpsertEpisode(ctx, ep)
	require.NoError(t, err)
	assert.Equal(t, ChangeUnchanged, ch.Type)
	ep.Title = "Ep 1 (fixed)"
	ch, err = db.UpsertEpisode(ctx, ep)
	require.NoError(t, err)
	assert.Equal(t, ChangeUpdated, ch.Type)

	for _, name := range []string{"Hiroshi Tanahashi", "Kazuchika Okada"} {
		_, err := db.UpsertProfile(ctx, Profile{Name: name, Attributes: map[string]string{"height": "181cm"}})
		require.NoError(t, err)
	}
	ch, err = db.UpsertProfile(ctx, Profile{Name: "Hiroshi Tanahashi", Attributes: map[string]string{"height": "181cm"}})
	require.NoError(t, err)
	assert.Equal(t, ChangeUnchanged, ch.Type)

	removed, err := db.MarkRemovedProfiles(ctx, []string{"Hiroshi Tanahashi"})
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "Kazuchika Okada", removed[0].Key)

	gone, err := db.RemovedProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, gone, 1)
	assert.Equal(t, "181cm", gone[0].Attributes["height"])

	st, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Episodes)
	assert.Equal(t, 1, st.Profiles)
	assert.Equal(t, 1, st.RemovedPending)

	require.NoError(t, db.DeleteProfiles(ctx, []int64{gone[0].ID}))
	n, err := db.CountProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNormalizeLink(t *testing.T) {
	tests := []struct{ base, ref, want string }{
		{"https://www.njpw1972.com", "/wp-content/themes/njpw-en/images/common/noimage_poster.jpg", "https://www.njpw1972.com/wp-content/themes/njpw-en/images/common/noimage_poster.jpg"},
		{"https://www.njpw1972.com", "https://WWW.Example.com:443/x", "https://www.example.com/x"},
		{"https://www.njpw1972.com", "", ""},
	}
	for _, tt := range tests {
		if got := NormalizeLink(tt.base, tt.ref); got != tt.want {
			t.Fatalf("NormalizeLink(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.want)
		}
	}
}

func TestDateKey(t *testing.T) {
	r := datetime.Resolve("SUN. MAY. 15. 2022 | DOOR 15:30 | BELL 17:00")
	if got := DateKey(r, ""); got != "2022-05-15" {
		t.Fatalf("DateKey = %q", got)
	}
	if got := DateKey(datetime.Result{}, " SUN.  MAY. 15 "); got != "?SUN. MAY. 15" {
		t.Fatalf("DateKey unresolved = %q", got)
	}
}
