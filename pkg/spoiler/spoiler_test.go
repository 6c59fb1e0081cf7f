package spoiler

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superjcast/showwatch/pkg/datetime"
	"github.com/superjcast/showwatch/pkg/notify"
	"github.com/superjcast/showwatch/pkg/storage"
)

type fakeDispatcher struct {
	fail          error
	sent          []notify.Message
	topics        []string
	topicChannels []notify.Channel
}

func (f *fakeDispatcher) Name() string { return "fake" }

func (f *fakeDispatcher) Dispatch(_ context.Context, m notify.Message) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeDispatcher) SetTopic(_ context.Context, ch notify.Channel, topic string) error {
	f.topics = append(f.topics, topic)
	f.topicChannels = append(f.topicChannels, ch)
	return nil
}

type fixture struct {
	db   *storage.DB
	disp *fakeDispatcher
	mgr  *Manager
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "spoiler.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)
	f := &fixture{db: db, disp: &fakeDispatcher{}, now: time.Date(2022, 5, 15, 7, 57, 0, 0, time.UTC)}
	f.mgr = NewManager(db, f.disp, notify.NewFormatter("https://www.njpw1972.com"), Config{Lookahead: 5 * time.Minute, SpoilerMention: "<#1>"}, log)
	f.mgr.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) addShow(t *testing.T, c storage.Collection, name string, start time.Time, live bool) {
	t.Helper()
	_, err := f.db.UpsertShow(context.Background(), storage.Show{
		Collection: c, Name: name, DateKey: start.Format("2006-01-02"),
		Start: start, SourceTZ: datetime.TagUTC, SpoilerHours: 14,
	})
	require.NoError(t, err)
	if live {
		_, ok, err := f.db.MarkLive(context.Background(), start)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestPollOpensOncePerTitle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := time.Date(2022, 5, 15, 8, 0, 0, 0, time.UTC)
	f.addShow(t, storage.CollectionSchedule, "Wrestling Dontaku", start, true)
	f.addShow(t, storage.CollectionSchedule, "Not Streamed", start.Add(time.Minute), false)

	require.NoError(t, f.mgr.Poll(ctx))
	require.NoError(t, f.mgr.Poll(ctx))
	f.now = f.now.Add(4 * time.Minute)
	require.NoError(t, f.mgr.Poll(ctx))

	require.Len(t, f.disp.sent, 1)
	msg := f.disp.sent[0]
	assert.Equal(t, notify.ChannelGeneral, msg.Channel)
	assert.Equal(t, "@here **Wrestling Dontaku** starting soon. Head to <#1> for spoiler chat.", msg.Content)
	require.NotNil(t, msg.Summary)
	assert.Equal(t, "Wrestling Dontaku", msg.Summary.Title)
	assert.Equal(t, []string{"Wrestling Dontaku"}, f.disp.topics)

	e, err := f.db.GetEmbargo(ctx, "Wrestling Dontaku")
	require.NoError(t, err)
	assert.True(t, e.EndsAt.Equal(start.Add(14*time.Hour)))
	assert.Equal(t, storage.ModePrimary, e.Mode)
}

func TestPollOpensSecondaryForOtherShows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addShow(t, storage.CollectionOther, "AEW Dynamite", f.now.Add(2*time.Minute), false)

	require.NoError(t, f.mgr.Poll(ctx))
	require.Len(t, f.disp.sent, 1)
	assert.Equal(t, notify.ChannelOther, f.disp.sent[0].Channel)
	assert.Contains(t, f.disp.sent[0].Content, "#non-njpw-spoilers")
	assert.Equal(t, []string{"AEW Dynamite"}, f.disp.topics)
	require.Len(t, f.disp.topicChannels, 1)
	assert.Equal(t, notify.ChannelOtherSpoiler, f.disp.topicChannels[0])
}

func TestPollClosesExpiredWithinOnePoll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _, err := f.db.CreateEmbargo(ctx, storage.Embargo{Title: "Old", Mode: storage.ModePrimary, EndsAt: f.now.Add(-time.Second)})
	require.NoError(t, err)
	_, _, err = f.db.CreateEmbargo(ctx, storage.Embargo{Title: "Other Old", Mode: storage.ModeSecondary, EndsAt: f.now.Add(-time.Hour)})
	require.NoError(t, err)
	next := f.now.Add(48 * time.Hour)
	f.addShow(t, storage.CollectionSchedule, "Dominion", next, false)

	require.NoError(t, f.mgr.Poll(ctx))

	left, err := f.db.ActiveEmbargoes(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, left)

	require.Len(t, f.disp.sent, 2)
	assert.Equal(t, notify.ChannelOther, f.disp.sent[0].Channel)
	assert.Equal(t, "@here **Other Old** _#spoiler-zone_ time has ended. Spoil away.", f.disp.sent[0].Content)
	assert.Equal(t, "@here **Old** _#spoiler-zone_ time has ended. Spoil away.\n\nNext show:", f.disp.sent[1].Content)
	require.NotNil(t, f.disp.sent[1].Summary)
	assert.Equal(t, "Dominion", f.disp.sent[1].Summary.Title)
}

func TestCloseListsOtherActiveEmbargoes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, e := range []storage.Embargo{
		{Title: "Ending", Mode: storage.ModePrimary, EndsAt: f.now.Add(-time.Minute)},
		{Title: "Late", Mode: storage.ModePrimary, EndsAt: f.now.Add(5 * time.Hour)},
		{Title: "Early", Mode: storage.ModePrimary, EndsAt: f.now.Add(time.Hour)},
		{Title: "Secondary", Mode: storage.ModeSecondary, EndsAt: f.now.Add(time.Hour)},
	} {
		_, _, err := f.db.CreateEmbargo(ctx, e)
		require.NoError(t, err)
	}

	require.NoError(t, f.mgr.Poll(ctx))
	require.Len(t, f.disp.sent, 3)
	assert.Equal(t, "@here **Ending** _#spoiler-zone_ time has ended. Spoil away.\nOngoing spoiler embargo:", f.disp.sent[0].Content)
	assert.Equal(t, "Early", f.disp.sent[1].Summary.Title)
	assert.Equal(t, "Late", f.disp.sent[2].Summary.Title)
}

func TestFailedCloseKeepsRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _, err := f.db.CreateEmbargo(ctx, storage.Embargo{Title: "Old", Mode: storage.ModeSecondary, EndsAt: f.now.Add(-time.Minute)})
	require.NoError(t, err)

	f.disp.fail = errors.New("discord down")
	assert.Error(t, f.mgr.Poll(ctx))
	_, err = f.db.GetEmbargo(ctx, "Old")
	require.NoError(t, err)

	f.disp.fail = nil
	require.NoError(t, f.mgr.Poll(ctx))
	_, err = f.db.GetEmbargo(ctx, "Old")
	assert.ErrorIs(t, err, storage.ErrEmbargoNotFound)
}

func TestFailedOpenIsRetried(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addShow(t, storage.CollectionSchedule, "Dontaku", f.now.Add(time.Minute), true)

	f.disp.fail = errors.New("discord down")
	assert.Error(t, f.mgr.Poll(ctx))
	_, err := f.db.GetEmbargo(ctx, "Dontaku")
	assert.ErrorIs(t, err, storage.ErrEmbargoNotFound)

	f.disp.fail = nil
	require.NoError(t, f.mgr.Poll(ctx))
	assert.Len(t, f.disp.sent, 1)
}

func TestManualOpenAndEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	e, err := f.mgr.Open(ctx, "G1 Climax Final", storage.ModePrimary, 6, "")
	require.NoError(t, err)
	assert.True(t, e.EndsAt.Equal(f.now.Add(6*time.Hour)))

	_, err = f.mgr.Open(ctx, "G1 Climax Final", storage.ModePrimary, 6, "")
	assert.ErrorIs(t, err, storage.ErrEmbargoExists)

	_, err = f.mgr.Open(ctx, "Zero", storage.ModePrimary, 0, "")
	assert.Error(t, err)

	require.NoError(t, f.mgr.End(ctx, "G1 Climax Final"))
	assert.ErrorIs(t, f.mgr.End(ctx, "G1 Climax Final"), storage.ErrEmbargoNotFound)

	require.Len(t, f.disp.sent, 2)
	assert.Equal(t, "@here **G1 Climax Final** _#spoiler-zone_ time has ended. Spoil away.", f.disp.sent[1].Content)

	active, err := f.mgr.Active(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestManualEndIsNotReopenedByPoll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.now = time.Date(2022, 5, 15, 7, 58, 0, 0, time.UTC)
	start := time.Date(2022, 5, 15, 8, 0, 0, 0, time.UTC)
	f.addShow(t, storage.CollectionSchedule, "Wrestling Dontaku", start, true)

	require.NoError(t, f.mgr.Poll(ctx))
	f.now = time.Date(2022, 5, 15, 9, 0, 0, 0, time.UTC)
	require.NoError(t, f.mgr.End(ctx, "Wrestling Dontaku"))
	f.now = f.now.Add(3*time.Minute + 30*time.Second)
	require.NoError(t, f.mgr.Poll(ctx))

	require.Len(t, f.disp.sent, 2)
	assert.Contains(t, f.disp.sent[0].Content, "starting soon")
	assert.Contains(t, f.disp.sent[1].Content, "time has ended")
	_, err := f.db.GetEmbargo(ctx, "Wrestling Dontaku")
	assert.ErrorIs(t, err, storage.ErrEmbargoNotFound)
}

func TestPollSkipsShowsWithUnknownZone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	start := f.now.Add(2 * time.Minute)
	_, err := f.db.UpsertShow(ctx, storage.Show{
		Collection: storage.CollectionOther, Name: "Naive Show", DateKey: start.Format("2006-01-02"),
		Start: start, SourceTZ: datetime.TagLocal, SpoilerHours: 3,
	})
	require.NoError(t, err)

	require.NoError(t, f.mgr.Poll(ctx))
	assert.Empty(t, f.disp.sent)
}
