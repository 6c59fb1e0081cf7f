// Package spoiler opens and closes spoiler embargoes around live shows.
//
// An embargo opens when a live show is about to start and closes once its
// window has passed. A failed announcement in either direction leaves the
// store as it was before the poll, so the next poll retries it.
package spoiler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/superjcast/showwatch/pkg/notify"
	"github.com/superjcast/showwatch/pkg/storage"
)

// Store is the slice of the repository the manager uses.
type Store interface {
	StartingShows(ctx context.Context, c storage.Collection, now time.Time, lookahead time.Duration) ([]storage.Show, error)
	MarkEmbargoed(ctx context.Context, id int64) error
	NextShows(ctx context.Context, c storage.Collection, after time.Time, limit int) ([]storage.Show, error)
	CreateEmbargo(ctx context.Context, e storage.Embargo) (storage.Embargo, bool, error)
	GetEmbargo(ctx context.Context, title string) (storage.Embargo, error)
	DeleteEmbargo(ctx context.Context, title string) error
	ExpiredEmbargoes(ctx context.Context, now time.Time) ([]storage.Embargo, error)
	ActiveEmbargoes(ctx context.Context, mode storage.Mode) ([]storage.Embargo, error)
}

type Config struct {
	// Lookahead is how long before its start a show opens an embargo.
	Lookahead time.Duration
	// SpoilerMention and OtherSpoilerMention name the discussion channels in
	// opening announcements.
	SpoilerMention      string
	OtherSpoilerMention string
}

type Manager struct {
	store    Store
	dispatch notify.Dispatcher
	format   *notify.Formatter
	cfg      Config
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewManager(store Store, dispatch notify.Dispatcher, format *notify.Formatter, cfg Config, log logrus.FieldLogger) *Manager {
	if cfg.SpoilerMention == "" {
		cfg.SpoilerMention = "#spoiler-zone"
	}
	if cfg.OtherSpoilerMention == "" {
		cfg.OtherSpoilerMention = "#non-njpw-spoilers"
	}
	return &Manager{store: store, dispatch: dispatch, format: format, cfg: cfg, log: log, now: time.Now}
}

// SetClock replaces the manager's clock.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// Poll runs one open pass and one close pass. A failure in one pass does
// not skip the other.
func (m *Manager) Poll(ctx context.Context) error {
	now := m.now().UTC()
	return errors.Join(m.openDue(ctx, now), m.closeExpired(ctx, now))
}

func (m *Manager) openDue(ctx context.Context, now time.Time) error {
	var errs []error

	primary, err := m.store.StartingShows(ctx, storage.CollectionSchedule, now, m.cfg.Lookahead)
	if err != nil {
		return fmt.Errorf("listing starting shows: %w", err)
	}
	for _, s := range primary {
		if !s.Live {
			continue
		}
		if err := m.openForShow(ctx, s, storage.ModePrimary); err != nil {
			errs = append(errs, err)
		}
	}

	other, err := m.store.StartingShows(ctx, storage.CollectionOther, now, m.cfg.Lookahead)
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("listing starting other shows: %w", err))...)
	}
	for _, s := range other {
		if err := m.openForShow(ctx, s, storage.ModeSecondary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) openForShow(ctx context.Context, s storage.Show, mode storage.Mode) error {
	e := storage.Embargo{
		Title:  s.Name,
		Mode:   mode,
		EndsAt: s.Start.Add(time.Duration(s.SpoilerHours) * time.Hour),
		Thumb:  s.Thumb,
	}
	_, err := m.open(ctx, e)
	if err != nil && !errors.Is(err, storage.ErrEmbargoExists) {
		return err
	}
	// A marked show is never offered again, so a manual End sticks.
	if err := m.store.MarkEmbargoed(ctx, s.ID); err != nil {
		return fmt.Errorf("marking %q embargoed: %w", s.Name, err)
	}
	return nil
}

// open creates the embargo and announces it. The record is created first so
// that the uniqueness guard decides who announces; if the announcement
// fails the record is removed again and the next poll retries.
func (m *Manager) open(ctx context.Context, e storage.Embargo) (storage.Embargo, error) {
	created, ok, err := m.store.CreateEmbargo(ctx, e)
	if err != nil {
		return storage.Embargo{}, fmt.Errorf("creating embargo %q: %w", e.Title, err)
	}
	if !ok {
		return storage.Embargo{}, fmt.Errorf("%w: %s", storage.ErrEmbargoExists, e.Title)
	}
	if err := m.announceOpen(ctx, created); err != nil {
		if derr := m.store.DeleteEmbargo(ctx, created.Title); derr != nil {
			m.log.Errorf("Could not roll back embargo %q: %v", created.Title, derr)
		}
		return storage.Embargo{}, fmt.Errorf("announcing embargo %q: %w", created.Title, err)
	}
	m.log.WithField("mode", created.Mode).Infof("Spoiler embargo opened for %s until %s", created.Title, created.EndsAt.Format(time.RFC3339))
	return created, nil
}

func (m *Manager) announceOpen(ctx context.Context, e storage.Embargo) error {
	announce, topic, mention := notify.ChannelGeneral, notify.ChannelSpoiler, m.cfg.SpoilerMention
	if e.Mode == storage.ModeSecondary {
		announce, topic, mention = notify.ChannelOther, notify.ChannelOtherSpoiler, m.cfg.OtherSpoilerMention
	}
	if err := m.dispatch.Dispatch(ctx, notify.Message{
		Channel: announce,
		Content: OpeningText(e.Title, mention),
		Summary: m.format.Embargo(e),
	}); err != nil {
		return err
	}
	if err := m.dispatch.SetTopic(ctx, topic, e.Title); err != nil {
		// Topic failures do not undo the announcement.
		m.log.Warnf("Could not set %s channel topic to %q: %v", topic, e.Title, err)
	}
	return nil
}

func (m *Manager) closeExpired(ctx context.Context, now time.Time) error {
	expired, err := m.store.ExpiredEmbargoes(ctx, now)
	if err != nil {
		return fmt.Errorf("listing expired embargoes: %w", err)
	}
	var errs []error
	for _, e := range expired {
		if err := m.close(ctx, e, now); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// close announces the end of e and then deletes it. A failed announcement
// leaves the record for the next poll.
func (m *Manager) close(ctx context.Context, e storage.Embargo, now time.Time) error {
	msgs, err := m.closingMessages(ctx, e, now)
	if err != nil {
		return fmt.Errorf("building close notice for %q: %w", e.Title, err)
	}
	for _, msg := range msgs {
		if err := m.dispatch.Dispatch(ctx, msg); err != nil {
			return fmt.Errorf("announcing end of %q: %w", e.Title, err)
		}
	}
	if err := m.store.DeleteEmbargo(ctx, e.Title); err != nil {
		return fmt.Errorf("deleting embargo %q: %w", e.Title, err)
	}
	m.log.WithField("mode", e.Mode).Infof("Spoiler embargo ended for %s", e.Title)
	return nil
}

func (m *Manager) closingMessages(ctx context.Context, e storage.Embargo, now time.Time) ([]notify.Message, error) {
	if e.Mode == storage.ModeSecondary {
		return []notify.Message{{Channel: notify.ChannelOther, Content: ClosingText(e.Title, "")}}, nil
	}

	active, err := m.store.ActiveEmbargoes(ctx, storage.ModePrimary)
	if err != nil {
		return nil, err
	}
	var others []storage.Embargo
	for _, a := range active {
		if a.Title != e.Title {
			others = append(others, a)
		}
	}

	if len(others) == 0 {
		next, err := m.store.NextShows(ctx, storage.CollectionSchedule, now, 1)
		if err != nil {
			return nil, err
		}
		if len(next) == 0 {
			return []notify.Message{{Channel: notify.ChannelGeneral, Content: ClosingText(e.Title, "")}}, nil
		}
		return []notify.Message{{
			Channel: notify.ChannelGeneral,
			Content: ClosingText(e.Title, "\n\nNext show:"),
			Summary: m.format.Show(next[0]),
		}}, nil
	}

	msgs := []notify.Message{{Channel: notify.ChannelGeneral, Content: ClosingText(e.Title, "\nOngoing spoiler embargo:")}}
	for _, o := range others {
		msgs = append(msgs, notify.Message{Channel: notify.ChannelGeneral, Summary: m.format.Embargo(o)})
	}
	return msgs, nil
}

// Open creates an embargo outside the polling cycle. It fails with
// storage.ErrEmbargoExists when the title already has one.
func (m *Manager) Open(ctx context.Context, title string, mode storage.Mode, hours int, thumb string) (storage.Embargo, error) {
	if hours <= 0 {
		return storage.Embargo{}, fmt.Errorf("embargo length must be positive, got %d hours", hours)
	}
	now := m.now().UTC()
	return m.open(ctx, storage.Embargo{
		Title:  title,
		Mode:   mode,
		EndsAt: now.Add(time.Duration(hours) * time.Hour),
		Thumb:  thumb,
	})
}

// End closes an embargo now, with the same announcement as an expiry. It
// fails with storage.ErrEmbargoNotFound when the title has none.
func (m *Manager) End(ctx context.Context, title string) error {
	e, err := m.store.GetEmbargo(ctx, title)
	if err != nil {
		return err
	}
	return m.close(ctx, e, m.now().UTC())
}

// Active lists current embargoes, earliest end first.
func (m *Manager) Active(ctx context.Context) ([]storage.Embargo, error) {
	return m.store.ActiveEmbargoes(ctx, "")
}

func OpeningText(title, mention string) string {
	return fmt.Sprintf("@here **%s** starting soon. Head to %s for spoiler chat.", title, mention)
}

func ClosingText(title, tail string) string {
	return fmt.Sprintf("@here **%s** _#spoiler-zone_ time has ended. Spoil away.%s", title, tail)
}
