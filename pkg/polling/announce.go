package polling

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/superjcast/showwatch/pkg/notify"
	"github.com/superjcast/showwatch/pkg/storage"
)

const (
	NewShowsText       = "New show(s) added to the schedule:"
	NewProfilesText    = "New Profile(s) Added: "
	RemovedProfileText = "Profile(s) Removed: "
	NewEpisodeText     = "@here New Pod!"
)

// AnnounceConfig holds everything the announcers need.
type AnnounceConfig struct {
	DB         *storage.DB
	Dispatcher notify.Dispatcher
	Format     *notify.Formatter
	Log        logrus.FieldLogger
}

// Announce posts new scheduled shows, new profiles and removed profiles.
// Markers are cleared, and removed profiles deleted, only after their
// messages went out, so a failed batch is retried on the next run.
func Announce(ctx context.Context, cfg AnnounceConfig) error {
	if cfg.Log == nil {
		cfg.Log = nopLogger()
	}
	return errors.Join(
		announceShows(ctx, cfg),
		announceNewProfiles(ctx, cfg),
		announceRemovedProfiles(ctx, cfg),
	)
}

func send(ctx context.Context, d notify.Dispatcher, ch notify.Channel, header string, summaries []*notify.Summary) error {
	if err := d.Dispatch(ctx, notify.Message{Channel: ch, Content: header}); err != nil {
		return err
	}
	for _, s := range summaries {
		if err := d.Dispatch(ctx, notify.Message{Channel: ch, Summary: s}); err != nil {
			return err
		}
	}
	return nil
}

func announceShows(ctx context.Context, cfg AnnounceConfig) error {
	shows, err := cfg.DB.NewShows(ctx, storage.CollectionSchedule)
	if err != nil || len(shows) == 0 {
		return err
	}
	sums := make([]*notify.Summary, 0, len(shows))
	ids := make([]int64, 0, len(shows))
	for _, s := range shows {
		sums = append(sums, cfg.Format.Show(s))
		ids = append(ids, s.ID)
	}
	if err := send(ctx, cfg.Dispatcher, notify.ChannelGeneral, NewShowsText, sums); err != nil {
		return fmt.Errorf("announcing new shows: %w", err)
	}
	cfg.Log.Infof("Announced %d new show(s)", len(shows))
	return cfg.DB.ClearNewShows(ctx, ids)
}

func announceNewProfiles(ctx context.Context, cfg AnnounceConfig) error {
	profiles, err := cfg.DB.NewProfiles(ctx)
	if err != nil || len(profiles) == 0 {
		return err
	}
	sums := make([]*notify.Summary, 0, len(profiles))
	ids := make([]int64, 0, len(profiles))
	for _, p := range profiles {
		sums = append(sums, cfg.Format.Profile(p))
		ids = append(ids, p.ID)
	}
	if err := send(ctx, cfg.Dispatcher, notify.ChannelGeneral, NewProfilesText, sums); err != nil {
		return fmt.Errorf("announcing new profiles: %w", err)
	}
	cfg.Log.Infof("Announced %d new profile(s)", len(profiles))
	return cfg.DB.ClearNewProfiles(ctx, ids)
}

func announceRemovedProfiles(ctx context.Context, cfg AnnounceConfig) error {
	profiles, err := cfg.DB.RemovedProfiles(ctx)
	if err != nil || len(profiles) == 0 {
		return err
	}
	sums := make([]*notify.Summary, 0, len(profiles))
	ids := make([]int64, 0, len(profiles))
	for _, p := range profiles {
		sums = append(sums, cfg.Format.Profile(p))
		ids = append(ids, p.ID)
	}
	if err := send(ctx, cfg.Dispatcher, notify.ChannelGeneral, RemovedProfileText, sums); err != nil {
		return fmt.Errorf("announcing removed profiles: %w", err)
	}
	cfg.Log.Infof("Announced %d removed profile(s)", len(profiles))
	return cfg.DB.DeleteProfiles(ctx, ids)
}

// AnnounceEpisodes posts every episode still marked new, oldest first.
func AnnounceEpisodes(ctx context.Context, cfg AnnounceConfig) error {
	if cfg.Log == nil {
		cfg.Log = nopLogger()
	}
	eps, err := cfg.DB.NewEpisodes(ctx)
	if err != nil {
		return err
	}
	for i := len(eps) - 1; i >= 0; i-- {
		e := eps[i]
		if err := cfg.Dispatcher.Dispatch(ctx, notify.Message{
			Channel: notify.ChannelPodcast,
			Content: NewEpisodeText,
			Summary: cfg.Format.Episode(e),
		}); err != nil {
			return fmt.Errorf("announcing episode %s: %w", e.Title, err)
		}
		if err := cfg.DB.ClearNewEpisodes(ctx, []int64{e.ID}); err != nil {
			return err
		}
		cfg.Log.Infof("Announced episode: %s", e.Title)
	}
	return nil
}
