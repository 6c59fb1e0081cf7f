// Package polling runs one pass of each scraper against the database.
package polling

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/superjcast/showwatch/pkg/broadcast"
	"github.com/superjcast/showwatch/pkg/episodes"
	"github.com/superjcast/showwatch/pkg/listing"
	"github.com/superjcast/showwatch/pkg/metrics"
	"github.com/superjcast/showwatch/pkg/storage"
	"github.com/superjcast/showwatch/pkg/whttp"
)

// safetyThreshold is the stored row count above which an empty pass is
// treated as a scraping failure rather than a real removal.
const safetyThreshold = 10

func nopLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// ShowsConfig holds everything PollShows needs.
type ShowsConfig struct {
	DB      *storage.DB
	Client  *whttp.Client
	BaseURL string
	// Pages is the number of listing pages read per collection.
	Pages         int
	ScheduleHours int
	Metrics       metrics.Recorder // optional
	Log           logrus.FieldLogger
	Now           func() time.Time
}

// ShowsResult holds the outcome of one shows pass.
type ShowsResult struct {
	Changes      []storage.Change
	Purged       []storage.Show
	Unrecognized int
	FirstRun     map[storage.Collection]bool
}

type source struct {
	collection storage.Collection
	path       string
	hours      int
}

// PollShows reads the schedule and result listings, upserts every dated
// show, then purges scheduled shows that have started.
func PollShows(ctx context.Context, cfg ShowsConfig) (*ShowsResult, error) {
	log := cfg.Log
	if log == nil {
		log = nopLogger()
	}
	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.New(false)
	}
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	db := cfg.DB
	result := &ShowsResult{FirstRun: map[storage.Collection]bool{}}

	for _, src := range []source{
		{collection: storage.CollectionSchedule, path: "/schedule", hours: cfg.ScheduleHours},
		{collection: storage.CollectionResult, path: "/result"},
	} {
		count, err := db.CountShows(ctx, src.collection)
		if err != nil {
			return result, err
		}
		isFirstRun := count == 0
		result.FirstRun[src.collection] = isFirstRun

		n := &listing.Normalizer{BaseURL: cfg.BaseURL, Collection: src.collection, SpoilerHours: src.hours}
		shows, err := n.Fetch(ctx, cfg.Client, src.path, cfg.Pages, log)
		if err != nil {
			return result, err
		}

		// Safety check: an empty listing next to a populated table means the
		// page layout changed, not that every show was cancelled.
		if len(shows) == 0 && count > safetyThreshold {
			log.Errorf("Listing %s returned 0 shows, but database has %d. Skipping this collection.", src.path, count)
			continue
		}
		if isFirstRun && len(shows) > 0 {
			log.Infof("First poll for %s, populating database...", src.collection)
		}

		unrecognized := 0
		for _, s := range shows {
			if strings.HasPrefix(s.DateKey, "?") {
				unrecognized++
			}
			ch, err := db.UpsertShow(ctx, s)
			if err != nil {
				return result, fmt.Errorf("storing %s: %w", s.Name, err)
			}
			if ch.Type == storage.ChangeUnchanged {
				continue
			}
			rec.IncShowChanges(string(src.collection), string(ch.Type))
			result.Changes = append(result.Changes, ch)
			log.Debugf("Show %s: %s", ch.Type, ch.Key)
		}
		result.Unrecognized += unrecognized
		rec.IncUnrecognized(string(src.collection), unrecognized)

		if isFirstRun {
			if err := clearNewShows(ctx, db, src.collection); err != nil {
				return result, err
			}
		}
	}

	purged, err := db.PurgePast(ctx, now())
	if err != nil {
		return result, fmt.Errorf("purging past shows: %w", err)
	}
	for _, s := range purged {
		rec.IncShowChanges(string(s.Collection), string(storage.ChangeRemoved))
		log.Infof("Removed past show: %s (%s)", s.Name, s.DateKey)
	}
	result.Purged = purged
	return result, nil
}

func clearNewShows(ctx context.Context, db *storage.DB, c storage.Collection) error {
	fresh, err := db.NewShows(ctx, c)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(fresh))
	for _, s := range fresh {
		ids = append(ids, s.ID)
	}
	return db.ClearNewShows(ctx, ids)
}

// BroadcastConfig holds everything PollBroadcasts needs.
type BroadcastConfig struct {
	DB     *storage.DB
	Client *whttp.Client
	URL    string
	Log    logrus.FieldLogger
}

// PollBroadcasts reads the broadcast schedule and marks matching shows live.
func PollBroadcasts(ctx context.Context, cfg BroadcastConfig) ([]storage.Show, error) {
	log := cfg.Log
	if log == nil {
		log = nopLogger()
	}
	slots, err := broadcast.Fetch(ctx, cfg.Client, cfg.URL, log)
	if err != nil {
		return nil, err
	}
	c := &broadcast.Correlator{Store: cfg.DB, Log: log}
	return c.Apply(ctx, slots)
}

// EpisodesConfig holds everything PollEpisodes needs.
type EpisodesConfig struct {
	DB      *storage.DB
	Client  *whttp.Client
	FeedURL string
	Log     logrus.FieldLogger
}

// PollEpisodes upserts the feed items. The first population marks nothing
// new so the back catalogue is not announced.
func PollEpisodes(ctx context.Context, cfg EpisodesConfig) ([]storage.Change, error) {
	log := cfg.Log
	if log == nil {
		log = nopLogger()
	}
	db := cfg.DB
	count, err := db.CountEpisodes(ctx)
	if err != nil {
		return nil, err
	}
	eps, err := episodes.Fetch(ctx, cfg.Client, cfg.FeedURL)
	if err != nil {
		return nil, err
	}
	if count == 0 && len(eps) > 0 {
		log.Infof("First poll for episodes, populating database...")
	}

	var changes []storage.Change
	for _, e := range eps {
		ch, err := db.UpsertEpisode(ctx, e)
		if err != nil {
			return changes, fmt.Errorf("storing episode %s: %w", e.Link, err)
		}
		if ch.Type != storage.ChangeUnchanged {
			changes = append(changes, ch)
			log.Debugf("Episode %s: %s", ch.Type, e.Title)
		}
	}

	if count == 0 {
		fresh, err := db.NewEpisodes(ctx)
		if err != nil {
			return changes, err
		}
		ids := make([]int64, 0, len(fresh))
		for _, e := range fresh {
			ids = append(ids, e.ID)
		}
		if err := db.ClearNewEpisodes(ctx, ids); err != nil {
			return changes, err
		}
	}
	return changes, nil
}

// ProfilesConfig holds everything PollProfiles needs.
type ProfilesConfig struct {
	DB      *storage.DB
	Client  *whttp.Client
	BaseURL string
	Path    string
	Log     logrus.FieldLogger
}

// ProfilesResult holds the outcome of one profiles pass.
type ProfilesResult struct {
	Changes  []storage.Change
	Removed  []storage.Change
	FirstRun bool
}

// PollProfiles reads the roster and every profile page, then flags the
// profiles that disappeared.
func PollProfiles(ctx context.Context, cfg ProfilesConfig) (*ProfilesResult, error) {
	log := cfg.Log
	if log == nil {
		log = nopLogger()
	}
	db := cfg.DB
	result := &ProfilesResult{}

	count, err := db.CountProfiles(ctx)
	if err != nil {
		return result, err
	}
	result.FirstRun = count == 0

	profiles, err := listing.FetchProfiles(ctx, cfg.Client, cfg.BaseURL, cfg.Path, log)
	if err != nil {
		return result, err
	}

	// Safety check: if the roster comes back empty but DB has many, abort to
	// prevent flagging every profile as removed.
	if len(profiles) == 0 && count > safetyThreshold {
		log.Errorf("Roster returned 0 profiles, but database has %d. Aborting sync to prevent data loss.", count)
		return result, nil
	}

	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.Name)
		ch, err := db.UpsertProfile(ctx, p)
		if err != nil {
			return result, fmt.Errorf("storing profile %s: %w", p.Name, err)
		}
		if ch.Type != storage.ChangeUnchanged {
			result.Changes = append(result.Changes, ch)
		}
	}

	removed, err := db.MarkRemovedProfiles(ctx, names)
	if err != nil {
		return result, fmt.Errorf("flagging removed profiles: %w", err)
	}
	result.Removed = removed
	for _, r := range removed {
		log.Infof("Profile removed from roster: %s", r.Key)
	}

	if result.FirstRun {
		fresh, err := db.NewProfiles(ctx)
		if err != nil {
			return result, err
		}
		ids := make([]int64, 0, len(fresh))
		for _, p := range fresh {
			ids = append(ids, p.ID)
		}
		if err := db.ClearNewProfiles(ctx, ids); err != nil {
			return result, err
		}
	}
	return result, nil
}
