package tasks

import (
	"context"
	"errors"

	"github.com/superjcast/showwatch/internal/app"
	"github.com/superjcast/showwatch/pkg/polling"
	"github.com/superjcast/showwatch/pkg/storage"
)

const (
	TaskShows      = "shows"
	TaskBroadcasts = "broadcasts"
	TaskProfiles   = "profiles"
	TaskEpisodes   = "episodes"
	TaskSpoiler    = "spoiler"
	TaskAnnounce   = "announce"
)

// Jobs builds every periodic task from env.
func Jobs(env *app.Env) []Job {
	iv := env.Config.Intervals
	return []Job{
		{Name: TaskShows, Every: iv.Shows, Run: ShowsTask(env)},
		{Name: TaskBroadcasts, Every: iv.Broadcasts, Run: BroadcastsTask(env)},
		{Name: TaskProfiles, Every: iv.Profiles, Run: ProfilesTask(env)},
		{Name: TaskEpisodes, Every: iv.Episodes, Run: EpisodesTask(env)},
		{Name: TaskSpoiler, Every: iv.Spoiler, Run: SpoilerTask(env)},
		{Name: TaskAnnounce, Every: iv.Announce, Run: AnnounceTask(env)},
	}
}

// ByName returns the job called name, if any.
func ByName(jobs []Job, name string) (Job, bool) {
	for _, j := range jobs {
		if j.Name == name {
			return j, true
		}
	}
	return Job{}, false
}

func ShowsTask(env *app.Env) func(context.Context) error {
	return func(ctx context.Context) error {
		res, err := polling.PollShows(ctx, polling.ShowsConfig{
			DB:            env.DB,
			Client:        env.HTTP,
			BaseURL:       env.Config.Source.BaseURL,
			Pages:         env.Config.Source.Pages,
			ScheduleHours: env.Config.Spoiler.ScheduleHours,
			Metrics:       env.Metrics,
			Log:           env.Log.WithField("task", TaskShows),
			Now:           env.Now,
		})
		if err != nil {
			return err
		}
		env.Log.Infof("Shows: %d change(s), %d purged, %d unrecognized date(s)", len(res.Changes), len(res.Purged), res.Unrecognized)
		return nil
	}
}

func BroadcastsTask(env *app.Env) func(context.Context) error {
	return func(ctx context.Context) error {
		marked, err := polling.PollBroadcasts(ctx, polling.BroadcastConfig{
			DB:     env.DB,
			Client: env.HTTP,
			URL:    env.Config.Source.BroadcastURL,
			Log:    env.Log.WithField("task", TaskBroadcasts),
		})
		if err != nil {
			return err
		}
		if len(marked) > 0 {
			env.Log.Infof("Broadcasts: %d show(s) marked live", len(marked))
		}
		return nil
	}
}

func ProfilesTask(env *app.Env) func(context.Context) error {
	return func(ctx context.Context) error {
		res, err := polling.PollProfiles(ctx, polling.ProfilesConfig{
			DB:      env.DB,
			Client:  env.HTTP,
			BaseURL: env.Config.Source.BaseURL,
			Path:    env.Config.Source.ProfilesPath,
			Log:     env.Log.WithField("task", TaskProfiles),
		})
		if err != nil {
			return err
		}
		env.Log.Infof("Profiles: %d change(s), %d removed", len(res.Changes), len(res.Removed))
		return nil
	}
}

// EpisodesTask polls the feed and announces what is new in the same tick.
func EpisodesTask(env *app.Env) func(context.Context) error {
	return func(ctx context.Context) error {
		log := env.Log.WithField("task", TaskEpisodes)
		if _, err := polling.PollEpisodes(ctx, polling.EpisodesConfig{
			DB:      env.DB,
			Client:  env.HTTP,
			FeedURL: env.Config.Source.FeedURL,
			Log:     log,
		}); err != nil {
			return err
		}
		return polling.AnnounceEpisodes(ctx, announceConfig(env))
	}
}

func SpoilerTask(env *app.Env) func(context.Context) error {
	return func(ctx context.Context) error {
		err := env.Spoiler.Poll(ctx)
		for _, mode := range []storage.Mode{storage.ModePrimary, storage.ModeSecondary} {
			active, aerr := env.DB.ActiveEmbargoes(ctx, mode)
			if aerr != nil {
				return errors.Join(err, aerr)
			}
			env.Metrics.SetActiveEmbargoes(string(mode), len(active))
		}
		return err
	}
}

func AnnounceTask(env *app.Env) func(context.Context) error {
	return func(ctx context.Context) error {
		return polling.Announce(ctx, announceConfig(env))
	}
}

func announceConfig(env *app.Env) polling.AnnounceConfig {
	return polling.AnnounceConfig{
		DB:         env.DB,
		Dispatcher: env.Dispatcher,
		Format:     env.Format,
		Log:        env.Log.WithField("task", TaskAnnounce),
	}
}
