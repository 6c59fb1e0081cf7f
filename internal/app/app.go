// Package app builds the process-wide environment handed to every task,
// command and HTTP handler.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/superjcast/showwatch/internal/config"
	"github.com/superjcast/showwatch/pkg/metrics"
	"github.com/superjcast/showwatch/pkg/notify"
	"github.com/superjcast/showwatch/pkg/spoiler"
	"github.com/superjcast/showwatch/pkg/storage"
	"github.com/superjcast/showwatch/pkg/whttp"
)

// Env is built once at startup. Nothing in it is replaced afterwards.
type Env struct {
	Config     *config.Config
	Log        *logrus.Logger
	DB         *storage.DB
	HTTP       *whttp.Client
	Metrics    metrics.Recorder
	Dispatcher notify.Dispatcher
	Format     *notify.Formatter
	Spoiler    *spoiler.Manager
	Now        func() time.Time

	closers []func() error
}

// New opens the database, connects the configured sinks and wires the
// spoiler manager.
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Env, error) {
	db, err := storage.Open(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.DB.Path, err)
	}
	env := &Env{
		Config:  cfg,
		Log:     log,
		DB:      db,
		HTTP:    whttp.New(whttp.Options{Retries: cfg.HTTP.Retries, UserAgent: cfg.HTTP.UserAgent}),
		Metrics: metrics.New(cfg.Metrics.Enabled),
		Format:  notify.NewFormatter(cfg.Source.BaseURL),
		Now:     time.Now,
		closers: []func() error{db.Close},
	}

	discord, sinks, err := env.sinks(ctx)
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	cache := notify.NewDedupCache(cfg.Notify.DedupMB)
	fan := &notify.Fanout{Metrics: env.Metrics}
	for _, s := range sinks {
		fan.Sinks = append(fan.Sinks, &notify.Dedup{
			Sink:       s,
			Cache:      cache,
			TTLSeconds: int(cfg.Notify.DedupTTL / time.Second),
			Metrics:    env.Metrics,
		})
	}
	env.Dispatcher = fan

	spoilerCfg := spoiler.Config{Lookahead: cfg.Spoiler.Lookahead}
	if discord != nil {
		spoilerCfg.SpoilerMention = discord.Mention(notify.ChannelSpoiler, "")
		spoilerCfg.OtherSpoilerMention = discord.Mention(notify.ChannelOtherSpoiler, "")
	}
	env.Spoiler = spoiler.NewManager(db, env.Dispatcher, env.Format, spoilerCfg, log.WithField("component", "spoiler"))
	return env, nil
}

func (e *Env) sinks(ctx context.Context) (*notify.Discord, []notify.Dispatcher, error) {
	cfg := e.Config
	var (
		sinks   []notify.Dispatcher
		discord *notify.Discord
	)
	hooks := map[notify.Channel]string{
		notify.ChannelGeneral: cfg.Discord.Webhooks.General,
		notify.ChannelOther:   cfg.Discord.Webhooks.Other,
		notify.ChannelPodcast: cfg.Discord.Webhooks.Podcast,
	}
	for ch, url := range hooks {
		if url == "" {
			delete(hooks, ch)
		}
	}
	if len(hooks) > 0 {
		discord = notify.NewDiscord(notify.DiscordConfig{
			Token:    cfg.Discord.Token,
			Webhooks: hooks,
			ChannelIDs: map[notify.Channel]string{
				notify.ChannelSpoiler:      cfg.Discord.Channels.Spoiler,
				notify.ChannelOtherSpoiler: cfg.Discord.Channels.OtherSpoiler,
			},
		}, e.HTTP, e.Log.WithField("sink", "discord"))
		sinks = append(sinks, discord)
	}
	if cfg.AMQP.URL != "" {
		sinks = append(sinks, &notify.AMQP{URL: cfg.AMQP.URL, Exchange: cfg.AMQP.Exchange})
	}
	if cfg.Redis.Addr != "" {
		r, err := notify.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			return nil, nil, err
		}
		e.closers = append(e.closers, r.Close)
		sinks = append(sinks, r)
	}
	if len(sinks) == 0 {
		e.Log.Warn("No notification sink configured, announcements go to the log")
		sinks = append(sinks, &notify.Log{Log: e.Log.WithField("sink", "log")})
	}
	return discord, sinks, nil
}

// Close releases everything New opened, in reverse order.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
