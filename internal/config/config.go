package config

import (
	"fmt"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/viper"
)

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required|in:debug,info,warn,warning,error,fatal"`
	Format string `mapstructure:"format" validate:"required|in:text,json"`
}

type DBConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type HTTPConfig struct {
	// Listen is the status server address; empty disables it.
	Listen    string `mapstructure:"listen"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	Retries   int    `mapstructure:"retries" validate:"min:0"`
	UserAgent string `mapstructure:"user_agent"`
}

type SourceConfig struct {
	BaseURL      string `mapstructure:"base_url" validate:"required|fullUrl"`
	Pages        int    `mapstructure:"pages" validate:"required|min:1"`
	BroadcastURL string `mapstructure:"broadcast_url" validate:"required|fullUrl"`
	FeedURL      string `mapstructure:"feed_url" validate:"required|fullUrl"`
	ProfilesPath string `mapstructure:"profiles_path" validate:"required"`
}

type IntervalsConfig struct {
	Shows      time.Duration `mapstructure:"shows" validate:"required|min:1"`
	Broadcasts time.Duration `mapstructure:"broadcasts" validate:"required|min:1"`
	Profiles   time.Duration `mapstructure:"profiles" validate:"required|min:1"`
	Episodes   time.Duration `mapstructure:"episodes" validate:"required|min:1"`
	Spoiler    time.Duration `mapstructure:"spoiler" validate:"required|min:1"`
	Announce   time.Duration `mapstructure:"announce" validate:"required|min:1"`
}

type SpoilerConfig struct {
	Lookahead     time.Duration `mapstructure:"lookahead" validate:"required|min:1"`
	ScheduleHours int           `mapstructure:"schedule_hours" validate:"required|min:1"`
	OtherHours    int           `mapstructure:"other_hours" validate:"required|min:1"`
}

type WebhooksConfig struct {
	General string `mapstructure:"general"`
	Other   string `mapstructure:"other"`
	Podcast string `mapstructure:"podcast"`
}

type ChannelsConfig struct {
	Spoiler      string `mapstructure:"spoiler"`
	OtherSpoiler string `mapstructure:"other_spoiler"`
}

type DiscordConfig struct {
	Token    string         `mapstructure:"token"`
	Webhooks WebhooksConfig `mapstructure:"webhooks"`
	Channels ChannelsConfig `mapstructure:"channels"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min:0"`
	Prefix   string `mapstructure:"prefix"`
}

type NotifyConfig struct {
	DedupTTL time.Duration `mapstructure:"dedup_ttl" validate:"required|min:1"`
	DedupMB  int           `mapstructure:"dedup_mb" validate:"required|min:1"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Source    SourceConfig    `mapstructure:"source"`
	Intervals IntervalsConfig `mapstructure:"intervals"`
	Spoiler   SpoilerConfig   `mapstructure:"spoiler"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	AMQP      AMQPConfig      `mapstructure:"amqp"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// Defaults lists every key with its default value. Every key must appear
// here so that environment overrides are picked up by Unmarshal.
var Defaults = map[string]interface{}{
	"log.level":                      "info",
	"log.format":                     "text",
	"db.path":                        "showwatch.sqlite",
	"http.listen":                    "",
	"http.username":                  "",
	"http.password":                  "",
	"http.retries":                   0,
	"http.user_agent":                "",
	"source.base_url":                "https://www.njpw1972.com",
	"source.pages":                   2,
	"source.broadcast_url":           "https://njpwworld.com/feature/schedule",
	"source.feed_url":                "https://feeds.redcircle.com/cf1d4e82-ac3d-47e6-948d-1d299cf6744e",
	"source.profiles_path":           "/profiles/",
	"intervals.shows":                "1h",
	"intervals.broadcasts":           "1h",
	"intervals.profiles":             "45m",
	"intervals.episodes":             "5m",
	"intervals.spoiler":              "3m30s",
	"intervals.announce":             "30m",
	"spoiler.lookahead":              "5m",
	"spoiler.schedule_hours":         14,
	"spoiler.other_hours":            14,
	"discord.token":                  "",
	"discord.webhooks.general":       "",
	"discord.webhooks.other":         "",
	"discord.webhooks.podcast":       "",
	"discord.channels.spoiler":       "",
	"discord.channels.other_spoiler": "",
	"amqp.url":                       "",
	"amqp.exchange":                  "",
	"redis.addr":                     "",
	"redis.password":                 "",
	"redis.db":                       0,
	"redis.prefix":                   "showwatch",
	"notify.dedup_ttl":               "10m",
	"notify.dedup_mb":                8,
	"metrics.enabled":                false,
}

// SetDefaults registers Defaults on v.
func SetDefaults(v *viper.Viper) {
	for k, val := range Defaults {
		v.SetDefault(k, val)
	}
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the struct tags.
func (c *Config) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %s", v.Errors.One())
	}
	return nil
}
