package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/superjcast/showwatch/pkg/whttp"
)

const DiscordAPI = "https://discord.com/api/v10"

// DiscordConfig maps channels to webhooks for posting and to channel ids for
// topic changes. Topic changes need a bot token.
type DiscordConfig struct {
	Token      string
	Webhooks   map[Channel]string
	ChannelIDs map[Channel]string
	APIBase    string
}

type Discord struct {
	cfg    DiscordConfig
	client *whttp.Client
	log    logrus.FieldLogger
}

func NewDiscord(cfg DiscordConfig, client *whttp.Client, log logrus.FieldLogger) *Discord {
	if cfg.APIBase == "" {
		cfg.APIBase = DiscordAPI
	}
	return &Discord{cfg: cfg, client: client, log: log}
}

func (d *Discord) Name() string { return "discord" }

// Mention renders a link to the channel, or fallback when its id is unknown.
func (d *Discord) Mention(ch Channel, fallback string) string {
	if id := d.cfg.ChannelIDs[ch]; id != "" {
		return "<#" + id + ">"
	}
	return fallback
}

type embedThumb struct {
	URL string `json:"url"`
}

type embed struct {
	Title       string      `json:"title,omitempty"`
	URL         string      `json:"url,omitempty"`
	Description string      `json:"description,omitempty"`
	Color       int         `json:"color,omitempty"`
	Thumbnail   *embedThumb `json:"thumbnail,omitempty"`
	Fields      []Field     `json:"fields,omitempty"`
}

type allowedMentions struct {
	Parse []string `json:"parse"`
}

type webhookPayload struct {
	Content         string          `json:"content,omitempty"`
	Embeds          []embed         `json:"embeds,omitempty"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

func toEmbed(s *Summary) embed {
	e := embed{Title: s.Title, URL: s.URL, Description: s.Description, Color: s.Color, Fields: s.Fields}
	if s.Thumbnail != "" {
		e.Thumbnail = &embedThumb{URL: s.Thumbnail}
	}
	return e
}

func (d *Discord) Dispatch(ctx context.Context, m Message) error {
	hook := d.cfg.Webhooks[m.Channel]
	if hook == "" {
		d.log.Debugf("Discord webhook for %s not configured, skipping", m.Channel)
		return nil
	}
	payload := webhookPayload{
		Content:         m.Content,
		AllowedMentions: allowedMentions{Parse: []string{"everyone", "roles", "users"}},
	}
	if m.Summary != nil {
		payload.Embeds = []embed{toEmbed(m.Summary)}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	sep := "?"
	if strings.Contains(hook, "?") {
		sep = "&"
	}
	res, err := d.client.Do(ctx, &whttp.Request{
		URL:     hook + sep + "wait=true",
		Method:  http.MethodPost,
		Body:    body,
		Headers: []whttp.Header{{Name: "Content-Type", Value: "application/json"}},
	})
	if err != nil {
		return fmt.Errorf("posting to %s webhook: %w", m.Channel, err)
	}
	if err := apiError(res); err != nil {
		return err
	}
	d.log.Debugf("Discord message %s posted to %s", gjson.Get(res.Body, "id").String(), m.Channel)
	return nil
}

func (d *Discord) SetTopic(ctx context.Context, ch Channel, topic string) error {
	id := d.cfg.ChannelIDs[ch]
	if id == "" || d.cfg.Token == "" {
		d.log.Debugf("Discord topic for %s not configured, skipping", ch)
		return nil
	}
	body, err := json.Marshal(map[string]string{"topic": topic})
	if err != nil {
		return err
	}
	res, err := d.client.Do(ctx, &whttp.Request{
		URL:    d.cfg.APIBase + "/channels/" + id,
		Method: http.MethodPatch,
		Body:   body,
		Headers: []whttp.Header{
			{Name: "Content-Type", Value: "application/json"},
			{Name: "Authorization", Value: "Bot " + d.cfg.Token},
		},
	})
	if err != nil {
		return fmt.Errorf("setting %s topic: %w", ch, err)
	}
	return apiError(res)
}

func apiError(res *whttp.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	msg := gjson.Get(res.Body, "message").String()
	if msg == "" {
		msg = http.StatusText(res.StatusCode)
	}
	return fmt.Errorf("%w: %d %s", whttp.ErrUnexpectedStatus, res.StatusCode, msg)
}
