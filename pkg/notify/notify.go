// Package notify delivers announcements to chat channels and message buses.
package notify

import (
	"context"
	"time"
)

// Channel selects where a message goes. Sinks map it to their own
// destinations: a webhook, a routing key or a pub/sub channel.
type Channel string

const (
	ChannelGeneral      Channel = "general"
	ChannelSpoiler      Channel = "spoiler"
	ChannelOther        Channel = "other"
	ChannelOtherSpoiler Channel = "other_spoiler"
	ChannelPodcast      Channel = "podcast"
)

// Field is one labelled line of a summary.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Summary is the structured card attached to a message.
type Summary struct {
	Title       string  `json:"title"`
	URL         string  `json:"url,omitempty"`
	Description string  `json:"description,omitempty"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	Color       int     `json:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
}

// Message is one announcement.
type Message struct {
	Channel Channel  `json:"channel"`
	Content string   `json:"content"`
	Summary *Summary `json:"summary,omitempty"`
}

// Dispatcher delivers messages. A nil error means the sink accepted it.
type Dispatcher interface {
	Name() string
	Dispatch(ctx context.Context, m Message) error
	// SetTopic replaces the topic line of a channel where the sink supports it.
	SetTopic(ctx context.Context, ch Channel, topic string) error
}

// event is the envelope published on message buses.
type event struct {
	Kind    string    `json:"kind"`
	Channel Channel   `json:"channel"`
	Content string    `json:"content,omitempty"`
	Summary *Summary  `json:"summary,omitempty"`
	Topic   string    `json:"topic,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}
