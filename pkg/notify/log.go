package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Log writes messages to the logger. It is the sink used when nothing else
// is configured.
type Log struct {
	Log logrus.FieldLogger
}

func (l *Log) Name() string { return "log" }

func (l *Log) Dispatch(_ context.Context, m Message) error {
	entry := l.Log.WithField("channel", m.Channel)
	if m.Summary != nil {
		entry = entry.WithField("summary", m.Summary.Title)
	}
	entry.Info(m.Content)
	return nil
}

func (l *Log) SetTopic(_ context.Context, ch Channel, topic string) error {
	l.Log.WithField("channel", ch).Infof("Topic: %s", topic)
	return nil
}
