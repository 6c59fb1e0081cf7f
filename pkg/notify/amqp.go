package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQP publishes each message as a persistent JSON event with routing key
// "showwatch.<channel>". With no exchange configured, messages go through the
// default exchange to a durable queue of that name.
type AMQP struct {
	URL      string
	Exchange string
}

func (a *AMQP) Name() string { return "amqp" }

func (a *AMQP) Dispatch(ctx context.Context, m Message) error {
	return a.publish(ctx, event{Kind: "message", Channel: m.Channel, Content: m.Content, Summary: m.Summary, SentAt: time.Now().UTC()})
}

func (a *AMQP) SetTopic(ctx context.Context, ch Channel, topic string) error {
	return a.publish(ctx, event{Kind: "topic", Channel: ch, Topic: topic, SentAt: time.Now().UTC()})
}

func (a *AMQP) publish(ctx context.Context, ev event) error {
	conn, err := amqp.Dial(a.URL)
	if err != nil {
		return fmt.Errorf("amqp: dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp: channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	key := "showwatch." + string(ev.Channel)
	if a.Exchange != "" {
		if err := ch.ExchangeDeclare(a.Exchange, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("amqp: exchange declare: %w", err)
		}
	} else if _, err := ch.QueueDeclare(key, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp: queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.SentAt,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, a.Exchange, key, false, false, pub); err != nil {
		return fmt.Errorf("amqp: publish: %w", err)
	}
	return nil
}
