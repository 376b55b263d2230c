// Package amqp publishes catalog events to RabbitMQ.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"hotel_fusion/internal/domain"
)

// QueueOffersRefreshed receives one message per landed resync batch.
const QueueOffersRefreshed = "catalog.offers.refreshed"

// Publisher dials per publish; batches are minutes apart so a held
// connection buys nothing.
type Publisher struct {
	url   string
	queue string
}

// New returns a Noop publisher when url is empty.
func New(url string) domain.EventPublisher {
	if url == "" {
		return Noop{}
	}
	return &Publisher{url: url, queue: QueueOffersRefreshed}
}

func (p *Publisher) PublishOffersRefreshed(ctx context.Context, ev domain.OffersRefreshed) error {
	msg, err := Message(ev)
	if err != nil {
		return err
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	log.Debug().Str("queue", p.queue).Str("supplier", ev.SupplierCode).
		Int("offers", ev.OffersInserted).Msg("offers refreshed event published")
	return nil
}

// Message encodes ev as a persistent JSON publishing.
func Message(ev domain.OffersRefreshed) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	ts := ev.RefreshedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ts.UTC(),
		Type:         "offers.refreshed",
		Body:         body,
	}, nil
}

// Noop drops events; used when no broker is configured.
type Noop struct{}

func (Noop) PublishOffersRefreshed(context.Context, domain.OffersRefreshed) error { return nil }
