package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/ev-charging-backend/internal/metrics"
)

// Publisher hands events to the broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// AMQPPublisher dials per publish and declares the durable queue each time,
// so it needs no connection management and survives broker restarts.
type AMQPPublisher struct {
	URL   string
	Queue string
}

func NewAMQPPublisher(url, queue string) *AMQPPublisher {
	return &AMQPPublisher{URL: url, Queue: queue}
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, "", p.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         ev.Type,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	})
}

// Noop discards events; used when EVENTS_ENABLED is off.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Emit builds and publishes an event. Failures are logged and counted but
// never returned: a lost notification must not fail the request.
func Emit(ctx context.Context, p Publisher, log *zap.Logger, eventType string, userID uint64, payload any) {
	if p == nil {
		return
	}
	ev, err := NewEvent(eventType, userID, payload)
	if err == nil {
		err = p.Publish(ctx, ev)
	}
	if err != nil {
		metrics.EventsPublished.WithLabelValues(eventType, "error").Inc()
		log.Warn("publish event failed", zap.String("type", eventType), zap.Uint64("user_id", userID), zap.Error(err))
		return
	}
	metrics.EventsPublished.WithLabelValues(eventType, "ok").Inc()
}
