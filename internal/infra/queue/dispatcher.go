package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"coldmail-copywriter/internal/domain/ports/adapter"
)

type RowMessage struct {
	ProspectID string    `json:"prospect_id"`
	QueuedAt   time.Time `json:"queued_at"`
}

// Publisher is the part of *amqp.Channel the dispatcher needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

var _ adapter.RowDispatcher = (*RabbitDispatcher)(nil)

// RabbitDispatcher publishes each row as a persistent message on the default exchange.
type RabbitDispatcher struct {
	pub   Publisher
	queue string
}

func NewRabbitDispatcher(pub Publisher, queue string) *RabbitDispatcher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &RabbitDispatcher{pub: pub, queue: queue}
}

func (d *RabbitDispatcher) Dispatch(ctx context.Context, prospectID string) error {
	body, err := json.Marshal(RowMessage{ProspectID: prospectID, QueuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal row message: %w", err)
	}
	err = d.pub.PublishWithContext(ctx, "", d.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    prospectID,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish row %s: %w", prospectID, err)
	}
	return nil
}
