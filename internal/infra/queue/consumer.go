package queue

import (
	"context"
	"encoding/json"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"coldmail-copywriter/internal/infra/worker"
)

// Consumer feeds queued rows into the local worker pool and acks each
// message only after its row has been processed.
type Consumer struct {
	pool *worker.Pool
	proc worker.RowProcessor
	log  zerolog.Logger
}

func NewConsumer(pool *worker.Pool, proc worker.RowProcessor, logger *zerolog.Logger) *Consumer {
	return &Consumer{
		pool: pool,
		proc: proc,
		log:  logger.With().Str("component", "RowConsumer").Logger(),
	}
}

// Run blocks until ctx ends or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	c.log.Info().Msg("row consumer started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				c.log.Warn().Msg("delivery channel closed")
				return nil
			}
			if err := c.handle(ctx, d); err != nil {
				_ = d.Nack(false, true)
				return err
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) error {
	var msg RowMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || strings.TrimSpace(msg.ProspectID) == "" {
		c.log.Error().Err(err).Str("message_id", d.MessageId).Msg("malformed row message; dead-lettering")
		_ = d.Nack(false, false)
		return nil
	}
	return c.pool.SubmitWait(ctx, func(ctx context.Context) error {
		if err := c.proc.Process(ctx, msg.ProspectID); err != nil {
			_ = d.Nack(false, true)
			return err
		}
		return d.Ack(false)
	})
}
