package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/ontokit/internal/timing"
	"github.com/OFFIS-RIT/ontokit/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// HandlerFunc processes the body of one message from queueName.
type HandlerFunc func(ctx context.Context, queueName string, body []byte) error

type queuedMessage struct {
	msg       amqp091.Delivery
	queueName string
}

// Consume delivers messages of all queues to handle one at a time until ctx
// is done. A single channel with prefetch 1 is shared by all queues, so only
// one message is in flight across the worker. Failed messages go through
// HandleProcessingError.
func Consume(ctx context.Context, conn *amqp091.Connection, queues []string, handle HandlerFunc) error {
	consumerCh, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	messages := make(chan queuedMessage)
	for _, queueName := range queues {
		msgs, err := consumerCh.Consume(
			queueName,
			queueName+"_consumer",
			false, // autoAck
			false, // exclusive
			false, // noLocal
			false, // noWait
			nil,
		)
		if err != nil {
			return fmt.Errorf("failed to start consuming %s: %w", queueName, err)
		}

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("[Queue] Message channel closed", "queue", queueName)
						return
					}
					select {
					case messages <- queuedMessage{msg: msg, queueName: queueName}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	logger.Info("[Queue] Listening for messages", "queues", queues)
	for {
		select {
		case <-ctx.Done():
			logger.Info("[Queue] Stopping message processor")
			return nil
		case qm := <-messages:
			start := time.Now()
			logger.Info("[Queue] Received message", "queue", qm.queueName)

			if err := handle(ctx, qm.queueName, qm.msg.Body); err != nil {
				logger.Error("[Queue] Error processing message", "queue", qm.queueName, "err", err)
				HandleProcessingError(ctx, consumerCh, qm.msg, qm.queueName)
			} else if err := qm.msg.Ack(false); err != nil {
				logger.Error("[Queue] Failed to ack message", "err", err)
			}

			logger.Info("[Queue] Processing time", "queue", qm.queueName, "duration", timing.Format(time.Since(start)))
		}
	}
}
