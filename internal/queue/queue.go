package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/ontokit/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	SamplingQueue = "sampling_queue"

	// MaxRetries is how often a message is retried before it is moved to
	// its dead letter queue.
	MaxRetries = 10

	retryDelayMs = 10000
)

// Queues lists every work queue the worker consumes.
var Queues = []string{SamplingQueue}

// Declarer is the part of *amqp091.Channel SetupQueues needs.
type Declarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
}

// Publisher is the part of *amqp091.Channel used for publishing.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

func Init(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares every queue with a dead letter queue "<name>_dlq"
// and a retry queue "<name>_retry" whose messages return to the work queue
// after retryDelayMs.
func SetupQueues(ch Declarer, queueNames []string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelayMs),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", retryName, err)
		}
	}
	return nil
}

// PublishFIFO publishes data persistently to queueName on the default
// exchange.
func PublishFIFO(ctx context.Context, ch Publisher, queueName string, data []byte) error {
	return ch.PublishWithContext(ctx, "", queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
}

// RetryCount reads the x-retries header.
func RetryCount(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// HandleProcessingError moves a failed message to the retry queue with an
// incremented x-retries header, or to the dead letter queue once MaxRetries
// is reached. The original delivery is acked once the copy is published and
// requeued if publishing fails.
func HandleProcessingError(ctx context.Context, ch Publisher, msg amqp091.Delivery, queueName string) {
	retries := RetryCount(msg.Headers)

	if retries >= MaxRetries {
		dlqName := queueName + "_dlq"
		logger.Warn("[Queue] Sending message to DLQ", "dlq", dlqName, "retries", retries)
		err := ch.PublishWithContext(ctx, "", dlqName, false, false, amqp091.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers:      msg.Headers,
			DeliveryMode: amqp091.Persistent,
		})
		if err != nil {
			logger.Error("[Queue] Failed to publish to DLQ", "dlq", dlqName, "err", err)
			_ = msg.Nack(false, true)
			return
		}
		_ = msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retries"] = int32(retries + 1)

	err := ch.PublishWithContext(ctx, "", retryName, false, false, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		logger.Error("[Queue] Failed to publish to retry queue", "retry_queue", retryName, "err", err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
