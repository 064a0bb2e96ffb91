package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPPublisher publishes events as persistent JSON messages to durable
// queues on the default exchange
type AMQPPublisher struct {
	conn   *amqp.Connection
	logger *zap.Logger

	mu       sync.Mutex
	ch       *amqp.Channel
	declared map[string]bool
}

// DialAMQP connects to the broker at url
func DialAMQP(url string, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial amqp broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}

	return &AMQPPublisher{
		conn:     conn,
		ch:       ch,
		logger:   logger,
		declared: make(map[string]bool),
	}, nil
}

// Close closes the channel and connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.Close(); err != nil {
		p.logger.Warn("Failed to close amqp channel", zap.Error(err))
	}
	return p.conn.Close()
}

func (p *AMQPPublisher) PublishSeriesCreated(ctx context.Context, event SeriesCreated) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal SeriesCreated event: %w", err)
	}

	if err := p.publish(ctx, SeriesCreatedQueue, body); err != nil {
		return err
	}

	p.logger.Debug("Published SeriesCreated event",
		zap.String("queue", SeriesCreatedQueue),
		zap.String("series_id", event.SeriesID))
	return nil
}

func (p *AMQPPublisher) publish(ctx context.Context, queue string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[queue] {
		if _, err := p.ch.QueueDeclare(
			queue,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,
		); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
		p.declared[queue] = true
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := p.ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish to queue %s: %w", queue, err)
	}
	return nil
}
