package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"resume-ats/internal/shared/metrics"
	"resume-ats/internal/shared/telemetry"
)

// amqpChannel is the subset of *amqp.Channel used here.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// AMQPClient publishes to and consumes from one durable RabbitMQ queue.
type AMQPClient struct {
	conn  *amqp.Connection
	ch    amqpChannel
	queue string

	mu sync.Mutex
}

// DialAMQP connects to url and declares queue.
func DialAMQP(url, queue string) (*AMQPClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	c, err := newAMQPClient(ch, queue)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func newAMQPClient(ch amqpChannel, queue string) (*AMQPClient, error) {
	if queue == "" {
		return nil, errors.New("amqp queue name is required")
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &AMQPClient{ch: ch, queue: queue}, nil
}

// Publish sends msg as a persistent JSON message.
func (c *AMQPClient) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode amqp message: %w", err)
	}
	c.mu.Lock()
	err = c.ch.Publish("", c.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.AnalysisID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	metrics.IncJobPublished()
	return nil
}

// Consume acks successful deliveries, drops permanent failures and requeues
// other failures once. It returns nil when ctx is cancelled and ErrClosed when
// the broker ends the stream.
func (c *AMQPClient) Consume(ctx context.Context, h Handler, concurrency int) error {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if err := c.ch.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("amqp qos: %w", err)
	}
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	telemetry.Info("worker.started", map[string]any{
		"backend":     "amqp",
		"queue":       c.queue,
		"concurrency": concurrency,
	})

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			return waitTimeout(&wg, defaultShutdownTimeout)
		case d, ok := <-deliveries:
			if !ok {
				if err := waitTimeout(&wg, defaultShutdownTimeout); err != nil {
					return err
				}
				return ErrClosed
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				handleDelivery(ctx, h, d)
			}(d)
		}
	}
}

func handleDelivery(ctx context.Context, h Handler, d amqp.Delivery) {
	fields := map[string]any{
		"amqp_message_id": d.MessageId,
		"redelivered":     d.Redelivered,
	}
	err := h(ctx, string(d.Body))
	var ackErr error
	switch {
	case err == nil:
		metrics.IncJobProcessed()
		ackErr = d.Ack(false)
	case IsPermanent(err) || d.Redelivered:
		metrics.IncJobFailed()
		fields["error"] = err.Error()
		telemetry.Error("worker.message_dropped", fields)
		ackErr = d.Nack(false, false)
	default:
		metrics.IncJobFailed()
		fields["error"] = err.Error()
		telemetry.Error("worker.message_retry", fields)
		ackErr = d.Nack(false, true)
	}
	if ackErr != nil {
		fields["error"] = ackErr.Error()
		telemetry.Error("worker.ack_failed", fields)
	}
}

// Close closes the channel and the connection.
func (c *AMQPClient) Close() error {
	err := c.ch.Close()
	if c.conn != nil {
		if cerr := c.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

var _ Publisher = (*AMQPClient)(nil)
