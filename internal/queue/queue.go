// Package queue moves analysis jobs between the API and the workers over SQS
// or RabbitMQ.
package queue

import (
	"context"
	"errors"
)

// Publisher sends messages to a queue backend.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Handler processes one raw message body. A nil error acknowledges the
// message. Errors that report Permanent() == true drop it; any other error
// leaves it for redelivery.
type Handler func(ctx context.Context, body string) error

// IsPermanent reports whether err, or an error it wraps, marks itself as
// not worth retrying.
func IsPermanent(err error) bool {
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}

// ErrClosed is returned by consumers when the broker closes the delivery stream.
var ErrClosed = errors.New("queue: delivery channel closed")
