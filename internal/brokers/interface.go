// Package brokers publishes workflow events to message brokers. Each
// sub-package adapts one broker client to the Publisher interface.
package brokers

import (
	"context"
	"time"
)

// Publisher delivers messages to a single broker
type Publisher interface {
	Name() string
	Publish(ctx context.Context, message *Message) error
	Health(ctx context.Context) error
	Close() error
}

// Config is implemented by each broker's configuration
type Config interface {
	Validate() error
	GetConnectionString() string
	GetType() string
}

// Message is a broker-neutral outgoing message. Topic names the stream,
// queue or topic; empty means the broker's configured default. Key is the
// routing, partition or ordering key where the broker has one.
type Message struct {
	Topic     string
	Key       string
	Headers   map[string]string
	Body      []byte
	Timestamp time.Time
	MessageID string
}

// Factory creates a publisher from its configuration
type Factory interface {
	Create(config Config) (Publisher, error)
	GetType() string
}
