// Package redis publishes workflow events to Redis Streams.
package redis

import (
	"context"

	"webhook-gateway/internal/brokers"
	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/common/logging"
	gwredis "webhook-gateway/internal/redis"
)

const DefaultStream = "workflow-events"

// Publisher appends each message to a stream. Entries carry body,
// timestamp, message_id, routing_key and one header_<name> field per header.
type Publisher struct {
	client     *gwredis.Client
	config     *Config
	ownsClient bool
	logger     logging.Logger
}

// NewPublisher publishes through an existing client, which the caller keeps
// ownership of
func NewPublisher(client *gwredis.Client, config *Config) *Publisher {
	if config.Stream == "" {
		config.Stream = DefaultStream
	}
	return &Publisher{
		client: client,
		config: config,
		logger: logging.GetGlobalLogger().WithFields(
			logging.String("broker", "redis"),
			logging.String("connection", config.GetConnectionString())),
	}
}

// Connect dials Redis and returns a publisher that closes the connection
// on Close
func Connect(config *Config) (*Publisher, error) {
	client, err := gwredis.NewClient(&gwredis.Config{
		Address:  config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})
	if err != nil {
		return nil, errors.ConnectionError("failed to connect to Redis", err)
	}
	p := NewPublisher(client, config)
	p.ownsClient = true
	return p, nil
}

// Factory registers Connect with a brokers.Registry
func Factory() brokers.Factory {
	return brokers.FactoryFunc[*Config]{
		Type: "redis",
		New:  func(c *Config) (brokers.Publisher, error) { return Connect(c) },
	}
}

func (p *Publisher) Name() string { return "redis" }

func (p *Publisher) Publish(ctx context.Context, message *brokers.Message) error {
	if p.client == nil {
		return errors.ConnectionError("Redis broker not connected", nil)
	}

	stream := message.Topic
	if stream == "" {
		stream = p.config.Stream
	}

	fields := map[string]interface{}{
		"body":       string(message.Body),
		"timestamp":  message.Timestamp.UnixNano(),
		"message_id": message.MessageID,
	}
	if message.Key != "" {
		fields["routing_key"] = message.Key
	}
	for k, v := range message.Headers {
		fields["header_"+k] = v
	}

	id, err := p.client.AppendStream(ctx, stream, p.config.StreamMaxLen, fields)
	if err != nil {
		return errors.ConnectionError("failed to publish message to Redis stream", err)
	}

	p.logger.Debug("Message published to Redis stream",
		logging.String("stream", stream),
		logging.String("id", id),
		logging.String("message_id", message.MessageID))
	return nil
}

func (p *Publisher) Health(ctx context.Context) error {
	if p.client == nil {
		return errors.ConnectionError("Redis client not initialized", nil)
	}
	return p.client.Health(ctx)
}

func (p *Publisher) Close() error {
	if p.client == nil || !p.ownsClient {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
