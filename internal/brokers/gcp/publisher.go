// Package gcp publishes workflow events to Google Cloud Pub/Sub.
package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"webhook-gateway/internal/brokers"
	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/common/logging"
)

// Publisher sends every message to the configured topic. The message key
// becomes the ordering key when ordering is enabled.
type Publisher struct {
	config *Config
	client *pubsub.Client
	topic  *pubsub.Topic
	logger logging.Logger
}

// Connect creates a client and resolves the topic. Extra options are
// appended after the credential options.
func Connect(ctx context.Context, config *Config, extra ...option.ClientOption) (*Publisher, error) {
	var opts []option.ClientOption
	if config.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(config.CredentialsJSON)))
	} else if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}
	opts = append(opts, extra...)

	client, err := pubsub.NewClient(ctx, config.ProjectID, opts...)
	if err != nil {
		return nil, errors.ConnectionError("failed to create Pub/Sub client", err)
	}

	topic := client.Topic(config.TopicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, errors.ConnectionError("failed to check topic existence", err)
	}
	if !exists {
		if !config.CreateTopic {
			_ = client.Close()
			return nil, errors.ConfigError(fmt.Sprintf("topic %s does not exist", config.TopicID))
		}
		if topic, err = client.CreateTopic(ctx, config.TopicID); err != nil {
			_ = client.Close()
			return nil, errors.ConnectionError("failed to create topic", err)
		}
	}

	topic.PublishSettings.NumGoroutines = 2
	topic.PublishSettings.CountThreshold = 10
	topic.PublishSettings.DelayThreshold = 50 * time.Millisecond
	topic.EnableMessageOrdering = config.EnableMessageOrdering

	return &Publisher{
		config: config,
		client: client,
		topic:  topic,
		logger: logging.GetGlobalLogger().WithFields(
			logging.String("broker", "gcp"),
			logging.String("connection", config.GetConnectionString())),
	}, nil
}

func Factory() brokers.Factory {
	return brokers.FactoryFunc[*Config]{
		Type: "gcp",
		New:  func(c *Config) (brokers.Publisher, error) { return Connect(context.Background(), c) },
	}
}

func (p *Publisher) Name() string { return "gcp" }

// Publish blocks until the server acknowledges the message or ctx ends
func (p *Publisher) Publish(ctx context.Context, message *brokers.Message) error {
	attrs := make(map[string]string, len(message.Headers)+2)
	for k, v := range message.Headers {
		attrs[k] = v
	}
	if message.MessageID != "" {
		attrs["message_id"] = message.MessageID
	}
	if message.Key != "" {
		attrs["routing_key"] = message.Key
	}

	msg := &pubsub.Message{Data: message.Body, Attributes: attrs}
	if p.config.EnableMessageOrdering {
		msg.OrderingKey = message.Key
	}

	serverID, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		if p.config.EnableMessageOrdering && message.Key != "" {
			// a failed publish pauses its ordering key until resumed
			p.topic.ResumePublish(message.Key)
		}
		return errors.ConnectionError("failed to publish message to Pub/Sub", err)
	}

	p.logger.Debug("Message published to Pub/Sub",
		logging.String("server_id", serverID),
		logging.String("message_id", message.MessageID))
	return nil
}

func (p *Publisher) Health(ctx context.Context) error {
	exists, err := p.topic.Exists(ctx)
	if err != nil {
		return errors.ConnectionError("Pub/Sub unavailable", err)
	}
	if !exists {
		return errors.ConnectionError(fmt.Sprintf("topic %s no longer exists", p.config.TopicID), nil)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
