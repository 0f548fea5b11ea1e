// Package kafka publishes workflow events with the Confluent Kafka client.
package kafka

import (
	"context"
	"fmt"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"webhook-gateway/internal/brokers"
	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/common/logging"
)

const DefaultTopic = "workflow-events"

// producer is the subset of *kafka.Producer the publisher uses
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	GetMetadata(topic *string, allTopics bool, timeoutMs int) (*kafka.Metadata, error)
	Flush(timeoutMs int) int
	Close()
}

// Publisher produces one record per message and waits for its delivery
// report. The message key becomes the record key.
type Publisher struct {
	config   *Config
	producer producer
	logger   logging.Logger
}

func Connect(config *Config) (*Publisher, error) {
	p, err := kafka.NewProducer(ConfigMap(config))
	if err != nil {
		return nil, errors.ConnectionError("failed to create Kafka producer", err)
	}
	return newPublisher(config, p), nil
}

func newPublisher(config *Config, p producer) *Publisher {
	return &Publisher{
		config:   config,
		producer: p,
		logger: logging.GetGlobalLogger().WithFields(
			logging.String("broker", "kafka"),
			logging.String("connection", config.GetConnectionString())),
	}
}

// ConfigMap translates config into librdkafka settings
func ConfigMap(config *Config) *kafka.ConfigMap {
	m := kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(config.Brokers, ","),
		"client.id":          config.ClientID,
		"acks":               "all",
		"enable.idempotence": true,
	}
	if config.SecurityProtocol != "PLAINTEXT" {
		m["security.protocol"] = config.SecurityProtocol
	}
	if strings.HasPrefix(config.SecurityProtocol, "SASL_") {
		m["sasl.mechanism"] = config.SASLMechanism
		m["sasl.username"] = config.SASLUsername
		m["sasl.password"] = config.SASLPassword
	}
	return &m
}

func Factory() brokers.Factory {
	return brokers.FactoryFunc[*Config]{
		Type: "kafka",
		New:  func(c *Config) (brokers.Publisher, error) { return Connect(c) },
	}
}

func (p *Publisher) Name() string { return "kafka" }

func (p *Publisher) Publish(ctx context.Context, message *brokers.Message) error {
	topic := message.Topic
	if topic == "" {
		topic = p.config.Topic
	}

	record := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          message.Body,
		Timestamp:      message.Timestamp,
	}
	if message.Key != "" {
		record.Key = []byte(message.Key)
	}
	for k, v := range message.Headers {
		record.Headers = append(record.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	if message.MessageID != "" {
		record.Headers = append(record.Headers, kafka.Header{Key: "message_id", Value: []byte(message.MessageID)})
	}

	delivery := make(chan kafka.Event, 1)
	if err := p.producer.Produce(record, delivery); err != nil {
		return errors.ConnectionError("failed to produce message", err)
	}

	select {
	case e := <-delivery:
		m, ok := e.(*kafka.Message)
		if !ok {
			return errors.ConnectionError(fmt.Sprintf("unexpected delivery event %v", e), nil)
		}
		if m.TopicPartition.Error != nil {
			return errors.ConnectionError("Kafka delivery failed", m.TopicPartition.Error)
		}
		p.logger.Debug("Message delivered to Kafka",
			logging.String("topic", topic),
			logging.Int("partition", int(m.TopicPartition.Partition)),
			logging.String("offset", m.TopicPartition.Offset.String()))
		return nil
	case <-ctx.Done():
		return errors.ConnectionError("timed out waiting for Kafka delivery report", ctx.Err())
	}
}

// Health fetches metadata for the default topic
func (p *Publisher) Health(context.Context) error {
	topic := p.config.Topic
	if _, err := p.producer.GetMetadata(&topic, false, int(p.config.DeliveryTimeout.Milliseconds())); err != nil {
		return errors.ConnectionError("Kafka unavailable", err)
	}
	return nil
}

// Close flushes outstanding records before closing the producer
func (p *Publisher) Close() error {
	if remaining := p.producer.Flush(int(p.config.DeliveryTimeout.Milliseconds())); remaining > 0 {
		p.logger.Warn("Kafka producer closed with undelivered messages", logging.Int("remaining", remaining))
	}
	p.producer.Close()
	return nil
}
