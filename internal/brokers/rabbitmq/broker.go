// Package rabbitmq publishes workflow events over AMQP 0-9-1.
package rabbitmq

import (
	"context"
	"sync"

	"github.com/streadway/amqp"

	"webhook-gateway/internal/brokers"
	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/common/logging"
)

const DefaultQueue = "workflow-events"

// Publisher sends persistent JSON messages. Queues and the exchange are
// declared the first time they are used.
type Publisher struct {
	config *Config
	pool   *pool
	logger logging.Logger

	mu       sync.Mutex
	declared map[string]bool
}

func Connect(config *Config) (*Publisher, error) {
	return connectWith(config, dialAMQP)
}

func connectWith(config *Config, dial dialFunc) (*Publisher, error) {
	p, err := newPool(config.URL, config.PoolSize, dial)
	if err != nil {
		return nil, errors.ConnectionError("failed to create RabbitMQ connection pool", err)
	}
	return &Publisher{
		config:   config,
		pool:     p,
		declared: make(map[string]bool),
		logger: logging.GetGlobalLogger().WithFields(
			logging.String("broker", "rabbitmq"),
			logging.String("connection", config.GetConnectionString())),
	}, nil
}

func Factory() brokers.Factory {
	return brokers.FactoryFunc[*Config]{
		Type: "rabbitmq",
		New:  func(c *Config) (brokers.Publisher, error) { return Connect(c) },
	}
}

func (p *Publisher) Name() string { return "rabbitmq" }

func (p *Publisher) Publish(_ context.Context, message *brokers.Message) error {
	conn, err := p.pool.get()
	if err != nil {
		return errors.ConnectionError("failed to get RabbitMQ connection", err)
	}
	defer p.pool.put(conn)

	ch, err := conn.Channel()
	if err != nil {
		return errors.ConnectionError("failed to open RabbitMQ channel", err)
	}
	defer ch.Close()

	queue := message.Topic
	if queue == "" {
		queue = p.config.Queue
	}
	routingKey := message.Key
	if p.config.Exchange == "" {
		// default exchange routes by queue name
		routingKey = queue
	}

	p.declare(ch, queue, routingKey)

	headers := amqp.Table{}
	for k, v := range message.Headers {
		headers[k] = v
	}

	err = ch.Publish(p.config.Exchange, routingKey, false, false, amqp.Publishing{
		Headers:      headers,
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    message.MessageID,
		Timestamp:    message.Timestamp,
		Body:         message.Body,
	})
	if err != nil {
		return errors.ConnectionError("failed to publish message to RabbitMQ", err)
	}
	return nil
}

// declare sets up queue, exchange and binding once per publisher. Failures
// are logged; the publish that follows reports the real error.
func (p *Publisher) declare(ch channel, queue, routingKey string) {
	key := p.config.Exchange + "|" + queue + "|" + routingKey

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.declared[key] {
		return
	}

	ok := true
	if queue != "" {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			ok = false
			p.logger.Warn("Failed to declare queue", logging.String("queue", queue), logging.Err(err))
		}
	}
	if p.config.Exchange != "" {
		if err := ch.ExchangeDeclare(p.config.Exchange, "direct", true, false, false, false, nil); err != nil {
			ok = false
			p.logger.Warn("Failed to declare exchange", logging.String("exchange", p.config.Exchange), logging.Err(err))
		} else if queue != "" {
			if err := ch.QueueBind(queue, routingKey, p.config.Exchange, false, nil); err != nil {
				ok = false
				p.logger.Warn("Failed to bind queue to exchange",
					logging.String("queue", queue),
					logging.String("exchange", p.config.Exchange),
					logging.String("routing_key", routingKey),
					logging.Err(err))
			}
		}
	}
	p.declared[key] = ok
}

// Health borrows a connection and opens a channel on it
func (p *Publisher) Health(context.Context) error {
	conn, err := p.pool.get()
	if err != nil {
		return errors.ConnectionError("RabbitMQ unavailable", err)
	}
	defer p.pool.put(conn)

	ch, err := conn.Channel()
	if err != nil {
		return errors.ConnectionError("RabbitMQ unavailable", err)
	}
	return ch.Close()
}

func (p *Publisher) Close() error {
	p.pool.close()
	return nil
}
