package rabbitmq

import (
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// channel is the subset of *amqp.Channel the publisher uses
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Close() error
}

type connection interface {
	Channel() (channel, error)
	IsClosed() bool
	Close() error
}

type dialFunc func(url string) (connection, error)

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (channel, error) {
	return c.Connection.Channel()
}

func dialAMQP(url string) (connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

// pool holds up to maxSize open connections and redials dead ones
type pool struct {
	url         string
	dial        dialFunc
	connections chan connection
	waitTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

func newPool(url string, maxSize int, dial dialFunc) (*pool, error) {
	p := &pool{
		url:         url,
		dial:        dial,
		connections: make(chan connection, maxSize),
		waitTimeout: 5 * time.Second,
	}

	for i := 0; i < maxSize; i++ {
		conn, err := dial(url)
		if err != nil {
			p.close()
			return nil, fmt.Errorf("failed to create initial RabbitMQ connection: %w", err)
		}
		p.connections <- conn
	}
	return p, nil
}

func (p *pool) get() (connection, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("connection pool is closed")
	}

	select {
	case conn, ok := <-p.connections:
		if !ok {
			return nil, fmt.Errorf("connection pool is closed")
		}
		if conn.IsClosed() {
			fresh, err := p.dial(p.url)
			if err != nil {
				return nil, fmt.Errorf("failed to create new RabbitMQ connection: %w", err)
			}
			return fresh, nil
		}
		return conn, nil
	case <-time.After(p.waitTimeout):
		return nil, fmt.Errorf("timeout waiting for connection from pool")
	}
}

func (p *pool) put(conn connection) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || conn.IsClosed() {
		_ = conn.Close()
		return
	}
	select {
	case p.connections <- conn:
	default:
		_ = conn.Close()
	}
}

func (p *pool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.connections)
	for conn := range p.connections {
		_ = conn.Close()
	}
}
