package app

import (
	"fmt"

	"webhook-gateway/internal/brokers"
	"webhook-gateway/internal/brokers/aws"
	"webhook-gateway/internal/brokers/gcp"
	"webhook-gateway/internal/brokers/kafka"
	"webhook-gateway/internal/brokers/rabbitmq"
	redisbroker "webhook-gateway/internal/brokers/redis"
	"webhook-gateway/internal/circuitbreaker"
	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/config"
	"webhook-gateway/internal/triggers"
)

const redisStreamMaxLen = 10000

// NewBrokerRegistry registers every broker factory. When client-sharing
// factories are passed they replace the defaults of the same type.
func NewBrokerRegistry(overrides ...brokers.Factory) *brokers.Registry {
	registry := brokers.NewRegistry()
	registry.Register(rabbitmq.Factory())
	registry.Register(kafka.Factory())
	registry.Register(redisbroker.Factory())
	registry.Register(gcp.Factory())
	for _, f := range aws.Factories() {
		registry.Register(f)
	}
	for _, f := range overrides {
		registry.Register(f)
	}
	return registry
}

// BrokerConfig maps the environment settings to the selected broker's config
func BrokerConfig(cfg *config.Config) (brokers.Config, error) {
	b := cfg.Broker
	switch b.Type {
	case "redis":
		return &redisbroker.Config{
			Address:      cfg.RedisAddress,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			PoolSize:     cfg.RedisPoolSize,
			Stream:       b.RedisStream,
			StreamMaxLen: redisStreamMaxLen,
		}, nil
	case "rabbitmq":
		return &rabbitmq.Config{
			URL:      b.RabbitMQURL,
			PoolSize: b.RabbitMQPoolSize,
			Queue:    b.RabbitMQQueue,
			Exchange: b.RabbitMQExchange,
		}, nil
	case aws.ModeSQS, aws.ModeSNS:
		return &aws.Config{
			Mode:            b.Type,
			Region:          b.AWSRegion,
			AccessKeyID:     b.AWSAccessKeyID,
			SecretAccessKey: b.AWSSecretAccessKey,
			QueueURL:        b.SQSQueueURL,
			TopicArn:        b.SNSTopicARN,
		}, nil
	case "gcp":
		return &gcp.Config{
			ProjectID:       b.GCPProjectID,
			TopicID:         b.GCPTopicID,
			CredentialsFile: b.GCPCredentialsFile,
		}, nil
	case "kafka":
		return &kafka.Config{
			Brokers:  b.KafkaBrokers,
			ClientID: b.KafkaClientID,
			Topic:    b.KafkaTopic,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported broker type %q", b.Type)
	}
}

func (app *App) initializeTriggers() error {
	app.Breakers = circuitbreaker.NewSet(circuitbreaker.DispatchConfig, app.Logger,
		func(name string, to circuitbreaker.State) {
			app.Metrics.BreakerState(name, int(to))
		})

	var trigger triggers.Trigger
	switch app.Config.TriggerMode {
	case "broker":
		publisher, err := app.connectBroker()
		if err != nil {
			return err
		}
		app.Publisher = publisher
		trigger = triggers.NewBrokerTrigger(publisher, app.Storage, app.Logger)
	default:
		trigger = triggers.NewStorageTrigger(app.Storage)
	}
	app.Logger.Info("Workflow trigger configured", logging.String("trigger", trigger.Name()))

	dispatchConfig := triggers.DefaultDispatcherConfig()
	dispatchConfig.Workers = app.Config.DispatchWorkers
	dispatchConfig.QueueSize = app.Config.DispatchQueueSize
	dispatchConfig.MaxAttempts = app.Config.DispatchMaxAttempts
	dispatchConfig.Timeout = app.Config.DispatchTimeout

	app.Dispatcher = triggers.NewDispatcher(trigger, app.Breakers, app.Metrics, dispatchConfig, app.Logger)
	return nil
}

func (app *App) connectBroker() (brokers.Publisher, error) {
	brokerConfig, err := BrokerConfig(app.Config)
	if err != nil {
		return nil, err
	}

	var overrides []brokers.Factory
	if app.RedisClient != nil {
		client := app.RedisClient
		overrides = append(overrides, brokers.FactoryFunc[*redisbroker.Config]{
			Type: "redis",
			New: func(c *redisbroker.Config) (brokers.Publisher, error) {
				return redisbroker.NewPublisher(client, c), nil
			},
		})
	}

	publisher, err := NewBrokerRegistry(overrides...).Create(brokerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s broker: %w", brokerConfig.GetType(), err)
	}
	app.Logger.Info("Broker: Connected",
		logging.String("type", brokerConfig.GetType()),
		logging.String("connection", brokerConfig.GetConnectionString()))
	return publisher, nil
}
