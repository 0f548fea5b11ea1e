// Package aws publishes workflow events to Amazon SQS queues or SNS topics.
package aws

import (
	"context"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"webhook-gateway/internal/brokers"
	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/common/logging"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	GetTopicAttributes(ctx context.Context, params *sns.GetTopicAttributesInput, optFns ...func(*sns.Options)) (*sns.GetTopicAttributesOutput, error)
}

// Publisher sends to the queue or topic chosen by Config.Mode. Message
// id, key, headers and timestamp travel as message attributes.
type Publisher struct {
	config *Config
	sqs    sqsAPI
	sns    snsAPI
	logger logging.Logger
}

func Connect(ctx context.Context, config *Config) (*Publisher, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			config.AccessKeyID, config.SecretAccessKey, config.SessionToken)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.ConnectionError("failed to load AWS config", err)
	}

	p := newPublisher(config)
	switch config.Mode {
	case ModeSNS:
		p.sns = sns.NewFromConfig(awsCfg, func(o *sns.Options) {
			if config.Endpoint != "" {
				o.BaseEndpoint = aws.String(config.Endpoint)
			}
		})
	default:
		p.sqs = sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if config.Endpoint != "" {
				o.BaseEndpoint = aws.String(config.Endpoint)
			}
		})
	}
	return p, nil
}

func newPublisher(config *Config) *Publisher {
	return &Publisher{
		config: config,
		logger: logging.GetGlobalLogger().WithFields(
			logging.String("broker", config.Mode),
			logging.String("connection", config.GetConnectionString())),
	}
}

// Factories returns the SQS and SNS factories
func Factories() []brokers.Factory {
	create := func(c *Config) (brokers.Publisher, error) { return Connect(context.Background(), c) }
	return []brokers.Factory{
		brokers.FactoryFunc[*Config]{Type: ModeSQS, New: create},
		brokers.FactoryFunc[*Config]{Type: ModeSNS, New: create},
	}
}

func (p *Publisher) Name() string { return p.config.Mode }

func (p *Publisher) Publish(ctx context.Context, message *brokers.Message) error {
	if p.config.Mode == ModeSNS {
		return p.publishSNS(ctx, message)
	}
	return p.publishSQS(ctx, message)
}

func (p *Publisher) publishSQS(ctx context.Context, message *brokers.Message) error {
	queueURL := p.config.QueueURL
	if strings.HasPrefix(message.Topic, "https://") {
		queueURL = message.Topic
	}

	attrs := make(map[string]sqstypes.MessageAttributeValue)
	for name, value := range attributes(message) {
		attrs[name] = sqstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(value)}
	}
	attrs["Timestamp"] = sqstypes.MessageAttributeValue{
		DataType:    aws.String("Number"),
		StringValue: aws.String(strconv.FormatInt(message.Timestamp.UnixNano(), 10)),
	}

	result, err := p.sqs.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(queueURL),
		MessageBody:       aws.String(string(message.Body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return errors.ConnectionError("failed to send message to SQS", err)
	}

	p.logger.Debug("Message sent to SQS",
		logging.String("sqs_message_id", aws.ToString(result.MessageId)),
		logging.String("message_id", message.MessageID))
	return nil
}

func (p *Publisher) publishSNS(ctx context.Context, message *brokers.Message) error {
	topicArn := p.config.TopicArn
	if strings.HasPrefix(message.Topic, "arn:") {
		topicArn = message.Topic
	}

	attrs := make(map[string]snstypes.MessageAttributeValue)
	for name, value := range attributes(message) {
		attrs[name] = snstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(value)}
	}

	result, err := p.sns.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(topicArn),
		Message:           aws.String(string(message.Body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return errors.ConnectionError("failed to publish message to SNS", err)
	}

	p.logger.Debug("Message published to SNS",
		logging.String("sns_message_id", aws.ToString(result.MessageId)),
		logging.String("message_id", message.MessageID))
	return nil
}

func attributes(message *brokers.Message) map[string]string {
	attrs := make(map[string]string, len(message.Headers)+2)
	if message.MessageID != "" {
		attrs["MessageID"] = message.MessageID
	}
	if message.Key != "" {
		attrs["RoutingKey"] = message.Key
	}
	for k, v := range message.Headers {
		if v != "" {
			attrs["Header_"+k] = v
		}
	}
	return attrs
}

// Health reads the queue or topic attributes
func (p *Publisher) Health(ctx context.Context) error {
	var err error
	if p.config.Mode == ModeSNS {
		_, err = p.sns.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{TopicArn: aws.String(p.config.TopicArn)})
	} else {
		_, err = p.sqs.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
			QueueUrl:       aws.String(p.config.QueueURL),
			AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameApproximateNumberOfMessages},
		})
	}
	if err != nil {
		return errors.ConnectionError("AWS broker unavailable", err)
	}
	return nil
}

func (p *Publisher) Close() error { return nil }
