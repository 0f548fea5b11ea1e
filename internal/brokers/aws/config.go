package aws

import (
	"fmt"
)

const (
	ModeSQS = "sqs"
	ModeSNS = "sns"
)

// Config selects SQS or SNS by Mode. Without static keys the default AWS
// credential chain is used.
type Config struct {
	Mode            string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	QueueURL        string
	TopicArn        string
	// Endpoint overrides the service endpoint, e.g. for LocalStack
	Endpoint string
}

func (c *Config) Validate() error {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("AWS access key id and secret access key must be set together")
	}

	switch c.Mode {
	case ModeSQS:
		if c.QueueURL == "" {
			return fmt.Errorf("QueueURL is required for SQS")
		}
	case ModeSNS:
		if c.TopicArn == "" {
			return fmt.Errorf("TopicArn is required for SNS")
		}
	default:
		return fmt.Errorf("AWS mode must be %s or %s, got %q", ModeSQS, ModeSNS, c.Mode)
	}
	return nil
}

func (c *Config) GetType() string {
	return c.Mode
}

func (c *Config) GetConnectionString() string {
	if c.Mode == ModeSNS {
		return fmt.Sprintf("sns://%s/%s", c.Region, c.TopicArn)
	}
	return fmt.Sprintf("sqs://%s/%s", c.Region, c.QueueURL)
}
