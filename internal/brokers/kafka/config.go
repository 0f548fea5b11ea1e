package kafka

import (
	"fmt"
	"strings"
	"time"

	"webhook-gateway/internal/common/errors"
)

var (
	securityProtocols = map[string]bool{"PLAINTEXT": true, "SSL": true, "SASL_PLAINTEXT": true, "SASL_SSL": true}
	saslMechanisms    = map[string]bool{"PLAIN": true, "SCRAM-SHA-256": true, "SCRAM-SHA-512": true}
)

// Config selects the Kafka cluster and the topic workflow events go to when
// a message names none. SASL settings apply only to the SASL_* protocols.
type Config struct {
	Brokers          []string
	ClientID         string
	Topic            string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
	// DeliveryTimeout bounds the wait for a broker acknowledgement
	DeliveryTimeout time.Duration
}

func (c *Config) usesSASL() bool {
	return strings.HasPrefix(c.SecurityProtocol, "SASL_")
}

func (c *Config) applyDefaults() {
	if c.ClientID == "" {
		c.ClientID = "webhook-gateway"
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 10 * time.Second
	}
	if c.SecurityProtocol == "" {
		c.SecurityProtocol = "PLAINTEXT"
	}
	if c.usesSASL() && c.SASLMechanism == "" {
		c.SASLMechanism = "PLAIN"
	}
}

// Validate fills defaults, then checks the cluster and credential settings
func (c *Config) Validate() error {
	c.applyDefaults()

	if len(c.Brokers) == 0 {
		return errors.ConfigError("kafka: at least one broker address is required")
	}
	for i, addr := range c.Brokers {
		if strings.TrimSpace(addr) == "" {
			return errors.ConfigError(fmt.Sprintf("kafka: broker address %d is empty", i))
		}
	}
	if !securityProtocols[c.SecurityProtocol] {
		return errors.ConfigError(fmt.Sprintf("kafka: unknown security protocol %q", c.SecurityProtocol))
	}
	if !c.usesSASL() {
		return nil
	}
	if !saslMechanisms[c.SASLMechanism] {
		return errors.ConfigError(fmt.Sprintf("kafka: unknown SASL mechanism %q", c.SASLMechanism))
	}
	if c.SASLUsername == "" || c.SASLPassword == "" {
		return errors.ConfigError("kafka: " + c.SecurityProtocol + " needs a SASL username and password")
	}
	return nil
}

func (c *Config) GetType() string { return "kafka" }

// GetConnectionString is the bootstrap server list
func (c *Config) GetConnectionString() string {
	return strings.Join(c.Brokers, ",")
}
