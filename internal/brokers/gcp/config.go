package gcp

import (
	"webhook-gateway/internal/common/errors"
)

// Config names the Pub/Sub topic that receives workflow events
type Config struct {
	ProjectID string
	TopicID   string
	// CredentialsFile is a service account key; with neither credentials
	// field set the client uses Application Default Credentials
	CredentialsFile string
	CredentialsJSON string
	// CreateTopic creates the topic when it does not exist
	CreateTopic           bool
	EnableMessageOrdering bool
}

func (c *Config) Validate() error {
	switch {
	case c.ProjectID == "":
		return errors.ConfigError("gcp: project id is required")
	case c.TopicID == "":
		return errors.ConfigError("gcp: topic id is required")
	case c.CredentialsFile != "" && c.CredentialsJSON != "":
		return errors.ConfigError("gcp: credentials file and credentials JSON are mutually exclusive")
	}
	return nil
}

func (c *Config) GetType() string { return "gcp" }

func (c *Config) GetConnectionString() string {
	return "pubsub://projects/" + c.ProjectID + "/topics/" + c.TopicID
}
