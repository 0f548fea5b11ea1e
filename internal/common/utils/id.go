// Package utils holds small helpers shared by the gateway: id generation,
// retry with backoff and rate-limit period parsing.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lucsky/cuid"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateRandomHex returns hex encoding of n random bytes
func GenerateRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// randomBase36 returns n random characters from [0-9a-z]
func randomBase36(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(base36)))
	for i := range out {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = base36[v.Int64()]
	}
	return string(out), nil
}

// NewWebhookID returns an id of the form wh_<base36 unix millis>_<6 base36 chars>
func NewWebhookID() (string, error) {
	suffix, err := randomBase36(6)
	if err != nil {
		return "", fmt.Errorf("generate webhook id: %w", err)
	}
	return fmt.Sprintf("wh_%s_%s", strconv.FormatInt(time.Now().UnixMilli(), 36), suffix), nil
}

// NewAPIKeyID returns an id of the form key_<unix millis>_<8 hex chars>
func NewAPIKeyID() (string, error) {
	suffix, err := GenerateRandomHex(4)
	if err != nil {
		return "", fmt.Errorf("generate api key id: %w", err)
	}
	return fmt.Sprintf("key_%d_%s", time.Now().UnixMilli(), suffix), nil
}

// NewAuditID returns a collision resistant id for audit entries
func NewAuditID() string {
	return cuid.New()
}

// NewExecutionID returns a random UUID for workflow executions
func NewExecutionID() string {
	return uuid.NewString()
}

// NewRequestID returns an id used to correlate log lines of one request
func NewRequestID() string {
	return uuid.NewString()
}
