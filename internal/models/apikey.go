package models

import "time"

// APIKey is a long-lived credential. KeyHash is the SHA-256 of the plaintext
// and is never serialized.
type APIKey struct {
	ID          string     `json:"id"`
	KeyHash     string     `json:"-"`
	KeyPrefix   string     `json:"keyPrefix"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	UserID      string     `json:"userId"`
	Permissions []string   `json:"permissions"`
	IsActive    bool       `json:"isActive"`
	RateLimit   RateLimit  `json:"rateLimit"`
	WebhookIDs  []string   `json:"webhookIds"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastUsed    *time.Time `json:"lastUsed,omitempty"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
}

// Scoped reports whether the key is restricted to specific webhooks
func (k *APIKey) Scoped() bool {
	return len(k.WebhookIDs) > 0
}

// AllowsWebhook reports whether the key may be used for webhookID
func (k *APIKey) AllowsWebhook(webhookID string) bool {
	if !k.Scoped() {
		return true
	}
	for _, id := range k.WebhookIDs {
		if id == webhookID {
			return true
		}
	}
	return false
}
