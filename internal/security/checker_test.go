package security

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/models"
	"webhook-gateway/internal/ratelimit"
)

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (ratelimit.Decision, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Get(0).(ratelimit.Decision), args.Error(1)
}

func webhook(whitelist ...string) *models.WebhookConfig {
	return &models.WebhookConfig{
		ID: "wh1",
		Security: models.Security{
			IPWhitelist: whitelist,
			RateLimit:   models.RateLimit{Requests: 2, Period: "minute"},
		},
	}
}

func TestIPAllowed_Subnet(t *testing.T) {
	c := NewChecker(nil, CIDRModeSubnet, logging.NewNopLogger())

	tests := []struct {
		name      string
		ip        string
		whitelist []string
		want      bool
	}{
		{"exact match", "1.2.3.4", []string{"1.2.3.4"}, true},
		{"exact mismatch", "1.2.3.5", []string{"1.2.3.4"}, false},
		{"inside /8", "10.200.3.4", []string{"10.0.0.0/8"}, true},
		{"outside /8", "192.168.1.1", []string{"10.0.0.0/8"}, false},
		{"/24 boundary", "10.0.1.1", []string{"10.0.0.0/24"}, false},
		{"prefix text without subnet match", "10.0.0.100", []string{"10.0.0.1/32"}, false},
		{"ipv6", "2001:db8::1", []string{"2001:db8::/32"}, true},
		{"mapped ipv4", "::ffff:10.1.1.1", []string{"10.0.0.0/8"}, true},
		{"malformed cidr", "10.0.0.1", []string{"10.0.0.0/99"}, false},
		{"unparseable client", "not-an-ip", []string{"10.0.0.0/8"}, false},
		{"second entry matches", "172.16.5.5", []string{"10.0.0.0/8", "172.16.0.0/12"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IPAllowed(tt.ip, tt.whitelist))
		})
	}
}

func TestIPAllowed_PrefixMode(t *testing.T) {
	c := NewChecker(nil, CIDRModePrefix, logging.NewNopLogger())

	assert.True(t, c.IPAllowed("10.0.0.100", []string{"10.0.0.1/32"}))
	assert.True(t, c.IPAllowed("192.168.1.1", []string{"192.168/16"}))
	// the literal text "10.0.0.0" is not a prefix of 10.1.2.3
	assert.False(t, c.IPAllowed("10.1.2.3", []string{"10.0.0.0/8"}))
}

func TestValidate_IPRejectedBeforeQuota(t *testing.T) {
	limiter := &mockLimiter{}
	c := NewChecker(limiter, "", logging.NewNopLogger())

	res := c.Validate(context.Background(), webhook("10.0.0.0/8"), "192.168.1.1")

	assert.False(t, res.Valid)
	assert.Equal(t, ErrIPNotAllowed, res.Error)
	assert.Equal(t, http.StatusForbidden, res.Status)
	limiter.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestValidate_RateLimited(t *testing.T) {
	limiter := &mockLimiter{}
	limiter.On("Allow", mock.Anything, "webhook:wh1:10.0.0.1", 2, time.Minute).
		Return(ratelimit.Decision{Allowed: false, Limit: 2}, nil)

	c := NewChecker(limiter, "", logging.NewNopLogger())
	res := c.Validate(context.Background(), webhook(), "10.0.0.1")

	assert.False(t, res.Valid)
	assert.Equal(t, ErrRateLimitExceeded, res.Error)
	assert.Equal(t, http.StatusTooManyRequests, res.Status)
	limiter.AssertExpectations(t)
}

func TestValidate_LimiterErrorFailsOpen(t *testing.T) {
	limiter := &mockLimiter{}
	limiter.On("Allow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(ratelimit.Decision{}, errors.New("redis down"))

	c := NewChecker(limiter, "", logging.NewNopLogger())
	res := c.Validate(context.Background(), webhook(), "10.0.0.1")

	assert.True(t, res.Valid)
}

func TestValidate_LocalLimiter(t *testing.T) {
	c := NewChecker(ratelimit.NewLocalLimiter(time.Hour), "", logging.NewNopLogger())
	cfg := webhook("10.0.0.0/8")

	assert.True(t, c.Validate(context.Background(), cfg, "10.0.0.1").Valid)
	assert.True(t, c.Validate(context.Background(), cfg, "10.0.0.1").Valid)
	assert.False(t, c.Validate(context.Background(), cfg, "10.0.0.1").Valid)

	// quota is per client address
	assert.True(t, c.Validate(context.Background(), cfg, "10.0.0.2").Valid)
}

func TestValidate_NoQuota(t *testing.T) {
	limiter := &mockLimiter{}
	c := NewChecker(limiter, "", logging.NewNopLogger())

	cfg := webhook()
	cfg.Security.RateLimit = models.RateLimit{}

	assert.True(t, c.Validate(context.Background(), cfg, "1.1.1.1").Valid)
	limiter.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
