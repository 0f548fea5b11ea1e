// Package security evaluates the per-endpoint IP allow-list and request quota
// before a delivery is authenticated.
package security

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"webhook-gateway/internal/common/logging"
	"webhook-gateway/internal/common/utils"
	"webhook-gateway/internal/models"
	"webhook-gateway/internal/ratelimit"
)

// CIDR matching modes
const (
	CIDRModeSubnet = "subnet"
	// CIDRModePrefix compares the literal network text as a string prefix of the
	// client address and ignores the mask length. Kept for deployments that
	// depend on the old matching.
	CIDRModePrefix = "prefix"
)

const (
	ErrIPNotAllowed      = "IP not allowed"
	ErrRateLimitExceeded = "Rate limit exceeded"
)

// Result is the outcome of a security check. Status is set when Valid is false.
type Result struct {
	Valid  bool
	Error  string
	Status int
}

// Checker runs the allow-list and rate-limit checks
type Checker struct {
	limiter  ratelimit.Limiter
	cidrMode string
	logger   logging.Logger
}

// NewChecker creates a checker. A nil limiter disables quota checks.
func NewChecker(limiter ratelimit.Limiter, cidrMode string, logger logging.Logger) *Checker {
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	if cidrMode == "" {
		cidrMode = CIDRModeSubnet
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Checker{limiter: limiter, cidrMode: cidrMode, logger: logger}
}

// Validate checks clientIP against the endpoint's allow-list and then records
// the request against its quota. A failing quota store lets the request
// through.
func (c *Checker) Validate(ctx context.Context, config *models.WebhookConfig, clientIP string) Result {
	if len(config.Security.IPWhitelist) > 0 && !c.IPAllowed(clientIP, config.Security.IPWhitelist) {
		return Result{Valid: false, Error: ErrIPNotAllowed, Status: http.StatusForbidden}
	}

	policy := config.Security.RateLimit
	if policy.Requests <= 0 {
		return Result{Valid: true}
	}

	window, err := utils.ParsePeriod(policy.Period)
	if err != nil {
		c.logger.Warn("Invalid rate limit period, skipping quota check",
			logging.String("webhook_id", config.ID),
			logging.String("period", policy.Period))
		return Result{Valid: true}
	}

	decision, err := c.limiter.Allow(ctx, RateLimitKey(config.ID, clientIP), policy.Requests, window)
	if err != nil {
		c.logger.Error("Rate limit check failed, allowing request", err,
			logging.String("webhook_id", config.ID))
		return Result{Valid: true}
	}
	if !decision.Allowed {
		return Result{Valid: false, Error: ErrRateLimitExceeded, Status: http.StatusTooManyRequests}
	}

	return Result{Valid: true}
}

// RateLimitKey is the quota key for one client of one endpoint
func RateLimitKey(webhookID, clientIP string) string {
	return fmt.Sprintf("webhook:%s:%s", webhookID, clientIP)
}

// IPAllowed reports whether clientIP matches any allow-list entry, either
// exactly or by CIDR containment.
func (c *Checker) IPAllowed(clientIP string, whitelist []string) bool {
	for _, entry := range whitelist {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			if c.matchCIDR(clientIP, entry) {
				return true
			}
			continue
		}
		if clientIP == entry {
			return true
		}
	}
	return false
}

func (c *Checker) matchCIDR(clientIP, cidr string) bool {
	if c.cidrMode == CIDRModePrefix {
		network, _, _ := strings.Cut(cidr, "/")
		return strings.HasPrefix(clientIP, network)
	}

	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		c.logger.Warn("Ignoring malformed CIDR entry", logging.String("cidr", cidr))
		return false
	}
	addr, err := netip.ParseAddr(clientIP)
	if err != nil {
		return false
	}
	return prefix.Contains(addr.Unmap())
}
