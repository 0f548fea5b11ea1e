package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"webhook-gateway/internal/models"
)

const redacted = "***REDACTED***"

// ClientIP returns the first X-Forwarded-For entry, then X-Real-IP, then
// the host part of RemoteAddr
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SanitizeHeaders flattens headers for storage with credentials redacted:
// Authorization, X-API-Key and the endpoint's own credential headers
func SanitizeHeaders(header http.Header, cfg models.Authentication) map[string]string {
	sensitive := map[string]bool{
		"authorization": true,
		"x-api-key":     true,
	}
	if cfg.HeaderName != "" {
		sensitive[strings.ToLower(cfg.HeaderName)] = true
	}
	if cfg.SignatureHeader != "" {
		sensitive[strings.ToLower(cfg.SignatureHeader)] = true
	}

	out := make(map[string]string, len(header))
	for name, values := range header {
		if sensitive[strings.ToLower(name)] {
			out[name] = redacted
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// payloadJSON returns body as-is when it is JSON, otherwise as a JSON string
func payloadJSON(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}
