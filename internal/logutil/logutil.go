// Package logutil builds short, secret-free previews of page and API bodies
// for structured log events.
package logutil

import (
	"encoding/json"
	"strings"
)

const (
	redacted        = "[REDACTED]"
	truncatedSuffix = "... [truncated]"
)

// sensitiveMarkers are matched against field names with case, '-' and '_' removed.
var sensitiveMarkers = []string{"token", "secret", "password", "apikey", "cookie", "auth"}

// IsSensitiveLogField reports whether a field name likely holds a credential.
func IsSensitiveLogField(key string) bool {
	normalized := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(key)))
	for _, marker := range sensitiveMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

// SniffContentType guesses whether a response body is JSON or markup.
// Browsers only hand back page source, so there is no header to consult.
func SniffContentType(body string) string {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return "application/json"
	}
	return "text/html"
}

// RedactBodyForLog masks sensitive JSON fields at any depth.
// Bodies that are not JSON come back unchanged.
func RedactBodyForLog(contentType string, body []byte) string {
	if !strings.Contains(strings.ToLower(contentType), "json") {
		return string(body)
	}
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return string(body)
	}
	masked, err := json.Marshal(redactValue(payload))
	if err != nil {
		return string(body)
	}
	return string(masked)
}

func redactValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		for k, child := range typed {
			if IsSensitiveLogField(k) {
				typed[k] = redacted
			} else {
				typed[k] = redactValue(child)
			}
		}
	case []any:
		for i, child := range typed {
			typed[i] = redactValue(child)
		}
	}
	return v
}

// FormatBodyForLog redacts, then truncates, body text for safe logging.
func FormatBodyForLog(contentType string, body []byte, maxChars int) string {
	if len(body) == 0 {
		return ""
	}
	return TruncateForLog(RedactBodyForLog(contentType, body), maxChars)
}

// TruncateForLog returns a single-line preview of at most maxChars bytes
// plus a truncation marker. maxChars <= 0 disables truncation.
func TruncateForLog(value string, maxChars int) string {
	line := strings.ReplaceAll(strings.TrimSpace(value), "\n", `\n`)
	if maxChars <= 0 || len(line) <= maxChars {
		return line
	}
	return line[:maxChars] + truncatedSuffix
}
