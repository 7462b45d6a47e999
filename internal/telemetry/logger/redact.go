package logger

import (
	"log/slog"
	"strings"
)

// Attribute keys whose string values are credentials. A key matches when it
// equals a pattern or ends with "_<pattern>", so "token" and "last_token"
// are masked while "token_dir" and "key_index" are not.
var sensitiveKeyPatterns = []string{
	"token",
	"secret",
	"password",
	"credential",
	"key",
	"devkey",
	"netkey",
}

// redactedValue is the placeholder for fully redacted data.
const redactedValue = "***REDACTED***"

// redactSensitive masks credential values. Long values keep a short head
// and tail so two log lines can still be matched against each other.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	if a.Value.Kind() != slog.KindString || !IsSensitiveKey(a.Key) {
		return a
	}
	if v := a.Value.String(); v != "" {
		return slog.String(a.Key, RedactString(v))
	}
	return a
}

// RedactString masks a credential value: first 3 + "..." + last 3 for
// values longer than 8 characters, fully redacted otherwise.
func RedactString(value string) string {
	if len(value) <= 8 {
		return redactedValue
	}
	return value[:3] + "..." + value[len(value)-3:]
}

// IsSensitiveKey checks if an attribute key names a credential.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if keyLower == pattern || strings.HasSuffix(keyLower, "_"+pattern) {
			return true
		}
	}
	return false
}
