package logger

import (
	"log/slog"
	"strings"
)

// Sensitive key patterns that should be redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"credential",
	"dcid_key",
}

// Protocol commands whose trailing arguments carry a secret. The map value
// is the number of leading words that stay visible.
var sensitiveCommands = map[string]int{
	"USER": 2, // USER <name> [<password>]
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive checks if an attribute contains sensitive data
// and redacts it if necessary.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()

		// Protocol lines are masked word-wise so the command stays readable.
		if redacted := RedactCommand(strVal); redacted != strVal {
			return slog.String(a.Key, redacted)
		}

		if isSensitiveKey(a.Key) && strVal != "" {
			return slog.String(a.Key, redactedValue)
		}
	}

	// Handle nested groups recursively
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// RedactCommand masks the secret arguments of a protocol line such as
// "USER name password". Other lines are returned unchanged.
func RedactCommand(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return line
	}
	keep, ok := sensitiveCommands[strings.ToUpper(fields[0])]
	if !ok || len(fields) <= keep {
		return line
	}
	out := append([]string{}, fields[:keep]...)
	for range fields[keep:] {
		out = append(out, "****")
	}
	return strings.Join(out, " ")
}

// isSensitiveKey reports whether a key name suggests sensitive content.
func isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// MaskSecret keeps the first and last two characters of a secret, for
// printing configuration.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
