package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces the value of any attribute whose key looks sensitive.
const RedactedValue = "[REDACTED]"

// sensitiveFragments are matched against lower-cased attribute keys. A key
// containing any of them is masked by every logger built in this package.
var sensitiveFragments = []string{
	"authorization",
	"bearer",
	"jwt",
	"passphrase",
	"password",
	"private_key",
	"privatekey",
	"secret",
	"dsn",
}

// Sensitive reports whether an attribute key is masked on output.
func Sensitive(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if normalized == "" {
		return false
	}
	for _, fragment := range sensitiveFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}

// MaskField builds a string attribute, masking non-empty values under a
// sensitive key.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) != "" && Sensitive(key) {
		return slog.String(key, RedactedValue)
	}
	return slog.String(key, value)
}

func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup || !Sensitive(attr.Key) {
		return attr
	}
	if attr.Value.Kind() == slog.KindString && strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}
