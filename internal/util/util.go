// Package util holds path and log-redaction helpers shared by config, logging and app.
package util

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// webhookTokenPrefix is the public marker of generated payment webhook tokens.
const webhookTokenPrefix = "whk_"

// minTailSecretLength is the shortest webhook token whose last characters are logged.
const minTailSecretLength = 16

// sensitiveQueryKeys are query parameters that carry credentials for this service.
var sensitiveQueryKeys = map[string]struct{}{
	"token":         {},
	"access_token":  {},
	"webhook_token": {},
	"jwt":           {},
	"password":      {},
	"secret":        {},
}

// WritablePath returns the cleaned WRITABLE_PATH directory, or "" when unset.
func WritablePath() string {
	dir := strings.TrimSpace(os.Getenv("WRITABLE_PATH"))
	if dir == "" {
		return ""
	}
	return filepath.Clean(dir)
}

// HideSecret redacts a webhook token, JWT secret or password for logging.
// Webhook tokens keep their prefix and last four characters; every other
// secret is reduced to its length.
func HideSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	if strings.HasPrefix(secret, webhookTokenPrefix) && len(secret) >= minTailSecretLength {
		return webhookTokenPrefix + "****" + secret[len(secret)-4:]
	}
	return fmt.Sprintf("****(%d)", len(secret))
}

// MaskSensitiveQuery redacts credential parameters in a raw query string.
// Other parameters keep their order and encoding.
func MaskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	for i, part := range parts {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		name, errKey := url.QueryUnescape(key)
		if errKey != nil {
			name = key
		}
		if _, sensitive := sensitiveQueryKeys[strings.ToLower(strings.TrimSpace(name))]; !sensitive {
			continue
		}
		decoded, errValue := url.QueryUnescape(value)
		if errValue != nil {
			decoded = value
		}
		parts[i] = key + "=" + HideSecret(decoded)
	}
	return strings.Join(parts, "&")
}
