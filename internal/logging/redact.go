package logging

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// sensitiveSegments mark a log key as secret when any of its words match.
// fcm and vapid cover push tokens and the web-push key.
var sensitiveSegments = map[string]struct{}{
	"secret": {}, "password": {}, "token": {}, "key": {}, "auth": {},
	"credential": {}, "fcm": {}, "vapid": {}, "authorization": {},
}

var (
	keySeparator = regexp.MustCompile(`[^a-z0-9]+`)
	// authHeader matches a rendered Authorization header value.
	authHeader = regexp.MustCompile(`(?i)^(token|bearer)\s+\S+$`)
	// pushPath matches relay URLs, whose last segment is a push token.
	pushPath = regexp.MustCompile(`/v1/push/[^/?#\s]+`)
)

// scrub returns a copy of the flattened key-value pairs with secret values
// replaced. Values are scrubbed even under harmless keys when they carry a
// credential.
func scrub(pairs []any) []any {
	if len(pairs) == 0 {
		return pairs
	}
	out := make([]any, len(pairs))
	copy(out, pairs)
	for i := 0; i+1 < len(out); i += 2 {
		if key, ok := out[i].(string); ok && sensitiveKey(key) {
			out[i+1] = redacted
			continue
		}
		if s, ok := out[i+1].(string); ok {
			out[i+1] = scrubValue(s)
		}
	}
	return out
}

func sensitiveKey(key string) bool {
	for _, word := range keySeparator.Split(strings.ToLower(key), -1) {
		if _, ok := sensitiveSegments[word]; ok {
			return true
		}
	}
	return false
}

func scrubValue(s string) string {
	if authHeader.MatchString(strings.TrimSpace(s)) {
		return redacted
	}
	return pushPath.ReplaceAllString(s, "/v1/push/"+redacted)
}
