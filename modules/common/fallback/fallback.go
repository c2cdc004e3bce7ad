package fallback

import "strings"

// SafeString returns a trimmed string or the provided fallback.
func SafeString(value interface{}, fallback string) string {
	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		if s != "" {
			return s
		}
	}
	return fallback
}

// FirstString returns the first non-blank string stored under one of keys, in key order.
func FirstString(m map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		if s := SafeString(m[key], ""); s != "" {
			return s, true
		}
	}
	return "", false
}
