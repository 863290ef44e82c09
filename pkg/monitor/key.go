package monitor

import (
	"fmt"
	"strings"
)

// KeyPrefix namespaces monitor entries in Redis.
const KeyPrefix = "odata:monitor:"

// Key returns the Redis key for an entry ID.
//
// Example:
//
//	odata:monitor:5f0c2d2e-8d0b-4b52-9f43-2f4d1c6e8a11
func Key(id string) string {
	return KeyPrefix + id
}

// ParseKey extracts the entry ID from a Redis key.
func ParseKey(key string) (string, error) {
	id, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok || id == "" {
		return "", fmt.Errorf("not a monitor key: %q", key)
	}
	return id, nil
}
