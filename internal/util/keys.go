package util

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// HashedKey returns prefix + ":" + the first 16 hex chars of sha256(key).
func HashedKey(prefix, key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s:%x", prefix, sum[:8])
}

// Canonical renders op(args) deterministically. Empty values are dropped so
// an absent optional argument and an empty one produce the same key.
func Canonical(op string, args map[string]string) string {
	norm := make(map[string]string, len(args))
	for k, v := range args {
		if v == "" {
			continue
		}
		norm[k] = v
	}
	// encoding/json sorts map keys
	b, _ := json.Marshal(norm)
	return op + "(" + string(b) + ")"
}
