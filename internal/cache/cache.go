package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry TTL
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// keyVersion is bumped whenever the cached payload layout changes
const keyVersion = "v1"

// DocumentKey derives a cache key from a namespace and the parts that
// determine a result, typically the document kind and its bytes.
func DocumentKey(namespace string, parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		// Length prefix keeps ("ab","c") and ("a","bc") apart
		_, _ = fmt.Fprintf(h, "%d:", len(p))
		_, _ = h.Write(p)
	}
	return "certverify:" + keyVersion + ":" + namespace + ":" + hex.EncodeToString(h.Sum(nil))
}

// GetJSON loads a JSON-encoded value. A corrupt entry counts as a miss.
func GetJSON[T any](c Cache, key string) (*T, bool) {
	data, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	return &v, true
}

// SetJSON stores v JSON-encoded
func SetJSON[T any](c Cache, key string, v *T, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return c.Set(key, data, ttl)
}
