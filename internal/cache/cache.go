package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching extraction responses
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// keyVersion changes whenever the cached payload shape changes
const keyVersion = "medscribe:extract:v1:"

// ExtractionKey derives a cache key from everything that determines a
// zero-temperature extraction response
func ExtractionKey(provider, model, system, user string) string {
	h := sha256.New()
	for _, part := range []string{provider, model, system, user} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return keyVersion + hex.EncodeToString(h.Sum(nil))
}

// New builds the configured cache: a memory layer alone, or memory over disk when dir is set
func New(dir string, memoryTTL, diskTTL time.Duration) Cache {
	if dir == "" {
		return NewMemoryCache(memoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(memoryTTL, dir, diskTTL)
}
