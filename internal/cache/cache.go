package cache

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Cache stores opaque byte values with an expiry.
// Get returns (nil, nil) for a missing key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
	Health(ctx context.Context) error
}

// CacheError represents a cache operation error
type CacheError struct {
	Operation string
	Key       string
	Err       error
}

func (e *CacheError) Error() string {
	return "cache " + e.Operation + " failed for key '" + e.Key + "': " + e.Err.Error()
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// GetJSON decodes a cached JSON value into v. It reports false on a miss,
// a backend error or undecodable data; callers treat all three as a miss.
func GetJSON(ctx context.Context, c Cache, key string, v any) bool {
	if c == nil {
		return false
	}
	data, err := c.Get(ctx, key)
	if err != nil || data == nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// SetJSON encodes v and stores it. Errors are returned for logging only.
func SetJSON(ctx context.Context, c Cache, key string, v any, expiration time.Duration) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return &CacheError{Operation: "encode", Key: key, Err: err}
	}
	return c.Set(ctx, key, data, expiration)
}
