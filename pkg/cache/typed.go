package cache

import (
	"fmt"
	"time"
)

// GetTyped decodes the value under key into T. It reports a miss when the
// key is absent, expired or not valid JSON for T.
func GetTyped[T any](s *Store, key string) (T, time.Time, bool) {
	var v T
	data, created, ok := s.Get(key)
	if !ok {
		return v, time.Time{}, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, time.Time{}, false
	}
	return v, created, true
}

// PutTyped encodes value as JSON and stores it with ttl.
func PutTyped[T any](s *Store, key string, value T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal typed value for %q: %w", key, err)
	}
	return s.Put(key, data, ttl)
}
