// Package cache persists small JSON values between runs. Each key is one
// file, named after the key plus a short hash, holding the value and its
// expiry. Writes
// go through a temp file and a rename, so a crash never leaves a torn entry.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	fileSuffix = ".json"
	maxSlugLen = 32
)

type entry struct {
	Key     string              `json:"key"`
	Created int64               `json:"created"` // UnixNano
	TTLNS   int64               `json:"ttl_ns"`  // 0 = no expiry
	Data    jsoniter.RawMessage `json:"data"`
}

// Store is a directory of cache entries. It is safe for concurrent use:
// readers only ever see complete files.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore opens dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create directory %s: %w", dir, err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// Get returns the raw JSON stored under key and when it was written. Expired
// and unreadable entries are removed and reported as misses.
func (s *Store) Get(key string) ([]byte, time.Time, bool) {
	path := s.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Key != key {
		_ = os.Remove(path)
		return nil, time.Time{}, false
	}
	created := time.Unix(0, e.Created)
	if e.TTLNS > 0 && s.now().Sub(created) > time.Duration(e.TTLNS) {
		_ = os.Remove(path)
		return nil, time.Time{}, false
	}
	return e.Data, created, true
}

// Put stores raw JSON under key. A ttl of zero never expires.
func (s *Store) Put(key string, value []byte, ttl time.Duration) error {
	data, err := json.Marshal(entry{
		Key:     key,
		Created: s.now().UnixNano(),
		TTLNS:   int64(ttl),
		Data:    value,
	})
	if err != nil {
		return fmt.Errorf("cache: marshal %q: %w", key, err)
	}
	if err := atomicWrite(s.path(key), data, s.dir); err != nil {
		return fmt.Errorf("cache: write %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cache: delete %q: %w", key, err)
	}
	return nil
}

// Clear removes every entry and leftover temp file.
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("cache: clear read dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(name, fileSuffix) || strings.HasPrefix(name, ".tmp-") {
			_ = os.Remove(filepath.Join(s.dir, name))
		}
	}
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, fileName(key))
}

// fileName maps a key such as "stock/AAPL" to "stock-AAPL-1a2b3c4d5e6f.json".
// The slug is for people listing the directory; the hash keeps keys that
// slug alike apart.
func fileName(key string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '-'
	}, key)
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}
	sum := sha256.Sum256([]byte(key))
	return slug + "-" + hex.EncodeToString(sum[:6]) + fileSuffix
}

// atomicWrite writes data to path via a temporary file and rename.
func atomicWrite(path string, data []byte, tmpDir string) error {
	tmp, err := os.CreateTemp(tmpDir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	success = true
	return nil
}
