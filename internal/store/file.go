package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// cacheFile is the on-disk envelope of the throttle store.
type cacheFile struct {
	Throttles map[string]time.Time `json:"throttles"`
}

// Load reads the throttle cache at path. A missing or unreadable file is not
// an error: the store starts fresh with only the default entry at now.
func Load(path string, now time.Time) *Throttles {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("WARN: cannot read throttle cache %s, starting fresh: %v", path, err)
		}
		return NewThrottles(now)
	}

	var cache cacheFile
	if err := json.Unmarshal(data, &cache); err != nil {
		log.Printf("WARN: corrupt throttle cache %s, starting fresh: %v", path, err)
		return NewThrottles(now)
	}

	t := NewThrottles(now)
	for k, v := range cache.Throttles {
		t.entries[k] = v.UTC()
	}
	return t
}

// Save writes the store to path, replacing any previous file atomically.
func (t *Throttles) Save(path string) error {
	data, err := json.MarshalIndent(cacheFile{Throttles: t.Snapshot()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode throttle cache: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".wbcache-*")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace cache %s: %w", path, err)
	}
	return nil
}
