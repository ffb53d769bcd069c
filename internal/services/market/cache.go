package market

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// CacheEntry cached series
type CacheEntry struct {
	Data      Series    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileCache file-backed cache with TTL
type FileCache struct {
	cacheDir string
	ttl      time.Duration
	mu       sync.RWMutex
}

// NewFileCache creates a file cache
func NewFileCache(cacheDir string, ttl time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, err
	}
	return &FileCache{
		cacheDir: cacheDir,
		ttl:      ttl,
	}, nil
}

// cacheFilePath cache file for a key
func (c *FileCache) cacheFilePath(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "^", "_").Replace(key)
	return filepath.Join(c.cacheDir, safe+".json")
}

// Get returns a fresh entry
func (c *FileCache) Get(key string) (Series, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.cacheFilePath(key))
	if err != nil {
		return Series{}, false
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Series{}, false
	}

	// expired
	if time.Since(entry.UpdatedAt) > c.ttl {
		return Series{}, false
	}

	return entry.Data, true
}

// Set stores an entry
func (c *FileCache) Set(key string, series Series) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := CacheEntry{
		Data:      series,
		UpdatedAt: time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return os.WriteFile(c.cacheFilePath(key), data, 0644)
}
