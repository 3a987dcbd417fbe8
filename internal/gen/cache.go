package gen

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog/log"
)

// Cache stores generation results keyed by CacheKey. Results are kept
// in memory for the lifetime of the build process and mirrored to disk
// so repeated builds with unchanged inputs skip generation entirely.
// Safe for concurrent use.
type Cache struct {
	dir string
	mu  sync.RWMutex
	mem map[string]*Result
}

// NewCache creates a cache rooted at dir. An empty dir disables the
// disk mirror; the in-memory layer still works.
func NewCache(dir string) *Cache {
	return &Cache{
		dir: dir,
		mem: make(map[string]*Result),
	}
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".cbor")
}

// Get returns the cached result for key, consulting memory first and
// then the disk mirror. A corrupt disk entry is treated as a miss, not
// an error: the build regenerates and overwrites it.
func (c *Cache) Get(key string) (*Result, bool) {
	c.mu.RLock()
	res, ok := c.mem[key]
	c.mu.RUnlock()
	if ok {
		cacheHits.Inc()
		return res, true
	}

	if c.dir == "" {
		cacheMisses.Inc()
		return nil, false
	}

	data, err := os.ReadFile(c.path(key))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("key", key).Msg("Build cache read failed; regenerating")
		}
		cacheMisses.Inc()
		return nil, false
	}

	var stored Result
	if err := cbor.Unmarshal(data, &stored); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Build cache entry corrupt; regenerating")
		cacheMisses.Inc()
		return nil, false
	}
	if stored.Key != key {
		log.Warn().Str("key", key).Str("stored", stored.Key).Msg("Build cache entry key mismatch; regenerating")
		cacheMisses.Inc()
		return nil, false
	}

	c.mu.Lock()
	c.mem[key] = &stored
	c.mu.Unlock()

	cacheHits.Inc()
	return &stored, true
}

// Put stores a result in memory and, when a directory is configured,
// on disk.
func (c *Cache) Put(key string, res *Result) error {
	c.mu.Lock()
	c.mem[key] = res
	c.mu.Unlock()

	if c.dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	data, err := cbor.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	if err := os.WriteFile(c.path(key), data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// GenerateCached runs Generate through the cache.
func GenerateCached(c *Cache, p Params) (*Result, error) {
	key := CacheKey(p)
	if res, ok := c.Get(key); ok {
		log.Debug().Str("key", key[:12]).Msg("Shim generation served from build cache")
		return res, nil
	}
	res, err := Generate(p)
	if err != nil {
		return nil, err
	}
	if err := c.Put(key, res); err != nil {
		// A cache write failure must not fail the build.
		log.Warn().Err(err).Msg("Build cache write failed")
	}
	return res, nil
}
