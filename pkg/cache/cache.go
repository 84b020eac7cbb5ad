// Package cache provides a two-tier key/value cache. Entries live in process
// memory, on disk, or both. The file tier can be shared by several processes
// pointing at the same directory.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/text/unicode/norm"

	"github.com/rhuss/slidewright/pkg/debug"
	"github.com/rhuss/slidewright/pkg/observability"
)

// Mode selects which tiers are active.
type Mode string

const (
	ModeMemory Mode = "memory"
	ModeFile   Mode = "file"
	ModeBoth   Mode = "both"
)

const fileSuffix = ".cache"

// Config configures a Cache.
type Config struct {
	Mode Mode
	Dir  string

	// TTL applies when Set is called without one. Zero means entries never expire.
	TTL time.Duration

	// PurgeInterval starts a background purge loop when positive.
	PurgeInterval time.Duration

	Logger *slog.Logger
}

// Stats summarizes cache activity since creation.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// envelope is the on-disk format of one entry.
type envelope struct {
	Key       string     `json:"key"`
	Value     []byte     `json:"value"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// namespace serializes writers inside the process; the flock serializes
// them across processes.
type namespace struct {
	mu   sync.Mutex
	lock *flock.Flock
}

// Cache is safe for concurrent use.
type Cache struct {
	mode   Mode
	dir    string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	mem    map[string]map[string]entry
	hits   int64
	misses int64

	nsMu       sync.Mutex
	namespaces map[string]*namespace

	stop chan struct{}
	done chan struct{}
}

// New creates a Cache. The file tier directory is created when needed.
func New(cfg Config) (*Cache, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeMemory
	}
	switch cfg.Mode {
	case ModeMemory, ModeFile, ModeBoth:
	default:
		return nil, fmt.Errorf("unknown cache mode %q", cfg.Mode)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Cache{
		mode:       cfg.Mode,
		dir:        cfg.Dir,
		ttl:        cfg.TTL,
		logger:     cfg.Logger,
		now:        time.Now,
		mem:        make(map[string]map[string]entry),
		namespaces: make(map[string]*namespace),
	}

	if c.useFile() {
		if c.dir == "" {
			return nil, errors.New("cache dir is required for file mode")
		}
		if err := os.MkdirAll(c.dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	if cfg.PurgeInterval > 0 {
		c.stop = make(chan struct{})
		c.done = make(chan struct{})
		go c.purgeLoop(cfg.PurgeInterval)
	}
	return c, nil
}

func (c *Cache) useMemory() bool { return c.mode == ModeMemory || c.mode == ModeBoth }
func (c *Cache) useFile() bool   { return c.mode == ModeFile || c.mode == ModeBoth }

// Close stops the purge loop, if any.
func (c *Cache) Close() {
	if c.stop == nil {
		return
	}
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	<-c.done
}

// Key derives a cache key from the given parts. Text is NFC-normalized so
// that visually identical documents share entries.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(norm.NFC.String(p)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the value stored under key. Memory is consulted first; a
// file hit is promoted into memory.
func (c *Cache) Get(ns, key string) ([]byte, bool) {
	now := c.now()

	if c.useMemory() {
		c.mu.RLock()
		e, ok := c.mem[ns][key]
		c.mu.RUnlock()
		if ok {
			if !e.expired(now) {
				c.record("memory", true)
				return e.value, true
			}
			c.expireMemory(ns, key, now)
		}
		c.record("memory", false)
	}

	if c.useFile() {
		e, ok := c.readFile(ns, key, now)
		if ok {
			c.record("file", true)
			if c.useMemory() {
				c.setMemory(ns, key, e)
			}
			return e.value, true
		}
		c.record("file", false)
	}
	return nil, false
}

// Set stores value under key. A ttl of zero or less uses the default TTL.
func (c *Cache) Set(ns, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}

	if c.useMemory() {
		c.setMemory(ns, key, e)
	}
	if c.useFile() {
		return c.writeFile(ns, key, e, now)
	}
	return nil
}

// Delete removes key from all tiers and reports whether it existed.
func (c *Cache) Delete(ns, key string) bool {
	found := false
	if c.useMemory() {
		found = c.deleteMemory(ns, key)
	}
	if c.useFile() {
		n := c.namespace(ns)
		err := n.withLock(func() error {
			return os.Remove(c.path(ns, key))
		})
		if err == nil {
			found = true
		} else if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("cache delete failed", "namespace", ns, "error", err)
		}
	}
	return found
}

// Clear removes every entry in ns, or in all namespaces when ns is empty.
func (c *Cache) Clear(ns string) error {
	if c.useMemory() {
		c.mu.Lock()
		if ns == "" {
			c.mem = make(map[string]map[string]entry)
		} else {
			delete(c.mem, ns)
		}
		c.mu.Unlock()
	}
	if !c.useFile() {
		return nil
	}

	names := []string{ns}
	if ns == "" {
		var err error
		if names, err = c.fileNamespaces(); err != nil {
			return err
		}
	}
	for _, name := range names {
		n := c.namespace(name)
		err := n.withLock(func() error {
			files, err := filepath.Glob(filepath.Join(c.dir, name, "*"+fileSuffix))
			if err != nil {
				return err
			}
			for _, f := range files {
				if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("clear namespace %q: %w", name, err)
		}
	}
	return nil
}

// Purge removes expired entries from both tiers and returns how many were dropped.
func (c *Cache) Purge() int {
	now := c.now()
	removed := 0

	if c.useMemory() {
		c.mu.Lock()
		for ns, entries := range c.mem {
			for k, e := range entries {
				if e.expired(now) {
					delete(entries, k)
					removed++
				}
			}
			if len(entries) == 0 {
				delete(c.mem, ns)
			}
		}
		c.mu.Unlock()
	}

	if c.useFile() {
		names, err := c.fileNamespaces()
		if err != nil {
			c.logger.Warn("cache purge failed", "error", err)
			return removed
		}
		for _, name := range names {
			removed += c.purgeFiles(name, now)
		}
	}
	return removed
}

// Stats returns hit and miss counts and the number of live entries.
// Hits and misses count whole lookups, not per-tier probes.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	s := Stats{Hits: c.hits, Misses: c.misses}
	if c.useMemory() {
		for _, entries := range c.mem {
			s.Entries += len(entries)
		}
	}
	c.mu.RUnlock()

	if !c.useMemory() && c.useFile() {
		names, _ := c.fileNamespaces()
		for _, name := range names {
			files, _ := filepath.Glob(filepath.Join(c.dir, name, "*"+fileSuffix))
			s.Entries += len(files)
		}
	}
	return s
}

// GetJSON decodes the value stored under key into v.
func (c *Cache) GetJSON(ns, key string, v any) bool {
	data, ok := c.Get(ns, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.logger.Warn("cache entry is not valid JSON", "namespace", ns, "error", err)
		c.Delete(ns, key)
		return false
	}
	return true
}

// SetJSON encodes v and stores it under key.
func (c *Cache) SetJSON(ns, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return c.Set(ns, key, data, ttl)
}

func (c *Cache) record(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	observability.CacheRequestsTotal.WithLabelValues(tier, result).Inc()
	debug.Log("cache", "cache lookup", "tier", tier, "result", result)

	// Only the last tier consulted decides the overall outcome.
	last := (tier == "file") || !c.useFile()
	if !hit && !last {
		return
	}
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
}

func (c *Cache) setMemory(ns, key string, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, ok := c.mem[ns]
	if !ok {
		entries = make(map[string]entry)
		c.mem[ns] = entries
	}
	entries[key] = e
}

func (c *Cache) deleteMemory(ns, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.mem[ns][key]; !ok {
		return false
	}
	delete(c.mem[ns], key)
	return true
}

// expireMemory deletes key if the entry held under the write lock is
// still expired.
func (c *Cache) expireMemory(ns, key string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.mem[ns][key]; ok && e.expired(now) {
		delete(c.mem[ns], key)
	}
}

func (c *Cache) purgeLoop(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if n := c.Purge(); n > 0 {
				c.logger.Debug("purged expired cache entries", "count", n)
			}
		}
	}
}

// fileNamespaces lists the namespace directories of the file tier.
func (c *Cache) fileNamespaces() ([]string, error) {
	dirs, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}
	var names []string
	for _, d := range dirs {
		if d.IsDir() && !strings.HasPrefix(d.Name(), ".") {
			names = append(names, d.Name())
		}
	}
	return names, nil
}
