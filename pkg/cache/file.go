package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

func (c *Cache) path(ns, key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, ns, hex.EncodeToString(sum[:])+fileSuffix)
}

func (c *Cache) namespace(ns string) *namespace {
	c.nsMu.Lock()
	defer c.nsMu.Unlock()
	n, ok := c.namespaces[ns]
	if !ok {
		n = &namespace{lock: flock.New(filepath.Join(c.dir, ns, ".lock"))}
		c.namespaces[ns] = n
	}
	return n
}

// withLock runs fn while holding the namespace lock in this process and
// the lock file across processes.
func (n *namespace) withLock(fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(n.lock.Path()), 0o755); err != nil {
		return fmt.Errorf("create namespace dir: %w", err)
	}
	if err := n.lock.Lock(); err != nil {
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	defer n.lock.Unlock()
	return fn()
}

// readFile loads an entry from disk. Readers take no lock: writers replace
// files by rename, so a reader sees either the old or the new envelope.
func (c *Cache) readFile(ns, key string, now time.Time) (entry, bool) {
	path := c.path(ns, key)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("cache read failed", "namespace", ns, "error", err)
		}
		return entry{}, false
	}

	e, ok := decodeEntry(data, key)
	if !ok {
		c.logger.Warn("discarding corrupt cache file", "path", path)
		c.removeStale(ns, key, now)
		return entry{}, false
	}
	if e.expired(now) {
		c.removeStale(ns, key, now)
		return entry{}, false
	}
	return e, true
}

// decodeEntry parses an envelope and reports whether it holds key.
func decodeEntry(data []byte, key string) (entry, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Key != key {
		return entry{}, false
	}
	e := entry{value: env.Value}
	if env.ExpiresAt != nil {
		e.expiresAt = *env.ExpiresAt
	}
	return e, true
}

// removeStale deletes the file of key if, under the lock, it is still
// corrupt or expired. A fresh entry written since the unlocked read stays.
func (c *Cache) removeStale(ns, key string, now time.Time) {
	path := c.path(ns, key)
	err := c.namespace(ns).withLock(func() error {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if e, ok := decodeEntry(data, key); ok && !e.expired(now) {
			return nil
		}
		return os.Remove(path)
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("cache remove failed", "path", path, "error", err)
	}
}

func (c *Cache) writeFile(ns, key string, e entry, now time.Time) error {
	env := envelope{Key: key, Value: e.value, CreatedAt: now.UTC()}
	if !e.expiresAt.IsZero() {
		exp := e.expiresAt.UTC()
		env.ExpiresAt = &exp
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	path := c.path(ns, key)
	return c.namespace(ns).withLock(func() error {
		tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
		if err != nil {
			return fmt.Errorf("create cache file: %w", err)
		}
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return fmt.Errorf("write cache file: %w", err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return fmt.Errorf("write cache file: %w", err)
		}
		if err := os.Rename(tmp.Name(), path); err != nil {
			os.Remove(tmp.Name())
			return fmt.Errorf("rename cache file: %w", err)
		}
		return nil
	})
}

func (c *Cache) purgeFiles(ns string, now time.Time) int {
	removed := 0
	err := c.namespace(ns).withLock(func() error {
		files, err := filepath.Glob(filepath.Join(c.dir, ns, "*"+fileSuffix))
		if err != nil {
			return err
		}
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				continue
			}
			var env envelope
			if json.Unmarshal(data, &env) != nil || (env.ExpiresAt != nil && now.After(*env.ExpiresAt)) {
				if os.Remove(f) == nil {
					removed++
				}
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("cache purge failed", "namespace", ns, "error", err)
	}
	return removed
}
