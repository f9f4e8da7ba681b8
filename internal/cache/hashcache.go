package cache

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// FileName is the fixed name of the persisted cache under the system
// temporary directory. It is stable across runs so that consecutive
// invocations see each other's state.
const FileName = "webdav-backup-hash-cache"

const hashChunkSize = 64 * 1024

const lockStripes = 64

// HashCache maps absolute local paths to the MD5 digest of their contents
// as of the last successful upload. It is safe for concurrent use; change
// checks on distinct paths hash their files in parallel.
type HashCache struct {
	mu      sync.RWMutex
	entries map[string]string

	// stripes serialize per-path hash-and-compare cycles so two tasks
	// racing on the same path hash it one at a time.
	stripes [lockStripes]sync.Mutex

	path string
	log  *logrus.Logger
}

// New creates a cache persisted at the default location in the system
// temporary directory.
func New(log *logrus.Logger) *HashCache {
	return NewAt(filepath.Join(os.TempDir(), FileName), log)
}

// NewAt creates a cache persisted at an explicit path.
func NewAt(path string, log *logrus.Logger) *HashCache {
	return &HashCache{
		entries: make(map[string]string),
		path:    path,
		log:     log,
	}
}

// Load reads the persisted mapping if it exists. A missing, unreadable or
// malformed cache file is treated as an empty cache; it is never fatal.
func (c *HashCache) Load() {
	f, err := os.Open(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Debugf("hash cache unreadable, starting empty: %v", err)
		}
		return
	}
	defer f.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	loaded := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		key, digest, ok := strings.Cut(line, "\t")
		if !ok || key == "" || !isHexDigest(digest) {
			c.log.Debugf("hash cache: skipping malformed line %q", line)
			continue
		}
		c.entries[key] = digest
		loaded++
	}
	if err := scanner.Err(); err != nil {
		c.log.Debugf("hash cache read error, keeping %d entries: %v", loaded, err)
	}
	c.log.Debugf("hash cache loaded %d entries from %s", loaded, c.path)
}

// ComputeHash streams the file at path through MD5 and returns the digest
// as 32 lowercase hex characters.
func (c *HashCache) ComputeHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := md5.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("failed to read %s for hashing: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HasChanged recomputes the hash of the file at path and reports whether
// it differs from the stored entry. A path with no stored entry counts as
// changed. The stored entry is not modified; callers publish new hashes
// through Update once the upload has succeeded, so a failed upload leaves
// the old entry in place and the next run retries the file.
func (c *HashCache) HasChanged(path string) (bool, error) {
	key := NormalizeKey(path)

	stripe := &c.stripes[stripeFor(key)]
	stripe.Lock()
	defer stripe.Unlock()

	sum, err := c.ComputeHash(path)
	if err != nil {
		return false, err
	}

	return c.Changed(path, sum), nil
}

// Changed reports whether the given digest differs from the stored entry
// for path. It never modifies the cache.
func (c *HashCache) Changed(path, sum string) bool {
	key := NormalizeKey(path)

	c.mu.RLock()
	stored, ok := c.entries[key]
	c.mu.RUnlock()

	return !ok || stored != sum
}

// Update unconditionally sets the stored hash for path.
func (c *HashCache) Update(path, sum string) {
	key := NormalizeKey(path)

	c.mu.Lock()
	c.entries[key] = sum
	c.mu.Unlock()
}

// Get returns the stored hash for path, if any.
func (c *HashCache) Get(path string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sum, ok := c.entries[NormalizeKey(path)]
	return sum, ok
}

// Len returns the number of stored entries.
func (c *HashCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Save atomically persists the mapping via write-temp-then-rename, so a
// crash mid-write never leaves a truncated cache behind.
func (c *HashCache) Save() error {
	c.mu.RLock()
	lines := make([]string, 0, len(c.entries))
	for key, digest := range c.entries {
		lines = append(lines, key+"\t"+digest+"\n")
	}
	c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("failed to write cache: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to flush cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}

	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	return nil
}

// NormalizeKey canonicalizes a local path for use as a cache key: system
// separators collapsed, no trailing separator.
func NormalizeKey(path string) string {
	cleaned := filepath.Clean(path)
	if len(cleaned) > 1 {
		cleaned = strings.TrimSuffix(cleaned, string(filepath.Separator))
	}
	return cleaned
}

func stripeFor(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % lockStripes)
}

func isHexDigest(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
