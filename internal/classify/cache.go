package classify

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/neurify-goto/formsender-runner/internal/observability"
)

const (
	// DefaultMaxCacheSize bounds cache entry count (§3 Classification cache entry).
	DefaultMaxCacheSize = 256
	// DefaultTTLSeconds bounds cache entry freshness.
	DefaultTTLSeconds = 600
	// sweepScanLimit bounds how many keys an opportunistic sweep inspects.
	sweepScanLimit = 64
)

type cacheEntry struct {
	detail Detail
	ts     int64
}

// Classifier is the cached, process-local front for classifyPure. It is
// per-worker and needs no cross-process locking (§5 Shared resources), but
// is itself safe for concurrent use within a worker's own goroutines.
type Classifier struct {
	mu          sync.Mutex
	entries     map[string]*cacheEntry
	order       []string // FIFO insertion order for overflow eviction
	maxSize     int
	ttlSeconds  int64
	now         func() int64
	metrics     *observability.Metrics
}

// SetMetrics attaches a Metrics instance Classify reports cache hits and
// misses to. Safe to leave unset.
func (c *Classifier) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

// New creates a Classifier with the given bounds. Pass zero values to use
// the spec's defaults (256 entries, 600s TTL).
func New(maxSize, ttlSeconds int) *Classifier {
	if maxSize <= 0 {
		maxSize = DefaultMaxCacheSize
	}
	if ttlSeconds <= 0 {
		ttlSeconds = DefaultTTLSeconds
	}
	return &Classifier{
		entries:    make(map[string]*cacheEntry),
		maxSize:    maxSize,
		ttlSeconds: int64(ttlSeconds),
		now:        func() int64 { return time.Now().Unix() },
	}
}

// Classify returns the classification for in, using a fresh cache entry if
// one exists within TTL, or computing and caching it otherwise (§4.4).
func (c *Classifier) Classify(in Input) Detail {
	key := cacheKey(in)
	now := c.now()

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && now-entry.ts <= c.ttlSeconds {
		detail := entry.detail
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.ClassifierHits.Inc()
		}
		return detail
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.ClassifierMisses.Inc()
	}
	detail := classifyPure(in)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, existed := c.entries[key]; !existed {
		c.order = append(c.order, key)
	}
	c.entries[key] = &cacheEntry{detail: detail, ts: now}
	c.sweepLocked(now)
	c.evictLocked()
	return detail
}

// sweepLocked scans at most sweepScanLimit existing keys and drops any
// entry older than the TTL (§4.4 cache discipline). Caller holds c.mu.
func (c *Classifier) sweepLocked(now int64) {
	scanned := 0
	var stillLive []string
	for _, key := range c.order {
		if scanned >= sweepScanLimit {
			stillLive = append(stillLive, key)
			continue
		}
		scanned++
		entry, ok := c.entries[key]
		if !ok {
			continue
		}
		if now-entry.ts > c.ttlSeconds {
			delete(c.entries, key)
			continue
		}
		stillLive = append(stillLive, key)
	}
	c.order = stillLive
}

// evictLocked drops oldest-inserted entries until within MaxCacheSize.
// Caller holds c.mu.
func (c *Classifier) evictLocked() {
	for len(c.entries) > c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Len reports the current cache size, for tests and metrics.
func (c *Classifier) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func cacheKey(in Input) string {
	msg := truncate(in.ErrorMessage)
	snippet := truncate(in.PageContentSnippet)
	raw := fmt.Sprintf("%s|%d|%s|%s", msg, in.HTTPStatus, in.ErrorTypeHint, snippet)
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
