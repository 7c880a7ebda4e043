// Package counter implements §4.5 DailyCounter: a per-worker cache over
// ClaimProtocol.CountToday, bounded by a short read TTL and invalidated
// explicitly on a locally-observed success.
package counter

import (
	"context"
	"sync"
	"time"

	"github.com/neurify-goto/formsender-runner/internal/claim"
)

// DefaultTTLSeconds is §3's SUCCESS_CACHE_TTL_SECONDS default.
const DefaultTTLSeconds = 30

type entry struct {
	count int
	ts    int64
}

// Counter wraps a claim.Protocol's CountToday with the caching policy of
// §4.5. It is advisory: authoritative cap enforcement lives in the backing
// store, not here.
type Counter struct {
	protocol claim.Protocol
	ttl      int64
	now      func() int64

	mu      sync.Mutex
	entries map[string]*entry
}

// New creates a Counter over protocol with the given read TTL in seconds
// (0 uses DefaultTTLSeconds).
func New(protocol claim.Protocol, ttlSeconds int) *Counter {
	if ttlSeconds <= 0 {
		ttlSeconds = DefaultTTLSeconds
	}
	return &Counter{
		protocol: protocol,
		ttl:      int64(ttlSeconds),
		now:      func() int64 { return time.Now().Unix() },
		entries:  make(map[string]*entry),
	}
}

func key(campaignID int64, dateISO string) string {
	return dateISO + "|" + itoa(campaignID)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// Get returns the cached count if fresh, otherwise re-queries the backing
// store and replaces the cache entry (§4.5).
func (c *Counter) Get(ctx context.Context, campaignID int64, dateISO string) (int, error) {
	k := key(campaignID, dateISO)
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[k]; ok && now-e.ts < c.ttl {
		count := e.count
		c.mu.Unlock()
		return count, nil
	}
	c.mu.Unlock()

	count, err := c.protocol.CountToday(ctx, campaignID, dateISO)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.entries[k] = &entry{count: count, ts: now}
	c.mu.Unlock()
	return count, nil
}

// InvalidateOnSuccess must be called immediately after a worker observes
// its own successful mark_done, so the next Get re-queries rather than
// serving a stale pre-success count (§4.2 step 7, §4.5).
func (c *Counter) InvalidateOnSuccess(campaignID int64, dateISO string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key(campaignID, dateISO))
}
