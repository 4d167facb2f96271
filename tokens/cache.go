package tokens

import (
	"container/list"
	"hash/fnv"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Cache tuning defaults.
const (
	// DefaultCacheSize bounds the number of cached counts.
	DefaultCacheSize = 4096

	// DefaultStaleWindow is how long an entry may go unread before a
	// maintenance sweep drops it.
	DefaultStaleWindow = time.Hour

	// DefaultHeapPressureBytes is the heap size above which
	// ReduceUnderPressure sheds the least valuable quarter of entries.
	DefaultHeapPressureBytes = 512 << 20
)

type cacheEntry struct {
	key        uint64
	tokens     int
	hits       int
	lastAccess time.Time
}

// Cache is a bounded LRU of token counts keyed by input fingerprints.
// It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	index    map[uint64]*list.Element

	// heapPressure is the heap-alloc threshold for ReduceUnderPressure.
	heapPressure uint64

	now func() time.Time
}

// NewCache creates a cache holding at most capacity entries.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		capacity:     capacity,
		ll:           list.New(),
		index:        make(map[uint64]*list.Element),
		heapPressure: DefaultHeapPressureBytes,
		now:          time.Now,
	}
}

// Get returns the cached count for key, marking the entry as recently used.
func (c *Cache) Get(key uint64) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return 0, false
	}
	entry := el.Value.(*cacheEntry)
	entry.hits++
	entry.lastAccess = c.now()
	c.ll.MoveToFront(el)
	return entry.tokens, true
}

// Put stores a count, evicting the least recently used entry when full.
func (c *Cache) Put(key uint64, tokens int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.tokens = tokens
		entry.lastAccess = c.now()
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheEntry{key: key, tokens: tokens, hits: 1, lastAccess: c.now()})
	c.index[key] = el

	for c.ll.Len() > c.capacity {
		c.removeElement(c.ll.Back())
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// EvictStale drops entries not accessed within window. It returns the
// number of entries removed.
func (c *Cache) EvictStale(window time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-window)
	removed := 0
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*cacheEntry).lastAccess.Before(cutoff) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	return removed
}

// ReduceUnderPressure checks process heap usage and, above the configured
// threshold, drops the least valuable quarter of entries. Value is
// recency-weighted access frequency: frequently read entries that were
// read recently survive. It returns the number of entries removed.
func (c *Cache) ReduceUnderPressure() int {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	if stats.HeapAlloc < c.heapThreshold() {
		return 0
	}
	return c.dropLeastValuable(4)
}

// SetHeapPressure overrides the heap threshold. Zero restores the default.
func (c *Cache) SetHeapPressure(bytes uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if bytes == 0 {
		bytes = DefaultHeapPressureBytes
	}
	c.heapPressure = bytes
}

func (c *Cache) heapThreshold() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heapPressure
}

// dropLeastValuable removes len/divisor entries with the lowest
// recency-weighted access frequency.
func (c *Cache) dropLeastValuable(divisor int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.ll.Len() / divisor
	if target == 0 {
		return 0
	}

	now := c.now()
	type scored struct {
		el    *list.Element
		score float64
	}
	entries := make([]scored, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*cacheEntry)
		age := now.Sub(entry.lastAccess)
		score := float64(entry.hits) / (1 + age.Minutes())
		entries = append(entries, scored{el: el, score: score})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].score < entries[j].score
	})

	removed := 0
	for _, s := range entries {
		if removed >= target {
			break
		}
		c.removeElement(s.el)
		removed++
	}
	return removed
}

// removeElement must be called with the mutex held.
func (c *Cache) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	entry := el.Value.(*cacheEntry)
	delete(c.index, entry.key)
	c.ll.Remove(el)
}

// fingerprint hashes text to a fixed-size cache key so the cache never
// retains full message bodies.
func fingerprint(text string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return h.Sum64()
}
