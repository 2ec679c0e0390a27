package gateway

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/chemtrace/sds-cli/internal/model"
)

// CacheStats is a point-in-time view of cache effectiveness.
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	HitRate   float64 `json:"hit_rate"`
}

type cacheItem struct {
	key     string
	cand    model.FieldCandidate
	expires time.Time
}

// responseCache is a bounded LRU with per-entry TTL. Reads promote entries;
// inserting past capacity evicts the least recently used entry.
type responseCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List               // front = most recent
	items    map[string]*list.Element // key -> element holding *cacheItem

	hits      int64
	misses    int64
	evictions int64

	nowFunc func() time.Time // injectable for testing
}

func newResponseCache(capacity int, ttl time.Duration) *responseCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &responseCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
		nowFunc:  time.Now,
	}
}

// cacheKey derives the lookup key from the normalized input text, the field,
// the model and the prompt template identity.
func cacheKey(normText, fieldName, modelID, templateID string) string {
	h := sha256.New()
	h.Write([]byte(normText))
	h.Write([]byte{0})
	h.Write([]byte(fieldName))
	h.Write([]byte{0})
	h.Write([]byte(modelID))
	h.Write([]byte{0})
	h.Write([]byte(templateID))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *responseCache) Get(key string) (model.FieldCandidate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return model.FieldCandidate{}, false
	}
	item := elem.Value.(*cacheItem)
	if c.nowFunc().After(item.expires) {
		c.order.Remove(elem)
		delete(c.items, key)
		c.misses++
		return model.FieldCandidate{}, false
	}
	c.order.MoveToFront(elem)
	c.hits++
	return item.cand, true
}

func (c *responseCache) Put(key string, cand model.FieldCandidate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		item := elem.Value.(*cacheItem)
		item.cand = cand
		item.expires = c.nowFunc().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	for c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheItem).key)
		c.evictions++
	}

	item := &cacheItem{key: key, cand: cand, expires: c.nowFunc().Add(c.ttl)}
	c.items[key] = c.order.PushFront(item)
}

// Invalidate drops every cached entry. Counters are preserved.
func (c *responseCache) Invalidate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.items)
	c.order.Init()
	c.items = make(map[string]*list.Element, c.capacity)
	return n
}

func (c *responseCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.items),
		Capacity:  c.capacity,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
