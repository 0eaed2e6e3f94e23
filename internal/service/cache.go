package service

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/pipeline"
)

// cacheKey identifies a conversion by input content and every job setting
// that can change the output or its summary.
func cacheKey(lines []string, job domain.ConversionJob) string {
	h := xxhash.New()
	for _, l := range lines {
		_, _ = h.WriteString(l)
		_, _ = h.WriteString("\n")
	}
	return fmt.Sprintf("%016x|%s|%d|%s|%s|%s|%s",
		h.Sum64(), job.Interval, job.Workers, job.EffectiveAnchor(), job.EffectiveFlags(),
		boundKey(job.Window.From), boundKey(job.Window.To))
}

func boundKey(b *domain.Bound) string {
	switch {
	case b == nil:
		return "-"
	case b.TimeOfDay:
		return "tod:" + b.OfDay.String()
	default:
		return b.At.UTC().Format("20060102T150405.000000000")
	}
}

// resultCache is a mutex-guarded LRU of conversion results. Cached results
// are shared between callers and must not be modified.
type resultCache struct {
	capacity int

	mu    sync.Mutex
	order *list.List // front is most recently used
	index map[string]*list.Element
}

type cached struct {
	key    string
	result *pipeline.Result
}

func newResultCache(capacity int) *resultCache {
	return &resultCache{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

func (c *resultCache) get(key string) (*pipeline.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cached).result, true
}

// add stores res under key, evicting the least recently used entry when
// full. A zero capacity disables caching.
func (c *resultCache) add(key string, res *pipeline.Result) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		el.Value.(*cached).result = res
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(&cached{key: key, result: res})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(*cached).key)
	}
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
