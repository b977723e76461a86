// ABOUTME: Thread-safe TTL cache that suppresses redelivered Slack events
// ABOUTME: Entries expire after a fixed TTL and the oldest are evicted at capacity

package dedupe

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

const defaultCleanupInterval = time.Minute

// entry is one remembered key. Because the TTL is fixed, list order is also
// expiry order: the front of the list always expires first.
type entry struct {
	key     string
	expires time.Time
}

// Cache remembers keys for a fixed TTL, holding at most maxSize of them.
type Cache struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List // *entry, oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	interval time.Duration
	done     chan struct{}
	once     sync.Once
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithCleanupInterval sets how often expired entries are swept. Zero disables
// the background sweep; expired entries are then only dropped on access or
// eviction.
func WithCleanupInterval(d time.Duration) Option {
	return func(c *Cache) {
		c.interval = d
	}
}

// New creates a cache with the given TTL and capacity.
func New(ttl time.Duration, maxSize int, opts ...Option) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	c := &Cache{
		index:    make(map[string]*list.Element),
		order:    list.New(),
		ttl:      ttl,
		maxSize:  maxSize,
		now:      time.Now,
		interval: defaultCleanupInterval,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.interval > 0 {
		go c.sweepLoop()
	}
	return c
}

// CheckAndMark atomically marks key and reports whether it was already live.
// A true result means the caller is looking at a duplicate.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		if c.live(elem) {
			return true
		}
		c.removeLocked(elem)
	}

	for len(c.index) >= c.maxSize {
		c.removeLocked(c.order.Front())
	}
	c.index[key] = c.order.PushBack(&entry{key: key, expires: c.now().Add(c.ttl)})
	return false
}

// Len returns the number of entries, including any not yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Sweep drops every expired entry and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for front := c.order.Front(); front != nil && !c.live(front); front = c.order.Front() {
		c.removeLocked(front)
		removed++
	}
	return removed
}

// Close stops the background sweep. It is safe to call more than once.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) live(elem *list.Element) bool {
	e, _ := elem.Value.(*entry)
	return c.now().Before(e.expires)
}

func (c *Cache) removeLocked(elem *list.Element) {
	e, _ := c.order.Remove(elem).(*entry)
	delete(c.index, e.key)
}

// EventKey identifies an Events API envelope.
func EventKey(teamID, eventID string) string {
	return joinKey("event", teamID, eventID)
}

func joinKey(parts ...string) string {
	return strings.Join(parts, "\x00")
}
