// Package cache implements the global frame cache: a bounded LRU keyed by
// (node_id, frame_index), shared by every worker and the playback thread.
package cache

import (
	"container/list"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/reelengine/reel/frame"
	"github.com/reelengine/reel/memmgr"
)

// Key identifies one cache entry: a node id and a (possibly negative)
// frame index.
type Key struct {
	Node  uuid.UUID
	Frame int64
}

// LoadStatus is the coarse load state exposed to the UI, distinct from
// frame.Status in that it also reports "missing entirely" for keys the
// cache has never seen.
type LoadStatus uint8

const (
	Missing LoadStatus = iota
	LoadingStatus
	LoadedStatus
	ErrorStatus
)

// Strategy selects which entries the cache prefers to evict first when
// over budget.
type Strategy uint8

const (
	// KeepAll evicts purely by global LRU order.
	KeepAll Strategy = iota
	// LastOnly additionally prefers evicting a node's older frames ahead
	// of its most recent one, so a comp whose only consumer is the
	// playhead keeps at most its current frame resident under pressure.
	// Evicting per-node rather than globally is the interpretation this
	// implementation picked for an ambiguous case; see DESIGN.md.
	LastOnly
)

// Statistics is a point-in-time snapshot of cache activity.
type Statistics struct {
	Entries int
	Hits    uint64
	Misses  uint64
	Bytes   int64
}

// HitRate returns Hits / (Hits + Misses), or 0 if there have been no
// lookups yet.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry struct {
	key     Key
	f       frame.Frame
	status  LoadStatus
	epoch   uint64
	lruElem *list.Element
}

// Cache is the process-wide frame cache. It is safe for concurrent use:
// Contains/Status take a read lock; Get takes the write lock despite being
// a lookup, because refreshing the LRU position mutates the order list;
// Insert/Clear* take the write lock. No cache method ever calls back into
// caller-supplied code while holding either lock.
type Cache struct {
	mu       sync.RWMutex
	byNode   map[uuid.UUID]map[int64]*entry
	lru      *list.List // front = most recently used
	mem      *memmgr.Manager
	strategy Strategy
	log      *logrus.Entry

	hits, misses uint64
}

// New creates an empty cache backed by mem for accounting, evicting
// according to strategy.
func New(mem *memmgr.Manager, strategy Strategy, log *logrus.Entry) *Cache {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Cache{
		byNode:   make(map[uuid.UUID]map[int64]*entry),
		lru:      list.New(),
		mem:      mem,
		strategy: strategy,
		log:      log.WithField("component", "cache"),
	}
}

// SetStrategy changes the eviction strategy applied on future inserts.
func (c *Cache) SetStrategy(s Strategy) {
	c.mu.Lock()
	c.strategy = s
	c.mu.Unlock()
}

// Get returns the cached frame for key, if present, and moves it to the
// front of the LRU order. Records a hit or miss in statistics. A Loading
// placeholder is reported as a miss: its pixels do not exist yet, and
// callers that must not double-enqueue the decode distinguish that case
// through Status, not Get.
func (c *Cache) Get(key Key) (frame.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.lookup(key)
	if e == nil || e.status == LoadingStatus {
		c.misses++
		return frame.Frame{}, false
	}
	c.hits++
	c.lru.MoveToFront(e.lruElem)
	return e.f, true
}

// Contains reports whether key is present, without updating LRU order or
// statistics. Whether a plain existence check should count as a use is an
// ambiguous case this implementation resolves as "no"; see DESIGN.md.
func (c *Cache) Contains(key Key) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookupRO(key) != nil
}

// Status reports the coarse load state of key for UI load indicators.
func (c *Cache) Status(key Key) LoadStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e := c.lookupRO(key)
	if e == nil {
		return Missing
	}
	return e.status
}

// MarkLoading records that a worker has claimed key, so a second request
// observing Loading returns without enqueueing a duplicate job, keeping at
// most one in-flight load per key.
func (c *Cache) MarkLoading(key Key, epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.lookupRO(key); e != nil {
		e.status = LoadingStatus
		e.epoch = epoch
		return
	}
	e := &entry{key: key, status: LoadingStatus, epoch: epoch, f: frame.NewUnloaded("", 0, 0)}
	c.install(key, e)
}

// Insert stores f at key, tagged with epoch. An insertion whose epoch is
// older than the cache's currently recorded epoch for that key is
// discarded, giving at-most-once semantics per epoch per key. On success,
// evicts LRU entries while the memory manager reports over budget; a
// single frame that alone exceeds the limit is still inserted (logged,
// reclaimed on the next eviction).
func (c *Cache) Insert(key Key, f frame.Frame, epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur := c.mem.CurrentEpoch(); epoch < cur {
		c.log.WithFields(logrus.Fields{"node": key.Node, "frame": key.Frame, "epoch": epoch, "current_epoch": cur}).
			Debug("discarding stale-epoch insert")
		c.dropStaleLoading(key)
		return
	}
	if existing := c.lookupRO(key); existing != nil && epoch < existing.epoch {
		c.log.WithFields(logrus.Fields{"node": key.Node, "frame": key.Frame, "epoch": epoch, "existing_epoch": existing.epoch}).
			Debug("discarding stale-epoch insert")
		c.dropStaleLoading(key)
		return
	}

	status := LoadedStatus
	if f.Status() == frame.Error {
		status = ErrorStatus
	}

	if existing := c.lookupRO(key); existing != nil {
		c.mem.Free(int64(existing.f.ByteSize()))
		existing.f = f
		existing.status = status
		existing.epoch = epoch
		c.mem.Add(int64(f.ByteSize()))
		c.lru.MoveToFront(existing.lruElem)
	} else {
		e := &entry{key: key, f: f, status: status, epoch: epoch}
		c.install(key, e)
		c.mem.Add(int64(f.ByteSize()))
	}

	size := f.ByteSize()
	if int64(size) > c.mem.LimitBytes() && c.mem.LimitBytes() > 0 {
		c.log.WithFields(logrus.Fields{"node": key.Node, "frame": key.Frame, "bytes": size}).
			Warn("single frame exceeds cache budget; inserted anyway")
	}

	c.evictWhileOverBudget(key)
}

// dropStaleLoading removes the Loading placeholder for key, if that is
// what is installed there. A decode whose result was just discarded for
// carrying a superseded epoch would otherwise leave the placeholder
// behind forever: no worker re-enqueues a key that looks in flight, so
// the key could never load again without a full ClearNode. Removing it
// lets the next trigger's job claim the key afresh. Must be called with
// c.mu held for writing.
func (c *Cache) dropStaleLoading(key Key) {
	if e := c.lookupRO(key); e != nil && e.status == LoadingStatus {
		c.removeEntry(e)
	}
}

// install links a freshly-created entry into byNode and the LRU list.
// Must be called with c.mu held for writing.
func (c *Cache) install(key Key, e *entry) {
	byFrame := c.byNode[key.Node]
	if byFrame == nil {
		byFrame = make(map[int64]*entry)
		c.byNode[key.Node] = byFrame
	}
	byFrame[key.Frame] = e
	e.lruElem = c.lru.PushFront(e)
}

// evictWhileOverBudget removes entries, least-recently-used first within
// the chosen strategy's preference order, until the memory manager is
// satisfied or only the just-inserted entry at keep remains. Never invokes
// caller code.
func (c *Cache) evictWhileOverBudget(keep Key) {
	for c.mem.OverLimit() && c.lru.Len() > 0 {
		victim := c.pickEvictionVictim()
		if victim == nil || victim.key == keep {
			return
		}
		c.removeEntry(victim)
	}
}

// pickEvictionVictim returns the entry to evict next under the active
// strategy. KeepAll always picks the global LRU tail. LastOnly instead
// scans back-to-front for the oldest entry belonging to a node that has
// more than one cached frame, so each node settles to a single resident
// frame under pressure; if every node already holds exactly one frame it
// falls back to the global LRU tail like KeepAll.
func (c *Cache) pickEvictionVictim() *entry {
	if c.strategy == KeepAll {
		return c.lru.Back().Value.(*entry)
	}
	for el := c.lru.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if len(c.byNode[e.key.Node]) > 1 {
			return e
		}
	}
	return c.lru.Back().Value.(*entry)
}

func (c *Cache) removeEntry(e *entry) {
	c.mem.Free(int64(e.f.ByteSize()))
	c.lru.Remove(e.lruElem)
	if byFrame := c.byNode[e.key.Node]; byFrame != nil {
		delete(byFrame, e.key.Frame)
		if len(byFrame) == 0 {
			delete(c.byNode, e.key.Node)
		}
	}
}

// ClearNode removes every entry for node. The nested-map layout finds them
// without scanning other nodes' entries; the call is not constant-time, as
// each of node's entries is still unlinked from the LRU list and freed.
func (c *Cache) ClearNode(node uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byFrame, ok := c.byNode[node]
	if !ok {
		return
	}
	for _, e := range byFrame {
		c.mem.Free(int64(e.f.ByteSize()))
		c.lru.Remove(e.lruElem)
	}
	delete(c.byNode, node)
}

// ClearAll removes every entry from the cache.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, byFrame := range c.byNode {
		for _, e := range byFrame {
			c.mem.Free(int64(e.f.ByteSize()))
		}
	}
	c.byNode = make(map[uuid.UUID]map[int64]*entry)
	c.lru.Init()
}

// Statistics returns a snapshot of hit/miss counters and current
// footprint.
func (c *Cache) Statistics() Statistics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Statistics{
		Entries: c.lru.Len(),
		Hits:    c.hits,
		Misses:  c.misses,
		Bytes:   c.mem.BytesInUse(),
	}
}

// lookup returns the entry for key under the write lock (caller must hold
// c.mu for writing; used by Get/Insert which also mutate LRU order).
func (c *Cache) lookup(key Key) *entry {
	byFrame := c.byNode[key.Node]
	if byFrame == nil {
		return nil
	}
	return byFrame[key.Frame]
}

// lookupRO is identical to lookup but documents call sites that only need
// read access (caller may hold either the read or write lock).
func (c *Cache) lookupRO(key Key) *entry {
	byFrame := c.byNode[key.Node]
	if byFrame == nil {
		return nil
	}
	return byFrame[key.Frame]
}
