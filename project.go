package reel

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/reelengine/reel/cache"
	"github.com/reelengine/reel/compositor"
	"github.com/reelengine/reel/decode"
	"github.com/reelengine/reel/memmgr"
)

// Project owns the node map, the presentation order for compositions, the
// active composition id, the global frame cache, and the memory manager.
// AddNode is the sole entry point for installing a node: it is the only
// code path that sets a node's cache and memory-manager handles, so a node
// reachable through a Project always has them.
type Project struct {
	mu         sync.RWMutex
	media      map[uuid.UUID]*Node
	compsOrder []uuid.UUID
	active     uuid.UUID

	cache *cache.Cache
	mem   *memmgr.Manager
	log   *logrus.Entry
}

// NewProject creates an empty project sharing c and mem with every node
// subsequently added to it.
func NewProject(mem *memmgr.Manager, c *cache.Cache, log *logrus.Entry) *Project {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Project{
		media: make(map[uuid.UUID]*Node),
		cache: c,
		mem:   mem,
		log:   log.WithField("component", "project"),
	}
}

// Cache returns the project's global frame cache.
func (p *Project) Cache() *cache.Cache { return p.cache }

// Mem returns the project's memory manager.
func (p *Project) Mem() *memmgr.Manager { return p.mem }

// AddNode installs n into the project: runtime handles first, then the
// map, then the presentation order for compositions. Re-adding an id that
// is already present is rejected.
func (p *Project) AddNode(n *Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.media[n.ID]; exists {
		return fmt.Errorf("reel: node %s is already in the project", n.ID)
	}
	n.Cache = p.cache
	n.Mem = p.mem
	n.Log = p.log.WithFields(logrus.Fields{"node": n.ID, "kind": n.Kind.String()})
	p.media[n.ID] = n
	if n.Kind == KindComposition {
		p.compsOrder = append(p.compsOrder, n.ID)
		if p.active == uuid.Nil {
			p.active = n.ID
		}
	}
	return nil
}

// Node resolves id to its node.
func (p *Project) Node(id uuid.UUID) (*Node, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.media[id]
	return n, ok
}

// Nodes returns a snapshot of every node in the project, in no particular
// order.
func (p *Project) Nodes() []*Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Node, 0, len(p.media))
	for _, n := range p.media {
		out = append(out, n)
	}
	return out
}

// CompsOrder returns the presentation order of composition ids.
func (p *Project) CompsOrder() []uuid.UUID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]uuid.UUID(nil), p.compsOrder...)
}

// RestoreCompsOrder replaces the presentation order with ids, used by
// project loading after every node has been re-added. Ids that are not
// compositions in this project are dropped; compositions the list omits
// keep their AddNode insertion position at the end.
func (p *Project) RestoreCompsOrder(ids []uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make(map[uuid.UUID]bool, len(ids))
	order := make([]uuid.UUID, 0, len(p.compsOrder))
	for _, id := range ids {
		if n, ok := p.media[id]; ok && n.Kind == KindComposition && !seen[id] {
			order = append(order, id)
			seen[id] = true
		}
	}
	for _, id := range p.compsOrder {
		if !seen[id] {
			order = append(order, id)
			seen[id] = true
		}
	}
	p.compsOrder = order
}

// Active returns the currently active composition id, or uuid.Nil when
// the project has none.
func (p *Project) Active() uuid.UUID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// SetActive selects which composition playback and preloading drive.
func (p *Project) SetActive(id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.media[id]
	if !ok || n.Kind != KindComposition {
		return fmt.Errorf("reel: %s is not a composition in this project", id)
	}
	p.active = id
	return nil
}

// RemoveNode removes id from the project: its cache entries are cleared,
// every composition layer referencing it is removed (cascade-dirtying
// those compositions), and the node's runtime handles are released. A
// worker holding the node from an earlier snapshot sees it disposed and
// discards its result.
func (p *Project) RemoveNode(id uuid.UUID) bool {
	p.mu.Lock()
	n, ok := p.media[id]
	if !ok {
		p.mu.Unlock()
		return false
	}
	delete(p.media, id)
	for i, cid := range p.compsOrder {
		if cid == id {
			p.compsOrder = append(p.compsOrder[:i], p.compsOrder[i+1:]...)
			break
		}
	}
	if p.active == id {
		p.active = uuid.Nil
		if len(p.compsOrder) > 0 {
			p.active = p.compsOrder[0]
		}
	}
	remaining := make([]*Node, 0, len(p.media))
	for _, other := range p.media {
		remaining = append(remaining, other)
	}
	p.mu.Unlock()

	p.cache.ClearNode(id)

	for _, comp := range remaining {
		if comp.Kind != KindComposition {
			continue
		}
		removedAny := false
		for _, entry := range comp.Children() {
			if entry.sourceID() == id {
				comp.RemoveLayer(entry.InstanceID, p.Node)
				removedAny = true
			}
		}
		if removedAny {
			p.invalidateUpward(comp)
		}
	}

	n.Dispose()
	return true
}

// ModifyNode applies fn to id's node, then inspects what changed: if any
// DAG-flagged attribute differs (observed through the bag's stable hash),
// the node and every composition transitively referencing it are marked
// dirty and their cache entries cleared, so the next fetch recomputes.
// Non-DAG mutations leave the cache untouched.
func (p *Project) ModifyNode(id uuid.UUID, fn func(*Node)) error {
	n, ok := p.Node(id)
	if !ok {
		return fmt.Errorf("reel: no node %s in project", id)
	}
	before := n.dagHash()
	fn(n)
	if n.dagHash() == before {
		return nil
	}
	p.invalidateUpward(n)
	return nil
}

// AddLayer attaches source as a new top layer of comp, spanning [in, out]
// in comp's timeline, after the composition-graph cycle check. The new
// entry invalidates comp and its ancestors.
func (p *Project) AddLayer(compID, sourceID uuid.UUID, in, out int32, speed float32) (*ChildEntry, error) {
	comp, ok := p.Node(compID)
	if !ok {
		return nil, fmt.Errorf("reel: no composition %s in project", compID)
	}
	if _, ok := p.Node(sourceID); !ok {
		return nil, fmt.Errorf("reel: no source %s in project", sourceID)
	}
	entry, err := comp.AddLayer(sourceID, in, out, speed, p.Node)
	if err != nil {
		return nil, err
	}
	p.invalidateUpward(comp)
	return entry, nil
}

// invalidateUpward marks n and every composition transitively referencing
// it dirty, clearing their cache entries, so stale composited output can
// never be served after a DAG change.
func (p *Project) invalidateUpward(n *Node) {
	visited := map[uuid.UUID]bool{}
	var walk func(node *Node)
	walk = func(node *Node) {
		if visited[node.ID] {
			return
		}
		visited[node.ID] = true
		node.MarkDirty()
		p.cache.ClearNode(node.ID)
		for _, parentID := range node.Parents() {
			if parent, ok := p.Node(parentID); ok {
				walk(parent)
			}
		}
	}
	walk(n)
}

// snapshot clones the handle map so a worker can resolve source ids for
// the duration of a job without holding the project lock across decodes.
func (p *Project) snapshot() map[uuid.UUID]*Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[uuid.UUID]*Node, len(p.media))
	for id, n := range p.media {
		out[id] = n
	}
	return out
}

// computeContext builds the context a compute chain runs under. Workers
// pass synchronous=true so FileSource misses decode inline against the
// snapshotted node map; main-thread callers pass false and never block.
func (p *Project) computeContext(epoch uint64, synchronous bool, dec *decode.Decoder, blend compositor.Backend) *ComputeContext {
	snap := p.snapshot()
	return &ComputeContext{
		Cache:       p.cache,
		Mem:         p.mem,
		Decoder:     dec,
		Blend:       blend,
		Epoch:       epoch,
		Synchronous: synchronous,
		lookup: func(id uuid.UUID) (*Node, bool) {
			n, ok := snap[id]
			return n, ok
		},
	}
}
