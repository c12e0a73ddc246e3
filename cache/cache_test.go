package cache

import (
	"testing"

	"github.com/google/uuid"

	"github.com/reelengine/reel/frame"
	"github.com/reelengine/reel/memmgr"
)

func frameOfSize(n int) frame.Frame {
	// 1 byte per pixel isn't a real format, but ByteSize only cares about
	// buffer length, so build an RGBA8 frame with n/4 pixels.
	w := n / 4
	if w == 0 {
		w = 1
	}
	return frame.NewFilled(w, 1, frame.RGBA8, frame.Color{R: 1, A: 1})
}

func TestGetMissThenHit(t *testing.T) {
	mem := memmgr.NewWithLimit(1<<20, nil)
	c := New(mem, KeepAll, nil)
	node := uuid.New()
	key := Key{Node: node, Frame: 0}

	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Insert(key, frameOfSize(16), 1)
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit after insert")
	}
	if got.ByteSize() != 16 {
		t.Errorf("ByteSize = %d, want 16", got.ByteSize())
	}

	stats := c.Statistics()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit 1 miss", stats)
	}
}

func TestInsertDiscardsStaleEpoch(t *testing.T) {
	mem := memmgr.NewWithLimit(1<<20, nil)
	c := New(mem, KeepAll, nil)
	key := Key{Node: uuid.New(), Frame: 5}

	c.Insert(key, frameOfSize(4), 10)
	c.Insert(key, frameOfSize(8), 3) // stale, should be ignored

	got, _ := c.Get(key)
	if got.ByteSize() != 4 {
		t.Errorf("ByteSize after stale insert = %d, want 4 (unchanged)", got.ByteSize())
	}
}

func TestEvictionRespectsMemoryCeiling(t *testing.T) {
	frameBytes := int64(16)
	mem := memmgr.NewWithLimit(frameBytes*10, nil) // budget for exactly 10 frames
	c := New(mem, KeepAll, nil)
	node := uuid.New()

	for i := int64(0); i < 20; i++ {
		c.Insert(Key{Node: node, Frame: i}, frameOfSize(16), uint64(i))
		if mem.BytesInUse() > mem.LimitBytes() {
			t.Fatalf("bytes_in_use exceeded limit after inserting frame %d: %d > %d", i, mem.BytesInUse(), mem.LimitBytes())
		}
		if c.Statistics().Entries > 10 {
			t.Fatalf("entry count %d exceeds budget after frame %d", c.Statistics().Entries, i)
		}
	}

	// Every frame should still be obtainable by re-inserting (re-decoding
	// on demand), matching Scenario E.
	for i := int64(0); i < 20; i++ {
		c.Insert(Key{Node: node, Frame: i}, frameOfSize(16), uint64(100+i))
		if _, ok := c.Get(Key{Node: node, Frame: i}); !ok {
			t.Errorf("frame %d not obtainable after re-insert", i)
		}
	}
}

func TestClearNodeRemovesOnlyThatNode(t *testing.T) {
	mem := memmgr.NewWithLimit(1<<20, nil)
	c := New(mem, KeepAll, nil)
	a, b := uuid.New(), uuid.New()

	c.Insert(Key{Node: a, Frame: 0}, frameOfSize(16), 1)
	c.Insert(Key{Node: b, Frame: 0}, frameOfSize(16), 1)

	c.ClearNode(a)

	if _, ok := c.Get(Key{Node: a, Frame: 0}); ok {
		t.Error("node a should be cleared")
	}
	if _, ok := c.Get(Key{Node: b, Frame: 0}); !ok {
		t.Error("node b should be unaffected")
	}
}

func TestLastOnlyStrategyPrefersMultiFrameNodes(t *testing.T) {
	mem := memmgr.NewWithLimit(16*2, nil) // room for 2 frames
	c := New(mem, LastOnly, nil)
	multi := uuid.New()
	single := uuid.New()

	c.Insert(Key{Node: single, Frame: 0}, frameOfSize(16), 1)
	c.Insert(Key{Node: multi, Frame: 0}, frameOfSize(16), 2)
	c.Insert(Key{Node: multi, Frame: 1}, frameOfSize(16), 3) // forces an eviction

	if _, ok := c.Get(Key{Node: single, Frame: 0}); !ok {
		t.Error("LastOnly should have preferred evicting the multi-frame node's older frame")
	}
}

func TestGetMissesOnLoadingPlaceholder(t *testing.T) {
	mem := memmgr.NewWithLimit(1<<20, nil)
	c := New(mem, KeepAll, nil)
	key := Key{Node: uuid.New(), Frame: 9}

	c.MarkLoading(key, 1)
	if _, ok := c.Get(key); ok {
		t.Error("Get must miss on a Loading placeholder: its pixels do not exist yet")
	}
	if c.Status(key) != LoadingStatus {
		t.Errorf("Status = %v, want LoadingStatus preserved for enqueue dedup", c.Status(key))
	}
}

// TestStaleEpochInsertReleasesLoadingPlaceholder covers the cancelled
// mid-flight decode: the claim is made under epoch e1, a scrub advances
// the epoch, the decode result is discarded — and the key must be fully
// vacated so the next trigger's job can claim and decode it afresh.
func TestStaleEpochInsertReleasesLoadingPlaceholder(t *testing.T) {
	mem := memmgr.NewWithLimit(1<<20, nil)
	c := New(mem, KeepAll, nil)
	key := Key{Node: uuid.New(), Frame: 500}

	e1 := mem.BumpEpoch()
	c.MarkLoading(key, e1)
	mem.BumpEpoch() // scrub supersedes e1 while the decode is running

	c.Insert(key, frameOfSize(16), e1) // the late decode result

	if c.Status(key) != Missing {
		t.Fatalf("Status = %v, want Missing: stale insert must release the Loading claim", c.Status(key))
	}
	if c.Statistics().Entries != 0 {
		t.Errorf("entries = %d, want 0", c.Statistics().Entries)
	}

	// The key is reclaimable under the current epoch.
	cur := mem.CurrentEpoch()
	c.MarkLoading(key, cur)
	c.Insert(key, frameOfSize(16), cur)
	if _, ok := c.Get(key); !ok {
		t.Error("key must load normally once a current-epoch job claims it")
	}
}
