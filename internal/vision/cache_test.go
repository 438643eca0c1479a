package vision

import (
	"fmt"
	"testing"
	"time"

	"Sightline/internal/geom"
	"Sightline/internal/scene"
)

func TestFingerprintBuckets(t *testing.T) {
	a := FingerprintOf(geom.Vec2{X: 10, Y: 10}, 0, 5)
	b := FingerprintOf(geom.Vec2{X: 11, Y: 9}, 0, 5)
	if a != b {
		t.Fatalf("positions inside one bucket must share a fingerprint: %v vs %v", a, b)
	}
	c := FingerprintOf(geom.Vec2{X: 20, Y: 10}, 0, 5)
	if a == c {
		t.Fatalf("positions in different buckets must differ")
	}
	d := FingerprintOf(geom.Vec2{X: 10, Y: 10}, 40, 5)
	if a == d {
		t.Fatalf("elevation participates in the fingerprint")
	}
}

func TestPairCacheFingerprintInvalidation(t *testing.T) {
	c := NewPairCache[scene.VisibilityState](16, 0, time.Second)
	now := time.Now()
	key := PairKey{Observer: "a", Target: "b"}
	obsFP := FingerprintOf(geom.Vec2{X: 0, Y: 0}, 0, 5)
	tgtFP := FingerprintOf(geom.Vec2{X: 100, Y: 0}, 0, 5)

	c.Set(key, scene.Hidden, obsFP, tgtFP, now)
	if v, ok := c.Get(key, obsFP, tgtFP, now); !ok || v != scene.Hidden {
		t.Fatalf("expected hit: %v %v", v, ok)
	}

	// The observer moved a bucket over: the entry is dropped, not returned.
	movedFP := FingerprintOf(geom.Vec2{X: 50, Y: 0}, 0, 5)
	if _, ok := c.Get(key, movedFP, tgtFP, now); ok {
		t.Fatalf("fingerprint drift must miss")
	}
	if c.Size() != 0 {
		t.Fatalf("mismatched entry must be evicted, size %d", c.Size())
	}
}

func TestPairCacheTTL(t *testing.T) {
	c := NewPairCache[bool](16, time.Second, time.Second)
	now := time.Now()
	key := PairKey{Observer: "a", Target: "b"}
	fp := Fingerprint{}

	c.Set(key, true, fp, fp, now)
	if _, ok := c.Get(key, fp, fp, now.Add(500*time.Millisecond)); !ok {
		t.Fatalf("entry inside the TTL must hit")
	}
	if _, ok := c.Get(key, fp, fp, now.Add(3*time.Second)); ok {
		t.Fatalf("entry past the TTL must miss")
	}
}

func TestPairCachePruneEvictsLRU(t *testing.T) {
	c := NewPairCache[int](4, 0, time.Millisecond)
	start := time.Now()
	fp := Fingerprint{}
	for i := 0; i < 8; i++ {
		key := PairKey{Observer: scene.EntityID(fmt.Sprintf("o%d", i)), Target: "t"}
		c.Set(key, i, fp, fp, start.Add(time.Duration(i)*time.Millisecond))
	}

	evicted := c.PruneIfDue(start.Add(time.Second))
	if evicted != 4 {
		t.Fatalf("expected 4 evictions down to capacity, got %d", evicted)
	}
	if c.Size() != 4 {
		t.Fatalf("size after prune: %d", c.Size())
	}
	// The most recently touched entries survive.
	if _, ok := c.Get(PairKey{Observer: "o7", Target: "t"}, fp, fp, start.Add(time.Second)); !ok {
		t.Fatalf("newest entry must survive the prune")
	}
	if _, ok := c.Get(PairKey{Observer: "o0", Target: "t"}, fp, fp, start.Add(time.Second)); ok {
		t.Fatalf("oldest entry must be evicted")
	}
}

func TestPairCachePruneRateLimited(t *testing.T) {
	c := NewPairCache[int](1, 0, time.Minute)
	now := time.Now()
	fp := Fingerprint{}
	c.Set(PairKey{Observer: "a", Target: "b"}, 1, fp, fp, now)
	c.PruneIfDue(now)
	c.Set(PairKey{Observer: "c", Target: "d"}, 2, fp, fp, now)

	// Over capacity, but the next prune is not due yet.
	if evicted := c.PruneIfDue(now.Add(time.Second)); evicted != 0 {
		t.Fatalf("prune must be rate-limited, evicted %d", evicted)
	}
	if evicted := c.PruneIfDue(now.Add(2 * time.Minute)); evicted != 1 {
		t.Fatalf("due prune should evict down to capacity, got %d", evicted)
	}
}

func TestPairCacheDropEntity(t *testing.T) {
	c := NewPairCache[int](16, 0, time.Second)
	now := time.Now()
	fp := Fingerprint{}
	c.Set(PairKey{Observer: "a", Target: "b"}, 1, fp, fp, now)
	c.Set(PairKey{Observer: "b", Target: "c"}, 2, fp, fp, now)
	c.Set(PairKey{Observer: "c", Target: "a"}, 3, fp, fp, now)

	c.DropEntity("a")
	if c.Size() != 1 {
		t.Fatalf("entries involving the entity as either side must go, size %d", c.Size())
	}
	if _, ok := c.Get(PairKey{Observer: "b", Target: "c"}, fp, fp, now); !ok {
		t.Fatalf("unrelated entry must survive")
	}
}

func TestPairCachePeekDoesNotValidate(t *testing.T) {
	c := NewPairCache[int](16, 0, time.Second)
	now := time.Now()
	obsFP := Fingerprint{X: 1}
	tgtFP := Fingerprint{X: 2}
	key := PairKey{Observer: "a", Target: "b"}
	c.Set(key, 7, obsFP, tgtFP, now)

	v, gotObs, gotTgt, ok := c.Peek(key)
	if !ok || v != 7 || gotObs != obsFP || gotTgt != tgtFP {
		t.Fatalf("peek must return the stored entry verbatim: %v %v %v %v", v, gotObs, gotTgt, ok)
	}
	if c.Size() != 1 {
		t.Fatalf("peek must not evict")
	}
}
