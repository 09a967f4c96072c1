package cache

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/arcadelab/scorekeep/internal/domain/model"
	"github.com/arcadelab/scorekeep/pkg/metrics"
)

// Treap-based, in-memory Cache implementation.
//
// One treap per leaderboard key. Ordering: rank key DESC, then user id
// ASC, so an in-order traversal produces the leaderboard from best to
// worst. Nodes carry subtree sizes, giving O(log n) offset paging and
// strictly-greater counting. Random priorities keep the tree balanced
// in expectation.

type node struct {
	id    string
	key   float64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aKey, aID) ranks earlier than (bKey, bID).
func less(aKey float64, aID string, bKey float64, bID string) bool {
	if aKey != bKey {
		return aKey > bKey // greater rank key ranks earlier
	}
	return aID < bID // tie-break by user id asc
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, key float64) *node {
	if n == nil {
		return &node{id: id, key: key, prio: rand.Uint64(), size: 1}
	}
	if less(key, id, n.key, n.id) {
		n.left = insert(n.left, id, key)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, key)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func remove(n *node, id string, key float64) *node {
	if n == nil {
		return nil
	}
	if key == n.key && id == n.id {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = remove(n.right, id, key)
		} else {
			n = rotateLeft(n)
			n.left = remove(n.left, id, key)
		}
	} else if less(key, id, n.key, n.id) {
		n.left = remove(n.left, id, key)
	} else {
		n.right = remove(n.right, id, key)
	}
	fix(n)
	return n
}

// countGreater returns the number of members whose rank key is
// strictly greater than key.
func countGreater(n *node, key float64) int {
	c := 0
	for n != nil {
		if n.key > key {
			c += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return c
}

// collectRange appends up to limit members in rank order, skipping the
// first *skip members. Whole subtrees are pruned via the size field.
func collectRange(n *node, skip *int, limit int, out *[]Member) {
	if n == nil || len(*out) >= limit {
		return
	}
	if *skip >= nsize(n) {
		*skip -= nsize(n)
		return
	}
	collectRange(n.left, skip, limit, out)
	if len(*out) < limit {
		if *skip > 0 {
			*skip--
		} else {
			*out = append(*out, Member{UserID: n.id, RankKey: n.key})
		}
	}
	collectRange(n.right, skip, limit, out)
}

// board holds the sorted state for a single leaderboard key.
type board struct {
	root *node
	byID map[string]float64
}

// TreapCache implements Cache in process memory. It is the default
// backend and doubles as the test double for the Redis backend.
type TreapCache struct {
	mu     sync.RWMutex
	boards map[model.LeaderboardKey]*board
}

// NewTreapCache constructs an empty in-memory cache.
func NewTreapCache() *TreapCache {
	return &TreapCache{boards: make(map[model.LeaderboardKey]*board)}
}

// UpsertIfGreater implements Cache. The compare-and-replace runs under
// the cache mutex, so it is atomic with respect to racing submissions.
func (c *TreapCache) UpsertIfGreater(_ context.Context, key model.LeaderboardKey, userID string, rankKey float64) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCacheUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.boards[key]
	if !ok {
		b = &board{byID: make(map[string]float64)}
		c.boards[key] = b
	}
	if old, ok := b.byID[userID]; ok {
		if rankKey <= old { // not an improvement
			return false, nil
		}
		b.root = remove(b.root, userID, old)
	}
	b.byID[userID] = rankKey
	b.root = insert(b.root, userID, rankKey)
	return true, nil
}

// GetTop implements Cache in O(log n + count).
func (c *TreapCache) GetTop(_ context.Context, key model.LeaderboardKey, count, offset int) ([]Member, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCacheQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if count < 1 {
		return nil, ErrInvalidLimit
	}
	if offset < 0 {
		offset = 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.boards[key]
	if !ok {
		return nil, nil
	}
	out := make([]Member, 0, count)
	skip := offset
	collectRange(b.root, &skip, count, &out)
	return out, nil
}

// GetRank implements Cache in O(log n).
func (c *TreapCache) GetRank(_ context.Context, key model.LeaderboardKey, userID string) (int, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCacheQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.boards[key]
	if !ok {
		return 0, ErrNotFound
	}
	rk, ok := b.byID[userID]
	if !ok {
		return 0, ErrNotFound
	}
	return countGreater(b.root, rk) + 1, nil
}

// Remove implements Cache.
func (c *TreapCache) Remove(_ context.Context, key model.LeaderboardKey, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.boards[key]
	if !ok {
		return nil
	}
	if rk, ok := b.byID[userID]; ok {
		b.root = remove(b.root, userID, rk)
		delete(b.byID, userID)
	}
	return nil
}

// RemoveKey implements Cache.
func (c *TreapCache) RemoveKey(_ context.Context, key model.LeaderboardKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.boards, key)
	return nil
}

// Count implements Cache.
func (c *TreapCache) Count(_ context.Context, key model.LeaderboardKey) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.boards[key]
	if !ok {
		return 0, nil
	}
	return len(b.byID), nil
}
