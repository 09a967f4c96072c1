package cache

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/arcadelab/scorekeep/internal/domain/model"
	"github.com/arcadelab/scorekeep/internal/domain/ranking"
)

var survivorStage1 = model.LeaderboardKey{GameMode: "Survivor", StageID: 1}

func TestUpsertIfGreater(t *testing.T) {
	c := NewTreapCache()
	ctx := context.Background()

	changed, err := c.UpsertIfGreater(ctx, survivorStage1, "u1", ranking.Key(5000, 120))
	if err != nil || !changed {
		t.Fatalf("first upsert: changed=%v err=%v", changed, err)
	}

	// A worse submission must not regress the member.
	changed, err = c.UpsertIfGreater(ctx, survivorStage1, "u1", ranking.Key(4000, 10))
	if err != nil || changed {
		t.Fatalf("worse upsert: changed=%v err=%v", changed, err)
	}
	rank, err := c.GetRank(ctx, survivorStage1, "u1")
	if err != nil || rank != 1 {
		t.Fatalf("rank after worse upsert: %d, %v", rank, err)
	}

	// Equal rank key is not strictly greater.
	changed, _ = c.UpsertIfGreater(ctx, survivorStage1, "u1", ranking.Key(5000, 120))
	if changed {
		t.Error("equal rank key should not change the cache")
	}

	// A better submission replaces the entry.
	changed, _ = c.UpsertIfGreater(ctx, survivorStage1, "u1", ranking.Key(6000, 120))
	if !changed {
		t.Error("improved rank key should change the cache")
	}
	if n, _ := c.Count(ctx, survivorStage1); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestGetTopOrderingAndTies(t *testing.T) {
	c := NewTreapCache()
	ctx := context.Background()

	// u2 best, u3 beats u1 on clear time, u4 ties u3 exactly.
	c.UpsertIfGreater(ctx, survivorStage1, "u1", ranking.Key(5000, 120))
	c.UpsertIfGreater(ctx, survivorStage1, "u2", ranking.Key(8000, 90))
	c.UpsertIfGreater(ctx, survivorStage1, "u3", ranking.Key(5000, 100))
	c.UpsertIfGreater(ctx, survivorStage1, "u4", ranking.Key(5000, 100))

	top, err := c.GetTop(ctx, survivorStage1, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"u2", "u3", "u4", "u1"}
	if len(top) != len(want) {
		t.Fatalf("got %d entries, want %d", len(top), len(want))
	}
	for i, m := range top {
		if m.UserID != want[i] {
			t.Errorf("position %d = %s, want %s", i, m.UserID, want[i])
		}
	}

	// Tied members share a rank; the next member skips past them.
	for id, wantRank := range map[string]int{"u2": 1, "u3": 2, "u4": 2, "u1": 4} {
		if rank, _ := c.GetRank(ctx, survivorStage1, id); rank != wantRank {
			t.Errorf("GetRank(%s) = %d, want %d", id, rank, wantRank)
		}
	}
}

func TestGetTopPaginationConcat(t *testing.T) {
	c := NewTreapCache()
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("user-%02d", i)
		c.UpsertIfGreater(ctx, survivorStage1, id, ranking.Key(int64(1000+i*7%13*100), float64(i)))
	}

	page1, _ := c.GetTop(ctx, survivorStage1, 10, 0)
	page2, _ := c.GetTop(ctx, survivorStage1, 10, 10)
	whole, _ := c.GetTop(ctx, survivorStage1, 20, 0)

	if len(page1)+len(page2) != len(whole) {
		t.Fatalf("page sizes %d+%d != %d", len(page1), len(page2), len(whole))
	}
	for i, m := range append(page1, page2...) {
		if m != whole[i] {
			t.Errorf("concat[%d] = %+v, want %+v", i, m, whole[i])
		}
	}
}

func TestGetTopOffsetPastEnd(t *testing.T) {
	c := NewTreapCache()
	ctx := context.Background()

	c.UpsertIfGreater(ctx, survivorStage1, "u1", ranking.Key(100, 1))

	if got, err := c.GetTop(ctx, survivorStage1, 10, 5); err != nil || len(got) != 0 {
		t.Errorf("offset past end: got %v, %v", got, err)
	}
	if _, err := c.GetTop(ctx, survivorStage1, 0, 0); err != ErrInvalidLimit {
		t.Errorf("zero limit: err = %v, want ErrInvalidLimit", err)
	}
}

func TestKeysArePartitioned(t *testing.T) {
	c := NewTreapCache()
	ctx := context.Background()
	other := model.LeaderboardKey{GameMode: "Survivor", StageID: 2}

	c.UpsertIfGreater(ctx, survivorStage1, "u1", ranking.Key(100, 1))
	c.UpsertIfGreater(ctx, other, "u2", ranking.Key(900, 1))

	if rank, err := c.GetRank(ctx, survivorStage1, "u1"); err != nil || rank != 1 {
		t.Errorf("u1 rank on stage 1 = %d, %v", rank, err)
	}
	if _, err := c.GetRank(ctx, survivorStage1, "u2"); err != ErrNotFound {
		t.Errorf("u2 should be unknown on stage 1, err = %v", err)
	}
}

func TestRemove(t *testing.T) {
	c := NewTreapCache()
	ctx := context.Background()

	c.UpsertIfGreater(ctx, survivorStage1, "u1", ranking.Key(100, 1))
	c.UpsertIfGreater(ctx, survivorStage1, "u2", ranking.Key(200, 1))

	if err := c.Remove(ctx, survivorStage1, "u2"); err != nil {
		t.Fatal(err)
	}
	if rank, err := c.GetRank(ctx, survivorStage1, "u1"); err != nil || rank != 1 {
		t.Errorf("u1 rank after removal = %d, %v", rank, err)
	}
	if _, err := c.GetRank(ctx, survivorStage1, "u2"); err != ErrNotFound {
		t.Errorf("removed member err = %v, want ErrNotFound", err)
	}

	if err := c.RemoveKey(ctx, survivorStage1); err != nil {
		t.Fatal(err)
	}
	if n, _ := c.Count(ctx, survivorStage1); n != 0 {
		t.Errorf("count after RemoveKey = %d", n)
	}
}

func TestConcurrentUpserts(t *testing.T) {
	c := NewTreapCache()
	ctx := context.Background()

	const goroutines = 8
	const perGoroutine = 200

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				score := int64(rand.IntN(10_000))
				c.UpsertIfGreater(ctx, survivorStage1, "contested", ranking.Key(score, 60))
				c.UpsertIfGreater(ctx, survivorStage1, fmt.Sprintf("u-%d", rand.IntN(50)), ranking.Key(score, 30))
			}
		}()
	}
	wg.Wait()

	// The contested member must hold a rank key at least as good as
	// any single racing write (no lost-update regression).
	rank, err := c.GetRank(ctx, survivorStage1, "contested")
	if err != nil {
		t.Fatalf("contested member missing: %v", err)
	}
	if rank < 1 {
		t.Errorf("rank = %d", rank)
	}

	top, err := c.GetTop(ctx, survivorStage1, 60, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(top); i++ {
		prev, cur := top[i-1], top[i]
		if cur.RankKey > prev.RankKey {
			t.Fatalf("ordering violated at %d: %v before %v", i, prev, cur)
		}
		if cur.RankKey == prev.RankKey && cur.UserID < prev.UserID {
			t.Fatalf("tie order violated at %d: %s before %s", i, prev.UserID, cur.UserID)
		}
	}
}
