// Package rebuild repopulates leaderboard cache keys from the score
// store. The cache is a disposable projection, so a cold or stale key
// is healed by upserting every personal best for that key; since the
// store is append-only and upserts never regress a member, a rebuild
// can run concurrently with live submissions without locking either
// side.
package rebuild

import (
	"context"
	"sync"
	"time"

	"github.com/arcadelab/scorekeep/internal/adapters/cache"
	"github.com/arcadelab/scorekeep/internal/adapters/store"
	"github.com/arcadelab/scorekeep/internal/domain/dedupe"
	"github.com/arcadelab/scorekeep/internal/domain/model"
	"github.com/arcadelab/scorekeep/internal/domain/ranking"
	"github.com/arcadelab/scorekeep/pkg/logger"
	"github.com/arcadelab/scorekeep/pkg/metrics"
)

// Default rebuilder configuration constants.
const (
	defaultWorkerCount = 2
	defaultQueueSize   = 64
)

// Option applies a configuration option to the Rebuilder.
type Option func(*Rebuilder)

// WithWorkerCount sets the number of rebuild workers.
func WithWorkerCount(count int) Option {
	return func(r *Rebuilder) {
		if count > 0 {
			r.workerCount = count
		}
	}
}

// WithQueueSize bounds the rebuild job queue.
func WithQueueSize(size int) Option {
	return func(r *Rebuilder) {
		if size > 0 {
			r.queueSize = size
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Rebuilder) {
		if log != nil {
			r.log = log
		}
	}
}

// Rebuilder owns a bounded job queue and a worker pool. Scheduling is
// best-effort: a full queue or an in-flight duplicate drops the
// request, which is safe because rebuilds are an optimization, never a
// correctness requirement.
type Rebuilder struct {
	src store.Store
	dst cache.Cache

	workerCount int
	queueSize   int
	jobs        chan model.LeaderboardKey
	inflight    dedupe.Tracker

	log     logger.Logger
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
}

// New constructs a Rebuilder reading from src and writing to dst.
func New(src store.Store, dst cache.Cache, opts ...Option) *Rebuilder {
	r := &Rebuilder{
		src:         src,
		dst:         dst,
		workerCount: defaultWorkerCount,
		queueSize:   defaultQueueSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.jobs = make(chan model.LeaderboardKey, r.queueSize)
	r.inflight = dedupe.NewInMemoryTracker(dedupe.WithMaxSize(r.queueSize * 2))
	r.stopCh = make(chan struct{})
	return r
}

// Start launches the worker pool.
func (r *Rebuilder) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	metrics.UpdateRebuildWorkerCount(r.workerCount)
	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
}

// Stop drains the workers. Queued jobs that have not started are
// dropped; their keys stay cold until the next miss schedules them
// again.
func (r *Rebuilder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}
	close(r.stopCh)
	r.wg.Wait()
	r.started = false
}

// Schedule requests a rebuild of key. Returns false when the key is
// already in flight or the queue is full.
func (r *Rebuilder) Schedule(ctx context.Context, key model.LeaderboardKey) bool {
	if r.inflight.SeenAndRecord(ctx, key.String()) {
		metrics.RecordRebuildDuplicate()
		return false
	}
	select {
	case r.jobs <- key:
		metrics.RecordRebuildScheduled()
		metrics.UpdateRebuildQueueSize(len(r.jobs))
		return true
	default:
		r.inflight.Unrecord(ctx, key.String())
		return false
	}
}

func (r *Rebuilder) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case key := <-r.jobs:
			metrics.UpdateRebuildQueueSize(len(r.jobs))
			r.rebuild(ctx, key)
		}
	}
}

func (r *Rebuilder) rebuild(ctx context.Context, key model.LeaderboardKey) {
	defer r.inflight.Unrecord(ctx, key.String())

	start := time.Now()
	bests, err := r.src.QueryPersonalBests(ctx, key)
	if err != nil {
		if r.log != nil {
			r.log.Warn(ctx, "cache rebuild aborted: store read failed",
				logger.String("key", key.String()),
				logger.Error(err),
			)
		}
		return
	}

	for _, rec := range bests {
		rk := ranking.Key(rec.Score, rec.ClearTime)
		if _, err := r.dst.UpsertIfGreater(ctx, key, rec.UserID, rk); err != nil {
			if r.log != nil {
				r.log.Warn(ctx, "cache rebuild upsert failed",
					logger.String("key", key.String()),
					logger.String("userID", rec.UserID),
					logger.Error(err),
				)
			}
			return
		}
	}

	metrics.RecordRebuildCompleted()
	if r.log != nil {
		r.log.Debug(ctx, "cache key rebuilt",
			logger.String("key", key.String()),
			logger.Int("members", len(bests)),
			logger.Int("elapsedMs", int(time.Since(start).Milliseconds())),
		)
	}
}
