// Package service provides the core business service that implements
// the dependencies required by the HTTP API: the score submission
// pipeline and the ranking query engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/arcadelab/scorekeep/internal/adapters/cache"
	"github.com/arcadelab/scorekeep/internal/adapters/rebuild"
	"github.com/arcadelab/scorekeep/internal/adapters/store"
	"github.com/arcadelab/scorekeep/internal/domain/model"
	"github.com/arcadelab/scorekeep/internal/domain/ranking"
	"github.com/arcadelab/scorekeep/internal/identity"
	"github.com/arcadelab/scorekeep/pkg/logger"
	"github.com/arcadelab/scorekeep/pkg/metrics"
)

// Default query bounds.
const (
	defaultPageSize = 100
	maxPageSize     = 200
	defaultHistory  = 100
)

// Submission is the validated input of the score pipeline. The store
// assigns the record id and the service stamps RecordedAt.
type Submission struct {
	UserID          string
	GameMode        string
	StageID         int
	Score           int64
	ClearTime       float64
	WaveReached     int
	EnemiesDefeated int
}

// Service implements the submission pipeline and the ranking queries.
// The store is authoritative; the cache is a best-effort accelerator
// whose failures are absorbed, logged, and healed by lazy rebuilds.
type Service struct {
	mu sync.Mutex

	store     store.Store
	cache     cache.Cache
	resolver  identity.Resolver
	rebuilder *rebuild.Rebuilder

	gameModes    map[string]struct{}
	defaultLimit int
	maxLimit     int
	historyLimit int

	started bool
	log     logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithResolver sets the display-name resolver.
func WithResolver(r identity.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithRebuilder attaches a cache rebuilder. Without one, cold cache
// keys are simply served from the store on every read.
func WithRebuilder(r *rebuild.Rebuilder) Option {
	return func(s *Service) {
		s.rebuilder = r
	}
}

// WithGameModes restricts submissions to the given game modes. An
// empty list accepts any mode.
func WithGameModes(modes []string) Option {
	return func(s *Service) {
		s.gameModes = make(map[string]struct{}, len(modes))
		for _, m := range modes {
			s.gameModes[m] = struct{}{}
		}
	}
}

// WithPageSizes sets the default and maximum leaderboard page sizes.
func WithPageSizes(def, max int) Option {
	return func(s *Service) {
		if def > 0 {
			s.defaultLimit = def
		}
		if max >= s.defaultLimit {
			s.maxLimit = max
		}
	}
}

// WithHistoryLimit caps user history reads.
func WithHistoryLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.historyLimit = limit
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New constructs a Service on the given store and cache.
func New(st store.Store, c cache.Cache, opts ...Option) *Service {
	s := &Service{
		store:        st,
		cache:        c,
		defaultLimit: defaultPageSize,
		maxLimit:     maxPageSize,
		historyLimit: defaultHistory,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = identity.NewStatic(nil)
	}
	return s
}

// Start brings up the service and its rebuilder.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.log == nil {
		s.log = logger.Get()
	}
	if s.rebuilder != nil {
		s.rebuilder.Start(ctx)
	}
	s.started = true
	s.log.Info(ctx, "scorekeep service started",
		logger.Int("defaultPageSize", s.defaultLimit),
		logger.Int("maxPageSize", s.maxLimit),
		logger.Int("gameModes", len(s.gameModes)),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.rebuilder != nil {
		s.rebuilder.Stop()
	}
	s.started = false
	if s.log != nil {
		s.log.Info(context.Background(), "scorekeep service stopped")
	}
}

// Submit validates the submission, appends it to the durable store and
// then updates the leaderboard cache best-effort. A store failure is
// fatal to the request; a cache failure is absorbed and healed later.
func (s *Service) Submit(ctx context.Context, sub Submission) (int64, error) {
	if err := s.validate(sub); err != nil {
		metrics.RecordSubmissionRejected()
		return 0, err
	}

	rec := model.ScoreRecord{
		UserID:          sub.UserID,
		GameMode:        sub.GameMode,
		StageID:         sub.StageID,
		Score:           sub.Score,
		ClearTime:       sub.ClearTime,
		WaveReached:     sub.WaveReached,
		EnemiesDefeated: sub.EnemiesDefeated,
		RecordedAt:      time.Now().UTC(),
	}

	start := time.Now()
	id, err := s.store.Append(ctx, rec)
	metrics.RecordStoreAppendLatency(msSince(start))
	if err != nil {
		metrics.RecordErrorByComponent("store", "append")
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	metrics.RecordSubmissionAccepted()

	key := rec.Key()
	rk := ranking.Key(rec.Score, rec.ClearTime)

	start = time.Now()
	changed, err := s.cache.UpsertIfGreater(ctx, key, rec.UserID, rk)
	metrics.RecordCacheUpdateLatency(msSince(start))
	if err != nil {
		s.absorbCacheError(ctx, key, "upsert", err)
	} else if changed {
		metrics.RecordPersonalBestImproved()
	}

	return id, nil
}

func (s *Service) validate(sub Submission) error {
	switch {
	case sub.UserID == "":
		return fmt.Errorf("%w: user id must not be empty", ErrValidation)
	case sub.StageID < 1:
		return fmt.Errorf("%w: stage id must be >= 1, got %d", ErrValidation, sub.StageID)
	case sub.Score < 0:
		return fmt.Errorf("%w: score must be >= 0, got %d", ErrValidation, sub.Score)
	case sub.ClearTime < 0 || math.IsNaN(sub.ClearTime) || math.IsInf(sub.ClearTime, 0):
		return fmt.Errorf("%w: clear time must be a finite value >= 0", ErrValidation)
	}
	if len(s.gameModes) > 0 {
		if _, ok := s.gameModes[sub.GameMode]; !ok {
			return fmt.Errorf("%w: unknown game mode %q", ErrValidation, sub.GameMode)
		}
	} else if sub.GameMode == "" {
		return fmt.Errorf("%w: game mode must not be empty", ErrValidation)
	}
	return nil
}

// GetLeaderboard returns one page of the leaderboard for key. The
// cache serves the page when it can produce a complete one; anything
// short of that falls back to the store, which always gives the right
// answer.
func (s *Service) GetLeaderboard(ctx context.Context, key model.LeaderboardKey, limit, offset int) ([]model.LeaderboardEntry, error) {
	limit, offset = s.clampPage(limit, offset)

	if entries, ok := s.leaderboardFromCache(ctx, key, limit, offset); ok {
		metrics.RecordCacheHit()
		return entries, nil
	}

	metrics.RecordCacheMiss()
	metrics.RecordStoreFallback()
	s.scheduleRebuild(ctx, key)

	start := time.Now()
	recs, err := s.store.TopPersonalBests(ctx, key, limit, offset)
	metrics.RecordStoreQueryLatency(msSince(start))
	if err != nil {
		metrics.RecordErrorByComponent("store", "top")
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if len(recs) == 0 {
		return []model.LeaderboardEntry{}, nil
	}

	ranks := make([]int, len(recs))
	better, err := s.store.CountBetter(ctx, key, recs[0])
	if err != nil {
		metrics.RecordErrorByComponent("store", "count_better")
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	ranks[0] = better + 1
	for i := 1; i < len(recs); i++ {
		if ranking.Key(recs[i].Score, recs[i].ClearTime) == ranking.Key(recs[i-1].Score, recs[i-1].ClearTime) {
			ranks[i] = ranks[i-1]
		} else {
			ranks[i] = offset + i + 1
		}
	}

	return s.toEntries(ctx, recs, ranks), nil
}

// leaderboardFromCache tries to serve a full page from the cache.
// Returns ok=false when the cache errors, holds fewer members than the
// page needs, or disagrees with the store on a member.
func (s *Service) leaderboardFromCache(ctx context.Context, key model.LeaderboardKey, limit, offset int) ([]model.LeaderboardEntry, bool) {
	start := time.Now()
	members, err := s.cache.GetTop(ctx, key, limit, offset)
	metrics.RecordCacheQueryLatency(msSince(start))
	if err != nil {
		s.absorbCacheError(ctx, key, "get_top", err)
		return nil, false
	}
	if len(members) < limit {
		return nil, false
	}

	ranks := make([]int, len(members))
	first, err := s.cache.GetRank(ctx, key, members[0].UserID)
	if err != nil {
		s.absorbCacheError(ctx, key, "get_rank", err)
		return nil, false
	}
	ranks[0] = first
	for i := 1; i < len(members); i++ {
		if members[i].RankKey == members[i-1].RankKey {
			ranks[i] = ranks[i-1]
		} else {
			ranks[i] = offset + i + 1
		}
	}

	// The cache only orders members; display fields come from the
	// store's indexed per-user lookup.
	recs := make([]model.ScoreRecord, len(members))
	for i, m := range members {
		rec, err := s.store.BestForUser(ctx, key, m.UserID)
		if err != nil {
			// A member the store does not know means the cache is
			// inconsistent; the store path is the safe answer.
			return nil, false
		}
		recs[i] = rec
	}

	return s.toEntries(ctx, recs, ranks), true
}

// GetUserRank returns the user's personal best and 1-based rank for
// key, or ErrNotFound when the user has no qualifying submission.
func (s *Service) GetUserRank(ctx context.Context, key model.LeaderboardKey, userID string) (model.LeaderboardEntry, error) {
	if userID == "" {
		return model.LeaderboardEntry{}, fmt.Errorf("%w: user id must not be empty", ErrValidation)
	}

	start := time.Now()
	best, err := s.store.BestForUser(ctx, key, userID)
	metrics.RecordStoreQueryLatency(msSince(start))
	if err != nil {
		if errors.Is(err, store.ErrNoRecord) {
			return model.LeaderboardEntry{}, fmt.Errorf("%w: no record for user %q on %s", ErrNotFound, userID, key)
		}
		metrics.RecordErrorByComponent("store", "best_for_user")
		return model.LeaderboardEntry{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	rank, ok := s.rankFromCache(ctx, key, userID)
	if !ok {
		metrics.RecordStoreFallback()
		s.scheduleRebuild(ctx, key)
		better, err := s.store.CountBetter(ctx, key, best)
		if err != nil {
			metrics.RecordErrorByComponent("store", "count_better")
			return model.LeaderboardEntry{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		rank = better + 1
	}

	entries := s.toEntries(ctx, []model.ScoreRecord{best}, []int{rank})
	return entries[0], nil
}

func (s *Service) rankFromCache(ctx context.Context, key model.LeaderboardKey, userID string) (int, bool) {
	start := time.Now()
	rank, err := s.cache.GetRank(ctx, key, userID)
	metrics.RecordCacheQueryLatency(msSince(start))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			metrics.RecordCacheMiss()
		} else {
			s.absorbCacheError(ctx, key, "get_rank", err)
		}
		return 0, false
	}
	metrics.RecordCacheHit()
	return rank, true
}

// GetUserHistory returns the user's submission history, newest first.
// A nil key spans all leaderboards. History always reads the store.
func (s *Service) GetUserHistory(ctx context.Context, userID string, key *model.LeaderboardKey, limit int) ([]model.ScoreRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id must not be empty", ErrValidation)
	}
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}

	start := time.Now()
	recs, err := s.store.QueryUserScores(ctx, userID, key, limit)
	metrics.RecordStoreQueryLatency(msSince(start))
	if err != nil {
		metrics.RecordErrorByComponent("store", "history")
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return recs, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]interface{}{
		"started":         s.started,
		"defaultPageSize": s.defaultLimit,
		"maxPageSize":     s.maxLimit,
		"historyLimit":    s.historyLimit,
		"gameModes":       len(s.gameModes),
		"rebuilder":       s.rebuilder != nil,
	}
}

func (s *Service) clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Service) scheduleRebuild(ctx context.Context, key model.LeaderboardKey) {
	if s.rebuilder != nil {
		s.rebuilder.Schedule(ctx, key)
	}
}

func (s *Service) absorbCacheError(ctx context.Context, key model.LeaderboardKey, op string, err error) {
	metrics.RecordCacheErrorAbsorbed()
	metrics.RecordErrorByComponent("cache", op)
	if s.log != nil {
		s.log.Warn(ctx, "cache error absorbed",
			logger.String("op", op),
			logger.String("key", key.String()),
			logger.Error(fmt.Errorf("%w: %w", ErrCacheUnavailable, err)),
		)
	}
}

// toEntries joins records and ranks into the read shape, resolving
// display names. A user without a known name falls back to the id.
func (s *Service) toEntries(ctx context.Context, recs []model.ScoreRecord, ranks []int) []model.LeaderboardEntry {
	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.UserID
	}
	names, err := s.resolver.DisplayNames(ctx, ids)
	if err != nil {
		if s.log != nil {
			s.log.Warn(ctx, "display name resolution failed", logger.Error(err))
		}
		names = nil
	}

	entries := make([]model.LeaderboardEntry, len(recs))
	for i, rec := range recs {
		name, ok := names[rec.UserID]
		if !ok {
			name = rec.UserID
		}
		entries[i] = model.LeaderboardEntry{
			Rank:       ranks[i],
			UserID:     rec.UserID,
			UserName:   name,
			Score:      rec.Score,
			ClearTime:  rec.ClearTime,
			RecordedAt: rec.RecordedAt,
		}
	}
	return entries
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
