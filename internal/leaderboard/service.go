package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"soul-carbon/carbon-tracker-backend/pkg/apperrors"
)

const cacheTTL = 5 * time.Minute

// Service serves leaderboards and global stats from a short-lived Redis cache
// over the Postgres aggregates. Cache failures fall through to the database;
// the cache is never authoritative.
type Service struct {
	repo   Repository
	cache  *redis.Client
	logger *zap.Logger
}

// NewService creates a new leaderboard service
func NewService(repo Repository, cache *redis.Client, logger *zap.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Board returns the top entries for one leaderboard kind.
func (s *Service) Board(ctx context.Context, board string, limit int) ([]Entry, error) {
	switch board {
	case BoardOffsets, BoardEmissions, BoardNetPositive:
	default:
		return nil, apperrors.Validation("unknown leaderboard: " + board)
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	key := fmt.Sprintf("leaderboard:%s:%d", board, limit)
	if cached, ok := s.fromCache(ctx, key); ok {
		var entries []Entry
		if err := json.Unmarshal(cached, &entries); err == nil {
			return entries, nil
		}
	}

	entries, err := s.repo.TopByBoard(ctx, board, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s leaderboard: %w", board, err)
	}
	s.toCache(ctx, key, entries)
	return entries, nil
}

// Global returns platform-wide totals.
func (s *Service) Global(ctx context.Context) (*GlobalStats, error) {
	const key = "leaderboard:global"
	if cached, ok := s.fromCache(ctx, key); ok {
		var stats GlobalStats
		if err := json.Unmarshal(cached, &stats); err == nil {
			return &stats, nil
		}
	}

	stats, err := s.repo.GlobalStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate global stats: %w", err)
	}
	s.toCache(ctx, key, stats)
	return stats, nil
}

func (s *Service) fromCache(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("leaderboard cache read failed", zap.Error(err), zap.String("key", key))
		}
		return nil, false
	}
	return data, true
}

func (s *Service) toCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, cacheTTL).Err(); err != nil {
		s.logger.Warn("leaderboard cache write failed", zap.Error(err), zap.String("key", key))
	}
}
