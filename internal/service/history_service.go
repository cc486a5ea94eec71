package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Redennison/CampusCollab/relay-service/internal/cache"
	"github.com/Redennison/CampusCollab/relay-service/internal/domain"
	"github.com/Redennison/CampusCollab/relay-service/internal/store"
	"github.com/Redennison/CampusCollab/relay-service/pkg/log"
)

type historyService struct {
	repo     store.MessageStore
	cache    cache.HistoryCache // optional
	cacheTTL time.Duration
	sf       singleflight.Group
}

func NewHistoryService(repo store.MessageStore, histCache cache.HistoryCache, cacheTTL time.Duration) HistoryService {
	return &historyService{
		repo:     repo,
		cache:    histCache,
		cacheTTL: cacheTTL,
	}
}

func (s *historyService) GetHistory(
	ctx context.Context,
	roomID, cursor string,
	limit int,
	direction string,
) (*domain.HistoryPage, error) {
	dir := store.ParseDirection(direction)

	// The first page always comes straight from the store: a client that
	// fetches history right after a successful send must see that message.
	// Cursor pages are immutable and safe to cache.
	if cursor == "" || s.cache == nil {
		messages, nextCursor, hasMore, err := s.repo.History(ctx, roomID, cursor, limit, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to get messages from store: %w", err)
		}
		return &domain.HistoryPage{
			Messages:   messages,
			NextCursor: nextCursor,
			HasMore:    hasMore,
		}, nil
	}

	cacheKey := s.cache.BuildKey(roomID, cursor, direction, limit)

	// Collapse concurrent identical reads into one store query.
	result, err, _ := s.sf.Do(cacheKey, func() (interface{}, error) {
		return s.fetchWithCache(ctx, roomID, cursor, limit, dir, cacheKey)
	})
	if err != nil {
		return nil, err
	}

	cacheResult, ok := result.(*cache.HistoryCacheResult)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}

	return &domain.HistoryPage{
		Messages:   cacheResult.Messages,
		NextCursor: cacheResult.NextCursor,
		HasMore:    cacheResult.HasMore,
	}, nil
}

func (s *historyService) fetchWithCache(
	ctx context.Context,
	roomID, cursor string,
	limit int,
	dir store.Direction,
	cacheKey string,
) (*cache.HistoryCacheResult, error) {
	cached, err := s.cache.Get(ctx, cacheKey)
	if err == nil {
		return cached, nil
	}

	if !errors.Is(err, cache.ErrCacheMiss) {
		// Log error but continue to fetch from the store.
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache get error")
	}

	messages, nextCursor, hasMore, err := s.repo.History(ctx, roomID, cursor, limit, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages from store: %w", err)
	}

	result := &cache.HistoryCacheResult{
		Messages:   messages,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}

	// Store in cache (async to avoid blocking the response).
	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.cache.Set(cacheCtx, cacheKey, result, s.cacheTTL); err != nil {
			l := log.L()
			l.Warn().Err(err).Msg("cache set error")
		}
	}()

	return result, nil
}
