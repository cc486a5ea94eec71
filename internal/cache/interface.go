package cache

import (
	"context"
	"time"

	"github.com/Redennison/CampusCollab/relay-service/internal/domain"
)

type HistoryCacheResult struct {
	Messages   []domain.ChatMessage `json:"messages"`
	NextCursor string               `json:"next_cursor"`
	HasMore    bool                 `json:"has_more"`
}

type HistoryCache interface {
	Get(ctx context.Context, key string) (*HistoryCacheResult, error)
	Set(ctx context.Context, key string, result *HistoryCacheResult, ttl time.Duration) error
	BuildKey(roomID, cursor, direction string, limit int) string
	Close() error
}
