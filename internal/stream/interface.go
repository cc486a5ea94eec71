package stream

import (
	"context"

	"github.com/Redennison/CampusCollab/relay-service/internal/domain"
)

// Exporter mirrors persisted messages to a stream for downstream
// consumers (analytics, moderation, archival). Export happens after the
// durable append and never gates broadcast.
type Exporter interface {
	Export(ctx context.Context, msg *domain.ChatMessage) error
	Close() error
}
