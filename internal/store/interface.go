package store

import (
	"context"

	"github.com/Redennison/CampusCollab/relay-service/internal/domain"
)

type Direction string

const (
	DirectionForward  Direction = "forward"  // ASC - from oldest to newest
	DirectionBackward Direction = "backward" // DESC - from newest to oldest
)

func ParseDirection(s string) Direction {
	if s == "backward" {
		return DirectionBackward
	}
	return DirectionForward
}

// MessageStore is the durable persistence gateway. The relay waits for
// Append to complete before broadcasting, so anything broadcast is
// retrievable from History immediately afterwards.
type MessageStore interface {
	// Append durably stores a fully-built message. Single-row atomic;
	// there is no partial-persist state.
	Append(ctx context.Context, msg *domain.ChatMessage) error

	// History returns one page of a room's messages. Message IDs are
	// time-ordered, so they double as pagination cursors.
	History(
		ctx context.Context,
		roomID string,
		cursor string,
		limit int,
		direction Direction,
	) (messages []domain.ChatMessage, nextCursor string, hasMore bool, err error)

	Close() error
}
