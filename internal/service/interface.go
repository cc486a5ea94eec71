package service

import (
	"context"

	"github.com/Redennison/CampusCollab/relay-service/internal/domain"
	"github.com/Redennison/CampusCollab/relay-service/internal/hub"
)

// RelayService orchestrates room membership and message fan-out for live
// connections.
type RelayService interface {
	HandleJoinRoom(ctx context.Context, client *hub.Client, roomID string) error
	HandleSendMessage(ctx context.Context, client *hub.Client, roomID, body string) error
	HandleLeaveRoom(ctx context.Context, client *hub.Client, roomID string) error
	HandleDisconnect(ctx context.Context, client *hub.Client) error
	Start(ctx context.Context) error
	Stop() error
}

// HistoryService serves the read path that populates a client's view when
// it first opens a room, before live broadcast takes over.
type HistoryService interface {
	GetHistory(ctx context.Context, roomID, cursor string, limit int, direction string) (*domain.HistoryPage, error)
}
