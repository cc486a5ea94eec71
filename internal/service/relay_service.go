package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Redennison/CampusCollab/relay-service/internal/audit"
	"github.com/Redennison/CampusCollab/relay-service/internal/domain"
	"github.com/Redennison/CampusCollab/relay-service/internal/hub"
	"github.com/Redennison/CampusCollab/relay-service/internal/ratelimit"
	"github.com/Redennison/CampusCollab/relay-service/internal/registry"
	"github.com/Redennison/CampusCollab/relay-service/internal/store"
	"github.com/Redennison/CampusCollab/relay-service/internal/stream"
	"github.com/Redennison/CampusCollab/relay-service/pkg/log"
)

const (
	limiterCleanupInterval = time.Minute
	limiterMaxIdle         = 10 * time.Minute
)

// roomOrder serializes persist-and-broadcast for one room so concurrent
// senders are totally ordered. lastTS enforces monotonic timestamps.
type roomOrder struct {
	mu     sync.Mutex
	lastTS time.Time
}

type relayService struct {
	hub      *hub.Hub
	store    store.MessageStore
	limiter  *ratelimit.Limiter
	registry registry.Registry // optional
	exporter stream.Exporter   // optional
	now      func() time.Time

	roomsMu sync.Mutex
	rooms   map[string]*roomOrder

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewRelayService(
	h *hub.Hub,
	msgStore store.MessageStore,
	limiter *ratelimit.Limiter,
	reg registry.Registry,
	exporter stream.Exporter,
) RelayService {
	return &relayService{
		hub:      h,
		store:    msgStore,
		limiter:  limiter,
		registry: reg,
		exporter: exporter,
		now:      time.Now,
		rooms:    make(map[string]*roomOrder),
		stopCh:   make(chan struct{}),
	}
}

func (s *relayService) HandleJoinRoom(ctx context.Context, c *hub.Client, roomID string) error {
	if roomID == "" {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "room_id is required"))
	}

	// The client UI only chats in one room at a time; switching rooms
	// leaves the previous one. Stale membership would only cause extra
	// harmless broadcasts, so the leave is best-effort.
	for _, joined := range c.Session.Rooms() {
		if joined != roomID {
			s.leaveInternal(ctx, c, joined)
		}
	}

	s.hub.Join(c, roomID)
	c.Session.JoinRoom(roomID)

	if s.registry != nil {
		if err := s.registry.Register(ctx, roomID); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Str(log.FieldRoomID, roomID).Err(err).Msg("failed to register room in registry")
		}
	}

	audit.LogWithDetail(ctx, audit.ActionJoinRoom, c.Session.UserID, roomID, "joined room")

	return c.SendMessage(&domain.RoomJoinedMessage{
		Type:   domain.MsgTypeRoomJoined,
		RoomID: roomID,
	})
}

func (s *relayService) HandleSendMessage(ctx context.Context, c *hub.Client, roomID, body string) error {
	if roomID == "" || !c.Session.InRoom(roomID) {
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotInRoom, "not in room"))
	}

	// Empty sends only happen through client bugs; drop them silently.
	if strings.TrimSpace(body) == "" {
		l := log.Ctx(ctx)
		l.Debug().Str(log.FieldUserID, c.Session.UserID).Msg("dropped empty message body")
		return nil
	}

	// Admission runs strictly before persistence; a rejected message is
	// never stored or delivered, and only the sender hears about it.
	result := s.limiter.Admit(c.Session.UserID, s.now())
	if !result.Admitted {
		audit.Log(ctx, audit.ActionRateLimited, c.Session.UserID, "send rejected by rate limiter")
		return c.SendMessage(&domain.RateLimitedMessage{
			Type:              domain.MsgTypeRateLimited,
			RetryAfterSeconds: result.RetryAfter.Seconds(),
		})
	}

	msg, err := s.persistAndBroadcast(ctx, c, roomID, body)
	if err != nil {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeSendFailed, "failed to send message"))
		return err
	}

	audit.LogWithDetail(ctx, audit.ActionSendMessage, c.Session.UserID, roomID, "message sent")

	if s.exporter != nil {
		if err := s.exporter.Export(ctx, msg); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Str(log.FieldMessageID, msg.MessageID).Err(err).Msg("failed to export message")
		}
	}

	return nil
}

// persistAndBroadcast holds only the target room's ordering lock across the
// durable append and the broadcast enqueue, so hub delivery order equals
// persisted order. The hub and limiter locks are never held here.
func (s *relayService) persistAndBroadcast(ctx context.Context, c *hub.Client, roomID, body string) (*domain.ChatMessage, error) {
	ro := s.roomOrder(roomID)
	ro.mu.Lock()
	defer ro.mu.Unlock()

	ts := s.now()
	if !ts.After(ro.lastTS) {
		ts = ro.lastTS.Add(time.Microsecond)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	msg := &domain.ChatMessage{
		MessageID: id.String(),
		RoomID:    roomID,
		UserID:    c.Session.UserID,
		Content:   body,
		CreatedAt: ts,
	}

	if err := s.store.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}
	ro.lastTS = ts

	if err := s.hub.Broadcast(roomID, domain.NewReceiveMessage(msg)); err != nil {
		l := log.Ctx(ctx)
		l.Error().Str(log.FieldMessageID, msg.MessageID).Err(err).Msg("failed to broadcast message")
	}

	return msg, nil
}

func (s *relayService) roomOrder(roomID string) *roomOrder {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()

	ro, ok := s.rooms[roomID]
	if !ok {
		ro = &roomOrder{}
		s.rooms[roomID] = ro
	}
	return ro
}

func (s *relayService) HandleLeaveRoom(ctx context.Context, c *hub.Client, roomID string) error {
	if roomID != "" {
		s.leaveInternal(ctx, c, roomID)
		return nil
	}
	for _, joined := range c.Session.Rooms() {
		s.leaveInternal(ctx, c, joined)
	}
	return nil
}

// HandleDisconnect clears every room membership the session held.
// Disconnection is normal lifecycle, never an error.
func (s *relayService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	for _, joined := range c.Session.Rooms() {
		s.leaveInternal(ctx, c, joined)
	}
	audit.Log(ctx, audit.ActionDisconnect, c.Session.UserID, "client disconnected")
	return nil
}

func (s *relayService) leaveInternal(ctx context.Context, c *hub.Client, roomID string) {
	s.hub.Leave(c, roomID)
	c.Session.LeaveRoom(roomID)

	audit.LogWithDetail(ctx, audit.ActionLeaveRoom, c.Session.UserID, roomID, "left room")

	if s.registry != nil && s.hub.MemberCount(roomID) == 0 {
		if err := s.registry.Deregister(ctx, roomID); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Str(log.FieldRoomID, roomID).Err(err).Msg("failed to deregister room")
		}
	}
}

func (s *relayService) Start(ctx context.Context) error {
	if s.registry != nil {
		if err := s.registry.StartHeartbeat(ctx); err != nil {
			return fmt.Errorf("failed to start registry heartbeat: %w", err)
		}
	}

	go s.limiter.StartCleanup(limiterCleanupInterval, limiterMaxIdle, s.stopCh)

	l := log.L()
	l.Info().Msg("relay service started")
	return nil
}

func (s *relayService) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	if s.registry != nil {
		s.registry.StopHeartbeat()
	}
	if s.exporter != nil {
		if err := s.exporter.Close(); err != nil {
			l := log.L()
			l.Warn().Err(err).Msg("failed to close exporter")
		}
	}
	return nil
}
