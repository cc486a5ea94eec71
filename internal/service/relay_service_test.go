package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Redennison/CampusCollab/relay-service/internal/config"
	"github.com/Redennison/CampusCollab/relay-service/internal/domain"
	"github.com/Redennison/CampusCollab/relay-service/internal/hub"
	"github.com/Redennison/CampusCollab/relay-service/internal/ratelimit"
	"github.com/Redennison/CampusCollab/relay-service/internal/store"
)

type fakeStore struct {
	mu       sync.Mutex
	appended []*domain.ChatMessage
	failNext bool
}

func (f *fakeStore) Append(ctx context.Context, msg *domain.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("store unavailable")
	}
	cp := *msg
	f.appended = append(f.appended, &cp)
	return nil
}

func (f *fakeStore) History(ctx context.Context, roomID, cursor string, limit int, direction store.Direction) ([]domain.ChatMessage, string, bool, error) {
	return nil, "", false, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appended)
}

type fakeExporter struct {
	mu       sync.Mutex
	exported []*domain.ChatMessage
}

func (f *fakeExporter) Export(ctx context.Context, msg *domain.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exported = append(f.exported, msg)
	return nil
}

func (f *fakeExporter) Close() error { return nil }

func wsConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
	}
}

type relayFixture struct {
	hub     *hub.Hub
	store   *fakeStore
	svc     *relayService
	limiter *ratelimit.Limiter
}

func newRelayFixture(t *testing.T, policy ratelimit.Policy) *relayFixture {
	t.Helper()

	h := hub.NewHub(wsConfig())
	go h.Run()

	st := &fakeStore{}
	limiter := ratelimit.NewLimiter(policy)
	svc := NewRelayService(h, st, limiter, nil, nil).(*relayService)

	return &relayFixture{hub: h, store: st, svc: svc, limiter: limiter}
}

func (f *relayFixture) newClient(t *testing.T, connID, userID string) *hub.Client {
	t.Helper()
	c := hub.NewClient(connID, userID, f.hub, nil, wsConfig())
	f.hub.Register(c)
	return c
}

func recvWire(t *testing.T, c *hub.Client) map[string]interface{} {
	t.Helper()
	select {
	case data := <-c.Send:
		var payload map[string]interface{}
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatalf("failed to unmarshal payload: %v", err)
		}
		return payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func expectNoMessage(t *testing.T, c *hub.Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("expected no message, got %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRelay_JoinRoomAcks(t *testing.T) {
	f := newRelayFixture(t, ratelimit.DefaultPolicy())
	c := f.newClient(t, "conn-1", "alice")

	if err := f.svc.HandleJoinRoom(context.Background(), c, "room-a"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	ack := recvWire(t, c)
	if ack["type"] != domain.MsgTypeRoomJoined {
		t.Errorf("expected room_joined ack, got %v", ack["type"])
	}
	if ack["room_id"] != "room-a" {
		t.Errorf("expected room_id room-a, got %v", ack["room_id"])
	}
	if !c.Session.InRoom("room-a") {
		t.Error("session should record room membership")
	}
}

func TestRelay_JoinSwitchesRooms(t *testing.T) {
	f := newRelayFixture(t, ratelimit.DefaultPolicy())
	c := f.newClient(t, "conn-1", "alice")

	f.svc.HandleJoinRoom(context.Background(), c, "room-a")
	recvWire(t, c)
	f.svc.HandleJoinRoom(context.Background(), c, "room-b")
	recvWire(t, c)

	if c.Session.InRoom("room-a") {
		t.Error("joining a new room should leave the previous one")
	}
	if !c.Session.InRoom("room-b") {
		t.Error("session should be in the new room")
	}
	if got := f.hub.MemberCount("room-a"); got != 0 {
		t.Errorf("expected 0 members in old room, got %d", got)
	}
}

func TestRelay_SendDeliversToRoom(t *testing.T) {
	f := newRelayFixture(t, ratelimit.DefaultPolicy())
	sender := f.newClient(t, "conn-1", "alice")
	receiver := f.newClient(t, "conn-2", "bob")

	f.svc.HandleJoinRoom(context.Background(), sender, "room-a")
	recvWire(t, sender)
	f.svc.HandleJoinRoom(context.Background(), receiver, "room-a")
	recvWire(t, receiver)

	if err := f.svc.HandleSendMessage(context.Background(), sender, "room-a", "hello"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	for _, c := range []*hub.Client{sender, receiver} {
		msg := recvWire(t, c)
		if msg["type"] != domain.MsgTypeReceiveMessage {
			t.Fatalf("expected receive_message, got %v", msg["type"])
		}
		if msg["message"] != "hello" {
			t.Errorf("unexpected body: %v", msg["message"])
		}
		if msg["from"] != "alice" {
			t.Errorf("sender identity must come from the session, got %v", msg["from"])
		}
		if msg["message_id"] == "" {
			t.Error("expected a message id")
		}
	}

	if f.store.count() != 1 {
		t.Errorf("expected 1 persisted message, got %d", f.store.count())
	}
}

func TestRelay_SendWithoutJoinRejected(t *testing.T) {
	f := newRelayFixture(t, ratelimit.DefaultPolicy())
	c := f.newClient(t, "conn-1", "alice")

	f.svc.HandleSendMessage(context.Background(), c, "room-a", "hello")

	msg := recvWire(t, c)
	if msg["type"] != domain.MsgTypeError {
		t.Fatalf("expected error, got %v", msg["type"])
	}
	if msg["code"] != domain.ErrCodeNotInRoom {
		t.Errorf("expected NOT_IN_ROOM, got %v", msg["code"])
	}
	if f.store.count() != 0 {
		t.Error("rejected message must not be persisted")
	}
}

func TestRelay_EmptyBodyDroppedSilently(t *testing.T) {
	f := newRelayFixture(t, ratelimit.DefaultPolicy())
	c := f.newClient(t, "conn-1", "alice")

	f.svc.HandleJoinRoom(context.Background(), c, "room-a")
	recvWire(t, c)

	if err := f.svc.HandleSendMessage(context.Background(), c, "room-a", "   "); err != nil {
		t.Fatalf("empty send should not error: %v", err)
	}

	expectNoMessage(t, c)
	if f.store.count() != 0 {
		t.Error("empty message must not be persisted")
	}
}

func TestRelay_StoreFailureNoGhostDelivery(t *testing.T) {
	f := newRelayFixture(t, ratelimit.DefaultPolicy())
	sender := f.newClient(t, "conn-1", "alice")
	receiver := f.newClient(t, "conn-2", "bob")

	f.svc.HandleJoinRoom(context.Background(), sender, "room-a")
	recvWire(t, sender)
	f.svc.HandleJoinRoom(context.Background(), receiver, "room-a")
	recvWire(t, receiver)

	f.store.failNext = true
	err := f.svc.HandleSendMessage(context.Background(), sender, "room-a", "hello")
	if err == nil {
		t.Fatal("expected error when persist fails")
	}

	msg := recvWire(t, sender)
	if msg["code"] != domain.ErrCodeSendFailed {
		t.Errorf("expected SEND_FAILED to sender, got %v", msg["code"])
	}

	// A message that was never persisted must never reach other members.
	expectNoMessage(t, receiver)
}

func TestRelay_RateLimitedOnlySender(t *testing.T) {
	policy := ratelimit.Policy{MaxMessages: 1, Window: 10 * time.Second, Cooldown: 30 * time.Second}
	f := newRelayFixture(t, policy)
	sender := f.newClient(t, "conn-1", "alice")
	receiver := f.newClient(t, "conn-2", "bob")

	f.svc.HandleJoinRoom(context.Background(), sender, "room-a")
	recvWire(t, sender)
	f.svc.HandleJoinRoom(context.Background(), receiver, "room-a")
	recvWire(t, receiver)

	f.svc.HandleSendMessage(context.Background(), sender, "room-a", "first")
	recvWire(t, sender)
	recvWire(t, receiver)

	f.svc.HandleSendMessage(context.Background(), sender, "room-a", "second")

	msg := recvWire(t, sender)
	if msg["type"] != domain.MsgTypeRateLimited {
		t.Fatalf("expected rate_limited, got %v", msg["type"])
	}
	if msg["retry_after_seconds"].(float64) != 30 {
		t.Errorf("expected retry_after_seconds 30, got %v", msg["retry_after_seconds"])
	}

	expectNoMessage(t, receiver)
	if f.store.count() != 1 {
		t.Errorf("throttled message must not be persisted, store has %d", f.store.count())
	}
}

func TestRelay_BurstThenCooldownThenRecovery(t *testing.T) {
	policy := ratelimit.Policy{MaxMessages: 5, Window: 10 * time.Second, Cooldown: 30 * time.Second}
	f := newRelayFixture(t, policy)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	var clockMu sync.Mutex
	f.svc.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return clock
	}
	setClock := func(t time.Time) {
		clockMu.Lock()
		clock = t
		clockMu.Unlock()
	}

	c := f.newClient(t, "conn-1", "alice")
	f.svc.HandleJoinRoom(context.Background(), c, "room-a")
	recvWire(t, c)

	// Five rapid sends all go through.
	for i := 0; i < 5; i++ {
		setClock(base.Add(time.Duration(i) * 100 * time.Millisecond))
		f.svc.HandleSendMessage(context.Background(), c, "room-a", "msg")
		msg := recvWire(t, c)
		if msg["type"] != domain.MsgTypeReceiveMessage {
			t.Fatalf("send %d should be delivered, got %v", i+1, msg["type"])
		}
	}

	// Sixth send trips the cooldown.
	setClock(base.Add(500 * time.Millisecond))
	f.svc.HandleSendMessage(context.Background(), c, "room-a", "msg")
	msg := recvWire(t, c)
	if msg["type"] != domain.MsgTypeRateLimited {
		t.Fatalf("sixth send should be throttled, got %v", msg["type"])
	}

	// Still throttled mid-cooldown, with a smaller retry hint.
	setClock(base.Add(15 * time.Second))
	f.svc.HandleSendMessage(context.Background(), c, "room-a", "msg")
	msg = recvWire(t, c)
	if msg["type"] != domain.MsgTypeRateLimited {
		t.Fatalf("mid-cooldown send should be throttled, got %v", msg["type"])
	}
	if msg["retry_after_seconds"].(float64) > 16 {
		t.Errorf("retry hint should shrink, got %v", msg["retry_after_seconds"])
	}

	// After the cooldown the sender starts fresh.
	setClock(base.Add(31 * time.Second))
	f.svc.HandleSendMessage(context.Background(), c, "room-a", "msg")
	msg = recvWire(t, c)
	if msg["type"] != domain.MsgTypeReceiveMessage {
		t.Fatalf("post-cooldown send should be delivered, got %v", msg["type"])
	}

	if f.store.count() != 6 {
		t.Errorf("expected 6 persisted messages, got %d", f.store.count())
	}
}

func TestRelay_PersistOrderMatchesDeliveryOrder(t *testing.T) {
	policy := ratelimit.Policy{MaxMessages: 1000, Window: 10 * time.Second, Cooldown: time.Second}
	f := newRelayFixture(t, policy)
	c := f.newClient(t, "conn-1", "alice")

	f.svc.HandleJoinRoom(context.Background(), c, "room-a")
	recvWire(t, c)

	const n = 20
	for i := 0; i < n; i++ {
		if err := f.svc.HandleSendMessage(context.Background(), c, "room-a", "msg"); err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
	}

	var deliveredIDs []string
	for i := 0; i < n; i++ {
		msg := recvWire(t, c)
		deliveredIDs = append(deliveredIDs, msg["message_id"].(string))
	}

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if len(f.store.appended) != n {
		t.Fatalf("expected %d persisted, got %d", n, len(f.store.appended))
	}
	for i, stored := range f.store.appended {
		if stored.MessageID != deliveredIDs[i] {
			t.Fatalf("delivery order diverged from persist order at %d", i)
		}
		if i > 0 && !stored.CreatedAt.After(f.store.appended[i-1].CreatedAt) {
			t.Fatalf("timestamps must be strictly increasing at %d", i)
		}
	}
}

func TestRelay_DisconnectClearsMemberships(t *testing.T) {
	f := newRelayFixture(t, ratelimit.DefaultPolicy())
	c := f.newClient(t, "conn-1", "alice")

	f.svc.HandleJoinRoom(context.Background(), c, "room-a")
	recvWire(t, c)

	if err := f.svc.HandleDisconnect(context.Background(), c); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}

	if len(c.Session.Rooms()) != 0 {
		t.Error("disconnect should clear all session rooms")
	}
	if got := f.hub.MemberCount("room-a"); got != 0 {
		t.Errorf("expected 0 members after disconnect, got %d", got)
	}
}

func TestRelay_LeaveRoomWithoutIDLeavesAll(t *testing.T) {
	f := newRelayFixture(t, ratelimit.DefaultPolicy())
	c := f.newClient(t, "conn-1", "alice")

	f.svc.HandleJoinRoom(context.Background(), c, "room-a")
	recvWire(t, c)

	if err := f.svc.HandleLeaveRoom(context.Background(), c, ""); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if c.Session.InRoom("room-a") {
		t.Error("leave without room id should leave every joined room")
	}
}

func TestRelay_ExportAfterPersist(t *testing.T) {
	h := hub.NewHub(wsConfig())
	go h.Run()
	st := &fakeStore{}
	exp := &fakeExporter{}
	svc := NewRelayService(h, st, ratelimit.NewLimiter(ratelimit.DefaultPolicy()), nil, exp).(*relayService)

	c := hub.NewClient("conn-1", "alice", h, nil, wsConfig())
	h.Register(c)

	svc.HandleJoinRoom(context.Background(), c, "room-a")
	recvWire(t, c)

	if err := svc.HandleSendMessage(context.Background(), c, "room-a", "hello"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	exp.mu.Lock()
	defer exp.mu.Unlock()
	if len(exp.exported) != 1 {
		t.Fatalf("expected 1 exported message, got %d", len(exp.exported))
	}
	if exp.exported[0].Content != "hello" {
		t.Errorf("unexpected exported content: %q", exp.exported[0].Content)
	}
}
