package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Redennison/CampusCollab/relay-service/internal/domain"
)

func newTestStore(t *testing.T) *GormMessageStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	s, err := NewGormMessageStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedMessages(t *testing.T, s *GormMessageStore, roomID string, n int) []domain.ChatMessage {
	t.Helper()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msgs := make([]domain.ChatMessage, n)
	for i := range msgs {
		msgs[i] = domain.ChatMessage{
			MessageID: fmt.Sprintf("018f0000-0000-7000-8000-%012d", i),
			RoomID:    roomID,
			UserID:    "alice",
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.Append(context.Background(), &msgs[i]); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}
	return msgs
}

func TestGormStore_AppendSetsSeq(t *testing.T) {
	s := newTestStore(t)

	msg := domain.ChatMessage{
		MessageID: "018f0000-0000-7000-8000-000000000001",
		RoomID:    "room-a",
		UserID:    "alice",
		Content:   "hello",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Append(context.Background(), &msg); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if msg.Seq == 0 {
		t.Error("append should assign a sequence number")
	}
}

func TestGormStore_HistoryForwardOrder(t *testing.T) {
	s := newTestStore(t)
	seeded := seedMessages(t, s, "room-a", 5)

	messages, nextCursor, hasMore, err := s.History(context.Background(), "room-a", "", 10, DirectionForward)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(messages))
	}
	if hasMore {
		t.Error("expected no more pages")
	}
	if nextCursor != "" {
		t.Errorf("expected empty cursor, got %q", nextCursor)
	}
	for i, m := range messages {
		if m.MessageID != seeded[i].MessageID {
			t.Fatalf("expected oldest-first order at %d: got %s", i, m.MessageID)
		}
	}
}

func TestGormStore_HistoryBackwardOrder(t *testing.T) {
	s := newTestStore(t)
	seeded := seedMessages(t, s, "room-a", 5)

	messages, _, _, err := s.History(context.Background(), "room-a", "", 10, DirectionBackward)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(messages))
	}
	for i, m := range messages {
		want := seeded[len(seeded)-1-i].MessageID
		if m.MessageID != want {
			t.Fatalf("expected newest-first order at %d: got %s want %s", i, m.MessageID, want)
		}
	}
}

func TestGormStore_HistoryPagination(t *testing.T) {
	s := newTestStore(t)
	seeded := seedMessages(t, s, "room-a", 7)

	var collected []domain.ChatMessage
	cursor := ""
	for {
		page, next, more, err := s.History(context.Background(), "room-a", cursor, 3, DirectionForward)
		if err != nil {
			t.Fatalf("history failed: %v", err)
		}
		collected = append(collected, page...)
		if !more {
			break
		}
		if next == "" {
			t.Fatal("hasMore set but cursor empty")
		}
		cursor = next
	}

	if len(collected) != len(seeded) {
		t.Fatalf("pagination lost messages: got %d want %d", len(collected), len(seeded))
	}
	for i := range collected {
		if collected[i].MessageID != seeded[i].MessageID {
			t.Fatalf("pagination reordered messages at %d", i)
		}
	}
}

func TestGormStore_HistoryIsolatesRooms(t *testing.T) {
	s := newTestStore(t)
	seedMessages(t, s, "room-a", 3)

	messages, _, _, err := s.History(context.Background(), "room-b", "", 10, DirectionForward)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("expected empty history for other room, got %d", len(messages))
	}
}

func TestGormStore_DuplicateMessageIDRejected(t *testing.T) {
	s := newTestStore(t)

	msg := domain.ChatMessage{
		MessageID: "018f0000-0000-7000-8000-000000000001",
		RoomID:    "room-a",
		UserID:    "alice",
		Content:   "hello",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Append(context.Background(), &msg); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	dup := msg
	dup.Seq = 0
	if err := s.Append(context.Background(), &dup); err == nil {
		t.Error("duplicate message id should be rejected by the unique index")
	}
}

func TestParseDirection(t *testing.T) {
	if ParseDirection("backward") != DirectionBackward {
		t.Error("backward should parse to DirectionBackward")
	}
	if ParseDirection("forward") != DirectionForward {
		t.Error("forward should parse to DirectionForward")
	}
	if ParseDirection("") != DirectionForward {
		t.Error("empty direction should default to forward")
	}
	if ParseDirection("sideways") != DirectionForward {
		t.Error("unknown direction should default to forward")
	}
}
