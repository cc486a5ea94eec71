package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Redennison/CampusCollab/relay-service/internal/domain"
)

// MessageModel is the relational row for one chat message.
// Message IDs are time-ordered (UUIDv7), so (room_id, message_id) gives the
// persisted order; the auto-increment primary key breaks any remaining ties.
type MessageModel struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement"`
	MessageID string    `gorm:"size:36;uniqueIndex;index:idx_room_message,priority:2"`
	RoomID    string    `gorm:"size:64;index:idx_room_message,priority:1"`
	UserID    string    `gorm:"size:64"`
	Content   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

func (MessageModel) TableName() string {
	return "messages"
}

func (m *MessageModel) toDomain() domain.ChatMessage {
	return domain.ChatMessage{
		MessageID: m.MessageID,
		RoomID:    m.RoomID,
		UserID:    m.UserID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Seq:       m.Seq,
	}
}

// GormMessageStore implements MessageStore on a relational database.
type GormMessageStore struct {
	db *gorm.DB
}

func NewGormMessageStore(db *gorm.DB) (*GormMessageStore, error) {
	if err := db.AutoMigrate(&MessageModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate messages table: %w", err)
	}
	return &GormMessageStore{db: db}, nil
}

func (s *GormMessageStore) Append(ctx context.Context, msg *domain.ChatMessage) error {
	model := MessageModel{
		MessageID: msg.MessageID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}

	if result := s.db.WithContext(ctx).Create(&model); result.Error != nil {
		return fmt.Errorf("failed to append message: %w", result.Error)
	}

	msg.Seq = model.Seq
	return nil
}

func (s *GormMessageStore) History(
	ctx context.Context,
	roomID string,
	cursor string,
	limit int,
	direction Direction,
) ([]domain.ChatMessage, string, bool, error) {
	// Query limit + 1 to determine if there are more results.
	queryLimit := limit + 1

	q := s.db.WithContext(ctx).Model(&MessageModel{}).Where("room_id = ?", roomID)

	if direction == DirectionBackward {
		if cursor != "" {
			q = q.Where("message_id < ?", cursor)
		}
		q = q.Order("message_id DESC")
	} else {
		if cursor != "" {
			q = q.Where("message_id > ?", cursor)
		}
		q = q.Order("message_id ASC")
	}

	var models []MessageModel
	if result := q.Limit(queryLimit).Find(&models); result.Error != nil {
		return nil, "", false, fmt.Errorf("failed to query history: %w", result.Error)
	}

	hasMore := len(models) > limit
	if hasMore {
		models = models[:limit]
	}

	messages := make([]domain.ChatMessage, 0, len(models))
	for i := range models {
		messages = append(messages, models[i].toDomain())
	}

	nextCursor := ""
	if hasMore && len(messages) > 0 {
		nextCursor = messages[len(messages)-1].MessageID
	}

	return messages, nextCursor, hasMore, nil
}

func (s *GormMessageStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
