package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/Redennison/CampusCollab/relay-service/internal/domain"
)

// CassandraConfig holds Cassandra cluster configuration.
type CassandraConfig struct {
	Hosts           []string      `mapstructure:"hosts"`
	Keyspace        string        `mapstructure:"keyspace"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Consistency     string        `mapstructure:"consistency"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	Timeout         time.Duration `mapstructure:"timeout"`
	NumConns        int           `mapstructure:"num_conns"`
	MaxPreparedStmt int           `mapstructure:"max_prepared_stmt"`
}

// CassandraMessageStore implements MessageStore on the messages_by_room
// table, clustered by message_id so pages come back in persisted order.
type CassandraMessageStore struct {
	session *gocql.Session
}

func NewCassandraMessageStore(cfg CassandraConfig) (*CassandraMessageStore, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = parseConsistency(cfg.Consistency)
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.Timeout = cfg.Timeout
	if cfg.NumConns > 0 {
		cluster.NumConns = cfg.NumConns
	}
	if cfg.MaxPreparedStmt > 0 {
		cluster.MaxPreparedStmts = cfg.MaxPreparedStmt
	}

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}

	return &CassandraMessageStore{session: session}, nil
}

func (s *CassandraMessageStore) Append(ctx context.Context, msg *domain.ChatMessage) error {
	query := `
		INSERT INTO messages_by_room (
			room_id, message_id, user_id, content, created_at
		) VALUES (?, ?, ?, ?, ?)`

	err := s.session.Query(query,
		msg.RoomID,
		msg.MessageID,
		msg.UserID,
		msg.Content,
		msg.CreatedAt,
	).WithContext(ctx).Exec()

	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	return nil
}

func (s *CassandraMessageStore) History(
	ctx context.Context,
	roomID string,
	cursor string,
	limit int,
	direction Direction,
) ([]domain.ChatMessage, string, bool, error) {
	queryLimit := limit + 1

	var query string
	var args []interface{}

	if direction == DirectionBackward {
		if cursor == "" {
			query = `SELECT message_id, user_id, room_id, content, created_at
					 FROM messages_by_room
					 WHERE room_id = ?
					 ORDER BY message_id DESC
					 LIMIT ?`
			args = []interface{}{roomID, queryLimit}
		} else {
			query = `SELECT message_id, user_id, room_id, content, created_at
					 FROM messages_by_room
					 WHERE room_id = ? AND message_id < ?
					 ORDER BY message_id DESC
					 LIMIT ?`
			args = []interface{}{roomID, cursor, queryLimit}
		}
	} else {
		if cursor == "" {
			query = `SELECT message_id, user_id, room_id, content, created_at
					 FROM messages_by_room
					 WHERE room_id = ?
					 ORDER BY message_id ASC
					 LIMIT ?`
			args = []interface{}{roomID, queryLimit}
		} else {
			query = `SELECT message_id, user_id, room_id, content, created_at
					 FROM messages_by_room
					 WHERE room_id = ? AND message_id > ?
					 ORDER BY message_id ASC
					 LIMIT ?`
			args = []interface{}{roomID, cursor, queryLimit}
		}
	}

	iter := s.session.Query(query, args...).WithContext(ctx).Iter()

	var messages []domain.ChatMessage
	var msg domain.ChatMessage
	for iter.Scan(&msg.MessageID, &msg.UserID, &msg.RoomID, &msg.Content, &msg.CreatedAt) {
		messages = append(messages, msg)
	}
	if err := iter.Close(); err != nil {
		return nil, "", false, fmt.Errorf("failed to query history: %w", err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}

	nextCursor := ""
	if hasMore && len(messages) > 0 {
		nextCursor = messages[len(messages)-1].MessageID
	}

	return messages, nextCursor, hasMore, nil
}

func (s *CassandraMessageStore) Close() error {
	if s.session != nil {
		s.session.Close()
	}
	return nil
}

func parseConsistency(s string) gocql.Consistency {
	switch strings.ToUpper(s) {
	case "ANY":
		return gocql.Any
	case "ONE":
		return gocql.One
	case "TWO":
		return gocql.Two
	case "THREE":
		return gocql.Three
	case "QUORUM":
		return gocql.Quorum
	case "ALL":
		return gocql.All
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "EACH_QUORUM":
		return gocql.EachQuorum
	case "LOCAL_ONE":
		return gocql.LocalOne
	default:
		return gocql.LocalQuorum
	}
}
