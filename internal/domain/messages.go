package domain

import "time"

// WebSocket message types from client.
const (
	MsgTypeJoinRoom    = "join_room"
	MsgTypeSendMessage = "send_message"
	MsgTypeLeaveRoom   = "leave_room"
	MsgTypePing        = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeRoomJoined     = "room_joined"
	MsgTypeReceiveMessage = "receive_message"
	MsgTypeRateLimited    = "rate_limited"
	MsgTypeError          = "error"
	MsgTypePong           = "pong"
)

// Error codes
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeNotInRoom     = "NOT_IN_ROOM"
	ErrCodeSendFailed    = "SEND_FAILED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type JoinRoomMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type SendMessageWS struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
}

type LeaveRoomMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id,omitempty"`
}

// Server -> Client messages

type RoomJoinedMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// ReceiveMessage is the broadcast form of a persisted chat message.
// The sender identity always comes from the authenticated session, never
// from a client-supplied field.
type ReceiveMessage struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	RoomID    string `json:"room_id"`
	Message   string `json:"message"`
	From      string `json:"from"`
	Timestamp int64  `json:"timestamp"`
}

// RateLimitedMessage is delivered only to the throttled sender.
type RateLimitedMessage struct {
	Type              string  `json:"type"`
	RetryAfterSeconds float64 `json:"retry_after_seconds"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}

// NewReceiveMessage converts a persisted chat message into its wire form.
func NewReceiveMessage(msg *ChatMessage) *ReceiveMessage {
	return &ReceiveMessage{
		Type:      MsgTypeReceiveMessage,
		MessageID: msg.MessageID,
		RoomID:    msg.RoomID,
		Message:   msg.Content,
		From:      msg.UserID,
		Timestamp: msg.CreatedAt.UnixMilli(),
	}
}

// ChatMessage is one durably persisted chat message. Immutable once stored.
type ChatMessage struct {
	MessageID string    `json:"message_id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Seq       uint64    `json:"-"`
}
