package audit

import (
	"context"

	"github.com/Redennison/CampusCollab/relay-service/pkg/log"
)

// Audit actions for the relay.
const (
	ActionConnect     = "relay.connect"
	ActionAuthFailed  = "relay.auth_failed"
	ActionJoinRoom    = "relay.join_room"
	ActionLeaveRoom   = "relay.leave_room"
	ActionSendMessage = "relay.send_message"
	ActionRateLimited = "relay.rate_limited"
	ActionDisconnect  = "relay.disconnect"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
