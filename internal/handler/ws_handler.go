package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Redennison/CampusCollab/relay-service/internal/audit"
	"github.com/Redennison/CampusCollab/relay-service/internal/auth"
	"github.com/Redennison/CampusCollab/relay-service/internal/config"
	"github.com/Redennison/CampusCollab/relay-service/internal/domain"
	"github.com/Redennison/CampusCollab/relay-service/internal/hub"
	"github.com/Redennison/CampusCollab/relay-service/internal/service"
	"github.com/Redennison/CampusCollab/relay-service/pkg/log"
	"github.com/Redennison/CampusCollab/relay-service/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub      *hub.Hub
	relay    service.RelayService
	verifier auth.TokenVerifier
	wsCfg    config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, relay service.RelayService, verifier auth.TokenVerifier, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:      h,
		relay:    relay,
		verifier: verifier,
		wsCfg:    wsCfg,
	}
}

// HandleWebSocket authenticates the credential and only then upgrades the
// connection; no message traffic is accepted from an unauthenticated peer.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	token := bearerToken(c)

	identity, err := h.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		audit.Log(c.Request.Context(), audit.ActionAuthFailed, "", "websocket auth failed")
		response.Unauthorized(c, "invalid credential")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), identity.UserID, h.hub, conn, h.wsCfg)

	h.hub.Register(client)
	audit.Log(c.Request.Context(), audit.ActionConnect, identity.UserID, "client connected")

	go client.WritePump()
	go client.ReadPump(h.handleMessage, func(closed *hub.Client) {
		// The upgrade request's context is gone by the time the
		// connection dies; disconnect cleanup gets its own.
		h.relay.HandleDisconnect(context.Background(), closed)
	})
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid message format"))
		return
	}

	ctx := log.WithLogger(context.Background(), log.L().With().
		Str(log.FieldSessionID, client.ID).
		Str(log.FieldUserID, client.Session.UserID).
		Logger())

	switch base.Type {
	case domain.MsgTypeJoinRoom:
		var msg domain.JoinRoomMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid join_room message"))
			return
		}
		if err := h.relay.HandleJoinRoom(ctx, client, msg.RoomID); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("join room failed")
		}

	case domain.MsgTypeSendMessage:
		var msg domain.SendMessageWS
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid send_message"))
			return
		}
		if err := h.relay.HandleSendMessage(ctx, client, msg.RoomID, msg.Message); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("send message failed")
		}

	case domain.MsgTypeLeaveRoom:
		var msg domain.LeaveRoomMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid leave_room message"))
			return
		}
		if err := h.relay.HandleLeaveRoom(ctx, client, msg.RoomID); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("leave room failed")
		}

	case domain.MsgTypePing:
		client.SendMessage(map[string]string{"type": domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown message type"))
	}
}

// bearerToken extracts the credential from the Authorization header or,
// for browser websocket clients that cannot set headers, the token query
// parameter.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}
