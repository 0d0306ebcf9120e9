package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/yourorg/chat-backend/internal/auth"
	"github.com/yourorg/chat-backend/internal/errs"
	"github.com/yourorg/chat-backend/internal/event"
	"github.com/yourorg/chat-backend/internal/metrics"
	"github.com/yourorg/chat-backend/internal/models"
	"github.com/yourorg/chat-backend/internal/service"
)

// Stable, client-facing error strings. Internal diagnostics never cross
// this boundary.
const (
	MsgNotInChat    = "You are not a participant in this chat"
	MsgChatListFail = "Failed to get chat list"
	MsgJoinFail     = "Failed to join chat"
	MsgSendFail     = "Failed to send message"
	MsgStartFail    = "Failed to start chat"
	MsgUserNotFound = "User with this email does not exist"
	MsgSelfChat     = "Cannot start a chat with yourself"
	MsgChatNotExist = "Chat does not exist"
	MsgInvalidInput = "Invalid request payload"
)

type errorPayload struct {
	Message string `json:"message"`
}

// Gateway authenticates new connections and dispatches inbound events.
// A connection is Connecting until the credential verifies, then
// Authenticated until it drops; every operation below requires the
// authenticated state.
type Gateway struct {
	hub      *Hub
	svc      *service.ChatService
	verifier auth.Verifier
	timeout  time.Duration
	log      *zap.SugaredLogger
}

func NewGateway(hub *Hub, svc *service.ChatService, verifier auth.Verifier, timeout time.Duration, log *zap.SugaredLogger) *Gateway {
	return &Gateway{hub: hub, svc: svc, verifier: verifier, timeout: timeout, log: log}
}

// Handle runs one connection to completion. Missing or invalid
// credentials terminate the connection before any state is created.
func (g *Gateway) Handle(conn *websocket.Conn) {
	token := bearerToken(conn)
	if token == "" {
		g.log.Warnw("connection rejected: no token")
		_ = conn.Close()
		return
	}
	identity, err := g.verifier.Verify(token)
	if err != nil {
		g.log.Warnw("connection rejected: invalid token", "err", err)
		_ = conn.Close()
		return
	}
	if _, err := primitive.ObjectIDFromHex(identity.ID); err != nil {
		g.log.Warnw("connection rejected: malformed subject", "err", err)
		_ = conn.Close()
		return
	}

	client := NewClient(conn, identity.ID, identity.Email)
	g.hub.Join(UserRoom(client.UserID), client)
	go client.writePump()

	metrics.Connections.Inc()
	g.log.Infow("user connected", "user", client.UserID, "conn", client.ID)
	defer func() {
		g.hub.Remove(client)
		close(client.send)
		metrics.Connections.Dec()
		g.log.Infow("user disconnected", "user", client.UserID, "conn", client.ID)
	}()

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// malformed frames are dropped, not fatal
			continue
		}
		g.Dispatch(client, env)
	}
}

// Dispatch routes one inbound envelope to its handler.
func (g *Gateway) Dispatch(c *Client, env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	switch env.Event {
	case event.GetChatList:
		g.handleGetChatList(ctx, c)
	case event.JoinChat:
		g.handleJoinChat(ctx, c, env.Data)
	case event.LeaveChat:
		g.handleLeaveChat(c, env.Data)
	case event.SendMessage:
		g.handleSendMessage(ctx, c, env.Data)
	case event.StartChatByEmail:
		g.handleStartChatByEmail(ctx, c, env.Data)
	default:
		c.Emit(event.Error, errorPayload{Message: MsgInvalidInput})
	}
}

func (g *Gateway) handleGetChatList(ctx context.Context, c *Client) {
	userID, _ := primitive.ObjectIDFromHex(c.UserID)
	chats, err := g.svc.GetConversationsForUser(ctx, userID)
	if err != nil {
		g.log.Errorw("get chat list failed", "user", c.UserID, "err", err)
		c.Emit(event.Error, errorPayload{Message: MsgChatListFail})
		return
	}
	c.Emit(event.ChatListInitial, chats)
}

func (g *Gateway) handleJoinChat(ctx context.Context, c *Client, data json.RawMessage) {
	var payload models.JoinChatPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Validate() != nil {
		c.Emit(event.Error, errorPayload{Message: MsgInvalidInput})
		return
	}
	chatID, _ := primitive.ObjectIDFromHex(payload.ChatID)
	userID, _ := primitive.ObjectIDFromHex(c.UserID)

	ok, err := g.svc.IsParticipant(ctx, chatID, userID)
	if err != nil {
		g.log.Errorw("join membership check failed", "chat", payload.ChatID, "err", err)
		c.Emit(event.Error, errorPayload{Message: MsgJoinFail})
		return
	}
	if !ok {
		c.Emit(event.Error, errorPayload{Message: MsgNotInChat})
		return
	}

	g.hub.Join(payload.ChatID, c)
	if err := g.svc.MarkSeen(ctx, chatID, userID); err != nil {
		g.log.Errorw("mark seen on join failed", "chat", payload.ChatID, "err", err)
		c.Emit(event.Error, errorPayload{Message: MsgJoinFail})
		return
	}
	c.Emit(event.ChatJoined, map[string]string{"chatId": payload.ChatID})
}

// handleLeaveChat is best-effort cleanup and never produces a fatal
// error.
func (g *Gateway) handleLeaveChat(c *Client, data json.RawMessage) {
	var payload models.LeaveChatPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ChatID == "" {
		g.log.Warnw("leave with malformed payload", "user", c.UserID)
		return
	}
	g.hub.Leave(payload.ChatID, c)
	c.Emit(event.ChatLeft, map[string]string{"chatId": payload.ChatID})
}

func (g *Gateway) handleSendMessage(ctx context.Context, c *Client, data json.RawMessage) {
	var payload models.SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Validate() != nil {
		c.Emit(event.Error, errorPayload{Message: MsgInvalidInput})
		return
	}
	chatID, _ := primitive.ObjectIDFromHex(payload.ChatID)
	senderID, _ := primitive.ObjectIDFromHex(c.UserID)

	res, err := g.svc.SendMessage(ctx, chatID, senderID, c.Email, payload.Content)
	if err != nil {
		c.Emit(event.Error, errorPayload{Message: sendErrorMessage(err)})
		if !clientFault(err) {
			g.log.Errorw("send message failed", "chat", payload.ChatID, "err", err)
		}
		return
	}
	g.hub.Emit(res.Events)
}

func (g *Gateway) handleStartChatByEmail(ctx context.Context, c *Client, data json.RawMessage) {
	var payload models.StartChatByEmailPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Validate() != nil {
		c.Emit(event.Error, errorPayload{Message: MsgInvalidInput})
		return
	}
	userID, _ := primitive.ObjectIDFromHex(c.UserID)

	res, err := g.svc.StartChatByEmail(ctx, userID, c.Email, payload.RecipientEmail, payload.InitialMessage)
	if err != nil {
		c.Emit(event.Error, errorPayload{Message: startErrorMessage(err)})
		if !clientFault(err) {
			g.log.Errorw("start chat by email failed", "user", c.UserID, "err", err)
		}
		return
	}
	g.hub.Emit(res.Events)
}

func sendErrorMessage(err error) string {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return MsgChatNotExist
	case errors.Is(err, errs.ErrNotParticipant):
		return MsgNotInChat
	case errors.Is(err, errs.ErrValidation):
		return MsgInvalidInput
	default:
		return MsgSendFail
	}
}

func startErrorMessage(err error) string {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return MsgUserNotFound
	case errors.Is(err, errs.ErrValidation):
		return MsgSelfChat
	default:
		return MsgStartFail
	}
}

func clientFault(err error) bool {
	return errors.Is(err, errs.ErrValidation) ||
		errors.Is(err, errs.ErrNotFound) ||
		errors.Is(err, errs.ErrNotParticipant)
}

func bearerToken(conn *websocket.Conn) string {
	if t := conn.Query("token"); t != "" {
		return t
	}
	h := conn.Headers("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
