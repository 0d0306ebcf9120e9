package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/yourorg/chat-backend/internal/errs"
	"github.com/yourorg/chat-backend/internal/models"
	"github.com/yourorg/chat-backend/internal/service"
	"github.com/yourorg/chat-backend/internal/ws"
)

// ChatHandler serves the synchronous request surface. It reuses the same
// conversation service as the realtime gateway and pushes the resulting
// events through the hub so connected clients stay in sync.
type ChatHandler struct {
	svc *service.ChatService
	hub *ws.Hub
	log *zap.SugaredLogger
}

func NewChatHandler(svc *service.ChatService, hub *ws.Hub, log *zap.SugaredLogger) *ChatHandler {
	return &ChatHandler{svc: svc, hub: hub, log: log}
}

func (h *ChatHandler) ListChats(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	chats, err := h.svc.GetConversationsForUser(c.Context(), userID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(chats)
}

func (h *ChatHandler) CreateChat(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	var req models.CreateChatRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, h.log, errs.ErrValidation)
	}
	if err := req.Validate(); err != nil {
		return respondError(c, h.log, err)
	}
	participants := make([]primitive.ObjectID, 0, len(req.Participants))
	for _, p := range req.Participants {
		id, err := primitive.ObjectIDFromHex(p)
		if err != nil {
			return respondError(c, h.log, errs.ErrValidation)
		}
		participants = append(participants, id)
	}

	res, err := h.svc.CreateConversationWithNotification(c.Context(), userID, participants, req.Kind, req.Name)
	if err != nil {
		return respondError(c, h.log, err)
	}
	h.hub.Emit(res.Events)
	return c.Status(fiber.StatusCreated).JSON(res.Chat)
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	chatID, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return respondError(c, h.log, errs.ErrValidation)
	}
	msgs, err := h.svc.GetMessagesForChat(c.Context(), chatID, userID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(msgs)
}

func (h *ChatHandler) StartChatByEmail(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	email, _ := c.Locals(localUserEmail).(string)

	var payload models.StartChatByEmailPayload
	if err := c.BodyParser(&payload); err != nil {
		return respondError(c, h.log, errs.ErrValidation)
	}
	if err := payload.Validate(); err != nil {
		return respondError(c, h.log, err)
	}

	res, err := h.svc.StartChatByEmail(c.Context(), userID, email, payload.RecipientEmail, payload.InitialMessage)
	if err != nil {
		return respondError(c, h.log, err)
	}
	h.hub.Emit(res.Events)
	return c.JSON(fiber.Map{"success": true, "chat": res.Chat})
}

func callerID(c *fiber.Ctx) (primitive.ObjectID, error) {
	raw, _ := c.Locals(localUserID).(string)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, errs.ErrUnauthorized
	}
	return id, nil
}

// respondError maps the error taxonomy onto HTTP statuses. Unknown
// errors are logged and answered with a generic 500.
func respondError(c *fiber.Ctx, log *zap.SugaredLogger, err error) error {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	case errors.Is(err, errs.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	case errors.Is(err, errs.ErrNotParticipant):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not a participant"})
	case errors.Is(err, errs.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	default:
		log.Errorw("request failed", "path", c.Path(), "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
