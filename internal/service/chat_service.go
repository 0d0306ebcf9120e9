package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/yourorg/chat-backend/internal/cache"
	"github.com/yourorg/chat-backend/internal/errs"
	"github.com/yourorg/chat-backend/internal/event"
	"github.com/yourorg/chat-backend/internal/kafka"
	"github.com/yourorg/chat-backend/internal/metrics"
	"github.com/yourorg/chat-backend/internal/models"
	"github.com/yourorg/chat-backend/internal/repository"
)

// ChatService orchestrates the conversation store and the read-model
// cache. It never touches the transport: methods that cause fan-out
// return the events to emit, and the gateway performs the actual writes.
type ChatService struct {
	convs     repository.ConversationRepository
	msgs      repository.MessageRepository
	users     repository.UserRepository
	cache     *cache.Store
	assembler *Assembler
	producer  *kafka.Producer
	log       *zap.SugaredLogger
}

func NewChatService(
	convs repository.ConversationRepository,
	msgs repository.MessageRepository,
	users repository.UserRepository,
	cacheStore *cache.Store,
	producer *kafka.Producer,
	log *zap.SugaredLogger,
) *ChatService {
	return &ChatService{
		convs:     convs,
		msgs:      msgs,
		users:     users,
		cache:     cacheStore,
		assembler: NewAssembler(users, msgs),
		producer:  producer,
		log:       log,
	}
}

type SendResult struct {
	Message models.Message
	Events  []event.Event
}

type ChatResult struct {
	Chat   models.ChatView
	Events []event.Event
}

// CreateConversation validates shape and membership and persists a new record,
// returning its id. A private conversation needs exactly two distinct
// participants; a losing racer on the private-pair unique index gets the
// already-existing conversation's id instead of a conflict.
func (s *ChatService) CreateConversation(ctx context.Context, participants []primitive.ObjectID, kind models.ConversationKind, name string) (primitive.ObjectID, error) {
	participants = dedupe(participants)
	if len(participants) == 0 {
		return primitive.NilObjectID, fmt.Errorf("%w: participants required", errs.ErrValidation)
	}

	switch kind {
	case models.KindPrivate:
		if len(participants) != 2 {
			return primitive.NilObjectID, fmt.Errorf("%w: private conversation needs exactly 2 distinct participants", errs.ErrValidation)
		}
	case models.KindGroup:
		name = strings.TrimSpace(name)
		if name == "" || len([]rune(name)) > models.MaxNameLen {
			return primitive.NilObjectID, fmt.Errorf("%w: group name must be 1-%d characters", errs.ErrValidation, models.MaxNameLen)
		}
	default:
		return primitive.NilObjectID, fmt.Errorf("%w: unknown conversation kind %q", errs.ErrValidation, kind)
	}

	conv := &models.Conversation{
		Kind:         kind,
		Participants: participants,
		Name:         name,
	}
	if kind != models.KindGroup {
		conv.Name = ""
	}

	id, err := s.convs.Insert(ctx, conv)
	if errors.Is(err, errs.ErrConflict) && kind == models.KindPrivate {
		existing, ferr := s.convs.FindPrivateByPair(ctx, participants[0], participants[1])
		if ferr != nil {
			return primitive.NilObjectID, ferr
		}
		return existing.ID, nil
	}
	if err != nil {
		return primitive.NilObjectID, err
	}
	return id, nil
}

// GetConversationsForUser returns the assembled chat list, newest
// activity first, served cache-through.
func (s *ChatService) GetConversationsForUser(ctx context.Context, userID primitive.ObjectID) ([]models.ChatView, error) {
	key := cache.ConversationListKey(userID.Hex())
	return cache.GetOrLoad(ctx, s.cache, key, func(ctx context.Context) ([]models.ChatView, error) {
		convs, err := s.convs.ListForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		return s.assembler.AssembleMany(ctx, convs)
	})
}

func (s *ChatService) GetConversationByID(ctx context.Context, chatID primitive.ObjectID) (models.ChatView, error) {
	key := cache.ConversationKey(chatID.Hex())
	return cache.GetOrLoad(ctx, s.cache, key, func(ctx context.Context) (models.ChatView, error) {
		conv, err := s.convs.FindByID(ctx, chatID)
		if err != nil {
			return models.ChatView{}, err
		}
		return s.assembler.AssembleOne(ctx, conv)
	})
}

// SendMessage persists a message, advances the conversation's last
// message, drops the affected cache entries and returns the fan-out
// events: the full message to the room, a lightweight update to every
// other participant's personal channel. Participant membership is the
// single authoritative gate; room join state is irrelevant here.
func (s *ChatService) SendMessage(ctx context.Context, chatID, senderID primitive.ObjectID, senderEmail, content string) (SendResult, error) {
	content, err := models.NormalizeContent(content)
	if err != nil {
		return SendResult{}, err
	}

	conv, err := s.convs.FindByID(ctx, chatID)
	if err != nil {
		return SendResult{}, err
	}
	if !conv.HasParticipant(senderID) {
		return SendResult{}, fmt.Errorf("%w: sender %s", errs.ErrNotParticipant, senderID.Hex())
	}

	msg := &models.Message{
		ChatID:   chatID,
		SenderID: senderID,
		Content:  content,
		SeenBy:   []primitive.ObjectID{senderID},
	}
	if _, err := s.msgs.Insert(ctx, msg); err != nil {
		return SendResult{}, err
	}
	if err := s.convs.SetLastMessage(ctx, chatID, msg.ID, msg.CreatedAt); err != nil {
		return SendResult{}, err
	}

	// membership is re-read after the write so a concurrently added
	// participant's list entry is not left stale
	participants, err := s.convs.Participants(ctx, chatID)
	if err != nil {
		return SendResult{}, err
	}
	s.invalidateChat(ctx, chatID, participants)

	events := []event.Event{
		event.ToRoom(chatID.Hex(), event.Message, outgoingMessage(msg, senderEmail)),
	}
	update := chatUpdate(msg, senderEmail)
	for _, p := range participants {
		if p != senderID {
			events = append(events, event.ToUser(p.Hex(), event.ChatUpdated, update))
		}
	}

	if err := s.producer.PublishMessageSent(ctx, msg); err != nil {
		s.log.Warnw("message audit publish failed", "chat", chatID.Hex(), "err", err)
	}
	metrics.MessagesSent.Inc()

	return SendResult{Message: *msg, Events: events}, nil
}

// MarkSeen records that userID has seen every message in the chat.
// Idempotent; non-participants are rejected without any mutation.
func (s *ChatService) MarkSeen(ctx context.Context, chatID, userID primitive.ObjectID) error {
	participants, err := s.convs.Participants(ctx, chatID)
	if err != nil {
		return err
	}
	if !contains(participants, userID) {
		return fmt.Errorf("%w: user %s", errs.ErrNotParticipant, userID.Hex())
	}
	if err := s.msgs.MarkSeen(ctx, chatID, userID); err != nil {
		return err
	}
	s.invalidateChat(ctx, chatID, participants)
	return nil
}

// FindOrCreatePrivate resolves the single private conversation for an
// unordered user pair, creating it on first use. Two concurrent callers
// converge on the same record: the loser of the insert race re-queries
// and returns the winner's conversation.
func (s *ChatService) FindOrCreatePrivate(ctx context.Context, a, b primitive.ObjectID) (models.ChatView, error) {
	if a == b {
		return models.ChatView{}, fmt.Errorf("%w: cannot start a chat with yourself", errs.ErrValidation)
	}

	existing, err := s.convs.FindPrivateByPair(ctx, a, b)
	if err == nil {
		return s.GetConversationByID(ctx, existing.ID)
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return models.ChatView{}, err
	}

	conv := &models.Conversation{
		Kind:         models.KindPrivate,
		Participants: []primitive.ObjectID{a, b},
	}
	id, err := s.convs.Insert(ctx, conv)
	if errors.Is(err, errs.ErrConflict) {
		winner, ferr := s.convs.FindPrivateByPair(ctx, a, b)
		if ferr != nil {
			return models.ChatView{}, ferr
		}
		id = winner.ID
	} else if err != nil {
		return models.ChatView{}, err
	}
	return s.GetConversationByID(ctx, id)
}

// CreateConversationWithNotification creates a conversation on behalf of
// creator (who is always included) and returns the assembled view plus a
// chatCreated event for each participant's personal channel.
func (s *ChatService) CreateConversationWithNotification(ctx context.Context, creator primitive.ObjectID, participants []primitive.ObjectID, kind models.ConversationKind, name string) (ChatResult, error) {
	if !contains(participants, creator) {
		participants = append([]primitive.ObjectID{creator}, participants...)
	}
	id, err := s.CreateConversation(ctx, participants, kind, name)
	if err != nil {
		return ChatResult{}, err
	}
	view, err := s.GetConversationByID(ctx, id)
	if err != nil {
		return ChatResult{}, err
	}
	events := make([]event.Event, 0, len(view.Participants))
	for _, p := range view.Participants {
		events = append(events, event.ToUser(p.ID.Hex(), event.ChatCreated, view))
	}
	return ChatResult{Chat: view, Events: events}, nil
}

// StartChatByEmail resolves a recipient by email, finds or creates the
// private conversation, optionally sends an initial message, and
// announces the chat on both personal channels.
func (s *ChatService) StartChatByEmail(ctx context.Context, callerID primitive.ObjectID, callerEmail, recipientEmail, initialMessage string) (ChatResult, error) {
	if strings.EqualFold(strings.TrimSpace(recipientEmail), strings.TrimSpace(callerEmail)) {
		return ChatResult{}, fmt.Errorf("%w: cannot start a chat with yourself", errs.ErrValidation)
	}
	recipient, err := s.users.FindByEmail(ctx, recipientEmail)
	if err != nil {
		return ChatResult{}, err
	}

	chat, err := s.FindOrCreatePrivate(ctx, callerID, recipient.ID)
	if err != nil {
		return ChatResult{}, err
	}

	var events []event.Event
	if trimmed := strings.TrimSpace(initialMessage); trimmed != "" {
		sent, err := s.SendMessage(ctx, chat.ID, callerID, callerEmail, trimmed)
		if err != nil {
			return ChatResult{}, err
		}
		events = append(events, sent.Events...)
		// re-read so the announced chat carries the initial message
		chat, err = s.GetConversationByID(ctx, chat.ID)
		if err != nil {
			return ChatResult{}, err
		}
	}

	events = append(events,
		event.ToUser(callerID.Hex(), event.ChatCreated, chat),
		event.ToUser(recipient.ID.Hex(), event.ChatCreated, chat),
	)
	return ChatResult{Chat: chat, Events: events}, nil
}

// GetMessagesForChat lists a conversation's messages in chronological
// order; only participants may read them.
func (s *ChatService) GetMessagesForChat(ctx context.Context, chatID, userID primitive.ObjectID) ([]models.Message, error) {
	ok, err := s.convs.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: user %s", errs.ErrNotParticipant, userID.Hex())
	}
	return s.msgs.ListByChat(ctx, chatID)
}

func (s *ChatService) IsParticipant(ctx context.Context, chatID, userID primitive.ObjectID) (bool, error) {
	return s.convs.IsParticipant(ctx, chatID, userID)
}

func (s *ChatService) AddUserToChat(ctx context.Context, chatID, userID primitive.ObjectID) error {
	if err := s.convs.AddParticipant(ctx, chatID, userID); err != nil {
		return err
	}
	participants, err := s.convs.Participants(ctx, chatID)
	if err != nil {
		return err
	}
	s.invalidateChat(ctx, chatID, participants)
	return nil
}

func (s *ChatService) RemoveUserFromChat(ctx context.Context, chatID, userID primitive.ObjectID) error {
	if err := s.convs.RemoveParticipant(ctx, chatID, userID); err != nil {
		return err
	}
	participants, err := s.convs.Participants(ctx, chatID)
	if err != nil {
		return err
	}
	// the removed user's list entry still references this chat
	s.invalidateChat(ctx, chatID, append(participants, userID))
	return nil
}

func (s *ChatService) FindUserByEmail(ctx context.Context, email string) (models.PublicUser, error) {
	return s.users.FindByEmail(ctx, email)
}

// invalidateChat drops the conversation's own entry and the chat-list
// entry of every participant. It completes before the mutating caller
// returns, so a successful write is never followed by a stale read.
func (s *ChatService) invalidateChat(ctx context.Context, chatID primitive.ObjectID, participants []primitive.ObjectID) {
	keys := make([]string, 0, len(participants)+1)
	keys = append(keys, cache.ConversationKey(chatID.Hex()))
	for _, p := range participants {
		keys = append(keys, cache.ConversationListKey(p.Hex()))
	}
	s.cache.Invalidate(ctx, keys...)
}

func outgoingMessage(m *models.Message, senderEmail string) map[string]any {
	return map[string]any{
		"id":           m.ID.Hex(),
		"chat_id":      m.ChatID.Hex(),
		"sender_id":    m.SenderID.Hex(),
		"sender_email": senderEmail,
		"content":      m.Content,
		"created_at":   m.CreatedAt,
	}
}

func chatUpdate(m *models.Message, senderEmail string) models.ChatUpdate {
	return models.ChatUpdate{
		ChatID: m.ChatID,
		LastMessage: models.LastMessagePreview{
			Content:     m.Content,
			SenderID:    m.SenderID,
			SenderEmail: senderEmail,
			CreatedAt:   m.CreatedAt,
		},
		UpdatedAt: m.UpdatedAt,
	}
}

func contains(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func dedupe(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

