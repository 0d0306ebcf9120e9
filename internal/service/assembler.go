package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourorg/chat-backend/internal/models"
	"github.com/yourorg/chat-backend/internal/repository"
)

// Assembler turns raw conversation records into the denormalized views
// clients see: participant ids resolved to public user projections and
// the last-message pointer resolved to its full record. Lookups are
// batched across the whole input, one query per collection.
type Assembler struct {
	users    repository.UserRepository
	messages repository.MessageRepository
}

func NewAssembler(users repository.UserRepository, messages repository.MessageRepository) *Assembler {
	return &Assembler{users: users, messages: messages}
}

func (a *Assembler) AssembleOne(ctx context.Context, c *models.Conversation) (models.ChatView, error) {
	views, err := a.AssembleMany(ctx, []models.Conversation{*c})
	if err != nil {
		return models.ChatView{}, err
	}
	return views[0], nil
}

func (a *Assembler) AssembleMany(ctx context.Context, convs []models.Conversation) ([]models.ChatView, error) {
	userIDs := make([]primitive.ObjectID, 0, len(convs)*2)
	msgIDs := make([]primitive.ObjectID, 0, len(convs))
	seen := make(map[primitive.ObjectID]struct{})
	for _, c := range convs {
		for _, p := range c.Participants {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				userIDs = append(userIDs, p)
			}
		}
		if c.LastMessage != nil {
			msgIDs = append(msgIDs, *c.LastMessage)
		}
	}

	users, err := a.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	messages, err := a.messages.FindByIDs(ctx, msgIDs)
	if err != nil {
		return nil, err
	}

	views := make([]models.ChatView, 0, len(convs))
	for _, c := range convs {
		view := models.ChatView{
			ID:        c.ID,
			Kind:      c.Kind,
			Name:      c.Name,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		}
		// keep the record's participant order for display
		view.Participants = make([]models.PublicUser, 0, len(c.Participants))
		for _, p := range c.Participants {
			if u, ok := users[p]; ok {
				view.Participants = append(view.Participants, u)
			}
		}
		if c.LastMessage != nil {
			if m, ok := messages[*c.LastMessage]; ok {
				view.LastMessage = &m
			}
		}
		views = append(views, view)
	}
	return views, nil
}
