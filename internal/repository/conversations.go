package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourorg/chat-backend/internal/errs"
	"github.com/yourorg/chat-backend/internal/models"
)

// ConversationRepository owns the durable conversation records and the
// uniqueness guarantee for private pairs.
type ConversationRepository interface {
	Insert(ctx context.Context, c *models.Conversation) (primitive.ObjectID, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Conversation, error)
	FindPrivateByPair(ctx context.Context, a, b primitive.ObjectID) (*models.Conversation, error)
	SetLastMessage(ctx context.Context, chatID, messageID primitive.ObjectID, at time.Time) error
	AddParticipant(ctx context.Context, chatID, userID primitive.ObjectID) error
	RemoveParticipant(ctx context.Context, chatID, userID primitive.ObjectID) error
	Participants(ctx context.Context, chatID primitive.ObjectID) ([]primitive.ObjectID, error)
	IsParticipant(ctx context.Context, chatID, userID primitive.ObjectID) (bool, error)
}

type mongoConversationRepo struct {
	col *mongo.Collection
}

func NewConversationRepository(col *mongo.Collection) ConversationRepository {
	return &mongoConversationRepo{col: col}
}

func (r *mongoConversationRepo) Insert(ctx context.Context, c *models.Conversation) (primitive.ObjectID, error) {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if c.Kind == models.KindPrivate && len(c.Participants) == 2 {
		c.ParticipantsKey = models.PairKey(c.Participants[0], c.Participants[1])
	}
	if _, err := r.col.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, fmt.Errorf("%w: private conversation already exists", errs.ErrConflict)
		}
		return primitive.NilObjectID, err
	}
	return c.ID, nil
}

func (r *mongoConversationRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	var c models.Conversation
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: conversation %s", errs.ErrNotFound, id.Hex())
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *mongoConversationRepo) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Conversation, error) {
	cur, err := r.col.Find(ctx, bson.M{"participants": userID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Conversation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mongoConversationRepo) FindPrivateByPair(ctx context.Context, a, b primitive.ObjectID) (*models.Conversation, error) {
	var c models.Conversation
	err := r.col.FindOne(ctx, bson.M{
		"kind":             models.KindPrivate,
		"participants_key": models.PairKey(a, b),
	}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: no private conversation for pair", errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *mongoConversationRepo) SetLastMessage(ctx context.Context, chatID, messageID primitive.ObjectID, at time.Time) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": chatID},
		bson.M{"$set": bson.M{"last_message": messageID, "updated_at": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: conversation %s", errs.ErrNotFound, chatID.Hex())
	}
	return nil
}

func (r *mongoConversationRepo) AddParticipant(ctx context.Context, chatID, userID primitive.ObjectID) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": chatID},
		bson.M{"$addToSet": bson.M{"participants": userID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: conversation %s", errs.ErrNotFound, chatID.Hex())
	}
	return nil
}

func (r *mongoConversationRepo) RemoveParticipant(ctx context.Context, chatID, userID primitive.ObjectID) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": chatID},
		bson.M{"$pull": bson.M{"participants": userID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: conversation %s", errs.ErrNotFound, chatID.Hex())
	}
	return nil
}

func (r *mongoConversationRepo) Participants(ctx context.Context, chatID primitive.ObjectID) ([]primitive.ObjectID, error) {
	c, err := r.FindByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return c.Participants, nil
}

func (r *mongoConversationRepo) IsParticipant(ctx context.Context, chatID, userID primitive.ObjectID) (bool, error) {
	err := r.col.FindOne(ctx, bson.M{"_id": chatID, "participants": userID},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
