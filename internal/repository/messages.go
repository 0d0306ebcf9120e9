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

type MessageRepository interface {
	Insert(ctx context.Context, m *models.Message) (primitive.ObjectID, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Message, error)
	ListByChat(ctx context.Context, chatID primitive.ObjectID) ([]models.Message, error)
	MarkSeen(ctx context.Context, chatID, userID primitive.ObjectID) error
}

type mongoMessageRepo struct {
	col *mongo.Collection
}

func NewMessageRepository(col *mongo.Collection) MessageRepository {
	return &mongoMessageRepo{col: col}
}

func (r *mongoMessageRepo) Insert(ctx context.Context, m *models.Message) (primitive.ObjectID, error) {
	now := time.Now().UTC()
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	if len(m.SeenBy) == 0 {
		m.SeenBy = []primitive.ObjectID{m.SenderID}
	}
	if _, err := r.col.InsertOne(ctx, m); err != nil {
		return primitive.NilObjectID, err
	}
	return m.ID, nil
}

func (r *mongoMessageRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	var m models.Message
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: message %s", errs.ErrNotFound, id.Hex())
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mongoMessageRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Message, error) {
	out := make(map[primitive.ObjectID]models.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, cur.Err()
}

func (r *mongoMessageRepo) ListByChat(ctx context.Context, chatID primitive.ObjectID) ([]models.Message, error) {
	cur, err := r.col.Find(ctx, bson.M{"chat_id": chatID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkSeen adds userID to seen_by on every message of the chat where it
// is still absent. Running it twice is a no-op.
func (r *mongoMessageRepo) MarkSeen(ctx context.Context, chatID, userID primitive.ObjectID) error {
	_, err := r.col.UpdateMany(ctx,
		bson.M{"chat_id": chatID, "seen_by": bson.M{"$ne": userID}},
		bson.M{"$addToSet": bson.M{"seen_by": userID}, "$set": bson.M{"updated_at": time.Now().UTC()}})
	return err
}
