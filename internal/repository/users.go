package repository

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yourorg/chat-backend/internal/errs"
	"github.com/yourorg/chat-backend/internal/models"
)

// UserRepository is read-only here: account creation and credential
// management belong to the identity service.
type UserRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (models.PublicUser, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.PublicUser, error)
	FindByEmail(ctx context.Context, email string) (models.PublicUser, error)
}

type mongoUserRepo struct {
	col *mongo.Collection
}

func NewUserRepository(col *mongo.Collection) UserRepository {
	return &mongoUserRepo{col: col}
}

func (r *mongoUserRepo) FindByID(ctx context.Context, id primitive.ObjectID) (models.PublicUser, error) {
	var u models.User
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return models.PublicUser{}, fmt.Errorf("%w: user %s", errs.ErrNotFound, id.Hex())
	}
	if err != nil {
		return models.PublicUser{}, err
	}
	return u.Public(), nil
}

func (r *mongoUserRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.PublicUser, error) {
	out := make(map[primitive.ObjectID]models.PublicUser, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out[u.ID] = u.Public()
	}
	return out, cur.Err()
}

func (r *mongoUserRepo) FindByEmail(ctx context.Context, email string) (models.PublicUser, error) {
	var u models.User
	err := r.col.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return models.PublicUser{}, fmt.Errorf("%w: no user with this email", errs.ErrNotFound)
	}
	if err != nil {
		return models.PublicUser{}, err
	}
	return u.Public(), nil
}
