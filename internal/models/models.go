package models

import (
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ConversationKind string

const (
	KindPrivate ConversationKind = "private"
	KindGroup   ConversationKind = "group"
)

// User is the persisted account record. Password stays inside the
// repository layer; everything outward uses PublicUser.
type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email    string             `bson:"email" json:"email"`
	Name     string             `bson:"name" json:"name"`
	Password string             `bson:"password" json:"-"`
}

// PublicUser is the projection of a user safe to hand to clients.
type PublicUser struct {
	ID    primitive.ObjectID `bson:"_id" json:"id"`
	Email string             `bson:"email" json:"email"`
	Name  string             `bson:"name" json:"name"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Name: u.Name}
}

// Conversation is the raw persisted record. Participants keep insertion
// order; membership checks treat them as a set.
type Conversation struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Kind            ConversationKind     `bson:"kind" json:"kind"`
	Participants    []primitive.ObjectID `bson:"participants" json:"participants"`
	ParticipantsKey string               `bson:"participants_key,omitempty" json:"-"`
	Name            string               `bson:"name,omitempty" json:"name,omitempty"`
	LastMessage     *primitive.ObjectID  `bson:"last_message,omitempty" json:"last_message,omitempty"`
	CreatedAt       time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at" json:"updated_at"`
}

func (c *Conversation) HasParticipant(userID primitive.ObjectID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// PairKey builds the canonical identity of an unordered private pair.
// It backs the unique index that makes find-or-create idempotent.
func PairKey(a, b primitive.ObjectID) string {
	ids := []string{a.Hex(), b.Hex()}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// Message is append-only; seenBy only ever grows.
type Message struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	ChatID    primitive.ObjectID   `bson:"chat_id" json:"chat_id"`
	SenderID  primitive.ObjectID   `bson:"sender_id" json:"sender_id"`
	Content   string               `bson:"content" json:"content"`
	SeenBy    []primitive.ObjectID `bson:"seen_by" json:"seen_by"`
	CreatedAt time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at" json:"updated_at"`
}

// ChatView is the assembled read model: participants resolved to public
// projections and the last message resolved to its full record. This is
// what gets cached and what clients receive.
type ChatView struct {
	ID           primitive.ObjectID `json:"id"`
	Kind         ConversationKind   `json:"kind"`
	Participants []PublicUser       `json:"participants"`
	Name         string             `json:"name,omitempty"`
	LastMessage  *Message           `json:"last_message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// LastMessagePreview is the lightweight summary delivered on personal
// channels when a conversation gets a new message.
type LastMessagePreview struct {
	Content     string             `json:"content"`
	SenderID    primitive.ObjectID `json:"sender_id"`
	SenderEmail string             `json:"sender_email"`
	CreatedAt   time.Time          `json:"created_at"`
}

type ChatUpdate struct {
	ChatID      primitive.ObjectID `json:"chat_id"`
	LastMessage LastMessagePreview `json:"last_message"`
	UpdatedAt   time.Time          `json:"updated_at"`
}
