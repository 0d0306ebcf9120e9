package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourorg/chat-backend/internal/errs"
	"github.com/yourorg/chat-backend/internal/models"
)

// In-memory doubles for the store and the cache KV. The conversation
// fake enforces the same private-pair uniqueness the mongo index does,
// which lets the race-absorption path run for real.

type fakeConvRepo struct {
	mu      sync.Mutex
	byID    map[primitive.ObjectID]*models.Conversation
	pairIdx map[string]primitive.ObjectID
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{
		byID:    make(map[primitive.ObjectID]*models.Conversation),
		pairIdx: make(map[string]primitive.ObjectID),
	}
}

func (r *fakeConvRepo) Insert(_ context.Context, c *models.Conversation) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.Kind == models.KindPrivate && len(c.Participants) == 2 {
		key := models.PairKey(c.Participants[0], c.Participants[1])
		if _, ok := r.pairIdx[key]; ok {
			return primitive.NilObjectID, fmt.Errorf("%w: private conversation already exists", errs.ErrConflict)
		}
		c.ParticipantsKey = key
		defer func() { r.pairIdx[key] = c.ID }()
	}
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.CreatedAt = now
	c.UpdatedAt = now
	clone := *c
	r.byID[c.ID] = &clone
	return c.ID, nil
}

func (r *fakeConvRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %s", errs.ErrNotFound, id.Hex())
	}
	clone := *c
	return &clone, nil
}

func (r *fakeConvRepo) ListForUser(_ context.Context, userID primitive.ObjectID) ([]models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Conversation
	for _, c := range r.byID {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	for i := range out {
		for j := i + 1; j < len(out); j++ {
			if out[j].UpdatedAt.After(out[i].UpdatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (r *fakeConvRepo) FindPrivateByPair(_ context.Context, a, b primitive.ObjectID) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.pairIdx[models.PairKey(a, b)]
	if !ok {
		return nil, fmt.Errorf("%w: no private conversation for pair", errs.ErrNotFound)
	}
	clone := *r.byID[id]
	return &clone, nil
}

func (r *fakeConvRepo) SetLastMessage(_ context.Context, chatID, messageID primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[chatID]
	if !ok {
		return fmt.Errorf("%w: conversation %s", errs.ErrNotFound, chatID.Hex())
	}
	id := messageID
	c.LastMessage = &id
	c.UpdatedAt = at
	return nil
}

func (r *fakeConvRepo) AddParticipant(_ context.Context, chatID, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[chatID]
	if !ok {
		return fmt.Errorf("%w: conversation %s", errs.ErrNotFound, chatID.Hex())
	}
	if !c.HasParticipant(userID) {
		c.Participants = append(c.Participants, userID)
	}
	return nil
}

func (r *fakeConvRepo) RemoveParticipant(_ context.Context, chatID, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[chatID]
	if !ok {
		return fmt.Errorf("%w: conversation %s", errs.ErrNotFound, chatID.Hex())
	}
	out := c.Participants[:0]
	for _, p := range c.Participants {
		if p != userID {
			out = append(out, p)
		}
	}
	c.Participants = out
	return nil
}

func (r *fakeConvRepo) Participants(ctx context.Context, chatID primitive.ObjectID) ([]primitive.ObjectID, error) {
	c, err := r.FindByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return c.Participants, nil
}

func (r *fakeConvRepo) IsParticipant(ctx context.Context, chatID, userID primitive.ObjectID) (bool, error) {
	c, err := r.FindByID(ctx, chatID)
	if err != nil {
		return false, err
	}
	return c.HasParticipant(userID), nil
}

func (r *fakeConvRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

type fakeMsgRepo struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]*models.Message
}

func newFakeMsgRepo() *fakeMsgRepo {
	return &fakeMsgRepo{byID: make(map[primitive.ObjectID]*models.Message)}
}

func (r *fakeMsgRepo) Insert(_ context.Context, m *models.Message) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	m.ID = primitive.NewObjectID()
	m.CreatedAt = now
	m.UpdatedAt = now
	if len(m.SeenBy) == 0 {
		m.SeenBy = []primitive.ObjectID{m.SenderID}
	}
	clone := *m
	r.byID[m.ID] = &clone
	return m.ID, nil
}

func (r *fakeMsgRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: message %s", errs.ErrNotFound, id.Hex())
	}
	clone := *m
	return &clone, nil
}

func (r *fakeMsgRepo) FindByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[primitive.ObjectID]models.Message, len(ids))
	for _, id := range ids {
		if m, ok := r.byID[id]; ok {
			out[id] = *m
		}
	}
	return out, nil
}

func (r *fakeMsgRepo) ListByChat(_ context.Context, chatID primitive.ObjectID) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Message
	for _, m := range r.byID {
		if m.ChatID == chatID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMsgRepo) MarkSeen(_ context.Context, chatID, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.byID {
		if m.ChatID != chatID {
			continue
		}
		seen := false
		for _, u := range m.SeenBy {
			if u == userID {
				seen = true
				break
			}
		}
		if !seen {
			m.SeenBy = append(m.SeenBy, userID)
		}
	}
	return nil
}

type fakeUserRepo struct {
	byID    map[primitive.ObjectID]models.PublicUser
	byEmail map[string]models.PublicUser
	batches int
}

func newFakeUserRepo(users ...models.PublicUser) *fakeUserRepo {
	r := &fakeUserRepo{
		byID:    make(map[primitive.ObjectID]models.PublicUser),
		byEmail: make(map[string]models.PublicUser),
	}
	for _, u := range users {
		r.byID[u.ID] = u
		r.byEmail[u.Email] = u
	}
	return r
}

func (r *fakeUserRepo) FindByID(_ context.Context, id primitive.ObjectID) (models.PublicUser, error) {
	u, ok := r.byID[id]
	if !ok {
		return models.PublicUser{}, fmt.Errorf("%w: user %s", errs.ErrNotFound, id.Hex())
	}
	return u, nil
}

func (r *fakeUserRepo) FindByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.PublicUser, error) {
	r.batches++
	out := make(map[primitive.ObjectID]models.PublicUser, len(ids))
	for _, id := range ids {
		if u, ok := r.byID[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (models.PublicUser, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return models.PublicUser{}, fmt.Errorf("%w: no user with this email", errs.ErrNotFound)
	}
	return u, nil
}

// memKV implements cache.KV and records deleted keys so invalidation
// scope can be asserted.
type memKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	return raw, ok, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
		m.deleted = append(m.deleted, k)
	}
	return nil
}
