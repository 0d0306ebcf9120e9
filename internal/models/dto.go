package models

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yourorg/chat-backend/internal/errs"
)

var validate = validator.New()

const (
	MaxContentLen = 1000
	MaxNameLen    = 50
)

type SendMessagePayload struct {
	ChatID  string `json:"chatId" validate:"required,len=24,hexadecimal"`
	Content string `json:"content" validate:"required,max=1000"`
}

type JoinChatPayload struct {
	ChatID string `json:"chatId" validate:"required,len=24,hexadecimal"`
}

type LeaveChatPayload struct {
	ChatID string `json:"chatId" validate:"required,len=24,hexadecimal"`
}

type StartChatByEmailPayload struct {
	RecipientEmail string `json:"recipientEmail" validate:"required,email"`
	InitialMessage string `json:"initialMessage,omitempty" validate:"omitempty,max=1000"`
}

type CreateChatRequest struct {
	Participants []string         `json:"participants" validate:"required,min=1,dive,len=24,hexadecimal"`
	Kind         ConversationKind `json:"kind" validate:"required,oneof=private group"`
	Name         string           `json:"name,omitempty" validate:"omitempty,min=1,max=50"`
}

func (p SendMessagePayload) Validate() error      { return check(p) }
func (p JoinChatPayload) Validate() error         { return check(p) }
func (p LeaveChatPayload) Validate() error        { return check(p) }
func (p StartChatByEmailPayload) Validate() error { return check(p) }
func (r CreateChatRequest) Validate() error       { return check(r) }

func check(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	return nil
}

// NormalizeContent trims message content and enforces the 1..1000 rune
// bound that holds for every persisted message.
func NormalizeContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty message content", errs.ErrValidation)
	}
	if len([]rune(trimmed)) > MaxContentLen {
		return "", fmt.Errorf("%w: message content too long", errs.ErrValidation)
	}
	return trimmed, nil
}
