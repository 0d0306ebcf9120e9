package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yourorg/chat-backend/internal/models"
)

// Producer publishes a message.sent record for each persisted message.
// It is strictly best effort: delivery failures never fail the send path.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 {
		return nil
	}
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Producer{writer: w}
}

func (p *Producer) PublishMessageSent(ctx context.Context, m *models.Message) error {
	if p == nil {
		return nil
	}
	value, err := json.Marshal(map[string]any{
		"message_id": m.ID.Hex(),
		"chat_id":    m.ChatID.Hex(),
		"sender_id":  m.SenderID.Hex(),
		"created_at": m.CreatedAt,
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.ChatID.Hex()),
		Value: value,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
