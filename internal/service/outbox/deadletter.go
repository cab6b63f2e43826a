package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// DeadLetter: содержимое сообщения в DLQ: исходное событие продажи и причина отказа.
// cmd/dlq-replay читает тот же формат, чтобы восстановить событие.
type DeadLetter struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	CreatedAt      time.Time       `json:"created_at"`
	Payload        json.RawMessage `json:"payload"`
	PublishError   string          `json:"publish_error"`
	DLQPublishedAt time.Time       `json:"dlq_published_at"`
}

// NewDeadLetter фиксирует событие, которое не удалось опубликовать после всех попыток.
func NewDeadLetter(event domain.OutboxMessage, publishErr error, at time.Time) DeadLetter {
	letter := DeadLetter{
		OutboxID:       event.ID,
		AggregateType:  event.AggregateType,
		AggregateID:    event.AggregateID,
		EventType:      event.EventType,
		CreatedAt:      event.CreatedAt.UTC(),
		Payload:        json.RawMessage(event.Payload),
		DLQPublishedAt: at.UTC(),
	}
	if publishErr != nil {
		letter.PublishError = publishErr.Error()
	}
	return letter
}

// Message упаковывает DeadLetter в outbox-сообщение для DLQ publisher'а.
func (d DeadLetter) Message() (domain.OutboxMessage, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal dead letter %s: %w", d.OutboxID, err)
	}
	return domain.OutboxMessage{
		ID:            d.OutboxID,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		EventType:     d.EventType,
		Payload:       payload,
		CreatedAt:     d.CreatedAt,
	}, nil
}
