package kafka

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// OutboxEnvelope: формат события в pos.sales.events и в pos.dlq.
// В DLQ Payload содержит outbox.DeadLetter вместо исходного события.
type OutboxEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewOutboxEnvelope оборачивает outbox-сообщение. Payload передаётся без перекодирования.
func NewOutboxEnvelope(event domain.OutboxMessage, publishedAt time.Time) OutboxEnvelope {
	return OutboxEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   publishedAt.UTC(),
	}
}

// PartitionKey: ключ партиционирования: все события одной продажи попадают в одну партицию.
func (e OutboxEnvelope) PartitionKey() string {
	if e.AggregateID != "" {
		return e.AggregateID
	}
	return e.ID
}

// OutboxTopicPublisher публикует outbox-сообщения в один Kafka topic.
type OutboxTopicPublisher struct {
	producer      *Producer
	topic         string
	originalTopic string
	now           func() time.Time
}

// NewOutboxPublisher публикует события продаж в topic (по умолчанию pos.sales.events).
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicSaleEvents
	}
	return &OutboxTopicPublisher{producer: producer, topic: topic, now: time.Now}
}

// NewDLQPublisher публикует в pos.dlq с заголовками исходного топика и времени отказа.
func NewDLQPublisher(producer *Producer, originalTopic string) domain.OutboxPublisher {
	if originalTopic == "" {
		originalTopic = TopicSaleEvents
	}
	return &OutboxTopicPublisher{
		producer:      producer,
		topic:         TopicDeadLetterQueue,
		originalTopic: originalTopic,
		now:           time.Now,
	}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka outbox publisher is not initialized")
	}

	now := p.now()
	envelope := NewOutboxEnvelope(event, now)
	msg := Message{Topic: p.topic, Key: envelope.PartitionKey(), Value: envelope}
	if p.originalTopic != "" {
		msg.Headers = map[string]string{
			HeaderOriginalTopic: p.originalTopic,
			HeaderFailedAt:      strconv.FormatInt(now.Unix(), 10),
		}
	}

	_, err := p.producer.Send(msg)
	return err
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
