package domain

import "time"

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository отдаёт накопленные события воркеру публикации.
// Запись в outbox происходит внутри SaleTx.
type OutboxRepository interface {
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	// Release освобождает ключ, который ещё в статусе processing, чтобы запрос можно было повторить.
	// Завершённые и отсутствующие ключи не трогаются.
	Release(key string) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

const (
	// AggregateTypeSale задаёт тип агрегата для событий продаж.
	AggregateTypeSale = "sale"
	// EventTypeSaleRecorded публикуется после успешной записи продажи.
	EventTypeSaleRecorded = "sale.recorded"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
