package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	// EventTypeSaleRecorded: продажа зафиксирована, остатки списаны.
	EventTypeSaleRecorded EventType = domain.EventTypeSaleRecorded
)

// Topics для Kafka
const (
	TopicSaleEvents      = "pos.sales.events"
	TopicDeadLetterQueue = "pos.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для сообщений в DLQ
const (
	HeaderOriginalTopic = "x-original-topic"
	HeaderFailedAt      = "x-failed-at"
)

// SaleItemEvent описывает позицию продажи в событии.
// Денежные значения передаются строками, чтобы не терять точность у потребителей.
type SaleItemEvent struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
}

// SaleRecordedEvent представляет событие записанной продажи
type SaleRecordedEvent struct {
	EventType EventType       `json:"event_type"`
	SaleID    string          `json:"sale_id"`
	Customer  string          `json:"customer"`
	Total     string          `json:"total"`
	Items     []SaleItemEvent `json:"items"`
	SoldAt    time.Time       `json:"sold_at"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewSaleRecordedEvent создает событие по сохранённой продаже
func NewSaleRecordedEvent(sale domain.Sale) *SaleRecordedEvent {
	items := make([]SaleItemEvent, 0, len(sale.Items))
	for _, item := range sale.Items {
		items = append(items, SaleItemEvent{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price.String(),
			Quantity:  item.Quantity,
		})
	}

	return &SaleRecordedEvent{
		EventType: EventTypeSaleRecorded,
		SaleID:    sale.ID,
		Customer:  sale.Customer,
		Total:     sale.Total.String(),
		Items:     items,
		SoldAt:    sale.Date,
		Timestamp: time.Now().UTC(),
	}
}
