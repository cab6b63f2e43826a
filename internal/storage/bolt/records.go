package bolt

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type productRecord struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

func toProductRecord(p domain.Product) productRecord {
	return productRecord{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Quantity:    p.Quantity,
	}
}

func (r productRecord) toDomain() domain.Product {
	return domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Price:       r.Price,
		Quantity:    r.Quantity,
	}
}

type saleRecord struct {
	ID       string          `json:"id"`
	Date     time.Time       `json:"date"`
	Customer string          `json:"customer"`
	Total    decimal.Decimal `json:"total"`
}

type saleItemRecord struct {
	ID        int64           `json:"id"`
	SaleID    string          `json:"sale_id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func (r saleItemRecord) toDomain() domain.SaleItem {
	return domain.SaleItem{
		ID:        r.ID,
		SaleID:    r.SaleID,
		ProductID: r.ProductID,
		Name:      r.Name,
		Price:     r.Price,
		Quantity:  r.Quantity,
	}
}

type outboxRecord struct {
	ID            string    `json:"id"`
	AggregateType string    `json:"aggregate_type"`
	AggregateID   string    `json:"aggregate_id"`
	EventType     string    `json:"event_type"`
	Payload       []byte    `json:"payload"`
	Status        string    `json:"status"`
	AttemptCount  int       `json:"attempt_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (r outboxRecord) toDomain() domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            r.ID,
		AggregateType: r.AggregateType,
		AggregateID:   r.AggregateID,
		EventType:     r.EventType,
		Payload:       append([]byte(nil), r.Payload...),
		CreatedAt:     r.CreatedAt,
	}
}

type idempotencyRecord struct {
	Key          string    `json:"key"`
	RequestHash  string    `json:"request_hash"`
	ResponseBody []byte    `json:"response_body,omitempty"`
	HTTPStatus   int       `json:"http_status,omitempty"`
	Status       string    `json:"status"`
	TTLAt        time.Time `json:"ttl_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r idempotencyRecord) toDomain() domain.IdempotencyRecord {
	return domain.IdempotencyRecord{
		Key:          r.Key,
		RequestHash:  r.RequestHash,
		ResponseBody: append([]byte(nil), r.ResponseBody...),
		HTTPStatus:   r.HTTPStatus,
		Status:       domain.IdempotencyStatus(r.Status),
		TTLAt:        r.TTLAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
