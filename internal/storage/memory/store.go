package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Store хранит общее in-memory состояние каталога и продаж.
// Один RWMutex даёт единственного писателя, поэтому читатели не видят
// частично применённую продажу.
type Store struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	sales    []domain.Sale
	saleIdx  map[string]int
	itemSeq  int64
	outbox   *OutboxRepository
}

// NewStore создаёт пустое хранилище. outbox может быть nil, тогда события отбрасываются.
func NewStore(outbox *OutboxRepository) *Store {
	return &Store{
		products: make(map[string]domain.Product),
		saleIdx:  make(map[string]int),
		outbox:   outbox,
	}
}

// Ping успешен, пока не отменён ctx: in-memory хранилище живёт вместе с процессом.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func cloneSale(src domain.Sale) domain.Sale {
	dst := src
	dst.Items = make([]domain.SaleItem, len(src.Items))
	copy(dst.Items, src.Items)
	return dst
}
