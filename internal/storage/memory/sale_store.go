package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type saleStoreInMemory struct {
	store *Store
}

// NewSaleStore возвращает in-memory реализацию SaleStore поверх общего Store.
func NewSaleStore(store *Store) domain.SaleStore {
	return &saleStoreInMemory{store: store}
}

// WithinSaleTx держит блокировку записи на всё время fn. Изменения копятся
// в memorySaleTx и применяются к Store только при успешном завершении.
func (s *saleStoreInMemory) WithinSaleTx(ctx context.Context, fn func(tx domain.SaleTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	tx := &memorySaleTx{
		store:    s.store,
		products: make(map[string]domain.Product),
		nextItem: s.store.itemSeq,
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

func (s *saleStoreInMemory) ListSales(ctx context.Context) ([]domain.Sale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	result := make([]domain.Sale, 0, len(s.store.sales))
	// Обходим с конца: при равных датах позже вставленная продажа идёт первой.
	for i := len(s.store.sales) - 1; i >= 0; i-- {
		result = append(result, cloneSale(s.store.sales[i]))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

func (s *saleStoreInMemory) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	if err := ctx.Err(); err != nil {
		return domain.Sale{}, err
	}

	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	idx, ok := s.store.saleIdx[id]
	if !ok {
		return domain.Sale{}, domain.ErrSaleNotFound
	}
	return cloneSale(s.store.sales[idx]), nil
}

// memorySaleTx накапливает изменения одной продажи до коммита.
type memorySaleTx struct {
	store    *Store
	products map[string]domain.Product
	items    []domain.SaleItem
	sale     *domain.Sale
	outbox   []domain.OutboxMessage
	nextItem int64
}

func (tx *memorySaleTx) LockProducts(ids []string) (map[string]domain.Product, error) {
	found := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := tx.products[id]; ok {
			found[id] = p
			continue
		}
		p, ok := tx.store.products[id]
		if !ok {
			continue
		}
		tx.products[id] = p
		found[id] = p
	}
	return found, nil
}

func (tx *memorySaleTx) DecrementStock(productID string, qty int) error {
	p, ok := tx.products[productID]
	if !ok {
		return fmt.Errorf("decrement stock: product %s is not locked", productID)
	}
	if qty > p.Quantity {
		return &domain.StockError{ProductID: productID, Requested: qty, Available: p.Quantity}
	}
	p.Quantity -= qty
	tx.products[productID] = p
	return nil
}

func (tx *memorySaleTx) InsertSaleItem(item domain.SaleItem) (domain.SaleItem, error) {
	tx.nextItem++
	item.ID = tx.nextItem
	tx.items = append(tx.items, item)
	return item, nil
}

func (tx *memorySaleTx) InsertSale(sale domain.Sale) error {
	if tx.sale != nil {
		return errors.New("insert sale: sale already inserted in this transaction")
	}
	if _, exists := tx.store.saleIdx[sale.ID]; exists {
		return fmt.Errorf("insert sale: duplicate id %s", sale.ID)
	}
	sale.Items = nil
	tx.sale = &sale
	return nil
}

func (tx *memorySaleTx) EnqueueOutbox(msg domain.OutboxMessage) error {
	tx.outbox = append(tx.outbox, msg)
	return nil
}

// commit вызывается под блокировкой записи Store.
func (tx *memorySaleTx) commit() error {
	if tx.sale == nil {
		if len(tx.items) > 0 {
			return errors.New("commit sale: items without sale header")
		}
		return nil
	}

	sale := *tx.sale
	sale.Items = make([]domain.SaleItem, 0, len(tx.items))
	for _, item := range tx.items {
		if item.SaleID != sale.ID {
			return fmt.Errorf("commit sale: item belongs to sale %s", item.SaleID)
		}
		sale.Items = append(sale.Items, item)
	}

	for id, p := range tx.products {
		tx.store.products[id] = p
	}
	tx.store.saleIdx[sale.ID] = len(tx.store.sales)
	tx.store.sales = append(tx.store.sales, sale)
	tx.store.itemSeq = tx.nextItem

	if tx.store.outbox != nil {
		for _, msg := range tx.outbox {
			tx.store.outbox.enqueue(msg)
		}
	}
	return nil
}

var _ domain.SaleStore = (*saleStoreInMemory)(nil)
var _ domain.SaleTx = (*memorySaleTx)(nil)
