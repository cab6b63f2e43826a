package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const outboxStatusPending = "pending"

type saleStore struct {
	db *bbolt.DB
}

// NewSaleStore создаёт bbolt-реализацию SaleStore.
//
// Ключи позиций: seq продажи (8 байт) + id позиции (8 байт), поэтому
// позиции одной продажи лежат рядом и читаются одним проходом курсора.
func NewSaleStore(store *Store) domain.SaleStore {
	return &saleStore{db: store.db}
}

// WithinSaleTx выполняет fn внутри db.Update: bbolt допускает одного
// писателя, поэтому проверка остатка и списание сериализованы.
func (s *saleStore) WithinSaleTx(ctx context.Context, fn func(tx domain.SaleTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(btx *bbolt.Tx) error {
		tx := &boltSaleTx{
			tx:       btx,
			saleSeqs: make(map[string]uint64),
			headers:  make(map[string]bool),
		}
		if err := fn(tx); err != nil {
			return err
		}
		for saleID := range tx.saleSeqs {
			if !tx.headers[saleID] {
				return fmt.Errorf("commit sale: items without sale header %s", saleID)
			}
		}
		return ctx.Err()
	})
}

func (s *saleStore) ListSales(ctx context.Context) ([]domain.Sale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make([]domain.Sale, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketSales).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			sale, err := decodeSale(tx, k, v)
			if err != nil {
				return err
			}
			result = append(result, sale)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}

	// Курсор уже идёт по убыванию seq, сортировка по дате стабильна.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

func (s *saleStore) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	if err := ctx.Err(); err != nil {
		return domain.Sale{}, err
	}

	var sale domain.Sale
	err := s.db.View(func(tx *bbolt.Tx) error {
		seqKey := tx.Bucket(bucketSaleIndex).Get([]byte(id))
		if seqKey == nil {
			return domain.ErrSaleNotFound
		}
		raw := tx.Bucket(bucketSales).Get(seqKey)
		if raw == nil {
			return domain.ErrSaleNotFound
		}
		var err error
		sale, err = decodeSale(tx, seqKey, raw)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrSaleNotFound) {
			return domain.Sale{}, err
		}
		return domain.Sale{}, fmt.Errorf("get sale: %w", err)
	}
	return sale, nil
}

func decodeSale(tx *bbolt.Tx, seqKey, raw []byte) (domain.Sale, error) {
	var rec saleRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Sale{}, fmt.Errorf("decode sale: %w", err)
	}

	sale := domain.Sale{
		ID:       rec.ID,
		Date:     rec.Date.UTC(),
		Customer: rec.Customer,
		Total:    rec.Total,
		Items:    []domain.SaleItem{},
	}

	c := tx.Bucket(bucketSaleItems).Cursor()
	for k, v := c.Seek(seqKey); k != nil && bytes.HasPrefix(k, seqKey); k, v = c.Next() {
		var item saleItemRecord
		if err := json.Unmarshal(v, &item); err != nil {
			return domain.Sale{}, fmt.Errorf("decode sale item: %w", err)
		}
		sale.Items = append(sale.Items, item.toDomain())
	}
	return sale, nil
}

// boltSaleTx реализует domain.SaleTx внутри одной транзакции записи bbolt.
type boltSaleTx struct {
	tx       *bbolt.Tx
	saleSeqs map[string]uint64
	headers  map[string]bool
}

func (t *boltSaleTx) LockProducts(ids []string) (map[string]domain.Product, error) {
	b := t.tx.Bucket(bucketProducts)
	found := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		var rec productRecord
		ok, err := getJSON(b, []byte(id), &rec)
		if err != nil {
			return nil, err
		}
		if ok {
			found[id] = rec.toDomain()
		}
	}
	return found, nil
}

func (t *boltSaleTx) DecrementStock(productID string, qty int) error {
	b := t.tx.Bucket(bucketProducts)
	var rec productRecord
	ok, err := getJSON(b, []byte(productID), &rec)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.MissingProductError{ProductID: productID}
	}
	if qty > rec.Quantity {
		return &domain.StockError{ProductID: productID, Requested: qty, Available: rec.Quantity}
	}
	rec.Quantity -= qty
	return putJSON(b, []byte(productID), rec)
}

// saleSeq выдаёт порядковый номер продажи при первом обращении к ней.
func (t *boltSaleTx) saleSeq(saleID string) (uint64, error) {
	if seq, ok := t.saleSeqs[saleID]; ok {
		return seq, nil
	}
	seq, err := t.tx.Bucket(bucketSales).NextSequence()
	if err != nil {
		return 0, fmt.Errorf("next sale sequence: %w", err)
	}
	t.saleSeqs[saleID] = seq
	return seq, nil
}

func (t *boltSaleTx) InsertSaleItem(item domain.SaleItem) (domain.SaleItem, error) {
	seq, err := t.saleSeq(item.SaleID)
	if err != nil {
		return domain.SaleItem{}, err
	}

	b := t.tx.Bucket(bucketSaleItems)
	id, err := b.NextSequence()
	if err != nil {
		return domain.SaleItem{}, fmt.Errorf("next sale item sequence: %w", err)
	}
	item.ID = int64(id)

	key := append(itob(seq), itob(id)...)
	rec := saleItemRecord{
		ID:        item.ID,
		SaleID:    item.SaleID,
		ProductID: item.ProductID,
		Name:      item.Name,
		Price:     item.Price,
		Quantity:  item.Quantity,
	}
	if err := putJSON(b, key, rec); err != nil {
		return domain.SaleItem{}, fmt.Errorf("insert sale item: %w", err)
	}
	return item, nil
}

func (t *boltSaleTx) InsertSale(sale domain.Sale) error {
	index := t.tx.Bucket(bucketSaleIndex)
	if index.Get([]byte(sale.ID)) != nil {
		return fmt.Errorf("insert sale: duplicate id %s", sale.ID)
	}

	seq, err := t.saleSeq(sale.ID)
	if err != nil {
		return err
	}
	rec := saleRecord{ID: sale.ID, Date: sale.Date.UTC(), Customer: sale.Customer, Total: sale.Total}
	if err := putJSON(t.tx.Bucket(bucketSales), itob(seq), rec); err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	if err := index.Put([]byte(sale.ID), itob(seq)); err != nil {
		return fmt.Errorf("index sale: %w", err)
	}
	t.headers[sale.ID] = true
	return nil
}

func (t *boltSaleTx) EnqueueOutbox(msg domain.OutboxMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	b := t.tx.Bucket(bucketOutbox)
	seq, err := b.NextSequence()
	if err != nil {
		return fmt.Errorf("next outbox sequence: %w", err)
	}
	rec := outboxRecord{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       msg.Payload,
		Status:        outboxStatusPending,
		CreatedAt:     msg.CreatedAt,
		UpdatedAt:     msg.CreatedAt,
	}
	if err := putJSON(b, itob(seq), rec); err != nil {
		return fmt.Errorf("enqueue outbox message: %w", err)
	}
	return t.tx.Bucket(bucketOutboxIndex).Put([]byte(msg.ID), itob(seq))
}

var _ domain.SaleStore = (*saleStore)(nil)
var _ domain.SaleTx = (*boltSaleTx)(nil)
