package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type saleStore struct {
	db *sql.DB
}

// NewSaleStore создаёт PostgreSQL-реализацию SaleStore.
func NewSaleStore(store *Store) domain.SaleStore {
	return &saleStore{db: store.DB()}
}

// WithinSaleTx открывает транзакцию READ COMMITTED. Конкурентные продажи
// сериализуются построчными блокировками товаров (SELECT ... FOR UPDATE).
func (s *saleStore) WithinSaleTx(ctx context.Context, fn func(tx domain.SaleTx) error) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return withTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		return fn(&pgSaleTx{ctx: ctx, tx: tx})
	})
}

func (s *saleStore) ListSales(ctx context.Context) ([]domain.Sale, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var result []domain.Sale
	// Оба запроса читают один снимок, чтобы не увидеть продажу без позиций.
	err := withTx(ctx, s.db, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, func(tx *sql.Tx) error {
		sales, err := querySales(ctx, tx, `
			SELECT id, date, customer, total
			FROM sales
			ORDER BY date DESC, seq DESC
		`)
		if err != nil {
			return err
		}
		if len(sales) == 0 {
			result = sales
			return nil
		}

		ids := make([]string, 0, len(sales))
		for _, sale := range sales {
			ids = append(ids, sale.ID)
		}
		items, err := queryItems(ctx, tx, ids)
		if err != nil {
			return err
		}
		for i := range sales {
			sales[i].Items = items[sales[i].ID]
		}
		result = sales
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return result, nil
}

func (s *saleStore) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var result domain.Sale
	err := withTx(ctx, s.db, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, func(tx *sql.Tx) error {
		sales, err := querySales(ctx, tx, `
			SELECT id, date, customer, total
			FROM sales
			WHERE id = $1
		`, id)
		if err != nil {
			return err
		}
		if len(sales) == 0 {
			return domain.ErrSaleNotFound
		}

		items, err := queryItems(ctx, tx, []string{id})
		if err != nil {
			return err
		}
		result = sales[0]
		result.Items = items[id]
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrSaleNotFound) {
			return domain.Sale{}, err
		}
		return domain.Sale{}, fmt.Errorf("get sale: %w", err)
	}
	return result, nil
}

func querySales(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]domain.Sale, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.Date, &sale.Customer, &sale.Total); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sale.Date = sale.Date.UTC()
		sale.Items = []domain.SaleItem{}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales: %w", err)
	}
	return sales, nil
}

func queryItems(ctx context.Context, tx *sql.Tx, saleIDs []string) (map[string][]domain.SaleItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, sale_id, product_id, name, price, quantity
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY id ASC
	`, saleIDs)
	if err != nil {
		return nil, fmt.Errorf("query sale items: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]domain.SaleItem, len(saleIDs))
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		result[item.SaleID] = append(result[item.SaleID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale items: %w", err)
	}
	return result, nil
}

// pgSaleTx реализует domain.SaleTx поверх открытой транзакции.
type pgSaleTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *pgSaleTx) LockProducts(ids []string) (map[string]domain.Product, error) {
	found := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	// Блокируем строки в порядке id, чтобы пересекающиеся продажи не дедлочились.
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, sorted)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan locked product: %w", err)
		}
		found[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locked products: %w", err)
	}
	return found, nil
}

func (t *pgSaleTx) DecrementStock(productID string, qty int) error {
	var remaining int
	err := t.tx.QueryRowContext(t.ctx, `
		UPDATE products
		SET quantity = quantity - $2,
		    updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
		RETURNING quantity
	`, productID, qty).Scan(&remaining)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("decrement stock: %w", err)
	}

	var available int
	if err := t.tx.QueryRowContext(t.ctx, `SELECT quantity FROM products WHERE id = $1`, productID).Scan(&available); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.MissingProductError{ProductID: productID}
		}
		return fmt.Errorf("read stock: %w", err)
	}
	return &domain.StockError{ProductID: productID, Requested: qty, Available: available}
}

func (t *pgSaleTx) InsertSaleItem(item domain.SaleItem) (domain.SaleItem, error) {
	err := t.tx.QueryRowContext(t.ctx, `
		INSERT INTO sale_items (sale_id, product_id, name, price, quantity)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, item.SaleID, item.ProductID, item.Name, item.Price, item.Quantity).Scan(&item.ID)
	if err != nil {
		return domain.SaleItem{}, fmt.Errorf("insert sale item: %w", err)
	}
	return item, nil
}

func (t *pgSaleTx) InsertSale(sale domain.Sale) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO sales (id, date, customer, total)
		VALUES ($1,$2,$3,$4)
	`, sale.ID, sale.Date.UTC(), sale.Customer, sale.Total)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (t *pgSaleTx) EnqueueOutbox(msg domain.OutboxMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,0,$7,$7)
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, outboxPending, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue outbox message: %w", err)
	}
	return nil
}

var _ domain.SaleStore = (*saleStore)(nil)
var _ domain.SaleTx = (*pgSaleTx)(nil)
