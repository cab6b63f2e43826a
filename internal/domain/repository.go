package domain

import "context"

// ProductRepository описывает требования к хранилищу каталога.
// Каждая операция выполняется как отдельная единица работы.
type ProductRepository interface {
	// List возвращает все товары, отсортированные по названию, затем по id.
	List(ctx context.Context) ([]Product, error)
	// Get возвращает товар по идентификатору или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// Create сохраняет новый товар. Занятый id даёт ErrProductIDConflict.
	Create(ctx context.Context, product Product) error
	// Update заменяет изменяемые поля товара. Отсутствующий товар даёт ErrProductNotFound.
	Update(ctx context.Context, product Product) error
	// Delete удаляет товар. Исторические позиции продаж не затрагиваются.
	Delete(ctx context.Context, id string) error
}

// SaleTx описывает набор примитивов, доступных внутри транзакции записи продажи.
// Все изменения применяются одним коммитом либо отбрасываются целиком.
type SaleTx interface {
	// LockProducts блокирует указанные товары до конца транзакции и возвращает найденные.
	LockProducts(ids []string) (map[string]Product, error)
	// DecrementStock уменьшает остаток заблокированного товара.
	DecrementStock(productID string, qty int) error
	// InsertSaleItem сохраняет позицию и возвращает её с назначенным ID.
	InsertSaleItem(item SaleItem) (SaleItem, error)
	// InsertSale сохраняет заголовок продажи.
	InsertSale(sale Sale) error
	// EnqueueOutbox кладёт событие в transactional outbox.
	EnqueueOutbox(msg OutboxMessage) error
}

// SaleStore хранит продажи и предоставляет транзакционную область для их записи.
type SaleStore interface {
	// WithinSaleTx выполняет fn в одной транзакции. Ошибка fn откатывает все изменения.
	WithinSaleTx(ctx context.Context, fn func(tx SaleTx) error) error
	// ListSales возвращает продажи от новых к старым, каждую с позициями.
	ListSales(ctx context.Context) ([]Sale, error)
	// GetSale возвращает продажу с позициями или ErrSaleNotFound.
	GetSale(ctx context.Context, id string) (Sale, error)
}
