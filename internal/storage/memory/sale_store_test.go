package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

func seedStore(t *testing.T) (*memory.Store, *memory.OutboxRepository) {
	t.Helper()

	outbox := memory.NewOutboxRepository()
	store := memory.NewStore(outbox)
	products := memory.NewProductRepository(store)
	for _, p := range []domain.Product{newProduct("1", "Coffee", 50), newProduct("2", "Sandwich", 25)} {
		if err := products.Create(context.Background(), p); err != nil {
			t.Fatalf("seed %s failed: %v", p.ID, err)
		}
	}
	return store, outbox
}

func writeSale(tx domain.SaleTx, id string, date time.Time, productID string, qty int) error {
	if _, err := tx.LockProducts([]string{productID}); err != nil {
		return err
	}
	if err := tx.DecrementStock(productID, qty); err != nil {
		return err
	}
	item, err := tx.InsertSaleItem(domain.SaleItem{SaleID: id, ProductID: productID, Name: "x", Price: decimal.NewFromInt(1), Quantity: qty})
	if err != nil {
		return err
	}
	sale := domain.Sale{ID: id, Date: date, Customer: "c", Total: item.LineTotal(), Items: []domain.SaleItem{item}}
	if err := tx.InsertSale(sale); err != nil {
		return err
	}
	return tx.EnqueueOutbox(domain.OutboxMessage{AggregateType: domain.AggregateTypeSale, AggregateID: id, EventType: domain.EventTypeSaleRecorded})
}

func TestSaleStore_CommitAppliesEverything(t *testing.T) {
	ctx := context.Background()
	store, outbox := seedStore(t)
	sales := memory.NewSaleStore(store)
	products := memory.NewProductRepository(store)

	err := sales.WithinSaleTx(ctx, func(tx domain.SaleTx) error {
		return writeSale(tx, "sale-1", time.Now().UTC(), "1", 2)
	})
	if err != nil {
		t.Fatalf("WithinSaleTx failed: %v", err)
	}

	p, _ := products.Get(ctx, "1")
	if p.Quantity != 48 {
		t.Fatalf("expected quantity 48, got %d", p.Quantity)
	}

	sale, err := sales.GetSale(ctx, "sale-1")
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	if len(sale.Items) != 1 || sale.Items[0].ID != 1 {
		t.Fatalf("unexpected items %+v", sale.Items)
	}
	if len(outbox.AllPending()) != 1 {
		t.Fatal("expected outbox message after commit")
	}
}

func TestSaleStore_RollbackLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	store, outbox := seedStore(t)
	sales := memory.NewSaleStore(store)
	products := memory.NewProductRepository(store)
	boom := errors.New("boom")

	err := sales.WithinSaleTx(ctx, func(tx domain.SaleTx) error {
		if err := writeSale(tx, "sale-1", time.Now().UTC(), "1", 5); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	p, _ := products.Get(ctx, "1")
	if p.Quantity != 50 {
		t.Fatalf("stock must stay 50 after rollback, got %d", p.Quantity)
	}
	list, _ := sales.ListSales(ctx)
	if len(list) != 0 {
		t.Fatalf("expected no sales, got %d", len(list))
	}
	if len(outbox.AllPending()) != 0 {
		t.Fatal("expected no outbox messages after rollback")
	}

	// Нумерация позиций не сдвигается откатанной транзакцией.
	if err := sales.WithinSaleTx(ctx, func(tx domain.SaleTx) error {
		return writeSale(tx, "sale-2", time.Now().UTC(), "2", 1)
	}); err != nil {
		t.Fatalf("second sale failed: %v", err)
	}
	sale, _ := sales.GetSale(ctx, "sale-2")
	if sale.Items[0].ID != 1 {
		t.Fatalf("expected item id 1, got %d", sale.Items[0].ID)
	}
}

func TestSaleStore_DecrementBeyondStock(t *testing.T) {
	store, _ := seedStore(t)
	sales := memory.NewSaleStore(store)

	err := sales.WithinSaleTx(context.Background(), func(tx domain.SaleTx) error {
		return writeSale(tx, "sale-1", time.Now().UTC(), "2", 26)
	})
	var stockErr *domain.StockError
	if !errors.As(err, &stockErr) || stockErr.Available != 25 {
		t.Fatalf("expected StockError with available 25, got %v", err)
	}
}

func TestSaleStore_ItemsWithoutHeaderAreRejected(t *testing.T) {
	store, _ := seedStore(t)
	sales := memory.NewSaleStore(store)

	err := sales.WithinSaleTx(context.Background(), func(tx domain.SaleTx) error {
		_, err := tx.InsertSaleItem(domain.SaleItem{SaleID: "orphan", ProductID: "1", Quantity: 1})
		return err
	})
	if err == nil {
		t.Fatal("expected error for orphan items")
	}
}

func TestSaleStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store, _ := seedStore(t)
	sales := memory.NewSaleStore(store)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	dates := map[string]time.Time{"a": base, "b": base.Add(time.Minute), "c": base.Add(time.Minute)}
	for _, id := range []string{"a", "b", "c"} {
		id := id
		if err := sales.WithinSaleTx(ctx, func(tx domain.SaleTx) error {
			return writeSale(tx, id, dates[id], "1", 1)
		}); err != nil {
			t.Fatalf("sale %s failed: %v", id, err)
		}
	}

	list, err := sales.ListSales(ctx)
	if err != nil {
		t.Fatalf("ListSales failed: %v", err)
	}
	got := []string{list[0].ID, list[1].ID, list[2].ID}
	want := []string{"c", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}

	// Изменение возвращённой копии не влияет на хранилище.
	list[0].Items[0].Quantity = 100
	again, _ := sales.GetSale(ctx, "c")
	if again.Items[0].Quantity != 1 {
		t.Fatal("ListSales must return copies")
	}
}

func TestSaleStore_GetMissing(t *testing.T) {
	sales := memory.NewSaleStore(memory.NewStore(nil))
	if _, err := sales.GetSale(context.Background(), "nope"); !errors.Is(err, domain.ErrSaleNotFound) {
		t.Fatalf("expected ErrSaleNotFound, got %v", err)
	}
}
