package postgres

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func TestProductRepository_PostgresCRUD(t *testing.T) {
	store := migratedIntegrationStore(t)
	repo := NewProductRepository(store)
	ctx := context.Background()

	createTestProduct(t, repo, "2", "Sandwich", "5.99", 25)
	createTestProduct(t, repo, "1", "Coffee", "2.99", 50)
	createTestProduct(t, repo, "3", "Cake", "3.99", 15)

	err := repo.Create(ctx, domain.Product{ID: "1", Name: "Dup", Category: "X", Price: decimal.Zero})
	require.ErrorIs(t, err, domain.ErrProductIDConflict)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, []string{"Cake", "Coffee", "Sandwich"}, []string{list[0].Name, list[1].Name, list[2].Name})

	got, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	require.True(t, got.Price.Equal(decimal.RequireFromString("2.99")), "price %s", got.Price)

	got.Quantity = 70
	got.Price = decimal.RequireFromString("3.10")
	require.NoError(t, repo.Update(ctx, got))

	updated, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, 70, updated.Quantity)
	require.True(t, updated.Price.Equal(decimal.RequireFromString("3.10")))

	require.ErrorIs(t, repo.Update(ctx, domain.Product{ID: "missing", Name: "x", Category: "y"}), domain.ErrProductNotFound)
	require.NoError(t, repo.Delete(ctx, "3"))
	require.ErrorIs(t, repo.Delete(ctx, "3"), domain.ErrProductNotFound)

	_, err = repo.Get(ctx, "3")
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestProductRepository_PostgresListUsesByteOrder(t *testing.T) {
	store := migratedIntegrationStore(t)
	repo := NewProductRepository(store)
	ctx := context.Background()

	createTestProduct(t, repo, "1", "apple pie", "3.50", 5)
	createTestProduct(t, repo, "2", "Banana", "0.99", 30)
	createTestProduct(t, repo, "4", "Éclair", "2.75", 8)
	createTestProduct(t, repo, "3", "Banana", "1.09", 12)

	list, err := repo.List(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.ID)
	}
	// Заглавные раньше строчных, не-ASCII в конце; одинаковые имена по ID.
	require.Equal(t, []string{"2", "3", "1", "4"}, ids)
}
