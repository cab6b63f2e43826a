package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

func newService() *Service {
	store := memory.NewStore(nil)
	return NewService(memory.NewProductRepository(store), log.New().WithField("component", "catalog-test"))
}

func ptr[T any](v T) *T { return &v }

func validFields() domain.ProductFields {
	return domain.ProductFields{
		Name:        ptr("Tea"),
		Description: ptr("Green tea"),
		Category:    ptr("Beverages"),
		Price:       ptr(decimal.RequireFromString("1.50")),
		Quantity:    ptr(10),
	}
}

func TestCreate_GeneratesID(t *testing.T) {
	t.Parallel()

	svc := newService()
	svc.newID = func() string { return "generated-id" }

	product, err := svc.Create(context.Background(), validFields())
	require.NoError(t, err)
	assert.Equal(t, "generated-id", product.ID)
	assert.Equal(t, "Tea", product.Name)

	stored, err := svc.Get(context.Background(), "generated-id")
	require.NoError(t, err)
	assert.Equal(t, product.Name, stored.Name)
	assert.True(t, stored.Price.Equal(decimal.RequireFromString("1.5")))
}

func TestCreate_ClientIDAndConflict(t *testing.T) {
	t.Parallel()

	svc := newService()

	fields := validFields()
	fields.ID = ptr("tea-1")
	product, err := svc.Create(context.Background(), fields)
	require.NoError(t, err)
	assert.Equal(t, "tea-1", product.ID)

	_, err = svc.Create(context.Background(), fields)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProductIDConflict)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreate_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*domain.ProductFields)
		field  string
	}{
		{"missing name", func(f *domain.ProductFields) { f.Name = nil }, "name"},
		{"blank name", func(f *domain.ProductFields) { f.Name = ptr("   ") }, "name"},
		{"missing category", func(f *domain.ProductFields) { f.Category = nil }, "category"},
		{"missing price", func(f *domain.ProductFields) { f.Price = nil }, "price"},
		{"negative price", func(f *domain.ProductFields) { f.Price = ptr(decimal.NewFromInt(-1)) }, "price"},
		{"missing quantity", func(f *domain.ProductFields) { f.Quantity = nil }, "quantity"},
		{"negative quantity", func(f *domain.ProductFields) { f.Quantity = ptr(-3) }, "quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService()
			fields := validFields()
			tt.mutate(&fields)

			_, err := svc.Create(context.Background(), fields)
			require.Error(t, err)

			var validationErr *domain.ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.field, validationErr.Field)

			products, err := svc.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, products)
		})
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	svc := newService()
	fields := validFields()
	fields.ID = ptr("tea")
	_, err := svc.Create(context.Background(), fields)
	require.NoError(t, err)

	update := validFields()
	update.ID = ptr("ignored")
	update.Name = ptr("Black Tea")
	update.Quantity = ptr(0)

	product, err := svc.Update(context.Background(), "tea", update)
	require.NoError(t, err)
	assert.Equal(t, "tea", product.ID)
	assert.Equal(t, "Black Tea", product.Name)

	stored, err := svc.Get(context.Background(), "tea")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Quantity)

	_, err = svc.Update(context.Background(), "missing", validFields())
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	invalid := validFields()
	invalid.Price = nil
	_, err = svc.Update(context.Background(), "tea", invalid)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	svc := newService()
	fields := validFields()
	fields.ID = ptr("tea")
	_, err := svc.Create(context.Background(), fields)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "tea"))
	_, err = svc.Get(context.Background(), "tea")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	assert.ErrorIs(t, svc.Delete(context.Background(), "tea"), domain.ErrProductNotFound)
}

func TestList_SortedByName(t *testing.T) {
	t.Parallel()

	svc := newService()
	_, err := svc.SeedIfEmpty(context.Background(), SampleProducts())
	require.NoError(t, err)

	products, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, []string{"Cake", "Coffee", "Sandwich"},
		[]string{products[0].Name, products[1].Name, products[2].Name})
}

func TestSeedIfEmpty(t *testing.T) {
	t.Parallel()

	svc := newService()

	seeded, err := svc.SeedIfEmpty(context.Background(), SampleProducts())
	require.NoError(t, err)
	assert.Equal(t, 3, seeded)

	coffee, err := svc.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Coffee", coffee.Name)
	assert.Equal(t, 50, coffee.Quantity)

	seeded, err = svc.SeedIfEmpty(context.Background(), SampleProducts())
	require.NoError(t, err)
	assert.Zero(t, seeded)
}
