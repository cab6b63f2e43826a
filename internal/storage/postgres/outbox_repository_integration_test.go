package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func TestOutboxRepository_PostgresFlow(t *testing.T) {
	store := migratedIntegrationStore(t)
	products := NewProductRepository(store)
	sales := NewSaleStore(store)
	repo := NewOutboxRepository(store)
	ctx := context.Background()

	createTestProduct(t, products, "1", "Coffee", "2.99", 50)
	firstSale, err := sellOne(ctx, sales, "1", 1)
	require.NoError(t, err)
	_, err = sellOne(ctx, sales, "1", 1)
	require.NoError(t, err)

	pending, err := repo.PullPending(0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, firstSale, pending[0].AggregateID)
	require.Equal(t, domain.EventTypeSaleRecorded, pending[0].EventType)
	require.False(t, pending[0].CreatedAt.IsZero())

	stats, err := repo.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, stats.PendingCount)
	require.False(t, stats.OldestPendingAt.IsZero())

	require.NoError(t, repo.MarkSent(pending[0].ID))
	require.NoError(t, repo.MarkFailed(pending[1].ID))

	// Событие уже не pending: повторная отметка не проходит.
	require.ErrorIs(t, repo.MarkFailed(pending[0].ID), domain.ErrOutboxPublish)

	after, err := repo.PullPending(10)
	require.NoError(t, err)
	require.Empty(t, after)

	err = repo.MarkSent("missing")
	require.True(t, errors.Is(err, domain.ErrOutboxPublish), "unexpected error %v", err)
}
