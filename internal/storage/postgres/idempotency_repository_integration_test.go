package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func TestIdempotencyRepository_Postgres(t *testing.T) {
	store := migratedIntegrationStore(t)
	repo := NewIdempotencyRepository(store)
	now := time.Now().UTC()

	t.Run("sale response is stored for replays", func(t *testing.T) {
		ttl := now.Add(2 * time.Hour).Round(time.Second)

		created, err := repo.CreateProcessing(" sale-key-done ", "hash-1", ttl)
		require.NoError(t, err)
		require.Equal(t, "sale-key-done", created.Key)
		require.Equal(t, domain.IdempotencyStatusProcessing, created.Status)

		require.NoError(t, repo.MarkDone("sale-key-done", []byte(`{"id":"sale-1","total":11.97}`), 201))

		got, err := repo.Get("sale-key-done")
		require.NoError(t, err)
		require.Equal(t, domain.IdempotencyStatusDone, got.Status)
		require.Equal(t, 201, got.HTTPStatus)
		require.JSONEq(t, `{"id":"sale-1","total":11.97}`, string(got.ResponseBody))
		require.True(t, got.TTLAt.Equal(ttl), "ttl mismatch: expected %s, got %s", ttl, got.TTLAt)
	})

	t.Run("live key conflicts", func(t *testing.T) {
		ttl := now.Add(time.Hour)
		_, err := repo.CreateProcessing("sale-key-conflict", "hash-a", ttl)
		require.NoError(t, err)

		existing, err := repo.CreateProcessing("sale-key-conflict", "hash-a", ttl)
		require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
		require.Equal(t, domain.IdempotencyStatusProcessing, existing.Status)

		existing, err = repo.CreateProcessing("sale-key-conflict", "hash-b", ttl)
		require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
		require.Equal(t, "hash-a", existing.RequestHash)
	})

	t.Run("expired key is reclaimed", func(t *testing.T) {
		_, err := repo.CreateProcessing("sale-key-reclaim", "old-hash", now.Add(-time.Minute))
		require.NoError(t, err)
		require.NoError(t, repo.MarkFailed("sale-key-reclaim", []byte(`{"error":"x"}`), 400))

		record, err := repo.CreateProcessing("sale-key-reclaim", "new-hash", now.Add(time.Hour))
		require.NoError(t, err)
		require.Equal(t, "new-hash", record.RequestHash)

		got, err := repo.Get("sale-key-reclaim")
		require.NoError(t, err)
		require.Equal(t, domain.IdempotencyStatusProcessing, got.Status)
		require.Zero(t, got.HTTPStatus)
		require.Empty(t, got.ResponseBody)
	})

	t.Run("release frees only processing keys", func(t *testing.T) {
		ttl := now.Add(time.Hour)
		_, err := repo.CreateProcessing("sale-key-release", "hash-r", ttl)
		require.NoError(t, err)
		require.NoError(t, repo.Release("sale-key-release"))
		_, err = repo.Get("sale-key-release")
		require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)

		require.NoError(t, repo.Release("sale-key-done"))
		got, err := repo.Get("sale-key-done")
		require.NoError(t, err)
		require.Equal(t, domain.IdempotencyStatusDone, got.Status)
	})

	t.Run("unknown and blank keys", func(t *testing.T) {
		_, err := repo.Get("missing")
		require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
		require.ErrorIs(t, repo.MarkDone("missing", nil, 201), domain.ErrIdempotencyKeyNotFound)
		_, err = repo.CreateProcessing(" ", "hash", time.Time{})
		require.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
		require.NoError(t, repo.Release("missing"))
	})
}

func TestIdempotencyRepository_PostgresDeleteExpiredOldestFirst(t *testing.T) {
	store := migratedIntegrationStore(t)
	repo := NewIdempotencyRepository(store)
	now := time.Now().UTC()

	for i, offset := range []time.Duration{-5 * time.Minute, -4 * time.Minute, -3 * time.Minute, time.Hour} {
		_, err := repo.CreateProcessing(keyForOffset(i), "hash", now.Add(offset))
		require.NoError(t, err)
	}

	removed, err := repo.DeleteExpired(now, 2)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	_, err = repo.Get(keyForOffset(0))
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
	_, err = repo.Get(keyForOffset(2))
	require.NoError(t, err, "newest expired key must wait for the next batch")

	removed, err = repo.DeleteExpired(now, 0)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = repo.Get(keyForOffset(3))
	require.NoError(t, err)
}

func TestIdempotencyRepository_PostgresClosedStore(t *testing.T) {
	store := migratedIntegrationStore(t)
	repo := NewIdempotencyRepository(store)
	require.NoError(t, store.Close())

	_, err := repo.Get("sale-key")
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)

	require.Error(t, store.Ping(context.Background()))
}

func keyForOffset(i int) string {
	return "sale-key-ttl-" + string(rune('a'+i))
}
