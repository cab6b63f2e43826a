package bolt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type outboxRepository struct {
	db *bbolt.DB
}

// NewOutboxRepository создаёт bbolt-реализацию OutboxRepository.
func NewOutboxRepository(store *Store) domain.OutboxRepository {
	return &outboxRepository{db: store.db}
}

func (r *outboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	result := make([]domain.OutboxMessage, 0, limit)
	err := r.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketOutbox).Cursor()
		for k, v := c.First(); k != nil && len(result) < limit; k, v = c.Next() {
			var rec outboxRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode outbox message: %w", err)
			}
			if rec.Status == outboxStatusPending {
				result = append(result, rec.toDomain())
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pull pending outbox messages: %w", err)
	}
	return result, nil
}

func (r *outboxRepository) Stats() (domain.OutboxStats, error) {
	var stats domain.OutboxStats
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOutbox).ForEach(func(_, v []byte) error {
			var rec outboxRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode outbox message: %w", err)
			}
			if rec.Status != outboxStatusPending {
				return nil
			}
			stats.PendingCount++
			if stats.OldestPendingAt.IsZero() || rec.CreatedAt.Before(stats.OldestPendingAt) {
				stats.OldestPendingAt = rec.CreatedAt
			}
			return nil
		})
	})
	if err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox stats: %w", err)
	}
	return stats, nil
}

func (r *outboxRepository) MarkSent(id string) error {
	return r.markStatus(id, "sent")
}

func (r *outboxRepository) MarkFailed(id string) error {
	return r.markStatus(id, "failed")
}

func (r *outboxRepository) markStatus(id, status string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		seqKey := tx.Bucket(bucketOutboxIndex).Get([]byte(id))
		if seqKey == nil {
			return domain.ErrOutboxPublish
		}

		b := tx.Bucket(bucketOutbox)
		var rec outboxRecord
		found, err := getJSON(b, seqKey, &rec)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrOutboxPublish
		}
		rec.Status = status
		rec.AttemptCount++
		rec.UpdatedAt = time.Now().UTC()
		return putJSON(b, seqKey, rec)
	})
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
