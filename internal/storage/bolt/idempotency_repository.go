package bolt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const defaultIdempotencyTTL = 24 * time.Hour

type idempotencyRepository struct {
	db *bbolt.DB
}

// NewIdempotencyRepository создаёт bbolt-реализацию IdempotencyRepository.
func NewIdempotencyRepository(store *Store) domain.IdempotencyRepository {
	return &idempotencyRepository{db: store.db}
}

func (r *idempotencyRepository) CreateProcessing(key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	requestHash = strings.TrimSpace(requestHash)

	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := time.Now().UTC()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultIdempotencyTTL)
	}

	var (
		result   domain.IdempotencyRecord
		conflict error
	)
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketIdempotency)

		var existing idempotencyRecord
		found, err := getJSON(b, []byte(key), &existing)
		if err != nil {
			return err
		}
		if found && !existing.toDomain().Expired(now) {
			result = existing.toDomain()
			if existing.RequestHash != requestHash {
				conflict = domain.ErrIdempotencyHashMismatch
			} else {
				conflict = domain.ErrIdempotencyKeyAlreadyExists
			}
			return nil
		}

		rec := idempotencyRecord{
			Key:         key,
			RequestHash: requestHash,
			Status:      string(domain.IdempotencyStatusProcessing),
			TTLAt:       ttlAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		result = rec.toDomain()
		return putJSON(b, []byte(key), rec)
	})
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency record: %w", err)
	}
	return result, conflict
}

func (r *idempotencyRepository) Get(key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	var rec idempotencyRecord
	err := r.db.View(func(tx *bbolt.Tx) error {
		found, err := getJSON(tx.Bucket(bucketIdempotency), []byte(key), &rec)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrIdempotencyKeyNotFound
		}
		return nil
	})
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	return rec.toDomain(), nil
}

func (r *idempotencyRepository) MarkDone(key string, responseBody []byte, httpStatus int) error {
	return r.complete(key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *idempotencyRepository) MarkFailed(key string, responseBody []byte, httpStatus int) error {
	return r.complete(key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

func (r *idempotencyRepository) Release(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketIdempotency)

		var rec idempotencyRecord
		found, err := getJSON(b, []byte(key), &rec)
		if err != nil || !found || rec.Status != string(domain.IdempotencyStatusProcessing) {
			return err
		}
		return b.Delete([]byte(key))
	})
}

func (r *idempotencyRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	removed := 0
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketIdempotency)

		// Ключи собираем заранее: удаление во время обхода курсором небезопасно.
		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if limit > 0 && len(expired) >= limit {
				return nil
			}
			var rec idempotencyRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode idempotency record: %w", err)
			}
			if !rec.TTLAt.After(before) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency records: %w", err)
	}
	return removed, nil
}

func (r *idempotencyRepository) complete(key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketIdempotency)

		var rec idempotencyRecord
		found, err := getJSON(b, []byte(key), &rec)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrIdempotencyKeyNotFound
		}
		rec.Status = string(status)
		rec.ResponseBody = append([]byte(nil), responseBody...)
		rec.HTTPStatus = httpStatus
		rec.UpdatedAt = time.Now().UTC()
		return putJSON(b, []byte(key), rec)
	})
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
