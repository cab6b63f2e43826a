// Package bolt хранит каталог, продажи, outbox и ключи идемпотентности
// во встроенной базе bbolt. Подходит для одного инстанса без внешней БД.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const defaultOpenTimeout = time.Second

var (
	bucketProducts    = []byte("products")
	bucketSales       = []byte("sales")
	bucketSaleIndex   = []byte("sale_index")
	bucketSaleItems   = []byte("sale_items")
	bucketOutbox      = []byte("outbox")
	bucketOutboxIndex = []byte("outbox_index")
	bucketIdempotency = []byte("idempotency")

	allBuckets = [][]byte{
		bucketProducts,
		bucketSales,
		bucketSaleIndex,
		bucketSaleItems,
		bucketOutbox,
		bucketOutboxIndex,
		bucketIdempotency,
	}
)

// Store оборачивает файл bbolt.
type Store struct {
	db *bbolt.DB
}

// Open открывает (или создаёт) файл базы и гарантирует наличие всех бакетов.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("bolt path is empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bolt directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: defaultOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Ping проверяет, что база открыта и читается.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("bolt store is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketProducts) == nil {
			return errors.New("bolt schema is missing")
		}
		return nil
	})
}

// Close закрывает файл базы.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path возвращает путь к файлу базы.
func (s *Store) Path() string {
	return s.db.Path()
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record %q: %w", key, err)
	}
	return b.Put(key, raw)
}

func getJSON(b *bbolt.Bucket, key []byte, v any) (bool, error) {
	raw := b.Get(key)
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode record %q: %w", key, err)
	}
	return true, nil
}
