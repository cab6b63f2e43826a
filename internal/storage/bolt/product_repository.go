package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type productRepository struct {
	db *bbolt.DB
}

// NewProductRepository создаёт bbolt-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.db}
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make([]domain.Product, 0)
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketProducts).ForEach(func(_, v []byte) error {
			var rec productRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode product: %w", err)
			}
			result = append(result, rec.toDomain())
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	var rec productRecord
	err := r.db.View(func(tx *bbolt.Tx) error {
		found, err := getJSON(tx.Bucket(bucketProducts), []byte(id), &rec)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrProductNotFound
		}
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return rec.toDomain(), nil
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketProducts)
		if b.Get([]byte(product.ID)) != nil {
			return domain.ErrProductIDConflict
		}
		return putJSON(b, []byte(product.ID), toProductRecord(product))
	})
}

func (r *productRepository) Update(ctx context.Context, product domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketProducts)
		if b.Get([]byte(product.ID)) == nil {
			return domain.ErrProductNotFound
		}
		return putJSON(b, []byte(product.ID), toProductRecord(product))
	})
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketProducts)
		if b.Get([]byte(id)) == nil {
			return domain.ErrProductNotFound
		}
		return b.Delete([]byte(id))
	})
}

var _ domain.ProductRepository = (*productRepository)(nil)
