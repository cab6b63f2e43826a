package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/storage/bolt"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
	"github.com/vladislavdragonenkov/pos/internal/storage/postgres"
)

const storagePingTimeout = 2 * time.Second

type runtimeDependencies struct {
	products        domain.ProductRepository
	sales           domain.SaleStore
	outboxRepo      domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository
	storageChecker  healthcheck.Checker
	closeFn         func() error
}

// initRuntimeDependencies открывает выбранное хранилище и собирает репозитории поверх него.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if driver == "" {
		driver = StorageDriverMemory
	}

	switch driver {
	case StorageDriverMemory:
		outboxRepo := memory.NewOutboxRepository()
		store := memory.NewStore(outboxRepo)
		logger.Info("используется in-memory хранилище")
		return runtimeDependencies{
			products:        memory.NewProductRepository(store),
			sales:           memory.NewSaleStore(store),
			outboxRepo:      outboxRepo,
			idempotencyRepo: memory.NewIdempotencyRepository(),
			storageChecker:  healthcheck.NewPingChecker("storage", storagePingTimeout, store.Ping),
		}, nil

	case StorageDriverPostgres:
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return runtimeDependencies{}, errors.New("postgres storage requires a DSN")
		}
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return runtimeDependencies{}, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("миграции postgres применены")
		}
		logger.Info("используется postgres хранилище")
		return runtimeDependencies{
			products:        postgres.NewProductRepository(store),
			sales:           postgres.NewSaleStore(store),
			outboxRepo:      postgres.NewOutboxRepository(store),
			idempotencyRepo: postgres.NewIdempotencyRepository(store),
			storageChecker:  healthcheck.NewPingChecker("storage", storagePingTimeout, store.Ping),
			closeFn:         store.Close,
		}, nil

	case StorageDriverBolt:
		path := strings.TrimSpace(cfg.BoltPath)
		if path == "" {
			return runtimeDependencies{}, errors.New("bolt storage requires a file path")
		}
		store, err := bolt.Open(path)
		if err != nil {
			return runtimeDependencies{}, err
		}
		logger.WithField("path", store.Path()).Info("используется bolt хранилище")
		return runtimeDependencies{
			products:        bolt.NewProductRepository(store),
			sales:           bolt.NewSaleStore(store),
			outboxRepo:      bolt.NewOutboxRepository(store),
			idempotencyRepo: bolt.NewIdempotencyRepository(store),
			storageChecker:  healthcheck.NewPingChecker("storage", storagePingTimeout, store.Ping),
			closeFn:         store.Close,
		}, nil

	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func closeRuntimeDependencies(deps runtimeDependencies, logger *log.Entry) {
	if deps.closeFn == nil {
		return
	}
	if err := deps.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
		return
	}
	logger.Info("хранилище закрыто")
}

// outboxBacklogChecker переводит сервис в degraded, когда неотправленных событий больше limit.
type outboxBacklogChecker struct {
	repo  domain.OutboxRepository
	limit int
}

func (c outboxBacklogChecker) Check(ctx context.Context) healthcheck.Check {
	start := time.Now()
	stats, err := c.repo.Stats()
	if err == nil {
		err = ctx.Err()
	}
	check := healthcheck.Check{
		Name:       "outbox",
		Status:     healthcheck.StatusHealthy,
		DurationMs: time.Since(start).Milliseconds(),
	}
	switch {
	case err != nil:
		check.Status = healthcheck.StatusUnhealthy
		check.Message = err.Error()
	case c.limit > 0 && stats.PendingCount > c.limit:
		check.Status = healthcheck.StatusDegraded
		check.Message = fmt.Sprintf("%d pending messages exceed limit %d", stats.PendingCount, c.limit)
	}
	return check
}
