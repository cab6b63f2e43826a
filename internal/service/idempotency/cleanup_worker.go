package idempotency

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

const (
	defaultCleanupInterval   = 10 * time.Minute
	defaultCleanupBatchSize  = 500
	defaultCleanupMaxBatches = 100
)

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupWorker)

func WithLogger(logger *log.Entry) CleanupOption {
	return func(w *CleanupWorker) { w.logger = logger }
}

func WithMetrics(m *metrics.IdempotencyMetrics) CleanupOption {
	return func(w *CleanupWorker) { w.metrics = m }
}

// WithInterval задаёт паузу между запусками очистки.
func WithInterval(interval time.Duration) CleanupOption {
	return func(w *CleanupWorker) { w.interval = interval }
}

// WithBatchSize задаёт, сколько ключей удаляется одним запросом к хранилищу.
func WithBatchSize(batchSize int) CleanupOption {
	return func(w *CleanupWorker) { w.batchSize = batchSize }
}

// WithMaxBatches ограничивает число batch'ей за один запуск; остаток удалит следующий.
func WithMaxBatches(n int) CleanupOption {
	return func(w *CleanupWorker) { w.maxBatches = n }
}

// CleanupWorker удаляет ключи идемпотентности продаж, у которых истёк TTL.
// После удаления клиент может повторить POST /api/sales с тем же ключом как новый запрос.
type CleanupWorker struct {
	repo       domain.IdempotencyRepository
	logger     *log.Entry
	metrics    *metrics.IdempotencyMetrics
	now        func() time.Time
	interval   time.Duration
	batchSize  int
	maxBatches int
}

func NewCleanupWorker(repo domain.IdempotencyRepository, options ...CleanupOption) *CleanupWorker {
	w := &CleanupWorker{
		repo:       repo,
		now:        time.Now,
		interval:   defaultCleanupInterval,
		batchSize:  defaultCleanupBatchSize,
		maxBatches: defaultCleanupMaxBatches,
	}
	for _, option := range options {
		option(w)
	}

	if w.logger == nil {
		w.logger = log.WithField("component", "idempotency-cleanup-worker")
	}
	if w.metrics == nil {
		w.metrics = metrics.NewIdempotencyMetrics()
	}
	if w.interval <= 0 {
		w.interval = defaultCleanupInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultCleanupBatchSize
	}
	if w.maxBatches <= 0 {
		w.maxBatches = defaultCleanupMaxBatches
	}
	return w
}

// Run чистит ключи сразу при старте и затем каждые interval до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup worker disabled: no repository")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *CleanupWorker) runOnce(ctx context.Context) {
	deleted, err := w.DeleteExpired(ctx, w.now().UTC())
	switch {
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		w.metrics.RecordCleanupRun("error")
		w.logger.WithError(err).WithField("deleted", deleted).Warn("idempotency cleanup run failed")
		return
	}

	w.metrics.RecordCleanupRun("ok")
	w.metrics.SetLastCleanupDeleted(deleted)
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("просроченные ключи идемпотентности удалены")
	}
}

// DeleteExpired удаляет записи с TTL <= before порциями по batchSize,
// пока хранилище отдаёт полные batch'и, но не больше maxBatches раз.
// Нулевой before означает текущее время.
func (w *CleanupWorker) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = w.now().UTC()
	}

	total := 0
	for batch := 0; batch < w.maxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := w.repo.DeleteExpired(before, w.batchSize)
		if err != nil {
			return total, err
		}
		if deleted > 0 {
			w.metrics.RecordCleanupDeleted(deleted)
		}
		total += deleted

		if deleted < w.batchSize {
			return total, nil
		}
	}

	w.logger.WithFields(log.Fields{
		"deleted":     total,
		"max_batches": w.maxBatches,
	}).Debug("cleanup batch limit reached, remaining keys left for next run")
	return total, nil
}
