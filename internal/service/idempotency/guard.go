package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

// DefaultTTL задаёт, сколько хранится ответ на запрос с idempotency-key.
const DefaultTTL = 24 * time.Hour

// Response описывает сохранённый ответ, который отдаётся при повторе запроса.
type Response struct {
	Status int
	Body   []byte
}

// Guard проверяет idempotency-key и кэширует итог обработки запроса.
type Guard struct {
	repo    domain.IdempotencyRepository
	ttl     time.Duration
	now     func() time.Time
	logger  *log.Entry
	metrics *metrics.IdempotencyMetrics
}

// NewGuard создаёт Guard. ttl <= 0 заменяется на DefaultTTL.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry, m *metrics.IdempotencyMetrics) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency")
	}
	if m == nil {
		m = metrics.NewIdempotencyMetrics()
	}
	return &Guard{
		repo:    repo,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		metrics: m,
	}
}

// RequestHash считает отпечаток запроса: метод, маршрут и тело.
func RequestHash(method, route string, body []byte) string {
	payload := make([]byte, 0, len(method)+len(route)+2+len(body))
	payload = append(payload, method...)
	payload = append(payload, ' ')
	payload = append(payload, route...)
	payload = append(payload, ':')
	payload = append(payload, body...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Begin занимает ключ под новый запрос.
// Если ключ уже завершён с тем же запросом, возвращается сохранённый ответ.
// domain.ErrIdempotencyHashMismatch и domain.ErrIdempotencyInProgress сигнализируют о конфликте.
func (g *Guard) Begin(key, requestHash string) (*Response, error) {
	record, err := g.repo.CreateProcessing(key, requestHash, g.now().UTC().Add(g.ttl))
	if err == nil {
		g.metrics.RecordRequest(metrics.IdempotencyResultNew)
		return nil, nil
	}

	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		g.metrics.RecordRequest(metrics.IdempotencyResultMismatch)
		return nil, err
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if record.Completed() {
			g.metrics.RecordRequest(metrics.IdempotencyResultReplayed)
			return &Response{Status: record.HTTPStatus, Body: record.ResponseBody}, nil
		}
		if record.Status == domain.IdempotencyStatusProcessing {
			g.metrics.RecordRequest(metrics.IdempotencyResultInProgress)
			return nil, domain.ErrIdempotencyInProgress
		}
		g.metrics.RecordRequest(metrics.IdempotencyResultError)
		return nil, fmt.Errorf("idempotency key %s has unknown status %q", key, record.Status)
	default:
		g.metrics.RecordRequest(metrics.IdempotencyResultError)
		return nil, fmt.Errorf("create idempotency record: %w", err)
	}
}

// Complete сохраняет итог запроса: 2xx помечаются done, 4xx failed.
// Ответ 5xx не кэшируется: ключ освобождается и клиент может повторить запрос.
func (g *Guard) Complete(key string, status int, body []byte) {
	var err error
	switch {
	case status >= http.StatusInternalServerError:
		err = g.repo.Release(key)
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		err = g.repo.MarkDone(key, body, status)
	default:
		err = g.repo.MarkFailed(key, body, status)
	}
	if err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}
}

// Abandon освобождает ключ запроса, обработка которого прервалась без ответа.
func (g *Guard) Abandon(key string) {
	if err := g.repo.Release(key); err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to release idempotency key")
	}
}
