package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

const tracerName = "pos/sales"

// Option настраивает Engine.
type Option func(*Engine)

// WithMetrics подключает prometheus-метрики продаж.
func WithMetrics(m *metrics.SalesMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock подменяет источник времени продажи.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов продаж и outbox-сообщений.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// WithTracer задаёт tracer; по умолчанию берётся глобальный провайдер.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// Engine записывает продажи и отдаёт их историю.
type Engine struct {
	store   domain.SaleStore
	logger  *log.Entry
	metrics *metrics.SalesMetrics
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string
}

// NewEngine создаёт движок продаж поверх транзакционного хранилища.
func NewEngine(store domain.SaleStore, logger *log.Entry, options ...Option) *Engine {
	if logger == nil {
		logger = log.New().WithField("component", "sales")
	}
	e := &Engine{
		store:  store,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// RecordSale атомарно проверяет остатки, списывает их и сохраняет продажу.
// Любая ошибка откатывает все изменения; повторных попыток нет.
func (e *Engine) RecordSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	ctx, span := e.tracer.Start(ctx, "sales.RecordSale")
	defer span.End()
	span.SetAttributes(attribute.Int("sale.lines", len(req.Items)))

	start := time.Now()
	if e.metrics != nil {
		e.metrics.RecordSaleStarted()
		defer func() {
			e.metrics.RecordSaleFinished(time.Since(start))
		}()
	}

	if errs := req.Validate(); len(errs) > 0 {
		err := domain.JoinErrors(errs)
		e.fail(span, err)
		return domain.Sale{}, err
	}

	var sale domain.Sale
	err := e.store.WithinSaleTx(ctx, func(tx domain.SaleTx) error {
		var err error
		sale, err = e.recordInTx(tx, req)
		return err
	})
	if err != nil {
		e.fail(span, err)
		return domain.Sale{}, err
	}

	units := 0
	for _, item := range sale.Items {
		units += item.Quantity
	}
	if e.metrics != nil {
		e.metrics.RecordSaleCommitted(len(sale.Items), units, sale.Total)
	}
	span.SetAttributes(
		attribute.String("sale.id", sale.ID),
		attribute.String("sale.total", sale.Total.String()),
	)
	e.logger.WithFields(log.Fields{
		"sale_id": sale.ID,
		"items":   len(sale.Items),
		"units":   units,
		"total":   sale.Total.String(),
	}).Info("sale recorded")

	return sale, nil
}

func (e *Engine) recordInTx(tx domain.SaleTx, req domain.SaleRequest) (domain.Sale, error) {
	locked, err := tx.LockProducts(req.ProductIDs())
	if err != nil {
		return domain.Sale{}, fmt.Errorf("lock products: %w", err)
	}

	// Дата фиксируется под блокировкой, чтобы порядок дат совпадал с порядком коммитов.
	sale := domain.Sale{
		ID:       e.newID(),
		Date:     e.now().UTC(),
		Customer: req.CustomerOrDefault(),
	}

	// Остатки с учётом предыдущих строк этой же продажи.
	available := make(map[string]int, len(locked))
	for id, product := range locked {
		available[id] = product.Quantity
	}

	sale.Items = make([]domain.SaleItem, 0, len(req.Items))
	for _, line := range req.Items {
		product, ok := locked[line.ProductID]
		if !ok {
			return domain.Sale{}, &domain.MissingProductError{ProductID: line.ProductID}
		}
		if line.Quantity > available[line.ProductID] {
			return domain.Sale{}, &domain.StockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: available[line.ProductID],
			}
		}
		if err := tx.DecrementStock(line.ProductID, line.Quantity); err != nil {
			return domain.Sale{}, fmt.Errorf("decrement stock for product %s: %w", line.ProductID, err)
		}
		available[line.ProductID] -= line.Quantity

		item := domain.SaleItem{
			SaleID:    sale.ID,
			ProductID: line.ProductID,
			Name:      line.Name,
			Price:     product.Price,
			Quantity:  line.Quantity,
		}
		if item.Name == "" {
			item.Name = product.Name
		}
		if line.Price != nil {
			item.Price = *line.Price
		}

		stored, err := tx.InsertSaleItem(item)
		if err != nil {
			return domain.Sale{}, fmt.Errorf("insert sale item: %w", err)
		}
		sale.Items = append(sale.Items, stored)
	}

	sale.Total = domain.CalculateTotal(sale.Items)
	if errs := sale.ValidateInvariants(); len(errs) > 0 {
		return domain.Sale{}, domain.JoinErrors(errs)
	}

	if err := tx.InsertSale(sale); err != nil {
		return domain.Sale{}, fmt.Errorf("insert sale: %w", err)
	}

	payload, err := json.Marshal(kafka.NewSaleRecordedEvent(sale))
	if err != nil {
		return domain.Sale{}, fmt.Errorf("marshal sale event: %w", err)
	}
	if err := tx.EnqueueOutbox(domain.OutboxMessage{
		ID:            e.newID(),
		AggregateType: domain.AggregateTypeSale,
		AggregateID:   sale.ID,
		EventType:     domain.EventTypeSaleRecorded,
		Payload:       payload,
		CreatedAt:     sale.Date,
	}); err != nil {
		return domain.Sale{}, fmt.Errorf("enqueue sale event: %w", err)
	}

	return sale, nil
}

// ListSales возвращает все продажи от новых к старым.
func (e *Engine) ListSales(ctx context.Context) ([]domain.Sale, error) {
	ctx, span := e.tracer.Start(ctx, "sales.ListSales")
	defer span.End()

	sales, err := e.store.ListSales(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list sales: %w", err)
	}
	span.SetAttributes(attribute.Int("sales.count", len(sales)))
	return sales, nil
}

// GetSale возвращает продажу по id или domain.ErrSaleNotFound.
func (e *Engine) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	ctx, span := e.tracer.Start(ctx, "sales.GetSale", trace.WithAttributes(attribute.String("sale.id", id)))
	defer span.End()

	sale, err := e.store.GetSale(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrSaleNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return domain.Sale{}, err
	}
	return sale, nil
}

func (e *Engine) fail(span trace.Span, err error) {
	reason := FailureReason(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	if e.metrics != nil {
		e.metrics.RecordSaleFailed(reason)
	}

	entry := e.logger.WithError(err).WithField("reason", reason)
	if reason == metrics.SaleFailureStorage {
		entry.Error("sale transaction failed")
		return
	}
	entry.Warn("sale rejected")
}

// FailureReason классифицирует ошибку записи продажи для метрик и логов.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return metrics.SaleFailureInsufficientStock
	case errors.Is(err, domain.ErrNotFound):
		return metrics.SaleFailureProductNotFound
	case errors.Is(err, domain.ErrValidation):
		return metrics.SaleFailureValidation
	default:
		return metrics.SaleFailureStorage
	}
}
