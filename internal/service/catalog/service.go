package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const tracerName = "pos/catalog"

// Service выполняет операции над каталогом товаров.
type Service struct {
	repo   domain.ProductRepository
	logger *log.Entry
	tracer trace.Tracer
	newID  func() string
}

// NewService создаёт сервис каталога.
func NewService(repo domain.ProductRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	return &Service{
		repo:   repo,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		newID:  uuid.NewString,
	}
}

// List возвращает все товары, отсортированные по названию.
func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.List")
	defer span.End()

	products, err := s.repo.List(ctx)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Get возвращает товар или domain.ErrProductNotFound.
func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.Get", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	product, err := s.repo.Get(ctx, id)
	if err != nil {
		recordError(span, err)
		return domain.Product{}, err
	}
	return product, nil
}

// Create валидирует поля и сохраняет новый товар.
// Без id генерируется uuid; занятый id отклоняется с domain.ErrProductIDConflict.
func (s *Service) Create(ctx context.Context, fields domain.ProductFields) (domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.Create")
	defer span.End()

	if errs := fields.Validate(); len(errs) > 0 {
		err := domain.JoinErrors(errs)
		recordError(span, err)
		return domain.Product{}, err
	}

	id := fields.RequestedID()
	if id == "" {
		id = s.newID()
	}
	product := fields.ToProduct(id)
	span.SetAttributes(attribute.String("product.id", id))

	if err := s.repo.Create(ctx, product); err != nil {
		recordError(span, err)
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"name":       product.Name,
	}).Info("product created")
	return product, nil
}

// Update заменяет изменяемые поля товара с той же валидацией, что и Create.
func (s *Service) Update(ctx context.Context, id string, fields domain.ProductFields) (domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.Update", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	// id в теле игнорируется: идентификатор берётся из пути.
	fields.ID = nil
	if errs := fields.Validate(); len(errs) > 0 {
		err := domain.JoinErrors(errs)
		recordError(span, err)
		return domain.Product{}, err
	}

	product := fields.ToProduct(id)
	if err := s.repo.Update(ctx, product); err != nil {
		recordError(span, err)
		return domain.Product{}, err
	}

	s.logger.WithField("product_id", id).Info("product updated")
	return product, nil
}

// Delete удаляет товар. Позиции прошлых продаж остаются без изменений.
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "catalog.Delete", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		recordError(span, err)
		return err
	}

	s.logger.WithField("product_id", id).Info("product deleted")
	return nil
}

// SeedIfEmpty заполняет пустой каталог демонстрационными товарами.
// Возвращает число добавленных товаров.
func (s *Service) SeedIfEmpty(ctx context.Context, products []domain.Product) (int, error) {
	existing, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed catalog: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	seeded := 0
	for _, p := range products {
		if err := s.repo.Create(ctx, p); err != nil {
			if errors.Is(err, domain.ErrProductIDConflict) {
				continue
			}
			return seeded, fmt.Errorf("seed product %s: %w", p.ID, err)
		}
		seeded++
	}

	s.logger.WithField("count", seeded).Info("sample products seeded")
	return seeded, nil
}

// SampleProducts возвращает стартовый набор товаров для пустой базы.
func SampleProducts() []domain.Product {
	return []domain.Product{
		{
			ID:          "1",
			Name:        "Coffee",
			Description: "Hot brewed coffee",
			Category:    "Beverage",
			Price:       decimal.RequireFromString("2.99"),
			Quantity:    50,
		},
		{
			ID:          "2",
			Name:        "Sandwich",
			Description: "Fresh deli sandwich",
			Category:    "Food",
			Price:       decimal.RequireFromString("5.99"),
			Quantity:    25,
		},
		{
			ID:          "3",
			Name:        "Cake",
			Description: "Chocolate cake slice",
			Category:    "Dessert",
			Price:       decimal.RequireFromString("3.99"),
			Quantity:    15,
		},
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	if domain.IsNotFound(err) || errors.Is(err, domain.ErrValidation) {
		return
	}
	span.SetStatus(codes.Error, err.Error())
}
