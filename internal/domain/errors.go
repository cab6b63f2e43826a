package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation базовая ошибка некорректных входных данных (HTTP 400).
	ErrValidation = errors.New("validation failed")
	// ErrNotFound базовая ошибка отсутствующей сущности (HTTP 404).
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock: запрошено больше товара, чем есть на складе.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrProductNotFound возвращается, если товара нет в каталоге.
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	// ErrSaleNotFound возвращается, если продажа не найдена.
	ErrSaleNotFound = fmt.Errorf("sale %w", ErrNotFound)
	// ErrEmptyItemList возвращается для продажи без позиций.
	ErrEmptyItemList = fmt.Errorf("%w: sale must contain at least one item", ErrValidation)
	// ErrProductIDConflict: переданный клиентом id уже занят другим товаром.
	ErrProductIDConflict = fmt.Errorf("%w: product id already exists", ErrValidation)

	// ErrOutboxPublish означает ошибку при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
	// ErrIdempotencyKeyAlreadyExists: ключ уже использовался с тем же телом запроса.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch: ключ уже использовался с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyInProgress: запрос с тем же ключом ещё обрабатывается.
	ErrIdempotencyInProgress = errors.New("request with the same idempotency key is already processing")
)

// ValidationError описывает проблему с конкретным полем запроса.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// MissingProductError сообщает, какой именно товар из продажи не найден.
type MissingProductError struct {
	ProductID string
}

func (e *MissingProductError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *MissingProductError) Unwrap() error { return ErrProductNotFound }

// StockError фиксирует позицию, для которой не хватило остатка.
type StockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// JoinErrors склеивает список ошибок валидации в одну ошибку.
// errors.Is/As продолжают работать для каждой вложенной ошибки.
func JoinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return &joinedError{errs: append([]error(nil), errs...)}
	}
}

type joinedError struct {
	errs []error
}

func (e *joinedError) Error() string {
	parts := make([]string, 0, len(e.errs))
	for _, err := range e.errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

func (e *joinedError) Unwrap() []error { return e.errs }

// IsNotFound проверяет, относится ли ошибка к отсутствующей сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsIdempotencyConflict проверяет, что ключ идемпотентности уже занят.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
