package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCustomer подставляется, если покупатель не указан.
const DefaultCustomer = "Walk-in Customer"

// Sale описывает зафиксированную продажу. После коммита не изменяется.
type Sale struct {
	ID       string
	Date     time.Time
	Customer string
	Total    decimal.Decimal
	Items    []SaleItem
}

// SaleItem хранит позицию продажи со снимком названия и цены на момент продажи.
type SaleItem struct {
	// ID назначается хранилищем и растёт в порядке вставки.
	ID        int64
	SaleID    string
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

// SaleLine описывает позицию во входящем запросе на продажу.
type SaleLine struct {
	ProductID string
	// Name и Price необязательны: при отсутствии берутся из текущей карточки товара.
	Name     string
	Price    *decimal.Decimal
	Quantity int
}

// SaleRequest содержит запрос на оформление продажи.
type SaleRequest struct {
	Customer string
	Items    []SaleLine
}

// Validate проверяет запрос до открытия транзакции.
func (r SaleRequest) Validate() []error {
	if len(r.Items) == 0 {
		return []error{ErrEmptyItemList}
	}

	var errs []error
	for i, line := range r.Items {
		field := "items[" + strconv.Itoa(i) + "]"
		if strings.TrimSpace(line.ProductID) == "" {
			errs = append(errs, &ValidationError{Field: field + ".productId", Message: "is required"})
		}
		if line.Quantity <= 0 {
			errs = append(errs, &ValidationError{Field: field + ".quantity", Message: "must be a positive integer"})
		}
		if line.Price != nil && line.Price.IsNegative() {
			errs = append(errs, &ValidationError{Field: field + ".price", Message: "must not be negative"})
		}
	}
	return errs
}

// CustomerOrDefault возвращает имя покупателя или DefaultCustomer.
func (r SaleRequest) CustomerOrDefault() string {
	if name := strings.TrimSpace(r.Customer); name != "" {
		return name
	}
	return DefaultCustomer
}

// ProductIDs возвращает уникальные id товаров в порядке первого упоминания.
func (r SaleRequest) ProductIDs() []string {
	seen := make(map[string]struct{}, len(r.Items))
	ids := make([]string, 0, len(r.Items))
	for _, line := range r.Items {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}

// LineTotal возвращает стоимость позиции: price * quantity.
func (i SaleItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CalculateTotal суммирует стоимость позиций без округления.
func CalculateTotal(items []SaleItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// ValidateInvariants проверяет собранную продажу перед сохранением.
func (s *Sale) ValidateInvariants() []error {
	var errs []error

	if s.ID == "" {
		errs = append(errs, &ValidationError{Field: "id", Message: "is required"})
	}
	if s.Date.IsZero() {
		errs = append(errs, &ValidationError{Field: "date", Message: "is required"})
	}
	if len(s.Items) == 0 {
		errs = append(errs, ErrEmptyItemList)
	}
	for _, item := range s.Items {
		if item.SaleID != s.ID {
			errs = append(errs, &ValidationError{Field: "items.saleId", Message: "does not match sale id"})
		}
		if item.Quantity <= 0 {
			errs = append(errs, &ValidationError{Field: "items.quantity", Message: "must be a positive integer"})
		}
		if item.Price.IsNegative() {
			errs = append(errs, &ValidationError{Field: "items.price", Message: "must not be negative"})
		}
	}
	// Итог должен совпадать с суммой позиций до последнего знака.
	if !s.Total.Equal(CalculateTotal(s.Items)) {
		errs = append(errs, &ValidationError{Field: "total", Message: "does not match items"})
	}

	return errs
}
