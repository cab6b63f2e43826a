package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Product описывает товар каталога вместе с текущим складским остатком.
type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	// Price содержит цену за единицу, хранится как точное десятичное значение.
	Price decimal.Decimal
	// Quantity хранит остаток на складе, никогда не бывает отрицательным.
	Quantity int
}

// ProductFields содержит входные данные для создания и обновления товара.
// Указатели позволяют отличить отсутствующее поле от нулевого значения.
type ProductFields struct {
	ID          *string
	Name        *string
	Description *string
	Category    *string
	Price       *decimal.Decimal
	Quantity    *int
}

// Validate проверяет обязательные поля и возвращает список замечаний.
func (f ProductFields) Validate() []error {
	var errs []error

	if f.Name == nil || strings.TrimSpace(*f.Name) == "" {
		errs = append(errs, &ValidationError{Field: "name", Message: "is required"})
	}
	if f.Category == nil || strings.TrimSpace(*f.Category) == "" {
		errs = append(errs, &ValidationError{Field: "category", Message: "is required"})
	}
	switch {
	case f.Price == nil:
		errs = append(errs, &ValidationError{Field: "price", Message: "is required"})
	case f.Price.IsNegative():
		errs = append(errs, &ValidationError{Field: "price", Message: "must not be negative"})
	}
	switch {
	case f.Quantity == nil:
		errs = append(errs, &ValidationError{Field: "quantity", Message: "is required"})
	case *f.Quantity < 0:
		errs = append(errs, &ValidationError{Field: "quantity", Message: "must not be negative"})
	}
	if f.ID != nil && *f.ID != "" && strings.TrimSpace(*f.ID) == "" {
		errs = append(errs, &ValidationError{Field: "id", Message: "must not be blank"})
	}

	return errs
}

// ToProduct собирает товар с заданным идентификатором. Вызывать после Validate.
func (f ProductFields) ToProduct(id string) Product {
	p := Product{ID: id}
	if f.Name != nil {
		p.Name = strings.TrimSpace(*f.Name)
	}
	if f.Description != nil {
		p.Description = *f.Description
	}
	if f.Category != nil {
		p.Category = strings.TrimSpace(*f.Category)
	}
	if f.Price != nil {
		p.Price = *f.Price
	}
	if f.Quantity != nil {
		p.Quantity = *f.Quantity
	}
	return p
}

// RequestedID возвращает id, переданный клиентом, или пустую строку.
func (f ProductFields) RequestedID() string {
	if f.ID == nil {
		return ""
	}
	return strings.TrimSpace(*f.ID)
}
