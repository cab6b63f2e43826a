package domain_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func ptr[T any](v T) *T { return &v }

// helper для заполненного набора полей товара.
func makeFields() domain.ProductFields {
	return domain.ProductFields{
		Name:        ptr("Coffee"),
		Description: ptr("Hot brewed coffee"),
		Category:    ptr("Beverage"),
		Price:       ptr(decimal.RequireFromString("2.99")),
		Quantity:    ptr(50),
	}
}

func TestProductFieldsValidate_Ok(t *testing.T) {
	fields := makeFields()
	if errs := fields.Validate(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}

	fields.Description = nil
	fields.Quantity = ptr(0)
	fields.Price = ptr(decimal.Zero)
	if errs := fields.Validate(); len(errs) != 0 {
		t.Fatalf("zero price/quantity and no description must be valid, got %v", errs)
	}
}

func TestProductFieldsValidate_Errors(t *testing.T) {
	cases := []struct {
		name  string
		field string
		mut   func(f *domain.ProductFields)
	}{
		{name: "no name", field: "name", mut: func(f *domain.ProductFields) { f.Name = nil }},
		{name: "blank name", field: "name", mut: func(f *domain.ProductFields) { f.Name = ptr("   ") }},
		{name: "no category", field: "category", mut: func(f *domain.ProductFields) { f.Category = nil }},
		{name: "no price", field: "price", mut: func(f *domain.ProductFields) { f.Price = nil }},
		{name: "negative price", field: "price", mut: func(f *domain.ProductFields) { f.Price = ptr(decimal.NewFromInt(-1)) }},
		{name: "no quantity", field: "quantity", mut: func(f *domain.ProductFields) { f.Quantity = nil }},
		{name: "negative quantity", field: "quantity", mut: func(f *domain.ProductFields) { f.Quantity = ptr(-3) }},
		{name: "blank id", field: "id", mut: func(f *domain.ProductFields) { f.ID = ptr("  ") }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := makeFields()
			tc.mut(&fields)
			errs := fields.Validate()
			if len(errs) != 1 {
				t.Fatalf("expected exactly one error, got %v", errs)
			}
			var vErr *domain.ValidationError
			if !errors.As(errs[0], &vErr) || vErr.Field != tc.field {
				t.Fatalf("expected validation error on %q, got %v", tc.field, errs[0])
			}
		})
	}
}

func TestProductFieldsToProduct(t *testing.T) {
	fields := makeFields()
	fields.Name = ptr("  Coffee ")
	fields.ID = ptr(" 7 ")

	if got := fields.RequestedID(); got != "7" {
		t.Fatalf("RequestedID() = %q", got)
	}

	p := fields.ToProduct("7")
	if p.ID != "7" || p.Name != "Coffee" || p.Category != "Beverage" || p.Quantity != 50 {
		t.Fatalf("unexpected product %+v", p)
	}
	if !p.Price.Equal(decimal.RequireFromString("2.99")) {
		t.Fatalf("unexpected price %s", p.Price)
	}
}
