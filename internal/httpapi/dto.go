package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func init() {
	// Цены и суммы уходят клиенту JSON-числами, а не строками.
	decimal.MarshalJSONWithoutQuotes = true
}

type productRequest struct {
	ID          *string          `json:"id"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int             `json:"quantity"`
}

func (r productRequest) toFields() domain.ProductFields {
	return domain.ProductFields{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Price:       r.Price,
		Quantity:    r.Quantity,
	}
}

type productResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Quantity:    p.Quantity,
	}
}

func toProductResponses(products []domain.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	return out
}

type saleLineRequest struct {
	ProductID string `json:"productId"`
	// product_id и id принимаются для совместимости со старыми клиентами.
	LegacyProductID string           `json:"product_id"`
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Price           *decimal.Decimal `json:"price"`
	Quantity        int              `json:"quantity"`
}

func (l saleLineRequest) productID() string {
	switch {
	case l.ProductID != "":
		return l.ProductID
	case l.LegacyProductID != "":
		return l.LegacyProductID
	default:
		return l.ID
	}
}

type saleRequest struct {
	Customer string            `json:"customer"`
	Items    []saleLineRequest `json:"items"`
}

func (r saleRequest) toDomain() domain.SaleRequest {
	lines := make([]domain.SaleLine, 0, len(r.Items))
	for _, item := range r.Items {
		lines = append(lines, domain.SaleLine{
			ProductID: item.productID(),
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}
	return domain.SaleRequest{Customer: r.Customer, Items: lines}
}

type saleItemResponse struct {
	ID        int64           `json:"id"`
	SaleID    string          `json:"saleId"`
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type saleResponse struct {
	ID       string             `json:"id"`
	Date     time.Time          `json:"date"`
	Customer string             `json:"customer"`
	Total    decimal.Decimal    `json:"total"`
	Items    []saleItemResponse `json:"items"`
}

func toSaleResponse(s domain.Sale) saleResponse {
	items := make([]saleItemResponse, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, saleItemResponse{
			ID:        item.ID,
			SaleID:    item.SaleID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}
	return saleResponse{
		ID:       s.ID,
		Date:     s.Date.UTC(),
		Customer: s.Customer,
		Total:    s.Total,
		Items:    items,
	}
}

func toSaleResponses(sales []domain.Sale) []saleResponse {
	out := make([]saleResponse, 0, len(sales))
	for _, s := range sales {
		out = append(out, toSaleResponse(s))
	}
	return out
}

type messageResponse struct {
	Message string           `json:"message"`
	Product *productResponse `json:"product,omitempty"`
}
