package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// ProductService описывает операции каталога, доступные HTTP-слою.
type ProductService interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (domain.Product, error)
	Create(ctx context.Context, fields domain.ProductFields) (domain.Product, error)
	Update(ctx context.Context, id string, fields domain.ProductFields) (domain.Product, error)
	Delete(ctx context.Context, id string) error
}

// SaleService записывает и читает продажи.
type SaleService interface {
	RecordSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
	GetSale(ctx context.Context, id string) (domain.Sale, error)
}

type handler struct {
	products ProductService
	sales    SaleService
	logger   *log.Entry
}

func (h *handler) listProducts(c *gin.Context) {
	products, err := h.products.List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponses(products))
}

func (h *handler) getProduct(c *gin.Context) {
	product, err := h.products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(product))
}

func (h *handler) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}

	product, err := h.products.Create(c.Request.Context(), req.toFields())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, toProductResponse(product))
}

func (h *handler) updateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}

	product, err := h.products.Update(c.Request.Context(), c.Param("id"), req.toFields())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	resp := toProductResponse(product)
	c.JSON(http.StatusOK, messageResponse{Message: "product updated", Product: &resp})
}

func (h *handler) deleteProduct(c *gin.Context) {
	if err := h.products.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "product deleted"})
}

func (h *handler) listSales(c *gin.Context) {
	sales, err := h.sales.ListSales(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toSaleResponses(sales))
}

func (h *handler) getSale(c *gin.Context) {
	sale, err := h.sales.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toSaleResponse(sale))
}

func (h *handler) recordSale(c *gin.Context) {
	var req saleRequest
	// Пустое тело равносильно продаже без позиций.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, h.logger, bindError(err))
		return
	}

	sale, err := h.sales.RecordSale(c.Request.Context(), req.toDomain())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, toSaleResponse(sale))
}
