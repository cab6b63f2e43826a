package httpapi

import (
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/idempotency"
)

// Options задаёт необязательные зависимости роутера.
type Options struct {
	Logger *log.Entry
	// Metrics собирает HTTP-метрики; nil отключает их сбор.
	Metrics *metrics.HTTPMetrics
	// AllowedOrigins перечисляет разрешённые CORS-источники; пустой список разрешает все.
	AllowedOrigins []string
	// Idempotency включает поддержку Idempotency-Key для POST /api/sales.
	Idempotency *idempotency.Guard
	// ServiceName используется как имя сервиса в span'ах otelgin.
	ServiceName string
}

// NewRouter собирает gin-роутер REST API.
func NewRouter(products ProductService, sales SaleService, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "pos-service"
	}

	r := gin.New()
	r.Use(recovery(logger))
	r.Use(otelgin.Middleware(serviceName))
	r.Use(accessLog(logger))
	if opts.Metrics != nil {
		r.Use(observeRequests(opts.Metrics))
	}
	r.Use(corsPolicy(opts.AllowedOrigins))

	h := &handler{products: products, sales: sales, logger: logger}

	api := r.Group("/api")
	{
		api.GET("/products", h.listProducts)
		api.GET("/products/:id", h.getProduct)
		api.POST("/products", h.createProduct)
		api.PUT("/products/:id", h.updateProduct)
		api.DELETE("/products/:id", h.deleteProduct)

		api.GET("/sales", h.listSales)
		api.GET("/sales/:id", h.getSale)
		api.POST("/sales", idempotent(opts.Idempotency, logger), h.recordSale)
	}

	return r
}
