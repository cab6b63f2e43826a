package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
	"github.com/vladislavdragonenkov/pos/internal/service/idempotency"
)

// IdempotencyKeyHeader задаёт заголовок с ключом идемпотентности запроса.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReplayedHeader выставляется на ответах, отданных из кэша идемпотентности.
const ReplayedHeader = "Idempotency-Replayed"

func accessLog(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(log.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("http request")
		case status >= http.StatusBadRequest:
			entry.Warn("http request")
		default:
			entry.Debug("http request")
		}
	}
}

func observeRequests(m *metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

func recovery(logger *log.Entry) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.WithFields(log.Fields{
			"panic":  recovered,
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Error("panic while handling request")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Error: "internal error",
			Code:  CodeStorageFailure,
		})
	})
}

// corsPolicy пропускает запросы без Origin; запрещённый Origin получает 403.
// Пустой список разрешает все источники.
func corsPolicy(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", IdempotencyKeyHeader},
		MaxAge:       12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// idempotent делает обработчик повторяемым по Idempotency-Key.
// Без заголовка запрос обрабатывается как обычно.
func idempotent(guard *idempotency.Guard, logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
		if guard == nil || key == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			writeError(c, logger, &domain.ValidationError{Field: "body", Message: "cannot be read"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		replay, err := guard.Begin(key, idempotency.RequestHash(c.Request.Method, c.FullPath(), canonicalJSON(body)))
		if err != nil {
			if !errors.Is(err, domain.ErrIdempotencyHashMismatch) && !errors.Is(err, domain.ErrIdempotencyInProgress) {
				logger.WithError(err).WithField("idempotency_key", key).Warn("idempotency check failed")
			}
			writeError(c, logger, err)
			return
		}
		if replay != nil {
			c.Header(ReplayedHeader, "true")
			c.Data(replay.Status, "application/json; charset=utf-8", replay.Body)
			c.Abort()
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		defer func() {
			if r := recover(); r != nil {
				guard.Abandon(key)
				panic(r)
			}
		}()
		c.Next()

		guard.Complete(key, recorder.Status(), recorder.body.Bytes())
	}
}

// canonicalJSON убирает незначащие пробелы, чтобы форматирование тела не влияло на хеш.
func canonicalJSON(body []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return body
	}
	return buf.Bytes()
}
