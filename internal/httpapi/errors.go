package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// Коды ошибок в теле ответа.
const (
	CodeValidation            = "ValidationError"
	CodeEmptyItemList         = "EmptyItemList"
	CodeProductNotFound       = "ProductNotFound"
	CodeNotFound              = "NotFound"
	CodeInsufficientStock     = "InsufficientStock"
	CodeIdempotencyMismatch   = "IdempotencyKeyReused"
	CodeIdempotencyInProgress = "IdempotencyInProgress"
	CodeStorageFailure        = "StorageFailure"
)

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// classify переводит доменную ошибку в HTTP-статус и тело ответа.
func classify(err error) (int, errorResponse) {
	var (
		stockErr   *domain.StockError
		missingErr *domain.MissingProductError
	)

	switch {
	case errors.As(err, &stockErr):
		return http.StatusBadRequest, errorResponse{
			Error: err.Error(),
			Code:  CodeInsufficientStock,
			Details: gin.H{
				"productId": stockErr.ProductID,
				"requested": stockErr.Requested,
				"available": stockErr.Available,
			},
		}
	case errors.As(err, &missingErr):
		return http.StatusNotFound, errorResponse{
			Error:   err.Error(),
			Code:    CodeProductNotFound,
			Details: gin.H{"productId": missingErr.ProductID},
		}
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error(), Code: CodeProductNotFound}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error(), Code: CodeNotFound}
	case errors.Is(err, domain.ErrEmptyItemList):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: CodeEmptyItemList}
	case errors.Is(err, domain.ErrValidation):
		resp := errorResponse{Error: err.Error(), Code: CodeValidation}
		if fields := validationFields(err); len(fields) > 0 {
			resp.Details = gin.H{"fields": fields}
		}
		return http.StatusBadRequest, resp
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: CodeIdempotencyMismatch}
	case errors.Is(err, domain.ErrIdempotencyInProgress):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: CodeIdempotencyInProgress}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal storage failure", Code: CodeStorageFailure}
	}
}

// writeError отвечает клиенту по таксономии ошибок; 5xx пишутся в лог уровнем error.
func writeError(c *gin.Context, logger *log.Entry, err error) {
	status, resp := classify(err)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).WithFields(log.Fields{
			"method": c.Request.Method,
			"route":  c.FullPath(),
		}).Error("request failed")
	}
	c.AbortWithStatusJSON(status, resp)
}

// bindError превращает ошибку разбора тела в ValidationError.
func bindError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		return &domain.ValidationError{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("must be of type %s", typeErr.Type),
		}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &domain.ValidationError{Field: "body", Message: "is not valid JSON"}
	default:
		return &domain.ValidationError{Field: "body", Message: err.Error()}
	}
}

func validationFields(err error) []fieldError {
	var fields []fieldError
	var walk func(error)
	walk = func(e error) {
		switch x := e.(type) {
		case *domain.ValidationError:
			fields = append(fields, fieldError{Field: x.Field, Message: x.Message})
			return
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				walk(inner)
			}
			return
		}
		if inner := errors.Unwrap(e); inner != nil {
			walk(inner)
		}
	}
	walk(err)
	return fields
}
