package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/settlekit/internal/audit/domain"
	invoicedomain "github.com/smallbiznis/settlekit/internal/invoice/domain"
	rateconfigdomain "github.com/smallbiznis/settlekit/internal/rateconfig/domain"
	revenuedomain "github.com/smallbiznis/settlekit/internal/revenue/domain"
	sellertierdomain "github.com/smallbiznis/settlekit/internal/sellertier/domain"
	settlementdomain "github.com/smallbiznis/settlekit/internal/settlement/domain"
	"github.com/smallbiznis/settlekit/pkg/errs"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var fieldErr *errs.ValidationError
	if errors.As(err, &fieldErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   fieldErr.Field,
					Code:    fieldErr.Code,
					Message: validationErrorMessage(fieldErr.Code),
				},
			},
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, rateconfigdomain.ErrVersionConflict),
		errors.Is(err, settlementdomain.ErrInvalidTransition),
		errors.Is(err, invoicedomain.ErrSettlementNotFinal):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errs.IsConfiguration(err):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog reports the error type and code written on request logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 && payload.Errors[0].Code != "" {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError && errs.IsConfiguration(err) {
		code = "configuration"
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction),
		errors.Is(err, invoicedomain.ErrInvalidPrefix),
		errors.Is(err, sellertierdomain.ErrInvalidSeller):
		return true
	case isRevenueValidationError(err):
		return true
	default:
		return false
	}
}

func isRevenueValidationError(err error) bool {
	switch {
	case errors.Is(err, revenuedomain.ErrInvalidPreset),
		errors.Is(err, revenuedomain.ErrInvalidRange),
		errors.Is(err, revenuedomain.ErrInvalidGranularity),
		errors.Is(err, revenuedomain.ErrInvalidStream),
		errors.Is(err, revenuedomain.ErrInvalidCurrency),
		errors.Is(err, revenuedomain.ErrInvalidEntityType):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, settlementdomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, invoicedomain.ErrSettlementNotFound),
		errors.Is(err, sellertierdomain.ErrSellerNotFound),
		errors.Is(err, sellertierdomain.ErrStateNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "required":
		return "value is required"
	case "out_of_range":
		return "value out of range"
	case "invalid_format":
		return "invalid format"
	case "unsupported_value":
		return "unsupported value"
	default:
		return "invalid value"
	}
}
