package server

import (
	"errors"
	"net/http"

	agentdomain "github.com/datamartgh/datamart/internal/agent/domain"
	catalogdomain "github.com/datamartgh/datamart/internal/catalog/domain"
	commissiondomain "github.com/datamartgh/datamart/internal/commission/domain"
	"github.com/datamartgh/datamart/internal/dupcheck"
	orderdomain "github.com/datamartgh/datamart/internal/order/domain"
	walletdomain "github.com/datamartgh/datamart/internal/wallet/domain"
	"github.com/gin-gonic/gin"
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
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Errors    []ValidationError `json:"errors,omitempty"`
	Required  int64             `json:"required_minor,omitempty"`
	Available int64             `json:"available_minor,omitempty"`
	Duplicate *dupcheck.Result  `json:"duplicate,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
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

	var vErrs *ValidationErrors
	if errors.As(err, &vErrs) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErrs.Errors,
		}
	}

	var insufficient *walletdomain.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		return http.StatusPaymentRequired, errorPayload{
			Type:      "insufficient_balance",
			Message:   insufficient.Error(),
			Required:  insufficient.Required,
			Available: insufficient.Available,
		}
	}

	var duplicate *orderdomain.DuplicateOrderError
	if errors.As(err, &duplicate) {
		return http.StatusConflict, errorPayload{
			Type:      "duplicate_order",
			Message:   duplicate.Error(),
			Duplicate: duplicate.Result,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden), errors.Is(err, orderdomain.ErrNotOwner):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, orderdomain.ErrInvalidStatusTransition),
		errors.Is(err, orderdomain.ErrReportWindowClosed),
		errors.Is(err, orderdomain.ErrStorefrontNotAwaiting),
		errors.Is(err, walletdomain.ErrTopUpNotPending),
		errors.Is(err, commissiondomain.ErrAlreadyPaid),
		errors.Is(err, commissiondomain.ErrInvalidTransition),
		errors.Is(err, commissiondomain.ErrDuplicateGeneration):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, agentdomain.ErrAgentNotFound),
		errors.Is(err, catalogdomain.ErrBundleNotFound),
		errors.Is(err, walletdomain.ErrTopUpNotFound),
		errors.Is(err, commissiondomain.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, orderdomain.ErrNoItems),
		errors.Is(err, dupcheck.ErrInvalidBulkRow),
		errors.Is(err, walletdomain.ErrInvalidAmount):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}
