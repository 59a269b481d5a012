package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/societybill/internal/authorization"
	billdomain "github.com/smallbiznis/societybill/internal/bill/domain"
	ruledomain "github.com/smallbiznis/societybill/internal/maintenancerule/domain"
	unitdomain "github.com/smallbiznis/societybill/internal/unit/domain"
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
	Type           string            `json:"type"`
	Message        string            `json:"message"`
	Errors         []ValidationError `json:"errors,omitempty"`
	ExistingBillID string            `json:"existing_bill_id,omitempty"`
	RequiredAmount string            `json:"required_amount,omitempty"`
	AmountPaid     string            `json:"amount_paid,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
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

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var duplicate *billdomain.DuplicateBillError
	if errors.As(err, &duplicate) {
		payload := errorPayload{
			Type:    "duplicate_bill",
			Message: "a bill already exists for this unit and month",
		}
		if duplicate.ExistingBillID != 0 {
			payload.ExistingBillID = duplicate.ExistingBillID.String()
		}
		return http.StatusConflict, payload
	}

	var insufficient *billdomain.InsufficientPaymentError
	if errors.As(err, &insufficient) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:           "insufficient_payment",
			Message:        "amount paid is less than the bill total",
			RequiredAmount: insufficient.Required.StringFixed(2),
			AmountPaid:     insufficient.Paid.StringFixed(2),
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, billdomain.ErrDuplicateBill):
		return http.StatusConflict, errorPayload{
			Type:    "duplicate_bill",
			Message: "a bill already exists for this unit and month",
		}
	case errors.Is(err, billdomain.ErrAlreadyPaid):
		return http.StatusConflict, errorPayload{
			Type:    "already_paid",
			Message: "bill is already paid",
		}
	case errors.Is(err, billdomain.ErrNoApplicableRule):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "no_applicable_rule",
			Message: "no active maintenance rule applies to this unit",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the envelope type and a bounded code for request logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return payload.Type, "internal"
	}
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
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
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isRuleValidationError(err),
		isBillValidationError(err),
		isUnitValidationError(err),
		isAuthorizationValidationError(err):
		return true
	default:
		return false
	}
}

func isRuleValidationError(err error) bool {
	switch {
	case errors.Is(err, ruledomain.ErrInvalidSociety),
		errors.Is(err, ruledomain.ErrInvalidID),
		errors.Is(err, ruledomain.ErrInvalidScope),
		errors.Is(err, ruledomain.ErrInvalidScopeRef),
		errors.Is(err, ruledomain.ErrInvalidAmountType),
		errors.Is(err, ruledomain.ErrInvalidAmount),
		errors.Is(err, ruledomain.ErrInvalidBHKAmounts),
		errors.Is(err, ruledomain.ErrInvalidBillingDay),
		errors.Is(err, ruledomain.ErrInvalidDueDays),
		errors.Is(err, ruledomain.ErrInvalidPenaltyType),
		errors.Is(err, ruledomain.ErrInvalidPenaltyValue),
		errors.Is(err, ruledomain.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}

func isBillValidationError(err error) bool {
	switch {
	case errors.Is(err, billdomain.ErrInvalidSociety),
		errors.Is(err, billdomain.ErrInvalidUnit),
		errors.Is(err, billdomain.ErrInvalidID),
		errors.Is(err, billdomain.ErrInvalidForMonth),
		errors.Is(err, billdomain.ErrInvalidStatus),
		errors.Is(err, billdomain.ErrInvalidPaymentMethod),
		errors.Is(err, billdomain.ErrInvalidTransactionRef),
		errors.Is(err, billdomain.ErrInvalidAmountPaid),
		errors.Is(err, billdomain.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}

func isUnitValidationError(err error) bool {
	switch {
	case errors.Is(err, unitdomain.ErrInvalidSociety),
		errors.Is(err, unitdomain.ErrInvalidBuilding),
		errors.Is(err, unitdomain.ErrInvalidBHKType):
		return true
	default:
		return false
	}
}

func isAuthorizationValidationError(err error) bool {
	switch {
	case errors.Is(err, authorization.ErrInvalidSociety),
		errors.Is(err, authorization.ErrInvalidObject),
		errors.Is(err, authorization.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ruledomain.ErrNotFound),
		errors.Is(err, billdomain.ErrNotFound),
		errors.Is(err, billdomain.ErrUnitNotFound),
		errors.Is(err, unitdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
