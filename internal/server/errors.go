package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/rollcallhq/rollcall/internal/account/domain"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	identitydomain "github.com/rollcallhq/rollcall/internal/identity/domain"
	orgdomain "github.com/rollcallhq/rollcall/internal/organization/domain"
	paymentdomain "github.com/rollcallhq/rollcall/internal/payment/domain"
	planchangedomain "github.com/rollcallhq/rollcall/internal/planchange/domain"
	quotadomain "github.com/rollcallhq/rollcall/internal/quota/domain"
	subscriptiondomain "github.com/rollcallhq/rollcall/internal/subscription/domain"
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
	Type       string                       `json:"type"`
	Message    string                       `json:"message"`
	Errors     []ValidationError            `json:"errors,omitempty"`
	Decision   *quotadomain.Decision        `json:"decision,omitempty"`
	Violations []planchangedomain.Violation `json:"violations,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
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

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{{
			Field:   field,
			Code:    code,
			Message: message,
		}},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	// A denied admission carries the full decision so the client can render
	// current usage, the limit, and the upgrade hint.
	var limitErr *quotadomain.LimitError
	if errors.As(err, &limitErr) {
		decision := limitErr.Decision
		return http.StatusPaymentRequired, errorPayload{
			Type:     "limit_exceeded",
			Message:  limitErr.Error(),
			Decision: &decision,
		}
	}

	// A blocked downgrade reports every violation at once.
	var violationsErr *planchangedomain.ViolationsError
	if errors.As(err, &violationsErr) {
		return http.StatusConflict, errorPayload{
			Type:       "plan_change_blocked",
			Message:    violationsErr.Error(),
			Violations: violationsErr.Violations,
		}
	}

	switch {
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isForbiddenError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Code:    err.Error(),
				Message: "invalid value",
			}},
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isUnauthorizedError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, identitydomain.ErrUnauthorized),
		errors.Is(err, identitydomain.ErrTokenExpired),
		errors.Is(err, identitydomain.ErrInvalidCredentials),
		errors.Is(err, paymentdomain.ErrInvalidSignature):
		return true
	default:
		return false
	}
}

func isForbiddenError(err error) bool {
	switch {
	case errors.Is(err, ErrForbidden),
		errors.Is(err, accountdomain.ErrNotPermitted),
		errors.Is(err, accountdomain.ErrNotOwned),
		errors.Is(err, orgdomain.ErrNotOwned):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, accountdomain.ErrEmailTaken),
		errors.Is(err, subscriptiondomain.ErrAlreadyExists),
		errors.Is(err, subscriptiondomain.ErrSamePackage),
		errors.Is(err, subscriptiondomain.ErrNotActive),
		errors.Is(err, orgdomain.ErrStillInUse):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, accountdomain.ErrNotFound),
		errors.Is(err, orgdomain.ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrNotFound),
		errors.Is(err, catalogdomain.ErrPackageNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, accountdomain.ErrInvalidEmail),
		errors.Is(err, accountdomain.ErrInvalidRole),
		errors.Is(err, accountdomain.ErrInvalidOrg),
		errors.Is(err, accountdomain.ErrCreatorMissing),
		errors.Is(err, accountdomain.ErrEmptyBatch),
		errors.Is(err, accountdomain.ErrBatchTooLarge),
		errors.Is(err, accountdomain.ErrBatchSpansOrgs),
		errors.Is(err, orgdomain.ErrInvalidType),
		errors.Is(err, orgdomain.ErrInvalidName),
		errors.Is(err, catalogdomain.ErrUnknownRole),
		errors.Is(err, subscriptiondomain.ErrInvalidOwner),
		errors.Is(err, subscriptiondomain.ErrRoleMismatch),
		errors.Is(err, planchangedomain.ErrRoleMismatch),
		errors.Is(err, quotadomain.ErrInvalidRequest),
		errors.Is(err, quotadomain.ErrMissingSubKey),
		errors.Is(err, paymentdomain.ErrInvalidProvider),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent):
		return true
	default:
		return false
	}
}
