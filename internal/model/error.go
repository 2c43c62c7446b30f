package model

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON         = "INVALID_JSON"
	ErrCodeMissingField        = "MISSING_FIELD"
	ErrCodeValidation          = "VALIDATION_FAILED"
	ErrCodeInvalidPromoCode    = "INVALID_PROMO_CODE"
	ErrCodeInvalidPromoLength  = "INVALID_PROMO_LENGTH"
	ErrCodeCouponExpired       = "COUPON_EXPIRED"
	ErrCodeCouponExhausted     = "COUPON_EXHAUSTED"
	ErrCodeRaceNotFound        = "RACE_NOT_FOUND"
	ErrCodeOrderNotFound       = "ORDER_NOT_FOUND"
	ErrCodeInvalidQuantity     = "INVALID_QUANTITY"
	ErrCodeInvalidLineKey      = "INVALID_LINE_KEY"
	ErrCodeEmptyCart           = "EMPTY_CART"
	ErrCodeMixedRaceCart       = "MIXED_RACE_CART"
	ErrCodePaymentNotConfirmed = "PAYMENT_NOT_CONFIRMED"
	ErrCodePaymentAlreadyUsed  = "PAYMENT_ALREADY_USED"
	ErrCodeUnauthenticated     = "UNAUTHENTICATED"
	ErrCodeUnauthorised        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrInvalidPromoCode    = NewDomainError(ErrCodeInvalidPromoCode, "Promo code does not exist or is inactive")
	ErrInvalidPromoLength  = NewDomainError(ErrCodeInvalidPromoLength, "Promo code must be between 4 and 20 characters")
	ErrCouponExpired       = NewDomainError(ErrCodeCouponExpired, "Promo code has expired")
	ErrCouponExhausted     = NewDomainError(ErrCodeCouponExhausted, "Promo code has reached its usage limit")
	ErrRaceNotFound        = NewDomainError(ErrCodeRaceNotFound, "Race not found")
	ErrOrderNotFound       = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrInvalidQuantity     = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrInvalidLineKey      = NewDomainError(ErrCodeInvalidLineKey, "Cart line key must look like raceId|distance")
	ErrEmptyCart           = NewDomainError(ErrCodeEmptyCart, "Cart must contain at least one item")
	ErrMixedRaceCart       = NewDomainError(ErrCodeMixedRaceCart, "All cart items must belong to the same race")
	ErrPaymentNotConfirmed = NewDomainError(ErrCodePaymentNotConfirmed, "Payment has not been confirmed")
	ErrPaymentAlreadyUsed  = NewDomainError(ErrCodePaymentAlreadyUsed, "Payment has already been used for another order")
	ErrUnauthenticated     = NewDomainError(ErrCodeUnauthenticated, "Sign in is required for this operation")
)

// NewValidationError wraps a boundary validation failure.
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrCodeValidation, message)
}
