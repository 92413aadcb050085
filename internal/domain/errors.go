package domain

import "errors"

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUpstream     = errors.New("upstream failure")
)

// Error is a categorised failure carrying a message safe to show to API callers.
// errors.Is matches it against its Kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func (e *Error) PublicMessage() string { return e.Message }

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Invalid returns a validation error with the given message.
func Invalid(message string) error {
	return newError(ErrValidation, message)
}

var (
	ErrInvalidCredentials = newError(ErrUnauthorized, "Invalid email or password")
	ErrUserBlocked        = newError(ErrForbidden, "User is blocked")
	ErrEmailTaken         = newError(ErrConflict, "User already exists")
	ErrUserNotFound       = newError(ErrNotFound, "User not found")
	ErrAdminDelete        = newError(ErrValidation, "Cannot delete admin user")

	ErrProductNotFound   = newError(ErrNotFound, "Product not found")
	ErrAlreadyReviewed   = newError(ErrConflict, "Product already reviewed")
	ErrInsufficientStock = newError(ErrConflict, "Insufficient stock")

	ErrEmptyOrder        = newError(ErrValidation, "No order items")
	ErrOrderNotFound     = newError(ErrNotFound, "Order not found")
	ErrAlreadyPaid       = newError(ErrConflict, "Order is already paid")
	ErrNotPaid           = newError(ErrConflict, "Order is not paid")
	ErrAlreadyDelivered  = newError(ErrConflict, "Order is already delivered")
	ErrPaymentUnverified = newError(ErrValidation, "Payment could not be verified")
	ErrPaymentReused     = newError(ErrConflict, "Payment was already applied to another order")
)

// OutOfStock names the product that cannot cover a line. It matches
// ErrInsufficientStock and ErrConflict.
func OutOfStock(name string) error {
	return &Error{Kind: ErrInsufficientStock, Message: "Insufficient stock for " + name}
}
