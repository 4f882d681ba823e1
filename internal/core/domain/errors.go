package domain

import "errors"

var (
	ErrUnauthorized     = errors.New("not authorized")
	ErrForbidden        = errors.New("access forbidden")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrProductNotFound  = errors.New("product not found")
	ErrCartLineNotFound = errors.New("cart item not found")

	// ErrCartConflict is returned by a cart store when a concurrent first insert
	// for the same (user, product) pair won the unique index. Callers retry.
	ErrCartConflict = errors.New("cart line write conflict")

	// ErrQuantityLimit is returned by a cart store when an increment would take
	// a line past MaxLineQuantity. The line is left unchanged.
	ErrQuantityLimit = errors.New("cart line quantity limit reached")

	// ErrRequestInFlight is returned when a request reuses an idempotency key
	// whose first request has not finished yet.
	ErrRequestInFlight = errors.New("request with this idempotency key is still in progress")
)

// ArgumentError describes a rejected input field. It matches ErrInvalidArgument
// under errors.Is and its message is safe to show to API clients.
type ArgumentError struct {
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return e.Field + " " + e.Reason
}

func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// InvalidField builds an ArgumentError for field.
func InvalidField(field, reason string) error {
	return &ArgumentError{Field: field, Reason: reason}
}
