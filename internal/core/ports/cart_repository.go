package ports

import (
	"context"

	"github.com/storefront/storefront-api/internal/core/domain"
)

// CartRepository persists cart lines. Every lookup and mutation that takes a
// lineID is scoped by userID, so a line owned by someone else is reported as
// domain.ErrCartLineNotFound.
type CartRepository interface {
	// AddOrIncrement atomically inserts the (userID, productID) line with
	// quantity, or adds quantity to the existing line. created reports which
	// happened. A lost race on the unique index yields domain.ErrCartConflict.
	AddOrIncrement(ctx context.Context, userID, productID string, quantity int) (line *domain.CartLine, created bool, err error)

	// FindLine returns the line joined with its product.
	FindLine(ctx context.Context, userID, lineID string) (*domain.CartLine, error)

	// ListByUser returns every line of userID in insertion order, joined with
	// products.
	ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error)

	// SetQuantity replaces the stored quantity and returns the updated line.
	SetQuantity(ctx context.Context, userID, lineID string, quantity int) (*domain.CartLine, error)

	Delete(ctx context.Context, userID, lineID string) error

	// DeleteAllByUser removes every line of userID and returns how many were
	// removed. Removing zero lines is not an error.
	DeleteAllByUser(ctx context.Context, userID string) (int64, error)
}
