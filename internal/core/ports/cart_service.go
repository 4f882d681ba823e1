package ports

import (
	"context"

	"github.com/storefront/storefront-api/internal/core/domain"
)

// AddToCartInput carries an add-to-cart request from the transport layer.
type AddToCartInput struct {
	ProductID string
	Quantity  int
	// IdempotencyKey is optional. When set, a repeated request with the same
	// key from the same user returns the line the first request produced.
	IdempotencyKey string
}

// CartService implements the cart use cases. All methods return
// domain.ErrUnauthorized when the principal carries no identity.
type CartService interface {
	AddToCart(ctx context.Context, p domain.Principal, in AddToCartInput) (*domain.CartLine, error)
	UpdateQuantity(ctx context.Context, p domain.Principal, lineID string, quantity int) (*domain.CartLine, error)
	RemoveLine(ctx context.Context, p domain.Principal, lineID string) error
	ClearCart(ctx context.Context, p domain.Principal) error
	ListCart(ctx context.Context, p domain.Principal) ([]domain.CartLine, error)
	GetLine(ctx context.Context, p domain.Principal, lineID string) (*domain.CartLine, error)
}

// Replay is what a ReplayGuard holds for an idempotency key.
type Replay struct {
	// Fingerprint identifies the request that claimed the key.
	Fingerprint string
	// LineID is the line that request produced, empty while it is running.
	LineID string
}

// ReplayGuard remembers which cart line an idempotency key produced.
type ReplayGuard interface {
	// Claim reserves key for userID on behalf of the request identified by
	// fingerprint. claimed is false when the key was already reserved; prior
	// then describes the earlier request.
	Claim(ctx context.Context, userID, key, fingerprint string) (claimed bool, prior Replay, err error)
	// Complete records the line produced for a claimed key.
	Complete(ctx context.Context, userID, key, fingerprint, lineID string) error
	// Release drops a claim whose request failed so the key can be reused.
	Release(ctx context.Context, userID, key string) error
}
