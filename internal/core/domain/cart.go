package domain

import "time"

// CartLine is one (user, product, quantity) row. At most one line exists per
// (UserID, ProductID) and Quantity is always at least 1.
type CartLine struct {
	ID        string
	UserID    string
	ProductID string
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time

	// Product is the joined catalog entry. Nil when the product no longer
	// resolves, e.g. it was deleted after the line was created.
	Product *Product
}

// MaxLineQuantity caps the quantity of a cart line and of a single request.
const MaxLineQuantity = 10000

// ValidQuantity reports whether q may be requested for a cart line.
func ValidQuantity(q int) bool {
	return q >= 1 && q <= MaxLineQuantity
}
