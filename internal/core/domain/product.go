package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. The cart only reads it by ID.
type Product struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Category    string
	Image       string
	Description string
	CreatedAt   time.Time
}
