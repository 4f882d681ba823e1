package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/storefront/storefront-api/internal/core/domain"
)

// ProductInput carries the editable fields of a catalog entry.
type ProductInput struct {
	Name        string
	Price       decimal.Decimal
	Category    string
	Image       string
	Description string
}

// ProductService exposes the catalog to the HTTP layer.
type ProductService interface {
	List(ctx context.Context, category string) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, in ProductInput) (*domain.Product, error)
	Update(ctx context.Context, id string, in ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
}
