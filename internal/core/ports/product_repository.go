package ports

import (
	"context"

	"github.com/storefront/storefront-api/internal/core/domain"
)

// ProductCatalog is the read-only lookup the cart depends on.
type ProductCatalog interface {
	// FindByID returns domain.ErrProductNotFound when no product has id.
	FindByID(ctx context.Context, id string) (*domain.Product, error)
}

// ProductRepository is the full catalog persistence used by product
// administration.
type ProductRepository interface {
	ProductCatalog
	List(ctx context.Context, category string) ([]domain.Product, error)
	Create(ctx context.Context, p *domain.Product) (*domain.Product, error)
	// Update replaces the editable fields of the product with p.ID.
	Update(ctx context.Context, p *domain.Product) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
}

// ProductCacheInvalidator is implemented by catalog caches that must drop an
// entry when the product changes.
type ProductCacheInvalidator interface {
	Invalidate(ctx context.Context, id string) error
}
