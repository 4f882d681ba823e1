package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/storefront/storefront-api/internal/api/metrics"
	"github.com/storefront/storefront-api/internal/core/domain"
	"github.com/storefront/storefront-api/internal/core/ports"
)

// ProductService serves the catalog. Lookups go through catalog, which may be
// a cache in front of repo; writes go to repo and invalidate the cache.
type ProductService struct {
	repo     ports.ProductRepository
	catalog  ports.ProductCatalog
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewProductService(repo ports.ProductRepository, catalog ports.ProductCatalog, logger zerolog.Logger) *ProductService {
	if catalog == nil {
		catalog = repo
	}
	return &ProductService{repo: repo, catalog: catalog, validate: validator.New(), logger: logger}
}

func (s *ProductService) List(ctx context.Context, category string) ([]domain.Product, error) {
	products, err := s.repo.List(ctx, strings.TrimSpace(category))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	if err := s.validate.Var(id, "required,mongodb"); err != nil {
		return nil, domain.InvalidField("id", "is not valid")
	}
	return s.catalog.FindByID(ctx, id)
}

func (s *ProductService) Create(ctx context.Context, in ports.ProductInput) (*domain.Product, error) {
	p, err := productFromInput(in)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.Now().UTC()

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create product")
		return nil, fmt.Errorf("create product: %w", err)
	}

	metrics.ProductsCreatedTotal.WithLabelValues(created.Category).Inc()
	s.logger.Info().Str("product_id", created.ID).Str("category", created.Category).Msg("product created")
	return created, nil
}

// Update replaces the editable fields of a product and drops its cached copy.
func (s *ProductService) Update(ctx context.Context, id string, in ports.ProductInput) (*domain.Product, error) {
	if err := s.validate.Var(id, "required,mongodb"); err != nil {
		return nil, domain.InvalidField("id", "is not valid")
	}
	p, err := productFromInput(in)
	if err != nil {
		return nil, err
	}
	p.ID = id

	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	s.invalidate(ctx, id)

	s.logger.Info().Str("product_id", id).Msg("product updated")
	return updated, nil
}

// Delete removes a product. Cart lines that reference it are left in place
// and resolve to an unknown product from then on.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.validate.Var(id, "required,mongodb"); err != nil {
		return domain.InvalidField("id", "is not valid")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.invalidate(ctx, id)

	s.logger.Info().Str("product_id", id).Msg("product deleted")
	return nil
}

func (s *ProductService) invalidate(ctx context.Context, id string) {
	if inv, ok := s.catalog.(ports.ProductCacheInvalidator); ok {
		if err := inv.Invalidate(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("product_id", id).Msg("failed to invalidate product cache")
		}
	}
}

func productFromInput(in ports.ProductInput) (*domain.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.InvalidField("name", "is required")
	}
	if in.Price.IsNegative() {
		return nil, domain.InvalidField("price", "must not be negative")
	}
	return &domain.Product{
		Name:        name,
		Price:       in.Price,
		Category:    strings.TrimSpace(in.Category),
		Image:       in.Image,
		Description: in.Description,
	}, nil
}
