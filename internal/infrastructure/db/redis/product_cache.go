package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/storefront/storefront-api/internal/api/metrics"
	"github.com/storefront/storefront-api/internal/core/domain"
	"github.com/storefront/storefront-api/internal/core/ports"
)

const defaultCatalogTTL = 5 * time.Minute

// ProductCache is a read-through cache in front of a ports.ProductCatalog.
// Redis failures fall back to the wrapped catalog.
// Key format: catalog:product:<id>
type ProductCache struct {
	next   ports.ProductCatalog
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewProductCache(next ports.ProductCatalog, client *redis.Client, ttl time.Duration, log zerolog.Logger) *ProductCache {
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	return &ProductCache{next: next, client: client, ttl: ttl, log: log}
}

type cachedProduct struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category,omitempty"`
	Image       string          `json:"image,omitempty"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (c *ProductCache) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	switch {
	case err == nil:
		var cp cachedProduct
		if jerr := json.Unmarshal(raw, &cp); jerr == nil {
			metrics.CatalogCacheTotal.WithLabelValues("hit").Inc()
			return &domain.Product{
				ID:          cp.ID,
				Name:        cp.Name,
				Price:       cp.Price,
				Category:    cp.Category,
				Image:       cp.Image,
				Description: cp.Description,
				CreatedAt:   cp.CreatedAt,
			}, nil
		}
		metrics.CatalogCacheTotal.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		metrics.CatalogCacheTotal.WithLabelValues("miss").Inc()
	default:
		metrics.CatalogCacheTotal.WithLabelValues("error").Inc()
		c.log.Warn().Err(err).Str("product_id", id).Msg("product cache read failed")
	}

	p, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(cachedProduct{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Category:    p.Category,
		Image:       p.Image,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	})
	if err == nil {
		err = c.client.Set(ctx, c.key(id), payload, c.ttl).Err()
	}
	if err != nil {
		c.log.Warn().Err(err).Str("product_id", id).Msg("product cache write failed")
	}
	return p, nil
}

// Invalidate drops the cached entry for id.
func (c *ProductCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.key(id)).Err()
}

func (c *ProductCache) key(id string) string {
	return "catalog:product:" + id
}
