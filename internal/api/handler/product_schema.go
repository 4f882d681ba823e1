package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront/storefront-api/internal/core/domain"
	"github.com/storefront/storefront-api/internal/core/ports"
)

type productRequest struct {
	Name        string          `json:"name"        validate:"required"`
	Price       decimal.Decimal `json:"price"       swaggertype:"string" example:"12.50"`
	Category    string          `json:"category"`
	Image       string          `json:"image"       validate:"omitempty,url"`
	Description string          `json:"description"`
}

func (r productRequest) toInput() ports.ProductInput {
	return ports.ProductInput{
		Name:        r.Name,
		Price:       r.Price,
		Category:    r.Category,
		Image:       r.Image,
		Description: r.Description,
	}
}

type productResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price" swaggertype:"string" example:"12.50"`
	Category    string          `json:"category,omitempty"`
	Image       string          `json:"image,omitempty"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func toProductResponse(p *domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Category:    p.Category,
		Image:       p.Image,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
}
