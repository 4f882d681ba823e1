package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront/storefront-api/internal/core/domain"
)

// --- Request / Response types ---

type addToCartRequest struct {
	ProductID string `json:"productId"`
	// Quantity defaults to 1 when omitted.
	Quantity *int `json:"quantity,omitempty"`
}

type updateCartLineRequest struct {
	Quantity *int `json:"quantity"`
}

// cartProductResponse is the joined catalog entry of a line. It is null when
// the product no longer exists.
type cartProductResponse struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price" swaggertype:"string" example:"12.50"`
	Image    string          `json:"image,omitempty"`
	Category string          `json:"category,omitempty"`
}

type cartLineResponse struct {
	ID        string               `json:"id"`
	ProductID string               `json:"productId"`
	Quantity  int                  `json:"quantity"`
	Product   *cartProductResponse `json:"product"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

func toCartLineResponse(l *domain.CartLine) cartLineResponse {
	resp := cartLineResponse{
		ID:        l.ID,
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
	if l.Product != nil {
		resp.Product = &cartProductResponse{
			ID:       l.Product.ID,
			Name:     l.Product.Name,
			Price:    l.Product.Price,
			Image:    l.Product.Image,
			Category: l.Product.Category,
		}
	}
	return resp
}

func toCartResponse(lines []domain.CartLine) []cartLineResponse {
	out := make([]cartLineResponse, 0, len(lines))
	for i := range lines {
		out = append(out, toCartLineResponse(&lines[i]))
	}
	return out
}
