package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/storefront/storefront-api/internal/api/metrics"
	"github.com/storefront/storefront-api/internal/core/domain"
	"github.com/storefront/storefront-api/internal/core/ports"
)

// CartHandler handles HTTP requests for the caller's own cart.
type CartHandler struct {
	service ports.CartService
}

func NewCartHandler(service ports.CartService) *CartHandler {
	return &CartHandler{service: service}
}

// Add handles POST /cart.
//
// @Summary      Add a product to the cart
// @Description  Adds quantity (default 1) of a product. Adding a product that is already in the cart increases the quantity of its line.
// @Tags         cart
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string            false  "Replays the first result for repeated requests"
// @Param        body             body      addToCartRequest  true   "Product and quantity"
// @Success      201              {object}  Envelope{data=cartLineResponse}
// @Failure      400              {object}  Envelope
// @Failure      401              {object}  Envelope
// @Failure      404              {object}  Envelope
// @Failure      409              {object}  Envelope
// @Failure      500              {object}  Envelope
// @Router       /cart [post]
func (h *CartHandler) Add(c echo.Context) (err error) {
	defer observe("add", &err)

	p := principal(c)
	if !p.Authenticated() {
		return domain.ErrUnauthorized
	}

	var req addToCartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	line, err := h.service.AddToCart(c.Request().Context(), p, ports.AddToCartInput{
		ProductID:      req.ProductID,
		Quantity:       qty,
		IdempotencyKey: c.Request().Header.Get(headerIdempotencyKey),
	})
	if err != nil {
		return err
	}

	return Respond(c, http.StatusCreated, "Item added to cart successfully", toCartLineResponse(line))
}

// Update handles PUT /cart/:id.
//
// @Summary      Set the quantity of a cart line
// @Tags         cart
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                 true  "Cart line id"
// @Param        body  body      updateCartLineRequest  true  "New quantity"
// @Success      200   {object}  Envelope{data=cartLineResponse}
// @Failure      400   {object}  Envelope
// @Failure      401   {object}  Envelope
// @Failure      404   {object}  Envelope
// @Router       /cart/{id} [put]
func (h *CartHandler) Update(c echo.Context) (err error) {
	defer observe("update", &err)

	p := principal(c)
	if !p.Authenticated() {
		return domain.ErrUnauthorized
	}

	var req updateCartLineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if req.Quantity == nil {
		return domain.InvalidField("quantity", "is required")
	}

	line, err := h.service.UpdateQuantity(c.Request().Context(), p, c.Param("id"), *req.Quantity)
	if err != nil {
		return err
	}

	return Respond(c, http.StatusOK, "Cart item updated successfully", toCartLineResponse(line))
}

// Remove handles DELETE /cart/:id.
//
// @Summary      Remove a cart line
// @Tags         cart
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Cart line id"
// @Success      200  {object}  Envelope
// @Failure      400  {object}  Envelope
// @Failure      401  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Router       /cart/{id} [delete]
func (h *CartHandler) Remove(c echo.Context) (err error) {
	defer observe("remove", &err)

	if err := h.service.RemoveLine(c.Request().Context(), principal(c), c.Param("id")); err != nil {
		return err
	}
	return Respond(c, http.StatusOK, "Cart item successfully deleted", nil)
}

// Clear handles DELETE /cart.
//
// @Summary      Empty the cart
// @Tags         cart
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope
// @Failure      401  {object}  Envelope
// @Router       /cart [delete]
func (h *CartHandler) Clear(c echo.Context) (err error) {
	defer observe("clear", &err)

	if err := h.service.ClearCart(c.Request().Context(), principal(c)); err != nil {
		return err
	}
	return Respond(c, http.StatusOK, "Cart cleared successfully", nil)
}

// List handles GET /cart.
//
// @Summary      List the cart
// @Description  Lines in insertion order. product is null for products that no longer exist.
// @Tags         cart
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Envelope{data=[]cartLineResponse}
// @Failure      401  {object}  Envelope
// @Router       /cart [get]
func (h *CartHandler) List(c echo.Context) (err error) {
	defer observe("list", &err)

	lines, err := h.service.ListCart(c.Request().Context(), principal(c))
	if err != nil {
		return err
	}
	return Respond(c, http.StatusOK, "Cart retrieved successfully", toCartResponse(lines))
}

// Get handles GET /cart/:id.
//
// @Summary      Get a cart line
// @Tags         cart
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Cart line id"
// @Success      200  {object}  Envelope{data=cartLineResponse}
// @Failure      400  {object}  Envelope
// @Failure      401  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Router       /cart/{id} [get]
func (h *CartHandler) Get(c echo.Context) (err error) {
	defer observe("get", &err)

	line, err := h.service.GetLine(c.Request().Context(), principal(c), c.Param("id"))
	if err != nil {
		return err
	}
	return Respond(c, http.StatusOK, "Cart item retrieved successfully", toCartLineResponse(line))
}

func observe(operation string, errp *error) {
	metrics.CartOperationsTotal.WithLabelValues(operation, resultLabel(*errp)).Inc()
}

func resultLabel(err error) string {
	var he *echo.HTTPError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrInvalidArgument), errors.As(err, &he):
		return "invalid"
	case errors.Is(err, domain.ErrCartLineNotFound), errors.Is(err, domain.ErrProductNotFound):
		return "not_found"
	default:
		return "error"
	}
}
