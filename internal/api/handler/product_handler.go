package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/storefront/storefront-api/internal/core/ports"
)

type ProductHandler struct {
	service ports.ProductService
}

func NewProductHandler(service ports.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

// List handles GET /products.
//
// @Summary      List products
// @Tags         products
// @Produce      json
// @Param        category  query     string  false  "Only products of this category"
// @Success      200       {object}  Envelope{data=[]productResponse}
// @Failure      500       {object}  Envelope
// @Router       /products [get]
func (h *ProductHandler) List(c echo.Context) error {
	products, err := h.service.List(c.Request().Context(), c.QueryParam("category"))
	if err != nil {
		return err
	}

	out := make([]productResponse, 0, len(products))
	for i := range products {
		out = append(out, toProductResponse(&products[i]))
	}
	return Respond(c, http.StatusOK, "Products retrieved successfully", out)
}

// Get handles GET /products/:id.
//
// @Summary      Get a product
// @Tags         products
// @Produce      json
// @Param        id   path      string  true  "Product id"
// @Success      200  {object}  Envelope{data=productResponse}
// @Failure      400  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Router       /products/{id} [get]
func (h *ProductHandler) Get(c echo.Context) error {
	p, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return Respond(c, http.StatusOK, "Product retrieved successfully", toProductResponse(p))
}

// Create handles POST /products. Admin only.
//
// @Summary      Create a product
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      productRequest  true  "Product"
// @Success      201   {object}  Envelope{data=productResponse}
// @Failure      400   {object}  Envelope
// @Failure      401   {object}  Envelope
// @Failure      403   {object}  Envelope
// @Router       /products [post]
func (h *ProductHandler) Create(c echo.Context) error {
	var req productRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	p, err := h.service.Create(c.Request().Context(), req.toInput())
	if err != nil {
		return err
	}
	return Respond(c, http.StatusCreated, "Product created successfully", toProductResponse(p))
}

// Update handles PUT /products/:id. Admin only. The body replaces every
// editable field.
//
// @Summary      Update a product
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string          true  "Product id"
// @Param        body  body      productRequest  true  "Product"
// @Success      200   {object}  Envelope{data=productResponse}
// @Failure      400   {object}  Envelope
// @Failure      401   {object}  Envelope
// @Failure      403   {object}  Envelope
// @Failure      404   {object}  Envelope
// @Router       /products/{id} [put]
func (h *ProductHandler) Update(c echo.Context) error {
	var req productRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	p, err := h.service.Update(c.Request().Context(), c.Param("id"), req.toInput())
	if err != nil {
		return err
	}
	return Respond(c, http.StatusOK, "Product updated successfully", toProductResponse(p))
}

// Delete handles DELETE /products/:id. Admin only. Cart lines that reference
// the product are kept and show it as unknown.
//
// @Summary      Delete a product
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Product id"
// @Success      200  {object}  Envelope
// @Failure      401  {object}  Envelope
// @Failure      403  {object}  Envelope
// @Failure      404  {object}  Envelope
// @Router       /products/{id} [delete]
func (h *ProductHandler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return Respond(c, http.StatusOK, "Product deleted successfully", nil)
}
