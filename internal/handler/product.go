package handler

import (
	"net/http"

	"github.com/segyhp/agriloan-engine/internal/domain"
	"github.com/segyhp/agriloan-engine/pkg/response"

	"github.com/go-playground/validator/v10"
)

type ProductHandler struct {
	service   ProductService
	validator *validator.Validate
}

func NewProductHandler(service ProductService) *ProductHandler {
	return &ProductHandler{
		service:   service,
		validator: NewValidator(),
	}
}

// Create handles POST /products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateProductRequest
	if !decodeAndValidate(w, r, h.validator, &request) {
		return
	}

	product, err := h.service.Create(r.Context(), &request)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, product)
}

// Get handles GET /products/{productId}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathUUID(w, r, "productId")
	if !ok {
		return
	}

	product, err := h.service.Get(r.Context(), productID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, product)
}

// List handles GET /products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Success(w, products)
}

// Delete handles DELETE /products/{productId}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathUUID(w, r, "productId")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), productID); err != nil {
		response.FromError(w, err)
		return
	}

	response.NoContent(w)
}
