// Package rest exposes the cart over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/nikolayk812/cartstore/internal/cart"
	"github.com/nikolayk812/cartstore/internal/domain"
	"github.com/nikolayk812/cartstore/internal/web"
)

// CartService is the part of *cart.Store the handler drives.
type CartService interface {
	Snapshot() domain.Snapshot
	AddProduct(ctx context.Context, productID int64) error
	RemoveProduct(ctx context.Context, productID int64) error
	UpdateProductAmount(ctx context.Context, req cart.UpdateProductAmount) error
}

type Handler struct {
	service  CartService
	validate *validator.Validate
	logger   *slog.Logger
}

type cartResponse struct {
	Version  int64            `json:"version"`
	Products []domain.Product `json:"products"`
}

// Amount may be zero or negative, such updates are ignored by the cart.
type updateAmountRequest struct {
	Amount *int `json:"amount" validate:"required"`
}

func NewHandler(service CartService, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)

		r.Route("/products/{id}", func(r chi.Router) {
			r.Post("/", h.AddProduct)
			r.Delete("/", h.RemoveProduct)
			r.Put("/", h.UpdateProductAmount)
		})
	})

	r.Get("/healthz", h.HealthCheck)
}

func (h *Handler) GetCart(w http.ResponseWriter, _ *http.Request) {
	h.respondCart(w)
}

func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.AddProduct(r.Context(), id); err != nil {
		h.respondCartError(w, r, err, cart.MessageAddFailed)
		return
	}
	h.logger.DebugContext(r.Context(), "Product added", "product_id", id)
	h.respondCart(w)
}

func (h *Handler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.RemoveProduct(r.Context(), id); err != nil {
		h.respondCartError(w, r, err, cart.MessageRemoveFailed)
		return
	}
	h.logger.DebugContext(r.Context(), "Product removed", "product_id", id)
	h.respondCart(w)
}

func (h *Handler) UpdateProductAmount(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req updateAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errorResponse := make(map[string]string)
			for _, fieldErr := range validationErrors {
				errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
			}
			h.logger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
			web.RespondJSON(w, h.logger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
			return
		}
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.service.UpdateProductAmount(r.Context(), cart.UpdateProductAmount{ProductID: id, Amount: *req.Amount})
	if err != nil {
		h.respondCartError(w, r, err, cart.MessageUpdateFailed)
		return
	}
	h.logger.DebugContext(r.Context(), "Product amount updated", "product_id", id, "amount", *req.Amount)
	h.respondCart(w)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) respondCart(w http.ResponseWriter) {
	snapshot := h.service.Snapshot()

	products := snapshot.Cart.Items
	if products == nil {
		products = []domain.Product{}
	}

	web.RespondJSON(w, h.logger, http.StatusOK, cartResponse{
		Version:  snapshot.Version,
		Products: products,
	})
}

// respondCartError answers with the user message of the failed operation; the
// cart has already logged and notified the failure.
func (h *Handler) respondCartError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, cart.ErrStockExceeded):
		status, message = http.StatusConflict, cart.MessageStockExceeded
	case errors.Is(err, cart.ErrProductNotInCart):
		status = http.StatusNotFound
	case errors.Is(err, cart.ErrLookupFailed):
		status = http.StatusBadGateway
	case errors.Is(err, cart.ErrPersistFailed):
		status = http.StatusInternalServerError
	default:
		h.logger.ErrorContext(r.Context(), "Unexpected cart error", "error", err)
	}

	web.RespondError(w, h.logger, status, message)
}
