package checkout_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"ms-checkout/internal/checkout"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/utils"
	"net/http"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type CheckoutService interface {
	CreateCheckout(ctx context.Context, req checkout.CreateCheckoutRequest) (*checkout.CreateCheckoutResult, error)
	GetCheckout(ctx context.Context, id string) (*models.Checkout, error)
	DeleteCheckout(ctx context.Context, id string) error
	ApproveManually(ctx context.Context, id, reference string) (*models.Checkout, error)
	RejectCheckout(ctx context.Context, id, reason string) (*models.Checkout, error)
	HandleMercadoPagoWebhook(ctx context.Context, n checkout.MercadoPagoNotification) error
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error
}

type Handler struct {
	Service CheckoutService
	Stream  StatusStream
	Logger  *logger.Logger
}

func NewHandler(service CheckoutService, stream StatusStream, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewConsoleLogger()
	}
	return &Handler{Service: service, Stream: stream, Logger: log}
}

// RegisterRoutes mounts the checkout routes. Webhook paths are static and win over /checkout/{id}.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Post("/checkout", h.CreateCheckout)
	r.Post("/checkout/mercadopago", h.MercadoPagoWebhook)
	r.Post("/checkout/stripe", h.StripeWebhook)
	r.Get("/checkout/{id}", h.GetCheckout)
	r.Delete("/checkout/{id}", h.DeleteCheckout)
	r.Post("/checkout/{id}/approve", h.ApproveCheckout)
	r.Post("/checkout/{id}/reject", h.RejectCheckout)
	r.Get("/checkout/{id}/events", h.HandleCheckoutEvents)
	r.Get("/events/{eventId}/checkouts/events", h.HandleEventCheckouts)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "checkout-service"})
}

func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("API", "CreateCheckout: received request")

	var req checkout.CreateCheckoutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateCheckout: failed to decode request body: %v", err))
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	result, err := h.Service.CreateCheckout(r.Context(), req)
	if err != nil {
		h.writeError(w, "CreateCheckout", "Could not create checkout", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, result)
	h.Logger.Info("API", fmt.Sprintf("CreateCheckout: checkout %s created with status %s", result.CheckoutID, result.Status))
}

func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.Logger.Debug("API", fmt.Sprintf("GetCheckout: id=%s", id))

	order, err := h.Service.GetCheckout(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetCheckout", "Checkout not available", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) DeleteCheckout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.Logger.Info("API", fmt.Sprintf("DeleteCheckout: id=%s", id))

	if err := h.Service.DeleteCheckout(r.Context(), id); err != nil {
		h.writeError(w, "DeleteCheckout", "Could not delete checkout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ApproveCheckout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Reference string `json:"reference"`
	}
	if !h.decodeOptional(w, r, &body) {
		return
	}
	h.Logger.Info("API", fmt.Sprintf("ApproveCheckout: id=%s reference=%s", id, body.Reference))

	order, err := h.Service.ApproveManually(r.Context(), id, body.Reference)
	if err != nil {
		h.writeError(w, "ApproveCheckout", "Could not approve checkout", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) RejectCheckout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Reason string `json:"reason"`
	}
	if !h.decodeOptional(w, r, &body) {
		return
	}
	h.Logger.Info("API", fmt.Sprintf("RejectCheckout: id=%s", id))

	order, err := h.Service.RejectCheckout(r.Context(), id, body.Reason)
	if err != nil {
		h.writeError(w, "RejectCheckout", "Could not reject checkout", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order)
}

// decodeOptional accepts an empty body.
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.ContentLength == 0 {
		return true
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}
	return true
}

// writeError keeps creation failures generic. Anything past the first save is reported as a 500.
func (h *Handler) writeError(w http.ResponseWriter, op, message string, err error) {
	if errors.Is(err, checkout.ErrCheckoutFailed) {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteError(w, http.StatusInternalServerError, message, checkout.ErrCheckoutFailed.Error())
		return
	}
	status := utils.WriteServiceError(w, message, err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Warn("API", fmt.Sprintf("%s: %d %v", op, status, err))
	}
}
