package checkout_api

import (
	"errors"
	"fmt"
	"io"
	"ms-checkout/internal/checkout"
	"net/http"
)

// MercadoPagoWebhook receives payment notifications. The signature covers the data.id query parameter, not the body.
func (h *Handler) MercadoPagoWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("MercadoPagoWebhook: failed to read body: %v", err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	n := checkout.MercadoPagoNotification{
		Payload:   body,
		Signature: r.Header.Get("x-signature"),
		RequestID: r.Header.Get("x-request-id"),
		DataID:    r.URL.Query().Get("data.id"),
	}
	h.Logger.Info("API", fmt.Sprintf("MercadoPagoWebhook: request=%s data.id=%s", n.RequestID, n.DataID))

	if err := h.Service.HandleMercadoPagoWebhook(r.Context(), n); err != nil {
		h.writeWebhookError(w, "MercadoPagoWebhook", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("StripeWebhook: failed to read body: %v", err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.HandleStripeWebhook(r.Context(), body, r.Header.Get("Stripe-Signature")); err != nil {
		h.writeWebhookError(w, "StripeWebhook", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) writeWebhookError(w http.ResponseWriter, op string, err error) {
	var webhookErr *checkout.WebhookError
	if errors.As(err, &webhookErr) {
		h.Logger.Error("API", fmt.Sprintf("%s: category=%s status=%d: %s",
			op, webhookErr.Category, webhookErr.StatusCode, webhookErr.InternalError))
		http.Error(w, webhookErr.PublicError, webhookErr.StatusCode)
		return
	}
	h.Logger.Error("API", fmt.Sprintf("%s: failed to process webhook: %v", op, err))
	http.Error(w, "Webhook processing error", http.StatusInternalServerError)
}
