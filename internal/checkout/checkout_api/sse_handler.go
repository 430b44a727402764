package checkout_api

import (
	"context"
	"encoding/json"
	"fmt"
	"ms-checkout/internal/sse"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type StatusStream interface {
	SubscribeToCheckout(ctx context.Context, checkoutID string) <-chan sse.StatusEvent
	SubscribeToEvent(ctx context.Context, eventID string) <-chan sse.StatusEvent
}

// HandleCheckoutEvents streams status changes of one checkout, starting with its current status.
func (h *Handler) HandleCheckoutEvents(w http.ResponseWriter, r *http.Request) {
	checkoutID := chi.URLParam(r, "id")

	order, err := h.Service.GetCheckout(r.Context(), checkoutID)
	if err != nil {
		h.writeError(w, "HandleCheckoutEvents", "Checkout not available", err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	events := h.Stream.SubscribeToCheckout(ctx, checkoutID)

	h.setupSSEHeaders(w)
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"checkoutId\":\"%s\"}\n\n", checkoutID)
	h.writeEvent(w, sse.StatusEvent{
		CheckoutID: order.ID,
		EventID:    order.EventID(),
		Status:     order.Status,
		UpdatedAt:  order.UpdatedAt,
	})
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to checkout %s", checkoutID))
	h.stream(ctx, w, flusher, events)
	h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from checkout %s", checkoutID))
}

// HandleEventCheckouts streams every checkout status change of an event.
func (h *Handler) HandleEventCheckouts(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if eventID == "" {
		http.Error(w, "Event ID is required", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	events := h.Stream.SubscribeToEvent(ctx, eventID)

	h.setupSSEHeaders(w)
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"eventId\":\"%s\"}\n\n", eventID)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to checkouts of event %s", eventID))
	h.stream(ctx, w, flusher, events)
}

func (h *Handler) stream(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, events <-chan sse.StatusEvent) {
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			h.writeEvent(w, evt)
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) writeEvent(w http.ResponseWriter, evt sse.StatusEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize checkout event: %v", err))
		return
	}
	fmt.Fprintf(w, "event: checkout\ndata: %s\n\n", data)
}

func (h *Handler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
