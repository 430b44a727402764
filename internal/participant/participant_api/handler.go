package participant_api

import (
	"context"
	"encoding/json"
	"fmt"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/participant"
	"ms-checkout/internal/utils"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type ParticipantService interface {
	GetParticipant(ctx context.Context, id string) (*models.Participant, error)
	ListByCheckout(ctx context.Context, checkoutID string) ([]*models.Participant, error)
	UpdateParticipant(ctx context.Context, id string, req participant.UpdateParticipantRequest) (*models.Participant, error)
	CheckIn(ctx context.Context, id string) (*models.Participant, error)
	CheckInByQRCode(ctx context.Context, token string) (*models.Participant, error)
	QRCodePNG(ctx context.Context, id string) ([]byte, error)
}

type Handler struct {
	Service ParticipantService
	Logger  *logger.Logger
}

func NewHandler(service ParticipantService, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewConsoleLogger()
	}
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/checkout/{id}/participants", h.ListByCheckout)
	r.Route("/participants", func(r chi.Router) {
		r.Post("/checkin", h.CheckInByQRCode)
		r.Get("/{id}", h.GetParticipant)
		r.Put("/{id}", h.UpdateParticipant)
		r.Post("/{id}/checkin", h.CheckIn)
		r.Get("/{id}/qrcode", h.QRCode)
	})
}

func (h *Handler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.GetParticipant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "GetParticipant", "Participant not available", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Participant found", p)
}

func (h *Handler) ListByCheckout(w http.ResponseWriter, r *http.Request) {
	checkoutID := chi.URLParam(r, "id")
	participants, err := h.Service.ListByCheckout(r.Context(), checkoutID)
	if err != nil {
		h.fail(w, "ListByCheckout", "Participants not available", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, fmt.Sprintf("%d participants", len(participants)), participants)
}

func (h *Handler) UpdateParticipant(w http.ResponseWriter, r *http.Request) {
	var req participant.UpdateParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	p, err := h.Service.UpdateParticipant(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, "UpdateParticipant", "Could not update participant", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Participant updated", p)
}

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.Service.CheckIn(r.Context(), id)
	if err != nil {
		h.fail(w, "CheckIn", "Check-in refused", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CheckIn: participant %s checked in", id))
	utils.WriteSuccess(w, http.StatusOK, "Checked in", p)
}

func (h *Handler) CheckInByQRCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		QRCode string `json:"qrCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	p, err := h.Service.CheckInByQRCode(r.Context(), body.QRCode)
	if err != nil {
		h.fail(w, "CheckInByQRCode", "Check-in refused", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CheckInByQRCode: participant %s checked in", p.ID))
	utils.WriteSuccess(w, http.StatusOK, "Checked in", p)
}

func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	png, err := h.Service.QRCodePNG(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "QRCode", "QR code not available", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) fail(w http.ResponseWriter, op, message string, err error) {
	status := utils.WriteServiceError(w, message, err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		return
	}
	h.Logger.Warn("API", fmt.Sprintf("%s: %d %v", op, status, err))
}
