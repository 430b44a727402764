package coupon_api

import (
	"context"
	"encoding/json"
	"fmt"
	"ms-checkout/internal/coupon"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/utils"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type CouponService interface {
	CreateCoupon(ctx context.Context, req coupon.CreateCouponRequest) (*models.Coupon, error)
	GetCoupon(ctx context.Context, code string) (*models.Coupon, error)
	ListCoupons(ctx context.Context, eventID string) ([]*models.Coupon, error)
	UpdateCoupon(ctx context.Context, code string, req coupon.UpdateCouponRequest) (*models.Coupon, error)
	DeleteCoupon(ctx context.Context, code string) error
	ValidateCoupon(ctx context.Context, req coupon.ValidateRequest) (*coupon.Preview, error)
}

type Handler struct {
	Service CouponService
	Logger  *logger.Logger
}

func NewHandler(service CouponService, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewConsoleLogger()
	}
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/coupons", func(r chi.Router) {
		r.Post("/", h.CreateCoupon)
		r.Get("/", h.ListCoupons)
		r.Post("/validate", h.ValidateCoupon)
		r.Get("/{code}", h.GetCoupon)
		r.Put("/{code}", h.UpdateCoupon)
		r.Delete("/{code}", h.DeleteCoupon)
	})
}

func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req coupon.CreateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	c, err := h.Service.CreateCoupon(r.Context(), req)
	if err != nil {
		h.fail(w, "CreateCoupon", "Could not create coupon", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Coupon created", c)
}

func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.Service.ListCoupons(r.Context(), r.URL.Query().Get("eventId"))
	if err != nil {
		h.fail(w, "ListCoupons", "Could not list coupons", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, fmt.Sprintf("%d coupons", len(coupons)), coupons)
}

func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.GetCoupon(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, "GetCoupon", "Coupon not available", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Coupon found", c)
}

func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var req coupon.UpdateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	c, err := h.Service.UpdateCoupon(r.Context(), chi.URLParam(r, "code"), req)
	if err != nil {
		h.fail(w, "UpdateCoupon", "Could not update coupon", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Coupon updated", c)
}

func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteCoupon(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.fail(w, "DeleteCoupon", "Could not delete coupon", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req coupon.ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	preview, err := h.Service.ValidateCoupon(r.Context(), req)
	if err != nil {
		h.fail(w, "ValidateCoupon", "Coupon is not valid", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Coupon is valid", preview)
}

func (h *Handler) fail(w http.ResponseWriter, op, message string, err error) {
	status := utils.WriteServiceError(w, message, err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		return
	}
	h.Logger.Warn("API", fmt.Sprintf("%s: %d %v", op, status, err))
}
