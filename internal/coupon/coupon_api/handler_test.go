package coupon_api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"ms-checkout/internal/coupon"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/utils"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCouponService struct {
	mock.Mock
}

func (m *MockCouponService) CreateCoupon(ctx context.Context, req coupon.CreateCouponRequest) (*models.Coupon, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Coupon), args.Error(1)
}

func (m *MockCouponService) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Coupon), args.Error(1)
}

func (m *MockCouponService) ListCoupons(ctx context.Context, eventID string) ([]*models.Coupon, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Coupon), args.Error(1)
}

func (m *MockCouponService) UpdateCoupon(ctx context.Context, code string, req coupon.UpdateCouponRequest) (*models.Coupon, error) {
	args := m.Called(ctx, code, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Coupon), args.Error(1)
}

func (m *MockCouponService) DeleteCoupon(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockCouponService) ValidateCoupon(ctx context.Context, req coupon.ValidateRequest) (*coupon.Preview, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coupon.Preview), args.Error(1)
}

func serve(svc *MockCouponService, method, target, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewHandler(svc, logger.New(io.Discard)).RegisterRoutes(r)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var resp utils.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestCreateCoupon(t *testing.T) {
	svc := new(MockCouponService)
	svc.On("CreateCoupon", mock.Anything, coupon.CreateCouponRequest{
		Code: "PROMO", DiscountType: models.DiscountFixed, DiscountValue: 20,
	}).Return(&models.Coupon{Code: "promo", DiscountType: models.DiscountFixed, DiscountValue: 20}, nil)

	rec := serve(svc, http.MethodPost, "/coupons", `{"code":"PROMO","discountType":"fixed","discountValue":20}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, decode(t, rec).Success)
	svc.AssertExpectations(t)
}

func TestCreateCoupon_Duplicate(t *testing.T) {
	svc := new(MockCouponService)
	svc.On("CreateCoupon", mock.Anything, mock.Anything).
		Return(nil, models.NewValidationError("code", "coupon promo already exists"))

	rec := serve(svc, http.MethodPost, "/coupons", `{"code":"promo","discountType":"fixed","discountValue":20}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec).Error, "already exists")
}

func TestGetCoupon(t *testing.T) {
	svc := new(MockCouponService)
	svc.On("GetCoupon", mock.Anything, "promo").Return(&models.Coupon{Code: "promo"}, nil)
	svc.On("GetCoupon", mock.Anything, "missing").Return(nil, &models.NotFoundError{Entity: "coupon", ID: "missing"})

	assert.Equal(t, http.StatusOK, serve(svc, http.MethodGet, "/coupons/promo", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(svc, http.MethodGet, "/coupons/missing", "").Code)
}

func TestListCoupons_FiltersByEvent(t *testing.T) {
	svc := new(MockCouponService)
	svc.On("ListCoupons", mock.Anything, "evt-1").Return([]*models.Coupon{{Code: "a"}, {Code: "b"}}, nil)

	rec := serve(svc, http.MethodGet, "/coupons?eventId=evt-1", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec).Data, 2)
}

func TestUpdateCoupon(t *testing.T) {
	svc := new(MockCouponService)
	value := 15.0
	svc.On("UpdateCoupon", mock.Anything, "promo", coupon.UpdateCouponRequest{DiscountValue: &value}).
		Return(&models.Coupon{Code: "promo", DiscountValue: 15}, nil)

	rec := serve(svc, http.MethodPut, "/coupons/promo", `{"discountValue":15}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestDeleteCoupon(t *testing.T) {
	svc := new(MockCouponService)
	svc.On("DeleteCoupon", mock.Anything, "promo").Return(nil)
	svc.On("DeleteCoupon", mock.Anything, "down").Return(errors.New("db down"))

	assert.Equal(t, http.StatusNoContent, serve(svc, http.MethodDelete, "/coupons/promo", "").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(svc, http.MethodDelete, "/coupons/down", "").Code)
}

func TestValidateCoupon(t *testing.T) {
	svc := new(MockCouponService)
	req := coupon.ValidateRequest{Code: "ten", EventID: "evt-1", FullTickets: 2}
	svc.On("ValidateCoupon", mock.Anything, req).Return(&coupon.Preview{
		Coupon: &models.Coupon{Code: "ten"}, OriginalAmount: 998, DiscountAmount: 99.8, TotalAmount: 898.2,
	}, nil)

	rec := serve(svc, http.MethodPost, "/coupons/validate", `{"code":"ten","eventId":"evt-1","fullTickets":2}`)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec).Data.(map[string]interface{})
	assert.Equal(t, 898.2, data["totalAmount"])
}

func TestValidateCoupon_Expired(t *testing.T) {
	svc := new(MockCouponService)
	svc.On("ValidateCoupon", mock.Anything, mock.Anything).
		Return(nil, models.NewValidationError("couponCode", "coupon ten has expired"))

	rec := serve(svc, http.MethodPost, "/coupons/validate", `{"code":"ten","fullTickets":1}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec).Error, "expired")
}
