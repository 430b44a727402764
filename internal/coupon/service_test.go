package coupon

import (
	"context"
	"errors"
	"io"
	"ms-checkout/internal/checkout"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCouponDB struct {
	mock.Mock
}

func (m *MockCouponDB) SaveCoupon(ctx context.Context, c *models.Coupon) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCouponDB) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Coupon), args.Error(1)
}

func (m *MockCouponDB) ListCoupons(ctx context.Context, eventID string) ([]*models.Coupon, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Coupon), args.Error(1)
}

func (m *MockCouponDB) UpdateCoupon(ctx context.Context, c *models.Coupon) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCouponDB) DeleteCoupon(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func newService(store *MockCouponDB) *Service {
	return NewService(store, checkout.DefaultPriceTable(), logger.New(io.Discard))
}

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

func TestCreateCoupon(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes code and saves", func(t *testing.T) {
		store := new(MockCouponDB)
		store.On("GetCouponByCode", ctx, "promo10").Return(nil, nil)
		store.On("SaveCoupon", ctx, mock.MatchedBy(func(c *models.Coupon) bool {
			return c.Code == "promo10" && c.DiscountValue == 10
		})).Return(nil)

		c, err := newService(store).CreateCoupon(ctx, CreateCouponRequest{
			Code: "  PROMO10 ", DiscountType: models.DiscountPercentage, DiscountValue: 10,
		})

		require.NoError(t, err)
		assert.Equal(t, "promo10", c.Code)
		store.AssertExpectations(t)
	})

	t.Run("duplicate code", func(t *testing.T) {
		store := new(MockCouponDB)
		store.On("GetCouponByCode", ctx, "promo10").Return(&models.Coupon{Code: "promo10"}, nil)

		_, err := newService(store).CreateCoupon(ctx, CreateCouponRequest{
			Code: "PROMO10", DiscountType: models.DiscountPercentage, DiscountValue: 10,
		})

		assert.True(t, models.IsValidation(err))
		store.AssertNotCalled(t, "SaveCoupon", mock.Anything, mock.Anything)
	})

	t.Run("invalid percentage", func(t *testing.T) {
		store := new(MockCouponDB)
		_, err := newService(store).CreateCoupon(ctx, CreateCouponRequest{
			Code: "big", DiscountType: models.DiscountPercentage, DiscountValue: 150,
		})
		assert.True(t, models.IsValidation(err))
	})
}

func TestGetCoupon_NotFound(t *testing.T) {
	ctx := context.Background()
	store := new(MockCouponDB)
	store.On("GetCouponByCode", ctx, "NOPE").Return(nil, nil)

	_, err := newService(store).GetCoupon(ctx, "NOPE")

	var nf *models.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.ID)
}

func TestUpdateCoupon(t *testing.T) {
	ctx := context.Background()

	t.Run("applies set fields", func(t *testing.T) {
		store := new(MockCouponDB)
		existing := &models.Coupon{Code: "promo", DiscountType: models.DiscountFixed, DiscountValue: 20}
		store.On("GetCouponByCode", ctx, "promo").Return(existing, nil)
		store.On("UpdateCoupon", ctx, existing).Return(nil)

		value := 35.0
		c, err := newService(store).UpdateCoupon(ctx, "promo", UpdateCouponRequest{DiscountValue: &value, MaxUses: intPtr(5)})

		require.NoError(t, err)
		assert.Equal(t, 35.0, c.DiscountValue)
		assert.Equal(t, 5, *c.MaxUses)
	})

	t.Run("rejects max uses below current uses", func(t *testing.T) {
		store := new(MockCouponDB)
		existing := &models.Coupon{Code: "promo", DiscountType: models.DiscountFixed, DiscountValue: 20, Uses: 4}
		store.On("GetCouponByCode", ctx, "promo").Return(existing, nil)

		_, err := newService(store).UpdateCoupon(ctx, "promo", UpdateCouponRequest{MaxUses: intPtr(2)})

		assert.True(t, models.IsValidation(err))
		store.AssertNotCalled(t, "UpdateCoupon", mock.Anything, mock.Anything)
	})
}

func TestDeleteCoupon_PropagatesNotFound(t *testing.T) {
	ctx := context.Background()
	store := new(MockCouponDB)
	store.On("DeleteCoupon", ctx, "gone").Return(&models.NotFoundError{Entity: "coupon", ID: "gone"})

	err := newService(store).DeleteCoupon(ctx, "gone")
	assert.True(t, models.IsNotFound(err))
}

func TestValidateCoupon(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	tests := []struct {
		name         string
		coupon       *models.Coupon
		req          ValidateRequest
		wantErr      bool
		wantDiscount float64
		wantTotal    float64
	}{
		{
			name:         "percentage",
			coupon:       &models.Coupon{Code: "ten", DiscountType: models.DiscountPercentage, DiscountValue: 10},
			req:          ValidateRequest{Code: "TEN", EventID: "evt", FullTickets: 2},
			wantDiscount: 99.8,
			wantTotal:    898.2,
		},
		{
			name:         "fixed is flat",
			coupon:       &models.Coupon{Code: "ten", DiscountType: models.DiscountFixed, DiscountValue: 50},
			req:          ValidateRequest{Code: "ten", EventID: "evt", FullTickets: 2, HalfTickets: 1},
			wantDiscount: 50,
			wantTotal:    1197.5,
		},
		{
			name:         "fixed larger than order clamps to zero",
			coupon:       &models.Coupon{Code: "ten", DiscountType: models.DiscountFixed, DiscountValue: 1000},
			req:          ValidateRequest{Code: "ten", EventID: "evt", HalfTickets: 1},
			wantDiscount: 249.5,
			wantTotal:    0,
		},
		{
			name:    "expired",
			coupon:  &models.Coupon{Code: "ten", DiscountType: models.DiscountFixed, DiscountValue: 5, ExpiresAt: &past},
			req:     ValidateRequest{Code: "ten", EventID: "evt", FullTickets: 1},
			wantErr: true,
		},
		{
			name:    "exhausted",
			coupon:  &models.Coupon{Code: "ten", DiscountType: models.DiscountFixed, DiscountValue: 5, MaxUses: intPtr(1), Uses: 1},
			req:     ValidateRequest{Code: "ten", EventID: "evt", FullTickets: 1},
			wantErr: true,
		},
		{
			name:    "other event",
			coupon:  &models.Coupon{Code: "ten", DiscountType: models.DiscountFixed, DiscountValue: 5, EventID: strPtr("other")},
			req:     ValidateRequest{Code: "ten", EventID: "evt", FullTickets: 1},
			wantErr: true,
		},
		{
			name:    "unknown",
			req:     ValidateRequest{Code: "ten", EventID: "evt", FullTickets: 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockCouponDB)
			if tt.coupon != nil {
				store.On("GetCouponByCode", ctx, tt.req.Code).Return(tt.coupon, nil)
			} else {
				store.On("GetCouponByCode", ctx, tt.req.Code).Return(nil, nil)
			}
			svc := newService(store)
			svc.now = func() time.Time { return now }

			preview, err := svc.ValidateCoupon(ctx, tt.req)

			if tt.wantErr {
				assert.True(t, models.IsValidation(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDiscount, preview.DiscountAmount)
			assert.Equal(t, tt.wantTotal, preview.TotalAmount)
		})
	}
}

func TestValidateCoupon_StoreError(t *testing.T) {
	ctx := context.Background()
	store := new(MockCouponDB)
	store.On("GetCouponByCode", ctx, "ten").Return(nil, errors.New("db down"))

	_, err := newService(store).ValidateCoupon(ctx, ValidateRequest{Code: "ten", FullTickets: 1})

	require.Error(t, err)
	assert.False(t, models.IsValidation(err))
}

func TestValidateCoupon_RequiresTickets(t *testing.T) {
	_, err := newService(new(MockCouponDB)).ValidateCoupon(context.Background(), ValidateRequest{Code: "ten"})
	assert.True(t, models.IsValidation(err))
}
