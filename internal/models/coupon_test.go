package models_test

import (
	"ms-checkout/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestNewCoupon_Validation(t *testing.T) {
	cases := []struct {
		name   string
		params models.NewCouponParams
	}{
		{"missing code", models.NewCouponParams{DiscountType: models.DiscountFixed, DiscountValue: 10}},
		{"zero value", models.NewCouponParams{Code: "x", DiscountType: models.DiscountFixed, DiscountValue: 0}},
		{"percentage over 100", models.NewCouponParams{Code: "x", DiscountType: models.DiscountPercentage, DiscountValue: 120}},
		{"unknown type", models.NewCouponParams{Code: "x", DiscountType: "bogo", DiscountValue: 10}},
		{"non positive max uses", models.NewCouponParams{Code: "x", DiscountType: models.DiscountFixed, DiscountValue: 10, MaxUses: intPtr(0)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := models.NewCoupon(tc.params)
			assert.True(t, models.IsValidation(err))
		})
	}

	c, err := models.NewCoupon(models.NewCouponParams{Code: "  Summer10 ", DiscountType: models.DiscountPercentage, DiscountValue: 10})
	require.NoError(t, err)
	assert.Equal(t, "summer10", c.Code)
}

func TestCalculateDiscount(t *testing.T) {
	pct := &models.Coupon{Code: "pct", DiscountType: models.DiscountPercentage, DiscountValue: 10}
	assert.Equal(t, 99.8, pct.CalculateDiscount(998))

	fixed := &models.Coupon{Code: "fixed", DiscountType: models.DiscountFixed, DiscountValue: 50}
	assert.Equal(t, 50.0, fixed.CalculateDiscount(998))
	assert.Equal(t, 50.0, fixed.CalculateDiscount(20))
}

func TestIncrementUses(t *testing.T) {
	c := &models.Coupon{Code: "limited", DiscountType: models.DiscountFixed, DiscountValue: 5, MaxUses: intPtr(2), Uses: 1}
	assert.False(t, c.IsExhausted())

	require.NoError(t, c.IncrementUses())
	assert.Equal(t, 2, c.Uses)
	assert.True(t, c.IsExhausted())

	err := c.IncrementUses()
	assert.True(t, models.IsValidation(err))
	assert.Equal(t, 2, c.Uses)

	unlimited := &models.Coupon{Code: "open", DiscountType: models.DiscountFixed, DiscountValue: 5}
	for i := 0; i < 5; i++ {
		require.NoError(t, unlimited.IncrementUses())
	}
	assert.Equal(t, 5, unlimited.Uses)
}

func TestCheckUsable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	event := "event-1"

	expired := &models.Coupon{Code: "old", DiscountType: models.DiscountFixed, DiscountValue: 5, ExpiresAt: &past}
	assert.True(t, models.IsValidation(expired.CheckUsable(event, now)))

	exhausted := &models.Coupon{Code: "used", DiscountType: models.DiscountFixed, DiscountValue: 5, MaxUses: intPtr(1), Uses: 1}
	assert.True(t, models.IsValidation(exhausted.CheckUsable(event, now)))

	other := "event-2"
	scoped := &models.Coupon{Code: "scoped", DiscountType: models.DiscountFixed, DiscountValue: 5, EventID: &other}
	assert.True(t, models.IsValidation(scoped.CheckUsable(event, now)))

	valid := &models.Coupon{Code: "ok", DiscountType: models.DiscountFixed, DiscountValue: 5, EventID: &event, ExpiresAt: &future}
	assert.NoError(t, valid.CheckUsable(event, now))
}
