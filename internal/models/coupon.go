package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Coupon struct {
	ID            string       `json:"id"`
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue float64      `json:"discountValue"`
	EventID       *string      `json:"eventId,omitempty"`
	MaxUses       *int         `json:"maxUses,omitempty"`
	Uses          int          `json:"uses"`
	ExpiresAt     *time.Time   `json:"expiresAt,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

type NewCouponParams struct {
	Code          string
	DiscountType  DiscountType
	DiscountValue float64
	EventID       *string
	MaxUses       *int
	ExpiresAt     *time.Time
}

// NormalizeCouponCode is applied at every lookup boundary.
func NormalizeCouponCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func NewCoupon(p NewCouponParams) (*Coupon, error) {
	now := time.Now().UTC()
	c := &Coupon{
		Code:          NormalizeCouponCode(p.Code),
		DiscountType:  p.DiscountType,
		DiscountValue: p.DiscountValue,
		EventID:       p.EventID,
		MaxUses:       p.MaxUses,
		ExpiresAt:     p.ExpiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Coupon) Validate() error {
	if c.Code == "" {
		return NewValidationError("code", "coupon code is required")
	}
	switch c.DiscountType {
	case DiscountPercentage, DiscountFixed:
	default:
		return NewValidationError("discountType", "unsupported discount type %q", c.DiscountType)
	}
	if c.DiscountValue <= 0 {
		return NewValidationError("discountValue", "discount value must be greater than zero")
	}
	if c.DiscountType == DiscountPercentage && c.DiscountValue > 100 {
		return NewValidationError("discountValue", "percentage discount cannot exceed 100")
	}
	if c.Uses < 0 {
		return NewValidationError("uses", "uses cannot be negative")
	}
	if c.MaxUses != nil {
		if *c.MaxUses < 1 {
			return NewValidationError("maxUses", "max uses must be positive")
		}
		if c.Uses > *c.MaxUses {
			return NewValidationError("uses", "uses (%d) exceed max uses (%d)", c.Uses, *c.MaxUses)
		}
	}
	return nil
}

func (c *Coupon) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

func (c *Coupon) IsExhausted() bool {
	return c.MaxUses != nil && c.Uses >= *c.MaxUses
}

// AppliesToEvent is true for unscoped coupons or a matching event.
func (c *Coupon) AppliesToEvent(eventID string) bool {
	return c.EventID == nil || *c.EventID == "" || *c.EventID == eventID
}

// CheckUsable reports why the coupon cannot be used for the event, if it cannot.
func (c *Coupon) CheckUsable(eventID string, now time.Time) error {
	if c.IsExpired(now) {
		return NewValidationError("couponCode", "coupon %s has expired", c.Code)
	}
	if c.IsExhausted() {
		return NewValidationError("couponCode", "coupon %s has reached its usage limit", c.Code)
	}
	if !c.AppliesToEvent(eventID) {
		return NewValidationError("couponCode", "coupon %s is not valid for this event", c.Code)
	}
	return nil
}

// CalculateDiscount returns the discount for an order amount. Fixed coupons are flat.
func (c *Coupon) CalculateDiscount(originalAmount float64) float64 {
	switch c.DiscountType {
	case DiscountPercentage:
		return decimal.NewFromFloat(originalAmount).
			Mul(decimal.NewFromFloat(c.DiscountValue)).
			Div(decimal.NewFromInt(100)).
			Round(2).
			InexactFloat64()
	case DiscountFixed:
		return RoundMoney(c.DiscountValue)
	}
	return 0
}

func (c *Coupon) IncrementUses() error {
	if c.IsExhausted() {
		return NewValidationError("uses", "coupon %s has reached its usage limit", c.Code)
	}
	c.Uses++
	c.UpdatedAt = time.Now().UTC()
	return nil
}
