package models

import (
	"fmt"
	"strings"
	"time"
)

type CheckoutStatus string

const (
	CheckoutPending    CheckoutStatus = "pending"
	CheckoutProcessing CheckoutStatus = "processing"
	CheckoutApproved   CheckoutStatus = "approved"
	CheckoutRejected   CheckoutStatus = "rejected"
	CheckoutFailed     CheckoutStatus = "failed"
	CheckoutCancelled  CheckoutStatus = "cancelled"
	CheckoutRefunded   CheckoutStatus = "refunded"
)

func (s CheckoutStatus) Valid() bool {
	switch s {
	case CheckoutPending, CheckoutProcessing, CheckoutApproved, CheckoutRejected,
		CheckoutFailed, CheckoutCancelled, CheckoutRefunded:
		return true
	}
	return false
}

// Metadata flag keys.
const (
	FlagManualPayment = "manualPayment"
	FlagFreeOrder     = "freeOrder"
)

type Payer struct {
	Name     string `json:"name"`
	Document string `json:"document"`
}

type CheckoutMetadata struct {
	ParticipantIDs []string               `json:"participantIds,omitempty"`
	EventID        string                 `json:"eventId,omitempty"`
	RetryCount     int                    `json:"retryCount"`
	Error          string                 `json:"error,omitempty"`
	Flags          map[string]interface{} `json:"flags,omitempty"`
}

// Checkout is a ticket purchase order. The ID is assigned by the repository on first save.
type Checkout struct {
	ID             string           `json:"id"`
	FullTickets    int              `json:"fullTickets"`
	HalfTickets    int              `json:"halfTickets"`
	TotalAmount    *float64         `json:"totalAmount"`
	OriginalAmount *float64         `json:"originalAmount"`
	DiscountAmount *float64         `json:"discountAmount"`
	CouponCode     *string          `json:"couponCode"`
	Status         CheckoutStatus   `json:"status"`
	PaymentMethod  *string          `json:"paymentMethod"`
	Payer          *Payer           `json:"payer"`
	PaymentID      *string          `json:"paymentId"`
	PreferenceID   *string          `json:"preferenceId"`
	PaymentURL     *string          `json:"paymentUrl"`
	Metadata       CheckoutMetadata `json:"metadata"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

type NewCheckoutParams struct {
	EventID        string
	FullTickets    int
	HalfTickets    int
	OriginalAmount float64
}

// NewCheckout builds a pending checkout with no discount applied.
func NewCheckout(p NewCheckoutParams) (*Checkout, error) {
	now := time.Now().UTC()
	original := RoundMoney(p.OriginalAmount)
	c := &Checkout{
		FullTickets:    p.FullTickets,
		HalfTickets:    p.HalfTickets,
		OriginalAmount: floatPtr(original),
		DiscountAmount: floatPtr(0),
		TotalAmount:    floatPtr(original),
		Status:         CheckoutPending,
		Metadata:       CheckoutMetadata{EventID: p.EventID},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Checkout) Validate() error {
	if c.FullTickets < 0 || c.HalfTickets < 0 {
		return NewValidationError("tickets", "ticket counts cannot be negative")
	}
	if c.FullTickets == 0 && c.HalfTickets == 0 {
		return NewValidationError("tickets", "at least one full or half ticket is required")
	}
	if !c.Status.Valid() {
		return NewValidationError("status", "unknown status %q", c.Status)
	}
	return nil
}

// transition sets the status and re-validates, restoring the previous status on failure.
func (c *Checkout) transition(next CheckoutStatus) error {
	prev := c.Status
	c.Status = next
	if err := c.Validate(); err != nil {
		c.Status = prev
		return err
	}
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (c *Checkout) StartProcessing() error {
	if c.Status != CheckoutPending {
		return fmt.Errorf("%w: cannot start processing checkout in status %s", ErrInvalidTransition, c.Status)
	}
	return c.transition(CheckoutProcessing)
}

// Approve records the provider payment ID and moves a pending or processing checkout to approved.
func (c *Checkout) Approve(paymentID string) error {
	if c.Status != CheckoutPending && c.Status != CheckoutProcessing {
		return fmt.Errorf("%w: cannot approve checkout in status %s", ErrInvalidTransition, c.Status)
	}
	prev := c.PaymentID
	if paymentID != "" {
		c.PaymentID = stringPtr(paymentID)
	}
	if err := c.transition(CheckoutApproved); err != nil {
		c.PaymentID = prev
		return err
	}
	return nil
}

func (c *Checkout) Reject(reason string) error {
	c.Metadata.Error = reason
	return c.transition(CheckoutRejected)
}

// Fail records the cause and bumps the retry counter.
func (c *Checkout) Fail(cause error) error {
	if cause != nil {
		c.Metadata.Error = cause.Error()
	}
	c.Metadata.RetryCount++
	return c.transition(CheckoutFailed)
}

// UpdateStatus is the lenient setter used for provider driven changes. It is a no-op when nothing changes.
func (c *Checkout) UpdateStatus(status CheckoutStatus) error {
	if c.Status == status {
		return nil
	}
	return c.transition(status)
}

func (c *Checkout) ApplyCoupon(code string, discount float64) error {
	if c.Status != CheckoutPending {
		return fmt.Errorf("%w: coupons can only be applied to pending checkouts (status %s)", ErrInvalidTransition, c.Status)
	}
	code = NormalizeCouponCode(code)
	if code == "" {
		return NewValidationError("couponCode", "coupon code is required")
	}
	if discount < 0 {
		return NewValidationError("discountAmount", "discount cannot be negative")
	}
	if c.OriginalAmount == nil {
		return NewValidationError("originalAmount", "original amount is not set")
	}
	c.CouponCode = stringPtr(code)
	c.DiscountAmount = floatPtr(RoundMoney(discount))
	c.recalculateTotal()
	return c.Validate()
}

func (c *Checkout) RemoveCoupon() error {
	if c.Status != CheckoutPending {
		return fmt.Errorf("%w: coupons can only be removed from pending checkouts (status %s)", ErrInvalidTransition, c.Status)
	}
	c.CouponCode = nil
	c.DiscountAmount = floatPtr(0)
	c.recalculateTotal()
	return c.Validate()
}

func (c *Checkout) recalculateTotal() {
	var original, discount float64
	if c.OriginalAmount != nil {
		original = *c.OriginalAmount
	}
	if c.DiscountAmount != nil {
		discount = *c.DiscountAmount
	}
	c.TotalAmount = floatPtr(SubtractMoney(original, discount))
	c.UpdatedAt = time.Now().UTC()
}

// Total returns the amount to charge, zero when unset.
func (c *Checkout) Total() float64 {
	if c.TotalAmount == nil {
		return 0
	}
	return *c.TotalAmount
}

func (c *Checkout) EventID() string {
	return c.Metadata.EventID
}

func (c *Checkout) LinkParticipants(ids []string) {
	c.Metadata.ParticipantIDs = append([]string(nil), ids...)
	c.UpdatedAt = time.Now().UTC()
}

func (c *Checkout) SetFlag(key string, value interface{}) {
	if c.Metadata.Flags == nil {
		c.Metadata.Flags = make(map[string]interface{})
	}
	c.Metadata.Flags[key] = value
}

func (c *Checkout) HasFlag(key string) bool {
	v, ok := c.Metadata.Flags[key]
	if !ok {
		return false
	}
	b, isBool := v.(bool)
	return !isBool || b
}

// SetPreference stores the hosted checkout reference returned by the provider.
func (c *Checkout) SetPreference(preferenceID, redirectURL string) {
	c.PreferenceID = stringPtr(preferenceID)
	if redirectURL != "" {
		c.PaymentURL = stringPtr(redirectURL)
	}
	c.UpdatedAt = time.Now().UTC()
}

// BackfillPayment fills or corrects provider payment fields. It reports whether anything changed.
func (c *Checkout) BackfillPayment(paymentID, method string, payer *Payer) bool {
	changed := false
	if paymentID != "" && (c.PaymentID == nil || *c.PaymentID != paymentID) {
		c.PaymentID = stringPtr(paymentID)
		changed = true
	}
	if method != "" && (c.PaymentMethod == nil || *c.PaymentMethod != method) {
		c.PaymentMethod = stringPtr(method)
		changed = true
	}
	if payer != nil && (c.Payer == nil || *c.Payer != *payer) {
		p := *payer
		c.Payer = &p
		changed = true
	}
	if changed {
		c.UpdatedAt = time.Now().UTC()
	}
	return changed
}

func (c *Checkout) HasCoupon() bool {
	return c.CouponCode != nil && strings.TrimSpace(*c.CouponCode) != ""
}
