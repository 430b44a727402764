package db

import (
	"ms-checkout/internal/models"

	"github.com/uptrace/bun"
)

// Checkout is the stored row for a models.Checkout. Timestamps are ISO-8601 strings.
type Checkout struct {
	bun.BaseModel `bun:"table:checkouts"`

	ID             string                  `bun:"id,pk"`
	EventID        string                  `bun:"event_id"`
	FullTickets    int                     `bun:"full_tickets,notnull"`
	HalfTickets    int                     `bun:"half_tickets,notnull"`
	TotalAmount    *float64                `bun:"total_amount"`
	OriginalAmount *float64                `bun:"original_amount"`
	DiscountAmount *float64                `bun:"discount_amount"`
	CouponCode     *string                 `bun:"coupon_code"`
	Status         string                  `bun:"status,notnull"`
	PaymentMethod  *string                 `bun:"payment_method"`
	PayerName      *string                 `bun:"payer_name"`
	PayerDocument  *string                 `bun:"payer_document"`
	PaymentID      *string                 `bun:"payment_id"`
	PreferenceID   *string                 `bun:"preference_id"`
	PaymentURL     *string                 `bun:"payment_url"`
	Metadata       models.CheckoutMetadata `bun:"metadata"`
	CreatedAt      string                  `bun:"created_at"`
	UpdatedAt      string                  `bun:"updated_at"`
}
