package db

import "github.com/uptrace/bun"

type Coupon struct {
	bun.BaseModel `bun:"table:coupons"`

	ID            string  `bun:"id,pk"`
	Code          string  `bun:"code,notnull,unique"`
	DiscountType  string  `bun:"discount_type,notnull"`
	DiscountValue float64 `bun:"discount_value,notnull"`
	EventID       *string `bun:"event_id"`
	MaxUses       *int    `bun:"max_uses"`
	Uses          int     `bun:"uses,notnull"`
	ExpiresAt     *string `bun:"expires_at"`
	CreatedAt     string  `bun:"created_at"`
	UpdatedAt     string  `bun:"updated_at"`
}
