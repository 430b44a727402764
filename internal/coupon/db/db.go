package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/utils"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DB struct {
	Bun    *bun.DB
	Logger *logger.Logger
}

func New(bunDB *bun.DB, log *logger.Logger) *DB {
	return &DB{Bun: bunDB, Logger: log}
}

func (d *DB) CreateTables(ctx context.Context) error {
	_, err := d.Bun.NewCreateTable().Model((*Coupon)(nil)).IfNotExists().Exec(ctx)
	return err
}

func (d *DB) SaveCoupon(ctx context.Context, c *models.Coupon) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Code = models.NormalizeCouponCode(c.Code)
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	if _, err := d.Bun.NewInsert().Model(toRow(c)).Exec(ctx); err != nil {
		return fmt.Errorf("insert coupon %s: %w", c.Code, err)
	}
	return nil
}

// GetCouponByCode looks the code up case-insensitively. Missing coupons return nil, nil.
func (d *DB) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	row := new(Coupon)
	err := d.Bun.NewSelect().
		Model(row).
		Where("code = ?", models.NormalizeCouponCode(code)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select coupon %s: %w", code, err)
	}
	return d.toModel(row), nil
}

func (d *DB) ListCoupons(ctx context.Context, eventID string) ([]*models.Coupon, error) {
	var rows []Coupon
	q := d.Bun.NewSelect().Model(&rows).Order("code ASC")
	if eventID != "" {
		q = q.Where("event_id = ?", eventID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	out := make([]*models.Coupon, 0, len(rows))
	for i := range rows {
		out = append(out, d.toModel(&rows[i]))
	}
	return out, nil
}

func (d *DB) UpdateCoupon(ctx context.Context, c *models.Coupon) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := d.Bun.NewUpdate().
		Model(toRow(c)).
		ExcludeColumn("id", "created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update coupon %s: %w", c.Code, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &models.NotFoundError{Entity: "coupon", ID: c.Code}
	}
	return nil
}

func (d *DB) DeleteCoupon(ctx context.Context, code string) error {
	code = models.NormalizeCouponCode(code)
	res, err := d.Bun.NewDelete().Model((*Coupon)(nil)).Where("code = ?", code).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete coupon %s: %w", code, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &models.NotFoundError{Entity: "coupon", ID: code}
	}
	return nil
}

func toRow(c *models.Coupon) *Coupon {
	row := &Coupon{
		ID:            c.ID,
		Code:          models.NormalizeCouponCode(c.Code),
		DiscountType:  string(c.DiscountType),
		DiscountValue: c.DiscountValue,
		EventID:       c.EventID,
		MaxUses:       c.MaxUses,
		Uses:          c.Uses,
		CreatedAt:     utils.FormatTimestamp(c.CreatedAt),
		UpdatedAt:     utils.FormatTimestamp(c.UpdatedAt),
	}
	if c.ExpiresAt != nil {
		at := utils.FormatTimestamp(*c.ExpiresAt)
		row.ExpiresAt = &at
	}
	return row
}

func (d *DB) toModel(row *Coupon) *models.Coupon {
	c := &models.Coupon{
		ID:            row.ID,
		Code:          row.Code,
		DiscountType:  models.DiscountType(row.DiscountType),
		DiscountValue: row.DiscountValue,
		EventID:       row.EventID,
		MaxUses:       row.MaxUses,
		Uses:          row.Uses,
		CreatedAt:     d.parseTime(row.Code, "created_at", row.CreatedAt),
		UpdatedAt:     d.parseTime(row.Code, "updated_at", row.UpdatedAt),
	}
	if row.ExpiresAt != nil {
		if at, ok := utils.ParseTimestamp(*row.ExpiresAt); ok {
			c.ExpiresAt = &at
		} else if d.Logger != nil {
			d.Logger.Warn("DATABASE", fmt.Sprintf("coupon %s has invalid expires_at %q, treating as no expiry", row.Code, *row.ExpiresAt))
		}
	}
	return c
}

func (d *DB) parseTime(code, column, raw string) time.Time {
	if t, ok := utils.ParseTimestamp(raw); ok {
		return t
	}
	if d.Logger != nil {
		d.Logger.Warn("DATABASE", fmt.Sprintf("coupon %s has invalid %s %q, using current time", code, column, raw))
	}
	return time.Now().UTC()
}
