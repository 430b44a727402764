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

// CreateTables creates the checkouts table when it is missing. Production schemas come from migrations.
func (d *DB) CreateTables(ctx context.Context) error {
	_, err := d.Bun.NewCreateTable().Model((*Checkout)(nil)).IfNotExists().Exec(ctx)
	return err
}

// SaveCheckout → insert a new checkout, assigning its ID
func (d *DB) SaveCheckout(ctx context.Context, c *models.Checkout) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	row := toRow(c)
	if _, err := d.Bun.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert checkout %s: %w", c.ID, err)
	}
	d.debug("INSERT", c.ID)
	return nil
}

// GetCheckoutByID returns nil, nil when no row matches.
func (d *DB) GetCheckoutByID(ctx context.Context, id string) (*models.Checkout, error) {
	row := new(Checkout)
	err := d.Bun.NewSelect().Model(row).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select checkout %s: %w", id, err)
	}
	return d.toModel(row), nil
}

// UpdateCheckout → overwrite every mutable column
func (d *DB) UpdateCheckout(ctx context.Context, c *models.Checkout) error {
	c.UpdatedAt = time.Now().UTC()
	row := toRow(c)
	res, err := d.Bun.NewUpdate().
		Model(row).
		ExcludeColumn("id", "created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update checkout %s: %w", c.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &models.NotFoundError{Entity: "checkout", ID: c.ID}
	}
	d.debug("UPDATE", c.ID)
	return nil
}

func (d *DB) DeleteCheckout(ctx context.Context, id string) error {
	res, err := d.Bun.NewDelete().Model((*Checkout)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete checkout %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &models.NotFoundError{Entity: "checkout", ID: id}
	}
	d.debug("DELETE", id)
	return nil
}

func (d *DB) debug(op, id string) {
	if d.Logger != nil {
		d.Logger.LogDatabase(op, "checkouts", id)
	}
}

func toRow(c *models.Checkout) *Checkout {
	row := &Checkout{
		ID:             c.ID,
		EventID:        c.EventID(),
		FullTickets:    c.FullTickets,
		HalfTickets:    c.HalfTickets,
		TotalAmount:    c.TotalAmount,
		OriginalAmount: c.OriginalAmount,
		DiscountAmount: c.DiscountAmount,
		CouponCode:     c.CouponCode,
		Status:         string(c.Status),
		PaymentMethod:  c.PaymentMethod,
		PaymentID:      c.PaymentID,
		PreferenceID:   c.PreferenceID,
		PaymentURL:     c.PaymentURL,
		Metadata:       c.Metadata,
		CreatedAt:      utils.FormatTimestamp(c.CreatedAt),
		UpdatedAt:      utils.FormatTimestamp(c.UpdatedAt),
	}
	if c.Payer != nil {
		name, document := c.Payer.Name, c.Payer.Document
		row.PayerName = &name
		row.PayerDocument = &document
	}
	return row
}

func (d *DB) toModel(row *Checkout) *models.Checkout {
	c := &models.Checkout{
		ID:             row.ID,
		FullTickets:    row.FullTickets,
		HalfTickets:    row.HalfTickets,
		TotalAmount:    row.TotalAmount,
		OriginalAmount: row.OriginalAmount,
		DiscountAmount: row.DiscountAmount,
		CouponCode:     row.CouponCode,
		Status:         models.CheckoutStatus(row.Status),
		PaymentMethod:  row.PaymentMethod,
		PaymentID:      row.PaymentID,
		PreferenceID:   row.PreferenceID,
		PaymentURL:     row.PaymentURL,
		Metadata:       row.Metadata,
		CreatedAt:      d.parseTime(row.ID, "created_at", row.CreatedAt),
		UpdatedAt:      d.parseTime(row.ID, "updated_at", row.UpdatedAt),
	}
	if c.Metadata.EventID == "" {
		c.Metadata.EventID = row.EventID
	}
	if row.PayerName != nil || row.PayerDocument != nil {
		c.Payer = &models.Payer{}
		if row.PayerName != nil {
			c.Payer.Name = *row.PayerName
		}
		if row.PayerDocument != nil {
			c.Payer.Document = *row.PayerDocument
		}
	}
	return c
}

// parseTime substitutes the current time for malformed legacy values.
func (d *DB) parseTime(id, column, raw string) time.Time {
	if t, ok := utils.ParseTimestamp(raw); ok {
		return t
	}
	if d.Logger != nil {
		d.Logger.Warn("DATABASE", fmt.Sprintf("checkout %s has invalid %s %q, using current time", id, column, raw))
	}
	return time.Now().UTC()
}
