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
	_, err := d.Bun.NewCreateTable().Model((*Participant)(nil)).IfNotExists().Exec(ctx)
	return err
}

// SaveParticipant → insert, assigning the ID
func (d *DB) SaveParticipant(ctx context.Context, p *models.Participant) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if _, err := d.Bun.NewInsert().Model(toRow(p)).Exec(ctx); err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// GetParticipantByID returns nil, nil when absent.
func (d *DB) GetParticipantByID(ctx context.Context, id string) (*models.Participant, error) {
	return d.selectOne(ctx, "id = ?", id)
}

func (d *DB) GetParticipantByQRCode(ctx context.Context, token string) (*models.Participant, error) {
	return d.selectOne(ctx, "qr_code = ?", token)
}

func (d *DB) GetParticipantsByCheckoutID(ctx context.Context, checkoutID string) ([]*models.Participant, error) {
	var rows []Participant
	err := d.Bun.NewSelect().
		Model(&rows).
		Where("checkout_id = ?", checkoutID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select participants of checkout %s: %w", checkoutID, err)
	}

	out := make([]*models.Participant, 0, len(rows))
	for i := range rows {
		out = append(out, d.toModel(&rows[i]))
	}
	return out, nil
}

func (d *DB) UpdateParticipant(ctx context.Context, p *models.Participant) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := d.Bun.NewUpdate().
		Model(toRow(p)).
		ExcludeColumn("id", "created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update participant %s: %w", p.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &models.NotFoundError{Entity: "participant", ID: p.ID}
	}
	return nil
}

// DeleteParticipantsByCheckoutID removes every participant of a checkout and returns how many went.
func (d *DB) DeleteParticipantsByCheckoutID(ctx context.Context, checkoutID string) (int, error) {
	res, err := d.Bun.NewDelete().
		Model((*Participant)(nil)).
		Where("checkout_id = ?", checkoutID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete participants of checkout %s: %w", checkoutID, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (d *DB) selectOne(ctx context.Context, where string, arg interface{}) (*models.Participant, error) {
	row := new(Participant)
	err := d.Bun.NewSelect().Model(row).Where(where, arg).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select participant: %w", err)
	}
	return d.toModel(row), nil
}

func toRow(p *models.Participant) *Participant {
	row := &Participant{
		ID:         p.ID,
		Name:       p.Name,
		Email:      p.Email,
		Phone:      p.Phone,
		Document:   p.Document,
		EventID:    p.EventID,
		CheckoutID: p.CheckoutID,
		TicketType: string(p.TicketType),
		CheckedIn:  p.CheckedIn,
		QRCode:     p.QRCode,
		CreatedAt:  utils.FormatTimestamp(p.CreatedAt),
		UpdatedAt:  utils.FormatTimestamp(p.UpdatedAt),
	}
	if p.CheckedInAt != nil {
		at := utils.FormatTimestamp(*p.CheckedInAt)
		row.CheckedInAt = &at
	}
	return row
}

func (d *DB) toModel(row *Participant) *models.Participant {
	p := &models.Participant{
		ID:         row.ID,
		Name:       row.Name,
		Email:      row.Email,
		Phone:      row.Phone,
		Document:   row.Document,
		EventID:    row.EventID,
		CheckoutID: row.CheckoutID,
		TicketType: models.TicketType(row.TicketType),
		CheckedIn:  row.CheckedIn,
		QRCode:     row.QRCode,
		CreatedAt:  d.parseTime(row.ID, "created_at", row.CreatedAt),
		UpdatedAt:  d.parseTime(row.ID, "updated_at", row.UpdatedAt),
	}
	if row.CheckedInAt != nil {
		if at, ok := utils.ParseTimestamp(*row.CheckedInAt); ok {
			p.CheckedInAt = &at
		} else if d.Logger != nil {
			d.Logger.Warn("DATABASE", fmt.Sprintf("participant %s has invalid checked_in_at %q", row.ID, *row.CheckedInAt))
		}
	}
	return p
}

func (d *DB) parseTime(id, column, raw string) time.Time {
	if t, ok := utils.ParseTimestamp(raw); ok {
		return t
	}
	if d.Logger != nil {
		d.Logger.Warn("DATABASE", fmt.Sprintf("participant %s has invalid %s %q, using current time", id, column, raw))
	}
	return time.Now().UTC()
}
