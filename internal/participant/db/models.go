package db

import "github.com/uptrace/bun"

type Participant struct {
	bun.BaseModel `bun:"table:participants"`

	ID          string  `bun:"id,pk"`
	Name        string  `bun:"name,notnull"`
	Email       string  `bun:"email,notnull"`
	Phone       string  `bun:"phone"`
	Document    string  `bun:"document"`
	EventID     string  `bun:"event_id"`
	CheckoutID  string  `bun:"checkout_id"`
	TicketType  string  `bun:"ticket_type,notnull"`
	CheckedIn   bool    `bun:"checked_in,notnull"`
	CheckedInAt *string `bun:"checked_in_at"`
	QRCode      *string `bun:"qr_code"`
	CreatedAt   string  `bun:"created_at"`
	UpdatedAt   string  `bun:"updated_at"`
}
