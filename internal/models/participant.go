package models

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

type TicketType string

const (
	TicketFull TicketType = "full"
	TicketHalf TicketType = "half"
	TicketVIP  TicketType = "vip"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	minNameLength  = 3
	minPhoneDigits = 10
)

type Participant struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	Document    string     `json:"document"`
	EventID     string     `json:"eventId"`
	CheckoutID  string     `json:"checkoutId"`
	TicketType  TicketType `json:"ticketType"`
	CheckedIn   bool       `json:"checkedIn"`
	CheckedInAt *time.Time `json:"checkedInAt,omitempty"`
	QRCode      *string    `json:"qrCode,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type NewParticipantParams struct {
	Name       string
	Email      string
	Phone      string
	Document   string
	EventID    string
	CheckoutID string
	TicketType TicketType
}

// TokenIssuer produces the opaque QR token printed on a registration.
type TokenIssuer interface {
	IssueToken(p *Participant) (string, error)
}

func NewParticipant(p NewParticipantParams) (*Participant, error) {
	now := time.Now().UTC()
	ticketType := p.TicketType
	if ticketType == "" {
		ticketType = TicketFull
	}
	participant := &Participant{
		Name:       strings.TrimSpace(p.Name),
		Email:      strings.TrimSpace(p.Email),
		Phone:      strings.TrimSpace(p.Phone),
		Document:   strings.TrimSpace(p.Document),
		EventID:    p.EventID,
		CheckoutID: p.CheckoutID,
		TicketType: ticketType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := participant.Validate(); err != nil {
		return nil, err
	}
	return participant, nil
}

func (p *Participant) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(p.Name)) < minNameLength {
		return NewValidationError("name", "name must have at least %d characters", minNameLength)
	}
	if !emailPattern.MatchString(p.Email) {
		return NewValidationError("email", "invalid email address %q", p.Email)
	}
	if len(PhoneDigits(p.Phone)) < minPhoneDigits {
		return NewValidationError("phone", "phone must have at least %d digits", minPhoneDigits)
	}
	switch p.TicketType {
	case TicketFull, TicketHalf, TicketVIP:
	default:
		return NewValidationError("ticketType", "unsupported ticket type %q", p.TicketType)
	}
	return nil
}

// PhoneDigits strips everything but digits.
func PhoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// GenerateQRCode issues a fresh token, replacing any previous one.
func (p *Participant) GenerateQRCode(issuer TokenIssuer) error {
	token, err := issuer.IssueToken(p)
	if err != nil {
		return err
	}
	p.QRCode = &token
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *Participant) CheckIn(now time.Time) error {
	if p.CheckedIn {
		return NewValidationError("checkedIn", "participant %s is already checked in", p.ID)
	}
	at := now.UTC()
	p.CheckedIn = true
	p.CheckedInAt = &at
	p.UpdatedAt = at
	return nil
}
