package participant

import (
	"context"
	"errors"
	"fmt"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/participant/qr"
	"strings"
	"time"
)

const qrImageSize = 256

type ParticipantDBLayer interface {
	GetParticipantByID(ctx context.Context, id string) (*models.Participant, error)
	GetParticipantByQRCode(ctx context.Context, token string) (*models.Participant, error)
	GetParticipantsByCheckoutID(ctx context.Context, checkoutID string) ([]*models.Participant, error)
	UpdateParticipant(ctx context.Context, p *models.Participant) error
}

type CheckoutReader interface {
	GetCheckoutByID(ctx context.Context, id string) (*models.Checkout, error)
}

// Codes issues, verifies and renders participant QR tokens.
type Codes interface {
	IssueToken(p *models.Participant) (string, error)
	Decode(token string) (*qr.Claims, error)
	PNG(token string, size int) ([]byte, error)
}

type ParticipantService struct {
	DB        ParticipantDBLayer
	Checkouts CheckoutReader
	Codes     Codes
	Logger    *logger.Logger
	now       func() time.Time
}

func NewParticipantService(db ParticipantDBLayer, checkouts CheckoutReader, codes Codes, log *logger.Logger) *ParticipantService {
	if log == nil {
		log = logger.NewConsoleLogger()
	}
	return &ParticipantService{DB: db, Checkouts: checkouts, Codes: codes, Logger: log, now: time.Now}
}

// UpdateParticipantRequest carries contact changes. Nil fields are left alone.
type UpdateParticipantRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Document *string `json:"document,omitempty"`
}

func (s *ParticipantService) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	p, err := s.DB.GetParticipantByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get participant %s: %w", id, err)
	}
	if p == nil {
		return nil, &models.NotFoundError{Entity: "participant", ID: id}
	}
	return p, nil
}

func (s *ParticipantService) ListByCheckout(ctx context.Context, checkoutID string) ([]*models.Participant, error) {
	order, err := s.Checkouts.GetCheckoutByID(ctx, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("get checkout %s: %w", checkoutID, err)
	}
	if order == nil {
		return nil, &models.NotFoundError{Entity: "checkout", ID: checkoutID}
	}
	participants, err := s.DB.GetParticipantsByCheckoutID(ctx, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("list participants of checkout %s: %w", checkoutID, err)
	}
	return participants, nil
}

func (s *ParticipantService) UpdateParticipant(ctx context.Context, id string, req UpdateParticipantRequest) (*models.Participant, error) {
	p, err := s.GetParticipant(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		p.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		p.Phone = strings.TrimSpace(*req.Phone)
	}
	reissue := false
	if req.Document != nil && strings.TrimSpace(*req.Document) != p.Document {
		p.Document = strings.TrimSpace(*req.Document)
		reissue = true
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	// the token seals the document, so a new document invalidates the old code
	if reissue && p.QRCode != nil {
		if err := p.GenerateQRCode(s.Codes); err != nil {
			return nil, fmt.Errorf("reissue qr code for participant %s: %w", id, err)
		}
	}

	if err := s.DB.UpdateParticipant(ctx, p); err != nil {
		return nil, fmt.Errorf("update participant %s: %w", id, err)
	}
	s.Logger.Info("PARTICIPANT", fmt.Sprintf("Participant %s updated", id))
	return p, nil
}

// CheckIn admits a participant whose order has been paid.
func (s *ParticipantService) CheckIn(ctx context.Context, id string) (*models.Participant, error) {
	p, err := s.GetParticipant(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.checkIn(ctx, p)
}

// CheckInByQRCode admits the holder of a scanned token. Tokens that do not decrypt are rejected before any lookup.
func (s *ParticipantService) CheckInByQRCode(ctx context.Context, token string) (*models.Participant, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, models.NewValidationError("qrCode", "qr code is required")
	}
	claims, err := s.Codes.Decode(token)
	if err != nil {
		s.Logger.LogSecurity("qr_rejected", "QR code failed to decrypt")
		if errors.Is(err, qr.ErrInvalidToken) {
			return nil, models.NewValidationError("qrCode", "invalid qr code")
		}
		return nil, fmt.Errorf("decode qr code: %w", err)
	}

	p, err := s.DB.GetParticipantByQRCode(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("find participant by qr code: %w", err)
	}
	if p == nil {
		return nil, &models.NotFoundError{Entity: "participant", ID: "qr:" + claims.CheckoutID}
	}
	if claims.CheckoutID != p.CheckoutID {
		s.Logger.LogSecurity("qr_mismatch", fmt.Sprintf("QR code claims checkout %s but belongs to %s", claims.CheckoutID, p.CheckoutID))
		return nil, models.NewValidationError("qrCode", "invalid qr code")
	}
	return s.checkIn(ctx, p)
}

func (s *ParticipantService) checkIn(ctx context.Context, p *models.Participant) (*models.Participant, error) {
	order, err := s.Checkouts.GetCheckoutByID(ctx, p.CheckoutID)
	if err != nil {
		return nil, fmt.Errorf("get checkout %s: %w", p.CheckoutID, err)
	}
	if order == nil || order.Status != models.CheckoutApproved {
		return nil, models.NewValidationError("checkout", "order of participant %s is not paid", p.ID)
	}

	if err := p.CheckIn(s.now()); err != nil {
		return nil, err
	}
	if err := s.DB.UpdateParticipant(ctx, p); err != nil {
		return nil, fmt.Errorf("check in participant %s: %w", p.ID, err)
	}
	s.Logger.Info("PARTICIPANT", fmt.Sprintf("Participant %s checked in for event %s", p.ID, p.EventID))
	return p, nil
}

// QRCodePNG renders the participant's current token.
func (s *ParticipantService) QRCodePNG(ctx context.Context, id string) ([]byte, error) {
	p, err := s.GetParticipant(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.QRCode == nil || *p.QRCode == "" {
		return nil, &models.NotFoundError{Entity: "qr code", ID: id}
	}
	png, err := s.Codes.PNG(*p.QRCode, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("render qr code for participant %s: %w", id, err)
	}
	return png, nil
}
