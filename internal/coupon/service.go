package coupon

import (
	"context"
	"fmt"
	"ms-checkout/internal/checkout"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"time"
)

// Store is the persistence the coupon service needs.
type Store interface {
	SaveCoupon(ctx context.Context, c *models.Coupon) error
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	ListCoupons(ctx context.Context, eventID string) ([]*models.Coupon, error)
	UpdateCoupon(ctx context.Context, c *models.Coupon) error
	DeleteCoupon(ctx context.Context, code string) error
}

type Service struct {
	store   Store
	pricing checkout.PriceTable
	logger  *logger.Logger
	now     func() time.Time
}

func NewService(store Store, pricing checkout.PriceTable, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewConsoleLogger()
	}
	return &Service{store: store, pricing: pricing, logger: log, now: time.Now}
}

type CreateCouponRequest struct {
	Code          string              `json:"code"`
	DiscountType  models.DiscountType `json:"discountType"`
	DiscountValue float64             `json:"discountValue"`
	EventID       *string             `json:"eventId,omitempty"`
	MaxUses       *int                `json:"maxUses,omitempty"`
	ExpiresAt     *time.Time          `json:"expiresAt,omitempty"`
}

// UpdateCouponRequest only touches the fields that are set.
type UpdateCouponRequest struct {
	DiscountType  *models.DiscountType `json:"discountType,omitempty"`
	DiscountValue *float64             `json:"discountValue,omitempty"`
	EventID       *string              `json:"eventId,omitempty"`
	MaxUses       *int                 `json:"maxUses,omitempty"`
	ExpiresAt     *time.Time           `json:"expiresAt,omitempty"`
}

type ValidateRequest struct {
	Code        string `json:"code"`
	EventID     string `json:"eventId"`
	FullTickets int    `json:"fullTickets"`
	HalfTickets int    `json:"halfTickets"`
}

// Preview is what an order would cost with the coupon applied.
type Preview struct {
	Coupon         *models.Coupon `json:"coupon"`
	OriginalAmount float64        `json:"originalAmount"`
	DiscountAmount float64        `json:"discountAmount"`
	TotalAmount    float64        `json:"totalAmount"`
}

func (s *Service) CreateCoupon(ctx context.Context, req CreateCouponRequest) (*models.Coupon, error) {
	c, err := models.NewCoupon(models.NewCouponParams{
		Code:          req.Code,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		EventID:       req.EventID,
		MaxUses:       req.MaxUses,
		ExpiresAt:     req.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetCouponByCode(ctx, c.Code)
	if err != nil {
		return nil, fmt.Errorf("check coupon %s: %w", c.Code, err)
	}
	if existing != nil {
		return nil, models.NewValidationError("code", "coupon %s already exists", c.Code)
	}

	if err := s.store.SaveCoupon(ctx, c); err != nil {
		return nil, fmt.Errorf("save coupon: %w", err)
	}
	s.logger.Info("COUPON", fmt.Sprintf("Coupon %s created (%s %.2f)", c.Code, c.DiscountType, c.DiscountValue))
	return c, nil
}

func (s *Service) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	c, err := s.store.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get coupon %s: %w", code, err)
	}
	if c == nil {
		return nil, &models.NotFoundError{Entity: "coupon", ID: models.NormalizeCouponCode(code)}
	}
	return c, nil
}

func (s *Service) ListCoupons(ctx context.Context, eventID string) ([]*models.Coupon, error) {
	return s.store.ListCoupons(ctx, eventID)
}

func (s *Service) UpdateCoupon(ctx context.Context, code string, req UpdateCouponRequest) (*models.Coupon, error) {
	c, err := s.GetCoupon(ctx, code)
	if err != nil {
		return nil, err
	}

	if req.DiscountType != nil {
		c.DiscountType = *req.DiscountType
	}
	if req.DiscountValue != nil {
		c.DiscountValue = *req.DiscountValue
	}
	if req.EventID != nil {
		c.EventID = req.EventID
	}
	if req.MaxUses != nil {
		c.MaxUses = req.MaxUses
	}
	if req.ExpiresAt != nil {
		c.ExpiresAt = req.ExpiresAt
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.UpdateCoupon(ctx, c); err != nil {
		return nil, fmt.Errorf("update coupon %s: %w", c.Code, err)
	}
	s.logger.Info("COUPON", fmt.Sprintf("Coupon %s updated", c.Code))
	return c, nil
}

func (s *Service) DeleteCoupon(ctx context.Context, code string) error {
	if err := s.store.DeleteCoupon(ctx, code); err != nil {
		return err
	}
	s.logger.Info("COUPON", fmt.Sprintf("Coupon %s deleted", models.NormalizeCouponCode(code)))
	return nil
}

// ValidateCoupon checks a code against an event and prices the order it would apply to.
func (s *Service) ValidateCoupon(ctx context.Context, req ValidateRequest) (*Preview, error) {
	if models.NormalizeCouponCode(req.Code) == "" {
		return nil, models.NewValidationError("code", "coupon code is required")
	}
	if req.FullTickets < 0 || req.HalfTickets < 0 {
		return nil, models.NewValidationError("tickets", "ticket counts cannot be negative")
	}
	if req.FullTickets+req.HalfTickets == 0 {
		return nil, models.NewValidationError("tickets", "at least one ticket is required")
	}

	c, err := s.store.GetCouponByCode(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("get coupon %s: %w", req.Code, err)
	}
	if c == nil {
		return nil, models.NewValidationError("code", "coupon %s not found", models.NormalizeCouponCode(req.Code))
	}
	if err := c.CheckUsable(req.EventID, s.now()); err != nil {
		return nil, err
	}

	quote := s.pricing.Quote(req.FullTickets, req.HalfTickets)
	discount := c.CalculateDiscount(quote.Original)
	if discount > quote.Original {
		discount = quote.Original
	}
	return &Preview{
		Coupon:         c,
		OriginalAmount: quote.Original,
		DiscountAmount: models.RoundMoney(discount),
		TotalAmount:    models.SubtractMoney(quote.Original, discount),
	}, nil
}
