package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ms-checkout/internal/config"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/metrics"
	"ms-checkout/internal/models"
	"strings"
	"time"
)

// ErrCheckoutFailed is returned by CreateCheckout once the order has been stored and then marked failed.
var ErrCheckoutFailed = errors.New("checkout creation failed")

type CheckoutStore interface {
	SaveCheckout(ctx context.Context, c *models.Checkout) error
	GetCheckoutByID(ctx context.Context, id string) (*models.Checkout, error)
	UpdateCheckout(ctx context.Context, c *models.Checkout) error
	DeleteCheckout(ctx context.Context, id string) error
}

type ParticipantStore interface {
	SaveParticipant(ctx context.Context, p *models.Participant) error
	GetParticipantsByCheckoutID(ctx context.Context, checkoutID string) ([]*models.Participant, error)
	DeleteParticipantsByCheckoutID(ctx context.Context, checkoutID string) (int, error)
}

type CouponStore interface {
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	UpdateCoupon(ctx context.Context, c *models.Coupon) error
}

type PaymentGateway interface {
	CreatePreference(ctx context.Context, req models.PreferenceRequest) (*models.Preference, error)
	GetPayment(ctx context.Context, paymentID string) (*models.PaymentInfo, error)
}

type Mailer interface {
	SendConfirmation(ctx context.Context, p *models.Participant, c *models.Checkout) error
}

type EventPublisher interface {
	Publish(topic, key string, value []byte) error
}

// ApprovalGuard reports whether this is the first approval seen for a checkout.
type ApprovalGuard interface {
	MarkApproved(ctx context.Context, checkoutID, paymentID string) (bool, error)
}

type StatusNotifier interface {
	Emit(c *models.Checkout)
}

// EventParser verifies and decodes a provider webhook. A nil notification means the event is not relevant.
type EventParser interface {
	ParseEvent(payload []byte, signature string) (*Notification, error)
}

type RedirectURLs struct {
	Success      string
	Failure      string
	Pending      string
	Notification string
}

type LookupPolicy struct {
	Attempts int
	Delay    time.Duration
}

// Deps wires a CheckoutService. Events, Guard, Notifier and StripeEvents are optional.
type Deps struct {
	Checkouts    CheckoutStore
	Participants ParticipantStore
	Coupons      CouponStore
	Gateway      PaymentGateway
	Mailer       Mailer
	Tokens       models.TokenIssuer
	Events       EventPublisher
	Guard        ApprovalGuard
	Notifier     StatusNotifier
	StripeEvents EventParser
	Verifier     *SignatureVerifier
	Pricing      PriceTable
	URLs         RedirectURLs
	Topics       config.TopicConfig
	Lookup       LookupPolicy
	Logger       *logger.Logger
}

type CheckoutService struct {
	checkouts    CheckoutStore
	participants ParticipantStore
	coupons      CouponStore
	gateway      PaymentGateway
	mailer       Mailer
	tokens       models.TokenIssuer
	events       EventPublisher
	guard        ApprovalGuard
	notifier     StatusNotifier
	stripeEvents EventParser
	verifier     *SignatureVerifier
	pricing      PriceTable
	urls         RedirectURLs
	topics       config.TopicConfig
	lookup       LookupPolicy
	logger       *logger.Logger
	now          func() time.Time
}

func NewCheckoutService(d Deps) *CheckoutService {
	log := d.Logger
	if log == nil {
		log = logger.NewConsoleLogger()
	}
	pricing := d.Pricing
	if len(pricing.Tiers) == 0 {
		pricing = DefaultPriceTable()
	}
	lookup := d.Lookup
	if lookup.Attempts < 1 {
		lookup.Attempts = 3
	}
	return &CheckoutService{
		checkouts:    d.Checkouts,
		participants: d.Participants,
		coupons:      d.Coupons,
		gateway:      d.Gateway,
		mailer:       d.Mailer,
		tokens:       d.Tokens,
		events:       d.Events,
		guard:        d.Guard,
		notifier:     d.Notifier,
		stripeEvents: d.StripeEvents,
		verifier:     d.Verifier,
		pricing:      pricing,
		urls:         d.URLs,
		topics:       d.Topics,
		lookup:       lookup,
		logger:       log,
		now:          time.Now,
	}
}

type ParticipantInput struct {
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone"`
	Document   string            `json:"document"`
	TicketType models.TicketType `json:"ticketType,omitempty"`
}

type CreateCheckoutRequest struct {
	EventID      string             `json:"eventId"`
	FullTickets  int                `json:"fullTickets"`
	HalfTickets  int                `json:"halfTickets"`
	CouponCode   string             `json:"couponCode,omitempty"`
	PayerEmail   string             `json:"payerEmail,omitempty"`
	Participants []ParticipantInput `json:"participants"`
}

type CreateCheckoutResult struct {
	CheckoutID string                `json:"checkoutId"`
	PaymentURL string                `json:"paymentUrl"`
	Status     models.CheckoutStatus `json:"status"`
	Order      *models.Checkout      `json:"order"`
}

// CheckoutEvent is the Kafka message body for every checkout topic.
type CheckoutEvent struct {
	CheckoutID  string                `json:"checkoutId"`
	EventID     string                `json:"eventId"`
	Status      models.CheckoutStatus `json:"status"`
	TotalAmount float64               `json:"totalAmount"`
	PaymentID   string                `json:"paymentId,omitempty"`
	CouponCode  string                `json:"couponCode,omitempty"`
	OccurredAt  time.Time             `json:"occurredAt"`
}

// ---------------- CREATION ----------------

func (s *CheckoutService) CreateCheckout(ctx context.Context, req CreateCheckoutRequest) (*CreateCheckoutResult, error) {
	if len(req.Participants) == 0 {
		return nil, models.NewValidationError("participants", "at least one participant is required")
	}
	eventID := strings.TrimSpace(req.EventID)
	if eventID == "" {
		return nil, models.NewValidationError("eventId", "event id is required")
	}

	participants := make([]*models.Participant, 0, len(req.Participants))
	for i, in := range req.Participants {
		p, err := models.NewParticipant(models.NewParticipantParams{
			Name:       in.Name,
			Email:      in.Email,
			Phone:      in.Phone,
			Document:   in.Document,
			EventID:    eventID,
			TicketType: in.TicketType,
		})
		if err != nil {
			return nil, fmt.Errorf("participant %d: %w", i+1, err)
		}
		participants = append(participants, p)
	}

	quote := s.pricing.Quote(req.FullTickets, req.HalfTickets)
	order, err := models.NewCheckout(models.NewCheckoutParams{
		EventID:        eventID,
		FullTickets:    req.FullTickets,
		HalfTickets:    req.HalfTickets,
		OriginalAmount: quote.Original,
	})
	if err != nil {
		return nil, err
	}

	if code := strings.TrimSpace(req.CouponCode); code != "" {
		if err := s.applyCoupon(ctx, order, code); err != nil {
			return nil, err
		}
	}

	if err := s.checkouts.SaveCheckout(ctx, order); err != nil {
		metrics.RecordCheckoutCreated(false)
		return nil, fmt.Errorf("failed to save checkout: %w", err)
	}
	s.logger.LogCheckout("CREATED", order.ID, fmt.Sprintf("event=%s full=%d half=%d original=%.2f total=%.2f",
		eventID, order.FullTickets, order.HalfTickets, quote.Original, order.Total()))

	// From here on the order exists and every failure leaves it in failed status.
	if err := s.completeCheckout(ctx, order, participants, req.PayerEmail); err != nil {
		s.markFailed(ctx, order, err)
		metrics.RecordCheckoutCreated(false)
		return nil, fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	}

	metrics.RecordCheckoutCreated(true)
	result := &CreateCheckoutResult{CheckoutID: order.ID, Status: order.Status, Order: order}
	if order.PaymentURL != nil {
		result.PaymentURL = *order.PaymentURL
	}
	return result, nil
}

func (s *CheckoutService) applyCoupon(ctx context.Context, order *models.Checkout, code string) error {
	code = models.NormalizeCouponCode(code)
	coupon, err := s.coupons.GetCouponByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to load coupon %s: %w", code, err)
	}
	if coupon == nil {
		return models.NewValidationError("couponCode", "coupon %q not found", code)
	}
	if err := coupon.CheckUsable(order.EventID(), s.now()); err != nil {
		return err
	}
	return order.ApplyCoupon(coupon.Code, coupon.CalculateDiscount(*order.OriginalAmount))
}

func (s *CheckoutService) completeCheckout(ctx context.Context, order *models.Checkout, participants []*models.Participant, payerEmail string) error {
	// Step 1: persist participants with their QR tokens
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		p.CheckoutID = order.ID
		if err := p.GenerateQRCode(s.tokens); err != nil {
			return fmt.Errorf("failed to generate qr code: %w", err)
		}
		if err := s.participants.SaveParticipant(ctx, p); err != nil {
			return fmt.Errorf("failed to save participant: %w", err)
		}
		ids = append(ids, p.ID)
	}

	// Step 2: link and move to processing
	order.LinkParticipants(ids)
	if err := order.StartProcessing(); err != nil {
		return err
	}

	if order.Total() == 0 {
		return s.approveFree(ctx, order)
	}

	if err := s.checkouts.UpdateCheckout(ctx, order); err != nil {
		return fmt.Errorf("failed to update checkout: %w", err)
	}

	// Step 3: hosted checkout at the provider
	if payerEmail == "" {
		payerEmail = participants[0].Email
	}
	pref, err := s.gateway.CreatePreference(ctx, models.PreferenceRequest{
		ExternalReference: order.ID,
		Items: []models.PreferenceItem{{
			ID:        order.ID,
			Title:     fmt.Sprintf("Ingressos %s (%d inteira, %d meia)", order.EventID(), order.FullTickets, order.HalfTickets),
			Quantity:  1,
			UnitPrice: order.Total(),
		}},
		PayerEmail:      payerEmail,
		SuccessURL:      s.urls.Success,
		FailureURL:      s.urls.Failure,
		PendingURL:      s.urls.Pending,
		NotificationURL: s.urls.Notification,
	})
	if err != nil {
		return fmt.Errorf("failed to create payment preference: %w", err)
	}

	order.SetPreference(pref.ID, pref.RedirectURL)
	if err := s.checkouts.UpdateCheckout(ctx, order); err != nil {
		return fmt.Errorf("failed to store payment preference: %w", err)
	}
	s.logger.LogCheckout("PREFERENCE", order.ID, fmt.Sprintf("preference %s created", pref.ID))

	s.publish(s.topics.CheckoutCreated, order)
	return nil
}

func (s *CheckoutService) approveFree(ctx context.Context, order *models.Checkout) error {
	order.SetFlag(models.FlagFreeOrder, true)
	order.BackfillPayment("", MethodFree, nil)
	if err := order.Approve(""); err != nil {
		return err
	}
	if err := s.checkouts.UpdateCheckout(ctx, order); err != nil {
		return fmt.Errorf("failed to approve free checkout: %w", err)
	}
	s.logger.LogCheckout("APPROVED", order.ID, "free order approved without payment")

	s.publish(s.topics.CheckoutCreated, order)
	s.notify(order)
	s.runApprovalFanOut(ctx, order, true)
	return nil
}

func (s *CheckoutService) markFailed(ctx context.Context, order *models.Checkout, cause error) {
	if err := order.Fail(cause); err != nil {
		s.logger.Error("CHECKOUT", fmt.Sprintf("Failed to mark checkout %s as failed: %v", order.ID, err))
		return
	}
	if err := s.checkouts.UpdateCheckout(ctx, order); err != nil {
		s.logger.Error("CHECKOUT", fmt.Sprintf("Failed to persist failed checkout %s: %v", order.ID, err))
		return
	}
	s.logger.LogCheckout("FAILED", order.ID, cause.Error())
}

// ---------------- QUERIES & ADMIN ----------------

func (s *CheckoutService) GetCheckout(ctx context.Context, id string) (*models.Checkout, error) {
	order, err := s.checkouts.GetCheckoutByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkout %s: %w", id, err)
	}
	if order == nil {
		return nil, &models.NotFoundError{Entity: "checkout", ID: id}
	}
	return order, nil
}

// DeleteCheckout removes the order together with its participants.
func (s *CheckoutService) DeleteCheckout(ctx context.Context, id string) error {
	if _, err := s.GetCheckout(ctx, id); err != nil {
		return err
	}
	removed, err := s.participants.DeleteParticipantsByCheckoutID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete participants of checkout %s: %w", id, err)
	}
	if err := s.checkouts.DeleteCheckout(ctx, id); err != nil {
		return fmt.Errorf("failed to delete checkout %s: %w", id, err)
	}
	if c, ok := s.guard.(interface {
		Clear(ctx context.Context, checkoutID string) error
	}); ok {
		if err := c.Clear(ctx, id); err != nil {
			s.logger.Warn("REDIS", fmt.Sprintf("Failed to clear approval marker of checkout %s: %v", id, err))
		}
	}
	s.logger.LogCheckout("DELETED", id, fmt.Sprintf("removed with %d participants", removed))
	return nil
}

// ApproveManually approves an order paid outside the provider and runs the approval side effects.
func (s *CheckoutService) ApproveManually(ctx context.Context, id, reference string) (*models.Checkout, error) {
	order, err := s.GetCheckout(ctx, id)
	if err != nil {
		return nil, err
	}

	order.SetFlag(models.FlagManualPayment, true)
	if err := order.Approve(strings.TrimSpace(reference)); err != nil {
		return nil, err
	}
	if order.PaymentMethod == nil {
		order.BackfillPayment("", MethodManual, nil)
	}
	if err := s.checkouts.UpdateCheckout(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to approve checkout %s: %w", id, err)
	}
	s.logger.LogCheckout("APPROVED", id, fmt.Sprintf("manual approval (reference=%q)", reference))

	s.publish(s.topics.CheckoutStatusChanged, order)
	s.notify(order)
	s.runApprovalFanOut(ctx, order, true)
	return order, nil
}

func (s *CheckoutService) RejectCheckout(ctx context.Context, id, reason string) (*models.Checkout, error) {
	order, err := s.GetCheckout(ctx, id)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "rejected by operator"
	}
	prev := order.Status
	if err := order.Reject(reason); err != nil {
		return nil, err
	}
	if err := s.checkouts.UpdateCheckout(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to reject checkout %s: %w", id, err)
	}
	s.logger.LogCheckout("REJECTED", id, fmt.Sprintf("%s -> rejected: %s", prev, reason))

	if prev != order.Status {
		s.publish(s.topics.CheckoutStatusChanged, order)
		s.notify(order)
	}
	return order, nil
}

// ---------------- SIDE EFFECTS ----------------

func (s *CheckoutService) publish(topic string, order *models.Checkout) {
	if s.events == nil || topic == "" {
		return
	}
	evt := CheckoutEvent{
		CheckoutID:  order.ID,
		EventID:     order.EventID(),
		Status:      order.Status,
		TotalAmount: order.Total(),
		OccurredAt:  s.now().UTC(),
	}
	if order.PaymentID != nil {
		evt.PaymentID = *order.PaymentID
	}
	if order.CouponCode != nil {
		evt.CouponCode = *order.CouponCode
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Failed to encode %s event for checkout %s: %v", topic, order.ID, err))
		return
	}
	if err := s.events.Publish(topic, order.ID, payload); err != nil {
		s.logger.Warn("KAFKA", fmt.Sprintf("Failed to publish %s for checkout %s: %v", topic, order.ID, err))
	}
}

func (s *CheckoutService) notify(order *models.Checkout) {
	if s.notifier != nil {
		s.notifier.Emit(order)
	}
}
