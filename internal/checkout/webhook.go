package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ms-checkout/internal/config"
	"ms-checkout/internal/metrics"
	"ms-checkout/internal/models"
	"net/http"
	"sync"

	"github.com/cenkalti/backoff/v4"
)

const (
	ActionPaymentCreated = "payment.created"
	ActionPaymentUpdated = "payment.updated"
)

var errCheckoutNotVisible = errors.New("checkout not visible yet")

// WebhookError represents an error that occurred during webhook processing
type WebhookError struct {
	Category      string // "configuration", "validation", "signature", "processing", "not_found"
	StatusCode    int    // HTTP status code
	PublicError   string // Safe to expose to clients
	InternalError string // Detailed error for logs only
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

func (e *WebhookError) Unwrap() error {
	return e.OriginalErr
}

func (e *WebhookError) HTTPStatus() int {
	return e.StatusCode
}

func (e *WebhookError) PublicMessage() string {
	return e.PublicError
}

// FlexibleID accepts a JSON string or number.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("data.id must be a string or number: %w", err)
	}
	*f = FlexibleID(n.String())
	return nil
}

type WebhookPayload struct {
	Action string `json:"action"`
	Type   string `json:"type"`
	Data   struct {
		ID FlexibleID `json:"id"`
	} `json:"data"`
}

// MercadoPagoNotification is a webhook delivery as received at the HTTP boundary.
type MercadoPagoNotification struct {
	Payload   []byte
	Signature string
	RequestID string
	DataID    string
}

// Notification is a provider neutral payment event. Payment is set when the event already carries the payment state.
type Notification struct {
	Action    string
	PaymentID string
	Payment   *models.PaymentInfo
}

// HandleMercadoPagoWebhook verifies the signature before anything else and then reconciles the order.
func (s *CheckoutService) HandleMercadoPagoWebhook(ctx context.Context, n MercadoPagoNotification) error {
	provider := config.ProviderMercadoPago

	if err := s.verifier.Verify(n.Signature, n.RequestID, n.DataID); err != nil {
		if errors.Is(err, ErrSecretNotConfigured) {
			s.logger.Error("CONFIG", "Mercado Pago webhook secret is not configured")
			metrics.RecordWebhook(provider, "misconfigured")
			return &WebhookError{
				Category:      "configuration",
				StatusCode:    http.StatusInternalServerError,
				PublicError:   "Webhook processing error",
				InternalError: "Mercado Pago webhook secret is not configured",
				OriginalErr:   err,
			}
		}
		s.logger.LogSecurity("INVALID_WEBHOOK_SIGNATURE", fmt.Sprintf("data.id=%s request-id=%s: %v", n.DataID, n.RequestID, err))
		metrics.RecordWebhook(provider, "invalid_signature")
		return &WebhookError{
			Category:      "signature",
			StatusCode:    http.StatusUnauthorized,
			PublicError:   "Invalid webhook signature",
			InternalError: fmt.Sprintf("signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	var payload WebhookPayload
	if err := json.Unmarshal(n.Payload, &payload); err != nil {
		s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to decode webhook payload: %v", err))
		metrics.RecordWebhook(provider, "invalid_payload")
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("failed to decode webhook payload: %v", err),
			OriginalErr:   err,
		}
	}

	paymentID := string(payload.Data.ID)
	if paymentID == "" {
		paymentID = n.DataID
	}
	if n.DataID != "" && paymentID != n.DataID {
		s.logger.Warn("SECURITY", fmt.Sprintf("Webhook body payment %s differs from signed data.id %s (request-id=%s)", paymentID, n.DataID, n.RequestID))
	}
	return s.processNotification(ctx, provider, Notification{Action: payload.Action, PaymentID: paymentID})
}

// HandleStripeWebhook runs the same reconciliation for events delivered by Stripe.
func (s *CheckoutService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	provider := config.ProviderStripe

	if s.stripeEvents == nil {
		s.logger.Error("CONFIG", "Stripe webhook received but Stripe is not configured")
		return &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "stripe webhook parser is not configured",
		}
	}

	note, err := s.stripeEvents.ParseEvent(payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, ErrSecretNotConfigured):
			s.logger.Error("CONFIG", "Stripe webhook secret is not configured")
			metrics.RecordWebhook(provider, "misconfigured")
			return &WebhookError{
				Category:      "configuration",
				StatusCode:    http.StatusInternalServerError,
				PublicError:   "Webhook processing error",
				InternalError: err.Error(),
				OriginalErr:   err,
			}
		case errors.Is(err, ErrInvalidSignature):
			s.logger.LogSecurity("INVALID_WEBHOOK_SIGNATURE", fmt.Sprintf("stripe: %v", err))
			metrics.RecordWebhook(provider, "invalid_signature")
			return &WebhookError{
				Category:      "signature",
				StatusCode:    http.StatusUnauthorized,
				PublicError:   "Invalid webhook signature",
				InternalError: fmt.Sprintf("signature verification failed: %v", err),
				OriginalErr:   err,
			}
		default:
			s.logger.Error("WEBHOOK", fmt.Sprintf("Failed to parse Stripe event: %v", err))
			metrics.RecordWebhook(provider, "invalid_payload")
			return &WebhookError{
				Category:      "validation",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "Invalid event data",
				InternalError: fmt.Sprintf("failed to parse stripe event: %v", err),
				OriginalErr:   err,
			}
		}
	}
	if note == nil {
		s.logger.Debug("WEBHOOK", "Ignoring Stripe event type")
		metrics.RecordWebhook(provider, "ignored")
		return nil
	}
	return s.processNotification(ctx, provider, *note)
}

func (s *CheckoutService) processNotification(ctx context.Context, provider string, note Notification) error {
	// Step 1: only payment events move orders
	if note.Action != ActionPaymentCreated && note.Action != ActionPaymentUpdated {
		s.logger.Debug("WEBHOOK", fmt.Sprintf("Ignoring %s action %q", provider, note.Action))
		metrics.RecordWebhook(provider, "ignored")
		return nil
	}
	if note.PaymentID == "" {
		metrics.RecordWebhook(provider, "invalid_payload")
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("%s notification without payment id", note.Action),
		}
	}

	// Step 2: payment state from the provider
	info := note.Payment
	if info == nil {
		fetched, err := s.gateway.GetPayment(ctx, note.PaymentID)
		if err != nil {
			s.logger.LogWebhookFailure(note.Action, note.PaymentID, "", fmt.Sprintf("payment lookup failed: %v", err))
			metrics.RecordWebhook(provider, "error")
			return processingError(fmt.Sprintf("failed to fetch payment %s: %v", note.PaymentID, err), err)
		}
		info = fetched
	}

	status, err := MapPaymentStatus(info.Status)
	if err != nil {
		s.logger.LogWebhookFailure(note.Action, note.PaymentID, info.ExternalReference, err.Error())
		metrics.RecordWebhook(provider, "error")
		return processingError(fmt.Sprintf("payment %s: %v", note.PaymentID, err), err)
	}

	method, known := MapPaymentMethod(info.PaymentMethodID)
	if !known && method != "" {
		s.logger.Warn("WEBHOOK", fmt.Sprintf("Unknown payment method %q on payment %s, storing as is", method, note.PaymentID))
	}

	if info.ExternalReference == "" {
		s.logger.LogWebhookFailure(note.Action, note.PaymentID, "", "payment has no external reference")
		metrics.RecordWebhook(provider, "error")
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid payment data",
			InternalError: fmt.Sprintf("payment %s has no external reference", note.PaymentID),
		}
	}

	// Step 3: the order may not be committed yet
	order, err := s.lookupCheckout(ctx, info.ExternalReference, note.PaymentID)
	if err != nil {
		s.logger.LogWebhookFailure(note.Action, note.PaymentID, info.ExternalReference, err.Error())
		if models.IsNotFound(err) {
			metrics.RecordWebhook(provider, "not_found")
			return &WebhookError{
				Category:      "not_found",
				StatusCode:    http.StatusNotFound,
				PublicError:   "Checkout not found",
				InternalError: err.Error(),
				OriginalErr:   err,
			}
		}
		metrics.RecordWebhook(provider, "error")
		return processingError(err.Error(), err)
	}

	// Step 4: backfill provider fields on creation events only
	if note.Action == ActionPaymentCreated {
		if order.BackfillPayment(note.PaymentID, method, info.ResolvePayer()) {
			s.logger.LogWebhook(note.Action, note.PaymentID, order.ID, fmt.Sprintf("payment fields updated (method=%s)", method))
		}
	}

	// Step 5: apply status
	prev := order.Status
	if isSettled(prev) && prev != status {
		s.logger.Warn("WEBHOOK", fmt.Sprintf("Checkout %s moving from %s back to %s (payment %s)", order.ID, prev, status, note.PaymentID))
	}
	if err := order.UpdateStatus(status); err != nil {
		metrics.RecordWebhook(provider, "error")
		return processingError(fmt.Sprintf("failed to update checkout %s: %v", order.ID, err), err)
	}
	if err := s.checkouts.UpdateCheckout(ctx, order); err != nil {
		s.logger.LogWebhookFailure(note.Action, note.PaymentID, order.ID, fmt.Sprintf("persist failed: %v", err))
		metrics.RecordWebhook(provider, "error")
		return processingError(fmt.Sprintf("failed to persist checkout %s: %v", order.ID, err), err)
	}
	s.logger.LogWebhook(note.Action, note.PaymentID, order.ID, fmt.Sprintf("status %s -> %s", prev, order.Status))

	if prev != order.Status {
		s.publish(s.topics.CheckoutStatusChanged, order)
		s.notify(order)
	}

	// Step 6: approval side effects
	if status == models.CheckoutApproved {
		s.runApprovalFanOut(ctx, order, prev != models.CheckoutApproved)
	}

	metrics.RecordWebhook(provider, "processed")
	return nil
}

// lookupCheckout retries a missing checkout on a constant delay. Store errors are not retried.
func (s *CheckoutService) lookupCheckout(ctx context.Context, ref, paymentID string) (*models.Checkout, error) {
	attempts := s.lookup.Attempts
	attempt := 0
	var order *models.Checkout

	op := func() error {
		attempt++
		c, err := s.checkouts.GetCheckoutByID(ctx, ref)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to load checkout %s: %w", ref, err))
		}
		if c == nil {
			s.logger.Warn("WEBHOOK", fmt.Sprintf("Checkout %s not found for payment %s (attempt %d/%d)", ref, paymentID, attempt, attempts))
			return errCheckoutNotVisible
		}
		order = c
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.lookup.Delay), uint64(attempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, errCheckoutNotVisible) {
			return nil, fmt.Errorf("payment %s: external reference %s unresolved after %d attempts: %w",
				paymentID, ref, attempts, &models.NotFoundError{Entity: "checkout", ID: ref})
		}
		return nil, err
	}
	return order, nil
}

// runApprovalFanOut redeems the coupon, emails participants and publishes the approval.
// It only runs on the transition into approved; the guard collapses concurrent first approvals.
// Nothing here fails the approval.
func (s *CheckoutService) runApprovalFanOut(ctx context.Context, order *models.Checkout, firstApproval bool) {
	if !firstApproval {
		s.logger.Debug("CHECKOUT", fmt.Sprintf("Checkout %s was already approved, skipping side effects", order.ID))
		return
	}
	if s.guard != nil {
		paymentID := ""
		if order.PaymentID != nil {
			paymentID = *order.PaymentID
		}
		first, err := s.guard.MarkApproved(ctx, order.ID, paymentID)
		switch {
		case err != nil:
			s.logger.Warn("REDIS", fmt.Sprintf("Approval guard unavailable for checkout %s, continuing: %v", order.ID, err))
		case !first:
			s.logger.Info("CHECKOUT", fmt.Sprintf("Approval side effects already ran for checkout %s", order.ID))
			return
		}
	}

	s.redeemCoupon(ctx, order)
	s.sendConfirmations(ctx, order)
	s.publish(s.topics.CheckoutApproved, order)
}

func (s *CheckoutService) redeemCoupon(ctx context.Context, order *models.Checkout) {
	if !order.HasCoupon() {
		return
	}
	code := *order.CouponCode
	coupon, err := s.coupons.GetCouponByCode(ctx, code)
	if err != nil {
		s.logger.Error("COUPON", fmt.Sprintf("Failed to load coupon %s for checkout %s: %v", code, order.ID, err))
		return
	}
	if coupon == nil {
		s.logger.Warn("COUPON", fmt.Sprintf("Coupon %s referenced by checkout %s no longer exists", code, order.ID))
		return
	}
	if err := coupon.IncrementUses(); err != nil {
		s.logger.Warn("COUPON", fmt.Sprintf("Could not count use of coupon %s for checkout %s: %v", code, order.ID, err))
		return
	}
	if err := s.coupons.UpdateCoupon(ctx, coupon); err != nil {
		s.logger.Error("COUPON", fmt.Sprintf("Failed to persist coupon %s use: %v", code, err))
		return
	}
	metrics.RecordCouponRedemption()
	s.logger.Info("COUPON", fmt.Sprintf("Coupon %s redeemed by checkout %s (%d uses)", code, order.ID, coupon.Uses))
}

// sendConfirmations mails every participant independently and returns how many sends failed.
func (s *CheckoutService) sendConfirmations(ctx context.Context, order *models.Checkout) int {
	participants, err := s.participants.GetParticipantsByCheckoutID(ctx, order.ID)
	if err != nil {
		s.logger.Error("EMAIL", fmt.Sprintf("Failed to load participants of checkout %s: %v", order.ID, err))
		return 0
	}

	results := make([]error, len(participants))
	var wg sync.WaitGroup
	for i, p := range participants {
		wg.Add(1)
		go func(i int, p *models.Participant) {
			defer wg.Done()
			results[i] = s.mailer.SendConfirmation(ctx, p, order)
		}(i, p)
	}
	wg.Wait()

	failed := 0
	for i, err := range results {
		metrics.RecordNotification(err == nil)
		if err != nil {
			failed++
			s.logger.Error("EMAIL", fmt.Sprintf("Confirmation to participant %s of checkout %s failed: %v", participants[i].ID, order.ID, err))
		}
	}
	s.logger.Info("EMAIL", fmt.Sprintf("Checkout %s confirmations: %d sent, %d failed", order.ID, len(participants)-failed, failed))
	return failed
}

func isSettled(status models.CheckoutStatus) bool {
	switch status {
	case models.CheckoutApproved, models.CheckoutRejected, models.CheckoutFailed,
		models.CheckoutCancelled, models.CheckoutRefunded:
		return true
	}
	return false
}

func processingError(internal string, err error) *WebhookError {
	return &WebhookError{
		Category:      "processing",
		StatusCode:    http.StatusInternalServerError,
		PublicError:   "Webhook processing error",
		InternalError: internal,
		OriginalErr:   err,
	}
}
