package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"ms-checkout/internal/checkout"
	"ms-checkout/internal/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// EventParser verifies Stripe webhook deliveries and turns them into payment notifications.
type EventParser struct {
	secret string
}

func NewEventParser(webhookSecret string) *EventParser {
	return &EventParser{secret: webhookSecret}
}

// ParseEvent returns nil for event types that do not affect a checkout.
func (p *EventParser) ParseEvent(payload []byte, signature string) (*checkout.Notification, error) {
	if p.secret == "" {
		return nil, checkout.ErrSecretNotConfigured
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, opts)
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", checkout.ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("invalid stripe event: %w", err)
	}

	switch event.Type {
	case "payment_intent.succeeded":
		return intentNotification(event, "approved")
	case "payment_intent.processing":
		return intentNotification(event, "in_process")
	case "payment_intent.payment_failed":
		return intentNotification(event, "rejected")
	case "payment_intent.canceled":
		return intentNotification(event, "cancelled")
	case "checkout.session.completed":
		return sessionNotification(event)
	}
	return nil, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrTooOld)
}

func intentNotification(event stripe.Event, status string) (*checkout.Notification, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}
	return &checkout.Notification{
		Action:    checkout.ActionPaymentUpdated,
		PaymentID: pi.ID,
		Payment:   toPaymentInfo(&pi, status),
	}, nil
}

func sessionNotification(event stripe.Event) (*checkout.Notification, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	status := "pending"
	switch sess.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		status = "approved"
	}

	paymentID := sess.ID
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		paymentID = sess.PaymentIntent.ID
	}
	info := &models.PaymentInfo{
		ID:                paymentID,
		Status:            status,
		ExternalReference: sess.ClientReferenceID,
	}
	if info.ExternalReference == "" {
		info.ExternalReference = sess.Metadata[metadataCheckoutID]
	}
	if len(sess.PaymentMethodTypes) == 1 {
		info.PaymentMethodID = sess.PaymentMethodTypes[0]
	}
	if sess.CustomerDetails != nil {
		info.PayerName = sess.CustomerDetails.Name
	}

	return &checkout.Notification{
		Action:    checkout.ActionPaymentCreated,
		PaymentID: paymentID,
		Payment:   info,
	}, nil
}
