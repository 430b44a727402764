package stripe

import (
	"context"
	"errors"
	"fmt"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

const metadataCheckoutID = "checkout_id"

var ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")

// Gateway creates Stripe Checkout Sessions and reads PaymentIntents.
type Gateway struct {
	client   *client.API
	currency string
	log      *logger.Logger
}

func NewGateway(secretKey, currency string, log *logger.Logger) (*Gateway, error) {
	if secretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY environment variable not set")
		return nil, ErrStripeClientInitFailed
	}
	sc := client.New(secretKey, nil)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrStripeClientInitFailed
	}
	if currency == "" {
		currency = "BRL"
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &Gateway{client: sc, currency: strings.ToLower(currency), log: log}, nil
}

func (g *Gateway) CreatePreference(ctx context.Context, req models.PreferenceRequest) (*models.Preference, error) {
	params := buildSessionParams(req, g.currency)
	params.Context = ctx

	sess, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Failed to create checkout session for %s: %v", req.ExternalReference, err))
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}
	g.log.Info("STRIPE", fmt.Sprintf("Created checkout session %s for checkout %s", sess.ID, req.ExternalReference))
	return &models.Preference{ID: sess.ID, RedirectURL: sess.URL}, nil
}

func (g *Gateway) GetPayment(ctx context.Context, paymentID string) (*models.PaymentInfo, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("payment_method")

	pi, err := g.client.PaymentIntents.Get(paymentID, params)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Failed to fetch payment intent %s: %v", paymentID, err))
		return nil, fmt.Errorf("stripe get payment intent %s: %w", paymentID, err)
	}
	return toPaymentInfo(pi, ""), nil
}

func buildSessionParams(req models.PreferenceRequest, currency string) *stripe.CheckoutSessionParams {
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(item.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(toMinorUnits(item.UnitPrice)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Title),
				},
			},
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.ExternalReference),
		LineItems:         items,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{metadataCheckoutID: req.ExternalReference},
		},
	}
	if req.PayerEmail != "" {
		params.CustomerEmail = stripe.String(req.PayerEmail)
	}
	if req.SuccessURL != "" {
		params.SuccessURL = stripe.String(req.SuccessURL)
	}
	if req.FailureURL != "" {
		params.CancelURL = stripe.String(req.FailureURL)
	}
	params.AddMetadata(metadataCheckoutID, req.ExternalReference)
	return params
}

func toMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// mapIntentStatus translates a PaymentIntent status into the provider status vocabulary used by reconciliation.
func mapIntentStatus(status stripe.PaymentIntentStatus) string {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return "approved"
	case stripe.PaymentIntentStatusProcessing:
		return "in_process"
	case stripe.PaymentIntentStatusCanceled:
		return "cancelled"
	case stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresCapture:
		return "pending"
	}
	return string(status)
}

// cardBrand maps Stripe brand names onto the acquirer IDs the reconciliation knows.
func cardBrand(brand string) string {
	switch brand {
	case "mastercard":
		return "master"
	case "american_express":
		return "amex"
	}
	return brand
}

func toPaymentInfo(pi *stripe.PaymentIntent, statusOverride string) *models.PaymentInfo {
	status := statusOverride
	if status == "" {
		status = mapIntentStatus(pi.Status)
	}
	info := &models.PaymentInfo{
		ID:                pi.ID,
		Status:            status,
		ExternalReference: pi.Metadata[metadataCheckoutID],
	}
	if pm := pi.PaymentMethod; pm != nil {
		if pm.Card != nil && pm.Card.Brand != "" {
			info.PaymentMethodID = cardBrand(string(pm.Card.Brand))
		} else if pm.Type != "" {
			info.PaymentMethodID = string(pm.Type)
		}
		if pm.BillingDetails != nil {
			info.CardholderName = pm.BillingDetails.Name
		}
	}
	if info.PaymentMethodID == "" && len(pi.PaymentMethodTypes) == 1 {
		info.PaymentMethodID = pi.PaymentMethodTypes[0]
	}
	return info
}
