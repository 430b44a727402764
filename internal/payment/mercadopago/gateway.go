package mercadopago

import (
	"context"
	"errors"
	"fmt"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"strconv"
	"strings"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
)

var (
	ErrClientInitFailed = errors.New("failed to initialize Mercado Pago client")
	ErrInvalidPaymentID = errors.New("invalid Mercado Pago payment id")
)

// Gateway creates hosted checkouts and reads payments through the Mercado Pago SDK.
type Gateway struct {
	payments    payment.Client
	preferences preference.Client
	sandbox     bool
	currency    string
	log         *logger.Logger
}

func NewGateway(accessToken string, sandbox bool, currency string, log *logger.Logger) (*Gateway, error) {
	if accessToken == "" {
		log.Error("PAYMENT", "MP_ACCESS_TOKEN environment variable not set")
		return nil, ErrClientInitFailed
	}
	cfg, err := mpconfig.New(accessToken)
	if err != nil {
		log.Error("PAYMENT", fmt.Sprintf("Failed to configure Mercado Pago client: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrClientInitFailed, err)
	}
	if currency == "" {
		currency = "BRL"
	}

	log.Info("PAYMENT", fmt.Sprintf("Mercado Pago client initialized (sandbox=%t)", sandbox))
	return &Gateway{
		payments:    payment.NewClient(cfg),
		preferences: preference.NewClient(cfg),
		sandbox:     sandbox,
		currency:    currency,
		log:         log,
	}, nil
}

func (g *Gateway) CreatePreference(ctx context.Context, req models.PreferenceRequest) (*models.Preference, error) {
	resource, err := g.preferences.Create(ctx, buildPreferenceRequest(req, g.currency))
	if err != nil {
		g.log.Error("PAYMENT", fmt.Sprintf("Failed to create preference for checkout %s: %v", req.ExternalReference, err))
		return nil, fmt.Errorf("mercadopago create preference: %w", err)
	}

	redirect := resource.InitPoint
	if g.sandbox && resource.SandboxInitPoint != "" {
		redirect = resource.SandboxInitPoint
	}
	g.log.Info("PAYMENT", fmt.Sprintf("Created preference %s for checkout %s", resource.ID, req.ExternalReference))
	return &models.Preference{ID: resource.ID, RedirectURL: redirect}, nil
}

func (g *Gateway) GetPayment(ctx context.Context, paymentID string) (*models.PaymentInfo, error) {
	id, err := strconv.Atoi(strings.TrimSpace(paymentID))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentID, paymentID)
	}
	resource, err := g.payments.Get(ctx, id)
	if err != nil {
		g.log.Error("PAYMENT", fmt.Sprintf("Failed to fetch payment %d: %v", id, err))
		return nil, fmt.Errorf("mercadopago get payment %d: %w", id, err)
	}
	return toPaymentInfo(resource), nil
}

func buildPreferenceRequest(req models.PreferenceRequest, currency string) preference.Request {
	items := make([]preference.ItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, preference.ItemRequest{
			ID:         item.ID,
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			CurrencyID: currency,
		})
	}

	out := preference.Request{
		Items:             items,
		ExternalReference: req.ExternalReference,
		NotificationURL:   req.NotificationURL,
	}
	if req.PayerEmail != "" {
		out.Payer = &preference.PayerRequest{Email: req.PayerEmail}
	}
	if req.SuccessURL != "" || req.FailureURL != "" || req.PendingURL != "" {
		out.BackURLs = &preference.BackURLsRequest{
			Success: req.SuccessURL,
			Failure: req.FailureURL,
			Pending: req.PendingURL,
		}
	}
	if req.SuccessURL != "" {
		out.AutoReturn = "approved"
	}
	return out
}

func toPaymentInfo(r *payment.Response) *models.PaymentInfo {
	payerName := strings.TrimSpace(r.Payer.FirstName + " " + r.Payer.LastName)
	return &models.PaymentInfo{
		ID:                 strconv.Itoa(r.ID),
		Status:             r.Status,
		ExternalReference:  r.ExternalReference,
		PaymentMethodID:    r.PaymentMethodID,
		PayerName:          payerName,
		PayerDocument:      r.Payer.Identification.Number,
		CardholderName:     r.Card.Cardholder.Name,
		CardholderDocument: r.Card.Cardholder.Identification.Number,
	}
}
