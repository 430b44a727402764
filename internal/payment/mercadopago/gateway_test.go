package mercadopago

import (
	"context"
	"io"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"testing"

	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPreferenceRequest(t *testing.T) {
	req := buildPreferenceRequest(models.PreferenceRequest{
		ExternalReference: "chk-1",
		Items:             []models.PreferenceItem{{ID: "chk-1", Title: "Ingressos", Quantity: 1, UnitPrice: 898.2}},
		PayerEmail:        "ana@example.com",
		SuccessURL:        "https://shop.test/ok",
		NotificationURL:   "https://api.test/checkout/mercadopago",
	}, "BRL")

	require.Len(t, req.Items, 1)
	assert.Equal(t, "BRL", req.Items[0].CurrencyID)
	assert.Equal(t, 898.2, req.Items[0].UnitPrice)
	assert.Equal(t, "chk-1", req.ExternalReference)
	require.NotNil(t, req.Payer)
	assert.Equal(t, "ana@example.com", req.Payer.Email)
	require.NotNil(t, req.BackURLs)
	assert.Equal(t, "https://shop.test/ok", req.BackURLs.Success)
	assert.Equal(t, "approved", req.AutoReturn)
}

func TestBuildPreferenceRequest_Minimal(t *testing.T) {
	req := buildPreferenceRequest(models.PreferenceRequest{ExternalReference: "chk-1"}, "BRL")
	assert.Nil(t, req.Payer)
	assert.Nil(t, req.BackURLs)
	assert.Empty(t, req.AutoReturn)
}

func TestToPaymentInfo(t *testing.T) {
	r := &payment.Response{
		ID:                98765,
		Status:            "approved",
		ExternalReference: "chk-1",
		PaymentMethodID:   "master",
	}
	r.Payer.FirstName = "Ana"
	r.Payer.LastName = "Souza"
	r.Payer.Identification.Number = "111"
	r.Card.Cardholder.Name = "ANA M SOUZA"
	r.Card.Cardholder.Identification.Number = "999"

	info := toPaymentInfo(r)
	assert.Equal(t, "98765", info.ID)
	assert.Equal(t, "chk-1", info.ExternalReference)
	assert.Equal(t, "Ana Souza", info.PayerName)
	assert.Equal(t, &models.Payer{Name: "ANA M SOUZA", Document: "999"}, info.ResolvePayer())
}

func TestNewGateway_RequiresToken(t *testing.T) {
	_, err := NewGateway("", true, "", logger.New(io.Discard))
	assert.ErrorIs(t, err, ErrClientInitFailed)
}

func TestGetPayment_RejectsNonNumericID(t *testing.T) {
	g, err := NewGateway("TEST-token", true, "", logger.New(io.Discard))
	require.NoError(t, err)

	_, err = g.GetPayment(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrInvalidPaymentID)
}
