package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"ms-checkout/internal/checkout"
	"ms-checkout/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

const whsec = "whsec_test"

func sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func eventJSON(eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":%q,"data":{"object":%s}}`, eventType, object))
}

func TestParseEvent_PaymentIntentSucceeded(t *testing.T) {
	payload := eventJSON("payment_intent.succeeded",
		`{"id":"pi_1","object":"payment_intent","status":"succeeded","metadata":{"checkout_id":"chk-1"},"payment_method_types":["card"]}`)

	note, err := NewEventParser(whsec).ParseEvent(payload, sign(payload, whsec, time.Now()))
	require.NoError(t, err)
	require.NotNil(t, note)
	assert.Equal(t, checkout.ActionPaymentUpdated, note.Action)
	assert.Equal(t, "pi_1", note.PaymentID)
	require.NotNil(t, note.Payment)
	assert.Equal(t, "approved", note.Payment.Status)
	assert.Equal(t, "chk-1", note.Payment.ExternalReference)
	assert.Equal(t, "card", note.Payment.PaymentMethodID)
}

func TestParseEvent_FailedAndCanceled(t *testing.T) {
	for eventType, want := range map[string]string{
		"payment_intent.payment_failed": "rejected",
		"payment_intent.canceled":       "cancelled",
		"payment_intent.processing":     "in_process",
	} {
		payload := eventJSON(eventType, `{"id":"pi_2","object":"payment_intent","metadata":{"checkout_id":"chk-2"}}`)
		note, err := NewEventParser(whsec).ParseEvent(payload, sign(payload, whsec, time.Now()))
		require.NoError(t, err, eventType)
		assert.Equal(t, want, note.Payment.Status, eventType)
	}
}

func TestParseEvent_CheckoutSessionCompleted(t *testing.T) {
	payload := eventJSON("checkout.session.completed",
		`{"id":"cs_1","object":"checkout.session","client_reference_id":"chk-1","payment_status":"paid","payment_intent":"pi_9","customer_details":{"name":"Ana Souza"}}`)

	note, err := NewEventParser(whsec).ParseEvent(payload, sign(payload, whsec, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, checkout.ActionPaymentCreated, note.Action)
	assert.Equal(t, "pi_9", note.PaymentID)
	assert.Equal(t, "approved", note.Payment.Status)
	assert.Equal(t, "chk-1", note.Payment.ExternalReference)
	assert.Equal(t, &models.Payer{Name: "Ana Souza"}, note.Payment.ResolvePayer())
}

func TestParseEvent_IgnoresOtherTypes(t *testing.T) {
	payload := eventJSON("customer.created", `{"id":"cus_1","object":"customer"}`)
	note, err := NewEventParser(whsec).ParseEvent(payload, sign(payload, whsec, time.Now()))
	require.NoError(t, err)
	assert.Nil(t, note)
}

func TestParseEvent_SignatureFailures(t *testing.T) {
	payload := eventJSON("payment_intent.succeeded", `{"id":"pi_1","object":"payment_intent"}`)

	_, err := NewEventParser(whsec).ParseEvent(payload, sign(payload, "whsec_other", time.Now()))
	assert.ErrorIs(t, err, checkout.ErrInvalidSignature)

	_, err = NewEventParser(whsec).ParseEvent(payload, sign(payload, whsec, time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, checkout.ErrInvalidSignature)

	_, err = NewEventParser(whsec).ParseEvent(payload, "")
	assert.ErrorIs(t, err, checkout.ErrInvalidSignature)

	_, err = NewEventParser("").ParseEvent(payload, sign(payload, whsec, time.Now()))
	assert.ErrorIs(t, err, checkout.ErrSecretNotConfigured)
}

func TestBuildSessionParams(t *testing.T) {
	params := buildSessionParams(models.PreferenceRequest{
		ExternalReference: "chk-1",
		Items:             []models.PreferenceItem{{Title: "Ingressos", Quantity: 1, UnitPrice: 898.2}},
		PayerEmail:        "ana@example.com",
		SuccessURL:        "https://shop.test/ok",
		FailureURL:        "https://shop.test/fail",
	}, "brl")

	require.Len(t, params.LineItems, 1)
	assert.Equal(t, int64(89820), *params.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "chk-1", *params.ClientReferenceID)
	assert.Equal(t, "chk-1", params.PaymentIntentData.Metadata[metadataCheckoutID])
	assert.Equal(t, "https://shop.test/fail", *params.CancelURL)
}

func TestToPaymentInfo_CardBrand(t *testing.T) {
	pi := &stripe.PaymentIntent{
		ID:       "pi_1",
		Status:   stripe.PaymentIntentStatusRequiresAction,
		Metadata: map[string]string{metadataCheckoutID: "chk-1"},
		PaymentMethod: &stripe.PaymentMethod{
			Card:           &stripe.PaymentMethodCard{Brand: "mastercard"},
			BillingDetails: &stripe.PaymentMethodBillingDetails{Name: "ANA SOUZA"},
		},
	}
	info := toPaymentInfo(pi, "")
	assert.Equal(t, "pending", info.Status)
	assert.Equal(t, "master", info.PaymentMethodID)
	assert.Equal(t, "ANA SOUZA", info.CardholderName)
}

func TestMapIntentStatus(t *testing.T) {
	assert.Equal(t, "approved", mapIntentStatus(stripe.PaymentIntentStatusSucceeded))
	assert.Equal(t, "in_process", mapIntentStatus(stripe.PaymentIntentStatusProcessing))
	assert.Equal(t, "cancelled", mapIntentStatus(stripe.PaymentIntentStatusCanceled))
	assert.Equal(t, "pending", mapIntentStatus(stripe.PaymentIntentStatusRequiresPaymentMethod))
}
