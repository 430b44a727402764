package checkout

import (
	"errors"
	"fmt"
	"ms-checkout/internal/models"
	"strings"
)

var ErrUnknownPaymentStatus = errors.New("unknown payment status")

// Payment methods stored on a checkout.
const (
	MethodCreditCard = "credit_card"
	MethodPix        = "pix"
	MethodBoleto     = "boleto"
	MethodFree       = "free"
	MethodManual     = "manual"
)

// MapPaymentStatus translates a provider payment status into a checkout status.
func MapPaymentStatus(providerStatus string) (models.CheckoutStatus, error) {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "approved":
		return models.CheckoutApproved, nil
	case "pending", "in_process":
		return models.CheckoutPending, nil
	case "rejected", "cancelled":
		return models.CheckoutRejected, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPaymentStatus, providerStatus)
}

// MapPaymentMethod normalizes a provider method ID. Unknown IDs are returned unchanged with known=false.
func MapPaymentMethod(methodID string) (method string, known bool) {
	switch strings.ToLower(strings.TrimSpace(methodID)) {
	case "visa", "master", "amex", "elo", "debelo", "card":
		return MethodCreditCard, true
	case "pix":
		return MethodPix, true
	case "bolbradesco", "bolsantander":
		return MethodBoleto, true
	}
	return methodID, false
}
