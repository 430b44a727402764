package models

// PaymentInfo is the provider's view of a payment.
type PaymentInfo struct {
	ID                 string
	Status             string
	ExternalReference  string
	PaymentMethodID    string
	PayerName          string
	PayerDocument      string
	CardholderName     string
	CardholderDocument string
}

// ResolvePayer prefers card holder identity over generic payer fields.
func (p PaymentInfo) ResolvePayer() *Payer {
	name := p.CardholderName
	if name == "" {
		name = p.PayerName
	}
	document := p.CardholderDocument
	if document == "" {
		document = p.PayerDocument
	}
	if name == "" && document == "" {
		return nil
	}
	return &Payer{Name: name, Document: document}
}

type PreferenceItem struct {
	ID        string
	Title     string
	Quantity  int
	UnitPrice float64
}

// PreferenceRequest describes a hosted checkout to create at the provider.
type PreferenceRequest struct {
	ExternalReference string
	Items             []PreferenceItem
	PayerEmail        string
	SuccessURL        string
	FailureURL        string
	PendingURL        string
	NotificationURL   string
}

type Preference struct {
	ID          string
	RedirectURL string
}
