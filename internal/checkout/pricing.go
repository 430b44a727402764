package checkout

import (
	"ms-checkout/internal/config"

	"github.com/shopspring/decimal"
)

// PriceTable prices full tickets by bulk bracket and half tickets at a flat rate.
type PriceTable struct {
	Tiers     []config.PriceTier
	HalfPrice float64
}

func NewPriceTable(cfg config.PricingConfig) PriceTable {
	if len(cfg.FullTicketTiers) == 0 {
		return DefaultPriceTable()
	}
	return PriceTable{Tiers: cfg.FullTicketTiers, HalfPrice: cfg.HalfTicketPrice}
}

func DefaultPriceTable() PriceTable {
	return PriceTable{
		Tiers: []config.PriceTier{
			{MinTickets: 1, UnitPrice: 499},
			{MinTickets: 5, UnitPrice: 469},
			{MinTickets: 10, UnitPrice: 449},
		},
		HalfPrice: 249.5,
	}
}

// FullTicketPrice returns the unit price of the bracket that count falls into. Tiers are sorted by MinTickets.
func (t PriceTable) FullTicketPrice(count int) float64 {
	if len(t.Tiers) == 0 {
		return 0
	}
	price := t.Tiers[0].UnitPrice
	for _, tier := range t.Tiers {
		if count >= tier.MinTickets {
			price = tier.UnitPrice
		}
	}
	return price
}

type Quote struct {
	FullTickets   int     `json:"fullTickets"`
	HalfTickets   int     `json:"halfTickets"`
	FullUnitPrice float64 `json:"fullUnitPrice"`
	HalfUnitPrice float64 `json:"halfUnitPrice"`
	Original      float64 `json:"originalAmount"`
}

func (t PriceTable) Quote(full, half int) Quote {
	fullPrice := t.FullTicketPrice(full)
	total := decimal.NewFromFloat(fullPrice).Mul(decimal.NewFromInt(int64(full))).
		Add(decimal.NewFromFloat(t.HalfPrice).Mul(decimal.NewFromInt(int64(half))))

	return Quote{
		FullTickets:   full,
		HalfTickets:   half,
		FullUnitPrice: fullPrice,
		HalfUnitPrice: t.HalfPrice,
		Original:      total.Round(2).InexactFloat64(),
	}
}
