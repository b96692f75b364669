package scraper

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TrackedProduct is one row of the input list. URL is unique within a run.
type TrackedProduct struct {
	URL        string
	Name       string
	AlertPrice decimal.Decimal
}

// Price is an amount that may be unavailable, in the manner of sql.NullFloat64.
type Price struct {
	Amount decimal.Decimal
	Valid  bool
}

func PriceOf(d decimal.Decimal) Price {
	return Price{Amount: d, Valid: true}
}

func (p Price) String() string {
	if !p.Valid {
		return ""
	}
	return FormatAmount(p.Amount)
}

// FormatAmount shows at least two decimals and never rounds, so a written
// amount always compares to the alert price the same way the exact one did.
func FormatAmount(d decimal.Decimal) string {
	if d.Exponent() < -2 {
		return d.String()
	}
	return d.StringFixed(2)
}

type Observation struct {
	Product        TrackedProduct
	Price          Price
	Timestamp      time.Time
	AlertTriggered bool
	RunID          uuid.UUID
}

// NewObservation is the only way observations are built, so AlertTriggered
// always holds price < alert price for present prices and false otherwise.
func NewObservation(p TrackedProduct, price Price, ts time.Time, runID uuid.UUID) Observation {
	return Observation{
		Product:        p,
		Price:          price,
		Timestamp:      ts,
		AlertTriggered: price.Valid && price.Amount.LessThan(p.AlertPrice),
		RunID:          runID,
	}
}

// ObservationSet is the ordered result of one run.
type ObservationSet struct {
	items []Observation
}

func NewObservationSet(obs ...Observation) ObservationSet {
	items := make([]Observation, len(obs))
	copy(items, obs)
	return ObservationSet{items: items}
}

func (s ObservationSet) Len() int {
	return len(s.items)
}

// Items returns a copy of the observations in input order.
func (s ObservationSet) Items() []Observation {
	out := make([]Observation, len(s.items))
	copy(out, s.items)
	return out
}

// Triggered returns the observations whose alert fired, in order.
func (s ObservationSet) Triggered() []Observation {
	var out []Observation
	for _, o := range s.items {
		if o.AlertTriggered {
			out = append(out, o)
		}
	}
	return out
}

func (s ObservationSet) AnyTriggered() bool {
	for _, o := range s.items {
		if o.AlertTriggered {
			return true
		}
	}
	return false
}

func (s *ObservationSet) add(o Observation) {
	s.items = append(s.items, o)
}
