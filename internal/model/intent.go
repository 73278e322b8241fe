package model

// PriceIntentType enumerates the shapes a price constraint can take.
type PriceIntentType string

const (
	PriceIntentUnder   PriceIntentType = "under"
	PriceIntentOver    PriceIntentType = "over"
	PriceIntentBetween PriceIntentType = "between"
	PriceIntentExact   PriceIntentType = "exact"
	PriceIntentAround  PriceIntentType = "around"
	PriceIntentNone    PriceIntentType = "none"
)

// PriceIntent is the typed price constraint extracted from a query.
// Amounts are in the detected (or caller-supplied) currency, not yet
// normalized; Min/Max/Target are populated depending on Type.
type PriceIntent struct {
	Type     PriceIntentType `json:"type"`
	Min      *float64        `json:"min,omitempty"`
	Max      *float64        `json:"max,omitempty"`
	Target   *float64        `json:"target,omitempty"`
	Currency string          `json:"currency,omitempty"`
}

// IntentResult bundles everything the resolver extracts from a query.
type IntentResult struct {
	Price        PriceIntent `json:"price"`
	PropertyType *string     `json:"property_type,omitempty"`
	ListingType  *string     `json:"listing_type,omitempty"`
}

// PriceRange is a concrete EUR window applied to a search pass.
// A nil bound means unbounded on that side.
type PriceRange struct {
	MinEUR   *float64 `json:"min_eur,omitempty"`
	MaxEUR   *float64 `json:"max_eur,omitempty"`
	Currency string   `json:"currency"`
}

// Contains reports whether a price falls inside the range.
func (r PriceRange) Contains(price float64) bool {
	if r.MinEUR != nil && price < *r.MinEUR {
		return false
	}
	if r.MaxEUR != nil && price > *r.MaxEUR {
		return false
	}
	return true
}

// Unbounded reports whether the range constrains nothing.
func (r PriceRange) Unbounded() bool {
	return r.MinEUR == nil && r.MaxEUR == nil
}
