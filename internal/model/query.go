package model

// UserLocation anchors a search geographically and gives the default
// currency for price parsing.
type UserLocation struct {
	Label     string  `json:"label"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Currency  string  `json:"currency"`
}

// SearchRequest represents a natural-language search request
type SearchRequest struct {
	Query        string       `json:"query" binding:"required"`
	UserLocation UserLocation `json:"user_location"`
}

// MatchType says which price window actually produced the results.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchNearMiss MatchType = "near-miss"
)

// SearchResponse represents a completed search
type SearchResponse struct {
	SearchID        string        `json:"search_id"`
	Query           string        `json:"query"`
	MatchType       MatchType     `json:"match_type"`
	PriceRange      PriceRange    `json:"price_range"`
	RadiusKm        float64       `json:"radius_km"`
	Results         []ListingCard `json:"results"`
	DegradedSources []string      `json:"degraded_sources,omitempty"`
	Summary         string        `json:"summary,omitempty"`
	Note            string        `json:"note,omitempty"`
	Took            int64         `json:"took_ms"`
}

// FeedbackRequest represents user feedback/action on a search result
type FeedbackRequest struct {
	SearchID  string `json:"search_id" binding:"required"`
	ListingID string `json:"listing_id" binding:"required"`
	Action    string `json:"action" binding:"required"` // click, contact, view_details
}

// FeedbackResponse represents feedback response
type FeedbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
