package source

import (
	"context"

	"propfinder/internal/model"
)

// SearchParams is the filter set handed to every adapter for one
// aggregation pass. PriceRange bounds are EUR.
type SearchParams struct {
	Query        string
	PriceRange   model.PriceRange
	PropertyType *string
	ListingType  *string
	UserLocation model.UserLocation
	RadiusKm     float64
}

// Adapter is one pluggable listing source. SearchListings must keep
// its errors to itself in spirit: the aggregator treats any returned
// error as "this source contributed nothing" and carries on.
type Adapter interface {
	Name() string
	SearchListings(ctx context.Context, params SearchParams) ([]model.Listing, error)
}
