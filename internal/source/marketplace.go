package source

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"propfinder/internal/config"
	"propfinder/internal/currency"
	"propfinder/internal/model"
)

// MarketplaceAdapter queries a REST listing marketplace. Results are
// paginated; the adapter accumulates pages until the listing cap or
// page cap is hit, pausing between pages to respect the upstream
// rate limit.
type MarketplaceAdapter struct {
	client  *HTTPClient
	baseURL string
	apiKey  string
	rates   currency.Rates

	pageSize    int
	maxPages    int
	maxListings int
	pageDelay   time.Duration
}

// NewMarketplaceAdapter creates the adapter from config
func NewMarketplaceAdapter(cfg config.SourcesConfig, rates currency.Rates) *MarketplaceAdapter {
	return &MarketplaceAdapter{
		client:      NewHTTPClient(15*time.Second, 2, 300*time.Millisecond),
		baseURL:     cfg.MarketplaceBaseURL,
		apiKey:      cfg.MarketplaceAPIKey,
		rates:       rates,
		pageSize:    cfg.PageSize,
		maxPages:    cfg.MaxPages,
		maxListings: cfg.MaxListings,
		pageDelay:   time.Duration(cfg.PageDelayMs) * time.Millisecond,
	}
}

func (m *MarketplaceAdapter) Name() string { return "marketplace" }

// marketplaceListing is the upstream wire shape
type marketplaceListing struct {
	ID           string   `json:"id"`
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	Price        float64  `json:"price"`
	Currency     string   `json:"currency"`
	Bedrooms     *int     `json:"bedrooms"`
	Bathrooms    *int     `json:"bathrooms"`
	AreaSqm      *float64 `json:"area_sqm"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	PropertyType *string  `json:"property_type"`
	ListingType  *string  `json:"listing_type"`
	Location     *string  `json:"location"`
	Description  string   `json:"description"`
	Photos       []string `json:"photos"`
}

type marketplacePage struct {
	Listings []marketplaceListing `json:"listings"`
	HasMore  bool                 `json:"has_more"`
}

// SearchListings fetches and converts pages until a cap is reached or
// the upstream reports no further pages
func (m *MarketplaceAdapter) SearchListings(ctx context.Context, params SearchParams) ([]model.Listing, error) {
	if m.baseURL == "" {
		return nil, errors.New("marketplace base URL not configured")
	}

	var out []model.Listing
	for page := 1; page <= m.maxPages; page++ {
		if page > 1 {
			select {
			case <-time.After(m.pageDelay):
			case <-ctx.Done():
				return out, ctx.Err()
			}
		}

		body, err := m.fetchPage(ctx, params, page)
		if err != nil {
			if len(out) > 0 {
				// Partial results beat none; later pages failing is a
				// degradation, not a wipeout
				log.Printf("⚠️  Marketplace page %d failed, keeping %d listings: %v", page, len(out), err)
				return out, nil
			}
			return nil, err
		}

		for _, raw := range body.Listings {
			listing, err := m.convert(raw)
			if err != nil {
				log.Printf("⚠️  Skipping marketplace listing %s: %v", raw.ID, err)
				continue
			}
			out = append(out, listing)
			if len(out) >= m.maxListings {
				return out, nil
			}
		}

		if !body.HasMore || len(body.Listings) == 0 {
			break
		}
	}

	return out, nil
}

func (m *MarketplaceAdapter) fetchPage(ctx context.Context, params SearchParams, page int) (*marketplacePage, error) {
	q := url.Values{}
	q.Set("q", params.Query)
	q.Set("page", fmt.Sprintf("%d", page))
	q.Set("page_size", fmt.Sprintf("%d", m.pageSize))
	if params.PriceRange.MinEUR != nil {
		q.Set("min_price", fmt.Sprintf("%.0f", *params.PriceRange.MinEUR))
	}
	if params.PriceRange.MaxEUR != nil {
		q.Set("max_price", fmt.Sprintf("%.0f", *params.PriceRange.MaxEUR))
	}
	if params.PropertyType != nil {
		q.Set("property_type", *params.PropertyType)
	}
	if params.ListingType != nil {
		q.Set("listing_type", *params.ListingType)
	}
	if params.UserLocation.Latitude != 0 || params.UserLocation.Longitude != 0 {
		q.Set("lat", fmt.Sprintf("%.6f", params.UserLocation.Latitude))
		q.Set("lng", fmt.Sprintf("%.6f", params.UserLocation.Longitude))
		if params.RadiusKm > 0 {
			q.Set("radius_km", fmt.Sprintf("%.0f", params.RadiusKm))
		}
	}

	headers := map[string]string{}
	if m.apiKey != "" {
		headers["Authorization"] = "Bearer " + m.apiKey
	}

	var body marketplacePage
	reqURL := fmt.Sprintf("%s/listings?%s", m.baseURL, q.Encode())
	if err := m.client.DoJSON(ctx, "GET", reqURL, headers, nil, &body); err != nil {
		return nil, err
	}
	return &body, nil
}

// convert maps the wire listing to the internal model, normalizing
// the price to EUR. Unknown currencies drop the listing.
func (m *MarketplaceAdapter) convert(raw marketplaceListing) (model.Listing, error) {
	code := raw.Currency
	if code == "" {
		code = currency.GuessCurrency(raw.Title)
	}
	priceEUR, err := currency.ToEur(raw.Price, code, m.rates)
	if err != nil {
		return model.Listing{}, err
	}

	return model.Listing{
		ID:           "marketplace-" + raw.ID,
		Source:       m.Name(),
		SourceURL:    raw.URL,
		Title:        raw.Title,
		PriceEUR:     priceEUR,
		Bedrooms:     raw.Bedrooms,
		Bathrooms:    raw.Bathrooms,
		AreaSqm:      raw.AreaSqm,
		Latitude:     raw.Latitude,
		Longitude:    raw.Longitude,
		PropertyType: raw.PropertyType,
		ListingType:  raw.ListingType,
		Location:     raw.Location,
		Description:  raw.Description,
		Photos:       model.JSONArray(raw.Photos),
		LastSeen:     time.Now().UTC(),
	}, nil
}
