package source

import (
	"context"
	"log"

	"propfinder/internal/model"
)

// Aggregator fans a search out over every registered adapter and
// merges the results. Adapters run sequentially: the upstreams share
// rate limits, so spreading calls over time beats finishing sooner
// and getting throttled. One adapter failing never aborts the pass.
type Aggregator struct {
	adapters []Adapter
}

// NewAggregator creates an aggregator over the given adapters
func NewAggregator(adapters ...Adapter) *Aggregator {
	return &Aggregator{adapters: adapters}
}

// Adapters returns the registered adapter names in invocation order
func (a *Aggregator) Adapters() []string {
	names := make([]string, len(a.adapters))
	for i, ad := range a.adapters {
		names[i] = ad.Name()
	}
	return names
}

// Search runs one aggregation pass. It returns the merged, deduped
// listings plus the names of sources that failed.
func (a *Aggregator) Search(ctx context.Context, params SearchParams) ([]model.Listing, []string) {
	var all []model.Listing
	var degraded []string

	for _, adapter := range a.adapters {
		if ctx.Err() != nil {
			// Remaining sources count as degraded, not silently skipped
			degraded = append(degraded, adapter.Name())
			continue
		}

		listings, err := adapter.SearchListings(ctx, params)
		if err != nil {
			log.Printf("⚠️  Source %s failed: %v", adapter.Name(), err)
			degraded = append(degraded, adapter.Name())
			continue
		}
		all = append(all, listings...)
	}

	return dedupe(all), degraded
}

// dedupe merges listings that share a source URL, keeping the first
// occurrence and backfilling fields it is missing from later ones.
func dedupe(listings []model.Listing) []model.Listing {
	seen := make(map[string]int, len(listings))
	out := make([]model.Listing, 0, len(listings))

	for _, l := range listings {
		key := l.SourceURL
		if key == "" {
			key = l.Source + "/" + l.ID
		}

		idx, dup := seen[key]
		if !dup {
			seen[key] = len(out)
			out = append(out, l)
			continue
		}

		kept := &out[idx]
		if kept.Description == "" {
			kept.Description = l.Description
		}
		if len(kept.Photos) == 0 {
			kept.Photos = l.Photos
		}
		if kept.AreaSqm == nil {
			kept.AreaSqm = l.AreaSqm
		}
		if kept.Bedrooms == nil {
			kept.Bedrooms = l.Bedrooms
		}
		if kept.Latitude == nil {
			kept.Latitude = l.Latitude
			kept.Longitude = l.Longitude
		}
	}

	return out
}
