package source

import (
	"context"
	"log"

	"propfinder/internal/model"
	"propfinder/internal/repository"
	"propfinder/internal/vectorstore"
)

// ListingIndex is the slice of the repository the adapter needs.
// Satisfied by repository.PostgresRepository.
type ListingIndex interface {
	SearchListings(ctx context.Context, filters repository.ListingFilters) ([]model.Listing, error)
	VectorSearch(ctx context.Context, embedding []float32, limit int) ([]model.Listing, error)
}

// IndexAdapter serves listings the system has already seen from the
// database, so a search can return cached inventory even when every
// external source is down. With an embedder it additionally recalls
// semantically similar listings the structured filters would miss.
type IndexAdapter struct {
	repo     ListingIndex
	embedder vectorstore.Embedder
	maxBatch int
}

// NewIndexAdapter creates the adapter over an open repository. A nil
// embedder disables the semantic recall path.
func NewIndexAdapter(repo ListingIndex, maxBatch int, embedder vectorstore.Embedder) *IndexAdapter {
	if maxBatch <= 0 {
		maxBatch = 50
	}
	return &IndexAdapter{repo: repo, embedder: embedder, maxBatch: maxBatch}
}

func (a *IndexAdapter) Name() string { return "index" }

// SearchListings translates the aggregation params into repository
// filters, then widens the batch with embedding-nearest listings.
// Price and geo bounds are re-checked downstream, so semantic recall
// can only add candidates, never leak out-of-window results.
func (a *IndexAdapter) SearchListings(ctx context.Context, params SearchParams) ([]model.Listing, error) {
	filters := repository.ListingFilters{
		MinPriceEUR:  params.PriceRange.MinEUR,
		MaxPriceEUR:  params.PriceRange.MaxEUR,
		PropertyType: params.PropertyType,
		ListingType:  params.ListingType,
		Limit:        a.maxBatch,
	}
	if params.UserLocation.Label != "" {
		label := params.UserLocation.Label
		filters.Location = &label
	}

	listings, err := a.repo.SearchListings(ctx, filters)
	if err != nil {
		return nil, err
	}

	if a.embedder == nil || params.Query == "" {
		return listings, nil
	}

	similar, err := a.vectorRecall(ctx, params.Query)
	if err != nil {
		// Semantic recall is an extra, the filter results still stand
		log.Printf("⚠️  Vector recall failed: %v", err)
		return listings, nil
	}

	seen := make(map[string]bool, len(listings))
	for _, l := range listings {
		seen[l.ID] = true
	}
	for _, l := range similar {
		if !seen[l.ID] {
			listings = append(listings, l)
		}
	}
	return listings, nil
}

func (a *IndexAdapter) vectorRecall(ctx context.Context, query string) ([]model.Listing, error) {
	embeddings, err := a.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, nil
	}
	return a.repo.VectorSearch(ctx, embeddings[0], a.maxBatch)
}
