package source

import (
	"context"
	"errors"
	"testing"

	"propfinder/internal/model"
	"propfinder/internal/repository"
	"propfinder/internal/vectorstore"
)

type fakeListingIndex struct {
	filtered    []model.Listing
	similar     []model.Listing
	similarErr  error
	vectorCalls int
	lastFilters repository.ListingFilters
}

func (f *fakeListingIndex) SearchListings(ctx context.Context, filters repository.ListingFilters) ([]model.Listing, error) {
	f.lastFilters = filters
	return f.filtered, nil
}

func (f *fakeListingIndex) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]model.Listing, error) {
	f.vectorCalls++
	if f.similarErr != nil {
		return nil, f.similarErr
	}
	return f.similar, nil
}

func TestIndexAdapterMergesVectorRecall(t *testing.T) {
	idx := &fakeListingIndex{
		filtered: []model.Listing{listing("a", "http://x/a")},
		similar:  []model.Listing{listing("a", "http://x/a"), listing("b", "http://x/b")},
	}
	adapter := NewIndexAdapter(idx, 20, vectorstore.NewLocalEmbedder())

	got, err := adapter.SearchListings(context.Background(), SearchParams{Query: "terreno urbano"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.vectorCalls != 1 {
		t.Errorf("vector search ran %d times, want 1", idx.vectorCalls)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("merge wrong: %+v", got)
	}
}

func TestIndexAdapterWithoutEmbedder(t *testing.T) {
	idx := &fakeListingIndex{filtered: []model.Listing{listing("a", "http://x/a")}}
	adapter := NewIndexAdapter(idx, 20, nil)

	got, err := adapter.SearchListings(context.Background(), SearchParams{Query: "terreno urbano"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.vectorCalls != 0 {
		t.Error("vector search should be skipped without an embedder")
	}
	if len(got) != 1 {
		t.Errorf("expected the filter results only, got %+v", got)
	}
}

func TestIndexAdapterVectorFailureKeepsFilterResults(t *testing.T) {
	idx := &fakeListingIndex{
		filtered:   []model.Listing{listing("a", "http://x/a")},
		similarErr: errors.New("dimension mismatch"),
	}
	adapter := NewIndexAdapter(idx, 20, vectorstore.NewLocalEmbedder())

	got, err := adapter.SearchListings(context.Background(), SearchParams{Query: "terreno urbano"})
	if err != nil {
		t.Fatalf("vector failure must not fail the adapter: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("filter results lost: %+v", got)
	}
}

func TestIndexAdapterForwardsFilters(t *testing.T) {
	idx := &fakeListingIndex{}
	adapter := NewIndexAdapter(idx, 20, nil)

	min, max := 10000.0, 50000.0
	ptype := "land"
	params := SearchParams{
		Query:        "terreno",
		PropertyType: &ptype,
		UserLocation: model.UserLocation{Label: "Porto"},
	}
	params.PriceRange.MinEUR = &min
	params.PriceRange.MaxEUR = &max

	if _, err := adapter.SearchListings(context.Background(), params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f := idx.lastFilters
	if f.MinPriceEUR == nil || *f.MinPriceEUR != 10000 || f.MaxPriceEUR == nil || *f.MaxPriceEUR != 50000 {
		t.Errorf("price bounds not forwarded: %+v", f)
	}
	if f.PropertyType == nil || *f.PropertyType != "land" {
		t.Errorf("property type not forwarded: %+v", f)
	}
	if f.Location == nil || *f.Location != "Porto" {
		t.Errorf("location not forwarded: %+v", f)
	}
	if f.Limit != 20 {
		t.Errorf("limit = %d, want 20", f.Limit)
	}
}
