package source

import (
	"context"
	"errors"
	"testing"

	"propfinder/internal/model"
)

type fakeAdapter struct {
	name     string
	listings []model.Listing
	err      error
	calls    int
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) SearchListings(ctx context.Context, params SearchParams) ([]model.Listing, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

func listing(id, url string) model.Listing {
	return model.Listing{ID: id, Source: "test", SourceURL: url, Title: id, PriceEUR: 100}
}

func TestAggregatorMergesSources(t *testing.T) {
	a := NewAggregator(
		&fakeAdapter{name: "one", listings: []model.Listing{listing("a", "http://x/a")}},
		&fakeAdapter{name: "two", listings: []model.Listing{listing("b", "http://x/b")}},
	)

	listings, degraded := a.Search(context.Background(), SearchParams{Query: "terreno"})
	if len(listings) != 2 {
		t.Errorf("expected 2 listings, got %d", len(listings))
	}
	if len(degraded) != 0 {
		t.Errorf("unexpected degraded sources: %v", degraded)
	}
}

func TestAggregatorIsolatesFailures(t *testing.T) {
	bad := &fakeAdapter{name: "bad", err: errors.New("upstream down")}
	good := &fakeAdapter{name: "good", listings: []model.Listing{listing("a", "http://x/a")}}
	a := NewAggregator(bad, good)

	listings, degraded := a.Search(context.Background(), SearchParams{})
	if len(listings) != 1 {
		t.Errorf("good adapter results lost: %d listings", len(listings))
	}
	if len(degraded) != 1 || degraded[0] != "bad" {
		t.Errorf("degraded = %v, want [bad]", degraded)
	}
	if good.calls != 1 {
		t.Errorf("good adapter should still run after a failure, calls = %d", good.calls)
	}
}

func TestAggregatorDeduplicatesByURL(t *testing.T) {
	first := listing("a1", "http://x/same")
	first.Description = ""
	second := listing("a2", "http://x/same")
	second.Description = "full description from the slower source"

	a := NewAggregator(
		&fakeAdapter{name: "one", listings: []model.Listing{first}},
		&fakeAdapter{name: "two", listings: []model.Listing{second}},
	)

	listings, _ := a.Search(context.Background(), SearchParams{})
	if len(listings) != 1 {
		t.Fatalf("expected 1 deduped listing, got %d", len(listings))
	}
	if listings[0].ID != "a1" {
		t.Errorf("dedupe should keep the first occurrence, got %s", listings[0].ID)
	}
	if listings[0].Description != "full description from the slower source" {
		t.Errorf("missing fields should backfill from duplicates")
	}
}

func TestAggregatorKeepsDistinctURLs(t *testing.T) {
	a := NewAggregator(
		&fakeAdapter{name: "one", listings: []model.Listing{
			listing("a", "http://x/a"),
			listing("b", "http://x/b"),
		}},
	)

	listings, _ := a.Search(context.Background(), SearchParams{})
	if len(listings) != 2 {
		t.Errorf("distinct listings merged: got %d", len(listings))
	}
}
