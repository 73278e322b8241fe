package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"propfinder/internal/config"
	"propfinder/internal/model"
	"propfinder/internal/source"
	"propfinder/internal/vectorstore"
)

// scriptedAdapter returns a different result set per invocation so
// tests can distinguish the strict pass from the near-miss pass
type scriptedAdapter struct {
	name    string
	batches [][]model.Listing
	err     error
	calls   int
	params  []source.SearchParams
}

func (a *scriptedAdapter) Name() string { return a.name }

func (a *scriptedAdapter) SearchListings(ctx context.Context, params source.SearchParams) ([]model.Listing, error) {
	idx := a.calls
	a.calls++
	a.params = append(a.params, params)
	if a.err != nil {
		return nil, a.err
	}
	if idx < len(a.batches) {
		return a.batches[idx], nil
	}
	return nil, nil
}

func priceListing(id string, price float64) model.Listing {
	return model.Listing{
		ID:        id,
		Source:    "scripted",
		SourceURL: "http://x/" + id,
		Title:     "Moradia " + id,
		PriceEUR:  price,
	}
}

func newTestSearchService(adapters ...source.Adapter) *SearchService {
	resolver := newTestResolver()
	return NewSearchService(
		resolver,
		source.NewAggregator(adapters...),
		NewRanker(nil, resolver, 20, 5, time.Second),
		nil,
		nil,
		nil,
		config.SearchConfig{RadiusKm: 50, NearMissRadius: 80, MaxResults: 40, ResultCacheSize: 3},
	)
}

func TestRunSearchStrictPassOnly(t *testing.T) {
	adapter := &scriptedAdapter{name: "scripted", batches: [][]model.Listing{
		{priceListing("a", 45000)},
	}}
	svc := newTestSearchService(adapter)

	resp, err := svc.RunSearch(context.Background(), model.SearchRequest{Query: "house under 50000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if adapter.calls != 1 {
		t.Errorf("strict pass yielded results, aggregation ran %d times, want 1", adapter.calls)
	}
	if resp.MatchType != model.MatchExact {
		t.Errorf("matchType = %s, want exact", resp.MatchType)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "a" {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
}

func TestRunSearchNearMissEscalation(t *testing.T) {
	// Strict pass finds only an over-budget listing, near-miss pass
	// runs once with the widened window
	adapter := &scriptedAdapter{name: "scripted", batches: [][]model.Listing{
		{priceListing("pricey", 54000)},
		{priceListing("pricey", 54000)},
	}}
	svc := newTestSearchService(adapter)

	resp, err := svc.RunSearch(context.Background(), model.SearchRequest{Query: "house under 50000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if adapter.calls != 2 {
		t.Fatalf("aggregation ran %d times, want exactly 2", adapter.calls)
	}
	if resp.MatchType != model.MatchNearMiss {
		t.Errorf("matchType = %s, want near-miss", resp.MatchType)
	}
	// Near-miss window for under 50000: max 50000 + max(7500, 2000)
	second := adapter.params[1]
	if second.PriceRange.MaxEUR == nil || *second.PriceRange.MaxEUR != 57500 {
		t.Errorf("near-miss max = %v, want 57500", second.PriceRange.MaxEUR)
	}
	if len(resp.Results) != 1 {
		t.Errorf("expected the near-miss listing, got %d results", len(resp.Results))
	}
	if resp.Note == "" {
		t.Error("near-miss response should carry an explanatory note")
	}
}

func TestRunSearchNearMissEmptyStillOnce(t *testing.T) {
	adapter := &scriptedAdapter{name: "scripted"}
	svc := newTestSearchService(adapter)

	resp, err := svc.RunSearch(context.Background(), model.SearchRequest{Query: "house under 50000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if adapter.calls != 2 {
		t.Errorf("aggregation ran %d times, want 2 (one strict, one near-miss)", adapter.calls)
	}
	if len(resp.Results) != 0 {
		t.Errorf("expected empty result set, got %d", len(resp.Results))
	}
}

func TestRunSearchNoneIntentNeverEscalates(t *testing.T) {
	// No price in the query: the unbounded window must pass through
	// once, with no near-miss retry even on zero results
	adapter := &scriptedAdapter{name: "scripted"}
	svc := newTestSearchService(adapter)

	resp, err := svc.RunSearch(context.Background(), model.SearchRequest{Query: "sunny house near the beach"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if adapter.calls != 1 {
		t.Errorf("none intent triggered %d aggregation passes, want 1", adapter.calls)
	}
	if resp.MatchType != model.MatchExact {
		t.Errorf("matchType = %s, want exact", resp.MatchType)
	}
	if !resp.PriceRange.Unbounded() {
		t.Errorf("price range should stay unbounded: %+v", resp.PriceRange)
	}
}

func TestRunSearchFiltersStrictWindow(t *testing.T) {
	adapter := &scriptedAdapter{name: "scripted", batches: [][]model.Listing{
		{priceListing("in", 45000), priceListing("out", 60000)},
	}}
	svc := newTestSearchService(adapter)

	resp, err := svc.RunSearch(context.Background(), model.SearchRequest{Query: "house under 50000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "in" {
		t.Errorf("price filter failed: %+v", resp.Results)
	}
}

func TestRunSearchDegradedSources(t *testing.T) {
	bad := &scriptedAdapter{name: "bad", err: context.DeadlineExceeded}
	good := &scriptedAdapter{name: "good", batches: [][]model.Listing{
		{priceListing("a", 45000)},
	}}
	svc := newTestSearchService(bad, good)

	resp, err := svc.RunSearch(context.Background(), model.SearchRequest{Query: "house under 50000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.DegradedSources) != 1 || resp.DegradedSources[0] != "bad" {
		t.Errorf("degraded sources = %v, want [bad]", resp.DegradedSources)
	}
	if len(resp.Results) != 1 {
		t.Errorf("good source results lost: %+v", resp.Results)
	}
	if resp.Note == "" {
		t.Error("degraded sources should be mentioned in the note")
	}
}

func TestRunSearchUnsupportedCurrency(t *testing.T) {
	svc := newTestSearchService(&scriptedAdapter{name: "scripted"})

	_, err := svc.RunSearch(context.Background(), model.SearchRequest{
		Query:        "house under 50000",
		UserLocation: model.UserLocation{Currency: "JPY"},
	})
	if err == nil {
		t.Fatal("expected a hard error for an unsupported currency")
	}
}

func TestRunSearchGeoFilter(t *testing.T) {
	lisbon := priceListing("lisbon", 45000)
	lisbon.Latitude = f64Ptr(38.7223)
	lisbon.Longitude = f64Ptr(-9.1393)
	porto := priceListing("porto", 45000)
	porto.Latitude = f64Ptr(41.1579)
	porto.Longitude = f64Ptr(-8.6291)
	noCoords := priceListing("unknown", 45000)

	adapter := &scriptedAdapter{name: "scripted", batches: [][]model.Listing{
		{lisbon, porto, noCoords},
	}}
	svc := newTestSearchService(adapter)

	resp, err := svc.RunSearch(context.Background(), model.SearchRequest{
		Query: "house under 50000",
		UserLocation: model.UserLocation{
			Label: "Lisboa", Latitude: 38.7223, Longitude: -9.1393, Currency: "EUR",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids := map[string]*model.ListingCard{}
	for i := range resp.Results {
		ids[resp.Results[i].ID] = &resp.Results[i]
	}
	if ids["porto"] != nil {
		t.Error("listing outside the radius survived the geo filter")
	}
	if ids["lisbon"] == nil {
		t.Fatal("nearby listing was filtered out")
	}
	if ids["unknown"] == nil {
		t.Error("listing without coordinates should not be geo-filtered")
	}
	if ids["lisbon"].DistanceKm == nil || *ids["lisbon"].DistanceKm > 1 {
		t.Errorf("distance annotation wrong: %v", ids["lisbon"].DistanceKm)
	}
}

func TestSearchCacheRetrievalAndEviction(t *testing.T) {
	adapter := &scriptedAdapter{name: "scripted", batches: [][]model.Listing{
		{priceListing("a", 45000)},
		{priceListing("a", 45000)},
		{priceListing("a", 45000)},
		{priceListing("a", 45000)},
	}}
	svc := newTestSearchService(adapter) // cache capacity 3

	var ids []string
	for i := 0; i < 4; i++ {
		resp, err := svc.RunSearch(context.Background(), model.SearchRequest{Query: "house under 50000"})
		if err != nil {
			t.Fatalf("search %d failed: %v", i, err)
		}
		ids = append(ids, resp.SearchID)
	}

	if _, ok := svc.GetSearch(ids[0]); ok {
		t.Error("oldest search should have been evicted")
	}
	for _, id := range ids[1:] {
		if _, ok := svc.GetSearch(id); !ok {
			t.Errorf("search %s missing from cache", id)
		}
	}
}

func TestBuildSummaryIncludesKnowledgeContext(t *testing.T) {
	store, err := vectorstore.New(filepath.Join(t.TempDir(), "kb.json"), vectorstore.NewLocalEmbedder())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	err = store.AddDocuments(context.Background(), "knowledge", []vectorstore.Document{
		{ID: "land-classes", Content: "Urban land (terreno urbano) permits construction; rustic land is restricted to agricultural use."},
	})
	if err != nil {
		t.Fatalf("failed to seed knowledge: %v", err)
	}

	backend := &fakeBackend{id: "groq", enabled: true, reply: "Here is a tidy summary."}
	ai := newTestOrchestrator(0, backend)

	listing := priceListing("a", 45000)
	listing.Title = "Terreno urbano para construção"
	adapter := &scriptedAdapter{name: "scripted", batches: [][]model.Listing{{listing}}}

	resolver := newTestResolver()
	svc := NewSearchService(
		resolver,
		source.NewAggregator(adapter),
		NewRanker(nil, resolver, 20, 5, time.Second),
		ai,
		store,
		nil,
		config.SearchConfig{RadiusKm: 50, NearMissRadius: 80, MaxResults: 40, ResultCacheSize: 3},
	)

	resp, err := svc.RunSearch(context.Background(), model.SearchRequest{Query: "land under 50000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Summary != "Here is a tidy summary." {
		t.Errorf("summary = %q, want the AI reply", resp.Summary)
	}

	if len(backend.lastReq.Messages) != 2 {
		t.Fatalf("summary request has %d messages, want system+user", len(backend.lastReq.Messages))
	}
	prompt := backend.lastReq.Messages[1].Content
	if !strings.Contains(prompt, "Market knowledge:") {
		t.Errorf("summary prompt is missing the knowledge block:\n%s", prompt)
	}
	if !strings.Contains(prompt, "terreno urbano") {
		t.Errorf("seeded document did not reach the summary prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Terreno urbano para construção") {
		t.Errorf("result listing missing from the summary prompt:\n%s", prompt)
	}
}

func TestRecordFeedbackValidation(t *testing.T) {
	adapter := &scriptedAdapter{name: "scripted", batches: [][]model.Listing{
		{priceListing("a", 45000)},
	}}
	svc := newTestSearchService(adapter)

	resp, err := svc.RunSearch(context.Background(), model.SearchRequest{Query: "house under 50000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = svc.RecordFeedback(context.Background(), model.FeedbackRequest{
		SearchID: resp.SearchID, ListingID: "a", Action: "click",
	})
	if err != nil {
		t.Errorf("valid feedback rejected: %v", err)
	}

	err = svc.RecordFeedback(context.Background(), model.FeedbackRequest{
		SearchID: "nope", ListingID: "a", Action: "click",
	})
	if err == nil {
		t.Error("unknown search id accepted")
	}

	err = svc.RecordFeedback(context.Background(), model.FeedbackRequest{
		SearchID: resp.SearchID, ListingID: "ghost", Action: "click",
	})
	if err == nil {
		t.Error("listing outside the search accepted")
	}
}
