package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"propfinder/internal/config"
	"propfinder/internal/geo"
	"propfinder/internal/model"
	"propfinder/internal/source"
	"propfinder/internal/vectorstore"
)

// ListingIndexer persists listings seen during a search. Implemented
// by the Postgres repository; nil-able so the service runs without a
// database.
type ListingIndexer interface {
	UpsertListing(ctx context.Context, l model.Listing) error
	LogSearch(ctx context.Context, searchID, query, matchType string, results int, tookMs int64) error
	LogFeedback(ctx context.Context, searchID, listingID, action string) error
}

const (
	knowledgeCollection = "knowledge"
	listingsCollection  = "listings"

	maxKnowledgeContextChars = 1500
)

// SearchService is the top-level orchestrator: resolve intent, run
// the strict aggregation pass, escalate to near-miss on zero results,
// rank, summarize, remember.
type SearchService struct {
	resolver   *IntentResolver
	aggregator *source.Aggregator
	ranker     *Ranker
	ai         *Orchestrator
	store      *vectorstore.Store
	indexer    ListingIndexer
	cfg        config.SearchConfig

	mu      sync.Mutex
	cache   map[string]*model.SearchResponse
	order   []string
	maxSize int
}

// NewSearchService wires the orchestrator. store, ai and indexer may
// be nil; the search then runs without indexing, AI summaries, or
// persistence respectively.
func NewSearchService(
	resolver *IntentResolver,
	aggregator *source.Aggregator,
	ranker *Ranker,
	ai *Orchestrator,
	store *vectorstore.Store,
	indexer ListingIndexer,
	cfg config.SearchConfig,
) *SearchService {
	maxSize := cfg.ResultCacheSize
	if maxSize <= 0 {
		maxSize = 200
	}
	return &SearchService{
		resolver:   resolver,
		aggregator: aggregator,
		ranker:     ranker,
		ai:         ai,
		store:      store,
		indexer:    indexer,
		cfg:        cfg,
		cache:      make(map[string]*model.SearchResponse),
		maxSize:    maxSize,
	}
}

// RunSearch executes one full search. The only errors it returns are
// invalid-request ones (unsupported currency); provider and source
// degradation surface as notes on the response instead.
func (s *SearchService) RunSearch(ctx context.Context, req model.SearchRequest) (*model.SearchResponse, error) {
	start := time.Now()

	intent := s.resolver.Resolve(req.Query, req.UserLocation.Currency)

	strictRange, err := s.resolver.BuildStrictPriceRange(intent.Price)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve price intent: %w", err)
	}

	params := source.SearchParams{
		Query:        req.Query,
		PriceRange:   strictRange,
		PropertyType: intent.PropertyType,
		ListingType:  intent.ListingType,
		UserLocation: req.UserLocation,
		RadiusKm:     s.cfg.RadiusKm,
	}

	matchType := model.MatchExact
	appliedRange := strictRange
	radius := s.cfg.RadiusKm

	listings, degraded := s.aggregator.Search(ctx, params)
	listings = s.filterListings(listings, strictRange, req.UserLocation, radius)

	// Near-miss escalation happens exactly once, and only when the
	// strict pass came back empty. A query with no price intent has
	// nothing to widen, so it never escalates.
	if len(listings) == 0 && intent.Price.Type != model.PriceIntentNone {
		nearRange, err := s.resolver.BuildNearMissPriceRange(intent.Price)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve price intent: %w", err)
		}

		matchType = model.MatchNearMiss
		appliedRange = nearRange
		radius = s.cfg.NearMissRadius

		params.PriceRange = nearRange
		params.RadiusKm = radius
		listings, degraded = s.aggregator.Search(ctx, params)
		listings = s.filterListings(listings, nearRange, req.UserLocation, radius)
	}

	cards := s.ranker.GetRelevantListings(ctx, req.Query, listings, RankOptions{})
	s.annotateDistance(cards, req.UserLocation)
	if s.cfg.MaxResults > 0 && len(cards) > s.cfg.MaxResults {
		cards = cards[:s.cfg.MaxResults]
	}

	resp := &model.SearchResponse{
		SearchID:        uuid.NewString(),
		Query:           req.Query,
		MatchType:       matchType,
		PriceRange:      appliedRange,
		RadiusKm:        radius,
		Results:         cards,
		DegradedSources: degraded,
		Note:            buildNote(matchType, degraded),
		Took:            time.Since(start).Milliseconds(),
	}
	resp.Summary = s.buildSummary(ctx, req.Query, resp)

	s.remember(resp)
	s.indexResults(ctx, resp, listings)

	return resp, nil
}

// GetSearch returns a cached past response by id
func (s *SearchService) GetSearch(id string) (*model.SearchResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.cache[id]
	return resp, ok
}

// RecordFeedback logs a user action against a cached search
func (s *SearchService) RecordFeedback(ctx context.Context, req model.FeedbackRequest) error {
	resp, ok := s.GetSearch(req.SearchID)
	if !ok {
		return fmt.Errorf("unknown search id: %s", req.SearchID)
	}

	found := false
	for _, card := range resp.Results {
		if card.ID == req.ListingID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("listing %s is not part of search %s", req.ListingID, req.SearchID)
	}

	if s.indexer != nil {
		if err := s.indexer.LogFeedback(ctx, req.SearchID, req.ListingID, req.Action); err != nil {
			log.Printf("⚠️  Failed to log feedback: %v", err)
		}
	}
	return nil
}

// filterListings enforces the price window and optional geo radius.
// Listings without coordinates survive the geo check: dropping them
// would punish sources for sparse data.
func (s *SearchService) filterListings(listings []model.Listing, pr model.PriceRange, loc model.UserLocation, radiusKm float64) []model.Listing {
	hasLocation := loc.Latitude != 0 || loc.Longitude != 0

	out := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		if !pr.Contains(l.PriceEUR) {
			continue
		}
		if hasLocation && radiusKm > 0 && l.Latitude != nil && l.Longitude != nil {
			if !geo.WithinRadius(loc.Latitude, loc.Longitude, *l.Latitude, *l.Longitude, radiusKm) {
				continue
			}
		}
		out = append(out, l)
	}
	return out
}

func (s *SearchService) annotateDistance(cards []model.ListingCard, loc model.UserLocation) {
	if loc.Latitude == 0 && loc.Longitude == 0 {
		return
	}
	for i := range cards {
		if cards[i].Latitude == nil || cards[i].Longitude == nil {
			continue
		}
		d := geo.DistanceKm(loc.Latitude, loc.Longitude, *cards[i].Latitude, *cards[i].Longitude)
		cards[i].DistanceKm = &d
	}
}

// buildSummary asks the active provider for a short conversational
// summary and falls back to a template when none is available
func (s *SearchService) buildSummary(ctx context.Context, query string, resp *model.SearchResponse) string {
	fallback := templateSummary(query, resp)
	if s.ai == nil || len(resp.Results) == 0 {
		return fallback
	}

	summaryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var b strings.Builder
	if s.store != nil {
		knowledge, err := s.store.BuildContext(summaryCtx, knowledgeCollection, query, maxKnowledgeContextChars)
		if err != nil {
			log.Printf("⚠️  Failed to build knowledge context: %v", err)
		} else if knowledge != "" {
			fmt.Fprintf(&b, "Market knowledge:\n%s\n", knowledge)
		}
	}
	fmt.Fprintf(&b, "The user searched for: %s\nMatch type: %s\nTop results:\n", query, resp.MatchType)
	for i, card := range resp.Results {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, "- %s (%.0f EUR, score %d)\n", card.Title, card.PriceEUR, card.RelevanceScore)
	}

	content, _, err := s.ai.Complete(summaryCtx, ChatCompletionRequest{
		Messages: []ChatMessage{
			{Role: "system", Content: "You are a property search assistant. Summarize the search results for the user in 2-3 friendly sentences. Mention the number of results and anything notable about prices. Do not invent listings."},
			{Role: "user", Content: b.String()},
		},
		Temperature: 0.6,
		MaxTokens:   200,
	})
	if err != nil || strings.TrimSpace(content) == "" {
		return fallback
	}
	return strings.TrimSpace(content)
}

func templateSummary(query string, resp *model.SearchResponse) string {
	if len(resp.Results) == 0 {
		return fmt.Sprintf("No listings matched %q. Try widening the price range or the search area.", query)
	}

	best := resp.Results[0]
	summary := fmt.Sprintf("Found %d listings for %q. The best match is %q at %.0f EUR.",
		len(resp.Results), query, best.Title, best.PriceEUR)
	if resp.MatchType == model.MatchNearMiss {
		summary += " Nothing matched the exact budget, so these are close alternatives."
	}
	return summary
}

func buildNote(matchType model.MatchType, degraded []string) string {
	var notes []string
	if matchType == model.MatchNearMiss {
		notes = append(notes, "no exact matches; showing near-miss results with a widened price range")
	}
	if len(degraded) > 0 {
		notes = append(notes, "some sources could not be queried: "+strings.Join(degraded, ", "))
	}
	return strings.Join(notes, "; ")
}

// remember stores the response in the bounded id-keyed arena,
// evicting the oldest entries beyond capacity
func (s *SearchService) remember(resp *model.SearchResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[resp.SearchID] = resp
	s.order = append(s.order, resp.SearchID)
	for len(s.order) > s.maxSize {
		evict := s.order[0]
		s.order = s.order[1:]
		delete(s.cache, evict)
	}
}

// indexResults caches the pass results in the vector store and the
// listing index. Best effort: indexing failures only log.
func (s *SearchService) indexResults(ctx context.Context, resp *model.SearchResponse, listings []model.Listing) {
	if s.indexer != nil {
		if err := s.indexer.LogSearch(ctx, resp.SearchID, resp.Query, string(resp.MatchType), len(resp.Results), resp.Took); err != nil {
			log.Printf("⚠️  Failed to log search: %v", err)
		}
		for _, l := range listings {
			if err := s.indexer.UpsertListing(ctx, l); err != nil {
				log.Printf("⚠️  Failed to index listing %s: %v", l.ID, err)
			}
		}
	}

	if s.store != nil && len(listings) > 0 {
		docs := make([]vectorstore.Document, 0, len(listings))
		for _, l := range listings {
			docs = append(docs, vectorstore.Document{
				ID:      l.ID,
				Content: listingText(l),
				Metadata: map[string]string{
					"source": l.Source,
					"url":    l.SourceURL,
					"title":  l.Title,
				},
			})
		}
		if err := s.store.AddDocuments(ctx, listingsCollection, docs); err != nil {
			log.Printf("⚠️  Failed to index listings in vector store: %v", err)
		}
	}
}

func listingText(l model.Listing) string {
	parts := []string{l.Title}
	if l.PropertyType != nil {
		parts = append(parts, *l.PropertyType)
	}
	if l.Location != nil {
		parts = append(parts, *l.Location)
	}
	parts = append(parts, fmt.Sprintf("%.0f EUR", l.PriceEUR))
	if l.Description != "" {
		parts = append(parts, truncate(l.Description, 500))
	}
	return strings.Join(parts, " | ")
}
