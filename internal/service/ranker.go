package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"propfinder/internal/model"
	"propfinder/internal/utils"
)

// Heuristic score constants
const (
	scoreBase          = 50
	scoreMin           = 10
	scoreMax           = 95
	scoreTypeMatch     = 15
	scoreTypeConflict  = -25
	scoreUrbanLand     = 20
	scoreListingMatch  = 5
	scoreListingWrong  = -20
	scoreLocationMatch = 10
	scorePricePerArea  = 10

	// Listings the AI reply skipped keep a neutral pass-through score
	defaultAIScore = 60

	relevantThreshold = 30
)

// Land classification keywords. Rural terms reject a construction
// query outright, urban terms boost it.
var (
	urbanLandKeywords = []string{"urbano", "urbana", "urbanizável", "urbanizavel", "construção", "construcao", "buildable", "building permission", "viabilidade"}
	ruralLandKeywords = []string{"rústico", "rustico", "rural", "agrícola", "agricola", "agricultural"}
)

// RankOptions tunes a single ranking call
type RankOptions struct {
	SkipAI  bool
	Timeout time.Duration
}

// Ranker scores candidate listings against the free-text query. It
// prefers the AI path and degrades to a deterministic heuristic when
// no provider is usable, the call times out, or the candidate set is
// too large to ship to a model.
type Ranker struct {
	ai       *Orchestrator
	resolver *IntentResolver

	candidateCeiling int
	detailThreshold  int
	timeout          time.Duration
}

// NewRanker creates a ranker. ai may be nil to force heuristic mode.
func NewRanker(ai *Orchestrator, resolver *IntentResolver, candidateCeiling, detailThreshold int, timeout time.Duration) *Ranker {
	if candidateCeiling <= 0 {
		candidateCeiling = 20
	}
	if detailThreshold <= 0 {
		detailThreshold = 5
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Ranker{
		ai:               ai,
		resolver:         resolver,
		candidateCeiling: candidateCeiling,
		detailThreshold:  detailThreshold,
		timeout:          timeout,
	}
}

// FilterListingsByRelevance returns one RelevanceResult per candidate,
// in candidate order. It never drops a listing; callers decide what
// to do with isRelevant=false entries.
func (r *Ranker) FilterListingsByRelevance(ctx context.Context, query string, candidates []model.Listing, opts RankOptions) []model.RelevanceResult {
	if len(candidates) == 0 {
		return []model.RelevanceResult{}
	}

	useAI := !opts.SkipAI && r.ai != nil && len(candidates) <= r.candidateCeiling
	if useAI {
		results, err := r.rankWithAI(ctx, query, candidates, opts)
		if err == nil {
			return results
		}
		log.Printf("⚠️  AI ranking unavailable, using heuristic scorer: %v", err)
	}

	return r.rankHeuristic(query, candidates)
}

// GetRelevantListings ranks candidates and returns listing cards for
// the relevant ones, best first. Ties keep aggregation order.
func (r *Ranker) GetRelevantListings(ctx context.Context, query string, candidates []model.Listing, opts RankOptions) []model.ListingCard {
	results := r.FilterListingsByRelevance(ctx, query, candidates, opts)

	byID := make(map[string]model.RelevanceResult, len(results))
	for _, res := range results {
		byID[res.ID] = res
	}

	cards := make([]model.ListingCard, 0, len(candidates))
	for _, listing := range candidates {
		res, ok := byID[listing.ID]
		if !ok || !res.IsRelevant {
			continue
		}
		cards = append(cards, model.ListingCard{
			Listing:         listing,
			RelevanceScore:  res.Score,
			RelevanceReason: res.Reasoning,
		})
	}

	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].RelevanceScore > cards[j].RelevanceScore
	})

	return cards
}

// --- AI mode ---

func (r *Ranker) rankWithAI(ctx context.Context, query string, candidates []model.Listing, opts RankOptions) ([]model.RelevanceResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := r.aiScorePass(ctx, query, candidates, false)
	if err != nil {
		return nil, err
	}

	// When a large candidate set boils down to a handful of
	// survivors, re-ask the model for denser reasoning on just those
	if len(candidates) > r.detailThreshold {
		survivors := survivorListings(candidates, results)
		if len(survivors) > 0 && len(survivors) <= r.detailThreshold {
			refined, err := r.aiScorePass(ctx, query, survivors, true)
			if err == nil {
				results = mergeRefined(results, refined)
			} else {
				log.Printf("⚠️  Refine pass failed, keeping first-pass reasoning: %v", err)
			}
		}
	}

	return results, nil
}

// aiScorePass sends one scoring prompt and normalizes the reply so
// every input listing has a result.
func (r *Ranker) aiScorePass(ctx context.Context, query string, candidates []model.Listing, detailed bool) ([]model.RelevanceResult, error) {
	req := ChatCompletionRequest{
		Messages: []ChatMessage{
			{Role: "system", Content: rankSystemPrompt(detailed)},
			{Role: "user", Content: buildRankPrompt(query, candidates)},
		},
		Temperature: 0.2,
	}

	content, _, err := r.ai.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	var parsed []model.RelevanceResult
	if err := utils.ParseAIJSON(content, &parsed); err != nil {
		// Unparsable model output is "no structured data", not an
		// error the caller should see
		log.Printf("⚠️  Could not parse ranking response: %v", err)
		parsed = nil
	}

	byID := make(map[string]model.RelevanceResult, len(parsed))
	for _, res := range parsed {
		if res.Score < 0 {
			res.Score = 0
		}
		if res.Score > 100 {
			res.Score = 100
		}
		byID[res.ID] = res
	}

	// A listing the model did not address stays in the result set
	// with a neutral score instead of silently disappearing
	results := make([]model.RelevanceResult, 0, len(candidates))
	for _, listing := range candidates {
		if res, ok := byID[listing.ID]; ok {
			results = append(results, res)
			continue
		}
		results = append(results, model.RelevanceResult{
			ID:         listing.ID,
			IsRelevant: true,
			Score:      defaultAIScore,
			Reasoning:  "Not individually assessed",
		})
	}

	return results, nil
}

func rankSystemPrompt(detailed bool) string {
	base := `You are a property search assistant. Given a user query and candidate listings, judge how well each listing matches the request.

Respond ONLY with a JSON array, one object per listing:
[{"id": "<listing id>", "is_relevant": true, "score": 85, "reasoning": "..."}]

Rules:
- score is 0-100 (100 = perfect match)
- is_relevant is false when the listing clearly does not fit the request (wrong property type, rural land for a construction query, rent instead of sale)
- keep every listing id from the input in your answer`

	if detailed {
		return base + `
- write reasoning as 2-3 full sentences covering price fit, type fit and location`
	}
	return base + `
- keep reasoning to one short sentence`
}

func buildRankPrompt(query string, candidates []model.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User query: %s\n\nCandidate listings:\n", query)

	for _, l := range candidates {
		fmt.Fprintf(&b, "\n- id: %s\n  title: %s\n  price: %.0f EUR\n", l.ID, l.Title, l.PriceEUR)
		if l.PropertyType != nil {
			fmt.Fprintf(&b, "  type: %s\n", *l.PropertyType)
		}
		if l.ListingType != nil {
			fmt.Fprintf(&b, "  listing: %s\n", *l.ListingType)
		}
		if l.AreaSqm != nil {
			fmt.Fprintf(&b, "  area: %.0f m2\n", *l.AreaSqm)
		}
		if l.Location != nil {
			fmt.Fprintf(&b, "  location: %s\n", *l.Location)
		}
		if desc := truncate(l.Description, 300); desc != "" {
			fmt.Fprintf(&b, "  description: %s\n", desc)
		}
		fmt.Fprintf(&b, "  photos: %d\n", len(l.Photos))
	}

	return b.String()
}

func survivorListings(candidates []model.Listing, results []model.RelevanceResult) []model.Listing {
	relevant := make(map[string]bool, len(results))
	for _, res := range results {
		if res.IsRelevant {
			relevant[res.ID] = true
		}
	}
	var out []model.Listing
	for _, l := range candidates {
		if relevant[l.ID] {
			out = append(out, l)
		}
	}
	return out
}

func mergeRefined(base, refined []model.RelevanceResult) []model.RelevanceResult {
	byID := make(map[string]model.RelevanceResult, len(refined))
	for _, res := range refined {
		byID[res.ID] = res
	}
	out := make([]model.RelevanceResult, len(base))
	for i, res := range base {
		if ref, ok := byID[res.ID]; ok {
			out[i] = ref
		} else {
			out[i] = res
		}
	}
	return out
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// --- heuristic mode ---

// rankHeuristic is the deterministic fallback scorer. Same input
// always produces the same output, which keeps it unit-testable and
// safe to use when every provider is down.
func (r *Ranker) rankHeuristic(query string, candidates []model.Listing) []model.RelevanceResult {
	hints := r.resolver.Resolve(query, "")
	lowerQuery := strings.ToLower(query)

	results := make([]model.RelevanceResult, 0, len(candidates))
	for _, listing := range candidates {
		results = append(results, r.scoreOne(lowerQuery, hints, listing))
	}
	return results
}

func (r *Ranker) scoreOne(lowerQuery string, hints model.IntentResult, listing model.Listing) model.RelevanceResult {
	score := scoreBase
	var reasons []string
	rejected := false

	text := strings.ToLower(listing.Title + " " + listing.Description)
	detectedType := detectListingPropertyType(listing, text)

	// Property type fit
	if hints.PropertyType != nil && detectedType != "" {
		if detectedType == *hints.PropertyType {
			score += scoreTypeMatch
			reasons = append(reasons, "property type matches")
		} else {
			score += scoreTypeConflict
			reasons = append(reasons, fmt.Sprintf("looks like %s, not %s", detectedType, *hints.PropertyType))
		}
	}

	// Buildability heuristics for land queries
	if hints.PropertyType != nil && *hints.PropertyType == "land" && detectedType == "land" {
		switch {
		case utils.ContainsAnyKeyword(text, ruralLandKeywords):
			rejected = true
			score = scoreMin
			reasons = append(reasons, "classified as rural/agricultural land")
		case utils.ContainsAnyKeyword(text, urbanLandKeywords):
			score += scoreUrbanLand
			reasons = append(reasons, "urban land suitable for construction")
		default:
			// No classification keywords, use price per area as a
			// weak buildability signal
			if listing.AreaSqm != nil && *listing.AreaSqm > 0 {
				perSqm := listing.PriceEUR / *listing.AreaSqm
				if perSqm >= 25 {
					score += scorePricePerArea
					reasons = append(reasons, "price per m2 suggests buildable land")
				} else if perSqm < 5 {
					score -= scorePricePerArea
					reasons = append(reasons, "price per m2 suggests agricultural land")
				}
			}
		}
	}

	// Sale vs rent consistency
	if hints.ListingType != nil && listing.ListingType != nil {
		if strings.EqualFold(*hints.ListingType, *listing.ListingType) {
			score += scoreListingMatch
		} else {
			score += scoreListingWrong
			reasons = append(reasons, fmt.Sprintf("listed for %s, query asks for %s", *listing.ListingType, *hints.ListingType))
		}
	}

	// Location substring match
	if listing.Location != nil && *listing.Location != "" {
		if strings.Contains(lowerQuery, strings.ToLower(*listing.Location)) {
			score += scoreLocationMatch
			reasons = append(reasons, "location mentioned in query")
		}
	}

	if score < scoreMin {
		score = scoreMin
	}
	if score > scoreMax {
		score = scoreMax
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "general match")
	}

	return model.RelevanceResult{
		ID:         listing.ID,
		IsRelevant: !rejected && score >= relevantThreshold,
		Score:      score,
		Reasoning:  strings.Join(reasons, "; "),
	}
}

// detectListingPropertyType prefers the adapter-provided tag and
// falls back to keyword detection over title and description
func detectListingPropertyType(listing model.Listing, lowerText string) string {
	if listing.PropertyType != nil {
		if t := utils.MatchPropertyType(*listing.PropertyType); t != "" {
			return t
		}
	}
	return utils.MatchPropertyType(lowerText)
}
