package service

import (
	"regexp"
	"strings"

	"propfinder/internal/config"
	"propfinder/internal/currency"
	"propfinder/internal/model"
	"propfinder/internal/utils"
)

// IntentResolver turns free text into a typed price intent plus
// detected property-type and listing-type hints. Resolution is pure
// pattern matching, no AI call, so it works identically with every
// provider down.
type IntentResolver struct {
	pricing config.PricingConfig
	rates   currency.Rates
}

// NewIntentResolver creates a resolver with the given tolerance knobs
// and FX rates
func NewIntentResolver(pricing config.PricingConfig, rates currency.Rates) *IntentResolver {
	return &IntentResolver{pricing: pricing, rates: rates}
}

// amount matches a money-looking token: optional currency symbol,
// digits with separators, optional k/m magnitude suffix
const amountPattern = `[€$£]?\s?\d+(?:[.,]\d+)*\s?[kKmM]?`

var (
	amountRe  = regexp.MustCompile(amountPattern)
	betweenRe = regexp.MustCompile(`(?i)(?:between|entre|from)\s+(` + amountPattern + `)\s+(?:and|to|e|a|até)\s+(` + amountPattern + `)`)
	rangeRe   = regexp.MustCompile(`(?i)(` + amountPattern + `)\s*(?:-|to|a)\s*(` + amountPattern + `)`)
)

var (
	underKeywords = []string{"under", "below", "less than", "up to", "at most", "no more than", "max", "maximum", "até", "abaixo de"}
	overKeywords  = []string{"over", "above", "more than", "at least", "starting at", "min", "minimum", "acima de", "a partir de"}
	aroundKeyword = []string{"around", "about", "approximately", "approx", "roughly", "cerca de", "por volta de", "perto de", "~"}
	exactKeywords = []string{"exactly", "precisely", "exatamente"}

	rentKeywords = []string{"rent", "rental", "renting", "per month", "monthly", "arrendar", "arrendamento", "alugar", "aluguer"}
	saleKeywords = []string{"buy", "buying", "purchase", "for sale", "sale", "comprar", "venda", "à venda"}
)

// Resolve parses the query into an IntentResult. fallbackCurrency is
// the caller's location currency, used when no symbol or code appears
// in the text.
func (r *IntentResolver) Resolve(query, fallbackCurrency string) model.IntentResult {
	lower := strings.ToLower(query)

	cur := detectCurrency(query)
	if cur == "" {
		cur = strings.ToUpper(strings.TrimSpace(fallbackCurrency))
	}
	if cur == "" {
		cur = "EUR"
	}

	result := model.IntentResult{
		Price: model.PriceIntent{Type: model.PriceIntentNone, Currency: cur},
	}

	if pt := utils.MatchPropertyType(lower); pt != "" {
		result.PropertyType = &pt
	}
	if utils.ContainsAnyKeyword(lower, rentKeywords) {
		lt := "rent"
		result.ListingType = &lt
	} else if utils.ContainsAnyKeyword(lower, saleKeywords) {
		lt := "sale"
		result.ListingType = &lt
	}

	result.Price = r.resolvePrice(lower, cur)
	return result
}

func (r *IntentResolver) resolvePrice(lower, cur string) model.PriceIntent {
	intent := model.PriceIntent{Type: model.PriceIntentNone, Currency: cur}

	// "between X and Y" binds both bounds at once
	if m := betweenRe.FindStringSubmatch(lower); len(m) == 3 {
		min, okMin := parseAmount(m[1])
		max, okMax := parseAmount(m[2])
		if okMin && okMax {
			if min > max {
				min, max = max, min
			}
			intent.Type = model.PriceIntentBetween
			intent.Min, intent.Max = &min, &max
			return intent
		}
	}

	if amt, ok := amountAfterKeyword(lower, underKeywords); ok {
		intent.Type = model.PriceIntentUnder
		intent.Max = &amt
		return intent
	}
	if amt, ok := amountAfterKeyword(lower, overKeywords); ok {
		intent.Type = model.PriceIntentOver
		intent.Min = &amt
		return intent
	}
	if amt, ok := amountAfterKeyword(lower, aroundKeyword); ok {
		intent.Type = model.PriceIntentAround
		intent.Target = &amt
		return intent
	}
	if amt, ok := amountAfterKeyword(lower, exactKeywords); ok {
		intent.Type = model.PriceIntentExact
		intent.Target = &amt
		return intent
	}

	// "X - Y" style range without a between keyword
	if m := rangeRe.FindStringSubmatch(lower); len(m) == 3 {
		min, okMin := parseAmount(m[1])
		max, okMax := parseAmount(m[2])
		if okMin && okMax && looksLikePrice(m[1]) && looksLikePrice(m[2]) {
			if min > max {
				min, max = max, min
			}
			intent.Type = model.PriceIntentBetween
			intent.Min, intent.Max = &min, &max
			return intent
		}
	}

	// Bare number with a price marker reads as an exact budget
	for _, tok := range amountRe.FindAllString(lower, -1) {
		if !looksLikePrice(tok) {
			continue
		}
		if amt, ok := parseAmount(tok); ok {
			intent.Type = model.PriceIntentExact
			intent.Target = &amt
			return intent
		}
	}

	return intent
}

// BuildStrictPriceRange expands the intent into the tight first-pass
// window, normalized to EUR. Strict delta for exact/around targets is
// min(target*pct, absolute cap).
func (r *IntentResolver) BuildStrictPriceRange(intent model.PriceIntent) (model.PriceRange, error) {
	min, max, target, err := r.normalize(intent)
	if err != nil {
		return model.PriceRange{}, err
	}

	pr := model.PriceRange{Currency: "EUR"}
	switch intent.Type {
	case model.PriceIntentUnder:
		pr.MaxEUR = max
	case model.PriceIntentOver:
		pr.MinEUR = min
	case model.PriceIntentBetween:
		pr.MinEUR, pr.MaxEUR = min, max
	case model.PriceIntentExact, model.PriceIntentAround:
		t := *target
		delta := t * r.pricing.ExactTolerancePercent
		if r.pricing.ExactToleranceAbsEUR < delta {
			delta = r.pricing.ExactToleranceAbsEUR
		}
		lo, hi := clampNonNegative(t-delta), t+delta
		pr.MinEUR, pr.MaxEUR = &lo, &hi
	case model.PriceIntentNone:
		// Unbounded, currency only
	}
	return pr, nil
}

// BuildNearMissPriceRange expands the intent into the widened retry
// window. Near-miss delta is max(amount*pct, absolute floor), so the
// result always contains the strict range. A none intent stays
// unbounded and must not widen anything.
func (r *IntentResolver) BuildNearMissPriceRange(intent model.PriceIntent) (model.PriceRange, error) {
	min, max, target, err := r.normalize(intent)
	if err != nil {
		return model.PriceRange{}, err
	}

	pr := model.PriceRange{Currency: "EUR"}
	switch intent.Type {
	case model.PriceIntentUnder:
		hi := *max + r.nearMissDelta(*max)
		pr.MaxEUR = &hi
	case model.PriceIntentOver:
		lo := clampNonNegative(*min - r.nearMissDelta(*min))
		pr.MinEUR = &lo
	case model.PriceIntentBetween:
		lo := clampNonNegative(*min - r.nearMissDelta(*min))
		hi := *max + r.nearMissDelta(*max)
		pr.MinEUR, pr.MaxEUR = &lo, &hi
	case model.PriceIntentExact, model.PriceIntentAround:
		t := *target
		delta := r.nearMissDelta(t)
		lo, hi := clampNonNegative(t-delta), t+delta
		pr.MinEUR, pr.MaxEUR = &lo, &hi
	case model.PriceIntentNone:
		// Unbounded, currency only
	}
	return pr, nil
}

func (r *IntentResolver) nearMissDelta(amount float64) float64 {
	delta := amount * r.pricing.NearMissTolerancePercent
	if r.pricing.NearMissToleranceAbsEUR > delta {
		delta = r.pricing.NearMissToleranceAbsEUR
	}
	return delta
}

// normalize converts the intent's raw amounts to EUR
func (r *IntentResolver) normalize(intent model.PriceIntent) (min, max, target *float64, err error) {
	conv := func(v *float64) (*float64, error) {
		if v == nil {
			return nil, nil
		}
		eur, err := currency.ToEur(*v, intent.Currency, r.rates)
		if err != nil {
			return nil, err
		}
		return &eur, nil
	}

	if min, err = conv(intent.Min); err != nil {
		return nil, nil, nil, err
	}
	if max, err = conv(intent.Max); err != nil {
		return nil, nil, nil, err
	}
	if target, err = conv(intent.Target); err != nil {
		return nil, nil, nil, err
	}
	return min, max, target, nil
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// amountAfterKeyword finds the first amount token following any of
// the keywords. Longer keywords are tried first so "no more than"
// wins over "more than".
func amountAfterKeyword(lower string, keywords []string) (float64, bool) {
	bestPos := -1
	bestEnd := 0
	for _, kw := range keywords {
		pos := strings.Index(lower, kw)
		if pos < 0 {
			continue
		}
		if bestPos == -1 || pos < bestPos || (pos == bestPos && pos+len(kw) > bestEnd) {
			bestPos = pos
			bestEnd = pos + len(kw)
		}
	}
	if bestPos < 0 {
		return 0, false
	}

	loc := amountRe.FindStringIndex(lower[bestEnd:])
	if loc == nil {
		return 0, false
	}
	return parseAmount(lower[bestEnd+loc[0] : bestEnd+loc[1]])
}

// looksLikePrice filters amount tokens that are plausibly money: a
// currency symbol, a magnitude suffix, or at least four digits.
// Keeps "3 bedroom" or "t2" from reading as a budget.
func looksLikePrice(tok string) bool {
	tok = strings.TrimSpace(tok)
	if strings.ContainsAny(tok, "€$£") {
		return true
	}
	lower := strings.ToLower(tok)
	if strings.HasSuffix(lower, "k") || strings.HasSuffix(lower, "m") {
		return true
	}
	digits := 0
	for _, ch := range tok {
		if ch >= '0' && ch <= '9' {
			digits++
		}
	}
	return digits >= 4
}

// parseAmount parses a money token tolerating thousands separators,
// decimal commas and k/m suffixes
func parseAmount(tok string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(tok))
	s = strings.Trim(s, "€$£ ")
	s = strings.TrimSpace(s)

	multiplier := 1.0
	if strings.HasSuffix(s, "k") {
		multiplier = 1_000
		s = strings.TrimSpace(strings.TrimSuffix(s, "k"))
	} else if strings.HasSuffix(s, "m") {
		multiplier = 1_000_000
		s = strings.TrimSpace(strings.TrimSuffix(s, "m"))
	}

	s = normalizeSeparators(s)
	if s == "" {
		return 0, false
	}

	var value float64
	var seenDot bool
	frac := 0.1
	for _, ch := range s {
		switch {
		case ch >= '0' && ch <= '9':
			d := float64(ch - '0')
			if seenDot {
				value += d * frac
				frac /= 10
			} else {
				value = value*10 + d
			}
		case ch == '.':
			if seenDot {
				return 0, false
			}
			seenDot = true
		default:
			return 0, false
		}
	}
	return value * multiplier, true
}

// normalizeSeparators reduces a numeric token to plain digits with at
// most one '.' decimal point. With both separators present the last
// one is the decimal mark; a lone separator followed by exactly three
// digits reads as a thousands group.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Both kinds present: the later one is the decimal mark,
		// everything else is grouping. "1.234,56" -> "1234.56"
		decimalPos := lastDot
		if lastComma > lastDot {
			decimalPos = lastComma
		}
		var b strings.Builder
		for i := 0; i < len(s); i++ {
			ch := s[i]
			if ch == '.' || ch == ',' {
				if i == decimalPos {
					b.WriteByte('.')
				}
				continue
			}
			b.WriteByte(ch)
		}
		return b.String()
	case lastDot >= 0 || lastComma >= 0:
		sep := lastDot
		if lastComma >= 0 {
			sep = lastComma
		}
		total := strings.Count(s, ".") + strings.Count(s, ",")
		tail := s[sep+1:]
		if total == 1 && len(tail) <= 2 {
			// decimal mark: "1,5" or "2.75"
			return s[:sep] + "." + tail
		}
		// thousands grouping: "50.000", "1,200,000"
		return strings.Map(dropSeparators, s)
	default:
		return s
	}
}

func dropSeparators(r rune) rune {
	if r == '.' || r == ',' {
		return -1
	}
	return r
}

// detectCurrency looks for an explicit symbol or ISO code in the text
func detectCurrency(text string) string {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(text, "€") || strings.Contains(upper, " EUR") || strings.Contains(upper, "EUROS"):
		return "EUR"
	case strings.Contains(text, "£") || strings.Contains(upper, " GBP") || strings.Contains(upper, "POUNDS"):
		return "GBP"
	case strings.Contains(text, "$") || strings.Contains(upper, " USD") || strings.Contains(upper, "DOLLARS"):
		return "USD"
	default:
		return ""
	}
}
