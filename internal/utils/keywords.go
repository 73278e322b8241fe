package utils

import "strings"

// Property type aliases, English plus the Portuguese terms that show
// up in Iberian listing feeds. Order matters: the first canonical
// type with a matching alias wins, so detection is deterministic for
// text mentioning several types.
var propertyTypeAliases = []struct {
	canonical string
	aliases   []string
}{
	{"land", []string{"land", "plot", "terreno", "lote", "parcela", "building plot"}},
	{"farm", []string{"farm", "quinta", "farmhouse", "finca", "herdade"}},
	{"ruin", []string{"ruin", "ruina", "ruína", "to restore", "para recuperar", "renovation project"}},
	{"apartment", []string{"apartment", "flat", "apartamento", "condo", "studio", "t0", "t1", "t2", "t3", "t4"}},
	{"house", []string{"house", "home", "villa", "moradia", "vivenda", "casa", "townhouse", "chalet"}},
	{"garage", []string{"garage", "garagem", "parking space"}},
	{"office", []string{"office", "escritório", "escritorio", "commercial"}},
	{"warehouse", []string{"warehouse", "armazém", "armazem", "industrial"}},
}

// MatchPropertyType maps a free-text phrase to a canonical property
// type. Returns "" when no alias matches.
func MatchPropertyType(phrase string) string {
	lower := strings.ToLower(strings.TrimSpace(phrase))
	if lower == "" {
		return ""
	}

	for _, entry := range propertyTypeAliases {
		for _, alias := range entry.aliases {
			if containsWord(lower, alias) {
				return entry.canonical
			}
		}
	}

	return ""
}

// SamePropertyType reports whether two raw property type strings map
// to the same canonical type. Unknown types only match exactly.
func SamePropertyType(a, b string) bool {
	ca, cb := MatchPropertyType(a), MatchPropertyType(b)
	if ca != "" && cb != "" {
		return ca == cb
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ContainsAnyKeyword reports whether text contains any of the given
// keywords as whole words, case-insensitively.
func ContainsAnyKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if containsWord(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// containsWord checks for needle in haystack with word boundaries, so
// "t1" does not match inside "t14" but "building plot" still matches
// as a phrase.
func containsWord(haystack, needle string) bool {
	idx := 0
	for {
		pos := strings.Index(haystack[idx:], needle)
		if pos < 0 {
			return false
		}
		pos += idx

		beforeOK := pos == 0 || !isWordChar(haystack[pos-1])
		end := pos + len(needle)
		afterOK := end >= len(haystack) || !isWordChar(haystack[end])
		if beforeOK && afterOK {
			return true
		}

		idx = pos + 1
		if idx >= len(haystack) {
			return false
		}
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
