package utils

import "testing"

func TestMatchPropertyType(t *testing.T) {
	tests := []struct {
		phrase string
		want   string
	}{
		{"apartment", "apartment"},
		{"a nice flat in the center", "apartment"},
		{"apartamento T2", "apartment"},
		{"moradia with garden", "house"},
		{"villa", "house"},
		{"terreno para construção", "land"},
		{"building plot", "land"},
		{"quinta with olive trees", "farm"},
		{"ruina para recuperar", "ruin"},
		{"something else entirely", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := MatchPropertyType(tt.phrase); got != tt.want {
			t.Errorf("MatchPropertyType(%q) = %q, want %q", tt.phrase, got, tt.want)
		}
	}
}

func TestSamePropertyType(t *testing.T) {
	if !SamePropertyType("flat", "apartamento") {
		t.Error("flat and apartamento should map to the same type")
	}
	if SamePropertyType("terreno", "moradia") {
		t.Error("terreno and moradia should not match")
	}
	if !SamePropertyType("penthouse", "Penthouse") {
		t.Error("unknown types should still match exactly, case-insensitive")
	}
}

func TestContainsAnyKeyword(t *testing.T) {
	urban := []string{"urbano", "urbanizável", "construção", "buildable"}

	if !ContainsAnyKeyword("Terreno urbano com 500m2", urban) {
		t.Error("expected urbano keyword match")
	}
	if ContainsAnyKeyword("Terreno rústico junto ao rio", urban) {
		t.Error("rústico text should not match urban keywords")
	}
	// Word boundary: "t1" must not match inside "t14"
	if ContainsAnyKeyword("lote t14 na serra", []string{"t1"}) {
		t.Error("t1 should not match inside t14")
	}
}
