package utils

import "testing"

func TestParseAIJSON(t *testing.T) {
	type intent struct {
		Type   string   `json:"type"`
		Target *float64 `json:"target"`
	}

	tests := []struct {
		name     string
		input    string
		wantType string
		wantErr  bool
	}{
		{
			name:     "pure json",
			input:    `{"type": "around", "target": 20000}`,
			wantType: "around",
		},
		{
			name:     "markdown json block",
			input:    "Here is the result:\n```json\n{\"type\": \"under\", \"target\": 50000}\n```",
			wantType: "under",
		},
		{
			name:     "plain markdown block",
			input:    "```\n{\"type\": \"between\"}\n```",
			wantType: "between",
		},
		{
			name:     "json embedded in prose",
			input:    `Sure! The parsed intent is {"type": "exact", "target": 1500} as requested.`,
			wantType: "exact",
		},
		{
			name:     "trailing comma repaired",
			input:    `{"type": "over", "target": 300,}`,
			wantType: "over",
		},
		{
			name:     "unquoted keys repaired",
			input:    `{type: "none"}`,
			wantType: "none",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "no json at all",
			input:   "I could not determine a price from the query.",
			wantErr: true,
		},
		{
			name:    "truncated json",
			input:   `{"type": "around", "target": 200`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got intent
			err := ParseAIJSON(tt.input, &got)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Type != tt.wantType {
				t.Errorf("type = %q, want %q", got.Type, tt.wantType)
			}
		})
	}
}

func TestParseAIJSONNestedBraces(t *testing.T) {
	input := `The model replied: {"results": [{"id": "a", "score": 80}, {"id": "b", "score": 40}]} hope that helps`

	obj, err := TryParseJSONObject(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	results, ok := obj["results"].([]interface{})
	if !ok || len(results) != 2 {
		t.Fatalf("expected 2 results, got %v", obj["results"])
	}
}

func TestTryParseJSONArray(t *testing.T) {
	arr, err := TryParseJSONArray("```json\n[1, 2, 3]\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(arr) != 3 {
		t.Errorf("expected 3 elements, got %d", len(arr))
	}
}
