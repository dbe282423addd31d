package enrich

import "testing"

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "Jane Smith", "Jane Smith", 1, 1},
		{"case and whitespace folded", "  jane   SMITH ", "Jane Smith", 1, 1},
		{"catalogue form reversed", "Jane Smith", "Smith, Jane", 1, 1},
		{"catalogue form on left", "Smith, Jane", "Jane Smith", 1, 1},
		{"middle initial stays close", "Jane A. Smith", "Jane Smith", 0.75, 0.99},
		{"different person", "Jane Smith", "Robert Oakes", 0, 0.4},
		{"empty side scores zero", "Jane Smith", "", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NameSimilarity(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("NameSimilarity(%q, %q) = %v, want in [%v, %v]",
					tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}

func TestLevenshteinRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"abc", "abc", 1},
		{"abc", "abd", 2.0 / 3.0},
		{"", "", 1},
		{"abcd", "", 0},
	}

	for _, tt := range tests {
		if got := levenshteinRatio(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshteinRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestConfidenceBucket(t *testing.T) {
	tests := []struct {
		sim  float64
		want string
	}{
		{1.0, "high"},
		{0.95, "high"},
		{0.9, "medium"},
		{0.85, "medium"},
		{0.8, "low"},
		{0.75, "low"},
	}

	for _, tt := range tests {
		if got := confidenceBucket(tt.sim); got != tt.want {
			t.Errorf("confidenceBucket(%v) = %q, want %q", tt.sim, got, tt.want)
		}
	}
}
