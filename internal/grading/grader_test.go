package grading

import (
	"math"
	"reflect"
	"testing"
)

func TestGradeManualReturnsNil(t *testing.T) {
	if res := Grade("anything at all", Config{GradingType: "manual"}); res != nil {
		t.Fatalf("expected nil for manual grading, got %+v", res)
	}
	if res := Grade("anything at all", Config{}); res != nil {
		t.Fatalf("expected nil for empty grading type, got %+v", res)
	}
}

func TestGradeWordCountGate(t *testing.T) {
	cfg := Config{
		GradingType:      "auto",
		Keywords:         []string{"x", "y"},
		KeywordWeightage: 100,
		MinWordCount:     5,
	}
	// "too short" contains neither enough words nor... it doesn't matter:
	// below the gate everything is zero.
	res := Grade("x y", cfg)
	if res == nil {
		t.Fatal("expected a result")
	}
	if res.AutoScore != 0 || res.SimilarityScore != 0 || len(res.KeywordsFound) != 0 {
		t.Fatalf("word-count gate must zero everything, got %+v", res)
	}
	if res.WordCount != 2 {
		t.Fatalf("word count = %d, want 2", res.WordCount)
	}
}

func TestGradeKeywordOnly(t *testing.T) {
	cfg := Config{
		GradingType:      "auto",
		Keywords:         []string{"x", "y"},
		KeywordWeightage: 100,
		MinWordCount:     5,
	}
	res := Grade("x and y appear here clearly", cfg)
	if res == nil {
		t.Fatal("expected a result")
	}
	if res.AutoScore != 100 {
		t.Fatalf("auto score = %v, want 100", res.AutoScore)
	}
	if !reflect.DeepEqual(res.KeywordsFound, []string{"x", "y"}) {
		t.Fatalf("keywords found = %v, want [x y]", res.KeywordsFound)
	}
}

func TestGradePartialKeywords(t *testing.T) {
	cfg := Config{
		GradingType:      "auto",
		Keywords:         []string{"osmosis", "diffusion", "membrane", "gradient"},
		KeywordWeightage: 80,
		MinWordCount:     3,
	}
	res := Grade("osmosis happens across a membrane", cfg)
	if res == nil {
		t.Fatal("expected a result")
	}
	// 2/4 keywords * 80 = 40, no expected answer so no similarity component.
	if res.AutoScore != 40 {
		t.Fatalf("auto score = %v, want 40", res.AutoScore)
	}
}

func TestGradeKeywordMatchIsCaseInsensitive(t *testing.T) {
	cfg := Config{
		GradingType:      "auto",
		Keywords:         []string{"Photosynthesis"},
		KeywordWeightage: 100,
		MinWordCount:     1,
	}
	res := Grade("PHOTOSYNTHESIS converts light into energy", cfg)
	if res.AutoScore != 100 {
		t.Fatalf("auto score = %v, want 100", res.AutoScore)
	}
}

func TestGradeSimilarityComponent(t *testing.T) {
	cfg := Config{
		GradingType:    "auto",
		ExpectedAnswer: "water boils at one hundred degrees",
		MinWordCount:   1,
	}
	// Identical text: cosine 1.0, full similarity weight (100 - 0).
	res := Grade("water boils at one hundred degrees", cfg)
	if res.AutoScore != 100 {
		t.Fatalf("auto score = %v, want 100", res.AutoScore)
	}
	if res.SimilarityScore != 100 {
		t.Fatalf("similarity = %v, want 100", res.SimilarityScore)
	}

	// Disjoint vocabulary: zero.
	res = Grade("completely unrelated prose here", cfg)
	if res.AutoScore != 0 {
		t.Fatalf("auto score = %v, want 0 for disjoint text", res.AutoScore)
	}
}

func TestGradeCapAt100(t *testing.T) {
	// Weightage above 100 is clamped, so keywords alone cannot exceed 100.
	cfg := Config{
		GradingType:      "auto",
		Keywords:         []string{"a"},
		KeywordWeightage: 150,
		MinWordCount:     1,
	}
	res := Grade("a a a a", cfg)
	if res.AutoScore > 100 {
		t.Fatalf("auto score = %v, must be capped at 100", res.AutoScore)
	}
}

func TestGradeDeterminism(t *testing.T) {
	cfg := Config{
		GradingType:      "mixed",
		Keywords:         []string{"alpha", "beta"},
		KeywordWeightage: 60,
		ExpectedAnswer:   "alpha and beta interact strongly",
		MinWordCount:     2,
	}
	text := "the alpha particle meets the beta particle"
	first := Grade(text, cfg)
	for i := 0; i < 10; i++ {
		again := Grade(text, cfg)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("grade not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestGradeDegradesOnMalformedConfig(t *testing.T) {
	// Empty keyword entries and no expected answer: no panic, zero score.
	cfg := Config{
		GradingType:      "auto",
		Keywords:         []string{"", "  "},
		KeywordWeightage: 100,
		MinWordCount:     1,
	}
	res := Grade("some answer text", cfg)
	if res == nil || res.AutoScore != 0 {
		t.Fatalf("expected zero score on malformed keywords, got %+v", res)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity("", "anything"); got != 0 {
		t.Fatalf("empty text similarity = %v, want 0", got)
	}
	if got := CosineSimilarity("same words", "same words"); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical text similarity = %v, want 1", got)
	}
	if got := CosineSimilarity("cat dog", "fish bird"); got != 0 {
		t.Fatalf("disjoint text similarity = %v, want 0", got)
	}
	// Symmetric.
	a, b := "one two two three", "two three four"
	if x, y := CosineSimilarity(a, b), CosineSimilarity(b, a); math.Abs(x-y) > 1e-9 {
		t.Fatalf("similarity not symmetric: %v vs %v", x, y)
	}
}

func TestWordCount(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"x and y appear here clearly", 6},
		{"  padded   with\textra\nspace ", 4},
	}
	for _, c := range cases {
		if got := WordCount(c.in); got != c.want {
			t.Errorf("WordCount(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
