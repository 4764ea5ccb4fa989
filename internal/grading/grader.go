// Package grading scores subjective answers with keyword and similarity
// heuristics. The scoring is simple and deterministic: identical inputs
// always produce identical output, so grades are reproducible and auditable.
package grading

import (
	"strings"
)

// Config is the grading-relevant slice of a subjective question. Keep in sync
// with the fields the store loads.
type Config struct {
	GradingType      string   // manual|auto|mixed
	ExpectedAnswer   string
	Keywords         []string
	KeywordWeightage int // 0..100; remainder goes to similarity
	MinWordCount     int
}

// Result of auto-grading a single answer. AutoScore and SimilarityScore are
// percentages (0..100).
type Result struct {
	AutoScore       float64  `json:"auto_score"`
	KeywordsFound   []string `json:"keywords_found"`
	SimilarityScore float64  `json:"similarity_score"`
	WordCount       int      `json:"word_count"`
}

// Grade scores answerText against the question's grading config. Returns nil
// for manual-only questions. Any malformed config (no keywords, empty expected
// answer, zero-magnitude vectors) degrades toward zero rather than failing:
// a grading fault must never block an exam's finalization.
func Grade(answerText string, cfg Config) *Result {
	if cfg.GradingType == "" || cfg.GradingType == "manual" {
		return nil
	}

	wc := WordCount(answerText)
	res := &Result{KeywordsFound: []string{}, WordCount: wc}

	// Word count is a hard gate, not a soft penalty: below the minimum the
	// answer scores zero regardless of content.
	if wc < cfg.MinWordCount {
		return res
	}

	score := 0.0
	weight := cfg.KeywordWeightage
	if weight < 0 {
		weight = 0
	}
	if weight > 100 {
		weight = 100
	}

	if len(cfg.Keywords) > 0 {
		lower := strings.ToLower(answerText)
		for _, kw := range cfg.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(kw)) {
				res.KeywordsFound = append(res.KeywordsFound, kw)
			}
		}
		score += float64(len(res.KeywordsFound)) / float64(len(cfg.Keywords)) * float64(weight)
	}

	if cfg.ExpectedAnswer != "" {
		simWeight := 100 - weight
		if simWeight > 0 {
			cos := CosineSimilarity(answerText, cfg.ExpectedAnswer)
			res.SimilarityScore = round2(cos * 100)
			score += cos * float64(simWeight)
		}
	}

	if score > 100 {
		score = 100
	}
	res.AutoScore = round2(score)
	return res
}

// WordCount counts whitespace-delimited tokens.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
