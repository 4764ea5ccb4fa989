package grading

import (
	"math"
	"strings"
)

// CosineSimilarity computes a bag-of-words cosine similarity between two
// texts: term-frequency vectors over the union vocabulary, dot product over
// the product of magnitudes. Returns 0 when either vector has zero magnitude.
func CosineSimilarity(a, b string) float64 {
	ta := termFreq(a)
	tb := termFreq(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for term, fa := range ta {
		magA += float64(fa * fa)
		if fb, ok := tb[term]; ok {
			dot += float64(fa * fb)
		}
	}
	for _, fb := range tb {
		magB += float64(fb * fb)
	}

	denom := math.Sqrt(magA) * math.Sqrt(magB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

func termFreq(s string) map[string]int {
	freq := map[string]int{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		freq[w]++
	}
	return freq
}
