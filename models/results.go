package models

import "strings"

// Text concatenates decoded symbols in the order they were produced, which
// is ascending position order.
func Text(results []DecodedResult[rune]) string {
	var b strings.Builder
	b.Grow(len(results))
	for _, r := range results {
		b.WriteRune(r.Value)
	}
	return b.String()
}

// AverageConfidence returns the mean confidence across results, 0 for an
// empty sequence.
func AverageConfidence[T any](results []DecodedResult[T]) float32 {
	if len(results) == 0 {
		return 0
	}
	var sum float32
	for _, r := range results {
		sum += r.Confidence
	}
	return sum / float32(len(results))
}
