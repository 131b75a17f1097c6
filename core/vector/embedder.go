package vector

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// TokenEmbedder is a deterministic, offline embedding implementation: each
// token of the input is hashed into a bucket of a fixed-width vector, which
// is then L2-normalized. Identical inputs always produce identical vectors,
// and texts sharing tokens land close together under cosine similarity.
//
// It backs the index when no embedding endpoint is configured, and it is
// the embedder used in tests.
type TokenEmbedder struct {
	Dimension int
}

func NewTokenEmbedder(dimension int) *TokenEmbedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &TokenEmbedder{Dimension: dimension}
}

func (e *TokenEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.Dimension)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[int(h.Sum32())%e.Dimension]++
	}

	var mag float64
	for _, v := range vec {
		mag += float64(v) * float64(v)
	}
	if mag > 0 {
		norm := float32(math.Sqrt(mag))
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
