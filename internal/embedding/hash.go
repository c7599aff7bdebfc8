package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

// DefaultHashDim matches the output size of common MiniLM sentence encoders.
const DefaultHashDim = 384

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "i": {}, "in": {}, "is": {}, "it": {},
	"its": {}, "of": {}, "on": {}, "or": {}, "our": {}, "that": {}, "the": {}, "this": {},
	"to": {}, "was": {}, "we": {}, "were": {}, "will": {}, "with": {}, "you": {}, "your": {},
}

// HashProvider is a deterministic local provider based on feature hashing of
// unigrams and bigrams with sublinear term frequency. It needs no model files
// or network access.
type HashProvider struct {
	dim int
}

// NewHashProvider returns a provider producing dim-sized vectors.
func NewHashProvider(dim int) *HashProvider {
	if dim <= 0 {
		dim = DefaultHashDim
	}
	return &HashProvider{dim: dim}
}

func (h *HashProvider) Model() string {
	return fmt.Sprintf("hash-%d", h.dim)
}

func (h *HashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	toks := tokenize(text)
	if len(toks) == 0 {
		return nil, ErrEmptyText
	}

	tf := make(map[string]int, len(toks)*2)
	for i, t := range toks {
		tf[t]++
		if i > 0 {
			tf[toks[i-1]+" "+t]++
		}
	}
	terms := make([]string, 0, len(tf))
	for t := range tf {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	acc := make([]float64, h.dim)
	for _, t := range terms {
		acc[bucket(t, h.dim)] += 1 + math.Log(float64(tf[t]))
	}
	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, h.dim)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func bucket(term string, dim int) int {
	f := fnv.New32a()
	_, _ = f.Write([]byte(term))
	return int(f.Sum32() % uint32(dim))
}

func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
	out := words[:0]
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}
