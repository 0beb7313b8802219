// pkg/embed/embedder.go
package embed

import (
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Default embedding parameters. The dimension matches the vector column in
// the cleaned store and must not change without a schema migration.
const (
	DefaultDimension   = 384
	DefaultMinTextLen  = 10
	signBit            = 1 << 63
)

// Embedder maps free text to a fixed-length numeric vector using feature
// hashing: each token is hashed into one of Dimension buckets with a
// hash-derived sign, and the resulting counts are L2-normalized. The mapping
// is deterministic and pure; the same text always produces the same vector.
//
// Texts shorter than the minimum length produce the all-zero vector. That is
// the sentinel for "no usable text", not an error: embedding a near-empty
// description would rank it meaninglessly against real ones.
//
// An Embedder is stateless after construction and safe for concurrent use.
// Build one at startup and share the handle.
type Embedder struct {
	dimension  int
	minTextLen int
	stopwords  map[string]struct{}
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithMinTextLen overrides the minimum text length gate.
func WithMinTextLen(n int) Option {
	return func(e *Embedder) {
		if n >= 0 {
			e.minTextLen = n
		}
	}
}

// New creates an embedder with the default 384-dimension configuration.
func New(opts ...Option) *Embedder {
	e := &Embedder{
		dimension:  DefaultDimension,
		minTextLen: DefaultMinTextLen,
		stopwords:  defaultStopwords(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimension returns the length of produced vectors.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// MinTextLen returns the minimum text length below which Embed returns the
// zero vector.
func (e *Embedder) MinTextLen() int {
	return e.minTextLen
}

// Embed computes the embedding for the given text. Text shorter than the
// minimum length returns the zero vector, as does text with no usable tokens
// (punctuation-only or all stopwords).
func (e *Embedder) Embed(text string) []float32 {
	vec := make([]float32, e.dimension)
	if len(text) < e.minTextLen {
		return vec
	}

	for _, tok := range e.tokenize(text) {
		h := xxhash.Sum64String(tok)
		bucket := int(h % uint64(e.dimension))
		if h&signBit != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	// L2 normalize
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1.0 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}

	return vec
}

// IsZero reports whether vec is the all-zero sentinel.
func IsZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

func (e *Embedder) tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := fields[:0]
	for _, tok := range fields {
		if _, isStop := e.stopwords[tok]; isStop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "out", "off", "too", "very", "can", "will", "just", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
