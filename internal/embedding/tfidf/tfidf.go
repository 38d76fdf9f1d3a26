package tfidf

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Embedder is a TF-IDF vectorizer seeded with vocabulary and IDF values
// computed when the index was built. It needs no network access, which
// makes indexes carrying its statistics fully self-contained.
type Embedder struct {
	vocabulary   map[string]int
	idf          []float64
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// New creates an embedder from stored statistics.
func New(vocabulary map[string]int, idf []float64) (*Embedder, error) {
	if len(vocabulary) == 0 || len(idf) == 0 {
		return nil, errors.New("missing tfidf statistics")
	}
	if len(vocabulary) != len(idf) {
		return nil, errors.New("tfidf vocabulary and idf length mismatch")
	}
	return &Embedder{
		vocabulary:   vocabulary,
		idf:          idf,
		dimension:    len(idf),
		tokenPattern: tokenPattern,
		stopwords:    defaultStopwords(),
	}, nil
}

// Model returns the identifier of this embedder implementation.
func (e *Embedder) Model() string { return "tfidf" }

// Embed computes the TF-IDF embedding for the given text. A query whose
// tokens are all unknown embeds to the zero vector; similarity scoring
// treats that as no match rather than an error.
func (e *Embedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dimension)
	tokens := e.tokenize(text)
	tf := make(map[int]int)
	total := 0
	for _, tok := range tokens {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		tfv := float64(count) / float64(total)
		vec[idx] = tfv * e.idf[idx]
	}
	// L2 normalize
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// ComputeStats builds vocabulary and IDF values from a corpus. Offline
// index builders call this once and store the result in the manifest.
func ComputeStats(corpus []string) (map[string]int, []float64, error) {
	if len(corpus) == 0 {
		return nil, nil, errors.New("empty corpus for tfidf stats")
	}
	stopwords := defaultStopwords()
	df := make(map[string]int)
	for _, text := range corpus {
		tokens := tokenize(text, stopwords)
		seen := make(map[string]struct{})
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	// Stable ordering for the vocabulary
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return nil, nil, errors.New("no tokens found in corpus")
	}
	vocabulary := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	N := float64(len(corpus))
	for i, term := range terms {
		vocabulary[term] = i
		// Smoothed IDF
		idf[i] = math.Log((1+N)/(1+float64(df[term]))) + 1.0
	}
	return vocabulary, idf, nil
}

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

func (e *Embedder) tokenize(text string) []string {
	return tokenize(text, e.stopwords)
}

func tokenize(text string, stopwords map[string]struct{}) []string {
	lower := strings.ToLower(text)
	raw := tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
