package similarity

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Words of at least two letters, digits or underscores.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Model is a fitted TF-IDF vocabulary. It is persisted as a versioned
// artifact so that scores stay comparable between detection runs.
type Model struct {
	Version    int            `json:"version"`
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
	DocCount   int            `json:"docCount"`
	FittedAt   time.Time      `json:"fittedAt"`
}

// Empty reports whether the model has no terms.
func (m *Model) Empty() bool { return m == nil || len(m.Vocabulary) == 0 }

// Vector is a sparse L2-normalized term vector keyed by vocabulary index.
type Vector map[int]float64

// Tokenize lowercases text and returns its non-stop-word tokens.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if !englishStopWords.Contains(tok) {
			out = append(out, tok)
		}
	}
	return out
}

// Fit builds a model over corpus using raw term counts and smoothed inverse
// document frequency: idf = ln((1+n)/(1+df)) + 1.
func Fit(corpus []string) *Model {
	df := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range Tokenize(doc) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	n := float64(len(corpus))
	m := &Model{
		Vocabulary: make(map[string]int, len(terms)),
		IDF:        make([]float64, len(terms)),
		DocCount:   len(corpus),
		FittedAt:   time.Now().UTC(),
	}
	for i, t := range terms {
		m.Vocabulary[t] = i
		m.IDF[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
	return m
}

// Transform maps text into the model's vector space. Terms outside the
// vocabulary are ignored.
func (m *Model) Transform(text string) Vector {
	v := make(Vector)
	if m.Empty() {
		return v
	}
	for _, tok := range Tokenize(text) {
		if idx, ok := m.Vocabulary[tok]; ok {
			v[idx]++
		}
	}
	var norm float64
	for idx, tf := range v {
		w := tf * m.IDF[idx]
		v[idx] = w
		norm += w * w
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for idx := range v {
		v[idx] /= norm
	}
	return v
}

// Cosine returns the cosine similarity of a and b. Zero vectors score 0.
func Cosine(a, b Vector) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	var dot, na, nb float64
	for idx, w := range a {
		dot += w * b[idx]
		na += w * w
	}
	for _, w := range b {
		nb += w * w
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// CorpusSimilarity returns a len(newTexts) x len(otherTexts) matrix of cosine
// similarities. When model is empty a fresh one is fit over the union of both
// sets, so scores are only stable across runs when a persisted model is
// supplied. The model actually used is returned alongside the matrix.
func CorpusSimilarity(ctx context.Context, model *Model, newTexts, otherTexts []string) ([][]float64, *Model, error) {
	if model.Empty() {
		corpus := make([]string, 0, len(newTexts)+len(otherTexts))
		corpus = append(corpus, newTexts...)
		corpus = append(corpus, otherTexts...)
		model = Fit(corpus)
	}

	others := make([]Vector, len(otherTexts))
	for j, t := range otherTexts {
		if j%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, model, fmt.Errorf("transform corpus: %w", err)
			}
		}
		others[j] = model.Transform(t)
	}

	matrix := make([][]float64, len(newTexts))
	for i, t := range newTexts {
		if err := ctx.Err(); err != nil {
			return nil, model, fmt.Errorf("score documents: %w", err)
		}
		v := model.Transform(t)
		row := make([]float64, len(others))
		for j, o := range others {
			row[j] = Cosine(v, o)
		}
		matrix[i] = row
	}
	return matrix, model, nil
}
