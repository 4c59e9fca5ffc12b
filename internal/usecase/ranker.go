package usecase

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

// Package-level compiled regex patterns for performance
var (
	punctuationRegex    = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

// Scoring weights
const (
	weightQueryCoverage = 0.50 // share of query tokens found in the description
	weightDescCoverage  = 0.15 // share of description tokens found in the query
	weightJaccard       = 0.15
	weightJaroWinkler   = 0.20
	substringBonus      = 10.0
)

// stopWords are dropped before token comparison
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "with": true, "without": true,
	"for": true, "by": true, "from": true, "to": true, "ns": true, "nfs": true,
}

// Ranker scores how well an FDC description matches a free-text query.
// Scores are informational; every search result is kept.
type Ranker struct{}

// NewRanker creates a new ranker
func NewRanker() *Ranker {
	return &Ranker{}
}

// Score returns a relevance score between 0 and 100
func (r *Ranker) Score(query, description string) float64 {
	queryTokens := tokenize(query)
	descTokens := tokenize(description)
	if len(queryTokens) == 0 || len(descTokens) == 0 {
		return 0
	}

	queryMatched := countIntersection(queryTokens, descTokens)
	descMatched := countIntersection(descTokens, queryTokens)
	union := countUnion(queryTokens, descTokens)

	queryLower := strings.Join(queryTokens, " ")
	descLower := strings.Join(descTokens, " ")

	score := (float64(queryMatched)/float64(len(queryTokens))*weightQueryCoverage +
		float64(descMatched)/float64(len(descTokens))*weightDescCoverage +
		float64(queryMatched)/float64(union)*weightJaccard +
		matchr.JaroWinkler(queryLower, descLower, false)*weightJaroWinkler) * 100

	if len(queryLower) > 3 && strings.Contains(descLower, queryLower) {
		score += substringBonus
	}

	if score > 100 {
		score = 100
	}
	return score
}

// tokenize splits a string into normalized lowercase tokens, dropping
// punctuation, stop words and one-character tokens
func tokenize(s string) []string {
	cleaned := punctuationRegex.ReplaceAllString(strings.ToLower(s), " ")

	var tokens []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) <= 1 || stopWords[word] {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// countIntersection returns how many distinct tokens of a appear in b
func countIntersection(a, b []string) int {
	set := make(map[string]bool, len(b))
	for _, t := range b {
		set[t] = true
	}
	seen := make(map[string]bool)
	for _, t := range a {
		if set[t] && !seen[t] {
			seen[t] = true
		}
	}
	return len(seen)
}

// countUnion returns the count of unique tokens across both sets
func countUnion(a, b []string) int {
	set := make(map[string]bool, len(a)+len(b))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		set[t] = true
	}
	return len(set)
}

// normalizeQuery collapses whitespace and lowercases a query for cache keys
func normalizeQuery(s string) string {
	return strings.TrimSpace(multipleSpacesRegex.ReplaceAllString(strings.ToLower(s), " "))
}
