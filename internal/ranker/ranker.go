// Package ranker scores catalog products against a free-text query with a
// weighted multi-field match. Results are totally ordered so repeated calls
// over the same catalog return the same sequence.
package ranker

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/walletworks/concierge/internal/model"
)

// Match is a product plus its computed relevance. Ephemeral, recomputed per
// query.
type Match struct {
	Product *model.Product
	Score   float64
}

// scoreFloor excludes products whose combined score does not exceed it.
const scoreFloor = 0.2

var (
	comparatorRe = regexp.MustCompile(`\b(?:under|below|over|above|less than|more than|at least|at most|cheaper than|rated|rating|stars|score)\b\s*\$?\d*(?:\.\d+)?`)
	spacesRe     = regexp.MustCompile(`\s+`)

	fillerWords = map[string]bool{
		"me": true, "a": true, "an": true, "the": true, "some": true,
		"find": true, "get": true, "buy": true, "want": true, "need": true,
	}
)

// Normalize lower-cases the query and strips comparator clauses and filler
// words so scoring never double-penalizes the intent extractor's residue.
func Normalize(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	q = comparatorRe.ReplaceAllString(q, " ")
	words := strings.Fields(q)
	kept := words[:0]
	for _, w := range words {
		if !fillerWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.TrimSpace(spacesRe.ReplaceAllString(strings.Join(kept, " "), " "))
}

// Rank scores every candidate and returns the matches ordered by score
// descending, then rating descending, then price ascending, then catalog
// insertion order. Candidates are included only when the score clears the
// floor and the price ceiling (if any) holds; minRating post-filters, with
// unrated products treated as rating 0.
func Rank(products []*model.Product, query string, maxPrice *decimal.Decimal, minRating *float64) []Match {
	cleaned := Normalize(query)
	if cleaned == "" {
		return nil
	}
	queryTerms := terms(cleaned)

	var matches []Match
	order := map[*model.Product]int{}
	for i, p := range products {
		if maxPrice != nil && p.Price.GreaterThan(*maxPrice) {
			continue
		}
		score := scoreProduct(p, cleaned, queryTerms)
		if score <= scoreFloor {
			continue
		}
		if minRating != nil && p.Rating < *minRating {
			continue
		}
		order[p] = i
		matches = append(matches, Match{Product: p, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Product.Rating != b.Product.Rating {
			return a.Product.Rating > b.Product.Rating
		}
		if !a.Product.Price.Equal(b.Product.Price) {
			return a.Product.Price.LessThan(b.Product.Price)
		}
		return order[a.Product] < order[b.Product]
	})
	return matches
}

func scoreProduct(p *model.Product, cleaned string, queryTerms []string) float64 {
	title := strings.ToLower(p.Title)
	description := strings.ToLower(p.Description)

	var score float64
	if strings.Contains(title, cleaned) {
		score += 1.0
	}
	if strings.Contains(description, cleaned) {
		score += 0.5
	}

	titleTerms := termSet(title)
	allTerms := termSet(strings.Join([]string{
		title, description,
		strings.ToLower(p.Category),
		strings.ToLower(p.BrandID),
		strings.ToLower(p.BrandName),
	}, " "))

	for _, t := range queryTerms {
		if titleTerms[t] {
			score += 0.3
		}
		if allTerms[t] {
			score += 0.2
		}
	}
	return score
}

// terms splits on whitespace and keeps tokens of length >= 2.
func terms(s string) []string {
	var out []string
	for _, t := range strings.Fields(s) {
		if len(t) >= 2 {
			out = append(out, t)
		}
	}
	return out
}

func termSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, t := range terms(s) {
		set[t] = true
	}
	return set
}
