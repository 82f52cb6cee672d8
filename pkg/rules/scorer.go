package rules

import (
	"regexp"
	"strings"
)

// Match is the result of scoring a text against the rule table.
// Category is nil when nothing matched.
type Match struct {
	Category *Category
	Phrases  []string
	Score    float64
}

// Scorer performs weighted phrase matching against an ordered rule table.
// Scoring has no side effects, so a single Scorer is safe for concurrent use.
type Scorer struct {
	categories []Category
}

// NewScorer creates a scorer over the given ordered categories.
// Passing nil uses the built-in table.
func NewScorer(categories []Category) *Scorer {
	if categories == nil {
		categories = DefaultCategories()
	}
	return &Scorer{categories: categories}
}

// Categories returns the ordered rule table backing this scorer.
func (s *Scorer) Categories() []Category {
	return s.categories
}

// Score sums the weights of every phrase contained in text, per category,
// and returns the category with the strictly highest sum. Each phrase
// counts at most once per evaluation; the same phrase appearing in two
// categories counts in both. Ties keep the earlier-declared category.
func (s *Scorer) Score(text string) Match {
	if text == "" {
		return Match{}
	}

	best := Match{}
	for i := range s.categories {
		cat := &s.categories[i]
		var (
			sum     float64
			matched []string
		)
		for _, p := range cat.Patterns {
			if strings.Contains(text, p.Phrase) {
				sum += p.Weight
				matched = append(matched, p.Phrase)
			}
		}
		if sum > best.Score {
			best = Match{Category: cat, Phrases: matched, Score: sum}
		}
	}
	return best
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize lowercases text and collapses runs of whitespace so that
// phrase matching is stable against transcription formatting.
func Normalize(text string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
}
