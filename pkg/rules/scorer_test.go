package rules

import (
	"testing"
)

func TestScoreNoMatch(t *testing.T) {
	scorer := NewScorer(nil)

	match := scorer.Score("the weather is lovely today")
	if match.Category != nil {
		t.Fatalf("expected nil category, got %s", match.Category.Name)
	}
	if match.Score != 0 {
		t.Fatalf("expected score 0, got %f", match.Score)
	}
}

func TestScoreEmptyText(t *testing.T) {
	scorer := NewScorer(nil)

	match := scorer.Score("")
	if match.Category != nil || match.Score != 0 {
		t.Fatalf("expected empty match for empty text, got %+v", match)
	}
}

func TestScoreSingleCategory(t *testing.T) {
	scorer := NewScorer(nil)

	match := scorer.Score("please send a wire transfer now")
	if match.Category == nil {
		t.Fatal("expected a category")
	}
	if match.Category.Name != FinancialFraud {
		t.Fatalf("expected FINANCIAL_FRAUD, got %s", match.Category.Name)
	}
	if match.Score != 0.8 {
		t.Fatalf("expected score 0.8, got %f", match.Score)
	}
	if len(match.Phrases) != 1 || match.Phrases[0] != "wire transfer" {
		t.Fatalf("unexpected matched phrases: %v", match.Phrases)
	}
}

func TestScoreSumsWeightsWithinCategory(t *testing.T) {
	scorer := NewScorer(nil)

	match := scorer.Score("buy a gift card and send a wire transfer")
	if match.Category == nil || match.Category.Name != FinancialFraud {
		t.Fatalf("expected FINANCIAL_FRAUD, got %+v", match)
	}
	// wire transfer 0.8 + gift card 0.7
	if match.Score < 1.49 || match.Score > 1.51 {
		t.Fatalf("expected score 1.5, got %f", match.Score)
	}
	if len(match.Phrases) != 2 {
		t.Fatalf("expected two matched phrases, got %v", match.Phrases)
	}
}

func TestScorePhraseCountsOncePerEvaluation(t *testing.T) {
	scorer := NewScorer(nil)

	match := scorer.Score("wire transfer then another wire transfer")
	if match.Score != 0.8 {
		t.Fatalf("repeated phrase must count once, got %f", match.Score)
	}
}

func TestScoreTieKeepsFirstDeclaredCategory(t *testing.T) {
	categories := []Category{
		{Name: "FIRST", Patterns: []Pattern{{Phrase: "alpha", Weight: 0.5}}},
		{Name: "SECOND", Patterns: []Pattern{{Phrase: "beta", Weight: 0.5}}},
	}
	scorer := NewScorer(categories)

	match := scorer.Score("alpha and beta together")
	if match.Category == nil || match.Category.Name != "FIRST" {
		t.Fatalf("tie must keep the first-declared category, got %+v", match.Category)
	}
}

func TestScoreCrossCategoryWinnerIsStrictMax(t *testing.T) {
	scorer := NewScorer(nil)

	// password (0.5) belongs to CREDENTIAL_THEFT; urgent (0.3) to SOCIAL_ENGINEERING.
	match := scorer.Score("urgent, give me your password")
	if match.Category == nil || match.Category.Name != CredentialTheft {
		t.Fatalf("expected CREDENTIAL_THEFT, got %+v", match.Category)
	}
	if match.Score != 0.5 {
		t.Fatalf("expected 0.5, got %f", match.Score)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("  Wire   TRANSFER\tnow\n")
	if got != "wire transfer now" {
		t.Fatalf("unexpected normalized text: %q", got)
	}
}

func TestDefaultCategoriesWeightsInRange(t *testing.T) {
	for _, cat := range DefaultCategories() {
		if cat.AlertCategory == "" || cat.BaseSeverity == "" {
			t.Fatalf("category %s missing severity or alert category", cat.Name)
		}
		for _, p := range cat.Patterns {
			if p.Weight <= 0 || p.Weight > 1 {
				t.Fatalf("pattern %q in %s has weight %f outside (0,1]", p.Phrase, cat.Name, p.Weight)
			}
		}
	}
}
