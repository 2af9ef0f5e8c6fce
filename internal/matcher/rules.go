package matcher

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/models"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/normalizer"
)

// RuleResult is the outcome of a single rule evaluator: whether the rule
// passed, a partial score in [0,1] and a human-readable reason.
type RuleResult struct {
	Matched bool
	Score   float64
	Reason  string
}

// tier score ceilings: a match found at a wider tolerance tier can never
// outscore one found at a narrower tier.
var tierCeilings = []float64{1.0, 0.85, 0.7, 0.6, 0.5}

func tierCeiling(tier int) float64 {
	if tier < len(tierCeilings) {
		return tierCeilings[tier]
	}
	return tierCeilings[len(tierCeilings)-1]
}

// EvaluateValueAt compares the absolute amounts of a pair under the given
// value tolerance tier. Comparison is always on absolute values; sign
// handling belongs to the transfer detector.
func EvaluateValueAt(tx *models.BankTransaction, entry *models.LedgerEntry, tier int, cfg *MatchingConfig) RuleResult {
	bankAbs := tx.AbsAmount()
	entryAbs := entry.AbsAmount()
	diff := bankAbs.Sub(entryAbs).Abs()

	if diff.LessThanOrEqual(cfg.ExactAmountTolerance) {
		return RuleResult{Matched: true, Score: 1.0, Reason: "exact amount match"}
	}

	if tier == 0 || cfg.ValuePercentTiers[tier] == 0 {
		return RuleResult{Reason: fmt.Sprintf("amount difference %s exceeds exact tolerance", diff)}
	}

	tolerance := cfg.ValueToleranceAt(bankAbs, tier)
	if diff.GreaterThan(tolerance) {
		return RuleResult{Reason: fmt.Sprintf("amount difference %s exceeds ±%.0f%% tolerance", diff, cfg.ValuePercentTiers[tier])}
	}

	// Linear decay from the tier ceiling as the difference approaches the
	// tolerance boundary.
	ratio, _ := diff.Div(tolerance).Float64()
	score := tierCeiling(tier) * (1 - 0.5*ratio)

	return RuleResult{
		Matched: true,
		Score:   score,
		Reason:  fmt.Sprintf("amount within ±%.0f%% tolerance", cfg.ValuePercentTiers[tier]),
	}
}

// EvaluateDateAt compares day-truncated dates under the given date tolerance
// tier.
func EvaluateDateAt(tx *models.BankTransaction, entry *models.LedgerEntry, tier int, cfg *MatchingConfig) RuleResult {
	days := normalizer.DaysApart(tx.PostedAt, entry.Date)

	if days == 0 {
		return RuleResult{Matched: true, Score: 1.0, Reason: "same date"}
	}

	window := cfg.DateDayTiers[tier]
	if days > window {
		return RuleResult{Reason: fmt.Sprintf("dates %d days apart, outside ±%d day tolerance", days, window)}
	}

	score := tierCeiling(tier) * (1 - 0.5*float64(days)/float64(window))

	return RuleResult{
		Matched: true,
		Score:   score,
		Reason:  fmt.Sprintf("dates %d days apart, within ±%d day tolerance", days, window),
	}
}

// EvaluateDescription computes a text-similarity ratio between the
// normalized bank memo/payee and the normalized entry description. The rule
// only contributes to the score at or above the configured minimum ratio.
func EvaluateDescription(tx *models.BankTransaction, entry *models.LedgerEntry, cfg *MatchingConfig) RuleResult {
	bankText := tx.Memo
	if tx.Payee != "" {
		bankText = bankText + " " + tx.Payee
	}

	similarity := DescriptionSimilarity(bankText, entry.Description)

	if similarity < cfg.MinDescriptionSimilarity {
		return RuleResult{
			Score:  0,
			Reason: fmt.Sprintf("description similarity %.0f%% below %.0f%% minimum", similarity*100, cfg.MinDescriptionSimilarity*100),
		}
	}

	return RuleResult{
		Matched: true,
		Score:   similarity,
		Reason:  fmt.Sprintf("description similarity %.0f%%", similarity*100),
	}
}

// DescriptionSimilarity returns a ratio in [0,1] combining token overlap and
// normalized edit distance over canonicalized text. The higher of the two
// wins, so "TED RECEBIDO JOAO" still matches "Recebimento TED João" even
// though the edit distance is large.
func DescriptionSimilarity(a, b string) float64 {
	na := normalizer.NormalizeText(a)
	nb := normalizer.NormalizeText(b)

	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	overlap := tokenOverlapRatio(strings.Fields(na), strings.Fields(nb))

	distance := levenshtein.ComputeDistance(na, nb)
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	edit := 1 - float64(distance)/float64(longest)

	if overlap > edit {
		return overlap
	}
	return edit
}

// tokenOverlapRatio returns the share of tokens from the smaller set that
// also occur in the larger set.
func tokenOverlapRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	smaller, larger := a, b
	if len(b) < len(a) {
		smaller, larger = b, a
	}

	set := make(map[string]bool, len(larger))
	for _, tok := range larger {
		set[tok] = true
	}

	matches := 0
	for _, tok := range smaller {
		if set[tok] {
			matches++
		}
	}

	return float64(matches) / float64(len(smaller))
}
