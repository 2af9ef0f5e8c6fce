// Package matcher implements the conciliation matching engine: rule
// evaluators with tiered tolerance fallback, a strict transfer detector, a
// weighted scorer/classifier and a multi-entry aggregator.
//
// The engine takes one bank transaction and a set of candidate ledger
// entries and decides whether they represent the same economic event, a
// transfer pair, a probable match needing human confirmation, or no match at
// all. Evaluation is a pure computation over a bounded candidate set; the
// stateful side of conciliation lives in the matchstate package.
//
// Example usage:
//
//	engine := matcher.NewMatchingEngine(matcher.DefaultMatchingConfig())
//	engine.LoadLedgerEntries(entries)
//
//	result := engine.EvaluateTransaction(bankTxn, excludedEntryIDs)
package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Default tolerance tiers. Each wider tier is only attempted when every
// narrower tier produced zero candidates.
var (
	defaultValuePercentTiers = []float64{0, 5, 10}
	defaultDateDayTiers      = []int{3, 7, 14}
)

// defaultTransferKeywords are matched against normalized text from either
// side of a pair.
var defaultTransferKeywords = []string{"TRANSF", "TRANSFERENCIA", "TED", "DOC", "PIX"}

// MatchingWeights defines the relative importance of the rule evaluators
// when combining their outputs into the aggregate score. The exact formula
// is configuration, not hard-coded logic.
type MatchingWeights struct {
	ValueWeight       float64 `json:"value_weight" mapstructure:"value_weight"`
	DateWeight        float64 `json:"date_weight" mapstructure:"date_weight"`
	DescriptionWeight float64 `json:"description_weight" mapstructure:"description_weight"`
}

// Validate checks if the matching weights are valid.
func (mw *MatchingWeights) Validate() error {
	for name, w := range map[string]float64{
		"value":       mw.ValueWeight,
		"date":        mw.DateWeight,
		"description": mw.DescriptionWeight,
	} {
		if w < 0.0 || w > 1.0 {
			return fmt.Errorf("%s weight must be between 0.0 and 1.0: %f", name, w)
		}
	}

	total := mw.ValueWeight + mw.DateWeight + mw.DescriptionWeight
	if total < 0.9 || total > 1.1 {
		return fmt.Errorf("weights should sum to approximately 1.0, got %f", total)
	}

	return nil
}

// MatchingConfig holds the configuration of the matching engine: tolerance
// tiers, thresholds, transfer keywords and scoring weights.
type MatchingConfig struct {
	// ExactAmountTolerance is the absolute difference treated as an exact
	// value match (tier zero), in currency units.
	ExactAmountTolerance decimal.Decimal `json:"exact_amount_tolerance" mapstructure:"exact_amount_tolerance"`

	// ValuePercentTiers are the value-rule tolerance tiers, in percent of
	// the bank amount. Tier 0 means exact (ExactAmountTolerance).
	ValuePercentTiers []float64 `json:"value_percent_tiers" mapstructure:"value_percent_tiers"`

	// DateDayTiers are the date-rule tolerance tiers, in calendar days.
	DateDayTiers []int `json:"date_day_tiers" mapstructure:"date_day_tiers"`

	// MinDescriptionSimilarity is the ratio at or above which description
	// similarity contributes to the score.
	MinDescriptionSimilarity float64 `json:"min_description_similarity" mapstructure:"min_description_similarity"`

	// SuggestThreshold is the minimum aggregate score for a sugerido
	// classification.
	SuggestThreshold float64 `json:"suggest_threshold" mapstructure:"suggest_threshold"`

	// AutoConfirmThreshold is the aggregate score at or above which a match
	// is classified conciliado without human confirmation.
	AutoConfirmThreshold float64 `json:"auto_confirm_threshold" mapstructure:"auto_confirm_threshold"`

	// TransferKeywords are matched against normalized memo, payee, FITID,
	// description, document number and entry kind.
	TransferKeywords []string `json:"transfer_keywords" mapstructure:"transfer_keywords"`

	// StrictTransferKeyword classifies a transfer-keyword bank transaction
	// with no qualifying counterpart as sem_match instead of letting it fall
	// through to the generic rules.
	StrictTransferKeyword bool `json:"strict_transfer_keyword" mapstructure:"strict_transfer_keyword"`

	// MaxAggregateEntries caps the size of multi-entry groups.
	MaxAggregateEntries int `json:"max_aggregate_entries" mapstructure:"max_aggregate_entries"`

	// AggregateWindowDays bounds the date window searched by the
	// multi-entry aggregator, in days around the bank transaction date.
	AggregateWindowDays int `json:"aggregate_window_days" mapstructure:"aggregate_window_days"`

	// MaxCandidatesPerTransaction limits how many scored candidates are
	// considered per bank transaction.
	MaxCandidatesPerTransaction int `json:"max_candidates_per_transaction" mapstructure:"max_candidates_per_transaction"`

	// Weights combine the rule evaluator outputs into one score in [0,100].
	Weights MatchingWeights `json:"weights" mapstructure:"weights"`
}

// DefaultMatchingConfig returns a configuration with the documented default
// tiers and thresholds.
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		ExactAmountTolerance:        decimal.NewFromFloat(0.01),
		ValuePercentTiers:           append([]float64(nil), defaultValuePercentTiers...),
		DateDayTiers:                append([]int(nil), defaultDateDayTiers...),
		MinDescriptionSimilarity:    0.75,
		SuggestThreshold:            60,
		AutoConfirmThreshold:        95,
		TransferKeywords:            append([]string(nil), defaultTransferKeywords...),
		StrictTransferKeyword:       true,
		MaxAggregateEntries:         5,
		AggregateWindowDays:         14,
		MaxCandidatesPerTransaction: 20,
		Weights: MatchingWeights{
			ValueWeight:       0.5,
			DateWeight:        0.3,
			DescriptionWeight: 0.2,
		},
	}
}

// StrictMatchingConfig returns a configuration that disables tolerance
// widening and raises the thresholds. Useful for critical account closings.
func StrictMatchingConfig() *MatchingConfig {
	cfg := DefaultMatchingConfig()
	cfg.ValuePercentTiers = []float64{0}
	cfg.DateDayTiers = []int{0}
	cfg.SuggestThreshold = 80
	cfg.AutoConfirmThreshold = 98
	cfg.MaxAggregateEntries = 3
	return cfg
}

// Validate checks if the matching configuration is valid.
func (mc *MatchingConfig) Validate() error {
	if mc.ExactAmountTolerance.IsNegative() {
		return fmt.Errorf("exact amount tolerance cannot be negative: %s", mc.ExactAmountTolerance)
	}

	if len(mc.ValuePercentTiers) == 0 {
		return fmt.Errorf("at least one value tolerance tier is required")
	}
	for i, tier := range mc.ValuePercentTiers {
		if tier < 0 || tier > 100 {
			return fmt.Errorf("value tier %d must be between 0 and 100 percent: %f", i, tier)
		}
		if i > 0 && tier <= mc.ValuePercentTiers[i-1] {
			return fmt.Errorf("value tiers must widen monotonically, tier %d (%f) does not", i, tier)
		}
	}

	if len(mc.DateDayTiers) == 0 {
		return fmt.Errorf("at least one date tolerance tier is required")
	}
	for i, tier := range mc.DateDayTiers {
		if tier < 0 {
			return fmt.Errorf("date tier %d cannot be negative: %d", i, tier)
		}
		if i > 0 && tier <= mc.DateDayTiers[i-1] {
			return fmt.Errorf("date tiers must widen monotonically, tier %d (%d) does not", i, tier)
		}
	}

	if mc.MinDescriptionSimilarity < 0 || mc.MinDescriptionSimilarity > 1 {
		return fmt.Errorf("minimum description similarity must be between 0.0 and 1.0: %f", mc.MinDescriptionSimilarity)
	}

	if mc.SuggestThreshold < 0 || mc.SuggestThreshold > 100 {
		return fmt.Errorf("suggest threshold must be between 0 and 100: %f", mc.SuggestThreshold)
	}

	if mc.AutoConfirmThreshold < mc.SuggestThreshold || mc.AutoConfirmThreshold > 100 {
		return fmt.Errorf("auto-confirm threshold must be between the suggest threshold and 100: %f", mc.AutoConfirmThreshold)
	}

	if mc.MaxAggregateEntries < 2 {
		return fmt.Errorf("max aggregate entries must be at least 2: %d", mc.MaxAggregateEntries)
	}

	if mc.AggregateWindowDays < 0 {
		return fmt.Errorf("aggregate window days cannot be negative: %d", mc.AggregateWindowDays)
	}

	if mc.MaxCandidatesPerTransaction <= 0 {
		return fmt.Errorf("max candidates per transaction must be positive: %d", mc.MaxCandidatesPerTransaction)
	}

	if err := mc.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}

	return nil
}

// Clone creates a deep copy of the matching configuration.
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}

	clone := *mc
	clone.ValuePercentTiers = append([]float64(nil), mc.ValuePercentTiers...)
	clone.DateDayTiers = append([]int(nil), mc.DateDayTiers...)
	clone.TransferKeywords = append([]string(nil), mc.TransferKeywords...)
	return &clone
}

// ValueToleranceAt returns the absolute tolerance for the given value tier
// applied to the given (absolute) amount. Tier 0 is the exact tolerance.
func (mc *MatchingConfig) ValueToleranceAt(amount decimal.Decimal, tier int) decimal.Decimal {
	if tier <= 0 || mc.ValuePercentTiers[tier] == 0 {
		return mc.ExactAmountTolerance
	}

	percent := decimal.NewFromFloat(mc.ValuePercentTiers[tier] / 100.0)
	return amount.Abs().Mul(percent).Round(2)
}

// String returns a human-readable description of the configuration.
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{ValueTiers: %v%%, DateTiers: %vd, MinSimilarity: %.2f, Suggest: %.0f, AutoConfirm: %.0f}",
		mc.ValuePercentTiers, mc.DateDayTiers, mc.MinDescriptionSimilarity, mc.SuggestThreshold, mc.AutoConfirmThreshold)
}
