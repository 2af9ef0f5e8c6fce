package matcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/models"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/pkg/logger"
)

// MatchingEngine decides, for one bank transaction at a time, whether any
// ledger entries represent the same economic event, a transfer pair, a
// probable match needing confirmation, or no match at all.
//
// Evaluation is side-effect free: the engine never mutates the records it
// compares and holds no state beyond its configuration and the loaded index,
// so concurrent evaluations over disjoint transactions need no
// synchronization.
type MatchingEngine struct {
	Config *MatchingConfig
	Index  *LedgerIndex

	logger logger.Logger
}

// MatchResult is the outcome of evaluating one bank transaction.
type MatchResult struct {
	BankTransactionID string                      `json:"bankTransactionId"`
	Status            models.ReconciliationStatus `json:"status"`
	LedgerEntryIDs    []string                    `json:"ledgerEntryIds"`
	Score             float64                     `json:"score"`
	MatchType         models.MatchType            `json:"matchType,omitempty"`
	Reason            string                      `json:"reason"`
	Confidence        models.ConfidenceTier       `json:"confidence,omitempty"`

	// Candidate carries the transient pairing for a propose/confirm flow.
	// It is nil for sem_match outcomes.
	Candidate *models.MatchCandidate `json:"-"`
}

// scoredCandidate pairs a ledger entry with its rule evaluator outputs.
type scoredCandidate struct {
	entry    *models.LedgerEntry
	value    RuleResult
	date     RuleResult
	desc     RuleResult
	score    float64
	allExact bool
}

// NewMatchingEngine creates a matching engine with the given configuration.
// A nil configuration selects the defaults.
func NewMatchingEngine(config *MatchingConfig) *MatchingEngine {
	if config == nil {
		config = DefaultMatchingConfig()
	}

	return &MatchingEngine{
		Config: config,
		logger: logger.GetGlobalLogger().WithComponent("matching_engine"),
	}
}

// LoadLedgerEntries loads ledger entries into the engine and builds the
// candidate index.
func (me *MatchingEngine) LoadLedgerEntries(entries []*models.LedgerEntry) {
	me.Index = NewLedgerIndex(entries)
}

// EvaluateTransaction classifies one bank transaction against the loaded
// ledger entries. Entries whose ids appear in excluded are skipped; callers
// pass the set of entries already bound to confirmed matches to enforce
// exclusivity.
func (me *MatchingEngine) EvaluateTransaction(tx *models.BankTransaction, excluded map[string]bool) (*MatchResult, error) {
	if me.Index == nil {
		return nil, fmt.Errorf("ledger entries must be loaded before evaluation")
	}
	if excluded == nil {
		excluded = map[string]bool{}
	}

	// Transfers first: the strict rule set either produces a transferencia
	// classification or a specific rejection per entry.
	if result := me.detectTransferCounterpart(tx, excluded); result != nil {
		return result, nil
	}

	if HasTransferKeyword(tx, me.Config) && me.Config.StrictTransferKeyword {
		// A transfer-keyword transaction with no qualifying counterpart is
		// never downgraded to a generic suggestion.
		return &MatchResult{
			BankTransactionID: tx.FITID,
			Status:            models.StatusSemMatch,
			Reason:            "transfer keyword present but no qualifying counterpart found",
		}, nil
	}

	candidates, valueTier, dateTier := me.findTieredCandidates(tx, excluded)

	if len(candidates) > 0 {
		best := me.selectBest(candidates)

		if best.score >= me.Config.AutoConfirmThreshold {
			return me.buildResult(tx, best, models.StatusConciliado, models.MatchTypeAutomatic), nil
		}
		if best.score >= me.Config.SuggestThreshold {
			return me.buildResult(tx, best, models.StatusSugerido, models.MatchTypeAutomatic), nil
		}

		me.logger.WithFields(logger.Fields{
			"fit_id":     tx.FITID,
			"best_score": best.score,
			"value_tier": valueTier,
			"date_tier":  dateTier,
		}).Debug("Best single-entry candidate below suggestion threshold")
	}

	// One-to-many aggregation runs only when no single entry cleared the
	// evaluators.
	if aggregate := me.findAggregateCandidate(tx, excluded); aggregate != nil {
		return &MatchResult{
			BankTransactionID: tx.FITID,
			Status:            aggregate.Status,
			LedgerEntryIDs:    aggregate.EntryIDs(),
			Score:             aggregate.Score,
			MatchType:         aggregate.MatchType,
			Reason:            aggregate.Reason,
			Confidence:        aggregate.Confidence,
			Candidate:         aggregate,
		}, nil
	}

	return &MatchResult{
		BankTransactionID: tx.FITID,
		Status:            models.StatusSemMatch,
		Reason:            "no candidate cleared any evaluator",
	}, nil
}

// detectTransferCounterpart scans non-excluded entries for a strict transfer
// pair. Returns nil when no entry qualifies.
func (me *MatchingEngine) detectTransferCounterpart(tx *models.BankTransaction, excluded map[string]bool) *MatchResult {
	var accepted []*models.LedgerEntry
	var acceptedReason string

	for _, entry := range me.Index.AllEntries {
		if excluded[entry.ID] {
			continue
		}

		result := DetectTransfer(tx, entry, me.Config)
		if result.Accepted {
			accepted = append(accepted, entry)
			acceptedReason = result.Reason
			continue
		}

		me.logger.WithFields(logger.Fields{
			"fit_id":   tx.FITID,
			"entry_id": entry.ID,
			"reason":   result.Reason,
		}).Debug("Transfer rejected")
	}

	if len(accepted) == 0 {
		return nil
	}

	// Multiple qualifying counterparts: take the most recently created one,
	// mirroring the generic tie-break.
	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].CreatedAt.After(accepted[j].CreatedAt)
	})
	counterpart := accepted[0]

	candidate := &models.MatchCandidate{
		BankTransaction: tx,
		Entries:         []*models.LedgerEntry{counterpart},
		Score:           100,
		Reason:          acceptedReason,
		Confidence:      models.ConfidenceHigh,
		Status:          models.StatusTransferencia,
		MatchType:       models.MatchTypeTransfer,
	}

	return &MatchResult{
		BankTransactionID: tx.FITID,
		Status:            models.StatusTransferencia,
		LedgerEntryIDs:    candidate.EntryIDs(),
		Score:             candidate.Score,
		MatchType:         models.MatchTypeTransfer,
		Reason:            acceptedReason,
		Confidence:        models.ConfidenceHigh,
		Candidate:         candidate,
	}
}

// findTieredCandidates walks the tolerance tiers narrow-to-wide and scores
// the first non-empty candidate set. A wider tier is only attempted after
// every narrower combination yielded zero candidates, so widening can never
// displace a narrow-tier match.
func (me *MatchingEngine) findTieredCandidates(tx *models.BankTransaction, excluded map[string]bool) ([]*scoredCandidate, int, int) {
	for valueTier := range me.Config.ValuePercentTiers {
		for dateTier := range me.Config.DateDayTiers {
			entries := me.Index.GetCandidatesAt(tx, valueTier, dateTier, me.Config, excluded)
			if len(entries) == 0 {
				continue
			}

			scored := make([]*scoredCandidate, 0, len(entries))
			for _, entry := range entries {
				scored = append(scored, me.scorePair(tx, entry, valueTier, dateTier))
			}
			return scored, valueTier, dateTier
		}
	}

	return nil, 0, 0
}

// scorePair runs the rule evaluators on one pair and combines their outputs
// into the weighted aggregate score.
func (me *MatchingEngine) scorePair(tx *models.BankTransaction, entry *models.LedgerEntry, valueTier, dateTier int) *scoredCandidate {
	value := EvaluateValueAt(tx, entry, valueTier, me.Config)
	date := EvaluateDateAt(tx, entry, dateTier, me.Config)
	desc := EvaluateDescription(tx, entry, me.Config)

	weights := me.Config.Weights
	score := 100 * (value.Score*weights.ValueWeight +
		date.Score*weights.DateWeight +
		desc.Score*weights.DescriptionWeight)

	return &scoredCandidate{
		entry:    entry,
		value:    value,
		date:     date,
		desc:     desc,
		score:    score,
		allExact: value.Score == 1.0 && date.Score == 1.0 && desc.Matched,
	}
}

// selectBest applies the selection policy: prefer exact value+date+
// description matches, else highest aggregate score, ties broken by the most
// recent ledger-entry creation timestamp.
func (me *MatchingEngine) selectBest(candidates []*scoredCandidate) *scoredCandidate {
	pool := candidates

	var exacts []*scoredCandidate
	for _, c := range candidates {
		if c.allExact {
			exacts = append(exacts, c)
		}
	}
	if len(exacts) > 0 {
		pool = exacts
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].score != pool[j].score {
			return pool[i].score > pool[j].score
		}
		return pool[i].entry.CreatedAt.After(pool[j].entry.CreatedAt)
	})

	return pool[0]
}

func (me *MatchingEngine) buildResult(tx *models.BankTransaction, best *scoredCandidate, status models.ReconciliationStatus, matchType models.MatchType) *MatchResult {
	reason := strings.Join([]string{best.value.Reason, best.date.Reason, best.desc.Reason}, "; ")

	candidate := &models.MatchCandidate{
		BankTransaction: tx,
		Entries:         []*models.LedgerEntry{best.entry},
		Score:           best.score,
		Reason:          reason,
		Confidence:      models.TierForScore(best.score),
		Status:          status,
		MatchType:       matchType,
	}

	return &MatchResult{
		BankTransactionID: tx.FITID,
		Status:            status,
		LedgerEntryIDs:    candidate.EntryIDs(),
		Score:             best.score,
		MatchType:         matchType,
		Reason:            reason,
		Confidence:        candidate.Confidence,
		Candidate:         candidate,
	}
}

// ValidateConfiguration validates the engine configuration.
func (me *MatchingEngine) ValidateConfiguration() error {
	return me.Config.Validate()
}

// GetConfiguration returns a copy of the current configuration.
func (me *MatchingEngine) GetConfiguration() *MatchingConfig {
	return me.Config.Clone()
}

// UpdateConfiguration replaces the engine configuration after validating it.
func (me *MatchingEngine) UpdateConfiguration(config *MatchingConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	me.Config = config.Clone()
	return nil
}
