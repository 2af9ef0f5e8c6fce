package matcher

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/models"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/normalizer"
)

// findAggregateCandidate searches for a set of ledger entries whose summed
// absolute value matches the bank transaction amount under the tolerance
// tiers. It runs only after single-entry matching found nothing usable.
//
// Groups are built from entries inside the aggregate window, never mix
// signs, and prefer the sign implied by the bank transaction direction.
// Smaller groups are preferred over larger ones, and tighter tolerance tiers
// over wider ones.
func (me *MatchingEngine) findAggregateCandidate(tx *models.BankTransaction, excluded map[string]bool) *models.MatchCandidate {
	pool := me.Index.GetWindow(tx, me.Config.AggregateWindowDays, excluded)
	if len(pool) < 2 {
		return nil
	}

	var sameSign, oppositeSign []*models.LedgerEntry
	bankNegative := tx.Amount.IsNegative()
	for _, entry := range pool {
		if entry.Amount.IsNegative() == bankNegative {
			sameSign = append(sameSign, entry)
		} else {
			oppositeSign = append(oppositeSign, entry)
		}
	}

	target := tx.AbsAmount()

	for tier := range me.Config.ValuePercentTiers {
		tolerance := me.Config.ValueToleranceAt(target, tier)

		group := findGroupSum(sameSign, target, tolerance, me.Config.MaxAggregateEntries)
		if group == nil {
			group = findGroupSum(oppositeSign, target, tolerance, me.Config.MaxAggregateEntries)
		}
		if group == nil {
			continue
		}

		return me.buildAggregateCandidate(tx, group, tier)
	}

	return nil
}

// findGroupSum finds the smallest group (2..maxSize entries) whose absolute
// amounts sum to the target within the tolerance. Entries are tried largest
// first so oversized partial sums prune early.
func findGroupSum(entries []*models.LedgerEntry, target, tolerance decimal.Decimal, maxSize int) []*models.LedgerEntry {
	if len(entries) < 2 {
		return nil
	}

	sorted := append([]*models.LedgerEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AbsAmount().GreaterThan(sorted[j].AbsAmount())
	})

	upper := target.Add(tolerance)
	lower := target.Sub(tolerance)

	for size := 2; size <= maxSize && size <= len(sorted); size++ {
		if group := searchGroup(sorted, 0, size, decimal.Zero, nil, lower, upper); group != nil {
			return group
		}
	}

	return nil
}

func searchGroup(entries []*models.LedgerEntry, start, remaining int, sum decimal.Decimal, picked []*models.LedgerEntry, lower, upper decimal.Decimal) []*models.LedgerEntry {
	if remaining == 0 {
		if sum.GreaterThanOrEqual(lower) && sum.LessThanOrEqual(upper) {
			return append([]*models.LedgerEntry(nil), picked...)
		}
		return nil
	}

	for i := start; i <= len(entries)-remaining; i++ {
		next := sum.Add(entries[i].AbsAmount())
		if next.GreaterThan(upper) {
			// Entries are sorted descending, but a smaller entry later may
			// still fit; only this branch is dead.
			continue
		}

		if group := searchGroup(entries, i+1, remaining-1, next, append(picked, entries[i]), lower, upper); group != nil {
			return group
		}
	}

	return nil
}

// buildAggregateCandidate scores a found group and derives its status the
// same way single-entry classification does. The description is synthesized;
// it is never copied from any single member.
func (me *MatchingEngine) buildAggregateCandidate(tx *models.BankTransaction, group []*models.LedgerEntry, valueTier int) *models.MatchCandidate {
	valueScore := tierCeiling(valueTier)

	dateScore := 0.0
	window := me.Config.AggregateWindowDays
	for _, entry := range group {
		days := normalizer.DaysApart(tx.PostedAt, entry.Date)
		if window > 0 {
			dateScore += 1 - 0.5*float64(days)/float64(window)
		} else {
			dateScore += 1
		}
	}
	dateScore /= float64(len(group))

	weights := me.Config.Weights
	score := 100 * (valueScore*weights.ValueWeight + dateScore*weights.DateWeight)

	if score < me.Config.SuggestThreshold {
		return nil
	}

	status := models.StatusSugerido
	if score >= me.Config.AutoConfirmThreshold {
		status = models.StatusConciliado
	}

	// Primary defaults to the highest-value member; callers may override it
	// when a user picks another entry.
	sorted := append([]*models.LedgerEntry(nil), group...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AbsAmount().GreaterThan(sorted[j].AbsAmount())
	})

	total := decimal.Zero
	for _, entry := range sorted {
		total = total.Add(entry.AbsAmount())
	}

	reason := fmt.Sprintf("%d lançamentos selecionados somando %s", len(sorted), total)
	if valueTier > 0 {
		reason = fmt.Sprintf("%s (±%.0f%% tolerance)", reason, me.Config.ValuePercentTiers[valueTier])
	}

	return &models.MatchCandidate{
		BankTransaction: tx,
		Entries:         sorted,
		Score:           score,
		Reason:          reason,
		Confidence:      models.TierForScore(score),
		Status:          status,
		MatchType:       models.MatchTypeAutomatic,
	}
}
