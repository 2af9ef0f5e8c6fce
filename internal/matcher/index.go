package matcher

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/models"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/normalizer"
)

// LedgerIndex provides efficient candidate lookups over ledger entries.
// Amount lookups use a sorted index over absolute amounts; date lookups use
// a day-keyed map.
type LedgerIndex struct {
	// AmountRangeIndex holds unique absolute amounts sorted ascending.
	AmountRangeIndex []*amountIndexEntry

	// DateIndex maps day strings (YYYY-MM-DD) to entries.
	DateIndex map[string][]*models.LedgerEntry

	// ByID maps entry ids to entries.
	ByID map[string]*models.LedgerEntry

	// AllEntries holds all indexed entries.
	AllEntries []*models.LedgerEntry
}

type amountIndexEntry struct {
	Amount  decimal.Decimal
	Entries []*models.LedgerEntry
}

// NewLedgerIndex builds an index over the given ledger entries.
func NewLedgerIndex(entries []*models.LedgerEntry) *LedgerIndex {
	index := &LedgerIndex{
		DateIndex:  make(map[string][]*models.LedgerEntry),
		ByID:       make(map[string]*models.LedgerEntry, len(entries)),
		AllEntries: entries,
	}

	amountMap := make(map[string]*amountIndexEntry)

	for _, entry := range entries {
		absKey := entry.AbsAmount().String()
		dateKey := normalizer.TruncateToDay(entry.Date).Format("2006-01-02")

		index.DateIndex[dateKey] = append(index.DateIndex[dateKey], entry)
		index.ByID[entry.ID] = entry

		if bucket, exists := amountMap[absKey]; exists {
			bucket.Entries = append(bucket.Entries, entry)
		} else {
			amountMap[absKey] = &amountIndexEntry{
				Amount:  entry.AbsAmount(),
				Entries: []*models.LedgerEntry{entry},
			}
		}
	}

	index.AmountRangeIndex = make([]*amountIndexEntry, 0, len(amountMap))
	for _, bucket := range amountMap {
		index.AmountRangeIndex = append(index.AmountRangeIndex, bucket)
	}

	sort.Slice(index.AmountRangeIndex, func(i, j int) bool {
		return index.AmountRangeIndex[i].Amount.LessThan(index.AmountRangeIndex[j].Amount)
	})

	return index
}

// GetByAmountRange returns entries whose absolute amount falls within
// [minAmount, maxAmount].
func (li *LedgerIndex) GetByAmountRange(minAmount, maxAmount decimal.Decimal) []*models.LedgerEntry {
	var result []*models.LedgerEntry

	startIdx := sort.Search(len(li.AmountRangeIndex), func(i int) bool {
		return li.AmountRangeIndex[i].Amount.GreaterThanOrEqual(minAmount)
	})

	for i := startIdx; i < len(li.AmountRangeIndex); i++ {
		bucket := li.AmountRangeIndex[i]
		if bucket.Amount.GreaterThan(maxAmount) {
			break
		}
		result = append(result, bucket.Entries...)
	}

	return result
}

// GetByDate returns entries on the given calendar day.
func (li *LedgerIndex) GetByDate(date time.Time) []*models.LedgerEntry {
	dateKey := normalizer.TruncateToDay(date).Format("2006-01-02")
	return li.DateIndex[dateKey]
}

// GetCandidatesAt returns candidate entries for a bank transaction at the
// given value/date tolerance tier pair, skipping excluded entry ids.
func (li *LedgerIndex) GetCandidatesAt(tx *models.BankTransaction, valueTier, dateTier int, cfg *MatchingConfig, excluded map[string]bool) []*models.LedgerEntry {
	bankAbs := tx.AbsAmount()
	tolerance := cfg.ValueToleranceAt(bankAbs, valueTier)

	minAmount := bankAbs.Sub(tolerance)
	maxAmount := bankAbs.Add(tolerance)
	if minAmount.IsNegative() {
		minAmount = decimal.Zero
	}

	window := cfg.DateDayTiers[dateTier]

	var candidates []*models.LedgerEntry
	for _, entry := range li.GetByAmountRange(minAmount, maxAmount) {
		if excluded[entry.ID] {
			continue
		}
		if normalizer.DaysApart(tx.PostedAt, entry.Date) > window {
			continue
		}
		candidates = append(candidates, entry)
	}

	if cfg.MaxCandidatesPerTransaction > 0 && len(candidates) > cfg.MaxCandidatesPerTransaction {
		candidates = candidates[:cfg.MaxCandidatesPerTransaction]
	}

	return candidates
}

// GetWindow returns non-excluded entries within the given day window around
// the bank transaction date, for the multi-entry aggregator.
func (li *LedgerIndex) GetWindow(tx *models.BankTransaction, windowDays int, excluded map[string]bool) []*models.LedgerEntry {
	var result []*models.LedgerEntry

	start := normalizer.TruncateToDay(tx.PostedAt).AddDate(0, 0, -windowDays)
	for offset := 0; offset <= 2*windowDays; offset++ {
		day := start.AddDate(0, 0, offset)
		for _, entry := range li.GetByDate(day) {
			if excluded[entry.ID] {
				continue
			}
			result = append(result, entry)
		}
	}

	return result
}

// Stats returns statistics about the index.
func (li *LedgerIndex) Stats() IndexStats {
	return IndexStats{
		TotalEntries:  len(li.AllEntries),
		UniqueAmounts: len(li.AmountRangeIndex),
		UniqueDates:   len(li.DateIndex),
	}
}

// IndexStats provides statistics about the ledger index.
type IndexStats struct {
	TotalEntries  int
	UniqueAmounts int
	UniqueDates   int
}
