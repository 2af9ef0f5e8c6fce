package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MatchCandidate is a transient pairing of one bank transaction with one or
// more ledger entries plus the computed score and reason. Candidates are
// created during a matching pass and discarded once a decision is recorded;
// they are never persisted.
type MatchCandidate struct {
	BankTransaction *BankTransaction
	Entries         []*LedgerEntry
	Score           float64
	Reason          string
	Confidence      ConfidenceTier
	Status          ReconciliationStatus
	MatchType       MatchType
}

// EntryIDs returns the ids of the candidate's ledger entries.
func (mc *MatchCandidate) EntryIDs() []string {
	ids := make([]string, 0, len(mc.Entries))
	for _, e := range mc.Entries {
		ids = append(ids, e.ID)
	}
	return ids
}

// AggregateAmount returns the sum of absolute values of the candidate's
// entries. For a single-entry candidate this is the entry's absolute amount.
func (mc *MatchCandidate) AggregateAmount() decimal.Decimal {
	total := decimal.Zero
	for _, e := range mc.Entries {
		total = total.Add(e.Amount.Abs())
	}
	return total
}

// Match is the persisted outcome: a link between one bank transaction and
// one or more ledger entries. When multiple entries are linked exactly one
// is flagged primary.
type Match struct {
	ID                string      `json:"id"`
	BankTransactionID string      `json:"bankTransactionId"`
	LedgerEntryIDs    []string    `json:"ledgerEntryIds"`
	PrimaryEntryID    string      `json:"primaryEntryId"`
	Status            MatchStatus `json:"status"`
	Score             float64     `json:"score"`
	MatchType         MatchType   `json:"matchType"`
	CreatedAt         time.Time   `json:"createdAt"`
}

// Validate checks the structural invariants of a match record.
func (m *Match) Validate() error {
	if strings.TrimSpace(m.BankTransactionID) == "" {
		return fmt.Errorf("match bank transaction id cannot be empty")
	}

	if len(m.LedgerEntryIDs) == 0 {
		return fmt.Errorf("match must link at least one ledger entry")
	}

	if m.Status != MatchStatusSuggested && m.Status != MatchStatusConfirmed {
		return fmt.Errorf("invalid match status: %s", m.Status)
	}

	if !m.MatchType.IsValid() {
		return fmt.Errorf("invalid match type: %s", m.MatchType)
	}

	if m.PrimaryEntryID == "" {
		return fmt.Errorf("match must designate a primary ledger entry")
	}

	primaryLinked := false
	for _, id := range m.LedgerEntryIDs {
		if id == m.PrimaryEntryID {
			primaryLinked = true
			break
		}
	}
	if !primaryLinked {
		return fmt.Errorf("primary entry %s is not among the linked ledger entries", m.PrimaryEntryID)
	}

	return nil
}

// LinksEntry reports whether the match links the given ledger entry.
func (m *Match) LinksEntry(entryID string) bool {
	for _, id := range m.LedgerEntryIDs {
		if id == entryID {
			return true
		}
	}
	return false
}

// String returns a string representation of the match.
func (m *Match) String() string {
	return fmt.Sprintf("Match{ID: %s, BankTxn: %s, Entries: [%s], Status: %s, Type: %s, Score: %.1f}",
		m.ID, m.BankTransactionID, strings.Join(m.LedgerEntryIDs, ", "), m.Status, m.MatchType, m.Score)
}
