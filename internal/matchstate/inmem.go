package matchstate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/models"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/pkg/errors"
)

// InMemoryManager is the in-memory Manager implementation. A single mutex
// serializes confirm/unlink, which linearizes concurrent confirms on the
// same pair: exactly one succeeds, the other observes a conflict.
type InMemoryManager struct {
	mu sync.Mutex

	matches          map[string]*models.Match                // match id -> match
	byBankTxn        map[string]*models.Match                // bank txn id -> current match
	confirmedByEntry map[string]string                       // entry id -> confirmed match id
	statuses         map[string]models.ReconciliationStatus  // bank txn id -> status
}

// NewInMemoryManager creates an empty in-memory match state manager.
func NewInMemoryManager() *InMemoryManager {
	return &InMemoryManager{
		matches:          make(map[string]*models.Match),
		byBankTxn:        make(map[string]*models.Match),
		confirmedByEntry: make(map[string]string),
		statuses:         make(map[string]models.ReconciliationStatus),
	}
}

func (m *InMemoryManager) statusOfLocked(bankTransactionID string) models.ReconciliationStatus {
	if status, ok := m.statuses[bankTransactionID]; ok {
		return status
	}
	return models.StatusPending
}

// Propose records a candidate as a suggested match.
func (m *InMemoryManager) Propose(_ context.Context, candidate *models.MatchCandidate) (*models.Match, error) {
	if candidate == nil || candidate.BankTransaction == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "candidate", nil, nil)
	}
	if len(candidate.Entries) == 0 {
		return nil, errors.ValidationError(errors.CodeMissingField, "candidate.entries", nil, nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bankTxnID := candidate.BankTransaction.FITID

	current := m.statusOfLocked(bankTxnID)
	if existing := m.byBankTxn[bankTxnID]; existing != nil && existing.Status == models.MatchStatusConfirmed {
		return nil, errors.ConflictError(errors.CodeTransactionAlreadyMatched, bankTxnID,
			[]string{existing.ID}, existing.LedgerEntryIDs)
	}
	if !current.CanTransition(candidate.Status) {
		return nil, errors.TransitionError(current.String(), candidate.Status.String())
	}

	// Proposing replaces any previous suggestion for this transaction.
	if previous := m.byBankTxn[bankTxnID]; previous != nil {
		delete(m.matches, previous.ID)
	}

	match := &models.Match{
		ID:                uuid.NewString(),
		BankTransactionID: bankTxnID,
		LedgerEntryIDs:    candidate.EntryIDs(),
		PrimaryEntryID:    candidate.EntryIDs()[0],
		Status:            models.MatchStatusSuggested,
		Score:             candidate.Score,
		MatchType:         candidate.MatchType,
		CreatedAt:         time.Now(),
	}

	if err := match.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, errors.CodeMissingField, "invalid match candidate")
	}

	m.matches[match.ID] = match
	m.byBankTxn[bankTxnID] = match
	m.statuses[bankTxnID] = candidate.Status

	return match, nil
}

// Confirm binds a bank transaction to ledger entries as a confirmed match,
// failing with a conflict error instead of overwriting.
func (m *InMemoryManager) Confirm(_ context.Context, bankTransactionID string, ledgerEntryIDs []string) (*models.Match, error) {
	if bankTransactionID == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "bank_transaction_id", nil, nil)
	}
	if len(ledgerEntryIDs) == 0 {
		return nil, errors.ValidationError(errors.CodeMissingField, "ledger_entry_ids", nil, nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Duplication guard: a bank transaction's external identifier must never
	// be linked to two different confirmed matches.
	if existing := m.byBankTxn[bankTransactionID]; existing != nil && existing.Status == models.MatchStatusConfirmed {
		return nil, errors.ConflictError(errors.CodeTransactionAlreadyMatched, bankTransactionID,
			[]string{existing.ID}, existing.LedgerEntryIDs)
	}

	// Exclusivity guard: a ledger entry backs at most one confirmed match.
	var conflictingMatchIDs, conflictingEntryIDs []string
	for _, entryID := range ledgerEntryIDs {
		if matchID, bound := m.confirmedByEntry[entryID]; bound {
			conflictingMatchIDs = append(conflictingMatchIDs, matchID)
			conflictingEntryIDs = append(conflictingEntryIDs, entryID)
		}
	}
	if len(conflictingEntryIDs) > 0 {
		return nil, errors.ConflictError(errors.CodeEntryAlreadyMatched, bankTransactionID,
			conflictingMatchIDs, conflictingEntryIDs)
	}

	current := m.statusOfLocked(bankTransactionID)
	if !current.CanTransition(models.StatusConciliado) {
		return nil, errors.TransitionError(current.String(), models.StatusConciliado.String())
	}

	// Upgrade an existing suggestion when it covers the same entries,
	// keeping its score and type; otherwise this is a manual confirmation.
	match := m.byBankTxn[bankTransactionID]
	if match != nil && sameEntrySet(match.LedgerEntryIDs, ledgerEntryIDs) {
		match.Status = models.MatchStatusConfirmed
	} else {
		match = &models.Match{
			ID:                uuid.NewString(),
			BankTransactionID: bankTransactionID,
			LedgerEntryIDs:    append([]string(nil), ledgerEntryIDs...),
			PrimaryEntryID:    ledgerEntryIDs[0],
			Status:            models.MatchStatusConfirmed,
			Score:             100,
			MatchType:         models.MatchTypeManual,
			CreatedAt:         time.Now(),
		}
		if err := match.Validate(); err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, errors.CodeMissingField, "invalid confirm request")
		}
		m.matches[match.ID] = match
		m.byBankTxn[bankTransactionID] = match
	}

	for _, entryID := range match.LedgerEntryIDs {
		m.confirmedByEntry[entryID] = match.ID
	}
	m.statuses[bankTransactionID] = models.StatusConciliado

	return match, nil
}

// Ignore dismisses a bank transaction.
func (m *InMemoryManager) Ignore(_ context.Context, bankTransactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.statusOfLocked(bankTransactionID)
	if !current.CanTransition(models.StatusIgnorado) {
		return errors.TransitionError(current.String(), models.StatusIgnorado.String())
	}

	m.statuses[bankTransactionID] = models.StatusIgnorado
	return nil
}

// RecordNoMatch marks a bank transaction as sem_match.
func (m *InMemoryManager) RecordNoMatch(_ context.Context, bankTransactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.statusOfLocked(bankTransactionID)
	if !current.CanTransition(models.StatusSemMatch) {
		return errors.TransitionError(current.String(), models.StatusSemMatch.String())
	}

	m.statuses[bankTransactionID] = models.StatusSemMatch
	return nil
}

// UnlinkByBankTransaction removes the transaction's match record and
// returns the transaction to pending.
func (m *InMemoryManager) UnlinkByBankTransaction(_ context.Context, bankTransactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.unlinkLocked(bankTransactionID)
}

// UnlinkByLedgerEntry unlinks whatever match currently binds the entry.
func (m *InMemoryManager) UnlinkByLedgerEntry(_ context.Context, ledgerEntryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if matchID, bound := m.confirmedByEntry[ledgerEntryID]; bound {
		return m.unlinkLocked(m.matches[matchID].BankTransactionID)
	}

	for _, match := range m.byBankTxn {
		if match.LinksEntry(ledgerEntryID) {
			return m.unlinkLocked(match.BankTransactionID)
		}
	}

	return errors.ConciliationOpError(errors.CodeMatchNotFound, "unlink", nil).
		WithContext("ledger_entry_id", ledgerEntryID)
}

func (m *InMemoryManager) unlinkLocked(bankTransactionID string) error {
	match := m.byBankTxn[bankTransactionID]
	if match == nil && m.statusOfLocked(bankTransactionID) == models.StatusPending {
		return errors.ConciliationOpError(errors.CodeMatchNotFound, "unlink", nil).
			WithContext("bank_transaction_id", bankTransactionID)
	}

	if match != nil {
		for _, entryID := range match.LedgerEntryIDs {
			if m.confirmedByEntry[entryID] == match.ID {
				delete(m.confirmedByEntry, entryID)
			}
		}
		delete(m.matches, match.ID)
		delete(m.byBankTxn, bankTransactionID)
	}

	m.statuses[bankTransactionID] = models.StatusPending
	return nil
}

// StatusOf returns the reconciliation status of a bank transaction.
func (m *InMemoryManager) StatusOf(_ context.Context, bankTransactionID string) (models.ReconciliationStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.statusOfLocked(bankTransactionID), nil
}

// MatchFor returns the current match for a bank transaction, nil when none.
func (m *InMemoryManager) MatchFor(_ context.Context, bankTransactionID string) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.byBankTxn[bankTransactionID], nil
}

// ConfirmedEntryIDs returns the ids of entries bound to confirmed matches.
func (m *InMemoryManager) ConfirmedEntryIDs(_ context.Context) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make(map[string]bool, len(m.confirmedByEntry))
	for entryID := range m.confirmedByEntry {
		ids[entryID] = true
	}
	return ids, nil
}

func sameEntrySet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}
