// Package matchstate defines the persistence port of the conciliation
// engine: the contract for recording match decisions and transitioning
// reconciliation state, with idempotency and conflict rules enforced at the
// boundary.
//
// The engine's evaluation functions are pure; every stateful concern lives
// behind the Manager interface. Storage is external: production callers
// inject their own implementation, and the in-memory one in this package
// backs tests and batch CLI runs.
package matchstate

import (
	"context"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/models"
)

// Manager is the match state contract.
//
// Confirm and unlink on the same (bank transaction, ledger entry) pair must
// be linearized by implementations: of two concurrent confirms exactly one
// succeeds and the other observes a conflict error. Confirm never overwrites
// silently; conflicts carry the conflicting match and entry ids so the
// caller can unlink and retry. The engine performs no automatic conflict
// resolution.
type Manager interface {
	// Propose records a match candidate as a suggested match and moves the
	// bank transaction into the candidate's status. Proposing replaces any
	// previous suggestion for the same bank transaction.
	Propose(ctx context.Context, candidate *models.MatchCandidate) (*models.Match, error)

	// Confirm binds the bank transaction to the given ledger entries as a
	// confirmed match. The first entry id is flagged primary. It fails with
	// a conflict error if any target entry is already bound to a different
	// confirmed match, or if the bank transaction already has one.
	Confirm(ctx context.Context, bankTransactionID string, ledgerEntryIDs []string) (*models.Match, error)

	// Ignore dismisses the bank transaction (user action).
	Ignore(ctx context.Context, bankTransactionID string) error

	// RecordNoMatch marks the bank transaction as sem_match.
	RecordNoMatch(ctx context.Context, bankTransactionID string) error

	// UnlinkByBankTransaction removes the transaction's match record, frees
	// its ledger entries and returns the transaction to pending. This is
	// the only way out of conciliado and ignorado.
	UnlinkByBankTransaction(ctx context.Context, bankTransactionID string) error

	// UnlinkByLedgerEntry unlinks whatever match currently binds the given
	// ledger entry.
	UnlinkByLedgerEntry(ctx context.Context, ledgerEntryID string) error

	// StatusOf returns the reconciliation status of a bank transaction.
	// Unknown transactions are pending.
	StatusOf(ctx context.Context, bankTransactionID string) (models.ReconciliationStatus, error)

	// MatchFor returns the current match record for a bank transaction, or
	// nil when none exists.
	MatchFor(ctx context.Context, bankTransactionID string) (*models.Match, error)

	// ConfirmedEntryIDs returns the ids of ledger entries bound to
	// confirmed matches. The engine excludes these from candidate sets.
	ConfirmedEntryIDs(ctx context.Context) (map[string]bool, error)
}
