// Package reconciler orchestrates batch reconciliation runs. It validates
// incoming records, builds the ledger index, evaluates each bank transaction
// through the matching engine and records outcomes through the match state
// manager. Individual record failures are collected and reported without
// aborting the run.
package reconciler

import (
	"context"
	"time"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/matcher"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/matchstate"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/models"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/pkg/errors"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/pkg/logger"
)

// Reconciler coordinates a matching engine with a match state manager.
type Reconciler struct {
	engine *matcher.MatchingEngine
	state  matchstate.Manager
	logger logger.Logger
}

// BatchStats summarizes a completed reconciliation run.
type BatchStats struct {
	TotalTransactions int            `json:"total_transactions"`
	TotalEntries      int            `json:"total_entries"`
	StatusCounts      map[string]int `json:"status_counts"`
	SkippedRecords    int            `json:"skipped_records"`
	Duration          time.Duration  `json:"duration"`
}

// BatchResult carries the per-transaction outcomes of a run along with
// validation errors for records that could not be evaluated.
type BatchResult struct {
	Results          []*matcher.MatchResult `json:"results"`
	Stats            BatchStats             `json:"stats"`
	ValidationErrors []error                `json:"-"`
}

// NewReconciler builds a reconciler. A nil config selects defaults and a
// nil state manager selects the in-memory implementation.
func NewReconciler(config *matcher.MatchingConfig, state matchstate.Manager) (*Reconciler, error) {
	if config != nil {
		if err := config.Validate(); err != nil {
			return nil, err
		}
	}
	engine := matcher.NewMatchingEngine(config)
	if state == nil {
		state = matchstate.NewInMemoryManager()
	}
	return &Reconciler{
		engine: engine,
		state:  state,
		logger: logger.GetGlobalLogger().WithComponent("reconciler"),
	}, nil
}

// EvaluateBatch runs the matching engine over every valid bank transaction.
// Invalid records are skipped and reported in ValidationErrors. Ledger
// entries confirmed in earlier runs are excluded from candidate selection.
// The context is checked between transactions so long runs can be cancelled.
func (r *Reconciler) EvaluateBatch(ctx context.Context, bankTxns []models.BankTransaction, entries []models.LedgerEntry) (*BatchResult, error) {
	start := time.Now()

	result := &BatchResult{
		Results: make([]*matcher.MatchResult, 0, len(bankTxns)),
		Stats: BatchStats{
			StatusCounts: make(map[string]int),
		},
	}

	validEntries := make([]models.LedgerEntry, 0, len(entries))
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			result.ValidationErrors = append(result.ValidationErrors,
				errors.ValidationError(errors.CodeInvalidData, "ledger_entry", entries[i].ID, err))
			result.Stats.SkippedRecords++
			continue
		}
		validEntries = append(validEntries, entries[i])
	}

	entryRefs := make([]*models.LedgerEntry, len(validEntries))
	for i := range validEntries {
		entryRefs[i] = &validEntries[i]
	}
	r.engine.LoadLedgerEntries(entryRefs)

	excluded, err := r.state.ConfirmedEntryIDs(ctx)
	if err != nil {
		return nil, err
	}

	result.Stats.TotalTransactions = len(bankTxns)
	result.Stats.TotalEntries = len(validEntries)

	progress := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "evaluate_batch",
		Total:     int64(len(bankTxns)),
		Logger:    r.logger,
	})

	for i := range bankTxns {
		select {
		case <-ctx.Done():
			return nil, errors.ConciliationOpError(errors.CodeProcessingError, "batch evaluation", ctx.Err())
		default:
		}

		txn := &bankTxns[i]
		if err := txn.Validate(); err != nil {
			result.ValidationErrors = append(result.ValidationErrors,
				errors.ValidationError(errors.CodeInvalidData, "bank_transaction", txn.FITID, err))
			result.Stats.SkippedRecords++
			progress.Increment()
			continue
		}

		mr, err := r.evaluateOne(ctx, txn, excluded)
		if err != nil {
			return nil, err
		}

		result.Results = append(result.Results, mr)
		result.Stats.StatusCounts[string(mr.Status)]++
		progress.Increment()
	}

	progress.Complete()
	result.Stats.Duration = time.Since(start)

	r.logger.WithFields(logger.Fields{
		"transactions": result.Stats.TotalTransactions,
		"entries":      result.Stats.TotalEntries,
		"skipped":      result.Stats.SkippedRecords,
		"duration":     result.Stats.Duration.String(),
	}).Info("batch evaluation finished")

	return result, nil
}

func (r *Reconciler) evaluateOne(ctx context.Context, txn *models.BankTransaction, excluded map[string]bool) (*matcher.MatchResult, error) {
	// Transactions already confirmed or ignored keep their state; the
	// engine never re-evaluates them.
	current, err := r.state.StatusOf(ctx, txn.FITID)
	if err != nil {
		return nil, err
	}
	if current == models.StatusConciliado || current == models.StatusIgnorado {
		mr := &matcher.MatchResult{
			BankTransactionID: txn.FITID,
			Status:            current,
			Reason:            "previously settled, skipped",
		}
		if match, err := r.state.MatchFor(ctx, txn.FITID); err == nil && match != nil {
			mr.LedgerEntryIDs = match.LedgerEntryIDs
			mr.Score = match.Score
			mr.MatchType = match.MatchType
		}
		return mr, nil
	}

	mr, err := r.engine.EvaluateTransaction(txn, excluded)
	if err != nil {
		return nil, err
	}

	switch mr.Status {
	case models.StatusSugerido, models.StatusTransferencia:
		if mr.Candidate != nil {
			if _, err := r.state.Propose(ctx, mr.Candidate); err != nil {
				return nil, err
			}
		}
	case models.StatusConciliado:
		match, err := r.state.Confirm(ctx, txn.FITID, mr.LedgerEntryIDs)
		if err != nil {
			if errors.IsConflict(err) {
				// Another transaction claimed the entry first; downgrade
				// rather than fail the batch.
				r.logger.WithError(err).WithField("fitid", txn.FITID).
					Warn("auto-confirm lost entry to a concurrent match")
				mr.Status = models.StatusSemMatch
				mr.LedgerEntryIDs = nil
				mr.Reason = "candidate entries already matched to another transaction"
				return mr, nil
			}
			return nil, err
		}
		for _, id := range match.LedgerEntryIDs {
			excluded[id] = true
		}
	case models.StatusSemMatch:
		if err := r.state.RecordNoMatch(ctx, txn.FITID); err != nil {
			return nil, err
		}
	}

	return mr, nil
}

// Confirm promotes a suggestion or records a manual match, then marks the
// entries as consumed.
func (r *Reconciler) Confirm(ctx context.Context, bankTransactionID string, ledgerEntryIDs []string) (*models.Match, error) {
	return r.state.Confirm(ctx, bankTransactionID, ledgerEntryIDs)
}

// Ignore marks a transaction as deliberately left unreconciled.
func (r *Reconciler) Ignore(ctx context.Context, bankTransactionID string) error {
	return r.state.Ignore(ctx, bankTransactionID)
}

// Unlink breaks a confirmed match and returns the transaction to pending.
func (r *Reconciler) Unlink(ctx context.Context, bankTransactionID string) error {
	return r.state.UnlinkByBankTransaction(ctx, bankTransactionID)
}

// UnlinkEntry breaks whatever confirmed match holds the given ledger entry.
func (r *Reconciler) UnlinkEntry(ctx context.Context, ledgerEntryID string) error {
	return r.state.UnlinkByLedgerEntry(ctx, ledgerEntryID)
}

// State exposes the underlying match state manager.
func (r *Reconciler) State() matchstate.Manager {
	return r.state
}
