package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/matcher"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/models"
)

func txn(fitID string, amount float64, date time.Time, memo string) models.BankTransaction {
	return *models.NewBankTransaction(fitID, decimal.NewFromFloat(amount), date, memo)
}

func entry(id string, amount float64, date time.Time, description string) models.LedgerEntry {
	return *models.NewLedgerEntry(id, decimal.NewFromFloat(amount), date, description, models.KindDespesa)
}

func TestNewReconcilerRejectsInvalidConfig(t *testing.T) {
	cfg := matcher.DefaultMatchingConfig()
	cfg.SuggestThreshold = -1

	_, err := NewReconciler(cfg, nil)
	require.Error(t, err)
}

func TestEvaluateBatch(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	r, err := NewReconciler(nil, nil)
	require.NoError(t, err)

	txns := []models.BankTransaction{
		txn("FIT1", -150.00, day, "Pagamento aluguel escritorio"),
		txn("FIT2", -75.00, day, "Pgto boleto energia"),
		txn("FIT3", -999.99, day, "Saque avulso"),
	}
	entries := []models.LedgerEntry{
		entry("L1", -150.00, day, "Pagamento aluguel escritorio"),
		entry("L2", -75.00, day, "Conta de luz matriz"),
	}

	result, err := r.EvaluateBatch(ctx, txns, entries)
	require.NoError(t, err)
	require.Len(t, result.Results, 3)

	byID := make(map[string]*matcher.MatchResult, len(result.Results))
	for _, mr := range result.Results {
		byID[mr.BankTransactionID] = mr
	}

	assert.Equal(t, models.StatusConciliado, byID["FIT1"].Status)
	assert.Equal(t, models.StatusSugerido, byID["FIT2"].Status)
	assert.Equal(t, models.StatusSemMatch, byID["FIT3"].Status)

	assert.Equal(t, 3, result.Stats.TotalTransactions)
	assert.Equal(t, 2, result.Stats.TotalEntries)
	assert.Equal(t, 1, result.Stats.StatusCounts["conciliado"])
	assert.Empty(t, result.ValidationErrors)

	// The run persisted its outcomes.
	status, err := r.State().StatusOf(ctx, "FIT1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConciliado, status)
}

func TestEvaluateBatchSkipsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	r, err := NewReconciler(nil, nil)
	require.NoError(t, err)

	txns := []models.BankTransaction{
		txn("", -150.00, day, "missing fitid"),
		txn("FIT2", -75.00, day, "Pgto energia"),
	}
	entries := []models.LedgerEntry{
		entry("", -75.00, day, "missing id"),
		entry("L2", -75.00, day, "Pgto energia"),
	}

	result, err := r.EvaluateBatch(ctx, txns, entries)
	require.NoError(t, err)

	assert.Len(t, result.ValidationErrors, 2)
	assert.Equal(t, 2, result.Stats.SkippedRecords)
	assert.Equal(t, 1, result.Stats.TotalEntries)

	// The valid pair still matched.
	require.Len(t, result.Results, 1)
	assert.Equal(t, "FIT2", result.Results[0].BankTransactionID)
	assert.Equal(t, models.StatusConciliado, result.Results[0].Status)
}

func TestEvaluateBatchExcludesConfirmedEntries(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	r, err := NewReconciler(nil, nil)
	require.NoError(t, err)

	// A previous run bound L1 to FITOLD.
	_, err = r.Confirm(ctx, "FITOLD", []string{"L1"})
	require.NoError(t, err)

	txns := []models.BankTransaction{
		txn("FIT1", -150.00, day, "Pagamento aluguel"),
	}
	entries := []models.LedgerEntry{
		entry("L1", -150.00, day, "Pagamento aluguel"),
	}

	result, err := r.EvaluateBatch(ctx, txns, entries)
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, models.StatusSemMatch, result.Results[0].Status)
}

func TestEvaluateBatchEntryClaimedOnce(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	r, err := NewReconciler(nil, nil)
	require.NoError(t, err)

	// Two identical transactions compete for the single exact entry. The
	// first one confirmed consumes it within the same run.
	txns := []models.BankTransaction{
		txn("FIT1", -150.00, day, "Pagamento aluguel"),
		txn("FIT2", -150.00, day, "Pagamento aluguel"),
	}
	entries := []models.LedgerEntry{
		entry("L1", -150.00, day, "Pagamento aluguel"),
	}

	result, err := r.EvaluateBatch(ctx, txns, entries)
	require.NoError(t, err)
	require.Len(t, result.Results, 2)

	statuses := map[models.ReconciliationStatus]int{}
	for _, mr := range result.Results {
		statuses[mr.Status]++
	}
	assert.Equal(t, 1, statuses[models.StatusConciliado])
	assert.Equal(t, 1, statuses[models.StatusSemMatch])
}

func TestEvaluateBatchSkipsSettledTransactions(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	r, err := NewReconciler(nil, nil)
	require.NoError(t, err)

	_, err = r.Confirm(ctx, "FIT1", []string{"L9"})
	require.NoError(t, err)
	require.NoError(t, r.Ignore(ctx, "FIT2"))

	txns := []models.BankTransaction{
		txn("FIT1", -150.00, day, "Pagamento aluguel"),
		txn("FIT2", -80.00, day, "Tarifa bancaria"),
	}
	entries := []models.LedgerEntry{
		entry("L1", -150.00, day, "Pagamento aluguel"),
	}

	result, err := r.EvaluateBatch(ctx, txns, entries)
	require.NoError(t, err)
	require.Len(t, result.Results, 2)

	byID := make(map[string]*matcher.MatchResult)
	for _, mr := range result.Results {
		byID[mr.BankTransactionID] = mr
	}

	assert.Equal(t, models.StatusConciliado, byID["FIT1"].Status)
	assert.Equal(t, []string{"L9"}, byID["FIT1"].LedgerEntryIDs)
	assert.Contains(t, byID["FIT1"].Reason, "skipped")
	assert.Equal(t, models.StatusIgnorado, byID["FIT2"].Status)
}

func TestEvaluateBatchCancellation(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	r, err := NewReconciler(nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	txns := []models.BankTransaction{
		txn("FIT1", -150.00, day, "Pagamento"),
	}

	_, err = r.EvaluateBatch(ctx, txns, nil)
	require.Error(t, err)
}

func TestUnlinkRoundTrip(t *testing.T) {
	ctx := context.Background()

	r, err := NewReconciler(nil, nil)
	require.NoError(t, err)

	_, err = r.Confirm(ctx, "FIT1", []string{"L1"})
	require.NoError(t, err)

	require.NoError(t, r.Unlink(ctx, "FIT1"))

	status, err := r.State().StatusOf(ctx, "FIT1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status)

	// The freed entry can back another transaction.
	_, err = r.Confirm(ctx, "FIT2", []string{"L1"})
	require.NoError(t, err)
	require.NoError(t, r.UnlinkEntry(ctx, "L1"))

	status, err = r.State().StatusOf(ctx, "FIT2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status)
}
