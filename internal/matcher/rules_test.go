package matcher

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/models"
)

func testTxn(fitID string, amount float64, date time.Time, memo string) *models.BankTransaction {
	return models.NewBankTransaction(fitID, decimal.NewFromFloat(amount), date, memo)
}

func testEntry(id string, amount float64, date time.Time, description string) *models.LedgerEntry {
	return models.NewLedgerEntry(id, decimal.NewFromFloat(amount), date, description, "")
}

func TestEvaluateValueAt(t *testing.T) {
	cfg := DefaultMatchingConfig()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		bankAmount  float64
		entryAmount float64
		tier        int
		wantMatch   bool
		wantScore   float64
	}{
		{"identical amounts", 100.00, 100.00, 0, true, 1.0},
		{"within exact tolerance", 100.00, 100.01, 0, true, 1.0},
		{"signs ignored", -100.00, 100.00, 0, true, 1.0},
		{"outside exact tolerance at tier 0", 100.00, 100.50, 0, false, 0},
		{"within 5 percent at tier 1", 100.00, 104.00, 1, true, 0},
		{"outside 5 percent at tier 1", 100.00, 106.00, 1, false, 0},
		{"within 10 percent at tier 2", 100.00, 109.00, 2, true, 0},
		{"outside 10 percent at tier 2", 100.00, 111.00, 2, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := testTxn("FIT1", tt.bankAmount, date, "")
			entry := testEntry("L1", tt.entryAmount, date, "")

			result := EvaluateValueAt(tx, entry, tt.tier, cfg)
			if result.Matched != tt.wantMatch {
				t.Fatalf("Matched = %v, want %v (%s)", result.Matched, tt.wantMatch, result.Reason)
			}
			if tt.wantScore > 0 && result.Score != tt.wantScore {
				t.Errorf("Score = %.3f, want %.3f", result.Score, tt.wantScore)
			}
		})
	}
}

func TestEvaluateValueTierCeilings(t *testing.T) {
	cfg := DefaultMatchingConfig()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	tx := testTxn("FIT1", 100.00, date, "")

	// A tolerated non-exact match can never outscore an exact one, no
	// matter the tier.
	exact := EvaluateValueAt(tx, testEntry("L1", 100.00, date, ""), 1, cfg)
	tolerated := EvaluateValueAt(tx, testEntry("L2", 102.00, date, ""), 1, cfg)

	if exact.Score != 1.0 {
		t.Fatalf("exact amount should score 1.0 at any tier, got %.3f", exact.Score)
	}
	if tolerated.Score >= exact.Score {
		t.Errorf("tolerated match (%.3f) must score below exact match (%.3f)", tolerated.Score, exact.Score)
	}

	wider := EvaluateValueAt(tx, testEntry("L3", 102.00, date, ""), 2, cfg)
	if wider.Score > tierCeiling(2) {
		t.Errorf("tier 2 score %.3f exceeds its ceiling %.3f", wider.Score, tierCeiling(2))
	}
}

func TestEvaluateDateAt(t *testing.T) {
	cfg := DefaultMatchingConfig()
	base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	tx := testTxn("FIT1", 100, base, "")

	tests := []struct {
		name      string
		entryDate time.Time
		tier      int
		wantMatch bool
	}{
		{"same day", base, 0, true},
		{"2 days at tier 0", base.AddDate(0, 0, 2), 0, true},
		{"4 days at tier 0", base.AddDate(0, 0, 4), 0, false},
		{"4 days at tier 1", base.AddDate(0, 0, 4), 1, true},
		{"10 days at tier 1", base.AddDate(0, 0, -10), 1, false},
		{"10 days at tier 2", base.AddDate(0, 0, -10), 2, true},
		{"15 days at tier 2", base.AddDate(0, 0, 15), 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := testEntry("L1", 100, tt.entryDate, "")
			result := EvaluateDateAt(tx, entry, tt.tier, cfg)
			if result.Matched != tt.wantMatch {
				t.Errorf("Matched = %v, want %v (%s)", result.Matched, tt.wantMatch, result.Reason)
			}
		})
	}
}

func TestEvaluateDateSameDayScoresFull(t *testing.T) {
	cfg := DefaultMatchingConfig()
	base := time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC)
	tx := testTxn("FIT1", 100, base, "")
	entry := testEntry("L1", 100, time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC), "")

	result := EvaluateDateAt(tx, entry, 2, cfg)
	if result.Score != 1.0 {
		t.Errorf("same calendar day should score 1.0 at any tier, got %.3f", result.Score)
	}
}

func TestDescriptionSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		min  float64
		max  float64
	}{
		{"identical after normalization", "Transferência PIX", "TRANSFERENCIA PIX", 1.0, 1.0},
		{"token overlap beats edit distance", "TED RECEBIDO JOAO", "Recebimento TED João", 0.6, 1.0},
		{"unrelated", "ALUGUEL ESCRITORIO", "VENDA MERCADORIA", 0, 0.35},
		{"one empty", "", "PAGAMENTO", 0, 0},
		{"typo tolerated", "PAGAMENTO FORNECEDOR", "PAGAMENTO FORNECEDRO", 0.8, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DescriptionSimilarity(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("DescriptionSimilarity(%q, %q) = %.3f, want within [%.2f, %.2f]",
					tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}

func TestEvaluateDescriptionBelowMinimum(t *testing.T) {
	cfg := DefaultMatchingConfig()
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	tx := testTxn("FIT1", 100, date, "ALUGUEL ESCRITORIO")
	entry := testEntry("L1", 100, date, "VENDA MERCADORIA")

	result := EvaluateDescription(tx, entry, cfg)
	if result.Matched {
		t.Error("dissimilar descriptions should not match")
	}
	if result.Score != 0 {
		t.Errorf("below-minimum similarity must contribute zero, got %.3f", result.Score)
	}
}

func TestMatchingConfigValidate(t *testing.T) {
	if err := DefaultMatchingConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if err := StrictMatchingConfig().Validate(); err != nil {
		t.Fatalf("strict config should validate: %v", err)
	}

	bad := DefaultMatchingConfig()
	bad.ValuePercentTiers = []float64{5, 5}
	if err := bad.Validate(); err == nil {
		t.Error("non-monotonic value tiers should fail validation")
	}

	bad = DefaultMatchingConfig()
	bad.AutoConfirmThreshold = 50
	if err := bad.Validate(); err == nil {
		t.Error("auto-confirm below suggest threshold should fail validation")
	}

	bad = DefaultMatchingConfig()
	bad.Weights.ValueWeight = 0.9
	if err := bad.Validate(); err == nil {
		t.Error("weights summing far from 1.0 should fail validation")
	}
}
