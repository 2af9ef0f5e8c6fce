package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/matcher"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/models"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/reconciler"
)

func sampleResult() *reconciler.BatchResult {
	return &reconciler.BatchResult{
		Results: []*matcher.MatchResult{
			{
				BankTransactionID: "FIT1",
				Status:            models.StatusConciliado,
				LedgerEntryIDs:    []string{"L1"},
				Score:             98.5,
				MatchType:         models.MatchTypeAutomatic,
				Confidence:        models.ConfidenceHigh,
				Reason:            "exact amount match; same date",
			},
			{
				BankTransactionID: "FIT2",
				Status:            models.StatusSugerido,
				LedgerEntryIDs:    []string{"L2", "L3"},
				Score:             72.0,
				MatchType:         models.MatchTypeAutomatic,
				Confidence:        models.ConfidenceMedium,
				Reason:            "2 lançamentos selecionados somando 150",
			},
			{
				BankTransactionID: "FIT3",
				Status:            models.StatusSemMatch,
				Reason:            "no candidate cleared any evaluator",
			},
		},
		Stats: reconciler.BatchStats{
			TotalTransactions: 3,
			TotalEntries:      3,
			StatusCounts: map[string]int{
				"conciliado": 1,
				"sugerido":   1,
				"sem_match":  1,
			},
		},
	}
}

func TestConsoleReport(t *testing.T) {
	gen, err := NewReportGenerator(nil)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := gen.GenerateReport(sampleResult(), &buf); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"CONCILIATION REPORT",
		"Bank transactions: 3",
		"=== CONCILIADO (1) ===",
		"=== SUGERIDO (1) ===",
		"=== SEM_MATCH (1) ===",
		"L2+L3",
		"score=98.5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q:\n%s", want, out)
		}
	}
}

func TestJSONReport(t *testing.T) {
	cfg := DefaultReportConfig()
	cfg.Format = FormatJSON

	gen, err := NewReportGenerator(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := gen.GenerateReport(sampleResult(), &buf); err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Stats   reconciler.BatchStats    `json:"stats"`
		Results []map[string]interface{} `json:"results"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}

	if decoded.Stats.TotalTransactions != 3 {
		t.Errorf("stats.TotalTransactions = %d, want 3", decoded.Stats.TotalTransactions)
	}
	if len(decoded.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(decoded.Results))
	}
	// SortByScore puts the confirmed match first.
	if decoded.Results[0]["bankTransactionId"] != "FIT1" {
		t.Errorf("first result = %v, want FIT1", decoded.Results[0]["bankTransactionId"])
	}
}

func TestCSVReport(t *testing.T) {
	cfg := DefaultReportConfig()
	cfg.Format = FormatCSV

	gen, err := NewReportGenerator(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := gen.GenerateReport(sampleResult(), &buf); err != nil {
		t.Fatal(err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}

	if len(records) != 4 {
		t.Fatalf("got %d rows, want header plus 3 results", len(records))
	}
	if records[0][0] != "fit_id" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][0] != "FIT1" || records[1][1] != "conciliado" {
		t.Errorf("first row = %v", records[1])
	}
	// Multi-entry groups join ids with semicolons inside one cell.
	if records[2][2] != "L2;L3" {
		t.Errorf("entry ids cell = %q, want \"L2;L3\"", records[2][2])
	}
}

func TestReportFilters(t *testing.T) {
	cfg := DefaultReportConfig()
	cfg.Format = FormatCSV
	cfg.CSVHeaders = false
	cfg.IncludeSettled = false
	cfg.IncludeSemMatch = false

	gen, err := NewReportGenerator(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := gen.GenerateReport(sampleResult(), &buf); err != nil {
		t.Fatal(err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0][0] != "FIT2" {
		t.Errorf("records = %v, want only the suggestion", records)
	}
}

func TestReportConfigValidation(t *testing.T) {
	cfg := DefaultReportConfig()
	cfg.Format = "xml"

	if _, err := NewReportGenerator(cfg); err == nil {
		t.Error("unsupported format should be rejected")
	}

	gen, err := NewReportGenerator(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := gen.GenerateReport(nil, &bytes.Buffer{}); err == nil {
		t.Error("nil result should be rejected")
	}
}
