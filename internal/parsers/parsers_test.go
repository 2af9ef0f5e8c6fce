package parsers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/models"
	apperrors "github.com/exattacontabilidadedigital/erp-exatta-sub000/pkg/errors"
)

func writeTempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtratoParserDefaultLayout(t *testing.T) {
	path := writeTempCSV(t, "extrato.csv", strings.Join([]string{
		"fit_id,valor,data,memo,payee",
		`FIT001,"-1.234,56",15/03/2024,Pagamento aluguel,Imobiliaria Central`,
		`FIT002,"2.500,00",2024-03-16,TED recebida,`,
	}, "\n"))

	parser, err := NewExtratoParser(nil)
	if err != nil {
		t.Fatal(err)
	}

	txns, stats, err := parser.Parse(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(txns) != 2 {
		t.Fatalf("parsed %d transactions, want 2 (errors: %v)", len(txns), stats.Errors)
	}
	if stats.RecordsValid != 2 || stats.HasErrors() {
		t.Errorf("stats = %+v, want 2 valid records and no errors", stats)
	}

	first := txns[0]
	if first.FITID != "FIT001" {
		t.Errorf("FITID = %s, want FIT001", first.FITID)
	}
	if !first.Amount.Equal(decimal.RequireFromString("-1234.56")) {
		t.Errorf("Amount = %s, want -1234.56", first.Amount)
	}
	if want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC); !first.PostedAt.Equal(want) {
		t.Errorf("PostedAt = %s, want %s", first.PostedAt, want)
	}
	if first.Payee != "Imobiliaria Central" {
		t.Errorf("Payee = %q", first.Payee)
	}
	if !first.IsDebit() {
		t.Error("negative amount should be a debit")
	}
}

func TestExtratoParserSemicolonLayout(t *testing.T) {
	path := writeTempCSV(t, "itau.csv", strings.Join([]string{
		"identificador;valor;data lancamento;historico",
		"ABC1;-150,00;15/03/2024;PIX QR Code",
	}, "\n"))

	parser, err := NewExtratoParser(ItauExtratoConfig)
	if err != nil {
		t.Fatal(err)
	}

	txns, _, err := parser.Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(txns) != 1 || txns[0].FITID != "ABC1" {
		t.Fatalf("txns = %v, want one transaction ABC1", txns)
	}
}

func TestExtratoParserSkipsBadRecords(t *testing.T) {
	path := writeTempCSV(t, "extrato.csv", strings.Join([]string{
		"fit_id,valor,data,memo",
		"FIT001,abc,15/03/2024,invalid amount",
		"FIT002,100.00,not-a-date,invalid date",
		"FIT003,100.00,15/03/2024,ok",
		"",
		",100.00,15/03/2024,missing fitid",
	}, "\n"))

	parser, err := NewExtratoParser(nil)
	if err != nil {
		t.Fatal(err)
	}

	txns, stats, err := parser.Parse(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(txns) != 1 || txns[0].FITID != "FIT003" {
		t.Fatalf("txns = %v, want only FIT003", txns)
	}
	if len(stats.Errors) != 3 {
		t.Errorf("got %d record errors, want 3: %v", len(stats.Errors), stats.Errors)
	}
}

func TestExtratoParserDuplicateFITID(t *testing.T) {
	path := writeTempCSV(t, "extrato.csv", strings.Join([]string{
		"fit_id,valor,data,memo",
		"FIT001,100.00,15/03/2024,primeira",
		"FIT001,200.00,16/03/2024,duplicada",
	}, "\n"))

	parser, err := NewExtratoParser(nil)
	if err != nil {
		t.Fatal(err)
	}

	txns, stats, err := parser.Parse(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(txns) != 1 {
		t.Fatalf("parsed %d transactions, want the first occurrence only", len(txns))
	}
	if !txns[0].Amount.Equal(decimal.RequireFromString("100")) {
		t.Errorf("kept amount %s, want the first occurrence", txns[0].Amount)
	}
	if len(stats.Errors) != 1 || !strings.Contains(stats.Errors[0].Message, "duplicate FITID") {
		t.Errorf("stats.Errors = %v, want one duplicate-FITID error", stats.Errors)
	}
}

func TestExtratoParserMissingColumn(t *testing.T) {
	path := writeTempCSV(t, "extrato.csv", strings.Join([]string{
		"fit_id,valor,memo",
		"FIT001,100.00,sem data",
	}, "\n"))

	parser, err := NewExtratoParser(nil)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = parser.Parse(path)
	if err == nil {
		t.Fatal("expected an error for a missing required column")
	}

	ce, ok := apperrors.AsConciliationError(err)
	if !ok || ce.Code != apperrors.CodeMissingColumn {
		t.Errorf("err = %v, want a missing-column parse error", err)
	}
}

func TestExtratoParserFileNotFound(t *testing.T) {
	parser, err := NewExtratoParser(nil)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = parser.Parse(filepath.Join(t.TempDir(), "nope.csv"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	ce, ok := apperrors.AsConciliationError(err)
	if !ok || ce.Code != apperrors.CodeFileNotFound {
		t.Errorf("err = %v, want a file-not-found error", err)
	}
}

func TestExtratoParserCancellation(t *testing.T) {
	path := writeTempCSV(t, "extrato.csv", strings.Join([]string{
		"fit_id,valor,data,memo",
		"FIT001,100.00,15/03/2024,ok",
	}, "\n"))

	parser, err := NewExtratoParser(nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = parser.ParseWithContext(ctx, path)
	if err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}

func TestExtratoConfigByName(t *testing.T) {
	if cfg := ExtratoConfigByName("ITAU"); cfg == nil || cfg.Name != "itau" {
		t.Errorf("ExtratoConfigByName(ITAU) = %v", cfg)
	}
	if cfg := ExtratoConfigByName(""); cfg == nil || cfg.Name != "padrao" {
		t.Errorf("ExtratoConfigByName(\"\") = %v", cfg)
	}
	if cfg := ExtratoConfigByName("nubank"); cfg != nil {
		t.Errorf("unknown layout should resolve to nil, got %v", cfg)
	}
}

func TestExtratoConfigValidate(t *testing.T) {
	cfg := DefaultExtratoConfig()
	cfg.AmountColumn = " "
	if _, err := NewExtratoParser(cfg); err == nil {
		t.Error("blank amount column should be rejected")
	}
}

func TestLancamentoParserDefaultLayout(t *testing.T) {
	path := writeTempCSV(t, "lancamentos.csv", strings.Join([]string{
		"id,valor,data,descricao,tipo,numero_documento,situacao",
		`L1,"-1.234,56",15/03/2024,Pagamento aluguel,despesa,NF-123,pendente`,
		`L2,"500,00",16/03/2024,Venda cliente,receita,,paga`,
		`L3,"-200,00",16/03/2024,TED para filial,transferencia,TRANSF-X1-SAIDA,`,
	}, "\n"))

	parser, err := NewLancamentoParser(nil)
	if err != nil {
		t.Fatal(err)
	}

	entries, stats, err := parser.Parse(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(entries) != 3 {
		t.Fatalf("parsed %d entries, want 3 (errors: %v)", len(entries), stats.Errors)
	}

	first := entries[0]
	if first.ID != "L1" || first.Kind != models.KindDespesa {
		t.Errorf("entry = %+v, want L1/despesa", first)
	}
	if first.DocumentNumber != "NF-123" || first.Situacao != "pendente" {
		t.Errorf("optional columns not captured: %+v", first)
	}
	if entries[2].Kind != models.KindTransferencia {
		t.Errorf("Kind = %s, want transferencia", entries[2].Kind)
	}
}

func TestLancamentoParserUnknownKind(t *testing.T) {
	path := writeTempCSV(t, "lancamentos.csv", strings.Join([]string{
		"id,valor,data,descricao,tipo",
		"L1,100.00,15/03/2024,Emprestimo,emprestimo",
		"L2,100.00,15/03/2024,Venda,receita",
	}, "\n"))

	parser, err := NewLancamentoParser(nil)
	if err != nil {
		t.Fatal(err)
	}

	entries, stats, err := parser.Parse(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(entries) != 1 || entries[0].ID != "L2" {
		t.Fatalf("entries = %v, want only L2", entries)
	}
	if len(stats.Errors) != 1 || !strings.Contains(stats.Errors[0].Message, "unknown entry kind") {
		t.Errorf("stats.Errors = %v, want one unknown-kind error", stats.Errors)
	}
}

func TestLancamentoParserKindOptional(t *testing.T) {
	cfg := DefaultLancamentoConfig()
	cfg.KindColumn = ""
	cfg.DocumentColumn = ""
	cfg.SituacaoColumn = ""

	path := writeTempCSV(t, "lancamentos.csv", strings.Join([]string{
		"id,valor,data,descricao",
		"L1,100.00,15/03/2024,Venda",
	}, "\n"))

	parser, err := NewLancamentoParser(cfg)
	if err != nil {
		t.Fatal(err)
	}

	entries, _, err := parser.Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Kind != "" {
		t.Fatalf("entries = %v, want one entry without a kind", entries)
	}
}

func TestParseStatsString(t *testing.T) {
	stats := &ParseStats{TotalLines: 10, RecordsParsed: 9, RecordsValid: 7}
	stats.addError(&RecordError{Line: 3, Field: "valor", Value: "abc", Message: "invalid amount"})
	stats.addError(&RecordError{Line: 5, Message: "malformed CSV record"})

	if !stats.HasErrors() {
		t.Fatal("HasErrors() = false with recorded errors")
	}
	if got := stats.SampleErrors(1); len(got) != 1 {
		t.Errorf("SampleErrors(1) returned %d errors", len(got))
	}
	if s := stats.String(); !strings.Contains(s, "7") {
		t.Errorf("String() = %q, want it to mention the valid count", s)
	}
}
