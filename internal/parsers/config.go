package parsers

import (
	"fmt"
	"strings"
)

// ExtratoConfig describes the column layout of a bank statement export.
type ExtratoConfig struct {
	Name           string            `json:"name"`
	FITIDColumn    string            `json:"fitid_column"`
	AmountColumn   string            `json:"amount_column"`
	DateColumn     string            `json:"date_column"`
	MemoColumn     string            `json:"memo_column"`
	PayeeColumn    string            `json:"payee_column,omitempty"`
	Layout         FileLayout        `json:"layout"`
	ColumnAliases  map[string]string `json:"column_aliases,omitempty"`
}

// Validate checks that the required column names are set.
func (ec *ExtratoConfig) Validate() error {
	if strings.TrimSpace(ec.FITIDColumn) == "" {
		return fmt.Errorf("fitid column cannot be empty")
	}
	if strings.TrimSpace(ec.AmountColumn) == "" {
		return fmt.Errorf("amount column cannot be empty")
	}
	if strings.TrimSpace(ec.DateColumn) == "" {
		return fmt.Errorf("date column cannot be empty")
	}
	if strings.TrimSpace(ec.MemoColumn) == "" {
		return fmt.Errorf("memo column cannot be empty")
	}
	return nil
}

// ColumnName resolves a logical column to its actual name, aliases first.
func (ec *ExtratoConfig) ColumnName(logical string) string {
	if alias, ok := ec.ColumnAliases[logical]; ok {
		return alias
	}
	switch logical {
	case "fitid":
		return ec.FITIDColumn
	case "amount":
		return ec.AmountColumn
	case "date":
		return ec.DateColumn
	case "memo":
		return ec.MemoColumn
	case "payee":
		return ec.PayeeColumn
	default:
		return logical
	}
}

// LancamentoConfig describes the column layout of a ledger entry export.
type LancamentoConfig struct {
	IDColumn       string            `json:"id_column"`
	AmountColumn   string            `json:"amount_column"`
	DateColumn     string            `json:"date_column"`
	DescColumn     string            `json:"desc_column"`
	KindColumn     string            `json:"kind_column,omitempty"`
	DocumentColumn string            `json:"document_column,omitempty"`
	SituacaoColumn string            `json:"situacao_column,omitempty"`
	Layout         FileLayout        `json:"layout"`
	ColumnAliases  map[string]string `json:"column_aliases,omitempty"`
}

// Validate checks that the required column names are set.
func (lc *LancamentoConfig) Validate() error {
	if strings.TrimSpace(lc.IDColumn) == "" {
		return fmt.Errorf("id column cannot be empty")
	}
	if strings.TrimSpace(lc.AmountColumn) == "" {
		return fmt.Errorf("amount column cannot be empty")
	}
	if strings.TrimSpace(lc.DateColumn) == "" {
		return fmt.Errorf("date column cannot be empty")
	}
	if strings.TrimSpace(lc.DescColumn) == "" {
		return fmt.Errorf("description column cannot be empty")
	}
	return nil
}

// ColumnName resolves a logical column to its actual name, aliases first.
func (lc *LancamentoConfig) ColumnName(logical string) string {
	if alias, ok := lc.ColumnAliases[logical]; ok {
		return alias
	}
	switch logical {
	case "id":
		return lc.IDColumn
	case "amount":
		return lc.AmountColumn
	case "date":
		return lc.DateColumn
	case "description":
		return lc.DescColumn
	case "kind":
		return lc.KindColumn
	case "document":
		return lc.DocumentColumn
	case "situacao":
		return lc.SituacaoColumn
	default:
		return logical
	}
}

// DefaultExtratoConfig matches the OFX-derived CSV exports most banks
// produce.
func DefaultExtratoConfig() *ExtratoConfig {
	return &ExtratoConfig{
		Name:         "padrao",
		FITIDColumn:  "fit_id",
		AmountColumn: "valor",
		DateColumn:   "data",
		MemoColumn:   "memo",
		PayeeColumn:  "payee",
		Layout:       DefaultFileLayout(),
	}
}

// DefaultLancamentoConfig matches the ledger export of the accounting
// system.
func DefaultLancamentoConfig() *LancamentoConfig {
	return &LancamentoConfig{
		IDColumn:       "id",
		AmountColumn:   "valor",
		DateColumn:     "data",
		DescColumn:     "descricao",
		KindColumn:     "tipo",
		DocumentColumn: "numero_documento",
		SituacaoColumn: "situacao",
		Layout:         DefaultFileLayout(),
	}
}

// Predefined extrato layouts for common bank exports.
var (
	ItauExtratoConfig = &ExtratoConfig{
		Name:         "itau",
		FITIDColumn:  "identificador",
		AmountColumn: "valor",
		DateColumn:   "data lancamento",
		MemoColumn:   "historico",
		Layout: FileLayout{
			HasHeader:        true,
			Delimiter:        ';',
			SkipEmptyRows:    true,
			ValidateEncoding: true,
		},
	}

	BradescoExtratoConfig = &ExtratoConfig{
		Name:         "bradesco",
		FITIDColumn:  "documento",
		AmountColumn: "valor",
		DateColumn:   "data",
		MemoColumn:   "historico",
		Layout: FileLayout{
			HasHeader:        true,
			Delimiter:        ';',
			SkipEmptyRows:    true,
			ValidateEncoding: true,
		},
	}
)

// ExtratoConfigByName resolves a predefined layout, or nil.
func ExtratoConfigByName(name string) *ExtratoConfig {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "padrao", "standard":
		return DefaultExtratoConfig()
	case "itau":
		return ItauExtratoConfig
	case "bradesco":
		return BradescoExtratoConfig
	default:
		return nil
	}
}
