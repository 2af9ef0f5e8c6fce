// Package models defines the records exchanged with the conciliation engine:
// bank statement transactions, internal ledger entries and the match records
// that link them.
//
// The engine receives these records already parsed; persistence and file
// format concerns belong to the caller. Bank transactions are immutable once
// imported except for their match-status fields, and the engine never mutates
// a ledger entry's business fields.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionDirection represents the direction of a bank transaction.
type TransactionDirection string

const (
	DirectionDebit  TransactionDirection = "debit"
	DirectionCredit TransactionDirection = "credit"
)

// String returns the string representation of the direction.
func (d TransactionDirection) String() string {
	return string(d)
}

// IsValid checks if the direction is valid.
func (d TransactionDirection) IsValid() bool {
	return d == DirectionDebit || d == DirectionCredit
}

// DirectionFromAmount derives the direction from the sign of an amount.
func DirectionFromAmount(amount decimal.Decimal) TransactionDirection {
	if amount.IsNegative() {
		return DirectionDebit
	}
	return DirectionCredit
}

// EntryKind represents the kind of a ledger entry.
type EntryKind string

const (
	KindReceita       EntryKind = "receita"
	KindDespesa       EntryKind = "despesa"
	KindTransferencia EntryKind = "transferencia"
)

// IsValid checks if the entry kind is valid.
func (k EntryKind) IsValid() bool {
	return k == KindReceita || k == KindDespesa || k == KindTransferencia
}

// BankTransaction is a record imported from an external bank statement.
// FITID is the bank-issued identifier, globally unique per account, and is
// the key used for import idempotency.
type BankTransaction struct {
	FITID     string               `json:"fitId" csv:"fit_id"`
	Amount    decimal.Decimal      `json:"amount" csv:"amount"`
	PostedAt  time.Time            `json:"postedAt" csv:"posted_at"`
	Memo      string               `json:"memo" csv:"memo"`
	Payee     string               `json:"payee,omitempty" csv:"payee"`
	Direction TransactionDirection `json:"direction" csv:"direction"`
	Status    ReconciliationStatus `json:"status" csv:"status"`
}

// NewBankTransaction creates a bank transaction in the pending state with
// the direction derived from the amount sign.
func NewBankTransaction(fitID string, amount decimal.Decimal, postedAt time.Time, memo string) *BankTransaction {
	return &BankTransaction{
		FITID:     fitID,
		Amount:    amount,
		PostedAt:  postedAt,
		Memo:      memo,
		Direction: DirectionFromAmount(amount),
		Status:    StatusPending,
	}
}

// Validate performs basic validation on the bank transaction.
func (bt *BankTransaction) Validate() error {
	if strings.TrimSpace(bt.FITID) == "" {
		return fmt.Errorf("bank transaction FITID cannot be empty")
	}

	if bt.Amount.IsZero() {
		return fmt.Errorf("bank transaction amount cannot be zero")
	}

	if bt.PostedAt.IsZero() {
		return fmt.Errorf("bank transaction posted date cannot be zero")
	}

	if bt.Direction != "" && !bt.Direction.IsValid() {
		return fmt.Errorf("invalid transaction direction: %s", bt.Direction)
	}

	if bt.Status != "" && !bt.Status.IsValid() {
		return fmt.Errorf("invalid reconciliation status: %s", bt.Status)
	}

	return nil
}

// AbsAmount returns the absolute value of the transaction amount.
func (bt *BankTransaction) AbsAmount() decimal.Decimal {
	return bt.Amount.Abs()
}

// IsDebit returns true if the transaction is a debit.
func (bt *BankTransaction) IsDebit() bool {
	if bt.Direction != "" {
		return bt.Direction == DirectionDebit
	}
	return bt.Amount.IsNegative()
}

// String returns a string representation of the bank transaction.
func (bt *BankTransaction) String() string {
	return fmt.Sprintf("BankTransaction{FITID: %s, Amount: %s, PostedAt: %s, Status: %s}",
		bt.FITID, bt.Amount.String(), bt.PostedAt.Format("2006-01-02"), bt.Status)
}

// MarshalJSON implements custom JSON marshaling for BankTransaction.
func (bt *BankTransaction) MarshalJSON() ([]byte, error) {
	type Alias BankTransaction
	return json.Marshal(&struct {
		Amount   string `json:"amount"`
		PostedAt string `json:"postedAt"`
		*Alias
	}{
		Amount:   bt.Amount.String(),
		PostedAt: bt.PostedAt.Format("2006-01-02"),
		Alias:    (*Alias)(bt),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for BankTransaction.
func (bt *BankTransaction) UnmarshalJSON(data []byte) error {
	type Alias BankTransaction
	aux := &struct {
		Amount   string `json:"amount"`
		PostedAt string `json:"postedAt"`
		*Alias
	}{
		Alias: (*Alias)(bt),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	bt.Amount, err = decimal.NewFromString(aux.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount format: %w", err)
	}

	bt.PostedAt, err = ParseDateWithFormats(aux.PostedAt)
	if err != nil {
		return fmt.Errorf("invalid posted date format: %w", err)
	}

	return nil
}

// LedgerEntry is an internal accounting record (lançamento). The engine only
// reads its business fields; match-status bookkeeping happens on the match
// records, never here.
type LedgerEntry struct {
	ID             string          `json:"id" csv:"id"`
	Amount         decimal.Decimal `json:"valor" csv:"valor"`
	Date           time.Time       `json:"data" csv:"data"`
	Description    string          `json:"descricao" csv:"descricao"`
	Kind           EntryKind       `json:"tipo" csv:"tipo"`
	DocumentNumber string          `json:"numeroDocumento,omitempty" csv:"numero_documento"`
	Situacao       string          `json:"situacao,omitempty" csv:"situacao"`
	CreatedAt      time.Time       `json:"createdAt,omitempty" csv:"created_at"`
}

// NewLedgerEntry creates a ledger entry.
func NewLedgerEntry(id string, amount decimal.Decimal, date time.Time, description string, kind EntryKind) *LedgerEntry {
	return &LedgerEntry{
		ID:          id,
		Amount:      amount,
		Date:        date,
		Description: description,
		Kind:        kind,
	}
}

// Validate performs basic validation on the ledger entry.
func (le *LedgerEntry) Validate() error {
	if strings.TrimSpace(le.ID) == "" {
		return fmt.Errorf("ledger entry ID cannot be empty")
	}

	if le.Amount.IsZero() {
		return fmt.Errorf("ledger entry amount cannot be zero")
	}

	if le.Date.IsZero() {
		return fmt.Errorf("ledger entry date cannot be zero")
	}

	if le.Kind != "" && !le.Kind.IsValid() {
		return fmt.Errorf("invalid entry kind: %s", le.Kind)
	}

	return nil
}

// AbsAmount returns the absolute value of the entry amount.
func (le *LedgerEntry) AbsAmount() decimal.Decimal {
	return le.Amount.Abs()
}

// String returns a string representation of the ledger entry.
func (le *LedgerEntry) String() string {
	return fmt.Sprintf("LedgerEntry{ID: %s, Valor: %s, Data: %s, Tipo: %s}",
		le.ID, le.Amount.String(), le.Date.Format("2006-01-02"), le.Kind)
}

// MarshalJSON implements custom JSON marshaling for LedgerEntry.
func (le *LedgerEntry) MarshalJSON() ([]byte, error) {
	type Alias LedgerEntry
	return json.Marshal(&struct {
		Amount string `json:"valor"`
		Date   string `json:"data"`
		*Alias
	}{
		Amount: le.Amount.String(),
		Date:   le.Date.Format("2006-01-02"),
		Alias:  (*Alias)(le),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for LedgerEntry.
func (le *LedgerEntry) UnmarshalJSON(data []byte) error {
	type Alias LedgerEntry
	aux := &struct {
		Amount string `json:"valor"`
		Date   string `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(le),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	le.Amount, err = decimal.NewFromString(aux.Amount)
	if err != nil {
		return fmt.Errorf("invalid valor format: %w", err)
	}

	le.Date, err = ParseDateWithFormats(aux.Date)
	if err != nil {
		return fmt.Errorf("invalid data format: %w", err)
	}

	return nil
}

// ParseDateWithFormats attempts to parse a date string using the formats
// commonly found in bank and accounting exports, Brazilian day-first forms
// included.
func ParseDateWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"02/01/2006 15:04:05",
		"02/01/2006",
		"02-01-2006",
		"2006/01/02",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}
