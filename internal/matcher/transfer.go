package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/models"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/normalizer"
)

// transferIDPattern matches external identifiers of the form
// TRANSF-<id>-ENTRADA or TRANSF-<id>-SAIDA emitted for internal movements.
var transferIDPattern = regexp.MustCompile(`\bTRANSF-[A-Z0-9]+-(ENTRADA|SAIDA)\b`)

// TransferResult is the outcome of the transfer detector for one pair.
// Detection is all-or-nothing: a rejection names the first criterion that
// failed.
type TransferResult struct {
	Accepted bool
	Reason   string
}

// DetectTransfer applies the strict transfer rule set to a pair. All three
// criteria must hold simultaneously, with no partial credit:
//
//  1. a transfer keyword or external-id pattern on either side;
//  2. exactly equal dates at day granularity, zero tolerance;
//  3. equal absolute amounts within the exact tolerance AND strictly
//     opposite signs.
func DetectTransfer(tx *models.BankTransaction, entry *models.LedgerEntry, cfg *MatchingConfig) TransferResult {
	if !HasTransferKeyword(tx, cfg) && !entryHasTransferKeyword(entry, cfg) {
		return TransferResult{Reason: "missing transfer keywords on both sides"}
	}

	if !normalizer.SameDay(tx.PostedAt, entry.Date) {
		return TransferResult{Reason: fmt.Sprintf("date mismatch: %s vs %s",
			tx.PostedAt.Format("2006-01-02"), entry.Date.Format("2006-01-02"))}
	}

	diff := tx.AbsAmount().Sub(entry.AbsAmount()).Abs()
	if diff.GreaterThan(cfg.ExactAmountTolerance) {
		return TransferResult{Reason: fmt.Sprintf("value mismatch: %s vs %s",
			tx.AbsAmount(), entry.AbsAmount())}
	}

	// Same-sign pairs are rejected even with identical keywords and dates:
	// an internal movement always has one leg in and one leg out.
	if tx.Amount.Sign() == entry.Amount.Sign() {
		return TransferResult{Reason: "same-sign amounts"}
	}

	return TransferResult{Accepted: true, Reason: "transfer pair: keyword, equal date, opposite equal amounts"}
}

// HasTransferKeyword reports whether the bank side of a pair carries a
// transfer keyword in its memo, payee or external identifier.
func HasTransferKeyword(tx *models.BankTransaction, cfg *MatchingConfig) bool {
	return textHasTransferKeyword(tx.Memo, cfg) ||
		textHasTransferKeyword(tx.Payee, cfg) ||
		textHasTransferKeyword(tx.FITID, cfg)
}

func entryHasTransferKeyword(entry *models.LedgerEntry, cfg *MatchingConfig) bool {
	if entry.Kind == models.KindTransferencia {
		return true
	}
	return textHasTransferKeyword(entry.Description, cfg) ||
		textHasTransferKeyword(entry.DocumentNumber, cfg)
}

func textHasTransferKeyword(text string, cfg *MatchingConfig) bool {
	if text == "" {
		return false
	}

	normalized := normalizer.NormalizeText(text)
	if transferIDPattern.MatchString(normalized) {
		return true
	}

	for _, token := range strings.Fields(normalized) {
		for _, keyword := range cfg.TransferKeywords {
			// Prefix match so TRANSF also catches TRANSFERENCIA and its
			// inflections.
			if strings.HasPrefix(token, keyword) {
				return true
			}
		}
	}

	return false
}
