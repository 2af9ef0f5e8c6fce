package models

// ReconciliationStatus is the derived state of a bank transaction inside the
// conciliation state machine.
type ReconciliationStatus string

const (
	// StatusPending is the initial state of an imported bank transaction.
	StatusPending ReconciliationStatus = "pending"

	// StatusSugerido means the rule evaluators found a partial-confidence
	// match above the suggestion threshold but below auto-confirm.
	StatusSugerido ReconciliationStatus = "sugerido"

	// StatusTransferencia means the transfer detector accepted a counterpart.
	StatusTransferencia ReconciliationStatus = "transferencia"

	// StatusSemMatch means no candidate cleared any evaluator, or a
	// transfer-keyword transaction had no valid counterpart.
	StatusSemMatch ReconciliationStatus = "sem_match"

	// StatusConciliado means a match was confirmed, automatically or by a
	// user action.
	StatusConciliado ReconciliationStatus = "conciliado"

	// StatusIgnorado means the user dismissed the transaction.
	StatusIgnorado ReconciliationStatus = "ignorado"

	// StatusDesvinculado means a previously confirmed match was unlinked.
	StatusDesvinculado ReconciliationStatus = "desvinculado"
)

// String returns the string representation of the status.
func (s ReconciliationStatus) String() string {
	return string(s)
}

// IsValid checks if the status is one of the defined values.
func (s ReconciliationStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusSugerido, StatusTransferencia, StatusSemMatch,
		StatusConciliado, StatusIgnorado, StatusDesvinculado:
		return true
	}
	return false
}

// legal transitions of the reconciliation state machine. Terminal-ish states
// (conciliado, ignorado) leave only through an explicit unlink.
var statusTransitions = map[ReconciliationStatus][]ReconciliationStatus{
	StatusPending:       {StatusSugerido, StatusTransferencia, StatusSemMatch, StatusConciliado, StatusIgnorado},
	StatusSugerido:      {StatusConciliado, StatusIgnorado, StatusPending, StatusDesvinculado, StatusTransferencia, StatusSemMatch},
	StatusTransferencia: {StatusConciliado, StatusIgnorado, StatusPending, StatusDesvinculado, StatusSugerido, StatusSemMatch},
	StatusSemMatch:      {StatusPending, StatusSugerido, StatusTransferencia, StatusConciliado, StatusIgnorado},
	StatusConciliado:    {StatusPending, StatusDesvinculado},
	StatusIgnorado:      {StatusPending, StatusDesvinculado},
	StatusDesvinculado:  {StatusPending, StatusSugerido, StatusTransferencia, StatusSemMatch, StatusConciliado},
}

// CanTransition reports whether the state machine allows moving from s to
// target. Transitions out of conciliado and ignorado are reserved for the
// unlink operation.
func (s ReconciliationStatus) CanTransition(target ReconciliationStatus) bool {
	if s == target {
		return true
	}
	for _, allowed := range statusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// MatchType classifies how a match was produced.
type MatchType string

const (
	MatchTypeAutomatic MatchType = "automatic"
	MatchTypeManual    MatchType = "manual"
	MatchTypeTransfer  MatchType = "transfer"
)

// IsValid checks if the match type is valid.
func (mt MatchType) IsValid() bool {
	return mt == MatchTypeAutomatic || mt == MatchTypeManual || mt == MatchTypeTransfer
}

// MatchStatus is the persisted status of a Match record.
type MatchStatus string

const (
	MatchStatusSuggested MatchStatus = "suggested"
	MatchStatusConfirmed MatchStatus = "confirmed"
)

// ConfidenceTier is a coarse bucket derived from the aggregate score.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// TierForScore derives the confidence tier from an aggregate score in
// [0,100].
func TierForScore(score float64) ConfidenceTier {
	switch {
	case score >= 90:
		return ConfidenceHigh
	case score >= 70:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
