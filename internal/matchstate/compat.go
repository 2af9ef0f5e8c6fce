package matchstate

import (
	"strings"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/models"
)

// legacyStatusMap collapses the ad-hoc status strings found in historical
// data into the canonical reconciliation status enum. The mapping lives at
// the persistence boundary; the engine only ever sees canonical values.
var legacyStatusMap = map[string]models.ReconciliationStatus{
	"pending":        models.StatusPending,
	"pendente":       models.StatusPending,
	"matched":        models.StatusConciliado,
	"conciliado":     models.StatusConciliado,
	"reconciled":     models.StatusConciliado,
	"suggested":      models.StatusSugerido,
	"sugerido":       models.StatusSugerido,
	"transferencia":  models.StatusTransferencia,
	"transfer":       models.StatusTransferencia,
	"no_match":       models.StatusSemMatch,
	"sem_match":      models.StatusSemMatch,
	"unmatched":      models.StatusSemMatch,
	"ignored":        models.StatusIgnorado,
	"ignorado":       models.StatusIgnorado,
	"unlinked":       models.StatusDesvinculado,
	"desvinculado":   models.StatusDesvinculado,
}

// NormalizeLegacyStatus maps a possibly legacy status string to the
// canonical enum. The second return value is false for unknown strings.
func NormalizeLegacyStatus(s string) (models.ReconciliationStatus, bool) {
	status, ok := legacyStatusMap[strings.ToLower(strings.TrimSpace(s))]
	return status, ok
}
