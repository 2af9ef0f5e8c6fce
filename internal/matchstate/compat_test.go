package matchstate

import (
	"testing"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/models"
)

func TestNormalizeLegacyStatus(t *testing.T) {
	tests := []struct {
		input  string
		want   models.ReconciliationStatus
		wantOK bool
	}{
		{"matched", models.StatusConciliado, true},
		{"reconciled", models.StatusConciliado, true},
		{"conciliado", models.StatusConciliado, true},
		{"pendente", models.StatusPending, true},
		{"no_match", models.StatusSemMatch, true},
		{"unmatched", models.StatusSemMatch, true},
		{"unlinked", models.StatusDesvinculado, true},
		{"  MATCHED  ", models.StatusConciliado, true},
		{"Transferencia", models.StatusTransferencia, true},
		{"archived", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := NormalizeLegacyStatus(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("NormalizeLegacyStatus(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("NormalizeLegacyStatus(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}
