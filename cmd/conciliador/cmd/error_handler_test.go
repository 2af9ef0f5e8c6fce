package cmd

import (
	"fmt"
	"strings"
	"testing"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/pkg/errors"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/pkg/logger"
)

func newTestHandler() *CLIErrorHandler {
	return &CLIErrorHandler{logger: logger.GetGlobalLogger().WithComponent("cli")}
}

func TestHandleErrorExitCodes(t *testing.T) {
	handler := newTestHandler()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, 0},
		{
			"validation error",
			errors.ValidationError(errors.CodeMissingField, "fit_id", nil, nil),
			2,
		},
		{
			"parse error",
			errors.ParseError(errors.CodeInvalidFormat, "extrato.csv", 3, "valor", "abc", nil),
			2,
		},
		{
			"configuration error",
			errors.ConfigurationError(errors.CodeInvalidConfig, "banco", "nubank", nil),
			2,
		},
		{
			"conflict error",
			errors.ConflictError(errors.CodeEntryAlreadyMatched, "FIT1", []string{"m1"}, []string{"L1"}),
			1,
		},
		{
			"file not found",
			errors.FileError(errors.CodeFileNotFound, "extrato.csv", nil),
			2,
		},
		{"generic error", fmt.Errorf("boom"), 1},
		{"generic missing file", fmt.Errorf("open x: no such file or directory"), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handler.HandleError(tt.err); got != tt.want {
				t.Errorf("HandleError() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFormatValidationErrors(t *testing.T) {
	if got := FormatValidationErrors(nil); got != "" {
		t.Errorf("FormatValidationErrors(nil) = %q, want empty", got)
	}

	one := FormatValidationErrors([]error{fmt.Errorf("bad record")})
	if !strings.Contains(one, "bad record") {
		t.Errorf("single-error output = %q", one)
	}

	var many []error
	for i := 0; i < 15; i++ {
		many = append(many, fmt.Errorf("record %d", i))
	}
	out := FormatValidationErrors(many)
	if !strings.Contains(out, "Found 15 validation errors") {
		t.Errorf("output header missing: %q", out)
	}
	if !strings.Contains(out, "and 5 more errors") {
		t.Errorf("output should cap the listing: %q", out)
	}
	if strings.Contains(out, "record 12") {
		t.Errorf("entries past the cap should not be listed: %q", out)
	}
}
