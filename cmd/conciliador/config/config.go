// Package config assembles engine and parser configurations from CLI flags.
package config

import (
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/matcher"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/parsers"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/reporter"
)

// MatchingOverrides carries the CLI flags that override engine defaults.
type MatchingOverrides struct {
	SuggestThreshold     float64
	AutoConfirmThreshold float64
	Strict               bool
	StrictTransfers      bool
	MaxAggregateEntries  int
}

// CreateMatchingConfig builds a matching configuration from CLI overrides.
func CreateMatchingConfig(overrides MatchingOverrides) *matcher.MatchingConfig {
	var config *matcher.MatchingConfig
	if overrides.Strict {
		config = matcher.StrictMatchingConfig()
	} else {
		config = matcher.DefaultMatchingConfig()
	}

	if overrides.SuggestThreshold > 0 {
		config.SuggestThreshold = overrides.SuggestThreshold
	}
	if overrides.AutoConfirmThreshold > 0 {
		config.AutoConfirmThreshold = overrides.AutoConfirmThreshold
	}
	if overrides.MaxAggregateEntries >= 2 {
		config.MaxAggregateEntries = overrides.MaxAggregateEntries
	}
	config.StrictTransferKeyword = overrides.StrictTransfers

	return config
}

// CreateLancamentoConfig builds the ledger parser configuration.
func CreateLancamentoConfig() *parsers.LancamentoConfig {
	return parsers.DefaultLancamentoConfig()
}

// CreateReportConfig creates a report configuration for the output format.
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()

	switch format {
	case "console":
		config.Format = reporter.FormatConsole
	case "json":
		config.Format = reporter.FormatJSON
	case "csv":
		config.Format = reporter.FormatCSV
	}

	return config
}
