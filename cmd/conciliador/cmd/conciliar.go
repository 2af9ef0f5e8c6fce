package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/cmd/conciliador/config"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/parsers"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/reconciler"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/reporter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the conciliar command
var (
	extratoFile     string
	lancamentosFile string
	bankLayout      string
	outputFormat    string
	outputFile      string

	suggestThreshold     float64
	autoConfirmThreshold float64
	strictMode           bool
	strictTransfers      bool
	maxAggregateEntries  int
)

// conciliarCmd represents the conciliar command
var conciliarCmd = &cobra.Command{
	Use:   "conciliar",
	Short: "Match bank statement transactions against ledger entries",
	Long: `Conciliar compares imported bank statement transactions with internal
ledger entries and classifies every transaction: transfer pair, confirmed
match, suggestion for review, or no match.

This command requires:
- A bank statement file (CSV format, OFX-derived)
- A ledger entry file (CSV format)

Examples:
  # Basic conciliation
  conciliador conciliar --extrato extrato.csv --lancamentos lancamentos.csv

  # Itaú statement layout with JSON output
  conciliador conciliar --extrato extrato.csv --lancamentos diario.csv \
    --banco itau --output-format json --output-file resultado.json

  # Strict mode for account closings
  conciliador conciliar --extrato extrato.csv --lancamentos diario.csv --strict`,

	PreRunE: validateConciliarFlags,
	RunE:    runConciliar,
}

func init() {
	rootCmd.AddCommand(conciliarCmd)

	conciliarCmd.Flags().StringVarP(&extratoFile, "extrato", "e", "", "path to bank statement CSV file (required)")
	conciliarCmd.Flags().StringVarP(&lancamentosFile, "lancamentos", "l", "", "path to ledger entry CSV file (required)")
	conciliarCmd.Flags().StringVarP(&bankLayout, "banco", "b", "padrao", "bank statement layout: padrao, itau, bradesco")

	conciliarCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	conciliarCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	conciliarCmd.Flags().Float64Var(&suggestThreshold, "suggest-threshold", 60, "minimum score for suggestions (0-100)")
	conciliarCmd.Flags().Float64Var(&autoConfirmThreshold, "auto-confirm-threshold", 95, "minimum score for automatic confirmation (0-100)")
	conciliarCmd.Flags().BoolVar(&strictMode, "strict", false, "disable tolerance widening and raise thresholds")
	conciliarCmd.Flags().BoolVar(&strictTransfers, "strict-transfers", true, "transfer-keyword transactions without a counterpart stay unmatched")
	conciliarCmd.Flags().IntVar(&maxAggregateEntries, "max-aggregate-entries", 5, "maximum entries in a multi-entry group")

	conciliarCmd.MarkFlagRequired("extrato")
	conciliarCmd.MarkFlagRequired("lancamentos")

	viper.BindPFlag("extrato", conciliarCmd.Flags().Lookup("extrato"))
	viper.BindPFlag("lancamentos", conciliarCmd.Flags().Lookup("lancamentos"))
	viper.BindPFlag("banco", conciliarCmd.Flags().Lookup("banco"))
	viper.BindPFlag("output-format", conciliarCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", conciliarCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("suggest-threshold", conciliarCmd.Flags().Lookup("suggest-threshold"))
	viper.BindPFlag("auto-confirm-threshold", conciliarCmd.Flags().Lookup("auto-confirm-threshold"))
	viper.BindPFlag("strict", conciliarCmd.Flags().Lookup("strict"))
	viper.BindPFlag("strict-transfers", conciliarCmd.Flags().Lookup("strict-transfers"))
	viper.BindPFlag("max-aggregate-entries", conciliarCmd.Flags().Lookup("max-aggregate-entries"))
}

func validateConciliarFlags(cmd *cobra.Command, args []string) error {
	extratoFile = viper.GetString("extrato")
	lancamentosFile = viper.GetString("lancamentos")
	bankLayout = viper.GetString("banco")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	suggestThreshold = viper.GetFloat64("suggest-threshold")
	autoConfirmThreshold = viper.GetFloat64("auto-confirm-threshold")
	strictMode = viper.GetBool("strict")
	strictTransfers = viper.GetBool("strict-transfers")
	maxAggregateEntries = viper.GetInt("max-aggregate-entries")

	if extratoFile == "" {
		return fmt.Errorf("extrato file is required")
	}
	if lancamentosFile == "" {
		return fmt.Errorf("lancamentos file is required")
	}

	if err := validateFileExists(extratoFile, "bank statement file"); err != nil {
		return err
	}
	if err := validateFileExists(lancamentosFile, "ledger entry file"); err != nil {
		return err
	}

	if parsers.ExtratoConfigByName(bankLayout) == nil {
		return fmt.Errorf("unknown bank layout '%s'. Valid layouts: padrao, itau, bradesco", bankLayout)
	}

	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	if suggestThreshold < 0 || suggestThreshold > 100 {
		return fmt.Errorf("suggest threshold must be between 0 and 100")
	}
	if autoConfirmThreshold < suggestThreshold || autoConfirmThreshold > 100 {
		return fmt.Errorf("auto-confirm threshold must be between the suggest threshold and 100")
	}
	if maxAggregateEntries < 2 {
		return fmt.Errorf("max aggregate entries must be at least 2")
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runConciliar(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting conciliation...\n")
		fmt.Fprintf(os.Stderr, "Bank statement: %s (%s layout)\n", extratoFile, bankLayout)
		fmt.Fprintf(os.Stderr, "Ledger entries: %s\n", lancamentosFile)
	}

	matchingConfig := config.CreateMatchingConfig(config.MatchingOverrides{
		SuggestThreshold:     suggestThreshold,
		AutoConfirmThreshold: autoConfirmThreshold,
		Strict:               strictMode,
		StrictTransfers:      strictTransfers,
		MaxAggregateEntries:  maxAggregateEntries,
	})

	extratoParser, err := parsers.NewExtratoParser(parsers.ExtratoConfigByName(bankLayout))
	if err != nil {
		return fmt.Errorf("failed to create statement parser: %w", err)
	}
	lancamentoParser, err := parsers.NewLancamentoParser(config.CreateLancamentoConfig())
	if err != nil {
		return fmt.Errorf("failed to create ledger parser: %w", err)
	}

	transactions, txnStats, err := extratoParser.ParseWithContext(ctx, extratoFile)
	if err != nil {
		return fmt.Errorf("failed to parse bank statement: %w", err)
	}
	entries, entryStats, err := lancamentoParser.ParseWithContext(ctx, lancamentosFile)
	if err != nil {
		return fmt.Errorf("failed to parse ledger entries: %w", err)
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Statement: %s\n", txnStats)
		fmt.Fprintf(os.Stderr, "Ledger:    %s\n", entryStats)
	}

	service, err := reconciler.NewReconciler(matchingConfig, nil)
	if err != nil {
		return fmt.Errorf("failed to create conciliation service: %w", err)
	}

	result, err := service.EvaluateBatch(ctx, transactions, entries)
	if err != nil {
		return fmt.Errorf("conciliation failed: %w", err)
	}

	reportConfig := config.CreateReportConfig(outputFormat)
	reportGenerator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return fmt.Errorf("failed to create report generator: %w", err)
	}

	var output *os.File
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	} else {
		output = os.Stdout
	}

	if err := reportGenerator.GenerateReport(result, output); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nConciliation completed in %v.\n", time.Since(start).Round(time.Millisecond))
		fmt.Fprintf(os.Stderr, "Processed %d transactions against %d ledger entries.\n",
			result.Stats.TotalTransactions, result.Stats.TotalEntries)
		for status, count := range result.Stats.StatusCounts {
			fmt.Fprintf(os.Stderr, "  %s: %d\n", status, count)
		}
		if len(result.ValidationErrors) > 0 {
			fmt.Fprintf(os.Stderr, "%s\n", FormatValidationErrors(result.ValidationErrors))
		}
	}

	return nil
}
