// Package reporter renders reconciliation run results for people and for
// downstream systems.
//
// Supported output formats:
//   - Console: human-readable summary for terminal display
//   - JSON: structured output for programmatic consumption
//   - CSV: per-transaction rows for spreadsheet review
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/matcher"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/models"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/reconciler"
)

// OutputFormat selects how a report is rendered.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds report generation options.
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	IncludeSettled   bool `json:"include_settled"`
	IncludeSemMatch  bool `json:"include_sem_match"`
	SortByScore      bool `json:"sort_by_score"`
	CSVDelimiter     rune `json:"csv_delimiter"`
	CSVHeaders       bool `json:"csv_headers"`
}

// DefaultReportConfig returns the default report options.
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:          FormatConsole,
		IncludeSettled:  true,
		IncludeSemMatch: true,
		SortByScore:     true,
		CSVDelimiter:    ',',
		CSVHeaders:      true,
	}
}

// Validate validates the report configuration.
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	return nil
}

// ReportGenerator renders batch results in the configured format.
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a report generator. A nil config selects the
// defaults.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config}, nil
}

// GenerateReport writes the batch result to the writer in the configured
// format.
func (rg *ReportGenerator) GenerateReport(result *reconciler.BatchResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("batch result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(result *reconciler.BatchResult, writer io.Writer) error {
	fmt.Fprintf(writer, "CONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(writer, "Duration:  %v\n\n", result.Stats.Duration)

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	rg.printSummary(&result.Stats, writer)
	fmt.Fprintf(writer, "\n")

	results := rg.selectResults(result)

	grouped := make(map[models.ReconciliationStatus][]*matcher.MatchResult)
	for _, mr := range results {
		grouped[mr.Status] = append(grouped[mr.Status], mr)
	}

	order := []models.ReconciliationStatus{
		models.StatusConciliado,
		models.StatusTransferencia,
		models.StatusSugerido,
		models.StatusSemMatch,
		models.StatusIgnorado,
	}
	for _, status := range order {
		group := grouped[status]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(writer, "=== %s (%d) ===\n", strings.ToUpper(status.String()), len(group))
		for _, mr := range group {
			rg.printResultLine(mr, writer)
		}
		fmt.Fprintf(writer, "\n")
	}

	if len(result.ValidationErrors) > 0 {
		fmt.Fprintf(writer, "=== SKIPPED RECORDS (%d) ===\n", len(result.ValidationErrors))
		for _, err := range result.ValidationErrors {
			fmt.Fprintf(writer, "  %v\n", err)
		}
	}

	return nil
}

func (rg *ReportGenerator) printSummary(stats *reconciler.BatchStats, writer io.Writer) {
	fmt.Fprintf(writer, "Bank transactions: %d\n", stats.TotalTransactions)
	fmt.Fprintf(writer, "Ledger entries:    %d\n", stats.TotalEntries)
	fmt.Fprintf(writer, "Skipped records:   %d\n", stats.SkippedRecords)

	statuses := make([]string, 0, len(stats.StatusCounts))
	for status := range stats.StatusCounts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	for _, status := range statuses {
		count := stats.StatusCounts[status]
		fmt.Fprintf(writer, "  %-14s %d (%.1f%%)\n", status+":", count,
			percentage(count, stats.TotalTransactions))
	}
}

func (rg *ReportGenerator) printResultLine(mr *matcher.MatchResult, writer io.Writer) {
	switch mr.Status {
	case models.StatusSemMatch:
		fmt.Fprintf(writer, "  %-20s %s\n", mr.BankTransactionID, mr.Reason)
	default:
		fmt.Fprintf(writer, "  %-20s -> %s  score=%.1f (%s)  %s\n",
			mr.BankTransactionID,
			strings.Join(mr.LedgerEntryIDs, "+"),
			mr.Score,
			mr.Confidence,
			mr.Reason)
	}
}

func (rg *ReportGenerator) generateJSONReport(result *reconciler.BatchResult, writer io.Writer) error {
	out := struct {
		GeneratedAt time.Time              `json:"generated_at"`
		Stats       reconciler.BatchStats  `json:"stats"`
		Results     []*matcher.MatchResult `json:"results"`
		Skipped     []string               `json:"skipped,omitempty"`
	}{
		GeneratedAt: time.Now(),
		Stats:       result.Stats,
		Results:     rg.selectResults(result),
	}
	for _, err := range result.ValidationErrors {
		out.Skipped = append(out.Skipped, err.Error())
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func (rg *ReportGenerator) generateCSVReport(result *reconciler.BatchResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{
			"fit_id",
			"status",
			"ledger_entry_ids",
			"score",
			"confidence",
			"match_type",
			"reason",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, mr := range rg.selectResults(result) {
		record := []string{
			mr.BankTransactionID,
			mr.Status.String(),
			strings.Join(mr.LedgerEntryIDs, ";"),
			fmt.Sprintf("%.2f", mr.Score),
			string(mr.Confidence),
			string(mr.MatchType),
			mr.Reason,
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write result record: %w", err)
		}
	}

	return nil
}

// selectResults applies the include filters and sort order.
func (rg *ReportGenerator) selectResults(result *reconciler.BatchResult) []*matcher.MatchResult {
	selected := make([]*matcher.MatchResult, 0, len(result.Results))
	for _, mr := range result.Results {
		if !rg.config.IncludeSettled && (mr.Status == models.StatusConciliado || mr.Status == models.StatusIgnorado) {
			continue
		}
		if !rg.config.IncludeSemMatch && mr.Status == models.StatusSemMatch {
			continue
		}
		selected = append(selected, mr)
	}

	if rg.config.SortByScore {
		sort.SliceStable(selected, func(i, j int) bool {
			return selected[i].Score > selected[j].Score
		})
	}

	return selected
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
