package parsers

import (
	"context"
	"io"
	"strings"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/models"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/normalizer"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/pkg/errors"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/pkg/logger"
)

// LancamentoParser loads ledger entry CSV exports into LedgerEntries.
type LancamentoParser struct {
	*baseParser
	config *LancamentoConfig
	logger logger.Logger
}

// NewLancamentoParser creates a parser for the given layout. A nil config
// selects the default layout.
func NewLancamentoParser(config *LancamentoConfig) (*LancamentoParser, error) {
	if config == nil {
		config = DefaultLancamentoConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "lancamento_parser", nil, err)
	}

	return &LancamentoParser{
		baseParser: newBaseParser(config.Layout, "lancamento_parser"),
		config:     config,
		logger:     logger.GetGlobalLogger().WithComponent("lancamento_parser"),
	}, nil
}

// Parse reads the whole file into memory.
func (lp *LancamentoParser) Parse(filePath string) ([]models.LedgerEntry, *ParseStats, error) {
	return lp.ParseWithContext(context.Background(), filePath)
}

// ParseWithContext parses the file with cancellation support.
func (lp *LancamentoParser) ParseWithContext(ctx context.Context, filePath string) ([]models.LedgerEntry, *ParseStats, error) {
	lp.logger.WithField("file_path", filePath).Info("parsing ledger entries")

	file, reader, err := lp.openFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	state := newParseState(ctx)
	stats := &ParseStats{}

	required := []string{
		lp.config.ColumnName("id"),
		lp.config.ColumnName("amount"),
		lp.config.ColumnName("date"),
		lp.config.ColumnName("description"),
	}
	if err := lp.readHeaders(reader, state, required, filePath); err != nil {
		return nil, stats, err
	}

	var entries []models.LedgerEntry

	for {
		record, err := lp.readRecord(reader, state)
		if err != nil {
			if err == io.EOF {
				break
			}
			if state.cancelled() {
				return entries, stats, errors.ConciliationOpError(errors.CodeProcessingError, "lancamento parsing", err)
			}
			stats.addError(&RecordError{Line: state.lineNumber, Message: "malformed CSV record", Err: err})
			continue
		}

		stats.RecordsParsed++

		entry, recErr := lp.entryFromRecord(record, state)
		if recErr != nil {
			stats.addError(recErr)
			continue
		}

		if err := entry.Validate(); err != nil {
			stats.addError(&RecordError{
				Line:    state.lineNumber,
				Field:   "record",
				Value:   entry.ID,
				Message: "validation failed",
				Err:     err,
			})
			continue
		}

		entries = append(entries, *entry)
		stats.RecordsValid++
	}

	stats.TotalLines = state.lineNumber

	lp.logger.WithFields(logger.Fields{
		"file_path":     filePath,
		"records_valid": stats.RecordsValid,
		"error_count":   len(stats.Errors),
	}).Info("ledger entries parsed")

	if stats.HasErrors() {
		lp.logger.WithField("sample_errors", stats.SampleErrors(3)).Warn("some ledger records were skipped")
	}

	return entries, stats, nil
}

func (lp *LancamentoParser) entryFromRecord(record []string, state *parseState) (*models.LedgerEntry, *RecordError) {
	id, recErr := lp.fieldValue(record, state, lp.config.ColumnName("id"))
	if recErr != nil {
		return nil, recErr
	}

	amountStr, recErr := lp.fieldValue(record, state, lp.config.ColumnName("amount"))
	if recErr != nil {
		return nil, recErr
	}
	amount, err := normalizer.ParseAmount(amountStr)
	if err != nil {
		return nil, &RecordError{
			Line:    state.lineNumber,
			Field:   lp.config.ColumnName("amount"),
			Value:   amountStr,
			Message: "invalid amount",
			Err:     err,
		}
	}

	dateStr, recErr := lp.fieldValue(record, state, lp.config.ColumnName("date"))
	if recErr != nil {
		return nil, recErr
	}
	date, err := models.ParseDateWithFormats(dateStr)
	if err != nil {
		return nil, &RecordError{
			Line:    state.lineNumber,
			Field:   lp.config.ColumnName("date"),
			Value:   dateStr,
			Message: "invalid date",
			Err:     err,
		}
	}

	description, recErr := lp.fieldValue(record, state, lp.config.ColumnName("description"))
	if recErr != nil {
		return nil, recErr
	}

	entry := models.NewLedgerEntry(id, amount, date, description, "")

	if lp.config.KindColumn != "" {
		if kindStr, recErr := lp.fieldValue(record, state, lp.config.ColumnName("kind")); recErr == nil && kindStr != "" {
			kind := models.EntryKind(strings.ToLower(kindStr))
			if !kind.IsValid() {
				return nil, &RecordError{
					Line:    state.lineNumber,
					Field:   lp.config.ColumnName("kind"),
					Value:   kindStr,
					Message: "unknown entry kind",
				}
			}
			entry.Kind = kind
		}
	}

	if lp.config.DocumentColumn != "" {
		if doc, recErr := lp.fieldValue(record, state, lp.config.ColumnName("document")); recErr == nil {
			entry.DocumentNumber = doc
		}
	}

	if lp.config.SituacaoColumn != "" {
		if sit, recErr := lp.fieldValue(record, state, lp.config.ColumnName("situacao")); recErr == nil {
			entry.Situacao = sit
		}
	}

	return entry, nil
}
