package parsers

import (
	"context"
	"fmt"
	"io"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/models"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/internal/normalizer"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/pkg/errors"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/pkg/logger"
)

// ExtratoParser loads bank statement CSV files into BankTransactions.
type ExtratoParser struct {
	*baseParser
	config *ExtratoConfig
	logger logger.Logger
}

// NewExtratoParser creates a parser for the given layout. A nil config
// selects the default layout.
func NewExtratoParser(config *ExtratoConfig) (*ExtratoParser, error) {
	if config == nil {
		config = DefaultExtratoConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "extrato_parser", config.Name, err)
	}

	return &ExtratoParser{
		baseParser: newBaseParser(config.Layout, "extrato_parser"),
		config:     config,
		logger:     logger.GetGlobalLogger().WithComponent("extrato_parser"),
	}, nil
}

// Parse reads the whole file into memory.
func (ep *ExtratoParser) Parse(filePath string) ([]models.BankTransaction, *ParseStats, error) {
	return ep.ParseWithContext(context.Background(), filePath)
}

// ParseWithContext parses the file with cancellation support. Records that
// fail to parse or validate are reported in the stats and skipped.
func (ep *ExtratoParser) ParseWithContext(ctx context.Context, filePath string) ([]models.BankTransaction, *ParseStats, error) {
	ep.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"layout":    ep.config.Name,
	}).Info("parsing bank statement")

	file, reader, err := ep.openFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	state := newParseState(ctx)
	stats := &ParseStats{}

	required := []string{
		ep.config.ColumnName("fitid"),
		ep.config.ColumnName("amount"),
		ep.config.ColumnName("date"),
		ep.config.ColumnName("memo"),
	}
	if err := ep.readHeaders(reader, state, required, filePath); err != nil {
		return nil, stats, err
	}

	var transactions []models.BankTransaction
	seen := make(map[string]int)

	for {
		record, err := ep.readRecord(reader, state)
		if err != nil {
			if err == io.EOF {
				break
			}
			if state.cancelled() {
				return transactions, stats, errors.ConciliationOpError(errors.CodeProcessingError, "extrato parsing", err)
			}
			stats.addError(&RecordError{Line: state.lineNumber, Message: "malformed CSV record", Err: err})
			continue
		}

		stats.RecordsParsed++

		txn, recErr := ep.transactionFromRecord(record, state)
		if recErr != nil {
			stats.addError(recErr)
			continue
		}

		if err := txn.Validate(); err != nil {
			stats.addError(&RecordError{
				Line:    state.lineNumber,
				Field:   "record",
				Value:   txn.FITID,
				Message: "validation failed",
				Err:     err,
			})
			continue
		}

		// Duplicate FITIDs in one file are an export defect; the first
		// occurrence wins.
		if prev, dup := seen[txn.FITID]; dup {
			stats.addError(&RecordError{
				Line:    state.lineNumber,
				Field:   ep.config.ColumnName("fitid"),
				Value:   txn.FITID,
				Message: fmt.Sprintf("duplicate FITID, first seen at line %d", prev),
			})
			continue
		}
		seen[txn.FITID] = state.lineNumber

		transactions = append(transactions, *txn)
		stats.RecordsValid++
	}

	stats.TotalLines = state.lineNumber

	ep.logger.WithFields(logger.Fields{
		"file_path":     filePath,
		"records_valid": stats.RecordsValid,
		"error_count":   len(stats.Errors),
	}).Info("bank statement parsed")

	if stats.HasErrors() {
		ep.logger.WithField("sample_errors", stats.SampleErrors(3)).Warn("some statement records were skipped")
	}

	return transactions, stats, nil
}

func (ep *ExtratoParser) transactionFromRecord(record []string, state *parseState) (*models.BankTransaction, *RecordError) {
	fitID, recErr := ep.fieldValue(record, state, ep.config.ColumnName("fitid"))
	if recErr != nil {
		return nil, recErr
	}

	amountStr, recErr := ep.fieldValue(record, state, ep.config.ColumnName("amount"))
	if recErr != nil {
		return nil, recErr
	}
	amount, err := normalizer.ParseAmount(amountStr)
	if err != nil {
		return nil, &RecordError{
			Line:    state.lineNumber,
			Field:   ep.config.ColumnName("amount"),
			Value:   amountStr,
			Message: "invalid amount",
			Err:     err,
		}
	}

	dateStr, recErr := ep.fieldValue(record, state, ep.config.ColumnName("date"))
	if recErr != nil {
		return nil, recErr
	}
	postedAt, err := models.ParseDateWithFormats(dateStr)
	if err != nil {
		return nil, &RecordError{
			Line:    state.lineNumber,
			Field:   ep.config.ColumnName("date"),
			Value:   dateStr,
			Message: "invalid date",
			Err:     err,
		}
	}

	memo, recErr := ep.fieldValue(record, state, ep.config.ColumnName("memo"))
	if recErr != nil {
		return nil, recErr
	}

	txn := models.NewBankTransaction(fitID, amount, postedAt, memo)

	if ep.config.PayeeColumn != "" {
		if payee, recErr := ep.fieldValue(record, state, ep.config.ColumnName("payee")); recErr == nil {
			txn.Payee = payee
		}
	}

	return txn, nil
}
