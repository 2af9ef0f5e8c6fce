// Package parsers loads bank statement (extrato) and ledger entry
// (lançamento) CSV files into the engine's model types.
//
// Real-world exports vary a lot: different column names per bank, dates as
// DD/MM/YYYY or ISO, amounts with R$ prefixes and comma decimals, optional
// headers and semicolon delimiters. The parser configs describe the file
// layout; the base parser handles the CSV mechanics, encoding validation and
// per-record error collection so a single bad row never aborts an import.
package parsers

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/exattacontabilidadedigital/erp-exatta-sub000/pkg/errors"
	"github.com/exattacontabilidadedigital/erp-exatta-sub000/pkg/logger"
)

// RecordError describes a problem with a single CSV record. Records with
// errors are skipped and reported; parsing continues.
type RecordError struct {
	Line    int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *RecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d (%s='%s'): %s: %v", e.Line, e.Field, e.Value, e.Message, e.Err)
	}
	return fmt.Sprintf("line %d (%s='%s'): %s", e.Line, e.Field, e.Value, e.Message)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// FileLayout holds the CSV mechanics shared by both parser types.
type FileLayout struct {
	HasHeader        bool
	Delimiter        rune
	SkipEmptyRows    bool
	ValidateEncoding bool
}

// DefaultFileLayout returns the layout most exports use.
func DefaultFileLayout() FileLayout {
	return FileLayout{
		HasHeader:        true,
		Delimiter:        ',',
		SkipEmptyRows:    true,
		ValidateEncoding: true,
	}
}

type baseParser struct {
	layout FileLayout
	logger logger.Logger
}

func newBaseParser(layout FileLayout, component string) *baseParser {
	return &baseParser{
		layout: layout,
		logger: logger.GetGlobalLogger().WithComponent(component),
	}
}

// parseState tracks position and errors during a single file parse.
type parseState struct {
	ctx        context.Context
	lineNumber int
	headers    []string
	headerMap  map[string]int
}

func newParseState(ctx context.Context) *parseState {
	if ctx == nil {
		ctx = context.Background()
	}
	return &parseState{
		ctx:       ctx,
		headerMap: make(map[string]int),
	}
}

func (ps *parseState) cancelled() bool {
	select {
	case <-ps.ctx.Done():
		return true
	default:
		return false
	}
}

// columnIndex resolves a column name case-insensitively, or -1.
func (ps *parseState) columnIndex(name string) int {
	if idx, ok := ps.headerMap[name]; ok {
		return idx
	}
	lower := strings.ToLower(name)
	for header, idx := range ps.headerMap {
		if strings.ToLower(header) == lower {
			return idx
		}
	}
	return -1
}

func (bp *baseParser) openFile(filePath string) (*os.File, *csv.Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		bp.logger.WithError(err).WithField("file_path", filePath).Error("failed to open CSV file")
		if os.IsNotExist(err) {
			return nil, nil, errors.FileError(errors.CodeFileNotFound, filePath, err)
		}
		return nil, nil, errors.FileError(errors.CodeFileAccess, filePath, err)
	}

	if bp.layout.ValidateEncoding {
		if err := bp.validateEncoding(file, filePath); err != nil {
			file.Close()
			return nil, nil, err
		}
		if _, err := file.Seek(0, 0); err != nil {
			file.Close()
			return nil, nil, errors.FileError(errors.CodeFileAccess, filePath, err)
		}
	}

	reader := csv.NewReader(file)
	reader.Comma = bp.layout.Delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	return file, reader, nil
}

// validateEncoding samples the first lines and rejects non-UTF-8 content.
// Exports saved in Latin-1 show up as mojibake in descriptions and break
// the diacritics-aware matching downstream.
func (bp *baseParser) validateEncoding(file *os.File, filePath string) error {
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() && lineNum < 100 {
		lineNum++
		if !utf8.Valid(scanner.Bytes()) {
			return errors.ParseError(
				errors.CodeInvalidFormat, filePath, lineNum, "encoding", "",
				fmt.Errorf("invalid UTF-8 encoding"),
			).WithSuggestion("save the file as UTF-8 and retry")
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.FileError(errors.CodeFileAccess, filePath, err)
	}
	return nil
}

func (bp *baseParser) readHeaders(reader *csv.Reader, state *parseState, required []string, filePath string) error {
	if !bp.layout.HasHeader {
		state.headers = append(state.headers, required...)
		bp.buildHeaderMap(state)
		return nil
	}

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return errors.ParseError(
				errors.CodeInvalidFormat, filePath, 0, "headers", "", nil,
			).WithSuggestion("the file is empty; export it again with header and data rows")
		}
		return errors.ParseError(errors.CodeInvalidFormat, filePath, 1, "headers", "", err)
	}

	state.lineNumber++
	state.headers = make([]string, len(headers))
	for i, h := range headers {
		state.headers[i] = strings.TrimSpace(h)
	}
	bp.buildHeaderMap(state)

	var missing []string
	for _, name := range required {
		if state.columnIndex(name) == -1 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		bp.logger.WithFields(logger.Fields{
			"missing_columns":   missing,
			"available_headers": state.headers,
		}).Error("required columns are missing")
		return errors.ParseError(
			errors.CodeMissingColumn, filePath, state.lineNumber, strings.Join(missing, ", "), "", nil,
		).WithSuggestion("check the parser column configuration against the file headers")
	}

	return nil
}

func (bp *baseParser) buildHeaderMap(state *parseState) {
	state.headerMap = make(map[string]int, len(state.headers))
	for i, header := range state.headers {
		state.headerMap[header] = i
	}
}

func (bp *baseParser) readRecord(reader *csv.Reader, state *parseState) ([]string, error) {
	for {
		if state.cancelled() {
			return nil, state.ctx.Err()
		}

		record, err := reader.Read()
		if err != nil {
			return nil, err
		}
		state.lineNumber++

		if bp.layout.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}
		return record, nil
	}
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// fieldValue retrieves a named field from the record, trimmed.
func (bp *baseParser) fieldValue(record []string, state *parseState, name string) (string, *RecordError) {
	idx := state.columnIndex(name)
	if idx == -1 {
		return "", &RecordError{
			Line:    state.lineNumber,
			Field:   name,
			Message: "column not found in headers",
		}
	}
	if idx >= len(record) {
		return "", &RecordError{
			Line:    state.lineNumber,
			Field:   name,
			Message: fmt.Sprintf("record has %d fields, column is at index %d", len(record), idx),
		}
	}
	return strings.TrimSpace(record[idx]), nil
}

// ParseStats summarizes a parsing run.
type ParseStats struct {
	TotalLines    int
	RecordsParsed int
	RecordsValid  int
	Errors        []*RecordError
}

func (ps *ParseStats) addError(err *RecordError) {
	ps.Errors = append(ps.Errors, err)
}

// HasErrors reports whether any record was rejected.
func (ps *ParseStats) HasErrors() bool {
	return len(ps.Errors) > 0
}

// String returns a human-readable summary.
func (ps *ParseStats) String() string {
	return fmt.Sprintf("parsed %d lines, %d records (%d valid), %d errors",
		ps.TotalLines, ps.RecordsParsed, ps.RecordsValid, len(ps.Errors))
}

// SampleErrors returns up to maxSamples error strings for logging.
func (ps *ParseStats) SampleErrors(maxSamples int) []string {
	limit := len(ps.Errors)
	if maxSamples > 0 && maxSamples < limit {
		limit = maxSamples
	}
	samples := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		samples = append(samples, ps.Errors[i].Error())
	}
	return samples
}
