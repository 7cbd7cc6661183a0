package ledger

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/Veraticus/tripwallet/internal/model"
	"github.com/shopspring/decimal"
)

// SchemaVersion identifies the column layout of a stored ledger.
type SchemaVersion int

const (
	// SchemaLegacy is the Korean-header layout written by the first app,
	// with or without a payer column and without record IDs.
	SchemaLegacy SchemaVersion = 1
	// SchemaCurrent is the layout written today.
	SchemaCurrent SchemaVersion = 2
)

// Header is the column row of SchemaCurrent.
var Header = []string{"id", "date", "payer", "description", "currency", "foreign_amount", "rate", "local_amount"}

type column int

const (
	colID column = iota
	colDate
	colPayer
	colDescription
	colCurrency
	colForeign
	colRate
	colLocal
)

var columnAliases = map[string]column{
	"id":             colID,
	"date":           colDate,
	"날짜":             colDate,
	"payer":          colPayer,
	"결제자":            colPayer,
	"사용자":            colPayer,
	"이름":             colPayer,
	"description":    colDescription,
	"항목":             colDescription,
	"내역":             colDescription,
	"currency":       colCurrency,
	"통화":             colCurrency,
	"foreign_amount": colForeign,
	"외화금액":           colForeign,
	"금액":             colForeign,
	"rate":           colRate,
	"환율":             colRate,
	"local_amount":   colLocal,
	"한국돈(원)":         colLocal,
	"원화":             colLocal,
}

var requiredColumns = []column{colDate, colDescription, colCurrency, colForeign, colRate, colLocal}

// EncodeRows renders records as string rows, header first.
func EncodeRows(records []model.ExpenseRecord) [][]string {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, append([]string(nil), Header...))
	for _, r := range records {
		rows = append(rows, []string{
			r.ID,
			r.DateString(),
			r.Payer,
			r.Description,
			string(r.Currency),
			r.ForeignAmount.String(),
			r.Rate.String(),
			strconv.FormatInt(r.LocalAmount, 10),
		})
	}
	return rows
}

// Encode writes records as a SchemaCurrent CSV document.
func Encode(w io.Writer, records []model.ExpenseRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(EncodeRows(records)); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// Marshal returns records as CSV bytes.
func Marshal(records []model.ExpenseRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a CSV ledger of any known schema and migrates it to
// SchemaCurrent records.
func Decode(r io.Reader) ([]model.ExpenseRecord, SchemaVersion, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrCorruptLedger, err)
	}
	return DecodeRows(rows)
}

// Unmarshal decodes CSV bytes, discarding the detected schema version.
func Unmarshal(data []byte) ([]model.ExpenseRecord, error) {
	records, _, err := Decode(bytes.NewReader(data))
	return records, err
}

// DecodeRows decodes rows whose first row is a header. Empty input is an
// empty ledger.
func DecodeRows(rows [][]string) ([]model.ExpenseRecord, SchemaVersion, error) {
	if len(rows) == 0 {
		return []model.ExpenseRecord{}, SchemaCurrent, nil
	}

	index, version, err := mapHeader(rows[0])
	if err != nil {
		return nil, 0, err
	}

	records := make([]model.ExpenseRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		record, err := decodeRow(row, index)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: row %d: %w", ErrCorruptLedger, i+2, err)
		}
		if record.ID == "" {
			record.ID = record.GenerateHash(len(records))
		}
		records = append(records, record)
	}

	return records, version, nil
}

func mapHeader(header []string) (map[column]int, SchemaVersion, error) {
	index := make(map[column]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		col, ok := columnAliases[strings.ToLower(name)]
		if !ok {
			continue
		}
		if _, dup := index[col]; !dup {
			index[col] = i
		}
	}

	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, 0, fmt.Errorf("%w: header %v is missing required columns", ErrCorruptLedger, header)
		}
	}

	version := SchemaLegacy
	if _, ok := index[colID]; ok {
		version = SchemaCurrent
	}
	return index, version, nil
}

func decodeRow(row []string, index map[column]int) (model.ExpenseRecord, error) {
	get := func(col column) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var record model.ExpenseRecord
	var err error

	record.ID = get(colID)
	record.Payer = get(colPayer)
	record.Description = get(colDescription)

	if record.Date, err = parseDate(get(colDate)); err != nil {
		return record, err
	}
	if record.Currency, err = currency.Parse(get(colCurrency)); err != nil {
		return record, err
	}
	if record.ForeignAmount, err = parseDecimal(get(colForeign)); err != nil {
		return record, fmt.Errorf("foreign amount: %w", err)
	}
	if record.Rate, err = parseDecimal(get(colRate)); err != nil {
		return record, fmt.Errorf("rate: %w", err)
	}
	local, err := parseDecimal(get(colLocal))
	if err != nil {
		return record, fmt.Errorf("local amount: %w", err)
	}
	record.LocalAmount = local.IntPart()

	return record, nil
}

func parseDate(s string) (time.Time, error) {
	// Older exports carry a time component.
	if len(s) > len(model.DateFormat) {
		s = s[:len(model.DateFormat)]
	}
	d, err := time.Parse(model.DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", s, err)
	}
	return d, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
