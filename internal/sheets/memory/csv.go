package memory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"financas/internal/core"
)

// Columns is the header of transaction CSV files, in order.
var Columns = []string{"description", "amount", "category", "subcategory", "month", "year", "installment"}

// RowError describes a CSV line that could not be turned into a transaction.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// ReadCSV decodes transactions from r. The header row is optional and columns
// may appear in any order when it is present. Rows that fail to parse or
// validate are reported in rowErrs and skipped. A failure of r itself stops
// the read and is returned as err.
func ReadCSV(r io.Reader) (txs []core.Transaction, rowErrs []error, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	index := defaultIndex()
	line := 0
	for {
		rec, readErr := cr.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		line++
		if readErr != nil {
			var parseErr *csv.ParseError
			if !errors.As(readErr, &parseErr) {
				return txs, rowErrs, fmt.Errorf("read csv at line %d: %w", line, readErr)
			}
			rowErrs = append(rowErrs, &RowError{Line: line, Err: readErr})
			continue
		}
		if line == 1 && isHeader(rec) {
			index = headerIndex(rec)
			continue
		}
		if blank(rec) || strings.HasPrefix(strings.TrimSpace(rec[0]), "#") {
			continue
		}
		tx, decodeErr := decodeRecord(rec, index)
		if decodeErr != nil {
			rowErrs = append(rowErrs, &RowError{Line: line, Err: decodeErr})
			continue
		}
		txs = append(txs, tx)
	}
	return txs, rowErrs, nil
}

// WriteCSV encodes txs with a header row.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, tx := range txs {
		rec := []string{
			tx.Description,
			tx.Amount.String(),
			tx.Category,
			tx.Subcategory,
			strconv.Itoa(tx.Month),
			strconv.Itoa(tx.Year),
			tx.Installment,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func defaultIndex() map[string]int {
	idx := make(map[string]int, len(Columns))
	for i, c := range Columns {
		idx[c] = i
	}
	return idx
}

func isHeader(rec []string) bool {
	for _, v := range rec {
		if strings.EqualFold(strings.TrimSpace(v), "description") {
			return true
		}
	}
	return false
}

func headerIndex(rec []string) map[string]int {
	idx := make(map[string]int, len(rec))
	for i, v := range rec {
		idx[strings.ToLower(strings.TrimSpace(v))] = i
	}
	return idx
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func field(rec []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func decodeRecord(rec []string, idx map[string]int) (core.Transaction, error) {
	amount, err := core.ParseAmount(field(rec, idx, "amount"))
	if err != nil {
		return core.Transaction{}, err
	}
	month, err := strconv.Atoi(field(rec, idx, "month"))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %q", core.ErrInvalidMonth, field(rec, idx, "month"))
	}
	year, err := strconv.Atoi(field(rec, idx, "year"))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %q", core.ErrInvalidYear, field(rec, idx, "year"))
	}
	tx := core.Transaction{
		Description: field(rec, idx, "description"),
		Amount:      amount,
		Category:    field(rec, idx, "category"),
		Subcategory: field(rec, idx, "subcategory"),
		Month:       month,
		Year:        year,
		Installment: field(rec, idx, "installment"),
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}
