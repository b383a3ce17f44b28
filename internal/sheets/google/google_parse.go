package google

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"financas/internal/core"

	"github.com/shopspring/decimal"
)

// Column order of the transaction tab, A through G.
const (
	colDescription = iota
	colAmount
	colCategory
	colSubcategory
	colMonth
	colYear
	colInstallment
	numColumns
)

func transactionRow(tx core.Transaction) []any {
	return []any{
		tx.Description,
		tx.Amount.Float(),
		tx.Category,
		tx.Subcategory,
		tx.Month,
		tx.Year,
		tx.Installment,
	}
}

// parseTransactionRows converts a values matrix into transactions. Header,
// blank and malformed rows are dropped; the second result counts the
// malformed ones. Each transaction's ID is its cell reference.
func parseTransactionRows(sheetName string, values [][]any) ([]core.Transaction, int) {
	out := make([]core.Transaction, 0, len(values))
	skipped := 0
	for i, row := range values {
		cols := toStrings(row)
		if blankRow(cols) {
			continue
		}
		if i == 0 && strings.EqualFold(safeGet(cols, colDescription), "description") {
			continue
		}
		tx, ok := parseRow(row, cols)
		if !ok {
			skipped++
			continue
		}
		tx.ID = fmt.Sprintf("%s!A%d", sheetName, i+1)
		out = append(out, tx)
	}
	return out, skipped
}

func parseRow(row []any, cols []string) (core.Transaction, bool) {
	if len(cols) < colYear+1 {
		return core.Transaction{}, false
	}
	amount, ok := cellAmount(row[colAmount])
	if !ok {
		return core.Transaction{}, false
	}
	month, ok := cellInt(row[colMonth])
	if !ok {
		return core.Transaction{}, false
	}
	year, ok := cellInt(row[colYear])
	if !ok {
		return core.Transaction{}, false
	}
	tx := core.Transaction{
		Description: safeGet(cols, colDescription),
		Amount:      amount,
		Category:    safeGet(cols, colCategory),
		Subcategory: safeGet(cols, colSubcategory),
		Month:       month,
		Year:        year,
		Installment: safeGet(cols, colInstallment),
	}
	if tx.Validate() != nil {
		return core.Transaction{}, false
	}
	return tx, true
}

// cellAmount accepts numbers (UNFORMATTED_VALUE) and decimal strings.
func cellAmount(v any) (core.Money, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return core.Money{}, false
		}
		cents := decimal.NewFromFloat(n).Mul(decimal.NewFromInt(100)).Round(0)
		return core.Money{Cents: cents.IntPart()}, true
	case int:
		return core.Money{Cents: int64(n) * 100}, true
	case int64:
		return core.Money{Cents: n * 100}, true
	default:
		m, err := core.ParseAmount(fmt.Sprint(v))
		return m, err == nil
	}
}

func cellInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		i, err := strconv.Atoi(strings.TrimSpace(fmt.Sprint(v)))
		return i, err == nil
	}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func blankRow(cols []string) bool {
	for _, c := range cols {
		if c != "" {
			return false
		}
	}
	return true
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
