package sheets

import (
	"context"

	"financas/internal/core"
)

// Ports for outbound adapters.
type (
	TransactionWriter interface {
		Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}

	// TransactionLister returns every known transaction. The aggregator
	// needs the full set because the reference year is derived from it.
	TransactionLister interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
	}

	// PeriodLister returns the transactions referenced to one month.
	PeriodLister interface {
		ListPeriod(ctx context.Context, year int, month int) ([]core.Transaction, error)
	}
)

// FilterPeriod keeps the transactions referenced to year/month, preserving order.
func FilterPeriod(txs []core.Transaction, year, month int) []core.Transaction {
	out := make([]core.Transaction, 0)
	for _, tx := range txs {
		if tx.Year == year && tx.Month == month {
			out = append(out, tx)
		}
	}
	return out
}
