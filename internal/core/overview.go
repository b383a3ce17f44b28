package core

import (
	"sort"
	"time"
)

// Aggregator computes dashboard data from a snapshot of transactions.
// It holds no state besides its taxonomy and never mutates its input, so a
// single value can be shared freely.
type Aggregator struct {
	Taxonomy Taxonomy
}

// NewAggregator returns an aggregator that classifies with tax.
func NewAggregator(tax Taxonomy) Aggregator {
	return Aggregator{Taxonomy: tax}
}

// Overview derives totals for the as-of calendar year, the last available
// period and its open installments, and a per-month breakdown.
func (a Aggregator) Overview(txs []Transaction, asOf time.Time) Overview {
	year := asOf.Year()
	last := LastPeriod(txs, asOf)
	return Overview{
		AsOfYear:     year,
		Totals:       ComputeTotals(txs, year, a.Taxonomy),
		LastPeriod:   last,
		Installments: RankInstallments(txs, last),
		Months:       MonthlyBreakdown(txs, year, a.Taxonomy),
	}
}

// ComputeTotals sums income, expense and invested amounts over the
// transactions whose reference year equals year.
func ComputeTotals(txs []Transaction, year int, tax Taxonomy) Totals {
	var t Totals
	for _, tx := range txs {
		if tx.Year != year {
			continue
		}
		t.add(tx, tax)
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

func (t *Totals) add(tx Transaction, tax Taxonomy) {
	if tx.Amount.IsPositive() {
		t.Income = t.Income.Add(tx.Amount)
	}
	reserve := tax.IsReserve(tx.Category)
	if tx.Amount.IsNegative() && !reserve {
		t.Expense = t.Expense.Add(tx.Amount.Abs())
	}
	if tax.IsInvestment(tx.Category, tx.Subcategory) {
		t.Invested = t.Invested.Add(tx.Amount.Abs())
	}
}

// LastPeriod returns the most recent period with data. The year is the
// maximum over all transactions, while the month is the maximum over the
// transactions of asOf's calendar year only (asOf's month when there are
// none). The two are derived independently, so the pair may not match any
// single transaction.
func LastPeriod(txs []Transaction, asOf time.Time) Period {
	p := Period{Year: asOf.Year(), Month: int(asOf.Month())}
	if len(txs) == 0 {
		return p
	}

	maxYear := txs[0].Year
	maxMonth := 0
	for _, tx := range txs {
		if tx.Year > maxYear {
			maxYear = tx.Year
		}
		if tx.Year == asOf.Year() && tx.Month > maxMonth {
			maxMonth = tx.Month
		}
	}
	p.Year = maxYear
	if maxMonth > 0 {
		p.Month = maxMonth
	}
	return p
}

// RankInstallments selects the open installments of period, orders them
// final first, then penultimate, then the rest (stable within each tier),
// and computes the partition subtotals.
func RankInstallments(txs []Transaction, period Period) InstallmentReport {
	r := InstallmentReport{
		Period:      period,
		Ordered:     []InstallmentEntry{},
		Penultimate: []InstallmentEntry{},
		Final:       []InstallmentEntry{},
	}

	for _, tx := range txs {
		if tx.Month != period.Month || tx.Year != period.Year || !tx.HasInstallment() {
			continue
		}
		in := ParseInstallment(tx.Installment)
		if !in.IsOpen() {
			continue
		}
		r.Ordered = append(r.Ordered, InstallmentEntry{Transaction: tx, Installment: in, Tier: in.Tier()})
	}

	sort.SliceStable(r.Ordered, func(i, j int) bool {
		return r.Ordered[i].Tier < r.Ordered[j].Tier
	})

	for _, e := range r.Ordered {
		amt := e.Transaction.Amount.Abs()
		r.GrandSum = r.GrandSum.Add(amt)
		switch {
		case e.Installment.IsPenultimate():
			r.Penultimate = append(r.Penultimate, e)
			r.PenultimateSum = r.PenultimateSum.Add(amt)
		case e.Installment.IsFinal():
			r.Final = append(r.Final, e)
			r.FinalSum = r.FinalSum.Add(amt)
		}
	}
	return r
}

// MonthlyBreakdown groups the transactions of year by reference month.
// Only months with at least one transaction are returned, in calendar order.
func MonthlyBreakdown(txs []Transaction, year int, tax Taxonomy) []MonthOverview {
	var months [12]*MonthOverview
	catIndex := [12]map[string]int{}

	for _, tx := range txs {
		if tx.Year != year || tx.Month < 1 || tx.Month > 12 {
			continue
		}
		i := tx.Month - 1
		mo := months[i]
		if mo == nil {
			mo = &MonthOverview{Year: year, Month: tx.Month}
			months[i] = mo
			catIndex[i] = map[string]int{}
		}
		mo.Totals.add(tx, tax)

		if tx.Amount.IsNegative() && !tax.IsReserve(tx.Category) {
			idx, ok := catIndex[i][tx.Category]
			if !ok {
				idx = len(mo.ByCategory)
				catIndex[i][tx.Category] = idx
				mo.ByCategory = append(mo.ByCategory, CategoryAmount{Name: tx.Category})
			}
			mo.ByCategory[idx].Amount = mo.ByCategory[idx].Amount.Add(tx.Amount.Abs())
		}
	}

	out := make([]MonthOverview, 0, 12)
	for _, mo := range months {
		if mo == nil {
			continue
		}
		mo.Totals.Balance = mo.Totals.Income.Sub(mo.Totals.Expense)
		out = append(out, *mo)
	}
	return out
}
