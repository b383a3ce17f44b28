package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

func tx(desc string, cents int64, cat, sub string, month, year int, inst string) Transaction {
	return Transaction{
		Description: desc,
		Amount:      Money{Cents: cents},
		Category:    cat,
		Subcategory: sub,
		Month:       month,
		Year:        year,
		Installment: inst,
	}
}

func descriptions(entries []InstallmentEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Transaction.Description)
	}
	return out
}

func TestComputeTotals(t *testing.T) {
	txs := []Transaction{
		tx("salary", 100000, "Salário", "", 5, 2024, ""),
		tx("market", -30000, "Food", "", 5, 2024, ""),
		tx("broker", -20000, "Reserva", "Investimento", 5, 2024, ""),
	}

	got := ComputeTotals(txs, 2024, DefaultTaxonomy())
	assert.Equal(t, int64(100000), got.Income.Cents)
	assert.Equal(t, int64(30000), got.Expense.Cents)
	assert.Equal(t, int64(20000), got.Invested.Cents)
	assert.Equal(t, int64(70000), got.Balance.Cents)
}

func TestComputeTotalsRules(t *testing.T) {
	txs := []Transaction{
		// Reserve withdrawals are neither expense nor invested unless the subcategory matches.
		tx("emergency fund", -5000, "Reserva", "Emergência", 3, 2024, ""),
		// Invested counts magnitude regardless of sign, and a positive one is also income.
		tx("redemption", 7000, "Reserva", "Investimento", 3, 2024, ""),
		// Other years are ignored.
		tx("old", -999, "Food", "", 3, 2023, ""),
		tx("zero", 0, "Food", "", 3, 2024, ""),
	}

	got := ComputeTotals(txs, 2024, DefaultTaxonomy())
	assert.Equal(t, int64(7000), got.Income.Cents)
	assert.Equal(t, int64(0), got.Expense.Cents)
	assert.Equal(t, int64(7000), got.Invested.Cents)
}

func TestComputeTotalsOrderIndependent(t *testing.T) {
	txs := []Transaction{
		tx("a", 100, "X", "", 1, 2024, ""),
		tx("b", -250, "Y", "", 2, 2024, ""),
		tx("c", -75, "Reserva", "Investimento", 2, 2024, ""),
	}
	rev := []Transaction{txs[2], txs[1], txs[0]}
	assert.Equal(t, ComputeTotals(txs, 2024, DefaultTaxonomy()), ComputeTotals(rev, 2024, DefaultTaxonomy()))
}

func TestLastPeriod(t *testing.T) {
	t.Run("empty falls back to as-of", func(t *testing.T) {
		assert.Equal(t, Period{Year: 2024, Month: 6}, LastPeriod(nil, asOf))
	})

	t.Run("max month within as-of year", func(t *testing.T) {
		txs := []Transaction{
			tx("a", -1, "X", "", 2, 2024, ""),
			tx("b", -1, "X", "", 4, 2024, ""),
			tx("c", -1, "X", "", 11, 2023, ""),
		}
		assert.Equal(t, Period{Year: 2024, Month: 4}, LastPeriod(txs, asOf))
	})

	t.Run("year and month are derived independently", func(t *testing.T) {
		txs := []Transaction{
			tx("a", -1, "X", "", 3, 2024, ""),
			tx("b", -1, "X", "", 1, 2025, ""),
		}
		// Year comes from all data, month only from 2024 data.
		assert.Equal(t, Period{Year: 2025, Month: 3}, LastPeriod(txs, asOf))
	})

	t.Run("no data in as-of year uses as-of month", func(t *testing.T) {
		txs := []Transaction{tx("a", -1, "X", "", 9, 2022, "")}
		assert.Equal(t, Period{Year: 2022, Month: 6}, LastPeriod(txs, asOf))
	})
}

func TestRankInstallments(t *testing.T) {
	period := Period{Year: 2024, Month: 5}
	txs := []Transaction{
		tx("tv", -10000, "Casa", "", 5, 2024, "parcela 3/12"),
		tx("phone", -5000, "Tech", "", 5, 2024, "11/12"),
		tx("sofa", -8000, "Casa", "", 5, 2024, "10/10"),
		tx("bike", -3000, "Lazer", "", 5, 2024, "parcela 4/4"),
		tx("closed", -100, "Casa", "", 5, 2024, "13/12"),
		tx("no label", -100, "Casa", "", 5, 2024, ""),
		tx("junk", -100, "Casa", "", 5, 2024, "abc"),
		tx("other month", -100, "Casa", "", 4, 2024, "1/2"),
		tx("other year", -100, "Casa", "", 5, 2023, "1/2"),
		tx("course", 2000, "Estudo", "", 5, 2024, "1/2"),
	}

	r := RankInstallments(txs, period)

	assert.Equal(t, period, r.Period)
	assert.Equal(t, []string{"sofa", "bike", "phone", "course", "tv"}, descriptions(r.Ordered))
	assert.Equal(t, []string{"phone", "course"}, descriptions(r.Penultimate))
	assert.Equal(t, []string{"sofa", "bike"}, descriptions(r.Final))
	assert.Equal(t, int64(7000), r.PenultimateSum.Cents)
	assert.Equal(t, int64(11000), r.FinalSum.Cents)
	assert.Equal(t, int64(28000), r.GrandSum.Cents)
	assert.Equal(t, TierOther, r.Ordered[4].Tier)
	assert.Equal(t, Installment{3, 12}, r.Ordered[4].Installment)
}

func TestRankInstallmentsStableTies(t *testing.T) {
	period := Period{Year: 2024, Month: 1}
	txs := []Transaction{
		tx("first", -1, "X", "", 1, 2024, "2/2"),
		tx("other", -1, "X", "", 1, 2024, "1/9"),
		tx("second", -1, "X", "", 1, 2024, "6/6"),
		tx("third", -1, "X", "", 1, 2024, "parcela 1/1"),
	}
	r := RankInstallments(txs, period)
	assert.Equal(t, []string{"first", "second", "third", "other"}, descriptions(r.Ordered))
}

func TestRankInstallmentsPartitionInvariants(t *testing.T) {
	period := Period{Year: 2024, Month: 2}
	var txs []Transaction
	labels := []string{"1/3", "2/3", "3/3", "1/1", "5/8", "7/8", "8/8", "0/4", "4/0", "x", "2/1"}
	for i, l := range labels {
		txs = append(txs, tx(l, int64(-(i+1)*100), "X", "", 2, 2024, l))
	}

	r := RankInstallments(txs, period)

	var grand int64
	inOrdered := map[string]bool{}
	for _, e := range r.Ordered {
		grand += e.Transaction.Amount.Abs().Cents
		inOrdered[e.Transaction.Description] = true
	}
	assert.Equal(t, grand, r.GrandSum.Cents)

	seen := map[string]bool{}
	for _, e := range r.Penultimate {
		assert.True(t, inOrdered[e.Transaction.Description])
		seen[e.Transaction.Description] = true
	}
	for _, e := range r.Final {
		assert.True(t, inOrdered[e.Transaction.Description])
		assert.False(t, seen[e.Transaction.Description], "partitions overlap on %s", e.Transaction.Description)
	}
	assert.LessOrEqual(t, r.PenultimateSum.Cents+r.FinalSum.Cents, r.GrandSum.Cents)
	assert.Len(t, r.Ordered, 7)
}

func TestRankInstallmentsEmpty(t *testing.T) {
	r := RankInstallments(nil, Period{Year: 2024, Month: 1})
	require.NotNil(t, r.Ordered)
	require.NotNil(t, r.Penultimate)
	require.NotNil(t, r.Final)
	assert.Empty(t, r.Ordered)
	assert.Zero(t, r.GrandSum.Cents)
	assert.Zero(t, r.FinalSum.Cents)
	assert.Zero(t, r.PenultimateSum.Cents)
}

func TestAggregatorOverview(t *testing.T) {
	txs := []Transaction{
		tx("salary", 500000, "Salário", "", 5, 2024, ""),
		tx("market", -25000, "Mercado", "", 5, 2024, ""),
		tx("tv", -10000, "Casa", "", 5, 2024, "12/12"),
		tx("broker", -100000, "Reserva", "Investimento", 4, 2024, ""),
		tx("rent", -150000, "Casa", "", 4, 2024, ""),
		tx("last year", -1, "Casa", "", 12, 2023, "1/2"),
	}
	agg := NewAggregator(DefaultTaxonomy())

	ov := agg.Overview(txs, asOf)

	assert.Equal(t, 2024, ov.AsOfYear)
	assert.Equal(t, Period{Year: 2024, Month: 5}, ov.LastPeriod)
	assert.Equal(t, int64(500000), ov.Totals.Income.Cents)
	assert.Equal(t, int64(185000), ov.Totals.Expense.Cents)
	assert.Equal(t, int64(100000), ov.Totals.Invested.Cents)
	assert.Equal(t, []string{"tv"}, descriptions(ov.Installments.Ordered))

	require.Len(t, ov.Months, 2)
	assert.Equal(t, 4, ov.Months[0].Month)
	assert.Equal(t, int64(150000), ov.Months[0].Totals.Expense.Cents)
	assert.Equal(t, int64(100000), ov.Months[0].Totals.Invested.Cents)
	assert.Equal(t, []CategoryAmount{{Name: "Casa", Amount: Money{Cents: 150000}}}, ov.Months[0].ByCategory)
	assert.Equal(t, 5, ov.Months[1].Month)
	assert.Equal(t, []CategoryAmount{
		{Name: "Mercado", Amount: Money{Cents: 25000}},
		{Name: "Casa", Amount: Money{Cents: 10000}},
	}, ov.Months[1].ByCategory)
	assert.Equal(t, int64(465000), ov.Months[1].Totals.Balance.Cents)
}

func TestAggregatorIdempotentAndPure(t *testing.T) {
	txs := []Transaction{
		tx("a", -100, "X", "", 6, 2024, "3/3"),
		tx("b", -200, "X", "", 6, 2024, "1/5"),
		tx("c", -300, "X", "", 6, 2024, "4/5"),
		tx("d", 900, "Y", "", 6, 2024, ""),
	}
	snapshot := append([]Transaction(nil), txs...)
	agg := NewAggregator(DefaultTaxonomy())

	first := agg.Overview(txs, asOf)
	second := agg.Overview(txs, asOf)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, txs, "input must not be reordered")
}

func TestAggregatorEmpty(t *testing.T) {
	ov := NewAggregator(DefaultTaxonomy()).Overview(nil, asOf)
	assert.Zero(t, ov.Totals)
	assert.Empty(t, ov.Installments.Ordered)
	assert.Empty(t, ov.Installments.Final)
	assert.Empty(t, ov.Installments.Penultimate)
	assert.Empty(t, ov.Months)
}

func TestCustomTaxonomy(t *testing.T) {
	tax := Taxonomy{
		ReserveCategories:       []string{"Savings", "Reserva"},
		InvestmentSubcategories: []string{"Stocks", "Investimento"},
		CaseInsensitive:         true,
	}
	txs := []Transaction{
		tx("etf", -1000, "savings", " STOCKS ", 1, 2024, ""),
		tx("cash", -500, "SAVINGS", "cash", 1, 2024, ""),
		tx("food", -200, "Food", "Stocks", 1, 2024, ""),
	}
	got := ComputeTotals(txs, 2024, tax)
	assert.Equal(t, int64(1000), got.Invested.Cents)
	assert.Equal(t, int64(200), got.Expense.Cents)

	// Exact matching keeps the original behaviour.
	got = ComputeTotals(txs, 2024, DefaultTaxonomy())
	assert.Equal(t, int64(0), got.Invested.Cents)
	assert.Equal(t, int64(1700), got.Expense.Cents)
}
