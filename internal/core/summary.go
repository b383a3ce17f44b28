package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// Totals are the period sums shown on the dashboard cards. Expense and
// Invested are magnitudes.
type Totals struct {
	Income   Money
	Expense  Money
	Invested Money
	Balance  Money // Income - Expense
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int
	Month      int // 1-12
	Totals     Totals
	ByCategory []CategoryAmount // expense magnitude per category, first-seen order
}

// InstallmentEntry is an open installment transaction with its parsed label.
type InstallmentEntry struct {
	Transaction Transaction
	Installment Installment
	Tier        Tier
}

// InstallmentReport lists the open installments of one period.
// Penultimate and Final are disjoint subsets of Ordered; GrandSum covers
// every entry in Ordered, including the ones in neither partition.
type InstallmentReport struct {
	Period         Period
	Ordered        []InstallmentEntry
	Penultimate    []InstallmentEntry
	PenultimateSum Money
	Final          []InstallmentEntry
	FinalSum       Money
	GrandSum       Money
}

// Overview is everything the dashboard needs for one as-of date.
type Overview struct {
	AsOfYear     int
	Totals       Totals
	LastPeriod   Period
	Installments InstallmentReport
	Months       []MonthOverview
}
