package core

import (
	"errors"
	"strings"
)

type (
	Money struct {
		Cents int64
	}

	// Transaction is a single ledger entry as supplied by a loader. The
	// aggregator treats it as an immutable snapshot.
	Transaction struct {
		ID          string
		Description string
		Amount      Money // positive = income, negative = expense
		Category    string
		Subcategory string
		Month       int // reference month, 1-12
		Year        int // reference year
		Installment string // free-text label such as "parcela 3/12"; empty when absent
	}

	// Period identifies an accounting month.
	Period struct {
		Year  int
		Month int
	}
)

var (
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidYear      = errors.New("invalid year")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")

	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

// Validate checks a transaction before it is written to a store. The
// aggregator never calls it: malformed records degrade instead of failing.
func (t Transaction) Validate() error {
	if t.Month < 1 || t.Month > 12 {
		return ErrInvalidMonth
	}
	if t.Year <= 0 {
		return ErrInvalidYear
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if t.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// Period returns the reference period of the transaction.
func (t Transaction) Period() Period {
	return Period{Year: t.Year, Month: t.Month}
}

// HasInstallment reports whether an installment label is present.
func (t Transaction) HasInstallment() bool {
	return t.Installment != ""
}

// Validate checks that the period is a real calendar month.
func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	if p.Year <= 0 {
		return ErrInvalidYear
	}
	return nil
}
