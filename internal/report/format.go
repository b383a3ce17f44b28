// Package report renders aggregated figures for people: Brazilian currency
// formatting and a coloured terminal overview.
package report

import (
	"fmt"

	"financas/internal/core"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var brPrinter = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL formats m as Brazilian reais, e.g. "R$ 1.234,56" or "-R$ 15,00".
func FormatBRL(m core.Money) string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
	}
	abs := uint64(cents)
	if cents < 0 {
		abs = uint64(-(cents + 1)) + 1
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, brPrinter.Sprintf("%d", abs/100), abs%100)
}

// FormatPeriod renders a period as "MM/YYYY".
func FormatPeriod(p core.Period) string {
	return fmt.Sprintf("%02d/%04d", p.Month, p.Year)
}

var monthNames = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// MonthName returns the Portuguese name of month (1-12), or "" when out of range.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return monthNames[month-1]
}
