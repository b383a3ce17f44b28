package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"financas/internal/core"

	"github.com/fatih/color"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	incomeColor  = color.New(color.FgGreen)
	expenseColor = color.New(color.FgRed)
	investColor  = color.New(color.FgBlue)
	finalColor   = color.New(color.FgGreen, color.Bold)
	penultColor  = color.New(color.FgYellow)
	dimColor     = color.New(color.Faint)
)

// WriteOverview renders ov as a terminal report. Colours follow
// color.NoColor, so output to a pipe or a test buffer stays plain.
func WriteOverview(w io.Writer, ov core.Overview) error {
	ew := &errWriter{w: w}

	headerColor.Fprintf(ew, "Visão geral %d\n", ov.AsOfYear)
	writeTotals(ew, ov.Totals)

	ew.printf("\n")
	headerColor.Fprintf(ew, "Parcelas em aberto (%s)\n", FormatPeriod(ov.LastPeriod))
	writeInstallments(ew, ov.Installments)

	if len(ov.Months) > 0 {
		ew.printf("\n")
		headerColor.Fprintf(ew, "Por mês\n")
		writeMonths(ew, ov.Months)
	}
	return ew.err
}

// WriteInstallments renders only the installment ranking.
func WriteInstallments(w io.Writer, r core.InstallmentReport) error {
	ew := &errWriter{w: w}
	headerColor.Fprintf(ew, "Parcelas em aberto (%s)\n", FormatPeriod(r.Period))
	writeInstallments(ew, r)
	return ew.err
}

func writeTotals(w io.Writer, t core.Totals) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Receitas\t%s\n", incomeColor.Sprint(FormatBRL(t.Income)))
	fmt.Fprintf(tw, "Despesas\t%s\n", expenseColor.Sprint(FormatBRL(t.Expense)))
	fmt.Fprintf(tw, "Investido\t%s\n", investColor.Sprint(FormatBRL(t.Invested)))
	balance := incomeColor
	if t.Balance.IsNegative() {
		balance = expenseColor
	}
	fmt.Fprintf(tw, "Saldo\t%s\n", balance.Sprint(FormatBRL(t.Balance)))
	_ = tw.Flush()
}

func writeInstallments(w io.Writer, r core.InstallmentReport) {
	if len(r.Ordered) == 0 {
		dimColor.Fprintln(w, "nenhuma parcela em aberto")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range r.Ordered {
		c := dimColor
		switch e.Tier {
		case core.TierFinal:
			c = finalColor
		case core.TierPenultimate:
			c = penultColor
		}
		fmt.Fprintf(tw, "%s\t%d/%d\t%s\t%s\n",
			c.Sprint(e.Transaction.Description),
			e.Installment.Current, e.Installment.Total,
			FormatBRL(e.Transaction.Amount.Abs()),
			tierLabel(e.Tier))
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "Última parcela: %s (%d)\n", finalColor.Sprint(FormatBRL(r.FinalSum)), len(r.Final))
	fmt.Fprintf(w, "Penúltima parcela: %s (%d)\n", penultColor.Sprint(FormatBRL(r.PenultimateSum)), len(r.Penultimate))
	fmt.Fprintf(w, "Total: %s\n", FormatBRL(r.GrandSum))
}

func writeMonths(w io.Writer, months []core.MonthOverview) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Mês\tReceitas\tDespesas\tInvestido\tSaldo\tMaior categoria")
	for _, m := range months {
		top := "-"
		if len(m.ByCategory) > 0 {
			best := m.ByCategory[0]
			for _, c := range m.ByCategory[1:] {
				if c.Amount.Cents > best.Amount.Cents {
					best = c
				}
			}
			top = best.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			titleMonth(m.Month),
			FormatBRL(m.Totals.Income),
			FormatBRL(m.Totals.Expense),
			FormatBRL(m.Totals.Invested),
			FormatBRL(m.Totals.Balance),
			top)
	}
	_ = tw.Flush()
}

func titleMonth(month int) string {
	name := MonthName(month)
	if name == "" {
		return fmt.Sprint(month)
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func tierLabel(t core.Tier) string {
	switch t {
	case core.TierFinal:
		return "última"
	case core.TierPenultimate:
		return "penúltima"
	default:
		return ""
	}
}

// errWriter keeps the first write error so rendering code can ignore it.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}

func (e *errWriter) printf(format string, args ...any) {
	fmt.Fprintf(e, format, args...)
}
