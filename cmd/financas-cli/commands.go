package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/report"
	"financas/internal/services"
	"financas/internal/sheets/memory"
	"financas/internal/storage"
	"financas/internal/taxonomy"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	file     string
	dbPath   string
	taxonomy string
	asOf     string
	noColor  bool
	verbose  bool

	logger *log.Logger
	now    func() time.Time
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{now: time.Now}

	root := &cobra.Command{
		Use:   "financas-cli",
		Short: "Summarize personal finance transactions",
		Long: `financas-cli reads transactions from a CSV file or the local SQLite
database and prints yearly totals, the monthly breakdown and the ranking of
open installments.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			opts.logger = log.New(log.Config{
				Level:     level,
				Component: log.ComponentCLI,
				Output:    cmd.ErrOrStderr(),
			})
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.file, "file", "f", envOr("FINANCAS_CSV", "data/transactions.csv"), "transactions CSV file")
	pf.StringVar(&opts.dbPath, "db", "", "read from this SQLite database instead of --file")
	pf.StringVar(&opts.taxonomy, "taxonomy", os.Getenv("TAXONOMY_FILE"), "YAML file with reserve and investment labels")
	pf.StringVar(&opts.asOf, "as-of", "", "reference date, YYYY-MM-DD or YYYY-MM (default today)")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug details to stderr")

	root.AddCommand(
		newOverviewCmd(opts),
		newInstallmentsCmd(opts),
		newParseCmd(),
		newImportCmd(opts),
		newExportCmd(opts),
	)
	return root
}

func newOverviewCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Print totals, open installments and the monthly breakdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ov, err := opts.overview(cmd.Context())
			if err != nil {
				return err
			}
			return report.WriteOverview(cmd.OutOrStdout(), ov)
		},
	}
}

func newInstallmentsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "installments",
		Aliases: []string{"parcelas"},
		Short:   "Print the open installment ranking for the latest period",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ov, err := opts.overview(cmd.Context())
			if err != nil {
				return err
			}
			return report.WriteInstallments(cmd.OutOrStdout(), ov.Installments)
		},
	}
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "parse <label>...",
		Aliases: []string{"installment"},
		Short:   "Show how installment labels are read",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "LABEL\tCURRENT\tTOTAL\tSTATUS")
			for _, label := range args {
				inst := core.ParseInstallment(label)
				status := "closed"
				if inst.IsOpen() {
					status = inst.Tier().String()
				}
				fmt.Fprintf(tw, "%q\t%d\t%d\t%s\n", label, inst.Current, inst.Total, status)
			}
			return tw.Flush()
		},
	}
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <csv>",
		Short: "Import a transactions CSV into the SQLite database",
		Long: `import validates every row first and writes the batch in one database
transaction; any bad row aborts the import. Imported rows are left pending
for the sync worker.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.dbPath == "" {
				return errors.New("--db is required for import")
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			txs, rowErrs, err := memory.ReadCSV(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if len(rowErrs) > 0 {
				return fmt.Errorf("%s: %w", args[0], errors.Join(rowErrs...))
			}
			if len(txs) == 0 {
				return fmt.Errorf("%s: no transactions", args[0])
			}

			repo, err := storage.NewSQLiteRepository(opts.dbPath)
			if err != nil {
				return err
			}
			service := services.NewTransactionService(repo, nil)
			defer service.Close()

			ids, err := service.ImportTransactions(cmd.Context(), txs)
			if err != nil {
				return err
			}
			opts.logger.Debug("Import finished", log.FieldOperation, log.OpImport, log.FieldCount, len(ids))
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d transactions into %s\n", len(ids), opts.dbPath)
			return nil
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write every transaction from the source as CSV to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := opts.transactions(cmd.Context())
			if err != nil {
				return err
			}
			return memory.WriteCSV(cmd.OutOrStdout(), txs)
		},
	}
}

func (o *rootOptions) overview(ctx context.Context) (core.Overview, error) {
	asOf, err := parseAsOf(o.asOf, o.now())
	if err != nil {
		return core.Overview{}, err
	}
	tax, err := taxonomy.Load(o.taxonomy)
	if err != nil {
		return core.Overview{}, err
	}
	txs, err := o.transactions(ctx)
	if err != nil {
		return core.Overview{}, err
	}
	o.logger.Debug("Computing overview",
		log.FieldOperation, log.OpAggregate,
		log.FieldCount, len(txs),
		log.FieldAsOf, asOf.Format("2006-01-02"))
	return core.NewAggregator(tax).Overview(txs, asOf), nil
}

// transactions loads from --db when set, else from --file. Bad CSV rows are
// logged and skipped.
func (o *rootOptions) transactions(ctx context.Context) ([]core.Transaction, error) {
	if o.dbPath != "" {
		repo, err := storage.NewSQLiteRepository(o.dbPath)
		if err != nil {
			return nil, err
		}
		defer repo.Close()
		return repo.ListTransactions(ctx)
	}

	f, err := os.Open(o.file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	txs, rowErrs, err := memory.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", o.file, err)
	}
	for _, e := range rowErrs {
		o.logger.Warn("Skipping CSV row", "file", o.file, log.FieldError, e)
	}
	return txs, nil
}

func parseAsOf(v string, now time.Time) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return now, nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if t, err := time.ParseInLocation(layout, v, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --as-of %q, want YYYY-MM-DD", v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
