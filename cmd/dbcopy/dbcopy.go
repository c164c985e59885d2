package dbcopy

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazardwatch/hazardwatch/internal/conf"
	"github.com/hazardwatch/hazardwatch/internal/datastore"
)

// Command creates the command that copies the SQLite store into MySQL.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		batchSize  int
		skipVerify bool
	)

	cmd := &cobra.Command{
		Use:   "dbcopy",
		Short: "Copy the SQLite database into the configured MySQL database",
		Long: `Copy every row from database.sqlite.path into the database configured under
database.mysql, keeping primary keys and external identifiers. Rows already
present in MySQL are skipped, so the copy can be re-run after an interruption.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := datastore.Options{Debug: settings.Database.Debug}
			src, err := datastore.OpenSQLite(settings.Database.SQLite.Path, opts)
			if err != nil {
				return err
			}
			defer datastore.Close(src)

			dst, err := datastore.OpenMySQL(&settings.Database.MySQL, opts)
			if err != nil {
				return err
			}
			defer datastore.Close(dst)

			stats, err := datastore.Copy(cmd.Context(), src, dst, batchSize)
			printStats(cmd.OutOrStdout(), stats)
			if err != nil {
				return err
			}
			if skipVerify {
				return nil
			}

			counts, err := datastore.VerifyCounts(cmd.Context(), src, dst)
			if err != nil {
				return err
			}
			return printCounts(cmd.OutOrStdout(), counts)
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", datastore.DefaultCopyBatchSize, "Rows per insert statement")
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "Skip the row count comparison after copying")
	return cmd
}

func printStats(out io.Writer, stats []datastore.TableCopy) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "TABLE\tSOURCE\tCOPIED\tSKIPPED\tDURATION\t")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t\n", s.Table, s.Source, s.Copied, s.Skipped, s.Duration.Round(time.Millisecond))
	}
	_ = w.Flush()
}

func printCounts(out io.Writer, counts []datastore.TableCount) error {
	var mismatched []string
	for _, c := range counts {
		if !c.Match() {
			mismatched = append(mismatched, fmt.Sprintf("%s (%d vs %d)", c.Table, c.Source, c.Target))
		}
	}
	if len(mismatched) > 0 {
		return fmt.Errorf("row counts differ: %v", mismatched)
	}
	fmt.Fprintln(out, "Row counts match")
	return nil
}
