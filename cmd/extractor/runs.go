package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go-metadata-extractor/internal/stats"
	"go-metadata-extractor/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs from the --db history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if dbPath == "" {
			return fmt.Errorf("--db is required to list runs")
		}
		s, err := store.Open(dbPath)
		if err != nil {
			return err
		}
		defer s.Close()

		runs, err := s.ListRuns(runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTOOL\tSTATUS\tCREATED\tDURATION\tRECORDS\tROWS")
		for _, r := range runs {
			duration, records, rows := "-", "-", "-"
			if r.Summary != nil {
				duration = stats.FormatElapsed(r.Summary.Duration)
				records = fmt.Sprint(r.Summary.RecordsMatched)
				rows = fmt.Sprint(r.Summary.RowsEmitted)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Tool, r.Status, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), duration, records, rows)
		}
		return tw.Flush()
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to show (0 = all)")
	rootCmd.AddCommand(runsCmd)
}
