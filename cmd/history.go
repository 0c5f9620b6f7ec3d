package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/inspection-match/internal/model"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect resolved requests",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resolutions, most recent first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		output, _ := cmd.Flags().GetString("output")

		resolutions, err := st.ListResolutions(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "history list")
		}

		if len(resolutions) == 0 {
			fmt.Fprintln(os.Stderr, "No resolutions found.")
			return nil
		}

		return writeOutput(os.Stdout, output, resolutions, func(out io.Writer) {
			formatHistoryList(out, resolutions)
		})
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 50, "max number of resolutions to display (at most 1000)")
	historyListCmd.Flags().StringP("output", "o", "table", "output format: table, json or yaml")

	historyCmd.AddCommand(historyListCmd)
	rootCmd.AddCommand(historyCmd)
}

// formatHistoryList writes a tabular list of resolutions to w.
func formatHistoryList(out io.Writer, resolutions []model.Resolution) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATE\tCOMPANY\tADDRESS\tMUNICIPALITY\tSTATE\tSERVICES")
	_, _ = fmt.Fprintln(w, "----\t-------\t-------\t------------\t-----\t--------")

	for _, r := range resolutions {
		company := r.CompanyName
		if company == "" {
			company = r.CompanyID
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Format("2006-01-02 15:04"),
			truncate(company, 30),
			truncate(r.Address, 40),
			r.Municipality,
			r.State,
			strings.Join(r.ServiceNames, ", "),
		)
	}
	_ = w.Flush()
}
