package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-match/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Show the services, states and regions requests can use",
	Long:  "Lists the catalog from the store. Lists missing from the store, or an unreachable store, fall back to the bundled defaults.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cat := catalog.Default()
		st, err := initStore(ctx)
		if err != nil {
			zap.L().Warn("store unavailable, showing bundled catalog", zap.Error(err))
		} else {
			defer st.Close() //nolint:errcheck
			cat = catalog.Load(ctx, st)
		}

		output, _ := cmd.Flags().GetString("output")
		return writeOutput(os.Stdout, output, cat, func(out io.Writer) {
			formatCatalog(out, cat)
		})
	},
}

func init() {
	catalogCmd.Flags().StringP("output", "o", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(catalogCmd)
}

// formatCatalog writes the three catalog lists to w.
func formatCatalog(out io.Writer, cat *catalog.Catalog) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "SERVICE ID\tNAME")
	for _, s := range cat.Services {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", s.ID, s.Name)
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "STATE ID\tCODE\tNAME")
	for _, s := range cat.States {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Code, s.Name)
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "REGION ID\tNAME")
	for _, r := range cat.Regions {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", r.ID, r.Name)
	}
	_ = w.Flush()
}
