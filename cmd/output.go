package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/inspection-match/internal/model"
)

// writeOutput encodes v as json or yaml, or calls table for "table".
func writeOutput(out io.Writer, format string, v any, table func(io.Writer)) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	case "table", "":
		table(out)
		return nil
	default:
		return eris.Errorf("unknown output format %q (json, yaml or table)", format)
	}
}

// formatCandidates writes a ranked candidate table to out.
func formatCandidates(out io.Writer, candidates []model.RankedCandidate) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tID\tCOMPANY\tDISTANCE\tTIME\tLOAD\tSCORE\t")
	_, _ = fmt.Fprintln(w, "-\t--\t-------\t--------\t----\t----\t-----\t")

	for i, c := range candidates {
		best := ""
		if c.Best {
			best = "best option"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%.2f\t%s\n",
			i+1,
			c.Company.ID,
			truncate(c.Company.Name, 30),
			c.DistanceText,
			c.TimeText,
			c.Company.Load,
			c.Score,
			best,
		)
	}
	_ = w.Flush()
}

// formatJustifications writes one justification line per candidate.
func formatJustifications(out io.Writer, candidates []model.RankedCandidate) {
	for i, c := range candidates {
		_, _ = fmt.Fprintf(out, "%d. %s: %s\n", i+1, c.Company.Name, c.Justification)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}
