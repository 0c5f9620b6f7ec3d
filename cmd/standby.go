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

var standbyCmd = &cobra.Command{
	Use:   "standby",
	Short: "Manage standby entries",
	Long:  "Commands for listing, viewing, discarding and resolving committed standby entries.",
}

// -- standby list --

var standbyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List standby entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Shortlist.Entries(ctx)
		if err != nil {
			return eris.Wrap(err, "standby list")
		}

		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No standby entries.")
			return nil
		}

		formatStandbyList(os.Stdout, entries)
		return nil
	},
}

// -- standby show --

var standbyShowCmd = &cobra.Command{
	Use:   "show <entry-id>",
	Short: "Show the request and candidates of a standby entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		entry, err := env.Shortlist.Entry(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "standby show")
		}

		output, _ := cmd.Flags().GetString("output")
		return writeOutput(os.Stdout, output, entry, func(out io.Writer) {
			formatStandbyEntry(out, entry)
		})
	},
}

// -- standby discard --

var standbyDiscardCmd = &cobra.Command{
	Use:   "discard <entry-id>",
	Short: "Remove a standby entry without resolving it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Shortlist.Discard(ctx, args[0]); err != nil {
			return eris.Wrap(err, "standby discard")
		}
		fmt.Fprintf(os.Stderr, "Standby entry %s discarded.\n", args[0])
		return nil
	},
}

// -- standby resolve --

var standbyResolveCmd = &cobra.Command{
	Use:   "resolve <entry-id> <company-id>",
	Short: "Assign a standby entry to one of its companies",
	Long:  "Records the assignment in history, increments the company's call count and removes the entry.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Shortlist.Resolve(ctx, args[1], args[0])
		if err != nil {
			return eris.Wrap(err, "standby resolve")
		}
		fmt.Fprintf(os.Stderr, "Request %s - %s/%s assigned to %s.\n", res.Address, res.Municipality, res.State, res.CompanyName)
		return nil
	},
}

func init() {
	standbyShowCmd.Flags().StringP("output", "o", "table", "output format: table, json or yaml")

	standbyCmd.AddCommand(standbyListCmd)
	standbyCmd.AddCommand(standbyShowCmd)
	standbyCmd.AddCommand(standbyDiscardCmd)
	standbyCmd.AddCommand(standbyResolveCmd)
	rootCmd.AddCommand(standbyCmd)
}

// formatStandbyList writes a tabular list of standby entries to w.
func formatStandbyList(out io.Writer, entries []model.StandbyEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tREQUEST\tSERVICES\tCANDIDATES\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-------\t--------\t----------\t-------")

	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			e.ID,
			truncate(e.Name, 50),
			truncate(strings.Join(e.Request.ServiceNames, ", "), 40),
			len(e.Candidates),
			e.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatStandbyEntry writes the request of an entry followed by its
// candidates.
func formatStandbyEntry(out io.Writer, e *model.StandbyEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Entry:\t%s\n", e.ID)
	_, _ = fmt.Fprintf(w, "Request:\t%s\n", e.Name)
	_, _ = fmt.Fprintf(w, "Services:\t%s\n", strings.Join(e.Request.ServiceNames, ", "))
	_, _ = fmt.Fprintf(w, "Created:\t%s\n", e.CreatedAt.Format("2006-01-02 15:04"))
	_ = w.Flush()

	_, _ = fmt.Fprintln(out)
	formatCandidates(out, e.Candidates)
}
