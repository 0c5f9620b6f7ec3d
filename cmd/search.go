package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-match/internal/catalog"
	"github.com/sells-group/inspection-match/internal/match"
	"github.com/sells-group/inspection-match/internal/model"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Rank the companies able to serve an inspection request",
	Long: `Geocodes the request address, keeps the companies that offer every selected
service in the request's state and ranks them by distance and load.

Staged candidates (--stage) can be committed to the standby list (--commit).`,
	Example: `  inspection-match search --address "Rua da Bahia, 1148" --municipality "Belo Horizonte" \
    --state MG --service "Laudo completo" --service 4 --stage <company-id> --commit`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		address, _ := cmd.Flags().GetString("address")
		municipality, _ := cmd.Flags().GetString("municipality")
		state, _ := cmd.Flags().GetString("state")
		services, _ := cmd.Flags().GetStringSlice("service")
		stage, _ := cmd.Flags().GetStringSlice("stage")
		commit, _ := cmd.Flags().GetBool("commit")
		output, _ := cmd.Flags().GetString("output")

		if commit && len(stage) == 0 {
			return eris.New("search: --commit requires at least one --stage company")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		serviceIDs, err := resolveServices(env.Catalog, services)
		if err != nil {
			return err
		}

		req := model.ServiceRequest{
			Address:      address,
			Municipality: municipality,
			State:        state,
			ServiceIDs:   serviceIDs,
		}

		sctx, cancel := searchTimeout(ctx)
		defer cancel()

		res, err := env.Engine.Search(sctx, req)
		fmt.Fprintln(os.Stderr, match.UserMessage(res, err))
		if err != nil {
			return err
		}
		if res.Outcome == match.OutcomeNoMatches {
			return nil
		}

		if err := env.Shortlist.Populate(res.Seq, res.Snapshot(), res.Origin, res.Candidates); err != nil {
			return err
		}
		for _, id := range stage {
			if _, err := env.Shortlist.ToggleStage(id); err != nil {
				return err
			}
		}

		if err := writeOutput(os.Stdout, output, res.Candidates, func(out io.Writer) {
			formatCandidates(out, res.Candidates)
			_, _ = fmt.Fprintln(out)
			formatJustifications(out, res.Candidates)
		}); err != nil {
			return err
		}

		if len(stage) > 0 && !commit {
			zap.L().Warn("staged candidates are not kept after exit without --commit", zap.Strings("stage", stage))
			return nil
		}
		if commit {
			entry, err := env.Shortlist.Commit(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Standby entry %s saved with %d candidate(s): %s\n", entry.ID, len(entry.Candidates), entry.Name)
		}
		return nil
	},
}

// resolveServices maps each --service value, given as an ID or a name, to a
// service ID of the catalog.
func resolveServices(cat *catalog.Catalog, values []string) ([]string, error) {
	var ids []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := cat.Service(v); ok {
			ids = append(ids, v)
			continue
		}
		id, ok := cat.ServiceIDByName(v)
		if !ok {
			return nil, eris.Errorf("search: unknown service %q", v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func init() {
	searchCmd.Flags().String("address", "", "street address with number")
	searchCmd.Flags().String("municipality", "", "municipality of the address")
	searchCmd.Flags().String("state", "", "two-letter state code (UF)")
	searchCmd.Flags().StringSlice("service", nil, "service ID or name (repeatable)")
	searchCmd.Flags().StringSlice("stage", nil, "company ID to stage for the standby list (repeatable)")
	searchCmd.Flags().Bool("commit", false, "commit the staged companies as a standby entry")
	searchCmd.Flags().StringP("output", "o", "table", "output format: table, json or yaml")

	rootCmd.AddCommand(searchCmd)
}
