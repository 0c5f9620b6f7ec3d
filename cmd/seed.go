package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/inspection-match/internal/catalog"
	"github.com/sells-group/inspection-match/internal/model"
)

var seedCmd = &cobra.Command{
	Use:   "seed <roster.yaml>",
	Short: "Load the catalog and company roster from a YAML file",
	Long: `Upserts the services, states and regions listed in the file, then every
company. Companies may name their services by ID (service_ids) or by name
(services) and their states by ID (state_ids) or by code (states).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "seed: open roster")
		}
		defer f.Close() //nolint:errcheck

		roster, err := parseRoster(f)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if roster.hasCatalog() {
			if err := st.SaveCatalog(ctx, roster.Services, roster.States, roster.Regions); err != nil {
				return err
			}
		}

		cat := catalog.Load(ctx, rosterSource{file: roster, fallback: st})
		companies, err := roster.companies(cat)
		if err != nil {
			return err
		}

		for i := range companies {
			if err := st.SaveCompany(ctx, &companies[i]); err != nil {
				return err
			}
			zap.L().Debug("seed: company saved", zap.String("id", companies[i].ID), zap.String("name", companies[i].Name))
		}

		fmt.Fprintf(os.Stderr, "Seeded %d service(s), %d state(s), %d region(s), %d company(ies).\n",
			len(roster.Services), len(roster.States), len(roster.Regions), len(companies))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// rosterFile is the YAML layout accepted by seed.
type rosterFile struct {
	Services  []model.Service `yaml:"services"`
	States    []model.State   `yaml:"states"`
	Regions   []model.Region  `yaml:"regions"`
	Companies []rosterCompany `yaml:"companies"`
}

type rosterCompany struct {
	model.Company `yaml:",inline"`
	Services      []string `yaml:"services"`
	States        []string `yaml:"states"`
}

func parseRoster(r io.Reader) (*rosterFile, error) {
	var rf rosterFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, eris.New("seed: roster file is empty")
		}
		return nil, eris.Wrap(err, "seed: parse roster")
	}
	return &rf, nil
}

func (rf *rosterFile) hasCatalog() bool {
	return len(rf.Services) > 0 || len(rf.States) > 0 || len(rf.Regions) > 0
}

// companies resolves service names and state codes against cat.
func (rf *rosterFile) companies(cat *catalog.Catalog) ([]model.Company, error) {
	out := make([]model.Company, 0, len(rf.Companies))
	for i, rc := range rf.Companies {
		c := rc.Company
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Address) == "" {
			return nil, eris.Errorf("seed: company %d needs a name and an address", i+1)
		}
		if c.Order == 0 {
			c.Order = i + 1
		}

		serviceIDs := slices.Clone(c.ServiceIDs)
		for _, name := range rc.Services {
			id, ok := cat.ServiceIDByName(name)
			if !ok {
				if _, known := cat.Service(name); !known {
					return nil, eris.Errorf("seed: company %q: unknown service %q", c.Name, name)
				}
				id = name
			}
			serviceIDs = append(serviceIDs, id)
		}
		c.ServiceIDs = dedupe(serviceIDs)

		stateIDs := slices.Clone(c.StateIDs)
		for _, code := range rc.States {
			id := cat.StateID(code)
			if id == "" {
				return nil, eris.Errorf("seed: company %q: unknown state %q", c.Name, code)
			}
			stateIDs = append(stateIDs, id)
		}
		c.StateIDs = dedupe(stateIDs)

		out = append(out, c)
	}
	return out, nil
}

func dedupe(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// rosterSource serves the catalog lists of the file, and the store's lists
// for those the file leaves out.
type rosterSource struct {
	file     *rosterFile
	fallback catalog.Source
}

func (s rosterSource) ListServices(ctx context.Context) ([]model.Service, error) {
	if len(s.file.Services) > 0 {
		return slices.Clone(s.file.Services), nil
	}
	return s.fallback.ListServices(ctx)
}

func (s rosterSource) ListStates(ctx context.Context) ([]model.State, error) {
	if len(s.file.States) > 0 {
		return slices.Clone(s.file.States), nil
	}
	return s.fallback.ListStates(ctx)
}

func (s rosterSource) ListRegions(ctx context.Context) ([]model.Region, error) {
	if len(s.file.Regions) > 0 {
		return slices.Clone(s.file.Regions), nil
	}
	return s.fallback.ListRegions(ctx)
}
