// Package catalog loads services, states and regions, falling back to the
// bundled lists when the store is unavailable or empty.
package catalog

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/inspection-match/internal/model"
)

// Source lists catalog rows. store.CatalogStore satisfies it.
type Source interface {
	ListServices(ctx context.Context) ([]model.Service, error)
	ListStates(ctx context.Context) ([]model.State, error)
	ListRegions(ctx context.Context) ([]model.Region, error)
}

// Catalog is the resolved reference data for one process.
type Catalog struct {
	Services []model.Service `json:"services" yaml:"services"`
	States   []model.State   `json:"states" yaml:"states"`
	Regions  []model.Region  `json:"regions" yaml:"regions"`
}

// Default returns a Catalog built from the bundled lists only.
func Default() *Catalog {
	return newCatalog(DefaultServices(), DefaultStates(), DefaultRegions())
}

// Load reads each list from src. A list that fails to load or comes back
// empty is replaced by its default. A nil src yields Default().
func Load(ctx context.Context, src Source) *Catalog {
	if src == nil {
		return Default()
	}
	return newCatalog(
		orDefault(ctx, "services", src.ListServices, DefaultServices),
		orDefault(ctx, "states", src.ListStates, DefaultStates),
		orDefault(ctx, "regions", src.ListRegions, DefaultRegions),
	)
}

func orDefault[T any](ctx context.Context, name string, list func(context.Context) ([]T, error), def func() []T) []T {
	rows, err := list(ctx)
	if err != nil {
		zap.L().Warn("catalog: using bundled defaults", zap.String("list", name), zap.Error(err))
		return def()
	}
	if len(rows) == 0 {
		zap.L().Debug("catalog: store empty, using bundled defaults", zap.String("list", name))
		return def()
	}
	return rows
}

func newCatalog(services []model.Service, states []model.State, regions []model.Region) *Catalog {
	slices.SortStableFunc(services, func(a, b model.Service) int { return cmp.Compare(a.Order, b.Order) })
	slices.SortStableFunc(states, func(a, b model.State) int { return cmp.Compare(a.Code, b.Code) })
	slices.SortStableFunc(regions, func(a, b model.Region) int { return cmp.Compare(a.Name, b.Name) })
	return &Catalog{Services: services, States: states, Regions: regions}
}

// StateByCode looks a state up by its two-letter code, case-insensitively.
func (c *Catalog) StateByCode(code string) (model.State, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, s := range c.States {
		if strings.EqualFold(s.Code, code) {
			return s, true
		}
	}
	return model.State{}, false
}

// StateID returns the ID of the state with the given code, or "" when the
// code is not in the catalog.
func (c *Catalog) StateID(code string) string {
	s, ok := c.StateByCode(code)
	if !ok {
		return ""
	}
	return s.ID
}

// Service looks a service up by ID.
func (c *Catalog) Service(id string) (model.Service, bool) {
	for _, s := range c.Services {
		if s.ID == id {
			return s, true
		}
	}
	return model.Service{}, false
}

// ServiceNames maps IDs to names, keeping unknown IDs as-is.
func (c *Catalog) ServiceNames(ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if s, ok := c.Service(id); ok {
			names = append(names, s.Name)
			continue
		}
		names = append(names, id)
	}
	return names
}

// ServiceIDByName finds a service by exact or case-insensitive name.
func (c *Catalog) ServiceIDByName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, s := range c.Services {
		if strings.EqualFold(s.Name, name) {
			return s.ID, true
		}
	}
	return "", false
}
