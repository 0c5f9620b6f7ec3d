// Package store persists the company roster, the reference catalog and the
// resolution history in Postgres or SQLite.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/inspection-match/internal/config"
	"github.com/sells-group/inspection-match/internal/geo"
	"github.com/sells-group/inspection-match/internal/model"
)

// DefaultHistoryLimit caps ListResolutions when no limit is given.
const DefaultHistoryLimit = 1000

// ErrNotFound is returned when a write targets a row that does not exist.
var ErrNotFound = eris.New("store: not found")

// RosterStore reads and updates accredited companies.
type RosterStore interface {
	ListCompanies(ctx context.Context) ([]model.Company, error)
	ListCompanyServices(ctx context.Context, companyID string) ([]string, error)
	ListCompanyStates(ctx context.Context, companyID string) ([]string, error)
	IncrementLoad(ctx context.Context, companyID string) error
	SaveCoordinates(ctx context.Context, companyID string, coords geo.Coordinates) error
	// SaveCompany inserts or replaces a company with its service and state
	// links. An empty ID is assigned a new UUID.
	SaveCompany(ctx context.Context, c *model.Company) error
}

// CatalogStore reads and seeds the reference lists.
type CatalogStore interface {
	ListServices(ctx context.Context) ([]model.Service, error)
	ListStates(ctx context.Context) ([]model.State, error)
	ListRegions(ctx context.Context) ([]model.Region, error)
	SaveCatalog(ctx context.Context, services []model.Service, states []model.State, regions []model.Region) error
}

// HistoryStore records which company each demand was assigned to.
type HistoryStore interface {
	// RecordResolution stores r, filling ID and CreatedAt when empty.
	RecordResolution(ctx context.Context, r *model.Resolution) error
	// ListResolutions returns the most recent resolutions first.
	ListResolutions(ctx context.Context, limit int) ([]model.Resolution, error)
}

// Store is the full persistence interface.
type Store interface {
	RosterStore
	CatalogStore
	HistoryStore

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func historyLimit(limit int) int {
	if limit <= 0 || limit > DefaultHistoryLimit {
		return DefaultHistoryLimit
	}
	return limit
}
