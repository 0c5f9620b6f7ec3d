package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/inspection-match/internal/db"
	"github.com/sells-group/inspection-match/internal/geo"
	"github.com/sells-group/inspection-match/internal/model"
)

// PostgresStore implements Store on a pgx pool with PostGIS company points.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS companies (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name            TEXT NOT NULL,
	address         TEXT NOT NULL,
	email           TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	contact         TEXT NOT NULL DEFAULT '',
	contract_number TEXT NOT NULL DEFAULT '',
	sort_order      INTEGER NOT NULL DEFAULT 0,
	call_count      INTEGER NOT NULL DEFAULT 0,
	location        geometry(Point, 4326),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS services (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS states (
	id   TEXT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS regions (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS company_services (
	company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	service_id TEXT NOT NULL,
	PRIMARY KEY (company_id, service_id)
);

CREATE TABLE IF NOT EXISTS company_states (
	company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	state_id   TEXT NOT NULL,
	PRIMARY KEY (company_id, state_id)
);

CREATE TABLE IF NOT EXISTS resolutions (
	id            TEXT PRIMARY KEY,
	company_id    TEXT NOT NULL,
	company_name  TEXT NOT NULL DEFAULT '',
	address       TEXT NOT NULL,
	municipality  TEXT NOT NULL,
	state         TEXT NOT NULL,
	service_names JSONB NOT NULL DEFAULT '[]',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_companies_location ON companies USING GIST (location);
CREATE INDEX IF NOT EXISTS idx_company_services_service ON company_services(service_id);
CREATE INDEX IF NOT EXISTS idx_company_states_state ON company_states(state_id);
CREATE INDEX IF NOT EXISTS idx_resolutions_created_at ON resolutions(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Roster ---

func (s *PostgresStore) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, address, email, phone, contact, contract_number, sort_order, call_count, ST_AsEWKB(location)
		 FROM companies ORDER BY sort_order, name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		var c model.Company
		var location []byte
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &c.Email, &c.Phone, &c.Contact,
			&c.ContractNumber, &c.Order, &c.Load, &location); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		coords, err := geo.FromEWKB(location)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: company %s location", c.ID)
		}
		c.Coordinates = coords
		companies = append(companies, c)
	}
	return companies, eris.Wrap(rows.Err(), "postgres: list companies iterate")
}

func (s *PostgresStore) ListCompanyServices(ctx context.Context, companyID string) ([]string, error) {
	return s.listIDs(ctx, `SELECT service_id FROM company_services WHERE company_id = $1 ORDER BY service_id`, companyID, "services")
}

func (s *PostgresStore) ListCompanyStates(ctx context.Context, companyID string) ([]string, error) {
	return s.listIDs(ctx, `SELECT state_id FROM company_states WHERE company_id = $1 ORDER BY state_id`, companyID, "states")
}

func (s *PostgresStore) listIDs(ctx context.Context, query, companyID, what string) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list %s of company %s", what, companyID)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return ids, eris.Wrapf(err, "postgres: collect %s of company %s", what, companyID)
}

func (s *PostgresStore) IncrementLoad(ctx context.Context, companyID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE companies SET call_count = call_count + 1, updated_at = now() WHERE id = $1`, companyID)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment load of company %s", companyID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: company %s", companyID)
	}
	return nil
}

func (s *PostgresStore) SaveCoordinates(ctx context.Context, companyID string, coords geo.Coordinates) error {
	point, err := coords.EWKB()
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE companies SET location = ST_GeomFromEWKB($1), updated_at = now() WHERE id = $2`, point, companyID)
	if err != nil {
		return eris.Wrapf(err, "postgres: save coordinates of company %s", companyID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: company %s", companyID)
	}
	return nil
}

func (s *PostgresStore) SaveCompany(ctx context.Context, c *model.Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	var point []byte
	if c.HasCoordinates() {
		var err error
		if point, err = c.Coordinates.EWKB(); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save company")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO companies (id, name, address, email, phone, contact, contract_number, sort_order, call_count, location, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, ST_GeomFromEWKB($10), now())
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, address = EXCLUDED.address, email = EXCLUDED.email,
			phone = EXCLUDED.phone, contact = EXCLUDED.contact, contract_number = EXCLUDED.contract_number,
			sort_order = EXCLUDED.sort_order, call_count = EXCLUDED.call_count,
			location = EXCLUDED.location, updated_at = now()`,
		c.ID, c.Name, c.Address, c.Email, c.Phone, c.Contact, c.ContractNumber, c.Order, c.Load, point,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert company %s", c.ID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM company_services WHERE company_id = $1`, c.ID); err != nil {
		return eris.Wrapf(err, "postgres: clear services of company %s", c.ID)
	}
	for _, id := range c.ServiceIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO company_services (company_id, service_id) VALUES ($1, $2)`, c.ID, id); err != nil {
			return eris.Wrapf(err, "postgres: link service %s to company %s", id, c.ID)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM company_states WHERE company_id = $1`, c.ID); err != nil {
		return eris.Wrapf(err, "postgres: clear states of company %s", c.ID)
	}
	for _, id := range c.StateIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO company_states (company_id, state_id) VALUES ($1, $2)`, c.ID, id); err != nil {
			return eris.Wrapf(err, "postgres: link state %s to company %s", id, c.ID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit save company")
}

// --- Catalog ---

func (s *PostgresStore) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, sort_order FROM services ORDER BY sort_order`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list services")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Service, error) {
		var sv model.Service
		err := row.Scan(&sv.ID, &sv.Name, &sv.Order)
		return sv, err
	})
	return out, eris.Wrap(err, "postgres: scan services")
}

func (s *PostgresStore) ListStates(ctx context.Context) ([]model.State, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, code, name FROM states ORDER BY code`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list states")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.State, error) {
		var st model.State
		err := row.Scan(&st.ID, &st.Code, &st.Name)
		return st, err
	})
	return out, eris.Wrap(err, "postgres: scan states")
}

func (s *PostgresStore) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM regions ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list regions")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Region, error) {
		var r model.Region
		err := row.Scan(&r.ID, &r.Name)
		return r, err
	})
	return out, eris.Wrap(err, "postgres: scan regions")
}

func (s *PostgresStore) SaveCatalog(ctx context.Context, services []model.Service, states []model.State, regions []model.Region) error {
	serviceRows := make([][]any, 0, len(services))
	for _, sv := range services {
		serviceRows = append(serviceRows, []any{sv.ID, sv.Name, sv.Order})
	}
	stateRows := make([][]any, 0, len(states))
	for _, st := range states {
		stateRows = append(stateRows, []any{st.ID, st.Code, st.Name})
	}
	regionRows := make([][]any, 0, len(regions))
	for _, r := range regions {
		regionRows = append(regionRows, []any{r.ID, r.Name})
	}

	batches := []struct {
		cfg  db.UpsertConfig
		rows [][]any
	}{
		{db.UpsertConfig{Table: "services", Columns: []string{"id", "name", "sort_order"}, ConflictKeys: []string{"id"}}, serviceRows},
		{db.UpsertConfig{Table: "states", Columns: []string{"id", "code", "name"}, ConflictKeys: []string{"id"}}, stateRows},
		{db.UpsertConfig{Table: "regions", Columns: []string{"id", "name"}, ConflictKeys: []string{"id"}}, regionRows},
	}
	for _, b := range batches {
		if _, err := db.BulkUpsert(ctx, s.pool, b.cfg, b.rows); err != nil {
			return eris.Wrapf(err, "postgres: seed %s", b.cfg.Table)
		}
	}
	return nil
}

// --- History ---

func (s *PostgresStore) RecordResolution(ctx context.Context, r *model.Resolution) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	names, err := json.Marshal(nonNil(r.ServiceNames))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal service names")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO resolutions (id, company_id, company_name, address, municipality, state, service_names, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.CompanyID, r.CompanyName, r.Address, r.Municipality, r.State, names, r.CreatedAt,
	)
	return eris.Wrap(err, "postgres: record resolution")
}

func (s *PostgresStore) ListResolutions(ctx context.Context, limit int) ([]model.Resolution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, company_name, address, municipality, state, service_names, created_at
		 FROM resolutions ORDER BY created_at DESC LIMIT $1`, historyLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list resolutions")
	}
	defer rows.Close()

	var out []model.Resolution
	for rows.Next() {
		var r model.Resolution
		var names []byte
		if err := rows.Scan(&r.ID, &r.CompanyID, &r.CompanyName, &r.Address, &r.Municipality, &r.State, &names, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan resolution")
		}
		if err := json.Unmarshal(names, &r.ServiceNames); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal service names of resolution %s", r.ID)
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list resolutions iterate")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
