package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/inspection-match/internal/geo"
	"github.com/sells-group/inspection-match/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	address         TEXT NOT NULL,
	email           TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	contact         TEXT NOT NULL DEFAULT '',
	contract_number TEXT NOT NULL DEFAULT '',
	sort_order      INTEGER NOT NULL DEFAULT 0,
	call_count      INTEGER NOT NULL DEFAULT 0,
	lat             REAL,
	lng             REAL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
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
	service_names TEXT NOT NULL DEFAULT '[]',
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_company_services_service ON company_services(service_id);
CREATE INDEX IF NOT EXISTS idx_company_states_state ON company_states(state_id);
CREATE INDEX IF NOT EXISTS idx_resolutions_created_at ON resolutions(created_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Roster ---

func (s *SQLiteStore) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, address, email, phone, contact, contract_number, sort_order, call_count, lat, lng
		 FROM companies ORDER BY sort_order, name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close() //nolint:errcheck

	var companies []model.Company
	for rows.Next() {
		var c model.Company
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &c.Email, &c.Phone, &c.Contact,
			&c.ContractNumber, &c.Order, &c.Load, &lat, &lng); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		if lat.Valid && lng.Valid {
			c.Coordinates = &geo.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
		}
		companies = append(companies, c)
	}
	return companies, eris.Wrap(rows.Err(), "sqlite: list companies iterate")
}

func (s *SQLiteStore) ListCompanyServices(ctx context.Context, companyID string) ([]string, error) {
	return s.listIDs(ctx, `SELECT service_id FROM company_services WHERE company_id = ? ORDER BY service_id`, companyID, "services")
}

func (s *SQLiteStore) ListCompanyStates(ctx context.Context, companyID string) ([]string, error) {
	return s.listIDs(ctx, `SELECT state_id FROM company_states WHERE company_id = ? ORDER BY state_id`, companyID, "states")
}

func (s *SQLiteStore) listIDs(ctx context.Context, query, companyID, what string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list %s of company %s", what, companyID)
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s of company %s", what, companyID)
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list ids iterate")
}

func (s *SQLiteStore) IncrementLoad(ctx context.Context, companyID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE companies SET call_count = call_count + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), companyID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment load of company %s", companyID)
	}
	return checkRowsAffected(res, "company", companyID)
}

func (s *SQLiteStore) SaveCoordinates(ctx context.Context, companyID string, coords geo.Coordinates) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE companies SET lat = ?, lng = ?, updated_at = ? WHERE id = ?`,
		coords.Lat, coords.Lng, time.Now().UTC(), companyID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save coordinates of company %s", companyID)
	}
	return checkRowsAffected(res, "company", companyID)
}

func (s *SQLiteStore) SaveCompany(ctx context.Context, c *model.Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	var lat, lng sql.NullFloat64
	if c.HasCoordinates() {
		lat = sql.NullFloat64{Float64: c.Coordinates.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: c.Coordinates.Lng, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save company")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO companies (id, name, address, email, phone, contact, contract_number, sort_order, call_count, lat, lng, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, address = excluded.address, email = excluded.email,
			phone = excluded.phone, contact = excluded.contact, contract_number = excluded.contract_number,
			sort_order = excluded.sort_order, call_count = excluded.call_count,
			lat = excluded.lat, lng = excluded.lng, updated_at = excluded.updated_at`,
		c.ID, c.Name, c.Address, c.Email, c.Phone, c.Contact, c.ContractNumber, c.Order, c.Load, lat, lng, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert company %s", c.ID)
	}

	links := []struct {
		table, column string
		ids           []string
	}{
		{"company_services", "service_id", c.ServiceIDs},
		{"company_states", "state_id", c.StateIDs},
	}
	for _, l := range links {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+l.table+` WHERE company_id = ?`, c.ID); err != nil {
			return eris.Wrapf(err, "sqlite: clear %s of company %s", l.table, c.ID)
		}
		for _, id := range l.ids {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO `+l.table+` (company_id, `+l.column+`) VALUES (?, ?)`, c.ID, id); err != nil {
				return eris.Wrapf(err, "sqlite: link %s %s to company %s", l.column, id, c.ID)
			}
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save company")
}

// --- Catalog ---

func (s *SQLiteStore) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, sort_order FROM services ORDER BY sort_order`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list services")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Service
	for rows.Next() {
		var sv model.Service
		if err := rows.Scan(&sv.ID, &sv.Name, &sv.Order); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan service")
		}
		out = append(out, sv)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list services iterate")
}

func (s *SQLiteStore) ListStates(ctx context.Context) ([]model.State, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, code, name FROM states ORDER BY code`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list states")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.State
	for rows.Next() {
		var st model.State
		if err := rows.Scan(&st.ID, &st.Code, &st.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan state")
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list states iterate")
}

func (s *SQLiteStore) ListRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM regions ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list regions")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Region
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list regions iterate")
}

func (s *SQLiteStore) SaveCatalog(ctx context.Context, services []model.Service, states []model.State, regions []model.Region) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save catalog")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, sv := range services {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO services (id, name, sort_order) VALUES (?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET name = excluded.name, sort_order = excluded.sort_order`,
			sv.ID, sv.Name, sv.Order); err != nil {
			return eris.Wrapf(err, "sqlite: upsert service %s", sv.ID)
		}
	}
	for _, st := range states {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO states (id, code, name) VALUES (?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET code = excluded.code, name = excluded.name`,
			st.ID, st.Code, st.Name); err != nil {
			return eris.Wrapf(err, "sqlite: upsert state %s", st.ID)
		}
	}
	for _, r := range regions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO regions (id, name) VALUES (?, ?)
			 ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
			r.ID, r.Name); err != nil {
			return eris.Wrapf(err, "sqlite: upsert region %s", r.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save catalog")
}

// --- History ---

func (s *SQLiteStore) RecordResolution(ctx context.Context, r *model.Resolution) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	names, err := json.Marshal(nonNil(r.ServiceNames))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal service names")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO resolutions (id, company_id, company_name, address, municipality, state, service_names, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CompanyID, r.CompanyName, r.Address, r.Municipality, r.State, string(names), r.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: record resolution")
}

func (s *SQLiteStore) ListResolutions(ctx context.Context, limit int) ([]model.Resolution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, company_name, address, municipality, state, service_names, created_at
		 FROM resolutions ORDER BY created_at DESC LIMIT ?`, historyLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list resolutions")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Resolution
	for rows.Next() {
		var r model.Resolution
		var names string
		if err := rows.Scan(&r.ID, &r.CompanyID, &r.CompanyName, &r.Address, &r.Municipality, &r.State, &names, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan resolution")
		}
		if err := json.Unmarshal([]byte(names), &r.ServiceNames); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal service names of resolution %s", r.ID)
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list resolutions iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
