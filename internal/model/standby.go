package model

import (
	"fmt"
	"time"

	"github.com/sells-group/inspection-match/internal/geo"
)

// RequestSnapshot freezes the request as it was when a standby entry was
// committed.
type RequestSnapshot struct {
	Address      string   `json:"address" yaml:"address"`
	Municipality string   `json:"municipality" yaml:"municipality"`
	State        string   `json:"state" yaml:"state"`
	ServiceIDs   []string `json:"service_ids" yaml:"service_ids"`
	ServiceNames []string `json:"service_names" yaml:"service_names"`
}

// Request rebuilds the ServiceRequest the snapshot was taken from.
func (s RequestSnapshot) Request() ServiceRequest {
	return ServiceRequest{
		Address:      s.Address,
		Municipality: s.Municipality,
		State:        s.State,
		ServiceIDs:   append([]string(nil), s.ServiceIDs...),
	}
}

// Label is the human-readable name of the demand.
func (s RequestSnapshot) Label() string {
	return fmt.Sprintf("%s - %s/%s", s.Address, s.Municipality, s.State)
}

// StandbyEntry is a committed set of staged candidates awaiting a decision.
type StandbyEntry struct {
	ID         string            `json:"id" yaml:"id"`
	Name       string            `json:"name" yaml:"name"`
	CreatedAt  time.Time         `json:"created_at" yaml:"created_at"`
	Request    RequestSnapshot   `json:"request" yaml:"request"`
	Origin     geo.Coordinates   `json:"origin" yaml:"origin"`
	Candidates []RankedCandidate `json:"candidates" yaml:"candidates"`
}

// Candidate returns the staged candidate for a company.
func (e StandbyEntry) Candidate(companyID string) (RankedCandidate, bool) {
	for _, c := range e.Candidates {
		if c.Company.ID == companyID {
			return c, true
		}
	}
	return RankedCandidate{}, false
}

// Resolution records which company a demand was assigned to.
type Resolution struct {
	ID           string    `json:"id" yaml:"id"`
	CompanyID    string    `json:"company_id" yaml:"company_id"`
	CompanyName  string    `json:"company_name,omitempty" yaml:"company_name,omitempty"`
	Address      string    `json:"address" yaml:"address"`
	Municipality string    `json:"municipality" yaml:"municipality"`
	State        string    `json:"state" yaml:"state"`
	ServiceNames []string  `json:"service_names" yaml:"service_names"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}
