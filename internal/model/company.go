package model

import (
	"github.com/sells-group/inspection-match/internal/geo"
)

// Company is an accredited inspection company in the roster.
type Company struct {
	ID             string           `json:"id" yaml:"id"`
	Name           string           `json:"name" yaml:"name"`
	Address        string           `json:"address" yaml:"address"`
	Email          string           `json:"email,omitempty" yaml:"email,omitempty"`
	Phone          string           `json:"phone,omitempty" yaml:"phone,omitempty"`
	Contact        string           `json:"contact,omitempty" yaml:"contact,omitempty"`
	ContractNumber string           `json:"contract_number,omitempty" yaml:"contract_number,omitempty"`
	Order          int              `json:"order" yaml:"order"`
	Load           int              `json:"load" yaml:"load"` // calls assigned so far
	Coordinates    *geo.Coordinates `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
	ServiceIDs     []string         `json:"service_ids" yaml:"service_ids"`
	StateIDs       []string         `json:"state_ids,omitempty" yaml:"state_ids,omitempty"` // empty = every state
}

// HasCoordinates reports whether cached coordinates are usable.
func (c Company) HasCoordinates() bool {
	return c.Coordinates != nil && c.Coordinates.Valid()
}

// RankedCandidate is a company that passed the filter, with its distance and
// score for one request.
type RankedCandidate struct {
	Company           Company  `json:"company" yaml:"company"`
	DistanceKM        float64  `json:"distance_km" yaml:"distance_km"`
	DistanceKnown     bool     `json:"distance_known" yaml:"distance_known"`
	DistanceText      string   `json:"distance_text" yaml:"distance_text"`
	TimeText          string   `json:"time_text" yaml:"time_text"`
	DurationMinutes   int      `json:"duration_minutes,omitempty" yaml:"duration_minutes,omitempty"`
	Score             float64  `json:"score" yaml:"score"`
	Justification     string   `json:"justification" yaml:"justification"`
	MatchedServiceIDs []string `json:"matched_service_ids" yaml:"matched_service_ids"`
	Best              bool     `json:"best,omitempty" yaml:"best,omitempty"`
}

// ID is the company ID of the candidate.
func (c RankedCandidate) ID() string {
	return c.Company.ID
}
