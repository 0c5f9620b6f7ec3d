package model

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// ErrInvalidRequest is matched by every *ValidationError.
var ErrInvalidRequest = eris.New("model: invalid service request")

// ServiceRequest is one inspection demand to be matched against the roster.
type ServiceRequest struct {
	Address      string   `json:"address" yaml:"address"`
	Municipality string   `json:"municipality" yaml:"municipality"`
	State        string   `json:"state" yaml:"state"` // two-letter UF code
	ServiceIDs   []string `json:"service_ids" yaml:"service_ids"`
}

// Normalized returns a copy with surrounding whitespace trimmed, the state
// upper-cased and empty or duplicate service IDs dropped.
func (r ServiceRequest) Normalized() ServiceRequest {
	out := ServiceRequest{
		Address:      strings.TrimSpace(r.Address),
		Municipality: strings.TrimSpace(r.Municipality),
		State:        strings.ToUpper(strings.TrimSpace(r.State)),
	}
	seen := make(map[string]bool, len(r.ServiceIDs))
	for _, id := range r.ServiceIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out.ServiceIDs = append(out.ServiceIDs, id)
	}
	return out
}

// FullAddress is the geocoding query for the request.
func (r ServiceRequest) FullAddress() string {
	return fmt.Sprintf("%s, %s, %s, Brasil",
		strings.TrimSpace(r.Address),
		strings.TrimSpace(r.Municipality),
		strings.ToUpper(strings.TrimSpace(r.State)),
	)
}

// ValidationError lists every problem found in a request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid service request: " + strings.Join(e.Problems, "; ")
}

// Is makes errors.Is(err, ErrInvalidRequest) true.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// Validate checks the request as entered: address of at least 5 characters,
// municipality of at least 2, a two-letter state and at least one service.
func (r ServiceRequest) Validate() error {
	n := r.Normalized()
	var problems []string

	if utf8.RuneCountInString(n.Address) < 5 {
		problems = append(problems, "address must have at least 5 characters")
	}
	if utf8.RuneCountInString(n.Municipality) < 2 {
		problems = append(problems, "municipality must have at least 2 characters")
	}
	if !isStateCode(n.State) {
		problems = append(problems, "state must be a 2-letter code")
	}
	if len(n.ServiceIDs) == 0 {
		problems = append(problems, "select at least one service")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func isStateCode(s string) bool {
	if utf8.RuneCountInString(s) != 2 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
