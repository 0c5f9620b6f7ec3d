package match

import (
	"slices"

	"github.com/sells-group/inspection-match/internal/model"
)

// Filter returns the companies that offer every required service and serve
// the requested state, in roster order. An empty stateID applies no state
// constraint.
func Filter(roster []model.Company, requiredServiceIDs []string, stateID string) []model.Company {
	var out []model.Company
	for _, c := range roster {
		if OffersAll(c, requiredServiceIDs) && Serves(c, stateID) {
			out = append(out, c)
		}
	}
	return out
}

// OffersAll reports whether the company offers every required service.
func OffersAll(c model.Company, requiredServiceIDs []string) bool {
	for _, id := range requiredServiceIDs {
		if !slices.Contains(c.ServiceIDs, id) {
			return false
		}
	}
	return true
}

// Serves reports whether the company covers the state. Companies without
// states cover every state.
func Serves(c model.Company, stateID string) bool {
	if stateID == "" || len(c.StateIDs) == 0 {
		return true
	}
	return slices.Contains(c.StateIDs, stateID)
}

// matchedServices returns the required services the company offers, in
// request order.
func matchedServices(c model.Company, requiredServiceIDs []string) []string {
	out := make([]string, 0, len(requiredServiceIDs))
	for _, id := range requiredServiceIDs {
		if slices.Contains(c.ServiceIDs, id) {
			out = append(out, id)
		}
	}
	return out
}
