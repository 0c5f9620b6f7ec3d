package match

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/inspection-match/internal/config"
	"github.com/sells-group/inspection-match/internal/model"
)

// DefaultScoringConfig returns the ranking weights used when no config file
// overrides them: Belo Horizonte/MG as the single priority region.
func DefaultScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		Baseline:               100,
		HomeState:              "MG",
		PriorityLoadWeight:     5,
		PriorityLoadCeiling:    100,
		PriorityDistanceWeight: 2,
		DistanceWeight:         0.5,
		LoadWeight:             3,
		PriorityRegions: []config.PriorityRegion{
			{Name: "Belo Horizonte", State: "MG", Aliases: []string{"belo horizonte", "bh", "belo-horizonte"}},
		},
	}
}

// ValidateScoringConfig checks that weights are non-negative and every
// priority region names a state.
func ValidateScoringConfig(c config.ScoringConfig) error {
	var errs []string

	weights := []struct {
		name  string
		value float64
	}{
		{"priority_load_weight", c.PriorityLoadWeight},
		{"priority_distance_weight", c.PriorityDistanceWeight},
		{"distance_weight", c.DistanceWeight},
		{"load_weight", c.LoadWeight},
	}
	for _, w := range weights {
		if w.value < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", w.name))
		}
	}
	for i, r := range c.PriorityRegions {
		if strings.TrimSpace(r.State) == "" {
			errs = append(errs, fmt.Sprintf("priority_regions[%d] needs a state", i))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scoring config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Distance is the distance input of the scorer.
type Distance struct {
	KM    float64
	Known bool
	Text  string
}

// Scored is the scorer output for one candidate.
type Scored struct {
	Score         float64
	Justification string
}

type priorityRegion struct {
	name    string
	state   string
	aliases map[string]bool
}

// Scorer ranks candidates by distance and historical load. It holds no
// mutable state; Score is a pure function of its inputs.
type Scorer struct {
	cfg     config.ScoringConfig
	regions []priorityRegion
}

// NewScorer creates a Scorer from cfg.
func NewScorer(cfg config.ScoringConfig) *Scorer {
	s := &Scorer{cfg: cfg}
	s.cfg.HomeState = strings.ToUpper(strings.TrimSpace(cfg.HomeState))
	for _, r := range cfg.PriorityRegions {
		pr := priorityRegion{
			name:    r.Name,
			state:   strings.ToUpper(strings.TrimSpace(r.State)),
			aliases: map[string]bool{foldName(r.Name): true},
		}
		for _, a := range r.Aliases {
			pr.aliases[foldName(a)] = true
		}
		s.regions = append(s.regions, pr)
	}
	return s
}

// PriorityRegion returns the name of the priority region the municipality
// and state fall in, if any.
func (s *Scorer) PriorityRegion(municipality, state string) (string, bool) {
	key := foldName(municipality)
	state = strings.ToUpper(strings.TrimSpace(state))
	for _, r := range s.regions {
		if r.state == state && r.aliases[key] {
			return r.name, true
		}
	}
	return "", false
}

// Score computes the score of a candidate with the given distance and load
// for req.
func (s *Scorer) Score(req model.ServiceRequest, d Distance, load int) Scored {
	score := s.cfg.Baseline
	parts := []string{"Offers all requested services"}
	state := strings.ToUpper(strings.TrimSpace(req.State))

	if region, ok := s.PriorityRegion(req.Municipality, state); ok {
		bonus := (s.cfg.PriorityLoadCeiling - float64(load)) * s.cfg.PriorityLoadWeight
		score += bonus
		parts = append(parts, fmt.Sprintf("Priority region %s: %d previous call(s), load adjustment %+.1f", region, load, bonus))
		score -= s.distancePenalty(d, s.cfg.PriorityDistanceWeight, &parts)
		return Scored{Score: score, Justification: strings.Join(parts, ". ")}
	}

	score -= s.distancePenalty(d, s.cfg.DistanceWeight, &parts)
	if s.cfg.HomeState != "" && state == s.cfg.HomeState {
		score -= float64(load) * s.cfg.LoadWeight
		parts = append(parts, fmt.Sprintf("%d previous call(s)", load))
	}
	return Scored{Score: score, Justification: strings.Join(parts, ". ")}
}

func (s *Scorer) distancePenalty(d Distance, weight float64, parts *[]string) float64 {
	if !d.Known {
		*parts = append(*parts, "Distance unavailable, no distance penalty")
		return 0
	}
	text := d.Text
	if text == "" {
		text = fmt.Sprintf("%.1f km", d.KM)
	}
	*parts = append(*parts, fmt.Sprintf("Located %s from the inspection site", text))
	return d.KM * weight
}

// foldName lower-cases, strips accents and collapses whitespace so "São
// José" and "sao  jose" compare equal.
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}
