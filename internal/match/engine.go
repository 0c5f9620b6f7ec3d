// Package match filters the roster for a service request, scores the
// eligible companies and ranks them.
package match

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/inspection-match/internal/catalog"
	"github.com/sells-group/inspection-match/internal/geo"
	"github.com/sells-group/inspection-match/internal/model"
	"github.com/sells-group/inspection-match/internal/monitoring"
	"github.com/sells-group/inspection-match/pkg/geocode"
	"github.com/sells-group/inspection-match/pkg/routing"
)

// Outcome distinguishes a search with results from one where no company
// qualified.
type Outcome string

const (
	OutcomeMatched   Outcome = "matched"
	OutcomeNoMatches Outcome = "no_matches"
)

// Geocoder resolves an address. *geocode.Geocoder satisfies it.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (geo.Coordinates, error)
}

// Estimator estimates travel between two points. *routing.Estimator
// satisfies it.
type Estimator interface {
	Estimate(ctx context.Context, origin, destination geo.Coordinates) routing.Estimate
}

// Roster is the part of the roster store a search reads and writes.
type Roster interface {
	ListCompanies(ctx context.Context) ([]model.Company, error)
	ListCompanyServices(ctx context.Context, companyID string) ([]string, error)
	ListCompanyStates(ctx context.Context, companyID string) ([]string, error)
	SaveCoordinates(ctx context.Context, companyID string, coords geo.Coordinates) error
}

// Result is the outcome of one search.
type Result struct {
	Seq          uint64                  `json:"seq"`
	Request      model.ServiceRequest    `json:"request"`
	ServiceNames []string                `json:"service_names"`
	Origin       geo.Coordinates         `json:"origin"`
	Outcome      Outcome                 `json:"outcome"`
	Candidates   []model.RankedCandidate `json:"candidates"`
	Duration     time.Duration           `json:"duration"`
}

// Snapshot returns the request snapshot stored with standby entries.
func (r *Result) Snapshot() model.RequestSnapshot {
	return model.RequestSnapshot{
		Address:      r.Request.Address,
		Municipality: r.Request.Municipality,
		State:        r.Request.State,
		ServiceIDs:   append([]string(nil), r.Request.ServiceIDs...),
		ServiceNames: append([]string(nil), r.ServiceNames...),
	}
}

// Option configures the Engine.
type Option func(*Engine)

// WithCatalog sets the catalog used to resolve state codes and service names.
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Engine) {
		if c != nil {
			e.catalog = c
		}
	}
}

// WithGeocodeConcurrency sets the max parallel company geocoding lookups.
func WithGeocodeConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.geocodeConcurrency = n
		}
	}
}

// WithEstimateConcurrency sets the max parallel distance estimates.
func WithEstimateConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.estimateConcurrency = n
		}
	}
}

// Engine runs searches. Each search owns its working set; the only shared
// state is the sequence counter.
type Engine struct {
	geocoder            Geocoder
	estimator           Estimator
	roster              Roster
	scorer              *Scorer
	catalog             *catalog.Catalog
	geocodeConcurrency  int
	estimateConcurrency int
	seq                 atomic.Uint64
}

// NewEngine creates an Engine.
func NewEngine(g Geocoder, est Estimator, roster Roster, scorer *Scorer, opts ...Option) *Engine {
	e := &Engine{
		geocoder:            g,
		estimator:           est,
		roster:              roster,
		scorer:              scorer,
		catalog:             catalog.Default(),
		geocodeConcurrency:  5,
		estimateConcurrency: 10,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsCurrent reports whether seq belongs to the most recently started search.
func (e *Engine) IsCurrent(seq uint64) bool {
	return e.seq.Load() == seq
}

// Search validates and geocodes the request, filters the roster, resolves
// missing company coordinates, estimates distances and ranks the result.
// The returned Result carries the search sequence number even on error.
func (e *Engine) Search(ctx context.Context, req model.ServiceRequest) (*Result, error) {
	start := time.Now()
	seq := e.seq.Add(1)
	req = req.Normalized()
	res := &Result{Seq: seq, Request: req, ServiceNames: e.catalog.ServiceNames(req.ServiceIDs)}

	finish := func(outcome string, err error) (*Result, error) {
		res.Duration = time.Since(start)
		monitoring.Searches.WithLabelValues(outcome).Inc()
		monitoring.SearchDuration.Observe(res.Duration.Seconds())
		return res, err
	}

	if err := req.Validate(); err != nil {
		return finish("invalid", err)
	}

	origin, err := e.geocoder.Resolve(ctx, req.FullAddress())
	if err != nil {
		outcome := monitoring.OutcomeError
		if errors.Is(err, geocode.ErrNotFound) {
			outcome = "not_found"
		}
		return finish(outcome, eris.Wrap(err, "match: geocode request"))
	}
	res.Origin = origin

	roster, err := e.loadRoster(ctx)
	if err != nil {
		return finish(monitoring.OutcomeError, err)
	}

	eligible := Filter(roster, req.ServiceIDs, e.catalog.StateID(req.State))
	if len(eligible) == 0 {
		res.Outcome = OutcomeNoMatches
		zap.L().Info("match: no eligible companies",
			zap.Uint64("seq", seq),
			zap.Strings("services", req.ServiceIDs),
			zap.String("state", req.State),
			zap.Int("roster", len(roster)),
		)
		return finish(string(OutcomeNoMatches), nil)
	}

	e.geocodeMissing(ctx, eligible)

	candidates := e.estimate(ctx, req, origin, eligible)
	if err := ctx.Err(); err != nil {
		return finish(monitoring.OutcomeError, eris.Wrap(err, "match: search interrupted"))
	}

	sortByScore(candidates)
	candidates[0].Best = true
	res.Candidates = candidates
	res.Outcome = OutcomeMatched

	zap.L().Info("match: search complete",
		zap.Uint64("seq", seq),
		zap.String("municipality", req.Municipality),
		zap.String("state", req.State),
		zap.Int("roster", len(roster)),
		zap.Int("candidates", len(candidates)),
		zap.String("best", candidates[0].Company.Name),
		zap.Duration("elapsed", time.Since(start)),
	)
	return finish(string(OutcomeMatched), nil)
}

// loadRoster lists companies and attaches their services and states.
func (e *Engine) loadRoster(ctx context.Context) ([]model.Company, error) {
	companies, err := e.roster.ListCompanies(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "match: list companies")
	}

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.estimateConcurrency)

	for i := range companies {
		eg.Go(func() error {
			services, err := e.roster.ListCompanyServices(gCtx, companies[i].ID)
			if err != nil {
				return eris.Wrapf(err, "match: list services of company %s", companies[i].ID)
			}
			states, err := e.roster.ListCompanyStates(gCtx, companies[i].ID)
			if err != nil {
				return eris.Wrapf(err, "match: list states of company %s", companies[i].ID)
			}
			companies[i].ServiceIDs = services
			companies[i].StateIDs = states
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return companies, nil
}

// geocodeMissing resolves companies without cached coordinates in place and
// caches the results. Failures leave the company without coordinates.
func (e *Engine) geocodeMissing(ctx context.Context, companies []model.Company) {
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.geocodeConcurrency)

	for i := range companies {
		if companies[i].HasCoordinates() {
			continue
		}
		eg.Go(func() error {
			c := &companies[i]
			coords, err := e.geocoder.Resolve(gCtx, c.Address)
			if err != nil {
				zap.L().Warn("match: company address not located",
					zap.String("company_id", c.ID),
					zap.String("address", c.Address),
					zap.Error(err),
				)
				return nil
			}
			c.Coordinates = &coords
			if err := e.roster.SaveCoordinates(gCtx, c.ID, coords); err != nil {
				zap.L().Warn("match: cache company coordinates", zap.String("company_id", c.ID), zap.Error(err))
			}
			return nil
		})
	}

	_ = eg.Wait()
}

// estimate builds a scored candidate per company, estimating distances in
// parallel.
func (e *Engine) estimate(ctx context.Context, req model.ServiceRequest, origin geo.Coordinates, companies []model.Company) []model.RankedCandidate {
	candidates := make([]model.RankedCandidate, len(companies))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.estimateConcurrency)

	for i := range companies {
		eg.Go(func() error {
			c := companies[i]
			rc := model.RankedCandidate{
				Company:           c,
				DistanceText:      routing.UnknownText,
				TimeText:          routing.UnknownText,
				MatchedServiceIDs: matchedServices(c, req.ServiceIDs),
			}
			if c.HasCoordinates() {
				est := e.estimator.Estimate(gCtx, origin, *c.Coordinates)
				rc.DistanceKM = est.DistanceKM
				rc.DistanceKnown = true
				rc.DistanceText = est.DistanceText
				rc.TimeText = est.TimeText
				rc.DurationMinutes = est.DurationMinutes
			}

			scored := e.scorer.Score(req, Distance{KM: rc.DistanceKM, Known: rc.DistanceKnown, Text: rc.DistanceText}, c.Load)
			rc.Score = scored.Score
			rc.Justification = scored.Justification
			candidates[i] = rc
			return nil
		})
	}

	_ = eg.Wait()
	return candidates
}

// sortByScore orders candidates by descending score, keeping filter order
// among equal scores.
func sortByScore(candidates []model.RankedCandidate) {
	// Insertion sort is stable and fine for roster-sized inputs.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].Score > candidates[j-1].Score; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
}

// UserMessage maps a search outcome to the message shown to the operator.
func UserMessage(res *Result, err error) string {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, geocode.ErrNotFound):
		return "Could not locate the address. Check the address, municipality and state and try again."
	case err != nil:
		return "The search failed. Please try again."
	case res == nil || res.Outcome == OutcomeNoMatches || len(res.Candidates) == 0:
		return "No company offers all the selected services in this state."
	default:
		return fmt.Sprintf("%d company(ies) found, ranked by proximity and load.", len(res.Candidates))
	}
}
