// Package sampler finds a point with confirmed street-level coverage inside
// a catalog region using rejection sampling, one weighted escalation to
// another region and a final fallback to a region with dense coverage.
package sampler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"geoguess-bot/internal/geo"
	"geoguess-bot/internal/imagery"
	"geoguess-bot/internal/metrics"
)

// DefaultMaxAttempts is the number of random points tried per region.
const DefaultMaxAttempts = 50

// Config tunes a Sampler.
type Config struct {
	MaxAttempts    int
	FallbackRegion string
	// CheckTimeout bounds each coverage lookup. Zero leaves only the
	// caller's context in charge.
	CheckTimeout time.Duration
}

// Sampler is safe for concurrent use.
type Sampler struct {
	catalog  *geo.Catalog
	regions  []geo.Region
	checker  imagery.Checker
	cfg      Config
	fallback geo.Region

	mu  sync.Mutex
	rng *rand.Rand
}

// New validates cfg against the catalog. A nil rng seeds one from the clock.
func New(catalog *geo.Catalog, checker imagery.Checker, cfg Config, rng *rand.Rand) (*Sampler, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	fallback, err := catalog.Lookup(cfg.FallbackRegion)
	if err != nil {
		return nil, fmt.Errorf("invalid fallback region: %w", err)
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>32|1))
	}
	return &Sampler{
		catalog:  catalog,
		regions:  catalog.All(),
		checker:  checker,
		cfg:      cfg,
		fallback: fallback,
		rng:      rng,
	}, nil
}

// run accumulates bookkeeping across the regions tried by one Sample call.
type run struct {
	checks     int
	transient  int
	lastReason string
	tried      []string
}

// Sample searches the region identified by code. An unknown code is an
// error; every other failure is reported through the Outcome.
func (s *Sampler) Sample(ctx context.Context, code string) (Outcome, error) {
	region, err := s.catalog.Lookup(code)
	if err != nil {
		return nil, err
	}
	return s.sampleFrom(ctx, region), nil
}

// SampleRandom picks the starting region by weight and samples it.
func (s *Sampler) SampleRandom(ctx context.Context) Outcome {
	region, _ := s.pick("")
	return s.sampleFrom(ctx, region)
}

func (s *Sampler) sampleFrom(ctx context.Context, region geo.Region) Outcome {
	r := &run{}
	out := s.search(ctx, region, r)

	if out == nil && ctx.Err() == nil {
		if next, ok := s.pick(region.Code); ok {
			log.Info().Str("from", region.Code).Str("to", next.Code).Msg("Escalating sample to another region")
			out = s.search(ctx, next, r)
		}
	}
	if out == nil && ctx.Err() == nil {
		log.Info().Str("region", s.fallback.Code).Msg("Falling back to guaranteed coverage region")
		out = s.search(ctx, s.fallback, r)
	}
	if out == nil {
		out = r.verdict(ctx)
	}

	metrics.SampleOutcomesTotal.WithLabelValues(out.Kind()).Inc()
	metrics.SampleChecks.Observe(float64(r.checks))
	return out
}

func (r *run) verdict(ctx context.Context) Outcome {
	switch {
	case ctx.Err() != nil:
		return TransientFailure{Reason: ctx.Err().Error()}
	case r.checks > 0 && r.transient == r.checks:
		return TransientFailure{Reason: r.lastReason}
	default:
		return Exhausted{Regions: r.tried, Checks: r.checks}
	}
}

// search spends up to MaxAttempts random points on region and returns a
// Found outcome, or nil when the budget runs out.
func (s *Sampler) search(ctx context.Context, region geo.Region, r *run) Outcome {
	r.tried = append(r.tried, region.Code)

	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil
		}
		pt := s.randomPoint(region)
		if !region.Contains(pt) {
			continue
		}

		cov, err := s.check(ctx, pt, region.Radius)
		r.checks++
		switch {
		case err != nil:
			r.transient++
			r.lastReason = err.Error()
			log.Warn().Err(err).Str("region", region.Code).Msg("Coverage check failed")
		case cov.Status.Transient():
			r.transient++
			r.lastReason = string(cov.Status)
			log.Warn().Str("region", region.Code).Str("status", string(cov.Status)).Msg("Coverage check failed")
		case cov.Available && region.Contains(cov.Snapped):
			return Found{Coordinate: cov.Snapped, Region: region, Checks: r.checks}
		case cov.Available:
			log.Debug().Str("region", region.Code).Str("snapped", cov.Snapped.String()).Msg("Panorama outside region")
		}
	}
	return nil
}

func (s *Sampler) check(ctx context.Context, pt geo.Coordinate, radius int) (imagery.Coverage, error) {
	if s.cfg.CheckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CheckTimeout)
		defer cancel()
	}
	return s.checker.HasImagery(ctx, pt, radius)
}

// randomPoint draws uniformly from the bbox of one polygon part, choosing
// the part with probability proportional to its bbox area.
func (s *Sampler) randomPoint(region geo.Region) geo.Coordinate {
	s.mu.Lock()
	defer s.mu.Unlock()

	part := region.Parts[0]
	if len(region.Parts) > 1 {
		total := 0.0
		for _, p := range region.Parts {
			total += p.BBox.Area()
		}
		x := s.rng.Float64() * total
		for _, p := range region.Parts {
			part = p
			x -= p.BBox.Area()
			if x < 0 {
				break
			}
		}
	}

	b := part.BBox
	return geo.Coordinate{
		Lat: b.MinLat + s.rng.Float64()*(b.MaxLat-b.MinLat),
		Lon: b.MinLon + s.rng.Float64()*(b.MaxLon-b.MinLon),
	}
}

// pick chooses a region with probability proportional to its weight,
// skipping exclude. It reports false when nothing is eligible.
func (s *Sampler) pick(exclude string) (geo.Region, bool) {
	total := 0.0
	for _, r := range s.regions {
		if r.Code != exclude {
			total += r.Weight
		}
	}
	if total <= 0 {
		return geo.Region{}, false
	}

	s.mu.Lock()
	x := s.rng.Float64() * total
	s.mu.Unlock()

	var last geo.Region
	for _, r := range s.regions {
		if r.Code == exclude {
			continue
		}
		last = r
		x -= r.Weight
		if x < 0 {
			return r, true
		}
	}
	return last, true
}
