package sampler

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoguess-bot/internal/geo"
	"geoguess-bot/internal/imagery"
)

func rect(minLon, minLat, maxLon, maxLat float64) geo.Polygon {
	return geo.NewPolygon([]geo.Coordinate{
		{Lat: minLat, Lon: minLon},
		{Lat: minLat, Lon: maxLon},
		{Lat: maxLat, Lon: maxLon},
		{Lat: maxLat, Lon: minLon},
		{Lat: minLat, Lon: minLon},
	})
}

func region(code, iso2 string, weight float64, parts ...geo.Polygon) geo.Region {
	return geo.Region{Code: code, Name: code, ISO2: iso2, Radius: 100, Weight: weight, Parts: parts}
}

// Three disjoint rectangles so every draw falls inside its region.
func testCatalog(t testing.TB) *geo.Catalog {
	t.Helper()
	cat, err := geo.NewCatalog([]geo.Region{
		region("USA", "US", 10, rect(-120, 30, -80, 45)),
		region("FRA", "FR", 5, rect(0, 43, 6, 50)),
		region("SGP", "SG", 1, rect(103.6, 1.2, 104, 1.45)),
	})
	require.NoError(t, err)
	return cat
}

// scriptedChecker answers from a per-call script, then from fallback.
type scriptedChecker struct {
	mu       sync.Mutex
	script   []imagery.Status
	fallback func(at geo.Coordinate) (imagery.Coverage, error)
	calls    []geo.Coordinate
}

func (c *scriptedChecker) HasImagery(_ context.Context, at geo.Coordinate, _ int) (imagery.Coverage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, at)
	if len(c.script) > 0 {
		st := c.script[0]
		c.script = c.script[1:]
		return imagery.Coverage{Status: st, Available: st == imagery.StatusOK, Snapped: at}, nil
	}
	if c.fallback != nil {
		return c.fallback(at)
	}
	return imagery.Coverage{Status: imagery.StatusZeroResults, Snapped: at}, nil
}

func (c *scriptedChecker) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func newSampler(t testing.TB, checker imagery.Checker, cfg Config) *Sampler {
	t.Helper()
	if cfg.FallbackRegion == "" {
		cfg.FallbackRegion = "SGP"
	}
	s, err := New(testCatalog(t), checker, cfg, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	return s
}

func TestSample_FoundOnThirdCheck(t *testing.T) {
	checker := &scriptedChecker{script: []imagery.Status{
		imagery.StatusZeroResults, imagery.StatusZeroResults, imagery.StatusOK,
	}}
	s := newSampler(t, checker, Config{})

	out, err := s.Sample(context.Background(), "USA")
	require.NoError(t, err)

	found, ok := out.(Found)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, "USA", found.Region.Code)
	assert.Equal(t, 3, found.Checks)
	assert.Equal(t, 3, checker.count())
	assert.True(t, found.Region.Contains(found.Coordinate))
}

func TestSample_UnknownRegion(t *testing.T) {
	s := newSampler(t, &scriptedChecker{}, Config{})
	out, err := s.Sample(context.Background(), "XYZ")
	assert.Nil(t, out)
	assert.ErrorIs(t, err, geo.ErrUnknownRegion)
}

func TestNew_InvalidFallback(t *testing.T) {
	_, err := New(testCatalog(t), &scriptedChecker{}, Config{FallbackRegion: "NOPE"}, nil)
	assert.ErrorIs(t, err, geo.ErrUnknownRegion)
}

func TestSample_Exhausted(t *testing.T) {
	checker := &scriptedChecker{}
	s := newSampler(t, checker, Config{MaxAttempts: 50})

	out, err := s.Sample(context.Background(), "USA")
	require.NoError(t, err)

	ex, ok := out.(Exhausted)
	require.True(t, ok, "got %T", out)
	require.Len(t, ex.Regions, 3)
	assert.Equal(t, "USA", ex.Regions[0])
	assert.NotEqual(t, "USA", ex.Regions[1], "escalation excludes the failed region")
	assert.Equal(t, "SGP", ex.Regions[2])
	assert.Equal(t, 150, ex.Checks)
	assert.Equal(t, 150, checker.count())
}

func TestSample_EscalatesToOtherRegion(t *testing.T) {
	usa := rect(-120, 30, -80, 45)
	checker := &scriptedChecker{fallback: func(at geo.Coordinate) (imagery.Coverage, error) {
		if usa.Contains(at) {
			return imagery.Coverage{Status: imagery.StatusZeroResults, Snapped: at}, nil
		}
		return imagery.Coverage{Status: imagery.StatusOK, Available: true, Snapped: at}, nil
	}}
	s := newSampler(t, checker, Config{MaxAttempts: 5})

	out, err := s.Sample(context.Background(), "USA")
	require.NoError(t, err)

	found, ok := out.(Found)
	require.True(t, ok, "got %T", out)
	assert.NotEqual(t, "USA", found.Region.Code)
	assert.Equal(t, 6, found.Checks)
}

func TestSample_FallbackRegion(t *testing.T) {
	sgp := rect(103.6, 1.2, 104, 1.45)
	checker := &scriptedChecker{fallback: func(at geo.Coordinate) (imagery.Coverage, error) {
		if sgp.Contains(at) {
			return imagery.Coverage{Status: imagery.StatusOK, Available: true, Snapped: at}, nil
		}
		return imagery.Coverage{Status: imagery.StatusZeroResults, Snapped: at}, nil
	}}
	s := newSampler(t, checker, Config{MaxAttempts: 4})

	out, err := s.Sample(context.Background(), "FRA")
	require.NoError(t, err)

	found, ok := out.(Found)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, "SGP", found.Region.Code)
	// Escalation either picked SGP directly (5 checks) or went through USA
	// before the fallback (9 checks).
	assert.Contains(t, []int{5, 9}, found.Checks)
}

func TestSample_TransientOnly(t *testing.T) {
	tests := []struct {
		name    string
		checker imagery.Checker
		reason  string
	}{
		{
			name: "quota",
			checker: &scriptedChecker{fallback: func(at geo.Coordinate) (imagery.Coverage, error) {
				return imagery.Coverage{Status: imagery.StatusOverQueryLimit}, nil
			}},
			reason: "OVER_QUERY_LIMIT",
		},
		{
			name: "transport",
			checker: &scriptedChecker{fallback: func(at geo.Coordinate) (imagery.Coverage, error) {
				return imagery.Coverage{}, errors.New("connection reset")
			}},
			reason: "connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSampler(t, tt.checker, Config{MaxAttempts: 3})
			out, err := s.Sample(context.Background(), "USA")
			require.NoError(t, err)

			tf, ok := out.(TransientFailure)
			require.True(t, ok, "got %T", out)
			assert.Equal(t, tt.reason, tf.Reason)
		})
	}
}

func TestSample_MixedFailuresAreExhausted(t *testing.T) {
	checker := &scriptedChecker{script: []imagery.Status{imagery.StatusRequestDenied}}
	s := newSampler(t, checker, Config{MaxAttempts: 2})

	out, err := s.Sample(context.Background(), "USA")
	require.NoError(t, err)
	_, ok := out.(Exhausted)
	assert.True(t, ok, "got %T", out)
}

func TestSample_ContextCancelled(t *testing.T) {
	checker := &scriptedChecker{}
	s := newSampler(t, checker, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := s.Sample(ctx, "USA")
	require.NoError(t, err)
	tf, ok := out.(TransientFailure)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, context.Canceled.Error(), tf.Reason)
	assert.Zero(t, checker.count())
}

type blockingChecker struct{}

func (blockingChecker) HasImagery(ctx context.Context, _ geo.Coordinate, _ int) (imagery.Coverage, error) {
	<-ctx.Done()
	return imagery.Coverage{}, ctx.Err()
}

func TestSample_CheckTimeout(t *testing.T) {
	s := newSampler(t, blockingChecker{}, Config{MaxAttempts: 1, CheckTimeout: 10 * time.Millisecond})

	start := time.Now()
	out, err := s.Sample(context.Background(), "USA")
	require.NoError(t, err)

	tf, ok := out.(TransientFailure)
	require.True(t, ok, "got %T", out)
	assert.Contains(t, tf.Reason, "deadline")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSample_RejectsSnappedOutsideRegion(t *testing.T) {
	calls := 0
	checker := &scriptedChecker{fallback: func(at geo.Coordinate) (imagery.Coverage, error) {
		calls++
		if calls == 1 {
			return imagery.Coverage{Status: imagery.StatusOK, Available: true, Snapped: geo.Coordinate{Lat: -60, Lon: 0}}, nil
		}
		return imagery.Coverage{Status: imagery.StatusOK, Available: true, Snapped: at}, nil
	}}
	s := newSampler(t, checker, Config{})

	out, err := s.Sample(context.Background(), "FRA")
	require.NoError(t, err)
	found, ok := out.(Found)
	require.True(t, ok)
	assert.Equal(t, 2, found.Checks)
	assert.True(t, found.Region.Contains(found.Coordinate))
}

func TestSample_RejectionCountsAsAttempt(t *testing.T) {
	// An L-shaped region leaves a quarter of its bbox outside the polygon.
	l := geo.NewPolygon([]geo.Coordinate{
		{Lat: 0, Lon: 0}, {Lat: 0, Lon: 10}, {Lat: 5, Lon: 10},
		{Lat: 5, Lon: 5}, {Lat: 10, Lon: 5}, {Lat: 10, Lon: 0}, {Lat: 0, Lon: 0},
	})
	cat, err := geo.NewCatalog([]geo.Region{
		region("LLL", "LL", 1, l),
		region("SGP", "SG", 1, rect(103.6, 1.2, 104, 1.45)),
	})
	require.NoError(t, err)

	checker := &scriptedChecker{}
	s, err := New(cat, checker, Config{MaxAttempts: 40, FallbackRegion: "SGP"}, rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)

	out, err := s.Sample(context.Background(), "LLL")
	require.NoError(t, err)
	ex, ok := out.(Exhausted)
	require.True(t, ok)

	// LLL, then SGP as the only escalation target, then SGP as fallback.
	assert.Equal(t, []string{"LLL", "SGP", "SGP"}, ex.Regions)
	assert.Less(t, ex.Checks, 120, "points outside the polygon spend attempts without a lookup")
	for _, c := range checker.calls {
		if c.Lon < 20 {
			assert.True(t, l.Contains(c), "lookup outside polygon at %v", c)
		}
	}
}

func TestSampleRandom_FollowsWeights(t *testing.T) {
	checker := &scriptedChecker{fallback: func(at geo.Coordinate) (imagery.Coverage, error) {
		return imagery.Coverage{Status: imagery.StatusOK, Available: true, Snapped: at}, nil
	}}
	s := newSampler(t, checker, Config{})

	counts := map[string]int{}
	const n = 4000
	for i := 0; i < n; i++ {
		found, ok := s.SampleRandom(context.Background()).(Found)
		require.True(t, ok)
		counts[found.Region.Code]++
	}

	// Weights 10:5:1.
	assert.InDelta(t, 10.0/16, float64(counts["USA"])/n, 0.04)
	assert.InDelta(t, 5.0/16, float64(counts["FRA"])/n, 0.04)
	assert.InDelta(t, 1.0/16, float64(counts["SGP"])/n, 0.03)
}

func TestSample_ConcurrentUse(t *testing.T) {
	checker := &scriptedChecker{fallback: func(at geo.Coordinate) (imagery.Coverage, error) {
		return imagery.Coverage{Status: imagery.StatusOK, Available: true, Snapped: at}, nil
	}}
	s := newSampler(t, checker, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.Sample(context.Background(), "FRA")
			assert.NoError(t, err)
			assert.IsType(t, Found{}, out)
		}()
	}
	wg.Wait()
	assert.Equal(t, 32, checker.count())
}
