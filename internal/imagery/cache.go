package imagery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"geoguess-bot/internal/geo"
	"geoguess-bot/internal/metrics"
)

const coverageKeyPrefix = "geoguess:coverage:"

// CoverageCache remembers definitive coverage answers per geohash cell so
// repeated samples in the same area do not spend provider quota.
// Transient statuses and errors are never cached. Redis failures degrade to
// calling the wrapped checker.
type CoverageCache struct {
	next      Checker
	rdb       *redis.Client
	ttl       time.Duration
	precision int
}

// NewCoverageCache wraps next. precision is the geohash length of a cell
// (6 is roughly 1.2 km x 0.6 km).
func NewCoverageCache(next Checker, rdb *redis.Client, ttl time.Duration, precision int) *CoverageCache {
	if precision <= 0 || precision > 12 {
		precision = 6
	}
	return &CoverageCache{next: next, rdb: rdb, ttl: ttl, precision: precision}
}

// HasImagery implements Checker.
func (c *CoverageCache) HasImagery(ctx context.Context, at geo.Coordinate, radius int) (Coverage, error) {
	key := c.key(at, radius)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cov Coverage
		if jerr := json.Unmarshal(raw, &cov); jerr == nil {
			metrics.CoverageCacheHitsTotal.Inc()
			return cov, nil
		}
		log.Warn().Str("key", key).Msg("Dropping undecodable coverage cache entry")
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Str("key", key).Msg("Coverage cache read failed")
	}
	metrics.CoverageCacheMissesTotal.Inc()

	cov, err := c.next.HasImagery(ctx, at, radius)
	if err != nil || cov.Status.Transient() {
		return cov, err
	}

	if data, merr := json.Marshal(cov); merr == nil {
		if serr := c.rdb.Set(ctx, key, data, c.ttl).Err(); serr != nil {
			log.Warn().Err(serr).Str("key", key).Msg("Coverage cache write failed")
		}
	}
	return cov, nil
}

func (c *CoverageCache) key(at geo.Coordinate, radius int) string {
	gh := geohash.Encode(at.Lat, at.Lon)
	if len(gh) > c.precision {
		gh = gh[:c.precision]
	}
	return fmt.Sprintf("%s%d:%s", coverageKeyPrefix, radius, gh)
}
