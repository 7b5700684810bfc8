package sampler

import "geoguess-bot/internal/geo"

// Outcome is the result of a sampling run: Found, Exhausted or
// TransientFailure. Callers branch with a type switch.
type Outcome interface {
	outcome()
	// Kind is a short label for logs and metrics.
	Kind() string
}

// Found carries a covered coordinate inside Region.
type Found struct {
	Coordinate geo.Coordinate
	Region     geo.Region
	// Checks is the number of coverage lookups spent across all regions tried.
	Checks int
}

// Exhausted means every region tried ran out of attempts without coverage.
type Exhausted struct {
	Regions []string
	Checks  int
}

// TransientFailure means the run could not reach a verdict: every lookup
// failed for reasons unrelated to coverage, or the caller gave up.
type TransientFailure struct {
	Reason string
}

func (Found) outcome()            {}
func (Exhausted) outcome()        {}
func (TransientFailure) outcome() {}

func (Found) Kind() string            { return "found" }
func (Exhausted) Kind() string        { return "exhausted" }
func (TransientFailure) Kind() string { return "transient" }
