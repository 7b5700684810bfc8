// Package imagery talks to the street-level imagery provider: coverage
// lookups for candidate points and image downloads for a view.
package imagery

import (
	"context"
	"errors"
	"strconv"

	"geoguess-bot/internal/geo"
)

// ErrImageFetch is returned when an image cannot be downloaded.
var ErrImageFetch = errors.New("image fetch failed")

// Status is the provider's metadata status.
type Status string

const (
	StatusOK             Status = "OK"
	StatusZeroResults    Status = "ZERO_RESULTS"
	StatusOverQueryLimit Status = "OVER_QUERY_LIMIT"
	StatusRequestDenied  Status = "REQUEST_DENIED"
	StatusUnknownError   Status = "UNKNOWN_ERROR"
)

// ParseStatus maps a provider status string onto the known taxonomy.
// Anything unrecognised is StatusUnknownError.
func ParseStatus(s string) Status {
	switch st := Status(s); st {
	case StatusOK, StatusZeroResults, StatusOverQueryLimit, StatusRequestDenied:
		return st
	default:
		return StatusUnknownError
	}
}

// Transient reports whether the status says nothing about coverage and the
// check should count as a failed attempt rather than a definitive answer.
func (s Status) Transient() bool {
	return s != StatusOK && s != StatusZeroResults
}

// Coverage is the answer to a coverage lookup.
type Coverage struct {
	Available bool           `json:"available"`
	Snapped   geo.Coordinate `json:"snapped"`
	Status    Status         `json:"status"`
}

// ViewParams describes the camera for an image download.
type ViewParams struct {
	Heading int
	Pitch   int
	FOV     int
	Size    string
}

func (v ViewParams) query() map[string]string {
	return map[string]string{
		"size":    v.Size,
		"heading": strconv.Itoa(v.Heading),
		"pitch":   strconv.Itoa(v.Pitch),
		"fov":     strconv.Itoa(v.FOV),
	}
}

// Checker answers whether a point has imagery within radius meters.
type Checker interface {
	HasImagery(ctx context.Context, at geo.Coordinate, radius int) (Coverage, error)
}

// Fetcher downloads the image for a view.
type Fetcher interface {
	FetchImage(ctx context.Context, at geo.Coordinate, view ViewParams) ([]byte, error)
}

// Gateway is the full provider surface.
type Gateway interface {
	Checker
	Fetcher
}
