package game

import (
	"fmt"

	"geoguess-bot/internal/geo"
	"geoguess-bot/internal/imagery"
)

// Direction is a navigation action.
type Direction int

const (
	PanLeft Direction = iota + 1
	PanRight
	ZoomIn
	ZoomOut
)

// Directions lists every navigation action in keyboard order.
var Directions = []Direction{PanLeft, ZoomIn, ZoomOut, PanRight}

func (d Direction) String() string {
	switch d {
	case PanLeft:
		return "left"
	case PanRight:
		return "right"
	case ZoomIn:
		return "in"
	case ZoomOut:
		return "out"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection is the inverse of Direction.String.
func ParseDirection(s string) (Direction, error) {
	for _, d := range Directions {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// View limits and defaults.
const (
	PanStep          = 90
	FOVStep          = 20
	MinFOV           = 30
	MaxFOV           = 150
	DefaultFOV       = 110
	DefaultImageSize = "640x550"
)

// ViewState is the camera of a round.
type ViewState struct {
	Coordinate geo.Coordinate
	Heading    int
	Pitch      int
	FOV        int
	Size       string
}

// NewView returns the opening camera at a point: facing north, level,
// with the default field of view.
func NewView(at geo.Coordinate, size string) ViewState {
	if size == "" {
		size = DefaultImageSize
	}
	return ViewState{Coordinate: at, Heading: 0, Pitch: 0, FOV: DefaultFOV, Size: size}
}

// Apply returns the view after d. It reports false when d would push the
// field of view outside [MinFOV, MaxFOV]; the view is then unchanged.
func (v ViewState) Apply(d Direction) (ViewState, bool) {
	switch d {
	case PanLeft:
		v.Heading = (v.Heading + 360 - PanStep) % 360
	case PanRight:
		v.Heading = (v.Heading + PanStep) % 360
	case ZoomIn:
		if v.FOV-FOVStep < MinFOV {
			return v, false
		}
		v.FOV -= FOVStep
	case ZoomOut:
		if v.FOV+FOVStep > MaxFOV {
			return v, false
		}
		v.FOV += FOVStep
	default:
		return v, false
	}
	return v, true
}

// Params converts the view into provider request parameters.
func (v ViewState) Params() imagery.ViewParams {
	return imagery.ViewParams{Heading: v.Heading, Pitch: v.Pitch, FOV: v.FOV, Size: v.Size}
}
