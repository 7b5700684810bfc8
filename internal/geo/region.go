// Package geo provides the immutable region catalog: polygon boundaries,
// sampling radius and pick weight for every playable region code.
package geo

import (
	"fmt"
	"strings"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

// Valid reports whether the coordinate lies within the lat/lon domain.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// String formats the coordinate as "lat,lon", the form imagery providers expect.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// BBox is an axis-aligned bounding box in degrees.
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// Contains reports whether c is inside or on the edge of the box.
func (b BBox) Contains(c Coordinate) bool {
	return c.Lon >= b.MinLon && c.Lon <= b.MaxLon && c.Lat >= b.MinLat && c.Lat <= b.MaxLat
}

// Area returns the box area in square degrees.
func (b BBox) Area() float64 {
	return (b.MaxLon - b.MinLon) * (b.MaxLat - b.MinLat)
}

func emptyBBox() BBox {
	return BBox{MinLon: 180, MinLat: 90, MaxLon: -180, MaxLat: -90}
}

func (b *BBox) extend(c Coordinate) {
	if c.Lon < b.MinLon {
		b.MinLon = c.Lon
	}
	if c.Lat < b.MinLat {
		b.MinLat = c.Lat
	}
	if c.Lon > b.MaxLon {
		b.MaxLon = c.Lon
	}
	if c.Lat > b.MaxLat {
		b.MaxLat = c.Lat
	}
}

// Polygon is one simple polygon: the first ring is the outer boundary and
// any further rings are holes.
type Polygon struct {
	Rings [][]Coordinate
	BBox  BBox
}

// NewPolygon builds a polygon and precomputes its bounding box.
func NewPolygon(rings ...[]Coordinate) Polygon {
	p := Polygon{Rings: rings, BBox: emptyBBox()}
	for _, r := range rings {
		for _, c := range r {
			p.BBox.extend(c)
		}
	}
	return p
}

// Contains reports whether c lies inside the outer ring and outside every hole.
func (p Polygon) Contains(c Coordinate) bool {
	if len(p.Rings) == 0 || !p.BBox.Contains(c) {
		return false
	}
	if !ringContains(p.Rings[0], c) {
		return false
	}
	for _, hole := range p.Rings[1:] {
		if ringContains(hole, c) {
			return false
		}
	}
	return true
}

// ringContains is the even-odd ray casting test.
func ringContains(ring []Coordinate, c Coordinate) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Lon, ring[i].Lat
		xj, yj := ring[j].Lon, ring[j].Lat
		if (yi > c.Lat) != (yj > c.Lat) && c.Lon < (xj-xi)*(c.Lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// Region is a playable area. Regions are immutable once the catalog is built.
type Region struct {
	Code   string
	Name   string
	City   string
	ISO2   string
	Radius int
	Weight float64
	Parts  []Polygon
	BBox   BBox
}

// Contains reports whether c falls inside any part of the region.
func (r Region) Contains(c Coordinate) bool {
	if !r.BBox.Contains(c) {
		return false
	}
	for _, p := range r.Parts {
		if p.Contains(c) {
			return true
		}
	}
	return false
}

// Label is the name announced when the region is guessed: the city for
// city regions, otherwise the country name.
func (r Region) Label() string {
	if r.City != "" {
		return r.City
	}
	return r.Name
}

// FullName is the city followed by its country for city regions, and the
// country name otherwise.
func (r Region) FullName() string {
	if r.City != "" {
		return r.City + " " + r.Name
	}
	return r.Name
}

func (r Region) validate() error {
	switch {
	case len(r.Code) != 3:
		return fmt.Errorf("region %q: code must have 3 letters", r.Code)
	case len(r.ISO2) != 2:
		return fmt.Errorf("region %s: iso2 %q must have 2 letters", r.Code, r.ISO2)
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("region %s: empty name", r.Code)
	case r.Radius <= 0:
		return fmt.Errorf("region %s: radius must be positive", r.Code)
	case r.Weight <= 0:
		return fmt.Errorf("region %s: weight must be positive", r.Code)
	case len(r.Parts) == 0:
		return fmt.Errorf("region %s: no geometry", r.Code)
	}
	return nil
}

func regionBBox(parts []Polygon) BBox {
	b := emptyBBox()
	for _, p := range parts {
		b.extend(Coordinate{Lat: p.BBox.MinLat, Lon: p.BBox.MinLon})
		b.extend(Coordinate{Lat: p.BBox.MaxLat, Lon: p.BBox.MaxLon})
	}
	return b
}
