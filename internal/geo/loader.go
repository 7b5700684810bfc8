package geo

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// RegionTable is the YAML sampling table. Only codes listed here are playable.
type RegionTable struct {
	Regions []RegionEntry `yaml:"regions"`
}

// RegionEntry tunes sampling for one region. Name, City and ISO2 override the
// boundary file's properties when set.
type RegionEntry struct {
	Code   string  `yaml:"code"`
	Radius int     `yaml:"radius"`
	Weight float64 `yaml:"weight"`
	Name   string  `yaml:"name,omitempty"`
	City   string  `yaml:"city,omitempty"`
	ISO2   string  `yaml:"iso2,omitempty"`
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Properties struct {
		ISO3     string `json:"ISO3"`
		ISO2     string `json:"ISO2"`
		Name     string `json:"NAME"`
		CityName string `json:"CITY_NAME"`
	} `json:"properties"`
	Geometry struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
}

// LoadCatalog reads the GeoJSON boundaries and the YAML region table from
// disk and builds the catalog.
func LoadCatalog(boundariesPath, regionsPath string) (*Catalog, error) {
	bf, err := os.Open(boundariesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open boundaries: %w", err)
	}
	defer bf.Close()

	tf, err := os.Open(regionsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open region table: %w", err)
	}
	defer tf.Close()

	return Load(bf, tf)
}

// Load builds a catalog from a GeoJSON FeatureCollection and a region table.
func Load(boundaries, table io.Reader) (*Catalog, error) {
	var fc featureCollection
	if err := json.NewDecoder(boundaries).Decode(&fc); err != nil {
		return nil, fmt.Errorf("failed to decode boundaries: %w", err)
	}
	if !strings.EqualFold(fc.Type, "FeatureCollection") {
		return nil, fmt.Errorf("boundaries: expected FeatureCollection, got %q", fc.Type)
	}

	var rt RegionTable
	if err := yaml.NewDecoder(table).Decode(&rt); err != nil {
		return nil, fmt.Errorf("failed to decode region table: %w", err)
	}

	entries := make(map[string]RegionEntry, len(rt.Regions))
	for _, e := range rt.Regions {
		entries[strings.ToUpper(e.Code)] = e
	}

	regions := make(map[string]*Region)
	var order []string
	for _, f := range fc.Features {
		code := strings.ToUpper(f.Properties.ISO3)
		entry, ok := entries[code]
		if !ok {
			continue
		}
		parts, err := decodeGeometry(f.Geometry.Type, f.Geometry.Coordinates)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", code, err)
		}
		r, seen := regions[code]
		if !seen {
			r = &Region{
				Code:   code,
				Name:   firstNonEmpty(entry.Name, f.Properties.Name),
				City:   firstNonEmpty(entry.City, f.Properties.CityName),
				ISO2:   firstNonEmpty(entry.ISO2, f.Properties.ISO2),
				Radius: entry.Radius,
				Weight: entry.Weight,
			}
			regions[code] = r
			order = append(order, code)
		}
		r.Parts = append(r.Parts, parts...)
	}

	for code := range entries {
		if _, ok := regions[code]; !ok {
			return nil, fmt.Errorf("region %s listed in table but has no boundary", code)
		}
	}

	list := make([]Region, 0, len(order))
	for _, code := range order {
		list = append(list, *regions[code])
	}

	cat, err := NewCatalog(list)
	if err != nil {
		return nil, err
	}
	log.Info().Int("regions", cat.Len()).Int("features", len(fc.Features)).Msg("Geometry catalog loaded")
	return cat, nil
}

func decodeGeometry(kind string, raw json.RawMessage) ([]Polygon, error) {
	switch strings.ToLower(kind) {
	case "polygon":
		var rings [][][]float64
		if err := json.Unmarshal(raw, &rings); err != nil {
			return nil, fmt.Errorf("invalid polygon coordinates: %w", err)
		}
		p, err := toPolygon(rings)
		if err != nil {
			return nil, err
		}
		return []Polygon{p}, nil
	case "multipolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(raw, &polys); err != nil {
			return nil, fmt.Errorf("invalid multipolygon coordinates: %w", err)
		}
		out := make([]Polygon, 0, len(polys))
		for _, rings := range polys {
			p, err := toPolygon(rings)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", kind)
	}
}

// toPolygon converts GeoJSON [lon, lat] positions.
func toPolygon(raw [][][]float64) (Polygon, error) {
	rings := make([][]Coordinate, 0, len(raw))
	for _, r := range raw {
		if len(r) < 4 {
			return Polygon{}, fmt.Errorf("ring has %d positions, need at least 4", len(r))
		}
		ring := make([]Coordinate, 0, len(r))
		for _, pos := range r {
			if len(pos) < 2 {
				return Polygon{}, fmt.Errorf("position has %d values", len(pos))
			}
			c := Coordinate{Lat: pos[1], Lon: pos[0]}
			if !c.Valid() {
				return Polygon{}, fmt.Errorf("position %v out of range", pos)
			}
			ring = append(ring, c)
		}
		rings = append(rings, ring)
	}
	if len(rings) == 0 {
		return Polygon{}, fmt.Errorf("polygon without rings")
	}
	return NewPolygon(rings...), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
