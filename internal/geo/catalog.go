package geo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// ErrUnknownRegion is returned when a region code is not in the catalog.
var ErrUnknownRegion = errors.New("unknown region")

// Catalog is a read-only table of regions keyed by code.
// It is safe for concurrent use because nothing mutates it after NewCatalog.
type Catalog struct {
	byCode  map[string]Region
	ordered []Region
}

// NewCatalog validates the regions and builds the lookup table.
func NewCatalog(regions []Region) (*Catalog, error) {
	c := &Catalog{byCode: make(map[string]Region, len(regions))}
	for _, r := range regions {
		r.Code = strings.ToUpper(r.Code)
		r.ISO2 = strings.ToUpper(r.ISO2)
		if err := r.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byCode[r.Code]; dup {
			return nil, fmt.Errorf("duplicate region code %s", r.Code)
		}
		r.BBox = regionBBox(r.Parts)
		c.byCode[r.Code] = r
		c.ordered = append(c.ordered, r)
	}
	if len(c.ordered) == 0 {
		return nil, errors.New("catalog has no regions")
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].Code < c.ordered[j].Code })
	return c, nil
}

// Lookup returns the region for code. Codes are matched case-insensitively.
func (c *Catalog) Lookup(code string) (Region, error) {
	r, ok := c.byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Region{}, fmt.Errorf("%w: %q", ErrUnknownRegion, code)
	}
	return r, nil
}

// All returns every region ordered by code. The slice is a copy.
func (c *Catalog) All() []Region {
	out := make([]Region, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Len returns the number of regions.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

// Flag returns the flag emoji for a two-letter country code, or "" when the
// code is not two ASCII letters.
func Flag(iso2 string) string {
	if len(iso2) != 2 {
		return ""
	}
	var b strings.Builder
	for _, ch := range strings.ToUpper(iso2) {
		if ch > unicode.MaxASCII || !unicode.IsLetter(ch) {
			return ""
		}
		b.WriteRune(0x1F1E6 + (ch - 'A'))
	}
	return b.String()
}
