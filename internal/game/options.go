package game

import (
	"errors"
	"math/rand/v2"
	"strings"

	"geoguess-bot/internal/geo"
)

// OptionCount is the number of answer buttons in a round.
const OptionCount = 5

// ErrNotEnoughRegions is returned when the catalog cannot supply enough
// decoys with distinct country codes.
var ErrNotEnoughRegions = errors.New("not enough distinct regions for answer options")

// Option is one answer button.
type Option struct {
	ID      int
	Label   string
	ISO2    string
	Correct bool
}

// BuildOptions returns n shuffled options: the correct region plus n-1
// decoys from pool, no two sharing an ISO2 code. Option IDs are their
// position after shuffling.
func BuildOptions(correct geo.Region, pool []geo.Region, n int, rng *rand.Rand) ([]Option, error) {
	if n < 2 {
		n = OptionCount
	}

	used := map[string]bool{strings.ToUpper(correct.ISO2): true}
	options := []Option{{Label: optionLabel(correct), ISO2: correct.ISO2, Correct: true}}

	for _, i := range rng.Perm(len(pool)) {
		if len(options) == n {
			break
		}
		r := pool[i]
		iso := strings.ToUpper(r.ISO2)
		if used[iso] {
			continue
		}
		used[iso] = true
		options = append(options, Option{Label: optionLabel(r), ISO2: r.ISO2})
	}
	if len(options) < n {
		return nil, ErrNotEnoughRegions
	}

	rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	for i := range options {
		options[i].ID = i
	}
	return options, nil
}

func optionLabel(r geo.Region) string {
	if flag := geo.Flag(r.ISO2); flag != "" {
		return flag + " " + r.Name
	}
	return r.Name
}
