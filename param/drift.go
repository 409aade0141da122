package param

import (
	"math"
	"math/rand"
	"time"
)

// rng is the single process-wide random source behind every drift and
// probabilistic effect. Seed it once for reproducible runs.
var rng = rand.New(rand.NewSource(time.Now().UnixNano()))

// Seed resets the shared random source. Tests call it to make drift
// sequences and dropout decisions reproducible.
func Seed(seed int64) {
	rng = rand.New(rand.NewSource(seed))
}

// Random exposes the shared source for effects that need their own
// draws (e.g. note dropout), keeping all randomness behind one seed.
func Random() *rand.Rand { return rng }

// Drift is the strategy a param uses to evolve on its own: each time
// the bound controller fires, Step produces the next value within
// [min, max], independent of the literal control value.
type Drift interface {
	Step(r *rand.Rand, min, max float64) float64
}

// UniformDrift steps to a uniformly random value in [min, max].
type UniformDrift struct{}

func (UniformDrift) Step(r *rand.Rand, min, max float64) float64 {
	return min + r.Float64()*(max-min)
}

// ExponentialDrift steps to an exponentially distributed value with the
// given median, clamped to [min, max]. Useful for time-like params
// (delays, gaps) where small values should dominate.
type ExponentialDrift struct {
	Median float64
}

func (d ExponentialDrift) Step(r *rand.Rand, min, max float64) float64 {
	x := r.ExpFloat64() * d.Median / math.Ln2
	if x > max {
		x = max
	}
	if x < min {
		x = min
	}
	return x
}

// CoinDrift steps to max with the given probability and min otherwise.
// On a Switch this yields a random on/off toggle.
type CoinDrift struct {
	Probability float64
}

func (d CoinDrift) Step(r *rand.Rand, min, max float64) float64 {
	if r.Float64() < d.Probability {
		return max
	}
	return min
}
