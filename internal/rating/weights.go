package rating

import (
	"fmt"
	"math"
)

// weightTolerance is how far from 1.0 a weight sum may drift before the
// set is rejected.
const weightTolerance = 0.01

// Weights assigns each scoring component its share of the total. A
// Weights value is immutable once validated; reconfiguring a Calculator
// produces a new value rather than mutating shared state.
type Weights struct {
	Priority   float64 `json:"priority"`
	CodeAmount float64 `json:"codeAmount"`
	TimeFactor float64 `json:"timeFactor"`
	Relevance  float64 `json:"relevance"`
	Quality    float64 `json:"quality"`
	Impact     float64 `json:"impact"`
}

// DefaultWeights returns the standard component weighting.
func DefaultWeights() Weights {
	return Weights{
		Priority:   0.25,
		CodeAmount: 0.20,
		TimeFactor: 0.20,
		Relevance:  0.15,
		Quality:    0.10,
		Impact:     0.10,
	}
}

// Sum returns the total of all six weights.
func (w Weights) Sum() float64 {
	return w.Priority + w.CodeAmount + w.TimeFactor + w.Relevance + w.Quality + w.Impact
}

// Validate rejects weight sets that do not sum to 1.0 within tolerance.
func (w Weights) Validate() error {
	if sum := w.Sum(); math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// Of returns the weight for a named component.
func (w Weights) Of(component string) float64 {
	switch component {
	case ComponentPriority:
		return w.Priority
	case ComponentCodeAmount:
		return w.CodeAmount
	case ComponentTimeFactor:
		return w.TimeFactor
	case ComponentRelevance:
		return w.Relevance
	case ComponentQuality:
		return w.Quality
	case ComponentImpact:
		return w.Impact
	default:
		return 0
	}
}
