package rating

import (
	"math"
	"time"
)

// Calculator scores pull requests with a fixed, validated set of
// component weights. It is safe for concurrent use: Rate performs no
// I/O and touches no shared mutable state.
type Calculator struct {
	weights Weights
	now     func() time.Time
}

// NewCalculator returns a calculator using the default weights.
func NewCalculator() *Calculator {
	return &Calculator{
		weights: DefaultWeights(),
		now:     time.Now,
	}
}

// NewCalculatorWithWeights returns a calculator using the given
// weights, or an error if they do not sum to 1.0.
func NewCalculatorWithWeights(w Weights) (*Calculator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{weights: w, now: time.Now}, nil
}

// WithWeights returns a new calculator carrying the given weights. The
// receiver is left untouched, so a rejected weight set never disturbs
// the active configuration.
func (c *Calculator) WithWeights(w Weights) (*Calculator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{weights: w, now: c.now}, nil
}

// Weights returns the calculator's active weight configuration.
func (c *Calculator) Weights() Weights {
	return c.weights
}

// Rate computes the weighted composite rating for one pull request.
// Malformed fields degrade to documented defaults rather than failing;
// the returned Rating is immutable.
func (c *Calculator) Rate(in Input) Rating {
	in = in.normalize()

	scores := map[string]int{
		ComponentPriority:   priorityScore(in.Priority),
		ComponentCodeAmount: codeAmountScore(in.LinesAdded, in.LinesDeleted, in.FilesChanged),
		ComponentTimeFactor: timeScore(in.TimeToComplete, in.Deadline, in.CreatedAt, in.MergedAt, c.now()),
		ComponentRelevance:  relevanceScore(in.RelevanceSeed, in.Title, in.Description),
		ComponentQuality:    qualityScore(in.Quality),
		ComponentImpact:     impactScore(in.ImpactSeed, in.LinesAdded, in.FilesChanged),
	}

	// The total rounds the sum of the unrounded products; summing the
	// per-component rounded values instead would compound rounding error.
	breakdown := make(map[string]ComponentScore, len(Components))
	weightedSum := 0.0
	for _, component := range Components {
		weight := c.weights.Of(component)
		product := float64(scores[component]) * weight
		weightedSum += product
		breakdown[component] = ComponentScore{
			Score:         scores[component],
			Weight:        weight,
			WeightedScore: int(math.Round(product)),
		}
	}

	totalScore := int(math.Round(weightedSum))

	return Rating{
		TotalScore: totalScore,
		Level:      LevelFor(totalScore),
		Breakdown:  breakdown,
		Metadata: Metadata{
			LinesAdded:     in.LinesAdded,
			LinesDeleted:   in.LinesDeleted,
			FilesChanged:   in.FilesChanged,
			Commits:        in.Commits,
			TimeToComplete: in.TimeToComplete,
			Priority:       in.Priority,
			Author:         in.Author,
			Repository:     in.Repository,
			CreatedAt:      in.CreatedAt,
			MergedAt:       in.MergedAt,
		},
	}
}

// LevelFor maps a 0-100 score onto the seven rating buckets.
func LevelFor(score int) Level {
	switch {
	case score >= 90:
		return LevelExcellent
	case score >= 80:
		return LevelVeryGood
	case score >= 70:
		return LevelGood
	case score >= 60:
		return LevelSatisfactory
	case score >= 50:
		return LevelAverage
	case score >= 40:
		return LevelBelowAverage
	default:
		return LevelPoor
	}
}
