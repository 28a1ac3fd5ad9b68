package rating

import (
	"math"
	"sort"
)

// recentWindow is how many of the newest ratings count as "recent" when
// detecting a trend.
const recentWindow = 3

var improvementDescriptions = map[string]string{
	ComponentPriority:   "Focus on higher priority tasks and better task prioritization",
	ComponentCodeAmount: "Encourage more substantial contributions and meaningful changes",
	ComponentTimeFactor: "Improve time management and deadline adherence",
	ComponentRelevance:  "Better alignment with project goals and objectives",
	ComponentQuality:    "Enhance code quality, testing, and documentation",
	ComponentImpact:     "Increase the impact and scope of contributions",
}

// AggregateContributor rolls a contributor's PR ratings into an overall
// rating with per-component averages and a recency trend. Input order
// does not matter; trend analysis sorts by creation time internally. An
// empty history yields the no-data sentinel rather than an error.
func AggregateContributor(ratings []Rating) ContributorRating {
	if len(ratings) == 0 {
		return ContributorRating{
			Level:     LevelNoData,
			Breakdown: map[string]int{},
		}
	}

	total := 0
	for _, r := range ratings {
		total += r.TotalScore
	}
	averageScore := roundMean(total, len(ratings))

	breakdown := make(map[string]int, len(Components))
	for _, component := range Components {
		sum := 0
		for _, r := range ratings {
			sum += r.Breakdown[component].Score
		}
		breakdown[component] = roundMean(sum, len(ratings))
	}

	return ContributorRating{
		AverageScore: averageScore,
		TotalPRs:     len(ratings),
		Level:        LevelFor(averageScore),
		Breakdown:    breakdown,
		RecentTrend:  trendOf(ratings),
	}
}

// trendOf compares the average of the newest ratings against everything
// before them. With fewer than two ratings, or none older than the
// recent window, there is nothing to compare.
func trendOf(ratings []Rating) Trend {
	if len(ratings) < 2 {
		return TrendInsufficientData
	}

	sorted := make([]Rating, len(ratings))
	copy(sorted, ratings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Metadata.CreatedAt.Before(sorted[j].Metadata.CreatedAt)
	})

	split := len(sorted) - recentWindow
	if split <= 0 {
		return TrendInsufficientData
	}
	older, recent := sorted[:split], sorted[split:]

	improvement := meanTotal(recent) - meanTotal(older)
	switch {
	case improvement > 10:
		return TrendImproving
	case improvement > 5:
		return TrendSlightlyImproving
	case improvement < -10:
		return TrendDeclining
	case improvement < -5:
		return TrendSlightlyDeclining
	default:
		return TrendStable
	}
}

func meanTotal(ratings []Rating) float64 {
	sum := 0
	for _, r := range ratings {
		sum += r.TotalScore
	}
	return float64(sum) / float64(len(ratings))
}

// AggregateOrganization combines contributor ratings into organization
// statistics: rating distribution, top 20% performers, and the
// components averaging below 60 with guidance for each. An empty input
// yields a zeroed structure.
func AggregateOrganization(contributors []ContributorRating) OrganizationStats {
	stats := OrganizationStats{
		RatingDistribution: emptyDistribution(),
		TopPerformers:      []ContributorRating{},
		ComponentAverages:  map[string]int{},
		ImprovementAreas:   []ImprovementArea{},
	}
	if len(contributors) == 0 {
		return stats
	}

	total := 0
	for _, cr := range contributors {
		total += cr.AverageScore
		stats.RatingDistribution[cr.Level]++
	}
	stats.AverageRating = roundMean(total, len(contributors))
	stats.TotalContributors = len(contributors)

	ranked := make([]ContributorRating, len(contributors))
	copy(ranked, contributors)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AverageScore > ranked[j].AverageScore
	})
	topCount := int(math.Ceil(float64(len(ranked)) * 0.2))
	stats.TopPerformers = ranked[:topCount]

	for _, component := range Components {
		sum := 0
		for _, cr := range contributors {
			sum += cr.Breakdown[component]
		}
		avg := float64(sum) / float64(len(contributors))
		rounded := int(math.Round(avg))
		stats.ComponentAverages[component] = rounded

		if avg < 60 {
			stats.ImprovementAreas = append(stats.ImprovementAreas, ImprovementArea{
				Component:    component,
				AverageScore: rounded,
				Description:  improvementDescriptions[component],
			})
		}
	}

	return stats
}

func emptyDistribution() map[Level]int {
	return map[Level]int{
		LevelExcellent:    0,
		LevelVeryGood:     0,
		LevelGood:         0,
		LevelSatisfactory: 0,
		LevelAverage:      0,
		LevelBelowAverage: 0,
		LevelPoor:         0,
	}
}

func roundMean(sum, n int) int {
	return int(math.Round(float64(sum) / float64(n)))
}
