package rating

import (
	"strings"
	"time"
)

var priorityScores = map[Priority]int{
	PriorityCritical: 100,
	PriorityHigh:     80,
	PriorityMedium:   60,
	PriorityLow:      40,
	PriorityTrivial:  20,
}

// Time factor outcomes. The early score intentionally exceeds 100: it
// rewards ahead-of-schedule delivery beyond the nominal ceiling and is
// only attenuated by downstream weighting, never re-clamped here.
const (
	timeOnTime         = 100
	timeEarly          = 120
	timeSlightlyLate   = 80
	timeModeratelyLate = 60
	timeVeryLate       = 40
	timeNoDeadline     = 50
)

var relevancePositive = []string{
	"bug fix", "security", "performance", "optimization",
	"feature", "enhancement", "improvement", "refactor",
	"critical", "important", "urgent", "hotfix",
}

var relevanceNegative = []string{
	"typo", "formatting", "whitespace", "comment",
	"documentation", "readme", "chore", "style",
}

var complexityAdjustment = map[Complexity]int{
	ComplexityLow:      10,
	ComplexityMedium:   0,
	ComplexityHigh:     -5,
	ComplexityVeryHigh: -10,
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// priorityScore maps a priority tag to its fixed base score.
// Unrecognized tags score as medium.
func priorityScore(p Priority) int {
	if score, ok := priorityScores[p]; ok {
		return score
	}
	return priorityScores[PriorityMedium]
}

// codeAmountScore scores the volume of a change: a bracket score on
// total lines touched, a per-file complexity bonus capped at 20, and a
// flat bonus for changes over 100 lines, all capped at 100.
func codeAmountScore(linesAdded, linesDeleted, filesChanged int) int {
	totalLines := linesAdded + linesDeleted

	var base int
	switch {
	case totalLines <= 50:
		base = 30
	case totalLines <= 200:
		base = 60
	case totalLines <= 500:
		base = 80
	default:
		base = 100
	}

	fileBonus := filesChanged * 2
	if fileBonus > 20 {
		fileBonus = 20
	}

	significantChangeBonus := 0
	if totalLines > 100 {
		significantChangeBonus = 10
	}

	score := base + fileBonus + significantChangeBonus
	if score > 100 {
		score = 100
	}
	return score
}

// timeScore compares completion time against a deadline or an expected
// duration. Open PRs are judged against elapsed time as of now.
func timeScore(timeToComplete *float64, deadline *time.Time, createdAt time.Time, mergedAt *time.Time, now time.Time) int {
	if timeToComplete == nil && deadline == nil {
		return timeNoDeadline
	}

	if mergedAt == nil {
		if deadline != nil {
			daysSinceCreation := now.Sub(createdAt).Hours() / 24
			daysAllotted := deadline.Sub(createdAt).Hours() / 24
			if daysSinceCreation <= daysAllotted {
				return timeOnTime
			}
			return lateScore(daysSinceCreation - daysAllotted)
		}
		return timeNoDeadline
	}

	actualDays := mergedAt.Sub(createdAt).Hours() / 24

	if deadline != nil {
		allottedDays := deadline.Sub(createdAt).Hours() / 24
		if actualDays <= allottedDays {
			if actualDays/allottedDays <= 0.8 {
				return timeEarly
			}
			return timeOnTime
		}
		return lateScore(actualDays - allottedDays)
	}

	if timeToComplete != nil {
		ratio := actualDays / *timeToComplete
		switch {
		case ratio <= 0.8:
			return timeEarly
		case ratio <= 1.2:
			return timeOnTime
		case ratio <= 1.5:
			return timeSlightlyLate
		default:
			return timeModeratelyLate
		}
	}

	return timeNoDeadline
}

func lateScore(daysLate float64) int {
	switch {
	case daysLate <= 3:
		return timeSlightlyLate
	case daysLate <= 7:
		return timeModeratelyLate
	default:
		return timeVeryLate
	}
}

// relevanceScore adjusts a seed score by keyword presence in the PR
// text: +5 per positive keyword found, -3 per negative. Presence, not
// frequency: a keyword counts once no matter how often it appears.
func relevanceScore(seed int, title, description string) int {
	text := strings.ToLower(title + " " + description)

	score := seed
	for _, keyword := range relevancePositive {
		if strings.Contains(text, keyword) {
			score += 5
		}
	}
	for _, keyword := range relevanceNegative {
		if strings.Contains(text, keyword) {
			score -= 3
		}
	}

	return clampScore(score)
}

// qualityScore builds from a base of 50 with bonuses for tests,
// coverage, documentation and review activity, a penalty for failed CI,
// and a complexity adjustment.
func qualityScore(q QualityIndicators) int {
	score := 50

	if q.HasTests {
		score += 15
	}
	if q.CodeCoverage > 80 {
		score += 10
	} else if q.CodeCoverage > 60 {
		score += 5
	}

	if q.HasDocumentation {
		score += 10
	}

	if q.ReviewComments > 0 {
		score += 5
	}
	if q.ReviewComments > 3 {
		score += 5
	}

	if !q.CIPassed {
		score -= 20
	}

	score += complexityAdjustment[q.Complexity]

	return clampScore(score)
}

// impactScore adjusts a seed by change scope. The bonuses stack: a PR
// adding 1200 lines across 12 files collects all three.
func impactScore(seed, linesAdded, filesChanged int) int {
	score := seed

	if linesAdded > 500 {
		score += 10
	}
	if filesChanged > 10 {
		score += 5
	}
	if linesAdded > 1000 {
		score += 15
	}

	return clampScore(score)
}
