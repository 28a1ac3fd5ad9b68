package rating

import "time"

// Priority classifies how urgent a pull request is.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityTrivial  Priority = "trivial"
)

// Complexity is a coarse estimate of how involved a change is.
type Complexity string

const (
	ComplexityLow      Complexity = "low"
	ComplexityMedium   Complexity = "medium"
	ComplexityHigh     Complexity = "high"
	ComplexityVeryHigh Complexity = "very-high"
)

// Level is the qualitative bucket a numeric score falls into.
type Level string

const (
	LevelExcellent    Level = "excellent"
	LevelVeryGood     Level = "very-good"
	LevelGood         Level = "good"
	LevelSatisfactory Level = "satisfactory"
	LevelAverage      Level = "average"
	LevelBelowAverage Level = "below-average"
	LevelPoor         Level = "poor"
	LevelNoData       Level = "no-data"
)

// Trend classifies whether a contributor's recent scores are rising or falling.
type Trend string

const (
	TrendImproving         Trend = "improving"
	TrendSlightlyImproving Trend = "slightly-improving"
	TrendStable            Trend = "stable"
	TrendSlightlyDeclining Trend = "slightly-declining"
	TrendDeclining         Trend = "declining"
	TrendInsufficientData  Trend = "insufficient-data"
)

// Component names, used as breakdown map keys.
const (
	ComponentPriority   = "priority"
	ComponentCodeAmount = "codeAmount"
	ComponentTimeFactor = "timeFactor"
	ComponentRelevance  = "relevance"
	ComponentQuality    = "quality"
	ComponentImpact     = "impact"
)

// Components lists the six breakdown components in canonical order.
var Components = []string{
	ComponentPriority,
	ComponentCodeAmount,
	ComponentTimeFactor,
	ComponentRelevance,
	ComponentQuality,
	ComponentImpact,
}

// QualityIndicators carries the review-process signals used by the quality scorer.
type QualityIndicators struct {
	HasTests         bool       `json:"has_tests"`
	HasDocumentation bool       `json:"has_documentation"`
	ReviewComments   int        `json:"review_comments"`
	CIPassed         bool       `json:"ci_passed"`
	CodeCoverage     float64    `json:"code_coverage"`
	Complexity       Complexity `json:"complexity"`
}

// DefaultQualityIndicators returns the indicators assumed when upstream
// data provides none: CI is presumed green, complexity medium.
func DefaultQualityIndicators() QualityIndicators {
	return QualityIndicators{
		CIPassed:   true,
		Complexity: ComplexityMedium,
	}
}

// Input is a fully populated rating request for a single pull request.
// Construct it through NewInput (or the adapters feature extractor) so
// missing optional fields receive their documented defaults.
type Input struct {
	Priority       Priority          `json:"priority"`
	LinesAdded     int               `json:"lines_added"`
	LinesDeleted   int               `json:"lines_deleted"`
	FilesChanged   int               `json:"files_changed"`
	Commits        int               `json:"commits"`
	TimeToComplete *float64          `json:"time_to_complete,omitempty"` // expected days, nil when unknown
	Deadline       *time.Time        `json:"deadline,omitempty"`
	RelevanceSeed  int               `json:"relevance_score"`
	Quality        QualityIndicators `json:"quality_indicators"`
	ImpactSeed     int               `json:"impact_score"`
	CreatedAt      time.Time         `json:"created_at"`
	MergedAt       *time.Time        `json:"merged_at,omitempty"`
	Author         string            `json:"author"`
	Repository     string            `json:"repository"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
}

// NewInput returns an Input with the documented defaults applied:
// medium priority, relevance and impact seeds of 50, a single commit,
// and default quality indicators. Callers overwrite what they know.
func NewInput() Input {
	return Input{
		Priority:      PriorityMedium,
		Commits:       1,
		RelevanceSeed: 50,
		Quality:       DefaultQualityIndicators(),
		ImpactSeed:    50,
	}
}

// normalize repairs out-of-range fields so malformed upstream data
// degrades gracefully instead of failing the rating.
func (in Input) normalize() Input {
	switch in.Priority {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow, PriorityTrivial:
	default:
		in.Priority = PriorityMedium
	}
	if in.LinesAdded < 0 {
		in.LinesAdded = 0
	}
	if in.LinesDeleted < 0 {
		in.LinesDeleted = 0
	}
	if in.FilesChanged < 0 {
		in.FilesChanged = 0
	}
	if in.Commits <= 0 {
		in.Commits = 1
	}
	in.RelevanceSeed = clampScore(in.RelevanceSeed)
	in.ImpactSeed = clampScore(in.ImpactSeed)
	switch in.Quality.Complexity {
	case ComplexityLow, ComplexityMedium, ComplexityHigh, ComplexityVeryHigh:
	default:
		in.Quality.Complexity = ComplexityMedium
	}
	return in
}

// ComponentScore is one row of a rating breakdown.
type ComponentScore struct {
	Score         int     `json:"score"`
	Weight        float64 `json:"weight"`
	WeightedScore int     `json:"weighted_score"`
}

// Metadata snapshots the facts a rating was computed from.
type Metadata struct {
	LinesAdded     int        `json:"lines_added"`
	LinesDeleted   int        `json:"lines_deleted"`
	FilesChanged   int        `json:"files_changed"`
	Commits        int        `json:"commits"`
	TimeToComplete *float64   `json:"time_to_complete,omitempty"`
	Priority       Priority   `json:"priority"`
	Author         string     `json:"author"`
	Repository     string     `json:"repository"`
	CreatedAt      time.Time  `json:"created_at"`
	MergedAt       *time.Time `json:"merged_at,omitempty"`
}

// Rating is the immutable result of scoring one pull request.
type Rating struct {
	TotalScore int                       `json:"total_score"`
	Level      Level                     `json:"rating_level"`
	Breakdown  map[string]ComponentScore `json:"breakdown"`
	Metadata   Metadata                  `json:"metadata"`
}

// ContributorRating aggregates a contributor's rating history.
type ContributorRating struct {
	ContributorID string         `json:"contributor_id,omitempty"`
	Username      string         `json:"username,omitempty"`
	AverageScore  int            `json:"average_score"`
	TotalPRs      int            `json:"total_prs"`
	Level         Level          `json:"rating_level"`
	Breakdown     map[string]int `json:"breakdown"`
	RecentTrend   Trend          `json:"recent_trend,omitempty"`
}

// ImprovementArea flags an organization-wide weak component.
type ImprovementArea struct {
	Component    string `json:"component"`
	AverageScore int    `json:"average_score"`
	Description  string `json:"description"`
}

// OrganizationStats aggregates contributor ratings across an organization.
type OrganizationStats struct {
	AverageRating      int                 `json:"average_rating"`
	TotalContributors  int                 `json:"total_contributors"`
	RatingDistribution map[Level]int       `json:"rating_distribution"`
	TopPerformers      []ContributorRating `json:"top_performers"`
	ComponentAverages  map[string]int      `json:"component_averages"`
	ImprovementAreas   []ImprovementArea   `json:"improvement_areas"`
}
