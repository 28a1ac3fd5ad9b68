package leaderboard

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/praisehq/praise/internal/database"
	"github.com/praisehq/praise/internal/rating"
)

// RatingSource is the slice of the rating store the leaderboard needs.
// The aggregation logic stays decoupled from the concrete database so
// it can be tested against an in-memory source.
type RatingSource interface {
	GetContributor(id string) (*database.Contributor, error)
	ContributorsForOrganization(organizationID string) ([]*database.Contributor, error)
	RatingsFor(contributorID string) ([]rating.Rating, error)
	RatingRecordsForOrganization(organizationID string) ([]*database.PRRating, error)
}

// ContributorInfo identifies a contributor in API responses.
type ContributorInfo struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Entry is a single leaderboard row.
type Entry struct {
	Rank        int                      `json:"rank"`
	Contributor ContributorInfo          `json:"contributor"`
	Rating      rating.ContributorRating `json:"rating"`
}

// Response is a ranked leaderboard for one organization.
type Response struct {
	OrganizationID string  `json:"organization_id"`
	Entries        []Entry `json:"entries"`
	Total          int     `json:"total"`
}

// OrganizationOverview pairs organization statistics with the per
// contributor aggregates they were computed from.
type OrganizationOverview struct {
	OrganizationID string                     `json:"organization_id"`
	Statistics     rating.OrganizationStats   `json:"statistics"`
	Contributors   []rating.ContributorRating `json:"contributors"`
}

// ContributorOverview is a contributor's aggregate plus recent history.
type ContributorOverview struct {
	Contributor   ContributorInfo          `json:"contributor"`
	OverallRating rating.ContributorRating `json:"overall_rating"`
	RecentRatings []rating.Rating          `json:"recent_ratings"`
	TotalRatings  int                      `json:"total_ratings"`
}

// Insight is a human-readable observation derived from analytics.
type Insight struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// Analytics summarizes an organization's rating history.
type Analytics struct {
	TotalRatings       int            `json:"total_ratings"`
	AverageRating      int            `json:"average_rating"`
	RatingDistribution map[string]int `json:"rating_distribution"`
	ComponentAnalysis  map[string]int `json:"component_analysis"`
	Insights           []Insight      `json:"insights"`
}

// Service computes leaderboards and analytics over stored ratings.
type Service struct {
	source RatingSource
	cache  *Cache
	logger *slog.Logger
}

// NewService creates a leaderboard service with a 15 minute cache.
func NewService(source RatingSource, logger *slog.Logger) *Service {
	return NewServiceWithCache(source, NewCache(15*time.Minute), logger)
}

// NewServiceWithCache creates a leaderboard service with a custom cache.
func NewServiceWithCache(source RatingSource, cache *Cache, logger *slog.Logger) *Service {
	return &Service{source: source, cache: cache, logger: logger}
}

// GetLeaderboard ranks an organization's contributors by average score,
// highest first. Contributors without rated PRs are excluded.
func (s *Service) GetLeaderboard(organizationID string, limit int) (*Response, error) {
	if limit <= 0 {
		limit = 10
	}

	if cached, ok := s.cache.GetLeaderboard(organizationID, limit); ok {
		return cached, nil
	}

	aggregates, err := s.contributorAggregates(organizationID)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(aggregates))
	for _, agg := range aggregates {
		if agg.rating.TotalPRs == 0 {
			continue
		}
		entries = append(entries, Entry{
			Contributor: agg.info,
			Rating:      agg.rating,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Rating.AverageScore > entries[j].Rating.AverageScore
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	response := &Response{
		OrganizationID: organizationID,
		Entries:        entries,
		Total:          len(entries),
	}
	s.cache.SetLeaderboard(organizationID, limit, response)
	return response, nil
}

// GetOrganizationOverview aggregates every contributor in the
// organization and derives organization-wide statistics.
func (s *Service) GetOrganizationOverview(organizationID string) (*OrganizationOverview, error) {
	aggregates, err := s.contributorAggregates(organizationID)
	if err != nil {
		return nil, err
	}

	ratings := make([]rating.ContributorRating, 0, len(aggregates))
	for _, agg := range aggregates {
		ratings = append(ratings, agg.rating)
	}

	return &OrganizationOverview{
		OrganizationID: organizationID,
		Statistics:     rating.AggregateOrganization(ratings),
		Contributors:   ratings,
	}, nil
}

// GetContributorOverview returns a contributor's overall aggregate plus
// their most recent ratings. A nil result means the contributor is
// unknown.
func (s *Service) GetContributorOverview(contributorID string, limit int) (*ContributorOverview, error) {
	contributor, err := s.source.GetContributor(contributorID)
	if err != nil {
		return nil, err
	}
	if contributor == nil {
		return nil, nil
	}

	ratings, err := s.source.RatingsFor(contributorID)
	if err != nil {
		return nil, err
	}

	overall := rating.AggregateContributor(ratings)
	overall.ContributorID = contributor.ID
	overall.Username = contributor.Username

	recent := ratings
	if limit > 0 && len(recent) > limit {
		recent = recent[:limit]
	}

	return &ContributorOverview{
		Contributor: ContributorInfo{
			ID:        contributor.ID,
			Username:  contributor.Username,
			Name:      contributor.Name,
			AvatarURL: contributor.AvatarURL,
		},
		OverallRating: overall,
		RecentRatings: recent,
		TotalRatings:  len(ratings),
	}, nil
}

// GetAnalytics summarizes the organization's full rating history and
// derives insights from it.
func (s *Service) GetAnalytics(organizationID string) (*Analytics, error) {
	if cached, ok := s.cache.GetAnalytics(organizationID); ok {
		return cached, nil
	}

	records, err := s.source.RatingRecordsForOrganization(organizationID)
	if err != nil {
		return nil, err
	}

	analytics := &Analytics{
		RatingDistribution: map[string]int{},
		ComponentAnalysis:  map[string]int{},
		Insights:           []Insight{},
	}

	var decoded []rating.Rating
	for _, rec := range records {
		r, err := rec.Rating()
		if err != nil {
			s.logger.Warn("skipping undecodable rating", "rating_id", rec.ID, "error", err)
			continue
		}
		decoded = append(decoded, r)
	}

	analytics.TotalRatings = len(decoded)
	if len(decoded) == 0 {
		return analytics, nil
	}

	totalScore := 0
	for _, r := range decoded {
		totalScore += r.TotalScore
		analytics.RatingDistribution[string(r.Level)]++
	}
	analytics.AverageRating = int(math.Round(float64(totalScore) / float64(len(decoded))))

	for _, component := range rating.Components {
		sum := 0
		for _, r := range decoded {
			sum += r.Breakdown[component].Score
		}
		analytics.ComponentAnalysis[component] = int(math.Round(float64(sum) / float64(len(decoded))))
	}

	analytics.Insights = generateInsights(analytics)

	s.cache.SetAnalytics(organizationID, analytics)
	return analytics, nil
}

// CacheStats exposes the leaderboard cache statistics.
func (s *Service) CacheStats() map[string]interface{} {
	return s.cache.Stats()
}

type contributorAggregate struct {
	info   ContributorInfo
	rating rating.ContributorRating
}

func (s *Service) contributorAggregates(organizationID string) ([]contributorAggregate, error) {
	contributors, err := s.source.ContributorsForOrganization(organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contributors: %w", err)
	}

	aggregates := make([]contributorAggregate, 0, len(contributors))
	for _, c := range contributors {
		ratings, err := s.source.RatingsFor(c.ID)
		if err != nil {
			s.logger.Warn("skipping contributor with unreadable ratings",
				"contributor_id", c.ID, "error", err)
			continue
		}

		agg := rating.AggregateContributor(ratings)
		agg.ContributorID = c.ID
		agg.Username = c.Username

		aggregates = append(aggregates, contributorAggregate{
			info: ContributorInfo{
				ID:        c.ID,
				Username:  c.Username,
				Name:      c.Name,
				AvatarURL: c.AvatarURL,
			},
			rating: agg,
		})
	}
	return aggregates, nil
}

// generateInsights derives actionable observations from the analytics.
func generateInsights(a *Analytics) []Insight {
	insights := []Insight{}

	lowestComponent := ""
	lowestScore := 0
	for _, component := range rating.Components {
		score := a.ComponentAnalysis[component]
		if lowestComponent == "" || score < lowestScore {
			lowestComponent = component
			lowestScore = score
		}
	}
	if lowestComponent != "" && lowestScore < 60 {
		insights = append(insights, Insight{
			Type:  "improvement",
			Title: "Focus Area Identified",
			Message: fmt.Sprintf("%s scores are below average (%d/100). Consider providing training or resources in this area.",
				lowestComponent, lowestScore),
			Priority: "high",
		})
	}

	excellentPct := float64(a.RatingDistribution[string(rating.LevelExcellent)]) / float64(a.TotalRatings) * 100
	if excellentPct > 30 {
		insights = append(insights, Insight{
			Type:     "positive",
			Title:    "High Quality Contributions",
			Message:  fmt.Sprintf("%.1f%% of contributions are rated as excellent. Great job!", excellentPct),
			Priority: "low",
		})
	} else if excellentPct < 10 {
		insights = append(insights, Insight{
			Type:     "improvement",
			Title:    "Quality Improvement Needed",
			Message:  fmt.Sprintf("Only %.1f%% of contributions are rated as excellent. Consider reviewing processes and providing feedback.", excellentPct),
			Priority: "high",
		})
	}

	if a.AverageRating >= 80 {
		insights = append(insights, Insight{
			Type:     "positive",
			Title:    "Strong Performance",
			Message:  fmt.Sprintf("Organization average rating is %d/100. Excellent work!", a.AverageRating),
			Priority: "low",
		})
	} else if a.AverageRating < 60 {
		insights = append(insights, Insight{
			Type:     "improvement",
			Title:    "Performance Improvement Needed",
			Message:  fmt.Sprintf("Organization average rating is %d/100. Consider implementing improvement strategies.", a.AverageRating),
			Priority: "high",
		})
	}

	return insights
}
