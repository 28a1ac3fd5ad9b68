package leaderboard

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/praisehq/praise/internal/database"
	"github.com/praisehq/praise/internal/rating"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is an in-memory RatingSource for exercising the service
// without a database.
type fakeSource struct {
	contributors map[string]*database.Contributor
	byOrg        map[string][]*database.Contributor
	ratings      map[string][]rating.Rating
	records      map[string][]*database.PRRating
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		contributors: map[string]*database.Contributor{},
		byOrg:        map[string][]*database.Contributor{},
		ratings:      map[string][]rating.Rating{},
		records:      map[string][]*database.PRRating{},
	}
}

func (f *fakeSource) addContributor(id, username, organizationID string) {
	c := &database.Contributor{ID: id, Username: username, OrganizationID: organizationID}
	f.contributors[id] = c
	f.byOrg[organizationID] = append(f.byOrg[organizationID], c)
}

func (f *fakeSource) addRating(contributorID, organizationID string, r rating.Rating) {
	f.ratings[contributorID] = append(f.ratings[contributorID], r)

	rec, err := database.NewPRRating("pr_"+contributorID, contributorID, organizationID, r)
	if err != nil {
		panic(err)
	}
	f.records[organizationID] = append(f.records[organizationID], rec)
}

func (f *fakeSource) GetContributor(id string) (*database.Contributor, error) {
	return f.contributors[id], nil
}

func (f *fakeSource) ContributorsForOrganization(organizationID string) ([]*database.Contributor, error) {
	return f.byOrg[organizationID], nil
}

func (f *fakeSource) RatingsFor(contributorID string) ([]rating.Rating, error) {
	return f.ratings[contributorID], nil
}

func (f *fakeSource) RatingRecordsForOrganization(organizationID string) ([]*database.PRRating, error) {
	return f.records[organizationID], nil
}

// flatRating builds a rating whose component scores all equal the total,
// which keeps aggregate expectations easy to follow.
func flatRating(total int, createdAt time.Time) rating.Rating {
	breakdown := map[string]rating.ComponentScore{}
	for _, component := range rating.Components {
		breakdown[component] = rating.ComponentScore{
			Score:         total,
			Weight:        rating.DefaultWeights().Of(component),
			WeightedScore: total,
		}
	}
	return rating.Rating{
		TotalScore: total,
		Level:      rating.LevelFor(total),
		Breakdown:  breakdown,
		Metadata: rating.Metadata{
			Repository: "praisehq/widgets",
			CreatedAt:  createdAt,
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetLeaderboardRanksByAverage(t *testing.T) {
	source := newFakeSource()
	source.addContributor("alice", "alice", "org_acme")
	source.addContributor("bob", "bob", "org_acme")
	source.addContributor("carol", "carol", "org_acme")

	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	source.addRating("alice", "org_acme", flatRating(90, base))
	source.addRating("alice", "org_acme", flatRating(70, base.AddDate(0, 0, 1)))
	source.addRating("bob", "org_acme", flatRating(60, base))
	// carol has no rated PRs and must not appear

	svc := NewService(source, testLogger())

	resp, err := svc.GetLeaderboard("org_acme", 10)
	require.NoError(t, err)

	require.Len(t, resp.Entries, 2)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "org_acme", resp.OrganizationID)

	assert.Equal(t, 1, resp.Entries[0].Rank)
	assert.Equal(t, "alice", resp.Entries[0].Contributor.Username)
	assert.Equal(t, 80, resp.Entries[0].Rating.AverageScore)

	assert.Equal(t, 2, resp.Entries[1].Rank)
	assert.Equal(t, "bob", resp.Entries[1].Contributor.Username)
	assert.Equal(t, 60, resp.Entries[1].Rating.AverageScore)
}

func TestGetLeaderboardAppliesLimit(t *testing.T) {
	source := newFakeSource()
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	for _, c := range []struct {
		id    string
		score int
	}{{"alice", 90}, {"bob", 70}, {"carol", 50}} {
		source.addContributor(c.id, c.id, "org_acme")
		source.addRating(c.id, "org_acme", flatRating(c.score, base))
	}

	svc := NewService(source, testLogger())

	resp, err := svc.GetLeaderboard("org_acme", 2)
	require.NoError(t, err)

	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "alice", resp.Entries[0].Contributor.Username)
	assert.Equal(t, "bob", resp.Entries[1].Contributor.Username)
}

func TestGetLeaderboardServesFromCache(t *testing.T) {
	source := newFakeSource()
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	source.addContributor("alice", "alice", "org_acme")
	source.addRating("alice", "org_acme", flatRating(80, base))

	svc := NewService(source, testLogger())

	first, err := svc.GetLeaderboard("org_acme", 10)
	require.NoError(t, err)
	require.Len(t, first.Entries, 1)

	// New data does not show up until the cache entry expires
	source.addContributor("bob", "bob", "org_acme")
	source.addRating("bob", "org_acme", flatRating(95, base))

	second, err := svc.GetLeaderboard("org_acme", 10)
	require.NoError(t, err)
	assert.Len(t, second.Entries, 1)
}

func TestInvalidateOrganizationDropsCachedLeaderboard(t *testing.T) {
	source := newFakeSource()
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	source.addContributor("ann", "ann", "org_acme")
	source.addContributor("bob", "bob", "org_acme")
	source.addRating("ann", "org_acme", flatRating(70, base))
	source.addRating("bob", "org_acme", flatRating(60, base))

	lbCache := NewCache(time.Minute)
	svc := NewServiceWithCache(source, lbCache, testLogger())

	first, err := svc.GetLeaderboard("org_acme", 10)
	require.NoError(t, err)
	require.Len(t, first.Entries, 2)
	assert.Equal(t, "ann", first.Entries[0].Contributor.Username)

	// A new rating flips the ranking once the cache is invalidated.
	source.addRating("bob", "org_acme", flatRating(100, base.AddDate(0, 0, 1)))
	lbCache.InvalidateOrganization("org_acme")

	fresh, err := svc.GetLeaderboard("org_acme", 10)
	require.NoError(t, err)
	require.Len(t, fresh.Entries, 2)
	assert.Equal(t, "bob", fresh.Entries[0].Contributor.Username)
	assert.Equal(t, 80, fresh.Entries[0].Rating.AverageScore)
}

func TestInvalidateOrganizationDropsAllLeaderboardLimits(t *testing.T) {
	source := newFakeSource()
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	source.addContributor("ann", "ann", "org_acme")
	source.addRating("ann", "org_acme", flatRating(70, base))

	lbCache := NewCache(time.Minute)
	svc := NewServiceWithCache(source, lbCache, testLogger())

	for _, limit := range []int{5, 10} {
		_, err := svc.GetLeaderboard("org_acme", limit)
		require.NoError(t, err)
	}

	source.addContributor("bob", "bob", "org_acme")
	source.addRating("bob", "org_acme", flatRating(90, base))
	lbCache.InvalidateOrganization("org_acme")

	for _, limit := range []int{5, 10} {
		fresh, err := svc.GetLeaderboard("org_acme", limit)
		require.NoError(t, err)
		assert.Len(t, fresh.Entries, 2, "limit %d", limit)
	}
}

func TestGetContributorOverview(t *testing.T) {
	source := newFakeSource()
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	source.addContributor("alice", "alice", "org_acme")
	source.addRating("alice", "org_acme", flatRating(90, base))
	source.addRating("alice", "org_acme", flatRating(70, base.AddDate(0, 0, 1)))
	source.addRating("alice", "org_acme", flatRating(80, base.AddDate(0, 0, 2)))

	svc := NewService(source, testLogger())

	overview, err := svc.GetContributorOverview("alice", 2)
	require.NoError(t, err)
	require.NotNil(t, overview)

	assert.Equal(t, "alice", overview.Contributor.Username)
	assert.Equal(t, 3, overview.TotalRatings)
	assert.Len(t, overview.RecentRatings, 2)
	assert.Equal(t, 80, overview.OverallRating.AverageScore)
	assert.Equal(t, 3, overview.OverallRating.TotalPRs)
}

func TestGetContributorOverviewUnknown(t *testing.T) {
	svc := NewService(newFakeSource(), testLogger())

	overview, err := svc.GetContributorOverview("ghost", 5)
	require.NoError(t, err)
	assert.Nil(t, overview)
}

func TestGetOrganizationOverview(t *testing.T) {
	source := newFakeSource()
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	source.addContributor("alice", "alice", "org_acme")
	source.addContributor("bob", "bob", "org_acme")
	source.addRating("alice", "org_acme", flatRating(80, base))
	source.addRating("bob", "org_acme", flatRating(60, base))

	svc := NewService(source, testLogger())

	overview, err := svc.GetOrganizationOverview("org_acme")
	require.NoError(t, err)

	assert.Equal(t, "org_acme", overview.OrganizationID)
	assert.Equal(t, 2, overview.Statistics.TotalContributors)
	assert.Equal(t, 70, overview.Statistics.AverageRating)
	require.Len(t, overview.Statistics.TopPerformers, 1)
	assert.Equal(t, "alice", overview.Statistics.TopPerformers[0].Username)
	assert.Len(t, overview.Contributors, 2)
}

func TestGetAnalytics(t *testing.T) {
	source := newFakeSource()
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	source.addContributor("alice", "alice", "org_acme")

	// Distinct PR ids so every record survives
	for i, total := range []int{90, 90, 50, 50} {
		r := flatRating(total, base.AddDate(0, 0, i))
		rec, err := database.NewPRRating(string(rune('a'+i)), "alice", "org_acme", r)
		require.NoError(t, err)
		source.records["org_acme"] = append(source.records["org_acme"], rec)
	}

	svc := NewService(source, testLogger())

	analytics, err := svc.GetAnalytics("org_acme")
	require.NoError(t, err)

	assert.Equal(t, 4, analytics.TotalRatings)
	assert.Equal(t, 70, analytics.AverageRating)
	assert.Equal(t, 2, analytics.RatingDistribution[string(rating.LevelExcellent)])
	assert.Equal(t, 2, analytics.RatingDistribution[string(rating.LevelAverage)])

	for _, component := range rating.Components {
		assert.Equal(t, 70, analytics.ComponentAnalysis[component], component)
	}

	// Half the ratings are excellent, so only the positive quality insight fires
	require.Len(t, analytics.Insights, 1)
	assert.Equal(t, "positive", analytics.Insights[0].Type)
	assert.Equal(t, "High Quality Contributions", analytics.Insights[0].Title)
}

func TestGetAnalyticsEmptyOrganization(t *testing.T) {
	svc := NewService(newFakeSource(), testLogger())

	analytics, err := svc.GetAnalytics("org_empty")
	require.NoError(t, err)

	assert.Equal(t, 0, analytics.TotalRatings)
	assert.Empty(t, analytics.Insights)
	assert.Empty(t, analytics.RatingDistribution)
}

func TestGenerateInsights(t *testing.T) {
	flatComponents := func(score int) map[string]int {
		m := map[string]int{}
		for _, c := range rating.Components {
			m[c] = score
		}
		return m
	}

	t.Run("weak component flagged", func(t *testing.T) {
		components := flatComponents(70)
		components[rating.ComponentQuality] = 45

		insights := generateInsights(&Analytics{
			TotalRatings:       4,
			AverageRating:      70,
			RatingDistribution: map[string]int{string(rating.LevelExcellent): 1},
			ComponentAnalysis:  components,
		})

		require.Len(t, insights, 1)
		assert.Equal(t, "improvement", insights[0].Type)
		assert.Contains(t, insights[0].Message, "quality scores are below average (45/100)")
	})

	t.Run("struggling organization", func(t *testing.T) {
		insights := generateInsights(&Analytics{
			TotalRatings:       10,
			AverageRating:      55,
			RatingDistribution: map[string]int{},
			ComponentAnalysis:  flatComponents(65),
		})

		require.Len(t, insights, 2)
		assert.Equal(t, "Quality Improvement Needed", insights[0].Title)
		assert.Equal(t, "Performance Improvement Needed", insights[1].Title)
	})

	t.Run("thriving organization", func(t *testing.T) {
		insights := generateInsights(&Analytics{
			TotalRatings:       10,
			AverageRating:      85,
			RatingDistribution: map[string]int{string(rating.LevelExcellent): 4},
			ComponentAnalysis:  flatComponents(85),
		})

		require.Len(t, insights, 2)
		assert.Equal(t, "High Quality Contributions", insights[0].Title)
		assert.Equal(t, "Strong Performance", insights[1].Title)
	})
}
