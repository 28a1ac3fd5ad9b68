package adapters

import (
	"fmt"
	"math"
	"strings"

	"github.com/praisehq/praise/internal/rating"
	"github.com/praisehq/praise/internal/types"
)

// extractorPositive and extractorNegative are the keyword lists used to
// seed the relevance score at extraction time. They overlap with, but
// are distinct from, the list the rating composer applies later.
var extractorPositive = []string{
	"feature", "enhancement", "improvement", "optimization",
	"performance", "security", "bug fix", "refactor",
	"api", "integration", "authentication", "database",
}

var extractorNegative = []string{
	"typo", "formatting", "whitespace", "comment only",
	"readme", "changelog", "version bump",
}

// Features is the output of feature extraction: a fully populated
// rating input plus the identity fields needed to store the result.
type Features struct {
	PRID           string
	ContributorID  string
	OrganizationID string
	Input          rating.Input
}

// ExtractFeatures translates a raw GitHub pull request into the rating
// engine's vocabulary. It is the single place GitHub field names are
// interpreted; swapping data sources means reimplementing only this.
func ExtractFeatures(pr types.PullRequest) Features {
	in := rating.NewInput()
	in.Priority = determinePriority(pr.Title, pr.Body, pr.Labels)
	in.LinesAdded = pr.Additions
	in.LinesDeleted = pr.Deletions
	in.FilesChanged = pr.ChangedFiles
	if pr.Commits > 0 {
		in.Commits = pr.Commits
	}
	in.TimeToComplete = timeToComplete(pr)
	in.Deadline = nil // GitHub has no deadline concept
	in.RelevanceSeed = relevanceSeed(pr.Title, pr.Body)
	in.Quality = qualityIndicators(pr)
	in.ImpactSeed = impactSeed(pr.Additions, pr.Deletions, pr.ChangedFiles, pr.RepositoryData)
	in.CreatedAt = pr.CreatedAt
	in.MergedAt = pr.MergedAt
	in.Author = pr.User.Login
	in.Repository = pr.Repository
	in.Title = pr.Title
	in.Description = pr.Body

	return Features{
		PRID:           fmt.Sprintf("%d", pr.ID),
		ContributorID:  fmt.Sprintf("%d", pr.User.ID),
		OrganizationID: OrganizationID(pr.Repository),
		Input:          in,
	}
}

// determinePriority scans title, body and label names for trigger
// words. Checks run critical, high, low, trivial in that order; the
// first match wins, and medium is the fallback.
func determinePriority(title, body string, labels []types.Label) rating.Priority {
	text := strings.ToLower(title + " " + body)
	labelNames := make(map[string]bool, len(labels))
	for _, l := range labels {
		labelNames[strings.ToLower(l.Name)] = true
	}
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(text, w) {
				return true
			}
		}
		return false
	}

	switch {
	case has("critical", "urgent", "hotfix") || labelNames["critical"] || labelNames["urgent"]:
		return rating.PriorityCritical
	case has("security", "bug", "fix", "performance", "optimization") || labelNames["bug"] || labelNames["security"]:
		return rating.PriorityHigh
	case has("chore", "style", "format", "typo", "documentation") || labelNames["chore"] || labelNames["documentation"]:
		return rating.PriorityLow
	case has("whitespace", "comment") || labelNames["trivial"]:
		return rating.PriorityTrivial
	default:
		return rating.PriorityMedium
	}
}

// relevanceSeed derives the relevance starting score from PR text: 8
// points per positive keyword present, minus 5 per negative, plus a
// bonus for detailed descriptions and issue references.
func relevanceSeed(title, body string) int {
	text := strings.ToLower(title + " " + body)
	score := 50

	for _, keyword := range extractorPositive {
		if strings.Contains(text, keyword) {
			score += 8
		}
	}
	for _, keyword := range extractorNegative {
		if strings.Contains(text, keyword) {
			score -= 5
		}
	}

	if len(body) > 200 {
		score += 10
	}
	if strings.Contains(text, "#") || strings.Contains(text, "issue") || strings.Contains(text, "fixes") {
		score += 5
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// qualityIndicators reads review-process signals out of the PR record.
// CI status is not directly available, so a PR counts as passing unless
// GitHub explicitly marks it unmergeable. Coverage data would need
// extra API calls and is reported as 0.
func qualityIndicators(pr types.PullRequest) rating.QualityIndicators {
	body := strings.ToLower(pr.Body)
	return rating.QualityIndicators{
		HasTests:         strings.Contains(body, "test") || strings.Contains(body, "spec"),
		HasDocumentation: strings.Contains(body, "doc") || strings.Contains(body, "readme") || strings.Contains(body, "comment"),
		ReviewComments:   pr.ReviewComments,
		CIPassed:         pr.Mergeable == nil || *pr.Mergeable,
		CodeCoverage:     0,
		Complexity:       estimateComplexity(pr.Additions, pr.Deletions),
	}
}

func estimateComplexity(additions, deletions int) rating.Complexity {
	switch total := additions + deletions; {
	case total < 50:
		return rating.ComplexityLow
	case total < 200:
		return rating.ComplexityMedium
	case total < 500:
		return rating.ComplexityHigh
	default:
		return rating.ComplexityVeryHigh
	}
}

// impactSeed derives the impact starting score. Unlike the composer's
// impact scorer, the line brackets here are first-match-wins, not
// stacking; the two sites are genuinely different computations.
func impactSeed(additions, deletions, filesChanged int, repo *types.RepositoryData) int {
	score := 50

	switch totalLines := additions + deletions; {
	case totalLines > 500:
		score += 20
	case totalLines > 200:
		score += 15
	case totalLines > 100:
		score += 10
	case totalLines > 50:
		score += 5
	}

	if filesChanged > 10 {
		score += 10
	} else if filesChanged > 5 {
		score += 5
	}

	if repo != nil {
		if repo.Stars > 100 || repo.Forks > 50 {
			score += 10
		} else if repo.Stars > 50 || repo.Forks > 20 {
			score += 5
		}
	}

	if score > 100 {
		return 100
	}
	return score
}

// timeToComplete returns whole days from creation to merge or close,
// rounded up, or nil while the PR is still open.
func timeToComplete(pr types.PullRequest) *float64 {
	completed := pr.MergedAt
	if completed == nil {
		completed = pr.ClosedAt
	}
	if completed == nil {
		return nil
	}
	days := math.Ceil(completed.Sub(pr.CreatedAt).Hours() / 24)
	return &days
}

// OrganizationID maps a repository full name to the owning
// organization's identifier.
func OrganizationID(repository string) string {
	owner, _, _ := strings.Cut(repository, "/")
	return "org_" + owner
}
