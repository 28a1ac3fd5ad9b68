package types

import (
	"time"

	"github.com/praisehq/praise/internal/rating"
)

// PullRequest is the raw pull request record as served by the GitHub
// REST API, narrowed to the fields the rating pipeline consumes.
// Optional fields are pointers so "absent" stays distinguishable from
// the zero value.
type PullRequest struct {
	ID             int64      `json:"id"`
	Number         int        `json:"number"`
	Title          string     `json:"title"`
	Body           string     `json:"body"`
	State          string     `json:"state"`
	HTMLURL        string     `json:"html_url"`
	CreatedAt      time.Time  `json:"created_at"`
	MergedAt       *time.Time `json:"merged_at"`
	ClosedAt       *time.Time `json:"closed_at"`
	Additions      int        `json:"additions"`
	Deletions      int        `json:"deletions"`
	ChangedFiles   int        `json:"changed_files"`
	Commits        int        `json:"commits"`
	ReviewComments int        `json:"review_comments"`
	Mergeable      *bool      `json:"mergeable"`
	Labels         []Label    `json:"labels"`
	User           User       `json:"user"`

	// Enrichment applied by the fetcher, not part of the GitHub payload.
	Repository     string          `json:"repository,omitempty"`
	RepositoryData *RepositoryData `json:"repository_data,omitempty"`
}

// Label is a GitHub issue/PR label.
type Label struct {
	Name string `json:"name"`
}

// User is the authoring GitHub account.
type User struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// RepositoryData carries the repository context used for impact scoring.
type RepositoryData struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Language    string `json:"language"`
	Stars       int    `json:"stars"`
	Forks       int    `json:"forks"`
}

// Repository is the GitHub REST shape for a repository listing entry.
type Repository struct {
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	Description     string `json:"description"`
	Language        string `json:"language"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
}

// RatePRRequest is the request body for rating a single pull request
// directly, bypassing the GitHub fetcher.
type RatePRRequest struct {
	PRID           string                    `json:"pr_id" binding:"required"`
	ContributorID  string                    `json:"contributor_id" binding:"required"`
	OrganizationID string                    `json:"organization_id"`
	Priority       rating.Priority           `json:"priority"`
	LinesAdded     int                       `json:"lines_added"`
	LinesDeleted   int                       `json:"lines_deleted"`
	FilesChanged   int                       `json:"files_changed"`
	Commits        int                       `json:"commits"`
	TimeToComplete *float64                  `json:"time_to_complete,omitempty"`
	Deadline       *time.Time                `json:"deadline,omitempty"`
	RelevanceScore *int                      `json:"relevance_score,omitempty"`
	Quality        *rating.QualityIndicators `json:"quality_indicators,omitempty"`
	ImpactScore    *int                      `json:"impact_score,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	MergedAt       *time.Time                `json:"merged_at,omitempty"`
	Author         string                    `json:"author"`
	Repository     string                    `json:"repository"`
	Title          string                    `json:"title"`
	Description    string                    `json:"description"`
}

// Input converts the request into a rating input, filling defaults for
// every omitted optional field.
func (r RatePRRequest) Input() rating.Input {
	in := rating.NewInput()
	if r.Priority != "" {
		in.Priority = r.Priority
	}
	in.LinesAdded = r.LinesAdded
	in.LinesDeleted = r.LinesDeleted
	in.FilesChanged = r.FilesChanged
	if r.Commits > 0 {
		in.Commits = r.Commits
	}
	in.TimeToComplete = r.TimeToComplete
	in.Deadline = r.Deadline
	if r.RelevanceScore != nil {
		in.RelevanceSeed = *r.RelevanceScore
	}
	if r.Quality != nil {
		in.Quality = *r.Quality
	}
	if r.ImpactScore != nil {
		in.ImpactSeed = *r.ImpactScore
	}
	in.CreatedAt = r.CreatedAt
	in.MergedAt = r.MergedAt
	in.Author = r.Author
	in.Repository = r.Repository
	in.Title = r.Title
	in.Description = r.Description
	return in
}

// UpdateWeightsRequest is the request body for replacing the active
// component weights.
type UpdateWeightsRequest struct {
	Weights rating.Weights `json:"weights" binding:"required"`
}
