package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/praisehq/praise/internal/resilience"
	"github.com/praisehq/praise/internal/types"
)

const (
	githubAPIBase = "https://api.github.com"

	// maxReposPerUser bounds how many of a user's most recently updated
	// repositories are scanned for pull requests.
	maxReposPerUser = 5

	// maxPRsPerRepo bounds how many pull requests are pulled per repository.
	maxPRsPerRepo = 20

	// repoFetchDelay spaces out per-repository requests to stay inside
	// GitHub's secondary rate limits.
	repoFetchDelay = time.Second
)

// GitHubAdapter fetches pull request data from the GitHub REST API
// through a pooled, circuit-broken HTTP client.
type GitHubAdapter struct {
	token   string
	baseURL string
	pool    *resilience.ConnectionPool
	logger  *slog.Logger
}

// NewGitHubAdapter creates a GitHub adapter. The token may be empty,
// in which case requests run unauthenticated at GitHub's lower rate
// limits.
func NewGitHubAdapter(token string, logger *slog.Logger) *GitHubAdapter {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 3,
	})

	return &GitHubAdapter{
		token:   token,
		baseURL: githubAPIBase,
		pool:    resilience.NewConnectionPool(10, 20, 30*time.Second, cb),
		logger:  logger,
	}
}

// FetchUserPullRequests collects the pull requests authored by username
// across their most recently updated repositories, newest first. A
// repository that fails to list does not abort the rest; it is logged
// and skipped.
func (g *GitHubAdapter) FetchUserPullRequests(ctx context.Context, username string) ([]types.PullRequest, error) {
	repos, err := g.listUserRepositories(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories for %s: %w", username, err)
	}

	if len(repos) > maxReposPerUser {
		repos = repos[:maxReposPerUser]
	}

	var all []types.PullRequest
	for i, repo := range repos {
		if i > 0 {
			select {
			case <-time.After(repoFetchDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		prs, err := g.fetchRepoPullRequests(ctx, repo.FullName)
		if err != nil {
			g.logger.Warn("skipping repository",
				"repo", repo.FullName,
				"error", err)
			continue
		}

		for _, pr := range prs {
			if pr.User.Login != username {
				continue
			}
			pr.Repository = repo.FullName
			pr.RepositoryData = &types.RepositoryData{
				Name:        repo.Name,
				FullName:    repo.FullName,
				Description: repo.Description,
				Language:    repo.Language,
				Stars:       repo.StargazersCount,
				Forks:       repo.ForksCount,
			}
			all = append(all, pr)
		}

		g.logger.Info("fetched pull requests",
			"repo", repo.FullName,
			"count", len(prs))
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if len(all) > maxPRsPerRepo {
		all = all[:maxPRsPerRepo]
	}
	return all, nil
}

// listUserRepositories returns the user's repositories, most recently
// updated first.
func (g *GitHubAdapter) listUserRepositories(ctx context.Context, username string) ([]types.Repository, error) {
	url := fmt.Sprintf("%s/users/%s/repos?sort=updated&per_page=100", g.baseURL, username)

	var repos []types.Repository
	if err := g.getJSON(ctx, url, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// fetchRepoPullRequests lists recent pull requests in a repository,
// open and closed alike.
func (g *GitHubAdapter) fetchRepoPullRequests(ctx context.Context, fullName string) ([]types.PullRequest, error) {
	url := fmt.Sprintf("%s/repos/%s/pulls?state=all&per_page=%d&sort=updated", g.baseURL, fullName, maxPRsPerRepo)

	var prs []types.PullRequest
	if err := g.getJSON(ctx, url, &prs); err != nil {
		return nil, err
	}
	return prs, nil
}

func (g *GitHubAdapter) getJSON(ctx context.Context, url string, out any) error {
	headers := map[string]string{
		"Accept":     "application/vnd.github.v3+json",
		"User-Agent": "PRAISE-API/1.0",
	}
	if g.token != "" {
		headers["Authorization"] = "Bearer " + g.token
	}

	cfg := resilience.FastRetryPolicy.Config
	cfg.RetryableErrors = resilience.DefaultRetryConfig().RetryableErrors
	resp, err := resilience.RetryHTTP(ctx, cfg, func() (*http.Response, error) {
		return g.pool.DoRequest(ctx, http.MethodGet, url, headers)
	})
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("github API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode github response: %w", err)
	}
	return nil
}

// GetPoolStats returns connection pool statistics.
func (g *GitHubAdapter) GetPoolStats() map[string]interface{} {
	return g.pool.GetStats()
}

// Close releases the adapter's HTTP connections.
func (g *GitHubAdapter) Close() error {
	return g.pool.Close()
}
