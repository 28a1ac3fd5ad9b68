package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praisehq/praise/internal/database"
	"github.com/praisehq/praise/internal/errors"
	"github.com/praisehq/praise/internal/leaderboard"
	"github.com/praisehq/praise/internal/rating"
	"github.com/praisehq/praise/internal/types"
)

// setupRouter wires the rating API against a throwaway database,
// mirroring the route registration in main.
func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := database.NewRepository(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	leaderboardService := leaderboard.NewServiceWithCache(repo, leaderboard.NewCache(time.Minute), logger)

	calculator := rating.NewCalculator()
	var calcMu sync.RWMutex
	currentCalculator := func() *rating.Calculator {
		calcMu.RLock()
		defer calcMu.RUnlock()
		return calculator
	}

	r := gin.New()
	r.Use(errors.ErrorHandler())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/ratings")

	api.POST("/rate-pr", func(c *gin.Context) {
		var req types.RatePRRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.OrganizationID == "" {
			errors.Fail(c, errors.NewValidationError("Missing required fields").
				WithPublicMessage("pr_id, contributor_id, and organization_id are required"))
			return
		}

		result := currentCalculator().Rate(req.Input())

		if _, err := repo.GetOrCreateOrganization(req.OrganizationID, req.OrganizationID); err != nil {
			errors.Fail(c, errors.WrapError(err, "Failed to rate PR"))
			return
		}
		username := req.Author
		if username == "" {
			username = req.ContributorID
		}
		if _, err := repo.GetOrCreateContributor(req.ContributorID, username, "", "", req.OrganizationID); err != nil {
			errors.Fail(c, errors.WrapError(err, "Failed to rate PR"))
			return
		}

		record, err := database.NewPRRating(req.PRID, req.ContributorID, req.OrganizationID, result)
		if err == nil {
			err = repo.SaveRating(record)
		}
		if err != nil {
			errors.Fail(c, errors.WrapError(err, "Failed to rate PR"))
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"data": gin.H{
				"rating":       record,
				"breakdown":    result.Breakdown,
				"rating_level": result.Level,
				"total_score":  result.TotalScore,
			},
			"message": "PR rated successfully",
		})
	})

	api.GET("/contributor/:id", func(c *gin.Context) {
		limit := 20
		if limitStr := c.Query("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
				limit = l
			}
		}
		overview, err := leaderboardService.GetContributorOverview(c.Param("id"), limit)
		if err != nil {
			errors.Fail(c, errors.WrapError(err, "Failed to get contributor ratings"))
			return
		}
		if overview == nil {
			errors.Fail(c, errors.NewNotFoundError("Contributor", c.Param("id")).
				WithPublicMessage("Contributor does not exist"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": overview})
	})

	api.GET("/organization/:id", func(c *gin.Context) {
		org, err := repo.GetOrganization(c.Param("id"))
		if err != nil {
			errors.Fail(c, errors.WrapError(err, "Failed to get organization ratings"))
			return
		}
		if org == nil {
			errors.Fail(c, errors.NewNotFoundError("Organization", c.Param("id")).
				WithPublicMessage("Organization does not exist"))
			return
		}
		overview, err := leaderboardService.GetOrganizationOverview(org.ID)
		if err != nil {
			errors.Fail(c, errors.WrapError(err, "Failed to get organization ratings"))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"organization": gin.H{"id": org.ID, "name": org.Name},
				"statistics":   overview.Statistics,
				"contributors": overview.Contributors,
			},
		})
	})

	api.GET("/leaderboard/:id", func(c *gin.Context) {
		period := c.DefaultQuery("period", "30d")
		limit := 10
		if limitStr := c.Query("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
				limit = l
			}
		}
		org, err := repo.GetOrganization(c.Param("id"))
		if err != nil {
			errors.Fail(c, errors.WrapError(err, "Failed to get rating leaderboard"))
			return
		}
		if org == nil {
			errors.Fail(c, errors.NewNotFoundError("Organization", c.Param("id")).
				WithPublicMessage("Organization does not exist"))
			return
		}
		response, err := leaderboardService.GetLeaderboard(org.ID, limit)
		if err != nil {
			errors.Fail(c, errors.WrapError(err, "Failed to get rating leaderboard"))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"leaderboard": response.Entries,
				"period":      period,
				"total":       response.Total,
			},
		})
	})

	api.GET("/analytics/:id", func(c *gin.Context) {
		period := c.DefaultQuery("period", "30d")
		org, err := repo.GetOrganization(c.Param("id"))
		if err != nil {
			errors.Fail(c, errors.WrapError(err, "Failed to get rating analytics"))
			return
		}
		if org == nil {
			errors.Fail(c, errors.NewNotFoundError("Organization", c.Param("id")).
				WithPublicMessage("Organization does not exist"))
			return
		}
		analytics, err := leaderboardService.GetAnalytics(org.ID)
		if err != nil {
			errors.Fail(c, errors.WrapError(err, "Failed to get rating analytics"))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"organization": gin.H{"id": org.ID, "name": org.Name},
				"analytics":    analytics,
				"period":       period,
			},
		})
	})

	api.PUT("/weights", func(c *gin.Context) {
		var req types.UpdateWeightsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errors.Fail(c, errors.NewValidationError("Invalid request body").
				WithPublicMessage(err.Error()))
			return
		}
		next, err := currentCalculator().WithWeights(req.Weights)
		if err != nil {
			errors.Fail(c, errors.NewValidationError("Invalid weights").
				WithPublicMessage("Weights must sum to 1.0"))
			return
		}
		calcMu.Lock()
		calculator = next
		calcMu.Unlock()
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    gin.H{"weights": next.Weights()},
			"message": "Rating weights updated successfully",
		})
	})

	api.GET("/config", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    currentCalculator().Config(),
		})
	})

	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	w := httptest.NewRecorder()
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	}
	return w, response
}

func ratePRBody(prID, contributorID, organizationID string) map[string]interface{} {
	return map[string]interface{}{
		"pr_id":           prID,
		"contributor_id":  contributorID,
		"organization_id": organizationID,
		"priority":        "high",
		"lines_added":     150,
		"lines_deleted":   30,
		"files_changed":   5,
		"commits":         3,
		"author":          "octocat",
		"repository":      "acme/widgets",
		"title":           "Add widget pagination",
		"created_at":      time.Now().Add(-48 * time.Hour).Format(time.RFC3339),
		"merged_at":       time.Now().Format(time.RFC3339),
	}
}

func TestHealthEndpoint(t *testing.T) {
	r := setupRouter(t)

	w, response := doJSON(t, r, "GET", "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", response["status"])
}

func TestRatePRRequiresIdentifiers(t *testing.T) {
	r := setupRouter(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"empty body", map[string]interface{}{}},
		{"missing organization", map[string]interface{}{"pr_id": "pr-1", "contributor_id": "alice"}},
		{"missing contributor", map[string]interface{}{"pr_id": "pr-1", "organization_id": "acme"}},
		{"missing pr id", map[string]interface{}{"contributor_id": "alice", "organization_id": "acme"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := doJSON(t, r, "POST", "/api/ratings/rate-pr", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, response["success"])
			assert.Equal(t, "Missing required fields", response["error"])
			assert.Equal(t, "pr_id, contributor_id, and organization_id are required", response["message"])
		})
	}
}

func TestRatePRReturnsRating(t *testing.T) {
	r := setupRouter(t)

	w, response := doJSON(t, r, "POST", "/api/ratings/rate-pr", ratePRBody("pr-1", "alice", "acme"))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, response["success"])
	assert.Equal(t, "PR rated successfully", response["message"])

	data := response["data"].(map[string]interface{})
	score := data["total_score"].(float64)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 100.0)
	assert.NotEmpty(t, data["rating_level"])

	breakdown := data["breakdown"].(map[string]interface{})
	for _, component := range []string{"priority", "codeAmount", "timeFactor", "relevance", "quality", "impact"} {
		assert.Contains(t, breakdown, component)
	}
}

func TestRatePRSamePRReplacesRating(t *testing.T) {
	r := setupRouter(t)

	w, _ := doJSON(t, r, "POST", "/api/ratings/rate-pr", ratePRBody("pr-1", "alice", "acme"))
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = doJSON(t, r, "POST", "/api/ratings/rate-pr", ratePRBody("pr-1", "alice", "acme"))
	require.Equal(t, http.StatusCreated, w.Code)

	w, response := doJSON(t, r, "GET", "/api/ratings/contributor/alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["total_ratings"])
}

func TestContributorEndpoint(t *testing.T) {
	r := setupRouter(t)

	w, _ := doJSON(t, r, "POST", "/api/ratings/rate-pr", ratePRBody("pr-1", "alice", "acme"))
	require.Equal(t, http.StatusCreated, w.Code)

	w, response := doJSON(t, r, "GET", "/api/ratings/contributor/alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, response["success"])

	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["total_ratings"])

	overall := data["overall_rating"].(map[string]interface{})
	assert.Equal(t, float64(1), overall["total_prs"])
	assert.Greater(t, overall["average_score"].(float64), 0.0)
}

func TestContributorNotFound(t *testing.T) {
	r := setupRouter(t)

	w, response := doJSON(t, r, "GET", "/api/ratings/contributor/nobody", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, response["success"])
	assert.Equal(t, "Contributor not found", response["error"])
	assert.Equal(t, "Contributor does not exist", response["message"])
}

func TestOrganizationEndpoint(t *testing.T) {
	r := setupRouter(t)

	w, _ := doJSON(t, r, "POST", "/api/ratings/rate-pr", ratePRBody("pr-1", "alice", "acme"))
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = doJSON(t, r, "POST", "/api/ratings/rate-pr", ratePRBody("pr-2", "bob", "acme"))
	require.Equal(t, http.StatusCreated, w.Code)

	w, response := doJSON(t, r, "GET", "/api/ratings/organization/acme", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	data := response["data"].(map[string]interface{})
	org := data["organization"].(map[string]interface{})
	assert.Equal(t, "acme", org["id"])

	stats := data["statistics"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["total_contributors"])

	contributors := data["contributors"].([]interface{})
	assert.Len(t, contributors, 2)
}

func TestOrganizationNotFound(t *testing.T) {
	r := setupRouter(t)

	for _, path := range []string{
		"/api/ratings/organization/ghost",
		"/api/ratings/leaderboard/ghost",
		"/api/ratings/analytics/ghost",
	} {
		w, response := doJSON(t, r, "GET", path, nil)

		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, "Organization not found", response["error"], path)
		assert.Equal(t, "Organization does not exist", response["message"], path)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	r := setupRouter(t)

	for i := 0; i < 3; i++ {
		contributor := fmt.Sprintf("dev-%d", i)
		w, _ := doJSON(t, r, "POST", "/api/ratings/rate-pr", ratePRBody("pr-"+contributor, contributor, "acme"))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, response := doJSON(t, r, "GET", "/api/ratings/leaderboard/acme?limit=2", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	data := response["data"].(map[string]interface{})
	assert.Equal(t, "30d", data["period"])
	assert.Equal(t, float64(3), data["total"])

	entries := data["leaderboard"].([]interface{})
	require.Len(t, entries, 2)
	first := entries[0].(map[string]interface{})
	assert.Equal(t, float64(1), first["rank"])
}

func TestLeaderboardEchoesPeriod(t *testing.T) {
	r := setupRouter(t)

	w, _ := doJSON(t, r, "POST", "/api/ratings/rate-pr", ratePRBody("pr-1", "alice", "acme"))
	require.Equal(t, http.StatusCreated, w.Code)

	w, response := doJSON(t, r, "GET", "/api/ratings/leaderboard/acme?period=7d", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := response["data"].(map[string]interface{})
	assert.Equal(t, "7d", data["period"])
}

func TestAnalyticsEndpoint(t *testing.T) {
	r := setupRouter(t)

	w, _ := doJSON(t, r, "POST", "/api/ratings/rate-pr", ratePRBody("pr-1", "alice", "acme"))
	require.Equal(t, http.StatusCreated, w.Code)

	w, response := doJSON(t, r, "GET", "/api/ratings/analytics/acme", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	data := response["data"].(map[string]interface{})
	analytics := data["analytics"].(map[string]interface{})
	assert.Equal(t, float64(1), analytics["total_ratings"])
	assert.Greater(t, analytics["average_rating"].(float64), 0.0)
	assert.Contains(t, analytics, "component_analysis")
	assert.Contains(t, analytics, "rating_distribution")
}

func TestUpdateWeightsValidation(t *testing.T) {
	r := setupRouter(t)

	w, response := doJSON(t, r, "PUT", "/api/ratings/weights", map[string]interface{}{
		"weights": map[string]float64{
			"priority":   0.5,
			"codeAmount": 0.5,
			"timeFactor": 0.5,
			"relevance":  0.1,
			"quality":    0.1,
			"impact":     0.1,
		},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid weights", response["error"])
	assert.Equal(t, "Weights must sum to 1.0", response["message"])
}

func TestUpdateWeightsSwapsCalculator(t *testing.T) {
	r := setupRouter(t)

	w, response := doJSON(t, r, "PUT", "/api/ratings/weights", map[string]interface{}{
		"weights": map[string]float64{
			"priority":   0.30,
			"codeAmount": 0.20,
			"timeFactor": 0.20,
			"relevance":  0.10,
			"quality":    0.10,
			"impact":     0.10,
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Rating weights updated successfully", response["message"])

	w, response = doJSON(t, r, "GET", "/api/ratings/config", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := response["data"].(map[string]interface{})
	weights := data["weights"].(map[string]interface{})
	assert.InDelta(t, 0.30, weights["priority"].(float64), 0.001)
}

func TestGetConfig(t *testing.T) {
	r := setupRouter(t)

	w, response := doJSON(t, r, "GET", "/api/ratings/config", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := response["data"].(map[string]interface{})

	for _, key := range []string{"weights", "priority_scores", "code_amount_thresholds", "time_factor_scores"} {
		assert.Contains(t, data, key)
	}

	thresholds := data["code_amount_thresholds"].(map[string]interface{})
	assert.Equal(t, float64(50), thresholds["small"])
	assert.Equal(t, float64(200), thresholds["medium"])
	assert.Equal(t, float64(500), thresholds["large"])
}
