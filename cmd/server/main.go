package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/praisehq/praise/internal/adapters"
	"github.com/praisehq/praise/internal/cache"
	"github.com/praisehq/praise/internal/config"
	"github.com/praisehq/praise/internal/database"
	"github.com/praisehq/praise/internal/errors"
	"github.com/praisehq/praise/internal/leaderboard"
	"github.com/praisehq/praise/internal/monitoring"
	"github.com/praisehq/praise/internal/ratelimit"
	"github.com/praisehq/praise/internal/rating"
	"github.com/praisehq/praise/internal/types"
)

func main() {
	// Structured logging setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database and repository
	db, err := database.NewDB(cfg.Rating.DataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	// Initialize leaderboard service with its result cache
	cacheTTL := time.Duration(cfg.Rating.CacheTTL) * time.Minute
	lbCache := leaderboard.NewCache(cacheTTL)
	leaderboardService := leaderboard.NewServiceWithCache(repo, lbCache, logger)

	// The calculator is immutable; PUT /weights swaps in a new one.
	calculator, err := rating.NewCalculatorWithWeights(cfg.Rating.Weights())
	if err != nil {
		slog.Error("Invalid rating weights", "error", err)
		os.Exit(1)
	}

	var calcMu sync.RWMutex
	currentCalculator := func() *rating.Calculator {
		calcMu.RLock()
		defer calcMu.RUnlock()
		return calculator
	}
	swapCalculator := func(next *rating.Calculator) {
		calcMu.Lock()
		calculator = next
		calcMu.Unlock()
	}

	// Create GitHub adapter
	githubAdapter := adapters.NewGitHubAdapter(cfg.GitHub.Token, logger)

	r := gin.New()

	// Initialize monitoring system
	appMetrics := monitoring.NewMetrics()
	appLogger := monitoring.NewLogger()

	// Initialize rate limiting (Redis with in-memory fallback)
	redisClient, err := ratelimit.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		slog.Warn("Redis unavailable, using in-memory rate limiting", "error", err)
	}
	rateLimiter := ratelimit.NewRateLimiter(redisClient, ratelimit.DefaultConfig(), appMetrics)

	// CORS for browser clients
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:        12 * time.Hour,
	}))

	// Add monitoring middleware first (to capture all requests)
	r.Use(monitoring.MonitoringMiddleware(appMetrics, appLogger))

	// Add error handling middleware
	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())

	// Per-IP rate limiting on everything
	r.Use(rateLimiter.IPRateLimitMiddleware())

	// Response cache for rating reads
	appCache := cache.NewCache(cacheTTL)
	r.Use(appCache.Middleware(appMetrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   "1.0.0",
			"metrics":   appMetrics.GetStats(),
		})
	})

	api := r.Group("/api/ratings")

	// Writes get a tighter per-IP budget than the global limiter
	api.POST("/rate-pr", rateLimiter.EndpointRateLimitMiddleware("rate-pr", 30), func(c *gin.Context) {
		start := time.Now()

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

		lbCache.InvalidateOrganization(req.OrganizationID)
		appCache.Clear()
		appMetrics.IncrementRatingsComputed()
		appLogger.RatingLogger(req.PRID, req.ContributorID, result.TotalScore, string(result.Level), time.Since(start))

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
		contributorID := c.Param("id")
		limit := 20
		if limitStr := c.Query("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
				limit = l
			}
		}

		overview, err := leaderboardService.GetContributorOverview(contributorID, limit)
		if err != nil {
			errors.Fail(c, errors.WrapError(err, "Failed to get contributor ratings"))
			return
		}
		if overview == nil {
			errors.Fail(c, errors.NewNotFoundError("Contributor", contributorID).
				WithPublicMessage("Contributor does not exist"))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    overview,
		})
	})

	api.GET("/organization/:id", func(c *gin.Context) {
		orgID := c.Param("id")

		org, err := repo.GetOrganization(orgID)
		if err != nil {
			errors.Fail(c, errors.WrapError(err, "Failed to get organization ratings"))
			return
		}
		if org == nil {
			errors.Fail(c, errors.NewNotFoundError("Organization", orgID).
				WithPublicMessage("Organization does not exist"))
			return
		}

		overview, err := leaderboardService.GetOrganizationOverview(orgID)
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
		orgID := c.Param("id")
		period := c.DefaultQuery("period", "30d")
		limit := 10
		if limitStr := c.Query("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
				limit = l
			}
		}

		org, err := repo.GetOrganization(orgID)
		if err != nil {
			errors.Fail(c, errors.WrapError(err, "Failed to get rating leaderboard"))
			return
		}
		if org == nil {
			errors.Fail(c, errors.NewNotFoundError("Organization", orgID).
				WithPublicMessage("Organization does not exist"))
			return
		}

		response, err := leaderboardService.GetLeaderboard(orgID, limit)
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
		orgID := c.Param("id")
		period := c.DefaultQuery("period", "30d")

		org, err := repo.GetOrganization(orgID)
		if err != nil {
			errors.Fail(c, errors.WrapError(err, "Failed to get rating analytics"))
			return
		}
		if org == nil {
			errors.Fail(c, errors.NewNotFoundError("Organization", orgID).
				WithPublicMessage("Organization does not exist"))
			return
		}

		analytics, err := leaderboardService.GetAnalytics(orgID)
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

		swapCalculator(next)
		appCache.Clear()
		slog.Info("Rating weights updated", "weights", next.Weights())

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

	// GitHub-driven rating generation, budgeted per username
	github := r.Group("/api/github")
	github.POST("/generate/:username", rateLimiter.GenerateRateLimitMiddleware(), func(c *gin.Context) {
		username := c.Param("username")

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
		defer cancel()

		prs, err := githubAdapter.FetchUserPullRequests(ctx, username)
		if err != nil {
			errors.Fail(c, errors.NewExternalAPIError("GitHub", err))
			return
		}

		calc := currentCalculator()
		rated, skipped := 0, 0
		touched := make(map[string]struct{})

		for _, pr := range prs {
			features := adapters.ExtractFeatures(pr)
			result := calc.Rate(features.Input)

			if _, err := repo.GetOrCreateOrganization(features.OrganizationID, features.OrganizationID); err != nil {
				slog.Warn("Skipping PR, organization save failed", "pr_id", features.PRID, "error", err)
				skipped++
				continue
			}
			if _, err := repo.GetOrCreateContributor(features.ContributorID, pr.User.Login, "", pr.User.AvatarURL, features.OrganizationID); err != nil {
				slog.Warn("Skipping PR, contributor save failed", "pr_id", features.PRID, "error", err)
				skipped++
				continue
			}

			record, err := database.NewPRRating(features.PRID, features.ContributorID, features.OrganizationID, result)
			if err == nil {
				err = repo.SaveRating(record)
			}
			if err != nil {
				slog.Warn("Skipping PR, rating save failed", "pr_id", features.PRID, "error", err)
				skipped++
				continue
			}

			touched[features.OrganizationID] = struct{}{}
			appMetrics.IncrementRatingsComputed()
			rated++
		}

		for orgID := range touched {
			lbCache.InvalidateOrganization(orgID)
		}
		if rated > 0 {
			appCache.Clear()
		}

		contributor, err := repo.FindContributorByUsername(username)
		if err != nil {
			errors.Fail(c, errors.WrapError(err, "Failed to resolve contributor"))
			return
		}

		slog.Info("Generated ratings from GitHub activity",
			"username", username, "rated", rated, "skipped", skipped)

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"username":    username,
				"contributor": contributor,
				"rated":       rated,
				"skipped":     skipped,
			},
			"message": "Ratings generated from GitHub activity",
		})
	})

	// Swagger documentation routes
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Metrics endpoint
	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, appMetrics.GetStats())
	})

	// Cache stats endpoints
	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, appCache.Stats())
	})

	r.GET("/leaderboard/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, leaderboardService.CacheStats())
	})

	// Connection pool stats endpoints
	r.GET("/pools/github", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pool":  "github",
			"stats": githubAdapter.GetPoolStats(),
		})
	})

	r.GET("/pools/database", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pool":  "database",
			"stats": db.GetPoolStats(),
		})
	})

	// Rate limit introspection and admin controls
	r.GET("/ratelimit/status", rateLimiter.HandleRateLimitStatus())
	r.GET("/admin/ratelimits", rateLimiter.HandleAdminRateLimits())
	r.POST("/admin/ratelimits/reset/:username", rateLimiter.HandleAdminResetGenerate())
	r.POST("/admin/ratelimits/invalidate/:ip", rateLimiter.HandleAdminInvalidateIP())

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	githubAdapter.Close()
	if err := redisClient.Close(); err != nil {
		slog.Warn("Failed to close Redis client", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}
