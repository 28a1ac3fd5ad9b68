package leaderboard

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/praisehq/praise/internal/cache"
)

// Cache holds recently computed leaderboards and analytics so repeated
// reads skip the aggregate recomputation. Leaderboard entries are keyed
// by limit as well, so the limits seen per organization are tracked to
// make invalidation drop every variant.
type Cache struct {
	cache *cache.Cache

	mu     sync.Mutex
	limits map[string]map[int]struct{}
}

// NewCache creates a leaderboard cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		cache:  cache.NewCache(ttl),
		limits: make(map[string]map[int]struct{}),
	}
}

func leaderboardKey(organizationID string, limit int) string {
	return fmt.Sprintf("leaderboard:%s:%d", organizationID, limit)
}

func analyticsKey(organizationID string) string {
	return fmt.Sprintf("analytics:%s", organizationID)
}

// GetLeaderboard retrieves a cached leaderboard.
func (c *Cache) GetLeaderboard(organizationID string, limit int) (*Response, bool) {
	data, found := c.cache.Get(leaderboardKey(organizationID, limit))
	if !found {
		return nil, false
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		slog.Error("Failed to unmarshal cached leaderboard", "error", err, "org", organizationID)
		return nil, false
	}
	return &response, true
}

// SetLeaderboard caches a leaderboard.
func (c *Cache) SetLeaderboard(organizationID string, limit int, response *Response) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal leaderboard for cache", "error", err, "org", organizationID)
		return
	}
	c.cache.Set(leaderboardKey(organizationID, limit), data)

	c.mu.Lock()
	if c.limits[organizationID] == nil {
		c.limits[organizationID] = make(map[int]struct{})
	}
	c.limits[organizationID][limit] = struct{}{}
	c.mu.Unlock()
}

// GetAnalytics retrieves cached analytics.
func (c *Cache) GetAnalytics(organizationID string) (*Analytics, bool) {
	data, found := c.cache.Get(analyticsKey(organizationID))
	if !found {
		return nil, false
	}

	var analytics Analytics
	if err := json.Unmarshal(data, &analytics); err != nil {
		slog.Error("Failed to unmarshal cached analytics", "error", err, "org", organizationID)
		return nil, false
	}
	return &analytics, true
}

// SetAnalytics caches analytics.
func (c *Cache) SetAnalytics(organizationID string, analytics *Analytics) {
	data, err := json.Marshal(analytics)
	if err != nil {
		slog.Error("Failed to marshal analytics for cache", "error", err, "org", organizationID)
		return
	}
	c.cache.Set(analyticsKey(organizationID), data)
}

// InvalidateOrganization drops every cached result for one
// organization: its analytics and each leaderboard variant cached so
// far, so a new rating is visible on the next read.
func (c *Cache) InvalidateOrganization(organizationID string) {
	c.cache.Delete(analyticsKey(organizationID))

	c.mu.Lock()
	for limit := range c.limits[organizationID] {
		c.cache.Delete(leaderboardKey(organizationID, limit))
	}
	delete(c.limits, organizationID)
	c.mu.Unlock()
}

// Stats returns cache statistics.
func (c *Cache) Stats() map[string]interface{} {
	return c.cache.Stats()
}
