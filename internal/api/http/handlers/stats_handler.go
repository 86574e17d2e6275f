package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/swarmdesk/swarmdesk/internal/cache"
	"github.com/swarmdesk/swarmdesk/internal/storage"
	apperrors "github.com/swarmdesk/swarmdesk/pkg/util/errorutil"
)

// StatsHandler serves ticket aggregates, optionally via the Redis cache.
type StatsHandler struct {
	store storage.Store
	cache *cache.StatsCache
}

// NewStatsHandler constructs handler.
func NewStatsHandler(store storage.Store, statsCache *cache.StatsCache) *StatsHandler {
	return &StatsHandler{store: store, cache: statsCache}
}

// GetStats GET /api/stats.
func (h *StatsHandler) GetStats(c *fiber.Ctx) error {
	if cached := h.cache.Get(c.UserContext()); cached != nil {
		return c.JSON(fiber.Map{"data": cached})
	}

	stats, err := h.store.Stats(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	h.cache.Set(c.UserContext(), stats)
	return c.JSON(fiber.Map{"data": stats})
}
