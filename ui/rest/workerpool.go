package rest

import (
	"github.com/eduzayn/educhat/pkg/msgworker"
	"github.com/gofiber/fiber/v2"
)

var analysisPool *msgworker.Pool

// SetAnalysisPool exposes the pool that runs post-persistence message analysis.
func SetAnalysisPool(pool *msgworker.Pool) {
	analysisPool = pool
}

// GetAnalysisPoolStats returns real-time worker pool statistics
func GetAnalysisPoolStats(c *fiber.Ctx) error {
	if analysisPool == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Analysis worker pool not initialized",
		})
	}
	return c.JSON(analysisPool.Stats())
}
