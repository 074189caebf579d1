package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/macrodatos/ingesta/backend/utils"
	"github.com/macrodatos/ingesta/ingesta/database"
)

// HealthCheck reports process liveness and database connectivity.
func HealthCheck(db *database.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
		defer cancel()

		dbStatus := "ok"
		if err := db.Ping(ctx); err != nil {
			dbStatus = "unreachable"
		}

		return utils.SendSuccess(c, fiber.Map{
			"status":   "ok",
			"database": dbStatus,
			"time":     time.Now(),
		}, "")
	}
}
