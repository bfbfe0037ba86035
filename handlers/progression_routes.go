// handlers/progression_routes.go
package handlers

import (
	"study-quest/middleware"
	"study-quest/models"
	"study-quest/services"
	"study-quest/store"

	"github.com/gofiber/fiber/v2"
)

// maxIconSize caps badge artwork uploads.
const maxIconSize = 2 << 20

// SetupProgressionRoutes registers the gamification API. The gateway forwards
// paths like /api/v1/study/user/progress as /user/progress.
func SetupProgressionRoutes(app *fiber.App, game *services.GamificationService, board *services.LeaderboardService, icons *services.BadgeIconService) {
	// 🔐 Secured routes: require user context
	user := app.Group("/user", middleware.UserContextMiddleware())

	user.Get("/progress", func(c *fiber.Ctx) error {
		view, err := game.Progress(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	})

	user.Post("/tasks/complete", ensureProfile(game), func(c *fiber.Ctx) error {
		var req struct {
			XP      int64  `json:"xp"`
			Reason  string `json:"reason"`
			Subject string `json:"subject"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}

		res, err := game.CompleteTask(c.UserContext(), middleware.UserID(c), req.XP, req.Reason, req.Subject)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	user.Post("/checkin", ensureProfile(game), func(c *fiber.Ctx) error {
		res, err := game.DailyCheckIn(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	user.Get("/badges", ensureProfile(game), func(c *fiber.Ctx) error {
		progress, err := game.BadgeProgress(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(progress)
	})

	user.Post("/badges/evaluate", ensureProfile(game), func(c *fiber.Ctx) error {
		badges, err := game.EvaluateBadges(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		if badges == nil {
			badges = []models.BadgeDefinition{}
		}
		return c.JSON(fiber.Map{"new_badges": badges})
	})

	// 🔓 Leaderboard: gateway auth only; X-User-ID adds the caller's own rank
	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		by := store.LeaderboardMetric(c.Query("by", string(store.ByXP)))
		res, err := board.Top(c.UserContext(), by, c.QueryInt("limit", 10), c.Get("X-User-ID"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	// Admin endpoints
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	admin.Post("/xp/grant", func(c *fiber.Ctx) error {
		var req struct {
			UserID string `json:"user_id"`
			XP     int64  `json:"xp"`
			Reason string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		if req.UserID == "" {
			return badRequest(c, "user_id is required", nil)
		}

		res, err := game.GrantXP(c.UserContext(), req.UserID, req.XP, req.Reason)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"message": "XP granted successfully",
			"user_id": req.UserID,
			"xp":      req.XP,
			"result":  res,
		})
	})

	admin.Post("/badges/:id/icon", func(c *fiber.Ctx) error {
		fh, err := c.FormFile("icon")
		if err != nil {
			return badRequest(c, "icon file is required", err)
		}
		if fh.Size > maxIconSize {
			return badRequest(c, "icon exceeds 2MB", nil)
		}
		f, err := fh.Open()
		if err != nil {
			return badRequest(c, "unreadable icon file", err)
		}
		defer f.Close()

		url, err := icons.UploadBadgeIcon(c.UserContext(), c.Params("id"), fh.Filename, fh.Header.Get("Content-Type"), f)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"badge_id": c.Params("id"), "icon_url": url})
	})
}

// ensureProfile creates the caller's profile on first contact.
func ensureProfile(game *services.GamificationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := game.Ledger.EnsureProgressRecord(c.UserContext(), middleware.UserID(c)); err != nil {
			return respondError(c, err)
		}
		return c.Next()
	}
}
