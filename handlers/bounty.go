// handlers/bounty.go
package handlers

import (
	"bounty-listing-system/middleware"
	"bounty-listing-system/services"

	"github.com/gofiber/fiber/v2"
)

// NewAPIRouter is the /api group every API route hangs off. It carries the
// gateway-forwarded user identity.
func NewAPIRouter(app *fiber.App) fiber.Router {
	return app.Group("/api", middleware.UserContext())
}

func SetupBountyRoutes(api fiber.Router, bountyService *services.BountyService, submissionService *services.SubmissionService) {
	api.Get("/bounties", bountyService.GetBounties)
	api.Post("/bounties", bountyService.CreateBounty)
	api.Get("/bounties/slug/:slug", bountyService.GetBountyBySlug)
	api.Get("/bounties/submission/:slug", submissionService.GetBountySubmissions)
	api.Post("/bounties/update/:id", bountyService.UpdateBounty)
	api.Post("/bounties/:id/close", bountyService.CloseBounty)
	api.Post("/bounties/:id/publish/schedule", bountyService.SchedulePublishHandler)
	api.Post("/bounties/:id/publish/cancel", bountyService.CancelScheduledPublishHandler)

	api.Post("/submissions", middleware.RequireUser(), submissionService.CreateSubmission)
}
