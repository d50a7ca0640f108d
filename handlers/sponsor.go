// handlers/sponsor.go
package handlers

import (
	"bounty-listing-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSponsorRoutes(api fiber.Router, sponsorService *services.SponsorService, ogService *services.OGService) {
	api.Post("/userSponsors", sponsorService.GetUserSponsors)
	api.Post("/sponsors/:id/logo", sponsorService.UploadLogo)
	api.Post("/og", ogService.GetOpenGraph)
	api.Get("/users/search", sponsorService.GetUsers)
}
