package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrBountyNotFound      = errors.New("bounty not found")
	ErrBountyImmutable     = errors.New("bounty is no longer open")
	ErrFetchFailed         = errors.New("fetch failed")
	ErrInvalidQuery        = errors.New("invalid query")
	ErrSubmissionClosed    = errors.New("bounty is not accepting submissions")
	ErrDuplicateSubmission = errors.New("submission already exists for this listing")
	ErrSponsorNotFound     = errors.New("sponsor not found")
	ErrStorageDisabled     = errors.New("object storage is not configured")
	ErrUpstreamFetch       = errors.New("upstream fetch failed")
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidQuery):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrBountyNotFound), errors.Is(err, ErrSponsorNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrBountyImmutable), errors.Is(err, ErrDuplicateSubmission):
		return fiber.StatusConflict
	case errors.Is(err, ErrSubmissionClosed):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, ErrStorageDisabled):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, ErrUpstreamFetch):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, status int, err error, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   err.Error(),
		"message": message,
	})
}
