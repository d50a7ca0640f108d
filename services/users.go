package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"bounty-listing-system/logger"
	"bounty-listing-system/models"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultUserSearchLimit = 20
	maxUserSearchLimit     = 50
)

// UserSummary is the public part of a user shown in the point-of-contact picker.
type UserSummary struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId,omitempty"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Photo      string `json:"photo,omitempty"`
}

// SearchUsers matches username, email or name case-insensitively. An empty
// query returns the most recently synced users.
func (s *SponsorService) SearchUsers(ctx context.Context, query string, limit int) ([]UserSummary, error) {
	if limit <= 0 {
		limit = defaultUserSearchLimit
	}
	if limit > maxUserSearchLimit {
		limit = maxUserSearchLimit
	}

	db := s.DB.WithContext(ctx).Model(&models.User{}).Order("updated_at DESC").Limit(limit)
	if q := strings.TrimSpace(query); q != "" {
		term := "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
		db = db.Where(
			`LOWER(username) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\' OR LOWER(first_name || ' ' || last_name) LIKE ? ESCAPE '\'`,
			term, term, term,
		)
	}

	var users []models.User
	if err := db.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("%w: user search: %w", ErrFetchFailed, err)
	}

	res := make([]UserSummary, len(users))
	for i, u := range users {
		res[i] = UserSummary{
			ID:        u.ID,
			Username:  u.Username,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Photo:     u.Photo,
		}
		if u.ExternalID != nil {
			res[i].ExternalID = *u.ExternalID
		}
	}
	return res, nil
}

// GetUsers handles GET /api/users/search?q=&limit=.
func (s *SponsorService) GetUsers(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultUserSearchLimit)))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, ErrInvalidQuery, "limit must be an integer")
	}

	users, err := s.SearchUsers(c.UserContext(), c.Query("q"), limit)
	if err != nil {
		s.Log.Error("[Users] search failed", logger.String("q", c.Query("q")), logger.Error(err))
		return errorJSON(c, statusFor(err), err, "search failed")
	}
	return c.JSON(users)
}
