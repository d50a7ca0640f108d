package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bounty-listing-system/logger"
	"bounty-listing-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SubmissionService struct {
	DB  *gorm.DB
	Log logger.Logger
	Now func() time.Time
}

func NewSubmissionService(db *gorm.DB, log logger.Logger) *SubmissionService {
	return &SubmissionService{
		DB:  db,
		Log: log.With(logger.String("component", "submissions")),
		Now: time.Now,
	}
}

// FindBountySubmissions returns the bounty for slug and, once its deadline has
// passed, every submission made to it. Before the deadline the list is empty.
func (s *SubmissionService) FindBountySubmissions(ctx context.Context, slug string) (*models.BountySubmissions, error) {
	var bounty models.Bounty
	err := s.DB.WithContext(ctx).
		Preload("Sponsor").
		Preload("Poc").
		Where("slug = ? AND is_active = ?", slug, true).
		First(&bounty).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: slug=%s", ErrBountyNotFound, slug)
	}
	if err != nil {
		s.Log.Error("[Submissions] bounty lookup failed", logger.String("slug", slug), logger.Error(err))
		return nil, fmt.Errorf("%w: bounty by slug: %w", ErrFetchFailed, err)
	}

	result := &models.BountySubmissions{Bounty: &bounty, Submission: []models.Submission{}}
	if !bounty.SubmissionsVisible(s.Now()) {
		return result, nil
	}

	ref := models.BountyRef(bounty.ID)
	if err := s.DB.WithContext(ctx).
		Preload("User").
		Where("listing_type = ? AND listing_id = ?", ref.ListingType, ref.ListingID).
		Order("created_at ASC").
		Find(&result.Submission).Error; err != nil {
		s.Log.Error("[Submissions] list failed", logger.String("bounty_id", bounty.ID), logger.Error(err))
		return nil, fmt.Errorf("%w: submissions: %w", ErrFetchFailed, err)
	}
	return result, nil
}

// CreateSubmissionInput is the payload for a new submission.
type CreateSubmissionInput struct {
	ListingID          string `json:"listingId"`
	ListingType        string `json:"listingType"`
	Link               string `json:"link"`
	Tweet              string `json:"tweet"`
	EligibilityAnswers string `json:"eligibilityAnswers"`
}

// Create stores a user's submission. Only published OPEN bounties accept
// submissions, and only until their deadline.
func (s *SubmissionService) Create(ctx context.Context, userID string, in CreateSubmissionInput) (*models.Submission, error) {
	if userID == "" || strings.TrimSpace(in.Link) == "" {
		return nil, fmt.Errorf("%w: user and link are required", ErrInvalidQuery)
	}
	kind := models.ListingKindBounty
	if in.ListingType != "" {
		parsed, err := models.ParseListingKind(in.ListingType)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		kind = parsed
	}
	if kind != models.ListingKindBounty {
		return nil, fmt.Errorf("%w: only bounty submissions are accepted", ErrInvalidQuery)
	}
	ref := models.BountyRef(in.ListingID)
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}

	sub := &models.Submission{
		ListingRef:         ref,
		UserID:             userID,
		Link:               strings.TrimSpace(in.Link),
		Tweet:              in.Tweet,
		EligibilityAnswers: in.EligibilityAnswers,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bounty models.Bounty
		err := tx.Where("id = ? AND is_active = ?", ref.ListingID, true).First(&bounty).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id=%s", ErrBountyNotFound, ref.ListingID)
		}
		if err != nil {
			return fmt.Errorf("%w: bounty by id: %w", ErrFetchFailed, err)
		}
		if !bounty.IsPublished || !bounty.IsMutable() {
			return fmt.Errorf("%w: id=%s", ErrSubmissionClosed, bounty.ID)
		}
		if bounty.Deadline != nil && !bounty.Deadline.After(s.Now()) {
			return fmt.Errorf("%w: deadline passed", ErrSubmissionClosed)
		}

		var existing int64
		if err := tx.Model(&models.Submission{}).
			Where("listing_type = ? AND listing_id = ? AND user_id = ?", ref.ListingType, ref.ListingID, userID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("%w: existing submission: %w", ErrFetchFailed, err)
		}
		if existing > 0 {
			return ErrDuplicateSubmission
		}

		if err := tx.Create(sub).Error; err != nil {
			return fmt.Errorf("%w: create submission: %w", ErrFetchFailed, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("[Submissions] created",
		logger.String("submission_id", sub.ID),
		logger.String("bounty_id", ref.ListingID),
		logger.String("user_id", userID),
	)
	return sub, nil
}

// --- HTTP handlers ---

// GetBountySubmissions serves GET /api/bounties/submission/:slug.
// Every failure is reported as 400.
func (s *SubmissionService) GetBountySubmissions(c *fiber.Ctx) error {
	slug := c.Params("slug")
	result, err := s.FindBountySubmissions(c.UserContext(), slug)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err,
			fmt.Sprintf("Error occurred while fetching bounty with slug=%s.", slug))
	}
	return c.JSON(result)
}

// CreateSubmission serves POST /api/submissions for the user set by the user context middleware.
func (s *SubmissionService) CreateSubmission(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user"})
	}

	var in CreateSubmissionInput
	if err := c.BodyParser(&in); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err, "invalid JSON")
	}

	sub, err := s.Create(c.UserContext(), userID, in)
	if err != nil {
		return errorJSON(c, statusFor(err), err, "Error occurred while creating submission.")
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}
