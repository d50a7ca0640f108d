package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"bounty-listing-system/logger"
	"bounty-listing-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxLogoBytes = 2 << 20

// Uploader stores an object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

type SponsorService struct {
	DB       *gorm.DB
	Log      logger.Logger
	Uploader Uploader // nil when object storage is not configured
}

func NewSponsorService(db *gorm.DB, log logger.Logger, uploader Uploader) *SponsorService {
	return &SponsorService{
		DB:       db,
		Log:      log.With(logger.String("component", "sponsors")),
		Uploader: uploader,
	}
}

// MembershipsFor lists a user's sponsor memberships with the sponsor loaded.
func (s *SponsorService) MembershipsFor(ctx context.Context, userID string) ([]models.UserSponsor, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidQuery)
	}
	memberships := []models.UserSponsor{}
	if err := s.DB.WithContext(ctx).
		Preload("Sponsor").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("%w: memberships: %w", ErrFetchFailed, err)
	}
	return memberships, nil
}

// UpdateLogo uploads a new logo for the sponsor and stores its URL.
func (s *SponsorService) UpdateLogo(ctx context.Context, sponsorID, filename, contentType string, body io.Reader) (*models.Sponsor, error) {
	if s.Uploader == nil {
		return nil, ErrStorageDisabled
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: logo must be an image, got %q", ErrInvalidQuery, contentType)
	}

	var sponsor models.Sponsor
	err := s.DB.WithContext(ctx).First(&sponsor, "id = ?", sponsorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id=%s", ErrSponsorNotFound, sponsorID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: sponsor by id: %w", ErrFetchFailed, err)
	}

	key := fmt.Sprintf("logos/%s/%s%s", sponsor.ID, uuid.NewString(), strings.ToLower(filepath.Ext(filename)))
	url, err := s.Uploader.Upload(ctx, key, contentType, body)
	if err != nil {
		s.Log.Error("[Sponsors] logo upload failed", logger.String("sponsor_id", sponsor.ID), logger.Error(err))
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Model(&sponsor).Update("logo", url).Error; err != nil {
		return nil, fmt.Errorf("%w: update logo: %w", ErrFetchFailed, err)
	}
	sponsor.Logo = url
	return &sponsor, nil
}

// --- HTTP handlers ---

// GetUserSponsors serves POST /api/userSponsors with body {userId}.
// Any failure is reported as 403.
func (s *SponsorService) GetUserSponsors(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusForbidden, err, "Error occurred while fetching sponsors.")
	}
	memberships, err := s.MembershipsFor(c.UserContext(), req.UserID)
	if err != nil {
		s.Log.Warn("[Sponsors] memberships lookup failed", logger.String("user_id", req.UserID), logger.Error(err))
		return errorJSON(c, fiber.StatusForbidden, err, "Error occurred while fetching sponsors.")
	}
	return c.JSON(memberships)
}

// UploadLogo serves POST /api/sponsors/:id/logo with a multipart "logo" file.
func (s *SponsorService) UploadLogo(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("logo")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err, "logo file is required")
	}
	if fileHeader.Size > maxLogoBytes {
		return errorJSON(c, fiber.StatusRequestEntityTooLarge, ErrInvalidQuery, "logo exceeds 2MB")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err, "failed to open file")
	}
	defer file.Close()

	sponsor, err := s.UpdateLogo(c.UserContext(), c.Params("id"), fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"), file)
	if err != nil {
		return errorJSON(c, statusFor(err), err, "Error occurred while uploading logo.")
	}
	return c.JSON(sponsor)
}
