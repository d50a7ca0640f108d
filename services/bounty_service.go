package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bounty-listing-system/logger"
	"bounty-listing-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

const (
	DefaultPageSize    = 15
	DefaultMaxPageSize = 100
	maxSlugAttempts    = 50
)

type BountyService struct {
	DB          *gorm.DB
	Log         logger.Logger
	PageSize    int
	MaxPageSize int
	Now         func() time.Time
}

func NewBountyService(db *gorm.DB, log logger.Logger, pageSize, maxPageSize int) *BountyService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxPageSize < pageSize {
		maxPageSize = DefaultMaxPageSize
	}
	return &BountyService{
		DB:          db,
		Log:         log.With(logger.String("component", "bounties")),
		PageSize:    pageSize,
		MaxPageSize: maxPageSize,
		Now:         time.Now,
	}
}

// BountyQuery selects one page of a sponsor's bounties.
type BountyQuery struct {
	SponsorID  string
	SearchText string
	Skip       int
	Take       int
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListBounties returns active, non-archived bounties of a sponsor, newest first.
func (s *BountyService) ListBounties(ctx context.Context, q BountyQuery) (*models.BountyPage, error) {
	if q.SponsorID == "" {
		return nil, fmt.Errorf("%w: sponsorId is required", ErrInvalidQuery)
	}
	if q.Skip < 0 {
		return nil, fmt.Errorf("%w: skip must be >= 0", ErrInvalidQuery)
	}
	take := q.Take
	if take <= 0 {
		take = s.PageSize
	}
	if take > s.MaxPageSize {
		take = s.MaxPageSize
	}

	base := s.DB.WithContext(ctx).
		Model(&models.Bounty{}).
		Where("sponsor_id = ? AND is_active = ? AND is_archived = ?", q.SponsorID, true, false)
	if search := strings.TrimSpace(q.SearchText); search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		base = base.Where(`LOWER(title) LIKE ? ESCAPE '\'`, pattern)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		s.Log.Error("[Bounties] count failed", logger.String("sponsor_id", q.SponsorID), logger.Error(err))
		return nil, fmt.Errorf("%w: count bounties: %w", ErrFetchFailed, err)
	}

	bounties := []models.Bounty{}
	if err := base.Order("created_at DESC").Order("id DESC").
		Offset(q.Skip).Limit(take).
		Find(&bounties).Error; err != nil {
		s.Log.Error("[Bounties] list failed", logger.String("sponsor_id", q.SponsorID), logger.Error(err))
		return nil, fmt.Errorf("%w: list bounties: %w", ErrFetchFailed, err)
	}

	return &models.BountyPage{Data: bounties, Total: total}, nil
}

// GetBySlug loads an active bounty with its sponsor and point of contact.
func (s *BountyService) GetBySlug(ctx context.Context, bountySlug string) (*models.Bounty, error) {
	var bounty models.Bounty
	err := s.DB.WithContext(ctx).
		Preload("Sponsor").
		Preload("Poc").
		Where("slug = ? AND is_active = ?", bountySlug, true).
		First(&bounty).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: slug=%s", ErrBountyNotFound, bountySlug)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: bounty by slug: %w", ErrFetchFailed, err)
	}
	return &bounty, nil
}

// SetPublished flips the publish flag of an OPEN bounty and returns the stored row.
func (s *BountyService) SetPublished(ctx context.Context, id string, isPublished bool) (*models.Bounty, error) {
	updates := map[string]any{
		"is_published": isPublished,
		"publish_at":   nil,
	}
	if isPublished {
		updates["published_at"] = s.Now()
	} else {
		updates["published_at"] = nil
	}

	result := s.DB.WithContext(ctx).
		Model(&models.Bounty{}).
		Where("id = ? AND status = ?", id, models.BountyStatusOpen).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("%w: update bounty: %w", ErrFetchFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, s.missingOr(ctx, id, ErrBountyImmutable)
	}

	s.Log.Info("[Bounties] publish flag changed", logger.String("bounty_id", id), logger.Bool("is_published", isPublished))
	return s.getByID(ctx, id)
}

// Close moves an OPEN or REVIEW bounty to CLOSED.
func (s *BountyService) Close(ctx context.Context, id string) (*models.Bounty, error) {
	result := s.DB.WithContext(ctx).
		Model(&models.Bounty{}).
		Where("id = ? AND status IN ?", id, []models.BountyStatus{models.BountyStatusOpen, models.BountyStatusReview}).
		Updates(map[string]any{"status": models.BountyStatusClosed, "publish_at": nil})
	if result.Error != nil {
		return nil, fmt.Errorf("%w: close bounty: %w", ErrFetchFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, s.missingOr(ctx, id, ErrBountyImmutable)
	}
	s.Log.Info("[Bounties] closed", logger.String("bounty_id", id))
	return s.getByID(ctx, id)
}

// SchedulePublish arranges for an unpublished OPEN bounty to be published at the given time.
func (s *BountyService) SchedulePublish(ctx context.Context, id string, at time.Time) (*models.Bounty, error) {
	if !at.After(s.Now()) {
		return nil, fmt.Errorf("%w: publishAt must be in the future", ErrInvalidQuery)
	}
	result := s.DB.WithContext(ctx).
		Model(&models.Bounty{}).
		Where("id = ? AND status = ? AND is_published = ?", id, models.BountyStatusOpen, false).
		Update("publish_at", at)
	if result.Error != nil {
		return nil, fmt.Errorf("%w: schedule publish: %w", ErrFetchFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, s.missingOr(ctx, id, ErrBountyImmutable)
	}
	return s.getByID(ctx, id)
}

// CancelScheduledPublish clears any pending scheduled publish.
func (s *BountyService) CancelScheduledPublish(ctx context.Context, id string) (*models.Bounty, error) {
	result := s.DB.WithContext(ctx).
		Model(&models.Bounty{}).
		Where("id = ?", id).
		Update("publish_at", nil)
	if result.Error != nil {
		return nil, fmt.Errorf("%w: cancel scheduled publish: %w", ErrFetchFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: id=%s", ErrBountyNotFound, id)
	}
	return s.getByID(ctx, id)
}

// CreateBountyInput is the payload for a new draft.
type CreateBountyInput struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Requirements string          `json:"requirements"`
	Deadline     *time.Time      `json:"deadline"`
	Token        string          `json:"token"`
	RewardAmount float64         `json:"rewardAmount"`
	Rewards      *models.Rewards `json:"rewards"`
	SponsorID    string          `json:"sponsorId"`
	PocID        *string         `json:"pocId"`
	Type         string          `json:"type"`
}

// CreateDraft stores a new unpublished bounty with a unique slug derived from its title.
func (s *BountyService) CreateDraft(ctx context.Context, in CreateBountyInput) (*models.Bounty, error) {
	if strings.TrimSpace(in.Title) == "" || in.SponsorID == "" {
		return nil, fmt.Errorf("%w: title and sponsorId are required", ErrInvalidQuery)
	}
	if in.RewardAmount < 0 {
		return nil, fmt.Errorf("%w: rewardAmount must be >= 0", ErrInvalidQuery)
	}

	var bounty *models.Bounty
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sponsors int64
		if err := tx.Model(&models.Sponsor{}).Where("id = ?", in.SponsorID).Count(&sponsors).Error; err != nil {
			return err
		}
		if sponsors == 0 {
			return fmt.Errorf("%w: id=%s", ErrSponsorNotFound, in.SponsorID)
		}

		uniqueSlug, err := nextFreeSlug(tx, in.Title)
		if err != nil {
			return err
		}

		bounty = &models.Bounty{
			Slug:         uniqueSlug,
			Title:        strings.TrimSpace(in.Title),
			Description:  in.Description,
			Requirements: in.Requirements,
			Deadline:     in.Deadline,
			Status:       models.BountyStatusOpen,
			IsActive:     true,
			Token:        in.Token,
			RewardAmount: in.RewardAmount,
			Rewards:      in.Rewards,
			SponsorID:    in.SponsorID,
			PocID:        in.PocID,
			Type:         in.Type,
		}
		return tx.Create(bounty).Error
	})
	if err != nil {
		if errors.Is(err, ErrSponsorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: create bounty: %w", ErrFetchFailed, err)
	}

	s.Log.Info("[Bounties] draft created", logger.String("bounty_id", bounty.ID), logger.String("slug", bounty.Slug))
	return bounty, nil
}

// nextFreeSlug returns slug(title), or slug(title)-N for the first N >= 2 not taken yet.
func nextFreeSlug(tx *gorm.DB, title string) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "bounty"
	}
	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		var taken int64
		if err := tx.Model(&models.Bounty{}).Where("slug = ?", candidate).Count(&taken).Error; err != nil {
			return "", err
		}
		if taken == 0 {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(i)
	}
	return "", fmt.Errorf("no free slug for %q after %d attempts", base, maxSlugAttempts)
}

func (s *BountyService) getByID(ctx context.Context, id string) (*models.Bounty, error) {
	var bounty models.Bounty
	err := s.DB.WithContext(ctx).First(&bounty, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id=%s", ErrBountyNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: bounty by id: %w", ErrFetchFailed, err)
	}
	return &bounty, nil
}

// missingOr distinguishes "no such bounty" from a guarded update that matched nothing.
func (s *BountyService) missingOr(ctx context.Context, id string, guardErr error) error {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Bounty{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("%w: bounty exists: %w", ErrFetchFailed, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id=%s", ErrBountyNotFound, id)
	}
	return fmt.Errorf("%w: id=%s", guardErr, id)
}

// --- HTTP handlers ---

// GetBounties serves GET /api/bounties?sponsorId&searchText&skip&take.
func (s *BountyService) GetBounties(c *fiber.Ctx) error {
	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err, "skip must be an integer")
	}
	take, err := queryInt(c, "take", s.PageSize)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err, "take must be an integer")
	}

	page, err := s.ListBounties(c.UserContext(), BountyQuery{
		SponsorID:  c.Query("sponsorId"),
		SearchText: c.Query("searchText"),
		Skip:       skip,
		Take:       take,
	})
	if err != nil {
		return errorJSON(c, statusFor(err), err, "Error occurred while fetching bounties.")
	}
	return c.JSON(page)
}

// GetBountyBySlug serves GET /api/bounties/slug/:slug.
func (s *BountyService) GetBountyBySlug(c *fiber.Ctx) error {
	bounty, err := s.GetBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return errorJSON(c, statusFor(err), err, "Error occurred while fetching bounty.")
	}
	return c.JSON(bounty)
}

// UpdateBounty serves POST /api/bounties/update/:id with body {isPublished}.
func (s *BountyService) UpdateBounty(c *fiber.Ctx) error {
	var req struct {
		IsPublished *bool `json:"isPublished"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err, "invalid JSON")
	}
	if req.IsPublished == nil {
		return errorJSON(c, fiber.StatusBadRequest, ErrInvalidQuery, "isPublished is required")
	}

	bounty, err := s.SetPublished(c.UserContext(), c.Params("id"), *req.IsPublished)
	if err != nil {
		return errorJSON(c, statusFor(err), err, "Error occurred while updating bounty.")
	}
	return c.JSON(bounty)
}

// CreateBounty serves POST /api/bounties.
func (s *BountyService) CreateBounty(c *fiber.Ctx) error {
	var in CreateBountyInput
	if err := c.BodyParser(&in); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err, "invalid JSON")
	}
	bounty, err := s.CreateDraft(c.UserContext(), in)
	if err != nil {
		return errorJSON(c, statusFor(err), err, "Error occurred while creating bounty.")
	}
	return c.Status(fiber.StatusCreated).JSON(bounty)
}

// CloseBounty serves POST /api/bounties/:id/close.
func (s *BountyService) CloseBounty(c *fiber.Ctx) error {
	bounty, err := s.Close(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorJSON(c, statusFor(err), err, "Error occurred while closing bounty.")
	}
	return c.JSON(bounty)
}

// SchedulePublishHandler serves POST /api/bounties/:id/publish/schedule with body {publishAt}.
func (s *BountyService) SchedulePublishHandler(c *fiber.Ctx) error {
	var req struct {
		PublishAt string `json:"publishAt"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err, "invalid JSON")
	}
	at, err := time.Parse(time.RFC3339, req.PublishAt)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err, "invalid publishAt (use RFC3339)")
	}
	bounty, err := s.SchedulePublish(c.UserContext(), c.Params("id"), at)
	if err != nil {
		return errorJSON(c, statusFor(err), err, "Error occurred while scheduling publish.")
	}
	return c.JSON(bounty)
}

// CancelScheduledPublishHandler serves POST /api/bounties/:id/publish/cancel.
func (s *BountyService) CancelScheduledPublishHandler(c *fiber.Ctx) error {
	bounty, err := s.CancelScheduledPublish(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorJSON(c, statusFor(err), err, "Error occurred while cancelling scheduled publish.")
	}
	return c.JSON(bounty)
}

func queryInt(c *fiber.Ctx, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidQuery, key, raw)
	}
	return n, nil
}
