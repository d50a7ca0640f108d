// workers/user_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"bounty-listing-system/logger"
	"bounty-listing-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultProfileEndpoint = "/api/v1/public/profiles"
	defaultSyncInterval    = time.Minute
)

// RemoteProfile is one user as returned by the profile service.
type RemoteProfile struct {
	ExternalID        string    `json:"external_id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	FirstName         *string   `json:"first_name,omitempty"`
	LastName          *string   `json:"last_name,omitempty"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	Twitter           *string   `json:"twitter,omitempty"`
	Discord           *string   `json:"discord,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ProfileChangesResponse is the body of the profile changes endpoint.
type ProfileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// UserSyncWorker mirrors submitter and sponsor-member profiles into the users table.
type UserSyncWorker struct {
	db           *gorm.DB
	log          logger.Logger
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewUserSyncWorker(db *gorm.DB, log logger.Logger, baseURL, serviceToken string, interval time.Duration) *UserSyncWorker {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return &UserSyncWorker{
		db:           db,
		log:          log.With(logger.String("component", "user_sync")),
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: DefaultProfileEndpoint,
		serviceToken: serviceToken,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Run syncs once immediately, then every interval until ctx is done.
func (w *UserSyncWorker) Run(ctx context.Context) error {
	w.log.Info("[SYNC] starting user sync worker", logger.String("base_url", w.baseURL))

	if _, err := w.SyncOnce(ctx); err != nil {
		w.log.Warn("[SYNC] initial sync failed", logger.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.Error("[SYNC] sync batch failed", logger.Error(err))
			}
		case <-ctx.Done():
			w.log.Info("[SYNC] user sync worker stopped")
			return nil
		}
	}
}

// SyncOnce pulls changes since the newest local profile and upserts them.
// It returns how many profiles were written.
func (w *UserSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	since := w.lastSyncTime(ctx)
	profiles, err := w.fetchChanges(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(profiles) == 0 {
		return 0, nil
	}

	upserted := 0
	for _, p := range profiles {
		if p.ExternalID == "" {
			continue
		}
		if err := w.upsert(ctx, p); err != nil {
			w.log.Warn("[SYNC] upsert failed",
				logger.String("external_id", p.ExternalID),
				logger.Error(err),
			)
			continue
		}
		upserted++
	}

	w.log.Info("[SYNC] synced profiles",
		logger.Int("received", len(profiles)),
		logger.Int("upserted", upserted),
	)
	return upserted, nil
}

// lastSyncTime is the newest updated_at among local users, or the epoch.
func (w *UserSyncWorker) lastSyncTime(ctx context.Context) time.Time {
	var newest models.User
	err := w.db.WithContext(ctx).
		Select("updated_at").
		Where("external_id IS NOT NULL").
		Order("updated_at DESC").
		Take(&newest).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			w.log.Warn("[SYNC] reading last sync time failed", logger.Error(err))
		}
		return time.Unix(0, 0).UTC()
	}
	return newest.UpdatedAt
}

func (w *UserSyncWorker) fetchChanges(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid profile service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile service request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("profile service returned %d: %s", resp.StatusCode, body)
	}

	var payload ProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode profile changes: %w", err)
	}
	return payload.Users, nil
}

func (w *UserSyncWorker) upsert(ctx context.Context, p RemoteProfile) error {
	externalID := p.ExternalID
	user := models.User{
		ExternalID: &externalID,
		Username:   p.Username,
		Email:      p.Email,
		FirstName:  deref(p.FirstName),
		LastName:   deref(p.LastName),
		Photo:      deref(p.ProfilePictureURL),
		Twitter:    deref(p.Twitter),
		Discord:    deref(p.Discord),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}

	return w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "email", "first_name", "last_name",
			"photo", "twitter", "discord", "updated_at",
		}),
	}).Create(&user).Error
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
