package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bounty-listing-system/logger"
	"bounty-listing-system/middleware"
	"bounty-listing-system/models"
	"bounty-listing-system/services"
	"bounty-listing-system/utils"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testToken = "gateway-secret"

type fixture struct {
	app     *fiber.App
	db      *gorm.DB
	sponsor *models.Sponsor
	user    *models.User
	ogBase  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithOGClient(t, nil)
}

// newFixtureWithOGClient uses ogClient for /api/og, or the test server's own client when nil.
func newFixtureWithOGClient(t *testing.T, ogClient *http.Client) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))

	log := logger.NewNop()
	metrics := middleware.NewMetrics()

	app := fiber.New()
	app.Use(middleware.RequestLogger(log))
	app.Use(metrics.Middleware())
	app.Use(middleware.GatewayAuth(testToken, log, "/healthz", "/metrics", "/assets"))

	ogSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/post" {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		_, _ = w.Write([]byte(`<html><head><meta property="og:image" content="https://img.example.com/p.png"></head></html>`))
	}))
	t.Cleanup(ogSrv.Close)

	if ogClient == nil {
		ogClient = ogSrv.Client()
	}

	SetupSystemRoutes(app, db, metrics)
	api := NewAPIRouter(app)
	SetupBountyRoutes(api,
		services.NewBountyService(db, log, 15, 100),
		services.NewSubmissionService(db, log),
	)
	SetupSponsorRoutes(api,
		services.NewSponsorService(db, log, nil),
		services.NewOGService(ogClient, nil, time.Hour, log),
	)

	sponsor := &models.Sponsor{Name: "acme", Slug: "acme"}
	require.NoError(t, db.Create(sponsor).Error)
	user := &models.User{FirstName: "grace"}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Create(&models.UserSponsor{UserID: user.ID, SponsorID: sponsor.ID, Role: models.SponsorRoleAdmin}).Error)

	return &fixture{app: app, db: db, sponsor: sponsor, user: user, ogBase: ogSrv.URL}
}

func (f *fixture) seedBounty(t *testing.T, title string, mutate ...func(*models.Bounty)) *models.Bounty {
	t.Helper()
	b := &models.Bounty{Slug: "b-" + uuid.NewString(), Title: title, IsActive: true, SponsorID: f.sponsor.ID}
	for _, m := range mutate {
		m(b)
	}
	require.NoError(t, f.db.Create(b).Error)
	return b
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func TestGatewayAuth(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/bounties?sponsorId="+f.sponsor.ID, nil)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGetBounties(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 20; i++ {
		f.seedBounty(t, fmt.Sprintf("Bounty %d", i))
	}

	resp, body := f.do(t, http.MethodGet, "/api/bounties?sponsorId="+f.sponsor.ID+"&skip=0&take=15", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 20, body["total"])
	assert.Len(t, body["data"], 15)

	resp, _ = f.do(t, http.MethodGet, "/api/bounties?sponsorId="+f.sponsor.ID+"&skip=abc", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/bounties", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUpdateBounty(t *testing.T) {
	f := newFixture(t)
	draft := f.seedBounty(t, "Draft")
	closed := f.seedBounty(t, "Closed", func(b *models.Bounty) { b.Status = models.BountyStatusClosed })

	resp, body := f.do(t, http.MethodPost, "/api/bounties/update/"+draft.ID, `{"isPublished":true}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, draft.ID, body["id"])
	assert.Equal(t, true, body["isPublished"])

	resp, body = f.do(t, http.MethodPost, "/api/bounties/update/"+closed.ID, `{"isPublished":true}`)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.NotEmpty(t, body["message"])

	resp, _ = f.do(t, http.MethodPost, "/api/bounties/update/"+uuid.NewString(), `{"isPublished":false}`)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/bounties/update/"+draft.ID, `{}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetBountySubmissions(t *testing.T) {
	f := newFixture(t)
	ended := f.seedBounty(t, "Ended", func(b *models.Bounty) {
		past := time.Now().Add(-time.Hour)
		b.Deadline = &past
		b.IsPublished = true
	})
	require.NoError(t, f.db.Create(&models.Submission{ListingRef: models.BountyRef(ended.ID), UserID: f.user.ID, Link: "https://example.com"}).Error)

	resp, body := f.do(t, http.MethodGet, "/api/bounties/submission/"+ended.Slug, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["submission"], 1)
	bounty := body["bounty"].(map[string]any)
	assert.Equal(t, ended.ID, bounty["id"])

	resp, body = f.do(t, http.MethodGet, "/api/bounties/submission/nope", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Error occurred while fetching bounty with slug=nope.", body["message"])
}

func TestCreateBountyAndSubmission(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/bounties",
		fmt.Sprintf(`{"title":"Write a Thread","sponsorId":%q,"rewardAmount":250}`, f.sponsor.ID))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "write-a-thread", body["slug"])
	id := body["id"].(string)

	resp, _ = f.do(t, http.MethodPost, "/api/submissions", fmt.Sprintf(`{"listingId":%q,"link":"https://x.com/1"}`, id))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "user identity required")

	resp, _ = f.do(t, http.MethodPost, "/api/submissions", fmt.Sprintf(`{"listingId":%q,"link":"https://x.com/1"}`, id), "X-User-ID", f.user.ID)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode, "drafts accept no submissions")

	resp, _ = f.do(t, http.MethodPost, "/api/bounties/update/"+id, `{"isPublished":true}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/submissions", fmt.Sprintf(`{"listingId":%q,"link":"https://x.com/1"}`, id), "X-User-ID", f.user.ID)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/submissions", fmt.Sprintf(`{"listingId":%q,"link":"https://x.com/2"}`, id), "X-User-ID", f.user.ID)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/api/bounties/"+id+"/close", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "CLOSED", body["status"])
}

func TestSchedulePublishRoutes(t *testing.T) {
	f := newFixture(t)
	draft := f.seedBounty(t, "Later")
	at := time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339)

	resp, body := f.do(t, http.MethodPost, "/api/bounties/"+draft.ID+"/publish/schedule", fmt.Sprintf(`{"publishAt":%q}`, at))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["publishAt"])

	resp, _ = f.do(t, http.MethodPost, "/api/bounties/"+draft.ID+"/publish/schedule", `{"publishAt":"tomorrow"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/api/bounties/"+draft.ID+"/publish/cancel", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	_, scheduled := body["publishAt"]
	assert.False(t, scheduled)
}

func TestUserSponsors(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/userSponsors", strings.NewReader(fmt.Sprintf(`{"userId":%q}`, f.user.ID)))
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var memberships []models.UserSponsor
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&memberships))
	require.Len(t, memberships, 1)
	assert.Equal(t, "acme", memberships[0].Sponsor.Name)

	resp, _ = f.do(t, http.MethodPost, "/api/userSponsors", `{}`)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestSponsorLogoWithoutStorage(t *testing.T) {
	f := newFixture(t)
	body := "--b\r\nContent-Disposition: form-data; name=\"logo\"; filename=\"a.png\"\r\nContent-Type: image/png\r\n\r\npng\r\n--b--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/api/sponsors/"+f.sponsor.ID+"/logo", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestOpenGraphRoute(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/og", `{"url":"ftp://example.com"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	resp, _ = f.do(t, http.MethodPost, "/api/og", fmt.Sprintf(`{"url":%q}`, f.ogBase+"/removed"))
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/api/og", fmt.Sprintf(`{"url":%q}`, f.ogBase+"/post"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	og := body["open_graph"].(map[string]any)
	images := og["images"].([]any)
	require.Len(t, images, 1)
	assert.Equal(t, "https://img.example.com/p.png", images[0].(map[string]any)["url"])
}

func TestSystemRoutes(t *testing.T) {
	f := newFixture(t)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/assets/bg/og.svg", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	f.do(t, http.MethodGet, "/api/bounties?sponsorId="+f.sponsor.ID, "")

	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "bounty_listing_http_requests_total")
}

func TestUserSearchRoute(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Create(&models.User{Username: "ada", Email: "ada@example.com"}).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/users/search?q=ADA", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var users []services.UserSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&users))
	require.Len(t, users, 1)
	assert.Equal(t, "ada", users[0].Username)

	resp, body := f.do(t, http.MethodGet, "/api/users/search?limit=lots", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "limit must be an integer", body["message"])
}

func TestOpenGraphRoute_RefusesInternalAddresses(t *testing.T) {
	f := newFixtureWithOGClient(t, utils.NewHTTPClient(time.Second))

	for _, target := range []string{f.ogBase + "/post", "http://localhost:6379/", "http://169.254.169.254/latest/meta-data/"} {
		resp, body := f.do(t, http.MethodPost, "/api/og", fmt.Sprintf(`{"url":%q}`, target))
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, target)
		assert.Contains(t, body["error"], utils.ErrBlockedAddress.Error(), target)
	}
}

func TestAPIRouter_UserContextRegisteredOnce(t *testing.T) {
	f := newFixture(t)

	handlers := 0
	for _, r := range f.app.GetRoutes() {
		if r.Method == fiber.MethodGet && r.Path == "/api" {
			handlers += len(r.Handlers)
		}
	}
	assert.Equal(t, 1, handlers)

	resp, body := f.do(t, http.MethodPost, "/api/submissions", `{"listingId":"x","link":"https://x.com/1"}`)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body["error"], "X-User-ID")
}
