package services

import (
	"fmt"
	"testing"
	"time"

	"bounty-listing-system/logger"
	"bounty-listing-system/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// newTestDB opens a private in-memory SQLite database with the schema applied.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// each connection to :memory: is its own database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

// newMockDB is a postgres-dialect GORM handle backed by sqlmock.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func newBountyService(db *gorm.DB) *BountyService {
	s := NewBountyService(db, logger.NewNop(), DefaultPageSize, DefaultMaxPageSize)
	s.Now = fixedClock
	return s
}

func seedSponsor(t *testing.T, db *gorm.DB, name string) *models.Sponsor {
	t.Helper()
	sp := &models.Sponsor{Name: name, Slug: fmt.Sprintf("%s-%s", name, uuid.NewString()[:8])}
	require.NoError(t, db.Create(sp).Error)
	return sp
}

func seedUser(t *testing.T, db *gorm.DB, first string) *models.User {
	t.Helper()
	u := &models.User{FirstName: first, Email: first + "@example.com", Username: first}
	require.NoError(t, db.Create(u).Error)
	return u
}

// seedBounty stores an active OPEN draft; mutate adjusts it before insert.
func seedBounty(t *testing.T, db *gorm.DB, sponsorID, title string, mutate ...func(*models.Bounty)) *models.Bounty {
	t.Helper()
	b := &models.Bounty{
		Slug:      fmt.Sprintf("b-%s", uuid.NewString()),
		Title:     title,
		Status:    models.BountyStatusOpen,
		IsActive:  true,
		SponsorID: sponsorID,
	}
	for _, m := range mutate {
		m(b)
	}
	require.NoError(t, db.Create(b).Error)
	return b
}

func ptrTime(t time.Time) *time.Time { return &t }
