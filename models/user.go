package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a talent or sponsor member. Profiles are mirrored from the profile
// service by the user sync worker, keyed by ExternalID.
type User struct {
	ID               string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalID       *string `gorm:"uniqueIndex" json:"externalId,omitempty"`
	Email            string  `gorm:"index" json:"email,omitempty"`
	Username         string  `gorm:"index" json:"username,omitempty"`
	FirstName        string  `json:"firstName,omitempty"`
	LastName         string  `json:"lastName,omitempty"`
	Photo            string  `gorm:"type:text" json:"photo,omitempty"`
	Twitter          string  `json:"twitter,omitempty"`
	Discord          string  `json:"discord,omitempty"`
	CurrentSponsorID *string `gorm:"type:uuid" json:"currentSponsorId,omitempty"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime;index" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// SponsorRole is a member's role within a sponsor.
type SponsorRole string

const (
	SponsorRoleAdmin  SponsorRole = "ADMIN"
	SponsorRoleMember SponsorRole = "MEMBER"
)

// Sponsor is the organization that posts bounties.
type Sponsor struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Name     string `gorm:"uniqueIndex;not null" json:"name"`
	Slug     string `gorm:"uniqueIndex;not null" json:"slug"`
	Logo     string `gorm:"type:text" json:"logo,omitempty"`
	URL      string `json:"url,omitempty"`
	Industry string `json:"industry,omitempty"`
	Twitter  string `json:"twitter,omitempty"`
	Bio      string `gorm:"type:text" json:"bio,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (s *Sponsor) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// UserSponsor is a membership row linking a user to a sponsor.
type UserSponsor struct {
	UserID    string      `gorm:"primaryKey;type:uuid" json:"userId"`
	SponsorID string      `gorm:"primaryKey;type:uuid" json:"sponsorId"`
	Role      SponsorRole `gorm:"type:varchar(16);not null" json:"role"`
	Sponsor   *Sponsor    `gorm:"foreignKey:SponsorID" json:"sponsor,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (UserSponsor) TableName() string { return "user_sponsors" }
