// models/bounty.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BountyStatus is the stored lifecycle status of a bounty.
type BountyStatus string

const (
	BountyStatusOpen   BountyStatus = "OPEN"
	BountyStatusReview BountyStatus = "REVIEW"
	BountyStatusClosed BountyStatus = "CLOSED"
)

// DisplayStatus is what the dashboard shows for a bounty.
type DisplayStatus string

const (
	DisplayPublished DisplayStatus = "PUBLISHED"
	DisplayDraft     DisplayStatus = "DRAFT"
	DisplayClosed    DisplayStatus = "CLOSED"
)

// ResolveStatus maps the stored status and publish flag to a display status.
// Anything that is not OPEN shows as CLOSED regardless of the publish flag.
func ResolveStatus(status BountyStatus, isPublished bool) DisplayStatus {
	if status != BountyStatusOpen {
		return DisplayClosed
	}
	if isPublished {
		return DisplayPublished
	}
	return DisplayDraft
}

// Rewards is the podium split stored as jsonb.
type Rewards struct {
	First  float64  `json:"first"`
	Second *float64 `json:"second,omitempty"`
	Third  *float64 `json:"third,omitempty"`
	Forth  *float64 `json:"forth,omitempty"`
	Fifth  *float64 `json:"fifth,omitempty"`
}

func (r Rewards) Value() (driver.Value, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *Rewards) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*r = Rewards{}
		return nil
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("rewards: unsupported scan type %T", value)
	}
}

type Bounty struct {
	ID           string       `json:"id" gorm:"primaryKey;type:uuid"`
	Slug         string       `json:"slug" gorm:"uniqueIndex;not null"`
	Title        string       `json:"title" gorm:"not null"`
	Description  string       `json:"description,omitempty" gorm:"type:text"`
	Requirements string       `json:"requirements,omitempty" gorm:"type:text"`
	Deadline     *time.Time   `json:"deadline,omitempty" gorm:"index"`
	Status       BountyStatus `json:"status" gorm:"type:varchar(16);not null;default:'OPEN';index"`
	IsPublished  bool         `json:"isPublished" gorm:"not null"`
	IsActive     bool         `json:"isActive" gorm:"not null"`
	IsArchived   bool         `json:"isArchived" gorm:"not null"`
	IsFeatured   bool         `json:"isFeatured" gorm:"not null"`
	Token        string       `json:"token,omitempty"`
	RewardAmount float64      `json:"rewardAmount"`
	Rewards      *Rewards     `json:"rewards,omitempty" gorm:"type:jsonb"`
	Source       string       `json:"source,omitempty" gorm:"type:varchar(16);default:'NATIVE'"`
	Type         string       `json:"type,omitempty" gorm:"type:varchar(16);default:'open'"`

	// set when a publish is scheduled, cleared once the scheduler publishes it
	PublishAt   *time.Time `json:"publishAt,omitempty" gorm:"index"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`

	SponsorID string   `json:"sponsorId" gorm:"type:uuid;not null;index"`
	Sponsor   *Sponsor `json:"sponsor,omitempty" gorm:"foreignKey:SponsorID"`
	PocID     *string  `json:"pocId,omitempty" gorm:"type:uuid"`
	Poc       *User    `json:"poc,omitempty" gorm:"foreignKey:PocID"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Bounty) TableName() string { return "bounties" }

func (b *Bounty) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = BountyStatusOpen
	}
	return nil
}

// DisplayStatus is ResolveStatus applied to this bounty.
func (b Bounty) DisplayStatus() DisplayStatus {
	return ResolveStatus(b.Status, b.IsPublished)
}

// IsMutable reports whether the publish flag may still change.
func (b Bounty) IsMutable() bool {
	return b.Status == BountyStatusOpen
}

// SubmissionsVisible reports whether the embargo on submissions has lifted.
// A bounty without a deadline is never embargoed.
func (b Bounty) SubmissionsVisible(now time.Time) bool {
	return b.Deadline == nil || !b.Deadline.After(now)
}

var ErrInvalidBountyStatus = errors.New("invalid bounty status")

// ParseBountyStatus validates a stored or requested status string.
func ParseBountyStatus(s string) (BountyStatus, error) {
	switch BountyStatus(s) {
	case BountyStatusOpen, BountyStatusReview, BountyStatusClosed:
		return BountyStatus(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBountyStatus, s)
}
