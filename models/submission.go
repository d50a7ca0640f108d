package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListingKind discriminates what a submission points at.
type ListingKind string

const (
	ListingKindBounty  ListingKind = "BOUNTY"
	ListingKindGrant   ListingKind = "GRANT"
	ListingKindProject ListingKind = "PROJECT"
)

var ErrUnknownListingKind = errors.New("unknown listing kind")

// ParseListingKind rejects anything outside the known set.
func ParseListingKind(s string) (ListingKind, error) {
	switch k := ListingKind(s); k {
	case ListingKindBounty, ListingKindGrant, ListingKindProject:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownListingKind, s)
}

func (k ListingKind) Value() (driver.Value, error) {
	if _, err := ParseListingKind(string(k)); err != nil {
		return nil, err
	}
	return string(k), nil
}

func (k *ListingKind) Scan(value any) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("listing kind: unsupported scan type %T", value)
	}
	parsed, err := ParseListingKind(raw)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ListingRef points a submission at exactly one listing.
type ListingRef struct {
	ListingID   string      `gorm:"column:listing_id;type:uuid;not null;index:idx_submission_listing;uniqueIndex:idx_submission_owner" json:"listingId"`
	ListingType ListingKind `gorm:"column:listing_type;type:varchar(16);not null;index:idx_submission_listing;uniqueIndex:idx_submission_owner" json:"listingType"`
}

func BountyRef(id string) ListingRef {
	return ListingRef{ListingID: id, ListingType: ListingKindBounty}
}

func GrantRef(id string) ListingRef {
	return ListingRef{ListingID: id, ListingType: ListingKindGrant}
}

func ProjectRef(id string) ListingRef {
	return ListingRef{ListingID: id, ListingType: ListingKindProject}
}

// Validate checks the kind and that an id is present.
func (r ListingRef) Validate() error {
	if _, err := ParseListingKind(string(r.ListingType)); err != nil {
		return err
	}
	if r.ListingID == "" {
		return errors.New("listing id is required")
	}
	return nil
}

// Submission is a talent's response to a listing.
type Submission struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	ListingRef `gorm:"embedded"`
	// one submission per user per listing
	UserID string `gorm:"type:uuid;not null;index;uniqueIndex:idx_submission_owner" json:"userId"`
	User   *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Link   string `gorm:"type:text;not null" json:"link"`
	Tweet  string `gorm:"type:text" json:"tweet,omitempty"`
	// answers to the bounty's eligibility questions, raw jsonb
	EligibilityAnswers string `gorm:"type:jsonb" json:"eligibilityAnswers,omitempty"`
	IsWinner           bool   `gorm:"not null" json:"isWinner"`
	WinnerPosition     string `gorm:"type:varchar(16)" json:"winnerPosition,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if err := s.ListingRef.Validate(); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
