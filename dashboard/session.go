package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"bounty-listing-system/models"
)

var (
	ErrNoSponsor     = errors.New("user is not a member of any sponsor")
	ErrNotMember     = errors.New("user is not a member of that sponsor")
	ErrSessionEnded  = errors.New("session has ended")
	ErrUnknownBounty = errors.New("bounty is not on the current page")
	ErrNothingToDo   = errors.New("no publish change is pending")
)

// MembershipSource loads a user's sponsor memberships.
type MembershipSource interface {
	UserSponsors(ctx context.Context, userID string) ([]models.UserSponsor, error)
}

// Session is the signed-in user and the sponsor the dashboard acts for.
type Session struct {
	mu               sync.RWMutex
	userID           string
	memberships      []models.UserSponsor
	currentSponsorID string
	ended            bool
}

// StartSession loads the user's memberships and selects preferredSponsorID
// when the user belongs to it. A stale preference falls back to the first membership.
func StartSession(ctx context.Context, src MembershipSource, userID, preferredSponsorID string) (*Session, error) {
	memberships, err := src.UserSponsors(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}
	if len(memberships) == 0 {
		return nil, ErrNoSponsor
	}

	s := &Session{userID: userID, memberships: memberships, currentSponsorID: memberships[0].SponsorID}
	if preferredSponsorID != "" {
		_ = s.SwitchSponsor(preferredSponsorID)
	}
	return s, nil
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// CurrentSponsorID is empty once the session has ended.
func (s *Session) CurrentSponsorID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ended {
		return ""
	}
	return s.currentSponsorID
}

// CurrentSponsor returns the selected sponsor, if it was loaded with the membership.
func (s *Session) CurrentSponsor() *models.Sponsor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memberships {
		if m.SponsorID == s.currentSponsorID {
			return m.Sponsor
		}
	}
	return nil
}

func (s *Session) Memberships() []models.UserSponsor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.UserSponsor(nil), s.memberships...)
}

// SwitchSponsor changes the sponsor the dashboard acts for.
func (s *Session) SwitchSponsor(sponsorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	for _, m := range s.memberships {
		if m.SponsorID == sponsorID {
			s.currentSponsorID = sponsorID
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotMember, sponsorID)
}

// End clears the session. It is safe to call more than once.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	s.memberships = nil
	s.currentSponsorID = ""
}
