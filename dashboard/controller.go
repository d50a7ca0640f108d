package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bounty-listing-system/logger"
	"bounty-listing-system/models"
)

// BountyAPI is what the controller needs from the listing API.
type BountyAPI interface {
	ListBounties(ctx context.Context, p ListParams) (*models.BountyPage, error)
	SetPublished(ctx context.Context, id string, isPublished bool) (*models.Bounty, error)
}

// Confirmation is an open publish or unpublish dialog.
type Confirmation struct {
	BountyID string
	Title    string
	Publish  bool
}

// State is a snapshot of what the bounty table shows.
type State struct {
	Bounties   []models.Bounty
	Total      int64
	Loading    bool
	Changing   bool
	SearchText string
	Pager      Pager
	Pending    *Confirmation
	// Fetches counts completed page loads.
	Fetches int
}

// Option configures a Controller.
type Option func(*Controller)

// WithDebounce overrides the search debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debouncer = NewDebouncer(d) }
}

// WithOnChange registers a callback invoked with a snapshot after every state change.
func WithOnChange(fn func(State)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithOnError receives errors from debounced refreshes, which have no caller to return to.
func WithOnError(fn func(error)) Option {
	return func(c *Controller) { c.onError = fn }
}

// Controller owns the bounty table state: page, search and publish workflow.
// Overlapping requests are not deduplicated; the last response to arrive wins.
type Controller struct {
	api     BountyAPI
	session *Session
	log     logger.Logger

	mu    sync.Mutex
	state State

	debouncer *Debouncer
	onChange  func(State)
	onError   func(error)

	ctx    context.Context
	cancel context.CancelFunc
}

func NewController(api BountyAPI, session *Session, log logger.Logger, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		api:       api,
		session:   session,
		log:       log.With(logger.String("component", "dashboard")),
		state:     State{Pager: NewPager()},
		debouncer: NewDebouncer(SearchDebounce),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.Bounties = append([]models.Bounty(nil), c.state.Bounties...)
	if c.state.Pending != nil {
		p := *c.state.Pending
		s.Pending = &p
	}
	return s
}

// changed must be called without c.mu held.
func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange(c.Snapshot())
	}
}

// Refresh fetches the current page for the session's sponsor.
func (c *Controller) Refresh(ctx context.Context) error {
	sponsorID := c.session.CurrentSponsorID()
	if sponsorID == "" {
		return ErrNoSponsor
	}

	c.mu.Lock()
	c.state.Loading = true
	params := ListParams{
		SponsorID:  sponsorID,
		SearchText: c.state.SearchText,
		Skip:       c.state.Pager.Skip,
		Take:       c.state.Pager.Take,
	}
	c.mu.Unlock()
	c.changed()

	page, err := c.api.ListBounties(ctx, params)

	c.mu.Lock()
	c.state.Loading = false
	if err == nil {
		c.state.Bounties = page.Data
		c.state.Total = page.Total
		c.state.Fetches++
	}
	c.mu.Unlock()
	c.changed()

	if err != nil {
		c.log.Warn("bounty list failed", logger.String("sponsor_id", sponsorID), logger.Error(err))
		return fmt.Errorf("list bounties: %w", err)
	}
	return nil
}

// Next moves to the following page and refreshes. It reports false when Next is disabled.
func (c *Controller) Next(ctx context.Context) (bool, error) {
	c.mu.Lock()
	moved := c.state.Pager.Next(c.state.Total)
	c.mu.Unlock()
	if !moved {
		return false, nil
	}
	return true, c.Refresh(ctx)
}

// Prev moves to the previous page and refreshes. It reports false on the first page.
func (c *Controller) Prev(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if !c.state.Pager.CanPrev() {
		c.mu.Unlock()
		return false, nil
	}
	c.state.Pager.Prev()
	c.mu.Unlock()
	return true, c.Refresh(ctx)
}

// SetSearchText requeries from the first page once the text has been stable
// for the debounce delay.
func (c *Controller) SetSearchText(text string) {
	c.debouncer.Trigger(func() {
		if c.ctx.Err() != nil {
			return
		}
		c.mu.Lock()
		if c.state.SearchText != text {
			c.state.SearchText = text
			c.state.Pager.Reset()
		}
		c.mu.Unlock()

		if err := c.Refresh(c.ctx); err != nil && c.onError != nil {
			c.onError(err)
		}
	})
}

// RequestPublish opens the publish confirmation for a bounty on the current page.
func (c *Controller) RequestPublish(id string) error {
	return c.request(id, true)
}

// RequestUnpublish opens the unpublish confirmation for a bounty on the current page.
func (c *Controller) RequestUnpublish(id string) error {
	return c.request(id, false)
}

func (c *Controller) request(id string, publish bool) error {
	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownBounty, id)
	}
	c.state.Pending = &Confirmation{BountyID: id, Title: c.state.Bounties[idx].Title, Publish: publish}
	c.mu.Unlock()
	c.changed()
	return nil
}

// Confirm sends the pending change. On success the matching row takes the
// server's isPublished and the confirmation closes unless another one has
// replaced it in the meantime. On failure the
// confirmation stays open and the error is returned.
func (c *Controller) Confirm(ctx context.Context) (*models.Bounty, error) {
	c.mu.Lock()
	if c.state.Pending == nil {
		c.mu.Unlock()
		return nil, ErrNothingToDo
	}
	pending := *c.state.Pending
	c.state.Changing = true
	c.mu.Unlock()
	c.changed()

	updated, err := c.api.SetPublished(ctx, pending.BountyID, pending.Publish)

	c.mu.Lock()
	c.state.Changing = false
	if err == nil {
		if idx := c.indexLocked(updated.ID); idx >= 0 {
			c.state.Bounties[idx].IsPublished = updated.IsPublished
		}
		// a dialog opened while the request was in flight stays open
		if c.state.Pending != nil && *c.state.Pending == pending {
			c.state.Pending = nil
		}
	}
	c.mu.Unlock()
	c.changed()

	if err != nil {
		c.log.Warn("publish change failed",
			logger.String("bounty_id", pending.BountyID),
			logger.Bool("publish", pending.Publish),
			logger.Error(err),
		)
		return nil, fmt.Errorf("update bounty %s: %w", pending.BountyID, err)
	}
	return updated, nil
}

// Cancel closes the confirmation without sending anything.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.state.Pending = nil
	c.mu.Unlock()
	c.changed()
}

// Close cancels a pending debounced search and any refresh it started.
func (c *Controller) Close() {
	c.debouncer.Cancel()
	c.cancel()
}

func (c *Controller) indexLocked(id string) int {
	for i := range c.state.Bounties {
		if c.state.Bounties[i].ID == id {
			return i
		}
	}
	return -1
}
