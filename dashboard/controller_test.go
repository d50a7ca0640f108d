package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"bounty-listing-system/logger"
	"bounty-listing-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu         sync.Mutex
	bounties   []models.Bounty
	lists      []ListParams
	publishErr error
	listErr    error
}

func (f *fakeAPI) ListBounties(ctx context.Context, p ListParams) (*models.BountyPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, p)
	if f.listErr != nil {
		return nil, f.listErr
	}

	var matched []models.Bounty
	for _, b := range f.bounties {
		if p.SearchText == "" || strings.Contains(strings.ToLower(b.Title), strings.ToLower(p.SearchText)) {
			matched = append(matched, b)
		}
	}
	total := int64(len(matched))
	end := p.Skip + p.Take
	if end > len(matched) {
		end = len(matched)
	}
	page := []models.Bounty{}
	if p.Skip < len(matched) {
		page = append(page, matched[p.Skip:end]...)
	}
	return &models.BountyPage{Data: page, Total: total}, nil
}

func (f *fakeAPI) SetPublished(ctx context.Context, id string, isPublished bool) (*models.Bounty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	for i := range f.bounties {
		if f.bounties[i].ID == id {
			f.bounties[i].IsPublished = isPublished
			b := f.bounties[i]
			return &b, nil
		}
	}
	return nil, &APIError{Status: 404, Code: "not_found"}
}

func (f *fakeAPI) listCalls() []ListParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ListParams(nil), f.lists...)
}

func newFakeAPI(n int) *fakeAPI {
	api := &fakeAPI{}
	for i := 0; i < n; i++ {
		title := "Bounty " + string(rune('a'+i))
		if i == 3 {
			title = "Design a logo"
		}
		api.bounties = append(api.bounties, models.Bounty{ID: "b-" + string(rune('a'+i)), Title: title})
	}
	return api
}

func newTestController(t *testing.T, api BountyAPI, opts ...Option) *Controller {
	t.Helper()
	s, err := StartSession(context.Background(), memberships(), "u-1", "")
	require.NoError(t, err)
	c := NewController(api, s, logger.NewNop(), opts...)
	t.Cleanup(c.Close)
	return c
}

func TestController_RefreshAndPaging(t *testing.T) {
	api := newFakeAPI(20)
	c := newTestController(t, api)
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx))
	st := c.Snapshot()
	assert.Len(t, st.Bounties, 15)
	assert.EqualValues(t, 20, st.Total)
	assert.False(t, st.Loading)
	assert.Equal(t, 1, st.Fetches)
	assert.Equal(t, ListParams{SponsorID: "s-acme", Take: 15}, api.listCalls()[0])

	moved, err := c.Prev(ctx)
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = c.Next(ctx)
	require.NoError(t, err)
	assert.True(t, moved)
	st = c.Snapshot()
	assert.Len(t, st.Bounties, 5)
	assert.Equal(t, 15, st.Pager.Skip)

	moved, err = c.Next(ctx)
	require.NoError(t, err)
	assert.False(t, moved, "20 rows do not fill a second page")
	assert.Len(t, api.listCalls(), 2)

	moved, err = c.Prev(ctx)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, 0, c.Snapshot().Pager.Skip)
}

func TestController_RefreshErrors(t *testing.T) {
	api := newFakeAPI(3)
	api.listErr = errors.New("gateway down")
	c := newTestController(t, api)

	err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, api.listErr)
	st := c.Snapshot()
	assert.False(t, st.Loading)
	assert.Zero(t, st.Fetches)

	c.session.End()
	assert.ErrorIs(t, c.Refresh(context.Background()), ErrNoSponsor)
}

func TestController_ConfirmPublishTouchesOnlyTarget(t *testing.T) {
	api := newFakeAPI(5)
	c := newTestController(t, api)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	require.NoError(t, c.RequestPublish("b-c"))
	st := c.Snapshot()
	require.NotNil(t, st.Pending)
	assert.Equal(t, Confirmation{BountyID: "b-c", Title: "Bounty c", Publish: true}, *st.Pending)

	updated, err := c.Confirm(ctx)
	require.NoError(t, err)
	assert.True(t, updated.IsPublished)

	st = c.Snapshot()
	assert.Nil(t, st.Pending)
	assert.False(t, st.Changing)
	for _, b := range st.Bounties {
		assert.Equal(t, b.ID == "b-c", b.IsPublished, b.ID)
	}

	require.NoError(t, c.RequestUnpublish("b-c"))
	_, err = c.Confirm(ctx)
	require.NoError(t, err)
	for _, b := range c.Snapshot().Bounties {
		assert.False(t, b.IsPublished, b.ID)
	}
}

func TestController_ConfirmFailureKeepsDialogOpen(t *testing.T) {
	api := newFakeAPI(5)
	c := newTestController(t, api)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	api.publishErr = &APIError{Status: 409, Code: "bounty_immutable"}
	require.NoError(t, c.RequestPublish("b-a"))

	_, err := c.Confirm(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.Status)

	st := c.Snapshot()
	require.NotNil(t, st.Pending)
	assert.Equal(t, "b-a", st.Pending.BountyID)
	assert.False(t, st.Changing)
	assert.False(t, st.Bounties[0].IsPublished)

	c.Cancel()
	assert.Nil(t, c.Snapshot().Pending)
	_, err = c.Confirm(ctx)
	assert.ErrorIs(t, err, ErrNothingToDo)
}

func TestController_RequestUnknownBounty(t *testing.T) {
	c := newTestController(t, newFakeAPI(2))
	require.NoError(t, c.Refresh(context.Background()))
	assert.ErrorIs(t, c.RequestPublish("b-z"), ErrUnknownBounty)
	assert.Nil(t, c.Snapshot().Pending)
}

func TestController_DebouncedSearch(t *testing.T) {
	api := newFakeAPI(20)
	c := newTestController(t, api, WithDebounce(20*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx))
	_, err := c.Next(ctx)
	require.NoError(t, err)
	require.Len(t, api.listCalls(), 2)

	for _, prefix := range []string{"l", "lo", "log", "logo"} {
		c.SetSearchText(prefix)
	}

	require.Eventually(t, func() bool { return len(api.listCalls()) == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	calls := api.listCalls()
	require.Len(t, calls, 3, "one requery for the burst")
	assert.Equal(t, ListParams{SponsorID: "s-acme", SearchText: "logo", Skip: 0, Take: 15}, calls[2])

	require.Eventually(t, func() bool { return c.Snapshot().Fetches == 3 }, time.Second, 5*time.Millisecond)
	st := c.Snapshot()
	assert.EqualValues(t, 1, st.Total)
	assert.Equal(t, "Design a logo", st.Bounties[0].Title)
}

func TestController_CloseDropsPendingSearch(t *testing.T) {
	api := newFakeAPI(3)
	var errs []error
	var mu sync.Mutex
	c := newTestController(t, api,
		WithDebounce(20*time.Millisecond),
		WithOnError(func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}),
	)

	c.SetSearchText("anything")
	c.Close()
	time.Sleep(60 * time.Millisecond)

	assert.Empty(t, api.listCalls())
	mu.Lock()
	assert.Empty(t, errs)
	mu.Unlock()
}

func TestController_OnChangeSeesLoading(t *testing.T) {
	api := newFakeAPI(3)
	var mu sync.Mutex
	var loading []bool
	c := newTestController(t, api, WithOnChange(func(s State) {
		mu.Lock()
		loading = append(loading, s.Loading)
		mu.Unlock()
	}))

	require.NoError(t, c.Refresh(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, loading)
}

// gatedAPI holds SetPublished until release is closed.
type gatedAPI struct {
	*fakeAPI
	entered chan struct{}
	release chan struct{}
}

func (g *gatedAPI) SetPublished(ctx context.Context, id string, isPublished bool) (*models.Bounty, error) {
	close(g.entered)
	<-g.release
	return g.fakeAPI.SetPublished(ctx, id, isPublished)
}

func TestController_ConfirmKeepsDialogOpenedMeanwhile(t *testing.T) {
	api := &gatedAPI{fakeAPI: newFakeAPI(5), entered: make(chan struct{}), release: make(chan struct{})}
	c := newTestController(t, api)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	require.NoError(t, c.RequestPublish("b-a"))
	done := make(chan error, 1)
	go func() {
		_, err := c.Confirm(ctx)
		done <- err
	}()

	<-api.entered
	c.Cancel()
	require.NoError(t, c.RequestUnpublish("b-b"))
	close(api.release)
	require.NoError(t, <-done)

	st := c.Snapshot()
	require.NotNil(t, st.Pending)
	assert.Equal(t, Confirmation{BountyID: "b-b", Title: "Bounty b", Publish: false}, *st.Pending)
	assert.True(t, st.Bounties[0].IsPublished)
	assert.False(t, st.Bounties[1].IsPublished)
}
