// Package dashboard is the sponsor dashboard client: an HTTP client for the
// listing API plus the session, pagination, search and publish state the
// dashboard keeps between requests.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bounty-listing-system/models"
)

const defaultClientTimeout = 15 * time.Second

// APIError is a non-2xx answer from the listing API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Code)
}

// Client talks to the listing API through the gateway.
type Client struct {
	BaseURL string
	Token   string
	UserID  string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: defaultClientTimeout},
	}
}

// ListParams selects one page of bounties.
type ListParams struct {
	SponsorID  string
	SearchText string
	Skip       int
	Take       int
}

func (c *Client) ListBounties(ctx context.Context, p ListParams) (*models.BountyPage, error) {
	q := url.Values{}
	q.Set("sponsorId", p.SponsorID)
	if p.SearchText != "" {
		q.Set("searchText", p.SearchText)
	}
	q.Set("skip", strconv.Itoa(p.Skip))
	q.Set("take", strconv.Itoa(p.Take))

	var page models.BountyPage
	if err := c.do(ctx, http.MethodGet, "/api/bounties", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) SetPublished(ctx context.Context, id string, isPublished bool) (*models.Bounty, error) {
	var bounty models.Bounty
	body := map[string]bool{"isPublished": isPublished}
	if err := c.do(ctx, http.MethodPost, "/api/bounties/update/"+url.PathEscape(id), nil, body, &bounty); err != nil {
		return nil, err
	}
	return &bounty, nil
}

func (c *Client) BountySubmissions(ctx context.Context, slug string) (*models.BountySubmissions, error) {
	var out models.BountySubmissions
	if err := c.do(ctx, http.MethodGet, "/api/bounties/submission/"+url.PathEscape(slug), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UserSponsors(ctx context.Context, userID string) ([]models.UserSponsor, error) {
	var out []models.UserSponsor
	if err := c.do(ctx, http.MethodPost, "/api/userSponsors", nil, map[string]string{"userId": userID}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) OpenGraph(ctx context.Context, link string) (*models.OGResult, error) {
	var out models.OGResult
	if err := c.do(ctx, http.MethodPost, "/api/og", nil, map[string]string{"url": link}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader = http.NoBody
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.UserID != "" {
		req.Header.Set("X-User-ID", c.UserID)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &payload) == nil {
			apiErr.Code, apiErr.Message = payload.Error, payload.Message
		}
		if apiErr.Code == "" && apiErr.Message == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
