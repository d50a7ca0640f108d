package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bounty-listing-system/logger"
	"bounty-listing-system/models"
	"bounty-listing-system/utils"

	"github.com/PuerkitoBio/goquery"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	ogUserAgent    = "Mozilla/5.0 (compatible; BountyListingBot/1.0)"
	ogMaxBodyBytes = 2 << 20
	ogCachePrefix  = "og:"
)

// OGCache stores unfurled pages by URL. A miss returns (nil, nil).
type OGCache interface {
	Get(ctx context.Context, pageURL string) (*models.OGResult, error)
	Set(ctx context.Context, pageURL string, result *models.OGResult, ttl time.Duration) error
}

type OGService struct {
	Client   *http.Client
	Cache    OGCache // optional
	CacheTTL time.Duration
	Log      logger.Logger
}

func NewOGService(client *http.Client, cache OGCache, ttl time.Duration, log logger.Logger) *OGService {
	return &OGService{
		Client:   client,
		Cache:    cache,
		CacheTTL: ttl,
		Log:      log.With(logger.String("component", "og")),
	}
}

// Unfurl returns the Open Graph metadata of an http(s) page, consulting the cache first.
func (s *OGService) Unfurl(ctx context.Context, rawURL string) (*models.OGResult, error) {
	pageURL, err := parsePageURL(rawURL)
	if err != nil {
		return nil, err
	}
	key := pageURL.String()

	if s.Cache != nil {
		cached, err := s.Cache.Get(ctx, key)
		if err != nil {
			s.Log.Warn("[OG] cache read failed", logger.String("url", key), logger.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	result, err := s.fetch(ctx, pageURL)
	if err != nil {
		if errors.Is(err, utils.ErrBlockedAddress) {
			s.Log.Warn("[OG] refused non-public destination", logger.String("url", key), logger.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		s.Log.Warn("[OG] fetch failed", logger.String("url", key), logger.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUpstreamFetch, err)
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, result, s.CacheTTL); err != nil {
			s.Log.Warn("[OG] cache write failed", logger.String("url", key), logger.Error(err))
		}
	}
	return result, nil
}

func parsePageURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: url: %w", ErrInvalidQuery, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: url must be absolute http(s), got %q", ErrInvalidQuery, raw)
	}
	u.Fragment = ""
	return u, nil
}

func (s *OGService) fetch(ctx context.Context, pageURL *url.URL) (*models.OGResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", ogUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, ogMaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return &models.OGResult{URL: pageURL.String(), OpenGraph: extractOpenGraph(doc, resp.Request.URL)}, nil
}

func extractOpenGraph(doc *goquery.Document, base *url.URL) models.OpenGraph {
	og := models.OpenGraph{
		Title:       metaContent(doc, "og:title"),
		Description: metaContent(doc, "og:description"),
		SiteName:    metaContent(doc, "og:site_name"),
		Images:      []models.OGImage{},
	}
	if og.Title == "" {
		og.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if og.Description == "" {
		og.Description, _ = doc.Find("meta[name='description']").Attr("content")
	}

	// og:image:width and og:image:height attach to the og:image before them
	doc.Find("meta[property]").Each(func(_ int, sel *goquery.Selection) {
		prop, _ := sel.Attr("property")
		content := strings.TrimSpace(sel.AttrOr("content", ""))
		switch prop {
		case "og:image", "og:image:url", "og:image:secure_url":
			if content == "" {
				return
			}
			resolved := resolveURL(base, content)
			if prop != "og:image" && len(og.Images) > 0 && og.Images[len(og.Images)-1].URL == resolved {
				return
			}
			og.Images = append(og.Images, models.OGImage{URL: resolved})
		case "og:image:width":
			if n, err := strconv.Atoi(content); err == nil && len(og.Images) > 0 {
				og.Images[len(og.Images)-1].Width = n
			}
		case "og:image:height":
			if n, err := strconv.Atoi(content); err == nil && len(og.Images) > 0 {
				og.Images[len(og.Images)-1].Height = n
			}
		}
	})
	return og
}

func metaContent(doc *goquery.Document, property string) string {
	v, _ := doc.Find(fmt.Sprintf("meta[property='%s']", property)).First().Attr("content")
	return strings.TrimSpace(v)
}

func resolveURL(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// RedisOGCache keeps unfurl results in Redis as JSON.
type RedisOGCache struct {
	Client redis.Cmdable
}

func ogCacheKey(pageURL string) string {
	sum := sha256.Sum256([]byte(pageURL))
	return ogCachePrefix + hex.EncodeToString(sum[:])
}

func (c *RedisOGCache) Get(ctx context.Context, pageURL string) (*models.OGResult, error) {
	raw, err := c.Client.Get(ctx, ogCacheKey(pageURL)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var result models.OGResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode cached og: %w", err)
	}
	return &result, nil
}

func (c *RedisOGCache) Set(ctx context.Context, pageURL string, result *models.OGResult, ttl time.Duration) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, ogCacheKey(pageURL), raw, ttl).Err()
}

// --- HTTP handlers ---

// GetOpenGraph serves POST /api/og with body {url}.
func (s *OGService) GetOpenGraph(c *fiber.Ctx) error {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err, "invalid JSON")
	}
	result, err := s.Unfurl(c.UserContext(), req.URL)
	if err != nil {
		return errorJSON(c, statusFor(err), err, "Error occurred while fetching Open Graph data.")
	}
	return c.JSON(result)
}
