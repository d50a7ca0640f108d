package dashboard

import (
	"context"
	"strings"

	"bounty-listing-system/models"
)

// DefaultPreviewImage is shown whenever a link has no usable og:image.
const DefaultPreviewImage = "/assets/bg/og.svg"

type OGFetcher interface {
	OpenGraph(ctx context.Context, link string) (*models.OGResult, error)
}

// PreviewImage returns the first og:image of link, or DefaultPreviewImage on any failure.
func PreviewImage(ctx context.Context, f OGFetcher, link string) string {
	if strings.TrimSpace(link) == "" {
		return DefaultPreviewImage
	}
	result, err := f.OpenGraph(ctx, link)
	if err != nil || result == nil || len(result.OpenGraph.Images) == 0 {
		return DefaultPreviewImage
	}
	if img := result.OpenGraph.Images[0].URL; img != "" {
		return img
	}
	return DefaultPreviewImage
}
