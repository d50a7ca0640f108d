package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bounty-listing-system/dashboard"
	"bounty-listing-system/models"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const previewConcurrency = 4

type bountySubmissions struct {
	Bounty      *models.Bounty
	Submissions []models.Submission
	// Previews maps submission id to its preview image.
	Previews map[string]string
}

func newSubmissionsCommand(load func() cliConfig) *cobra.Command {
	var noPreview bool

	cmd := &cobra.Command{
		Use:   "submissions <slug>",
		Short: "Show the submissions of a bounty",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			client := cfg.client()

			res, err := client.BountySubmissions(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetch submissions: %w", err)
			}

			result := bountySubmissions{
				Bounty:      res.Bounty,
				Submissions: res.Submission,
				Previews:    map[string]string{},
			}
			if !noPreview {
				result.Previews = loadPreviews(cmd.Context(), client, res.Submission)
			}
			renderSubmissions(cmd.OutOrStdout(), result, time.Now())
			return nil
		},
	}
	cmd.Flags().BoolVar(&noPreview, "no-preview", false, "skip Open Graph preview lookups")
	return cmd
}

// loadPreviews resolves preview images for every submission link.
// Lookups never fail; a missing image falls back to the default asset.
func loadPreviews(ctx context.Context, og dashboard.OGFetcher, subs []models.Submission) map[string]string {
	var mu sync.Mutex
	previews := make(map[string]string, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(previewConcurrency)
	for _, s := range subs {
		g.Go(func() error {
			img := dashboard.PreviewImage(gctx, og, s.Link)
			mu.Lock()
			previews[s.ID] = img
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return previews
}
