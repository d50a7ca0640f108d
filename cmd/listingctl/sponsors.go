package main

import (
	"fmt"

	"bounty-listing-system/dashboard"

	"github.com/spf13/cobra"
)

func newSponsorsCommand(load func() cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "sponsors",
		Short: "List the sponsors the user belongs to",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			if err := cfg.requireUser(); err != nil {
				return err
			}

			session, err := dashboard.StartSession(cmd.Context(), cfg.client(), cfg.UserID, cfg.SponsorID)
			if err != nil {
				return fmt.Errorf("start session: %w", err)
			}
			defer session.End()

			renderSponsors(cmd.OutOrStdout(), session.Memberships(), session.CurrentSponsorID())
			return nil
		},
	}
}

func newOGCommand(load func() cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "og <url>",
		Short: "Show the Open Graph preview of a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			client := cfg.client()

			out := cmd.OutOrStdout()
			res, err := client.OpenGraph(cmd.Context(), args[0])
			if err != nil {
				fmt.Fprintf(out, "lookup failed (%v)\n", err)
				fmt.Fprintln(out, "image:", dashboard.DefaultPreviewImage)
				return nil
			}

			fmt.Fprintln(out, "title:      ", res.OpenGraph.Title)
			fmt.Fprintln(out, "site:       ", res.OpenGraph.SiteName)
			fmt.Fprintln(out, "description:", res.OpenGraph.Description)
			image := dashboard.DefaultPreviewImage
			if len(res.OpenGraph.Images) > 0 && res.OpenGraph.Images[0].URL != "" {
				image = res.OpenGraph.Images[0].URL
			}
			fmt.Fprintln(out, "image:      ", image)
			return nil
		},
	}
}
