// Command listingctl is the terminal sponsor dashboard for the listing API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bounty-listing-system/dashboard"
	"bounty-listing-system/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultAPIURL = "http://localhost:5200"

// cliConfig is what every subcommand needs to reach the API.
type cliConfig struct {
	APIURL    string
	Token     string
	UserID    string
	SponsorID string
	Debug     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "listingctl",
		Short:         "Manage sponsor bounties from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.String("api-url", defaultAPIURL, "listing API base URL (LISTING_API_URL)")
	flags.String("token", "", "gateway service token (SERVICE_TOKEN)")
	flags.String("user", "", "acting user id (LISTING_USER_ID)")
	flags.String("sponsor", "", "sponsor id to act for (LISTING_SPONSOR_ID)")
	flags.Bool("debug", false, "enable debug logging")

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlag("LISTING_API_URL", flags.Lookup("api-url"))
	_ = v.BindPFlag("SERVICE_TOKEN", flags.Lookup("token"))
	_ = v.BindPFlag("LISTING_USER_ID", flags.Lookup("user"))
	_ = v.BindPFlag("LISTING_SPONSOR_ID", flags.Lookup("sponsor"))
	_ = v.BindPFlag("DEBUG", flags.Lookup("debug"))

	load := func() cliConfig {
		return cliConfig{
			APIURL:    v.GetString("LISTING_API_URL"),
			Token:     v.GetString("SERVICE_TOKEN"),
			UserID:    v.GetString("LISTING_USER_ID"),
			SponsorID: v.GetString("LISTING_SPONSOR_ID"),
			Debug:     v.GetBool("DEBUG"),
		}
	}

	root.AddCommand(
		newBountiesCommand(load),
		newSubmissionsCommand(load),
		newSponsorsCommand(load),
		newOGCommand(load),
	)
	return root
}

func (c cliConfig) client() *dashboard.Client {
	client := dashboard.NewClient(c.APIURL, c.Token)
	client.UserID = c.UserID
	return client
}

func (c cliConfig) logger() logger.Logger {
	if !c.Debug {
		return logger.NewNop()
	}
	log, err := logger.New(logger.Config{Level: "debug", Development: true})
	if err != nil {
		return logger.NewNop()
	}
	return log
}

func (c cliConfig) requireUser() error {
	if c.UserID == "" {
		return fmt.Errorf("a user id is required (--user or LISTING_USER_ID)")
	}
	return nil
}
