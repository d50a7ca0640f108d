package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"bounty-listing-system/dashboard"

	"github.com/spf13/cobra"
)

func newBountiesCommand(load func() cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "bounties",
		Short: "Browse, search and publish the sponsor's bounties",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			if err := cfg.requireUser(); err != nil {
				return err
			}
			client := cfg.client()

			session, err := dashboard.StartSession(cmd.Context(), client, cfg.UserID, cfg.SponsorID)
			if err != nil {
				return fmt.Errorf("start session: %w", err)
			}
			defer session.End()

			return runBountiesREPL(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), client, session, cfg)
		},
	}
}

// runBountiesREPL reads one command per line until q or EOF.
func runBountiesREPL(ctx context.Context, in io.Reader, out io.Writer, api dashboard.BountyAPI, session *dashboard.Session, cfg cliConfig) error {
	var outMu sync.Mutex
	lastRender := 0

	printTable := func(s dashboard.State) {
		outMu.Lock()
		defer outMu.Unlock()
		if s.Fetches == lastRender || s.Loading {
			return
		}
		lastRender = s.Fetches
		renderBounties(out, s, time.Now())
	}
	printErr := func(err error) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintln(out, "error:", err)
	}

	ctrl := dashboard.NewController(api, session, cfg.logger(),
		dashboard.WithOnChange(printTable),
		dashboard.WithOnError(printErr),
	)
	defer ctrl.Close()

	if err := ctrl.Refresh(ctx); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		quit, err := handleLine(ctx, ctrl, line, out, &outMu)
		if err != nil {
			printErr(err)
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

func handleLine(ctx context.Context, ctrl *dashboard.Controller, line string, out io.Writer, outMu *sync.Mutex) (bool, error) {
	pending := ctrl.Snapshot().Pending

	// y/n answer an open confirmation before anything else
	if pending != nil {
		switch line {
		case "y", "yes":
			b, err := ctrl.Confirm(ctx)
			if err != nil {
				return false, fmt.Errorf("%w (answer y to retry or n to cancel)", err)
			}
			say(out, outMu, "%q is now %s", b.Title, b.DisplayStatus())
			return false, nil
		case "n", "no":
			ctrl.Cancel()
			say(out, outMu, "cancelled")
			return false, nil
		}
	}

	switch {
	case line == "q" || line == "quit":
		return true, nil
	case line == "n" || line == "next":
		moved, err := ctrl.Next(ctx)
		if !moved && err == nil {
			say(out, outMu, "already on the last page")
		}
		return false, err
	case line == "p" || line == "prev":
		moved, err := ctrl.Prev(ctx)
		if !moved && err == nil {
			say(out, outMu, "already on the first page")
		}
		return false, err
	case strings.HasPrefix(line, "/"):
		ctrl.SetSearchText(strings.TrimSpace(strings.TrimPrefix(line, "/")))
		return false, nil
	case strings.HasPrefix(line, "publish "), strings.HasPrefix(line, "unpublish "):
		verb, id, _ := strings.Cut(line, " ")
		id = strings.TrimSpace(id)
		var err error
		if verb == "publish" {
			err = ctrl.RequestPublish(id)
		} else {
			err = ctrl.RequestUnpublish(id)
		}
		if err != nil {
			return false, err
		}
		c := ctrl.Snapshot().Pending
		say(out, outMu, "%s %q? [y/n]", verb, c.Title)
		return false, nil
	}
	return false, errors.New("unknown command: " + line)
}

func say(out io.Writer, mu *sync.Mutex, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, format+"\n", args...)
}
