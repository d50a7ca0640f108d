package main

import (
	"fmt"
	"io"
	"time"

	"bounty-listing-system/dashboard"
	"bounty-listing-system/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amounts = message.NewPrinter(language.AmericanEnglish)

func formatPrize(b models.Bounty) string {
	token := b.Token
	if token == "" {
		token = "USDC"
	}
	return amounts.Sprintf("%.2f %s", b.RewardAmount, token)
}

func formatDeadline(deadline *time.Time, now time.Time) string {
	if deadline == nil {
		return "-"
	}
	if !deadline.After(now) {
		return "expired " + deadline.Format("2006-01-02")
	}
	return deadline.Format("2006-01-02 15:04")
}

// newTable is a light-style table that leaves footer text as written.
func newTable(w io.Writer) table.Writer {
	style := table.StyleLight
	style.Format.Footer = text.FormatDefault
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(style)
	return t
}

func statusColor(s models.DisplayStatus) text.Colors {
	switch s {
	case models.DisplayPublished:
		return text.Colors{text.FgGreen}
	case models.DisplayDraft:
		return text.Colors{text.FgYellow}
	default:
		return text.Colors{text.FgHiBlack}
	}
}

func renderBounties(w io.Writer, state dashboard.State, now time.Time) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Title", "Status", "Prize", "Deadline"})

	for _, b := range state.Bounties {
		status := b.DisplayStatus()
		t.AppendRow(table.Row{
			b.ID,
			text.Trim(b.Title, 48),
			statusColor(status).Sprint(string(status)),
			formatPrize(b),
			formatDeadline(b.Deadline, now),
		})
	}

	footer := state.Pager.Range(state.Total)
	if state.SearchText != "" {
		footer += fmt.Sprintf("  (search: %q)", state.SearchText)
	}
	t.AppendFooter(table.Row{"", footer})
	t.Render()

	var nav []string
	if state.Pager.CanPrev() {
		nav = append(nav, "p: prev")
	}
	if state.Pager.CanNext(state.Total) {
		nav = append(nav, "n: next")
	}
	nav = append(nav, "/text: search", "publish <id>", "unpublish <id>", "q: quit")
	fmt.Fprintln(w, nav)
}

func renderSubmissions(w io.Writer, result bountySubmissions, now time.Time) {
	b := result.Bounty
	fmt.Fprintf(w, "%s [%s] deadline %s\n", b.Title, b.DisplayStatus(), formatDeadline(b.Deadline, now))
	if !b.SubmissionsVisible(now) {
		fmt.Fprintln(w, "Submissions are hidden until the deadline passes.")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Submitter", "Link", "Preview", "Winner"})
	for _, s := range result.Submissions {
		name := s.UserID
		if s.User != nil && s.User.FirstName != "" {
			name = s.User.FirstName + " " + s.User.LastName
		}
		winner := ""
		if s.IsWinner {
			winner = s.WinnerPosition
		}
		t.AppendRow(table.Row{name, s.Link, result.Previews[s.ID], winner})
	}
	t.AppendFooter(table.Row{"", amounts.Sprintf("%d submissions", len(result.Submissions))})
	t.Render()
}

func renderSponsors(w io.Writer, memberships []models.UserSponsor, current string) {
	t := newTable(w)
	t.AppendHeader(table.Row{"", "Sponsor", "Slug", "Role", "ID"})
	for _, m := range memberships {
		marker := ""
		if m.SponsorID == current {
			marker = "*"
		}
		name, slug := "", ""
		if m.Sponsor != nil {
			name, slug = m.Sponsor.Name, m.Sponsor.Slug
		}
		t.AppendRow(table.Row{marker, name, slug, string(m.Role), m.SponsorID})
	}
	t.Render()
}
