// Package report renders a terminal summary of what the agent has stored:
// totals, the most recent events, the noisiest failed-login sources and the
// last observed ban list.
package report

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/ports"
	"github.com/Tchoumis/Projet-scripting-securise-v1/pkg/sanitize"
)

// SourceMatcher extracts the offending source from a failed-login message.
type SourceMatcher interface {
	Match(line string) (string, bool)
}

type SourceCount struct {
	Source string
	Count  int
}

type Summary struct {
	Generated  time.Time
	Total      int
	Recent     []domain.Event
	TopSources []SourceCount
	Threshold  int
	Bans       domain.BanSet
}

// Options for Build. Bans and Matcher may be nil.
type Options struct {
	Recent    int
	TopN      int
	Threshold int
	Bans      ports.BanStateStore
	Matcher   SourceMatcher
	Now       func() time.Time
}

// Build queries the store for the report contents. Top sources are counted
// over the recent window only.
func Build(ctx context.Context, store ports.EventStore, opts Options) (Summary, error) {
	if opts.Recent <= 0 {
		opts.Recent = 20
	}
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	total, err := store.Count(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("count events: %w", err)
	}
	recent, err := store.Recent(ctx, opts.Recent)
	if err != nil {
		return Summary{}, fmt.Errorf("recent events: %w", err)
	}

	s := Summary{
		Generated: opts.Now(),
		Total:     total,
		Recent:    recent,
		Threshold: opts.Threshold,
	}

	if opts.Matcher != nil {
		counts := make(map[string]int)
		for _, e := range recent {
			if src, ok := opts.Matcher.Match(e.Message); ok {
				counts[src]++
			}
		}
		for src, n := range counts {
			s.TopSources = append(s.TopSources, SourceCount{Source: src, Count: n})
		}
		slices.SortFunc(s.TopSources, func(a, b SourceCount) int {
			if c := cmp.Compare(b.Count, a.Count); c != 0 {
				return c
			}
			return cmp.Compare(a.Source, b.Source)
		})
		if len(s.TopSources) > opts.TopN {
			s.TopSources = s.TopSources[:opts.TopN]
		}
	}

	if opts.Bans != nil {
		bans, err := opts.Bans.LoadBanState(ctx)
		if err != nil {
			return Summary{}, fmt.Errorf("load ban state: %w", err)
		}
		s.Bans = bans
	}
	return s, nil
}

// Render lays the summary out in boxes no wider than width.
func Render(s Summary, width int) string {
	if width < 40 {
		width = 40
	}
	inner := width - 4

	header := HeaderStyle.Width(width).Render(fmt.Sprintf("authwatch report  %s", s.Generated.Format(domain.TimestampLayout)))

	stats := BoxStyle.Width(width - 2).Render(strings.Join([]string{
		TitleStyle.Render("Stored events"),
		TextStyle.Render(fmt.Sprintf("%d", s.Total)),
		"",
		TitleStyle.Render("Banned addresses"),
		renderBans(s.Bans),
	}, "\n"))

	sources := BoxStyle.Width(width - 2).Render(
		TitleStyle.Render("Failed logins by source (recent)") + "\n" + renderSources(s.TopSources, s.Threshold))

	events := BoxStyle.Width(width - 2).Render(
		TitleStyle.Render("Recent events") + "\n" + renderEvents(s.Recent, inner))

	return lipgloss.JoinVertical(lipgloss.Left, header, stats, sources, events)
}

func renderBans(bans domain.BanSet) string {
	if bans.Empty() {
		return MutedStyle.Render("none")
	}
	addrs := bans.Addrs()
	for i, a := range addrs {
		addrs[i] = sanitize.Address(a)
	}
	return AmberStyle.Render(strings.Join(addrs, ", "))
}

func renderSources(top []SourceCount, threshold int) string {
	if len(top) == 0 {
		return DimStyle.Italic(true).Render("no failed logins")
	}
	lines := []string{MutedStyle.Bold(true).Render(fmt.Sprintf("%-3s %-39s %s", "#", "SOURCE", "COUNT"))}
	for i, sc := range top {
		lines = append(lines, fmt.Sprintf("%-3s %s %s",
			MutedStyle.Render(fmt.Sprintf("%d.", i+1)),
			ForCount(sc.Count, threshold).Render(fmt.Sprintf("%-39s", sanitize.Address(sc.Source))),
			ForCount(sc.Count, threshold).Render(fmt.Sprintf("%d", sc.Count)),
		))
	}
	return strings.Join(lines, "\n")
}

func renderEvents(events []domain.Event, width int) string {
	if len(events) == 0 {
		return DimStyle.Italic(true).Render("no events stored")
	}
	msgWidth := width - len(domain.TimestampLayout) - 2
	if msgWidth < 10 {
		msgWidth = 10
	}
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, MutedStyle.Render(e.TimestampText())+"  "+TextStyle.Render(sanitize.Line(e.Message, msgWidth)))
	}
	return strings.Join(lines, "\n")
}
