package detection

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"slices"
	"strconv"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
	"github.com/Tchoumis/Projet-scripting-securise-v1/pkg/ahocorasick"
	"github.com/Tchoumis/Projet-scripting-securise-v1/pkg/sanitize"
)

// FailurePattern captures the offending source in its first group.
type FailurePattern struct {
	Name  string
	Regex *regexp.Regexp
	// Keywords gate the regex: a line containing none of them is skipped
	// without running it.
	Keywords []string
}

func DefaultFailurePatterns() []*FailurePattern {
	return []*FailurePattern{
		{
			Name:     "SSH failed password",
			Regex:    regexp.MustCompile(`Failed password for .* from (\S+)`),
			Keywords: []string{"Failed password"},
		},
	}
}

// FailureDetector counts brute-force signatures per source and raises one
// alert per source at or above the threshold. It keeps no state between
// scans, so a source still over threshold is reported again next time.
type FailureDetector struct {
	patterns  []*FailurePattern
	preFilter *ahocorasick.Matcher
	threshold int
}

func NewFailureDetector(threshold int, patterns ...*FailurePattern) *FailureDetector {
	if len(patterns) == 0 {
		patterns = DefaultFailurePatterns()
	}
	if threshold <= 0 {
		threshold = 1
	}

	var keywords []string
	for _, p := range patterns {
		keywords = append(keywords, p.Keywords...)
	}

	d := &FailureDetector{patterns: patterns, threshold: threshold}
	if len(keywords) > 0 {
		d.preFilter = ahocorasick.New(keywords)
	}
	return d
}

func (d *FailureDetector) Name() string { return "failed-logins" }

func (d *FailureDetector) Threshold() int { return d.threshold }

// AddPattern registers an extra signature. Its keywords are not added to the
// prefilter, so a custom pattern disables prefiltering.
func (d *FailureDetector) AddPattern(name, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	if re.NumSubexp() < 1 {
		return fmt.Errorf("pattern %q has no capture group for the source", name)
	}
	d.patterns = append(d.patterns, &FailurePattern{Name: name, Regex: re})
	d.preFilter = nil
	return nil
}

// Match returns the source captured from line, if any signature matches.
func (d *FailureDetector) Match(line string) (string, bool) {
	if d.preFilter != nil && !d.preFilter.Match(line) {
		return "", false
	}
	for _, p := range d.patterns {
		if m := p.Regex.FindStringSubmatch(line); m != nil && m[1] != "" {
			return m[1], true
		}
	}
	return "", false
}

// Scan tallies matches over lines. It stops early when ctx is cancelled.
func (d *FailureDetector) Scan(ctx context.Context, lines iter.Seq[string]) (domain.FailureTally, error) {
	tally := make(domain.FailureTally)
	n := 0
	for line := range lines {
		n++
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return tally, err
			}
		}
		if src, ok := d.Match(line); ok {
			tally[src]++
		}
	}
	return tally, ctx.Err()
}

// Evaluate turns a tally into alerts, one per source with count >= threshold,
// ordered by source.
func (d *FailureDetector) Evaluate(tally domain.FailureTally) []*domain.Alert {
	var sources []string
	for src, count := range tally {
		if count >= d.threshold {
			sources = append(sources, src)
		}
	}
	slices.Sort(sources)

	alerts := make([]*domain.Alert, 0, len(sources))
	for _, src := range sources {
		count := tally[src]
		safe := sanitize.Address(src)
		alert := domain.NewAlert(
			domain.AlertKindBruteForce,
			levelFor(count, d.threshold),
			fmt.Sprintf("Alert: multiple failed login attempts from %s", safe),
			fmt.Sprintf("There were %d failed login attempts from %s.\n\n"+
				"Check whether this is a brute-force attack.", count, safe),
		).WithSource(src, count)
		alert.AddMetadata("threshold", strconv.Itoa(d.threshold))
		alert.AddMetadata("detector", d.Name())
		alerts = append(alerts, alert)
	}
	return alerts
}

func levelFor(count, threshold int) domain.AlertLevel {
	if count >= 2*threshold {
		return domain.AlertLevelCritical
	}
	return domain.AlertLevelWarning
}
