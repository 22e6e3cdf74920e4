package input

import (
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

// DefaultDenylist matches the agent's own ban-list status lines, which must
// not be re-ingested from the raw log.
const DefaultDenylist = `(?i)^fail2ban ban list`

// AuthLogParser turns "<timestamp> - <message>" lines into events.
type AuthLogParser struct {
	denylist *regexp.Regexp
}

type ParserOption func(*AuthLogParser)

// WithDenylist drops events whose message matches re. A nil re disables
// filtering.
func WithDenylist(re *regexp.Regexp) ParserOption {
	return func(p *AuthLogParser) {
		p.denylist = re
	}
}

func NewAuthLogParser(opts ...ParserOption) *AuthLogParser {
	p := &AuthLogParser{
		denylist: regexp.MustCompile(DefaultDenylist),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CompileDenylist compiles a user-supplied pattern. An empty pattern yields
// nil, meaning no filtering.
func CompileDenylist(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile denylist: %w", err)
	}
	return re, nil
}

// Parse converts one raw line. The line is trimmed and split at the first
// separator; failures are returned as *domain.ParseError.
func (p *AuthLogParser) Parse(line string) (domain.Event, error) {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) > domain.MaxLineLength {
		return domain.Event{}, &domain.ParseError{Line: line, Reason: domain.ErrLineTooLong}
	}

	tsField, message, ok := strings.Cut(trimmed, domain.Separator)
	if !ok {
		return domain.Event{}, &domain.ParseError{Line: line, Reason: domain.ErrMissingSeparator}
	}

	ts, err := domain.ParseTimestamp(tsField)
	if err != nil {
		return domain.Event{}, &domain.ParseError{
			Line:   line,
			Reason: fmt.Errorf("%w: %v", domain.ErrBadTimestamp, err),
		}
	}

	return domain.NewEvent(ts, message), nil
}

// Filtered reports whether the event's message is on the denylist.
func (p *AuthLogParser) Filtered(e domain.Event) bool {
	return p.denylist != nil && p.denylist.MatchString(e.Message)
}

// ParseLines lazily parses a line stream. Blank lines are skipped. A bad line
// yields its *domain.ParseError and the scan continues; a denylisted event is
// yielded together with domain.ErrFiltered.
func (p *AuthLogParser) ParseLines(lines iter.Seq[string]) iter.Seq2[domain.Event, error] {
	return func(yield func(domain.Event, error) bool) {
		for line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			ev, err := p.Parse(line)
			if err == nil && p.Filtered(ev) {
				err = domain.ErrFiltered
			}
			if !yield(ev, err) {
				return
			}
		}
	}
}
