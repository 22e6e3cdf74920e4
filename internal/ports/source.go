package ports

import (
	"context"
	"iter"
)

// LineSource yields raw log lines for one scan. The returned sequence is
// consumed once; errors surface through the second value.
type LineSource interface {
	Lines(ctx context.Context) (iter.Seq[string], func() error)
	Name() string
}

// BanListProvider returns the raw status text of an external ban list.
type BanListProvider interface {
	Status(ctx context.Context) (string, error)
	Name() string
}

// ParseErrorSink is the side channel for lines that failed to parse.
type ParseErrorSink interface {
	// Replace rewrites the channel with the errors of a full scan.
	Replace(lines []string) error
	// Append adds a single line (follow mode).
	Append(line string) error
}
