package input

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
)

// FileSource reads a log file line by line from the start.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return "file:" + s.path }

// Lines streams the file. Lines longer than the scanner buffer are still
// delivered whole; the parser decides whether to reject them. The error
// function reports open/read failures and ctx cancellation once the
// sequence has been drained.
func (s *FileSource) Lines(ctx context.Context) (iter.Seq[string], func() error) {
	var scanErr error
	seq := func(yield func(string) bool) {
		f, err := os.Open(s.path)
		if err != nil {
			scanErr = err
			return
		}
		defer f.Close()
		scanErr = readLines(ctx, f, yield)
	}
	return seq, func() error { return scanErr }
}

func readLines(ctx context.Context, r io.Reader, yield func(string) bool) error {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			if !yield(strings.TrimRight(line, "\r\n")) {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
	}
}

// JournalSource reads the systemd journal of one unit through journalctl.
type JournalSource struct {
	runner CommandRunner
	unit   string
}

func NewJournalSource(runner CommandRunner, unit string) *JournalSource {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &JournalSource{runner: runner, unit: unit}
}

func (s *JournalSource) Name() string { return "journal:" + s.unit }

func (s *JournalSource) Lines(ctx context.Context) (iter.Seq[string], func() error) {
	var runErr error
	seq := func(yield func(string) bool) {
		res, err := s.runner.Run(ctx, "journalctl", "-u", s.unit, "--no-pager")
		if err != nil {
			runErr = err
			return
		}
		if res.ExitCode != 0 {
			runErr = fmt.Errorf("journalctl exited with status %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
			return
		}
		runErr = readLines(ctx, strings.NewReader(res.Stdout), yield)
	}
	return seq, func() error { return runErr }
}
