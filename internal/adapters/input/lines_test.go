package input

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, seq func(func(string) bool), errFn func() error) ([]string, error) {
	t.Helper()
	var out []string
	seq(func(s string) bool {
		out = append(out, s)
		return true
	})
	return out, errFn()
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	long := strings.Repeat("x", 100_000)
	require.NoError(t, os.WriteFile(path, []byte("one\r\ntwo\n\n"+long+"\nlast"), 0o600))

	src := NewFileSource(path)
	seq, errFn := src.Lines(context.Background())
	lines, err := collect(t, seq, errFn)

	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "", long, "last"}, lines)
	assert.Equal(t, "file:"+path, src.Name())
}

func TestFileSourceMissing(t *testing.T) {
	seq, errFn := NewFileSource(filepath.Join(t.TempDir(), "absent.log")).Lines(context.Background())
	lines, err := collect(t, seq, errFn)

	assert.Empty(t, lines)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestFileSourceCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	seq, errFn := NewFileSource(path).Lines(ctx)
	lines, err := collect(t, seq, errFn)
	assert.Empty(t, lines)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJournalSource(t *testing.T) {
	runner := &fakeRunner{result: CommandResult{
		Stdout: "Jan 01 00:00:00 host sshd[1]: Failed password for root from 10.0.0.5 port 22 ssh2\n" +
			"Jan 01 00:00:01 host sshd[1]: Connection closed\n",
	}}

	src := NewJournalSource(runner, "ssh.service")
	seq, errFn := src.Lines(context.Background())
	lines, err := collect(t, seq, errFn)

	require.NoError(t, err)
	assert.Len(t, lines, 2)
	assert.Equal(t, [][]string{{"journalctl", "-u", "ssh.service", "--no-pager"}}, runner.calls)
}

func TestJournalSourceExitStatus(t *testing.T) {
	runner := &fakeRunner{result: CommandResult{ExitCode: 1, Stderr: "No journal files were found."}}

	seq, errFn := NewJournalSource(runner, "ssh.service").Lines(context.Background())
	_, err := collect(t, seq, errFn)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "No journal files")
}
