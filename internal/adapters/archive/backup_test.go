package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupPreservesContentModeAndMtime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "sshd_config")
	require.NoError(t, os.WriteFile(src, []byte("PermitRootLogin no\n"), 0o600))
	mtime := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, mtime, mtime))

	backupDir := filepath.Join(dir, "archive")
	results := NewBackuper([]string{src}, backupDir, clock).Backup(context.Background())

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, filepath.Join(backupDir, "sshd_config.20240102_030405.bak"), results[0].Dest)

	data, err := os.ReadFile(results[0].Dest)
	require.NoError(t, err)
	assert.Equal(t, "PermitRootLogin no\n", string(data))

	info, err := os.Stat(results[0].Dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(mtime))
}

func TestBackupContinuesPastMissingFile(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "passwd")
	require.NoError(t, os.WriteFile(present, []byte("root:x:0:0::/root:/bin/sh\n"), 0o644))

	files := []string{filepath.Join(dir, "shadow"), present, dir}
	results := NewBackuper(files, filepath.Join(dir, "archive"), clock).Backup(context.Background())

	require.Len(t, results, 3)
	assert.Error(t, results[0].Err, "missing file")
	assert.NoError(t, results[1].Err)
	assert.Error(t, results[2].Err, "directory is not a regular file")
	assert.FileExists(t, results[1].Dest)
}
