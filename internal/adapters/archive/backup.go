package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

// Backuper copies sensitive files into the archive directory as
// <base>.<stamp>.bak, preserving mode and modification time.
type Backuper struct {
	files []string
	dir   string
	now   func() time.Time
}

func NewBackuper(files []string, dir string, now func() time.Time) *Backuper {
	if now == nil {
		now = time.Now
	}
	return &Backuper{files: files, dir: dir, now: now}
}

// Backup copies every configured file. One failure never stops the others;
// inspect each result.
func (b *Backuper) Backup(ctx context.Context) []domain.BackupResult {
	stamp := b.now().Format(StampLayout)
	results := make([]domain.BackupResult, 0, len(b.files))

	for _, src := range b.files {
		if err := ctx.Err(); err != nil {
			results = append(results, domain.BackupResult{Source: src, Err: err})
			continue
		}
		dest := filepath.Join(b.dir, filepath.Base(src)+"."+stamp+".bak")
		err := copyPreserving(src, dest)
		if err != nil {
			log.Warn().Err(err).Str("file", src).Msg("Backup failed")
		} else {
			log.Info().Str("file", src).Str("backup", dest).Msg("File backed up")
		}
		results = append(results, domain.BackupResult{Source: src, Dest: dest, Err: err})
	}
	return results
}

func copyPreserving(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("copy: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("sync backup: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("close backup: %w", err)
	}

	if err := os.Chmod(dest, info.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod backup: %w", err)
	}
	if err := os.Chtimes(dest, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("chtimes backup: %w", err)
	}
	return nil
}
