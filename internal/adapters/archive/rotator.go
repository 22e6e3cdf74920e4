// Package archive rotates the live log into gzip archives and keeps dated
// copies of sensitive configuration files.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

// StampLayout is the timestamp embedded in archive and backup names.
const StampLayout = "20060102_150405"

type RotatorConfig struct {
	LogPath    string
	ArchiveDir string
	// MaxBytes is the size the live file must exceed to be rotated.
	MaxBytes int64
}

type LogRotator struct {
	cfg RotatorConfig
	now func() time.Time
	mu  sync.Mutex
}

func NewLogRotator(cfg RotatorConfig, now func() time.Time) *LogRotator {
	if now == nil {
		now = time.Now
	}
	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = filepath.Join(filepath.Dir(cfg.LogPath), "archive")
	}
	return &LogRotator{cfg: cfg, now: now}
}

// ArchiveName returns the archive path for a rotation at t.
func (r *LogRotator) ArchiveName(t time.Time) string {
	base := filepath.Base(r.cfg.LogPath)
	return filepath.Join(r.cfg.ArchiveDir, base+"."+t.Format(StampLayout)+".gz")
}

// Rotate compresses the live file into a new archive and truncates it, if the
// file is larger than MaxBytes. A missing or small file is a no-op. On any
// failure the live file is untouched and no partial archive remains.
func (r *LogRotator) Rotate(ctx context.Context) (domain.RotationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.RotationRecord{}, err
	}

	info, err := os.Stat(r.cfg.LogPath)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.RotationRecord{}, nil
	}
	if err != nil {
		return domain.RotationRecord{}, r.fail("stat", err)
	}
	if info.Size() <= r.cfg.MaxBytes {
		return domain.RotationRecord{}, nil
	}

	if err := os.MkdirAll(r.cfg.ArchiveDir, 0o750); err != nil {
		return domain.RotationRecord{}, r.fail("mkdir", err)
	}

	now := r.now()
	name := r.ArchiveName(now)
	out, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if errors.Is(err, fs.ErrExist) {
		return domain.RotationRecord{}, r.fail("create", fmt.Errorf("%w: %s", domain.ErrArchiveExists, name))
	}
	if err != nil {
		return domain.RotationRecord{}, r.fail("create", err)
	}

	n, stage, err := r.compress(ctx, out, now)
	if err != nil {
		out.Close()
		os.Remove(name)
		return domain.RotationRecord{}, r.fail(stage, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(name)
		return domain.RotationRecord{}, r.fail("close", err)
	}

	if err := os.Truncate(r.cfg.LogPath, 0); err != nil {
		os.Remove(name)
		return domain.RotationRecord{}, r.fail("truncate", err)
	}
	syncDir(r.cfg.ArchiveDir)

	log.Info().
		Str("file", r.cfg.LogPath).
		Str("archive", name).
		Int64("bytes", n).
		Msg("Log rotated")

	return domain.RotationRecord{Rotated: true, Archive: name, Bytes: n}, nil
}

// compress streams the live file into out and fsyncs it. It returns the
// failing stage name alongside any error.
func (r *LogRotator) compress(ctx context.Context, out *os.File, now time.Time) (int64, string, error) {
	in, err := os.Open(r.cfg.LogPath)
	if err != nil {
		return 0, "open", err
	}
	defer in.Close()

	gz := gzip.NewWriter(out)
	gz.Name = filepath.Base(r.cfg.LogPath)
	gz.ModTime = now

	n, err := io.Copy(gz, &ctxReader{ctx: ctx, r: in})
	if err != nil {
		return n, "compress", err
	}
	if err := gz.Close(); err != nil {
		return n, "compress", err
	}
	if err := out.Sync(); err != nil {
		return n, "sync", err
	}
	return n, "", nil
}

func (r *LogRotator) fail(stage string, err error) error {
	return &domain.RotationError{Path: r.cfg.LogPath, Stage: stage, Err: err}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
}
