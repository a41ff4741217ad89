package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"red_bot/internal/model"
)

// File is a downloaded media object on local disk. It is owned by
// whoever received it from Download and must be removed on every exit
// path.
type File struct {
	Kind model.MediaKind
	Path string
	Size int64
}

// Remove deletes the file from disk. Removing an already-deleted file
// is not an error.
func (f *File) Remove() error {
	err := os.Remove(f.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", f.Path, err)
	}
	return nil
}

type runFunc func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Downloader fetches media files via external tools: wget for images
// and yt-dlp for video. yt-dlp enforces the size ceiling mid-transfer
// through --max-filesize; the image path has no such guard, so callers
// must re-check File.Size against their ceiling.
type Downloader struct {
	scratchDir string
	maxBytes   int64
	timeout    time.Duration
	log        *slog.Logger
	run        runFunc
}

// NewDownloader creates a Downloader writing into scratchDir.
func NewDownloader(scratchDir string, maxBytes int64, timeout time.Duration, log *slog.Logger) *Downloader {
	return &Downloader{
		scratchDir: scratchDir,
		maxBytes:   maxBytes,
		timeout:    timeout,
		log:        log,
		run:        runCommand,
	}
}

// Download fetches rawURL into a collision-free file under the scratch
// directory. A nil File with nil error is a soft miss (bad or non-https
// URL, unknown kind, tool failure): the caller falls back to a text
// message. A non-nil error means the local filesystem is unusable.
//
// The returned file is not deleted here; deletion is the caller's job.
func (d *Downloader) Download(ctx context.Context, rawURL string, kind model.MediaKind) (*File, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme != "https" {
		return nil, nil
	}

	var tool, outFlag, ext string
	var args []string
	switch kind {
	case model.MediaImage:
		tool, outFlag, ext = "wget", "-O", ".jpg"
	case model.MediaVideo:
		tool, outFlag, ext = "yt-dlp", "-o", ".mp4"
		args = append(args, "--max-filesize", fmt.Sprintf("%dM", d.maxBytes/1048576))
	default:
		return nil, nil
	}

	if err := os.MkdirAll(d.scratchDir, 0o750); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	path := filepath.Join(d.scratchDir, uuid.NewString()+ext)
	args = append(args, "-q", outFlag, path, rawURL)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.run(ctx, tool, args...); err != nil {
		d.log.Debug("fetch tool failed", "tool", tool, "url", rawURL, "error", err)
		// wget may leave a partial file behind on failure
		_ = os.Remove(path)
		return nil, nil
	}

	fi, err := os.Stat(path)
	if err != nil {
		// yt-dlp exits zero without output when --max-filesize trips
		return nil, nil
	}

	return &File{Kind: kind, Path: path, Size: fi.Size()}, nil
}
