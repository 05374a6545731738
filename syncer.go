package sftpdeploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Summary counts what a run did. It is reported in the completion log line;
// a failed run has no summary beyond its error.
type Summary struct {
	// Uploaded is the number of files transferred.
	Uploaded int
	// Planned is the number of files a dry run would have transferred.
	Planned int
	// Bytes is the total size transferred.
	Bytes int64
	// DirsCreated is the number of remote directories created.
	DirsCreated int
	// DirsIgnored is the number of mkdir failures that were tolerated.
	DirsIgnored int
	// Skipped is the number of manifest items left out because the local
	// path was missing or not a file or directory.
	Skipped int
	// Excluded is the number of entries matched by the ignore file.
	Excluded int
}

// Syncer walks a manifest and hands each item to an Uploader.
type Syncer struct {
	uploader  *Uploader
	localRoot string
	logger    *zap.Logger
}

// NewSyncer returns a Syncer resolving relative local paths against
// localRoot (the working directory when empty).
func NewSyncer(uploader *Uploader, localRoot string, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{uploader: uploader, localRoot: localRoot, logger: logger}
}

// Run processes the manifest in order. A missing local path is logged and
// skipped; any other failure stops the run and is returned.
func (s *Syncer) Run(ctx context.Context, manifest []SyncItem, remoteRoot string) (Summary, error) {
	for _, item := range manifest {
		if err := ctx.Err(); err != nil {
			return s.uploader.Summary(), fmt.Errorf("deploy cancelled: %w", err)
		}

		localPath, err := s.resolve(item.Local)
		if err != nil {
			return s.uploader.Summary(), err
		}

		info, err := os.Stat(localPath)
		if err != nil {
			if os.IsNotExist(err) {
				s.logger.Warn("SKIP missing", zap.String("local", item.Local))
				s.uploader.summary.Skipped++
				continue
			}
			return s.uploader.Summary(), fmt.Errorf("failed to stat %s: %w", localPath, err)
		}

		remotePath := Join(remoteRoot, item.Remote)

		switch {
		case info.IsDir():
			target := remotePath
			if item.Remote == "." {
				target = remoteRoot
			}
			s.logger.Info("dir", zap.String("local", item.Local), zap.String("remote", target))
			if err := s.uploader.UploadDir(ctx, localPath, target); err != nil {
				return s.uploader.Summary(), err
			}
		case info.Mode().IsRegular():
			s.logger.Info("file", zap.String("local", item.Local), zap.String("remote", remotePath))
			if err := s.uploader.UploadFile(ctx, localPath, remotePath); err != nil {
				return s.uploader.Summary(), err
			}
		default:
			s.logger.Warn("SKIP unsupported file type", zap.String("local", item.Local), zap.Stringer("mode", info.Mode()))
			s.uploader.summary.Skipped++
		}
	}
	return s.uploader.Summary(), nil
}

func (s *Syncer) resolve(local string) (string, error) {
	p := local
	if !filepath.IsAbs(p) && s.localRoot != "" {
		p = filepath.Join(s.localRoot, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", local, err)
	}
	return abs, nil
}
