package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/inkbridge/inkbridge/internal/cloud"
	"github.com/inkbridge/inkbridge/internal/config"
	"github.com/inkbridge/inkbridge/internal/constants"
	"github.com/inkbridge/inkbridge/internal/diskspace"
	"github.com/inkbridge/inkbridge/internal/progress"
	"github.com/inkbridge/inkbridge/internal/validation"
)

const maxNumberedNames = 1000

// LocalSink writes archives into a directory on disk.
type LocalSink struct {
	Dir       string
	Overwrite bool
	Reporter  progress.Reporter
}

// NewLocalSink writes into dir, or the working directory when dir is empty.
func NewLocalSink(dir string, overwrite bool) *LocalSink {
	return &LocalSink{Dir: dir, Overwrite: overwrite}
}

func (s *LocalSink) Kind() string { return config.SinkLocal }

// Save writes data to Dir/name through a temp file and a rename, so a
// partial archive is never visible under its final name. An existing file is
// kept and the new one gets a numbered name unless Overwrite is set.
func (s *LocalSink) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validation.ValidateObjectName(name); err != nil {
		return "", err
	}

	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	target := filepath.Join(dir, name)
	if err := validation.ValidatePathInDirectory(target, dir); err != nil {
		return "", err
	}
	if err := diskspace.CheckAvailableSpace(target, int64(len(data)), constants.DiskSpaceSafetyMargin); err != nil {
		if diskspace.IsInsufficientSpaceError(err) {
			return "", fmt.Errorf("%w: %v", ErrInsufficientSpace, err)
		}
		return "", err
	}
	if !s.Overwrite {
		free, err := nextFreeName(dir, name)
		if err != nil {
			return "", err
		}
		target = free
	}

	timer := cloud.StartTimer(nil, "local write "+filepath.Base(target))
	if err := s.writeAtomic(target, data); err != nil {
		if IsDiskFullError(err) {
			return "", fmt.Errorf("%w: %v", ErrInsufficientSpace, err)
		}
		return "", err
	}
	timer.StopWithThroughput(int64(len(data)))

	log.Info().Str("path", target).Int("bytes", len(data)).Msg("Archive saved")
	if free := diskspace.GetAvailableSpace(target); free > 0 {
		log.Debug().Str("free", cloud.FormatBytes(free)).Msg("Space left in output directory")
	}
	return target, nil
}

func (s *LocalSink) writeAtomic(target string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	rep := s.Reporter
	if rep == nil {
		rep = progress.NewNoOpProgress()
	}
	rep.Start(int64(len(data)), "Saving "+filepath.Base(target))
	if _, err = io.Copy(tmp, progress.NewReader(bytes.NewReader(data), rep)); err != nil {
		rep.Error(err)
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync archive: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	if err = os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	rep.Finish()
	return nil
}

// nextFreeName returns dir/name, or dir/"stem (n)ext" for the first n that
// is not taken.
func nextFreeName(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate, nil
	}

	stem, ext := splitArchiveExt(name)
	for n := 1; n <= maxNumberedNames; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrObjectExists, filepath.Join(dir, name))
}

// splitArchiveExt keeps ".tar.gz" together.
func splitArchiveExt(name string) (string, string) {
	if strings.HasSuffix(strings.ToLower(name), ".tar.gz") {
		return name[:len(name)-len(".tar.gz")], name[len(name)-len(".tar.gz"):]
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}
