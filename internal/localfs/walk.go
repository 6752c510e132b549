package localfs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/inkbridge/inkbridge/internal/constants"
	"github.com/inkbridge/inkbridge/internal/models"
	"github.com/inkbridge/inkbridge/internal/validation"
)

// FileEntry is one file seen during a walk.
type FileEntry struct {
	Path  string
	Name  string
	Size  int64
	IsDir bool
	Depth int // 0 for the root itself
}

// WalkFunc is called for every entry. Returning filepath.SkipDir on a
// directory skips it; any other error stops the walk.
type WalkFunc func(entry FileEntry) error

// Walk visits root depth-first in lexical order. Unreadable entries are
// skipped. Hidden entries are skipped, along with their contents, unless
// includeHidden is set.
func Walk(root string, includeHidden bool, fn WalkFunc) error {
	root = filepath.Clean(root)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("Skipping unreadable entry")
			return nil
		}
		if path != root && !includeHidden && IsHiddenName(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		return fn(FileEntry{
			Path:  path,
			Name:  d.Name(),
			Size:  info.Size(),
			IsDir: d.IsDir(),
			Depth: depth(root, path),
		})
	})
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	n := 1
	for _, c := range rel {
		if c == filepath.Separator {
			n++
		}
	}
	return n
}

// Expand turns arguments into an ordered file list. Files are kept as given,
// even when they are not images, so validation can report them. Directories
// contribute their image files in natural order.
func Expand(ctx context.Context, args []string, opts ExpandOptions) ([]string, error) {
	var out []string
	for _, arg := range args {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", arg, err)
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}

		var found []string
		err = Walk(arg, opts.IncludeHidden, func(e FileEntry) error {
			if e.IsDir {
				if e.Depth > 0 && !opts.Recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if validation.IsImageName(e.Name) {
				found = append(found, e.Path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		SortNatural(found)
		log.Debug().Str("dir", arg).Int("images", len(found)).Msg("Expanded directory")
		out = append(out, found...)
	}
	return out, nil
}

// Load reads each path into a SourceFile with a detected content type.
// Files larger than constants.MaxImageBytes are refused.
func Load(ctx context.Context, paths []string) ([]models.SourceFile, error) {
	files := make([]models.SourceFile, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readCapped(p, constants.MaxImageBytes)
		if err != nil {
			return nil, err
		}
		name := filepath.Base(p)
		files = append(files, models.SourceFile{
			Name:        name,
			Path:        p,
			ContentType: validation.DetectContentType(name, data),
			Data:        data,
		})
	}
	return files, nil
}

func readCapped(path string, max int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%s is larger than %d MB", path, max/(1024*1024))
	}
	return data, nil
}
