// Package archive packs the current content of a batch into one downloadable
// archive.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/inkbridge/inkbridge/internal/config"
	"github.com/inkbridge/inkbridge/internal/constants"
	"github.com/inkbridge/inkbridge/internal/models"
	"github.com/inkbridge/inkbridge/internal/progress"
	"github.com/inkbridge/inkbridge/internal/resources"
)

// ErrAssemblyFailed matches every *AssemblyError via errors.Is.
var ErrAssemblyFailed = errors.New("archive assembly failed")

// AssemblyError reports which stage and entry broke the archive.
type AssemblyError struct {
	Stage string // "fetch" or "encode"
	Entry string // entry name, empty when not entry-specific
	Err   error
}

func (e *AssemblyError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("archive %s failed for %s: %v", e.Stage, e.Entry, e.Err)
	}
	return fmt.Sprintf("archive %s failed: %v", e.Stage, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

func (e *AssemblyError) Is(target error) bool { return target == ErrAssemblyFailed }

// Store is the registry surface the assembler needs.
type Store interface {
	Fetch(ctx context.Context, h resources.Handle) ([]byte, string, error)
	Register(content []byte, contentType string) resources.Handle
}

// Options configures an Assembler.
type Options struct {
	Format      string // config.FormatZip (default) or config.FormatTarGz
	Name        string // archive file name; derived from Format when empty
	Concurrency int    // parallel fetches; defaults to constants.DefaultFetchConcurrency
	Reporter    progress.Reporter
}

// Archive is an encoded archive held in the registry. The caller owns Handle
// and must release it once the archive has been saved.
type Archive struct {
	Name        string
	Handle      resources.Handle
	ContentType string
	Size        int64
	Entries     int
}

// Assembler builds archives from batch items.
type Assembler struct {
	store Store
	opts  Options
}

// NewAssembler applies defaults to opts.
func NewAssembler(store Store, opts Options) *Assembler {
	if opts.Format == "" {
		opts.Format = config.FormatZip
	}
	if opts.Name == "" {
		opts.Name = DefaultName(opts.Format)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = constants.DefaultFetchConcurrency
	}
	if opts.Concurrency > constants.MaxFetchConcurrency {
		opts.Concurrency = constants.MaxFetchConcurrency
	}
	if opts.Reporter == nil {
		opts.Reporter = progress.NewNoOpProgress()
	}
	return &Assembler{store: store, opts: opts}
}

// DefaultName returns translated_images.zip or translated_images.tar.gz.
func DefaultName(format string) string {
	if format == config.FormatTarGz {
		return constants.ArchiveBaseName + ".tar.gz"
	}
	return constants.ArchiveBaseName + ".zip"
}

// EntryName returns the archive entry for the item at 0-based index i.
func EntryName(i int) string {
	return strconv.Itoa(i+1) + constants.ArchiveEntryExt
}

type entry struct {
	name string
	data []byte
}

// Build fetches the current content of every item concurrently and encodes
// it. Entries follow selection order whatever was translated. The first
// failure cancels outstanding fetches and nothing is registered.
func (a *Assembler) Build(ctx context.Context, items []models.Item) (Archive, error) {
	rep := a.opts.Reporter
	if len(items) == 0 {
		err := &AssemblyError{Stage: "fetch", Err: errors.New("no items to archive")}
		rep.Error(err)
		return Archive{}, err
	}

	rep.Start(int64(len(items)), "Packing "+a.opts.Name)

	entries, err := a.fetchAll(ctx, items)
	if err != nil {
		rep.Error(err)
		return Archive{}, err
	}

	data, contentType, err := a.encode(entries)
	if err != nil {
		rep.Error(err)
		return Archive{}, err
	}
	rep.Finish()

	h := a.store.Register(data, contentType)
	log.Debug().
		Str("name", a.opts.Name).
		Int("entries", len(entries)).
		Int("bytes", len(data)).
		Msg("Archive assembled")

	return Archive{
		Name:        a.opts.Name,
		Handle:      h,
		ContentType: contentType,
		Size:        int64(len(data)),
		Entries:     len(entries),
	}, nil
}

func (a *Assembler) fetchAll(ctx context.Context, items []models.Item) ([]entry, error) {
	entries := make([]entry, len(items))

	var mu sync.Mutex
	done := int64(0)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for i := range items {
		i, h := i, items[i].Handle
		g.Go(func() error {
			name := EntryName(i)
			data, _, err := a.store.Fetch(gctx, h)
			if err != nil {
				return &AssemblyError{Stage: "fetch", Entry: name, Err: err}
			}
			entries[i] = entry{name: name, data: data}

			mu.Lock()
			done++
			a.opts.Reporter.Update(done)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (a *Assembler) encode(entries []entry) ([]byte, string, error) {
	switch a.opts.Format {
	case config.FormatZip:
		data, err := encodeZip(entries)
		return data, "application/zip", err
	case config.FormatTarGz:
		data, err := encodeTarGz(entries)
		return data, "application/gzip", err
	default:
		return nil, "", &AssemblyError{Stage: "encode", Err: fmt.Errorf("unsupported format %q", a.opts.Format)}
	}
}

func encodeZip(entries []entry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	now := time.Now()

	for _, e := range entries {
		// Images are already compressed; store them as-is
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   zip.Store,
			Modified: now,
		})
		if err != nil {
			return nil, &AssemblyError{Stage: "encode", Entry: e.name, Err: err}
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, &AssemblyError{Stage: "encode", Entry: e.name, Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, &AssemblyError{Stage: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

func encodeTarGz(entries []entry) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	now := time.Now()

	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.name,
			Mode:     0644,
			Size:     int64(len(e.data)),
			ModTime:  now,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, &AssemblyError{Stage: "encode", Entry: e.name, Err: err}
		}
		if _, err := tw.Write(e.data); err != nil {
			return nil, &AssemblyError{Stage: "encode", Entry: e.name, Err: err}
		}
	}
	if err := tw.Close(); err != nil {
		return nil, &AssemblyError{Stage: "encode", Err: err}
	}
	if err := gz.Close(); err != nil {
		return nil, &AssemblyError{Stage: "encode", Err: err}
	}
	return buf.Bytes(), nil
}
