// Package core holds the controller that owns the current batch and exposes
// select, submit, download and clear to presenters.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inkbridge/inkbridge/internal/api"
	"github.com/inkbridge/inkbridge/internal/archive"
	"github.com/inkbridge/inkbridge/internal/cloud/sink"
	"github.com/inkbridge/inkbridge/internal/config"
	"github.com/inkbridge/inkbridge/internal/constants"
	"github.com/inkbridge/inkbridge/internal/events"
	"github.com/inkbridge/inkbridge/internal/fonts"
	"github.com/inkbridge/inkbridge/internal/http"
	"github.com/inkbridge/inkbridge/internal/models"
	"github.com/inkbridge/inkbridge/internal/pipeline"
	"github.com/inkbridge/inkbridge/internal/progress"
	"github.com/inkbridge/inkbridge/internal/resources"
	"github.com/inkbridge/inkbridge/internal/validation"
)

var (
	// ErrBusy is returned while a submission or download is running.
	ErrBusy = errors.New("a submission or download is already running")

	// ErrNothingToDownload is returned when there is no batch to archive.
	ErrNothingToDownload = errors.New("nothing to download")
)

// SaveResult describes an archive written by Download.
type SaveResult struct {
	Name     string
	Location string
	Size     int64
	Entries  int
}

// Deps are the collaborators a Controller drives. Registry and Bus are
// created when nil.
type Deps struct {
	Translator api.Translator
	Sink       sink.Sink
	Registry   *resources.Registry
	Bus        *events.EventBus
	Reporter   progress.Reporter // archive packing progress, optional
}

// Controller owns the current batch. Every transition publishes a fresh
// snapshot as EventBatchChanged; presenters never touch the batch itself.
type Controller struct {
	config   *config.Config
	registry *resources.Registry
	bus      *events.EventBus
	pipeline *pipeline.Pipeline
	sink     sink.Sink
	reporter progress.Reporter

	mu          sync.RWMutex
	batch       models.Batch
	hasBatch    bool
	opts        models.Options
	warning     string
	errMsg      string
	submitting  bool
	downloading bool
	// generation changes on every teardown; a pass that outlives its batch
	// sees a different value when it finishes
	generation uint64

	version atomic.Uint64
}

// NewController wires the real translation client and the configured sink
// around one shared HTTP client. packing follows archive assembly and saving
// follows local archive writes; either may be nil.
func NewController(ctx context.Context, cfg *config.Config, packing, saving progress.Reporter) (*Controller, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}

	httpClient, err := http.CreateOptimizedClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}
	translator, err := api.NewClientWithHTTP(cfg, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	sk, err := sink.New(ctx, cfg, httpClient, saving)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s sink: %w", cfg.Sink.Kind, err)
	}

	return New(cfg, Deps{Translator: translator, Sink: sk, Reporter: packing}), nil
}

// New builds a controller from explicit collaborators.
func New(cfg *config.Config, deps Deps) *Controller {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if deps.Registry == nil {
		deps.Registry = resources.NewRegistry()
	}
	if deps.Bus == nil {
		deps.Bus = events.NewEventBus(constants.EventBusDefaultBuffer)
	}
	if deps.Reporter == nil {
		deps.Reporter = progress.NewNoOpProgress()
	}

	c := &Controller{
		config:   cfg,
		registry: deps.Registry,
		bus:      deps.Bus,
		pipeline: pipeline.New(deps.Translator, deps.Registry, deps.Bus),
		sink:     deps.Sink,
		reporter: deps.Reporter,
		opts:     models.Options{Language: fonts.DefaultLanguage, Font: fonts.DefaultFamily},
	}

	// Config values were validated on load; fall back silently otherwise
	if lang, err := fonts.ParseLanguage(cfg.Language); err == nil {
		c.opts.Language = lang
	}
	if family, err := fonts.ParseFamily(cfg.Font); err == nil {
		c.opts.Font = family
	}
	c.warning = fonts.Warning(c.opts.Font, c.opts.Language)
	return c
}

// Events returns the bus snapshots and pass events are published on.
func (c *Controller) Events() *events.EventBus {
	return c.bus
}

// Subscribe returns a channel receiving every event.
func (c *Controller) Subscribe() <-chan events.Event {
	return c.bus.SubscribeAll()
}

// Snapshot returns the current read-only view.
func (c *Controller) Snapshot() models.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() models.Snapshot {
	snap := models.Snapshot{
		Version:       c.version.Add(1),
		IsSubmitting:  c.submitting,
		IsDownloading: c.downloading,
		ErrorMessage:  c.errMsg,
		Warning:       c.warning,
		Language:      c.opts.Language,
		Font:          c.opts.Font,
	}
	if c.hasBatch {
		snap.Items = models.ViewItems(c.batch.Items)
		snap.IsComplete = c.batch.Complete
	}
	return snap
}

func (c *Controller) publish() {
	c.bus.PublishSnapshot(c.Snapshot())
}

// SelectFiles validates the whole selection and, when it passes, tears down
// the previous batch before replacing it. A rejected selection keeps the
// previous batch and surfaces the aggregate message.
func (c *Controller) SelectFiles(files []models.SourceFile) error {
	c.mu.Lock()
	if c.submitting || c.downloading {
		c.mu.Unlock()
		return ErrBusy
	}

	if err := validation.ValidateSelection(files); err != nil {
		var ve *validation.ValidationError
		if errors.As(err, &ve) {
			c.errMsg = ve.Message
		} else {
			c.errMsg = err.Error()
		}
		msg := c.errMsg
		c.mu.Unlock()
		c.publishLog(events.WarnLevel, msg, "select", err)
		c.publish()
		return err
	}

	c.teardownLocked()
	batch, err := models.NewBatch(files, c.registry)
	if err != nil {
		c.errMsg = err.Error()
		c.mu.Unlock()
		c.publish()
		return err
	}
	c.batch = batch
	c.hasBatch = true
	c.errMsg = ""
	c.mu.Unlock()

	log.Info().Int("files", len(files)).Msg("Selection replaced")
	c.publish()
	return nil
}

// SetOptions parses the language and font family and returns the
// compatibility warning, empty when the pair is compatible.
func (c *Controller) SetOptions(language, font string) (string, error) {
	lang, err := fonts.ParseLanguage(language)
	if err != nil {
		return "", err
	}
	family, err := fonts.ParseFamily(font)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return "", ErrBusy
	}
	c.opts = models.Options{Language: lang, Font: family}
	c.warning = fonts.Warning(family, lang)
	warning := c.warning
	c.mu.Unlock()

	c.publish()
	return warning, nil
}

// Submit runs one submission pass over the pending items.
func (c *Controller) Submit(ctx context.Context) (models.BatchResult, error) {
	c.mu.Lock()
	if c.submitting || c.downloading {
		c.mu.Unlock()
		return models.BatchResult{}, ErrBusy
	}
	if !c.hasBatch {
		c.mu.Unlock()
		return models.BatchResult{}, pipeline.ErrNothingToSubmit
	}
	c.submitting = true
	c.errMsg = ""
	batch, opts, gen := c.batch, c.opts, c.generation
	c.mu.Unlock()
	c.publish()

	updated, result, err := c.pipeline.Submit(ctx, batch, opts, func(b models.Batch) {
		c.mu.Lock()
		if c.generation == gen {
			c.batch = b
		}
		c.mu.Unlock()
		c.publish()
	})

	c.mu.Lock()
	c.submitting = false
	switch {
	case c.generation != gen:
		// Torn down mid-pass: nothing owns the content this pass added
		c.releaseOrphansLocked(updated)
	case errors.Is(err, pipeline.ErrNothingToSubmit), errors.Is(err, pipeline.ErrInvalidOptions):
		c.errMsg = err.Error()
	default:
		c.batch = updated
		c.errMsg = result.ErrorMessage
		if c.errMsg == "" && err != nil {
			c.errMsg = api.DisplayMessage(err)
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.publishLog(events.ErrorLevel, c.Snapshot().ErrorMessage, "submit", err)
	}
	c.publish()
	return result, err
}

// Download archives the current content of every item and saves it through
// the sink. The archive handle is released whether the save worked or not.
func (c *Controller) Download(ctx context.Context) (SaveResult, error) {
	c.mu.Lock()
	if c.submitting || c.downloading {
		c.mu.Unlock()
		return SaveResult{}, ErrBusy
	}
	if !c.hasBatch || c.batch.IsEmpty() {
		c.mu.Unlock()
		return SaveResult{}, ErrNothingToDownload
	}
	if c.sink == nil {
		c.mu.Unlock()
		return SaveResult{}, errors.New("no archive sink configured")
	}
	c.downloading = true
	items := c.batch.Clone().Items
	c.mu.Unlock()
	c.publish()

	res, err := c.download(ctx, items)

	c.mu.Lock()
	c.downloading = false
	if err != nil {
		c.errMsg = downloadMessage(err)
	}
	c.mu.Unlock()

	if err != nil {
		c.publishLog(events.ErrorLevel, "Download failed", "download", err)
	} else {
		c.bus.Publish(&events.ArchiveSavedEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventArchiveSaved, Time: time.Now()},
			Name:      res.Name,
			Location:  res.Location,
			Size:      res.Size,
			Entries:   res.Entries,
		})
	}
	c.publish()
	return res, err
}

// downloadMessage maps a download failure to the text shown to the user.
// The cause goes to the log; it can name internal handles.
func downloadMessage(err error) string {
	switch {
	case errors.Is(err, sink.ErrObjectExists):
		return constants.ArchiveExistsMessage
	case errors.Is(err, sink.ErrInsufficientSpace):
		return constants.DiskFullMessage
	default:
		return constants.DownloadFailedMessage
	}
}

func (c *Controller) download(ctx context.Context, items []models.Item) (SaveResult, error) {
	assembler := archive.NewAssembler(c.registry, archive.Options{
		Format:      c.config.ArchiveFormat,
		Name:        c.config.ResolvedArchiveName(),
		Concurrency: c.config.FetchConcurrency,
		Reporter:    progress.Multi{c.reporter, progress.NewEventProgress(c.bus, "archive")},
	})

	arc, err := assembler.Build(ctx, items)
	if err != nil {
		return SaveResult{}, err
	}
	defer func() {
		if relErr := c.registry.Release(arc.Handle); relErr != nil {
			log.Warn().Err(relErr).Str("handle", arc.Handle.String()).Msg("Archive handle release failed")
		}
	}()

	data, contentType, err := c.registry.Fetch(ctx, arc.Handle)
	if err != nil {
		return SaveResult{}, err
	}
	location, err := c.sink.Save(ctx, arc.Name, data, contentType)
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to save %s: %w", arc.Name, err)
	}

	log.Info().
		Str("sink", c.sink.Kind()).
		Str("location", location).
		Int("entries", arc.Entries).
		Int64("bytes", arc.Size).
		Msg("Archive downloaded")

	return SaveResult{Name: arc.Name, Location: location, Size: arc.Size, Entries: arc.Entries}, nil
}

// Clear releases every handle the batch owns, retired ones included, and
// then drops the batch.
func (c *Controller) Clear() error {
	c.mu.Lock()
	if c.submitting || c.downloading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.teardownLocked()
	c.errMsg = ""
	c.mu.Unlock()

	c.publish()
	return nil
}

func (c *Controller) teardownLocked() {
	if !c.hasBatch {
		return
	}
	c.generation++
	handles := c.batch.Handles()
	for _, err := range c.registry.ReleaseAll(handles) {
		log.Warn().Err(err).Msg("Handle release failed during teardown")
	}
	log.Debug().Int("handles", len(handles)).Msg("Batch torn down")
	c.batch = models.Batch{}
	c.hasBatch = false
}

// releaseOrphansLocked releases whatever b still holds after its batch was
// torn down. Handles the teardown already released are skipped.
func (c *Controller) releaseOrphansLocked(b models.Batch) {
	released := 0
	for _, h := range b.Handles() {
		if h.IsZero() {
			continue
		}
		err := c.registry.Release(h)
		switch {
		case err == nil:
			released++
		case !errors.Is(err, resources.ErrHandleReleased):
			log.Warn().Err(err).Msg("Handle release failed after teardown")
		}
	}
	log.Debug().Int("handles", released).Msg("Released content of a torn down pass")
}

// Close releases the batch, closes the sink when it holds resources, and
// closes the event bus. A running pass is not waited for; it releases what it
// registered when it returns.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.teardownLocked()
	c.mu.Unlock()

	var err error
	if closer, ok := c.sink.(io.Closer); ok {
		err = closer.Close()
	}
	c.bus.Close()
	return err
}

func (c *Controller) publishLog(level events.LogLevel, message, stage string, err error) {
	ev := log.Info()
	switch level {
	case events.WarnLevel:
		ev = log.Warn()
	case events.ErrorLevel:
		ev = log.Error()
	case events.DebugLevel:
		ev = log.Debug()
	}
	ev.Err(err).Str("stage", stage).Msg(message)
	c.bus.PublishLog(level, message, stage, err)
}
