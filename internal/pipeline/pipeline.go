// Package pipeline runs submission passes: every pending item of a batch is
// sent to the translation service in order, one request at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/inkbridge/inkbridge/internal/api"
	"github.com/inkbridge/inkbridge/internal/events"
	"github.com/inkbridge/inkbridge/internal/fonts"
	"github.com/inkbridge/inkbridge/internal/models"
)

var (
	// ErrNothingToSubmit is returned when no item carries a pending file.
	ErrNothingToSubmit = errors.New("nothing to submit")

	// ErrInvalidOptions is returned for an unknown language or font family.
	ErrInvalidOptions = errors.New("invalid submission options")
)

// ChangeFunc receives a copy of the batch after every state transition.
type ChangeFunc func(models.Batch)

// Pipeline submits batches. A single Pipeline never has more than one request
// in flight; concurrent Submit calls queue behind each other.
type Pipeline struct {
	translator api.Translator
	store      models.Registrar
	bus        *events.EventBus
	inFlight   *semaphore.Weighted
}

// New creates a pipeline. bus may be nil.
func New(translator api.Translator, store models.Registrar, bus *events.EventBus) *Pipeline {
	return &Pipeline{
		translator: translator,
		store:      store,
		bus:        bus,
		inFlight:   semaphore.NewWeighted(1),
	}
}

// ValidateOptions checks that opts name a catalogue language and a family.
func ValidateOptions(opts models.Options) error {
	if !fonts.IsLanguage(opts.Language) {
		return fmt.Errorf("%w: unknown language %q", ErrInvalidOptions, opts.Language)
	}
	if !fonts.IsFamily(opts.Font) {
		return fmt.Errorf("%w: unknown font family %q", ErrInvalidOptions, opts.Font)
	}
	return nil
}

// Submit runs one pass over batch and returns the resulting batch.
//
// Items are sent in batch order. On success an item's handle is replaced by
// one for the translated content and the old handle moves to Retired. The
// first failure aborts the pass: that item and every later one go back to
// active with their pending file intact, so a later Submit only sends what
// is left. A failed pass still marks the batch complete and returns the
// normalized *api.SubmissionError.
//
// onChange, when non-nil, is called synchronously after every transition.
func (p *Pipeline) Submit(ctx context.Context, batch models.Batch, opts models.Options, onChange ChangeFunc) (models.Batch, models.BatchResult, error) {
	if err := ValidateOptions(opts); err != nil {
		return batch, models.BatchResult{}, err
	}
	if !batch.HasPendingWork() {
		return batch, models.BatchResult{}, ErrNothingToSubmit
	}

	if err := p.inFlight.Acquire(ctx, 1); err != nil {
		return batch, models.BatchResult{}, err
	}
	defer p.inFlight.Release(1)

	start := time.Now()
	cur := batch.Clone()
	emit := func() {
		if onChange != nil {
			onChange(cur.Clone())
		}
	}

	// Snapshot the work list up front so an item is never sent twice
	var pending []int
	for i := range cur.Items {
		if cur.Items[i].HasPending() {
			cur.Items[i].Status = models.StatusProcessing
			pending = append(pending, i)
		}
	}
	emit()

	log.Info().
		Int("pending", len(pending)).
		Int("items", cur.Len()).
		Str("language", opts.Language).
		Str("font", opts.Font).
		Msg("Starting submission pass")

	translated := 0
	for _, idx := range pending {
		item := &cur.Items[idx]
		wireFont := fonts.Resolve(opts.Font, opts.Language)

		p.publishItem(events.EventItemSubmitting, cur, idx, opts.Language, wireFont, 0, nil)

		res, err := p.translator.Translate(ctx, api.TranslateRequest{
			FileName:    item.Original.Name,
			ContentType: item.Original.ContentType,
			Data:        item.Original.Data,
			Language:    opts.Language,
			Font:        wireFont,
		})
		if err != nil {
			err = normalize(item.Name, err)
			msg := api.DisplayMessage(err)

			for i := range cur.Items {
				if cur.Items[i].Status == models.StatusProcessing {
					cur.Items[i].Status = models.StatusActive
				}
			}
			cur.Complete = true
			cur.LastError = msg
			emit()

			log.Warn().Err(err).Str("file", item.Name).Msg("Submission pass aborted")
			p.publishItem(events.EventItemFailed, cur, idx, opts.Language, wireFont, 0, err)

			result := models.BatchResult{
				Completed:    false,
				ErrorMessage: msg,
				Translated:   translated,
				Remaining:    cur.PendingCount(),
			}
			p.publishPass(result, time.Since(start))
			return cur, result, err
		}

		handle := p.store.Register(res.Data, res.ContentType)
		cur.Retired = append(cur.Retired, item.Handle)
		item.Handle = handle
		item.ContentType = res.ContentType
		item.Original = nil
		item.Translated = true
		item.Status = models.StatusActive
		translated++
		emit()

		p.publishItem(events.EventItemTranslated, cur, idx, opts.Language, wireFont, res.Duration, nil)
	}

	cur.Complete = true
	cur.LastError = ""
	emit()

	result := models.BatchResult{
		Completed:  true,
		Translated: translated,
		Remaining:  cur.PendingCount(),
	}
	log.Info().Int("translated", translated).Dur("took", time.Since(start)).Msg("Submission pass complete")
	p.publishPass(result, time.Since(start))
	return cur, result, nil
}

// normalize guarantees callers always see a *api.SubmissionError.
func normalize(name string, err error) error {
	if errors.Is(err, api.ErrSubmissionFailed) {
		return err
	}
	return &api.SubmissionError{FileName: name, Message: api.DisplayMessage(err), Err: err}
}

func (p *Pipeline) publishItem(t events.EventType, b models.Batch, idx int, language, font string, took time.Duration, err error) {
	if p.bus == nil {
		return
	}
	it := b.Items[idx]
	var size int64
	if it.Original != nil {
		size = it.Original.Size()
	}
	p.bus.Publish(&events.ItemEvent{
		BaseEvent: events.BaseEvent{EventType: t, Time: time.Now()},
		ItemID:    it.ID,
		Name:      it.Name,
		Index:     idx,
		Total:     b.Len(),
		Size:      size,
		Language:  language,
		Font:      font,
		Duration:  took,
		Error:     err,
	})
}

func (p *Pipeline) publishPass(result models.BatchResult, took time.Duration) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(&events.PassCompleteEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventPassComplete, Time: time.Now()},
		Result:    result,
		Duration:  took,
	})
}
