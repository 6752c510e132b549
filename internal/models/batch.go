package models

import (
	"errors"

	"github.com/inkbridge/inkbridge/internal/resources"
)

// Registrar is the part of the resource registry a batch needs at creation.
type Registrar interface {
	Register(content []byte, contentType string) resources.Handle
}

// ErrEmptySelection is returned when a batch would contain no items.
var ErrEmptySelection = errors.New("no files selected")

// Batch is the ordered set of items processed together.
// Treat a Batch as a value: transitions work on Clone() and hand back a new one.
type Batch struct {
	Items []Item

	// Retired holds display handles replaced by translated content. They are
	// released together with the batch.
	Retired []resources.Handle

	// Complete is set once a submission pass has finished, successful or not.
	Complete bool

	// LastError is the message of the most recent failed pass.
	LastError string
}

// NewBatch builds one item per file, in order, registering a display handle
// for each original so it can be previewed before any remote processing.
// The caller validates the files first.
func NewBatch(files []SourceFile, reg Registrar) (Batch, error) {
	if len(files) == 0 {
		return Batch{}, ErrEmptySelection
	}

	items := make([]Item, len(files))
	for i := range files {
		f := files[i]
		items[i] = Item{
			ID:          newItemID(),
			Name:        f.Name,
			ContentType: f.ContentType,
			Handle:      reg.Register(f.Data, f.ContentType),
			Status:      StatusActive,
			Original:    &f,
		}
	}
	return Batch{Items: items}, nil
}

// Len returns the number of items.
func (b Batch) Len() int { return len(b.Items) }

// IsEmpty reports whether the batch has no items.
func (b Batch) IsEmpty() bool { return len(b.Items) == 0 }

// PendingCount returns how many items still carry a file to submit.
func (b Batch) PendingCount() int {
	n := 0
	for _, it := range b.Items {
		if it.HasPending() {
			n++
		}
	}
	return n
}

// HasPendingWork reports whether any item still carries a file to submit.
func (b Batch) HasPendingWork() bool {
	return b.PendingCount() > 0
}

// TranslatedCount returns how many items show translated content.
func (b Batch) TranslatedCount() int {
	n := 0
	for _, it := range b.Items {
		if it.Translated {
			n++
		}
	}
	return n
}

// Handles returns every handle the batch owns: current display handles
// followed by retired ones.
func (b Batch) Handles() []resources.Handle {
	out := make([]resources.Handle, 0, len(b.Items)+len(b.Retired))
	for _, it := range b.Items {
		out = append(out, it.Handle)
	}
	return append(out, b.Retired...)
}

// Clone returns a copy that shares no slices with b. SourceFile payloads are
// shared; they are never mutated.
func (b Batch) Clone() Batch {
	out := b
	if b.Items != nil {
		out.Items = make([]Item, len(b.Items))
		copy(out.Items, b.Items)
	}
	if b.Retired != nil {
		out.Retired = make([]resources.Handle, len(b.Retired))
		copy(out.Retired, b.Retired)
	}
	return out
}

// Options carries the user's translation choices for a pass.
type Options struct {
	Language string // target language display name, e.g. "Indonesian"
	Font     string // chosen font family display name, e.g. "Wild Words"
}

// BatchResult is the outcome of one submission pass.
type BatchResult struct {
	Completed    bool   // every pending item was translated
	ErrorMessage string // user-visible message when Completed is false
	Translated   int    // items translated during this pass
	Remaining    int    // items still pending afterwards
}
