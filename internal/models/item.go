package models

import (
	"github.com/google/uuid"

	"github.com/inkbridge/inkbridge/internal/resources"
)

// SourceFile is one user-selected image as read from disk.
type SourceFile struct {
	Name        string // base name shown to the user
	Path        string // where it was read from, empty for in-memory files
	ContentType string // MIME type used for validation and upload
	Data        []byte
}

// Size returns the payload size in bytes.
func (f SourceFile) Size() int64 { return int64(len(f.Data)) }

// ItemStatus is the processing state of a batch item.
type ItemStatus string

const (
	StatusActive     ItemStatus = "active"     // idle, showing original or translated content
	StatusProcessing ItemStatus = "processing" // part of a running submission pass
	StatusErrored    ItemStatus = "errored"    // reserved; failures are reported per batch
)

// IsBusy reports whether the item is part of a running pass.
func (s ItemStatus) IsBusy() bool {
	return s == StatusProcessing
}

// Item is the per-file unit of work.
type Item struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	ContentType string           `json:"contentType"`
	Handle      resources.Handle `json:"handle"`
	Status      ItemStatus       `json:"status"`
	Translated  bool             `json:"translated"`

	// Original is the payload still waiting to be submitted. Nil once the
	// item has been translated.
	Original *SourceFile `json:"-"`
}

// HasPending reports whether the item still carries a file to submit.
func (i Item) HasPending() bool {
	return i.Original != nil
}

func newItemID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
