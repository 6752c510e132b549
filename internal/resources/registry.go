// Package resources tracks in-memory image content behind ephemeral handles.
//
// A handle is owned by exactly one party (the batch that registered it) and may
// be borrowed by any number of consumers through leases. Content is freed once
// the owner has released the handle and every lease has been closed.
package resources

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// HandlePrefix marks every handle issued by a Registry.
const HandlePrefix = "blob:inkbridge/"

// Handle addresses content held by a Registry. The zero value is invalid.
type Handle string

// IsZero reports whether h is the empty handle.
func (h Handle) IsZero() bool { return h == "" }

func (h Handle) String() string { return string(h) }

var (
	// ErrHandleReleased is returned when a released handle is released again or read.
	ErrHandleReleased = errors.New("handle already released")

	// ErrUnknownHandle is returned for handles this registry never issued.
	ErrUnknownHandle = errors.New("unknown handle")
)

type entry struct {
	data        []byte
	contentType string
	released    bool // owner gave the handle up
	leases      int  // open consumer references
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Registered int // handles issued since creation
	Released   int // owner releases performed
	Live       int // entries whose content is still held
	Leases     int // open leases across all entries
}

// Registry issues and reclaims handles. Safe for concurrent use.
type Registry struct {
	mu         sync.Mutex
	entries    map[Handle]*entry
	registered int
	released   int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[Handle]*entry),
	}
}

// Register stores a private copy of content and returns a fresh handle.
func (r *Registry) Register(content []byte, contentType string) Handle {
	data := make([]byte, len(content))
	copy(data, content)

	h := newHandle()

	r.mu.Lock()
	r.entries[h] = &entry{data: data, contentType: contentType}
	r.registered++
	r.mu.Unlock()

	return h
}

// Release gives up ownership of h. Content stays readable by leases taken
// earlier and is dropped when the last of them closes.
func (r *Registry) Release(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[h]
	if !ok {
		if strings.HasPrefix(string(h), HandlePrefix) {
			// Issued by us and already reclaimed.
			return fmt.Errorf("%w: %s", ErrHandleReleased, h)
		}
		return fmt.Errorf("%w: %q", ErrUnknownHandle, h)
	}
	if e.released {
		return fmt.Errorf("%w: %s", ErrHandleReleased, h)
	}

	e.released = true
	r.released++
	r.reclaimLocked(h, e)
	return nil
}

// ReleaseAll releases every handle and returns the errors encountered, if any.
func (r *Registry) ReleaseAll(handles []Handle) []error {
	var errs []error
	for _, h := range handles {
		if h.IsZero() {
			continue
		}
		if err := r.Release(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Acquire takes a consumer reference to the content behind h.
func (r *Registry) Acquire(h Handle) (*Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[h]
	if !ok {
		if strings.HasPrefix(string(h), HandlePrefix) {
			return nil, fmt.Errorf("%w: %s", ErrHandleReleased, h)
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownHandle, h)
	}
	if e.released {
		return nil, fmt.Errorf("%w: %s", ErrHandleReleased, h)
	}

	e.leases++
	return &Lease{registry: r, handle: h, entry: e}, nil
}

// Fetch returns a copy of the content behind h.
func (r *Registry) Fetch(ctx context.Context, h Handle) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	lease, err := r.Acquire(h)
	if err != nil {
		return nil, "", err
	}
	defer lease.Close()

	data := make([]byte, len(lease.entry.data))
	copy(data, lease.entry.data)
	return data, lease.entry.contentType, nil
}

// Stats returns current registry statistics.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	leases := 0
	for _, e := range r.entries {
		leases += e.leases
	}
	return Stats{
		Registered: r.registered,
		Released:   r.released,
		Live:       len(r.entries),
		Leases:     leases,
	}
}

// IsLive reports whether h still holds content.
func (r *Registry) IsLive(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[h]
	return ok
}

// reclaimLocked drops an entry once nobody can read it anymore.
func (r *Registry) reclaimLocked(h Handle, e *entry) {
	if e.released && e.leases == 0 {
		e.data = nil
		delete(r.entries, h)
	}
}

func newHandle() Handle {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does.
		id = uuid.New()
	}
	return Handle(HandlePrefix + id.String())
}

// Lease is a consumer reference to registered content.
type Lease struct {
	registry *Registry
	handle   Handle
	entry    *entry
	once     sync.Once
}

// Handle returns the leased handle.
func (l *Lease) Handle() Handle { return l.handle }

// Bytes returns the leased content. Callers must not modify it and must not
// use it after Close.
func (l *Lease) Bytes() []byte { return l.entry.data }

// ContentType returns the MIME type recorded at registration.
func (l *Lease) ContentType() string { return l.entry.contentType }

// Close drops the reference. Safe to call more than once.
func (l *Lease) Close() {
	l.once.Do(func() {
		r := l.registry
		r.mu.Lock()
		defer r.mu.Unlock()
		l.entry.leases--
		r.reclaimLocked(l.handle, l.entry)
	})
}
