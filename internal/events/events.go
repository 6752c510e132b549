package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/inkbridge/inkbridge/internal/constants"
	"github.com/inkbridge/inkbridge/internal/models"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventProgress EventType = "progress"
	EventLog      EventType = "log"

	// Controller state
	EventBatchChanged EventType = "batch_changed" // New snapshot after any transition

	// Submission pass
	EventItemSubmitting EventType = "item_submitting" // Request for one item sent
	EventItemTranslated EventType = "item_translated" // Item received translated content
	EventItemFailed     EventType = "item_failed"     // Item failed, pass aborted
	EventPassComplete   EventType = "pass_complete"   // Pass finished, success or not

	// Download
	EventArchiveSaved EventType = "archive_saved"
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// ProgressEvent represents progress of a long step such as archive packing
type ProgressEvent struct {
	BaseEvent
	Stage   string // "archive", "save"
	Current int64
	Total   int64
	Message string
}

// Fraction returns progress in the range 0.0 to 1.0.
func (e *ProgressEvent) Fraction() float64 {
	if e.Total <= 0 {
		return 0
	}
	return float64(e.Current) / float64(e.Total)
}

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
	Stage   string
	Error   error
}

// BatchChangedEvent carries the snapshot produced by a controller transition
type BatchChangedEvent struct {
	BaseEvent
	Snapshot models.Snapshot
}

// ItemEvent represents one item's progress through a submission pass
type ItemEvent struct {
	BaseEvent
	ItemID   string
	Name     string
	Index    int // 0-based position in the batch
	Total    int // items in the batch
	Size     int64
	Language string
	Font     string // resolved wire font
	Duration time.Duration
	Error    error
}

// PassCompleteEvent summarizes a finished submission pass
type PassCompleteEvent struct {
	BaseEvent
	Result   models.BatchResult
	Duration time.Duration
}

// ArchiveSavedEvent reports where a downloaded archive was written
type ArchiveSavedEvent struct {
	BaseEvent
	Name     string
	Location string
	Size     int64
	Entries  int
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
// Events for full subscriber buffers are dropped and counted.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message, stage string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: BaseEvent{EventType: EventLog, Time: time.Now()},
		Level:     level,
		Message:   message,
		Stage:     stage,
		Error:     err,
	})
}

// PublishProgress is a convenience method for publishing progress events
func (eb *EventBus) PublishProgress(stage string, current, total int64, message string) {
	eb.Publish(&ProgressEvent{
		BaseEvent: BaseEvent{EventType: EventProgress, Time: time.Now()},
		Stage:     stage,
		Current:   current,
		Total:     total,
		Message:   message,
	})
}

// PublishSnapshot is a convenience method for publishing controller snapshots
func (eb *EventBus) PublishSnapshot(snap models.Snapshot) {
	eb.Publish(&BatchChangedEvent{
		BaseEvent: BaseEvent{EventType: EventBatchChanged, Time: time.Now()},
		Snapshot:  snap,
	})
}

// UnsubscribeAll removes a subscription channel from every event type and
// from the all-events list
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	var found chan Event
	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				found = subCh
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			found = subCh
			break
		}
	}

	if found != nil {
		close(found)
	}
}

// ResetDroppedEventCount resets the dropped event counter and returns the old value
func (eb *EventBus) ResetDroppedEventCount() int64 {
	return eb.droppedEvents.Swap(0)
}
