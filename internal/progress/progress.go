// Package progress reports long-running work on the terminal (progress bars)
// or on the event bus.
package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/inkbridge/inkbridge/internal/events"
)

// Reporter receives progress for one step such as packing an archive.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// CLIProgress draws a single progressbar on stderr.
type CLIProgress struct {
	bar   *progressbar.ProgressBar
	out   io.Writer
	bytes bool
}

// NewCLIProgress returns a reporter counting items (archive entries).
func NewCLIProgress() *CLIProgress {
	return &CLIProgress{out: os.Stderr}
}

// NewCLIByteProgress returns a reporter that renders byte counts.
func NewCLIByteProgress() *CLIProgress {
	return &CLIProgress{out: os.Stderr, bytes: true}
}

func (p *CLIProgress) Start(total int64, description string) {
	opts := []progressbar.Option{
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100 * time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	}
	if p.bytes {
		opts = append(opts, progressbar.OptionShowBytes(true))
	} else {
		opts = append(opts, progressbar.OptionShowCount())
	}
	p.bar = progressbar.NewOptions64(total, opts...)
}

func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

func (p *CLIProgress) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// EventProgress publishes ProgressEvents for subscribers such as a front end.
type EventProgress struct {
	bus     *events.EventBus
	stage   string
	total   int64
	current int64
}

// NewEventProgress creates a reporter that publishes under stage.
func NewEventProgress(bus *events.EventBus, stage string) *EventProgress {
	return &EventProgress{bus: bus, stage: stage}
}

func (p *EventProgress) Start(total int64, description string) {
	p.total = total
	p.current = 0
	p.bus.PublishProgress(p.stage, 0, total, description)
}

func (p *EventProgress) Update(current int64) {
	p.current = current
	p.bus.PublishProgress(p.stage, current, p.total, "")
}

func (p *EventProgress) Finish() {
	p.current = p.total
	p.bus.PublishProgress(p.stage, p.total, p.total, "done")
}

func (p *EventProgress) Error(err error) {
	if err != nil {
		p.bus.PublishLog(events.ErrorLevel, err.Error(), p.stage, err)
	}
}

func (p *EventProgress) SetDescription(desc string) {
	p.bus.PublishProgress(p.stage, p.current, p.total, desc)
}

// NoOpProgress discards everything.
type NoOpProgress struct{}

func NewNoOpProgress() *NoOpProgress { return &NoOpProgress{} }

func (p *NoOpProgress) Start(total int64, description string) {}
func (p *NoOpProgress) Update(current int64)                  {}
func (p *NoOpProgress) Finish()                               {}
func (p *NoOpProgress) Error(err error)                       {}
func (p *NoOpProgress) SetDescription(desc string)            {}

// Multi fans out to several reporters.
type Multi []Reporter

func (m Multi) Start(total int64, description string) {
	for _, r := range m {
		r.Start(total, description)
	}
}

func (m Multi) Update(current int64) {
	for _, r := range m {
		r.Update(current)
	}
}

func (m Multi) Finish() {
	for _, r := range m {
		r.Finish()
	}
}

func (m Multi) Error(err error) {
	for _, r := range m {
		r.Error(err)
	}
}

func (m Multi) SetDescription(desc string) {
	for _, r := range m {
		r.SetDescription(desc)
	}
}

// Reader wraps an io.Reader and reports bytes read.
type Reader struct {
	reader   io.Reader
	reporter Reporter
	current  int64
}

// NewReader creates a progress-reporting reader.
func NewReader(r io.Reader, reporter Reporter) *Reader {
	return &Reader{reader: r, reporter: reporter}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.current += int64(n)
	pr.reporter.Update(pr.current)
	return n, err
}
