package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/inkbridge/inkbridge/internal/events"
	"github.com/inkbridge/inkbridge/internal/models"
)

// SubmitUI renders a submission pass: one bar per item while its request is
// in flight, then a ✓/✗ line. Without a terminal it prints plain lines.
type SubmitUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool

	mu   sync.Mutex
	bars map[string]*itemBar
}

type itemBar struct {
	bar   *mpb.Bar
	start time.Time
}

// NewSubmitUI creates a UI on stderr.
func NewSubmitUI() *SubmitUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	if isTerminal {
		enableANSIOnWindows(os.Stderr)
	}
	return newSubmitUI(os.Stderr, isTerminal)
}

func newSubmitUI(out io.Writer, isTerminal bool) *SubmitUI {
	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(150*time.Millisecond),
			mpb.WithWidth(60),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}
	return &SubmitUI{
		progress:   p,
		out:        out,
		isTerminal: isTerminal,
		bars:       make(map[string]*itemBar),
	}
}

// Follow consumes events until a pass completes, the channel closes or ctx
// ends. It returns the pass result when one was seen.
func (u *SubmitUI) Follow(ctx context.Context, ch <-chan events.Event) (models.BatchResult, bool) {
	for {
		select {
		case <-ctx.Done():
			return models.BatchResult{}, false
		case ev, ok := <-ch:
			if !ok {
				return models.BatchResult{}, false
			}
			if pc, done := u.Handle(ev); done {
				return pc.Result, true
			}
		}
	}
}

// Handle renders one event. It reports true with the summary once the pass
// has completed.
func (u *SubmitUI) Handle(ev events.Event) (*events.PassCompleteEvent, bool) {
	switch e := ev.(type) {
	case *events.ItemEvent:
		switch e.Type() {
		case events.EventItemSubmitting:
			u.startItem(e)
		case events.EventItemTranslated:
			u.finishItem(e, nil)
		case events.EventItemFailed:
			u.finishItem(e, e.Error)
		}
	case *events.PassCompleteEvent:
		u.summary(e)
		return e, true
	}
	return nil, false
}

func label(e *events.ItemEvent) string {
	return fmt.Sprintf("[%d/%d] %s → %s (%s)", e.Index+1, e.Total, truncatePath(e.Name, 2), e.Language, e.Font)
}

func (u *SubmitUI) startItem(e *events.ItemEvent) {
	ib := &itemBar{start: time.Now()}
	if u.isTerminal {
		ib.bar = u.progress.New(1,
			mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(label(e), decor.WCSyncSpaceR),
			),
			mpb.AppendDecorators(
				decor.Elapsed(decor.ET_STYLE_GO, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Fprintf(u.out, "Translating %s\n", label(e))
	}

	u.mu.Lock()
	u.bars[e.ItemID] = ib
	u.mu.Unlock()
}

func (u *SubmitUI) finishItem(e *events.ItemEvent, err error) {
	u.mu.Lock()
	ib := u.bars[e.ItemID]
	delete(u.bars, e.ItemID)
	u.mu.Unlock()

	took := e.Duration
	if ib != nil && took == 0 {
		took = time.Since(ib.start)
	}

	var msg string
	if err == nil {
		if ib != nil && ib.bar != nil {
			ib.bar.SetCurrent(1)
		}
		msg = fmt.Sprintf("✓ %s (%s)\n", truncatePath(e.Name, 2), took.Round(10*time.Millisecond))
	} else {
		if ib != nil && ib.bar != nil {
			ib.bar.Abort(false)
		}
		msg = fmt.Sprintf("✗ %s: %v\n", truncatePath(e.Name, 2), err)
	}
	u.write(msg)
}

func (u *SubmitUI) summary(e *events.PassCompleteEvent) {
	r := e.Result
	if r.Completed {
		u.write(fmt.Sprintf("Translated %d image(s) in %s\n", r.Translated, e.Duration.Round(time.Millisecond)))
		return
	}
	u.write(fmt.Sprintf("Pass stopped: %s (%d translated, %d remaining)\n", r.ErrorMessage, r.Translated, r.Remaining))
}

func (u *SubmitUI) write(msg string) {
	// Through mpb's writer so bars are not torn
	if u.isTerminal {
		u.progress.Write([]byte(msg))
		return
	}
	fmt.Fprint(u.out, msg)
}

// Wait blocks until all bars are done.
func (u *SubmitUI) Wait() {
	u.mu.Lock()
	for id, ib := range u.bars {
		if ib.bar != nil {
			ib.bar.Abort(true)
		}
		delete(u.bars, id)
	}
	u.mu.Unlock()
	u.progress.Wait()
}

// Writer returns a writer that prints above the bars.
func (u *SubmitUI) Writer() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return u.out
}

// IsTerminal reports whether bars are rendered.
func (u *SubmitUI) IsTerminal() bool {
	return u.isTerminal
}

// truncatePath keeps the last n path components.
// truncatePath("/a/b/c/page.png", 2) → "…/c/page.png"
func truncatePath(path string, n int) string {
	parts := splitPath(path)
	if len(parts) <= n {
		return parts[len(parts)-1]
	}
	out := "…"
	for _, p := range parts[len(parts)-n:] {
		out += "/" + p
	}
	return out
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' || path[i] == '\\' {
			if i > start {
				parts = append(parts, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		parts = append(parts, path[start:])
	}
	if len(parts) == 0 {
		return []string{path}
	}
	return parts
}

func enableANSIOnWindows(f *os.File) {
	if runtime.GOOS == "windows" {
		enableWindowsANSI(f)
	}
}
