// Package cloud holds helpers shared by the archive sinks.
//
// Set INKBRIDGE_TIMING=1 to print per-save timing lines:
//
//	[TIMING] s3 put translated_images.zip: 412ms (1.8 MB at 4.4 MB/s)
package cloud

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"
)

// TimingEnv toggles timing output.
const TimingEnv = "INKBRIDGE_TIMING"

// TimingEnabled reports whether INKBRIDGE_TIMING=1.
func TimingEnabled() bool {
	return os.Getenv(TimingEnv) == "1"
}

// TimingLog writes one [TIMING] line when timing is enabled. A nil writer
// means stderr.
func TimingLog(w io.Writer, format string, args ...interface{}) {
	if !TimingEnabled() {
		return
	}
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "[TIMING] %s\n", fmt.Sprintf(format, args...))
}

// Timer measures one named phase. Only the first Stop* call logs.
type Timer struct {
	name    string
	start   time.Time
	w       io.Writer
	stopped int32
}

// StartTimer starts a timer writing to w (stderr when nil).
func StartTimer(w io.Writer, name string) *Timer {
	if w == nil {
		w = os.Stderr
	}
	return &Timer{name: name, start: time.Now(), w: w}
}

// Elapsed returns the time since start without stopping.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// Stop logs the elapsed time.
func (t *Timer) Stop() time.Duration {
	return t.stop("")
}

// StopWithThroughput logs elapsed time plus size and rate.
func (t *Timer) StopWithThroughput(bytes int64) time.Duration {
	elapsed := time.Since(t.start)
	speed := 0.0
	if elapsed > 0 {
		speed = float64(bytes) / elapsed.Seconds()
	}
	return t.stop(fmt.Sprintf("%s at %s", FormatBytes(bytes), FormatSpeed(speed)))
}

// StopWithMessage logs elapsed time with a note.
func (t *Timer) StopWithMessage(format string, args ...interface{}) time.Duration {
	return t.stop(fmt.Sprintf(format, args...))
}

func (t *Timer) stop(detail string) time.Duration {
	elapsed := time.Since(t.start)
	if !atomic.CompareAndSwapInt32(&t.stopped, 0, 1) || !TimingEnabled() {
		return elapsed
	}
	if detail == "" {
		fmt.Fprintf(t.w, "[TIMING] %s: %v\n", t.name, elapsed.Round(time.Millisecond))
	} else {
		fmt.Fprintf(t.w, "[TIMING] %s: %v (%s)\n", t.name, elapsed.Round(time.Millisecond), detail)
	}
	return elapsed
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatSpeed returns a human-readable rate in bytes per second.
func FormatSpeed(bytesPerSec float64) string {
	switch {
	case bytesPerSec < 1024:
		return fmt.Sprintf("%.1f B/s", bytesPerSec)
	case bytesPerSec < 1024*1024:
		return fmt.Sprintf("%.1f KB/s", bytesPerSec/1024)
	default:
		return fmt.Sprintf("%.1f MB/s", bytesPerSec/(1024*1024))
	}
}
