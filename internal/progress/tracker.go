package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const barWidth = 40

// redrawInterval rate-limits bar rendering to roughly 10 Hz.
const redrawInterval = 100 * time.Millisecond

// Hooks receives the rendering side effects of the tracker. The default
// implementation writes ANSI sequences to a terminal; tests inject their
// own to observe rendering without one.
type Hooks interface {
	// Render draws the progress line, replacing the current one.
	Render(line string)
	// Clear removes the progress line so other output can be written.
	Clear()
	// Done finishes the display after the last render.
	Done()
}

// termHooks renders to a terminal using carriage return and clear-to-EOL.
type termHooks struct {
	w io.Writer
}

func (h *termHooks) Render(line string) {
	fmt.Fprintf(h.w, "\r\x1b[K%s", line)
}

func (h *termHooks) Clear() {
	fmt.Fprint(h.w, "\r\x1b[K")
}

func (h *termHooks) Done() {
	fmt.Fprintln(h.w)
}

// Tracker counts upload outcomes and renders a single-line progress bar.
// It arbitrates terminal output: log lines routed through LogWriter clear
// the bar, print, and redraw it. All methods are safe for concurrent use.
type Tracker struct {
	mu         sync.Mutex
	total      int
	completed  int
	failed     int
	active     bool
	enabled    bool
	hooks      Hooks
	out        io.Writer
	lastRender time.Time
}

// New creates a tracker writing to out. The bar renders only when out is
// a terminal; counters still work otherwise.
func New(out io.Writer) *Tracker {
	enabled := false
	if f, ok := out.(*os.File); ok {
		enabled = term.IsTerminal(int(f.Fd()))
	}
	return &Tracker{
		enabled: enabled,
		hooks:   &termHooks{w: out},
		out:     out,
	}
}

// NewWithHooks creates a tracker with injected rendering hooks, always
// enabled. Used by tests.
func NewWithHooks(hooks Hooks) *Tracker {
	return &Tracker{
		enabled: true,
		hooks:   hooks,
		out:     io.Discard,
	}
}

// Start sets the total and activates the display.
func (t *Tracker) Start(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total = total
	t.completed = 0
	t.failed = 0
	t.active = true
	t.lastRender = time.Time{}
	t.renderLocked(true)
}

// RecordSuccess increments the success counter.
func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
	t.renderLocked(false)
}

// RecordFailure increments the failure counter.
func (t *Tracker) RecordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed++
	t.renderLocked(false)
}

// Tick forces a redraw, subject to rate limiting.
func (t *Tracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.renderLocked(false)
}

// Stop deactivates the display and restores plain output.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return
	}
	t.renderLocked(true)
	t.active = false
	if t.enabled {
		t.hooks.Done()
	}
}

// Completed returns the success count.
func (t *Tracker) Completed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// Failed returns the failure count.
func (t *Tracker) Failed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

// Total returns the total set by Start.
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// LogWriter returns a writer that coexists with the bar: while the bar is
// active, each write clears the line, emits the payload, and redraws.
func (t *Tracker) LogWriter() io.Writer {
	return &interposedWriter{tracker: t}
}

// renderLocked draws the bar. force bypasses rate limiting; the final
// state (all tasks terminal) always renders.
func (t *Tracker) renderLocked(force bool) {
	if !t.active || !t.enabled || t.total == 0 {
		return
	}

	done := t.completed + t.failed
	now := time.Now()
	if !force && done != t.total && now.Sub(t.lastRender) < redrawInterval {
		return
	}
	t.lastRender = now

	t.hooks.Render(t.line())
}

// line formats the bar: 40 cells of █ and ░, percentage, done/total.
func (t *Tracker) line() string {
	done := t.completed + t.failed
	fraction := float64(done) / float64(t.total)
	if fraction > 1.0 {
		fraction = 1.0
	}

	filled := int(fraction * barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	return fmt.Sprintf("%s %3.0f%% %d/%d", bar, fraction*100, done, t.total)
}

// interposedWriter routes log output around the active progress line.
type interposedWriter struct {
	tracker *Tracker
}

func (w *interposedWriter) Write(p []byte) (int, error) {
	t := w.tracker
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active && t.enabled {
		t.hooks.Clear()
	}
	n, err := t.out.Write(p)
	if err != nil {
		return n, err
	}
	if t.active && t.enabled {
		t.hooks.Render(t.line())
	}
	return n, nil
}
