package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"dockwatch/internal/telemetry"
)

// StepOutput renders startup steps on stderr: a live checklist on a
// terminal, one line per transition otherwise.
type StepOutput struct {
	report telemetry.StepReporter
	close  func()
}

func NewStepOutput(w io.Writer) *StepOutput {
	if IsInteractive() {
		c := newChecklist(w)
		return &StepOutput{report: c.onSnapshot, close: c.close}
	}
	l := &lineSteps{w: w, seen: make(map[string]telemetry.StepState)}
	return &StepOutput{report: l.onSnapshot, close: func() {}}
}

func (o *StepOutput) Reporter() telemetry.StepReporter { return o.report }

func (o *StepOutput) Close() { o.close() }

type lineSteps struct {
	mu   sync.Mutex
	w    io.Writer
	seen map[string]telemetry.StepState
}

func (l *lineSteps) onSnapshot(snap telemetry.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, step := range snap.Steps {
		if step.Status == telemetry.StepPending {
			continue
		}
		if prev, ok := l.seen[step.ID]; ok && prev.Status == step.Status && prev.Message == step.Message {
			continue
		}
		l.seen[step.ID] = step
		fmt.Fprintln(l.w, formatStepLine(step))
	}
}

func formatStepLine(step telemetry.StepState) string {
	prefix := "[..]"
	switch step.Status {
	case telemetry.StepRunning:
		prefix = "[->]"
	case telemetry.StepDone:
		prefix = "[ok]"
	case telemetry.StepFailed:
		prefix = "[x]"
	}
	title := strings.TrimSpace(step.Title)
	if title == "" {
		title = step.ID
	}
	if msg := strings.TrimSpace(step.Message); msg != "" {
		return fmt.Sprintf("  %s %s (%s)", prefix, title, msg)
	}
	return fmt.Sprintf("  %s %s", prefix, title)
}

var spinFrames = [...]string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// checklist redraws every step in place, with a spinner on running steps.
type checklist struct {
	mu       sync.Mutex
	w        io.Writer
	steps    []telemetry.StepState
	rendered int
	frame    int
	stop     chan struct{}
	once     sync.Once
}

func newChecklist(w io.Writer) *checklist {
	return &checklist{w: w, stop: make(chan struct{})}
}

func (c *checklist) onSnapshot(snap telemetry.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	first := c.steps == nil
	c.steps = snap.Steps
	c.redraw()
	if first {
		go c.spin()
	}
}

func (c *checklist) close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *checklist) spin() {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			c.frame = (c.frame + 1) % len(spinFrames)
			c.redraw()
			c.mu.Unlock()
		}
	}
}

// redraw reprints all step lines in place. Caller must hold c.mu.
func (c *checklist) redraw() {
	if c.rendered > 0 {
		fmt.Fprintf(c.w, "\033[%dA", c.rendered)
	}
	for _, s := range c.steps {
		line := "  " + c.stepLine(s)
		if s.Message != "" {
			line += " " + Muted(s.Message)
		}
		fmt.Fprintf(c.w, "\r%s\033[K\n", line)
	}
	for i := len(c.steps); i < c.rendered; i++ {
		fmt.Fprint(c.w, "\r\033[K\n")
	}
	c.rendered = max(c.rendered, len(c.steps))
}

func (c *checklist) stepLine(s telemetry.StepState) string {
	switch s.Status {
	case telemetry.StepRunning:
		return Accent(spinFrames[c.frame]) + " " + s.Title
	case telemetry.StepDone:
		return Success("✓") + " " + s.Title
	case telemetry.StepFailed:
		return Failure("✗") + " " + Failure(s.Title)
	default:
		return Muted("●") + " " + Muted(s.Title)
	}
}
