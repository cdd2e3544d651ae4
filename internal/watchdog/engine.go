// Package watchdog keeps a registry of watched containers and merges their
// lifecycle events and log lines into one activity stream. A container's
// log stream is re-attached whenever the runtime reports that it started
// again.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/events"

	"dockwatch/internal/check"
	"dockwatch/internal/docker"
	"dockwatch/internal/stream"
	"dockwatch/internal/workerpool"
)

const (
	// outputBuffer is how many records may wait for the consumer before
	// handlers block.
	outputBuffer = 64
)

var (
	ErrAlreadyStarted   = errors.New("watchdog already started")
	ErrStopped          = errors.New("watchdog stopped")
	ErrEventStreamEnded = errors.New("event stream ended")
)

// Config selects what the engine watches and how records are rendered.
type Config struct {
	// Containers are watched in this order; duplicates are ignored.
	Containers []string
	// Filters drop log lines containing any of these substrings.
	Filters []string
	Display DisplayOptions
	// Workers bounds concurrent handler execution. Zero uses GOMAXPROCS.
	Workers int
}

type engineState int

const (
	stateIdle engineState = iota
	stateRunning
	stateStopped
)

// subscription gates handler invocation for one stream. Disposing it stops
// handlers from running without closing the stream.
type subscription struct {
	disposed atomic.Bool
}

func (s *subscription) dispose()     { s.disposed.Store(true) }
func (s *subscription) active() bool { return !s.disposed.Load() }

type watchItem struct {
	name        string
	snapshot    *docker.ContainerSnapshot
	logs        LogStream
	sub         *subscription
	displayName string
	color       Color
}

// WatchedContainer is a read-only view of one registry entry.
type WatchedContainer struct {
	Name        string
	DisplayName string
	Color       Color
	Snapshot    *docker.ContainerSnapshot
	Streaming   bool
}

// Engine runs one watch session.
type Engine struct {
	runtime Runtime
	cfg     Config
	display *Allocator

	mu        sync.Mutex
	state     engineState
	items     map[string]*watchItem
	order     []string
	events    EventStream
	eventsSub *subscription
	out       *stream.Stream[Record]
	pool      *workerpool.Pool
	ctx       context.Context
	cancel    context.CancelFunc

	dispatchers sync.WaitGroup
}

// New returns an idle engine.
func New(rt Runtime, cfg Config) *Engine {
	return &Engine{
		runtime: rt,
		cfg:     cfg,
		display: NewAllocator(cfg.Display),
		items:   make(map[string]*watchItem),
	}
}

// Watch starts the session and returns the merged activity stream. Missing
// containers do not fail the start; failing to open the event stream does.
// The stream ends when Shutdown is called or a stream fails.
func (e *Engine) Watch(ctx context.Context) (*stream.Stream[Record], error) {
	e.mu.Lock()
	if e.state != stateIdle {
		e.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	e.state = stateRunning
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.out = stream.New[Record](outputBuffer)
	e.pool = workerpool.New(e.cfg.Workers)
	out := e.out
	e.mu.Unlock()

	seen := make(map[string]struct{}, len(e.cfg.Containers))
	for _, name := range e.cfg.Containers {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		item := e.attach(e.ctx, name)
		if !e.register(item) {
			return nil, ErrStopped
		}
	}

	e.mu.Lock()
	for _, name := range e.order {
		item := e.items[name]
		item.displayName = e.display.DisplayName(name)
		e.display.Fit(item.displayName)
	}
	for _, name := range e.order {
		e.items[name].color = e.display.NextColor()
	}
	e.mu.Unlock()

	if err := e.openEvents(e.ctx); err != nil {
		e.Shutdown()
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateRunning {
		return nil, ErrStopped
	}
	for _, name := range e.order {
		if item := e.items[name]; item.logs != nil {
			e.subscribeLogsLocked(item)
		}
	}
	slog.Debug("Watchdog started.", "containers", len(e.order), "workers", e.pool.Size(), "name_width", e.display.Width())
	return out, nil
}

// Shutdown closes every stream the engine owns, clears the registry and
// completes the activity stream. Calling it again has no effect.
//
// Records the engine produced before Shutdown stay buffered in the activity
// stream and can still be received; no record is produced afterwards.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	if e.state == stateStopped {
		e.mu.Unlock()
		return
	}
	prev := e.state
	e.state = stateStopped
	eventStream, eventsSub := e.events, e.eventsSub
	e.events, e.eventsSub = nil, nil
	items := e.items
	e.items = make(map[string]*watchItem)
	e.order = nil
	e.display.Reset()
	out, pool, cancel := e.out, e.pool, e.cancel
	e.mu.Unlock()

	if prev == stateIdle {
		return
	}

	cancel()
	if eventsSub != nil {
		eventsSub.dispose()
	}
	eventsLive := eventStream != nil && eventStream.Active()
	if eventStream != nil {
		if err := eventStream.Close(); err != nil {
			slog.Debug("Close event stream.", "err", err)
		}
	}
	for _, item := range items {
		if item.sub != nil {
			item.sub.dispose()
		}
		if item.logs != nil {
			if err := item.logs.Close(); err != nil {
				slog.Debug("Close log stream.", "container", item.name, "err", err)
			}
		}
	}
	out.Finish(nil)
	pool.Close()
	e.dispatchers.Wait()
	slog.Debug("Watchdog stopped.", "containers", len(items), "events_live", eventsLive)
}

// Watched returns the registry in configured order.
func (e *Engine) Watched() []WatchedContainer {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]WatchedContainer, 0, len(e.order))
	for _, name := range e.order {
		item := e.items[name]
		out = append(out, WatchedContainer{
			Name:        item.name,
			DisplayName: item.displayName,
			Color:       item.color,
			Snapshot:    item.snapshot,
			Streaming:   item.logs != nil && item.logs.Active(),
		})
	}
	return out
}

// attach inspects the container and opens its log stream. Both steps are
// best effort; the item is returned partially populated on failure.
func (e *Engine) attach(ctx context.Context, name string) *watchItem {
	item := &watchItem{name: name, color: NoColor}

	snap, err := e.runtime.Inspect(ctx, name)
	switch {
	case errdefs.IsNotFound(err):
		slog.Warn("Container not found.", "container", name)
	case err != nil:
		slog.Warn("Inspect container.", "container", name, "err", err)
	default:
		item.snapshot = &snap
	}

	tty := item.snapshot != nil && item.snapshot.TTY
	logs, err := e.runtime.Logs(ctx, name, tty)
	if err != nil {
		slog.Warn("Follow container logs.", "container", name, "err", err)
		return item
	}
	item.logs = logs
	slog.Debug("Watching container.", "container", name, "inspected", item.snapshot != nil)
	return item
}

// register adds a freshly attached item during startup. It reports false,
// releasing the item, if the engine was shut down meanwhile.
func (e *Engine) register(item *watchItem) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateRunning {
		if item.logs != nil {
			_ = item.logs.Close()
		}
		return false
	}
	e.items[item.name] = item
	e.order = append(e.order, item.name)
	return true
}

func (e *Engine) openEvents(ctx context.Context) error {
	e.mu.Lock()
	if e.events != nil {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	es, err := e.runtime.Events(ctx)
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateRunning {
		_ = es.Close()
		return ErrStopped
	}
	sub := &subscription{}
	e.events, e.eventsSub = es, sub
	lane := e.pool.Lane()
	e.dispatchers.Add(1)
	go e.dispatchEvents(es.Events(), sub, lane)
	return nil
}

func (e *Engine) subscribeLogsLocked(item *watchItem) {
	check.Assert(item.logs != nil, "log subscription needs an open stream")
	sub := &subscription{}
	item.sub = sub
	lane := e.pool.Lane()
	e.dispatchers.Add(1)
	go e.dispatchLogs(item.name, item.logs.Lines(), sub, lane)
}

func (e *Engine) dispatchEvents(feed *stream.Stream[docker.Event], sub *subscription, lane *workerpool.Lane) {
	defer e.dispatchers.Done()
	for ev := range feed.C() {
		if !sub.active() || ev.Type != events.ContainerEventType {
			continue
		}
		lane.Submit(func() { e.handleEvent(sub, ev) })
	}
	if !sub.active() {
		return
	}
	err := feed.Err()
	if err == nil {
		err = ErrEventStreamEnded
	}
	lane.Submit(func() { e.fail(fmt.Errorf("event stream: %w", err)) })
}

func (e *Engine) dispatchLogs(name string, lines *stream.Stream[string], sub *subscription, lane *workerpool.Lane) {
	defer e.dispatchers.Done()
	for line := range lines.C() {
		if !sub.active() {
			continue
		}
		lane.Submit(func() { e.handleLog(name, sub, line) })
	}
	if err := lines.Err(); err != nil && sub.active() {
		lane.Submit(func() { e.fail(fmt.Errorf("log stream of %q: %w", name, err)) })
	}
}

func (e *Engine) handleEvent(sub *subscription, ev docker.Event) {
	if !sub.active() {
		return
	}
	l, ok := actionLabels[ev.Action]
	if !ok {
		return
	}
	name, ok := e.resolve(ev)
	if !ok {
		return
	}

	if ev.Action == events.ActionStart {
		e.reattach(name)
	}

	e.mu.Lock()
	item, ok := e.items[name]
	if !ok || e.state != stateRunning {
		e.mu.Unlock()
		return
	}
	rec := ContainerEvent{
		Container: item.snapshot,
		Event:     ev,
		Rendered:  renderEvent(e.cfg.Display.Emojis, l, e.display.NameField(item.displayName, item.color)),
	}
	e.mu.Unlock()
	e.emit(rec)
}

// resolve maps an event's actor to a registered container name, by the
// actor's name attribute first and its ID second.
func (e *Engine) resolve(ev docker.Event) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if name, ok := ev.ActorName(); ok {
		if _, registered := e.items[name]; registered {
			return name, true
		}
	}
	if ev.ActorID == "" {
		return "", false
	}
	for name, item := range e.items {
		if name == ev.ActorID || (item.snapshot != nil && item.snapshot.ID == ev.ActorID) {
			return name, true
		}
	}
	return "", false
}

// reattach replaces a container's log stream after it started again. The
// display color carries over to the new registry entry.
func (e *Engine) reattach(name string) {
	e.mu.Lock()
	old, ok := e.items[name]
	if !ok || e.state != stateRunning {
		e.mu.Unlock()
		return
	}
	if old.sub != nil {
		old.sub.dispose()
	}
	ctx := e.ctx
	e.mu.Unlock()

	if old.logs != nil && old.logs.Active() {
		if err := old.logs.Close(); err != nil {
			slog.Debug("Close log stream.", "container", name, "err", err)
		}
	}

	fresh := e.attach(ctx, name)
	fresh.displayName = old.displayName
	fresh.color = old.color

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateRunning {
		if fresh.logs != nil {
			_ = fresh.logs.Close()
		}
		return
	}
	e.items[name] = fresh
	if fresh.logs != nil {
		e.subscribeLogsLocked(fresh)
	}
	slog.Debug("Re-attached container.", "container", name, "streaming", fresh.logs != nil)
}

func (e *Engine) handleLog(name string, sub *subscription, line string) {
	if !sub.active() {
		return
	}
	for _, f := range e.cfg.Filters {
		if f != "" && strings.Contains(line, f) {
			return
		}
	}

	e.mu.Lock()
	item, ok := e.items[name]
	if !ok || item.sub != sub || e.state != stateRunning {
		e.mu.Unlock()
		return
	}
	rec := ContainerLog{
		Container: item.snapshot,
		Line:      line,
		Rendered:  renderLog(e.cfg.Display.Emojis, e.display.NameField(item.displayName, item.color), line),
	}
	e.mu.Unlock()
	e.emit(rec)
}

func (e *Engine) emit(rec Record) {
	e.out.Send(rec)
}

func (e *Engine) fail(err error) {
	slog.Warn("Watch session failed.", "err", err)
	e.out.Finish(err)
}
