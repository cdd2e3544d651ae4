package watchdog

import (
	"strings"

	"github.com/docker/docker/api/types/events"

	"dockwatch/internal/docker"
)

// Record is one entry of the activity stream: a ContainerEvent or a
// ContainerLog.
type Record interface {
	// Text is the rendered line, without a trailing newline.
	Text() string
	// Snapshot is the container state the record was produced against.
	// It is nil when the container could not be inspected.
	Snapshot() *docker.ContainerSnapshot

	record()
}

// ContainerEvent reports a lifecycle action on a watched container.
type ContainerEvent struct {
	Container *docker.ContainerSnapshot
	Event     docker.Event
	Rendered  string
}

func (r ContainerEvent) Text() string                        { return r.Rendered }
func (r ContainerEvent) Snapshot() *docker.ContainerSnapshot { return r.Container }
func (ContainerEvent) record()                               {}

// ContainerLog is one log line from a watched container.
type ContainerLog struct {
	Container *docker.ContainerSnapshot
	Line      string
	Rendered  string
}

func (r ContainerLog) Text() string                        { return r.Rendered }
func (r ContainerLog) Snapshot() *docker.ContainerSnapshot { return r.Container }
func (ContainerLog) record()                               {}

type label struct {
	emoji  string
	letter string
}

const (
	dockerEmoji  = "🐳"
	dockerLetter = "C"
)

var logLabel = label{emoji: "💬", letter: "log"}

// actionLabels lists the lifecycle actions that produce records.
var actionLabels = map[events.Action]label{
	events.ActionCreate:  {emoji: "🛠", letter: "created"},
	events.ActionDestroy: {emoji: "🗑", letter: "destroyed"},
	events.ActionDie:     {emoji: "☠️", letter: "died"},
	events.ActionKill:    {emoji: "🔪", letter: "killed"},
	events.ActionPause:   {emoji: "💤", letter: "paused"},
	events.ActionRestart: {emoji: "♻️", letter: "restarted"},
	events.ActionStart:   {emoji: "🏁", letter: "started"},
	events.ActionStop:    {emoji: "✋", letter: "stopped"},
	events.ActionUnPause: {emoji: "🤤", letter: "unpaused"},
}

// labelWidth fits the longest letter label ("destroyed", "restarted").
const labelWidth = 9

func (l label) render(emojis bool) string {
	if emojis {
		return l.emoji + "  | "
	}
	return l.letter + strings.Repeat(" ", labelWidth-len(l.letter)) + " | "
}

func tag(emojis bool) string {
	if emojis {
		return dockerEmoji + "  | "
	}
	return dockerLetter + " | "
}

func renderEvent(emojis bool, l label, nameField string) string {
	return tag(emojis) + l.render(emojis) + nameField
}

func renderLog(emojis bool, nameField, line string) string {
	return tag(emojis) + logLabel.render(emojis) + nameField + strings.TrimSuffix(line, "\n")
}
