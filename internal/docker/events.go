package docker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/events"

	"dockwatch/internal/stream"
)

// Event is one lifecycle event from the daemon's event feed.
//
// The wire "Action" field carries either a bare action or
// "action: command" (for example "exec_create: sh -c true"). Action holds
// the part before the first colon and Command the remainder without its
// single leading space; MarshalJSON reassembles the original text.
type Event struct {
	Type       events.Type
	Action     events.Action
	Command    string
	ActorID    string
	Attributes map[string]any
	Time       int64
	TimeNano   int64
}

// ActorName returns the "name" attribute, which for container events is
// the container name.
func (e Event) ActorName() (string, bool) {
	v, ok := e.Attributes["name"]
	if !ok {
		return "", false
	}
	name, ok := v.(string)
	return name, ok && name != ""
}

// WireAction returns the combined action text as sent by the daemon.
func (e Event) WireAction() string {
	if e.Command == "" {
		return string(e.Action)
	}
	return string(e.Action) + ": " + e.Command
}

var knownTypes = map[events.Type]struct{}{
	events.BuilderEventType:   {},
	events.ConfigEventType:    {},
	events.ContainerEventType: {},
	events.DaemonEventType:    {},
	events.ImageEventType:     {},
	events.NetworkEventType:   {},
	events.NodeEventType:      {},
	events.PluginEventType:    {},
	events.SecretEventType:    {},
	events.ServiceEventType:   {},
	events.VolumeEventType:    {},
}

var knownActions = map[events.Action]struct{}{
	events.ActionCreate:       {},
	events.ActionStart:        {},
	events.ActionRestart:      {},
	events.ActionStop:         {},
	events.ActionCheckpoint:   {},
	events.ActionPause:        {},
	events.ActionUnPause:      {},
	events.ActionAttach:       {},
	events.ActionDetach:       {},
	events.ActionResize:       {},
	events.ActionUpdate:       {},
	events.ActionRename:       {},
	events.ActionKill:         {},
	events.ActionDie:          {},
	events.ActionOOM:          {},
	events.ActionDestroy:      {},
	events.ActionRemove:       {},
	events.ActionCommit:       {},
	events.ActionTop:          {},
	events.ActionCopy:         {},
	events.ActionArchivePath:  {},
	events.ActionExtractToDir: {},
	events.ActionExport:       {},
	events.ActionImport:       {},
	events.ActionSave:         {},
	events.ActionLoad:         {},
	events.ActionTag:          {},
	events.ActionUnTag:        {},
	events.ActionPush:         {},
	events.ActionPull:         {},
	events.ActionPrune:        {},
	events.ActionDelete:       {},
	events.ActionEnable:       {},
	events.ActionDisable:      {},
	events.ActionConnect:      {},
	events.ActionDisconnect:   {},
	events.ActionReload:       {},
	events.ActionMount:        {},
	events.ActionUnmount:      {},
	events.ActionExecCreate:   {},
	events.ActionExecStart:    {},
	events.ActionExecDie:      {},
	events.ActionExecDetach:   {},
	events.ActionHealthStatus: {},
}

type wireActor struct {
	ID         string         `json:"ID"`
	Attributes map[string]any `json:"Attributes"`
}

type wireEvent struct {
	Type     events.Type     `json:"Type"`
	Action   string          `json:"Action"`
	Actor    wireActor       `json:"Actor"`
	Time     json.RawMessage `json:"time,omitempty"`
	TimeNano json.RawMessage `json:"timeNano,omitempty"`
}

// ParseEvent decodes one event line. Unknown event types and actions are
// decode failures.
func ParseEvent(line []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		if errors.Is(err, ErrDecode) {
			return Event{}, err
		}
		return Event{}, fmt.Errorf("%w: event: %v", ErrDecode, err)
	}
	return ev, nil
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: event: %v", ErrDecode, err)
	}
	if _, ok := knownTypes[w.Type]; !ok {
		return fmt.Errorf("%w: unknown event type %q", ErrDecode, w.Type)
	}

	action, command, _ := strings.Cut(w.Action, ":")
	command = strings.TrimPrefix(command, " ")
	if _, ok := knownActions[events.Action(action)]; !ok {
		return fmt.Errorf("%w: unknown event action %q", ErrDecode, action)
	}

	seconds, err := flexibleInt(w.Time)
	if err != nil {
		return fmt.Errorf("%w: event time: %v", ErrDecode, err)
	}
	nanos, err := flexibleInt(w.TimeNano)
	if err != nil {
		return fmt.Errorf("%w: event timeNano: %v", ErrDecode, err)
	}

	*e = Event{
		Type:       w.Type,
		Action:     events.Action(action),
		Command:    command,
		ActorID:    w.Actor.ID,
		Attributes: w.Actor.Attributes,
		Time:       seconds,
		TimeNano:   nanos,
	}
	return nil
}

func (e Event) MarshalJSON() ([]byte, error) {
	attrs := e.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return json.Marshal(struct {
		Type     events.Type `json:"Type"`
		Action   string      `json:"Action"`
		Actor    wireActor   `json:"Actor"`
		Time     int64       `json:"time"`
		TimeNano int64       `json:"timeNano"`
	}{
		Type:     e.Type,
		Action:   e.WireAction(),
		Actor:    wireActor{ID: e.ActorID, Attributes: attrs},
		Time:     e.Time,
		TimeNano: e.TimeNano,
	})
}

// flexibleInt accepts a JSON number or a numeric string.
func flexibleInt(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n.Int64()
}

// DecodeEvents decodes each line into an Event. The first undecodable line
// terminates the output with ErrDecode; blank lines are skipped.
func DecodeEvents(lines *stream.Stream[string]) *stream.Stream[Event] {
	return stream.Map(lines, 0, func(line string) ([]Event, error) {
		if strings.TrimSpace(line) == "" {
			return nil, nil
		}
		ev, err := ParseEvent([]byte(line))
		if err != nil {
			return nil, err
		}
		return []Event{ev}, nil
	})
}
