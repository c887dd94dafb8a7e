package bridge

import (
	"time"

	"github.com/bryanchriswhite/RiverLayout/pkg/layout"
)

// EventType identifies what happened in an Event.
type EventType string

const (
	EventOutputAdded     EventType = "output_added"
	EventOutputRemoved   EventType = "output_removed"
	EventSessionCreated  EventType = "session_created"
	EventLayoutCommitted EventType = "layout_committed"
	EventCommandFailed   EventType = "command_failed"
)

// Event describes a change of bridge state. Events are emitted from the
// dispatch loop after the change has been applied.
type Event struct {
	Type         EventType               `json:"type"`
	Time         time.Time               `json:"time"`
	RegistryName uint32                  `json:"registry_name"`
	Output       string                  `json:"output,omitempty"`
	Serial       uint32                  `json:"serial,omitempty"`
	Tags         uint32                  `json:"tags,omitempty"`
	Layout       *layout.GeneratedLayout `json:"layout,omitempty"`
	Command      string                  `json:"command,omitempty"`
	Error        string                  `json:"error,omitempty"`
}

// Observer is notified of every Event. Observe runs on the dispatch loop
// and must not block; anything retained must be copied.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

func (b *Bridge) emit(e Event) {
	if len(b.observers) == 0 {
		return
	}
	e.Time = b.now()
	for _, o := range b.observers {
		o.Observe(e)
	}
}
