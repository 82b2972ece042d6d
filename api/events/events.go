// Package events describes the host notifications published by the
// session registry, and provides typed subscriptions to them.
package events

import (
	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/api/eventbus"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/darkhz/avrctl/avrcp/browsetree"
)

// EventID represents a unique event ID.
type EventID byte

// The different types of event IDs.
const (
	EventNone EventID = iota // The zero value for this type.
	EventSession
	EventBrowse
	EventPlayback
)

// EventAction describes an action that is associated with an event.
type EventAction string

// The different types of event actions.
const (
	EventActionNone    EventAction = "none"
	EventActionUpdated EventAction = "updated"
	EventActionAdded   EventAction = "added"
	EventActionRemoved EventAction = "removed"
)

var eventNames = map[EventID]string{
	EventNone:     "",
	EventSession:  "session_event",
	EventBrowse:   "browse_event",
	EventPlayback: "playback_event",
}

// String returns the name of the event ID.
func (e EventID) String() string {
	return eventNames[e]
}

// Value returns the event ID.
func (e EventID) Value() uint {
	return uint(e)
}

// String returns the name of the event action.
func (e EventAction) String() string {
	return string(e)
}

// SessionData is published when a session connects (added) or
// disconnects (removed).
type SessionData struct {
	Address bluetooth.MacAddress `json:"address"`
}

// NodeData is published whenever a node of a browse tree changes.
type NodeData struct {
	Address bluetooth.MacAddress `json:"address"`
	Node    browsetree.NodeInfo  `json:"node"`
}

// TrackData is published when the current track changes.
type TrackData struct {
	Address bluetooth.MacAddress `json:"address"`
	Track   avrcp.Track          `json:"track"`
}

// PlaybackData is published when the play status or position changes.
type PlaybackData struct {
	Address      bluetooth.MacAddress `json:"address"`
	Status       avrcp.PlayStatus     `json:"status"`
	PositionMs   uint32               `json:"position"`
	SongLengthMs uint32               `json:"song_length"`
}

// NewDataEvents represents a set of events that are published with the [EventActionAdded] action.
type NewDataEvents interface {
	SessionData | NodeData | TrackData
}

// UpdatedDataEvents represents a set of events that are published with the
// [EventActionUpdated] or [EventActionRemoved] actions.
type UpdatedDataEvents interface {
	SessionData | NodeData | PlaybackData
}

// Events defines a set of possible event data types.
type Events interface {
	NewDataEvents | UpdatedDataEvents
}

// Event represents a general event.
type Event[T Events] struct {
	ID     EventID     `json:"event_id,omitempty"`
	Action EventAction `json:"event_action,omitempty"`
	Data   T           `json:"event_data,omitempty"`
}

// EventGroup holds a set of events that can be added or updated for a particular event ID.
type EventGroup[N NewDataEvents, U UpdatedDataEvents] struct {
	ID  EventID
	bus *eventbus.Bus
}

// Subscriber describes a subscription to an event group.
type Subscriber[N NewDataEvents, U UpdatedDataEvents] struct {
	AddedEvents                  chan N
	UpdatedEvents, RemovedEvents chan U
	Done                         chan struct{}

	Unsubscribe func()
}

// SubscriberBuffer is the capacity of every subscriber channel.
const SubscriberBuffer = 32

// PublishAdded publishes an event with the 'added' action.
func (e EventGroup[N, U]) PublishAdded(data N) {
	e.bus.Publish(e.ID, Event[N]{e.ID, EventActionAdded, data})
}

// PublishUpdated publishes an event with the 'updated' action.
func (e EventGroup[N, U]) PublishUpdated(data U) {
	e.bus.Publish(e.ID, Event[U]{e.ID, EventActionUpdated, data})
}

// PublishRemoved publishes an event with the 'removed' action.
func (e EventGroup[N, U]) PublishRemoved(data U) {
	e.bus.Publish(e.ID, Event[U]{e.ID, EventActionRemoved, data})
}

// Subscribe subscribes to an event group. It reports false if the bus
// has been closed, in which case every channel of the subscriber is closed.
func (e EventGroup[N, U]) Subscribe() (*Subscriber[N, U], bool) {
	id := e.bus.Subscribe(e.ID)

	sub := Subscriber[N, U]{
		AddedEvents:   make(chan N, SubscriberBuffer),
		RemovedEvents: make(chan U, SubscriberBuffer),
		UpdatedEvents: make(chan U, SubscriberBuffer),
		Done:          make(chan struct{}, 1),
		Unsubscribe:   id.Unsubscribe,
	}

	if !id.Active() {
		close(sub.AddedEvents)
		close(sub.RemovedEvents)
		close(sub.UpdatedEvents)

		return &sub, false
	}

	go func() {
		for data := range id.C {
			if v, ok := data.(Event[N]); ok && v.Action == EventActionAdded {
				select {
				case sub.AddedEvents <- v.Data:
				default:
				}

				continue
			}

			v, ok := data.(Event[U])
			if !ok {
				continue
			}

			var ch chan U

			switch v.Action {
			case EventActionUpdated:
				ch = sub.UpdatedEvents

			case EventActionRemoved:
				ch = sub.RemovedEvents

			default:
				continue
			}

			select {
			case ch <- v.Data:
			default:
			}
		}

		select {
		case sub.Done <- struct{}{}:
		default:
		}

		close(sub.AddedEvents)
		close(sub.RemovedEvents)
		close(sub.UpdatedEvents)
	}()

	return &sub, true
}

// SessionEvents returns an event interface to subscribe to session events.
func SessionEvents(bus *eventbus.Bus) EventGroup[SessionData, SessionData] {
	return EventGroup[SessionData, SessionData]{ID: EventSession, bus: bus}
}

// BrowseEvents returns an event interface to subscribe to browse tree events.
func BrowseEvents(bus *eventbus.Bus) EventGroup[NodeData, NodeData] {
	return EventGroup[NodeData, NodeData]{ID: EventBrowse, bus: bus}
}

// PlaybackEvents returns an event interface to subscribe to playback events.
// A new track is published as an added event, status and position changes
// as updated events.
func PlaybackEvents(bus *eventbus.Bus) EventGroup[TrackData, PlaybackData] {
	return EventGroup[TrackData, PlaybackData]{ID: EventPlayback, bus: bus}
}
