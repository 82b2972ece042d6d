package session

import "github.com/darkhz/avrctl/avrcp"

// Message is an input to the session state machine: a local intent,
// an inbound stack event or an expired timer.
type Message interface {
	messageName() string
}

// MessageName returns a printable name of the message.
func MessageName(m Message) string {
	if m == nil {
		return "nil"
	}

	return m.messageName()
}

// TimerKind identifies one of the timers of a session.
type TimerKind uint8

// The different session timers.
const (
	TimerFetch TimerKind = iota
	TimerVolumeEcho
)

// String returns the name of the timer.
func (t TimerKind) String() string {
	if t == TimerFetch {
		return "fetch"
	}

	return "volume-echo"
}

type (
	// Connect is a local request to connect to the device.
	Connect struct{}

	// Disconnect is a local request to disconnect from the device.
	Disconnect struct{}

	// Remove tears the session down unconditionally, after the device
	// was unpaired or removed from the adapter.
	Remove struct{}

	// RequestFolder is a local request to list the contents of a node.
	RequestFolder struct {
		NodeID string
	}

	// PlayItem is a local request to play a node.
	PlayItem struct {
		NodeID string
	}

	// SetAddressedPlayer is a local request to address a player node.
	SetAddressedPlayer struct {
		NodeID string
	}

	// PassThrough is a local request to send a pass-through key.
	PassThrough struct {
		Key avrcp.KeyCode
	}

	// ReleaseHeldKey is a local request to release a held pass-through key.
	ReleaseHeldKey struct{}

	// LocalVolumeChanged reports that the local output volume has changed.
	LocalVolumeChanged struct{}

	// StackEvent wraps an inbound event from the native stack.
	StackEvent struct {
		Event avrcp.Event
	}

	// TimerExpired reports that a session timer has fired.
	TimerExpired struct {
		Timer      TimerKind
		Generation uint64
	}
)

func (Connect) messageName() string            { return "connect" }
func (Disconnect) messageName() string         { return "disconnect" }
func (Remove) messageName() string             { return "remove" }
func (RequestFolder) messageName() string      { return "request-folder" }
func (PlayItem) messageName() string           { return "play-item" }
func (SetAddressedPlayer) messageName() string { return "set-addressed-player" }
func (PassThrough) messageName() string        { return "pass-through" }
func (ReleaseHeldKey) messageName() string     { return "release-held-key" }
func (LocalVolumeChanged) messageName() string { return "local-volume-changed" }
func (TimerExpired) messageName() string       { return "timer-expired" }

func (s StackEvent) messageName() string {
	return avrcp.EventName(s.Event)
}
