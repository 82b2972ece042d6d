package session

import (
	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/darkhz/avrctl/avrcp/browsetree"
)

// ConnState is the connection state of a session.
type ConnState uint8

// The different connection states.
const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Disconnecting
)

var connStateNames = map[ConnState]string{
	Disconnected:  "disconnected",
	Connecting:    "connecting",
	Connected:     "connected",
	Disconnecting: "disconnecting",
}

// String returns the name of the connection state.
func (c ConnState) String() string {
	return connStateNames[c]
}

// SubState is the sub-state of a connected session.
type SubState uint8

// The different connected sub-states.
const (
	Idle SubState = iota
	FetchingFolder
)

// String returns the name of the sub-state.
func (s SubState) String() string {
	if s == FetchingFolder {
		return "fetching-folder"
	}

	return "idle"
}

// Features describes the channels that are up for a session.
type Features uint

// The different session features.
const (
	FeatureNone          Features = 0
	FeatureRemoteControl Features = 1 << iota
	FeatureBrowsing
)

// Add adds the provided features to the existing features.
func (f *Features) Add(features ...Features) {
	for _, feature := range features {
		*f |= feature
	}
}

// Remove removes the provided features from the existing features.
func (f *Features) Remove(features ...Features) {
	for _, feature := range features {
		*f &^= feature
	}
}

// Has reports whether every provided feature is present.
func (f Features) Has(features ...Features) bool {
	for _, feature := range features {
		if f&feature == 0 {
			return false
		}
	}

	return true
}

// fetchContext tracks an in-flight folder fetch.
type fetchContext struct {
	target *browsetree.Node
	step   *browsetree.Node

	// listing is set while a page request for step is outstanding,
	// and unset while a navigation step is outstanding.
	listing bool
	abort   bool
}

// State is the per-device session state. It is owned by a single actor,
// and is only ever modified through [Transition].
type State struct {
	Device bluetooth.MacAddress

	Conn     ConnState
	Sub      SubState
	Features Features

	Tree *browsetree.Tree

	AbsVolNotificationPending          bool
	NotificationLabel                  avrcp.Label
	VolumeChangedNotificationsToIgnore int
	PreviousPercentageVolume           int

	AddressedPlayerID int
	UIDCounter        uint16
	CurrentTrack      avrcp.Track
	PlayStatus        avrcp.PlayStatus
	PlayPositionMs    uint32
	SongLengthMs      uint32

	HeldKey avrcp.KeyCode

	fetch    *fetchContext
	deferred []Message

	generation uint64
	fetchGen   uint64
	volumeGen  uint64
}

// NewState returns the initial, disconnected state of a device session.
func NewState(device bluetooth.MacAddress) *State {
	return &State{
		Device:                   device,
		PlayStatus:               avrcp.StatusStopped,
		NotificationLabel:        avrcp.LabelUndefined,
		PreviousPercentageVolume: -1,
	}
}

// FetchTarget returns the node that is being fetched, if any.
func (s *State) FetchTarget() *browsetree.Node {
	if s.fetch == nil {
		return nil
	}

	return s.fetch.target
}

// AbortRequested reports whether the in-flight fetch will halt at its next acknowledgement.
func (s *State) AbortRequested() bool {
	return s.fetch != nil && s.fetch.abort
}

// Deferred returns the number of deferred messages.
func (s *State) Deferred() int {
	return len(s.deferred)
}

// NextDeferred removes and returns the oldest deferred message, once the
// session is idle again.
func (s *State) NextDeferred() (Message, bool) {
	if s.Conn != Connected || s.Sub != Idle || len(s.deferred) == 0 {
		return nil, false
	}

	msg := s.deferred[0]
	s.deferred[0] = nil
	s.deferred = s.deferred[1:]

	return msg, true
}

// TimerArmed reports whether the provided timer is armed.
func (s *State) TimerArmed(timer TimerKind) bool {
	switch timer {
	case TimerFetch:
		return s.fetchGen != 0

	case TimerVolumeEcho:
		return s.volumeGen != 0
	}

	return false
}

// Info returns a snapshot of the session.
func (s *State) Info() Info {
	info := Info{
		Address:                   s.Device,
		State:                     s.Conn,
		SubState:                  s.Sub,
		Features:                  s.Features,
		AddressedPlayerID:         s.AddressedPlayerID,
		Track:                     s.CurrentTrack,
		Status:                    s.PlayStatus,
		PositionMs:                s.PlayPositionMs,
		SongLengthMs:              s.SongLengthMs,
		HeldKey:                   s.HeldKey,
		AbsVolNotificationPending: s.AbsVolNotificationPending,
		Deferred:                  len(s.deferred),
	}

	if target := s.FetchTarget(); target != nil {
		info.FetchTarget = target.ID()
	}

	return info
}

// Info is a read-only snapshot of a session.
type Info struct {
	Address bluetooth.MacAddress

	State    ConnState
	SubState SubState
	Features Features

	AddressedPlayerID int
	Track             avrcp.Track
	Status            avrcp.PlayStatus
	PositionMs        uint32
	SongLengthMs      uint32

	HeldKey                   avrcp.KeyCode
	AbsVolNotificationPending bool

	FetchTarget string
	Deferred    int
}
