package session

import (
	"github.com/darkhz/avrctl/avrcp"
	"github.com/darkhz/avrctl/avrcp/browsetree"
)

// Effect is an action that the actor performs on behalf of [Transition].
type Effect interface {
	effectName() string
}

// EffectName returns a printable name of the effect.
func EffectName(e Effect) string {
	if e == nil {
		return "nil"
	}

	return e.effectName()
}

// Outcome is the result of a single transition.
type Outcome struct {
	Effects []Effect

	// Err is set when a local request was rejected. A rejected request
	// never changes the state, and never produces effects.
	Err error
}

func (o *Outcome) emit(effects ...Effect) {
	o.Effects = append(o.Effects, effects...)
}

func (o *Outcome) reject(err error) {
	o.Err = err
}

// FinishReason describes why a folder fetch ended.
type FinishReason uint8

// The different reasons for a folder fetch to end.
const (
	FetchCompleted FinishReason = iota
	FetchAborted
	FetchTimedOut
	FetchAbandoned
)

// String returns the name of the reason.
func (f FinishReason) String() string {
	switch f {
	case FetchCompleted:
		return "completed"

	case FetchAborted:
		return "aborted"

	case FetchTimedOut:
		return "timed-out"
	}

	return "abandoned"
}

// Outbound stack calls.
type (
	CallConnect    struct{}
	CallDisconnect struct{}

	CallPassThrough struct {
		Key   avrcp.KeyCode
		State avrcp.KeyState
	}

	CallGetPlayerList struct {
		Start, End int
	}

	CallGetFolderList struct {
		Start, End int
	}

	CallGetNowPlayingList struct {
		Start, End int
	}

	CallChangeFolderPath struct {
		Direction avrcp.Direction
		UID       uint64
	}

	CallSetBrowsedPlayer struct {
		PlayerID int
	}

	CallSetAddressedPlayer struct {
		PlayerID int
	}

	CallPlayItem struct {
		Scope      avrcp.Scope
		UID        uint64
		UIDCounter uint16
	}

	CallAbsoluteVolumeResponse struct {
		Volume int
		Label  avrcp.Label
	}

	CallVolumeNotification struct {
		Kind   avrcp.NotificationKind
		Volume int
		Label  avrcp.Label
	}
)

// Local actions.
type (
	// SetLocalVolume sets the local output volume index.
	SetLocalVolume struct {
		Index int
	}

	// ArmTimer (re)arms a session timer. An expiry whose generation does
	// not match the last armed generation is ignored.
	ArmTimer struct {
		Timer      TimerKind
		Generation uint64
	}

	// CancelTimer stops a session timer.
	CancelTimer struct {
		Timer TimerKind
	}

	// FetchFinished reports the end of a folder fetch.
	FetchFinished struct {
		Target string
		Reason FinishReason
	}

	// Stop ends the session actor.
	Stop struct{}
)

// Host notifications.
type (
	NotifyConnected    struct{}
	NotifyDisconnected struct{}

	NotifyNodeChanged struct {
		Node browsetree.NodeInfo
	}

	NotifyPlayback struct {
		Status       avrcp.PlayStatus
		PositionMs   uint32
		SongLengthMs uint32
	}

	NotifyTrack struct {
		Track avrcp.Track
	}
)

func (CallConnect) effectName() string                { return "connect" }
func (CallDisconnect) effectName() string             { return "disconnect" }
func (CallPassThrough) effectName() string            { return "pass-through" }
func (CallGetPlayerList) effectName() string          { return "get-player-list" }
func (CallGetFolderList) effectName() string          { return "get-folder-list" }
func (CallGetNowPlayingList) effectName() string      { return "get-now-playing-list" }
func (CallChangeFolderPath) effectName() string       { return "change-folder-path" }
func (CallSetBrowsedPlayer) effectName() string       { return "set-browsed-player" }
func (CallSetAddressedPlayer) effectName() string     { return "set-addressed-player" }
func (CallPlayItem) effectName() string               { return "play-item" }
func (CallAbsoluteVolumeResponse) effectName() string { return "absolute-volume-response" }
func (CallVolumeNotification) effectName() string     { return "volume-notification" }
func (SetLocalVolume) effectName() string             { return "set-local-volume" }
func (ArmTimer) effectName() string                   { return "arm-timer" }
func (CancelTimer) effectName() string                { return "cancel-timer" }
func (FetchFinished) effectName() string              { return "fetch-finished" }
func (Stop) effectName() string                       { return "stop" }
func (NotifyConnected) effectName() string            { return "notify-connected" }
func (NotifyDisconnected) effectName() string         { return "notify-disconnected" }
func (NotifyNodeChanged) effectName() string          { return "notify-node-changed" }
func (NotifyPlayback) effectName() string             { return "notify-playback" }
func (NotifyTrack) effectName() string                { return "notify-track" }
