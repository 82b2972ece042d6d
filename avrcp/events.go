package avrcp

// Event is an inbound notification or response from the native stack.
type Event interface {
	eventName() string
}

// EventName returns a printable name of the event.
func EventName(e Event) string {
	if e == nil {
		return "nil"
	}

	return e.eventName()
}

type (
	// ConnectionStateChanged reports the state of the control and browsing channels.
	ConnectionStateChanged struct {
		RemoteControlUp bool
		BrowsingUp      bool
	}

	// TrackChanged reports new metadata for the current track.
	TrackChanged struct {
		Track Track
	}

	// PlayStatusChanged reports a new playback status.
	PlayStatusChanged struct {
		Status PlayStatus
	}

	// PlayPositionChanged reports the current playback position.
	PlayPositionChanged struct {
		SongLengthMs uint32
		PositionMs   uint32
	}

	// FolderItemsReceived is the response to a folder or now-playing listing.
	FolderItemsReceived struct {
		Items      []Item
		Status     ListingStatus
		UIDCounter uint16
	}

	// PlayerListReceived is the response to a player listing.
	PlayerListReceived struct {
		Players []Item
		Status  ListingStatus
	}

	// FolderPathChanged acknowledges a folder change, and carries the
	// item count of the new folder.
	FolderPathChanged struct {
		ItemCount int
	}

	// BrowsedPlayerSet acknowledges a browsed player change. Depth is the
	// number of levels the peer's folder cursor sits below the player root.
	BrowsedPlayerSet struct {
		ItemCount  int
		Depth      int
		UIDCounter uint16
	}

	// AvailablePlayersChanged reports that the peer's player list has changed.
	AvailablePlayersChanged struct{}

	// AddressedPlayerChanged reports a new addressed player.
	AddressedPlayerChanged struct {
		PlayerID int
	}

	// NowPlayingContentChanged reports that the now-playing list has changed.
	NowPlayingContentChanged struct{}

	// UIDsChanged reports a new uid counter.
	UIDsChanged struct {
		UIDCounter uint16
	}

	// SetAbsoluteVolume is a peer command to set the local volume.
	SetAbsoluteVolume struct {
		Volume int
		Label  Label
	}

	// RegisterAbsoluteVolume is a peer request to be notified of local volume changes.
	RegisterAbsoluteVolume struct {
		Label Label
	}
)

func (ConnectionStateChanged) eventName() string   { return "connection-state-changed" }
func (TrackChanged) eventName() string             { return "track-changed" }
func (PlayStatusChanged) eventName() string        { return "play-status-changed" }
func (PlayPositionChanged) eventName() string      { return "play-position-changed" }
func (FolderItemsReceived) eventName() string      { return "folder-items-received" }
func (PlayerListReceived) eventName() string       { return "player-list-received" }
func (FolderPathChanged) eventName() string        { return "folder-path-changed" }
func (BrowsedPlayerSet) eventName() string         { return "browsed-player-set" }
func (AvailablePlayersChanged) eventName() string  { return "available-players-changed" }
func (AddressedPlayerChanged) eventName() string   { return "addressed-player-changed" }
func (NowPlayingContentChanged) eventName() string { return "now-playing-content-changed" }
func (UIDsChanged) eventName() string              { return "uids-changed" }
func (SetAbsoluteVolume) eventName() string        { return "set-absolute-volume" }
func (RegisterAbsoluteVolume) eventName() string   { return "register-absolute-volume" }
