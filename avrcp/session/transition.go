package session

import (
	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/api/errorkinds"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/darkhz/avrctl/avrcp/browsetree"
)

// VolumeReader provides read access to the local output volume.
type VolumeReader interface {
	// Volume returns the current volume index and the maximum index.
	Volume() (index, max int)

	// IsActive reports whether the device is the one currently streaming.
	IsActive(device bluetooth.MacAddress) bool
}

// Transition applies msg to the session state and returns the effects that
// the actor must perform. It performs no I/O: stack calls, timers and host
// notifications are all returned as effects.
func Transition(st *State, volume VolumeReader, msg Message) Outcome {
	var out Outcome

	switch st.Conn {
	case Disconnected:
		st.whileDisconnected(msg, &out)

	case Connected:
		st.whileConnected(volume, msg, &out)
	}

	return out
}

func (st *State) whileDisconnected(msg Message, out *Outcome) {
	switch m := msg.(type) {
	case Connect:
		st.connect(true, FeatureRemoteControl|FeatureBrowsing, out)

	case StackEvent:
		ev, ok := m.Event.(avrcp.ConnectionStateChanged)
		if !ok || (!ev.RemoteControlUp && !ev.BrowsingUp) {
			return
		}

		st.connect(false, channelFeatures(ev), out)

	case Remove:
		out.emit(Stop{})

	case Disconnect, LocalVolumeChanged, TimerExpired:

	default:
		out.reject(errorkinds.ErrNotConnected)
	}
}

func (st *State) whileConnected(volume VolumeReader, msg Message, out *Outcome) {
	switch m := msg.(type) {
	case Connect:

	case Disconnect:
		st.disconnect(true, out)

	case Remove:
		st.disconnect(false, out)

	case RequestFolder:
		st.requestFolder(m, out)

	case PlayItem:
		st.playItem(m.NodeID, out)

	case SetAddressedPlayer:
		st.setAddressedPlayer(m.NodeID, out)

	case PassThrough:
		st.passThrough(m.Key, out)

	case ReleaseHeldKey:
		st.releaseHeldKey(out)

	case LocalVolumeChanged:
		st.localVolumeChanged(volume, out)

	case TimerExpired:
		st.timerExpired(m, out)

	case StackEvent:
		st.stackEvent(volume, m, out)
	}
}

func (st *State) stackEvent(volume VolumeReader, m StackEvent, out *Outcome) {
	switch ev := m.Event.(type) {
	case avrcp.ConnectionStateChanged:
		st.channelsChanged(ev, out)

	case avrcp.TrackChanged:
		st.CurrentTrack = ev.Track
		out.emit(NotifyTrack{Track: ev.Track})

	case avrcp.PlayStatusChanged:
		st.PlayStatus = ev.Status
		st.notifyPlayback(out)

	case avrcp.PlayPositionChanged:
		st.PlayPositionMs = ev.PositionMs
		st.SongLengthMs = ev.SongLengthMs
		st.notifyPlayback(out)

	case avrcp.FolderItemsReceived:
		st.itemsReceived(false, ev.Items, ev.Status, ev.UIDCounter, out)

	case avrcp.PlayerListReceived:
		st.itemsReceived(true, ev.Players, ev.Status, 0, out)

	case avrcp.FolderPathChanged:
		st.folderPathChanged(ev, out)

	case avrcp.BrowsedPlayerSet:
		st.browsedPlayerSet(ev, out)

	case avrcp.AvailablePlayersChanged:
		if st.Sub == FetchingFolder {
			st.finishFetch(FetchAbandoned, out)
		}

		st.Tree.ResetPlayers()
		st.notifyNode(st.Tree.Root(), out)

	case avrcp.AddressedPlayerChanged:
		st.AddressedPlayerID = ev.PlayerID
		st.nowPlayingChanged(out)

	case avrcp.NowPlayingContentChanged:
		st.nowPlayingChanged(out)

	case avrcp.UIDsChanged:
		st.UIDCounter = ev.UIDCounter

	case avrcp.SetAbsoluteVolume:
		st.setAbsoluteVolume(volume, ev, out)

	case avrcp.RegisterAbsoluteVolume:
		st.registerAbsoluteVolume(volume, ev, out)
	}
}

// connect moves the session from Disconnected through Connecting to Connected.
func (st *State) connect(local bool, features Features, out *Outcome) {
	st.Conn = Connecting
	if local {
		out.emit(CallConnect{})
	}

	st.Conn = Connected
	st.Sub = Idle
	st.Features = features
	st.Tree = browsetree.New()

	out.emit(NotifyConnected{})
}

// disconnect moves the session through Disconnecting to Disconnected,
// and discards everything that belongs to the connection.
func (st *State) disconnect(local bool, out *Outcome) {
	st.Conn = Disconnecting
	if local {
		out.emit(CallDisconnect{})
	}

	if st.fetchGen != 0 {
		out.emit(CancelTimer{Timer: TimerFetch})
	}

	if st.volumeGen != 0 {
		out.emit(CancelTimer{Timer: TimerVolumeEcho})
	}

	fresh := NewState(st.Device)
	fresh.generation = st.generation
	*st = *fresh

	out.emit(NotifyDisconnected{}, Stop{})
}

// channelsChanged handles a connection state change while connected.
func (st *State) channelsChanged(ev avrcp.ConnectionStateChanged, out *Outcome) {
	if !ev.RemoteControlUp && !ev.BrowsingUp {
		st.disconnect(false, out)

		return
	}

	browsing := st.Features.Has(FeatureBrowsing)
	st.Features = channelFeatures(ev)

	switch {
	case browsing && !ev.BrowsingUp:
		if st.Sub == FetchingFolder {
			st.finishFetch(FetchAbandoned, out)
		}

		st.Tree.ResetPlayers()
		st.notifyNode(st.Tree.Root(), out)

	case !browsing && ev.BrowsingUp:
		st.notifyNode(st.Tree.Root(), out)
	}
}

// nowPlayingChanged invalidates the now-playing listing, unless it is
// being fetched, in which case the invalidation waits for the fetch to end.
func (st *State) nowPlayingChanged(out *Outcome) {
	if st.Sub == FetchingFolder && st.fetch.target == st.Tree.NowPlaying() {
		st.deferred = append(st.deferred, StackEvent{Event: avrcp.NowPlayingContentChanged{}})

		return
	}

	st.Tree.InvalidateNowPlaying()
	st.notifyNode(st.Tree.NowPlaying(), out)
}

func (st *State) playItem(nodeID string, out *Outcome) {
	node, ok := st.Tree.Node(nodeID)
	if !ok || st.Tree.IsPseudo(node) {
		out.reject(errorkinds.ErrNodeNotFound)

		return
	}

	if !node.Playable() {
		out.reject(errorkinds.ErrNodeNotPlayable)

		return
	}

	out.emit(CallPlayItem{
		Scope:      node.Scope(),
		UID:        node.UID(),
		UIDCounter: node.UIDCounter(),
	})
}

func (st *State) setAddressedPlayer(nodeID string, out *Outcome) {
	node, ok := st.Tree.Node(nodeID)
	if !ok {
		out.reject(errorkinds.ErrNodeNotFound)

		return
	}

	if !node.IsPlayer() {
		out.reject(errorkinds.ErrNodeNotPlayer)

		return
	}

	out.emit(CallSetAddressedPlayer{PlayerID: node.PlayerID()})
}

func (st *State) notifyPlayback(out *Outcome) {
	out.emit(NotifyPlayback{
		Status:       st.PlayStatus,
		PositionMs:   st.PlayPositionMs,
		SongLengthMs: st.SongLengthMs,
	})
}

func (st *State) timerExpired(m TimerExpired, out *Outcome) {
	switch m.Timer {
	case TimerFetch:
		if m.Generation != st.fetchGen || st.Sub != FetchingFolder {
			return
		}

		st.fetchGen = 0
		st.finishFetch(FetchTimedOut, out)

	case TimerVolumeEcho:
		if m.Generation != st.volumeGen {
			return
		}

		st.volumeGen = 0
		st.VolumeChangedNotificationsToIgnore = 0
	}
}

// armTimer arms a timer with a fresh generation.
func (st *State) armTimer(timer TimerKind, out *Outcome) {
	st.generation++

	switch timer {
	case TimerFetch:
		st.fetchGen = st.generation

	case TimerVolumeEcho:
		st.volumeGen = st.generation
	}

	out.emit(ArmTimer{Timer: timer, Generation: st.generation})
}

// cancelTimer cancels a timer, if it is armed.
func (st *State) cancelTimer(timer TimerKind, out *Outcome) {
	switch timer {
	case TimerFetch:
		if st.fetchGen == 0 {
			return
		}

		st.fetchGen = 0

	case TimerVolumeEcho:
		if st.volumeGen == 0 {
			return
		}

		st.volumeGen = 0
	}

	out.emit(CancelTimer{Timer: timer})
}

func channelFeatures(ev avrcp.ConnectionStateChanged) Features {
	var features Features

	if ev.RemoteControlUp {
		features.Add(FeatureRemoteControl)
	}

	if ev.BrowsingUp {
		features.Add(FeatureBrowsing)
	}

	return features
}
